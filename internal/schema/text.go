package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the textual form of a mapping.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat maps yaml|yml|json (any case) to a Format; anything else is YAML.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// ToText serializes m deterministically: keys in mapping order, two-space
// indentation. An empty mapping renders as "{}".
func ToText(m *Mapping, format Format) (string, error) {
	if format == FormatJSON {
		return toJSON(m)
	}
	return toYAML(m)
}

func toJSON(m *Mapping) (string, error) {
	raw, err := m.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("schema: encode json: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", fmt.Errorf("schema: indent json: %w", err)
	}
	buf.WriteByte('\n')
	return buf.String(), nil
}

func toYAML(m *Mapping) (string, error) {
	if m.Len() == 0 {
		return "{}\n", nil
	}
	node, err := toNode(m.defs)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return "", fmt.Errorf("schema: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("schema: encode yaml: %w", err)
	}
	return buf.String(), nil
}

func toNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case *Object:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			k, err := scalarNode(pair.Key)
			if err != nil {
				return nil, err
			}
			val, err := toNode(pair.Value)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, k, val)
		}
		return n, nil
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range t {
			c, err := toNode(item)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	default:
		return scalarNode(t)
	}
}

func scalarNode(v any) (*yaml.Node, error) {
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, fmt.Errorf("schema: encode scalar %v: %w", v, err)
	}
	return n, nil
}
