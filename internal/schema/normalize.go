package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Normalize parses free-form schema text into a Mapping.
//
// Text whose trimmed form starts with '{' or '[' is read as JSON, anything
// else as YAML. A document made of a single "schemas" key holding an object
// is unwrapped. Empty text yields an empty mapping. Failures come back as
// *Error together with an empty mapping.
func Normalize(text string) (*Mapping, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return NewMapping(), nil
	}

	format := DetectFormat(raw)
	var (
		value any
		err   error
	)
	if format == FormatJSON {
		value, err = decodeJSON([]byte(raw))
	} else {
		value, err = decodeYAML([]byte(raw))
	}
	if err != nil {
		return NewMapping(), syntaxErr(format, err)
	}

	obj, ok := value.(*Object)
	if !ok {
		return NewMapping(), structureErr(format, fmt.Sprintf("top level must be a mapping of schema name to definition, got %s", kindOf(value)))
	}
	obj = unwrapSchemasRoot(obj)
	return &Mapping{defs: obj}, nil
}

// DetectFormat reports which parser Normalize uses for text.
func DetectFormat(text string) Format {
	raw := strings.TrimSpace(text)
	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		return FormatJSON
	}
	return FormatYAML
}

func unwrapSchemasRoot(obj *Object) *Object {
	if obj.Len() != 1 {
		return obj
	}
	pair := obj.Oldest()
	if pair.Key != "schemas" {
		return obj
	}
	if inner, ok := pair.Value.(*Object); ok {
		return inner
	}
	return obj
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

// DecodeJSON decodes any JSON value keeping object key order. Objects come
// back as *Object, arrays as []any and numbers as int64 or float64.
func DecodeJSON(text string) (any, error) {
	return decodeJSON([]byte(text))
}

// decodeJSON walks the token stream so object keys keep their source order.
func decodeJSON(data []byte) (any, error) {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key %v is not a string", kt)
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := []any{}
			for dec.More() {
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", rune(t))
	default:
		return canonicalScalar(t), nil
	}
}

func decodeYAML(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return fromNode(&doc)
}

func fromNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, nil
		}
		return fromNode(n.Alias)
	case yaml.MappingNode:
		obj := NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			v, err := fromNode(val)
			if err != nil {
				return nil, err
			}
			if key.Tag == "!!merge" {
				mergeInto(obj, v)
				continue
			}
			obj.Set(key.Value, v)
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromNode(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		if _, isTime := v.(time.Time); isTime {
			return n.Value, nil
		}
		return canonicalScalar(v), nil
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", n.Line, n.Kind)
}

// mergeInto applies a YAML merge key ("<<"), keeping keys already present.
func mergeInto(dst *Object, src any) {
	switch s := src.(type) {
	case *Object:
		for pair := s.Oldest(); pair != nil; pair = pair.Next() {
			if _, exists := dst.Get(pair.Key); !exists {
				dst.Set(pair.Key, cloneValue(pair.Value))
			}
		}
	case []any:
		for _, item := range s {
			mergeInto(dst, item)
		}
	}
}
