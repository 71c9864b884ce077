package schema

import (
	"encoding/json"
	"strings"
)

// Kind is the container kind of a builder entry.
type Kind string

const (
	KindObject Kind = "object"
	KindArray  Kind = "array"
)

// PropType is the type column of a builder property.
type PropType string

const (
	TypeString  PropType = "string"
	TypeNumber  PropType = "number"
	TypeInteger PropType = "integer"
	TypeBoolean PropType = "boolean"
	TypeArray   PropType = "array"
	TypeRef     PropType = "ref"
)

const defaultRef = "#/components/schemas/SomeRef"

// Entry is the editable structural view of one schema definition.
type Entry struct {
	Name       string     `json:"name"`
	Kind       Kind       `json:"type"`
	Properties []Property `json:"props"`
}

// Property is one row of an Entry.
type Property struct {
	Key         string   `json:"key"`
	Type        PropType `json:"type"`
	Ref         string   `json:"ref,omitempty"`
	Required    bool     `json:"required"`
	Nullable    bool     `json:"nullable"`
	Description string   `json:"description,omitempty"`
	Example     any      `json:"example,omitempty"`
	MaxLength   *int64   `json:"maxLength,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
}

// MappingToBuilder projects a mapping onto builder entries, one per schema in
// mapping order. Keywords the builder has no column for are dropped.
func MappingToBuilder(m *Mapping) []Entry {
	out := make([]Entry, 0, m.Len())
	for _, name := range m.Names() {
		raw, _ := m.Get(name)
		def, _ := raw.(*Object)
		entry := Entry{Name: name, Kind: KindObject, Properties: []Property{}}
		if stringField(def, "type") == string(KindArray) {
			entry.Kind = KindArray
			out = append(out, entry)
			continue
		}
		props, _ := field(def, "properties").(*Object)
		if props != nil {
			required := requiredSet(def)
			for pair := props.Oldest(); pair != nil; pair = pair.Next() {
				propDef, _ := pair.Value.(*Object)
				p := propertyFromDef(pair.Key, propDef)
				p.Required = required[pair.Key]
				entry.Properties = append(entry.Properties, p)
			}
		}
		out = append(out, entry)
	}
	return out
}

// BuilderToMapping rebuilds a mapping from builder entries. Entries without a
// name and properties without a key are skipped.
func BuilderToMapping(entries []Entry) *Mapping {
	m := NewMapping()
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		if e.Kind == KindArray {
			items := NewObject()
			items.Set("type", "object")
			def := NewObject()
			def.Set("type", "array")
			def.Set("items", items)
			m.Set(name, def)
			continue
		}

		props := NewObject()
		var required []any
		for _, p := range e.Properties {
			key := strings.TrimSpace(p.Key)
			if key == "" {
				continue
			}
			props.Set(key, defFromProperty(p))
			if p.Required {
				required = append(required, key)
			}
		}
		def := NewObject()
		def.Set("type", "object")
		def.Set("properties", props)
		if len(required) > 0 {
			def.Set("required", required)
		}
		m.Set(name, def)
	}
	return m
}

func propertyFromDef(key string, def *Object) Property {
	p := Property{Key: key, Type: TypeString}
	if ref, ok := field(def, "$ref").(string); ok || hasKey(def, "$ref") {
		p.Type = TypeRef
		p.Ref = ref
	} else if t := stringField(def, "type"); t != "" {
		p.Type = PropType(t)
	}
	p.Description = stringField(def, "description")
	if ex, ok := getField(def, "example"); ok {
		p.Example = ex
	}
	if n, ok := asFloat(field(def, "maxLength")); ok {
		v := int64(n)
		p.MaxLength = &v
	}
	p.Pattern = stringField(def, "pattern")
	if b, ok := field(def, "nullable").(bool); ok {
		p.Nullable = b
	}
	return p
}

func defFromProperty(p Property) *Object {
	def := NewObject()
	switch p.Type {
	case TypeRef:
		ref := strings.TrimSpace(p.Ref)
		if ref == "" {
			ref = defaultRef
		}
		def.Set("$ref", ref)
	case TypeArray:
		items := NewObject()
		items.Set("type", "string")
		def.Set("type", "array")
		def.Set("items", items)
	case "":
		def.Set("type", string(TypeString))
	default:
		def.Set("type", string(p.Type))
	}
	if p.Description != "" {
		def.Set("description", p.Description)
	}
	if ex := exampleValue(p.Example); ex != nil {
		def.Set("example", ex)
	}
	if p.MaxLength != nil {
		def.Set("maxLength", *p.MaxLength)
	}
	if p.Pattern != "" {
		def.Set("pattern", p.Pattern)
	}
	if p.Nullable {
		def.Set("nullable", true)
	}
	return def
}

// exampleValue accepts typed examples as-is; string examples that hold JSON
// are decoded so "42" typed into a text box becomes a number.
func exampleValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if json.Valid([]byte(s)) && (strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")) {
		if parsed, err := decodeJSON([]byte(s)); err == nil {
			return parsed
		}
	}
	return s
}

func requiredSet(def *Object) map[string]bool {
	out := map[string]bool{}
	list, _ := field(def, "required").([]any)
	for _, item := range list {
		if s, ok := item.(string); ok {
			out[s] = true
		}
	}
	return out
}

func getField(def *Object, key string) (any, bool) {
	if def == nil {
		return nil, false
	}
	return def.Get(key)
}

func field(def *Object, key string) any {
	v, _ := getField(def, key)
	return v
}

func hasKey(def *Object, key string) bool {
	_, ok := getField(def, key)
	return ok
}

func stringField(def *Object, key string) string {
	s, _ := field(def, key).(string)
	return s
}
