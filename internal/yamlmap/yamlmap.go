// Package yamlmap provides an order-preserving YAML mapping.
//
// Workflow documents are mostly open mappings: a handful of keys are
// recognized by the expander and everything else must pass through to the
// output untouched and in the original order. gopkg.in/yaml.v3 map decoding
// loses key order, so Map decodes from and encodes to yaml.Node trees
// directly.
//
// Decoded values are: *Map for mappings, []interface{} for sequences, and
// string/int/float64/bool/nil for scalars. Mapping keys always decode to
// their literal text, so a bare `on:` key stays the string "on".
package yamlmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Map is a mapping that preserves key insertion order.
type Map struct {
	keys   []string
	values map[string]interface{}
}

// New creates an empty Map.
func New() *Map {
	return &Map{values: make(map[string]interface{})}
}

// FromPairs creates a Map from alternating key/value pairs, preserving order.
func FromPairs(pairs ...interface{}) *Map {
	if len(pairs)%2 != 0 {
		panic("yamlmap.FromPairs: odd number of arguments")
	}
	m := New()
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1])
	}
	return m
}

// Len returns the number of keys.
func (m *Map) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order. The returned slice is a copy.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value for key and whether it is present.
func (m *Map) Get(key string) (interface{}, bool) {
	v, ok := m.values[key]
	return v, ok
}

// GetString returns the value for key as a string.
// Returns "" if the key is absent or the value is not a string.
func (m *Map) GetString(key string) string {
	if v, ok := m.values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetMap returns the value for key as a nested Map, or nil.
func (m *Map) GetMap(key string) *Map {
	if v, ok := m.values[key]; ok {
		if sub, ok := v.(*Map); ok {
			return sub
		}
	}
	return nil
}

// GetSlice returns the value for key as a sequence, or nil.
func (m *Map) GetSlice(key string) []interface{} {
	if v, ok := m.values[key]; ok {
		if s, ok := v.([]interface{}); ok {
			return s
		}
	}
	return nil
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Set stores the value for key. A new key is appended; an existing key
// keeps its position.
func (m *Map) Set(key string, value interface{}) {
	if m.values == nil {
		m.values = make(map[string]interface{})
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Delete removes key, preserving the order of the remaining keys.
func (m *Map) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a shallow copy: keys are copied, values are shared.
func (m *Map) Clone() *Map {
	out := New()
	for _, k := range m.keys {
		out.Set(k, m.values[k])
	}
	return out
}

// String renders the mapping in a compact debugging form.
func (m *Map) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", k, m.values[k])
	}
	b.WriteByte('}')
	return b.String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Map) UnmarshalYAML(node *yaml.Node) error {
	v, err := DecodeNode(node)
	if err != nil {
		return err
	}
	decoded, ok := v.(*Map)
	if !ok {
		return fmt.Errorf("expected a mapping, got %s", node.Tag)
	}
	m.keys = decoded.keys
	m.values = decoded.values
	return nil
}

// DecodeNode converts a yaml.Node tree into Map/slice/scalar values.
func DecodeNode(node *yaml.Node) (interface{}, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return DecodeNode(node.Content[0])

	case yaml.AliasNode:
		return DecodeNode(node.Alias)

	case yaml.MappingNode:
		m := New()
		var merges []*Map
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("unsupported non-scalar mapping key at line %d", keyNode.Line)
			}
			value, err := DecodeNode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			if keyNode.Tag == "!!merge" {
				ms, err := mergeMaps(value)
				if err != nil {
					return nil, fmt.Errorf("bad merge value at line %d: %w", keyNode.Line, err)
				}
				merges = append(merges, ms...)
				continue
			}
			m.Set(keyNode.Value, value)
		}
		// Merged keys have lower precedence and follow the explicit keys.
		for _, merge := range merges {
			for _, k := range merge.keys {
				if !m.Has(k) {
					m.Set(k, merge.values[k])
				}
			}
		}
		return m, nil

	case yaml.SequenceNode:
		out := make([]interface{}, 0, len(node.Content))
		for _, item := range node.Content {
			v, err := DecodeNode(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case yaml.ScalarNode:
		return decodeScalar(node)

	default:
		return nil, fmt.Errorf("unsupported YAML node kind %d at line %d", node.Kind, node.Line)
	}
}

// mergeMaps normalizes a merge value: one mapping, or a sequence of them.
func mergeMaps(v interface{}) ([]*Map, error) {
	switch t := v.(type) {
	case *Map:
		return []*Map{t}, nil
	case []interface{}:
		out := make([]*Map, 0, len(t))
		for _, item := range t {
			m, ok := item.(*Map)
			if !ok {
				return nil, fmt.Errorf("expected a mapping, got %T", item)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a mapping, got %T", v)
	}
}

func decodeScalar(node *yaml.Node) (interface{}, error) {
	switch node.Tag {
	case "!!null":
		return nil, nil
	case "!!bool":
		return strings.EqualFold(node.Value, "true"), nil
	case "!!int":
		n, err := strconv.ParseInt(node.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q at line %d: %w", node.Value, node.Line, err)
		}
		return int(n), nil
	case "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("bad float %q at line %d: %w", node.Value, node.Line, err)
		}
		return f, nil
	default:
		return node.Value, nil
	}
}

// MarshalYAML implements yaml.Marshaler.
func (m *Map) MarshalYAML() (interface{}, error) {
	return EncodeValue(m)
}

// MarshalJSON implements json.Marshaler, emitting keys in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		value, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		b.Write(value)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// EncodeValue converts a Map/slice/scalar value tree into a yaml.Node
// suitable for yaml.Marshal. Multi-line strings use literal (|) style and
// nulls render empty. Values implementing yaml.Marshaler (expression
// residuals, notably) are encoded via their own marshaller.
func EncodeValue(v interface{}) (*yaml.Node, error) {
	switch val := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil

	case *Map:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range val.keys {
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
			valNode, err := EncodeValue(val.values[k])
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, keyNode, valNode)
		}
		return node, nil

	case []interface{}:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range val {
			itemNode, err := EncodeValue(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, itemNode)
		}
		return node, nil

	case string:
		node := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: val}
		if strings.Contains(val, "\n") {
			node.Style = yaml.LiteralStyle
		}
		return node, nil

	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(val)}, nil

	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(val)}, nil

	case int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(val, 10)}, nil

	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloat(val)}, nil

	case map[string]interface{}:
		// Plain maps only appear from JSON decoding, which lost the source
		// order already; sort for stable output.
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range keys {
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
			valNode, err := EncodeValue(val[k])
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, keyNode, valNode)
		}
		return node, nil

	case yaml.Marshaler:
		inner, err := val.MarshalYAML()
		if err != nil {
			return nil, err
		}
		return EncodeValue(inner)

	default:
		return nil, fmt.Errorf("cannot encode value of type %T", v)
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
