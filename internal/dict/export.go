package dict

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"burrow/internal/errors"
)

// MarshalJSON writes d as a JSON object in insertion order.
func (d *Dict) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Dict) writeJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	first := true
	var err error
	d.Walk(func(key string, v Value, nested bool) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false

		var k []byte
		if k, err = json.Marshal(key); err != nil {
			return false
		}
		buf.Write(k)
		buf.WriteByte(':')

		if nested {
			sub, _ := v.Dict()
			err = sub.writeJSON(buf)
			return err == nil
		}
		var s []byte
		if s, err = json.Marshal(v.str); err != nil {
			return false
		}
		buf.Write(s)
		return true
	})
	if err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

// ToJSON is MarshalJSON with an indent option.
func (d *Dict) ToJSON(indent bool) ([]byte, error) {
	data, err := d.MarshalJSON()
	if err != nil || !indent {
		return data, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// UnmarshalJSON replaces d's contents with the decoded object, keeping the
// document's key order. Numbers and booleans are stored as their literal
// text; arrays are rejected.
func (d *Dict) UnmarshalJSON(data []byte) error {
	parsed, err := FromJSON(data)
	if err != nil {
		return err
	}
	d.Destroy()
	if d.index == nil {
		d.index = make(map[string]int)
	}
	for e := range parsed.Entries() {
		if err := d.Insert(e.Key, e.Value, true, true); err != nil {
			return err
		}
	}
	return nil
}

// FromJSON decodes a JSON object into a new owned dictionary.
func FromJSON(data []byte, opts ...Option) (*Dict, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "decode dictionary", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.Newf(errors.ConfigInvalid, "dictionary JSON must be an object")
	}
	d, err := decodeObject(dec, opts)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.Newf(errors.ConfigInvalid, "trailing data after dictionary object")
	}
	return d, nil
}

// decodeObject reads members up to and including the closing brace.
func decodeObject(dec *json.Decoder, opts []Option) (*Dict, error) {
	d := New(opts...)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.New(errors.ConfigInvalid, "decode dictionary key", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.Newf(errors.ConfigInvalid, "unexpected token %v", tok)
		}

		tok, err = dec.Token()
		if err != nil {
			return nil, errors.New(errors.ConfigInvalid, "decode value of "+key, err)
		}
		var value Value
		switch t := tok.(type) {
		case json.Delim:
			if t != '{' {
				return nil, errors.Newf(errors.ConfigInvalid, "key %q: arrays are not supported", key)
			}
			sub, err := decodeObject(dec, opts)
			if err != nil {
				return nil, err
			}
			value = DictValue(sub)
		case string:
			value = StringValue(t)
		case json.Number:
			value = StringValue(t.String())
		case bool:
			value = StringValue(fmt.Sprint(t))
		case nil:
			value = StringValue("")
		}
		if err := d.Insert(key, value, true, true); err != nil {
			return nil, err
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "decode dictionary", err)
	}
	return d, nil
}

// ToMap flattens d into plain Go maps; nested dictionaries become
// map[string]any.
func (d *Dict) ToMap() map[string]any {
	out := make(map[string]any, d.Count())
	d.Walk(func(key string, v Value, nested bool) bool {
		if nested {
			sub, _ := v.Dict()
			out[key] = sub.ToMap()
		} else {
			out[key] = v.str
		}
		return true
	})
	return out
}

// FromMap builds an owned dictionary. Nested maps become nested
// dictionaries, other values are formatted with fmt. Keys are inserted in
// sorted order since maps have none of their own.
func FromMap(m map[string]any, opts ...Option) (*Dict, error) {
	d := New(opts...)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var value Value
		switch v := m[k].(type) {
		case map[string]any:
			sub, err := FromMap(v, opts...)
			if err != nil {
				return nil, err
			}
			value = DictValue(sub)
		case *Dict:
			value = DictValue(v.HardDup())
		case string:
			value = StringValue(v)
		case nil:
			value = StringValue("")
		default:
			value = StringValue(fmt.Sprint(v))
		}
		if err := d.Insert(k, value, true, true); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// ToYAML renders d as a YAML mapping in insertion order.
func (d *Dict) ToYAML() ([]byte, error) {
	return yaml.Marshal(d.yamlNode())
}

func (d *Dict) yamlNode() *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	d.Walk(func(key string, v Value, nested bool) bool {
		k := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
		if nested {
			sub, _ := v.Dict()
			node.Content = append(node.Content, k, sub.yamlNode())
		} else {
			node.Content = append(node.Content, k, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.str})
		}
		return true
	})
	return node
}

// ToTOML renders d as a TOML document. TOML encoders sort keys, so
// insertion order is not preserved here.
func (d *Dict) ToTOML() ([]byte, error) {
	return toml.Marshal(d.ToMap())
}
