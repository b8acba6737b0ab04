package dict

import "strconv"

// Kind tags what a Value holds.
type Kind uint8

const (
	// KindString is a scalar string value.
	KindString Kind = iota
	// KindDict is a nested dictionary.
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindDict:
		return "dict"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is either a string or a nested *Dict. Check Kind (or use the
// two-result accessors) before reading it.
type Value struct {
	kind Kind
	str  string
	dict *Dict
}

// StringValue wraps a scalar.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// DictValue wraps a nested dictionary.
func DictValue(d *Dict) Value {
	return Value{kind: KindDict, dict: d}
}

// Kind reports the tag.
func (v Value) Kind() Kind { return v.kind }

// IsNested reports whether v holds a dictionary.
func (v Value) IsNested() bool { return v.kind == KindDict }

// Str returns the scalar and true, or "" and false for a nested value.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Dict returns the nested dictionary and true, or nil and false for a scalar.
func (v Value) Dict() (*Dict, bool) {
	if v.kind != KindDict {
		return nil, false
	}
	return v.dict, true
}

// String renders scalars as-is and nested values as JSON.
func (v Value) String() string {
	if v.kind == KindString {
		return v.str
	}
	if v.dict == nil {
		return "{}"
	}
	data, err := v.dict.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Entry is one key/value pair together with its ownership tags.
type Entry struct {
	Key       string
	Value     Value
	OwnsKey   bool
	OwnsValue bool
}
