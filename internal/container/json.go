package container

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON renders a Value as plain JSON: null, bool, number, string,
// array, or object. Dict keys are emitted in insertion order by encoding
// the object as an ordered sequence of "key":value pairs rather than
// relying on encoding/json's map handling (which would sort keys
// alphabetically and lose the declared order §6 requires on disk).
func (v *Value) MarshalJSON() ([]byte, error) {
	if v.IsNull() {
		return []byte("null"), nil
	}
	switch v.Kind {
	case KindValueBool:
		return json.Marshal(v.Bool)
	case KindValueNumber:
		return json.Marshal(v.Number)
	case KindValueString:
		return json.Marshal(v.Str)
	case KindValueList:
		return json.Marshal(v.List)
	case KindValueDict:
		var buf []byte
		buf = append(buf, '{')
		for i, k := range v.Order {
			if i > 0 {
				buf = append(buf, ',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, key...)
			buf = append(buf, ':')
			val, err := json.Marshal(v.Dict[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, val...)
		}
		buf = append(buf, '}')
		return buf, nil
	default:
		return nil, fmt.Errorf("container: cannot marshal value kind %d", v.Kind)
	}
}

// UnmarshalJSON parses JSON into a Value, preserving object key order as
// read from the source document.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	parsed, err := decodeJSONToken(dec, tok)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

func decodeJSONToken(dec *json.Decoder, tok json.Token) (*Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			items := []*Value{}
			for dec.More() {
				next, err := dec.Token()
				if err != nil {
					return nil, err
				}
				child, err := decodeJSONToken(dec, next)
				if err != nil {
					return nil, err
				}
				items = append(items, child)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return NewList(items...), nil
		case '{':
			d := NewDict()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("container: object key is not a string")
				}
				valTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				child, err := decodeJSONToken(dec, valTok)
				if err != nil {
					return nil, err
				}
				d.Set(key, child)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return d, nil
		}
	}
	return nil, fmt.Errorf("container: unexpected JSON token %v", tok)
}
