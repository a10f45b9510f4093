package document

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

const (
	typeKey      = "@type"
	typeLink     = "link"
	typeRidBag   = "ridbag"
	typeEmbedded = "embedded"
)

// EncodeBody serializes the fields of a record into the stored JSON body.
// Persisted linked records are stored as links; unsaved ones are embedded.
func EncodeBody(rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeFields(&buf, rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBody parses a stored JSON body into the fields of rec, in stored order.
func DecodeBody(rec *Record, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read record body: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record body is not an object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read field name: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected field name token %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to read field %s: %w", name, err)
		}
		value, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("failed to decode field %s: %w", name, err)
		}
		rec.Set(name, value)
	}

	return nil
}

func encodeFields(buf *bytes.Buffer, rec *Record) error {
	buf.WriteByte('{')
	for i, name := range rec.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := encodeValue(buf, rec.fields[name]); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeValue(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case RID:
		return encodeLink(buf, v)
	case *RidBag:
		ids := make([]string, len(v.rids))
		for i, rid := range v.rids {
			ids[i] = rid.String()
		}
		encoded, err := json.Marshal(map[string]any{typeKey: typeRidBag, "@rids": ids})
		if err != nil {
			return err
		}
		buf.Write(encoded)
	case *Record:
		if v == nil {
			buf.WriteString("null")
			return nil
		}
		if v.id.IsPersistent() {
			return encodeLink(buf, v.id)
		}
		class, err := json.Marshal(v.class)
		if err != nil {
			return err
		}
		buf.WriteString(`{"` + typeKey + `":"` + typeEmbedded + `","@class":`)
		buf.Write(class)
		buf.WriteString(`,"@fields":`)
		if err := encodeFields(buf, v); err != nil {
			return err
		}
		buf.WriteByte('}')
	case map[string]any:
		buf.WriteByte('{')
		first := true
		for k, item := range v {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		return encodeList(buf, v)
	case []*Record:
		items := make([]any, len(v))
		for i, rec := range v {
			items[i] = rec
		}
		return encodeList(buf, items)
	case []RID:
		items := make([]any, len(v))
		for i, rid := range v {
			items[i] = rid
		}
		return encodeList(buf, items)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(encoded)
	}
	return nil
}

func encodeList(buf *bytes.Buffer, items []any) error {
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeLink(buf *bytes.Buffer, rid RID) error {
	encoded, err := json.Marshal(map[string]string{typeKey: typeLink, "@rid": rid.String()})
	if err != nil {
		return err
	}
	buf.Write(encoded)
	return nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, err
		}
		if tag, ok := obj[typeKey]; ok {
			return decodeTagged(tag, obj)
		}
		out := make(map[string]any, len(obj))
		for k, item := range obj {
			v, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
			return n.Float64()
		}
		return v, nil
	}
}

func decodeTagged(tag json.RawMessage, obj map[string]json.RawMessage) (any, error) {
	var kind string
	if err := json.Unmarshal(tag, &kind); err != nil {
		return nil, err
	}

	switch kind {
	case typeLink:
		var rid RID
		if err := json.Unmarshal(obj["@rid"], &rid); err != nil {
			return nil, err
		}
		return rid, nil
	case typeRidBag:
		var ids []string
		if err := json.Unmarshal(obj["@rids"], &ids); err != nil {
			return nil, err
		}
		bag := NewRidBag()
		for _, id := range ids {
			rid, err := ParseRID(id)
			if err != nil {
				return nil, err
			}
			bag.Add(rid)
		}
		return bag, nil
	case typeEmbedded:
		var class string
		if raw, ok := obj["@class"]; ok {
			if err := json.Unmarshal(raw, &class); err != nil {
				return nil, err
			}
		}
		embedded := NewRecord(class)
		if raw, ok := obj["@fields"]; ok {
			if err := DecodeBody(embedded, raw); err != nil {
				return nil, err
			}
		}
		return embedded, nil
	default:
		return nil, fmt.Errorf("unknown value type %q", kind)
	}
}
