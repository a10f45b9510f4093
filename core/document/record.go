package document

import (
	"bytes"

	"github.com/goccy/go-json"
)

const (
	// FieldRID is the reserved key carrying the record identity in projections.
	FieldRID = "@rid"
	// FieldClass is the reserved key carrying the class name in projections.
	FieldClass = "@class"
)

// Record is one document of the source database.
// A Record is not safe for concurrent mutation.
type Record struct {
	id      RID
	class   string
	version int
	names   []string
	fields  map[string]any
}

// NewRecord creates an unsaved record of the given class.
func NewRecord(class string) *Record {
	return &Record{
		id:     EmptyRID,
		class:  class,
		fields: make(map[string]any),
	}
}

// Identity returns the permanent address of the record.
func (r *Record) Identity() RID {
	return r.id
}

// SetIdentity assigns the permanent address. Used by the storage layer on save and load.
func (r *Record) SetIdentity(id RID) {
	r.id = id
}

// ClassName returns the class of the record; empty when unresolvable.
func (r *Record) ClassName() string {
	return r.class
}

// Version returns the stored version of the record.
func (r *Record) Version() int {
	return r.version
}

// SetVersion assigns the stored version.
func (r *Record) SetVersion(v int) {
	r.version = v
}

// Set assigns a field, keeping the position of an existing field.
func (r *Record) Set(name string, value any) *Record {
	if _, ok := r.fields[name]; !ok {
		r.names = append(r.names, name)
	}
	r.fields[name] = value
	return r
}

// Field returns the value of a field, or nil when absent.
func (r *Record) Field(name string) any {
	return r.fields[name]
}

// Has reports whether the field is present (even if its value is nil).
func (r *Record) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Remove deletes a field.
func (r *Record) Remove(name string) {
	if _, ok := r.fields[name]; !ok {
		return
	}
	delete(r.fields, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
}

// FieldNames returns the field names in insertion order.
func (r *Record) FieldNames() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Fields returns a shallow copy of the field values.
func (r *Record) Fields() map[string]any {
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// MarshalJSON renders the record as a flat object: class, identity when
// persistent, then the fields in order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	class, err := json.Marshal(r.class)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"` + FieldClass + `":`)
	buf.Write(class)

	if r.id.IsPersistent() {
		buf.WriteString(`,"` + FieldRID + `":"` + r.id.String() + `"`)
	}

	for _, name := range r.names {
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.fields[name])
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
