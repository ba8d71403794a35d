package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one named value of a detail document. Value is nil, a string,
// a []string, or a []Character.
type Field struct {
	Name  string
	Value any
}

// Fields keeps extracted values in document order. Names are unique.
type Fields []Field

// Get returns the value stored under name.
func (f Fields) Get(name string) (any, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// Set replaces the value stored under name, appending it when absent.
func (f *Fields) Set(name string, value any) {
	for i := range *f {
		if (*f)[i].Name == name {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Name: name, Value: value})
}

// Names lists field names in order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for _, field := range f {
		names = append(names, field.Name)
	}
	return names
}

// Character is one roster entry. A nil Performer renders as a plain string,
// otherwise as a single-entry object {role: performer}.
type Character struct {
	Role      string
	Performer *string
}

// MarshalJSON implements json.Marshaler.
func (c Character) MarshalJSON() ([]byte, error) {
	if c.Performer == nil {
		return encodeValue(c.Role)
	}
	return encodeValue(map[string]string{c.Role: *c.Performer})
}

// DetailRecord is the normalized record for one catalog item. The schema is
// open: Fields carries whatever canonical names the page exposed.
type DetailRecord struct {
	ID     int
	Fields Fields
}

// RecordID implements Identified.
func (d DetailRecord) RecordID() int { return d.ID }

// MarshalJSON renders the record as a single object with "id" first and the
// remaining fields in extraction order.
func (d DetailRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"id":%d`, d.ID)
	for _, field := range d.Fields {
		if field.Name == "id" {
			continue
		}
		key, err := encodeValue(field.Name)
		if err != nil {
			return nil, err
		}
		value, err := encodeValue(field.Value)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", field.Name, err)
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
