package appliance

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nerrad567/geappliances-bridge/internal/erd"
)

// FieldType is the scalar type of an ERD field.
type FieldType string

// Supported field types.
const (
	TypeBool   FieldType = "bool"
	TypeU8     FieldType = "u8"
	TypeU16    FieldType = "u16"
	TypeU32    FieldType = "u32"
	TypeU64    FieldType = "u64"
	TypeI8     FieldType = "i8"
	TypeI16    FieldType = "i16"
	TypeI32    FieldType = "i32"
	TypeI64    FieldType = "i64"
	TypeEnum   FieldType = "enum"
	TypeString FieldType = "string"
	TypeRaw    FieldType = "raw"
)

// IsInteger reports whether t is one of the fixed-width integer types.
func (t FieldType) IsInteger() bool {
	switch t {
	case TypeU8, TypeU16, TypeU32, TypeU64, TypeI8, TypeI16, TypeI32, TypeI64:
		return true
	}
	return false
}

// IsSigned reports whether t is a signed integer type.
func (t FieldType) IsSigned() bool {
	switch t {
	case TypeI8, TypeI16, TypeI32, TypeI64:
		return true
	}
	return false
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case TypeBool, TypeEnum, TypeString, TypeRaw:
		return true
	}
	return t.IsInteger()
}

// Operation is an access mode declared by an ERD.
type Operation string

// ERD operations.
const (
	OpRead  Operation = "read"
	OpWrite Operation = "write"
)

// BitRange is a bit window inside a field's byte span, counted from the MSB.
type BitRange struct {
	Offset int `json:"offset"`
	Size   int `json:"size"`
}

// Field describes one field of an ERD value.
type Field struct {
	Name   string         `json:"name"`
	Type   FieldType      `json:"type"`
	Offset int            `json:"offset"`
	Size   int            `json:"size"`
	Bits   *BitRange      `json:"bits,omitempty"`
	Values map[int]string `json:"values,omitempty"`
}

// Span returns the codec span for the field.
func (f Field) Span() erd.Span {
	s := erd.Span{Offset: f.Offset, Size: f.Size}
	if f.Bits != nil {
		s.BitOffset = f.Bits.Offset
		s.BitSize = f.Bits.Size
	}
	return s
}

// Definition describes one ERD.
type Definition struct {
	ID          erd.ID      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Operations  []Operation `json:"operations"`
	Data        []Field     `json:"data"`
}

// Readable reports whether the ERD declares the read operation.
func (d Definition) Readable() bool { return d.has(OpRead) }

// Writable reports whether the ERD declares the write operation.
func (d Definition) Writable() bool { return d.has(OpWrite) }

func (d Definition) has(op Operation) bool {
	for _, o := range d.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Field returns the field named name.
func (d Definition) Field(name string) (Field, error) {
	for _, f := range d.Data {
		if f.Name == name {
			return f, nil
		}
	}
	return Field{}, fmt.Errorf("%w: %q in %s", ErrFieldNotFound, name, d.ID)
}

// StatusPair links the read-only status ERD of a control point to the ERD
// that accepts requests for it.
type StatusPair struct {
	Status  erd.ID `json:"status"`
	Request erd.ID `json:"request"`
}

// Definitions is the parsed ERD definitions document.
type Definitions struct {
	byID  map[erd.ID]Definition
	pairs map[erd.ID]StatusPair
}

type definitionsDocument struct {
	ERDs        []Definition `json:"erds"`
	StatusPairs []StatusPair `json:"statusPairs"`
}

// LoadDefinitions reads and parses the ERD definitions document at path.
func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ERD definitions: %w", err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions parses an ERD definitions document.
func ParseDefinitions(data []byte) (*Definitions, error) {
	var doc definitionsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: ERD definitions: %w", ErrInvalidDocument, err)
	}

	defs := &Definitions{
		byID:  make(map[erd.ID]Definition, len(doc.ERDs)),
		pairs: make(map[erd.ID]StatusPair, 2*len(doc.StatusPairs)),
	}
	for _, d := range doc.ERDs {
		for _, f := range d.Data {
			if !f.Type.Valid() {
				return nil, fmt.Errorf("%w: %q in field %q of %s", ErrUnknownFieldType, f.Type, f.Name, d.ID)
			}
		}
		defs.byID[d.ID] = d
	}
	for _, p := range doc.StatusPairs {
		defs.pairs[p.Status] = p
		defs.pairs[p.Request] = p
	}
	return defs, nil
}

// Lookup returns the definition for id.
func (d *Definitions) Lookup(id erd.ID) (Definition, bool) {
	def, ok := d.byID[id]
	return def, ok
}

// StatusPair returns the status/request pair that id belongs to, if any.
func (d *Definitions) StatusPair(id erd.ID) (StatusPair, bool) {
	p, ok := d.pairs[id]
	return p, ok
}

// Len returns the number of ERD definitions.
func (d *Definitions) Len() int {
	return len(d.byID)
}
