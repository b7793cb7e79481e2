package schema

import (
	"sort"

	"github.com/nerrad567/geappliances-bridge/internal/appliance"
	"github.com/nerrad567/geappliances-bridge/internal/erd"
)

// Kind is the entity kind a field resolves to.
type Kind string

// Entity kinds.
const (
	KindBinarySensor Kind = "binary_sensor"
	KindSwitch       Kind = "switch"
	KindSensor       Kind = "sensor"
	KindNumber       Kind = "number"
	KindSelect       Kind = "select"
	KindText         Kind = "text"
	KindTime         Kind = "time"
)

// Decoding is how a field's bytes become an entity state.
type Decoding string

// Value decode strategies.
const (
	DecodeBool     Decoding = "bool"
	DecodeUnsigned Decoding = "unsigned"
	DecodeSigned   Decoding = "signed"
	DecodeEnum     Decoding = "enum"
	DecodeString   Decoding = "string"
	DecodeHex      Decoding = "hex"
	DecodeClock    Decoding = "clock"
)

// Config is a resolved entity configuration. Treat it as immutable once built.
type Config struct {
	UniqueID   string
	DeviceID   string
	DeviceName string
	Name       string
	Kind       Kind

	ERD       erd.ID
	StatusERD erd.ID
	HasStatus bool

	Span      erd.Span
	FieldType appliance.FieldType
	Decoding  Decoding
	Writable  bool

	Unit        string
	DeviceClass string
	StateClass  string
	Scale       int
	Min         float64
	Max         float64

	// Options maps enum ordinals to labels. Nil for non-enum configs.
	Options map[int]string
}

// StateERD is the ERD the entity reads its state from: the status half of a
// status/request pair, or the ERD itself.
func (c Config) StateERD() erd.ID {
	if c.HasStatus {
		return c.StatusERD
	}
	return c.ERD
}

// OptionLabels returns the enum labels ordered by ordinal.
func (c Config) OptionLabels() []string {
	ords := make([]int, 0, len(c.Options))
	for o := range c.Options {
		ords = append(ords, o)
	}
	sort.Ints(ords)

	labels := make([]string, len(ords))
	for i, o := range ords {
		labels[i] = c.Options[o]
	}
	return labels
}

// Ordinal returns the enum ordinal for label.
func (c Config) Ordinal(label string) (int, bool) {
	for o, l := range c.Options {
		if l == label {
			return o, true
		}
	}
	return 0, false
}
