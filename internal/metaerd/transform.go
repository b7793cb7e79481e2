package metaerd

import (
	"fmt"
	"strings"

	"github.com/nerrad567/geappliances-bridge/internal/appliance"
)

// TransformKind is the closed set of meta-ERD transforms.
type TransformKind int

// Transform kinds.
const (
	SetMin TransformKind = iota + 1
	SetMax
	SetUnit
	EnableDisable
	SetAllowable
)

var transformNames = map[string]TransformKind{
	"set_min":           SetMin,
	"set_max":           SetMax,
	"set_unit":          SetUnit,
	"enable_or_disable": EnableDisable,
	"set_allowables":    SetAllowable,
}

// ParseTransformKind maps a table function name to its kind.
func ParseTransformKind(name string) (TransformKind, error) {
	k, ok := transformNames[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTransform, name)
	}
	return k, nil
}

// String returns the table function name.
func (k TransformKind) String() string {
	for name, kind := range transformNames {
		if kind == k {
			return name
		}
	}
	return fmt.Sprintf("TransformKind(%d)", int(k))
}

// Target receives derived attributes. Identifiers are entity unique ids
// with the device name already substituted.
type Target interface {
	SetMin(uniqueID string, min float64) error
	SetMax(uniqueID string, max float64) error
	SetUnit(uniqueID, unit string) error
	SetEnabled(uniqueID string, enabled bool) error
	SetAllowable(uniqueID, option string, enabled bool) error
}

// input is what a transform sees: the extracted source value and the
// definition it came from.
type input struct {
	value uint64
	field appliance.Field
	def   appliance.Definition
}

type transformFunc func(t Target, in input, target string) error

// transforms is resolved once; every TransformKind has an entry.
var transforms = map[TransformKind]transformFunc{
	SetMin:        applySetMin,
	SetMax:        applySetMax,
	SetUnit:       applySetUnit,
	EnableDisable: applyEnableDisable,
	SetAllowable:  applySetAllowable,
}

// Bounds are raw, unscaled values.
func applySetMin(t Target, in input, target string) error {
	return t.SetMin(target, float64(in.value))
}

func applySetMax(t Target, in input, target string) error {
	return t.SetMax(target, float64(in.value))
}

// applySetUnit looks the value up in the source field's enum table, falling
// back to the first field of the meta ERD.
func applySetUnit(t Target, in input, target string) error {
	values := in.field.Values
	if len(values) == 0 && len(in.def.Data) > 0 {
		values = in.def.Data[0].Values
	}
	unit, ok := values[int(in.value)]
	if !ok {
		return fmt.Errorf("%w: no unit for value %d of %s", ErrBadTarget, in.value, in.def.ID)
	}
	return t.SetUnit(target, unit)
}

func applyEnableDisable(t Target, in input, target string) error {
	return t.SetEnabled(target, in.value != 0)
}

// applySetAllowable expects "<unique id>.<option>".
func applySetAllowable(t Target, in input, target string) error {
	uniqueID, option, ok := splitOption(target)
	if !ok {
		return fmt.Errorf("%w: %q has no option", ErrBadTarget, target)
	}
	return t.SetAllowable(uniqueID, option, in.value != 0)
}

// splitOption splits an allowable target at its last dot. Field names may
// contain dots; option labels may not.
func splitOption(target string) (uniqueID, option string, ok bool) {
	i := strings.LastIndex(target, ".")
	if i < 0 || i == len(target)-1 {
		return target, "", false
	}
	return target[:i], target[i+1:], true
}
