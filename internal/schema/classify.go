package schema

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/nerrad567/geappliances-bridge/internal/appliance"
)

// Classify maps a field's shape and the ERD's operations to an entity kind.
//
// A one-bit window is boolean whatever its declared type; a wider window is
// numeric unless the field is an enum.
func Classify(f appliance.Field, readable, writable bool) (Kind, error) {
	if !readable {
		return "", fmt.Errorf("%w: %q is not readable", ErrUnsupportedField, f.Name)
	}

	oneBit := f.Bits != nil && f.Bits.Size == 1
	switch {
	case f.Type == appliance.TypeBool || oneBit:
		if writable {
			return KindSwitch, nil
		}
		return KindBinarySensor, nil
	case f.Type == appliance.TypeEnum:
		if writable {
			return KindSelect, nil
		}
		return KindSensor, nil
	case f.Type.IsInteger():
		if writable {
			return KindNumber, nil
		}
		return KindSensor, nil
	case f.Type == appliance.TypeString || f.Type == appliance.TypeRaw:
		if writable {
			return KindText, nil
		}
		return KindSensor, nil
	}
	return "", fmt.Errorf("%w: %q has type %q", ErrUnsupportedField, f.Name, f.Type)
}

// decodingFor picks the decode strategy for a field.
func decodingFor(f appliance.Field) Decoding {
	switch {
	case f.Type == appliance.TypeBool || (f.Bits != nil && f.Bits.Size == 1):
		return DecodeBool
	case f.Type == appliance.TypeEnum:
		return DecodeEnum
	case f.Type == appliance.TypeString:
		return DecodeString
	case f.Type == appliance.TypeRaw:
		return DecodeHex
	case f.Type.IsSigned():
		return DecodeSigned
	}
	return DecodeUnsigned
}

type pattern[T any] struct {
	re  *regexp.Regexp
	val T
}

// unitPatterns is checked in order; the first match wins.
var unitPatterns = []pattern[string]{
	{regexp.MustCompile(`Temperature.*\(C\)`), "°C"},
	{regexp.MustCompile(`Temperature|Fahrenheit`), "°F"},
	{regexp.MustCompile(`Battery Level`), "%"},
	{regexp.MustCompile(`kWh`), "kWh"},
	{regexp.MustCompile(`Humidity`), "%"},
	{regexp.MustCompile(`\(in Pa\)`), "Pa"},
	{regexp.MustCompile(`gallons`), "gal"},
	{regexp.MustCompile(`\(oz\)`), "fl. oz."},
	{regexp.MustCompile(`\(mL\)`), "mL"},
	{regexp.MustCompile(`\(L\)`), "L"},
	{regexp.MustCompile(` lbs|\(lbs\)`), "lb"},
	{regexp.MustCompile(`mA$| mA |\(mA\)`), "mA"},
	{regexp.MustCompile(`seconds`), "s"},
	{regexp.MustCompile(`minutes`), "min"},
	{regexp.MustCompile(`hours`), "h"},
	{regexp.MustCompile(`days`), "d"},
	{regexp.MustCompile(`Watts`), "W"},
	{regexp.MustCompile(`Voltage`), "V"},
	{regexp.MustCompile(`Hz`), "Hz"},
}

var scalePatterns = []pattern[int]{
	{regexp.MustCompile(`\bx10\b|\bx 10\b|\bX10\b|\bX 10\b`), 10},
	{regexp.MustCompile(`\bx100\b|\bx 100\b|\bX100\b|\bX 100\b`), 100},
	{regexp.MustCompile(`\bx1000\b|\bx 1000\b|\bX1000\b|\bX 1000\b`), 1000},
}

var sensorClassPatterns = []pattern[string]{
	{regexp.MustCompile(`Temperature|Fahrenheit`), "temperature"},
	{regexp.MustCompile(`Battery Level`), "battery"},
	{regexp.MustCompile(`kWh`), "energy"},
	{regexp.MustCompile(`Humidity`), "humidity"},
	{regexp.MustCompile(`\(in Pa\)`), "pressure"},
	{regexp.MustCompile(`gallons|\(oz\)`), "volume_storage"},
	{regexp.MustCompile(`\(mL\)|\(L\)`), "volume"},
	{regexp.MustCompile(`lbs`), "weight"},
	{regexp.MustCompile(`mA`), "current"},
	{regexp.MustCompile(`days|hours|minutes|seconds`), "duration"},
	{regexp.MustCompile(`Watts`), "power"},
	{regexp.MustCompile(`Voltage`), "voltage"},
	{regexp.MustCompile(`Hz`), "frequency"},
}

// numberClassPatterns matches sensorClassPatterns except that plain volume
// has no number class.
var numberClassPatterns = []pattern[string]{
	{regexp.MustCompile(`Temperature`), "temperature"},
	{regexp.MustCompile(`Battery Level`), "battery"},
	{regexp.MustCompile(`kWh`), "energy"},
	{regexp.MustCompile(`Humidity`), "humidity"},
	{regexp.MustCompile(`\(in Pa\)`), "pressure"},
	{regexp.MustCompile(`gallons|\(oz\)`), "volume_storage"},
	{regexp.MustCompile(`lbs`), "weight"},
	{regexp.MustCompile(`mA`), "current"},
	{regexp.MustCompile(`days|hours|minutes|seconds`), "duration"},
	{regexp.MustCompile(`Watts`), "power"},
	{regexp.MustCompile(`Voltage`), "voltage"},
	{regexp.MustCompile(`Hz`), "frequency"},
}

func firstMatch[T any](patterns []pattern[T], texts ...string) (T, bool) {
	for _, p := range patterns {
		for _, s := range texts {
			if s != "" && p.re.MatchString(s) {
				return p.val, true
			}
		}
	}
	var zero T
	return zero, false
}

// Unit returns the unit of measurement for a numeric field, or "".
func Unit(f appliance.Field, erdDescription string) string {
	if f.Type == appliance.TypeString || f.Type == appliance.TypeEnum || f.Type == appliance.TypeRaw {
		return ""
	}
	unit, _ := firstMatch(unitPatterns, f.Name, erdDescription)
	return unit
}

// Scale returns the factor raw values are divided by for display. Defaults to 1.
func Scale(f appliance.Field, erdDescription string) int {
	if scale, ok := firstMatch(scalePatterns, f.Name, erdDescription); ok {
		return scale
	}
	return 1
}

// stripScale removes scale markers from an entity name.
func stripScale(name string) string {
	for _, p := range scalePatterns {
		name = p.re.ReplaceAllString(name, "")
	}
	return strings.Join(strings.Fields(name), " ")
}

// sensorDeviceClass returns the sensor device class for a field.
func sensorDeviceClass(f appliance.Field) string {
	switch f.Type {
	case appliance.TypeString, appliance.TypeRaw:
		return ""
	case appliance.TypeEnum:
		return "enum"
	}
	class, _ := firstMatch(sensorClassPatterns, f.Name)
	return class
}

func numberDeviceClass(f appliance.Field) string {
	class, _ := firstMatch(numberClassPatterns, f.Name)
	return class
}

// stateClass is "total" for cumulative integer sensors and "measurement"
// for other integer sensors.
func stateClass(f appliance.Field) string {
	if !f.Type.IsInteger() {
		return ""
	}
	if strings.Contains(f.Name, "Total") || strings.Contains(f.Name, "Cumulative") {
		return "total"
	}
	return "measurement"
}

// Bounds returns the raw integer range of a field before scaling. Bit
// windows are bounded by their width; whole fields by their type.
func Bounds(f appliance.Field) (lo, hi float64) {
	width := f.Span().Width()
	if f.Bits == nil {
		switch f.Type {
		case appliance.TypeU8, appliance.TypeI8:
			width = 8
		case appliance.TypeU16, appliance.TypeI16:
			width = 16
		case appliance.TypeU32, appliance.TypeI32:
			width = 32
		case appliance.TypeU64, appliance.TypeI64:
			width = 64
		}
	}

	if f.Type.IsSigned() {
		return -math.Pow(2, float64(width-1)), math.Pow(2, float64(width-1)) - 1
	}
	return 0, math.Pow(2, float64(width)) - 1
}
