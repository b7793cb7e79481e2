package schema

import (
	"github.com/nerrad567/geappliances-bridge/internal/appliance"
	"github.com/nerrad567/geappliances-bridge/internal/erd"
)

// ClockTimeERD holds the appliance clock as hour, minute, second bytes.
const ClockTimeERD erd.ID = 0x0005

// clockTimeSize is the byte length of the clock value.
const clockTimeSize = 3

// DefaultSpecialERDs returns the built-in special ERD builders.
func DefaultSpecialERDs() map[erd.ID]SpecialBuilder {
	return map[erd.ID]SpecialBuilder{
		ClockTimeERD: ClockTime,
	}
}

// ClockTime builds the time entity for the appliance clock. It is writable
// only when the definitions document declares the ERD writable.
func ClockTime(deviceName, deviceID string, def *appliance.Definition) []Config {
	return []Config{{
		UniqueID:   UniqueID(deviceName, ClockTimeERD, "Clock Time"),
		DeviceID:   deviceID,
		DeviceName: deviceName,
		Name:       "Clock Time",
		Kind:       KindTime,
		ERD:        ClockTimeERD,
		Span:       erd.Span{Offset: 0, Size: clockTimeSize},
		Decoding:   DecodeClock,
		Writable:   def != nil && def.Writable(),
		Scale:      1,
	}}
}
