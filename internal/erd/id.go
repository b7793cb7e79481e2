package erd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is a 16-bit ERD address.
type ID uint16

// Appliance API announcement ERDs.
const (
	// CommonAPI carries version:u32be || feature_mask:u32be.
	CommonAPI ID = 0x0092

	// Feature API announcements carry type:u16be || version:u16be || feature_mask:u32be.
	FeatureAPILowStart  ID = 0x0093
	FeatureAPILowEnd    ID = 0x0097
	FeatureAPIHighStart ID = 0x0109
	FeatureAPIHighEnd   ID = 0x010D
)

// IsFeatureAPI reports whether id falls into either feature announcement range.
func (id ID) IsFeatureAPI() bool {
	return (id >= FeatureAPILowStart && id <= FeatureAPILowEnd) ||
		(id >= FeatureAPIHighStart && id <= FeatureAPIHighEnd)
}

// IsAPI reports whether id is the common announcement or a feature announcement.
func (id ID) IsAPI() bool {
	return id == CommonAPI || id.IsFeatureAPI()
}

// APIERDs lists every announcement ERD, common first, in search order.
func APIERDs() []ID {
	ids := []ID{CommonAPI}
	for id := FeatureAPILowStart; id <= FeatureAPILowEnd; id++ {
		ids = append(ids, id)
	}
	for id := FeatureAPIHighStart; id <= FeatureAPIHighEnd; id++ {
		ids = append(ids, id)
	}
	return ids
}

// String formats the id the way it appears on the wire, e.g. "0x0092".
func (id ID) String() string {
	return fmt.Sprintf("0x%04x", uint16(id))
}

// Hex4 formats the id as four lowercase hex digits without a prefix.
func (id ID) Hex4() string {
	return fmt.Sprintf("%04x", uint16(id))
}

// ParseID parses a hex ERD id with or without a 0x prefix.
func ParseID(s string) (ID, error) {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(strings.TrimPrefix(t, "0x"), "0X")
	if t == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	v, err := strconv.ParseUint(t, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID(v), nil
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so ids work as JSON map keys.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// UnmarshalJSON accepts either a hex string or a plain number.
func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		return id.UnmarshalText([]byte(s))
	}

	var n uint16
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, b)
	}
	*id = ID(n)
	return nil
}
