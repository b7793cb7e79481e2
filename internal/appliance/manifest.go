package appliance

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nerrad567/geappliances-bridge/internal/erd"
)

// Mask is a feature bitmask, written as "0x00000001" in the manifest.
type Mask uint32

// UnmarshalJSON accepts a hex string or a plain number.
func (m *Mask) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		t := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
		v, err := strconv.ParseUint(t, 16, 32)
		if err != nil {
			return fmt.Errorf("%w: feature mask %q", ErrInvalidDocument, s)
		}
		*m = Mask(v)
		return nil
	}

	var n uint32
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: feature mask %s", ErrInvalidDocument, b)
	}
	*m = Mask(n)
	return nil
}

// RequiredERD is one ERD a manifest version requires.
type RequiredERD struct {
	ERD    erd.ID `json:"erd"`
	Name   string `json:"name"`
	Length int    `json:"length,omitempty"`
}

// Feature is an optional block of ERDs gated by a mask bit.
type Feature struct {
	Mask     Mask          `json:"mask"`
	Name     string        `json:"name"`
	Required []RequiredERD `json:"required"`
}

// Version is one version node of the common or a feature API.
type Version struct {
	Required []RequiredERD `json:"required"`
	Features []Feature     `json:"features"`
}

// Activated returns the required ERDs plus those of every feature whose
// mask bit is set in mask, in document order without duplicates.
func (v Version) Activated(mask uint32) []erd.ID {
	seen := make(map[erd.ID]bool)
	var ids []erd.ID
	add := func(list []RequiredERD) {
		for _, r := range list {
			if !seen[r.ERD] {
				seen[r.ERD] = true
				ids = append(ids, r.ERD)
			}
		}
	}

	add(v.Required)
	for _, f := range v.Features {
		if uint32(f.Mask)&mask != 0 {
			add(f.Required)
		}
	}
	return ids
}

// Declares reports whether id is among the ERDs activated by mask.
func (v Version) Declares(id erd.ID, mask uint32) bool {
	for _, a := range v.Activated(mask) {
		if a == id {
			return true
		}
	}
	return false
}

// API holds every version of one API, keyed by decimal version string.
type API struct {
	Versions map[string]Version `json:"versions"`
}

// Manifest is the parsed appliance API manifest document.
type Manifest struct {
	CommonAPI   API            `json:"common"`
	FeatureAPIs map[string]API `json:"featureApis"`
}

// LoadManifest reads and parses the appliance API manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading appliance API: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses an appliance API manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: appliance API: %w", ErrInvalidDocument, err)
	}
	return &m, nil
}

// Common returns the common API node for version.
func (m *Manifest) Common(version uint32) (Version, bool) {
	v, ok := m.CommonAPI.Versions[strconv.FormatUint(uint64(version), 10)]
	return v, ok
}

// Feature returns the node for featureType at version.
func (m *Manifest) Feature(featureType, version uint16) (Version, bool) {
	api, ok := m.FeatureAPIs[strconv.FormatUint(uint64(featureType), 10)]
	if !ok {
		return Version{}, false
	}
	v, ok := api.Versions[strconv.FormatUint(uint64(version), 10)]
	return v, ok
}

// Announcement is a decoded appliance API announcement ERD value.
type Announcement struct {
	// Common is true for the common API announcement (ERD 0x0092).
	Common      bool
	FeatureType uint16
	Version     uint32
	Mask        uint32
}

// announcementLength is the payload size of every announcement ERD.
const announcementLength = 8

// DecodeAnnouncement decodes the value of an announcement ERD.
//
// The common announcement is version:u32be || mask:u32be. Feature
// announcements are type:u16be || version:u16be || mask:u32be.
func DecodeAnnouncement(id erd.ID, value []byte) (Announcement, error) {
	if len(value) < announcementLength {
		return Announcement{}, fmt.Errorf("%w: %s is %d bytes", ErrInvalidAnnouncement, id, len(value))
	}
	mask := uint32(erd.DecodeUint(value[4:8]))
	if id == erd.CommonAPI {
		return Announcement{Common: true, Version: uint32(erd.DecodeUint(value[0:4])), Mask: mask}, nil
	}
	return Announcement{
		FeatureType: uint16(erd.DecodeUint(value[0:2])),
		Version:     uint32(erd.DecodeUint(value[2:4])),
		Mask:        mask,
	}, nil
}

// Resolve returns the manifest node the announcement selects.
func (m *Manifest) Resolve(a Announcement) (Version, bool) {
	if a.Common {
		return m.Common(a.Version)
	}
	return m.Feature(a.FeatureType, uint16(a.Version))
}

// Key returns the meta-ERD table keys for the announcement: "common" or the
// decimal feature type, and the decimal version.
func (a Announcement) Key() (featureType, version string) {
	version = strconv.FormatUint(uint64(a.Version), 10)
	if a.Common {
		return "common", version
	}
	return strconv.FormatUint(uint64(a.FeatureType), 10), version
}
