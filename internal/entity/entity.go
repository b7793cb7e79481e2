package entity

import (
	"bytes"
	"fmt"
	"maps"
	"math"
	"sync"
	"time"

	"github.com/nerrad567/geappliances-bridge/internal/erd"
	"github.com/nerrad567/geappliances-bridge/internal/schema"
)

// Entity is one live entity. Its configuration is fixed; the derived
// attributes and the last observed value change at runtime.
type Entity struct {
	cfg    schema.Config
	handle erd.Handle

	mu        sync.RWMutex
	raw       []byte
	updatedAt time.Time
	min       float64
	max       float64
	unit      string
	enabled   bool
	allowed   map[string]bool
}

func newEntity(cfg schema.Config) *Entity {
	e := &Entity{
		cfg:     cfg,
		min:     cfg.Min,
		max:     cfg.Max,
		unit:    cfg.Unit,
		enabled: true,
	}
	if cfg.Kind == schema.KindSelect {
		e.allowed = make(map[string]bool, len(cfg.Options))
		for _, label := range cfg.Options {
			e.allowed[label] = true
		}
	}
	return e
}

// Config returns the entity configuration.
func (e *Entity) Config() schema.Config {
	return e.cfg
}

// update is the store subscriber. A nil value means the state is unknown.
func (e *Entity) update(value []byte) {
	e.mu.Lock()
	e.raw = bytes.Clone(value)
	e.updatedAt = time.Now().UTC()
	e.mu.Unlock()
}

// State is a point-in-time view of an entity.
type State struct {
	UniqueID    string      `json:"unique_id"`
	DeviceName  string      `json:"device"`
	DeviceID    string      `json:"device_id"`
	Name        string      `json:"name"`
	Kind        schema.Kind `json:"kind"`
	ERD         string      `json:"erd"`
	StatusERD   string      `json:"status_erd,omitempty"`
	Writable    bool        `json:"writable"`
	Enabled     bool        `json:"enabled"`
	Value       any         `json:"value"`
	Unit        string      `json:"unit,omitempty"`
	DeviceClass string      `json:"device_class,omitempty"`
	StateClass  string      `json:"state_class,omitempty"`
	Min         *float64    `json:"min,omitempty"`
	Max         *float64    `json:"max,omitempty"`
	Options     []string    `json:"options,omitempty"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
}

// State returns the entity's current state. Value is nil when unknown:
// never observed, demoted, disabled or undecodable.
func (e *Entity) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := State{
		UniqueID:    e.cfg.UniqueID,
		DeviceName:  e.cfg.DeviceName,
		DeviceID:    e.cfg.DeviceID,
		Name:        e.cfg.Name,
		Kind:        e.cfg.Kind,
		ERD:         e.cfg.ERD.String(),
		Writable:    e.cfg.Writable,
		Enabled:     e.enabled,
		Unit:        e.unit,
		DeviceClass: e.cfg.DeviceClass,
		StateClass:  e.cfg.StateClass,
	}
	if e.cfg.HasStatus {
		s.StatusERD = e.cfg.StatusERD.String()
	}
	if e.cfg.Kind == schema.KindNumber {
		lo, hi := e.min, e.max
		s.Min, s.Max = &lo, &hi
	}
	if e.cfg.Kind == schema.KindSelect {
		s.Options = e.optionsLocked()
	}
	if !e.updatedAt.IsZero() {
		t := e.updatedAt
		s.UpdatedAt = &t
	}

	if e.enabled && e.raw != nil {
		if v, err := Decode(e.cfg, e.raw); err == nil {
			s.Value = v
		}
	}
	return s
}

// optionsLocked returns the allowed labels ordered by ordinal.
func (e *Entity) optionsLocked() []string {
	var out []string
	for _, label := range e.cfg.OptionLabels() {
		if e.allowed[label] {
			out = append(out, label)
		}
	}
	return out
}

func (e *Entity) setMin(v float64) {
	e.mu.Lock()
	e.min = v
	e.mu.Unlock()
}

func (e *Entity) setMax(v float64) {
	e.mu.Lock()
	e.max = v
	e.mu.Unlock()
}

func (e *Entity) setUnit(u string) {
	e.mu.Lock()
	e.unit = u
	e.mu.Unlock()
}

// setEnabled reports whether the flag changed.
func (e *Entity) setEnabled(enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	changed := e.enabled != enabled
	e.enabled = enabled
	return changed
}

func (e *Entity) setAllowable(option string, enabled bool) error {
	if _, ok := e.cfg.Ordinal(option); !ok {
		return fmt.Errorf("%w: %q is not an option of %s", ErrOptionNotAllowed, option, e.cfg.UniqueID)
	}
	e.mu.Lock()
	e.allowed[option] = enabled
	e.mu.Unlock()
	return nil
}

func (e *Entity) bounds() (lo, hi float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.min, e.max
}

func (e *Entity) isEnabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}

func (e *Entity) optionAllowed(label string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.allowed[label]
}

// allowedOptions returns a copy of the allowable flags, for tests and the API.
func (e *Entity) allowedOptions() map[string]bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.allowed)
}

// Decode turns an ERD value into the entity's state value: bool for
// boolean fields, float64 for numbers (scaled), string for enums, text,
// hex and clock fields.
func Decode(cfg schema.Config, value []byte) (any, error) {
	switch cfg.Decoding {
	case schema.DecodeBool:
		v, err := erd.ExtractUint(value, cfg.Span)
		if err != nil {
			return nil, err
		}
		return v != 0, nil

	case schema.DecodeUnsigned:
		v, err := erd.ExtractUint(value, cfg.Span)
		if err != nil {
			return nil, err
		}
		return scaled(float64(v), cfg.Scale), nil

	case schema.DecodeSigned:
		v, err := erd.ExtractInt(value, cfg.Span)
		if err != nil {
			return nil, err
		}
		return scaled(float64(v), cfg.Scale), nil

	case schema.DecodeEnum:
		v, err := erd.ExtractUint(value, cfg.Span)
		if err != nil {
			return nil, err
		}
		label, ok := cfg.Options[int(v)]
		if !ok {
			return nil, fmt.Errorf("%w: ordinal %d", ErrInvalidValue, v)
		}
		return label, nil

	case schema.DecodeString:
		b, err := erd.ExtractBytes(value, cfg.Span)
		if err != nil {
			return nil, err
		}
		return erd.DecodeString(b)

	case schema.DecodeHex:
		b, err := erd.ExtractBytes(value, cfg.Span)
		if err != nil {
			return nil, err
		}
		return erd.EncodeHex(b), nil

	case schema.DecodeClock:
		b, err := erd.ExtractBytes(value, cfg.Span)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("%02d:%02d:%02d", b[0], b[1], b[2]), nil
	}
	return nil, fmt.Errorf("%w: decoding %q", ErrInvalidValue, cfg.Decoding)
}

func scaled(v float64, scale int) float64 {
	if scale <= 1 {
		return v
	}
	return v / float64(scale)
}

// encodeNumber injects a display value into buf at the entity's span.
func encodeNumber(cfg schema.Config, buf []byte, value float64) ([]byte, error) {
	scale := cfg.Scale
	if scale < 1 {
		scale = 1
	}
	raw := math.Round(value * float64(scale))
	if cfg.Decoding == schema.DecodeSigned {
		return erd.InjectInt(buf, cfg.Span, int64(raw))
	}
	if raw < 0 {
		return nil, fmt.Errorf("%w: %v is negative", ErrOutOfRange, value)
	}
	return erd.InjectUint(buf, cfg.Span, uint64(raw))
}

// encodeClock parses "HH:MM" or "HH:MM:SS" into the three clock bytes.
func encodeClock(buf []byte, cfg schema.Config, s string) ([]byte, error) {
	t, err := time.Parse(time.TimeOnly, s)
	if err != nil {
		t, err = time.Parse("15:04", s)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a time of day", ErrInvalidValue, s)
	}
	return erd.InjectBytes(buf, cfg.Span, []byte{byte(t.Hour()), byte(t.Minute()), byte(t.Second())})
}
