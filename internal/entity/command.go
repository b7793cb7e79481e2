package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/geappliances-bridge/internal/erd"
	"github.com/nerrad567/geappliances-bridge/internal/schema"
)

// SetNumber sends a new value for a number entity. The value is in display
// units; it is checked against the entity's current bounds before anything
// is read or transmitted.
func (r *Registry) SetNumber(ctx context.Context, uniqueID string, value float64) error {
	e, err := r.commandable(uniqueID, schema.KindNumber)
	if err != nil {
		return err
	}

	lo, hi := e.bounds()
	if value < lo || value > hi {
		r.metrics.OutboundWrite("rejected")
		return fmt.Errorf("%w: %v not in [%v, %v] for %s", ErrOutOfRange, value, lo, hi, uniqueID)
	}

	return r.publish(ctx, e, func(cur []byte) ([]byte, error) {
		return encodeNumber(e.cfg, cur, value)
	})
}

// SelectOption sends the ordinal of label for a select entity.
func (r *Registry) SelectOption(ctx context.Context, uniqueID, label string) error {
	e, err := r.commandable(uniqueID, schema.KindSelect)
	if err != nil {
		return err
	}

	ordinal, ok := e.cfg.Ordinal(label)
	if !ok || !e.optionAllowed(label) {
		r.metrics.OutboundWrite("rejected")
		return fmt.Errorf("%w: %q for %s", ErrOptionNotAllowed, label, uniqueID)
	}

	return r.publish(ctx, e, func(cur []byte) ([]byte, error) {
		return erd.InjectUint(cur, e.cfg.Span, uint64(ordinal))
	})
}

// SetSwitch turns a switch entity on or off.
func (r *Registry) SetSwitch(ctx context.Context, uniqueID string, on bool) error {
	e, err := r.commandable(uniqueID, schema.KindSwitch)
	if err != nil {
		return err
	}

	var v uint64
	if on {
		v = 1
	}
	return r.publish(ctx, e, func(cur []byte) ([]byte, error) {
		return erd.InjectUint(cur, e.cfg.Span, v)
	})
}

// SetText sends text for a text entity. Raw fields take hex text of exactly
// the field's size.
func (r *Registry) SetText(ctx context.Context, uniqueID, text string) error {
	e, err := r.commandable(uniqueID, schema.KindText)
	if err != nil {
		return err
	}

	var field []byte
	switch e.cfg.Decoding {
	case schema.DecodeHex:
		field, err = erd.DecodeHex(text)
		if err == nil && len(field) != e.cfg.Span.Size {
			err = fmt.Errorf("%d bytes for a %d-byte field", len(field), e.cfg.Span.Size)
		}
	default:
		field, err = erd.EncodeString(text, e.cfg.Span.Size)
	}
	if err != nil {
		r.metrics.OutboundWrite("rejected")
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	return r.publish(ctx, e, func(cur []byte) ([]byte, error) {
		return erd.InjectBytes(cur, e.cfg.Span, field)
	})
}

// SetTime sets a time entity from "HH:MM" or "HH:MM:SS".
func (r *Registry) SetTime(ctx context.Context, uniqueID, clock string) error {
	e, err := r.commandable(uniqueID, schema.KindTime)
	if err != nil {
		return err
	}
	return r.publish(ctx, e, func(cur []byte) ([]byte, error) {
		return encodeClock(cur, e.cfg, clock)
	})
}

// Command dispatches a generic value to the setter for the entity's kind:
// float64 for numbers, bool for switches, string for everything else.
func (r *Registry) Command(ctx context.Context, uniqueID string, value any) error {
	e, err := r.entity(uniqueID)
	if err != nil {
		return err
	}

	switch e.cfg.Kind {
	case schema.KindNumber:
		if v, ok := value.(float64); ok {
			return r.SetNumber(ctx, uniqueID, v)
		}
	case schema.KindSwitch:
		switch v := value.(type) {
		case bool:
			return r.SetSwitch(ctx, uniqueID, v)
		case string:
			switch strings.ToLower(v) {
			case "on":
				return r.SetSwitch(ctx, uniqueID, true)
			case "off":
				return r.SetSwitch(ctx, uniqueID, false)
			}
		}
	case schema.KindSelect:
		if v, ok := value.(string); ok {
			return r.SelectOption(ctx, uniqueID, v)
		}
	case schema.KindText:
		if v, ok := value.(string); ok {
			return r.SetText(ctx, uniqueID, v)
		}
	case schema.KindTime:
		if v, ok := value.(string); ok {
			return r.SetTime(ctx, uniqueID, v)
		}
	default:
		return fmt.Errorf("%w: %s entities take no commands", ErrReadOnly, e.cfg.Kind)
	}
	return fmt.Errorf("%w: %T for a %s entity", ErrInvalidValue, value, e.cfg.Kind)
}

// commandable returns the entity when it has kind, is writable and enabled.
func (r *Registry) commandable(uniqueID string, kind schema.Kind) (*Entity, error) {
	e, err := r.entity(uniqueID)
	if err != nil {
		return nil, err
	}
	if e.cfg.Kind != kind {
		return nil, fmt.Errorf("%w: %s is a %s", ErrWrongKind, uniqueID, e.cfg.Kind)
	}
	if !e.cfg.Writable {
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, uniqueID)
	}
	if !e.isEnabled() {
		return nil, fmt.Errorf("%w: %s", ErrDisabled, uniqueID)
	}
	return e, nil
}

// publish reads the current value of the entity's ERD, applies encode and
// sends the result. For a status/request pair the request ERD is written;
// its current value falls back to the status ERD's when never observed.
func (r *Registry) publish(ctx context.Context, e *Entity, encode func(cur []byte) ([]byte, error)) error {
	device := e.cfg.DeviceName

	cur, err := r.store.Read(device, e.cfg.ERD)
	if err != nil && !errors.Is(err, erd.ErrERDNotFound) {
		return err
	}
	if cur == nil && e.cfg.HasStatus {
		if cur, err = r.store.Read(device, e.cfg.StatusERD); err != nil && !errors.Is(err, erd.ErrERDNotFound) {
			return err
		}
	}
	if cur == nil {
		r.metrics.OutboundWrite("rejected")
		return fmt.Errorf("%w: %s on %s", ErrNoValue, e.cfg.ERD, device)
	}

	next, err := encode(cur)
	if err != nil {
		r.metrics.OutboundWrite("rejected")
		if errors.Is(err, ErrInvalidValue) || errors.Is(err, ErrOutOfRange) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	if err := r.store.PublishOutbound(ctx, device, e.cfg.ERD, next); err != nil {
		r.metrics.OutboundWrite("failed")
		return err
	}
	r.metrics.OutboundWrite("ok")
	r.logger.Debug("entity command sent", "unique_id", e.cfg.UniqueID, "erd", e.cfg.ERD.String())
	return nil
}
