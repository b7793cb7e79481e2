package entity

import (
	"fmt"

	"github.com/nerrad567/geappliances-bridge/internal/schema"
)

// SetMin sets the lower bound of a number entity.
func (r *Registry) SetMin(uniqueID string, min float64) error {
	e, err := r.ofKind(uniqueID, schema.KindNumber)
	if err != nil {
		return err
	}
	e.setMin(min)
	return nil
}

// SetMax sets the upper bound of a number entity.
func (r *Registry) SetMax(uniqueID string, max float64) error {
	e, err := r.ofKind(uniqueID, schema.KindNumber)
	if err != nil {
		return err
	}
	e.setMax(max)
	return nil
}

// SetUnit sets the unit of a number or sensor entity.
func (r *Registry) SetUnit(uniqueID, unit string) error {
	e, err := r.ofKind(uniqueID, schema.KindNumber, schema.KindSensor)
	if err != nil {
		return err
	}
	e.setUnit(unit)
	return nil
}

// SetEnabled enables or disables one entity. A disabled entity reports an
// unknown state and rejects commands but keeps tracking its ERD, so
// re-enabling shows the latest value. Store membership is left alone.
func (r *Registry) SetEnabled(uniqueID string, enabled bool) error {
	e, err := r.entity(uniqueID)
	if err != nil {
		return err
	}
	if !e.setEnabled(enabled) {
		return nil
	}
	r.logger.Info("entity enablement changed", "unique_id", uniqueID, "enabled", enabled)
	return nil
}

// SetAllowable allows or disallows one option of a select entity.
func (r *Registry) SetAllowable(uniqueID, option string, enabled bool) error {
	e, err := r.ofKind(uniqueID, schema.KindSelect)
	if err != nil {
		return err
	}
	return e.setAllowable(option, enabled)
}

func (r *Registry) ofKind(uniqueID string, kinds ...schema.Kind) (*Entity, error) {
	e, err := r.entity(uniqueID)
	if err != nil {
		return nil, err
	}
	for _, k := range kinds {
		if e.cfg.Kind == k {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s is a %s", ErrWrongKind, uniqueID, e.cfg.Kind)
}
