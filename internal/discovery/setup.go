package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/geappliances-bridge/internal/erd"
	"github.com/nerrad567/geappliances-bridge/internal/schema"
)

// SetUpERDs promotes each id into the device's supported set and builds the
// entities of every id that has none yet. The caller holds the device lock.
//
// An id whose entities exist is not resolved again; if it holds a value
// from before a demotion that value is re-announced to its subscribers. Every
// new entity gets the meta transforms that target it, and a promoted meta
// ERD that already holds a value has its transforms applied.
//
// Failures for one id do not stop the others; they are joined and returned.
func (e *Engine) SetUpERDs(ctx context.Context, ids []erd.ID, deviceName string) error {
	var errs []error
	promoted := 0

	for _, id := range ids {
		wasSupported := e.store.IsSupported(deviceName, id)
		if err := e.store.AddSupported(deviceName, id, nil); err != nil {
			errs = append(errs, fmt.Errorf("promoting %s: %w", id, err))
			continue
		}
		if !wasSupported {
			promoted++
		}

		if e.isBuilt(deviceName, id) || e.store.HasSubscribers(deviceName, id) {
			if !wasSupported {
				e.reannounce(deviceName, id)
			}
			continue
		}

		if err := e.registerEntities(ctx, id, deviceName); err != nil {
			errs = append(errs, err)
		} else {
			e.markBuilt(deviceName, id)
		}
		e.applyMeta(deviceName, id)
	}

	e.metrics.Promoted(promoted)
	err := errors.Join(errs...)
	if err != nil {
		e.logger.Error("setting up ERDs", "device", deviceName, "error", err)
	}
	return err
}

func (e *Engine) registerEntities(ctx context.Context, id erd.ID, deviceName string) error {
	var (
		cfgs []schema.Config
		err  error
	)
	if e.resolver.IsSpecial(id) {
		cfgs, err = e.resolver.SpecialConfigs(id, deviceName)
	} else {
		cfgs, err = e.resolver.EntityConfigs(id, deviceName)
	}
	if err != nil {
		return fmt.Errorf("resolving %s: %w", id, err)
	}

	var errs []error
	for _, cfg := range cfgs {
		if err := e.registry.AddEntity(ctx, cfg, deviceName); err != nil {
			errs = append(errs, fmt.Errorf("adding entity %s: %w", cfg.UniqueID, err))
			continue
		}
		if e.meta == nil {
			continue
		}
		if err := e.meta.ApplyTransformsToEntity(deviceName, cfg.UniqueID); err != nil {
			e.logger.Warn("applying transforms to entity",
				"device", deviceName, "unique_id", cfg.UniqueID, "error", err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) isBuilt(deviceName string, id erd.ID) bool {
	return e.built[deviceName][id]
}

func (e *Engine) markBuilt(deviceName string, id erd.ID) {
	ids, ok := e.built[deviceName]
	if !ok {
		ids = make(map[erd.ID]bool)
		e.built[deviceName] = ids
	}
	ids[id] = true
}

// reannounce republishes a preserved value after a promotion.
func (e *Engine) reannounce(deviceName string, id erd.ID) {
	value, err := e.store.Read(deviceName, id)
	if err != nil || value == nil {
		return
	}
	if err := e.store.Write(deviceName, id, value); err != nil {
		e.logger.Warn("re-announcing ERD failed", "device", deviceName, "erd", id.String(), "error", err)
	}
}

func (e *Engine) applyMeta(deviceName string, id erd.ID) {
	if e.meta == nil || !e.meta.IsMetaERD(id) {
		return
	}
	value, err := e.store.Read(deviceName, id)
	if err != nil || value == nil {
		return
	}
	if err := e.meta.ApplyTransformsForMetaERD(deviceName, id); err != nil {
		e.logger.Warn("applying meta ERD", "device", deviceName, "erd", id.String(), "error", err)
	}
}
