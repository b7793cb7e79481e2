package metaerd

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nerrad567/geappliances-bridge/internal/appliance"
	"github.com/nerrad567/geappliances-bridge/internal/erd"
	"github.com/nerrad567/geappliances-bridge/internal/infrastructure/metrics"
)

// Logger defines the logging interface used by the Coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Reader reads ERD values from the store.
type Reader interface {
	Read(deviceName string, id erd.ID) ([]byte, error)
}

// devicePlaceholder marks where the device name goes in a target template.
const devicePlaceholder = "{}"

type tableKey struct {
	featureType string
	version     string
	metaERD     erd.ID
}

type row struct {
	sourceField string
	kind        TransformKind
	targets     []string
}

// Coordinator applies meta-ERD transforms. It holds no per-device state;
// everything it needs is read from the store on each call.
type Coordinator struct {
	store    Reader
	manifest *appliance.Manifest
	defs     *appliance.Definitions
	target   Target
	metrics  *metrics.Metrics
	logger   Logger

	table    map[tableKey][]row
	metaERDs map[erd.ID]bool

	// byEntity maps a target template, without the ".<option>" suffix of
	// allowable targets, to the meta ERDs that affect it.
	byEntity map[string][]erd.ID
}

// NewCoordinator builds a Coordinator from a parsed meta-ERD table. Every
// function name in the table must map to a TransformKind.
func NewCoordinator(table *appliance.MetaTable, defs *appliance.Definitions, manifest *appliance.Manifest, store Reader, target Target) (*Coordinator, error) {
	c := &Coordinator{
		store:    store,
		manifest: manifest,
		defs:     defs,
		target:   target,
		logger:   noopLogger{},
		table:    make(map[tableKey][]row),
		metaERDs: make(map[erd.ID]bool),
		byEntity: make(map[string][]erd.ID),
	}

	for _, r := range table.Rows {
		kind, err := ParseTransformKind(r.Func)
		if err != nil {
			return nil, fmt.Errorf("meta ERD %s field %q: %w", r.MetaERD, r.SourceField, err)
		}

		key := tableKey{featureType: r.FeatureType, version: r.Version, metaERD: r.MetaERD}
		c.table[key] = append(c.table[key], row{sourceField: r.SourceField, kind: kind, targets: r.Targets})
		c.metaERDs[r.MetaERD] = true

		for _, tmpl := range r.Targets {
			entity := tmpl
			if kind == SetAllowable {
				entity, _, _ = splitOption(tmpl)
			}
			if !slices.Contains(c.byEntity[entity], r.MetaERD) {
				c.byEntity[entity] = append(c.byEntity[entity], r.MetaERD)
			}
		}
	}
	return c, nil
}

// SetLogger sets the logger for the coordinator.
func (c *Coordinator) SetLogger(logger Logger) {
	c.logger = logger
}

// SetMetrics sets the metrics sink. Nil disables metrics.
func (c *Coordinator) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// IsMetaERD reports whether id is a meta ERD under any feature type and version.
func (c *Coordinator) IsMetaERD(id erd.ID) bool {
	return c.metaERDs[id]
}

// MetaERDsFor returns the meta ERDs that affect the entity template, e.g.
// "{}_0001_Test_Number".
func (c *Coordinator) MetaERDsFor(template string) []erd.ID {
	return slices.Clone(c.byEntity[template])
}

// ApplyTransformsForMetaERD applies every transform of metaERD on device.
//
// The feature type and version come from whichever announcement ERD on the
// device declares metaERD. When none does, or when the meta ERD has no value
// yet, nothing happens. Failing transforms are logged and skipped; a target
// entity that has not been built yet picks the value up once it registers.
// Only an unknown device is returned as an error.
func (c *Coordinator) ApplyTransformsForMetaERD(deviceName string, metaERD erd.ID) error {
	featureType, version, ok, err := c.activeVersion(deviceName, metaERD)
	if err != nil || !ok {
		return err
	}

	rows := c.table[tableKey{featureType: featureType, version: version, metaERD: metaERD}]
	if len(rows) == 0 {
		return nil
	}

	value, err := c.store.Read(deviceName, metaERD)
	if errors.Is(err, erd.ErrERDNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if value == nil {
		return nil
	}

	def, ok := c.defs.Lookup(metaERD)
	if !ok {
		c.logger.Error("could not find ERD definition for meta ERD", "erd", metaERD.String())
		return nil
	}

	for _, r := range rows {
		field, err := def.Field(r.sourceField)
		if err != nil {
			c.logger.Error("meta ERD source field missing", "erd", metaERD.String(), "field", r.sourceField, "error", err)
			continue
		}
		v, err := erd.ExtractUint(value, field.Span())
		if err != nil {
			c.logger.Warn("meta ERD value too short", "erd", metaERD.String(), "field", r.sourceField, "error", err)
			continue
		}

		in := input{value: v, field: field, def: def}
		for _, tmpl := range r.targets {
			target := strings.ReplaceAll(tmpl, devicePlaceholder, deviceName)
			if err := transforms[r.kind](c.target, in, target); err != nil {
				c.logger.Debug("transform not applied",
					"device", deviceName, "erd", metaERD.String(), "kind", r.kind.String(), "target", target, "error", err)
				continue
			}
			c.metrics.TransformApplied(r.kind.String())
		}
	}
	return nil
}

// ApplyTransformsToEntity re-applies every meta ERD that affects the entity
// with uniqueID on device. It is called right after the entity registers.
func (c *Coordinator) ApplyTransformsToEntity(deviceName, uniqueID string) error {
	if !strings.HasPrefix(uniqueID, deviceName) {
		return nil
	}
	template := devicePlaceholder + strings.TrimPrefix(uniqueID, deviceName)

	var errs []error
	for _, id := range c.byEntity[template] {
		if err := c.ApplyTransformsForMetaERD(deviceName, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// activeVersion searches the common announcement, then the feature
// announcements, for the one whose activated ERDs include metaERD.
func (c *Coordinator) activeVersion(deviceName string, metaERD erd.ID) (featureType, version string, found bool, err error) {
	for _, api := range erd.APIERDs() {
		value, err := c.store.Read(deviceName, api)
		if errors.Is(err, erd.ErrERDNotFound) {
			continue
		}
		if err != nil {
			return "", "", false, err
		}
		if value == nil {
			continue
		}

		a, err := appliance.DecodeAnnouncement(api, value)
		if err != nil {
			continue
		}
		v, ok := c.manifest.Resolve(a)
		if !ok {
			continue
		}
		if v.Declares(metaERD, a.Mask) {
			featureType, version = a.Key()
			return featureType, version, true, nil
		}
	}
	return "", "", false, nil
}
