package metaerd

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/geappliances-bridge/internal/appliance"
	"github.com/nerrad567/geappliances-bridge/internal/appliance/appliancetest"
	"github.com/nerrad567/geappliances-bridge/internal/erd"
)

// fakeTarget records the last derived attribute set per entity.
type fakeTarget struct {
	mu        sync.Mutex
	min       map[string]float64
	max       map[string]float64
	unit      map[string]string
	enabled   map[string]bool
	allowable map[string]bool
	calls     int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		min:       make(map[string]float64),
		max:       make(map[string]float64),
		unit:      make(map[string]string),
		enabled:   make(map[string]bool),
		allowable: make(map[string]bool),
	}
}

func (f *fakeTarget) SetMin(id string, v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.min[id] = v
	return nil
}

func (f *fakeTarget) SetMax(id string, v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.max[id] = v
	return nil
}

func (f *fakeTarget) SetUnit(id, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.unit[id] = unit
	return nil
}

func (f *fakeTarget) SetEnabled(id string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.enabled[id] = enabled
	return nil
}

func (f *fakeTarget) SetAllowable(id, option string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.allowable[id+"."+option] = enabled
	return nil
}

const device = "fridge"

func commonAnnouncement(version, mask uint32) []byte {
	return append(erd.EncodeUint(uint64(version), 4), erd.EncodeUint(uint64(mask), 4)...)
}

func newTestCoordinator(t *testing.T, mask uint32) (*Coordinator, *erd.Store, *fakeTarget) {
	t.Helper()

	store := erd.NewStore(nil)
	store.AddDevice(device, "dev-1")
	require.NoError(t, store.AddUnsupported(device, erd.CommonAPI, commonAnnouncement(1, mask)))

	target := newFakeTarget()
	c, err := NewCoordinator(
		appliancetest.Meta(t, appliancetest.MetaTable),
		appliancetest.Definitions(t, appliancetest.MetaDefinitions),
		appliancetest.Manifest(t, appliancetest.MetaAPI),
		store,
		target,
	)
	require.NoError(t, err)
	return c, store, target
}

// ─── Construction ───────────────────────────────────────────────────

func TestParseTransformKind(t *testing.T) {
	tests := map[string]TransformKind{
		"set_min":           SetMin,
		"set_max":           SetMax,
		"set_unit":          SetUnit,
		"enable_or_disable": EnableDisable,
		"set_allowables":    SetAllowable,
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseTransformKind(name)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, name, got.String())
		})
	}

	_, err := ParseTransformKind("set_colour")
	assert.ErrorIs(t, err, ErrUnknownTransform)
}

func TestNewCoordinator_UnknownFunc(t *testing.T) {
	table := &appliance.MetaTable{Rows: []appliance.MetaRow{{
		FeatureType: "common", Version: "1", MetaERD: 0x0004,
		SourceField: "Temp Min", Targets: []string{"{}_0001_Test_Number"}, Func: "set_colour",
	}}}
	_, err := NewCoordinator(table, nil, nil, erd.NewStore(nil), newFakeTarget())
	assert.ErrorIs(t, err, ErrUnknownTransform)
}

func TestIsMetaERD(t *testing.T) {
	c, _, _ := newTestCoordinator(t, 0x1)

	for _, id := range []erd.ID{0x0004, 0x0005, 0x0006, 0x0008, 0x0009} {
		assert.True(t, c.IsMetaERD(id), id.String())
	}
	for _, id := range []erd.ID{0x0001, 0x0003, 0x0007, 0x000a} {
		assert.False(t, c.IsMetaERD(id), id.String())
	}
}

func TestReverseIndexStripsOption(t *testing.T) {
	c, _, _ := newTestCoordinator(t, 0x1)

	assert.ElementsMatch(t, []erd.ID{0x0004, 0x0005, 0x0006, 0x0008}, c.MetaERDsFor("{}_0001_Test_Number"))
	assert.ElementsMatch(t, []erd.ID{0x0008, 0x0009}, c.MetaERDsFor("{}_0003_Test_Select"))
	assert.Equal(t, []erd.ID{0x0004}, c.MetaERDsFor("{}_000a_Test_Reverse"))
	assert.Empty(t, c.MetaERDsFor("{}_0002_Nothing"))
}

// ─── Transforms ─────────────────────────────────────────────────────

func TestApply_SetMin(t *testing.T) {
	c, store, target := newTestCoordinator(t, 0x1)
	require.NoError(t, store.AddSupported(device, 0x0004, []byte{0xF0}))

	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0004))

	assert.Equal(t, 240.0, target.min["fridge_0001_Test_Number"])
	assert.Equal(t, 240.0, target.min["fridge_000a_Test_Reverse"])
}

func TestApply_SetMax(t *testing.T) {
	c, store, target := newTestCoordinator(t, 0x1)
	require.NoError(t, store.AddSupported(device, 0x0005, []byte{0x64}))

	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0005))
	assert.Equal(t, 100.0, target.max["fridge_0001_Test_Number"])
}

func TestApply_SetUnit(t *testing.T) {
	c, store, target := newTestCoordinator(t, 0x1)
	require.NoError(t, store.AddSupported(device, 0x0006, []byte{0x01}))

	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0006))
	assert.Equal(t, "psi", target.unit["fridge_0001_Test_Number"])

	require.NoError(t, store.Write(device, 0x0006, []byte{0x00}))
	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0006))
	assert.Equal(t, "Pa", target.unit["fridge_0001_Test_Number"])
}

func TestApply_SetUnitUnknownOrdinal(t *testing.T) {
	c, store, target := newTestCoordinator(t, 0x1)
	require.NoError(t, store.AddSupported(device, 0x0006, []byte{0x07}))

	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0006))
	assert.Empty(t, target.unit)
}

func TestApply_EnableDisable(t *testing.T) {
	c, store, target := newTestCoordinator(t, 0x1)
	require.NoError(t, store.AddSupported(device, 0x0008, []byte{0x00}))

	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0008))
	for _, id := range []string{"fridge_0001_Test_Number", "fridge_0002_Test_Sensor", "fridge_0003_Test_Select"} {
		enabled, ok := target.enabled[id]
		require.True(t, ok, id)
		assert.False(t, enabled, id)
	}

	require.NoError(t, store.Write(device, 0x0008, []byte{0x01}))
	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0008))
	assert.True(t, target.enabled["fridge_0001_Test_Number"])
}

func TestApply_Allowables(t *testing.T) {
	c, store, target := newTestCoordinator(t, 0x1)
	require.NoError(t, store.AddSupported(device, 0x0009, []byte{0x80}))

	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0009))
	assert.Equal(t, map[string]bool{
		"fridge_0003_Test_Select.Zero": true,
		"fridge_0003_Test_Select.One":  false,
		"fridge_0003_Test_Select.Max":  false,
	}, target.allowable)
}

func TestApply_Idempotent(t *testing.T) {
	c, store, target := newTestCoordinator(t, 0x1)
	require.NoError(t, store.AddSupported(device, 0x0004, []byte{0x10}))
	require.NoError(t, store.AddSupported(device, 0x0009, []byte{0xA0}))

	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0004))
	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0009))
	firstMin := fmt.Sprint(target.min)
	firstAllow := fmt.Sprint(target.allowable)

	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0004))
	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0009))
	assert.Equal(t, firstMin, fmt.Sprint(target.min))
	assert.Equal(t, firstAllow, fmt.Sprint(target.allowable))
}

// ─── Deferral ───────────────────────────────────────────────────────

func TestApply_MetaERDNotYetObserved(t *testing.T) {
	c, _, target := newTestCoordinator(t, 0x1)

	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0004))
	assert.Zero(t, target.calls)
}

func TestApply_MetaERDWithoutValue(t *testing.T) {
	c, store, target := newTestCoordinator(t, 0x1)
	require.NoError(t, store.AddUnsupported(device, 0x0004, nil))

	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0004))
	assert.Zero(t, target.calls)
}

func TestApply_NotDeclaredByActiveMask(t *testing.T) {
	c, store, target := newTestCoordinator(t, 0x2)
	require.NoError(t, store.AddSupported(device, 0x0004, []byte{0xF0}))

	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0004))
	assert.Zero(t, target.calls)
}

func TestApply_NoAnnouncement(t *testing.T) {
	store := erd.NewStore(nil)
	store.AddDevice(device, "dev-1")
	require.NoError(t, store.AddSupported(device, 0x0004, []byte{0xF0}))

	target := newFakeTarget()
	c, err := NewCoordinator(
		appliancetest.Meta(t, appliancetest.MetaTable),
		appliancetest.Definitions(t, appliancetest.MetaDefinitions),
		appliancetest.Manifest(t, appliancetest.MetaAPI),
		store, target,
	)
	require.NoError(t, err)

	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0004))
	assert.Zero(t, target.calls)
}

func TestApply_UnknownDevice(t *testing.T) {
	c, _, _ := newTestCoordinator(t, 0x1)
	assert.ErrorIs(t, c.ApplyTransformsForMetaERD("oven", 0x0004), erd.ErrDeviceNotFound)
}

// ─── Per-entity application ─────────────────────────────────────────

func TestApplyTransformsToEntity(t *testing.T) {
	c, store, target := newTestCoordinator(t, 0x1)
	require.NoError(t, store.AddSupported(device, 0x0004, []byte{0x05}))
	require.NoError(t, store.AddSupported(device, 0x0008, []byte{0x01}))
	require.NoError(t, store.AddSupported(device, 0x0009, []byte{0x40}))

	require.NoError(t, c.ApplyTransformsToEntity(device, "fridge_0003_Test_Select"))

	assert.True(t, target.enabled["fridge_0003_Test_Select"])
	assert.True(t, target.allowable["fridge_0003_Test_Select.One"])
	assert.False(t, target.allowable["fridge_0003_Test_Select.Zero"])
	assert.Empty(t, target.min, "0x0004 does not affect the select")
}

func TestApplyTransformsToEntity_Unrelated(t *testing.T) {
	c, _, target := newTestCoordinator(t, 0x1)

	require.NoError(t, c.ApplyTransformsToEntity(device, "fridge_0002_Unrelated"))
	require.NoError(t, c.ApplyTransformsToEntity(device, "oven_0001_Test_Number"))
	assert.Zero(t, target.calls)
}

// ─── Feature APIs ───────────────────────────────────────────────────

// featureAPI declares meta ERD 0x0201 only under feature type 3, so the
// common announcement never matches it.
const featureAPI = `{
    "common": { "versions": { "1": {
        "required": [ { "erd": "0x0001", "name": "Test Number", "length": 1 } ],
        "features": []
    } } },
    "featureApis": { "3": { "versions": { "1": {
        "required": [ { "erd": "0x0200", "name": "N", "length": 1 } ],
        "features": [
            { "mask": "0x00000001", "name": "Limits", "required": [
                { "erd": "0x0201", "name": "Limit", "length": 1 },
                { "erd": "0x0202", "name": "Modes Allowed", "length": 1 }
            ] }
        ]
    } } } }
}`

const featureDefinitions = `{
    "erds": [
        { "id": "0x0001", "name": "Test Number", "operations": ["read", "write"],
          "data": [ { "name": "Test Number", "type": "u8", "offset": 0, "size": 1 } ] },
        { "id": "0x0200", "name": "N", "operations": ["read", "write"],
          "data": [ { "name": "N", "type": "u8", "offset": 0, "size": 1 } ] },
        { "id": "0x0201", "name": "Limit", "operations": ["read"],
          "data": [ { "name": "Limit", "type": "u8", "offset": 0, "size": 1 } ] },
        { "id": "0x0202", "name": "Modes Allowed", "operations": ["read"],
          "data": [ { "name": "Eco", "type": "u8", "offset": 0, "size": 1, "bits": { "offset": 0, "size": 1 } } ] }
    ]
}`

const featureTable = `{
    "3": {
        "1": {
            "0x0201": { "Limit": { "fields": ["{}_0200_N", "{}_0200_Set.Point"], "func": "set_min" } },
            "0x0202": { "Eco": { "fields": ["{}_0203_Mode.Name.Eco"], "func": "set_allowables" } }
        }
    }
}`

func featureAnnouncement(featureType, version uint16, mask uint32) []byte {
	b := append(erd.EncodeUint(uint64(featureType), 2), erd.EncodeUint(uint64(version), 2)...)
	return append(b, erd.EncodeUint(uint64(mask), 4)...)
}

func newFeatureCoordinator(t *testing.T, api erd.ID) (*Coordinator, *erd.Store, *fakeTarget) {
	t.Helper()

	store := erd.NewStore(nil)
	store.AddDevice(device, "dev-1")
	require.NoError(t, store.AddUnsupported(device, erd.CommonAPI, commonAnnouncement(1, 0)))
	require.NoError(t, store.AddUnsupported(device, api, featureAnnouncement(3, 1, 0x1)))

	target := newFakeTarget()
	c, err := NewCoordinator(
		appliancetest.Meta(t, featureTable),
		appliancetest.Definitions(t, featureDefinitions),
		appliancetest.Manifest(t, featureAPI),
		store,
		target,
	)
	require.NoError(t, err)
	return c, store, target
}

func TestApply_FeatureAPIRanges(t *testing.T) {
	for _, api := range []erd.ID{erd.FeatureAPILowStart, 0x0095, erd.FeatureAPIHighEnd, 0x0109} {
		t.Run(api.String(), func(t *testing.T) {
			c, store, target := newFeatureCoordinator(t, api)
			require.NoError(t, store.AddSupported(device, 0x0201, []byte{0xF0}))

			require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0201))
			assert.Equal(t, 240.0, target.min["fridge_0200_N"])
		})
	}
}

func TestApply_FeatureAPIMaskNotSet(t *testing.T) {
	store := erd.NewStore(nil)
	store.AddDevice(device, "dev-1")
	require.NoError(t, store.AddUnsupported(device, 0x0109, featureAnnouncement(3, 1, 0)))
	require.NoError(t, store.AddSupported(device, 0x0201, []byte{0xF0}))

	target := newFakeTarget()
	c, err := NewCoordinator(
		appliancetest.Meta(t, featureTable),
		appliancetest.Definitions(t, featureDefinitions),
		appliancetest.Manifest(t, featureAPI),
		store, target,
	)
	require.NoError(t, err)

	require.NoError(t, c.ApplyTransformsForMetaERD(device, 0x0201))
	assert.Zero(t, target.calls)
}

// ─── Dotted field names ─────────────────────────────────────────────

func TestDottedFieldNames(t *testing.T) {
	c, store, target := newFeatureCoordinator(t, 0x0093)

	assert.Equal(t, []erd.ID{0x0201}, c.MetaERDsFor("{}_0200_Set.Point"))
	assert.Equal(t, []erd.ID{0x0202}, c.MetaERDsFor("{}_0203_Mode.Name"))
	assert.Empty(t, c.MetaERDsFor("{}_0200_Set"))
	assert.Empty(t, c.MetaERDsFor("{}_0203_Mode"))

	require.NoError(t, store.AddSupported(device, 0x0201, []byte{0x10}))
	require.NoError(t, store.AddSupported(device, 0x0202, []byte{0x80}))

	require.NoError(t, c.ApplyTransformsToEntity(device, "fridge_0200_Set.Point"))
	assert.Equal(t, 16.0, target.min["fridge_0200_Set.Point"])

	require.NoError(t, c.ApplyTransformsToEntity(device, "fridge_0203_Mode.Name"))
	assert.Equal(t, map[string]bool{"fridge_0203_Mode.Name.Eco": true}, target.allowable)
}

func TestSplitOption(t *testing.T) {
	tests := []struct {
		target   string
		uniqueID string
		option   string
		ok       bool
	}{
		{"fridge_0003_Test_Select.Zero", "fridge_0003_Test_Select", "Zero", true},
		{"fridge_0203_Mode.Name.Eco", "fridge_0203_Mode.Name", "Eco", true},
		{"fridge_0003_Test_Select", "fridge_0003_Test_Select", "", false},
		{"fridge_0003_Test_Select.", "fridge_0003_Test_Select.", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			uniqueID, option, ok := splitOption(tt.target)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.uniqueID, uniqueID)
			assert.Equal(t, tt.option, option)
		})
	}
}
