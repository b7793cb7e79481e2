package entity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/geappliances-bridge/internal/appliance/appliancetest"
	"github.com/nerrad567/geappliances-bridge/internal/erd"
	"github.com/nerrad567/geappliances-bridge/internal/schema"
)

type publishCall struct {
	device string
	id     erd.ID
	value  []byte
}

type mockTransport struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (m *mockTransport) PublishERD(_ context.Context, device string, id erd.ID, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, publishCall{device: device, id: id, value: append([]byte(nil), value...)})
	return nil
}

func (m *mockTransport) Calls() []publishCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishCall(nil), m.calls...)
}

type recordingSink struct {
	mu     sync.Mutex
	values map[string]any
}

func (s *recordingSink) WriteEntityState(_, uniqueID, _ string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[uniqueID] = value
}

const dev = "fridge"

type fixture struct {
	store     *erd.Store
	transport *mockTransport
	resolver  *schema.Resolver
	registry  *Registry
}

// newFixture registers the plain entities of the meta test documents:
// 0x0001 number, 0x0002 sensor and 0x0003 select, all reading 0x00.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	transport := &mockTransport{}
	store := erd.NewStore(transport)
	store.AddDevice(dev, "dev-1")

	f := &fixture{
		store:     store,
		transport: transport,
		resolver:  schema.NewResolver(appliancetest.Definitions(t, appliancetest.MetaDefinitions), store),
		registry:  NewRegistry(store, nil),
	}
	for _, id := range []erd.ID{0x0001, 0x0002, 0x0003} {
		require.NoError(t, store.AddSupported(dev, id, []byte{0x00}))
		f.add(t, id)
	}
	return f
}

func (f *fixture) add(t *testing.T, id erd.ID) {
	t.Helper()
	cfgs, err := f.resolver.EntityConfigs(id, dev)
	require.NoError(t, err)
	for _, cfg := range cfgs {
		require.NoError(t, f.registry.AddEntity(context.Background(), cfg, dev))
	}
}

func (f *fixture) value(t *testing.T, uniqueID string) any {
	t.Helper()
	s, err := f.registry.Get(uniqueID)
	require.NoError(t, err)
	return s.Value
}

const (
	numberID = "fridge_0001_Test_Number"
	sensorID = "fridge_0002_Test_Sensor"
	selectID = "fridge_0003_Test_Select"
)

// ─── Registration ───────────────────────────────────────────────────

func TestAddEntity_TracksStoreValue(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, 0.0, f.value(t, numberID))
	assert.Equal(t, "Zero", f.value(t, selectID))

	require.NoError(t, f.store.Write(dev, 0x0001, []byte{0x2A}))
	require.NoError(t, f.store.Write(dev, 0x0003, []byte{0xFF}))

	assert.Equal(t, 42.0, f.value(t, numberID))
	assert.Equal(t, "Max", f.value(t, selectID))
}

func TestAddEntity_Duplicate(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, 3, f.registry.Len())

	f.add(t, 0x0001)
	assert.Equal(t, 3, f.registry.Len())
	assert.Equal(t, 1, subscriberCount(t, f.store, 0x0001))
}

func TestAddEntity_UnknownERDIsRecordedUnsupported(t *testing.T) {
	f := newFixture(t)
	f.add(t, 0x000a)

	_, err := f.store.Read(dev, 0x000a)
	require.NoError(t, err)
	assert.False(t, f.store.IsSupported(dev, 0x000a))
	assert.Nil(t, f.value(t, "fridge_000a_Test_Reverse"))
}

func TestAddEntity_UnknownDevice(t *testing.T) {
	f := newFixture(t)
	cfg := schema.Config{UniqueID: "oven_0001_X", ERD: 0x0001, Kind: schema.KindSensor}

	err := f.registry.AddEntity(context.Background(), cfg, "oven")
	assert.ErrorIs(t, err, erd.ErrDeviceNotFound)
	assert.Equal(t, 3, f.registry.Len())
}

func TestRemoveEntity(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.registry.RemoveEntity(numberID))
	assert.Equal(t, 0, subscriberCount(t, f.store, 0x0001))
	assert.ErrorIs(t, f.registry.RemoveEntity(numberID), ErrEntityNotFound)
}

func TestList(t *testing.T) {
	f := newFixture(t)

	list := f.registry.List(dev)
	require.Len(t, list, 3)
	assert.Equal(t, numberID, list[0].UniqueID)
	assert.Equal(t, selectID, list[2].UniqueID)

	assert.Empty(t, f.registry.List("oven"))
	assert.Len(t, f.registry.List(""), 3)
}

func TestStateSink(t *testing.T) {
	f := newFixture(t)
	sink := &recordingSink{}
	f.registry.SetStateSink(sink)

	require.NoError(t, f.store.Write(dev, 0x0001, []byte{0x07}))
	assert.Equal(t, 7.0, sink.values[numberID])
}

func subscriberCount(t *testing.T, store *erd.Store, id erd.ID) int {
	t.Helper()
	snap, err := store.Snapshot(dev)
	require.NoError(t, err)
	for _, e := range snap.ERDs {
		if e.ID == id {
			return e.Subscribers
		}
	}
	return 0
}

// ─── Commands ───────────────────────────────────────────────────────

func TestSetNumber(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.registry.SetNumber(context.Background(), numberID, 42))

	calls := f.transport.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, publishCall{device: dev, id: 0x0001, value: []byte{0x2A}}, calls[0])
	assert.Equal(t, 42.0, f.value(t, numberID))
}

func TestSetNumber_BelowDerivedMinimum(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.SetMin(numberID, 240))

	err := f.registry.SetNumber(context.Background(), numberID, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Empty(t, f.transport.Calls())
	assert.Equal(t, 0.0, f.value(t, numberID))
}

func TestSetNumber_AboveDerivedMaximum(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.SetMax(numberID, 8))

	assert.ErrorIs(t, f.registry.SetNumber(context.Background(), numberID, 10), ErrOutOfRange)
	assert.Empty(t, f.transport.Calls())
}

func TestSetNumber_RangeCheckedBeforeValue(t *testing.T) {
	f := newFixture(t)
	f.add(t, 0x000a)
	require.NoError(t, f.registry.SetMin("fridge_000a_Test_Reverse", 240))

	err := f.registry.SetNumber(context.Background(), "fridge_000a_Test_Reverse", 1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	err = f.registry.SetNumber(context.Background(), "fridge_000a_Test_Reverse", 250)
	assert.ErrorIs(t, err, ErrNoValue)
	assert.Empty(t, f.transport.Calls())
}

func TestSetNumber_TransmitFailure(t *testing.T) {
	f := newFixture(t)
	f.transport.err = errors.New("broker down")

	err := f.registry.SetNumber(context.Background(), numberID, 5)
	assert.ErrorIs(t, err, erd.ErrTransmitFailed)
	assert.Equal(t, 0.0, f.value(t, numberID))
}

func TestSetNumber_WrongKindAndReadOnly(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.registry.SetNumber(context.Background(), sensorID, 1), ErrWrongKind)
	assert.ErrorIs(t, f.registry.SetNumber(context.Background(), "nope", 1), ErrEntityNotFound)
}

func TestSelectOption(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.registry.SelectOption(context.Background(), selectID, "Max"))
	calls := f.transport.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []byte{0xFF}, calls[0].value)

	assert.ErrorIs(t, f.registry.SelectOption(context.Background(), selectID, "Two"), ErrOptionNotAllowed)
}

func TestSelectOption_Disallowed(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.SetAllowable(selectID, "One", false))

	assert.ErrorIs(t, f.registry.SelectOption(context.Background(), selectID, "One"), ErrOptionNotAllowed)
	assert.Empty(t, f.transport.Calls())
	assert.Equal(t, "Zero", f.value(t, selectID))

	s, err := f.registry.Get(selectID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zero", "Max"}, s.Options)

	require.NoError(t, f.registry.SetAllowable(selectID, "One", true))
	assert.NoError(t, f.registry.SelectOption(context.Background(), selectID, "One"))
}

func TestCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.registry.Command(ctx, numberID, 3.0))
	require.NoError(t, f.registry.Command(ctx, selectID, "One"))
	assert.ErrorIs(t, f.registry.Command(ctx, numberID, "three"), ErrInvalidValue)
	assert.ErrorIs(t, f.registry.Command(ctx, sensorID, 1.0), ErrReadOnly)
	assert.ErrorIs(t, f.registry.Command(ctx, "nope", 1.0), ErrEntityNotFound)
	assert.Len(t, f.transport.Calls(), 2)
}

func TestSetSwitch(t *testing.T) {
	transport := &mockTransport{}
	store := erd.NewStore(transport)
	store.AddDevice(dev, "dev-1")
	require.NoError(t, store.AddSupported(dev, 0x0009, []byte{0x00}))

	resolver := schema.NewResolver(appliancetest.Definitions(t, appliancetest.DiscoveryDefinitions), store)
	cfgs, err := resolver.EntityConfigs(0x0009, dev)
	require.NoError(t, err)

	reg := NewRegistry(store, nil)
	require.NoError(t, reg.AddEntity(context.Background(), cfgs[0], dev))

	require.NoError(t, reg.Command(context.Background(), "fridge_0009_Light", "on"))
	require.NoError(t, reg.SetSwitch(context.Background(), "fridge_0009_Light", false))

	calls := transport.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []byte{0x01}, calls[0].value)
	assert.Equal(t, []byte{0x00}, calls[1].value)
}

func TestSetText(t *testing.T) {
	transport := &mockTransport{}
	store := erd.NewStore(transport)
	store.AddDevice(dev, "dev-1")
	require.NoError(t, store.AddSupported(dev, 0x0008, []byte{0, 0, 0, 0}))

	resolver := schema.NewResolver(appliancetest.Definitions(t, appliancetest.DiscoveryDefinitions), store)
	cfgs, err := resolver.EntityConfigs(0x0008, dev)
	require.NoError(t, err)

	reg := NewRegistry(store, nil)
	require.NoError(t, reg.AddEntity(context.Background(), cfgs[0], dev))

	require.NoError(t, reg.SetText(context.Background(), "fridge_0008_Serial", "de ad be ef"))
	assert.Equal(t, "deadbeef", func() any { s, _ := reg.Get("fridge_0008_Serial"); return s.Value }())

	assert.ErrorIs(t, reg.SetText(context.Background(), "fridge_0008_Serial", "dead"), ErrInvalidValue)
	assert.ErrorIs(t, reg.SetText(context.Background(), "fridge_0008_Serial", "zz"), ErrInvalidValue)
	assert.Len(t, transport.Calls(), 1)
}

func TestSetTime(t *testing.T) {
	transport := &mockTransport{}
	store := erd.NewStore(transport)
	store.AddDevice(dev, "dev-1")
	require.NoError(t, store.AddSupported(dev, schema.ClockTimeERD, []byte{8, 30, 0}))

	cfg := schema.ClockTime(dev, "dev-1", nil)[0]
	cfg.Writable = true

	reg := NewRegistry(store, nil)
	require.NoError(t, reg.AddEntity(context.Background(), cfg, dev))

	s, err := reg.Get("fridge_0005_Clock_Time")
	require.NoError(t, err)
	assert.Equal(t, "08:30:00", s.Value)

	require.NoError(t, reg.SetTime(context.Background(), "fridge_0005_Clock_Time", "17:45"))
	assert.Equal(t, []byte{17, 45, 0}, transport.Calls()[0].value)

	assert.ErrorIs(t, reg.SetTime(context.Background(), "fridge_0005_Clock_Time", "25:99"), ErrInvalidValue)
}

// ─── Derived attributes ─────────────────────────────────────────────

func TestSetEnabled_HidesValueAndRejectsCommands(t *testing.T) {
	f := newFixture(t)

	for _, id := range []string{numberID, sensorID, selectID} {
		require.NoError(t, f.registry.SetEnabled(id, false))
	}
	for _, id := range []erd.ID{0x0001, 0x0002, 0x0003} {
		assert.True(t, f.store.IsSupported(dev, id), id.String())
	}
	for _, id := range []string{numberID, sensorID, selectID} {
		assert.Nil(t, f.value(t, id), id)
	}
	assert.ErrorIs(t, f.registry.SetNumber(context.Background(), numberID, 1), ErrDisabled)
	assert.ErrorIs(t, f.registry.SelectOption(context.Background(), selectID, "One"), ErrDisabled)
	assert.Empty(t, f.transport.Calls())

	require.NoError(t, f.store.Write(dev, 0x0001, []byte{0x09}))
	assert.Nil(t, f.value(t, numberID))

	for _, id := range []string{numberID, sensorID, selectID} {
		require.NoError(t, f.registry.SetEnabled(id, true))
	}
	assert.Equal(t, 9.0, f.value(t, numberID))
	assert.Equal(t, 0.0, f.value(t, sensorID))
	assert.Equal(t, "Zero", f.value(t, selectID))
}

func TestSetEnabled_SiblingFieldUnaffected(t *testing.T) {
	transport := &mockTransport{}
	store := erd.NewStore(transport)
	store.AddDevice(dev, "dev-1")
	require.NoError(t, store.AddSupported(dev, 0x0002, []byte{0xFF, 0x07}))

	resolver := schema.NewResolver(appliancetest.Definitions(t, appliancetest.DiscoveryDefinitions), store)
	cfgs, err := resolver.EntityConfigs(0x0002, dev)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)

	reg := NewRegistry(store, nil)
	for _, cfg := range cfgs {
		require.NoError(t, reg.AddEntity(context.Background(), cfg, dev))
	}
	value := func(id string) any {
		s, err := reg.Get(id)
		require.NoError(t, err)
		return s.Value
	}
	const first, second = "fridge_0002_First", "fridge_0002_Second"

	require.NoError(t, reg.SetEnabled(first, false))
	assert.True(t, store.IsSupported(dev, 0x0002))
	assert.Nil(t, value(first))
	assert.Equal(t, 7.0, value(second))

	require.NoError(t, store.Write(dev, 0x0002, []byte{0xFF, 0x09}))
	assert.Equal(t, 9.0, value(second))

	require.NoError(t, reg.SetEnabled(first, true))
	assert.Equal(t, 255.0, value(first))
	assert.Equal(t, 9.0, value(second))
}

func TestSetEnabled_Idempotent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.registry.SetEnabled(numberID, true))
	assert.Equal(t, 0.0, f.value(t, numberID))

	require.NoError(t, f.registry.SetEnabled(numberID, false))
	require.NoError(t, f.registry.SetEnabled(numberID, false))
	assert.Nil(t, f.value(t, numberID))
	assert.True(t, f.store.IsSupported(dev, 0x0001))
	assert.ErrorIs(t, f.registry.SetEnabled("nope", false), ErrEntityNotFound)
}

func TestSetUnit(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.registry.SetUnit(numberID, "psi"))
	s, err := f.registry.Get(numberID)
	require.NoError(t, err)
	assert.Equal(t, "psi", s.Unit)

	assert.ErrorIs(t, f.registry.SetUnit(selectID, "psi"), ErrWrongKind)
}

func TestSetAllowable_UnknownOption(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.registry.SetAllowable(selectID, "Seven", true), ErrOptionNotAllowed)
	assert.ErrorIs(t, f.registry.SetAllowable(numberID, "Zero", true), ErrWrongKind)
}

func TestDerivedBoundsInState(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.SetMin(numberID, 10))
	require.NoError(t, f.registry.SetMax(numberID, 20))

	s, err := f.registry.Get(numberID)
	require.NoError(t, err)
	require.NotNil(t, s.Min)
	require.NotNil(t, s.Max)
	assert.Equal(t, 10.0, *s.Min)
	assert.Equal(t, 20.0, *s.Max)
}

// ─── Devices ────────────────────────────────────────────────────────

func TestCreateDevice_WithoutRepository(t *testing.T) {
	reg := NewRegistry(erd.NewStore(nil), nil)

	a, err := reg.CreateDevice(context.Background(), dev)
	require.NoError(t, err)
	b, err := reg.CreateDevice(context.Background(), dev)
	require.NoError(t, err)

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b, "no persistence means a fresh id per call")
}

func schemaNumber(id erd.ID) schema.Config {
	return schema.Config{
		UniqueID:   schema.UniqueID(dev, id, "Value"),
		DeviceName: dev,
		Name:       "Value: Value",
		Kind:       schema.KindNumber,
		ERD:        id,
		Span:       erd.Span{Size: 1},
		Decoding:   schema.DecodeUnsigned,
		Writable:   true,
		Scale:      1,
		Max:        255,
	}
}
