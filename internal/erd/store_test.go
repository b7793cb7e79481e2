package erd

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTransport records outbound writes and can be told to fail.
type mockTransport struct {
	mu   sync.Mutex
	sent []sentWrite
	err  error
}

type sentWrite struct {
	device string
	id     ID
	value  []byte
}

func (m *mockTransport) PublishERD(_ context.Context, device string, id ID, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentWrite{device: device, id: id, value: value})
	return nil
}

func newTestStore(t *testing.T) (*Store, *mockTransport) {
	t.Helper()
	tr := &mockTransport{}
	s := NewStore(tr)
	require.True(t, s.AddDevice("fridge", "dev-1"))
	return s, tr
}

// assertExclusive checks the supported/unsupported sets never share an id.
func assertExclusive(t *testing.T, s *Store, device string) {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.devices[device]
	for id := range d.supported {
		_, dup := d.unsupported[id]
		assert.False(t, dup, "%s in both sets", id)
	}
}

// ─── Devices ────────────────────────────────────────────────────────

func TestStore_AddDeviceIdempotent(t *testing.T) {
	s, _ := newTestStore(t)

	assert.False(t, s.AddDevice("fridge", "other-id"))
	id, err := s.DeviceID("fridge")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", id)
	assert.True(t, s.DeviceExists("fridge"))
	assert.False(t, s.DeviceExists("oven"))
	assert.Equal(t, []string{"fridge"}, s.Devices())
}

func TestStore_UnknownLookups(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Read("oven", 0x0001)
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	_, err = s.Read("fridge", 0x0001)
	assert.ErrorIs(t, err, ErrERDNotFound)

	assert.ErrorIs(t, s.Write("fridge", 0x0001, []byte{0x01}), ErrERDNotFound)

	_, err = s.Subscribe("fridge", 0x0001, func([]byte) {})
	assert.ErrorIs(t, err, ErrERDNotFound)

	assert.ErrorIs(t, s.MoveToSupported("fridge", 0x0001), ErrERDNotFound)
	assert.ErrorIs(t, s.AddSupported("oven", 0x0001, nil), ErrDeviceNotFound)
	assert.False(t, s.HasSubscribers("fridge", 0x0001))
}

// ─── Membership ─────────────────────────────────────────────────────

func TestStore_AddReroutesToMove(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.AddUnsupported("fridge", 0x0001, []byte{0x42}))
	require.NoError(t, s.AddSupported("fridge", 0x0001, nil))

	assert.True(t, s.IsSupported("fridge", 0x0001))
	v, err := s.Read("fridge", 0x0001)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x42}, v, "value kept across reroute")
	assertExclusive(t, s, "fridge")

	var got [][]byte
	_, err = s.Subscribe("fridge", 0x0001, func(v []byte) { got = append(got, v) })
	require.NoError(t, err)

	require.NoError(t, s.AddUnsupported("fridge", 0x0001, []byte{0x99}))
	assert.False(t, s.IsSupported("fridge", 0x0001))
	assert.Equal(t, [][]byte{nil}, got, "demotion publishes nil")
	assertExclusive(t, s, "fridge")
}

func TestStore_AddSupportedTwiceKeepsSubscribers(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.AddSupported("fridge", 0x0001, []byte{0x01}))
	_, err := s.Subscribe("fridge", 0x0001, func([]byte) {})
	require.NoError(t, err)

	require.NoError(t, s.AddSupported("fridge", 0x0001, nil))
	assert.True(t, s.HasSubscribers("fridge", 0x0001))
	v, _ := s.Read("fridge", 0x0001)
	assert.Equal(t, []byte{0x01}, v)
}

func TestStore_MoveRoundTripPreservesValue(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.AddSupported("fridge", 0x0002, nil))
	require.NoError(t, s.Write("fridge", 0x0002, []byte{0xFF, 0x00}))

	require.NoError(t, s.MoveToUnsupported("fridge", 0x0002))
	assertExclusive(t, s, "fridge")
	require.NoError(t, s.MoveToSupported("fridge", 0x0002))
	assertExclusive(t, s, "fridge")

	v, err := s.Read("fridge", 0x0002)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0x00}, v)
}

func TestStore_MoveToUnsupportedTwicePublishesOnce(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.AddSupported("fridge", 0x0003, []byte{0x01}))

	calls := 0
	_, err := s.Subscribe("fridge", 0x0003, func([]byte) { calls++ })
	require.NoError(t, err)

	require.NoError(t, s.MoveToUnsupported("fridge", 0x0003))
	require.NoError(t, s.MoveToUnsupported("fridge", 0x0003))
	assert.Equal(t, 1, calls)
}

// ─── Writes ─────────────────────────────────────────────────────────

func TestStore_WriteFanOutOnlyWhenSupported(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.AddUnsupported("fridge", 0x0004, nil))

	var got [][]byte
	_, err := s.Subscribe("fridge", 0x0004, func(v []byte) { got = append(got, v) })
	require.NoError(t, err)

	require.NoError(t, s.Write("fridge", 0x0004, []byte{0x10}))
	assert.Empty(t, got)
	v, _ := s.Read("fridge", 0x0004)
	assert.Equal(t, []byte{0x10}, v)

	require.NoError(t, s.MoveToSupported("fridge", 0x0004))
	require.NoError(t, s.Write("fridge", 0x0004, []byte{0x11}))
	assert.Equal(t, [][]byte{{0x11}}, got)
}

func TestStore_ReadReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.AddSupported("fridge", 0x0001, []byte{0x01}))

	v, _ := s.Read("fridge", 0x0001)
	v[0] = 0xFF
	again, _ := s.Read("fridge", 0x0001)
	assert.Equal(t, []byte{0x01}, again)
}

func TestStore_SubscriberCanReadStore(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.AddSupported("fridge", 0x0001, nil))

	var seen []byte
	_, err := s.Subscribe("fridge", 0x0001, func([]byte) {
		seen, _ = s.Read("fridge", 0x0001)
	})
	require.NoError(t, err)

	require.NoError(t, s.Write("fridge", 0x0001, []byte{0x07}))
	assert.Equal(t, []byte{0x07}, seen)
}

// ─── Outbound ───────────────────────────────────────────────────────

func TestStore_PublishOutboundSupported(t *testing.T) {
	s, tr := newTestStore(t)
	require.NoError(t, s.AddSupported("fridge", 0x0001, []byte{0x00}))

	require.NoError(t, s.PublishOutbound(context.Background(), "fridge", 0x0001, []byte{0x05}))

	require.Len(t, tr.sent, 1)
	assert.Equal(t, sentWrite{device: "fridge", id: 0x0001, value: []byte{0x05}}, tr.sent[0])
	v, _ := s.Read("fridge", 0x0001)
	assert.Equal(t, []byte{0x05}, v)
}

func TestStore_PublishOutboundFailureDoesNotCommit(t *testing.T) {
	s, tr := newTestStore(t)
	tr.err = errors.New("broker down")
	require.NoError(t, s.AddSupported("fridge", 0x0001, []byte{0x00}))

	err := s.PublishOutbound(context.Background(), "fridge", 0x0001, []byte{0x05})
	assert.ErrorIs(t, err, ErrTransmitFailed)

	v, _ := s.Read("fridge", 0x0001)
	assert.Equal(t, []byte{0x00}, v)
}

func TestStore_PublishOutboundUnsupportedSkipsTransport(t *testing.T) {
	s, tr := newTestStore(t)
	require.NoError(t, s.AddUnsupported("fridge", 0x0001, nil))

	require.NoError(t, s.PublishOutbound(context.Background(), "fridge", 0x0001, []byte{0x05}))

	assert.Empty(t, tr.sent)
	v, _ := s.Read("fridge", 0x0001)
	assert.Equal(t, []byte{0x05}, v)
}

func TestStore_PublishOutboundWithoutTransport(t *testing.T) {
	s := NewStore(nil)
	s.AddDevice("fridge", "id")
	require.NoError(t, s.AddSupported("fridge", 0x0001, nil))

	err := s.PublishOutbound(context.Background(), "fridge", 0x0001, []byte{0x01})
	assert.ErrorIs(t, err, ErrNoTransport)
}

// ─── Subscriptions ──────────────────────────────────────────────────

func TestStore_Unsubscribe(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.AddSupported("fridge", 0x0001, nil))

	h, err := s.Subscribe("fridge", 0x0001, func([]byte) {})
	require.NoError(t, err)
	assert.True(t, s.HasSubscribers("fridge", 0x0001))

	ok, err := s.Unsubscribe("fridge", 0x0001, h)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, s.HasSubscribers("fridge", 0x0001))

	ok, err = s.Unsubscribe("fridge", 0x0001, h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Snapshot(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.AddUnsupported("fridge", 0x0100, []byte{0x01}))
	require.NoError(t, s.AddSupported("fridge", 0x0002, []byte{0x02}))

	snap, err := s.Snapshot("fridge")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", snap.ID)
	require.Len(t, snap.ERDs, 2)
	assert.Equal(t, ID(0x0002), snap.ERDs[0].ID)
	assert.True(t, snap.ERDs[0].Supported)
	assert.Equal(t, ID(0x0100), snap.ERDs[1].ID)
	assert.False(t, snap.ERDs[1].Supported)
}
