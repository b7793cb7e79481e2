package erd

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"
)

// Logger defines the logging interface used by the Store.
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

// Transport sends an ERD write to the appliance. A nil error means the
// write was handed to the wire successfully.
type Transport interface {
	PublishERD(ctx context.Context, device string, id ID, value []byte) error
}

type entry struct {
	value []byte
	event *Event
}

type device struct {
	id          string
	supported   map[ID]*entry
	unsupported map[ID]*entry
}

// lookup returns the entry from either set.
func (d *device) lookup(id ID) (*entry, bool, bool) {
	if e, ok := d.supported[id]; ok {
		return e, true, true
	}
	if e, ok := d.unsupported[id]; ok {
		return e, false, true
	}
	return nil, false, false
}

// Store is the per-device ERD state table.
//
// Every operation is scoped by device name and ERD id. Reads, writes and
// subscriptions against an unknown device or ERD fail with ErrDeviceNotFound
// or ErrERDNotFound.
type Store struct {
	mu        sync.RWMutex
	devices   map[string]*device
	transport Transport
	logger    Logger
}

// NewStore creates an empty store. transport may be nil, in which case
// PublishOutbound on a supported ERD fails with ErrNoTransport.
func NewStore(transport Transport) *Store {
	return &Store{
		devices:   make(map[string]*device),
		transport: transport,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// AddDevice registers a device. It reports false and changes nothing when
// the device already exists.
func (s *Store) AddDevice(name, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[name]; ok {
		return false
	}
	s.devices[name] = &device{
		id:          id,
		supported:   make(map[ID]*entry),
		unsupported: make(map[ID]*entry),
	}
	s.logger.Debug("device added", "device", name, "device_id", id)
	return true
}

// DeviceExists reports whether name has been registered.
func (s *Store) DeviceExists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.devices[name]
	return ok
}

// DeviceID returns the opaque id assigned to the device.
func (s *Store) DeviceID(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	return d.id, nil
}

// Devices returns every registered device name, sorted.
func (s *Store) Devices() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.devices))
	for name := range s.devices {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// AddSupported registers id as supported with value. If id is currently
// unsupported it is moved instead and its stored value is kept. Adding an
// ERD that is already supported changes nothing.
func (s *Store) AddSupported(deviceName string, id ID, value []byte) error {
	s.mu.Lock()
	d, err := s.deviceLocked(deviceName)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := d.unsupported[id]; ok {
		s.mu.Unlock()
		return s.MoveToSupported(deviceName, id)
	}
	if _, ok := d.supported[id]; !ok {
		d.supported[id] = &entry{value: bytes.Clone(value), event: NewEvent()}
	}
	s.mu.Unlock()
	return nil
}

// AddUnsupported registers id as unsupported with value. If id is currently
// supported it is moved instead, which notifies subscribers with nil.
func (s *Store) AddUnsupported(deviceName string, id ID, value []byte) error {
	s.mu.Lock()
	d, err := s.deviceLocked(deviceName)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := d.supported[id]; ok {
		s.mu.Unlock()
		return s.MoveToUnsupported(deviceName, id)
	}
	if e, ok := d.unsupported[id]; ok {
		e.value = bytes.Clone(value)
	} else {
		d.unsupported[id] = &entry{value: bytes.Clone(value), event: NewEvent()}
	}
	s.mu.Unlock()
	return nil
}

// MoveToSupported relocates id into the supported set, keeping its value and
// subscribers. Moving an ERD that is already supported changes nothing.
func (s *Store) MoveToSupported(deviceName string, id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.deviceLocked(deviceName)
	if err != nil {
		return err
	}
	if _, ok := d.supported[id]; ok {
		return nil
	}
	e, ok := d.unsupported[id]
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrERDNotFound, id, deviceName)
	}
	delete(d.unsupported, id)
	d.supported[id] = e
	return nil
}

// MoveToUnsupported relocates id into the unsupported set, keeping its value
// and subscribers, then publishes nil to those subscribers. Moving an ERD
// that is already unsupported changes nothing and publishes nothing.
func (s *Store) MoveToUnsupported(deviceName string, id ID) error {
	s.mu.Lock()
	d, err := s.deviceLocked(deviceName)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := d.unsupported[id]; ok {
		s.mu.Unlock()
		return nil
	}
	e, ok := d.supported[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s on %s", ErrERDNotFound, id, deviceName)
	}
	delete(d.supported, id)
	d.unsupported[id] = e
	s.mu.Unlock()

	e.event.Publish(nil)
	return nil
}

// IsSupported reports whether id is in the device's supported set.
// Unknown devices and ERDs report false.
func (s *Store) IsSupported(deviceName string, id ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[deviceName]
	if !ok {
		return false
	}
	_, ok = d.supported[id]
	return ok
}

// Read returns a copy of the current value of id. A nil value means the ERD
// is known but has never been observed.
func (s *Store) Read(deviceName string, id ID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, _, err := s.entryLocked(deviceName, id)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(e.value), nil
}

// Write stores value for id. Subscribers are notified only when id is supported.
func (s *Store) Write(deviceName string, id ID, value []byte) error {
	s.mu.Lock()
	e, supported, err := s.entryLocked(deviceName, id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	e.value = bytes.Clone(value)
	s.mu.Unlock()

	if supported {
		e.event.Publish(bytes.Clone(value))
	}
	return nil
}

// PublishOutbound sends value to the appliance and commits it locally.
//
// For a supported ERD the transport is tried first and the local write only
// happens when it succeeds; a transport failure is returned wrapped in
// ErrTransmitFailed and the stored value is unchanged. Unsupported ERDs are
// committed locally without transmitting.
func (s *Store) PublishOutbound(ctx context.Context, deviceName string, id ID, value []byte) error {
	s.mu.RLock()
	_, supported, err := s.entryLocked(deviceName, id)
	transport := s.transport
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	if supported {
		if transport == nil {
			return ErrNoTransport
		}
		if err := transport.PublishERD(ctx, deviceName, id, value); err != nil {
			s.logger.Warn("ERD transmit failed", "device", deviceName, "erd", id.String(), "error", err)
			return fmt.Errorf("%w: %w", ErrTransmitFailed, err)
		}
	}

	return s.Write(deviceName, id, value)
}

// HasSubscribers reports whether id has at least one subscriber. Unknown
// devices and ERDs report false.
func (s *Store) HasSubscribers(deviceName string, id ID) bool {
	s.mu.RLock()
	e, _, err := s.entryLocked(deviceName, id)
	s.mu.RUnlock()
	if err != nil {
		return false
	}
	return e.event.Len() > 0
}

// Subscribe registers fn for value changes on id.
func (s *Store) Subscribe(deviceName string, id ID, fn Subscriber) (Handle, error) {
	s.mu.RLock()
	e, _, err := s.entryLocked(deviceName, id)
	s.mu.RUnlock()
	if err != nil {
		return 0, err
	}
	return e.event.Subscribe(fn), nil
}

// Unsubscribe removes the subscription h from id. It reports false when h
// was not subscribed.
func (s *Store) Unsubscribe(deviceName string, id ID, h Handle) (bool, error) {
	s.mu.RLock()
	e, _, err := s.entryLocked(deviceName, id)
	s.mu.RUnlock()
	if err != nil {
		return false, err
	}
	return e.event.Unsubscribe(h), nil
}

// ERDState is a point-in-time view of one ERD.
type ERDState struct {
	ID          ID
	Value       []byte
	Supported   bool
	Subscribers int
}

// DeviceState is a point-in-time view of one device.
type DeviceState struct {
	Name string
	ID   string
	ERDs []ERDState
}

// Snapshot returns a copy of the device's ERDs ordered by id.
func (s *Store) Snapshot(deviceName string) (DeviceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, err := s.deviceLocked(deviceName)
	if err != nil {
		return DeviceState{}, err
	}

	state := DeviceState{Name: deviceName, ID: d.id}
	for id, e := range d.supported {
		state.ERDs = append(state.ERDs, ERDState{ID: id, Value: bytes.Clone(e.value), Supported: true, Subscribers: e.event.Len()})
	}
	for id, e := range d.unsupported {
		state.ERDs = append(state.ERDs, ERDState{ID: id, Value: bytes.Clone(e.value), Subscribers: e.event.Len()})
	}
	slices.SortFunc(state.ERDs, func(a, b ERDState) int { return int(a.ID) - int(b.ID) })
	return state, nil
}

func (s *Store) deviceLocked(name string) (*device, error) {
	d, ok := s.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	return d, nil
}

func (s *Store) entryLocked(deviceName string, id ID) (*entry, bool, error) {
	d, err := s.deviceLocked(deviceName)
	if err != nil {
		return nil, false, err
	}
	e, supported, ok := d.lookup(id)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s on %s", ErrERDNotFound, id, deviceName)
	}
	return e, supported, nil
}
