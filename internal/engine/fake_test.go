package engine

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/MuchTitan/evtsyslog/internal"
	"github.com/MuchTitan/evtsyslog/internal/eventlog"
)

type testEvent struct {
	provider string
	message  string
	// broken events fail to render
	broken bool
	closed atomic.Int32
}

func (e *testEvent) Close() error {
	e.closed.Add(1)
	return nil
}

type testEnum struct {
	names []string
	pos   int
}

func (f *testEnum) NextChannel(bufferSize uint32) (string, uint32, error) {
	if f.pos >= len(f.names) {
		return "", 0, eventlog.ErrNoMoreItems
	}
	name := f.names[f.pos]
	required := uint32(len(name) + 1)
	if bufferSize < required {
		return "", required, eventlog.ErrInsufficientBuffer
	}
	f.pos++
	return name, required, nil
}

func (f *testEnum) Close() error { return nil }

type testSubscription struct {
	channel   string
	events    chan eventlog.Event
	closeOnce sync.Once
	closes    atomic.Int32
}

func (s *testSubscription) Channel() string               { return s.channel }
func (s *testSubscription) Events() <-chan eventlog.Event { return s.events }

func (s *testSubscription) Close() error {
	s.closes.Add(1)
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}

type testSource struct {
	channels    []string
	enumErr     error
	unsupported map[string]bool
	failing     map[string]bool

	mu   sync.Mutex
	subs map[string]*testSubscription
}

func newTestSource(channels ...string) *testSource {
	return &testSource{
		channels:    channels,
		unsupported: make(map[string]bool),
		failing:     make(map[string]bool),
		subs:        make(map[string]*testSubscription),
	}
}

func (f *testSource) OpenChannelEnum() (eventlog.ChannelEnum, error) {
	if f.enumErr != nil {
		return nil, f.enumErr
	}
	return &testEnum{names: f.channels}, nil
}

func (f *testSource) Subscribe(channel string) (eventlog.Subscription, error) {
	if f.unsupported[channel] {
		return nil, eventlog.ErrNotSupported
	}
	if f.failing[channel] {
		return nil, errors.New("access denied")
	}
	sub := &testSubscription{channel: channel, events: make(chan eventlog.Event, 64)}
	f.mu.Lock()
	f.subs[channel] = sub
	f.mu.Unlock()
	return sub, nil
}

func (f *testSource) sub(channel string) *testSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[channel]
}

func (f *testSource) RenderSystem(event eventlog.Event, bufferSize uint32) ([]eventlog.Variant, uint32, error) {
	ev := event.(*testEvent)
	if ev.broken {
		return nil, 0, errors.New("corrupt event")
	}
	required := uint32(eventlog.SystemPropertyCount * 16)
	if bufferSize < required {
		return nil, required, eventlog.ErrInsufficientBuffer
	}

	props := make([]eventlog.Variant, eventlog.SystemPropertyCount)
	props[eventlog.SystemProviderName] = eventlog.Variant{Type: eventlog.VarTypeString, Str: ev.provider}
	props[eventlog.SystemEventID] = eventlog.Variant{Type: eventlog.VarTypeUInt16, Value: 16}
	// 2024-03-01T12:00:00.500Z
	props[eventlog.SystemTimeCreated] = eventlog.Variant{Type: eventlog.VarTypeFileTime, Value: 133537680005000000}
	props[eventlog.SystemProcessID] = eventlog.Variant{Type: eventlog.VarTypeUInt32, Value: 1234}
	props[eventlog.SystemComputer] = eventlog.Variant{Type: eventlog.VarTypeString, Str: "HOST1"}
	props[eventlog.SystemUserID] = eventlog.Variant{Type: eventlog.VarTypeSid, Value: 1}
	return props, required, nil
}

func (f *testSource) FormatMessage(provider string, event eventlog.Event, bufferSize uint32) (string, uint32, error) {
	ev := event.(*testEvent)
	required := uint32(len(ev.message) + 1)
	if bufferSize < required {
		return "", required, eventlog.ErrInsufficientBuffer
	}
	return ev.message + "\x00", required, nil
}

// recordingOutput keeps every written record.
type recordingOutput struct {
	name    string
	match   func(string) bool
	failing bool

	mu      sync.Mutex
	records []internal.Record
	exited  int
}

func (o *recordingOutput) Name() string                { return o.name }
func (o *recordingOutput) Init(map[string]any) error   { return nil }
func (o *recordingOutput) MatchChannel(ch string) bool { return o.match == nil || o.match(ch) }

func (o *recordingOutput) Write(record *internal.Record) error {
	if o.failing {
		return errors.New("network unreachable")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, *record)
	return nil
}

func (o *recordingOutput) Exit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.exited++
	return nil
}

func (o *recordingOutput) written() []internal.Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]internal.Record(nil), o.records...)
}
