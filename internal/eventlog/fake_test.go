package eventlog

import (
	"errors"
	"sync"
)

type fakeEvent struct {
	props   []Variant
	message string
	// formatErr replaces the message probe result when set.
	formatErr error
	// renderProbeErr replaces the render probe result when set.
	renderProbeErr error
	// renderSucceedsOnProbe makes the zero size render call succeed.
	renderSucceedsOnProbe bool
	// formatSucceedsOnProbe makes the zero size format call succeed.
	formatSucceedsOnProbe bool
	closed                int
}

func (e *fakeEvent) Close() error {
	e.closed++
	return nil
}

type fakeEnum struct {
	names  []string
	pos    int
	closed bool
}

func (f *fakeEnum) NextChannel(bufferSize uint32) (string, uint32, error) {
	if f.pos >= len(f.names) {
		return "", 0, ErrNoMoreItems
	}
	name := f.names[f.pos]
	required := uint32(len(name) + 1)
	if bufferSize < required {
		return "", required, ErrInsufficientBuffer
	}
	f.pos++
	return name, required, nil
}

func (f *fakeEnum) Close() error {
	f.closed = true
	return nil
}

type fakeSubscription struct {
	channel string
	events  chan Event
	mu      sync.Mutex
	closes  int
}

func newFakeSubscription(channel string) *fakeSubscription {
	return &fakeSubscription{channel: channel, events: make(chan Event, 16)}
}

func (s *fakeSubscription) Channel() string      { return s.channel }
func (s *fakeSubscription) Events() <-chan Event { return s.events }

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if s.closes == 1 {
		close(s.events)
	}
	return nil
}

type fakeSource struct {
	channels  []string
	enumErr   error
	subErrs   map[string]error
	subs      map[string]*fakeSubscription
	lastEnum  *fakeEnum
	enumCalls int
}

func newFakeSource(channels ...string) *fakeSource {
	return &fakeSource{
		channels: channels,
		subErrs:  make(map[string]error),
		subs:     make(map[string]*fakeSubscription),
	}
}

func (f *fakeSource) OpenChannelEnum() (ChannelEnum, error) {
	f.enumCalls++
	if f.enumErr != nil {
		return nil, f.enumErr
	}
	f.lastEnum = &fakeEnum{names: f.channels}
	return f.lastEnum, nil
}

func (f *fakeSource) Subscribe(channel string) (Subscription, error) {
	if err := f.subErrs[channel]; err != nil {
		return nil, err
	}
	sub := newFakeSubscription(channel)
	f.subs[channel] = sub
	return sub, nil
}

func (f *fakeSource) RenderSystem(event Event, bufferSize uint32) ([]Variant, uint32, error) {
	ev, ok := event.(*fakeEvent)
	if !ok {
		return nil, 0, ErrUnsupportedEvent
	}
	required := uint32(len(ev.props) * 16)
	if bufferSize == 0 {
		if ev.renderSucceedsOnProbe {
			return nil, 0, nil
		}
		if ev.renderProbeErr != nil {
			return nil, 0, ev.renderProbeErr
		}
		return nil, required, ErrInsufficientBuffer
	}
	if bufferSize < required {
		return nil, required, ErrInsufficientBuffer
	}
	return ev.props, required, nil
}

func (f *fakeSource) FormatMessage(provider string, event Event, bufferSize uint32) (string, uint32, error) {
	ev, ok := event.(*fakeEvent)
	if !ok {
		return "", 0, ErrUnsupportedEvent
	}
	if ev.formatErr != nil {
		return "", 0, ev.formatErr
	}
	if bufferSize == 0 && ev.formatSucceedsOnProbe {
		return "", 0, nil
	}
	required := uint32(len(ev.message) + 1)
	if bufferSize < required {
		return "", required, ErrInsufficientBuffer
	}
	return ev.message + "\x00", required, nil
}

var errAccessDenied = errors.New("access denied")

// systemProps returns a complete, well typed system property set.
func systemProps() []Variant {
	props := make([]Variant, SystemPropertyCount)
	props[SystemProviderName] = Variant{Type: VarTypeString, Str: "Kernel-General"}
	props[SystemEventID] = Variant{Type: VarTypeUInt16, Value: 16}
	props[SystemTimeCreated] = Variant{Type: VarTypeFileTime, Value: 133537680005000000}
	props[SystemProcessID] = Variant{Type: VarTypeUInt32, Value: 1234}
	props[SystemComputer] = Variant{Type: VarTypeString, Str: "HOST1"}
	props[SystemUserID] = Variant{Type: VarTypeSid, Value: 1}
	return props
}
