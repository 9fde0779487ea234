//go:build windows

package eventlog

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

var (
	modwevtapi = windows.NewLazySystemDLL("wevtapi.dll")

	procEvtOpenChannelEnum       = modwevtapi.NewProc("EvtOpenChannelEnum")
	procEvtNextChannelPath       = modwevtapi.NewProc("EvtNextChannelPath")
	procEvtSubscribe             = modwevtapi.NewProc("EvtSubscribe")
	procEvtNext                  = modwevtapi.NewProc("EvtNext")
	procEvtCreateRenderContext   = modwevtapi.NewProc("EvtCreateRenderContext")
	procEvtRender                = modwevtapi.NewProc("EvtRender")
	procEvtOpenPublisherMetadata = modwevtapi.NewProc("EvtOpenPublisherMetadata")
	procEvtFormatMessage         = modwevtapi.NewProc("EvtFormatMessage")
	procEvtClose                 = modwevtapi.NewProc("EvtClose")
)

const (
	evtSubscribeToFutureEvents = 1
	evtRenderContextSystem     = 1
	evtRenderEventValues       = 0
	evtFormatMessageEvent      = 1

	// Size of an EVT_VARIANT on 64-bit hosts: 8 byte union, count, type.
	evtVariantSize = 16

	eventBatchSize = 64
)

type evtHandle uintptr

func (h evtHandle) Close() error {
	if h == 0 {
		return nil
	}
	r1, _, e1 := procEvtClose.Call(uintptr(h))
	if r1 == 0 {
		return translateErr(e1)
	}
	return nil
}

func translateErr(err error) error {
	switch {
	case errors.Is(err, windows.ERROR_INSUFFICIENT_BUFFER):
		return fmt.Errorf("%w: %v", ErrInsufficientBuffer, err)
	case errors.Is(err, windows.ERROR_NO_MORE_ITEMS):
		return fmt.Errorf("%w: %v", ErrNoMoreItems, err)
	case errors.Is(err, windows.ERROR_NOT_SUPPORTED):
		return fmt.Errorf("%w: %v", ErrNotSupported, err)
	}
	return err
}

// SystemSource reads the local Windows event log through wevtapi.dll.
type SystemSource struct{}

func NewSystemSource() (*SystemSource, error) {
	if err := modwevtapi.Load(); err != nil {
		return nil, fmt.Errorf("could not load wevtapi.dll: %w", err)
	}
	return &SystemSource{}, nil
}

func (s *SystemSource) OpenChannelEnum() (ChannelEnum, error) {
	r1, _, e1 := procEvtOpenChannelEnum.Call(0, 0)
	if r1 == 0 {
		return nil, translateErr(e1)
	}
	return &channelEnum{handle: evtHandle(r1)}, nil
}

type channelEnum struct {
	handle evtHandle
}

func (c *channelEnum) NextChannel(bufferSize uint32) (string, uint32, error) {
	var buf []uint16
	var bufPtr uintptr
	if bufferSize > 0 {
		buf = make([]uint16, bufferSize)
		bufPtr = uintptr(unsafe.Pointer(&buf[0]))
	}

	var used uint32
	r1, _, e1 := procEvtNextChannelPath.Call(
		uintptr(c.handle),
		uintptr(bufferSize),
		bufPtr,
		uintptr(unsafe.Pointer(&used)),
	)
	if r1 == 0 {
		return "", used, translateErr(e1)
	}
	if buf == nil {
		return "", used, nil
	}
	return windows.UTF16ToString(buf), used, nil
}

func (c *channelEnum) Close() error {
	return c.handle.Close()
}

func (s *SystemSource) Subscribe(channel string) (Subscription, error) {
	channelPtr, err := windows.UTF16PtrFromString(channel)
	if err != nil {
		return nil, err
	}
	query, _ := windows.UTF16PtrFromString("*")

	signal, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create signal event: %w", err)
	}
	stop, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		windows.CloseHandle(signal)
		return nil, fmt.Errorf("could not create stop event: %w", err)
	}

	r1, _, e1 := procEvtSubscribe.Call(
		0,
		uintptr(signal),
		uintptr(unsafe.Pointer(channelPtr)),
		uintptr(unsafe.Pointer(query)),
		0,
		0,
		0,
		evtSubscribeToFutureEvents,
	)
	if r1 == 0 {
		windows.CloseHandle(signal)
		windows.CloseHandle(stop)
		return nil, translateErr(e1)
	}

	sub := &pullSubscription{
		channel: channel,
		handle:  evtHandle(r1),
		signal:  signal,
		stop:    stop,
		events:  make(chan Event, eventBatchSize),
		done:    make(chan struct{}),
	}
	sub.wg.Add(1)
	go sub.run()
	return sub, nil
}

// pullSubscription waits on the subscription's signal event and pulls
// delivered events into a queue. Every queued handle is owned by whoever
// receives it from the queue.
type pullSubscription struct {
	channel   string
	handle    evtHandle
	signal    windows.Handle
	stop      windows.Handle
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (p *pullSubscription) Channel() string {
	return p.channel
}

func (p *pullSubscription) Events() <-chan Event {
	return p.events
}

func (p *pullSubscription) run() {
	defer p.wg.Done()

	handles := make([]evtHandle, eventBatchSize)
	waitOn := []windows.Handle{p.signal, p.stop}

	for {
		which, err := windows.WaitForMultipleObjects(waitOn, false, windows.INFINITE)
		if err != nil {
			logrus.WithField("channel", p.channel).WithError(err).Error("could not wait for events")
			return
		}
		if which != windows.WAIT_OBJECT_0 {
			return
		}
		windows.ResetEvent(p.signal)

		for {
			var returned uint32
			r1, _, e1 := procEvtNext.Call(
				uintptr(p.handle),
				uintptr(len(handles)),
				uintptr(unsafe.Pointer(&handles[0])),
				0,
				0,
				uintptr(unsafe.Pointer(&returned)),
			)
			if r1 == 0 {
				if err := translateErr(e1); !errors.Is(err, ErrNoMoreItems) && !errors.Is(err, windows.ERROR_TIMEOUT) {
					logrus.WithField("channel", p.channel).WithError(err).Warn("could not pull events")
				}
				break
			}

			for i, h := range handles[:returned] {
				select {
				case p.events <- h:
				case <-p.done:
					for _, rest := range handles[i:returned] {
						rest.Close()
					}
					return
				}
			}
		}
	}
}

func (p *pullSubscription) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		windows.SetEvent(p.stop)
		p.wg.Wait()

		err = p.handle.Close()
		windows.CloseHandle(p.signal)
		windows.CloseHandle(p.stop)

		close(p.events)
		for ev := range p.events {
			ev.Close()
		}
	})
	return err
}

func (s *SystemSource) RenderSystem(event Event, bufferSize uint32) ([]Variant, uint32, error) {
	h, ok := event.(evtHandle)
	if !ok {
		return nil, 0, ErrUnsupportedEvent
	}

	r1, _, e1 := procEvtCreateRenderContext.Call(0, 0, evtRenderContextSystem)
	if r1 == 0 {
		return nil, 0, translateErr(e1)
	}
	renderCtx := evtHandle(r1)
	defer renderCtx.Close()

	var buf []byte
	var bufPtr uintptr
	if bufferSize > 0 {
		buf = make([]byte, bufferSize)
		bufPtr = uintptr(unsafe.Pointer(&buf[0]))
	}

	var used, count uint32
	r1, _, e1 = procEvtRender.Call(
		uintptr(renderCtx),
		uintptr(h),
		evtRenderEventValues,
		uintptr(bufferSize),
		bufPtr,
		uintptr(unsafe.Pointer(&used)),
		uintptr(unsafe.Pointer(&count)),
	)
	if r1 == 0 {
		return nil, used, translateErr(e1)
	}
	if buf == nil {
		return nil, used, nil
	}
	return decodeVariants(buf, count), used, nil
}

// decodeVariants copies an EVT_VARIANT array out of buf. String values point
// into buf itself, so buf must stay alive while decoding.
func decodeVariants(buf []byte, count uint32) []Variant {
	if uint64(count)*evtVariantSize > uint64(len(buf)) {
		count = uint32(len(buf) / evtVariantSize)
	}

	props := make([]Variant, count)
	for i := range props {
		raw := buf[i*evtVariantSize : (i+1)*evtVariantSize]
		typ := VariantType(*(*uint32)(unsafe.Pointer(&raw[12])))
		props[i].Type = typ

		switch typ {
		case VarTypeString:
			ptr := *(**uint16)(unsafe.Pointer(&raw[0]))
			if ptr != nil {
				props[i].Str = windows.UTF16PtrToString(ptr)
			}
		case VarTypeNull:
		default:
			props[i].Value = *(*uint64)(unsafe.Pointer(&raw[0]))
		}
	}
	return props
}

func (s *SystemSource) FormatMessage(provider string, event Event, bufferSize uint32) (string, uint32, error) {
	h, ok := event.(evtHandle)
	if !ok {
		return "", 0, ErrUnsupportedEvent
	}

	providerPtr, err := windows.UTF16PtrFromString(provider)
	if err != nil {
		return "", 0, err
	}
	r1, _, e1 := procEvtOpenPublisherMetadata.Call(0, uintptr(unsafe.Pointer(providerPtr)), 0, 0, 0)
	if r1 == 0 {
		return "", 0, translateErr(e1)
	}
	metadata := evtHandle(r1)
	defer metadata.Close()

	var buf []uint16
	var bufPtr uintptr
	if bufferSize > 0 {
		buf = make([]uint16, bufferSize)
		bufPtr = uintptr(unsafe.Pointer(&buf[0]))
	}

	var used uint32
	r1, _, e1 = procEvtFormatMessage.Call(
		uintptr(metadata),
		uintptr(h),
		0,
		0,
		0,
		evtFormatMessageEvent,
		uintptr(bufferSize),
		bufPtr,
		uintptr(unsafe.Pointer(&used)),
	)
	if r1 == 0 {
		return "", used, translateErr(e1)
	}
	if buf == nil {
		return "", used, nil
	}
	return windows.UTF16ToString(buf), used, nil
}
