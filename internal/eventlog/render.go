package eventlog

import (
	"errors"
	"strings"
	"time"

	"github.com/MuchTitan/evtsyslog/internal"
	"github.com/sirupsen/logrus"
)

// Difference between the FILETIME epoch (1601-01-01) and the Unix epoch in
// 100ns intervals.
const fileTimeEpochOffset = 116444736000000000

// FileTimeToTime converts a FILETIME value to UTC with millisecond precision.
func FileTimeToTime(ft uint64) time.Time {
	ns := (int64(ft) - fileTimeEpochOffset) * 100
	return time.Unix(0, ns).UTC().Truncate(time.Millisecond)
}

// Renderer turns delivered events into records. It holds no mutable state and
// is safe for concurrent use.
type Renderer struct {
	source Source
}

func NewRenderer(src Source) *Renderer {
	return &Renderer{source: src}
}

// Render returns the record of ev, or false when the event has to be dropped.
// A record is either complete or not produced at all.
func (r *Renderer) Render(ev Event) (*internal.Record, bool) {
	props, ok := r.renderSystem(ev)
	if !ok {
		return nil, false
	}

	provider := props[SystemProviderName]
	if provider.Type != VarTypeString {
		return nil, false
	}
	created := props[SystemTimeCreated]
	if created.Type != VarTypeFileTime {
		return nil, false
	}
	pid := props[SystemProcessID]
	if pid.Type != VarTypeUInt32 {
		return nil, false
	}
	computer := props[SystemComputer]
	if computer.Type != VarTypeString {
		return nil, false
	}
	eventID := props[SystemEventID]
	if eventID.Type != VarTypeUInt16 {
		return nil, false
	}

	message, ok := r.formatMessage(provider.Str, ev)
	if !ok {
		return nil, false
	}

	return &internal.Record{
		Timestamp: FileTimeToTime(created.Value),
		Provider:  provider.Str,
		Computer:  computer.Str,
		ProcessID: uint32(pid.Value),
		EventID:   uint16(eventID.Value),
		Message:   message,
	}, true
}

func (r *Renderer) renderSystem(ev Event) ([]Variant, bool) {
	_, size, err := r.source.RenderSystem(ev, 0)
	if err == nil || !errors.Is(err, ErrInsufficientBuffer) {
		return nil, false
	}

	props, _, err := r.source.RenderSystem(ev, size)
	if err != nil {
		return nil, false
	}

	// Without a user id slot the system property set is incomplete.
	if len(props) <= SystemUserID {
		return nil, false
	}
	return props, true
}

func (r *Renderer) formatMessage(provider string, ev Event) (string, bool) {
	_, size, err := r.source.FormatMessage(provider, ev, 0)
	if err == nil {
		return "", false
	}
	if !errors.Is(err, ErrInsufficientBuffer) {
		logrus.WithField("provider", provider).WithError(err).Debug("could not format event message")
		return "", false
	}

	message, _, err := r.source.FormatMessage(provider, ev, size)
	if err != nil {
		return "", false
	}
	return strings.TrimRight(message, "\x00"), true
}
