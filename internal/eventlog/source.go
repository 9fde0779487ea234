// Package eventlog subscribes to host event log channels and renders
// delivered events into records.
//
// The host event log subsystem is reached through the Source interface.
// All size-negotiating calls follow the same protocol: a call with a zero
// buffer size probes for the required size and fails with
// ErrInsufficientBuffer, a second call with the reported size does the work.
package eventlog

import "errors"

var (
	ErrInsufficientBuffer = errors.New("insufficient buffer")
	ErrNoMoreItems        = errors.New("no more items")
	ErrNotSupported       = errors.New("operation not supported")
	ErrUnsupportedEvent   = errors.New("event handle does not belong to this source")
)

// Source is the capability surface of the host event log subsystem.
type Source interface {
	// OpenChannelEnum starts a new enumeration of all registered channels.
	OpenChannelEnum() (ChannelEnum, error)

	// Subscribe registers for events written to channel from now on.
	// Channels that cannot be subscribed to return an error wrapping
	// ErrNotSupported.
	Subscribe(channel string) (Subscription, error)

	// RenderSystem renders the system properties of event. bufferSize is in
	// bytes; bufferUsed reports the size required or used.
	RenderSystem(event Event, bufferSize uint32) (props []Variant, bufferUsed uint32, err error)

	// FormatMessage formats the message of event using the metadata of its
	// provider. bufferSize is in UTF-16 code units.
	FormatMessage(provider string, event Event, bufferSize uint32) (message string, bufferUsed uint32, err error)
}

// ChannelEnum walks the channel names known to the host. A call that fails
// does not advance the enumeration.
type ChannelEnum interface {
	NextChannel(bufferSize uint32) (name string, bufferUsed uint32, err error)
	Close() error
}

// Event is an opaque handle to one delivered event. The consumer closes it
// once processing is done.
type Event interface {
	Close() error
}

// Subscription delivers future events of a single channel.
type Subscription interface {
	Channel() string
	// Events is closed once the subscription is closed.
	Events() <-chan Event
	Close() error
}

type VariantType uint32

const (
	VarTypeNull VariantType = iota
	VarTypeString
	VarTypeAnsiString
	VarTypeSByte
	VarTypeByte
	VarTypeInt16
	VarTypeUInt16
	VarTypeInt32
	VarTypeUInt32
	VarTypeInt64
	VarTypeUInt64
	VarTypeSingle
	VarTypeDouble
	VarTypeBoolean
	VarTypeBinary
	VarTypeGUID
	VarTypeSizeT
	VarTypeFileTime
	VarTypeSysTime
	VarTypeSid
	VarTypeHexInt32
	VarTypeHexInt64
)

// VarTypeArray is or'ed into the type of array valued properties.
const VarTypeArray VariantType = 128

// Variant is one rendered property. Str carries string values, Value the
// raw bits of every numeric kind.
type Variant struct {
	Type  VariantType
	Str   string
	Value uint64
}

// Indices of the system properties in a rendered property set.
const (
	SystemProviderName = iota
	SystemProviderGUID
	SystemEventID
	SystemQualifiers
	SystemLevel
	SystemTask
	SystemOpcode
	SystemKeywords
	SystemTimeCreated
	SystemEventRecordID
	SystemActivityID
	SystemRelatedActivityID
	SystemProcessID
	SystemThreadID
	SystemChannel
	SystemComputer
	SystemUserID
	SystemVersion
	SystemPropertyCount
)
