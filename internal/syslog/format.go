// Package syslog renders records as single line RFC 5424 style messages.
package syslog

import (
	"strconv"
	"unicode/utf8"

	"github.com/MuchTitan/evtsyslog/internal"
)

const (
	// Priority is sent for every message regardless of the event level.
	Priority = 3
	Version  = 1

	// MaxLineSize caps a formatted line; longer lines are truncated.
	MaxLineSize = 2048

	timestampFormat = "2006-01-02T15:04:05.000Z"
)

// Format returns the syslog line of rec:
//
//	<3>1 2024-03-01T12:00:00.500Z HOST1 Kernel-General 16 1234 - message
//
// Field values are written as they are, no escaping is applied.
func Format(rec *internal.Record) []byte {
	return AppendFormat(make([]byte, 0, 256), rec)
}

// AppendFormat appends the syslog line of rec to dst. Only the appended part
// is subject to MaxLineSize.
func AppendFormat(dst []byte, rec *internal.Record) []byte {
	start := len(dst)

	dst = append(dst, '<')
	dst = strconv.AppendInt(dst, Priority, 10)
	dst = append(dst, '>')
	dst = strconv.AppendInt(dst, Version, 10)
	dst = append(dst, ' ')
	dst = rec.Timestamp.UTC().AppendFormat(dst, timestampFormat)
	dst = append(dst, ' ')
	dst = append(dst, rec.Computer...)
	dst = append(dst, ' ')
	dst = append(dst, rec.Provider...)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(rec.EventID), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(rec.ProcessID), 10)
	dst = append(dst, " - "...)
	dst = append(dst, rec.Message...)

	return truncate(dst, start, MaxLineSize)
}

// truncate cuts b so that b[start:] is at most limit bytes without splitting
// a UTF-8 sequence.
func truncate(b []byte, start, limit int) []byte {
	if len(b)-start <= limit {
		return b
	}
	end := start + limit
	for end > start && !utf8.RuneStart(b[end]) {
		end--
	}
	return b[:end]
}
