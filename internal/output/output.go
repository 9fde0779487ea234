package output

import "github.com/MuchTitan/evtsyslog/internal"

type Plugin interface {
	internal.Plugin
	// Write delivers one record. Errors are reported, never retried.
	Write(record *internal.Record) error
	MatchChannel(channel string) bool
}
