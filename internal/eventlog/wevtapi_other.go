//go:build !windows

package eventlog

import "errors"

var ErrUnsupportedPlatform = errors.New("the event log source is only available on windows")

// SystemSource is unavailable outside of windows.
type SystemSource struct {
	Source
}

func NewSystemSource() (*SystemSource, error) {
	return nil, ErrUnsupportedPlatform
}
