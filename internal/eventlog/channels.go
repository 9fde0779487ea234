package eventlog

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ListChannels returns the names of all channels currently registered on the
// host. Every call opens a fresh enumeration.
func ListChannels(src Source) ([]string, error) {
	enum, err := src.OpenChannelEnum()
	if err != nil {
		return nil, fmt.Errorf("could not open channel enumerator: %w", err)
	}
	defer enum.Close()

	var channels []string
	for {
		_, size, err := enum.NextChannel(0)
		if err == nil || !errors.Is(err, ErrInsufficientBuffer) {
			if err != nil && !errors.Is(err, ErrNoMoreItems) {
				logrus.WithError(err).Warn("channel enumeration ended early")
			}
			break
		}

		name, _, err := enum.NextChannel(size)
		if err != nil {
			logrus.WithError(err).Warn("could not read channel name")
			break
		}
		channels = append(channels, name)
	}

	return channels, nil
}
