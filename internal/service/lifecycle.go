// Package service runs the forwarder either in the foreground or under the
// service control manager.
package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const Name = "EvtSyslog"

type State int

const (
	Stopped State = iota
	StartPending
	Running
	StopPending
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case StartPending:
		return "start_pending"
	case Running:
		return "running"
	case StopPending:
		return "stop_pending"
	default:
		return "unknown"
	}
}

// Lifecycle is the unit the foreground loop and the service controller
// drive.
type Lifecycle interface {
	// Start brings the forwarder up. An error means nothing is running.
	Start(ctx context.Context) error
	// RequestStop asks a started forwarder to shut down. It does not block.
	RequestStop()
	// AwaitStopped blocks until the forwarder has shut down.
	AwaitStopped() error
}

const foregroundTick = time.Second

// RunForeground starts lc and keeps it running until ctx is cancelled.
func RunForeground(ctx context.Context, lc Lifecycle) error {
	if err := lc.Start(ctx); err != nil {
		return err
	}
	logrus.Info("Running in the foreground, interrupt to stop")

	ticker := time.NewTicker(foregroundTick)
	defer ticker.Stop()

	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case <-ticker.C:
			logrus.Trace("Forwarder alive")
		}
	}

	logrus.Info("Stopping forwarder")
	lc.RequestStop()
	return lc.AwaitStopped()
}
