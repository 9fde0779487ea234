package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Request int

const (
	RequestStop Request = iota + 1
	RequestShutdown
	RequestInterrogate
)

type Accepted uint32

const (
	AcceptStop Accepted = 1 << iota
	AcceptShutdown
)

const startWaitHint = 3 * time.Second

// Status is reported to the service manager on every transition and on
// interrogation.
type Status struct {
	State      State
	Accepts    Accepted
	CheckPoint uint32
	WaitHint   time.Duration
}

// Controller translates service manager requests into Lifecycle calls.
type Controller struct {
	lc         Lifecycle
	current    Status
	checkPoint uint32
}

func NewController(lc Lifecycle) *Controller {
	return &Controller{lc: lc}
}

func (c *Controller) report(status chan<- Status, st Status) {
	if st.State == StartPending || st.State == StopPending {
		c.checkPoint++
		st.CheckPoint = c.checkPoint
	}
	c.current = st
	logrus.WithField("state", st.State.String()).Debug("Service state changed")
	status <- st
}

// Execute runs the lifecycle until a stop or shutdown request arrives or
// requests is closed. The last status sent is always Stopped.
func (c *Controller) Execute(ctx context.Context, requests <-chan Request, status chan<- Status) error {
	c.report(status, Status{State: StartPending, WaitHint: startWaitHint})

	if err := c.lc.Start(ctx); err != nil {
		logrus.WithError(err).Error("Could not start forwarder")
		c.report(status, Status{State: Stopped})
		return err
	}
	c.report(status, Status{State: Running, Accepts: AcceptStop | AcceptShutdown})

	for {
		req, ok := <-requests
		if !ok {
			break
		}
		if req == RequestInterrogate {
			status <- c.current
			continue
		}
		if req == RequestStop || req == RequestShutdown {
			break
		}
		logrus.WithField("request", int(req)).Warn("Unexpected service control request")
	}

	c.report(status, Status{State: StopPending})
	c.lc.RequestStop()
	err := c.lc.AwaitStopped()
	if err != nil {
		logrus.WithError(err).Warn("Forwarder did not stop cleanly")
	}
	c.report(status, Status{State: Stopped})
	return err
}
