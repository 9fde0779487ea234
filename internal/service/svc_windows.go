//go:build windows

package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows/svc"
)

// IsManaged reports whether the process was started by the service control
// manager.
func IsManaged() (bool, error) {
	return svc.IsWindowsService()
}

// RunManaged hands the process to the service control manager.
func RunManaged(name string, lc Lifecycle) error {
	return svc.Run(name, &handler{controller: NewController(lc)})
}

type handler struct {
	controller *Controller
}

func (h *handler) Execute(_ []string, r <-chan svc.ChangeRequest, s chan<- svc.Status) (bool, uint32) {
	requests := make(chan Request)
	statuses := make(chan Status)
	done := make(chan struct{})
	defer close(done)

	var err error
	go func() {
		err = h.controller.Execute(context.Background(), requests, statuses)
		close(statuses)
	}()

	go func() {
		for {
			select {
			case <-done:
				return
			case c := <-r:
				req, ok := toRequest(c.Cmd)
				if !ok {
					logrus.WithField("cmd", c.Cmd).Warn("Unexpected service control request")
					continue
				}
				select {
				case requests <- req:
				case <-done:
					return
				}
			}
		}
	}()

	for st := range statuses {
		s <- toSvcStatus(st)
	}

	if err != nil {
		// service specific exit code
		return true, 1
	}
	return false, 0
}

func toRequest(cmd svc.Cmd) (Request, bool) {
	switch cmd {
	case svc.Stop:
		return RequestStop, true
	case svc.Shutdown:
		return RequestShutdown, true
	case svc.Interrogate:
		return RequestInterrogate, true
	default:
		return 0, false
	}
}

func toSvcStatus(st Status) svc.Status {
	var state svc.State
	switch st.State {
	case StartPending:
		state = svc.StartPending
	case Running:
		state = svc.Running
	case StopPending:
		state = svc.StopPending
	default:
		state = svc.Stopped
	}

	var accepts svc.Accepted
	if st.Accepts&AcceptStop != 0 {
		accepts |= svc.AcceptStop
	}
	if st.Accepts&AcceptShutdown != 0 {
		accepts |= svc.AcceptShutdown
	}

	return svc.Status{
		State:      state,
		Accepts:    accepts,
		CheckPoint: st.CheckPoint,
		WaitHint:   uint32(st.WaitHint.Milliseconds()),
	}
}
