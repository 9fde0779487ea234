package eventlog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// PartialError lists the channels that could not be subscribed to.
type PartialError struct {
	Failed map[string]error
}

func (e *PartialError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("could not subscribe to %d channel(s): %s", len(names), strings.Join(names, ", "))
}

func (e *PartialError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// subState guards one subscription so that it is closed at most once, even
// when CloseAll runs concurrently or repeatedly.
type subState struct {
	sub      Subscription
	closed   bool
	closeMux sync.Mutex
}

func newSubState(sub Subscription) *subState {
	return &subState{
		sub:    sub,
		closed: false,
	}
}

func (ss *subState) Close() error {
	ss.closeMux.Lock()
	defer ss.closeMux.Unlock()

	if !ss.closed {
		ss.closed = true
		return ss.sub.Close()
	}
	return nil
}

// SubscriptionSet owns the live subscriptions of the forwarder.
type SubscriptionSet struct {
	states []*subState
}

// Subscriptions returns the live subscriptions in subscription order.
func (s *SubscriptionSet) Subscriptions() []Subscription {
	subs := make([]Subscription, 0, len(s.states))
	for _, st := range s.states {
		subs = append(subs, st.sub)
	}
	return subs
}

func (s *SubscriptionSet) Len() int {
	return len(s.states)
}

// CloseAll releases every subscription once. Calling it again is a no-op.
func (s *SubscriptionSet) CloseAll() {
	for _, st := range s.states {
		if err := st.Close(); err != nil {
			logrus.WithField("channel", st.sub.Channel()).WithError(err).Warn("could not close subscription")
		}
	}
}

// SubscribeAll subscribes to the future events of every channel. Channels
// that do not support subscriptions are skipped. Other failures are collected
// into a *PartialError while the remaining channels are still attempted; the
// returned set is usable in both cases.
func SubscribeAll(src Source, channels []string) (*SubscriptionSet, error) {
	set := &SubscriptionSet{}
	failed := make(map[string]error)

	for _, channel := range channels {
		sub, err := src.Subscribe(channel)
		if err != nil {
			if errors.Is(err, ErrNotSupported) {
				logrus.WithField("channel", channel).Trace("channel does not support subscriptions")
				continue
			}
			logrus.WithField("channel", channel).WithError(err).Warn("could not subscribe to channel")
			failed[channel] = err
			continue
		}
		set.states = append(set.states, newSubState(sub))
	}

	logrus.WithFields(logrus.Fields{
		"channels":      len(channels),
		"subscriptions": set.Len(),
		"failed":        len(failed),
	}).Info("Subscribed to event log channels")

	if len(failed) > 0 {
		return set, &PartialError{Failed: failed}
	}
	return set, nil
}
