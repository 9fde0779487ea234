package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MuchTitan/evtsyslog/internal/eventlog"
	"github.com/MuchTitan/evtsyslog/internal/output"
	"github.com/MuchTitan/evtsyslog/internal/stats"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var ErrNotStarted = errors.New("engine not started")

// Engine consumes every subscribed channel in its own goroutine and hands the
// rendered records to the outputs.
type Engine struct {
	source    eventlog.Source
	renderer  *eventlog.Renderer
	outputs   []output.Plugin
	collector *stats.Collector
	persister *stats.Persister

	subs          *eventlog.SubscriptionSet
	group         *errgroup.Group
	cancel        context.CancelFunc
	persistCancel context.CancelFunc
	persistDone   chan struct{}
	stopOnce      sync.Once
	stopErr       error
}

func New(source eventlog.Source, renderer *eventlog.Renderer, outputs []output.Plugin, collector *stats.Collector) *Engine {
	if collector == nil {
		collector = stats.NewCollector()
	}
	return &Engine{
		source:    source,
		renderer:  renderer,
		outputs:   outputs,
		collector: collector,
	}
}

// RegisterPersister adds periodic persistence of the forwarding statistics.
func (e *Engine) RegisterPersister(p *stats.Persister) {
	e.persister = p
}

func (e *Engine) Collector() *stats.Collector {
	return e.collector
}

// Start enumerates the channels and subscribes to all of them. Failing to
// enumerate is fatal, channels that could not be subscribed are only logged.
func (e *Engine) Start(ctx context.Context) error {
	channels, err := eventlog.ListChannels(e.source)
	if err != nil {
		return fmt.Errorf("could not enumerate channels: %w", err)
	}

	subs, err := eventlog.SubscribeAll(e.source, channels)
	if err != nil {
		var partial *eventlog.PartialError
		if !errors.As(err, &partial) {
			return err
		}
		logrus.WithError(err).WithField("failed", len(partial.Failed)).Warn("Some channels could not be subscribed")
	}
	e.subs = subs

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	group, groupCtx := errgroup.WithContext(runCtx)
	e.group = group

	for _, sub := range subs.Subscriptions() {
		sub := sub
		e.collector.Register(sub.Channel())
		group.Go(func() error {
			e.consume(groupCtx, sub)
			return nil
		})
	}

	if e.persister != nil {
		// The persister outlives the consumers so the final flush sees
		// every counted event.
		persistCtx, persistCancel := context.WithCancel(context.WithoutCancel(ctx))
		e.persistCancel = persistCancel
		e.persistDone = make(chan struct{})
		go func() {
			defer close(e.persistDone)
			e.persister.Run(persistCtx)
		}()
	}

	logrus.WithFields(logrus.Fields{
		"subscriptions": subs.Len(),
		"outputs":       len(e.outputs),
	}).Info("Engine started")
	return nil
}

func (e *Engine) consume(ctx context.Context, sub eventlog.Subscription) {
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.forward(sub.Channel(), ev)
		}
	}
}

// forward renders ev and writes it to every output matching channel. The
// event handle is released before returning.
func (e *Engine) forward(channel string, ev eventlog.Event) {
	defer func() {
		if err := ev.Close(); err != nil {
			logrus.WithField("channel", channel).WithError(err).Debug("could not release event")
		}
	}()

	record, ok := e.renderer.Render(ev)
	if !ok {
		e.collector.Dropped(channel)
		logrus.WithField("channel", channel).Trace("Dropped event that could not be rendered")
		return
	}
	record.Channel = channel

	delivered := false
	for _, out := range e.outputs {
		if !out.MatchChannel(channel) {
			continue
		}
		if err := out.Write(record); err != nil {
			e.collector.SendError(channel)
			logrus.WithFields(logrus.Fields{
				"channel": channel,
				"output":  out.Name(),
			}).WithError(err).Warn("Could not write event")
			continue
		}
		delivered = true
	}
	if delivered {
		e.collector.Forwarded(channel)
	}
}

// Stop cancels the consumers, releases the subscriptions and waits for the
// event in flight. Queued events are not processed. Calling Stop again
// returns the first result.
func (e *Engine) Stop() error {
	if e.group == nil {
		return ErrNotStarted
	}

	e.stopOnce.Do(func() {
		e.cancel()
		e.subs.CloseAll()
		_ = e.group.Wait()

		var errs []error
		for _, out := range e.outputs {
			if err := out.Exit(); err != nil {
				errs = append(errs, fmt.Errorf("output %s: %w", out.Name(), err))
			}
		}

		if e.persister != nil {
			e.persistCancel()
			<-e.persistDone
			if err := e.persister.Close(); err != nil {
				errs = append(errs, fmt.Errorf("statistics store: %w", err))
			}
		}

		totals := e.collector.Totals()
		logrus.WithFields(logrus.Fields{
			"forwarded":   totals.Forwarded,
			"dropped":     totals.Dropped,
			"send_errors": totals.SendErrors,
		}).Info("Engine stopped")

		e.stopErr = errors.Join(errs...)
	})

	return e.stopErr
}
