package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/MuchTitan/evtsyslog/internal/config"
	"github.com/MuchTitan/evtsyslog/internal/engine"
	"github.com/MuchTitan/evtsyslog/internal/eventlog"
	"github.com/MuchTitan/evtsyslog/internal/stats"
	"github.com/sirupsen/logrus"
)

// Agent wires config, event source, outputs and statistics into an engine.
type Agent struct {
	ConfigPath string
	// Store overrides where SyslogHost and SyslogPort are read from.
	Store    config.Store
	Resolver config.Resolver
	// NewSource defaults to the system event log.
	NewSource func() (eventlog.Source, error)

	engine    *engine.Engine
	logCloser io.Closer
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
	err       error
}

func NewAgent(configPath string) *Agent {
	return &Agent{
		ConfigPath: configPath,
		Resolver:   net.DefaultResolver,
		NewSource: func() (eventlog.Source, error) {
			return eventlog.NewSystemSource()
		},
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (a *Agent) Start(ctx context.Context) error {
	if err := a.start(ctx); err != nil {
		a.err = err
		a.closeLog()
		close(a.done)
		return err
	}

	go func() {
		<-a.stop
		a.err = a.engine.Stop()
		logrus.Info("Forwarder stopped")
		a.closeLog()
		close(a.done)
	}()
	return nil
}

func (a *Agent) start(ctx context.Context) error {
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return err
	}
	a.logCloser = config.SetupLogging(cfg.System)

	store, release := a.destinationStore(cfg)
	dest, err := config.LoadDestination(ctx, store, a.Resolver)
	release()
	switch {
	case errors.Is(err, config.ErrDefaultPort):
		logrus.WithError(err).Warn("Falling back to the default syslog port")
	case err != nil:
		return err
	}
	logrus.WithField("destination", dest.String()).Info("Loaded syslog destination")

	source, err := a.NewSource()
	if err != nil {
		return fmt.Errorf("could not open event log: %w", err)
	}

	outputs, err := cfg.InitializeOutputs(dest)
	if err != nil {
		return err
	}

	collector := stats.NewCollector()
	a.engine = engine.New(source, eventlog.NewRenderer(source), outputs, collector)

	var persister *stats.Persister
	if cfg.System.DBFile != "" {
		if persister, err = newPersister(collector, cfg.System); err != nil {
			// Statistics are optional, forwarding goes on without them.
			logrus.WithError(err).Warn("Statistics store unavailable")
		} else {
			a.engine.RegisterPersister(persister)
		}
	}

	if err := a.engine.Start(ctx); err != nil {
		for _, out := range outputs {
			out.Exit()
		}
		if persister != nil {
			persister.Close()
		}
		return err
	}
	return nil
}

func newPersister(collector *stats.Collector, sys config.SystemConfig) (*stats.Persister, error) {
	repo, err := stats.NewSQLiteRepository(sys.DBFile)
	if err != nil {
		return nil, err
	}
	persister, err := stats.NewPersister(collector, repo, sys.StatsInterval)
	if err != nil {
		repo.Close()
		return nil, err
	}
	return persister, nil
}

// destinationStore prefers an explicit store, then the config file, then
// the registry.
func (a *Agent) destinationStore(cfg *config.Config) (config.Store, func()) {
	if a.Store != nil {
		return a.Store, func() {}
	}
	if cfg.Syslog.Host != "" {
		return cfg.Syslog.Store(), func() {}
	}

	reg, err := config.OpenRegistryStore()
	if err != nil {
		logrus.WithError(err).Debug("No registry settings, using config file")
		return cfg.Syslog.Store(), func() {}
	}
	return reg, func() { reg.Close() }
}

func (a *Agent) RequestStop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

func (a *Agent) AwaitStopped() error {
	<-a.done
	return a.err
}

func (a *Agent) closeLog() {
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}
