package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/MuchTitan/evtsyslog/internal/service"
	"github.com/sirupsen/logrus"
)

var version = "dev"

type FlagOptions struct {
	configPath *string
	foreground *bool
	version    *bool
}

var opts = FlagOptions{}

func init() {
	opts.configPath = flag.String("cfg", defaultConfigPath(), "provided the path to your config file")
	opts.foreground = flag.Bool("foreground", false, "run in the foreground instead of as a service")
	opts.version = flag.Bool("version", false, "print the version and exit")
	flag.Parse()
}

// defaultConfigPath is evtsyslog.yaml next to the executable.
func defaultConfigPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "evtsyslog.yaml"
	}
	return filepath.Join(filepath.Dir(exe), "evtsyslog.yaml")
}

func main() {
	if *opts.version {
		fmt.Println(service.Name, version)
		return
	}

	logrus.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	agent := service.NewAgent(*opts.configPath)

	// "noservice" is still accepted for compatibility with older installs.
	foreground := *opts.foreground || slices.Contains(flag.Args(), "noservice")
	if !foreground {
		managed, err := service.IsManaged()
		if err != nil {
			logrus.WithError(err).Fatal("Could not detect service environment")
		}
		if managed {
			if err := service.RunManaged(service.Name, agent); err != nil {
				logrus.WithError(err).Fatal("Service failed")
			}
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrus.WithField("version", version).Info("Starting event log forwarder")
	if err := service.RunForeground(ctx, agent); err != nil {
		logrus.WithError(err).Fatal("Event log forwarder failed")
	}
}
