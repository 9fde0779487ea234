package outputgelf

import (
	"fmt"
	"sync"

	"github.com/MuchTitan/evtsyslog/internal"
	"github.com/MuchTitan/evtsyslog/internal/util"

	"gopkg.in/Graylog2/go-gelf.v2/gelf"
)

// GELF mirrors records to a Graylog input over UDP.
type GELF struct {
	name   string
	match  string
	host   string
	port   int
	mu     sync.Mutex
	writer *gelf.UDPWriter
}

func (g *GELF) Name() string {
	return g.name
}

func (g *GELF) MatchChannel(channel string) bool {
	return util.TagMatch(channel, g.match)
}

func (g *GELF) Init(config map[string]any) error {
	g.name = util.MustString(config["Name"])
	if g.name == "" {
		g.name = "gelf"
	}

	g.match = util.MustString(config["Match"])
	if g.match == "" {
		g.match = "*"
	}

	g.host = util.MustString(config["Host"])
	if g.host == "" {
		g.host = "127.0.0.1"
	}

	if mode := util.MustString(config["Mode"]); mode != "" && mode != "udp" {
		return fmt.Errorf("mode: '%v' is not supported", mode)
	}

	var err error
	if g.port, err = util.IntValue(config, "Port", 12201); err != nil {
		return err
	}

	return g.setupWriter()
}

func (g *GELF) setupWriter() error {
	addr := fmt.Sprintf("%s:%d", g.host, g.port)
	w, err := gelf.NewUDPWriter(addr)
	if err != nil {
		return fmt.Errorf("failed to create udp writer: %w", err)
	}
	g.writer = w
	return nil
}

func (g *GELF) Write(record *internal.Record) error {
	msg := gelf.Message{
		Version:  "1.1",
		Host:     record.Computer,
		Short:    record.Message,
		TimeUnix: float64(record.Timestamp.UnixMilli()) / 1000,
		Level:    gelf.LOG_INFO, // Info level by default
		Extra: map[string]any{
			"_provider":   record.Provider,
			"_event_id":   record.EventID,
			"_process_id": record.ProcessID,
			"_channel":    record.Channel,
		},
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.writer.WriteMessage(&msg)
}

func (g *GELF) Exit() error {
	if g.writer != nil {
		return g.writer.Close()
	}
	return nil
}
