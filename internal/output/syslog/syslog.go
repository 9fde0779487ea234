package outputsyslog

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/MuchTitan/evtsyslog/internal"
	"github.com/MuchTitan/evtsyslog/internal/syslog"
	"github.com/MuchTitan/evtsyslog/internal/util"
)

const defaultWriteTimeout = 2 * time.Second

// Syslog sends every record as one UDP datagram to a fixed destination.
// Each send uses its own socket, so concurrent writes share nothing but the
// destination address.
type Syslog struct {
	name         string
	addr         *net.UDPAddr
	writeTimeout time.Duration
}

func New(addr *net.UDPAddr) *Syslog {
	return &Syslog{
		name:         "syslog",
		addr:         addr,
		writeTimeout: defaultWriteTimeout,
	}
}

func (s *Syslog) Name() string {
	return s.name
}

func (s *Syslog) Init(config map[string]any) error {
	if name := util.MustString(config["Name"]); name != "" {
		s.name = name
	}

	timeout, err := util.IntValue(config, "WriteTimeoutMs", int(defaultWriteTimeout/time.Millisecond))
	if err != nil {
		return err
	}
	if timeout <= 0 {
		return fmt.Errorf("invalid write timeout: %dms", timeout)
	}
	s.writeTimeout = time.Duration(timeout) * time.Millisecond

	if s.addr == nil {
		return errors.New("syslog output has no destination")
	}
	return nil
}

// MatchChannel always reports true, the syslog destination receives every
// channel.
func (s *Syslog) MatchChannel(string) bool {
	return true
}

func (s *Syslog) Write(record *internal.Record) error {
	return s.send(syslog.Format(record))
}

func (s *Syslog) send(line []byte) error {
	conn, err := net.DialUDP("udp4", nil, s.addr)
	if err != nil {
		return fmt.Errorf("could not open udp socket: %w", err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return fmt.Errorf("could not set write deadline: %w", err)
	}
	if _, err := conn.Write(line); err != nil {
		return fmt.Errorf("could not send syslog datagram to %s: %w", s.addr, err)
	}
	return nil
}

func (s *Syslog) Exit() error {
	// Sockets live for a single send only.
	return nil
}
