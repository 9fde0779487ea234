package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	ValueSyslogHost = "SyslogHost"
	ValueSyslogPort = "SyslogPort"

	DefaultPort = 514
)

var (
	ErrValueNotFound = errors.New("value not found")
	// ErrNoDestination is fatal, there is nowhere to send events.
	ErrNoDestination = errors.New("no syslog destination")
	// ErrDefaultPort means the configured port was unusable and DefaultPort
	// is used instead.
	ErrDefaultPort = errors.New("syslog port missing or invalid, using default")
)

// Store is a read-only source of named string values.
type Store interface {
	GetString(name string) (string, error)
}

type MapStore map[string]string

func (m MapStore) GetString(name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrValueNotFound)
	}
	return v, nil
}

type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Destination is the syslog collector. It is not modified after loading.
type Destination struct {
	IP   net.IP
	Port int
}

func (d Destination) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: d.IP, Port: d.Port}
}

func (d Destination) String() string {
	return net.JoinHostPort(d.IP.String(), strconv.Itoa(d.Port))
}

// LoadDestination reads SyslogHost and SyslogPort from store and resolves the
// host. A usable destination may come back together with ErrDefaultPort.
func LoadDestination(ctx context.Context, store Store, resolver Resolver) (Destination, error) {
	host, err := store.GetString(ValueSyslogHost)
	if err != nil {
		return Destination{}, fmt.Errorf("%w: %w", ErrNoDestination, err)
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return Destination{}, fmt.Errorf("%w: %s is empty", ErrNoDestination, ValueSyslogHost)
	}

	ip, err := firstIPv4(ctx, resolver, host)
	if err != nil {
		return Destination{}, err
	}

	dest := Destination{IP: ip, Port: DefaultPort}

	portValue, err := store.GetString(ValueSyslogPort)
	if err != nil {
		return dest, fmt.Errorf("%w: %w", ErrDefaultPort, err)
	}
	port, ok := ParsePort(portValue)
	if !ok {
		return dest, fmt.Errorf("%w: %q", ErrDefaultPort, portValue)
	}
	dest.Port = port

	return dest, nil
}

// ParsePort accepts an unsigned decimal in [1, 65535], surrounding
// whitespace ignored.
func ParsePort(value string) (int, bool) {
	port, err := strconv.ParseUint(strings.TrimSpace(value), 10, 16)
	if err != nil || port == 0 {
		return 0, false
	}
	return int(port), true
}

func firstIPv4(ctx context.Context, resolver Resolver, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
		return nil, fmt.Errorf("%w: %s is not an IPv4 address", ErrNoDestination, host)
	}

	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %w", ErrNoDestination, host, err)
	}
	for _, addr := range addrs {
		if ip4 := addr.IP.To4(); ip4 != nil {
			logrus.WithFields(logrus.Fields{
				"host": host,
				"ip":   ip4.String(),
			}).Debug("Resolved syslog host")
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no IPv4 address", ErrNoDestination, host)
}
