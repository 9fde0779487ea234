//go:build !windows

package config

import "errors"

const RegistryKeyPath = `SOFTWARE\Evtsyslog`

var ErrNoRegistry = errors.New("registry is only available on windows")

type RegistryStore struct{}

func OpenRegistryStore() (*RegistryStore, error) {
	return nil, ErrNoRegistry
}

func (s *RegistryStore) GetString(name string) (string, error) {
	return "", ErrNoRegistry
}

func (s *RegistryStore) Close() error {
	return nil
}
