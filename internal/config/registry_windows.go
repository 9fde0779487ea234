//go:build windows

package config

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

const RegistryKeyPath = `SOFTWARE\Evtsyslog`

// RegistryStore reads REG_SZ values below HKLM\SOFTWARE\Evtsyslog.
type RegistryStore struct {
	key registry.Key
}

func OpenRegistryStore() (*RegistryStore, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, RegistryKeyPath, registry.QUERY_VALUE)
	if err != nil {
		return nil, fmt.Errorf("could not open registry key HKLM\\%s: %w", RegistryKeyPath, err)
	}
	return &RegistryStore{key: key}, nil
}

func (s *RegistryStore) GetString(name string) (string, error) {
	value, valType, err := s.key.GetStringValue(name)
	if errors.Is(err, registry.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", name, ErrValueNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("reading registry value %s: %w", name, err)
	}
	// GetStringValue also accepts REG_EXPAND_SZ.
	if valType != registry.SZ {
		return "", fmt.Errorf("registry value %s is not REG_SZ: %w", name, registry.ErrUnexpectedType)
	}
	return value, nil
}

func (s *RegistryStore) Close() error {
	return s.key.Close()
}
