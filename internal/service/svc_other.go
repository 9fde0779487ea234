//go:build !windows

package service

import "errors"

var ErrNotManaged = errors.New("service control manager is only available on windows")

func IsManaged() (bool, error) {
	return false, nil
}

func RunManaged(name string, lc Lifecycle) error {
	return ErrNotManaged
}
