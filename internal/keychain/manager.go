// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain stores connection strings in the OS credential store so a
// DSN given once to "sqlaunch connect" need not appear on later command lines
// or in shell history.
//
// On macOS the security(1) command is used directly; elsewhere the keyring
// library picks the platform backend.
package keychain

import (
	"errors"
	"runtime"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

var (
	globalManager *Manager
	mu            sync.Mutex
)

// ErrNotFound is returned when no DSN is stored under a profile.
var ErrNotFound = errors.New("keychain: no stored DSN")

// Manager provides thread-safe DSN storage in the OS keychain.
type Manager struct {
	mu      sync.RWMutex
	backend keychainBackend
}

// keychainBackend defines the interface for keychain operations.
type keychainBackend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "sqlaunch"

// DefaultProfile names the DSN used when no profile is given.
const DefaultProfile = "default"

const keyPrefix = "dsn:"

// NewManager opens the OS keychain.
func NewManager() (*Manager, error) {
	if runtime.GOOS == "darwin" {
		if backend, err := newSecurityBackend(); err == nil {
			return &Manager{backend: backend}, nil
		}
	}
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return &Manager{backend: ringBackend{ring}}, nil
}

// GetManager returns the process-wide manager, retrying initialization after
// a failure.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()
	if globalManager != nil {
		return globalManager, nil
	}
	m, err := NewManager()
	if err != nil {
		return nil, err
	}
	globalManager = m
	return m, nil
}

func openRing() (keyring.Keyring, error) {
	var allowed []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		// pass is the fallback where the Keychain API is unavailable
		allowed = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowed = []keyring.BackendType{keyring.WinCredBackend}
	case "linux":
		allowed = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil, errors.New("secure storage not supported on " + runtime.GOOS)
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowed,
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	})
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable. On macOS 26.0+, install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, err
	}
	return ring, nil
}

func key(profile string) string {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = DefaultProfile
	}
	return keyPrefix + profile
}

// SaveDSN stores dsn under profile.
func (m *Manager) SaveDSN(profile, dsn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.Set(key(profile), dsn)
}

// LoadDSN returns the DSN stored under profile, or ErrNotFound.
func (m *Manager) LoadDSN(profile string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, err := m.backend.Get(key(profile))
	if errors.Is(err, keyring.ErrKeyNotFound) || err == nil && v == "" {
		return "", ErrNotFound
	}
	return v, err
}

// ClearDSN removes the DSN stored under profile. Removing a missing entry is
// not an error.
func (m *Manager) ClearDSN(profile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.backend.Delete(key(profile))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}

// ringBackend adapts a keyring.Keyring.
type ringBackend struct{ ring keyring.Keyring }

func (r ringBackend) Set(k, v string) error {
	return r.ring.Set(keyring.Item{Key: k, Data: []byte(v), Label: ServiceName + " " + k})
}

func (r ringBackend) Get(k string) (string, error) {
	it, err := r.ring.Get(k)
	if err != nil {
		return "", err
	}
	return string(it.Data), nil
}

func (r ringBackend) Delete(k string) error { return r.ring.Remove(k) }
