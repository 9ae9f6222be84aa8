// Package device provides the persisted device identity and host
// metadata attached to view sessions.
package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"
)

const identityFileName = "litix-device-id"

// Store persists the device identity under a base directory.
type Store struct {
	path string
}

// NewStore creates a store rooted at dir. An empty dir resolves to the
// user config directory.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolving config dir: %w", err)
		}
		dir = filepath.Join(base, "litix")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating device store dir: %w", err)
	}
	return &Store{path: filepath.Join(dir, identityFileName)}, nil
}

// DeviceID returns the persisted device identity, generating and
// persisting a UUID on first use. The same value is returned across
// store reopenings.
func (s *Store) DeviceID() (string, error) {
	data, err := os.ReadFile(s.path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading device id: %w", err)
	}

	id := uuid.NewString()
	if err := os.WriteFile(s.path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persisting device id: %w", err)
	}
	return id, nil
}

// HostMetadata describes the host the SDK runs on, as reported at
// view start. Lookup failures degrade to an empty map rather than an
// error; metadata is best-effort.
func HostMetadata() map[string]string {
	info, err := host.Info()
	if err != nil {
		return map[string]string{}
	}
	return map[string]string{
		"os":               info.OS,
		"platform":         info.Platform,
		"platform_version": info.PlatformVersion,
		"kernel_version":   info.KernelVersion,
	}
}
