// Package fs provides a file system-based credential store for the authcore client.
package fs

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/panyam/authcore/client"
)

// DefaultAppName names the config directory when none is given
const DefaultAppName = "authcore"

// FSCredentialStore keeps one token per server in a single JSON file
type FSCredentialStore struct {
	mu       sync.RWMutex
	path     string
	servers  map[string]*client.ServerCredential
	modified bool
}

// credentialFile is the JSON structure stored on disk
type credentialFile struct {
	Servers map[string]*client.ServerCredential `json:"servers"`
}

// NewFSCredentialStore creates a new FS-based credential store.
// If path is empty, defaults to <user config dir>/<appName>/credentials.json
func NewFSCredentialStore(path string, appName string) (*FSCredentialStore, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
		if appName == "" {
			appName = DefaultAppName
		}
		path = filepath.Join(configDir, appName, "credentials.json")
	}

	store := &FSCredentialStore{
		path:    path,
		servers: make(map[string]*client.ServerCredential),
	}
	if err := store.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return store, nil
}

func (s *FSCredentialStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var file credentialFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if file.Servers != nil {
		s.servers = file.Servers
	}
	return nil
}

// normalizeURL reduces a server URL to scheme://host
func normalizeURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", serverURL)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}

// GetCredential returns nil, nil when nothing is stored for the server
func (s *FSCredentialStore) GetCredential(serverURL string) (*client.ServerCredential, error) {
	key, err := normalizeURL(serverURL)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.servers[key], nil
}

// SetCredential stores a credential for a server URL
func (s *FSCredentialStore) SetCredential(serverURL string, cred *client.ServerCredential) error {
	key, err := normalizeURL(serverURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[key] = cred
	s.modified = true
	return nil
}

// RemoveCredential removes a credential for a server URL
func (s *FSCredentialStore) RemoveCredential(serverURL string) error {
	key, err := normalizeURL(serverURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.servers[key]; ok {
		delete(s.servers, key)
		s.modified = true
	}
	return nil
}

// PruneExpired drops every credential whose token has expired and returns
// how many were removed. Expired tokens cannot be refreshed.
func (s *FSCredentialStore) PruneExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, cred := range s.servers {
		if cred == nil || cred.IsExpired() {
			delete(s.servers, key)
			removed++
		}
	}
	if removed > 0 {
		s.modified = true
	}
	return removed
}

// ListServers returns all server URLs with stored credentials
func (s *FSCredentialStore) ListServers() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	servers := make([]string, 0, len(s.servers))
	for k := range s.servers {
		servers = append(servers, k)
	}
	return servers, nil
}

// Save persists credentials to disk. The file is readable by the owner only.
func (s *FSCredentialStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.modified {
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(credentialFile{Servers: s.servers}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}

	s.modified = false
	return nil
}

// writeAtomic writes through a temp file in the same directory so a crash
// never leaves a truncated credentials file. CreateTemp uses mode 0600.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".credentials-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Path returns the path to the credentials file
func (s *FSCredentialStore) Path() string {
	return s.path
}
