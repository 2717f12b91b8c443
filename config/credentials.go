package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"termchat/provider"
)

// CredentialStore holds API keys from the plain-text credentials.toml file,
// keyed by platform name. The file is kept at 0600.
type CredentialStore struct {
	credentials map[string]string
}

type credentialsFile struct {
	Credentials map[string]string `toml:"credentials"`
}

// NewCredentialStore creates an empty credential store
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{credentials: make(map[string]string)}
}

// credentialsPath returns the path to the plain text credentials file
func credentialsPath(dataDir string) string {
	return filepath.Join(dataDir, CredentialsFile)
}

// Load reads credentials.toml from dataDir. A missing file is not an error.
func (c *CredentialStore) Load(dataDir string) error {
	path := credentialsPath(dataDir)
	if !FileExists(path) {
		c.credentials = make(map[string]string)
		return nil
	}

	var cf credentialsFile
	if _, err := toml.DecodeFile(path, &cf); err != nil {
		return fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if cf.Credentials == nil {
		cf.Credentials = make(map[string]string)
	}
	c.credentials = cf.Credentials
	return nil
}

// Save writes credentials.toml into dataDir with 0600 permissions.
func (c *CredentialStore) Save(dataDir string) error {
	if err := EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	f, err := os.OpenFile(credentialsPath(dataDir), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create credentials file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(credentialsFile{Credentials: c.credentials}); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	return nil
}

// Get retrieves a credential
func (c *CredentialStore) Get(name string) string {
	return c.credentials[name]
}

// Set stores a credential
func (c *CredentialStore) Set(name, apiKey string) {
	c.credentials[name] = apiKey
}

// Delete removes a credential
func (c *CredentialStore) Delete(name string) {
	delete(c.credentials, name)
}

// Names returns the names that have a stored credential, sorted.
func (c *CredentialStore) Names() []string {
	names := make([]string, 0, len(c.credentials))
	for name := range c.credentials {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup adapts the store to provider.KeyLookup.
func (c *CredentialStore) Lookup() provider.KeyLookup {
	return func(platform string, _ provider.Profile) (string, bool) {
		v := c.credentials[platform]
		return v, v != ""
	}
}
