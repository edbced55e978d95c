package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/BradenHooton/admingate/internal/models"
	"github.com/BradenHooton/admingate/pkg/auth"
)

// Development fallback matching the dashboard's built-in login
const (
	builtinIdentifier = "VSVetrian"
	builtinSecret     = "04910#VTS"
	builtinRole       = "Super Admin"
)

// credentialFile is the YAML layout of CREDENTIALS_FILE
type credentialFile struct {
	Credentials []credentialEntry `yaml:"credentials"`
}

type credentialEntry struct {
	Identifier string `yaml:"identifier"`
	Secret     string `yaml:"secret"`
	Role       string `yaml:"role"`
}

// loadCredentials collects credentials from CREDENTIALS_FILE and
// ADMIN_<n>_USERNAME/PASSWORD/ROLE. Outside production an empty result falls
// back to the built-in record.
func (c *Config) loadCredentials() error {
	var entries []credentialEntry

	if path := getEnv("CREDENTIALS_FILE", ""); path != "" {
		fromFile, err := readCredentialFile(path)
		if err != nil {
			return err
		}
		entries = append(entries, fromFile...)
	}

	entries = append(entries, credentialsFromEnv()...)

	if len(entries) == 0 {
		if c.Server.Env == "production" {
			return fmt.Errorf("no admin credentials configured; set CREDENTIALS_FILE or ADMIN_1_USERNAME/ADMIN_1_PASSWORD")
		}
		entries = []credentialEntry{{Identifier: builtinIdentifier, Secret: builtinSecret, Role: builtinRole}}
		c.BuiltinCredentials = true
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Identifier == "" || e.Secret == "" {
			return fmt.Errorf("credential entries need both identifier and secret")
		}
		if seen[e.Identifier] {
			return fmt.Errorf("duplicate credential %q", e.Identifier)
		}
		seen[e.Identifier] = true

		hash := e.Secret
		if !auth.IsSecretHash(hash) {
			if auth.WeakSecret(e.Secret) {
				c.Warnings = append(c.Warnings, fmt.Sprintf("credential %q uses a weak secret", e.Identifier))
			}
			var err error
			hash, err = auth.HashSecret(e.Secret, c.Auth.BcryptCost)
			if err != nil {
				return fmt.Errorf("credential %q: %w", e.Identifier, err)
			}
		}

		role := e.Role
		if role == "" {
			role = "Admin"
		}
		c.Credentials = append(c.Credentials, models.Credential{
			Identifier: e.Identifier,
			SecretHash: hash,
			Role:       role,
		})
	}

	return nil
}

func readCredentialFile(path string) ([]credentialEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var file credentialFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return file.Credentials, nil
}

func credentialsFromEnv() []credentialEntry {
	var entries []credentialEntry
	for i := 1; ; i++ {
		username := os.Getenv(fmt.Sprintf("ADMIN_%d_USERNAME", i))
		if username == "" {
			return entries
		}
		entries = append(entries, credentialEntry{
			Identifier: username,
			Secret:     os.Getenv(fmt.Sprintf("ADMIN_%d_PASSWORD", i)),
			Role:       os.Getenv(fmt.Sprintf("ADMIN_%d_ROLE", i)),
		})
	}
}
