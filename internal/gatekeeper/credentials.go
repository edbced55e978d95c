package gatekeeper

import (
	"fmt"

	"github.com/BradenHooton/admingate/internal/models"
	"github.com/BradenHooton/admingate/pkg/auth"
)

// CredentialSet is the static, read-only set of admin credentials
type CredentialSet struct {
	entries   map[string]models.Credential
	dummyHash string
}

// NewCredentialSet indexes creds by identifier. Every SecretHash must be a bcrypt hash.
func NewCredentialSet(creds []models.Credential) (*CredentialSet, error) {
	if len(creds) == 0 {
		return nil, fmt.Errorf("credential set is empty")
	}

	entries := make(map[string]models.Credential, len(creds))
	for _, c := range creds {
		if c.Identifier == "" {
			return nil, fmt.Errorf("credential with empty identifier")
		}
		if !auth.IsSecretHash(c.SecretHash) {
			return nil, fmt.Errorf("credential %q: secret is not a bcrypt hash", c.Identifier)
		}
		if _, dup := entries[c.Identifier]; dup {
			return nil, fmt.Errorf("duplicate credential %q", c.Identifier)
		}
		entries[c.Identifier] = c
	}

	// Unknown identifiers still pay for one bcrypt comparison at the same cost
	dummy, err := auth.HashSecret("admingate-dummy-secret", auth.HashCost(creds[0].SecretHash))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &CredentialSet{entries: entries, dummyHash: dummy}, nil
}

// Match looks up identifier and verifies secret. Both must match exactly.
func (c *CredentialSet) Match(identifier, secret string) (models.UserInfo, bool) {
	cred, ok := c.entries[identifier]
	if !ok {
		_ = auth.CompareSecret(c.dummyHash, secret)
		return models.UserInfo{}, false
	}
	if auth.CompareSecret(cred.SecretHash, secret) != nil {
		return models.UserInfo{}, false
	}
	return models.UserInfo{Username: cred.Identifier, Role: cred.Role}, true
}

// Len returns the number of configured credentials
func (c *CredentialSet) Len() int {
	return len(c.entries)
}
