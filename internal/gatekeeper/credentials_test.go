package gatekeeper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/BradenHooton/admingate/internal/models"
)

func TestCredentialSet_Match(t *testing.T) {
	creds := testCredentials(t)

	user, ok := creds.Match(adminIdentifier, adminSecret)
	require.True(t, ok)
	assert.Equal(t, models.UserInfo{Username: adminIdentifier, Role: adminRole}, user)

	tests := []struct {
		name       string
		identifier string
		secret     string
	}{
		{"wrong secret", adminIdentifier, "wrong"},
		{"identifier case differs", "vsvetrian", adminSecret},
		{"trailing space", adminIdentifier + " ", adminSecret},
		{"unknown identifier", "someone", adminSecret},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := creds.Match(tt.identifier, tt.secret)
			assert.False(t, ok)
		})
	}
}

func TestNewCredentialSet_Rejects(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-value"), bcrypt.MinCost)
	require.NoError(t, err)

	_, err = NewCredentialSet(nil)
	assert.Error(t, err)

	_, err = NewCredentialSet([]models.Credential{{Identifier: "admin", SecretHash: "plaintext", Role: "Admin"}})
	assert.Error(t, err)

	_, err = NewCredentialSet([]models.Credential{{Identifier: "", SecretHash: string(hash)}})
	assert.Error(t, err)

	_, err = NewCredentialSet([]models.Credential{
		{Identifier: "admin", SecretHash: string(hash)},
		{Identifier: "admin", SecretHash: string(hash)},
	})
	assert.Error(t, err)

	set, err := NewCredentialSet([]models.Credential{
		{Identifier: "admin", SecretHash: string(hash), Role: "Admin"},
		{Identifier: "editor", SecretHash: string(hash), Role: "Editor"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
}
