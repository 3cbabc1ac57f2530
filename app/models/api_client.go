package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// APIClient is a caller allowed to use the authenticated endpoints. Only the
// SHA-256 hash of its key is stored.
type APIClient struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"type:varchar(150);not null" json:"name"`
	KeyHash    string     `gorm:"type:char(64);not null;uniqueIndex" json:"-"`
	KeyPrefix  string     `gorm:"type:varchar(20);not null;default:''" json:"key_prefix"`
	LastUsedAt *time.Time `json:"last_used_at"`
	RevokedAt  *time.Time `json:"revoked_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "spk_"

// IsActive reports whether the client holds a usable key.
func (c *APIClient) IsActive() bool {
	return c != nil && c.KeyHash != "" && c.RevokedAt == nil
}

// IssueKey generates a new key, stores its hash and prefix on the struct, and
// returns the raw secret. Callers must persist the struct afterwards.
func (c *APIClient) IssueKey() (string, error) {
	rawKey, prefix, hash, err := generateAPIKeyMaterial()
	if err != nil {
		return "", err
	}
	c.KeyHash = hash
	c.KeyPrefix = prefix
	c.RevokedAt = nil
	c.LastUsedAt = nil
	return rawKey, nil
}

// Revoke disables the key without deleting the record.
func (c *APIClient) Revoke() {
	now := time.Now()
	c.RevokedAt = &now
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func generateAPIKeyMaterial() (string, string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", err
	}
	rawKey := apiKeyPrefix + strings.ToLower(apiKeyEncoding.EncodeToString(b))
	if len(rawKey) < 16 {
		return "", "", "", fmt.Errorf("api key generation failed: key too short")
	}
	return rawKey, rawKey[:16], HashAPIKey(rawKey), nil
}
