package ls

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kkim/hanaro-trader/internal/ports"
)

// FileTokenStore persists the token record as the JSON file named in spec
// §6 (`<data-dir>/ls_token.json`).
type FileTokenStore struct {
	Path string
}

type tokenRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresAt    string `json:"expires_at"`
}

// Load reads the token record from disk, returning ok=false if the file
// does not exist yet (NONE state).
func (s *FileTokenStore) Load(ctx context.Context) (ports.Token, bool, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return ports.Token{}, false, nil
	}
	if err != nil {
		return ports.Token{}, false, fmt.Errorf("load token: %w", err)
	}
	var rec tokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ports.Token{}, false, fmt.Errorf("parse token file: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339, rec.ExpiresAt)
	if err != nil {
		return ports.Token{}, false, fmt.Errorf("parse token expiry: %w", err)
	}
	return ports.Token{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		TokenType:    rec.TokenType,
		ExpiresAt:    expiresAt,
	}, true, nil
}

// Save writes the token record to disk, creating the parent directory if needed.
func (s *FileTokenStore) Save(ctx context.Context, t ports.Token) error {
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save token: mkdir: %w", err)
		}
	}
	rec := tokenRecord{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresAt:    t.ExpiresAt.Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("save token: marshal: %w", err)
	}
	return os.WriteFile(s.Path, data, 0o600)
}
