package repo

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

var ErrBadCredentials = errors.New("invalid credentials")

// HashPassword digests a password with the account email as salt.
func HashPassword(email, password string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email)) + ":" + password))
	return hex.EncodeToString(sum[:])
}

// UpsertAccount creates or replaces sign-in credentials for an email.
func (r Repo) UpsertAccount(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" {
		return errors.New("email required")
	}
	if password == "" {
		return errors.New("password required")
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.DB.ExecContext(ctx, `INSERT INTO accounts(email,password_hash,created_at) VALUES (?,?,?)
ON CONFLICT(email) DO UPDATE SET password_hash=excluded.password_hash`,
		strings.ToLower(strings.TrimSpace(email)), HashPassword(email, password), now)
	return err
}

// VerifyAccount checks credentials, returning ErrBadCredentials on
// mismatch or unknown email.
func (r Repo) VerifyAccount(ctx context.Context, email, password string) error {
	var stored string
	err := r.DB.QueryRowContext(ctx, `SELECT password_hash FROM accounts WHERE email=?`,
		strings.ToLower(strings.TrimSpace(email))).Scan(&stored)
	if err == sql.ErrNoRows {
		return ErrBadCredentials
	}
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(HashPassword(email, password))) != 1 {
		return ErrBadCredentials
	}
	return nil
}
