package library

import (
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 4

// hashPassword hashes a member password with bcrypt.
func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", errors.Wrapf(ErrInvalidInput, "password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// passwordHash returns the stored bcrypt hash of memberID.
func (d *Database) passwordHash(memberID int64) (string, error) {
	var hash string
	err := d.db.QueryRow(`SELECT password_hash FROM members WHERE member_id = ?`, memberID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.Wrapf(ErrNotFound, "member %d", memberID)
	}
	return hash, err
}

// setPasswordHash replaces the stored hash of memberID.
func (d *Database) setPasswordHash(memberID int64, hash string) error {
	res, err := d.db.Exec(`UPDATE members SET password_hash = ? WHERE member_id = ?`, hash, memberID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNotFound, "member %d", memberID)
	}
	return nil
}

// AuthenticateMember checks password against the member's stored hash.
func (lm *LibraryManager) AuthenticateMember(memberID int64, password string) error {
	hash, err := lm.db.passwordHash(memberID)
	if err != nil {
		return err
	}
	if hash == "" {
		return errors.Wrapf(ErrAuthFailed, "member %d has no password set", memberID)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return errors.Wrapf(ErrAuthFailed, "member %d", memberID)
	}
	return nil
}

// ResetMemberPassword stores a new password for memberID.
func (lm *LibraryManager) ResetMemberPassword(memberID int64, newPassword string) error {
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	return lm.db.setPasswordHash(memberID, hash)
}
