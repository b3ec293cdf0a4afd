package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"library-circulation/library/calendar"
)

const memberColumns = `member_id, name, phone, address, registration_date, password_hash, penalty_days, suspended_until`

func scanMember(row rowScanner) (*Member, error) {
	var m Member
	if err := row.Scan(&m.ID, &m.Name, &m.Phone, &m.Address, &m.RegistrationDate, &m.PasswordHash, &m.PenaltyDays, &m.SuspendedUntil); err != nil {
		return nil, err
	}
	return &m, nil
}

func validateMember(in *MemberInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	if in.Name == "" {
		return errors.Wrap(ErrInvalidInput, "name is required")
	}
	return nil
}

// PenaltyState is the stored outcome of the member's last late return.
type PenaltyState struct {
	PenaltyDays    int
	SuspendedUntil calendar.Date
}

// ------------------ Member CRUD ------------------

// AddMember registers a member on registered with an already hashed password.
func (d *Database) AddMember(in MemberInput, passwordHash string, registered calendar.Date) (int64, error) {
	if err := validateMember(&in); err != nil {
		return 0, err
	}
	res, err := d.addMemberStmt.Exec(in.Name, in.Phone, in.Address, registered.String(), passwordHash)
	if err != nil {
		return 0, fmt.Errorf("add member: %w", err)
	}
	return res.LastInsertId()
}

// GetMember retrieves the stored member row. Derived overdue fields are left
// zero; the circulation engine fills them.
func (d *Database) GetMember(id int64) (*Member, error) {
	row := d.db.QueryRow(`SELECT `+memberColumns+` FROM members WHERE member_id = ?`, id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "member %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (d *Database) queryMembers(query string, args ...any) ([]*Member, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListMembers returns every member ordered by id.
func (d *Database) ListMembers() ([]*Member, error) {
	return d.queryMembers(`SELECT ` + memberColumns + ` FROM members ORDER BY member_id`)
}

// SearchMembersByName returns members whose name contains name.
func (d *Database) SearchMembersByName(name string) ([]*Member, error) {
	return d.queryMembers(`SELECT `+memberColumns+` FROM members
        WHERE name LIKE '%' || ? || '%' ORDER BY name, member_id`, strings.TrimSpace(name))
}

// UpdateMember replaces a member's contact details.
func (d *Database) UpdateMember(id int64, in MemberInput) error {
	if err := validateMember(&in); err != nil {
		return err
	}
	res, err := d.db.Exec(`UPDATE members SET name = ?, phone = ?, address = ? WHERE member_id = ?`,
		in.Name, in.Phone, in.Address, id)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNotFound, "member %d", id)
	}
	return nil
}

// DeleteMember removes a member who has never borrowed.
func (d *Database) DeleteMember(id int64) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var loans int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM loans WHERE member_id = ?`, id).Scan(&loans); err != nil {
		return fmt.Errorf("count loans: %w", err)
	}
	if loans > 0 {
		return errors.Wrapf(ErrHasLoanHistory, "member %d has %d loans", id, loans)
	}

	res, err := tx.Exec(`DELETE FROM members WHERE member_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNotFound, "member %d", id)
	}
	return tx.Commit()
}

// MemberCount returns the number of registered members.
func (d *Database) MemberCount() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM members`).Scan(&n)
	return n, err
}

// ------------------ Penalty accessors ------------------

// MemberPenalty reads the stored penalty state of memberID.
func (d *Database) MemberPenalty(ctx context.Context, q DBTX, memberID int64) (PenaltyState, error) {
	var p PenaltyState
	err := q.QueryRowContext(ctx, `SELECT penalty_days, suspended_until FROM members WHERE member_id = ?`, memberID).
		Scan(&p.PenaltyDays, &p.SuspendedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return PenaltyState{}, errors.Wrapf(ErrNotFound, "member %d", memberID)
	}
	if err != nil {
		return PenaltyState{}, storageErr("read penalty", err)
	}
	return p, nil
}

// MemberOverdueSnapshot computes the member's largest overdue day count over
// open loans as of today, in SQL. It must agree with the engine's own count.
func (d *Database) MemberOverdueSnapshot(ctx context.Context, q DBTX, memberID int64, today calendar.Date) (int, error) {
	if _, err := d.MemberPenalty(ctx, q, memberID); err != nil {
		return 0, err
	}

	var days int
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(CAST(julianday(?) - julianday(due_date) AS INTEGER)), 0)
        FROM loans WHERE member_id = ? AND is_returned = 0`, today.String(), memberID).Scan(&days)
	if err != nil {
		return 0, storageErr("overdue snapshot", err)
	}
	return max(days, 0), nil
}

// ApplySuspension records a suspension of days starting on from. PenaltyDays
// takes the new length; suspended_until only ever moves later.
func (d *Database) ApplySuspension(ctx context.Context, q DBTX, memberID int64, days int, from calendar.Date) error {
	if days < 0 {
		return errors.Wrapf(ErrInvalidInput, "suspension of %d days", days)
	}
	until := from.AddDays(days)
	res, err := q.ExecContext(ctx, `UPDATE members
        SET penalty_days = ?1,
            suspended_until = CASE WHEN suspended_until IS NULL OR suspended_until < ?2 THEN ?2 ELSE suspended_until END
        WHERE member_id = ?3`, days, until.String(), memberID)
	if err != nil {
		return storageErr("apply suspension", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("apply suspension", err)
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "member %d", memberID)
	}
	return nil
}
