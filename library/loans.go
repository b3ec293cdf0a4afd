package library

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"library-circulation/library/calendar"
)

const loanColumns = `loan_id, book_id, member_id, loan_date, due_date, is_returned`

func scanLoan(row rowScanner) (*Loan, error) {
	var l Loan
	if err := row.Scan(&l.ID, &l.BookID, &l.MemberID, &l.LoanDate, &l.DueDate, &l.IsReturned); err != nil {
		return nil, err
	}
	return &l, nil
}

// getLoan reads one loan through q so it can run inside a transaction.
func getLoan(ctx context.Context, q DBTX, id int64) (*Loan, error) {
	row := q.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE loan_id = ?`, id)
	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "loan %d", id)
	}
	if err != nil {
		return nil, storageErr("read loan", err)
	}
	return l, nil
}

// openDueDates returns the due dates of memberID's open loans.
func openDueDates(ctx context.Context, q DBTX, memberID int64) ([]calendar.Date, error) {
	rows, err := q.QueryContext(ctx, `SELECT due_date FROM loans WHERE member_id = ? AND is_returned = 0`, memberID)
	if err != nil {
		return nil, storageErr("read open loans", err)
	}
	defer rows.Close()

	var out []calendar.Date
	for rows.Next() {
		var due calendar.Date
		if err := rows.Scan(&due); err != nil {
			return nil, storageErr("read open loans", err)
		}
		out = append(out, due)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("read open loans", err)
	}
	return out, nil
}

func (d *Database) queryLoans(ctx context.Context, query string, args ...any) ([]*Loan, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// limitArg maps a non-positive limit to SQLite's "no limit".
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// GetLoan retrieves one loan by id.
func (d *Database) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	return getLoan(ctx, d.db, id)
}

// GetReturnByLoan retrieves the Return row written for loanID.
func (d *Database) GetReturnByLoan(ctx context.Context, loanID int64) (*Return, error) {
	var r Return
	err := d.db.QueryRowContext(ctx, `SELECT return_id, loan_id, return_date, overdue_days FROM returns WHERE loan_id = ?`, loanID).
		Scan(&r.ID, &r.LoanID, &r.ReturnDate, &r.OverdueDays)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "return for loan %d", loanID)
	}
	if err != nil {
		return nil, fmt.Errorf("get return: %w", err)
	}
	return &r, nil
}

// ActiveLoansByMember lists memberID's open loans, earliest due first.
func (d *Database) ActiveLoansByMember(ctx context.Context, memberID int64) ([]*Loan, error) {
	return d.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans
        WHERE member_id = ? AND is_returned = 0 ORDER BY due_date, loan_id`, memberID)
}

// ActiveLoansByBook lists the open loans of bookID, earliest due first.
func (d *Database) ActiveLoansByBook(ctx context.Context, bookID int64) ([]*Loan, error) {
	return d.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans
        WHERE book_id = ? AND is_returned = 0 ORDER BY due_date, loan_id`, bookID)
}

// LoanHistoryByMember lists memberID's loans, newest first. limit <= 0 means all.
func (d *Database) LoanHistoryByMember(ctx context.Context, memberID int64, limit int) ([]*Loan, error) {
	return d.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans
        WHERE member_id = ? ORDER BY loan_date DESC, loan_id DESC LIMIT ?`, memberID, limitArg(limit))
}

// LoanHistoryByBook lists the loans of bookID, newest first. limit <= 0 means all.
func (d *Database) LoanHistoryByBook(ctx context.Context, bookID int64, limit int) ([]*Loan, error) {
	return d.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans
        WHERE book_id = ? ORDER BY loan_date DESC, loan_id DESC LIMIT ?`, bookID, limitArg(limit))
}

// OverdueLoans lists open loans whose due date is before today, most overdue
// first. limit <= 0 means all.
func (d *Database) OverdueLoans(ctx context.Context, today calendar.Date, limit int) ([]*Loan, error) {
	return d.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans
        WHERE is_returned = 0 AND due_date < ? ORDER BY due_date, loan_id LIMIT ?`, today.String(), limitArg(limit))
}
