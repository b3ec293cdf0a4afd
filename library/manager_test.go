package library

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-circulation/library/calendar"
)

func newManager(t *testing.T, clock *fakeClock) *LibraryManager {
	t.Helper()
	mgr, err := NewLibraryManager(Config{
		DBPath:         filepath.Join(t.TempDir(), "lib.db"),
		LoanPeriodDays: 21,
		Logger:         discardLogger(),
		Clock:          clock.Now,
	})
	require.NoError(t, err, "mgr")
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func TestManagerMemberPasswords(t *testing.T) {
	mgr := newManager(t, newFakeClock("2025-02-02"))

	id, err := mgr.AddMember(MemberInput{Name: "Ada"}, "analytical")
	require.NoError(t, err)

	m, err := mgr.GetMember(id)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-02", m.RegistrationDate.String())
	assert.NotEqual(t, "analytical", m.PasswordHash)

	assert.NoError(t, mgr.AuthenticateMember(id, "analytical"))
	assert.ErrorIs(t, mgr.AuthenticateMember(id, "engine"), ErrAuthFailed)
	assert.ErrorIs(t, mgr.AuthenticateMember(99, "analytical"), ErrNotFound)

	require.NoError(t, mgr.ResetMemberPassword(id, "difference"))
	assert.ErrorIs(t, mgr.AuthenticateMember(id, "analytical"), ErrAuthFailed)
	assert.NoError(t, mgr.AuthenticateMember(id, "difference"))

	assert.ErrorIs(t, mgr.ResetMemberPassword(id, "ab"), ErrInvalidInput)
	_, err = mgr.AddMember(MemberInput{Name: "Short"}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestManagerMemberStatus(t *testing.T) {
	clock := newFakeClock("2025-01-01")
	mgr := newManager(t, clock)
	ctx := context.Background()

	bookID, err := mgr.AddBook(BookInput{Title: "Status", ISBN: "111", Quantity: 1})
	require.NoError(t, err)
	memberID, err := mgr.AddMember(MemberInput{Name: "Stan"}, "password")
	require.NoError(t, err)

	loanID, err := mgr.IssueLoan(ctx, bookID, memberID, 0)
	require.NoError(t, err)
	loan, err := mgr.GetLoan(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-22", loan.DueDate.String(), "configured loan period")

	clock.Set("2025-01-25")
	status, err := mgr.MemberStatus(ctx, memberID)
	require.NoError(t, err)
	assert.True(t, status.Suspended)
	assert.Equal(t, 3, status.Member.OverdueDays)
	assert.Equal(t, 6, status.Member.SuspensionDays)
	require.Len(t, status.ActiveLoans, 1)
	assert.Equal(t, loanID, status.ActiveLoans[0].ID)

	overdue, err := mgr.OverdueLoans(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, overdue, 1)

	receipt, err := mgr.ReturnLoan(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, 6, receipt.SuspensionDays)

	status, err = mgr.MemberStatus(ctx, memberID)
	require.NoError(t, err)
	assert.True(t, status.Suspended, "suspension outlives the loan")
	assert.Equal(t, 0, status.Member.OverdueDays)
	assert.Equal(t, "2025-01-31", status.Member.SuspendedUntil.String())
	assert.Empty(t, status.ActiveLoans)

	history, err := mgr.LoanHistoryByMember(ctx, memberID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	members, err := mgr.ListMembers()
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, 6, members[0].PenaltyDays)
}

func TestManagerParseDateUsesBounds(t *testing.T) {
	mgr, err := NewLibraryManager(Config{
		DBPath:     filepath.Join(t.TempDir(), "lib.db"),
		DateBounds: calendar.Bounds{MinYear: 2000, MaxYear: 2100},
		Logger:     discardLogger(),
	})
	require.NoError(t, err)
	defer mgr.Close()

	d, err := mgr.ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())

	_, err = mgr.ParseDate("1999-12-31")
	assert.ErrorIs(t, err, ErrInvalidFormat)
	_, err = mgr.ParseDate("2025-02-29")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestPrettyBook(t *testing.T) {
	line := PrettyBook(&Book{ID: 7, Title: "A Very Long Title That Will Not Fit In Thirty Runes", Author: "Someone", ISBN: "123", Quantity: 3, Available: 1})
	assert.Contains(t, line, "...")
	assert.Contains(t, line, "1/3")
}
