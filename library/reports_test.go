package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReports(t *testing.T) {
	clock := newFakeClock("2025-04-01")
	db, engine := newEngine(t, clock)
	reports := NewReports(db, clock.Now)
	ctx := context.Background()

	popular := addBook(t, db, "Popular", 3)
	quiet := addBook(t, db, "Quiet", 1)
	addBook(t, db, "Never Lent", 2)
	ann := addMember(t, db, "Ann")
	bob := addMember(t, db, "Bob")

	first, err := engine.IssueLoan(ctx, popular, ann, 5)
	require.NoError(t, err)
	_, err = engine.ReturnLoan(ctx, first)
	require.NoError(t, err)
	_, err = engine.IssueLoan(ctx, popular, ann, 5) // due 04-06
	require.NoError(t, err)
	_, err = engine.IssueLoan(ctx, popular, bob, 20) // due 04-21
	require.NoError(t, err)
	_, err = engine.IssueLoan(ctx, quiet, bob, 2) // due 04-03
	require.NoError(t, err)

	clock.Set("2025-04-10")

	top, err := reports.PopularBooks(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, popular, top[0].BookID)
	assert.Equal(t, 3, top[0].LoanCount)
	assert.Equal(t, "Quiet", top[1].Title)

	active, err := reports.ActiveLoanReport(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "2025-04-03", active[0].DueDate.String(), "earliest due first")
	assert.Equal(t, "Bob", active[0].MemberName)
	assert.Equal(t, 7, active[0].OverdueDays)
	assert.Equal(t, 14, active[0].SuspensionDays)
	assert.Equal(t, 0, active[2].OverdueDays)

	overdue, err := reports.OverdueReport(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, quiet, overdue[0].BookID)
	assert.Equal(t, "Ann", overdue[1].MemberName)
	assert.Equal(t, 4, overdue[1].OverdueDays)

	members, err := reports.OverdueMemberCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, members)

	stats, err := reports.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, Statistics{
		Books:           3,
		Copies:          6,
		AvailableCopies: 3,
		Members:         2,
		ActiveLoans:     3,
		OverdueLoans:    2,
		TotalLoans:      4,
		Returns:         1,
	}, *stats)
}

func TestReportsEmpty(t *testing.T) {
	db := tempDB(t)
	reports := NewReports(db, nil)
	ctx := context.Background()

	top, err := reports.PopularBooks(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, top)

	stats, err := reports.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, Statistics{}, *stats)
}
