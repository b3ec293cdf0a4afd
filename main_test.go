package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-circulation/library"
)

// runCLI executes one command line against dbPath with stdin as input.
func runCLI(t *testing.T, dbPath, today, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--db", dbPath, "--today", today}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestMenuAndCommandsEndToEnd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")

	script := strings.Join([]string{
		"add book", "Dune", "Frank Herbert", "Chilton", "1965", "0441013597", "Science Fiction", "2",
		"add member", "Paul Atreides", "555-0100", "Caladan", "spice",
		"issue", "1", "1", "14", "spice",
		"list books",
		"exit",
	}, "\n") + "\n"

	out, err := runCLI(t, dbPath, "2025-01-01", script, "menu")
	require.NoError(t, err)
	assert.Contains(t, out, "Added book ID 1 with 2 copies.")
	assert.Contains(t, out, "Added member 'Paul Atreides' with ID 1")
	assert.Contains(t, out, "Loan ID 1, due 2025-01-15.")
	assert.Contains(t, out, "1/2")
	assert.Contains(t, out, "Goodbye!")

	out, err = runCLI(t, dbPath, "2025-01-20", "", "loan", "status", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Overdue by 5 day(s)")

	out, err = runCLI(t, dbPath, "2025-01-20", "", "loan", "return", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Returned 5 day(s) late: member 1 suspended for 10 day(s)")

	_, err = runCLI(t, dbPath, "2025-01-20", "", "loan", "return", "1")
	assert.ErrorIs(t, err, library.ErrAlreadyReturned)

	out, err = runCLI(t, dbPath, "2025-01-25", "", "member", "status", "1", "--json")
	require.NoError(t, err)
	var status struct {
		Suspended bool `json:"suspended"`
		Member    struct {
			PenaltyDays    int    `json:"penalty_days"`
			SuspendedUntil string `json:"suspended_until"`
		} `json:"member"`
	}
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal([]byte(out), &status))
	assert.True(t, status.Suspended)
	assert.Equal(t, 10, status.Member.PenaltyDays)
	assert.Equal(t, "2025-01-30", status.Member.SuspendedUntil)

	_, err = runCLI(t, dbPath, "2025-01-25", "", "loan", "issue", "1", "1")
	assert.ErrorIs(t, err, library.ErrMemberSuspended)

	out, err = runCLI(t, dbPath, "2025-01-30", "", "loan", "issue", "1", "1", "--days", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "due 2025-02-06")

	out, err = runCLI(t, dbPath, "2025-01-30", "", "report", "stats", "--json")
	require.NoError(t, err)
	var stats library.Statistics
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.Books)
	assert.Equal(t, 2, stats.TotalLoans)
	assert.Equal(t, 1, stats.ActiveLoans)
	assert.Equal(t, 1, stats.Returns)

	out, err = runCLI(t, dbPath, "2025-01-30", "", "report", "popular")
	require.NoError(t, err)
	assert.Contains(t, out, "Dune")
}

func TestMenuRejectsWrongPassword(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	script := strings.Join([]string{
		"add book", "Emma", "Jane Austen", "", "1815", "9780141439587", "", "1",
		"add member", "Harriet", "", "", "secret",
		"issue", "1", "1", "", "wrong",
		"exit",
	}, "\n") + "\n"

	out, err := runCLI(t, dbPath, "2025-01-01", script, "menu")
	require.NoError(t, err)
	assert.Contains(t, out, "Authentication failed")

	out, err = runCLI(t, dbPath, "2025-01-01", "", "report", "active")
	require.NoError(t, err)
	assert.Contains(t, out, "No loans to show.")
}

func TestCommandArgumentErrors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")

	_, err := runCLI(t, dbPath, "2025-01-01", "", "loan", "return", "abc")
	assert.Error(t, err)

	_, err = runCLI(t, dbPath, "2025-13-01", "", "report", "stats")
	assert.ErrorIs(t, err, library.ErrInvalidFormat)

	_, err = runCLI(t, dbPath, "2025-01-01", "", "report", "weekly")
	assert.Error(t, err)

	_, err = runCLI(t, dbPath, "2025-01-01", "", "loan", "status", "42")
	assert.ErrorIs(t, err, library.ErrNotFound)
}

func TestParseLevel(t *testing.T) {
	for in, ok := range map[string]bool{"": true, "debug": true, "WARN": true, "error": true, "loud": false} {
		_, err := parseLevel(in)
		assert.Equal(t, ok, err == nil, in)
	}
}
