package library

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-circulation/library/calendar"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := NewDatabase(filepath.Join(dir, "test.db"))
	require.NoError(t, err, "new db")
	t.Cleanup(func() { db.Close() })
	return db
}

var isbnSeq atomic.Int64

func addBook(t *testing.T, db *Database, title string, quantity int) int64 {
	t.Helper()
	id, err := db.AddBook(BookInput{
		Title:    title,
		Author:   "Author of " + title,
		ISBN:     fmt.Sprintf("978-%06d", isbnSeq.Add(1)),
		Genre:    "Fiction",
		Quantity: quantity,
	})
	require.NoError(t, err, "add book %q", title)
	return id
}

func addMember(t *testing.T, db *Database, name string) int64 {
	t.Helper()
	id, err := db.AddMember(MemberInput{Name: name}, "", calendar.MustParse("2024-12-01"))
	require.NoError(t, err, "add member %q", name)
	return id
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.db")
	db, err := NewDatabase(path)
	require.NoError(t, err)
	id := addBook(t, db, "Persisted", 2)
	require.NoError(t, db.Close())

	db, err = NewDatabase(path)
	require.NoError(t, err)
	defer db.Close()

	b, err := db.GetBook(id)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", b.Title)
	assert.Equal(t, 2, b.Available)
}

func TestAddBookValidation(t *testing.T) {
	db := tempDB(t)

	cases := map[string]BookInput{
		"missing title": {ISBN: "1", Quantity: 1},
		"missing isbn":  {Title: "T", Quantity: 1},
		"zero quantity": {Title: "T", ISBN: "1"},
		"negative year": {Title: "T", ISBN: "1", Quantity: 1, Year: -5},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := db.AddBook(in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	_, err := db.AddBook(BookInput{Title: "A", ISBN: "dup", Quantity: 1})
	require.NoError(t, err)
	_, err = db.AddBook(BookInput{Title: "B", ISBN: "dup", Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSearchBooks(t *testing.T) {
	db := tempDB(t)
	_, err := db.AddBook(BookInput{Title: "The Go Programming Language", Author: "Donovan", Publisher: "Addison-Wesley", ISBN: "0134190440", Genre: "Computing", Quantity: 2})
	require.NoError(t, err)
	_, err = db.AddBook(BookInput{Title: "Dune", Author: "Herbert", Publisher: "Chilton", ISBN: "0441013597", Genre: "Science Fiction", Quantity: 1})
	require.NoError(t, err)

	res, err := db.SearchBooks("go")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Donovan", res[0].Author)

	res, err = db.SearchBooks("0441")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Dune", res[0].Title)

	res, err = db.SearchBooks("")
	require.NoError(t, err)
	assert.Len(t, res, 2)

	res, err = db.SearchBooksByGenre("fiction")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Dune", res[0].Title)

	res, err = db.SearchBooksByAuthor("Herb")
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestUpdateBookShiftsAvailable(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	id := addBook(t, db, "Shelf", 3)
	require.NoError(t, db.SetBookAvailable(ctx, db.DB(), id, -2))

	b, err := db.GetBook(id)
	require.NoError(t, err)

	in := BookInput{Title: b.Title, Author: b.Author, ISBN: b.ISBN, Quantity: 5}
	require.NoError(t, db.UpdateBook(id, in))
	b, err = db.GetBook(id)
	require.NoError(t, err)
	assert.Equal(t, 5, b.Quantity)
	assert.Equal(t, 3, b.Available)

	in.Quantity = 1
	err = db.UpdateBook(id, in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in.Quantity = 2
	require.NoError(t, db.UpdateBook(id, in))
	b, err = db.GetBook(id)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Available)

	assert.ErrorIs(t, db.UpdateBook(9999, in), ErrNotFound)
}

func TestDeleteRefusedWithLoanHistory(t *testing.T) {
	db := tempDB(t)
	engine := NewCirculation(db, WithLogger(discardLogger()))
	ctx := context.Background()

	bookID := addBook(t, db, "Kept", 1)
	memberID := addMember(t, db, "Ann")
	spare := addBook(t, db, "Spare", 1)

	loanID, err := engine.IssueLoan(ctx, bookID, memberID, 7)
	require.NoError(t, err)
	_, err = engine.ReturnLoan(ctx, loanID)
	require.NoError(t, err)

	assert.ErrorIs(t, db.DeleteBook(bookID), ErrHasLoanHistory)
	assert.ErrorIs(t, db.DeleteMember(memberID), ErrHasLoanHistory)

	require.NoError(t, db.DeleteBook(spare))
	_, err = db.GetBook(spare)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.DeleteBook(spare), ErrNotFound)
}

func TestMemberCRUD(t *testing.T) {
	db := tempDB(t)
	id := addMember(t, db, "Grace Hopper")
	addMember(t, db, "Alan Turing")

	m, err := db.GetMember(id)
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", m.Name)
	assert.Equal(t, "2024-12-01", m.RegistrationDate.String())
	assert.True(t, m.SuspendedUntil.IsZero())

	require.NoError(t, db.UpdateMember(id, MemberInput{Name: "Grace B. Hopper", Phone: "555-0100"}))
	m, err = db.GetMember(id)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", m.Phone)

	found, err := db.SearchMembersByName("turing")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Alan Turing", found[0].Name)

	n, err := db.MemberCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.ErrorIs(t, db.UpdateMember(id, MemberInput{Name: "  "}), ErrInvalidInput)
	assert.ErrorIs(t, db.UpdateMember(404, MemberInput{Name: "x"}), ErrNotFound)

	require.NoError(t, db.DeleteMember(id))
	_, err = db.GetMember(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetBookAvailableGuards(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	id := addBook(t, db, "Guarded", 1)

	err := db.SetBookAvailable(ctx, db.DB(), id, 1)
	assert.ErrorIs(t, err, ErrStorageFailure, "available may not exceed quantity")

	require.NoError(t, db.SetBookAvailable(ctx, db.DB(), id, -1))
	err = db.SetBookAvailable(ctx, db.DB(), id, -1)
	assert.ErrorIs(t, err, ErrBookUnavailable)

	n, err := db.BookAvailable(ctx, db.DB(), id)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.ErrorIs(t, db.SetBookAvailable(ctx, db.DB(), 777, 1), ErrNotFound)
	_, err = db.BookAvailable(ctx, db.DB(), 777)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplySuspensionNeverShortens(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	id := addMember(t, db, "Late Larry")
	from := calendar.MustParse("2025-03-01")

	require.NoError(t, db.ApplySuspension(ctx, db.DB(), id, 20, from))
	p, err := db.MemberPenalty(ctx, db.DB(), id)
	require.NoError(t, err)
	assert.Equal(t, 20, p.PenaltyDays)
	assert.Equal(t, "2025-03-21", p.SuspendedUntil.String())

	require.NoError(t, db.ApplySuspension(ctx, db.DB(), id, 4, from.AddDays(2)))
	p, err = db.MemberPenalty(ctx, db.DB(), id)
	require.NoError(t, err)
	assert.Equal(t, 4, p.PenaltyDays)
	assert.Equal(t, "2025-03-21", p.SuspendedUntil.String())

	require.NoError(t, db.ApplySuspension(ctx, db.DB(), id, 30, from.AddDays(5)))
	p, err = db.MemberPenalty(ctx, db.DB(), id)
	require.NoError(t, err)
	assert.Equal(t, "2025-04-05", p.SuspendedUntil.String())

	assert.ErrorIs(t, db.ApplySuspension(ctx, db.DB(), 4040, 2, from), ErrNotFound)
	assert.ErrorIs(t, db.ApplySuspension(ctx, db.DB(), id, -1, from), ErrInvalidInput)
}
