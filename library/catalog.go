package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const bookColumns = `book_id, title, author, publisher, publication_year, isbn, genre, quantity, available`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*Book, error) {
	var b Book
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Publisher, &b.Year, &b.ISBN, &b.Genre, &b.Quantity, &b.Available); err != nil {
		return nil, err
	}
	return &b, nil
}

func validateBook(in *BookInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Publisher = strings.TrimSpace(in.Publisher)
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.Genre = strings.TrimSpace(in.Genre)

	switch {
	case in.Title == "":
		return errors.Wrap(ErrInvalidInput, "title is required")
	case in.ISBN == "":
		return errors.Wrap(ErrInvalidInput, "isbn is required")
	case in.Quantity < 1:
		return errors.Wrapf(ErrInvalidInput, "quantity must be at least 1, got %d", in.Quantity)
	case in.Year < 0:
		return errors.Wrapf(ErrInvalidInput, "publication year %d", in.Year)
	}
	return nil
}

// isbnTaken reports whether another book already uses isbn.
func isbnTaken(q DBTX, isbn string, exceptID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM books WHERE isbn = ? AND book_id <> ?`, isbn, exceptID).Scan(&n)
	return n > 0, err
}

// ------------------ Book CRUD ------------------

// AddBook inserts a book with every copy on the shelf and returns its id.
func (d *Database) AddBook(in BookInput) (int64, error) {
	if err := validateBook(&in); err != nil {
		return 0, err
	}
	taken, err := isbnTaken(d.db, in.ISBN, 0)
	if err != nil {
		return 0, fmt.Errorf("check isbn: %w", err)
	}
	if taken {
		return 0, errors.Wrapf(ErrInvalidInput, "isbn %q already exists", in.ISBN)
	}

	res, err := d.addBookStmt.Exec(in.Title, in.Author, in.Publisher, in.Year, in.ISBN, in.Genre, in.Quantity, in.Quantity)
	if err != nil {
		return 0, fmt.Errorf("add book: %w", err)
	}
	return res.LastInsertId()
}

// GetBook retrieves one book by id.
func (d *Database) GetBook(id int64) (*Book, error) {
	row := d.db.QueryRow(`SELECT `+bookColumns+` FROM books WHERE book_id = ?`, id)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "book %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

func (d *Database) queryBooks(query string, args ...any) ([]*Book, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBooks returns the whole catalog ordered by id.
func (d *Database) ListBooks() ([]*Book, error) {
	return d.queryBooks(`SELECT ` + bookColumns + ` FROM books ORDER BY book_id`)
}

// SearchBooks matches keyword against title, author, publisher and ISBN.
// An empty keyword lists every book.
func (d *Database) SearchBooks(keyword string) ([]*Book, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return d.ListBooks()
	}
	return d.queryBooks(`SELECT `+bookColumns+` FROM books
        WHERE title LIKE '%' || ?1 || '%'
           OR author LIKE '%' || ?1 || '%'
           OR publisher LIKE '%' || ?1 || '%'
           OR isbn LIKE '%' || ?1 || '%'
        ORDER BY title, book_id`, keyword)
}

// SearchBooksByGenre returns books whose genre contains genre.
func (d *Database) SearchBooksByGenre(genre string) ([]*Book, error) {
	return d.queryBooks(`SELECT `+bookColumns+` FROM books
        WHERE genre LIKE '%' || ? || '%' ORDER BY title, book_id`, strings.TrimSpace(genre))
}

// SearchBooksByAuthor returns books whose author contains author.
func (d *Database) SearchBooksByAuthor(author string) ([]*Book, error) {
	return d.queryBooks(`SELECT `+bookColumns+` FROM books
        WHERE author LIKE '%' || ? || '%' ORDER BY title, book_id`, strings.TrimSpace(author))
}

// UpdateBook replaces the catalog fields of a book. A quantity change moves
// available by the same amount; it is rejected when more copies are on loan
// than the new quantity allows.
func (d *Database) UpdateBook(id int64, in BookInput) error {
	if err := validateBook(&in); err != nil {
		return err
	}

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var quantity, available int
	err = tx.QueryRow(`SELECT quantity, available FROM books WHERE book_id = ?`, id).Scan(&quantity, &available)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(ErrNotFound, "book %d", id)
	}
	if err != nil {
		return fmt.Errorf("read book: %w", err)
	}

	onLoan := quantity - available
	if in.Quantity < onLoan {
		return errors.Wrapf(ErrInvalidInput, "quantity %d is below the %d copies on loan", in.Quantity, onLoan)
	}

	taken, err := isbnTaken(tx, in.ISBN, id)
	if err != nil {
		return fmt.Errorf("check isbn: %w", err)
	}
	if taken {
		return errors.Wrapf(ErrInvalidInput, "isbn %q already exists", in.ISBN)
	}

	if _, err := tx.Exec(`UPDATE books
        SET title = ?, author = ?, publisher = ?, publication_year = ?, isbn = ?, genre = ?, quantity = ?, available = ?
        WHERE book_id = ?`,
		in.Title, in.Author, in.Publisher, in.Year, in.ISBN, in.Genre, in.Quantity, in.Quantity-onLoan, id); err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return tx.Commit()
}

// DeleteBook removes a book that no loan has ever referenced.
func (d *Database) DeleteBook(id int64) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var loans int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM loans WHERE book_id = ?`, id).Scan(&loans); err != nil {
		return fmt.Errorf("count loans: %w", err)
	}
	if loans > 0 {
		return errors.Wrapf(ErrHasLoanHistory, "book %d has %d loans", id, loans)
	}

	res, err := tx.Exec(`DELETE FROM books WHERE book_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNotFound, "book %d", id)
	}
	return tx.Commit()
}

// ------------------ Availability accessors ------------------

// BookAvailable returns the number of copies of bookID on the shelf.
func (d *Database) BookAvailable(ctx context.Context, q DBTX, bookID int64) (int, error) {
	var available int
	err := q.QueryRowContext(ctx, `SELECT available FROM books WHERE book_id = ?`, bookID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errors.Wrapf(ErrNotFound, "book %d", bookID)
	}
	if err != nil {
		return 0, storageErr("read availability", err)
	}
	return available, nil
}

// SetBookAvailable moves the available count of bookID by delta. The update
// is refused if it would leave available outside [0, quantity].
func (d *Database) SetBookAvailable(ctx context.Context, q DBTX, bookID int64, delta int) error {
	res, err := q.ExecContext(ctx, `UPDATE books SET available = available + ?1
        WHERE book_id = ?2 AND available + ?1 >= 0 AND available + ?1 <= quantity`, delta, bookID)
	if err != nil {
		return storageErr("update availability", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("update availability", err)
	}
	if n == 1 {
		return nil
	}

	if _, err := d.BookAvailable(ctx, q, bookID); err != nil {
		return err
	}
	if delta < 0 {
		return errors.Wrapf(ErrBookUnavailable, "book %d", bookID)
	}
	return storageErr("update availability", errors.Errorf("book %d: available would exceed quantity", bookID))
}
