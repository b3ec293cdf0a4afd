package library

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"

	"library-circulation/library/calendar"
)

const dialectSQLite = "sqlite3"

// PopularBook is one row of the most-borrowed report.
type PopularBook struct {
	BookID    int64  `json:"book_id" db:"book_id"`
	Title     string `json:"title" db:"title"`
	Author    string `json:"author" db:"author"`
	LoanCount int    `json:"loan_count" db:"loan_count"`
}

// LoanLine is an open loan joined with its book and member.
type LoanLine struct {
	LoanID         int64         `json:"loan_id" db:"loan_id"`
	BookID         int64         `json:"book_id" db:"book_id"`
	Title          string        `json:"title" db:"title"`
	MemberID       int64         `json:"member_id" db:"member_id"`
	MemberName     string        `json:"member_name" db:"member_name"`
	LoanDate       calendar.Date `json:"loan_date" db:"loan_date"`
	DueDate        calendar.Date `json:"due_date" db:"due_date"`
	OverdueDays    int           `json:"overdue_days" db:"-"`
	SuspensionDays int           `json:"suspension_days" db:"-"`
}

// Statistics summarises the catalog and circulation state.
type Statistics struct {
	Books           int `json:"books" db:"books"`
	Copies          int `json:"copies" db:"copies"`
	AvailableCopies int `json:"available_copies" db:"available_copies"`
	Members         int `json:"members" db:"members"`
	ActiveLoans     int `json:"active_loans" db:"active_loans"`
	OverdueLoans    int `json:"overdue_loans" db:"overdue_loans"`
	TotalLoans      int `json:"total_loans" db:"total_loans"`
	Returns         int `json:"returns" db:"returns"`
}

// Reports runs read-only projections over the circulation tables.
type Reports struct {
	db    *sqlx.DB
	clock Clock
}

// NewReports builds report queries over db. clock supplies "today" for the
// overdue projections.
func NewReports(db *Database, clock Clock) *Reports {
	if clock == nil {
		clock = calendar.Today
	}
	return &Reports{db: sqlx.NewDb(db.DB(), driverName), clock: clock}
}

func (r *Reports) selectInto(ctx context.Context, dest any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build report query: %w", err)
	}
	return r.db.SelectContext(ctx, dest, query, args...)
}

func (r *Reports) getInto(ctx context.Context, dest any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build report query: %w", err)
	}
	return r.db.GetContext(ctx, dest, query, args...)
}

// PopularBooks returns the most borrowed books, counting every loan ever made.
func (r *Reports) PopularBooks(ctx context.Context, limit int) ([]PopularBook, error) {
	if limit <= 0 {
		limit = 10
	}
	ds := goqu.Dialect(dialectSQLite).
		From(goqu.T("books").As("b")).
		InnerJoin(goqu.T("loans").As("l"), goqu.On(goqu.I("l.book_id").Eq(goqu.I("b.book_id")))).
		Select(
			goqu.I("b.book_id").As("book_id"),
			goqu.I("b.title").As("title"),
			goqu.I("b.author").As("author"),
			goqu.COUNT(goqu.I("l.loan_id")).As("loan_count"),
		).
		GroupBy(goqu.I("b.book_id")).
		Order(goqu.C("loan_count").Desc(), goqu.I("b.book_id").Asc()).
		Limit(uint(limit))

	var out []PopularBook
	if err := r.selectInto(ctx, &out, ds); err != nil {
		return nil, fmt.Errorf("popular books: %w", err)
	}
	return out, nil
}

func openLoanLines() *goqu.SelectDataset {
	return goqu.Dialect(dialectSQLite).
		From(goqu.T("loans").As("l")).
		InnerJoin(goqu.T("books").As("b"), goqu.On(goqu.I("b.book_id").Eq(goqu.I("l.book_id")))).
		InnerJoin(goqu.T("members").As("m"), goqu.On(goqu.I("m.member_id").Eq(goqu.I("l.member_id")))).
		Select(
			goqu.I("l.loan_id").As("loan_id"),
			goqu.I("l.book_id").As("book_id"),
			goqu.I("b.title").As("title"),
			goqu.I("l.member_id").As("member_id"),
			goqu.I("m.name").As("member_name"),
			goqu.I("l.loan_date").As("loan_date"),
			goqu.I("l.due_date").As("due_date"),
		).
		Where(goqu.I("l.is_returned").Eq(0)).
		Order(goqu.I("l.due_date").Asc(), goqu.I("l.loan_id").Asc())
}

func (r *Reports) loanLines(ctx context.Context, ds *goqu.SelectDataset) ([]LoanLine, error) {
	var out []LoanLine
	if err := r.selectInto(ctx, &out, ds); err != nil {
		return nil, err
	}
	today := r.clock()
	for i := range out {
		out[i].OverdueDays = max(0, calendar.DiffDays(out[i].DueDate, today))
		out[i].SuspensionDays = SuspensionDays(out[i].OverdueDays)
	}
	return out, nil
}

// ActiveLoanReport lists every open loan, earliest due first.
func (r *Reports) ActiveLoanReport(ctx context.Context) ([]LoanLine, error) {
	out, err := r.loanLines(ctx, openLoanLines())
	if err != nil {
		return nil, fmt.Errorf("active loans: %w", err)
	}
	return out, nil
}

// OverdueReport lists open loans past their due date with the suspension
// each would earn if returned today.
func (r *Reports) OverdueReport(ctx context.Context) ([]LoanLine, error) {
	ds := openLoanLines().Where(goqu.I("l.due_date").Lt(r.clock().String()))
	out, err := r.loanLines(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("overdue loans: %w", err)
	}
	return out, nil
}

// OverdueMemberCount returns how many members hold at least one overdue loan.
func (r *Reports) OverdueMemberCount(ctx context.Context) (int, error) {
	ds := goqu.Dialect(dialectSQLite).
		From("loans").
		Select(goqu.COUNT(goqu.DISTINCT("member_id"))).
		Where(
			goqu.C("is_returned").Eq(0),
			goqu.C("due_date").Lt(r.clock().String()),
		)

	var n int
	if err := r.getInto(ctx, &n, ds); err != nil {
		return 0, fmt.Errorf("overdue members: %w", err)
	}
	return n, nil
}

// Statistics counts books, copies, members and loans.
func (r *Reports) Statistics(ctx context.Context) (*Statistics, error) {
	d := goqu.Dialect(dialectSQLite)
	today := r.clock().String()

	count := func(table string, where ...goqu.Expression) *goqu.SelectDataset {
		return d.From(table).Select(goqu.COUNT(goqu.Star())).Where(where...)
	}

	ds := d.Select(
		count("books").As("books"),
		d.From("books").Select(goqu.COALESCE(goqu.SUM("quantity"), 0)).As("copies"),
		d.From("books").Select(goqu.COALESCE(goqu.SUM("available"), 0)).As("available_copies"),
		count("members").As("members"),
		count("loans", goqu.C("is_returned").Eq(0)).As("active_loans"),
		count("loans", goqu.C("is_returned").Eq(0), goqu.C("due_date").Lt(today)).As("overdue_loans"),
		count("loans").As("total_loans"),
		count("returns").As("returns"),
	)

	var s Statistics
	if err := r.getInto(ctx, &s, ds); err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	return &s, nil
}
