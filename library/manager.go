package library

import (
	"context"
	"fmt"
	"log/slog"

	"library-circulation/library/calendar"
)

// Config holds the settings a LibraryManager is opened with.
type Config struct {
	DBPath         string
	LoanPeriodDays int
	DateBounds     calendar.Bounds
	Logger         *slog.Logger
	Clock          Clock
}

// LibraryManager is a thin façade over the Database, the circulation engine
// and the reports, keeping CLI code simple.
type LibraryManager struct {
	db      *Database
	engine  *Circulation
	reports *Reports
	bounds  calendar.Bounds
	clock   Clock
}

// NewLibraryManager opens (or creates) the SQLite database at cfg.DBPath.
// Extra options are applied to the circulation engine after cfg.
func NewLibraryManager(cfg Config, opts ...Option) (*LibraryManager, error) {
	db, err := NewDatabase(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	bounds := cfg.DateBounds
	if bounds == (calendar.Bounds{}) {
		bounds = calendar.DefaultBounds
	}

	engineOpts := append([]Option{
		WithLoanPeriod(cfg.LoanPeriodDays),
		WithLogger(cfg.Logger),
		WithClock(cfg.Clock),
	}, opts...)
	engine := NewCirculation(db, engineOpts...)

	return &LibraryManager{
		db:      db,
		engine:  engine,
		reports: NewReports(db, engine.clock),
		bounds:  bounds,
		clock:   engine.clock,
	}, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// Circulation exposes the loan engine.
func (lm *LibraryManager) Circulation() *Circulation { return lm.engine }

// Today returns the date the manager treats as today.
func (lm *LibraryManager) Today() calendar.Date { return lm.clock() }

// ParseDate parses a YYYY-MM-DD string within the configured year bounds.
func (lm *LibraryManager) ParseDate(s string) (calendar.Date, error) {
	return lm.bounds.Parse(s)
}

// ------------------ Book helpers ------------------

func (lm *LibraryManager) AddBook(in BookInput) (int64, error)     { return lm.db.AddBook(in) }
func (lm *LibraryManager) GetBook(id int64) (*Book, error)         { return lm.db.GetBook(id) }
func (lm *LibraryManager) ListBooks() ([]*Book, error)             { return lm.db.ListBooks() }
func (lm *LibraryManager) UpdateBook(id int64, in BookInput) error { return lm.db.UpdateBook(id, in) }
func (lm *LibraryManager) DeleteBook(id int64) error               { return lm.db.DeleteBook(id) }

func (lm *LibraryManager) SearchBooks(keyword string) ([]*Book, error) {
	return lm.db.SearchBooks(keyword)
}

func (lm *LibraryManager) SearchBooksByGenre(genre string) ([]*Book, error) {
	return lm.db.SearchBooksByGenre(genre)
}

func (lm *LibraryManager) SearchBooksByAuthor(author string) ([]*Book, error) {
	return lm.db.SearchBooksByAuthor(author)
}

// ------------------ Member helpers ------------------

// AddMember registers a member today with a bcrypt-hashed password.
func (lm *LibraryManager) AddMember(in MemberInput, password string) (int64, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return 0, err
	}
	return lm.db.AddMember(in, hash, lm.clock())
}

// GetMember returns a member with OverdueDays and SuspensionDays filled.
func (lm *LibraryManager) GetMember(id int64) (*Member, error) {
	m, err := lm.db.GetMember(id)
	if err != nil {
		return nil, err
	}
	if err := lm.engine.FillMemberStatus(context.Background(), m); err != nil {
		return nil, err
	}
	return m, nil
}

func (lm *LibraryManager) withStatus(members []*Member, err error) ([]*Member, error) {
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if err := lm.engine.FillMemberStatus(context.Background(), m); err != nil {
			return nil, err
		}
	}
	return members, nil
}

func (lm *LibraryManager) ListMembers() ([]*Member, error) {
	return lm.withStatus(lm.db.ListMembers())
}

func (lm *LibraryManager) SearchMembersByName(name string) ([]*Member, error) {
	return lm.withStatus(lm.db.SearchMembersByName(name))
}

func (lm *LibraryManager) UpdateMember(id int64, in MemberInput) error {
	return lm.db.UpdateMember(id, in)
}

func (lm *LibraryManager) DeleteMember(id int64) error { return lm.db.DeleteMember(id) }
func (lm *LibraryManager) MemberCount() (int, error)   { return lm.db.MemberCount() }

// MemberStatus is a member together with their open loans.
type MemberStatus struct {
	Member      *Member `json:"member"`
	Suspended   bool    `json:"suspended"`
	ActiveLoans []*Loan `json:"active_loans"`
}

// MemberStatus reports whether memberID may borrow and what they hold.
func (lm *LibraryManager) MemberStatus(ctx context.Context, memberID int64) (*MemberStatus, error) {
	m, err := lm.GetMember(memberID)
	if err != nil {
		return nil, err
	}
	loans, err := lm.db.ActiveLoansByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("active loans: %w", err)
	}
	return &MemberStatus{Member: m, Suspended: lm.engine.IsSuspended(m), ActiveLoans: loans}, nil
}

// ------------------ Circulation ------------------

func (lm *LibraryManager) IssueLoan(ctx context.Context, bookID, memberID int64, periodDays int) (int64, error) {
	return lm.engine.IssueLoan(ctx, bookID, memberID, periodDays)
}

func (lm *LibraryManager) ReturnLoan(ctx context.Context, loanID int64) (*ReturnReceipt, error) {
	return lm.engine.ReturnLoan(ctx, loanID)
}

func (lm *LibraryManager) CheckLoanOverdue(ctx context.Context, loanID int64) (*Loan, bool, int, error) {
	return lm.engine.CheckLoanOverdue(ctx, loanID)
}

func (lm *LibraryManager) MemberOverdueDays(ctx context.Context, memberID int64) (int, error) {
	return lm.engine.MemberOverdueDays(ctx, memberID)
}

func (lm *LibraryManager) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	return lm.db.GetLoan(ctx, id)
}

func (lm *LibraryManager) GetReturnByLoan(ctx context.Context, loanID int64) (*Return, error) {
	return lm.db.GetReturnByLoan(ctx, loanID)
}

func (lm *LibraryManager) ActiveLoansByMember(ctx context.Context, memberID int64) ([]*Loan, error) {
	return lm.db.ActiveLoansByMember(ctx, memberID)
}

func (lm *LibraryManager) ActiveLoansByBook(ctx context.Context, bookID int64) ([]*Loan, error) {
	return lm.db.ActiveLoansByBook(ctx, bookID)
}

func (lm *LibraryManager) LoanHistoryByMember(ctx context.Context, memberID int64, limit int) ([]*Loan, error) {
	return lm.db.LoanHistoryByMember(ctx, memberID, limit)
}

func (lm *LibraryManager) LoanHistoryByBook(ctx context.Context, bookID int64, limit int) ([]*Loan, error) {
	return lm.db.LoanHistoryByBook(ctx, bookID, limit)
}

func (lm *LibraryManager) OverdueLoans(ctx context.Context, limit int) ([]*Loan, error) {
	return lm.db.OverdueLoans(ctx, lm.clock(), limit)
}

// ------------------ Reports ------------------

func (lm *LibraryManager) PopularBooks(ctx context.Context, limit int) ([]PopularBook, error) {
	return lm.reports.PopularBooks(ctx, limit)
}

func (lm *LibraryManager) ActiveLoanReport(ctx context.Context) ([]LoanLine, error) {
	return lm.reports.ActiveLoanReport(ctx)
}

func (lm *LibraryManager) OverdueReport(ctx context.Context) ([]LoanLine, error) {
	return lm.reports.OverdueReport(ctx)
}

func (lm *LibraryManager) OverdueMemberCount(ctx context.Context) (int, error) {
	return lm.reports.OverdueMemberCount(ctx)
}

func (lm *LibraryManager) Statistics(ctx context.Context) (*Statistics, error) {
	return lm.reports.Statistics(ctx)
}

// ------------------ Utilities ------------------

// PrettyBook formats a book for lists.
func PrettyBook(b *Book) string {
	return fmt.Sprintf("%-5d %-30s %-25s %-15s %3d/%-3d", b.ID, truncate(b.Title, 30), truncate(b.Author, 25), b.ISBN, b.Available, b.Quantity)
}

// PrettyLoan formats a loan for lists.
func PrettyLoan(l *Loan) string {
	return fmt.Sprintf("%-6d %-6d %-6d %-10s %-10s %s", l.ID, l.BookID, l.MemberID, l.LoanDate, l.DueDate, l.State())
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
