package library

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"library-circulation/library/calendar"
)

const (
	// DefaultLoanPeriod is used whenever a caller asks for a period <= 0.
	DefaultLoanPeriod = 14

	// suspensionFactor converts overdue days into suspension days.
	suspensionFactor = 2
)

// SuspensionDays returns the suspension earned by a return overdue days late.
func SuspensionDays(overdue int) int {
	if overdue <= 0 {
		return 0
	}
	return overdue * suspensionFactor
}

// Catalog reads and moves the available-copy count of books.
type Catalog interface {
	BookAvailable(ctx context.Context, q DBTX, bookID int64) (int, error)
	SetBookAvailable(ctx context.Context, q DBTX, bookID int64, delta int) error
}

// Penalties reads and writes member penalty state.
type Penalties interface {
	MemberPenalty(ctx context.Context, q DBTX, memberID int64) (PenaltyState, error)
	MemberOverdueSnapshot(ctx context.Context, q DBTX, memberID int64, today calendar.Date) (int, error)
	ApplySuspension(ctx context.Context, q DBTX, memberID int64, days int, from calendar.Date) error
}

// Clock returns the current calendar date.
type Clock func() calendar.Date

// Circulation issues and returns loans. Every operation runs in one write
// transaction; nothing is cached between calls.
type Circulation struct {
	db         *Database
	catalog    Catalog
	penalties  Penalties
	logger     *slog.Logger
	clock      Clock
	loanPeriod int
}

// Option configures a Circulation.
type Option func(*Circulation)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Circulation) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces calendar.Today as the source of the current date.
func WithClock(clock Clock) Option {
	return func(c *Circulation) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLoanPeriod sets the period substituted for non-positive requests.
func WithLoanPeriod(days int) Option {
	return func(c *Circulation) {
		if days > 0 {
			c.loanPeriod = days
		}
	}
}

// WithCatalog replaces the book accessor. The default is the Database itself.
func WithCatalog(catalog Catalog) Option {
	return func(c *Circulation) { c.catalog = catalog }
}

// WithPenalties replaces the member penalty accessor. The default is the
// Database itself.
func WithPenalties(penalties Penalties) Option {
	return func(c *Circulation) { c.penalties = penalties }
}

// NewCirculation builds an engine over db.
func NewCirculation(db *Database, opts ...Option) *Circulation {
	c := &Circulation{
		db:         db,
		catalog:    db,
		penalties:  db,
		logger:     slog.Default(),
		clock:      calendar.Today,
		loanPeriod: DefaultLoanPeriod,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Today returns the engine's current date.
func (c *Circulation) Today() calendar.Date { return c.clock() }

// isDomainErr reports whether err is a precondition failure rather than a
// storage problem.
func isDomainErr(err error) bool {
	for _, target := range []error{ErrNotFound, ErrBookUnavailable, ErrMemberSuspended, ErrAlreadyReturned, ErrInvalidInput} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classify passes precondition failures through and wraps anything else as a
// StorageError.
func classify(op string, err error) error {
	if isDomainErr(err) {
		return err
	}
	return storageErr(op, err)
}

// finish logs the outcome of a failed operation and returns err unchanged.
// The caller's deferred Rollback discards every write made so far.
func finish(log *slog.Logger, err error) error {
	if errors.Is(err, ErrStorageFailure) {
		log.Error("operation rolled back", "error", err)
	} else {
		log.Info("operation refused", "error", err)
	}
	return err
}

// IssueLoan lends one copy of bookID to memberID for periodDays and returns
// the new loan id. A non-positive period is replaced by the default.
//
// Checks run in order and the first failure wins: the member must exist and
// not be suspended, then the book must exist and have a copy available.
func (c *Circulation) IssueLoan(ctx context.Context, bookID, memberID int64, periodDays int) (int64, error) {
	log := c.logger.With("op", "issue_loan", "op_id", uuid.NewString(), "book_id", bookID, "member_id", memberID)

	if periodDays <= 0 {
		periodDays = c.loanPeriod
	}

	tx, err := c.db.beginTx(ctx)
	if err != nil {
		return 0, finish(log, storageErr("begin issue", err))
	}
	defer tx.Rollback()

	today := c.clock()

	penalty, err := c.penalties.MemberPenalty(ctx, tx, memberID)
	if err != nil {
		return 0, finish(log, classify("read penalty", err))
	}
	overdue, err := c.memberOverdueDays(ctx, tx, memberID, today)
	if err != nil {
		return 0, finish(log, err)
	}
	if overdue > 0 {
		return 0, finish(log, errors.Wrapf(ErrMemberSuspended, "member %d has a loan %d days overdue", memberID, overdue))
	}
	if today.Before(penalty.SuspendedUntil) {
		return 0, finish(log, errors.Wrapf(ErrMemberSuspended, "member %d suspended until %s", memberID, penalty.SuspendedUntil))
	}

	available, err := c.catalog.BookAvailable(ctx, tx, bookID)
	if err != nil {
		return 0, finish(log, classify("read availability", err))
	}
	if available <= 0 {
		return 0, finish(log, errors.Wrapf(ErrBookUnavailable, "book %d", bookID))
	}

	due := today.AddDays(periodDays)
	res, err := tx.StmtContext(ctx, c.db.addLoanStmt).ExecContext(ctx, bookID, memberID, today.String(), due.String())
	if err != nil {
		return 0, finish(log, storageErr("insert loan", err))
	}
	loanID, err := res.LastInsertId()
	if err != nil {
		return 0, finish(log, storageErr("insert loan", err))
	}

	if err := c.catalog.SetBookAvailable(ctx, tx, bookID, -1); err != nil {
		return 0, finish(log, classify("decrement availability", err))
	}

	if err := tx.Commit(); err != nil {
		return 0, finish(log, storageErr("commit issue", err))
	}

	log.Info("loan issued", "loan_id", loanID, "loan_date", today, "due_date", due)
	return loanID, nil
}

// ReturnLoan closes loanID as of today. A late return suspends the member for
// twice the overdue days; the suspension is written in the same transaction
// and a failure to write it undoes the whole return.
func (c *Circulation) ReturnLoan(ctx context.Context, loanID int64) (*ReturnReceipt, error) {
	log := c.logger.With("op", "return_loan", "op_id", uuid.NewString(), "loan_id", loanID)

	tx, err := c.db.beginTx(ctx)
	if err != nil {
		return nil, finish(log, storageErr("begin return", err))
	}
	defer tx.Rollback()

	loan, err := getLoan(ctx, tx, loanID)
	if err != nil {
		return nil, finish(log, err)
	}
	if loan.IsReturned {
		return nil, finish(log, errors.Wrapf(ErrAlreadyReturned, "loan %d", loanID))
	}
	log = log.With("book_id", loan.BookID, "member_id", loan.MemberID)

	today := c.clock()
	overdue := max(0, calendar.DiffDays(loan.DueDate, today))

	res, err := tx.StmtContext(ctx, c.db.addReturnStmt).ExecContext(ctx, loanID, today.String(), overdue)
	if err != nil {
		return nil, finish(log, storageErr("insert return", err))
	}
	returnID, err := res.LastInsertId()
	if err != nil {
		return nil, finish(log, storageErr("insert return", err))
	}

	upd, err := tx.ExecContext(ctx, `UPDATE loans SET is_returned = 1 WHERE loan_id = ? AND is_returned = 0`, loanID)
	if err != nil {
		return nil, finish(log, storageErr("close loan", err))
	}
	if n, err := upd.RowsAffected(); err != nil {
		return nil, finish(log, storageErr("close loan", err))
	} else if n != 1 {
		return nil, finish(log, errors.Wrapf(ErrAlreadyReturned, "loan %d", loanID))
	}

	if err := c.catalog.SetBookAvailable(ctx, tx, loan.BookID, 1); err != nil {
		return nil, finish(log, classify("increment availability", err))
	}

	suspension := SuspensionDays(overdue)
	if suspension > 0 {
		if err := c.penalties.ApplySuspension(ctx, tx, loan.MemberID, suspension, today); err != nil {
			// A return must not commit without its penalty.
			return nil, finish(log, storageErr("apply suspension", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, finish(log, storageErr("commit return", err))
	}

	log.Info("loan returned", "return_id", returnID, "return_date", today,
		"overdue_days", overdue, "suspension_days", suspension)

	return &ReturnReceipt{
		ReturnID:       returnID,
		LoanID:         loanID,
		BookID:         loan.BookID,
		MemberID:       loan.MemberID,
		ReturnDate:     today,
		OverdueDays:    overdue,
		SuspensionDays: suspension,
	}, nil
}

// IsOverdue reports whether an open loan is past due and by how many days.
// Returned loans are never overdue.
func (c *Circulation) IsOverdue(loan *Loan) (bool, int) {
	if loan == nil || loan.IsReturned {
		return false, 0
	}
	days := max(0, calendar.DiffDays(loan.DueDate, c.clock()))
	return days > 0, days
}

// CheckLoanOverdue loads loanID and reports its overdue status.
func (c *Circulation) CheckLoanOverdue(ctx context.Context, loanID int64) (*Loan, bool, int, error) {
	loan, err := getLoan(ctx, c.db.db, loanID)
	if err != nil {
		return nil, false, 0, err
	}
	overdue, days := c.IsOverdue(loan)
	return loan, overdue, days, nil
}

// MemberOverdueDays returns the largest overdue day count over memberID's
// open loans, or 0 when none is late. It is recomputed on every call.
func (c *Circulation) MemberOverdueDays(ctx context.Context, memberID int64) (int, error) {
	if _, err := c.penalties.MemberPenalty(ctx, c.db.db, memberID); err != nil {
		return 0, classify("read penalty", err)
	}
	return c.memberOverdueDays(ctx, c.db.db, memberID, c.clock())
}

func (c *Circulation) memberOverdueDays(ctx context.Context, q DBTX, memberID int64, today calendar.Date) (int, error) {
	dues, err := openDueDates(ctx, q, memberID)
	if err != nil {
		return 0, err
	}
	worst := 0
	for _, due := range dues {
		worst = max(worst, calendar.DiffDays(due, today))
	}
	return worst, nil
}

// FillMemberStatus sets m's derived OverdueDays and SuspensionDays.
func (c *Circulation) FillMemberStatus(ctx context.Context, m *Member) error {
	overdue, err := c.memberOverdueDays(ctx, c.db.db, m.ID, c.clock())
	if err != nil {
		return err
	}
	m.OverdueDays = overdue
	m.SuspensionDays = SuspensionDays(overdue)
	return nil
}

// IsSuspended reports whether m may not borrow today. m's derived fields must
// be filled.
func (c *Circulation) IsSuspended(m *Member) bool {
	return m.OverdueDays > 0 || c.clock().Before(m.SuspendedUntil)
}
