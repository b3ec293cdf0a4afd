package library

import "library-circulation/library/calendar"

// Book represents a catalog title and how many of its copies are on the shelf.
// Invariant: 0 <= Available <= Quantity.
type Book struct {
	ID        int64  `json:"id" db:"book_id"`
	Title     string `json:"title" db:"title"`
	Author    string `json:"author" db:"author"`
	Publisher string `json:"publisher" db:"publisher"`
	Year      int    `json:"year" db:"publication_year"`
	ISBN      string `json:"isbn" db:"isbn"`
	Genre     string `json:"genre" db:"genre"`
	Quantity  int    `json:"quantity" db:"quantity"`
	Available int    `json:"available" db:"available"`
}

// BookInput carries the editable catalog fields of a Book.
type BookInput struct {
	Title     string
	Author    string
	Publisher string
	Year      int
	ISBN      string
	Genre     string
	Quantity  int
}

// Member represents a registered library member.
//
// OverdueDays and SuspensionDays are derived from the member's open loans
// each time the member is read; they are never stored.
type Member struct {
	ID               int64         `json:"id"`
	Name             string        `json:"name"`
	Phone            string        `json:"phone"`
	Address          string        `json:"address"`
	RegistrationDate calendar.Date `json:"registration_date"`
	PasswordHash     string        `json:"-"` // Don't serialize password hash

	// Penalty state written by return processing.
	PenaltyDays    int           `json:"penalty_days"`
	SuspendedUntil calendar.Date `json:"suspended_until"`

	OverdueDays    int `json:"overdue_days"`
	SuspensionDays int `json:"suspension_days"`
}

// MemberInput carries the editable fields of a Member.
type MemberInput struct {
	Name    string
	Phone   string
	Address string
}

// LoanState is the lifecycle position of a Loan.
type LoanState string

const (
	LoanOpen     LoanState = "OPEN"
	LoanReturned LoanState = "RETURNED"
)

// Loan records one copy of a book lent to a member. Only IsReturned ever
// changes after insert.
type Loan struct {
	ID         int64         `json:"id" db:"loan_id"`
	BookID     int64         `json:"book_id" db:"book_id"`
	MemberID   int64         `json:"member_id" db:"member_id"`
	LoanDate   calendar.Date `json:"loan_date" db:"loan_date"`
	DueDate    calendar.Date `json:"due_date" db:"due_date"`
	IsReturned bool          `json:"is_returned" db:"is_returned"`
}

// State reports whether the loan is open or returned.
func (l *Loan) State() LoanState {
	if l.IsReturned {
		return LoanReturned
	}
	return LoanOpen
}

// Return is the immutable record written when a Loan is closed.
type Return struct {
	ID          int64         `json:"id" db:"return_id"`
	LoanID      int64         `json:"loan_id" db:"loan_id"`
	ReturnDate  calendar.Date `json:"return_date" db:"return_date"`
	OverdueDays int           `json:"overdue_days" db:"overdue_days"`
}

// ReturnReceipt summarises a completed return for callers that want to show
// the penalty outcome.
type ReturnReceipt struct {
	ReturnID       int64         `json:"return_id"`
	LoanID         int64         `json:"loan_id"`
	BookID         int64         `json:"book_id"`
	MemberID       int64         `json:"member_id"`
	ReturnDate     calendar.Date `json:"return_date"`
	OverdueDays    int           `json:"overdue_days"`
	SuspensionDays int           `json:"suspension_days"`
}
