package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"library-circulation/library"
)

// menu carries the state of one interactive session.
type menu struct {
	in  io.Reader
	sc  *bufio.Scanner
	out io.Writer
	mgr *library.LibraryManager
	ctx context.Context
}

func runMenu(in io.Reader, out io.Writer, mgr *library.LibraryManager) {
	m := &menu{in: in, sc: bufio.NewScanner(in), out: out, mgr: mgr, ctx: context.Background()}

	fmt.Fprintln(out, "Welcome to the Library Circulation System!")
	fmt.Fprintf(out, "Today is %s.\n", mgr.Today())
	m.printHelp()

	for {
		fmt.Fprint(out, "\n> ")
		if !m.sc.Scan() {
			break
		}
		cmd := strings.ToLower(strings.TrimSpace(m.sc.Text()))

		switch cmd {
		case "":
			continue
		case "add book":
			m.handleAddBook()
		case "list books":
			m.handleListBooks()
		case "search book":
			m.handleSearchBooks(m.mgr.SearchBooks, "Keyword")
		case "search genre":
			m.handleSearchBooks(m.mgr.SearchBooksByGenre, "Genre")
		case "search author":
			m.handleSearchBooks(m.mgr.SearchBooksByAuthor, "Author")
		case "update book":
			m.handleUpdateBook()
		case "delete book":
			m.handleDeleteBook()
		case "add member":
			m.handleAddMember()
		case "list members":
			m.handleListMembers()
		case "search member":
			m.handleSearchMembers()
		case "update member":
			m.handleUpdateMember()
		case "delete member":
			m.handleDeleteMember()
		case "reset password":
			m.handleResetPassword()
		case "issue", "checkout":
			m.handleIssue()
		case "return":
			m.handleReturn()
		case "check loan":
			m.handleCheckLoan()
		case "member status":
			m.handleMemberStatus()
		case "loan history":
			m.handleLoanHistory()
		case "popular":
			m.report("popular")
		case "active loans":
			m.report("active")
		case "overdue":
			m.report("overdue")
		case "stats":
			m.report("stats")
		case "help":
			m.printHelp()
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return
		default:
			fmt.Fprintln(out, "Unknown command. Type 'help' to list commands.")
		}
	}
}

func (m *menu) printHelp() {
	fmt.Fprintln(m.out, "Available commands:")
	fmt.Fprintln(m.out, "  Books: add book, list books, search book, search genre, search author, update book, delete book")
	fmt.Fprintln(m.out, "  Members: add member, list members, search member, update member, delete member, reset password")
	fmt.Fprintln(m.out, "  Circulation: issue, return, check loan, member status, loan history")
	fmt.Fprintln(m.out, "  Reports: popular, active loans, overdue, stats")
	fmt.Fprintln(m.out, "  System: help, exit")
}

// ------------------ input helpers ------------------

func (m *menu) prompt(label string) (string, bool) {
	fmt.Fprintf(m.out, "%s: ", label)
	if !m.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.sc.Text()), true
}

// promptDefault keeps current when the answer is empty.
func (m *menu) promptDefault(label, current string) (string, bool) {
	s, ok := m.prompt(fmt.Sprintf("%s [%s]", label, current))
	if ok && s == "" {
		s = current
	}
	return s, ok
}

func (m *menu) promptID(kind string) (int64, bool) {
	s, ok := m.prompt(kind + " ID")
	if !ok {
		return 0, false
	}
	id, err := parseID(strings.ToLower(kind), s)
	if err != nil {
		fmt.Fprintln(m.out, err)
		return 0, false
	}
	return id, true
}

func (m *menu) promptInt(label string, def int) (int, bool) {
	s, ok := m.prompt(fmt.Sprintf("%s [%d]", label, def))
	if !ok {
		return 0, false
	}
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		fmt.Fprintf(m.out, "Invalid number: %s\n", s)
		return 0, false
	}
	return n, true
}

// readPassword reads a password with masking when input is a terminal and
// falls back to a plain line otherwise.
func (m *menu) readPassword(prompt string) (string, error) {
	f, isFile := m.in.(*os.File)
	if !isFile || !term.IsTerminal(int(f.Fd())) {
		s, ok := m.prompt(strings.TrimSuffix(prompt, ": "))
		if !ok {
			return "", io.EOF
		}
		return s, nil
	}
	fmt.Fprint(m.out, prompt)
	bytePassword, err := term.ReadPassword(int(f.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(m.out) // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

// authenticate prompts for and verifies a member's password.
func (m *menu) authenticate(memberID int64) error {
	password, err := m.readPassword("Enter member password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	return m.mgr.AuthenticateMember(memberID, password)
}

// explain turns engine errors into the message shown at the prompt.
func explain(err error) string {
	switch {
	case errors.Is(err, library.ErrMemberSuspended):
		return "Member is suspended: " + err.Error()
	case errors.Is(err, library.ErrBookUnavailable):
		return "No copy available: " + err.Error()
	case errors.Is(err, library.ErrAlreadyReturned):
		return "Loan was already returned"
	case errors.Is(err, library.ErrNotFound):
		return "Not found: " + err.Error()
	case errors.Is(err, library.ErrHasLoanHistory):
		return "Cannot delete: " + err.Error()
	case errors.Is(err, library.ErrStorageFailure):
		return "Storage failure, nothing was changed: " + err.Error()
	}
	return "Error: " + err.Error()
}

// ------------------ books ------------------

func (m *menu) readBookInput(current library.BookInput) (library.BookInput, bool) {
	var (
		in library.BookInput
		ok bool
	)
	if in.Title, ok = m.promptDefault("Title", current.Title); !ok {
		return in, false
	}
	if in.Author, ok = m.promptDefault("Author", current.Author); !ok {
		return in, false
	}
	if in.Publisher, ok = m.promptDefault("Publisher", current.Publisher); !ok {
		return in, false
	}
	if in.Year, ok = m.promptInt("Publication year", current.Year); !ok {
		return in, false
	}
	if in.ISBN, ok = m.promptDefault("ISBN", current.ISBN); !ok {
		return in, false
	}
	if in.Genre, ok = m.promptDefault("Genre", current.Genre); !ok {
		return in, false
	}
	if in.Quantity, ok = m.promptInt("Quantity", max(current.Quantity, 1)); !ok {
		return in, false
	}
	return in, true
}

func (m *menu) handleAddBook() {
	in, ok := m.readBookInput(library.BookInput{})
	if !ok {
		return
	}
	id, err := m.mgr.AddBook(in)
	if err != nil {
		fmt.Fprintf(m.out, "Error adding book: %v\n", err)
		return
	}
	fmt.Fprintf(m.out, "Added book ID %d with %d copies.\n", id, in.Quantity)
}

func (m *menu) printBooks(books []*library.Book) {
	fmt.Fprintf(m.out, "%-5s %-30s %-25s %-15s %s\n", "ID", "Title", "Author", "ISBN", "Avail/Qty")
	fmt.Fprintln(m.out, strings.Repeat("-", 90))
	for _, b := range books {
		fmt.Fprintln(m.out, library.PrettyBook(b))
	}
}

func (m *menu) handleListBooks() {
	books, err := m.mgr.ListBooks()
	if err != nil {
		fmt.Fprintf(m.out, "Error: %v\n", err)
		return
	}
	if len(books) == 0 {
		fmt.Fprintln(m.out, "No books in library.")
		return
	}
	m.printBooks(books)
}

func (m *menu) handleSearchBooks(search func(string) ([]*library.Book, error), label string) {
	query, ok := m.prompt(label)
	if !ok {
		return
	}
	books, err := search(query)
	if err != nil {
		fmt.Fprintf(m.out, "Error: %v\n", err)
		return
	}
	if len(books) == 0 {
		fmt.Fprintf(m.out, "No books found matching '%s'.\n", query)
		return
	}
	fmt.Fprintf(m.out, "Found %d book(s) matching '%s':\n", len(books), query)
	m.printBooks(books)
}

func (m *menu) handleUpdateBook() {
	id, ok := m.promptID("Book")
	if !ok {
		return
	}
	b, err := m.mgr.GetBook(id)
	if err != nil {
		fmt.Fprintln(m.out, explain(err))
		return
	}
	fmt.Fprintln(m.out, "Press Enter to keep the current value.")
	in, ok := m.readBookInput(library.BookInput{
		Title: b.Title, Author: b.Author, Publisher: b.Publisher, Year: b.Year,
		ISBN: b.ISBN, Genre: b.Genre, Quantity: b.Quantity,
	})
	if !ok {
		return
	}
	if err := m.mgr.UpdateBook(id, in); err != nil {
		fmt.Fprintf(m.out, "Error updating book: %v\n", err)
		return
	}
	fmt.Fprintf(m.out, "Book %d updated.\n", id)
}

func (m *menu) handleDeleteBook() {
	id, ok := m.promptID("Book")
	if !ok {
		return
	}
	if err := m.mgr.DeleteBook(id); err != nil {
		fmt.Fprintln(m.out, explain(err))
		return
	}
	fmt.Fprintf(m.out, "Book %d deleted.\n", id)
}

// ------------------ members ------------------

func (m *menu) readMemberInput(current library.MemberInput) (library.MemberInput, bool) {
	var (
		in library.MemberInput
		ok bool
	)
	if in.Name, ok = m.promptDefault("Name", current.Name); !ok {
		return in, false
	}
	if in.Phone, ok = m.promptDefault("Phone", current.Phone); !ok {
		return in, false
	}
	if in.Address, ok = m.promptDefault("Address", current.Address); !ok {
		return in, false
	}
	return in, true
}

func (m *menu) handleAddMember() {
	in, ok := m.readMemberInput(library.MemberInput{})
	if !ok {
		return
	}
	password, err := m.readPassword(fmt.Sprintf("Enter password for %s: ", in.Name))
	if err != nil {
		fmt.Fprintf(m.out, "Error reading password: %v\n", err)
		return
	}
	id, err := m.mgr.AddMember(in, password)
	if err != nil {
		fmt.Fprintf(m.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(m.out, "Added member '%s' with ID %d\n", in.Name, id)
}

func (m *menu) printMembers(members []*library.Member) {
	fmt.Fprintf(m.out, "%-5s %-30s %-15s %-10s %s\n", "ID", "Name", "Phone", "Overdue", "Suspended until")
	fmt.Fprintln(m.out, strings.Repeat("-", 80))
	for _, mem := range members {
		until := "-"
		if !mem.SuspendedUntil.IsZero() {
			until = mem.SuspendedUntil.String()
		}
		fmt.Fprintf(m.out, "%-5d %-30s %-15s %-10d %s\n", mem.ID, truncateString(mem.Name, 30), mem.Phone, mem.OverdueDays, until)
	}
}

func (m *menu) handleListMembers() {
	members, err := m.mgr.ListMembers()
	if err != nil {
		fmt.Fprintf(m.out, "Error: %v\n", err)
		return
	}
	if len(members) == 0 {
		fmt.Fprintln(m.out, "No members registered.")
		return
	}
	m.printMembers(members)
	if n, err := m.mgr.MemberCount(); err == nil {
		fmt.Fprintf(m.out, "\nTotal members: %d\n", n)
	}
}

func (m *menu) handleSearchMembers() {
	name, ok := m.prompt("Name")
	if !ok {
		return
	}
	members, err := m.mgr.SearchMembersByName(name)
	if err != nil {
		fmt.Fprintf(m.out, "Error: %v\n", err)
		return
	}
	if len(members) == 0 {
		fmt.Fprintf(m.out, "No members found matching '%s'.\n", name)
		return
	}
	m.printMembers(members)
}

func (m *menu) handleUpdateMember() {
	id, ok := m.promptID("Member")
	if !ok {
		return
	}
	cur, err := m.mgr.GetMember(id)
	if err != nil {
		fmt.Fprintln(m.out, explain(err))
		return
	}
	fmt.Fprintln(m.out, "Press Enter to keep the current value.")
	in, ok := m.readMemberInput(library.MemberInput{Name: cur.Name, Phone: cur.Phone, Address: cur.Address})
	if !ok {
		return
	}
	if err := m.mgr.UpdateMember(id, in); err != nil {
		fmt.Fprintf(m.out, "Error updating member: %v\n", err)
		return
	}
	fmt.Fprintf(m.out, "Member %d updated.\n", id)
}

func (m *menu) handleDeleteMember() {
	id, ok := m.promptID("Member")
	if !ok {
		return
	}
	if err := m.mgr.DeleteMember(id); err != nil {
		fmt.Fprintln(m.out, explain(err))
		return
	}
	fmt.Fprintf(m.out, "Member %d deleted.\n", id)
}

func (m *menu) handleResetPassword() {
	id, ok := m.promptID("Member")
	if !ok {
		return
	}
	member, err := m.mgr.GetMember(id)
	if err != nil {
		fmt.Fprintf(m.out, "Error: Member with ID %d not found\n", id)
		return
	}
	newPassword, err := m.readPassword(fmt.Sprintf("Enter new password for %s (ID: %d): ", member.Name, id))
	if err != nil {
		fmt.Fprintf(m.out, "Error reading password: %v\n", err)
		return
	}
	if err := m.mgr.ResetMemberPassword(id, newPassword); err != nil {
		fmt.Fprintf(m.out, "Error resetting password: %v\n", err)
		return
	}
	fmt.Fprintf(m.out, "Password successfully reset for %s (ID: %d)\n", member.Name, id)
}

// ------------------ circulation ------------------

func (m *menu) handleIssue() {
	bookID, ok := m.promptID("Book")
	if !ok {
		return
	}
	memberID, ok := m.promptID("Member")
	if !ok {
		return
	}
	days, ok := m.promptInt("Loan period in days (0 for default)", 0)
	if !ok {
		return
	}

	if err := m.authenticate(memberID); err != nil {
		fmt.Fprintf(m.out, "Authentication failed: %v\n", err)
		return
	}

	loanID, err := m.mgr.IssueLoan(m.ctx, bookID, memberID, days)
	if err != nil {
		fmt.Fprintln(m.out, explain(err))
		return
	}

	loan, err := m.mgr.GetLoan(m.ctx, loanID)
	if err != nil {
		fmt.Fprintf(m.out, "Loan %d issued.\n", loanID)
		return
	}
	book, _ := m.mgr.GetBook(bookID)
	member, _ := m.mgr.GetMember(memberID)
	if book != nil && member != nil {
		fmt.Fprintf(m.out, "Book '%s' loaned to %s.\n", book.Title, member.Name)
	}
	fmt.Fprintf(m.out, "Loan ID %d, due %s.\n", loan.ID, loan.DueDate)
}

func (m *menu) handleReturn() {
	loanID, ok := m.promptID("Loan")
	if !ok {
		return
	}
	loan, err := m.mgr.GetLoan(m.ctx, loanID)
	if err != nil {
		fmt.Fprintln(m.out, explain(err))
		return
	}

	if err := m.authenticate(loan.MemberID); err != nil {
		fmt.Fprintf(m.out, "Authentication failed: %v\n", err)
		return
	}

	receipt, err := m.mgr.ReturnLoan(m.ctx, loanID)
	if err != nil {
		fmt.Fprintln(m.out, explain(err))
		return
	}
	printReceipt(m.out, receipt)
}

func (m *menu) handleCheckLoan() {
	loanID, ok := m.promptID("Loan")
	if !ok {
		return
	}
	loan, overdue, days, err := m.mgr.CheckLoanOverdue(m.ctx, loanID)
	if err != nil {
		fmt.Fprintln(m.out, explain(err))
		return
	}
	printLoanStatus(m.out, loan, overdue, days)
	if loan.IsReturned {
		if ret, err := m.mgr.GetReturnByLoan(m.ctx, loanID); err == nil {
			fmt.Fprintf(m.out, "Returned %s, %d day(s) late\n", ret.ReturnDate, ret.OverdueDays)
		}
	}
}

func (m *menu) handleMemberStatus() {
	memberID, ok := m.promptID("Member")
	if !ok {
		return
	}
	st, err := m.mgr.MemberStatus(m.ctx, memberID)
	if err != nil {
		fmt.Fprintln(m.out, explain(err))
		return
	}
	printMemberStatus(m.out, st)
}

func (m *menu) handleLoanHistory() {
	choice, ok := m.prompt("History for (b)ook or (m)ember")
	if !ok {
		return
	}

	var (
		loans []*library.Loan
		err   error
	)
	switch strings.ToLower(choice) {
	case "b", "book":
		id, ok := m.promptID("Book")
		if !ok {
			return
		}
		loans, err = m.mgr.LoanHistoryByBook(m.ctx, id, 20)
	case "m", "member":
		id, ok := m.promptID("Member")
		if !ok {
			return
		}
		loans, err = m.mgr.LoanHistoryByMember(m.ctx, id, 20)
	default:
		fmt.Fprintln(m.out, "Enter 'b' or 'm'.")
		return
	}
	if err != nil {
		fmt.Fprintf(m.out, "Error: %v\n", err)
		return
	}
	if len(loans) == 0 {
		fmt.Fprintln(m.out, "No loans recorded.")
		return
	}
	printLoans(m.out, loans)
}

// ------------------ reports ------------------

func (m *menu) report(name string) {
	var err error
	switch name {
	case "popular":
		var rows []library.PopularBook
		if rows, err = m.mgr.PopularBooks(m.ctx, 10); err == nil {
			printPopular(m.out, rows)
		}
	case "active":
		var rows []library.LoanLine
		if rows, err = m.mgr.ActiveLoanReport(m.ctx); err == nil {
			printLoanLines(m.out, rows)
		}
	case "overdue":
		var rows []library.LoanLine
		if rows, err = m.mgr.OverdueReport(m.ctx); err == nil {
			printLoanLines(m.out, rows)
			if n, err := m.mgr.OverdueMemberCount(m.ctx); err == nil {
				fmt.Fprintf(m.out, "\nMembers with overdue loans: %d\n", n)
			}
		}
	case "stats":
		var s *library.Statistics
		if s, err = m.mgr.Statistics(m.ctx); err == nil {
			printStatistics(m.out, s)
		}
	}
	if err != nil {
		fmt.Fprintf(m.out, "Error: %v\n", err)
	}
}
