package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"library-circulation/library"
)

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", kind, s)
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	b, err := jsoniter.ConfigFastest.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// ------------------ loan ------------------

func newLoanCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loan",
		Short: "Issue, return and inspect loans",
	}

	var days int
	issue := &cobra.Command{
		Use:   "issue BOOK_ID MEMBER_ID",
		Short: "Lend a copy of a book to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			memberID, err := parseID("member", args[1])
			if err != nil {
				return err
			}
			return withManager(opts, func(mgr *library.LibraryManager) error {
				loanID, err := mgr.IssueLoan(cmd.Context(), bookID, memberID, days)
				if err != nil {
					return err
				}
				loan, err := mgr.GetLoan(cmd.Context(), loanID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Loan %d issued, due %s\n", loan.ID, loan.DueDate)
				return nil
			})
		},
	}
	issue.Flags().IntVar(&days, "days", 0, "loan period in days (default: --loan-period)")

	ret := &cobra.Command{
		Use:   "return LOAN_ID",
		Short: "Return a loaned copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loanID, err := parseID("loan", args[0])
			if err != nil {
				return err
			}
			return withManager(opts, func(mgr *library.LibraryManager) error {
				receipt, err := mgr.ReturnLoan(cmd.Context(), loanID)
				if err != nil {
					return err
				}
				printReceipt(cmd.OutOrStdout(), receipt)
				return nil
			})
		},
	}

	var asJSON bool
	status := &cobra.Command{
		Use:   "status LOAN_ID",
		Short: "Show a loan and whether it is overdue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loanID, err := parseID("loan", args[0])
			if err != nil {
				return err
			}
			return withManager(opts, func(mgr *library.LibraryManager) error {
				loan, overdue, days, err := mgr.CheckLoanOverdue(cmd.Context(), loanID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), struct {
						*library.Loan
						State       library.LoanState `json:"state"`
						Overdue     bool              `json:"overdue"`
						OverdueDays int               `json:"overdue_days"`
					}{loan, loan.State(), overdue, days})
				}
				printLoanStatus(cmd.OutOrStdout(), loan, overdue, days)
				return nil
			})
		},
	}
	status.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	cmd.AddCommand(issue, ret, status)
	return cmd
}

func printReceipt(w io.Writer, r *library.ReturnReceipt) {
	fmt.Fprintf(w, "Loan %d returned on %s (return %d)\n", r.LoanID, r.ReturnDate, r.ReturnID)
	if r.OverdueDays > 0 {
		fmt.Fprintf(w, "Returned %d day(s) late: member %d suspended for %d day(s)\n", r.OverdueDays, r.MemberID, r.SuspensionDays)
	} else {
		fmt.Fprintln(w, "Returned on time")
	}
}

func printLoanStatus(w io.Writer, loan *library.Loan, overdue bool, days int) {
	fmt.Fprintf(w, "Loan %d: book %d, member %d\n", loan.ID, loan.BookID, loan.MemberID)
	fmt.Fprintf(w, "Loaned %s, due %s, %s\n", loan.LoanDate, loan.DueDate, loan.State())
	switch {
	case loan.IsReturned:
		fmt.Fprintln(w, "Already returned")
	case overdue:
		fmt.Fprintf(w, "Overdue by %d day(s); returning today earns a %d day suspension\n", days, library.SuspensionDays(days))
	default:
		fmt.Fprintln(w, "Not overdue")
	}
}

// ------------------ member ------------------

func newMemberCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Inspect members",
	}

	var asJSON bool
	status := &cobra.Command{
		Use:   "status MEMBER_ID",
		Short: "Show whether a member may borrow and what they hold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, err := parseID("member", args[0])
			if err != nil {
				return err
			}
			return withManager(opts, func(mgr *library.LibraryManager) error {
				st, err := mgr.MemberStatus(cmd.Context(), memberID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), st)
				}
				printMemberStatus(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
	status.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	cmd.AddCommand(status)
	return cmd
}

func printMemberStatus(w io.Writer, st *library.MemberStatus) {
	m := st.Member
	fmt.Fprintf(w, "Member %d: %s (registered %s)\n", m.ID, m.Name, m.RegistrationDate)
	if st.Suspended {
		fmt.Fprintln(w, "Status: SUSPENDED")
	} else {
		fmt.Fprintln(w, "Status: may borrow")
	}
	if m.OverdueDays > 0 {
		fmt.Fprintf(w, "Most overdue loan: %d day(s), %d day(s) suspension if returned today\n", m.OverdueDays, m.SuspensionDays)
	}
	if !m.SuspendedUntil.IsZero() {
		fmt.Fprintf(w, "Last penalty: %d day(s), suspended until %s\n", m.PenaltyDays, m.SuspendedUntil)
	}
	if len(st.ActiveLoans) == 0 {
		fmt.Fprintln(w, "No open loans")
		return
	}
	printLoans(w, st.ActiveLoans)
}

func printLoans(w io.Writer, loans []*library.Loan) {
	fmt.Fprintf(w, "%-6s %-6s %-6s %-10s %-10s %s\n", "Loan", "Book", "Member", "Loaned", "Due", "State")
	fmt.Fprintln(w, strings.Repeat("-", 54))
	for _, l := range loans {
		fmt.Fprintln(w, library.PrettyLoan(l))
	}
}

// ------------------ report ------------------

func newReportCmd(opts *options) *cobra.Command {
	var (
		asJSON bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:       "report popular|active|overdue|stats",
		Short:     "Print a read-only report",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"popular", "active", "overdue", "stats"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, func(mgr *library.LibraryManager) error {
				return runReport(cmd, mgr, args[0], limit, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().IntVar(&limit, "limit", 10, "rows in the popular report")
	return cmd
}

func runReport(cmd *cobra.Command, mgr *library.LibraryManager, name string, limit int, asJSON bool) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	var (
		data any
		err  error
	)
	switch name {
	case "popular":
		data, err = mgr.PopularBooks(ctx, limit)
	case "active":
		data, err = mgr.ActiveLoanReport(ctx)
	case "overdue":
		data, err = mgr.OverdueReport(ctx)
	case "stats":
		data, err = mgr.Statistics(ctx)
	}
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, data)
	}

	switch v := data.(type) {
	case []library.PopularBook:
		printPopular(w, v)
	case []library.LoanLine:
		printLoanLines(w, v)
	case *library.Statistics:
		printStatistics(w, v)
	}
	return nil
}

func printPopular(w io.Writer, rows []library.PopularBook) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No loans recorded yet.")
		return
	}
	fmt.Fprintf(w, "%-4s %-5s %-30s %-25s %s\n", "Rank", "ID", "Title", "Author", "Loans")
	fmt.Fprintln(w, strings.Repeat("-", 75))
	for i, r := range rows {
		fmt.Fprintf(w, "%-4d %-5d %-30s %-25s %d\n", i+1, r.BookID, truncateString(r.Title, 30), truncateString(r.Author, 25), r.LoanCount)
	}
}

func printLoanLines(w io.Writer, rows []library.LoanLine) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No loans to show.")
		return
	}
	fmt.Fprintf(w, "%-6s %-30s %-20s %-10s %-10s %-7s %s\n", "Loan", "Title", "Member", "Loaned", "Due", "Overdue", "Suspension")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, r := range rows {
		fmt.Fprintf(w, "%-6d %-30s %-20s %-10s %-10s %-7d %d\n", r.LoanID, truncateString(r.Title, 30),
			truncateString(r.MemberName, 20), r.LoanDate, r.DueDate, r.OverdueDays, r.SuspensionDays)
	}
}

func printStatistics(w io.Writer, s *library.Statistics) {
	fmt.Fprintf(w, "Books:            %d\n", s.Books)
	fmt.Fprintf(w, "Copies:           %d (%d on the shelf)\n", s.Copies, s.AvailableCopies)
	fmt.Fprintf(w, "Members:          %d\n", s.Members)
	fmt.Fprintf(w, "Open loans:       %d (%d overdue)\n", s.ActiveLoans, s.OverdueLoans)
	fmt.Fprintf(w, "Loans all time:   %d\n", s.TotalLoans)
	fmt.Fprintf(w, "Returns:          %d\n", s.Returns)
}

func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	return string(r[:maxLength-3]) + "..."
}
