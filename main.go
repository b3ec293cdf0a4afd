package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"library-circulation/library"
	"library-circulation/library/calendar"
)

const dbFile = "library.db"

// options are the persistent flags shared by every command.
type options struct {
	dbPath     string
	logPath    string
	logLevel   string
	loanPeriod int
	minYear    int
	maxYear    int
	today      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cleanup := func() {}

	root := &cobra.Command{
		Use:          "library",
		Short:        "Library circulation: books, members, loans and returns",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c, err := setupLogger(cmd.ErrOrStderr(), opts.logPath, opts.logLevel)
			if err != nil {
				return err
			}
			cleanup = c
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) { cleanup() },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(opts, func(mgr *library.LibraryManager) error {
				runMenu(cmd.InOrStdin(), cmd.OutOrStdout(), mgr)
				return nil
			})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.dbPath, "db", "d", dbFile, "SQLite database path")
	pf.StringVarP(&opts.logPath, "log", "l", "", "log file path (default: warnings on stderr only)")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.IntVar(&opts.loanPeriod, "loan-period", library.DefaultLoanPeriod, "default loan period in days")
	pf.IntVar(&opts.minYear, "min-year", calendar.DefaultBounds.MinYear, "earliest year accepted in dates")
	pf.IntVar(&opts.maxYear, "max-year", calendar.DefaultBounds.MaxYear, "latest year accepted in dates")
	pf.StringVar(&opts.today, "today", "", "treat this YYYY-MM-DD date as today")

	root.AddCommand(
		newMenuCmd(opts),
		newLoanCmd(opts),
		newMemberCmd(opts),
		newReportCmd(opts),
	)
	return root
}

// openManager builds a LibraryManager from the persistent flags.
func openManager(opts *options) (*library.LibraryManager, error) {
	bounds := calendar.Bounds{MinYear: opts.minYear, MaxYear: opts.maxYear}
	if bounds.MinYear > bounds.MaxYear {
		return nil, fmt.Errorf("--min-year %d is after --max-year %d", bounds.MinYear, bounds.MaxYear)
	}

	cfg := library.Config{
		DBPath:         opts.dbPath,
		LoanPeriodDays: opts.loanPeriod,
		DateBounds:     bounds,
		Logger:         slog.Default(),
	}
	if opts.today != "" {
		today, err := bounds.Parse(opts.today)
		if err != nil {
			return nil, fmt.Errorf("--today: %w", err)
		}
		cfg.Clock = func() calendar.Date { return today }
	}

	mgr, err := library.NewLibraryManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return mgr, nil
}

func withManager(opts *options, fn func(*library.LibraryManager) error) error {
	mgr, err := openManager(opts)
	if err != nil {
		return err
	}
	defer mgr.Close()
	return fn(mgr)
}

func newMenuCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Run the interactive text menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(opts, func(mgr *library.LibraryManager) error {
				runMenu(cmd.InOrStdin(), cmd.OutOrStdout(), mgr)
				return nil
			})
		},
	}
}
