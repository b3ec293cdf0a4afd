package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-circulation/library"
)

// columns expected in the header row, in any order.
var columns = []string{"title", "author", "publisher", "year", "isbn", "genre", "quantity"}

func main() {
	if err := newImportCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newImportCmd() *cobra.Command {
	var (
		dbPath string
		reset  bool
	)
	cmd := &cobra.Command{
		Use:          "import_books FILE.csv",
		Short:        "Bulk-load books from a CSV file",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reset {
				resetDatabase(cmd.OutOrStdout(), dbPath)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			manager, err := library.NewLibraryManager(library.Config{DBPath: dbPath})
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer manager.Close()

			return importBooks(cmd.OutOrStdout(), manager, f)
		},
	}
	cmd.Flags().StringVarP(&dbPath, "db", "d", "library.db", "SQLite database path")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the database files before importing")
	return cmd
}

// resetDatabase removes the database and its WAL side files.
func resetDatabase(out io.Writer, dbPath string) {
	fmt.Fprintln(out, "Cleaning up existing database files...")
	for _, file := range []string{dbPath, dbPath + "-shm", dbPath + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(out, "Warning: Could not remove %s: %v\n", file, err)
		}
	}
	fmt.Fprintln(out, "Database cleanup complete.")
}

// parseHeader maps each expected column to its index in the header row.
func parseHeader(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{"title", "isbn"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing %q column in header", col)
		}
	}
	return idx, nil
}

func recordToBook(idx map[string]int, rec []string) (library.BookInput, error) {
	field := func(name string) string {
		if i, ok := idx[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	in := library.BookInput{
		Title:     field("title"),
		Author:    field("author"),
		Publisher: field("publisher"),
		ISBN:      field("isbn"),
		Genre:     field("genre"),
		Quantity:  1,
	}
	if s := field("year"); s != "" {
		year, err := strconv.Atoi(s)
		if err != nil {
			return in, fmt.Errorf("bad year %q", s)
		}
		in.Year = year
	}
	if s := field("quantity"); s != "" {
		qty, err := strconv.Atoi(s)
		if err != nil {
			return in, fmt.Errorf("bad quantity %q", s)
		}
		in.Quantity = qty
	}
	return in, nil
}

func importBooks(out io.Writer, manager *library.LibraryManager, r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	idx, err := parseHeader(header)
	if err != nil {
		return err
	}

	successCount := 0
	errorCount := 0

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		in, err := recordToBook(idx, rec)
		if err != nil {
			fmt.Fprintf(out, "Line %d: ERROR - %v\n", line, err)
			errorCount++
			continue
		}

		fmt.Fprintf(out, "Importing: %s by %s... ", in.Title, in.Author)
		bookID, err := manager.AddBook(in)
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			slog.Warn("import row rejected", "line", line, "isbn", in.ISBN, "error", err)
			errorCount++
			continue
		}

		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", bookID)
		successCount++
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", successCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)

	if successCount > 0 {
		fmt.Fprintln(out, "\nCatalog:")
		books, err := manager.ListBooks()
		if err != nil {
			return fmt.Errorf("retrieving books: %w", err)
		}
		fmt.Fprintf(out, "%-5s %-30s %-25s %-15s %s\n", "ID", "Title", "Author", "ISBN", "Avail/Qty")
		fmt.Fprintln(out, strings.Repeat("-", 90))
		for _, book := range books {
			fmt.Fprintln(out, library.PrettyBook(book))
		}
	}
	return nil
}
