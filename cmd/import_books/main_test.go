package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-circulation/library"
)

func TestImportBooks(t *testing.T) {
	manager, err := library.NewLibraryManager(library.Config{DBPath: filepath.Join(t.TempDir(), "import.db")})
	require.NoError(t, err)
	defer manager.Close()

	csvData := `Title,Author,Publisher,Year,ISBN,Genre,Quantity
1984,George Orwell,Secker & Warburg,1949,9780451524935,Dystopian,3
Animal Farm,George Orwell,Secker & Warburg,1945,9780451526342,Satire,
"The Art of War",Sun Tzu,,-500,9781590302255,Strategy,1
Duplicate,Someone,,2000,9780451524935,,1
Broken,Someone,,not-a-year,123,,1
`
	var out bytes.Buffer
	require.NoError(t, importBooks(&out, manager, strings.NewReader(csvData)))

	assert.Contains(t, out.String(), "Successfully imported: 2 books")
	assert.Contains(t, out.String(), "Errors: 3")

	books, err := manager.ListBooks()
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, 3, books[0].Quantity)
	assert.Equal(t, 3, books[0].Available)
	assert.Equal(t, 1, books[1].Quantity, "empty quantity defaults to one copy")
}

func TestImportBooksRequiresHeader(t *testing.T) {
	manager, err := library.NewLibraryManager(library.Config{DBPath: filepath.Join(t.TempDir(), "import.db")})
	require.NoError(t, err)
	defer manager.Close()

	err = importBooks(&bytes.Buffer{}, manager, strings.NewReader("name,author\nx,y\n"))
	assert.ErrorContains(t, err, `missing "title" column`)
}
