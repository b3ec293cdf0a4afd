//go:build !purego

package library

import (
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

// dsn enables busy_timeout and foreign keys, and makes every BEGIN take the
// write lock immediately so concurrent loan checks serialise.
func dsn(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", path)
}
