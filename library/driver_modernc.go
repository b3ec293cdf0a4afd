//go:build purego

package library

import (
	"fmt"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// dsn mirrors the cgo driver settings for the pure Go driver.
func dsn(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate", path)
}
