//go:build cgo

package store

import _ "github.com/mattn/go-sqlite3"

// sqliteAvailable reports whether the sqlite3 driver is compiled in.
const sqliteAvailable = true
