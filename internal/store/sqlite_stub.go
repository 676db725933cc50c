//go:build !cgo

package store

const sqliteAvailable = false
