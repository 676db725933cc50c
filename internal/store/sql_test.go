//go:build cgo

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSQLStore_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.db")
	s, err := OpenSQL(context.Background(), SQLite, path, 1, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close(context.Background())

	exerciseStore(t, s)
}

func TestSQLStore_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := OpenSQL(ctx, Postgres, dsn, 4, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close(ctx)
	_, err = s.db.ExecContext(ctx, "TRUNCATE address_records")
	require.NoError(t, err)

	exerciseStore(t, s)
}
