package store

import (
	"context"
	"os"
	"testing"

	"github.com/address-resolver/app/config"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap/zaptest"
)

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := NewMongoStore(ctx, config.MongoCfg{
		URI: uri, Database: "address_resolver_test", Collection: "candidates",
		MinPoolSize: 1, MaxPoolSize: 4,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close(ctx)
	_, err = s.collection.DeleteMany(ctx, bson.M{})
	require.NoError(t, err)

	exerciseStore(t, s)
}
