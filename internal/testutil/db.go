// internal/testutil/db.go
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coverdesk/coverdesk/internal/app/system/indexes"
)

// Tests share one Mongo client; each test gets its own throwaway database.
var (
	clientOnce sync.Once
	client     *mongo.Client
	clientErr  error
)

func testMongoURI() string {
	if uri := os.Getenv("COVERDESK_TEST_MONGO_URI"); uri != "" {
		return uri
	}
	return "mongodb://localhost:27017"
}

func connect() (*mongo.Client, error) {
	clientOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, clientErr = mongo.Connect(ctx, options.Client().ApplyURI(testMongoURI()))
		if clientErr != nil {
			return
		}
		clientErr = client.Ping(ctx, nil)
	})
	return client, clientErr
}

// SetupTestDB returns a uniquely named database on the test Mongo instance
// with the application's indexes in place, so unique-key behavior matches
// production. The database is dropped when the test finishes.
//
// Tests are skipped (not failed) when no Mongo instance is reachable; set
// COVERDESK_TEST_MONGO_URI to point somewhere other than localhost:27017.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	c, err := connect()
	if err != nil {
		t.Skipf("mongodb not available: %v", err)
	}

	name := fmt.Sprintf("coverdesk_test_%s", primitive.NewObjectID().Hex())
	db := c.Database(name)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes on %s: %v", name, err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("drop test database %s: %v", name, err)
		}
	})

	return db
}

// TestContext returns a context with a generous timeout for test database
// operations. Callers must defer the cancel function.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
