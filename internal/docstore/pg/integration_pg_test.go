package pg

import (
	"context"
	"log"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/shared/config"
	"github.com/askline-dev/askline/shared/errors"
)

var storage *Storage

func TestMain(m *testing.M) {
	ctx := context.Background()
	var container *postgres.PostgresContainer
	storage, container = mustSetup(ctx)
	defer teardown(ctx, storage, container)

	exitCode := m.Run()
	os.Exit(exitCode)
}

func mustSetup(ctx context.Context) (*Storage, *postgres.PostgresContainer) {
	dbName := "askline"
	dbUser := "user"
	dbPassword := "password"
	container, err := postgres.Run(ctx,
		"postgres:15.3-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			// The container restarts itself once after init, so wait for
			// the readiness line twice.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("failed to start container: %s", err)
	}
	containerPort, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("failed to obtain container port: %s", err)
	}
	port, err := strconv.Atoi(containerPort.Port())
	if err != nil {
		log.Fatalf("failed to obtain int container port: %s", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("failed to obtain container host: %s", err)
	}

	cfg := &config.Config{
		Private: config.Private{Pg: config.Pg{
			Host: host, Port: port, User: dbUser, Password: dbPassword, Dbname: dbName,
		}},
	}
	cfg.Defaults()

	storage, err := New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to postgres container: %s", err)
	}
	return storage, container
}

func teardown(ctx context.Context, storage *Storage, container *postgres.PostgresContainer) {
	if err := storage.Close(); err != nil {
		log.Printf("failed to close storage connection: %s", err)
	}
	if err := container.Terminate(ctx); err != nil {
		log.Printf("failed to terminate container: %s", err)
	}
}

func TestIntegrationCrudRoundTrip(t *testing.T) {
	ctx := context.Background()

	path, err := storage.Create(ctx, "it_questions", map[string]any{
		"title":     "hello",
		"likes":     0,
		"createdAt": docstore.ServerTimestamp(),
	})
	require.NoError(t, err)

	doc, err := storage.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.Data["title"])
	// server timestamps round-trip as time.Time
	_, ok := doc.Data["createdAt"].(time.Time)
	assert.True(t, ok)

	require.NoError(t, storage.Set(ctx, path, map[string]any{"title": "updated"}, true))
	doc, err = storage.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "updated", doc.Data["title"])
	assert.Contains(t, doc.Data, "likes", "merge must keep other fields")

	require.NoError(t, storage.Delete(ctx, path))
	_, err = storage.Get(ctx, path)
	assert.True(t, errors.IsNotFound(err))
}

func TestIntegrationOrderByTimestamp(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, storage.Set(ctx, "it_feed/"+id, map[string]any{
			"createdAt": base.Add(time.Duration(i) * time.Hour),
		}, false))
	}

	docs, err := storage.List(ctx, docstore.Collection("it_feed").Order("createdAt", true))
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "c", docs[0].Id())
	assert.Equal(t, "a", docs[2].Id())
}

func TestIntegrationTransactionToggle(t *testing.T) {
	ctx := context.Background()
	counterPath := "it_toggle/q1"
	memberPath := "it_toggle/q1/likes/u1"

	toggle := func() error {
		return storage.RunTransaction(ctx, func(tx docstore.Tx) error {
			if _, err := tx.Get(memberPath); err == nil {
				tx.Delete(memberPath)
				tx.Set(counterPath, map[string]any{"likes": docstore.Increment(-1)}, true)
				return nil
			}
			tx.Set(memberPath, map[string]any{"createdAt": docstore.ServerTimestamp()}, false)
			tx.Set(counterPath, map[string]any{"likes": docstore.Increment(1)}, true)
			return nil
		})
	}

	require.NoError(t, toggle())
	doc, err := storage.Get(ctx, counterPath)
	require.NoError(t, err)
	assert.EqualValues(t, 1, doc.Data["likes"])

	require.NoError(t, toggle())
	doc, err = storage.Get(ctx, counterPath)
	require.NoError(t, err)
	assert.EqualValues(t, 0, doc.Data["likes"])
	_, err = storage.Get(ctx, memberPath)
	assert.True(t, errors.IsNotFound(err))
}

func TestIntegrationWatchDeliversOnCommit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	w, err := storage.Watch(ctx, docstore.Collection("it_watch").Order("createdAt", false))
	require.NoError(t, err)
	defer w.Cancel()

	recvSnap := func() []docstore.Doc {
		select {
		case snap, ok := <-w.Snapshots():
			require.True(t, ok, "snapshot channel closed")
			return snap
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}

	assert.Empty(t, recvSnap(), "initial snapshot")

	require.NoError(t, storage.Set(ctx, "it_watch/a", map[string]any{
		"createdAt": docstore.ServerTimestamp(),
	}, false))

	// LISTEN/NOTIFY is asynchronous; wait for the non-empty snapshot.
	deadline := time.Now().Add(10 * time.Second)
	for {
		snap := recvSnap()
		if len(snap) == 1 {
			assert.Equal(t, "a", snap[0].Id())
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("never observed the committed document")
		}
	}
}
