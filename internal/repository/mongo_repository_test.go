package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/osvaldoandrade/flowdb/pkg/domain"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func setupMongo(t *testing.T) (context.Context, *mongo.Database) {
	t.Helper()
	if testing.Short() {
		t.Skip("mongo container tests skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	return ctx, client.Database("flowdb_test")
}

func TestMongoFlowRepository(t *testing.T) {
	ctx, db := setupMongo(t)
	repo := NewMongoFlowRepository(db.Collection(domain.FlowCollection))

	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Insert(ctx, sampleFlow("f1", domain.StatusCompleted, base)))
	require.NoError(t, repo.Insert(ctx, sampleFlow("f2", domain.StatusError, base.Add(time.Minute))))
	require.NoError(t, repo.Insert(ctx, sampleFlow("f3", domain.StatusCompleted, base.Add(2*time.Minute))))

	t.Run("Insert duplicate", func(t *testing.T) {
		err := repo.Insert(ctx, sampleFlow("f1", domain.StatusCompleted, base))
		assert.True(t, errors.Is(err, persistence.ErrAlreadyExists), "got %v", err)
	})

	t.Run("Get", func(t *testing.T) {
		got, err := repo.Get(ctx, "f1")
		require.NoError(t, err)
		assert.Equal(t, "Flow", got.NodeClass)
		assert.Equal(t, "/runs/f1", got.Workdir)
		assert.True(t, got.CreatedAt.Equal(base))

		task := got.Works[0].Tasks[0]
		assert.Equal(t, 2, task.NumWarnings)
		assert.Equal(t, 5, task.NumComments)
		assert.Equal(t, 8.0, task.Input["ecut"])
		assert.Equal(t, []any{2.0, 2.0, 2.0}, task.Input["ngkpt"])
		require.NotNil(t, task.OutFiles["gsr"])
		assert.Equal(t, "blob-1", task.OutFiles["gsr"].ID)
	})

	t.Run("FindByStatus", func(t *testing.T) {
		done, err := repo.FindByStatus(ctx, domain.StatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, []string{"f1", "f3"}, ids(done))
	})

	t.Run("CountByStatus", func(t *testing.T) {
		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{domain.StatusCompleted: 2, domain.StatusError: 1}, counts)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "f2"))
		_, err := repo.Get(ctx, "f2")
		assert.True(t, errors.Is(err, persistence.ErrNotFound))
		assert.True(t, errors.Is(repo.Delete(ctx, "f2"), persistence.ErrNotFound))

		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"f1", "f3"}, ids(all))
	})
}

func TestGridFSRepository(t *testing.T) {
	ctx, db := setupMongo(t)
	repo, err := NewGridFSRepository(db, "flowfiles")
	require.NoError(t, err)

	id, err := repo.Put(ctx, "out_GSR.nc", []byte("CDF\x01"))
	require.NoError(t, err)

	data, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("CDF\x01"), data)

	require.NoError(t, repo.Delete(ctx, id))
	_, err = repo.Get(ctx, id)
	assert.True(t, errors.Is(err, persistence.ErrNotFound))
	assert.True(t, errors.Is(repo.Delete(ctx, id), persistence.ErrNotFound))
	assert.True(t, errors.Is(repo.Delete(ctx, "not-an-object-id"), persistence.ErrNotFound))
}
