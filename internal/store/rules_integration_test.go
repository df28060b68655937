//go:build integration

// Black-box tests against a real PostgreSQL container.
package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/bifrost/internal/store"
	"github.com/rafaeljc/bifrost/internal/testsupport"
)

func TestPostgresStore_Integration(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := testsupport.StartPostgresContainer(ctx, "../../migrations")
	require.NoError(t, err, "failed to start postgres container")
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	repo := store.NewPostgresStore(pgContainer.DB)

	// Scenarios share the container state and run sequentially.

	t.Run("GetRule_NotFound", func(t *testing.T) {
		_, err := repo.GetRule(ctx, "/")
		assert.ErrorIs(t, err, store.ErrRuleNotFound)
	})

	t.Run("UpsertRule_Insert", func(t *testing.T) {
		// Arrange
		r := &store.Rule{Path: "/", SplitThreshold: 80, VariantA: "/index.html", VariantB: "/index_b.html"}

		// Act
		created, err := repo.UpsertRule(ctx, r)

		// Assert
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotZero(t, r.ID)
		assert.False(t, r.CreatedAt.IsZero())

		got, err := repo.GetRule(ctx, "/")
		require.NoError(t, err)
		assert.Equal(t, 80, got.SplitThreshold)
		assert.Equal(t, "/index_b.html", got.VariantB)
	})

	t.Run("UpsertRule_Update", func(t *testing.T) {
		before, err := repo.GetRule(ctx, "/")
		require.NoError(t, err)

		r := &store.Rule{Path: "/", SplitThreshold: 50, VariantA: "/index.html", VariantB: "/index_c.html"}
		created, err := repo.UpsertRule(ctx, r)

		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, before.ID, r.ID)
		assert.False(t, r.UpdatedAt.Before(before.UpdatedAt))

		got, err := repo.GetRule(ctx, "/")
		require.NoError(t, err)
		assert.Equal(t, 50, got.SplitThreshold)
		assert.Equal(t, "/index_c.html", got.VariantB)
	})

	t.Run("UpsertRule_ConstraintViolation", func(t *testing.T) {
		_, err := repo.UpsertRule(ctx, &store.Rule{Path: "/bad", SplitThreshold: 101, VariantA: "/a", VariantB: "/b"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "violates table constraints")
	})

	t.Run("ListRules_And_AllRules", func(t *testing.T) {
		for _, p := range []string{"/promo", "/landing"} {
			_, err := repo.UpsertRule(ctx, &store.Rule{Path: p, SplitThreshold: 10, VariantA: p + ".html", VariantB: p + "_b.html"})
			require.NoError(t, err)
		}

		page, total, err := repo.ListRules(ctx, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, page, 2)
		assert.Equal(t, "/", page[0].Path)
		assert.Equal(t, "/landing", page[1].Path)

		all, err := repo.AllRules(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		doc := store.BuildDocument(all)
		assert.Equal(t, 50, doc["/"].Segment)
		assert.Equal(t, "/promo_b.html", doc["/promo"].VersionB)
	})

	t.Run("DeleteRule", func(t *testing.T) {
		require.NoError(t, repo.DeleteRule(ctx, "/promo"))
		assert.ErrorIs(t, repo.DeleteRule(ctx, "/promo"), store.ErrRuleNotFound)

		_, err := repo.GetRule(ctx, "/promo")
		assert.ErrorIs(t, err, store.ErrRuleNotFound)
	})
}
