package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestReviews_KeepProductStatsInSync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cat := env.seedCategory(t, "shoes")
	p := env.seedProduct(t, cat.ID, "runner", "10", 1)
	alice := env.seedUser(t, "alice@shop.test", domain.RoleCustomer, true)
	bob := env.seedUser(t, "bob@shop.test", domain.RoleCustomer, true)

	first, err := env.ratings.AddReview(ctx, alice.ID, p.ID, ReviewInput{Rating: 5, Review: "great"})
	require.NoError(t, err)
	_, err = env.ratings.AddReview(ctx, bob.ID, p.ID, ReviewInput{Rating: 2, Review: "meh"})
	require.NoError(t, err)

	stored := env.db.product(p.ID)
	assert.Equal(t, 3.5, stored.AvgRating)
	assert.Equal(t, 2, stored.RatingCnt)
	assert.True(t, env.productCache.wasDeleted(p.ID.Hex()))

	_, err = env.ratings.AddReview(ctx, alice.ID, p.ID, ReviewInput{Rating: 1, Review: "again"})
	requireKind(t, err, domain.KindConflict)

	four := 4
	updated, err := env.ratings.UpdateReview(ctx, alice.ID, first.ID, ReviewPatch{Rating: &four})
	require.NoError(t, err)
	assert.Equal(t, "great", updated.Review)
	assert.Equal(t, 3.0, env.db.product(p.ID).AvgRating)

	_, err = env.ratings.UpdateReview(ctx, bob.ID, first.ID, ReviewPatch{Rating: &four})
	requireKind(t, err, domain.KindNotFound)

	views, err := env.ratings.GetProductReviews(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "bob@shop.test", views[0].Reviewer.Email, "newest first")

	_, err = env.ratings.DeleteReview(ctx, bob.ID, first.ID)
	requireKind(t, err, domain.KindNotFound)
	_, err = env.ratings.DeleteReview(ctx, alice.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, env.db.product(p.ID).AvgRating)
	assert.Equal(t, 1, env.db.product(p.ID).RatingCnt)
}

func TestReviews_AverageIsExactMean(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cat := env.seedCategory(t, "shoes")
	p := env.seedProduct(t, cat.ID, "runner", "10", 1)

	for i, rating := range []int{1, 1, 2} {
		u := env.seedUser(t, fmt.Sprintf("user%d@shop.test", i), domain.RoleCustomer, true)
		_, err := env.ratings.AddReview(ctx, u.ID, p.ID, ReviewInput{Rating: rating, Review: "ok"})
		require.NoError(t, err)
	}

	stored := env.db.product(p.ID)
	assert.Equal(t, 4.0/3.0, stored.AvgRating)
	assert.Equal(t, 3, stored.RatingCnt)
}

func TestAddReview_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cat := env.seedCategory(t, "shoes")
	p := env.seedProduct(t, cat.ID, "runner", "10", 1)
	user := primitive.NewObjectID()

	_, err := env.ratings.AddReview(ctx, user, p.ID, ReviewInput{Rating: 6, Review: "x"})
	requireKind(t, err, domain.KindInvalidInput)
	_, err = env.ratings.AddReview(ctx, user, p.ID, ReviewInput{Rating: 0, Review: "x"})
	requireKind(t, err, domain.KindInvalidInput)
	_, err = env.ratings.AddReview(ctx, user, p.ID, ReviewInput{Rating: 3, Review: " "})
	requireKind(t, err, domain.KindInvalidInput)
	_, err = env.ratings.AddReview(ctx, user, primitive.NewObjectID(), ReviewInput{Rating: 3, Review: "x"})
	requireKind(t, err, domain.KindNotFound)

	zero := 0
	_, err = env.ratings.UpdateReview(ctx, user, primitive.NewObjectID(), ReviewPatch{Rating: &zero})
	requireKind(t, err, domain.KindInvalidInput)
}
