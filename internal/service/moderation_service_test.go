package service_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/metrics"
	"github.com/comment-moderation-api/internal/mocks"
	"github.com/comment-moderation-api/internal/models"
	"github.com/comment-moderation-api/internal/service"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	articleA = "550e8400-e29b-41d4-a716-446655440000"
	articleB = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
)

type fixture struct {
	svc     *service.Services
	store   *mocks.MockStore
	pub     *mocks.MockPublisher
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := mocks.NewMockStore()
	pub := mocks.NewMockPublisher()
	m := metrics.New()
	svc := service.NewServices(service.Deps{
		Repos:     store.Repositories(),
		Publisher: pub,
		Metrics:   m,
	}, zerolog.Nop())
	return &fixture{svc: svc, store: store, pub: pub, metrics: m}
}

func (f *fixture) assertInvariant(t *testing.T, articleID string) {
	t.Helper()
	assert.Equal(t, f.store.ApprovedCount(articleID), f.store.CommentCount(articleID),
		"comment_count must equal approved comments of %s", articleID)
}

func TestModeration_Approve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedArticle(articleA, 0)
	f.store.SeedComment("c1", articleA, models.CommentStatusPending)

	res, err := f.svc.Moderation.Approve(ctx, "c1")
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Equal(t, models.CommentStatusPending, res.From)
	assert.Equal(t, models.CommentStatusApproved, res.To)
	assert.Equal(t, 1, res.Delta)
	assert.Equal(t, 1, f.store.CommentCount(articleA))
	assert.Equal(t, models.CommentStatusApproved, f.store.Comment("c1").Status)
	f.assertInvariant(t, articleA)

	events := f.pub.Published()
	require.Len(t, events, 1)
	assert.Equal(t, models.ActionApprove, events[0].Action)
	assert.Equal(t, articleA, events[0].ArticleID)
	assert.Equal(t, 1, events[0].Delta)
}

func TestModeration_ApproveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedArticle(articleA, 0)
	f.store.SeedComment("c1", articleA, models.CommentStatusPending)

	_, err := f.svc.Moderation.Approve(ctx, "c1")
	require.NoError(t, err)
	writes := f.store.Writes
	updatedAt := f.store.Comment("c1").UpdatedAt

	res, err := f.svc.Moderation.Approve(ctx, "c1")
	require.NoError(t, err)

	assert.False(t, res.Changed)
	assert.Equal(t, 0, res.Delta)
	assert.Equal(t, 1, f.store.CommentCount(articleA))
	assert.Equal(t, writes, f.store.Writes, "second approve must not write")
	assert.Equal(t, updatedAt, f.store.Comment("c1").UpdatedAt)
	assert.Len(t, f.pub.Published(), 1, "no event for a no-op")
}

func TestModeration_ApproveThenRejectRestoresCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedArticle(articleA, 3)
	for i := 0; i < 3; i++ {
		f.store.SeedComment(fmt.Sprintf("seed-%d", i), articleA, models.CommentStatusApproved)
	}
	f.store.SeedComment("c1", articleA, models.CommentStatusPending)

	_, err := f.svc.Moderation.Approve(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, f.store.CommentCount(articleA))

	res, err := f.svc.Moderation.Reject(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, -1, res.Delta)
	assert.Equal(t, 3, f.store.CommentCount(articleA))
	assert.Equal(t, models.CommentStatusRejected, f.store.Comment("c1").Status)
	f.assertInvariant(t, articleA)
}

func TestModeration_ApproveThenDeleteRestoresCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedArticle(articleA, 0)
	f.store.SeedComment("c1", articleA, models.CommentStatusPending)

	_, err := f.svc.Moderation.Approve(ctx, "c1")
	require.NoError(t, err)

	res, err := f.svc.Moderation.Delete(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, -1, res.Delta)
	assert.Equal(t, models.CommentStatusApproved, res.From)
	assert.Equal(t, 0, f.store.CommentCount(articleA))
	assert.Nil(t, f.store.Comment("c1"))

	_, err = f.svc.Moderation.Approve(ctx, "c1")
	assert.True(t, apperr.Is(err, apperr.ErrNotFound), "deleted is absorbing, got %v", err)
	_, err = f.svc.Moderation.Delete(ctx, "c1")
	assert.True(t, apperr.Is(err, apperr.ErrNotFound))
}

func TestModeration_RejectPendingLeavesCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedArticle(articleA, 1)
	f.store.SeedComment("approved", articleA, models.CommentStatusApproved)
	f.store.SeedComment("c1", articleA, models.CommentStatusPending)

	res, err := f.svc.Moderation.Reject(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 0, res.Delta)
	assert.Equal(t, 1, f.store.CommentCount(articleA))
	assert.Equal(t, models.CommentStatusRejected, f.store.Comment("c1").Status)

	res, err = f.svc.Moderation.Reject(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, res.Changed, "rejecting a rejected comment is a no-op")
}

func TestModeration_ConcreteScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedArticle(articleA, 0)

	c1, err := f.svc.Comment.Create(ctx, &models.CreateCommentRequest{ArticleID: articleA, Content: "first", UserName: "ana"})
	require.NoError(t, err)
	assert.Equal(t, models.CommentStatusPending, c1.Status)
	_, err = f.svc.Moderation.Approve(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.CommentCount(articleA))

	c2, err := f.svc.Comment.Create(ctx, &models.CreateCommentRequest{ArticleID: articleA, Content: "second", UserName: "ben"})
	require.NoError(t, err)
	_, err = f.svc.Moderation.Approve(ctx, c2.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.CommentCount(articleA))

	_, err = f.svc.Moderation.Reject(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.CommentCount(articleA))

	_, err = f.svc.Moderation.Delete(ctx, c2.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.store.CommentCount(articleA))
	f.assertInvariant(t, articleA)
}

func TestModeration_ApproveNotFound(t *testing.T) {
	f := newFixture(t)
	f.store.SeedArticle(articleA, 2)
	f.store.SeedArticle(articleB, 0)

	_, err := f.svc.Moderation.Approve(context.Background(), "nonexistent-id")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrNotFound))
	assert.Equal(t, 2, f.store.CommentCount(articleA))
	assert.Equal(t, 0, f.store.CommentCount(articleB))
	assert.Equal(t, 0, f.store.Writes)
	assert.Empty(t, f.pub.Published())
}

func TestModeration_MissingArticleRollsBack(t *testing.T) {
	f := newFixture(t)
	f.store.SeedComment("orphan", articleA, models.CommentStatusPending)

	_, err := f.svc.Moderation.Approve(context.Background(), "orphan")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrNotFound))
	assert.Equal(t, models.CommentStatusPending, f.store.Comment("orphan").Status,
		"status write must roll back with the failed counter update")
}

func TestModeration_ConflictSurfaced(t *testing.T) {
	f := newFixture(t)
	f.store.SeedArticle(articleA, 0)
	f.store.SeedComment("c1", articleA, models.CommentStatusPending)
	f.store.TxErrors = []error{apperr.Conflict("transaction conflict after 5 attempts", nil)}

	_, err := f.svc.Moderation.Approve(context.Background(), "c1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrConflict))
	assert.Equal(t, 0, f.store.CommentCount(articleA))
	assert.Equal(t, models.CommentStatusPending, f.store.Comment("c1").Status)
	assert.Empty(t, f.pub.Published())

	// The caller may retry once the conflict clears
	_, err = f.svc.Moderation.Approve(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.CommentCount(articleA))
}

func TestModeration_SetStatusRoutesCounter(t *testing.T) {
	tests := []struct {
		from  models.CommentStatus
		to    models.CommentStatus
		delta int
	}{
		{models.CommentStatusPending, models.CommentStatusApproved, 1},
		{models.CommentStatusRejected, models.CommentStatusApproved, 1},
		{models.CommentStatusApproved, models.CommentStatusPending, -1},
		{models.CommentStatusApproved, models.CommentStatusRejected, -1},
		{models.CommentStatusPending, models.CommentStatusRejected, 0},
		{models.CommentStatusRejected, models.CommentStatusPending, 0},
		{models.CommentStatusApproved, models.CommentStatusApproved, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_to_%s", tt.from, tt.to), func(t *testing.T) {
			f := newFixture(t)
			start := 0
			if tt.from == models.CommentStatusApproved {
				start = 1
			}
			f.store.SeedArticle(articleA, start)
			f.store.SeedComment("c1", articleA, tt.from)

			res, err := f.svc.Moderation.SetStatus(context.Background(), "c1", tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.delta, res.Delta)
			assert.Equal(t, tt.from != tt.to, res.Changed)
			assert.Equal(t, tt.to, f.store.Comment("c1").Status)
			assert.Equal(t, start+tt.delta, f.store.CommentCount(articleA))
			f.assertInvariant(t, articleA)
		})
	}
}

func TestModeration_SetStatusInvalidTarget(t *testing.T) {
	f := newFixture(t)
	f.store.SeedArticle(articleA, 0)
	f.store.SeedComment("c1", articleA, models.CommentStatusPending)

	_, err := f.svc.Moderation.SetStatus(context.Background(), "c1", "")
	assert.True(t, apperr.Is(err, apperr.ErrInvalidStateTransition), "got %v", err)

	_, err = f.svc.Moderation.SetStatus(context.Background(), "c1", "DELETED")
	assert.True(t, apperr.Is(err, apperr.ErrInvalidInput), "got %v", err)
	assert.Equal(t, 0, f.store.TxCalls, "invalid targets never open a transaction")
}

func TestModeration_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.store.SeedArticle(articleA, 0)
	f.store.SeedComment("c1", articleA, models.CommentStatusPending)
	f.pub.PublishErr = errors.New("broker unavailable")

	_, err := f.svc.Moderation.Approve(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.CommentCount(articleA))
}

func TestModeration_Recount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedArticle(articleA, 7)
	f.store.SeedComment("a1", articleA, models.CommentStatusApproved)
	f.store.SeedComment("a2", articleA, models.CommentStatusApproved)
	f.store.SeedComment("p1", articleA, models.CommentStatusPending)

	res, err := f.svc.Moderation.Recount(ctx, articleA)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Previous)
	assert.Equal(t, 2, res.Current)
	f.assertInvariant(t, articleA)

	events := f.pub.Published()
	require.Len(t, events, 1)
	assert.Equal(t, models.ActionRecount, events[0].Action)
	require.NotNil(t, events[0].CommentCount)
	assert.Equal(t, 2, *events[0].CommentCount)
	assert.Equal(t, -5, events[0].Delta)

	// A consistent counter is left alone
	writes := f.store.Writes
	res, err = f.svc.Moderation.Recount(ctx, articleA)
	require.NoError(t, err)
	assert.Equal(t, res.Previous, res.Current)
	assert.Equal(t, writes, f.store.Writes)
	assert.Len(t, f.pub.Published(), 1)

	_, err = f.svc.Moderation.Recount(ctx, articleB)
	assert.True(t, apperr.Is(err, apperr.ErrNotFound))
}

func TestModeration_RandomSequencesKeepInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedArticle(articleA, 0)

	const comments = 8
	for i := 0; i < comments; i++ {
		f.store.SeedComment(fmt.Sprintf("c%d", i), articleA, models.CommentStatusPending)
	}

	rng := rand.New(rand.NewSource(42))
	statuses := []models.CommentStatus{models.CommentStatusPending, models.CommentStatusApproved, models.CommentStatusRejected}
	for step := 0; step < 500; step++ {
		id := fmt.Sprintf("c%d", rng.Intn(comments))
		var err error
		switch rng.Intn(4) {
		case 0:
			_, err = f.svc.Moderation.Approve(ctx, id)
		case 1:
			_, err = f.svc.Moderation.Reject(ctx, id)
		case 2:
			_, err = f.svc.Moderation.SetStatus(ctx, id, statuses[rng.Intn(len(statuses))])
		case 3:
			if rng.Intn(10) == 0 {
				_, err = f.svc.Moderation.Delete(ctx, id)
			}
		}
		if err != nil && !apperr.Is(err, apperr.ErrNotFound) {
			t.Fatalf("step %d: unexpected error %v", step, err)
		}
		require.Equal(t, f.store.ApprovedCount(articleA), f.store.CommentCount(articleA), "step %d", step)
	}
}

func TestModeration_ConcurrentModerationKeepsInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedArticle(articleA, 0)

	const comments = 20
	for i := 0; i < comments; i++ {
		f.store.SeedComment(fmt.Sprintf("c%d", i), articleA, models.CommentStatusPending)
	}

	var wg sync.WaitGroup
	for worker := 0; worker < 10; worker++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("c%d", rng.Intn(comments))
				if rng.Intn(2) == 0 {
					f.svc.Moderation.Approve(ctx, id)
				} else {
					f.svc.Moderation.Reject(ctx, id)
				}
			}
		}(int64(worker))
	}
	wg.Wait()

	f.assertInvariant(t, articleA)
}

func TestModeration_RecordsMetrics(t *testing.T) {
	f := newFixture(t)
	f.store.SeedArticle(articleA, 0)
	f.store.SeedComment("c1", articleA, models.CommentStatusPending)

	f.svc.Moderation.Approve(context.Background(), "c1")
	f.svc.Moderation.Approve(context.Background(), "c1")
	f.svc.Moderation.Approve(context.Background(), "missing")

	n, err := testutil.GatherAndCount(f.metrics.Registry(), "moderation_actions_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "changed, noop and not_found series")
}
