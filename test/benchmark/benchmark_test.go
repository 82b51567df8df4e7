package benchmark

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/comment-moderation-api/internal/metrics"
	"github.com/comment-moderation-api/internal/mocks"
	"github.com/comment-moderation-api/internal/models"
	"github.com/comment-moderation-api/internal/service"
	"github.com/comment-moderation-api/internal/validation"
	"github.com/rs/zerolog"
)

const articleID = "550e8400-e29b-41d4-a716-446655440000"

func commentID(i int) string {
	return fmt.Sprintf("6ba7b810-9dad-11d1-80b4-%012d", i)
}

func setup(b *testing.B, comments int) (*mocks.MockStore, *service.Services) {
	b.Helper()
	store := mocks.NewMockStore()
	store.SeedArticle(articleID, 0)
	for i := 0; i < comments; i++ {
		store.SeedComment(commentID(i), articleID, models.CommentStatusPending)
	}
	services := service.NewServices(service.Deps{
		Repos:     store.Repositories(),
		Publisher: mocks.NewMockPublisher(),
		Metrics:   metrics.New(),
	}, zerolog.Nop())
	return store, services
}

// BenchmarkApproveRejectToggle measures a full moderation round trip on one comment
func BenchmarkApproveRejectToggle(b *testing.B) {
	store, services := setup(b, 1)
	ctx := context.Background()
	id := commentID(0)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := services.Moderation.Approve(ctx, id); err != nil {
			b.Fatal(err)
		}
		if _, err := services.Moderation.Reject(ctx, id); err != nil {
			b.Fatal(err)
		}
	}

	b.StopTimer()
	if got := store.CommentCount(articleID); got != 0 {
		b.Fatalf("comment_count drifted to %d", got)
	}
}

// BenchmarkApproveNoop measures the already-approved short circuit
func BenchmarkApproveNoop(b *testing.B) {
	_, services := setup(b, 1)
	ctx := context.Background()
	id := commentID(0)
	services.Moderation.Approve(ctx, id)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := services.Moderation.Approve(ctx, id); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSetStatusParallel runs moderation on many comments of one article concurrently
func BenchmarkSetStatusParallel(b *testing.B) {
	const comments = 64
	store, services := setup(b, comments)
	targets := []models.CommentStatus{
		models.CommentStatusApproved,
		models.CommentStatusRejected,
		models.CommentStatusPending,
	}
	var seq int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			n := atomic.AddInt64(&seq, 1)
			id := commentID(int(n % comments))
			if _, err := services.Moderation.SetStatus(ctx, id, targets[n%3]); err != nil {
				b.Error(err)
				return
			}
		}
	})

	b.StopTimer()
	if got, want := store.CommentCount(articleID), store.ApprovedCount(articleID); got != want {
		b.Fatalf("comment_count %d, approved comments %d", got, want)
	}
}

// BenchmarkExportComments benchmarks streaming export performance
func BenchmarkExportComments(b *testing.B) {
	_, services := setup(b, 1000)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		if err := services.Export.StreamComments(ctx, w, service.FormatNDJSON); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportMetric(float64(1000*b.N)/b.Elapsed().Seconds(), "rows/sec")
}

// BenchmarkValidation benchmarks comment validation performance
func BenchmarkValidation(b *testing.B) {
	req := &models.CreateCommentRequest{
		ArticleID: articleID,
		Content:   "A thoughtful reply about the council vote and what it means for the budget.",
		UserName:  "reader",
		UserEmail: "reader@example.com",
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		validation.ValidateCreateComment(req)
	}
}
