package service_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/models"
)

func TestCommentService_CreatePending(t *testing.T) {
	f := newFixture(t)
	f.store.SeedArticle(articleA, 0)

	comment, err := f.svc.Comment.Create(context.Background(), &models.CreateCommentRequest{
		ArticleID: articleA,
		Content:   "Well argued.",
		UserName:  "reader",
		UserEmail: "reader@example.com",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if comment.Status != models.CommentStatusPending {
		t.Errorf("Expected PENDING, got %s", comment.Status)
	}
	if comment.UserEmail == nil || *comment.UserEmail != "reader@example.com" {
		t.Errorf("Expected user email to be stored, got %v", comment.UserEmail)
	}
	if f.store.CommentCount(articleA) != 0 {
		t.Errorf("Expected pending comment not to be counted, got %d", f.store.CommentCount(articleA))
	}
	if f.store.Comment(comment.ID) == nil {
		t.Error("Comment should be stored")
	}
}

func TestCommentService_CreateApprovedCounts(t *testing.T) {
	f := newFixture(t)
	f.store.SeedArticle(articleA, 0)

	_, err := f.svc.Comment.Create(context.Background(), &models.CreateCommentRequest{
		ArticleID: articleA,
		Content:   "Editor's pick",
		UserName:  "editor",
		Status:    models.CommentStatusApproved,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if f.store.CommentCount(articleA) != 1 {
		t.Errorf("Expected comment_count 1, got %d", f.store.CommentCount(articleA))
	}

	events := f.pub.Published()
	if len(events) != 1 || events[0].Action != models.ActionCreate || events[0].Delta != 1 {
		t.Errorf("Expected one create event with delta 1, got %+v", events)
	}
}

func TestCommentService_CreateUnknownArticle(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Comment.Create(context.Background(), &models.CreateCommentRequest{
		ArticleID: articleB,
		Content:   "hello",
		UserName:  "reader",
	})
	if !apperr.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}
	if len(f.store.Comments) != 0 {
		t.Errorf("Expected no comments stored, got %d", len(f.store.Comments))
	}
}

func TestCommentService_CreateInvalid(t *testing.T) {
	f := newFixture(t)
	f.store.SeedArticle(articleA, 0)

	_, err := f.svc.Comment.Create(context.Background(), &models.CreateCommentRequest{
		ArticleID: articleA,
		UserName:  "reader",
		Status:    models.CommentStatusRejected,
	})
	if !apperr.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("Expected INVALID_INPUT, got %v", err)
	}
	if f.store.TxCalls != 0 {
		t.Errorf("Expected validation to fail before any transaction, got %d calls", f.store.TxCalls)
	}
}

func TestCommentService_Get(t *testing.T) {
	f := newFixture(t)
	f.store.SeedArticle(articleA, 0)
	f.store.SeedComment("c1", articleA, models.CommentStatusPending)

	comment, err := f.svc.Comment.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if comment.ArticleID != articleA {
		t.Errorf("Expected article %s, got %s", articleA, comment.ArticleID)
	}

	_, err = f.svc.Comment.Get(context.Background(), "missing")
	if !apperr.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}
}

func TestCommentService_ListByArticle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedArticle(articleA, 0)
	f.store.SeedArticle(articleB, 0)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		status := models.CommentStatusPending
		if i%5 == 0 {
			status = models.CommentStatusApproved
		}
		id := fmt.Sprintf("c%02d", i)
		f.store.SeedComment(id, articleA, status)
		f.store.Comments[id].CreatedAt = base.Add(time.Duration(i) * time.Minute)
	}
	f.store.SeedComment("other", articleB, models.CommentStatusPending)

	page, err := f.svc.Comment.ListByArticle(ctx, articleA, "", 0, 0)
	if err != nil {
		t.Fatalf("ListByArticle failed: %v", err)
	}
	if page.Total != 25 {
		t.Errorf("Expected total 25, got %d", page.Total)
	}
	if page.Page != 1 || page.PageSize != models.DefaultPageSize {
		t.Errorf("Expected defaults page 1 size %d, got %d/%d", models.DefaultPageSize, page.Page, page.PageSize)
	}
	if len(page.Comments) != models.DefaultPageSize {
		t.Fatalf("Expected %d comments, got %d", models.DefaultPageSize, len(page.Comments))
	}
	if page.Comments[0].ID != "c24" {
		t.Errorf("Expected newest first (c24), got %s", page.Comments[0].ID)
	}

	page, err = f.svc.Comment.ListByArticle(ctx, articleA, "", 2, 20)
	if err != nil {
		t.Fatalf("ListByArticle page 2 failed: %v", err)
	}
	if len(page.Comments) != 5 {
		t.Errorf("Expected 5 comments on page 2, got %d", len(page.Comments))
	}

	page, err = f.svc.Comment.ListByArticle(ctx, articleA, models.CommentStatusApproved, 1, 1000)
	if err != nil {
		t.Fatalf("ListByArticle approved failed: %v", err)
	}
	if page.Total != 5 {
		t.Errorf("Expected 5 approved, got %d", page.Total)
	}
	if page.PageSize != models.MaxPageSize {
		t.Errorf("Expected page size clamped to %d, got %d", models.MaxPageSize, page.PageSize)
	}

	_, err = f.svc.Comment.ListByArticle(ctx, "missing", "", 1, 20)
	if !apperr.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected NOT_FOUND for unknown article, got %v", err)
	}

	_, err = f.svc.Comment.ListByArticle(ctx, articleA, "SPAM", 1, 20)
	if !apperr.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Expected INVALID_INPUT for unknown status, got %v", err)
	}
}

func TestCommentService_ListByArticlePageOutOfRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedArticle(articleA, 0)
	f.store.SeedComment("c1", articleA, models.CommentStatusPending)

	_, err := f.svc.Comment.ListByArticle(ctx, articleA, "", math.MaxInt64/100+2, 100)
	if !apperr.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Expected INVALID_INPUT for overflowing page, got %v", err)
	}

	_, err = f.svc.Comment.ListByArticle(ctx, articleA, "", math.MaxInt, 0)
	if !apperr.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Expected INVALID_INPUT with default page size, got %v", err)
	}

	page, err := f.svc.Comment.ListByArticle(ctx, articleA, "", math.MaxInt/100, 100)
	if err != nil {
		t.Fatalf("Expected last addressable page to succeed, got %v", err)
	}
	if len(page.Comments) != 0 || page.Total != 1 {
		t.Errorf("Expected empty page with total 1, got %d comments, total %d", len(page.Comments), page.Total)
	}
}

func TestCommentService_Like(t *testing.T) {
	f := newFixture(t)
	f.store.SeedArticle(articleA, 1)
	f.store.SeedComment("c1", articleA, models.CommentStatusApproved)

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Comment.Like(context.Background(), "c1"); err != nil {
			t.Fatalf("Like failed: %v", err)
		}
	}

	comment := f.store.Comment("c1")
	if comment.Likes != 3 {
		t.Errorf("Expected 3 likes, got %d", comment.Likes)
	}
	if f.store.CommentCount(articleA) != 1 {
		t.Errorf("Likes must not touch comment_count, got %d", f.store.CommentCount(articleA))
	}

	_, err := f.svc.Comment.Like(context.Background(), "missing")
	if !apperr.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}
}

func TestArticleService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	article, err := f.svc.Article.Create(ctx, &models.CreateArticleRequest{
		Slug:        "budget-2025",
		Title:       "Budget 2025",
		Body:        "Line by line.",
		AuthorID:    articleB,
		Tags:        []string{"politics"},
		Status:      "published",
		PublishedAt: "2024-10-01T09:00:00Z",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if article.CommentCount != 0 {
		t.Errorf("Expected comment_count 0, got %d", article.CommentCount)
	}
	if article.PublishedAt == nil {
		t.Error("Expected published_at to be set")
	}

	stored, err := f.svc.Article.Get(ctx, article.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Slug != "budget-2025" {
		t.Errorf("Expected slug budget-2025, got %s", stored.Slug)
	}

	_, err = f.svc.Article.Create(ctx, &models.CreateArticleRequest{
		Slug: "budget-2025", Title: "Again", Body: "Dup", AuthorID: articleB,
	})
	if !apperr.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Expected duplicate slug to be INVALID_INPUT, got %v", err)
	}
}

func TestArticleService_DefaultsToDraft(t *testing.T) {
	f := newFixture(t)
	article, err := f.svc.Article.Create(context.Background(), &models.CreateArticleRequest{
		Slug: "draft-piece", Title: "Draft", Body: "WIP", AuthorID: articleB,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if article.Status != "draft" {
		t.Errorf("Expected draft, got %s", article.Status)
	}
	if article.Tags == nil {
		t.Error("Expected empty tags slice, got nil")
	}
}

func TestArticleService_GetNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Article.Get(context.Background(), "missing")
	if !apperr.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}
}

func TestStatsService_Get(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		f.store.SeedArticle(fmt.Sprintf("a%d", i), i)
	}
	f.store.SeedComment("c1", "a1", models.CommentStatusApproved)
	f.store.SeedComment("c2", "a1", models.CommentStatusPending)
	f.store.SeedComment("c3", "a2", models.CommentStatusRejected)

	stats, err := f.svc.Stats.Get(context.Background(), 0)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Articles != 7 || stats.Comments != 3 {
		t.Errorf("Expected 7 articles and 3 comments, got %d/%d", stats.Articles, stats.Comments)
	}
	if stats.CommentsByStatus[models.CommentStatusApproved] != 1 ||
		stats.CommentsByStatus[models.CommentStatusPending] != 1 ||
		stats.CommentsByStatus[models.CommentStatusRejected] != 1 {
		t.Errorf("Unexpected status breakdown: %v", stats.CommentsByStatus)
	}
	if len(stats.TopArticles) != 5 {
		t.Fatalf("Expected default top 5, got %d", len(stats.TopArticles))
	}
	if stats.TopArticles[0].ID != "a6" || stats.TopArticles[0].CommentCount != 6 {
		t.Errorf("Expected a6 first, got %+v", stats.TopArticles[0])
	}
}

func TestExportService_StreamCommentsNDJSON(t *testing.T) {
	f := newFixture(t)
	f.store.SeedArticle(articleA, 0)
	for i := 0; i < 250; i++ {
		f.store.SeedComment(fmt.Sprintf("c%03d", i), articleA, models.CommentStatusPending)
	}

	w := httptest.NewRecorder()
	if err := f.svc.Export.StreamComments(context.Background(), w, "ndjson"); err != nil {
		t.Fatalf("StreamComments failed: %v", err)
	}

	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Expected ndjson content type, got %s", ct)
	}
	if !w.Flushed {
		t.Error("Expected the stream to be flushed")
	}

	lines := 0
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		var c models.Comment
		if err := json.Unmarshal(scanner.Bytes(), &c); err != nil {
			t.Fatalf("Line %d is not a comment: %v", lines, err)
		}
		lines++
	}
	if lines != 250 {
		t.Errorf("Expected 250 lines, got %d", lines)
	}
}

func TestExportService_StreamArticlesJSON(t *testing.T) {
	f := newFixture(t)
	f.store.SeedArticle(articleA, 2)
	f.store.SeedArticle(articleB, 0)

	w := httptest.NewRecorder()
	if err := f.svc.Export.StreamArticles(context.Background(), w, "json"); err != nil {
		t.Fatalf("StreamArticles failed: %v", err)
	}

	var articles []models.Article
	if err := json.Unmarshal(w.Body.Bytes(), &articles); err != nil {
		t.Fatalf("Expected a JSON array, got %q: %v", w.Body.String(), err)
	}
	if len(articles) != 2 {
		t.Errorf("Expected 2 articles, got %d", len(articles))
	}
}

func TestExportService_EmptyJSONArray(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	if err := f.svc.Export.StreamComments(context.Background(), w, "json"); err != nil {
		t.Fatalf("StreamComments failed: %v", err)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("Expected [], got %q", w.Body.String())
	}
}

func TestExportService_UnsupportedFormat(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Export.StreamComments(context.Background(), httptest.NewRecorder(), "csv")
	if !apperr.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Expected INVALID_INPUT, got %v", err)
	}
}

func TestExportService_GetCount(t *testing.T) {
	f := newFixture(t)
	f.store.SeedArticle(articleA, 0)
	f.store.SeedComment("c1", articleA, models.CommentStatusPending)
	f.store.SeedComment("c2", articleA, models.CommentStatusPending)

	tests := []struct {
		resource string
		want     int
	}{
		{"articles", 1},
		{"comments", 2},
	}
	for _, tt := range tests {
		t.Run(tt.resource, func(t *testing.T) {
			count, err := f.svc.Export.GetCount(context.Background(), tt.resource)
			if err != nil {
				t.Fatalf("GetCount failed: %v", err)
			}
			if count != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, count)
			}
		})
	}

	if _, err := f.svc.Export.GetCount(context.Background(), "users"); err == nil {
		t.Error("Expected error for unknown resource")
	}
}
