package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/models"
	"github.com/comment-moderation-api/internal/repository"
)

// ErrNegativeCount mirrors the comment_count >= 0 check constraint
var ErrNegativeCount = errors.New("comment_count would become negative")

// MockStore is an in-memory backend shared by the article, comment and
// transactor mocks. Transactions are serialized by a single mutex and roll
// back to a snapshot when fn fails.
type MockStore struct {
	mu       sync.Mutex
	Articles map[string]*models.Article
	Comments map[string]*models.Comment

	// TxErrors are returned by WithinTx, one per call, before fn runs
	TxErrors []error
	TxCalls  int
	Writes   int
}

// Verify interface compliance
var (
	_ repository.ArticleRepository = (*MockArticleRepository)(nil)
	_ repository.CommentRepository = (*MockCommentRepository)(nil)
	_ repository.Transactor        = (*MockTransactor)(nil)
	_ repository.CommentTx         = (*mockCommentTx)(nil)
)

func NewMockStore() *MockStore {
	return &MockStore{
		Articles: make(map[string]*models.Article),
		Comments: make(map[string]*models.Comment),
	}
}

// Repositories bundles the mocks the way repository.NewPostgres does
func (s *MockStore) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Backend: "memory",
		Article: &MockArticleRepository{store: s},
		Comment: &MockCommentRepository{store: s},
		Tx:      &MockTransactor{store: s},
	}
}

// SeedArticle stores an article with the given id and counter
func (s *MockStore) SeedArticle(id string, commentCount int) *models.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	a := &models.Article{
		ID:           id,
		Slug:         "article-" + id,
		Title:        "Article " + id,
		Body:         "body",
		AuthorID:     "author-1",
		Tags:         []string{},
		Status:       "published",
		CommentCount: commentCount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.Articles[id] = a
	return copyArticle(a)
}

// SeedComment stores a comment without touching any counter
func (s *MockStore) SeedComment(id, articleID string, status models.CommentStatus) *models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	c := &models.Comment{
		ID:        id,
		ArticleID: articleID,
		Content:   "comment " + id,
		UserName:  "reader",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Comments[id] = c
	return copyComment(c)
}

// CommentCount returns the stored counter, or -1 for an unknown article
func (s *MockStore) CommentCount(articleID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Articles[articleID]
	if !ok {
		return -1
	}
	return a.CommentCount
}

// ApprovedCount counts approved comments of an article
func (s *MockStore) ApprovedCount(articleID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countApproved(articleID)
}

// Comment returns a copy of a stored comment, or nil
func (s *MockStore) Comment(id string) *models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyComment(s.Comments[id])
}

func (s *MockStore) countApproved(articleID string) int {
	n := 0
	for _, c := range s.Comments {
		if c.ArticleID == articleID && c.Status == models.CommentStatusApproved {
			n++
		}
	}
	return n
}

func copyArticle(a *models.Article) *models.Article {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Tags = append([]string{}, a.Tags...)
	return &cp
}

func copyComment(c *models.Comment) *models.Comment {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// MockArticleRepository is a mock implementation of ArticleRepository
type MockArticleRepository struct {
	store       *MockStore
	InsertError error
}

func (m *MockArticleRepository) Create(ctx context.Context, article *models.Article) error {
	if m.InsertError != nil {
		return m.InsertError
	}
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.Articles {
		if a.Slug == article.Slug {
			return apperr.InvalidInput(fmt.Sprintf("slug %q already exists", article.Slug))
		}
	}
	s.Articles[article.ID] = copyArticle(article)
	return nil
}

func (m *MockArticleRepository) GetByID(ctx context.Context, id string) (*models.Article, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return copyArticle(m.store.Articles[id]), nil
}

func (m *MockArticleRepository) Exists(ctx context.Context, id string) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	_, exists := m.store.Articles[id]
	return exists, nil
}

func (m *MockArticleRepository) Count(ctx context.Context) (int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return len(m.store.Articles), nil
}

func (m *MockArticleRepository) TopByCommentCount(ctx context.Context, limit int) ([]models.ArticleCommentCount, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	top := make([]models.ArticleCommentCount, 0, len(m.store.Articles))
	for _, a := range m.store.Articles {
		top = append(top, models.ArticleCommentCount{ID: a.ID, Slug: a.Slug, Title: a.Title, CommentCount: a.CommentCount})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].CommentCount != top[j].CommentCount {
			return top[i].CommentCount > top[j].CommentCount
		}
		return top[i].ID < top[j].ID
	})
	if len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func (m *MockArticleRepository) StreamAll(ctx context.Context, callback func(*models.Article) error) error {
	m.store.mu.Lock()
	articles := make([]*models.Article, 0, len(m.store.Articles))
	for _, a := range m.store.Articles {
		articles = append(articles, copyArticle(a))
	}
	m.store.mu.Unlock()

	sort.Slice(articles, func(i, j int) bool { return articles[i].ID < articles[j].ID })
	for _, article := range articles {
		if err := callback(article); err != nil {
			return err
		}
	}
	return nil
}

// MockCommentRepository is a mock implementation of CommentRepository
type MockCommentRepository struct {
	store *MockStore
}

func (m *MockCommentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return copyComment(m.store.Comments[id]), nil
}

func (m *MockCommentRepository) List(ctx context.Context, filter models.CommentFilter) ([]*models.Comment, int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	var matched []*models.Comment
	for _, c := range m.store.Comments {
		if c.ArticleID != filter.ArticleID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		matched = append(matched, copyComment(c))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	page := []*models.Comment{}
	if filter.Offset < total {
		end := filter.Offset + filter.Limit
		if end > total {
			end = total
		}
		page = matched[filter.Offset:end]
	}
	return page, total, nil
}

func (m *MockCommentRepository) Count(ctx context.Context) (int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return len(m.store.Comments), nil
}

func (m *MockCommentRepository) CountByStatus(ctx context.Context) (map[models.CommentStatus]int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	counts := map[models.CommentStatus]int{
		models.CommentStatusPending:  0,
		models.CommentStatusApproved: 0,
		models.CommentStatusRejected: 0,
	}
	for _, c := range m.store.Comments {
		counts[c.Status]++
	}
	return counts, nil
}

func (m *MockCommentRepository) Like(ctx context.Context, id string, at time.Time) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	c, ok := m.store.Comments[id]
	if !ok {
		return false, nil
	}
	c.Likes++
	c.UpdatedAt = at
	return true, nil
}

func (m *MockCommentRepository) StreamAll(ctx context.Context, callback func(*models.Comment) error) error {
	m.store.mu.Lock()
	comments := make([]*models.Comment, 0, len(m.store.Comments))
	for _, c := range m.store.Comments {
		comments = append(comments, copyComment(c))
	}
	m.store.mu.Unlock()

	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	for _, comment := range comments {
		if err := callback(comment); err != nil {
			return err
		}
	}
	return nil
}

// MockTransactor is a mock implementation of Transactor
type MockTransactor struct {
	store *MockStore
}

func (m *MockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.CommentTx) error) error {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TxCalls++
	if len(s.TxErrors) > 0 {
		err := s.TxErrors[0]
		s.TxErrors = s.TxErrors[1:]
		if err != nil {
			return err
		}
	}

	articles := make(map[string]*models.Article, len(s.Articles))
	for id, a := range s.Articles {
		articles[id] = copyArticle(a)
	}
	comments := make(map[string]*models.Comment, len(s.Comments))
	for id, c := range s.Comments {
		comments[id] = copyComment(c)
	}
	writes := s.Writes

	if err := fn(ctx, &mockCommentTx{store: s}); err != nil {
		s.Articles = articles
		s.Comments = comments
		s.Writes = writes
		return err
	}
	return nil
}

// mockCommentTx runs with the store mutex already held
type mockCommentTx struct {
	store *MockStore
}

func (t *mockCommentTx) GetForUpdate(ctx context.Context, id string) (*models.Comment, error) {
	return copyComment(t.store.Comments[id]), nil
}

func (t *mockCommentTx) Insert(ctx context.Context, comment *models.Comment) error {
	if _, ok := t.store.Articles[comment.ArticleID]; !ok {
		return apperr.NotFound(fmt.Sprintf("article %s not found", comment.ArticleID))
	}
	t.store.Comments[comment.ID] = copyComment(comment)
	t.store.Writes++
	return nil
}

func (t *mockCommentTx) SetStatus(ctx context.Context, id string, status models.CommentStatus, updatedAt time.Time) error {
	c, ok := t.store.Comments[id]
	if !ok {
		return apperr.NotFound(fmt.Sprintf("comment %s not found", id))
	}
	c.Status = status
	c.UpdatedAt = updatedAt
	t.store.Writes++
	return nil
}

func (t *mockCommentTx) Delete(ctx context.Context, id string) error {
	if _, ok := t.store.Comments[id]; !ok {
		return apperr.NotFound(fmt.Sprintf("comment %s not found", id))
	}
	delete(t.store.Comments, id)
	t.store.Writes++
	return nil
}

func (t *mockCommentTx) ArticleExists(ctx context.Context, articleID string) (bool, error) {
	_, ok := t.store.Articles[articleID]
	return ok, nil
}

func (t *mockCommentTx) AdjustCommentCount(ctx context.Context, articleID string, delta int) error {
	a, ok := t.store.Articles[articleID]
	if !ok {
		return apperr.NotFound(fmt.Sprintf("article %s not found", articleID))
	}
	if a.CommentCount+delta < 0 {
		return ErrNegativeCount
	}
	a.CommentCount += delta
	t.store.Writes++
	return nil
}

func (t *mockCommentTx) GetCommentCountForUpdate(ctx context.Context, articleID string) (int, error) {
	a, ok := t.store.Articles[articleID]
	if !ok {
		return 0, apperr.NotFound(fmt.Sprintf("article %s not found", articleID))
	}
	return a.CommentCount, nil
}

func (t *mockCommentTx) SetCommentCount(ctx context.Context, articleID string, count int) error {
	a, ok := t.store.Articles[articleID]
	if !ok {
		return apperr.NotFound(fmt.Sprintf("article %s not found", articleID))
	}
	a.CommentCount = count
	t.store.Writes++
	return nil
}

func (t *mockCommentTx) CountApproved(ctx context.Context, articleID string) (int, error) {
	return t.store.countApproved(articleID), nil
}
