package mocks

import (
	"context"
	"net/http"
	"sync"

	"github.com/comment-moderation-api/internal/events"
	"github.com/comment-moderation-api/internal/models"
	"github.com/comment-moderation-api/internal/service"
)

// MockPublisher records published moderation events
type MockPublisher struct {
	mu         sync.Mutex
	Events     []models.ModerationEvent
	PublishErr error
	Closed     bool
}

// Verify interface compliance
var _ events.Publisher = (*MockPublisher)(nil)

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, event models.ModerationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	m.Closed = true
	return nil
}

// Published returns a copy of the recorded events
func (m *MockPublisher) Published() []models.ModerationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ModerationEvent(nil), m.Events...)
}

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	StreamArticlesFunc func(ctx context.Context, w http.ResponseWriter, format string) error
	StreamCommentsFunc func(ctx context.Context, w http.ResponseWriter, format string) error
	Counts             map[string]int
}

// Verify interface compliance
var _ service.ExportService = (*MockExportService)(nil)

func NewMockExportService() *MockExportService {
	return &MockExportService{
		Counts: make(map[string]int),
	}
}

func (m *MockExportService) StreamArticles(ctx context.Context, w http.ResponseWriter, format string) error {
	if m.StreamArticlesFunc != nil {
		return m.StreamArticlesFunc(ctx, w, format)
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Write([]byte(`{"id":"test-article-1","slug":"test-article"}` + "\n"))
	return nil
}

func (m *MockExportService) StreamComments(ctx context.Context, w http.ResponseWriter, format string) error {
	if m.StreamCommentsFunc != nil {
		return m.StreamCommentsFunc(ctx, w, format)
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Write([]byte(`{"id":"test-comment-1","status":"APPROVED"}` + "\n"))
	return nil
}

func (m *MockExportService) GetCount(ctx context.Context, resource string) (int, error) {
	return m.Counts[resource], nil
}
