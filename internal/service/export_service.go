package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/repository"
	"github.com/rs/zerolog"
)

// Export formats
const (
	FormatNDJSON = "ndjson"
	FormatJSON   = "json"
)

// flushEvery is how many records are written between flushes
const flushEvery = 100

// exportService is the concrete implementation of ExportService
type exportService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

// newExportService creates a new ExportService
func newExportService(repos *repository.Repositories, log zerolog.Logger) *exportService {
	return &exportService{
		repos: repos,
		log:   log.With().Str("service", "export").Logger(),
	}
}

// StreamArticles streams articles in the specified format
func (s *exportService) StreamArticles(ctx context.Context, w http.ResponseWriter, format string) error {
	return streamResource(ctx, s, w, "articles", format, s.repos.Article.StreamAll)
}

// StreamComments streams comments in the specified format
func (s *exportService) StreamComments(ctx context.Context, w http.ResponseWriter, format string) error {
	return streamResource(ctx, s, w, "comments", format, s.repos.Comment.StreamAll)
}

// GetCount returns count for a resource
func (s *exportService) GetCount(ctx context.Context, resource string) (int, error) {
	switch resource {
	case "articles":
		return s.repos.Article.Count(ctx)
	case "comments":
		return s.repos.Comment.Count(ctx)
	default:
		return 0, apperr.InvalidInput(fmt.Sprintf("unknown resource: %s", resource))
	}
}

func streamResource[T any](
	ctx context.Context,
	s *exportService,
	w http.ResponseWriter,
	resource, format string,
	stream func(ctx context.Context, callback func(T) error) error,
) error {
	if format == "" {
		format = FormatNDJSON
	}
	if format != FormatNDJSON && format != FormatJSON {
		return apperr.InvalidInput(fmt.Sprintf("unsupported format: %s", format))
	}

	s.log.Info().Str("resource", resource).Str("format", format).Msg("Starting export")

	var count int
	var err error
	if format == FormatNDJSON {
		count, err = writeNDJSON(ctx, w, resource, stream)
	} else {
		count, err = writeJSONArray(ctx, w, resource, stream)
	}

	if err != nil {
		s.log.Error().Err(err).Str("resource", resource).Int("count", count).Msg("Export aborted")
		return err
	}
	s.log.Info().Str("resource", resource).Int("count", count).Msg("Export completed")
	return nil
}

func writeNDJSON[T any](ctx context.Context, w http.ResponseWriter, resource string, stream func(context.Context, func(T) error) error) (int, error) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", "attachment; filename="+resource+".ndjson")

	flusher, _ := w.(http.Flusher)
	count := 0

	err := stream(ctx, func(record T) error {
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
		count++

		if count%flushEvery == 0 && flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	return count, err
}

func writeJSONArray[T any](ctx context.Context, w http.ResponseWriter, resource string, stream func(context.Context, func(T) error) error) (int, error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename="+resource+".json")

	flusher, _ := w.(http.Flusher)
	count := 0

	w.Write([]byte("["))
	err := stream(ctx, func(record T) error {
		if count > 0 {
			w.Write([]byte(","))
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		count++

		if count%flushEvery == 0 && flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	w.Write([]byte("]"))
	return count, err
}
