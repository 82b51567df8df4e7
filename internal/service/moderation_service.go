package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/events"
	"github.com/comment-moderation-api/internal/metrics"
	"github.com/comment-moderation-api/internal/models"
	"github.com/comment-moderation-api/internal/repository"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const publishTimeout = 5 * time.Second

// Metric result labels
const (
	resultChanged = "changed"
	resultNoop    = "noop"
)

// core carries what every transactional operation needs: the store, the
// event sink, instrumentation and the clock.
type core struct {
	repos     *repository.Repositories
	publisher events.Publisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// startOp opens a span named after the operation. The returned finish func
// records the outcome on the span and in the action metrics.
func (c *core) startOp(ctx context.Context, action models.ModerationAction, attrs ...attribute.KeyValue) (context.Context, func(changed bool, err error)) {
	ctx, span := c.tracer.Start(ctx, "moderation."+spanName(action), trace.WithAttributes(attrs...))
	start := time.Now()

	return ctx, func(changed bool, err error) {
		result := resultNoop
		switch {
		case err != nil:
			result = strings.ToLower(apperr.Code(err))
			if result == "" {
				result = "error"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case changed:
			result = resultChanged
		}
		span.SetAttributes(attribute.String("moderation.result", result))
		span.End()
		c.metrics.ObserveAction(string(action), result, time.Since(start))
	}
}

// publish delivers an event after commit. Failures are logged only; the
// moderation change is already durable.
func (c *core) publish(ctx context.Context, log zerolog.Logger, event models.ModerationEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := c.publisher.Publish(ctx, event); err != nil {
		log.Error().Err(err).
			Str("comment_id", event.CommentID).
			Str("article_id", event.ArticleID).
			Str("action", string(event.Action)).
			Msg("Failed to publish moderation event")
	}
}

func spanName(action models.ModerationAction) string {
	switch action {
	case models.ActionApprove:
		return "Approve"
	case models.ActionReject:
		return "Reject"
	case models.ActionStatus:
		return "SetStatus"
	case models.ActionDelete:
		return "Delete"
	case models.ActionRecount:
		return "Recount"
	case models.ActionCreate:
		return "Create"
	default:
		return string(action)
	}
}

// moderationService is the concrete implementation of ModerationService
type moderationService struct {
	*core
	log zerolog.Logger
}

// newModerationService creates a new ModerationService
func newModerationService(c *core, log zerolog.Logger) *moderationService {
	return &moderationService{
		core: c,
		log:  log.With().Str("service", "moderation").Logger(),
	}
}

// Approve makes a comment count towards its article
func (s *moderationService) Approve(ctx context.Context, id string) (*models.ModerationResult, error) {
	return s.transition(ctx, models.ActionApprove, id, models.CommentStatusApproved)
}

// Reject hides a comment; an approved comment stops counting
func (s *moderationService) Reject(ctx context.Context, id string) (*models.ModerationResult, error) {
	return s.transition(ctx, models.ActionReject, id, models.CommentStatusRejected)
}

// SetStatus moves a comment to any live state, including back to PENDING
func (s *moderationService) SetStatus(ctx context.Context, id string, status models.CommentStatus) (*models.ModerationResult, error) {
	return s.transition(ctx, models.ActionStatus, id, status)
}

// transition is the only path that writes a comment's status. The counter
// delta is derived from the locked (old, new) pair inside the same
// transaction, so a moderation action can never leave the counter behind.
func (s *moderationService) transition(ctx context.Context, action models.ModerationAction, id string, target models.CommentStatus) (*models.ModerationResult, error) {
	ctx, finish := s.startOp(ctx, action,
		attribute.String("comment.id", id),
		attribute.String("comment.target_status", string(target)),
	)

	result, err := s.runTransition(ctx, id, target)
	finish(err == nil && result.Changed, err)
	if err != nil {
		s.log.Warn().Err(err).Str("comment_id", id).Str("action", string(action)).Msg("Moderation failed")
		return nil, err
	}

	logEvent := s.log.Info()
	if !result.Changed {
		logEvent = s.log.Debug()
	}
	logEvent.
		Str("comment_id", id).
		Str("article_id", result.Comment.ArticleID).
		Str("action", string(action)).
		Str("from", string(result.From)).
		Str("to", string(result.To)).
		Int("delta", result.Delta).
		Bool("changed", result.Changed).
		Msg("Comment moderated")

	if result.Changed {
		s.publish(ctx, s.log, models.ModerationEvent{
			CommentID: id,
			ArticleID: result.Comment.ArticleID,
			Action:    action,
			From:      result.From,
			To:        result.To,
			Delta:     result.Delta,
			At:        result.Comment.UpdatedAt,
		})
	}
	return result, nil
}

func (s *moderationService) runTransition(ctx context.Context, id string, target models.CommentStatus) (*models.ModerationResult, error) {
	if target == "" {
		return nil, apperr.New(apperr.ErrInvalidStateTransition, "target status is required", nil)
	}
	if !models.ValidCommentStatuses[target] {
		return nil, apperr.InvalidInput(fmt.Sprintf("invalid status %q", target))
	}

	var result *models.ModerationResult
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, tx repository.CommentTx) error {
		comment, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if comment == nil {
			return apperr.NotFound(fmt.Sprintf("comment %s not found", id))
		}

		res := &models.ModerationResult{Comment: comment, From: comment.Status, To: target}
		if comment.Status == target {
			result = res
			return nil
		}

		now := s.now()
		if err := tx.SetStatus(ctx, id, target, now); err != nil {
			return err
		}
		res.Delta = models.CounterDelta(comment.Status, target)
		if res.Delta != 0 {
			if err := tx.AdjustCommentCount(ctx, comment.ArticleID, res.Delta); err != nil {
				return err
			}
		}

		comment.Status = target
		comment.UpdatedAt = now
		res.Changed = true
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a comment, first taking it out of the counter if approved
func (s *moderationService) Delete(ctx context.Context, id string) (*models.ModerationResult, error) {
	ctx, finish := s.startOp(ctx, models.ActionDelete, attribute.String("comment.id", id))

	var result *models.ModerationResult
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, tx repository.CommentTx) error {
		comment, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if comment == nil {
			return apperr.NotFound(fmt.Sprintf("comment %s not found", id))
		}

		res := &models.ModerationResult{Comment: comment, From: comment.Status, Changed: true}
		if comment.Status.Counted() {
			res.Delta = -1
			if err := tx.AdjustCommentCount(ctx, comment.ArticleID, res.Delta); err != nil {
				return err
			}
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		result = res
		return nil
	})
	finish(err == nil, err)
	if err != nil {
		s.log.Warn().Err(err).Str("comment_id", id).Msg("Delete failed")
		return nil, err
	}

	s.log.Info().
		Str("comment_id", id).
		Str("article_id", result.Comment.ArticleID).
		Str("from", string(result.From)).
		Int("delta", result.Delta).
		Msg("Comment deleted")

	s.publish(ctx, s.log, models.ModerationEvent{
		CommentID: id,
		ArticleID: result.Comment.ArticleID,
		Action:    models.ActionDelete,
		From:      result.From,
		Delta:     result.Delta,
		At:        s.now(),
	})
	return result, nil
}

// Recount recomputes an article's approved comments and overwrites the
// stored counter when it has drifted.
func (s *moderationService) Recount(ctx context.Context, articleID string) (*models.RecountResult, error) {
	ctx, finish := s.startOp(ctx, models.ActionRecount, attribute.String("article.id", articleID))

	result := &models.RecountResult{ArticleID: articleID}
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, tx repository.CommentTx) error {
		previous, err := tx.GetCommentCountForUpdate(ctx, articleID)
		if err != nil {
			return err
		}
		approved, err := tx.CountApproved(ctx, articleID)
		if err != nil {
			return err
		}

		result.Previous = previous
		result.Current = approved
		if previous == approved {
			return nil
		}
		return tx.SetCommentCount(ctx, articleID, approved)
	})
	changed := err == nil && result.Previous != result.Current
	finish(changed, err)
	if err != nil {
		return nil, err
	}

	if !changed {
		s.log.Debug().Str("article_id", articleID).Int("comment_count", result.Current).Msg("Counter consistent")
		return result, nil
	}

	s.log.Warn().
		Str("article_id", articleID).
		Int("previous", result.Previous).
		Int("current", result.Current).
		Msg("Comment counter drift repaired")

	current := result.Current
	s.publish(ctx, s.log, models.ModerationEvent{
		ArticleID:    articleID,
		Action:       models.ActionRecount,
		Delta:        result.Current - result.Previous,
		CommentCount: &current,
		At:           s.now(),
	})
	return result, nil
}
