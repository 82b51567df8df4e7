package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/config"
	"github.com/comment-moderation-api/internal/database"
	"github.com/comment-moderation-api/internal/metrics"
	"github.com/comment-moderation-api/internal/models"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoWriteConflict        = 112
	labelTransientTransaction = "TransientTransactionError"
	labelUnknownCommitResult  = "UnknownTransactionCommitResult"
	maxCommitAttempts         = 3
)

// mongoTransactor runs moderation transactions as multi-document MongoDB
// transactions. Write conflicts abort the transaction and are retried.
type mongoTransactor struct {
	db          *database.Mongo
	maxAttempts int
	backoff     time.Duration
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewMongoTransactor creates a Transactor backed by MongoDB
func NewMongoTransactor(db *database.Mongo, cfg config.ModerationConfig, m *metrics.Metrics, log zerolog.Logger) Transactor {
	return &mongoTransactor{
		db:          db,
		maxAttempts: cfg.MaxTxAttempts,
		backoff:     cfg.RetryBackoff,
		metrics:     m,
		log:         log.With().Str("component", "mongo_tx").Logger(),
	}
}

// WithinTx runs fn inside a session transaction, retrying transient failures
func (t *mongoTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx CommentTx) error) error {
	return withRetry(ctx, t.maxAttempts, t.backoff, isRetryableMongoError, func(attempt int, err error) {
		t.metrics.TxRetry(config.DriverMongo)
		t.log.Warn().Err(err).Int("attempt", attempt).Msg("Transaction conflict, retrying")
	}, func() error {
		return t.runOnce(ctx, fn)
	})
}

func (t *mongoTransactor) runOnce(ctx context.Context, fn func(ctx context.Context, tx CommentTx) error) error {
	session, err := t.db.Client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	return mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if err := fn(sc, &mongoCommentTx{db: t.db}); err != nil {
			sc.AbortTransaction(context.Background())
			return err
		}

		var commitErr error
		for i := 0; i < maxCommitAttempts; i++ {
			commitErr = sc.CommitTransaction(sc)
			if !hasMongoLabel(commitErr, labelUnknownCommitResult) {
				break
			}
		}
		if commitErr != nil {
			return fmt.Errorf("commit transaction: %w", commitErr)
		}
		return nil
	})
}

func isRetryableMongoError(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorLabel(labelTransientTransaction) || se.HasErrorCode(mongoWriteConflict)
	}
	return false
}

func hasMongoLabel(err error, label string) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorLabel(label)
}

// mongoCommentTx implements CommentTx. Every method must be called with the
// session context handed to the WithinTx callback.
type mongoCommentTx struct {
	db *database.Mongo
}

// GetForUpdate bumps txVersion so that a concurrent transaction touching the
// same comment hits a write conflict instead of reading a stale status.
func (t *mongoCommentTx) GetForUpdate(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	err := t.db.Comments.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"txVersion": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&comment)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock comment: %w", err)
	}
	return &comment, nil
}

func (t *mongoCommentTx) Insert(ctx context.Context, comment *models.Comment) error {
	if _, err := t.db.Comments.InsertOne(ctx, comment); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (t *mongoCommentTx) SetStatus(ctx context.Context, id string, status models.CommentStatus, updatedAt time.Time) error {
	result, err := t.db.Comments.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": status, "updatedAt": updatedAt},
	})
	if err != nil {
		return fmt.Errorf("set comment status: %w", err)
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound(fmt.Sprintf("comment %s not found", id))
	}
	return nil
}

func (t *mongoCommentTx) Delete(ctx context.Context, id string) error {
	result, err := t.db.Comments.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if result.DeletedCount == 0 {
		return apperr.NotFound(fmt.Sprintf("comment %s not found", id))
	}
	return nil
}

func (t *mongoCommentTx) ArticleExists(ctx context.Context, articleID string) (bool, error) {
	n, err := t.db.Articles.CountDocuments(ctx, bson.M{"_id": articleID}, options.Count().SetLimit(1))
	return n > 0, err
}

func (t *mongoCommentTx) AdjustCommentCount(ctx context.Context, articleID string, delta int) error {
	result, err := t.db.Articles.UpdateOne(ctx, bson.M{"_id": articleID}, bson.M{
		"$inc": bson.M{"commentCount": delta},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("adjust commentCount: %w", err)
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound(fmt.Sprintf("article %s not found", articleID))
	}
	return nil
}

func (t *mongoCommentTx) GetCommentCountForUpdate(ctx context.Context, articleID string) (int, error) {
	var doc struct {
		CommentCount int `bson:"commentCount"`
	}
	err := t.db.Articles.FindOneAndUpdate(ctx,
		bson.M{"_id": articleID},
		bson.M{"$inc": bson.M{"txVersion": 1}},
		options.FindOneAndUpdate().SetProjection(bson.M{"commentCount": 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, apperr.NotFound(fmt.Sprintf("article %s not found", articleID))
	}
	if err != nil {
		return 0, fmt.Errorf("lock article: %w", err)
	}
	return doc.CommentCount, nil
}

func (t *mongoCommentTx) SetCommentCount(ctx context.Context, articleID string, count int) error {
	result, err := t.db.Articles.UpdateOne(ctx, bson.M{"_id": articleID}, bson.M{
		"$set": bson.M{"commentCount": count, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("set commentCount: %w", err)
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound(fmt.Sprintf("article %s not found", articleID))
	}
	return nil
}

func (t *mongoCommentTx) CountApproved(ctx context.Context, articleID string) (int, error) {
	n, err := t.db.Comments.CountDocuments(ctx, bson.M{
		"articleId": articleID,
		"status":    models.CommentStatusApproved,
	})
	return int(n), err
}
