package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/database"
	"github.com/comment-moderation-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoArticleRepo implements ArticleRepository on MongoDB
type mongoArticleRepo struct {
	db *database.Mongo
}

// NewMongoArticleRepo creates a MongoDB article repository
func NewMongoArticleRepo(db *database.Mongo) ArticleRepository {
	return &mongoArticleRepo{db: db}
}

func (r *mongoArticleRepo) Create(ctx context.Context, article *models.Article) error {
	if article.Tags == nil {
		article.Tags = []string{}
	}
	if _, err := r.db.Articles.InsertOne(ctx, article); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.InvalidInput(fmt.Sprintf("slug %q already exists", article.Slug))
		}
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

func (r *mongoArticleRepo) GetByID(ctx context.Context, id string) (*models.Article, error) {
	var article models.Article
	err := r.db.Articles.FindOne(ctx, bson.M{"_id": id}).Decode(&article)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return &article, nil
}

func (r *mongoArticleRepo) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.db.Articles.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *mongoArticleRepo) Count(ctx context.Context) (int, error) {
	n, err := r.db.Articles.CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (r *mongoArticleRepo) TopByCommentCount(ctx context.Context, limit int) ([]models.ArticleCommentCount, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "commentCount", Value: -1}, {Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"slug": 1, "title": 1, "commentCount": 1})

	cursor, err := r.db.Articles.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("rank articles: %w", err)
	}
	top := []models.ArticleCommentCount{}
	if err := cursor.All(ctx, &top); err != nil {
		return nil, fmt.Errorf("decode ranking: %w", err)
	}
	return top, nil
}

func (r *mongoArticleRepo) StreamAll(ctx context.Context, callback func(*models.Article) error) error {
	cursor, err := r.db.Articles.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var article models.Article
		if err := cursor.Decode(&article); err != nil {
			return err
		}
		if err := callback(&article); err != nil {
			return err
		}
	}
	return cursor.Err()
}

// mongoCommentRepo implements CommentRepository on MongoDB
type mongoCommentRepo struct {
	db *database.Mongo
}

// NewMongoCommentRepo creates a MongoDB comment repository
func NewMongoCommentRepo(db *database.Mongo) CommentRepository {
	return &mongoCommentRepo{db: db}
}

func (r *mongoCommentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.Comments.FindOne(ctx, bson.M{"_id": id}).Decode(&comment)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &comment, nil
}

func (r *mongoCommentRepo) List(ctx context.Context, filter models.CommentFilter) ([]*models.Comment, int, error) {
	query := bson.M{"articleId": filter.ArticleID}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	total, err := r.db.Comments.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(filter.Offset)).
		SetLimit(int64(filter.Limit))

	cursor, err := r.db.Comments.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	comments := []*models.Comment{}
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, 0, fmt.Errorf("decode comments: %w", err)
	}
	return comments, int(total), nil
}

func (r *mongoCommentRepo) Count(ctx context.Context) (int, error) {
	n, err := r.db.Comments.CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (r *mongoCommentRepo) CountByStatus(ctx context.Context) (map[models.CommentStatus]int, error) {
	cursor, err := r.db.Comments.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("count comments by status: %w", err)
	}
	defer cursor.Close(ctx)

	counts := map[models.CommentStatus]int{
		models.CommentStatusPending:  0,
		models.CommentStatusApproved: 0,
		models.CommentStatusRejected: 0,
	}
	for cursor.Next(ctx) {
		var row struct {
			Status models.CommentStatus `bson:"_id"`
			N      int                  `bson:"n"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.Status] = row.N
	}
	return counts, cursor.Err()
}

func (r *mongoCommentRepo) Like(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := r.db.Comments.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"likes": 1},
		"$set": bson.M{"updatedAt": at},
	})
	if err != nil {
		return false, fmt.Errorf("like comment: %w", err)
	}
	return result.MatchedCount > 0, nil
}

func (r *mongoCommentRepo) StreamAll(ctx context.Context, callback func(*models.Comment) error) error {
	cursor, err := r.db.Comments.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var comment models.Comment
		if err := cursor.Decode(&comment); err != nil {
			return err
		}
		if err := callback(&comment); err != nil {
			return err
		}
	}
	return cursor.Err()
}
