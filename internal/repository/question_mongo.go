package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rl-arena/trivia-backend/internal/models"
)

// MongoQuestionRepository reads questions from a MongoDB collection
// maintained by the content management tool.
type MongoQuestionRepository struct {
	collection *mongo.Collection
}

func NewMongoQuestionRepository(client *mongo.Client, database string) *MongoQuestionRepository {
	return &MongoQuestionRepository{
		collection: client.Database(database).Collection("questions"),
	}
}

func (r *MongoQuestionRepository) AllQuestions(ctx context.Context) ([]models.Question, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoQuestionRepository) ByCategory(ctx context.Context, category string) ([]models.Question, error) {
	return r.find(ctx, bson.M{"category": category})
}

func (r *MongoQuestionRepository) find(ctx context.Context, filter bson.M) ([]models.Question, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer cursor.Close(ctx)

	var questions []models.Question
	if err := cursor.All(ctx, &questions); err != nil {
		return nil, fmt.Errorf("failed to decode questions: %w", err)
	}

	return questions, nil
}
