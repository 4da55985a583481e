package runlog

import (
	"context"
	"fmt"
	"time"

	"coingecko_etl/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoDB names for the run archive
const (
	MongoDBName           = "coingecko_etl"
	MongoRunsCollection   = "pipeline_runs"
	mongoOperationTimeout = 10 * time.Second
)

// MongoRecorder archives run reports in MongoDB
type MongoRecorder struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoRecorder connects to MongoDB and verifies the connection
func NewMongoRecorder(ctx context.Context, uri string, logger *zap.Logger) (*MongoRecorder, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(4).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Verify connection with ping
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("run archive connected", zap.String("collection", MongoRunsCollection))
	return newMongoRecorder(client, logger), nil
}

func newMongoRecorder(client *mongo.Client, logger *zap.Logger) *MongoRecorder {
	return &MongoRecorder{
		client:     client,
		collection: client.Database(MongoDBName).Collection(MongoRunsCollection),
		logger:     logger,
	}
}

// Record inserts one report document keyed by the run id
func (m *MongoRecorder) Record(ctx context.Context, report models.RunReport) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOperationTimeout)
	defer cancel()

	if _, err := m.collection.InsertOne(ctx, report); err != nil {
		return fmt.Errorf("failed to archive run %s: %w", report.ID, err)
	}
	return nil
}

// Recent returns up to limit archived reports, newest first
func (m *MongoRecorder) Recent(ctx context.Context, limit int) ([]models.RunReport, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOperationTimeout)
	defer cancel()

	findOptions := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := m.collection.Find(ctx, bson.D{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to query run archive: %w", err)
	}
	defer cursor.Close(ctx)

	var reports []models.RunReport
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode run archive: %w", err)
	}
	return reports, nil
}

// Close disconnects from MongoDB
func (m *MongoRecorder) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}
