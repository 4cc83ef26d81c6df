package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ConnectMongo connects to MongoDB using the provided URI and database name.
// Transactions need a replica set, so the caller is expected to point at one.
func ConnectMongo(mongoURL, dbName string, logger *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURL)

	client, err := mongo.Connect(timeoutCtx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(timeoutCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB", zap.String("database", dbName))
	return client, client.Database(dbName), nil
}

// DisconnectMongo closes the client with a bounded grace period.
func DisconnectMongo(client *mongo.Client, logger *zap.Logger) error {
	if client == nil {
		return nil
	}
	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer disconnectCancel()

	if err := client.Disconnect(disconnectCtx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	logger.Info("Disconnected from MongoDB")
	return nil
}
