// Command archive-stock-moves copies the Mongo stock movement ledger into a
// DynamoDB table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/yashrajoria/giftshop-backend/common/logger"
	"github.com/yashrajoria/giftshop-backend/database"
	"github.com/yashrajoria/giftshop-backend/models"
	awspkg "github.com/yashrajoria/giftshop-backend/pkg/aws"
	"github.com/yashrajoria/giftshop-backend/repository/dynamo"
	"github.com/yashrajoria/giftshop-backend/repository/mongostore"
	"go.uber.org/zap"
)

func main() {
	var mongoURI, dbName, table, since string
	flag.StringVar(&mongoURI, "mongo", os.Getenv("MONGO_DB_URL"), "MongoDB URI")
	flag.StringVar(&dbName, "db", os.Getenv("MONGO_DB_NAME"), "MongoDB database name")
	flag.StringVar(&table, "table", os.Getenv("DDB_TABLE_STOCK_MOVES"), "DynamoDB table name")
	flag.StringVar(&since, "since", "", "archive movements created at or after this RFC3339 time")
	flag.Parse()

	log := logger.Initialize(os.Getenv("APP_ENV"))
	defer log.Sync()

	if mongoURI == "" {
		log.Fatal("MONGO_DB_URL must be set or provided via -mongo")
	}
	if dbName == "" {
		dbName = "giftshop"
	}

	var from time.Time
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			log.Fatal("Invalid -since", zap.String("since", since), zap.Error(err))
		}
		from = t
	}

	ctx := context.Background()
	client, db, err := database.ConnectMongo(mongoURI, dbName, log)
	if err != nil {
		log.Fatal("Mongo connect failed", zap.Error(err))
	}
	defer database.DisconnectMongo(client, log)

	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		log.Fatal("AWS config failed", zap.Error(err))
	}
	metrics := awspkg.NewMetricsClient(awsCfg)
	archive := dynamo.NewMovementArchive(dynamodb.NewFromConfig(awsCfg), dynamo.TableName(table), log)

	moves := mongostore.New(client, db).Movements()
	err = moves.ScanSince(ctx, from, func(m models.StockMove) error {
		if err := archive.Add(ctx, m); err != nil {
			return err
		}
		if n := archive.Written(); n > 0 && n%500 == 0 {
			log.Info("Archiving stock moves", zap.Int("written", n))
		}
		return nil
	})
	if err == nil {
		err = archive.Flush(ctx)
	}
	if err != nil {
		log.Fatal("Archive failed", zap.Int("written", archive.Written()), zap.Error(err))
	}

	_ = metrics.RecordValue(ctx, awspkg.MetricMovesArchived, float64(archive.Written()), map[string]string{"Table": dynamo.TableName(table)})
	fmt.Printf("Archive complete. written=%d\n", archive.Written())
}
