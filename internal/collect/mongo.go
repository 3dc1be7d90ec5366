package collect

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/stockelper/stockgraph/internal/config"
	"github.com/stockelper/stockgraph/internal/domain"
	"github.com/stockelper/stockgraph/internal/platform/logger"
)

// MongoCompetitors reads the competitor relationship collection. The data is
// advisory: the planner degrades to an empty competitor map when this source
// is unreachable.
type MongoCompetitors struct {
	cfg config.MongoConfig
	log *logger.Logger
}

func NewMongoCompetitors(cfg config.MongoConfig, log *logger.Logger) *MongoCompetitors {
	return &MongoCompetitors{cfg: cfg, log: log.With("collector", "MongoDB")}
}

type competitorDoc struct {
	Code        string `bson:"_id"`
	Competitors []struct {
		Code string `bson:"code"`
	} `bson:"competitors"`
}

// Competitors returns the competitor code lists keyed by stock code.
func (m *MongoCompetitors) Competitors(ctx context.Context) (map[domain.EntityKey][]domain.EntityKey, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(m.cfg.URI).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(5 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	coll := client.Database(m.cfg.Database).Collection(m.cfg.Collection)
	cursor, err := coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}

	var docs []competitorDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}

	competitors := make(map[domain.EntityKey][]domain.EntityKey, len(docs))
	for _, doc := range docs {
		code := padCode(doc.Code)
		if code == "" {
			continue
		}
		list := make([]domain.EntityKey, 0, len(doc.Competitors))
		for _, c := range doc.Competitors {
			if padded := padCode(c.Code); padded != "" {
				list = append(list, padded)
			}
		}
		competitors[code] = list
	}

	m.log.Info("collected competitor map", "companies", len(competitors))
	return competitors, nil
}
