package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/deepmine/internal/mining"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig contains connection settings for the MongoDB progress repository.
type MongoConfig struct {
	URI        string // e.g. mongodb://localhost:27017
	Database   string // e.g. deepmine
	Collection string // e.g. progress
}

// MongoProgressRepo implements ProgressRepo on MongoDB: one document per player.
type MongoProgressRepo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoProgressRepo establishes connection and returns repository.
func NewMongoProgressRepo(ctx context.Context, cfg MongoConfig) (*MongoProgressRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "deepmine"
	}
	if cfg.Collection == "" {
		cfg.Collection = "progress"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	repo := &MongoProgressRepo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "player_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("player_id_unique"),
	}
	if _, err := repo.collection.Indexes().CreateOne(ctx, idx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return repo, nil
}

func byPlayer(playerID uint64) bson.M {
	return bson.M{"player_id": int64(playerID)}
}

// Save upserts the player's stats without touching inventory.
func (m *MongoProgressRepo) Save(ctx context.Context, playerID uint64, p mining.Progress) error {
	update := bson.M{
		"$set":         bson.M{"progress": p, "updated_at": time.Now()},
		"$setOnInsert": bson.M{"currency": 0, "ores": bson.M{}},
	}
	_, err := m.collection.UpdateOne(ctx, byPlayer(playerID), update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo save progress %d: %w", playerID, err)
	}
	return nil
}

func (m *MongoProgressRepo) Load(ctx context.Context, playerID uint64) (mining.Progress, bool, error) {
	var doc struct {
		Progress mining.Progress `bson:"progress"`
	}
	opts := options.FindOne().SetProjection(bson.M{"progress": 1})
	err := m.collection.FindOne(ctx, byPlayer(playerID), opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return mining.Progress{}, false, nil
	}
	if err != nil {
		return mining.Progress{}, false, fmt.Errorf("mongo load progress %d: %w", playerID, err)
	}
	return doc.Progress, true, nil
}

func (m *MongoProgressRepo) AddOre(ctx context.Context, playerID uint64, ore mining.OreType, amount int) error {
	return m.inc(ctx, playerID, "ores."+ore.String(), amount)
}

func (m *MongoProgressRepo) AddCurrency(ctx context.Context, playerID uint64, amount int) error {
	return m.inc(ctx, playerID, "currency", amount)
}

func (m *MongoProgressRepo) inc(ctx context.Context, playerID uint64, field string, amount int) error {
	update := bson.M{
		"$inc": bson.M{field: amount},
		"$set": bson.M{"updated_at": time.Now()},
	}
	res, err := m.collection.UpdateOne(ctx, byPlayer(playerID), update)
	if err != nil {
		return fmt.Errorf("mongo inc %s for %d: %w", field, playerID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("player %d: %w", playerID, ErrNotFound)
	}
	return nil
}

func (m *MongoProgressRepo) Get(ctx context.Context, playerID uint64) (ProgressRecord, error) {
	var doc struct {
		PlayerID  int64           `bson:"player_id"`
		Progress  mining.Progress `bson:"progress"`
		Ores      map[string]int  `bson:"ores"`
		Currency  int             `bson:"currency"`
		UpdatedAt time.Time       `bson:"updated_at"`
	}
	err := m.collection.FindOne(ctx, byPlayer(playerID)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return ProgressRecord{}, ErrNotFound
	}
	if err != nil {
		return ProgressRecord{}, fmt.Errorf("mongo get %d: %w", playerID, err)
	}
	if doc.Ores == nil {
		doc.Ores = make(map[string]int)
	}
	return ProgressRecord{
		PlayerID:  playerID,
		Progress:  doc.Progress,
		Ores:      doc.Ores,
		Currency:  doc.Currency,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (m *MongoProgressRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
