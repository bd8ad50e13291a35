// Package mongorepo stores decision records in a MongoDB collection using the
// document layout the game dashboard reads: npc_id, timestamp, scene_report and
// ai_content as a nested document.
package mongorepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"npcgateway/internal/app/ports"
	"npcgateway/internal/domain/decision"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultDatabase   = "game_ai_db"
	DefaultCollection = "npc_history"
)

type Config struct {
	URI        string
	Database   string
	Collection string
}

type writeDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	NPCID       string             `bson:"npc_id"`
	NPCName     string             `bson:"npc_name"`
	Timestamp   time.Time          `bson:"timestamp"`
	SceneReport string             `bson:"scene_report"`
	Status      string             `bson:"status"`
	AIContent   any                `bson:"ai_content"`
}

type readDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	NPCID       string             `bson:"npc_id"`
	NPCName     string             `bson:"npc_name"`
	Timestamp   time.Time          `bson:"timestamp"`
	SceneReport string             `bson:"scene_report"`
	Status      string             `bson:"status"`
	AIContent   bson.RawValue      `bson:"ai_content"`
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Open connects and pings so a bad URI fails at startup rather than on the
// first write.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo store: uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	opts := options.Client().ApplyURI(cfg.URI).SetServerSelectionTimeout(5 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{client: client, coll: client.Database(cfg.Database).Collection(cfg.Collection)}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Append(ctx context.Context, record ports.DecisionRecord) (string, error) {
	doc := writeDoc{
		NPCID:       record.RequesterID,
		NPCName:     record.RequesterName,
		Timestamp:   record.Timestamp.UTC(),
		SceneReport: record.SceneReport,
		Status:      string(record.Status),
		AIContent:   contentValue(record.Content),
	}
	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert decision record: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(res.InsertedID), nil
}

func (s *Store) QueryRecent(ctx context.Context, limit int) ([]ports.DecisionRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find decision records: %v", ports.ErrUnavailable, err)
	}
	var docs []readDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode decision records: %v", ports.ErrUnavailable, err)
	}

	out := make([]ports.DecisionRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, ports.DecisionRecord{
			ID:            d.ID.Hex(),
			RequesterID:   d.NPCID,
			RequesterName: d.NPCName,
			Timestamp:     d.Timestamp.UTC(),
			SceneReport:   d.SceneReport,
			Status:        decision.Status(d.Status),
			Content:       contentJSON(d.AIContent),
		})
	}
	return out, nil
}

// contentValue stores JSON objects as nested documents so they stay queryable;
// anything else is kept as its JSON text.
func contentValue(content json.RawMessage) any {
	if len(content) == 0 {
		return nil
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(content, false, &doc); err == nil {
		return doc
	}
	return string(content)
}

func contentJSON(v bson.RawValue) json.RawMessage {
	switch v.Type {
	case bson.TypeEmbeddedDocument:
		b, err := bson.MarshalExtJSON(v.Document(), false, false)
		if err == nil {
			return b
		}
	case bson.TypeString:
		s := v.StringValue()
		if json.Valid([]byte(s)) {
			return json.RawMessage(s)
		}
		b, _ := json.Marshal(s)
		return b
	}
	return json.RawMessage("null")
}
