package database

import (
	"ShadowStream/streamvault/internal/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no active record matches a lookup.
var ErrNotFound = errors.New("file not found")

const filesCollection = "files"

type DB struct {
	client *mongo.Client
	files  *mongo.Collection
	log    *zap.Logger
}

// Connect opens the Mongo connection and verifies the index set. The
// connection string is never logged; only the masked cluster identifier.
func Connect(ctx context.Context, log *zap.Logger, mongoURL, dbName string) (*DB, error) {
	log = log.Named("Database")
	log.Sugar().Infof("Connecting to %s", utils.MaskURL(mongoURL))

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := &DB{
		client: client,
		files:  client.Database(dbName).Collection(filesCollection),
		log:    log,
	}
	db.ensureIndexes(ctx)
	log.Info("Connected")
	return db, nil
}

// ensureIndexes creates the index set the read paths depend on. Failures
// are logged as warnings, not fatal: the store still works, just slower.
func (db *DB) ensureIndexes(ctx context.Context) {
	_, err := db.files.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "channel_id", Value: 1}, {Key: "msg_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "uploaded_by", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "display_name", Value: "text"}}},
	})
	if err != nil {
		db.log.Warn("Failed to ensure indexes, queries may be slow", zap.Error(err))
		return
	}
	db.log.Info("Indexes verified")
}

func (db *DB) Disconnect(ctx context.Context) error {
	err := db.client.Disconnect(ctx)
	if err == nil {
		db.log.Info("Disconnected")
	}
	return err
}

// PutFile upserts a record keyed by (channel_id, msg_id). Re-ingesting the
// same archived message overwrites in place instead of duplicating.
func (db *DB) PutFile(ctx context.Context, file *ArchivedFile) error {
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	file.IsActive = true
	_, err := db.files.UpdateOne(ctx,
		bson.M{"channel_id": file.ChannelID, "msg_id": file.MessageID},
		bson.M{"$set": file},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("put file msg_id=%d: %w", file.MessageID, err)
	}
	db.log.Info("File indexed",
		zap.Int("msgID", file.MessageID),
		zap.String("name", file.DisplayName),
		zap.Int64("size", file.SizeBytes))
	return nil
}

// GetByMessageID returns the active record for (channelID, msgID).
// Soft-deleted records are treated as missing.
func (db *DB) GetByMessageID(ctx context.Context, channelID int64, msgID int) (*ArchivedFile, error) {
	var file ArchivedFile
	err := db.files.FindOne(ctx, bson.M{
		"channel_id": channelID,
		"msg_id":     msgID,
		"is_active":  true,
	}).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file msg_id=%d: %w", msgID, err)
	}
	return &file, nil
}

// Catalog returns one page of active records, newest first. page is
// 1-based.
func (db *DB) Catalog(ctx context.Context, page, perPage int64) ([]ArchivedFile, error) {
	return db.list(ctx, bson.M{"is_active": true}, page, perPage)
}

// ListByUser returns one page of a user's active records, newest first.
func (db *DB) ListByUser(ctx context.Context, userID, page, perPage int64) ([]ArchivedFile, error) {
	return db.list(ctx, bson.M{"is_active": true, "uploaded_by": userID}, page, perPage)
}

func (db *DB) list(ctx context.Context, filter bson.M, page, perPage int64) ([]ArchivedFile, error) {
	if page < 1 {
		page = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * perPage).
		SetLimit(perPage)
	cursor, err := db.files.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	files := make([]ArchivedFile, 0, perPage)
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("decode files: %w", err)
	}
	return files, nil
}

// Count returns the number of active records.
func (db *DB) Count(ctx context.Context) (int64, error) {
	n, err := db.files.CountDocuments(ctx, bson.M{"is_active": true})
	if err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return n, nil
}

// Search matches active records against the display_name text index.
func (db *DB) Search(ctx context.Context, query string, limit int64) ([]ArchivedFile, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	cursor, err := db.files.Find(ctx, bson.M{
		"is_active": true,
		"$text":     bson.M{"$search": query},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("search files: %w", err)
	}
	files := make([]ArchivedFile, 0, limit)
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}
	return files, nil
}

// SoftDelete hides a record from the catalog and the stream route. The
// archived message itself is untouched; the record keeps its identity.
func (db *DB) SoftDelete(ctx context.Context, channelID int64, msgID int) error {
	res, err := db.files.UpdateOne(ctx,
		bson.M{"channel_id": channelID, "msg_id": msgID, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false}},
	)
	if err != nil {
		return fmt.Errorf("soft delete msg_id=%d: %w", msgID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	db.log.Info("File soft-deleted", zap.Int("msgID", msgID))
	return nil
}
