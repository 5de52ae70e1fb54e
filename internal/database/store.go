package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agentic-rag-platform/models"
)

// ErrRunTerminal is returned when an update targets a run that already
// reached a terminal state.
var ErrRunTerminal = errors.New("indexer run is already in a terminal state")

// Store is the typed access layer over the Mongo collections.
type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *mongo.Database { return s.db }

// --- documents ---

func (s *Store) InsertDocument(ctx context.Context, doc *models.Document) (primitive.ObjectID, error) {
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = models.DocumentPending
	}

	res, err := s.db.Collection("documents").InsertOne(ctx, doc)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to insert document: %w", err)
	}
	id := res.InsertedID.(primitive.ObjectID)
	doc.ID = id
	return id, nil
}

func (s *Store) GetDocument(ctx context.Context, id primitive.ObjectID) (*models.Document, error) {
	var doc models.Document
	err := s.db.Collection("documents").FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) FindDocumentByChecksum(ctx context.Context, checksum string) (*models.Document, error) {
	var doc models.Document
	err := s.db.Collection("documents").FindOne(ctx, bson.M{"checksum": checksum}).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, limit, skip int64) ([]models.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	cursor, err := s.db.Collection("documents").Find(ctx, bson.M{},
		options.Find().SetLimit(limit).SetSkip(skip).SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) UpdateDocumentStatus(ctx context.Context, id primitive.ObjectID, status, errMsg string) error {
	update := bson.M{"status": status, "updated_at": time.Now()}
	if errMsg != "" {
		update["error"] = errMsg
	}
	_, err := s.db.Collection("documents").UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	return err
}

func (s *Store) MarkDocumentIndexed(ctx context.Context, id primitive.ObjectID, pages, chunkCount int) error {
	_, err := s.db.Collection("documents").UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":      models.DocumentIndexed,
		"pages":       pages,
		"chunk_count": chunkCount,
		"error":       "",
		"updated_at":  time.Now(),
	}})
	return err
}

// --- chunks ---

// ReplaceDocumentChunks atomically swaps a document's chunks: the previous
// chunk set is removed before the new one is bulk-inserted, so re-indexing
// never leaves stale chunks behind.
func (s *Store) ReplaceDocumentChunks(ctx context.Context, documentID primitive.ObjectID, chunks []models.Chunk) error {
	col := s.db.Collection("chunks")

	if _, err := col.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return fmt.Errorf("failed to delete previous chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]interface{}, len(chunks))
	for i := range chunks {
		chunks[i].DocumentID = documentID
		docs[i] = chunks[i]
	}

	if _, err := col.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

func (s *Store) CountDocumentChunks(ctx context.Context, documentID primitive.ObjectID) (int64, error) {
	return s.db.Collection("chunks").CountDocuments(ctx, bson.M{"document_id": documentID})
}

// --- indexer runs ---

func (s *Store) CreateRun(ctx context.Context, documentID primitive.ObjectID) (*models.IndexerRun, error) {
	run := &models.IndexerRun{
		DocumentID: documentID,
		Status:     models.RunPending,
		StartedAt:  time.Now(),
	}

	res, err := s.db.Collection("indexer_runs").InsertOne(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer run: %w", err)
	}
	run.ID = res.InsertedID.(primitive.ObjectID)
	return run, nil
}

func (s *Store) GetRun(ctx context.Context, id primitive.ObjectID) (*models.IndexerRun, error) {
	var run models.IndexerRun
	err := s.db.Collection("indexer_runs").FindOne(ctx, bson.M{"_id": id}).Decode(&run)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Store) LatestRunForDocument(ctx context.Context, documentID primitive.ObjectID) (*models.IndexerRun, error) {
	var run models.IndexerRun
	err := s.db.Collection("indexer_runs").FindOne(ctx,
		bson.M{"document_id": documentID},
		options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}}),
	).Decode(&run)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// nonTerminalFilter guards run updates: terminal runs are immutable.
func nonTerminalFilter(id primitive.ObjectID) bson.M {
	return bson.M{
		"_id":    id,
		"status": bson.M{"$in": []string{models.RunPending, models.RunRunning}},
	}
}

func (s *Store) UpdateRunProgress(ctx context.Context, id primitive.ObjectID, stage string, counters models.RunCounters) error {
	res, err := s.db.Collection("indexer_runs").UpdateOne(ctx, nonTerminalFilter(id), bson.M{"$set": bson.M{
		"status":   models.RunRunning,
		"stage":    stage,
		"counters": counters,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRunTerminal
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, id primitive.ObjectID, status string, counters models.RunCounters, errMsg string) error {
	if status != models.RunSucceeded && status != models.RunFailed {
		return fmt.Errorf("invalid terminal run status %q", status)
	}

	now := time.Now()
	res, err := s.db.Collection("indexer_runs").UpdateOne(ctx, nonTerminalFilter(id), bson.M{"$set": bson.M{
		"status":      status,
		"counters":    counters,
		"error":       errMsg,
		"finished_at": now,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRunTerminal
	}
	return nil
}

// --- conversations / messages ---

func (s *Store) CreateConversation(ctx context.Context, userID primitive.ObjectID, title string) (*models.Conversation, error) {
	now := time.Now()
	conv := &models.Conversation{
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := s.db.Collection("conversations").InsertOne(ctx, conv)
	if err != nil {
		return nil, err
	}
	conv.ID = res.InsertedID.(primitive.ObjectID)
	return conv, nil
}

func (s *Store) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	_, err := s.db.Collection("messages").InsertOne(ctx, msg)
	return err
}

func (s *Store) GetConversationMessages(ctx context.Context, conversationID string, userID primitive.ObjectID, limit int64) ([]models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	cursor, err := s.db.Collection("messages").Find(ctx,
		bson.M{"conversation_id": conversationID, "user_id": userID},
		options.Find().SetLimit(limit).SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// --- datasets ---

func (s *Store) InsertDataset(ctx context.Context, ds *models.Dataset, rows []models.DatasetRow) error {
	ds.CreatedAt = time.Now()
	ds.RowCount = len(rows)

	res, err := s.db.Collection("datasets").InsertOne(ctx, ds)
	if err != nil {
		return fmt.Errorf("failed to insert dataset: %w", err)
	}
	ds.ID = res.InsertedID.(primitive.ObjectID)

	if len(rows) == 0 {
		return nil
	}

	docs := make([]interface{}, len(rows))
	for i := range rows {
		rows[i].DatasetID = ds.ID
		docs[i] = rows[i]
	}
	if _, err := s.db.Collection("dataset_rows").InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert dataset rows: %w", err)
	}
	return nil
}

func (s *Store) FindDatasetByName(ctx context.Context, name string) (*models.Dataset, error) {
	var ds models.Dataset
	err := s.db.Collection("datasets").FindOne(ctx, bson.M{"name": name}).Decode(&ds)
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

func (s *Store) ListDatasets(ctx context.Context) ([]models.Dataset, error) {
	cursor, err := s.db.Collection("datasets").Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var datasets []models.Dataset
	if err := cursor.All(ctx, &datasets); err != nil {
		return nil, err
	}
	return datasets, nil
}

// --- crawls ---

func (s *Store) InsertCrawl(ctx context.Context, job *models.CrawlJob) (primitive.ObjectID, error) {
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = "pending"
	}

	res, err := s.db.Collection("crawls").InsertOne(ctx, job)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id := res.InsertedID.(primitive.ObjectID)
	job.ID = id
	return id, nil
}

func (s *Store) GetCrawl(ctx context.Context, id primitive.ObjectID) (*models.CrawlJob, error) {
	var job models.CrawlJob
	err := s.db.Collection("crawls").FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *Store) ListCrawls(ctx context.Context) ([]models.CrawlJob, error) {
	cursor, err := s.db.Collection("crawls").Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []models.CrawlJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Store) UpdateCrawl(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	update["updated_at"] = time.Now()
	_, err := s.db.Collection("crawls").UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	return err
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := s.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		return err
	}
	user.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.Collection("users").FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.db.Collection("users").FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
