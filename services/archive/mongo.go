package archive

import (
	"context"
	"log"
	"sync"
	"time"

	"stocktracker_backend/models"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB database and collection names
const (
	MongoDBName             = "stocktracker"
	MongoSnapshotCollection = "price_snapshots"
)

// snapshotDoc is the archived form of a price snapshot
type snapshotDoc struct {
	SnapshotID    uint      `bson:"snapshot_id"`
	StockID       uint      `bson:"stock_id"`
	Price         string    `bson:"price"`
	Change        string    `bson:"change"`
	ChangePercent string    `bson:"change_percent"`
	Volume        int64     `bson:"volume"`
	Source        string    `bson:"source"`
	IsLatest      bool      `bson:"is_latest"`
	CreatedAt     time.Time `bson:"created_at"`
	ArchivedAt    time.Time `bson:"archived_at"`
}

// SnapshotArchive mirrors committed price snapshots into MongoDB for
// long-term history. The archive is optional: without MONGODB_URI it stays a
// no-op, and archival failures are logged, never propagated.
type SnapshotArchive struct {
	client      *mongo.Client
	collection  *mongo.Collection
	mu          sync.RWMutex
	isConnected bool
}

// NewSnapshotArchive connects to MongoDB when uri is set. An empty uri
// returns a disabled archive.
func NewSnapshotArchive(uri string) *SnapshotArchive {
	a := &SnapshotArchive{}
	if uri == "" {
		log.Println("MONGODB_URI not set, snapshot archive disabled")
		return a
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Printf("Snapshot archive disabled, MongoDB connect failed: %v", err)
		return a
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Printf("Snapshot archive disabled, MongoDB ping failed: %v", err)
		return a
	}

	a.client = client
	a.collection = client.Database(MongoDBName).Collection(MongoSnapshotCollection)
	a.isConnected = true
	log.Println("Snapshot archive connected to MongoDB")
	return a
}

// IsConnected reports whether archiving is live
func (a *SnapshotArchive) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.isConnected
}

// SnapshotStored archives one committed snapshot (prices.SnapshotSink)
func (a *SnapshotArchive) SnapshotStored(snapshot *models.PriceSnapshot) {
	if !a.IsConnected() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc := snapshotDoc{
		SnapshotID:    snapshot.ID,
		StockID:       snapshot.StockID,
		Price:         snapshot.Price.String(),
		Change:        snapshot.Change.String(),
		ChangePercent: snapshot.ChangePercent.String(),
		Volume:        snapshot.Volume,
		Source:        snapshot.Source,
		IsLatest:      snapshot.IsLatest,
		CreatedAt:     snapshot.CreatedAt,
		ArchivedAt:    time.Now().UTC(),
	}

	if _, err := a.collection.InsertOne(ctx, doc); err != nil {
		log.Printf("Failed to archive snapshot %d: %v", snapshot.ID, err)
	}
}

// Close disconnects from MongoDB
func (a *SnapshotArchive) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.isConnected {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		log.Printf("Error disconnecting MongoDB: %v", err)
	}
	a.isConnected = false
}
