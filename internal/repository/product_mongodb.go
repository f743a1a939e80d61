package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"productcatalog-api/internal/model"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const countersCollection = "counters"

// MongoDBProductRepository implements ProductRepository using MongoDB.
// Integer ids come from a counters collection so ids look the same as
// with the SQL backends.
type MongoDBProductRepository struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	counters   *mongo.Collection
	logger     *log.Logger
}

// NewMongoDBProductRepository connects to MongoDB and ensures indexes.
func NewMongoDBProductRepository(uri, database, collection string, opts Options) (*MongoDBProductRepository, error) {
	logger := opts.logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	coll := db.Collection(collection)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "stock", Value: 1}}},
		{Keys: bson.D{{Key: "price", Value: 1}}},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Printf("[MongoDB] Warning: failed to create indexes: %v", err)
	}

	logger.Printf("[MongoDB] Connected to %s/%s", database, collection)
	return &MongoDBProductRepository{
		client:     client,
		db:         db,
		collection: coll,
		counters:   db.Collection(countersCollection),
		logger:     logger,
	}, nil
}

// ProductDocument represents a product in MongoDB.
type ProductDocument struct {
	ID    int64                `bson:"_id"`
	Name  string               `bson:"name"`
	Stock int                  `bson:"stock"`
	Price primitive.Decimal128 `bson:"price"`
}

func toDocument(p *model.Product) (ProductDocument, error) {
	price, err := primitive.ParseDecimal128(p.Price.String())
	if err != nil {
		return ProductDocument{}, fmt.Errorf("failed to convert price: %w", err)
	}
	return ProductDocument{ID: p.ID, Name: p.Name, Stock: p.Stock, Price: price}, nil
}

func (d ProductDocument) toProduct() (model.Product, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return model.Product{}, fmt.Errorf("failed to parse price of product %d: %w", d.ID, err)
	}
	return model.Product{ID: d.ID, Name: d.Name, Stock: d.Stock, Price: price}, nil
}

// GetByID returns the product with id.
func (r *MongoDBProductRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var doc ProductDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}

	p, err := doc.toProduct()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns products matching q.
func (r *MongoDBProductRepository) List(ctx context.Context, q model.ListQuery) ([]model.Product, error) {
	filter := bson.M{}
	if q.Search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(q.Search)}
	}

	sort := bson.D{{Key: "_id", Value: 1}}
	if column := q.SortColumn(); column != model.SortByID {
		direction := 1
		if q.Descending() {
			direction = -1
		}
		sort = bson.D{{Key: column, Value: direction}, {Key: "_id", Value: 1}}
	}

	cur, err := r.collection.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cur.Close(ctx)

	var docs []ProductDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	products := make([]model.Product, 0, len(docs))
	for _, doc := range docs {
		p, err := doc.toProduct()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// Begin returns a writer that stages operations and applies them on
// Commit. Each document write is atomic on its own; a failure part way
// through Commit leaves the earlier writes in place.
func (r *MongoDBProductRepository) Begin(ctx context.Context) (ProductWriter, error) {
	return &mongoProductWriter{repo: r}, nil
}

// Ping checks the MongoDB connection.
func (r *MongoDBProductRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// Stats returns statistics about the product collection.
func (r *MongoDBProductRepository) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["db_type"] = "mongodb"

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	stats["total_products"] = count

	result := r.db.RunCommand(ctx, bson.D{{Key: "collStats", Value: r.collection.Name()}})
	var collStats bson.M
	if err := result.Decode(&collStats); err == nil {
		if size, ok := collStats["size"].(int64); ok {
			stats["db_size_bytes"] = size
		} else if size, ok := collStats["size"].(int32); ok {
			stats["db_size_bytes"] = int64(size)
		}
	}

	return stats, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBProductRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (r *MongoDBProductRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": r.collection.Name()},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate product id: %w", err)
	}
	return counter.Seq, nil
}

func (r *MongoDBProductRepository) exists(ctx context.Context, id int64) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("failed to look up product %d: %w", id, err)
	}
	if n == 0 {
		return model.ErrProductNotFound
	}
	return nil
}

type mongoProductWriter struct {
	repo *MongoDBProductRepository
	ops  []func(ctx context.Context) error
	done bool
}

// Add allocates the id immediately; a rolled back insert leaves a gap.
func (w *mongoProductWriter) Add(ctx context.Context, p *model.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	id, err := w.repo.nextID(ctx)
	if err != nil {
		return err
	}
	p.ID = id

	doc, err := toDocument(p)
	if err != nil {
		return err
	}
	w.ops = append(w.ops, func(ctx context.Context) error {
		if _, err := w.repo.collection.InsertOne(ctx, doc); err != nil {
			return fmt.Errorf("failed to insert product: %w", err)
		}
		return nil
	})
	return nil
}

func (w *mongoProductWriter) Update(ctx context.Context, p *model.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := w.repo.exists(ctx, p.ID); err != nil {
		return err
	}

	doc, err := toDocument(p)
	if err != nil {
		return err
	}
	w.ops = append(w.ops, func(ctx context.Context) error {
		res, err := w.repo.collection.UpdateOne(ctx,
			bson.M{"_id": doc.ID},
			bson.M{"$set": bson.M{"name": doc.Name, "stock": doc.Stock, "price": doc.Price}},
		)
		if err != nil {
			return fmt.Errorf("failed to update product %d: %w", doc.ID, err)
		}
		if res.MatchedCount == 0 {
			return model.ErrProductNotFound
		}
		return nil
	})
	return nil
}

func (w *mongoProductWriter) Delete(ctx context.Context, id int64) error {
	if err := w.repo.exists(ctx, id); err != nil {
		return err
	}

	w.ops = append(w.ops, func(ctx context.Context) error {
		res, err := w.repo.collection.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("failed to delete product %d: %w", id, err)
		}
		if res.DeletedCount == 0 {
			return model.ErrProductNotFound
		}
		return nil
	})
	return nil
}

func (w *mongoProductWriter) Commit() error {
	if w.done {
		return errors.New("writer already finished")
	}
	w.done = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, op := range w.ops {
		if err := op(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (w *mongoProductWriter) Rollback() error {
	w.done = true
	w.ops = nil
	return nil
}

var _ ProductRepository = (*MongoDBProductRepository)(nil)
