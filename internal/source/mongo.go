package source

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BartekS5/bigsitemap/pkg/logger"
	"github.com/BartekS5/bigsitemap/pkg/models"
)

var mongoOps = map[Op]string{
	OpEq:  "$eq",
	OpNe:  "$ne",
	OpGt:  "$gt",
	OpGte: "$gte",
	OpLt:  "$lt",
	OpLte: "$lte",
}

// MongoSource reads records from one collection.
type MongoSource struct {
	Collection *mongo.Collection
	Mapping    FieldMapping
	name       string
}

func NewMongoSource(client *mongo.Client, database, collection, name string, mapping FieldMapping) (*MongoSource, error) {
	if database == "" || collection == "" {
		return nil, fmt.Errorf("%w: source %s needs a database and a collection", models.ErrConfiguration, name)
	}
	if name == "" {
		name = collection
	}
	return &MongoSource{
		Collection: client.Database(database).Collection(collection),
		Mapping:    mapping,
		name:       name,
	}, nil
}

func (m *MongoSource) Name() string { return m.name }

func (m *MongoSource) PrimaryKey() string { return m.Mapping.PrimaryKey }

func (m *MongoSource) Count(ctx context.Context, filter Filter) (int64, error) {
	query, err := MongoFilter(filter)
	if err != nil {
		return 0, err
	}
	n, err := m.Collection.CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", m.name, err)
	}
	return n, nil
}

func (m *MongoSource) Fetch(ctx context.Context, filter Filter, page Page) ([]Record, error) {
	query, err := MongoFilter(filter)
	if err != nil {
		return nil, err
	}

	findOpts := options.Find()
	if page.Limit > 0 {
		findOpts.SetLimit(page.Limit)
	}
	if page.Offset > 0 {
		findOpts.SetSkip(page.Offset)
	}
	if page.OrderBy != "" {
		findOpts.SetSort(bson.D{{Key: page.OrderBy, Value: 1}})
	}

	cursor, err := m.Collection.Find(ctx, query, findOpts)
	if err != nil {
		return nil, fmt.Errorf("finding in %s: %w", m.name, err)
	}
	defer cursor.Close(ctx)

	var results []Record
	for cursor.Next(ctx) {
		var doc map[string]interface{}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding %s document: %w", m.name, err)
		}
		rec, err := m.Mapping.ToRecord(doc)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", m.name, err)
		}
		results = append(results, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", m.name, err)
	}
	logger.Debugf("mongo %s: fetched %d documents (skip %d, limit %d)", m.name, len(results), page.Offset, page.Limit)
	return results, nil
}

// MongoFilter renders a Filter as a BSON query. Conditions on the same field
// are combined with $and so none of them is overwritten.
func MongoFilter(filter Filter) (bson.D, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if len(filter.Conditions) == 0 {
		return bson.D{}, nil
	}

	and := make(bson.A, 0, len(filter.Conditions))
	for _, c := range filter.Conditions {
		and = append(and, bson.D{{Key: c.Field, Value: bson.D{{Key: mongoOps[c.Op], Value: c.Value}}}})
	}
	if len(and) == 1 {
		return and[0].(bson.D), nil
	}
	return bson.D{{Key: "$and", Value: and}}, nil
}
