package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/i474232898/weather-history/internal/weather"
)

// maxUpdateAttempts bounds the optimistic-concurrency loop in Update.
const maxUpdateAttempts = 5

// MongoStore is a weather.Repository backed by a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// recordDoc is the stored document shape.
type recordDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	InputLocation    string             `bson:"inputLocation"`
	ResolvedLocation locationDoc        `bson:"standardizedLocation"`
	DateRange        dateRangeDoc       `bson:"dateRange"`
	WeatherData      []observationDoc   `bson:"weatherData"`
	UserNotes        string             `bson:"userNotes"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

type locationDoc struct {
	Name    string  `bson:"name"`
	Lat     float64 `bson:"lat"`
	Lon     float64 `bson:"lon"`
	Country string  `bson:"country"`
	State   string  `bson:"state"`
}

type dateRangeDoc struct {
	StartDate string `bson:"startDate"`
	EndDate   string `bson:"endDate"`
}

type observationDoc struct {
	Date          string  `bson:"date"`
	AvgTemp       float64 `bson:"avg_temp"`
	MinTemp       float64 `bson:"min_temp"`
	MaxTemp       float64 `bson:"max_temp"`
	Condition     string  `bson:"condition"`
	Precipitation float64 `bson:"precipitation"`
}

// NewMongoStore connects to uri and uses database.collection.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is not configured")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &MongoStore{client: client, collection: coll}, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks the primary is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return weather.NewPersistenceError("ping", err)
	}
	return nil
}

// Create inserts rec with a new ObjectID.
func (s *MongoStore) Create(ctx context.Context, rec weather.HistoryRecord) (weather.HistoryRecord, error) {
	rec = normalize(rec)
	if err := weather.ValidateRecord(rec); err != nil {
		return weather.HistoryRecord{}, err
	}

	doc := toDoc(rec)
	doc.ID = primitive.NewObjectID()
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return weather.HistoryRecord{}, weather.NewPersistenceError("create", err)
	}
	rec.ID = doc.ID.Hex()
	return rec, nil
}

// List returns all records ordered by createdAt descending.
func (s *MongoStore) List(ctx context.Context) ([]weather.HistoryRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, weather.NewPersistenceError("list", err)
	}
	var docs []recordDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, weather.NewPersistenceError("list", err)
	}

	result := make([]weather.HistoryRecord, 0, len(docs))
	for _, d := range docs {
		rec, err := fromDoc(d)
		if err != nil {
			return nil, weather.NewPersistenceError("list", err)
		}
		result = append(result, rec)
	}
	return result, nil
}

// Get returns the record with the given ObjectID hex id.
func (s *MongoStore) Get(ctx context.Context, id string) (weather.HistoryRecord, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return weather.HistoryRecord{}, err
	}
	doc, err := s.find(ctx, "get", oid)
	if err != nil {
		return weather.HistoryRecord{}, err
	}
	rec, err := fromDoc(doc)
	if err != nil {
		return weather.HistoryRecord{}, weather.NewPersistenceError("get", err)
	}
	return rec, nil
}

// Update applies patch using optimistic concurrency on updatedAt, so that a
// concurrent writer's notes are never silently overwritten.
func (s *MongoStore) Update(ctx context.Context, id string, patch weather.RecordPatch, now time.Time) (weather.HistoryRecord, bool, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return weather.HistoryRecord{}, false, err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		doc, err := s.find(ctx, "update", oid)
		if err != nil {
			return weather.HistoryRecord{}, false, err
		}
		current, err := fromDoc(doc)
		if err != nil {
			return weather.HistoryRecord{}, false, weather.NewPersistenceError("update", err)
		}

		updated, changed := applyPatch(current, patch, now)
		if !changed {
			return current, false, nil
		}

		res, err := s.collection.UpdateOne(ctx,
			bson.M{"_id": oid, "updatedAt": doc.UpdatedAt},
			bson.M{"$set": bson.M{"userNotes": updated.UserNotes, "updatedAt": updated.UpdatedAt}},
		)
		if err != nil {
			return weather.HistoryRecord{}, false, weather.NewPersistenceError("update", err)
		}
		if res.MatchedCount == 1 {
			return updated, true, nil
		}
		// Lost the race against another writer; reload and retry.
	}
	return weather.HistoryRecord{}, false, weather.NewPersistenceError("update", errors.New("too many concurrent updates"))
}

// Delete removes the record with the given id.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return weather.NewPersistenceError("delete", err)
	}
	if res.DeletedCount == 0 {
		return notFound(id)
	}
	return nil
}

func (s *MongoStore) find(ctx context.Context, op string, oid primitive.ObjectID) (recordDoc, error) {
	var doc recordDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return recordDoc{}, notFound(oid.Hex())
	}
	if err != nil {
		return recordDoc{}, weather.NewPersistenceError(op, err)
	}
	return doc, nil
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", weather.ErrInvalidID, id)
	}
	return oid, nil
}

func toDoc(rec weather.HistoryRecord) recordDoc {
	obs := make([]observationDoc, 0, len(rec.WeatherSeries))
	for _, o := range rec.WeatherSeries {
		obs = append(obs, observationDoc{
			Date:          o.Date.String(),
			AvgTemp:       o.AvgTemp,
			MinTemp:       o.MinTemp,
			MaxTemp:       o.MaxTemp,
			Condition:     string(o.Condition),
			Precipitation: o.Precipitation,
		})
	}
	return recordDoc{
		InputLocation: rec.InputLocation,
		ResolvedLocation: locationDoc{
			Name:    rec.ResolvedLocation.Name,
			Lat:     rec.ResolvedLocation.Lat,
			Lon:     rec.ResolvedLocation.Lon,
			Country: rec.ResolvedLocation.Country,
			State:   rec.ResolvedLocation.State,
		},
		DateRange: dateRangeDoc{
			StartDate: rec.DateRange.Start.Format(time.RFC3339Nano),
			EndDate:   rec.DateRange.End.Format(time.RFC3339Nano),
		},
		WeatherData: obs,
		UserNotes:   rec.UserNotes,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func fromDoc(doc recordDoc) (weather.HistoryRecord, error) {
	start, err := time.Parse(time.RFC3339Nano, doc.DateRange.StartDate)
	if err != nil {
		return weather.HistoryRecord{}, fmt.Errorf("parse startDate: %w", err)
	}
	end, err := time.Parse(time.RFC3339Nano, doc.DateRange.EndDate)
	if err != nil {
		return weather.HistoryRecord{}, fmt.Errorf("parse endDate: %w", err)
	}

	series := make([]weather.Observation, 0, len(doc.WeatherData))
	for _, o := range doc.WeatherData {
		d, err := weather.ParseDate(o.Date)
		if err != nil {
			return weather.HistoryRecord{}, fmt.Errorf("parse observation date: %w", err)
		}
		series = append(series, weather.Observation{
			Date:          d,
			AvgTemp:       o.AvgTemp,
			MinTemp:       o.MinTemp,
			MaxTemp:       o.MaxTemp,
			Condition:     weather.Condition(o.Condition),
			Precipitation: o.Precipitation,
		})
	}

	return weather.HistoryRecord{
		ID:            doc.ID.Hex(),
		InputLocation: doc.InputLocation,
		ResolvedLocation: weather.Location{
			Name:    doc.ResolvedLocation.Name,
			Lat:     doc.ResolvedLocation.Lat,
			Lon:     doc.ResolvedLocation.Lon,
			Country: doc.ResolvedLocation.Country,
			State:   doc.ResolvedLocation.State,
		},
		DateRange:     weather.DateRange{Start: start, End: end},
		WeatherSeries: series,
		UserNotes:     doc.UserNotes,
		CreatedAt:     doc.CreatedAt.UTC(),
		UpdatedAt:     doc.UpdatedAt.UTC(),
	}, nil
}
