package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smartcycle/telemetry-server/internal/models"
)

const dailyCollectionPrefix = "daily_"

// ConnectMongo connects to MongoDB and verifies the connection.
func ConnectMongo(uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// MongoStore is the MongoDB-backed persistence layer. The daily ledger
// lives in one collection per UTC day, appended with single-document
// inserts, so concurrent ingestion never loses an entry. Provisioning
// IDs come from a counters collection advanced with $inc.
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore wraps a database handle.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) users() *mongo.Collection     { return s.db.Collection("users") }
func (s *MongoStore) bikes() *mongo.Collection     { return s.db.Collection("bikes") }
func (s *MongoStore) guardians() *mongo.Collection { return s.db.Collection("guardians") }
func (s *MongoStore) counters() *mongo.Collection  { return s.db.Collection("counters") }
func (s *MongoStore) day(day string) *mongo.Collection {
	return s.db.Collection(dailyCollectionPrefix + day)
}

// nextSeq atomically advances a named counter and returns its new value.
func (s *MongoStore) nextSeq(ctx context.Context, name string) (int, error) {
	var doc struct {
		Seq int `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	err := s.counters().FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to advance %s counter: %w", name, err)
	}
	return doc.Seq, nil
}

// --- users ---

func (s *MongoStore) CreateUser(ctx context.Context, name, email, mobile, passwordHash string) (*models.User, error) {
	err := s.users().FindOne(ctx, bson.M{"email": email}).Err()
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	id, err := s.nextSeq(ctx, "users")
	if err != nil {
		return nil, err
	}
	user := models.User{
		ID:       id,
		Name:     name,
		Email:    email,
		Mobile:   mobile,
		Password: passwordHash,
	}
	if _, err := s.users().InsertOne(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := s.users().FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) FindUserByID(ctx context.Context, id int) (*models.User, error) {
	return s.findUser(ctx, bson.M{"id": id})
}

func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) FindUserByMobile(ctx context.Context, mobile string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"mobile": mobile})
}

// --- bikes ---

func (s *MongoStore) UpsertTelemetry(ctx context.Context, bikeID string, loc models.Location, avgSpeed, battery float64, seenAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"lastSeen":        seenAt,
			"currentLocation": loc,
			"avgSpeed":        avgSpeed,
			"batteryLevel":    battery,
		},
		"$setOnInsert": bson.M{
			"bikeId":    bikeID,
			"status":    "active",
			"createdAt": seenAt,
		},
	}
	_, err := s.bikes().UpdateOne(ctx, bson.M{"bikeId": bikeID}, update, options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) listBikes(ctx context.Context, filter bson.M) ([]models.BikeState, error) {
	cursor, err := s.bikes().Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	bikes := make([]models.BikeState, 0)
	if err := cursor.All(ctx, &bikes); err != nil {
		return nil, err
	}
	return bikes, nil
}

func (s *MongoStore) ListBikes(ctx context.Context) ([]models.BikeState, error) {
	return s.listBikes(ctx, bson.M{})
}

func (s *MongoStore) FindBike(ctx context.Context, bikeID string) (*models.BikeState, error) {
	var bike models.BikeState
	err := s.bikes().FindOne(ctx, bson.M{"bikeId": bikeID}).Decode(&bike)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bike, nil
}

func (s *MongoStore) ListBikesByGuardian(ctx context.Context, guardianID string) ([]models.BikeState, error) {
	return s.listBikes(ctx, bson.M{"guardianId": guardianID})
}

// --- guardians ---

func (s *MongoStore) GetOrCreateGuardian(ctx context.Context, user *models.User) (*models.Guardian, error) {
	guardian, err := s.FindGuardianByUser(ctx, user.ID)
	if err == nil {
		return guardian, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	seq, err := s.nextSeq(ctx, "guardians")
	if err != nil {
		return nil, err
	}
	created := models.Guardian{
		GuardianID: fmt.Sprintf("G%03d", seq),
		UserID:     user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Phone:      user.Mobile,
		CreatedAt:  time.Now().UTC(),
		Status:     "active",
		Wards:      []models.Ward{},
	}
	if _, err := s.guardians().InsertOne(ctx, created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *MongoStore) FindGuardianByUser(ctx context.Context, userID int) (*models.Guardian, error) {
	var guardian models.Guardian
	err := s.guardians().FindOne(ctx, bson.M{"userId": userID}).Decode(&guardian)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &guardian, nil
}

func (s *MongoStore) ListGuardians(ctx context.Context) ([]models.Guardian, error) {
	cursor, err := s.guardians().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	guardians := make([]models.Guardian, 0)
	if err := cursor.All(ctx, &guardians); err != nil {
		return nil, err
	}
	return guardians, nil
}

func (s *MongoStore) AddWard(ctx context.Context, userID int, req models.WardRequest) (*models.Ward, *models.BikeState, error) {
	guardian, err := s.FindGuardianByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	seq, err := s.nextSeq(ctx, "provision")
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	ward := models.Ward{
		WardID:    fmt.Sprintf("W%03d", seq),
		Name:      req.Name,
		Age:       req.Age,
		Grade:     req.Grade,
		BikeID:    fmt.Sprintf("BIKE%03d", seq),
		BikeName:  req.BikeName,
		CreatedAt: now,
		Status:    "active",
	}
	bike := models.BikeState{
		BikeID:          ward.BikeID,
		WardID:          ward.WardID,
		GuardianID:      guardian.GuardianID,
		BikeName:        req.BikeName,
		WardName:        req.Name,
		GuardianName:    guardian.Name,
		Status:          "active",
		LastSeen:        now,
		CreatedAt:       now,
		CurrentLocation: defaultWardLocation,
	}

	_, err = s.guardians().UpdateOne(
		ctx,
		bson.M{"guardianId": guardian.GuardianID},
		bson.M{"$push": bson.M{"wards": ward}},
	)
	if err != nil {
		return nil, nil, err
	}

	if _, err := s.bikes().InsertOne(ctx, bike); err != nil {
		// Pull the ward back out so no ward is left without its bike row.
		_, pullErr := s.guardians().UpdateOne(
			ctx,
			bson.M{"guardianId": guardian.GuardianID},
			bson.M{"$pull": bson.M{"wards": bson.M{"wardId": ward.WardID}}},
		)
		if pullErr != nil {
			return nil, nil, fmt.Errorf("bike insert failed (%v), ward rollback failed: %w", err, pullErr)
		}
		return nil, nil, err
	}

	return &ward, &bike, nil
}

// --- daily ledgers ---

func (s *MongoStore) Append(ctx context.Context, day string, ev models.TelemetryEvent) error {
	_, err := s.day(day).InsertOne(ctx, ev)
	return err
}

func (s *MongoStore) Day(ctx context.Context, day string) ([]models.TelemetryEvent, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.M{"name": dailyCollectionPrefix + day})
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNotFound
	}

	cursor, err := s.day(day).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	entries := make([]models.TelemetryEvent, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *MongoStore) Dates(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.M{
		"name": bson.M{"$regex": "^" + dailyCollectionPrefix},
	})
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(names))
	for _, name := range names {
		dates = append(dates, strings.TrimPrefix(name, dailyCollectionPrefix))
	}
	sort.Strings(dates)
	return dates, nil
}
