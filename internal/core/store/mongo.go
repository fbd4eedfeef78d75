package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quizai/quizai/internal/config"
	"github.com/quizai/quizai/internal/core"
)

const (
	accountCollection    = "accounts"
	roomCollection       = "rooms"
	submissionCollection = "submissions"
	rateLimitCollection  = "rate_limits"

	defaultMongoDatabase = "quizai"
)

// MongoStore keeps the same records as Store in MongoDB collections.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongo connects to the database named by cfg.MongoURI and cfg.MongoDatabase.
func OpenMongo(ctx context.Context, cfg config.StoreConfig) (*MongoStore, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	uri := strings.TrimSpace(cfg.MongoURI)
	if uri == "" {
		return nil, errors.New("store mongo_uri is required for the mongo driver")
	}
	name := strings.TrimSpace(cfg.MongoDatabase)
	if name == "" {
		name = defaultMongoDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("open mongo store: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo store: %w", err)
	}

	return &MongoStore{client: client, db: client.Database(name)}, nil
}

type accountDoc struct {
	ID                  string     `bson:"_id"`
	Email               string     `bson:"email"`
	Name                string     `bson:"name"`
	PasswordHash        string     `bson:"password_hash"`
	Verified            bool       `bson:"verified"`
	VerificationCode    string     `bson:"verification_code,omitempty"`
	VerificationExpires *time.Time `bson:"verification_expires,omitempty"`
	ResetCode           string     `bson:"reset_code,omitempty"`
	ResetExpires        *time.Time `bson:"reset_expires,omitempty"`
	AIUsage             int        `bson:"ai_usage"`
	AILimit             int        `bson:"ai_limit"`
	CreatedAt           time.Time  `bson:"created_at"`
	UpdatedAt           time.Time  `bson:"updated_at"`
}

type roomDoc struct {
	ID        string          `bson:"_id"`
	HostID    string          `bson:"host_id"`
	Code      string          `bson:"code"`
	Title     string          `bson:"title"`
	Active    bool            `bson:"active"`
	Questions []core.Question `bson:"questions"`
	Materials []core.Material `bson:"materials"`
	Config    core.RoomConfig `bson:"config"`
	CreatedAt time.Time       `bson:"created_at"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

type submissionDoc struct {
	ID           string                `bson:"_id"`
	RoomID       string                `bson:"room_id"`
	StudentName  string                `bson:"student_name"`
	StudentEmail string                `bson:"student_email,omitempty"`
	StudentID    string                `bson:"student_id,omitempty"`
	IPAddress    string                `bson:"ip_address,omitempty"`
	Answers      map[string]string     `bson:"answers"`
	Grades       map[string]core.Grade `bson:"grades"`
	TotalScore   int                   `bson:"total_score"`
	Status       string                `bson:"status"`
	CreatedAt    time.Time             `bson:"created_at"`
	UpdatedAt    time.Time             `bson:"updated_at"`
}

type rateLimitDoc struct {
	Key          string     `bson:"_id"`
	FailureCount int        `bson:"failure_count"`
	LockCount    int        `bson:"lock_count"`
	BlockedUntil *time.Time `bson:"blocked_until,omitempty"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

// Migrate creates the unique indexes the service relies on.
func (m *MongoStore) Migrate(ctx context.Context) error {
	if m == nil || m.db == nil {
		return ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	indexes := map[string][]mongo.IndexModel{
		accountCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		roomCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "host_id", Value: 1}}},
		},
		submissionCollection: {
			{Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "student_id", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := m.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("store migration failed: %s indexes: %w", name, err)
		}
	}
	return nil
}

// Ping verifies the server is reachable.
func (m *MongoStore) Ping(ctx context.Context) error {
	if m == nil || m.client == nil {
		return ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return m.client.Ping(ctx, nil)
}

// Close disconnects from the server.
func (m *MongoStore) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Disconnect(context.Background())
}

// Driver returns the configured store driver.
func (m *MongoStore) Driver() string {
	if m == nil {
		return ""
	}
	return driverMongo
}

func (m *MongoStore) CreateAccount(ctx context.Context, acct *core.Account) error {
	if acct == nil || strings.TrimSpace(acct.ID) == "" {
		return errors.New("account id is required")
	}
	_, err := m.collection(accountCollection).InsertOne(ctx, toAccountDoc(acct))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("account %s: %w", acct.Email, core.ErrConflict)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (m *MongoStore) GetAccount(ctx context.Context, id string) (*core.Account, error) {
	return m.findAccount(ctx, bson.M{"_id": id})
}

func (m *MongoStore) GetAccountByEmail(ctx context.Context, email string) (*core.Account, error) {
	return m.findAccount(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (m *MongoStore) findAccount(ctx context.Context, filter bson.M) (*core.Account, error) {
	var doc accountDoc
	if err := m.findOne(ctx, accountCollection, filter, &doc); err != nil {
		return nil, err
	}
	return doc.toCore(), nil
}

func (m *MongoStore) UpdateAccount(ctx context.Context, acct *core.Account) error {
	if acct == nil {
		return errors.New("account is required")
	}
	return m.updateByID(ctx, accountCollection, acct.ID, bson.M{"$set": bson.M{
		"name":                 acct.Name,
		"password_hash":        acct.PasswordHash,
		"verified":             acct.Verified,
		"verification_code":    acct.VerificationCode,
		"verification_expires": acct.VerificationExpires,
		"reset_code":           acct.ResetCode,
		"reset_expires":        acct.ResetExpires,
		"ai_limit":             acct.AILimit,
		"updated_at":           acct.UpdatedAt.UTC(),
	}})
}

func (m *MongoStore) IncrementAIUsage(ctx context.Context, accountID string, delta int) error {
	return m.updateByID(ctx, accountCollection, accountID, bson.M{"$inc": bson.M{"ai_usage": delta}})
}

func (m *MongoStore) CreateRoom(ctx context.Context, room *core.Room) error {
	if room == nil || strings.TrimSpace(room.ID) == "" {
		return errors.New("room id is required")
	}
	_, err := m.collection(roomCollection).InsertOne(ctx, toRoomDoc(room))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("room code %s: %w", room.Code, core.ErrConflict)
		}
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

func (m *MongoStore) GetRoom(ctx context.Context, id string) (*core.Room, error) {
	var doc roomDoc
	if err := m.findOne(ctx, roomCollection, bson.M{"_id": id}, &doc); err != nil {
		return nil, err
	}
	return doc.toCore(), nil
}

func (m *MongoStore) GetRoomByCode(ctx context.Context, code string) (*core.Room, error) {
	var doc roomDoc
	if err := m.findOne(ctx, roomCollection, bson.M{"code": strings.ToUpper(strings.TrimSpace(code))}, &doc); err != nil {
		return nil, err
	}
	return doc.toCore(), nil
}

func (m *MongoStore) ListRooms(ctx context.Context, hostID string) ([]*core.Room, error) {
	var docs []roomDoc
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if err := m.find(ctx, roomCollection, bson.M{"host_id": hostID}, &docs, opts); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	rooms := make([]*core.Room, 0, len(docs))
	for i := range docs {
		rooms = append(rooms, docs[i].toCore())
	}
	return rooms, nil
}

func (m *MongoStore) UpdateRoom(ctx context.Context, room *core.Room) error {
	if room == nil {
		return errors.New("room is required")
	}
	return m.updateByID(ctx, roomCollection, room.ID, bson.M{"$set": bson.M{
		"title":      room.Title,
		"active":     room.Active,
		"questions":  nonNilSlice(room.Questions),
		"materials":  nonNilSlice(room.Materials),
		"config":     room.Config,
		"updated_at": room.UpdatedAt.UTC(),
	}})
}

// DeleteRoom removes the room's submissions first so that a failure never
// leaves submissions pointing at a missing room.
func (m *MongoStore) DeleteRoom(ctx context.Context, id string) error {
	if _, err := m.DeleteSubmissions(ctx, core.SubmissionFilter{RoomID: id}); err != nil {
		return fmt.Errorf("delete room submissions: %w", err)
	}
	result, err := m.collection(roomCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if result.DeletedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (m *MongoStore) CreateSubmission(ctx context.Context, sub *core.Submission) error {
	if sub == nil || strings.TrimSpace(sub.ID) == "" {
		return errors.New("submission id is required")
	}
	if _, err := m.collection(submissionCollection).InsertOne(ctx, toSubmissionDoc(sub)); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

func (m *MongoStore) GetSubmission(ctx context.Context, id string) (*core.Submission, error) {
	var doc submissionDoc
	if err := m.findOne(ctx, submissionCollection, bson.M{"_id": id}, &doc); err != nil {
		return nil, err
	}
	return doc.toCore(), nil
}

func (m *MongoStore) ListSubmissions(ctx context.Context, filter core.SubmissionFilter) ([]*core.Submission, error) {
	var docs []submissionDoc
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if err := m.find(ctx, submissionCollection, submissionFilterDoc(filter), &docs, opts); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	subs := make([]*core.Submission, 0, len(docs))
	for i := range docs {
		subs = append(subs, docs[i].toCore())
	}
	return subs, nil
}

func (m *MongoStore) UpdateSubmission(ctx context.Context, sub *core.Submission) error {
	if sub == nil {
		return errors.New("submission is required")
	}
	doc := toSubmissionDoc(sub)
	return m.updateByID(ctx, submissionCollection, sub.ID, bson.M{"$set": bson.M{
		"answers":     doc.Answers,
		"grades":      doc.Grades,
		"total_score": doc.TotalScore,
		"status":      doc.Status,
		"updated_at":  doc.UpdatedAt,
	}})
}

func (m *MongoStore) DeleteSubmissions(ctx context.Context, filter core.SubmissionFilter) (int64, error) {
	doc := submissionFilterDoc(filter)
	if len(doc) == 0 {
		return 0, errors.New("refusing to delete submissions without a filter")
	}
	result, err := m.collection(submissionCollection).DeleteMany(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("delete submissions: %w", err)
	}
	return result.DeletedCount, nil
}

func (m *MongoStore) GetRateLimit(ctx context.Context, key string) (*core.RateLimitRecord, error) {
	var doc rateLimitDoc
	err := m.findOne(ctx, rateLimitCollection, bson.M{"_id": strings.TrimSpace(key)}, &doc)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}
	return doc.toCore(), nil
}

func (m *MongoStore) UpdateRateLimit(ctx context.Context, key string, record *core.RateLimitRecord) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("rate limit key is required")
	}
	if record == nil {
		return errors.New("rate limit record is required")
	}
	doc := rateLimitDoc{
		Key:          key,
		FailureCount: record.FailureCount,
		LockCount:    record.LockCount,
		BlockedUntil: record.BlockedUntil,
		UpdatedAt:    record.UpdatedAt.UTC(),
	}
	_, err := m.collection(rateLimitCollection).ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("store rate limit: %w", err)
	}
	return nil
}

func (m *MongoStore) DeleteRateLimit(ctx context.Context, key string) error {
	if _, err := m.collection(rateLimitCollection).DeleteOne(ctx, bson.M{"_id": strings.TrimSpace(key)}); err != nil {
		return fmt.Errorf("delete rate limit: %w", err)
	}
	return nil
}

func (m *MongoStore) ListRateLimits(ctx context.Context, q RateLimitQuery) ([]RateLimitEntry, error) {
	filter, err := q.mongoFilter()
	if err != nil {
		return nil, err
	}
	var docs []rateLimitDoc
	if err := m.find(ctx, rateLimitCollection, filter, &docs, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	entries := make([]RateLimitEntry, 0, len(docs))
	for i := range docs {
		entries = append(entries, newRateLimitEntry(*docs[i].toCore()))
	}
	return entries, nil
}

func (m *MongoStore) CountRateLimits(ctx context.Context, q RateLimitQuery) (int, error) {
	filter, err := q.mongoFilter()
	if err != nil {
		return 0, err
	}
	count, err := m.collection(rateLimitCollection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count rate limits: %w", err)
	}
	return int(count), nil
}

func (m *MongoStore) ResetRateLimits(ctx context.Context, q RateLimitQuery) (int64, error) {
	filter, err := q.mongoFilter()
	if err != nil {
		return 0, err
	}
	result, err := m.collection(rateLimitCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	return result.DeletedCount, nil
}

func (q RateLimitQuery) mongoFilter() (bson.M, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.All {
		return bson.M{}, nil
	}
	if key := strings.TrimSpace(q.Key); key != "" {
		return bson.M{"_id": key}, nil
	}
	return bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(strings.TrimSpace(q.Prefix))}}, nil
}

func (m *MongoStore) collection(name string) *mongo.Collection {
	return m.db.Collection(name)
}

func (m *MongoStore) findOne(ctx context.Context, collection string, filter bson.M, out any) error {
	if m == nil || m.db == nil {
		return ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := m.collection(collection).FindOne(ctx, filter).Decode(out)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return core.ErrNotFound
	default:
		return fmt.Errorf("fetch %s: %w", collection, err)
	}
}

func (m *MongoStore) find(ctx context.Context, collection string, filter bson.M, out any, opts *options.FindOptions) error {
	if m == nil || m.db == nil {
		return ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cursor, err := m.collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

func (m *MongoStore) updateByID(ctx context.Context, collection string, id string, update bson.M) error {
	if m == nil || m.db == nil {
		return ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := m.collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update %s: %w", collection, err)
	}
	if result.MatchedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

func submissionFilterDoc(filter core.SubmissionFilter) bson.M {
	doc := bson.M{}
	if filter.RoomID != "" {
		doc["room_id"] = filter.RoomID
	}
	if filter.StudentID != "" {
		doc["student_id"] = filter.StudentID
	}
	if filter.Status != "" {
		doc["status"] = string(filter.Status)
	}
	return doc
}

func toAccountDoc(acct *core.Account) accountDoc {
	return accountDoc{
		ID:                  acct.ID,
		Email:               acct.Email,
		Name:                acct.Name,
		PasswordHash:        acct.PasswordHash,
		Verified:            acct.Verified,
		VerificationCode:    acct.VerificationCode,
		VerificationExpires: acct.VerificationExpires,
		ResetCode:           acct.ResetCode,
		ResetExpires:        acct.ResetExpires,
		AIUsage:             acct.AIUsage,
		AILimit:             acct.AILimit,
		CreatedAt:           acct.CreatedAt.UTC(),
		UpdatedAt:           acct.UpdatedAt.UTC(),
	}
}

func (d accountDoc) toCore() *core.Account {
	return &core.Account{
		ID:                  d.ID,
		Email:               d.Email,
		Name:                d.Name,
		PasswordHash:        d.PasswordHash,
		Verified:            d.Verified,
		VerificationCode:    d.VerificationCode,
		VerificationExpires: d.VerificationExpires,
		ResetCode:           d.ResetCode,
		ResetExpires:        d.ResetExpires,
		AIUsage:             d.AIUsage,
		AILimit:             d.AILimit,
		CreatedAt:           d.CreatedAt.UTC(),
		UpdatedAt:           d.UpdatedAt.UTC(),
	}
}

func toRoomDoc(room *core.Room) roomDoc {
	return roomDoc{
		ID:        room.ID,
		HostID:    room.HostID,
		Code:      room.Code,
		Title:     room.Title,
		Active:    room.Active,
		Questions: nonNilSlice(room.Questions),
		Materials: nonNilSlice(room.Materials),
		Config:    room.Config,
		CreatedAt: room.CreatedAt.UTC(),
		UpdatedAt: room.UpdatedAt.UTC(),
	}
}

func (d roomDoc) toCore() *core.Room {
	return &core.Room{
		ID:        d.ID,
		HostID:    d.HostID,
		Code:      d.Code,
		Title:     d.Title,
		Active:    d.Active,
		Questions: d.Questions,
		Materials: d.Materials,
		Config:    d.Config,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func toSubmissionDoc(sub *core.Submission) submissionDoc {
	answers := sub.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	grades := sub.Grades
	if grades == nil {
		grades = map[string]core.Grade{}
	}
	return submissionDoc{
		ID:           sub.ID,
		RoomID:       sub.RoomID,
		StudentName:  sub.StudentName,
		StudentEmail: sub.StudentEmail,
		StudentID:    sub.StudentID,
		IPAddress:    sub.IPAddress,
		Answers:      answers,
		Grades:       grades,
		TotalScore:   sub.TotalScore,
		Status:       string(sub.Status),
		CreatedAt:    sub.CreatedAt.UTC(),
		UpdatedAt:    sub.UpdatedAt.UTC(),
	}
}

func (d submissionDoc) toCore() *core.Submission {
	return &core.Submission{
		ID:           d.ID,
		RoomID:       d.RoomID,
		StudentName:  d.StudentName,
		StudentEmail: d.StudentEmail,
		StudentID:    d.StudentID,
		IPAddress:    d.IPAddress,
		Answers:      d.Answers,
		Grades:       d.Grades,
		TotalScore:   d.TotalScore,
		Status:       core.SubmissionStatus(d.Status),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func (d rateLimitDoc) toCore() *core.RateLimitRecord {
	record := &core.RateLimitRecord{
		Key:          d.Key,
		FailureCount: d.FailureCount,
		LockCount:    d.LockCount,
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if d.BlockedUntil != nil {
		until := d.BlockedUntil.UTC()
		record.BlockedUntil = &until
	}
	return record
}
