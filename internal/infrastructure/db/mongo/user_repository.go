package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/backendauth/identity-service/internal/core/domain"
)

const (
	collectionUsers    = "users"
	collectionRoles    = "roles"
	collectionCounters = "counters"

	userSequence = "users"
)

// UserRepository implements ports.UserRepository using MongoDB.
//
// Role assignments are embedded in the user document, so replacing them is a
// single-document update.
type UserRepository struct {
	db    *mongo.Database
	users *mongo.Collection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{db: db, users: db.Collection(collectionUsers)}
}

type userDocument struct {
	ID           int64                `bson:"_id"`
	Username     string               `bson:"username"`
	Email        string               `bson:"email"`
	PasswordHash string               `bson:"password_hash"`
	FirstName    string               `bson:"first_name"`
	LastName     string               `bson:"last_name"`
	IsActive     bool                 `bson:"is_active"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
	Roles        []assignmentDocument `bson:"roles"`
}

type assignmentDocument struct {
	RoleID     int64     `bson:"role_id"`
	AssignedAt time.Time `bson:"assigned_at"`
}

type counterDocument struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

func toUserDocument(u *domain.User) userDocument {
	doc := userDocument{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
		Roles:        toAssignmentDocuments(u.Roles),
	}
	return doc
}

func toAssignmentDocuments(roles []domain.RoleAssignment) []assignmentDocument {
	out := make([]assignmentDocument, 0, len(roles))
	for _, a := range roles {
		out = append(out, assignmentDocument{RoleID: int64(a.RoleID), AssignedAt: a.AssignedAt.UTC()})
	}
	return out
}

func (d userDocument) toDomain() *domain.User {
	u := &domain.User{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		IsActive:     d.IsActive,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
		Roles:        make([]domain.RoleAssignment, 0, len(d.Roles)),
	}
	for _, a := range d.Roles {
		u.Roles = append(u.Roles, domain.RoleAssignment{RoleID: domain.RoleID(a.RoleID), AssignedAt: a.AssignedAt.UTC()})
	}
	return u
}

// List returns every user ordered by id.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	users := make([]*domain.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toDomain())
	}
	return users, nil
}

// FindByID returns domain.ErrUserNotFound when no user has id.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByEmail returns domain.ErrUserNotFound when no user has email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string, excludeID int64) (bool, error) {
	return r.exists(ctx, existsFilter("username", username, excludeID))
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	return r.exists(ctx, existsFilter("email", email, excludeID))
}

func existsFilter(field, value string, excludeID int64) bson.M {
	filter := bson.M{field: value}
	if excludeID != 0 {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	return filter
}

func (r *UserRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.users.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

// Create allocates the next user id and inserts the user with its
// assignments in one document.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}
	user.ID = id

	if _, err := r.users.InsertOne(ctx, toUserDocument(user)); err != nil {
		user.ID = 0
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var c counterDocument
	err := r.db.Collection(collectionCounters).
		FindOneAndUpdate(ctx, bson.M{"_id": userSequence}, bson.M{"$inc": bson.M{"seq": int64(1)}}, opts).
		Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("next user id: %w", err)
	}
	return c.Seq, nil
}

// Update writes the scalar fields and, when replaceRoles is set, the
// embedded assignments in the same update.
func (r *UserRepository) Update(ctx context.Context, user *domain.User, replaceRoles bool) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.users.UpdateOne(ctx, bson.M{"_id": user.ID}, updateDocument(user, replaceRoles))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func updateDocument(user *domain.User, replaceRoles bool) bson.M {
	set := bson.M{
		"username":   user.Username,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"is_active":  user.IsActive,
		"updated_at": user.UpdatedAt.UTC(),
	}
	if replaceRoles {
		set["roles"] = toAssignmentDocuments(user.Roles)
	}
	return bson.M{"$set": set}
}

// Delete removes the user document, assignments included.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// EnsureIndexes creates the unique indexes backing username and email
// uniqueness.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := r.users.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

// SeedRoles upserts the role catalog into the roles collection.
func (r *UserRepository) SeedRoles(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	roles := domain.Roles()
	models := make([]mongo.WriteModel, 0, len(roles))
	for _, role := range roles {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": int64(role.ID)}).
			SetUpdate(bson.M{"$set": bson.M{"name": role.Name, "description": role.Description}}).
			SetUpsert(true))
	}
	if _, err := r.db.Collection(collectionRoles).BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	return nil
}
