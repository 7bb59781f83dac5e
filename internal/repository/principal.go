package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/backpackr/backpackr-server/internal/models"
)

var (
	ErrNotFound  = errors.New("principal not found")
	ErrDuplicate = errors.New("email or contact number already registered")
)

// PrincipalRepo persists travelers and agencies in their own collections.
type PrincipalRepo struct {
	logger   *log.Logger
	users    *mongo.Collection
	agencies *mongo.Collection
}

func NewPrincipalRepo(db *mongo.Database, logger *log.Logger) *PrincipalRepo {
	return &PrincipalRepo{
		logger:   logger,
		users:    db.Collection("users"),
		agencies: db.Collection("agencies"),
	}
}

// EnsureIndexes creates the unique email index per collection and the
// sparse unique google_id index. Email uniqueness is per kind: a traveler
// and an agency may share an email.
func (r *PrincipalRepo) EnsureIndexes(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{r.users, r.agencies} {
		_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.M{"email": 1}, Options: options.Index().SetUnique(true)},
			{Keys: bson.M{"google_id": 1}, Options: options.Index().SetUnique(true).SetSparse(true)},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PrincipalRepo) collection(kind models.Kind) *mongo.Collection {
	if kind == models.KindAgency {
		return r.agencies
	}
	return r.users
}

func (r *PrincipalRepo) FindByEmail(ctx context.Context, kind models.Kind, email string) (*models.Principal, error) {
	return r.findOne(ctx, kind, bson.M{"email": email})
}

func (r *PrincipalRepo) FindByID(ctx context.Context, kind models.Kind, id string) (*models.Principal, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, kind, bson.M{"_id": oid})
}

func (r *PrincipalRepo) FindByGoogleID(ctx context.Context, kind models.Kind, googleID string) (*models.Principal, error) {
	return r.findOne(ctx, kind, bson.M{"google_id": googleID})
}

// FindByResetToken locates a principal holding the given hashed reset token
// whose expiry has not passed. Expired tokens are indistinguishable from
// unknown ones at this layer.
func (r *PrincipalRepo) FindByResetToken(ctx context.Context, kind models.Kind, tokenHash string) (*models.Principal, error) {
	return r.findOne(ctx, kind, bson.M{
		"password_reset_token":   tokenHash,
		"password_reset_expires": bson.M{"$gt": time.Now()},
	})
}

// FindByContactNumber searches one collection for a contact number.
func (r *PrincipalRepo) FindByContactNumber(ctx context.Context, kind models.Kind, contact string) (*models.Principal, error) {
	return r.findOne(ctx, kind, bson.M{"contact_number": contact})
}

func (r *PrincipalRepo) findOne(ctx context.Context, kind models.Kind, filter bson.M) (*models.Principal, error) {
	p := &models.Principal{}
	err := r.collection(kind).FindOne(ctx, filter).Decode(p)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Printf("find principal (%s): %v", kind, err)
		return nil, err
	}
	p.Role = kind
	return p, nil
}

// Create inserts a new principal into the collection for its role.
// A duplicate email (or google id) surfaces as ErrDuplicate.
func (r *PrincipalRepo) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	now := time.Now()
	p.ID = primitive.NewObjectID()
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := r.collection(p.Role).InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		r.logger.Printf("insert principal (%s): %v", p.Role, err)
		return nil, err
	}
	return p, nil
}

// Update replaces the stored document. Last write wins; reset-token
// redemption re-validates against current state so no version field is kept.
func (r *PrincipalRepo) Update(ctx context.Context, p *models.Principal) error {
	p.UpdatedAt = time.Now()
	res, err := r.collection(p.Role).ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		r.logger.Printf("update principal (%s): %v", p.Role, err)
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAgencies returns agencies filtered by approval state, for the admin
// approval screens.
func (r *PrincipalRepo) ListAgencies(ctx context.Context, approved bool) ([]models.Principal, error) {
	cursor, err := r.agencies.Find(ctx, bson.M{"is_approved": approved})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	agencies := []models.Principal{}
	if err := cursor.All(ctx, &agencies); err != nil {
		return nil, err
	}
	for i := range agencies {
		agencies[i].Role = models.KindAgency
	}
	return agencies, nil
}

// SetApproval flips the approval flag on an agency by id.
func (r *PrincipalRepo) SetApproval(ctx context.Context, id string, approved bool) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.agencies.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"is_approved": approved, "updated_at": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAgency removes a rejected agency application.
func (r *PrincipalRepo) DeleteAgency(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.agencies.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
