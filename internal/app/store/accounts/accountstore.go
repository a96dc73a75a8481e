// internal/app/store/accounts/accountstore.go
package accountstore

import (
	"context"
	"errors"
	"time"

	"github.com/coverdesk/coverdesk/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateAccount = errors.New("an account with this business identifier already exists in the organization")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("accounts")}
}

func (s *Store) Create(ctx context.Context, acct models.Account) (models.Account, error) {
	now := time.Now().UTC()
	acct.ID = primitive.NewObjectID()
	acct.FullNameCI = text.Fold(acct.FullName)
	if acct.Status == "" {
		acct.Status = models.AccountActive
	}
	acct.CreatedAt = now
	acct.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, acct)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Account{}, ErrDuplicateAccount
		}
		return models.Account{}, err
	}
	return acct, nil
}

// GetByID loads an account by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	var a models.Account
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ResolveBusinessID returns the human-readable business identifier for an
// account reference. The expiration processor uses this to join a certificate
// to the account's membership records. Returns mongo.ErrNoDocuments when the
// account does not exist.
func (s *Store) ResolveBusinessID(ctx context.Context, id primitive.ObjectID) (string, error) {
	var a struct {
		BusinessID string `bson:"business_id"`
	}
	opts := options.FindOne().SetProjection(bson.M{"business_id": 1})
	if err := s.c.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&a); err != nil {
		return "", err
	}
	return a.BusinessID, nil
}

// GetByBusinessID loads an account by its org-scoped business identifier.
func (s *Store) GetByBusinessID(ctx context.Context, orgID primitive.ObjectID, businessID string) (*models.Account, error) {
	var a models.Account
	err := s.c.FindOne(ctx, bson.M{
		"organization_id": orgID,
		"business_id":     businessID,
	}).Decode(&a)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByOrg returns an organization's accounts sorted by folded name.
func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID, limit, offset int64) ([]models.Account, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(offset)
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{"organization_id": orgID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var accts []models.Account
	if err := cur.All(ctx, &accts); err != nil {
		return nil, err
	}
	return accts, nil
}

// Update modifies an account's mutable fields and refreshes UpdatedAt.
// The business identifier is fixed at creation.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, acct models.Account) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if acct.FullName != "" {
		set["full_name"] = acct.FullName
		set["full_name_ci"] = text.Fold(acct.FullName)
	}
	if acct.Email != "" {
		set["email"] = acct.Email
	}
	if acct.Status != "" {
		set["status"] = acct.Status
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}

// Delete removes an account by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Count returns the number of accounts matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
