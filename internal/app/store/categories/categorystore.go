// internal/app/store/categories/categorystore.go
package categorystore

import (
	"context"
	"time"

	"github.com/coverdesk/coverdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("membership_categories")}
}

func (s *Store) Create(ctx context.Context, cat models.MembershipCategory) (models.MembershipCategory, error) {
	now := time.Now().UTC()
	cat.ID = primitive.NewObjectID()
	if cat.Status == "" {
		cat.Status = models.CategoryActive
	}
	cat.CreatedAt = now
	cat.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, cat)
	if err != nil {
		return models.MembershipCategory{}, err
	}
	return cat, nil
}

// FindActiveCategory resolves the active membership category for an account
// within one membership year. Returns mongo.ErrNoDocuments when the account
// has no active category for that year, which the expiration processor treats
// as a skip, not an error; membership can lapse while insurance runs on.
func (s *Store) FindActiveCategory(ctx context.Context, orgID primitive.ObjectID, accountBusinessID, year string) (*models.MembershipCategory, error) {
	var cat models.MembershipCategory
	err := s.c.FindOne(ctx, bson.M{
		"organization_id":     orgID,
		"account_business_id": accountBusinessID,
		"membership_year":     year,
		"status":              models.CategoryActive,
	}).Decode(&cat)
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// ListByAccount returns all of an account's categories across years,
// newest year first.
func (s *Store) ListByAccount(ctx context.Context, orgID primitive.ObjectID, accountBusinessID string) ([]models.MembershipCategory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "membership_year", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{
		"organization_id":     orgID,
		"account_business_id": accountBusinessID,
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var cats []models.MembershipCategory
	if err := cur.All(ctx, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// SetStatus flips a category between active and lapsed.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// Delete removes a category by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// CountByGroup returns the number of categories in a group for one
// membership year, split by status.
func (s *Store) CountByGroup(ctx context.Context, orgID primitive.ObjectID, groupLabel, year, status string) (int64, error) {
	filter := bson.M{
		"organization_id": orgID,
		"group_label":     groupLabel,
		"membership_year": year,
	}
	if status != "" {
		filter["status"] = status
	}
	return s.c.CountDocuments(ctx, filter)
}
