// internal/app/store/yearsettings/yearsettingstore.go
package yearsettingstore

import (
	"context"
	"time"

	"github.com/coverdesk/coverdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the membership_group_settings collection.
// Each (organization, group label) pair has at most one settings document
// naming the currently active membership year for that group.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("membership_group_settings")}
}

// SetActiveYear records the active membership year for a group. Uses upsert
// so it works whether the group has been configured before or not. Flipping
// the year here is what makes the expiration processor start expiring the
// previous year's certificates for the group.
func (s *Store) SetActiveYear(ctx context.Context, orgID primitive.ObjectID, groupLabel, activeYear string, yearStart, yearEnd time.Time) error {
	now := time.Now().UTC()
	filter := bson.M{"organization_id": orgID, "group_label": groupLabel}
	update := bson.M{
		"$set": bson.M{
			"active_year": activeYear,
			"year_start":  yearStart,
			"year_end":    yearEnd,
			"updated_at":  now,
		},
		"$setOnInsert": bson.M{
			"_id":             primitive.NewObjectID(),
			"organization_id": orgID,
			"group_label":     groupLabel,
			"created_at":      now,
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.c.UpdateOne(ctx, filter, update, opts)
	return err
}

// GetActiveYear returns the active membership year configured for a group.
// Returns mongo.ErrNoDocuments when the group has never been configured;
// the expiration processor treats that as a skip, not an error.
func (s *Store) GetActiveYear(ctx context.Context, orgID primitive.ObjectID, groupLabel string) (string, error) {
	var setting models.YearSetting
	opts := options.FindOne().SetProjection(bson.M{"active_year": 1})
	err := s.c.FindOne(ctx, bson.M{"organization_id": orgID, "group_label": groupLabel}, opts).Decode(&setting)
	if err != nil {
		return "", err
	}
	return setting.ActiveYear, nil
}

// Get returns the full settings document for a group.
func (s *Store) Get(ctx context.Context, orgID primitive.ObjectID, groupLabel string) (*models.YearSetting, error) {
	var setting models.YearSetting
	err := s.c.FindOne(ctx, bson.M{"organization_id": orgID, "group_label": groupLabel}).Decode(&setting)
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// ListByOrg returns all group settings for an organization, sorted by label.
func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID) ([]models.YearSetting, error) {
	opts := options.Find().SetSort(bson.D{{Key: "group_label", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"organization_id": orgID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var settings []models.YearSetting
	if err := cur.All(ctx, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Delete removes a group's settings. Used when an organization retires a group.
func (s *Store) Delete(ctx context.Context, orgID primitive.ObjectID, groupLabel string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"organization_id": orgID, "group_label": groupLabel})
	return err
}
