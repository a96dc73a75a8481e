// internal/app/store/accounts/import.go
package accountstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/coverdesk/coverdesk/internal/app/system/normalize"
	"github.com/coverdesk/coverdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ImportEntry is one roster row to upsert.
type ImportEntry struct {
	FullName   string
	BusinessID string
	Email      string
}

// ItemError is a per-row failure during batch import.
type ItemError struct {
	BusinessID string // normalized, or original if normalization failed
	Row        int    // 1-indexed for operator display
	Reason     string
}

// ImportResult holds the outcome of a batch upsert with per-row tracking.
type ImportResult struct {
	Created int
	Updated int

	// ItemErrors provides granular per-row error details.
	ItemErrors []ItemError
}

// HasErrors returns true if any per-row errors occurred.
func (r ImportResult) HasErrors() bool {
	return len(r.ItemErrors) > 0
}

// UpsertAccountsInOrgBatch creates or updates accounts inside the given
// orgID, keyed by business identifier. Business IDs are unique per
// organization, not globally, so a roster row can never collide with
// another organization's account.
//
// For each entry:
//   - business ID not found in the org: creates a new active account
//   - business ID found: updates name and email
//
// Row numbers in ItemErrors are 1-indexed for operator display.
func (s *Store) UpsertAccountsInOrgBatch(
	ctx context.Context,
	orgID primitive.ObjectID,
	entries []ImportEntry,
) (ImportResult, error) {
	var result ImportResult
	if len(entries) == 0 {
		return result, nil
	}

	// Normalize entries and collect unique business IDs, tracking per-row
	// issues. Later duplicates lose to the first occurrence.
	type normalizedEntry struct {
		fullName   string
		businessID string
		email      string
		row        int
	}
	normalized := make(map[string]normalizedEntry, len(entries))
	businessIDs := make([]string, 0, len(entries))

	for i, e := range entries {
		row := i + 1
		businessID := normalize.QueryParam(e.BusinessID)
		fullName := normalize.Name(e.FullName)

		if businessID == "" {
			result.ItemErrors = append(result.ItemErrors, ItemError{
				BusinessID: e.BusinessID,
				Row:        row,
				Reason:     "missing business ID",
			})
			continue
		}
		if fullName == "" {
			result.ItemErrors = append(result.ItemErrors, ItemError{
				BusinessID: businessID,
				Row:        row,
				Reason:     "missing name",
			})
			continue
		}
		if existing, seen := normalized[businessID]; seen {
			result.ItemErrors = append(result.ItemErrors, ItemError{
				BusinessID: businessID,
				Row:        row,
				Reason:     "duplicate of row " + strconv.Itoa(existing.row),
			})
			continue
		}

		normalized[businessID] = normalizedEntry{
			fullName:   fullName,
			businessID: businessID,
			email:      normalize.Email(e.Email),
			row:        row,
		}
		businessIDs = append(businessIDs, businessID)
	}

	if len(businessIDs) == 0 {
		return result, nil
	}

	// Batch fetch the org's existing accounts for these business IDs.
	cur, err := s.c.Find(ctx, bson.M{
		"organization_id": orgID,
		"business_id":     bson.M{"$in": businessIDs},
	})
	if err != nil {
		return result, err
	}
	defer cur.Close(ctx)

	type existingAccount struct {
		ID         primitive.ObjectID `bson:"_id"`
		BusinessID string             `bson:"business_id"`
	}
	existing := make(map[string]existingAccount, len(businessIDs))
	for cur.Next(ctx) {
		var a existingAccount
		if err := cur.Decode(&a); err != nil {
			return result, err
		}
		existing[a.BusinessID] = a
	}
	if err := cur.Err(); err != nil {
		return result, err
	}

	now := time.Now().UTC()

	type insertDoc struct {
		doc bson.M
		row int
	}
	type updateItem struct {
		account existingAccount
		entry   normalizedEntry
	}
	var toInsert []insertDoc
	var toUpdate []updateItem

	for _, businessID := range businessIDs {
		entry := normalized[businessID]
		if ex, found := existing[businessID]; found {
			toUpdate = append(toUpdate, updateItem{account: ex, entry: entry})
			continue
		}
		doc := bson.M{
			"organization_id": orgID,
			"business_id":     entry.businessID,
			"full_name":       entry.fullName,
			"full_name_ci":    text.Fold(entry.fullName),
			"status":          models.AccountActive,
			"created_at":      now,
			"updated_at":      now,
		}
		if entry.email != "" {
			doc["email"] = entry.email
		}
		toInsert = append(toInsert, insertDoc{doc: doc, row: entry.row})
	}

	if len(toInsert) > 0 {
		docs := make([]interface{}, len(toInsert))
		for i, d := range toInsert {
			docs[i] = d.doc
		}

		opts := options.InsertMany().SetOrdered(false)
		_, err := s.c.InsertMany(ctx, docs, opts)
		if err != nil {
			var bulkErr mongo.BulkWriteException
			if !errors.As(err, &bulkErr) {
				return result, err
			}
			// Partial success. Duplicate-key failures are races with a
			// concurrent import of the same roster; retry those as updates.
			// Anything else is recorded per row.
			var raced []string
			for _, we := range bulkErr.WriteErrors {
				if we.Index < 0 || we.Index >= len(toInsert) {
					continue
				}
				item := toInsert[we.Index]
				businessID, _ := item.doc["business_id"].(string)
				if we.Code == 11000 {
					raced = append(raced, businessID)
					continue
				}
				result.ItemErrors = append(result.ItemErrors, ItemError{
					BusinessID: businessID,
					Row:        item.row,
					Reason:     "database error: " + we.Message,
				})
			}
			result.Created = len(toInsert) - len(bulkErr.WriteErrors)

			for _, businessID := range raced {
				entry := normalized[businessID]
				toUpdate = append(toUpdate, updateItem{
					account: existingAccount{BusinessID: businessID},
					entry:   entry,
				})
			}
		} else {
			result.Created = len(toInsert)
		}
	}

	if len(toUpdate) > 0 {
		var writes []mongo.WriteModel
		for _, item := range toUpdate {
			set := bson.M{
				"full_name":    item.entry.fullName,
				"full_name_ci": text.Fold(item.entry.fullName),
				"updated_at":   now,
			}
			if item.entry.email != "" {
				set["email"] = item.entry.email
			}
			// Race retries have no _id; fall back to the unique key.
			filter := bson.M{"organization_id": orgID, "business_id": item.entry.businessID}
			if !item.account.ID.IsZero() {
				filter = bson.M{"_id": item.account.ID}
			}
			writes = append(writes, mongo.NewUpdateOneModel().
				SetFilter(filter).
				SetUpdate(bson.M{"$set": set}))
		}

		opts := options.BulkWrite().SetOrdered(false)
		res, err := s.c.BulkWrite(ctx, writes, opts)
		if err != nil {
			var bulkErr mongo.BulkWriteException
			if !errors.As(err, &bulkErr) {
				return result, err
			}
			for _, we := range bulkErr.WriteErrors {
				if we.Index < 0 || we.Index >= len(toUpdate) {
					continue
				}
				item := toUpdate[we.Index]
				result.ItemErrors = append(result.ItemErrors, ItemError{
					BusinessID: item.entry.businessID,
					Row:        item.entry.row,
					Reason:     "update failed: " + we.Message,
				})
			}
			result.Updated += len(toUpdate) - len(bulkErr.WriteErrors)
		} else {
			// MatchedCount, not ModifiedCount: re-importing an unchanged
			// roster still reports every row as updated.
			result.Updated += int(res.MatchedCount)
		}
	}

	return result, nil
}
