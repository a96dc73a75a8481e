// internal/app/store/certificates/certificatestore.go
package certificatestore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/coverdesk/coverdesk/internal/domain/lifecycle"
	"github.com/coverdesk/coverdesk/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrInvalidDateRange is returned by Create when the effective date is
	// not strictly before the expiry date. Equal dates are rejected.
	ErrInvalidDateRange = errors.New("certificates: effective date must be before expiry date")

	// ErrDuplicateNumber fires when the (organization, certificate_number)
	// unique index rejects an insert. Numbers come from the counter
	// document, so this only happens on imports that bring their own.
	ErrDuplicateNumber = errors.New("certificates: certificate number already in use for organization")

	// ErrConflict is returned when the compare-and-set status write keeps
	// losing to concurrent writers.
	ErrConflict = errors.New("certificates: concurrent status update")
)

// transitionRetries bounds the compare-and-set loop in ApplyTransition when
// another writer changes the status between our read and our write.
const transitionRetries = 3

// Store provides access to the certificates collection. Certificates are
// never deleted: they are a legal record, and the lifecycle states expired
// and cancelled exist so that no document ever has to be removed.
type Store struct {
	c        *mongo.Collection
	counters *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:        db.Collection("certificates"),
		counters: db.Collection("counters"),
	}
}

// nextNumber atomically increments and returns the per-organization
// certificate sequence. The counter document is created on first use.
func (s *Store) nextNumber(ctx context.Context, orgID primitive.ObjectID) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	res := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "certificates:" + orgID.Hex()},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

// Create inserts a new certificate snapshot. The date range is checked
// before anything else; an effective date on or after the expiry date never
// reaches the collection. Certificates always start in draft with no
// endorsement, whatever the caller passed in, and receive the next
// sequential number for their organization.
func (s *Store) Create(ctx context.Context, cert models.Certificate) (models.Certificate, error) {
	if !cert.EffectiveDate.Before(cert.ExpiryDate) {
		return models.Certificate{}, ErrInvalidDateRange
	}

	num, err := s.nextNumber(ctx, cert.OrganizationID)
	if err != nil {
		return models.Certificate{}, err
	}

	now := time.Now().UTC()
	cert.ID = primitive.NewObjectID()
	cert.CertificateNumber = num
	cert.InsuredNameCI = text.Fold(cert.InsuredName)
	cert.Status = string(lifecycle.StatusDraft)
	cert.EndorsementDescription = ""
	cert.EndorsementEffectiveDate = nil
	cert.CreatedAt = now
	cert.UpdatedAt = now

	_, err = s.c.InsertOne(ctx, cert)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Certificate{}, ErrDuplicateNumber
		}
		return models.Certificate{}, err
	}
	return cert, nil
}

// GetByID returns a certificate by its ObjectID.
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Certificate, error) {
	var cert models.Certificate
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// GetByNumber returns a certificate by its human-facing sequential number
// within one organization.
func (s *Store) GetByNumber(ctx context.Context, orgID primitive.ObjectID, number int64) (*models.Certificate, error) {
	var cert models.Certificate
	err := s.c.FindOne(ctx, bson.M{
		"organization_id":    orgID,
		"certificate_number": number,
	}).Decode(&cert)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// FindByYearWindow returns every certificate in the organization whose
// membership-year label is one of years, regardless of status. The
// expiration processor narrows to active in memory; keeping status out of
// the query keeps it on the (organization_id, membership_year, status)
// index prefix and lets the processor count what it saw.
func (s *Store) FindByYearWindow(ctx context.Context, orgID primitive.ObjectID, years []string) ([]models.Certificate, error) {
	if len(years) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{
		"organization_id": orgID,
		"membership_year": bson.M{"$in": years},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var certs []models.Certificate
	if err := cur.All(ctx, &certs); err != nil {
		return nil, err
	}
	return certs, nil
}

// ApplyTransition is the only path that writes a certificate's status. The
// proposed edge is validated against the current status, then written with
// a compare-and-set on that status so a concurrent transition cannot be
// silently overwritten. On a lost race the fresh status is re-validated,
// which turns "someone else already expired it" into ErrNoOpUpdate or
// ErrInvalidTransition rather than a double write.
func (s *Store) ApplyTransition(ctx context.Context, certID primitive.ObjectID, proposed lifecycle.Status, priv lifecycle.Privilege) (*models.Certificate, error) {
	for attempt := 0; attempt < transitionRetries; attempt++ {
		var cert models.Certificate
		if err := s.c.FindOne(ctx, bson.M{"_id": certID}).Decode(&cert); err != nil {
			return nil, err
		}

		if err := lifecycle.ValidateTransition(lifecycle.Status(cert.Status), proposed, priv); err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		res, err := s.c.UpdateOne(ctx,
			bson.M{"_id": certID, "status": cert.Status},
			bson.M{"$set": bson.M{"status": string(proposed), "updated_at": now}})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 1 {
			cert.Status = string(proposed)
			cert.UpdatedAt = now
			return &cert, nil
		}
		// Lost the race; loop re-reads and re-validates.
	}
	return nil, ErrConflict
}

// UpdateEndorsement writes the endorsement description and effective date.
// Once a recorded endorsement's effective date has passed, both fields are
// frozen and this returns an ImmutableFieldViolationError. Passing an empty
// description and nil date clears the endorsement.
func (s *Store) UpdateEndorsement(ctx context.Context, certID primitive.ObjectID, description string, effective *time.Time) (*models.Certificate, error) {
	var cert models.Certificate
	if err := s.c.FindOne(ctx, bson.M{"_id": certID}).Decode(&cert); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := lifecycle.ValidateFieldMutation(&cert, lifecycle.FieldEndorsementDescription, now); err != nil {
		return nil, err
	}
	if err := lifecycle.ValidateFieldMutation(&cert, lifecycle.FieldEndorsementEffectiveDate, now); err != nil {
		return nil, err
	}

	set := bson.M{"updated_at": now}
	unset := bson.M{}
	if description != "" {
		set["endorsement_description"] = description
	} else {
		unset["endorsement_description"] = ""
	}
	var effUTC *time.Time
	if effective != nil {
		t := effective.UTC()
		effUTC = &t
		set["endorsement_effective_date"] = t
	} else {
		unset["endorsement_effective_date"] = ""
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if _, err := s.c.UpdateOne(ctx, bson.M{"_id": certID}, update); err != nil {
		return nil, err
	}

	cert.EndorsementDescription = description
	cert.EndorsementEffectiveDate = effUTC
	cert.UpdatedAt = now
	return &cert, nil
}

// SetAccessMarkers writes the restricted and hidden flags. The markers are
// operational visibility controls, not part of the legal record, so they
// stay writable in every lifecycle state including the terminal ones.
func (s *Store) SetAccessMarkers(ctx context.Context, certID primitive.ObjectID, restricted, hidden bool) (*models.Certificate, error) {
	var cert models.Certificate
	if err := s.c.FindOne(ctx, bson.M{"_id": certID}).Decode(&cert); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": certID}, bson.M{"$set": bson.M{
		"restricted_access": restricted,
		"hidden":            hidden,
		"updated_at":        now,
	}})
	if err != nil {
		return nil, err
	}

	cert.RestrictedAccess = restricted
	cert.Hidden = hidden
	cert.UpdatedAt = now
	return &cert, nil
}

// ListFilter narrows List and Count. Zero values mean "don't filter".
// Hidden certificates are excluded unless IncludeHidden is set.
type ListFilter struct {
	Status         string
	MembershipYear string
	GroupLabel     string
	AccountID      primitive.ObjectID
	NamePrefix     string // matched case-insensitively against the insured name
	IncludeHidden  bool
	Limit          int64
	Offset         int64
}

// Query renders the filter as the bson document List and Count run. The
// paged listing clones it and composes a keyset window on top.
func (f ListFilter) Query(orgID primitive.ObjectID) bson.M {
	q := bson.M{"organization_id": orgID}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.MembershipYear != "" {
		q["membership_year"] = f.MembershipYear
	}
	if f.GroupLabel != "" {
		q["group_label"] = f.GroupLabel
	}
	if !f.AccountID.IsZero() {
		q["account_id"] = f.AccountID
	}
	if f.NamePrefix != "" {
		q["insured_name_ci"] = bson.M{"$regex": "^" + regexp.QuoteMeta(text.Fold(f.NamePrefix))}
	}
	if !f.IncludeHidden {
		q["hidden"] = bson.M{"$ne": true}
	}
	return q
}

// List returns certificates for an organization, newest number first.
func (s *Store) List(ctx context.Context, orgID primitive.ObjectID, f ListFilter) ([]models.Certificate, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "certificate_number", Value: -1}}).
		SetLimit(limit).
		SetSkip(f.Offset)

	cur, err := s.c.Find(ctx, f.Query(orgID), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var certs []models.Certificate
	if err := cur.All(ctx, &certs); err != nil {
		return nil, err
	}
	return certs, nil
}

// Count returns the number of certificates matching the filter.
func (s *Store) Count(ctx context.Context, orgID primitive.ObjectID, f ListFilter) (int64, error) {
	return s.c.CountDocuments(ctx, f.Query(orgID))
}

// Find returns certificates matching a caller-built filter with optional
// find options. The paged listing needs keyset windows ListFilter cannot
// express.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Certificate, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var certs []models.Certificate
	if err := cur.All(ctx, &certs); err != nil {
		return nil, err
	}
	return certs, nil
}

// CountByFilter returns the number of certificates matching a caller-built
// filter.
func (s *Store) CountByFilter(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

// CountByStatus returns certificate counts per lifecycle state for an
// organization. States with no certificates are absent from the map.
func (s *Store) CountByStatus(ctx context.Context, orgID primitive.ObjectID) (map[string]int64, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"organization_id": orgID}},
		{"$group": bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	counts := make(map[string]int64)
	for cur.Next(ctx) {
		var doc struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		counts[doc.Status] = doc.Count
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// ListByExpiryRange returns certificates whose snapshot expiry date falls
// in [from, to), soonest first. Used for coverage-window reporting; the
// lifecycle does not key off these dates.
func (s *Store) ListByExpiryRange(ctx context.Context, orgID primitive.ObjectID, from, to time.Time) ([]models.Certificate, error) {
	opts := options.Find().SetSort(bson.D{{Key: "expiry_date", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{
		"organization_id": orgID,
		"expiry_date":     bson.M{"$gte": from, "$lt": to},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var certs []models.Certificate
	if err := cur.All(ctx, &certs); err != nil {
		return nil, err
	}
	return certs, nil
}
