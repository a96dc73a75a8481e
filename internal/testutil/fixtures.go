package testutil

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"github.com/coverdesk/coverdesk/internal/domain/models"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
// Calls chain, so multi-parameter routes stack them one per call.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures provides helper methods for creating test data.
//
// Fixture methods insert documents directly, bypassing store validation, so
// tests can stage states the stores would refuse to create (a certificate
// born active, a broken account link). Use the stores themselves when the
// test is about store behavior.
type Fixtures struct {
	db  *mongo.Database
	t   *testing.T
	seq int64 // certificate number source, monotonic across the whole test
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateOrganization creates an active test organization with the given name.
func (f *Fixtures) CreateOrganization(ctx context.Context, name string) models.Organization {
	f.t.Helper()
	return f.createOrganization(ctx, name, models.OrgActive)
}

// CreateInactiveOrganization creates an organization that scheduled runs
// must skip.
func (f *Fixtures) CreateInactiveOrganization(ctx context.Context, name string) models.Organization {
	f.t.Helper()
	return f.createOrganization(ctx, name, models.OrgInactive)
}

func (f *Fixtures) createOrganization(ctx context.Context, name, status string) models.Organization {
	f.t.Helper()

	now := time.Now().UTC()
	org := models.Organization{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		City:      "Columbia",
		State:     "MO",
		TimeZone:  "America/Chicago",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := f.db.Collection("organizations").InsertOne(ctx, org)
	if err != nil {
		f.t.Fatalf("failed to create test organization: %v", err)
	}

	return org
}

// CreateUser creates an active test user with the given parameters.
// Operators and viewers must have an orgID; admins pass nil.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, role string, orgID *primitive.ObjectID) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:             primitive.NewObjectID(),
		FullName:       fullName,
		FullNameCI:     text.Fold(fullName),
		Email:          email,
		EmailCI:        text.Fold(email),
		AuthMethod:     "password",
		Role:           role,
		Status:         models.UserActive,
		OrganizationID: orgID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := f.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateUserWithPassword creates an active user whose password hash matches
// the given plaintext. Use for login handler tests.
func (f *Fixtures) CreateUserWithPassword(ctx context.Context, fullName, email, role, password string, orgID *primitive.ObjectID) models.User {
	f.t.Helper()

	user := f.CreateUser(ctx, fullName, email, role, orgID)

	// MinCost keeps the suite fast; strength is not under test.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("failed to hash test password: %v", err)
	}
	_, err = f.db.Collection("users").UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{"password_hash": string(hash)}})
	if err != nil {
		f.t.Fatalf("failed to set test password hash: %v", err)
	}
	user.PasswordHash = string(hash)

	return user
}

// CreateAdmin creates a test admin user (no organization scope).
func (f *Fixtures) CreateAdmin(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleAdmin, nil)
}

// CreateOperator creates a test operator user in the given organization.
func (f *Fixtures) CreateOperator(ctx context.Context, fullName, email string, orgID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleOperator, &orgID)
}

// CreateViewer creates a test viewer user in the given organization.
func (f *Fixtures) CreateViewer(ctx context.Context, fullName, email string, orgID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleViewer, &orgID)
}

// CreateDisabledUser creates a test user with disabled status.
func (f *Fixtures) CreateDisabledUser(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      email,
		EmailCI:    text.Fold(email),
		AuthMethod: "password",
		Role:       models.RoleViewer,
		Status:     models.UserDisabled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := f.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		f.t.Fatalf("failed to create disabled test user: %v", err)
	}

	return user
}

// CreateAccount creates an active insured account in the given organization.
func (f *Fixtures) CreateAccount(ctx context.Context, orgID primitive.ObjectID, businessID, fullName string) models.Account {
	f.t.Helper()

	now := time.Now().UTC()
	account := models.Account{
		ID:             primitive.NewObjectID(),
		OrganizationID: orgID,
		BusinessID:     businessID,
		FullName:       fullName,
		FullNameCI:     text.Fold(fullName),
		Email:          strings.ToLower(businessID) + "@example.com",
		Status:         models.AccountActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := f.db.Collection("accounts").InsertOne(ctx, account)
	if err != nil {
		f.t.Fatalf("failed to create test account: %v", err)
	}

	return account
}

// CreateCategory creates an active membership category for the account with
// the given business ID.
func (f *Fixtures) CreateCategory(ctx context.Context, orgID primitive.ObjectID, businessID, groupLabel, year string) models.MembershipCategory {
	f.t.Helper()
	return f.createCategory(ctx, orgID, businessID, groupLabel, year, models.CategoryActive)
}

// CreateLapsedCategory creates a lapsed membership category, the state the
// expiration processor treats as "no active category".
func (f *Fixtures) CreateLapsedCategory(ctx context.Context, orgID primitive.ObjectID, businessID, groupLabel, year string) models.MembershipCategory {
	f.t.Helper()
	return f.createCategory(ctx, orgID, businessID, groupLabel, year, models.CategoryLapsed)
}

func (f *Fixtures) createCategory(ctx context.Context, orgID primitive.ObjectID, businessID, groupLabel, year, status string) models.MembershipCategory {
	f.t.Helper()

	now := time.Now().UTC()
	cat := models.MembershipCategory{
		ID:                primitive.NewObjectID(),
		OrganizationID:    orgID,
		AccountBusinessID: businessID,
		Name:              groupLabel + " Membership",
		GroupLabel:        groupLabel,
		MembershipYear:    year,
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	_, err := f.db.Collection("membership_categories").InsertOne(ctx, cat)
	if err != nil {
		f.t.Fatalf("failed to create test membership category: %v", err)
	}

	return cat
}

// SetGroupYear sets the active membership year for an (organization, group)
// pair, creating or replacing the settings document. Tests that roll a group
// into a new year call this twice.
func (f *Fixtures) SetGroupYear(ctx context.Context, orgID primitive.ObjectID, groupLabel, activeYear string) {
	f.t.Helper()

	now := time.Now().UTC()
	_, err := f.db.Collection("membership_group_settings").UpdateOne(ctx,
		bson.M{"organization_id": orgID, "group_label": groupLabel},
		bson.M{
			"$set": bson.M{"active_year": activeYear, "updated_at": now},
			"$setOnInsert": bson.M{
				"_id":             primitive.NewObjectID(),
				"organization_id": orgID,
				"group_label":     groupLabel,
				"created_at":      now,
			},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		f.t.Fatalf("failed to set test group year: %v", err)
	}
}

// CertificateParams controls the certificate fixture. Zero values get
// defaults suitable for expiration-processor tests: status active, a
// one-year coverage window, and a generated insured name.
type CertificateParams struct {
	OrganizationID primitive.ObjectID
	AccountID      primitive.ObjectID // leave zero for a broken account link
	InsuredName    string
	GroupLabel     string
	MembershipYear string
	Status         string
	EffectiveDate  time.Time
	ExpiryDate     time.Time
	Hidden         bool
}

// CreateCertificate inserts a certificate directly with the given lifecycle
// state. Certificate numbers are assigned from a test-local sequence, so
// they are unique but unrelated to the counters collection the store uses.
func (f *Fixtures) CreateCertificate(ctx context.Context, p CertificateParams) models.Certificate {
	f.t.Helper()

	n := atomic.AddInt64(&f.seq, 1)
	if p.InsuredName == "" {
		p.InsuredName = fmt.Sprintf("Test Insured %d", n)
	}
	if p.Status == "" {
		p.Status = "active"
	}
	if p.EffectiveDate.IsZero() {
		p.EffectiveDate = time.Now().UTC().AddDate(0, -1, 0).Truncate(24 * time.Hour)
	}
	if p.ExpiryDate.IsZero() {
		p.ExpiryDate = p.EffectiveDate.AddDate(1, 0, 0)
	}

	now := time.Now().UTC()
	cert := models.Certificate{
		ID:                 primitive.NewObjectID(),
		CertificateNumber:  n,
		OrganizationID:     p.OrganizationID,
		AccountID:          p.AccountID,
		InsuredName:        p.InsuredName,
		InsuredNameCI:      text.Fold(p.InsuredName),
		InsuredEmail:       "insured@example.com",
		AddressLine1:       "411 S Sixth St",
		City:               "Columbia",
		State:              "MO",
		PostalCode:         "65201",
		Country:            "US",
		MembershipCategory: p.GroupLabel + " Membership",
		GroupLabel:         p.GroupLabel,
		MembershipYear:     p.MembershipYear,
		CoverageType:       "general-liability",
		CoverageLimitCents: 100000000,
		PremiumCents:       12500,
		TotalChargedCents:  13750,
		EffectiveDate:      p.EffectiveDate,
		ExpiryDate:         p.ExpiryDate,
		Status:             p.Status,
		Hidden:             p.Hidden,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	_, err := f.db.Collection("certificates").InsertOne(ctx, cert)
	if err != nil {
		f.t.Fatalf("failed to create test certificate: %v", err)
	}

	return cert
}
