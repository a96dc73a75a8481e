package organizations_test

import (
	"net/http"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/expiration"
	"github.com/coverdesk/coverdesk/internal/app/features/organizations"
	"github.com/coverdesk/coverdesk/internal/app/system/auth"
	"github.com/coverdesk/coverdesk/internal/app/system/expiry"
	"github.com/coverdesk/coverdesk/internal/domain/models"
	"github.com/coverdesk/coverdesk/internal/testutil"
)

func setup(t *testing.T) (*testutil.Fixtures, *organizations.Handler) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	h := organizations.NewHandler(db, nil, zap.NewNop())
	return fx, h
}

func TestHandleCreate(t *testing.T) {
	_, h := setup(t)

	req := testutil.NewJSONRequest(t, "POST", "/organizations", map[string]string{
		"name":  "Missouri Barbers Guild",
		"city":  "Columbia",
		"state": "MO",
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	rec := testutil.NewRecorder()

	h.HandleCreate(rec, req)

	rec.AssertStatus(t, http.StatusCreated)

	var created models.Organization
	rec.DecodeJSON(t, &created)
	if created.ID.IsZero() {
		t.Error("created organization has no id")
	}
	if created.Name != "Missouri Barbers Guild" {
		t.Errorf("name: got %q", created.Name)
	}
	if created.Status != models.OrgActive {
		t.Errorf("status: got %q, want active by default", created.Status)
	}
}

func TestHandleCreate_DuplicateName(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateOrganization(ctx, "Missouri Barbers Guild")

	// Folded comparison, so a case variant is still a duplicate.
	req := testutil.NewJSONRequest(t, "POST", "/organizations", map[string]string{
		"name": "missouri barbers GUILD",
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	rec := testutil.NewRecorder()

	h.HandleCreate(rec, req)

	rec.AssertStatus(t, http.StatusConflict)
}

func TestHandleCreate_Validation(t *testing.T) {
	_, h := setup(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing name", map[string]string{"city": "Columbia"}},
		{"blank name", map[string]string{"name": "   "}},
		{"unknown status", map[string]string{"name": "X", "status": "dormant"}},
		{"unknown time zone", map[string]string{"name": "X", "time_zone": "Mars/Olympus_Mons"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.NewJSONRequest(t, "POST", "/organizations", tt.body)
			req = testutil.WithUser(req, testutil.AdminUser())
			rec := testutil.NewRecorder()

			h.HandleCreate(rec, req)

			rec.AssertStatus(t, http.StatusBadRequest)
		})
	}
}

func TestHandleList(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alpha := fx.CreateOrganization(ctx, "Alpha Association")
	fx.CreateOrganization(ctx, "Beta Association")
	fx.CreateInactiveOrganization(ctx, "Dormant Association")

	var page struct {
		Organizations []models.Organization `json:"organizations"`
		Total         int                   `json:"total"`
	}

	// Admins see everything, sorted by folded name.
	req := testutil.NewAuthenticatedRequest("GET", "/organizations", testutil.AdminUser())
	rec := testutil.NewRecorder()
	h.HandleList(rec, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &page)
	if page.Total != 3 {
		t.Errorf("admin list total: got %d, want 3", page.Total)
	}
	if len(page.Organizations) > 0 && page.Organizations[0].Name != "Alpha Association" {
		t.Errorf("first organization: got %q", page.Organizations[0].Name)
	}

	// Status filter narrows to the inactive one.
	req = testutil.NewAuthenticatedRequest("GET", "/organizations?status=inactive", testutil.AdminUser())
	rec = testutil.NewRecorder()
	h.HandleList(rec, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &page)
	if page.Total != 1 || page.Organizations[0].Name != "Dormant Association" {
		t.Errorf("inactive filter: got %+v", page.Organizations)
	}

	// Operators see only their own organization.
	req = testutil.NewAuthenticatedRequest("GET", "/organizations", testutil.OperatorUser(alpha.ID))
	rec = testutil.NewRecorder()
	h.HandleList(rec, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &page)
	if page.Total != 1 || page.Organizations[0].ID != alpha.ID {
		t.Errorf("operator list: got %+v", page.Organizations)
	}
}

func TestHandleGet(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Get Org")
	other := fx.CreateOrganization(ctx, "Other Org")

	req := testutil.NewAuthenticatedRequest("GET", "/organizations/"+org.ID.Hex(), testutil.ViewerUser(org.ID))
	req = testutil.WithChiURLParam(req, "orgID", org.ID.Hex())
	rec := testutil.NewRecorder()
	h.HandleGet(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	var got models.Organization
	rec.DecodeJSON(t, &got)
	if got.ID != org.ID {
		t.Errorf("id: got %s, want %s", got.ID.Hex(), org.ID.Hex())
	}

	// Cross-organization reads are refused.
	req = testutil.NewAuthenticatedRequest("GET", "/organizations/"+org.ID.Hex(), testutil.ViewerUser(other.ID))
	req = testutil.WithChiURLParam(req, "orgID", org.ID.Hex())
	rec = testutil.NewRecorder()
	h.HandleGet(rec, req)
	rec.AssertStatus(t, http.StatusForbidden)

	missing := primitive.NewObjectID()
	req = testutil.NewAuthenticatedRequest("GET", "/organizations/"+missing.Hex(), testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "orgID", missing.Hex())
	rec = testutil.NewRecorder()
	h.HandleGet(rec, req)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestHandleUpdate(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Update Org")

	req := testutil.NewJSONRequest(t, "PUT", "/organizations/"+org.ID.Hex(), map[string]string{
		"city":   "Jefferson City",
		"status": models.OrgInactive,
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "orgID", org.ID.Hex())
	rec := testutil.NewRecorder()

	h.HandleUpdate(rec, req)

	rec.AssertStatus(t, http.StatusOK)

	var updated models.Organization
	rec.DecodeJSON(t, &updated)
	if updated.City != "Jefferson City" {
		t.Errorf("city: got %q", updated.City)
	}
	if updated.Status != models.OrgInactive {
		t.Errorf("status: got %q", updated.Status)
	}
	if updated.Name != "Update Org" {
		t.Errorf("name should be untouched, got %q", updated.Name)
	}
}

func TestHandleUpdate_RejectsTakenName(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "First Org")
	fx.CreateOrganization(ctx, "Second Org")

	req := testutil.NewJSONRequest(t, "PUT", "/organizations/"+org.ID.Hex(), map[string]string{
		"name": "second org",
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "orgID", org.ID.Hex())
	rec := testutil.NewRecorder()

	h.HandleUpdate(rec, req)

	rec.AssertStatus(t, http.StatusConflict)
}

func TestHandleUpdate_NothingToUpdate(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Static Org")

	req := testutil.NewJSONRequest(t, "PUT", "/organizations/"+org.ID.Hex(), map[string]string{})
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "orgID", org.ID.Hex())
	rec := testutil.NewRecorder()

	h.HandleUpdate(rec, req)

	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestHandleDelete(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Doomed Org")

	req := testutil.NewAuthenticatedRequest("DELETE", "/organizations/"+org.ID.Hex(), testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "orgID", org.ID.Hex())
	rec := testutil.NewRecorder()
	h.HandleDelete(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	// Gone now.
	req = testutil.NewAuthenticatedRequest("DELETE", "/organizations/"+org.ID.Hex(), testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "orgID", org.ID.Hex())
	rec = testutil.NewRecorder()
	h.HandleDelete(rec, req)
	rec.AssertStatus(t, http.StatusNotFound)
}

// TestRoutes drives requests through the assembled router, so the role
// middleware and the expiration mount are exercised together.
func TestRoutes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	logger := zap.NewNop()

	sm, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	h := organizations.NewHandler(db, nil, logger)
	proc := expiry.New(db, nil, nil, logger, expiry.Options{BatchDelay: time.Millisecond})
	exp := expiration.NewHandler(db, proc, logger)
	router := organizations.Routes(h, exp, sm)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	org := fx.CreateOrganization(ctx, "Routed Org")
	operator := testutil.OperatorUser(org.ID)

	// Anonymous requests bounce at the door.
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewRequest("GET", "/"))
	rec.AssertStatus(t, http.StatusUnauthorized)

	// Operators cannot create organizations.
	req := testutil.NewJSONRequest(t, "POST", "/", map[string]string{"name": "Upstart Org"})
	req = testutil.WithUser(req, operator)
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusForbidden)

	// Viewers cannot flip group years.
	req = testutil.NewJSONRequest(t, "PUT", "/"+org.ID.Hex()+"/groups/OT/year",
		map[string]string{"active_year": "2025-2026"})
	req = testutil.WithUser(req, testutil.ViewerUser(org.ID))
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusForbidden)

	// The expiration mount sees the orgID parameter from the parent
	// pattern. No certificates staged, so the run completes empty.
	req = testutil.NewAuthenticatedRequest("POST", "/"+org.ID.Hex()+"/expiration", operator)
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	var run struct {
		OrganizationID string `json:"organizationId"`
		TotalProcessed int    `json:"totalProcessed"`
	}
	rec.DecodeJSON(t, &run)
	if run.OrganizationID != org.ID.Hex() {
		t.Errorf("run organization: got %s, want %s", run.OrganizationID, org.ID.Hex())
	}
	if run.TotalProcessed != 0 {
		t.Errorf("empty run processed %d certificates", run.TotalProcessed)
	}

	req = testutil.NewAuthenticatedRequest("GET", "/"+org.ID.Hex()+"/expiration/last", operator)
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)
}
