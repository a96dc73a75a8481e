package users_test

import (
	"net/http"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/users"
	userstore "github.com/coverdesk/coverdesk/internal/app/store/users"
	"github.com/coverdesk/coverdesk/internal/app/system/auth"
	"github.com/coverdesk/coverdesk/internal/app/system/authutil"
	"github.com/coverdesk/coverdesk/internal/domain/models"
	"github.com/coverdesk/coverdesk/internal/testutil"
)

func setup(t *testing.T) (*testutil.Fixtures, *users.Handler) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	h := users.NewHandler(db, nil, zap.NewNop())
	return fx, h
}

// actorFor builds a session user backed by a real user document, so the
// self-protection rules can match on the actor's id.
func actorFor(u models.User) testutil.TestUser {
	return testutil.TestUser{
		ID:    u.ID.Hex(),
		Name:  u.FullName,
		Email: u.Email,
		Role:  u.Role,
	}
}

func TestHandleCreate(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Harborview Mutual")

	req := testutil.NewJSONRequest(t, "POST", "/users", map[string]string{
		"full_name":       "  Nadia Osei ",
		"email":           "Nadia.Osei@Example.com",
		"password":        "rooftop-garden-9",
		"role":            "operator",
		"organization_id": org.ID.Hex(),
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	rec := testutil.NewRecorder()

	h.HandleCreate(rec, req)

	rec.AssertStatus(t, http.StatusCreated)

	var created models.User
	rec.DecodeJSON(t, &created)
	if created.ID.IsZero() {
		t.Error("created user has no id")
	}
	if created.FullName != "Nadia Osei" {
		t.Errorf("full name: got %q, want normalized Nadia Osei", created.FullName)
	}
	if created.Email != "nadia.osei@example.com" {
		t.Errorf("email: got %q, want lowercased", created.Email)
	}
	if created.Role != models.RoleOperator {
		t.Errorf("role: got %q", created.Role)
	}
	if created.Status != models.UserActive {
		t.Errorf("status: got %q, want active by default", created.Status)
	}
	if created.OrganizationID == nil || *created.OrganizationID != org.ID {
		t.Errorf("organization: got %v, want %s", created.OrganizationID, org.ID.Hex())
	}

	// The hash never appears in the response but must verify in the store.
	stored, err := h.Users.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("reload created user: %v", err)
	}
	if !authutil.CheckPassword("rooftop-garden-9", stored.PasswordHash) {
		t.Error("stored hash does not verify the submitted password")
	}
}

func TestHandleCreate_GoogleAccount(t *testing.T) {
	_, h := setup(t)

	req := testutil.NewJSONRequest(t, "POST", "/users", map[string]string{
		"full_name":   "Pat Admin",
		"email":       "pat@example.com",
		"auth_method": "google",
		"role":        "admin",
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	rec := testutil.NewRecorder()

	h.HandleCreate(rec, req)

	rec.AssertStatus(t, http.StatusCreated)

	var created models.User
	rec.DecodeJSON(t, &created)
	if created.AuthMethod != "google" {
		t.Errorf("auth method: got %q", created.AuthMethod)
	}
	if created.OrganizationID != nil {
		t.Errorf("admin should be global, got org %s", created.OrganizationID.Hex())
	}
}

func TestHandleCreate_Validation(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Validation Org")

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing full name", map[string]string{
			"email": "a@example.com", "role": "admin", "password": "rooftop-garden-9"}},
		{"missing email", map[string]string{
			"full_name": "A", "role": "admin", "password": "rooftop-garden-9"}},
		{"malformed email", map[string]string{
			"full_name": "A", "email": "not-an-address", "role": "admin", "password": "rooftop-garden-9"}},
		{"unknown role", map[string]string{
			"full_name": "A", "email": "a@example.com", "role": "superuser", "password": "rooftop-garden-9"}},
		{"operator without org", map[string]string{
			"full_name": "A", "email": "a@example.com", "role": "operator", "password": "rooftop-garden-9"}},
		{"admin with org", map[string]string{
			"full_name": "A", "email": "a@example.com", "role": "admin", "password": "rooftop-garden-9",
			"organization_id": org.ID.Hex()}},
		{"password account without password", map[string]string{
			"full_name": "A", "email": "a@example.com", "role": "admin"}},
		{"weak password", map[string]string{
			"full_name": "A", "email": "a@example.com", "role": "admin", "password": "abc"}},
		{"google account with password", map[string]string{
			"full_name": "A", "email": "a@example.com", "role": "admin", "auth_method": "google",
			"password": "rooftop-garden-9"}},
		{"malformed org id", map[string]string{
			"full_name": "A", "email": "a@example.com", "role": "viewer", "password": "rooftop-garden-9",
			"organization_id": "nope"}},
		{"unknown org", map[string]string{
			"full_name": "A", "email": "a@example.com", "role": "viewer", "password": "rooftop-garden-9",
			"organization_id": primitive.NewObjectID().Hex()}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := testutil.NewJSONRequest(t, "POST", "/users", tc.body)
			req = testutil.WithUser(req, testutil.AdminUser())
			rec := testutil.NewRecorder()

			h.HandleCreate(rec, req)

			rec.AssertStatus(t, http.StatusBadRequest)
		})
	}
}

func TestHandleCreate_DuplicateEmail(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateAdmin(ctx, "Existing Admin", "taken@example.com")

	// Folded comparison, so a case variant is still a duplicate.
	req := testutil.NewJSONRequest(t, "POST", "/users", map[string]string{
		"full_name": "Second Admin",
		"email":     "TAKEN@example.com",
		"role":      "admin",
		"password":  "rooftop-garden-9",
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	rec := testutil.NewRecorder()

	h.HandleCreate(rec, req)

	rec.AssertStatus(t, http.StatusConflict)
}

func TestServeList(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "List Org")
	other := fx.CreateOrganization(ctx, "Other Org")
	fx.CreateAdmin(ctx, "Alice Admin", "alice@example.com")
	fx.CreateOperator(ctx, "Bob Operator", "bob@example.com", org.ID)
	fx.CreateViewer(ctx, "Carol Viewer", "carol@example.com", org.ID)
	fx.CreateOperator(ctx, "Dan Operator", "dan@example.com", other.ID)

	type page struct {
		Users []models.User `json:"users"`
		Total int64         `json:"total"`
	}

	cases := []struct {
		name   string
		target string
		want   int64
	}{
		{"all", "/users", 4},
		{"by role", "/users?role=operator", 2},
		{"by org", "/users?organization_id=" + org.ID.Hex(), 2},
		{"role and org", "/users?role=operator&organization_id=" + org.ID.Hex(), 1},
		{"name prefix", "/users?q=car", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := testutil.NewRequest("GET", tc.target)
			req = testutil.WithUser(req, testutil.AdminUser())
			rec := testutil.NewRecorder()

			h.ServeList(rec, req)

			rec.AssertStatus(t, http.StatusOK)
			var p page
			rec.DecodeJSON(t, &p)
			if p.Total != tc.want {
				t.Errorf("total: got %d, want %d", p.Total, tc.want)
			}
		})
	}

	// Sorted by folded name regardless of insert order.
	req := testutil.NewRequest("GET", "/users")
	req = testutil.WithUser(req, testutil.AdminUser())
	rec := testutil.NewRecorder()
	h.ServeList(rec, req)
	var p page
	rec.DecodeJSON(t, &p)
	if len(p.Users) != 4 || p.Users[0].FullName != "Alice Admin" {
		t.Errorf("expected Alice Admin first, got %+v", p.Users)
	}
	if p.Users[0].PasswordHash != "" {
		t.Error("password hash leaked into list response")
	}
}

func TestServeList_BadParams(t *testing.T) {
	_, h := setup(t)

	cases := []struct {
		name   string
		target string
	}{
		{"unknown role", "/users?role=superuser"},
		{"unknown status", "/users?status=frozen"},
		{"malformed org id", "/users?organization_id=nope"},
		{"negative limit", "/users?limit=-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := testutil.NewRequest("GET", tc.target)
			req = testutil.WithUser(req, testutil.AdminUser())
			rec := testutil.NewRecorder()

			h.ServeList(rec, req)

			rec.AssertStatus(t, http.StatusBadRequest)
		})
	}
}

func TestServeGet(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := fx.CreateAdmin(ctx, "Get Target", "get@example.com")

	req := testutil.NewRequest("GET", "/users/"+user.ID.Hex())
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "userID", user.ID.Hex())
	rec := testutil.NewRecorder()

	h.ServeGet(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	var got models.User
	rec.DecodeJSON(t, &got)
	if got.ID != user.ID {
		t.Errorf("id: got %s, want %s", got.ID.Hex(), user.ID.Hex())
	}
}

func TestServeGet_NotFound(t *testing.T) {
	_, h := setup(t)

	id := primitive.NewObjectID().Hex()
	req := testutil.NewRequest("GET", "/users/"+id)
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "userID", id)
	rec := testutil.NewRecorder()

	h.ServeGet(rec, req)

	rec.AssertStatus(t, http.StatusNotFound)
}

func TestHandleUpdate(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Update Org")
	user := fx.CreateOperator(ctx, "Old Name", "old@example.com", org.ID)

	req := testutil.NewJSONRequest(t, "PUT", "/users/"+user.ID.Hex(), map[string]string{
		"full_name": "New Name",
		"role":      "viewer",
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "userID", user.ID.Hex())
	rec := testutil.NewRecorder()

	h.HandleUpdate(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	var updated models.User
	rec.DecodeJSON(t, &updated)
	if updated.FullName != "New Name" {
		t.Errorf("full name: got %q", updated.FullName)
	}
	if updated.Role != models.RoleViewer {
		t.Errorf("role: got %q", updated.Role)
	}
	// Untouched fields keep their stored values.
	if updated.Email != "old@example.com" {
		t.Errorf("email changed unexpectedly: %q", updated.Email)
	}
	if updated.OrganizationID == nil || *updated.OrganizationID != org.ID {
		t.Error("organization changed unexpectedly")
	}
}

func TestHandleUpdate_Validation(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fx.CreateAdmin(ctx, "Demote Target", "demote@example.com")

	// Demoting a global admin to viewer needs an organization to land in.
	req := testutil.NewJSONRequest(t, "PUT", "/users/"+admin.ID.Hex(), map[string]string{
		"role": "viewer",
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "userID", admin.ID.Hex())
	rec := testutil.NewRecorder()

	h.HandleUpdate(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)

	// Empty body has nothing to apply.
	req = testutil.NewJSONRequest(t, "PUT", "/users/"+admin.ID.Hex(), map[string]string{})
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "userID", admin.ID.Hex())
	rec = testutil.NewRecorder()

	h.HandleUpdate(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestHandleUpdate_DuplicateEmail(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateAdmin(ctx, "First", "first@example.com")
	second := fx.CreateAdmin(ctx, "Second", "second@example.com")

	req := testutil.NewJSONRequest(t, "PUT", "/users/"+second.ID.Hex(), map[string]string{
		"email": "first@example.com",
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "userID", second.ID.Hex())
	rec := testutil.NewRecorder()

	h.HandleUpdate(rec, req)

	rec.AssertStatus(t, http.StatusConflict)
}

func TestHandleUpdate_OwnRole(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Self Org")
	self := fx.CreateAdmin(ctx, "Self Admin", "self@example.com")

	req := testutil.NewJSONRequest(t, "PUT", "/users/"+self.ID.Hex(), map[string]string{
		"role":            "viewer",
		"organization_id": org.ID.Hex(),
	})
	req = testutil.WithUser(req, actorFor(self))
	req = testutil.WithChiURLParam(req, "userID", self.ID.Hex())
	rec := testutil.NewRecorder()

	h.HandleUpdate(rec, req)

	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestHandleSetStatus(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Status Org")
	user := fx.CreateViewer(ctx, "Status Target", "status@example.com", org.ID)

	req := testutil.NewJSONRequest(t, "PUT", "/users/"+user.ID.Hex()+"/status", map[string]string{
		"status": "disabled",
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "userID", user.ID.Hex())
	rec := testutil.NewRecorder()

	h.HandleSetStatus(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	var updated models.User
	rec.DecodeJSON(t, &updated)
	if updated.Status != models.UserDisabled {
		t.Errorf("status: got %q, want disabled", updated.Status)
	}

	// Same status again is a quiet no-op.
	req = testutil.NewJSONRequest(t, "PUT", "/users/"+user.ID.Hex()+"/status", map[string]string{
		"status": "disabled",
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "userID", user.ID.Hex())
	rec = testutil.NewRecorder()

	h.HandleSetStatus(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	req = testutil.NewJSONRequest(t, "PUT", "/users/"+user.ID.Hex()+"/status", map[string]string{
		"status": "active",
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "userID", user.ID.Hex())
	rec = testutil.NewRecorder()

	h.HandleSetStatus(rec, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &updated)
	if updated.Status != models.UserActive {
		t.Errorf("status: got %q, want active", updated.Status)
	}
}

func TestHandleSetStatus_SelfDisable(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	self := fx.CreateAdmin(ctx, "Self Admin", "self@example.com")

	req := testutil.NewJSONRequest(t, "PUT", "/users/"+self.ID.Hex()+"/status", map[string]string{
		"status": "disabled",
	})
	req = testutil.WithUser(req, actorFor(self))
	req = testutil.WithChiURLParam(req, "userID", self.ID.Hex())
	rec := testutil.NewRecorder()

	h.HandleSetStatus(rec, req)

	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestHandleSetPassword(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := fx.CreateUserWithPassword(ctx, "Reset Target", "reset@example.com",
		models.RoleAdmin, "old-password-1", nil)

	req := testutil.NewJSONRequest(t, "PUT", "/users/"+user.ID.Hex()+"/password", map[string]string{
		"password": "brand-new-secret-7",
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "userID", user.ID.Hex())
	rec := testutil.NewRecorder()

	h.HandleSetPassword(rec, req)

	rec.AssertStatus(t, http.StatusOK)

	stored, err := h.Users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if !authutil.CheckPassword("brand-new-secret-7", stored.PasswordHash) {
		t.Error("new password does not verify")
	}
	if authutil.CheckPassword("old-password-1", stored.PasswordHash) {
		t.Error("old password still verifies")
	}
}

func TestHandleSetPassword_Rejections(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	passworder := fx.CreateAdmin(ctx, "Password Admin", "pw@example.com")
	googler := fx.CreateUser(ctx, "Google Admin", "g@example.com", models.RoleAdmin, nil)
	if err := h.Users.Update(ctx, googler.ID, userstore.Update{AuthMethod: "google"}); err != nil {
		t.Fatalf("switch auth method: %v", err)
	}

	// Weak replacement password.
	req := testutil.NewJSONRequest(t, "PUT", "/users/"+passworder.ID.Hex()+"/password", map[string]string{
		"password": "abc",
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "userID", passworder.ID.Hex())
	rec := testutil.NewRecorder()
	h.HandleSetPassword(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)

	// Google accounts have no password to reset.
	req = testutil.NewJSONRequest(t, "PUT", "/users/"+googler.ID.Hex()+"/password", map[string]string{
		"password": "brand-new-secret-7",
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "userID", googler.ID.Hex())
	rec = testutil.NewRecorder()
	h.HandleSetPassword(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestHandleDelete(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Delete Org")
	user := fx.CreateViewer(ctx, "Delete Target", "delete@example.com", org.ID)

	req := testutil.NewRequest("DELETE", "/users/"+user.ID.Hex())
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "userID", user.ID.Hex())
	rec := testutil.NewRecorder()

	h.HandleDelete(rec, req)

	rec.AssertStatus(t, http.StatusOK)

	if _, err := h.Users.GetByID(ctx, user.ID); err == nil {
		t.Error("user still loads after delete")
	}

	// Gone means gone; a second delete is a 404.
	req = testutil.NewRequest("DELETE", "/users/"+user.ID.Hex())
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "userID", user.ID.Hex())
	rec = testutil.NewRecorder()

	h.HandleDelete(rec, req)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestHandleDelete_Self(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	self := fx.CreateAdmin(ctx, "Self Admin", "self@example.com")

	req := testutil.NewRequest("DELETE", "/users/"+self.ID.Hex())
	req = testutil.WithUser(req, actorFor(self))
	req = testutil.WithChiURLParam(req, "userID", self.ID.Hex())
	rec := testutil.NewRecorder()

	h.HandleDelete(rec, req)

	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestRoutes(t *testing.T) {
	fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Route Org")
	fx.CreateAdmin(ctx, "Route Admin", "route@example.com")

	logger := zap.NewNop()
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", false, logger)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	router := users.Routes(h, sm)

	req := testutil.NewRequest("GET", "/")
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusUnauthorized)

	// Account management is admin-only.
	req = testutil.NewRequest("GET", "/")
	req = testutil.WithUser(req, testutil.OperatorUser(org.ID))
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusForbidden)

	req = testutil.NewRequest("GET", "/")
	req = testutil.WithUser(req, testutil.AdminUser())
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)
}
