package auditlog_test

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/coverdesk/coverdesk/internal/app/store/audit"
	"github.com/coverdesk/coverdesk/internal/app/system/auditlog"
	"github.com/coverdesk/coverdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()
	req := httptest.NewRequest("GET", "/", nil)

	// These should all be no-ops, not panic
	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.LoginSuccess(ctx, req, primitive.NewObjectID(), nil, "password", "test@example.com")
	logger.Logout(ctx, req, primitive.NewObjectID().Hex(), "")
	logger.CertificateExpired(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "2025-2026", "Group A")
}

func TestLogger_Log_ConfigOff(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zapLog, auditlog.Config{
		Auth:  "off",
		Admin: "off",
	})

	// Log an auth event
	logger.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		Success:   true,
	})

	// Verify nothing was logged to DB
	events, err := store.GetByUser(ctx, primitive.NewObjectID(), 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 0 {
		t.Error("expected no events when config is 'off'")
	}
}

func TestLogger_Log_ConfigDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	logger := auditlog.New(store, zapLog, auditlog.Config{
		Auth:  "db",
		Admin: "db",
	})

	// Log an auth event
	logger.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		Success:   true,
	})

	// Verify event was logged to DB
	events, err := store.GetByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}

func TestLogger_Log_ConfigAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	logger := auditlog.New(store, zapLog, auditlog.Config{
		Auth:  "all",
		Admin: "all",
	})

	// Log an auth event
	logger.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		Success:   true,
	})

	// Verify event was logged to DB
	events, err := store.GetByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}

func TestLogger_LoginSuccess(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	orgID := primitive.NewObjectID()
	logger := auditlog.New(store, zapLog, auditlog.Config{
		Auth: "db",
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("User-Agent", "TestBrowser/1.0")

	logger.LoginSuccess(ctx, req, userID, &orgID, "password", "user@example.com")

	// Verify event was logged
	events, err := store.GetByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.EventType != audit.EventLoginSuccess {
		t.Errorf("EventType: got %q, want %q", event.EventType, audit.EventLoginSuccess)
	}
	if !event.Success {
		t.Error("expected Success to be true")
	}
}

func TestLogger_LoginFailedUserNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zapLog, auditlog.Config{
		Auth: "db",
	})

	req := httptest.NewRequest("GET", "/", nil)
	logger.LoginFailedUserNotFound(ctx, req, "unknown@example.com")

	// Verify event was logged - use GetRecent since no user ID
	events, err := store.GetRecent(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.EventType != audit.EventLoginFailedUserNotFound {
		t.Errorf("EventType: got %q, want %q", event.EventType, audit.EventLoginFailedUserNotFound)
	}
	if event.Success {
		t.Error("expected Success to be false")
	}
	if event.FailureReason != "user not found" {
		t.Errorf("FailureReason: got %q, want %q", event.FailureReason, "user not found")
	}
}

func TestLogger_Logout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	orgID := primitive.NewObjectID()
	logger := auditlog.New(store, zapLog, auditlog.Config{
		Auth: "db",
	})

	req := httptest.NewRequest("GET", "/", nil)
	logger.Logout(ctx, req, userID.Hex(), orgID.Hex())

	// Verify event was logged
	events, err := store.GetByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	if events[0].EventType != audit.EventLogout {
		t.Errorf("EventType: got %q, want %q", events[0].EventType, audit.EventLogout)
	}
}

func TestLogger_Logout_InvalidIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zapLog, auditlog.Config{
		Auth: "db",
	})

	req := httptest.NewRequest("GET", "/", nil)
	// Should not panic with invalid hex IDs
	logger.Logout(ctx, req, "invalid-hex", "also-invalid")
}

func TestLogger_UserCreated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actorID := primitive.NewObjectID()
	targetUserID := primitive.NewObjectID()
	orgID := primitive.NewObjectID()
	logger := auditlog.New(store, zapLog, auditlog.Config{
		Admin: "db",
	})

	req := httptest.NewRequest("GET", "/", nil)
	logger.UserCreated(ctx, req, actorID, targetUserID, &orgID, "admin", "operator", "password")

	// Verify event was logged
	events, err := store.GetByUser(ctx, targetUserID, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.EventType != audit.EventUserCreated {
		t.Errorf("EventType: got %q, want %q", event.EventType, audit.EventUserCreated)
	}
	if event.ActorID == nil || *event.ActorID != actorID {
		t.Error("expected ActorID to be set")
	}
}

func TestLogger_StatusTransition(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actorID := primitive.NewObjectID()
	certID := primitive.NewObjectID()
	orgID := primitive.NewObjectID()
	logger := auditlog.New(store, zapLog, auditlog.Config{
		Lifecycle: "db",
	})

	req := httptest.NewRequest("GET", "/", nil)
	logger.StatusTransition(ctx, req, actorID, certID, orgID, "admin", "pending", "active")

	events, err := store.GetByCertificate(ctx, certID, 10)
	if err != nil {
		t.Fatalf("GetByCertificate failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.EventType != audit.EventStatusTransition {
		t.Errorf("EventType: got %q, want %q", event.EventType, audit.EventStatusTransition)
	}
	if event.Category != audit.CategoryLifecycle {
		t.Errorf("Category: got %q, want %q", event.Category, audit.CategoryLifecycle)
	}
	if event.Details["from"] != "pending" || event.Details["to"] != "active" {
		t.Errorf("Details: got from=%q to=%q", event.Details["from"], event.Details["to"])
	}
}

func TestLogger_TransitionRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actorID := primitive.NewObjectID()
	certID := primitive.NewObjectID()
	orgID := primitive.NewObjectID()
	logger := auditlog.New(store, zapLog, auditlog.Config{
		Lifecycle: "db",
	})

	req := httptest.NewRequest("GET", "/", nil)
	logger.TransitionRejected(ctx, req, actorID, certID, orgID, "operator", "expired", "active", "invalid status transition")

	events, err := store.GetByCertificate(ctx, certID, 10)
	if err != nil {
		t.Fatalf("GetByCertificate failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.Success {
		t.Error("expected Success to be false")
	}
	if event.FailureReason != "invalid status transition" {
		t.Errorf("FailureReason: got %q", event.FailureReason)
	}
}

func TestLogger_CertificateExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	certID := primitive.NewObjectID()
	orgID := primitive.NewObjectID()
	logger := auditlog.New(store, zapLog, auditlog.Config{
		Expiration: "db",
	})

	logger.CertificateExpired(ctx, orgID, certID, "2024-2025", "Group B")

	events, err := store.GetByCertificate(ctx, certID, 10)
	if err != nil {
		t.Fatalf("GetByCertificate failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.EventType != audit.EventCertificateExpired {
		t.Errorf("EventType: got %q, want %q", event.EventType, audit.EventCertificateExpired)
	}
	if event.Details["membership_year"] != "2024-2025" {
		t.Errorf("membership_year: got %q", event.Details["membership_year"])
	}
	if event.Details["group_label"] != "Group B" {
		t.Errorf("group_label: got %q", event.Details["group_label"])
	}
}

func TestLogger_ExpirationRunCompleted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orgID := primitive.NewObjectID()
	logger := auditlog.New(store, zapLog, auditlog.Config{
		Expiration: "db",
	})

	logger.ExpirationRunCompleted(ctx, orgID, "scheduled", 120, 80, 38, 2)

	events, err := store.GetRecent(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.EventType != audit.EventExpirationRunCompleted {
		t.Errorf("EventType: got %q, want %q", event.EventType, audit.EventExpirationRunCompleted)
	}
	if event.Details["checked"] != "120" || event.Details["expired"] != "80" {
		t.Errorf("counts: got checked=%q expired=%q", event.Details["checked"], event.Details["expired"])
	}
}

func TestLogger_ExpirationItemError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	certID := primitive.NewObjectID()
	orgID := primitive.NewObjectID()
	logger := auditlog.New(store, zapLog, auditlog.Config{
		Expiration: "db",
	})

	logger.ExpirationItemError(ctx, orgID, certID, errors.New("write conflict"))

	events, err := store.GetByCertificate(ctx, certID, 10)
	if err != nil {
		t.Fatalf("GetByCertificate failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].FailureReason != "write conflict" {
		t.Errorf("FailureReason: got %q", events[0].FailureReason)
	}
}

func TestLogger_CategoriesFilteredByConfig(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	certID := primitive.NewObjectID()
	orgID := primitive.NewObjectID()

	// Auth = off, Lifecycle = db
	logger := auditlog.New(store, zapLog, auditlog.Config{
		Auth:      "off",
		Admin:     "off",
		Lifecycle: "db",
	})

	req := httptest.NewRequest("GET", "/", nil)

	// Auth event should be skipped
	logger.LoginSuccess(ctx, req, userID, nil, "password", "test@example.com")

	// Lifecycle event should be logged
	logger.StatusTransition(ctx, req, userID, certID, orgID, "admin", "draft", "pending")

	// Verify only the lifecycle event was logged
	authEvents, _ := store.GetByUser(ctx, userID, 10)
	if len(authEvents) != 0 {
		t.Error("expected no auth events when auth config is 'off'")
	}

	certEvents, _ := store.GetByCertificate(ctx, certID, 10)
	if len(certEvents) != 1 {
		t.Errorf("expected 1 lifecycle event, got %d", len(certEvents))
	}
}

func TestGetClientIP_XForwardedFor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	logger := auditlog.New(store, zapLog, auditlog.Config{
		Auth: "db",
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.195")
	req.Header.Set("X-Real-IP", "192.168.1.1")
	req.RemoteAddr = "127.0.0.1:12345"

	logger.LoginSuccess(ctx, req, userID, nil, "password", "test@example.com")

	events, _ := store.GetByUser(ctx, userID, 10)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	// X-Forwarded-For should take precedence
	if events[0].IP != "203.0.113.195" {
		t.Errorf("IP: got %q, want %q", events[0].IP, "203.0.113.195")
	}
}

func TestGetClientIP_XRealIP(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	logger := auditlog.New(store, zapLog, auditlog.Config{
		Auth: "db",
	})

	req := httptest.NewRequest("GET", "/", nil)
	// No X-Forwarded-For
	req.Header.Set("X-Real-IP", "192.168.1.100")
	req.RemoteAddr = "127.0.0.1:12345"

	logger.LoginSuccess(ctx, req, userID, nil, "password", "test@example.com")

	events, _ := store.GetByUser(ctx, userID, 10)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	// X-Real-IP should be used when no X-Forwarded-For
	if events[0].IP != "192.168.1.100" {
		t.Errorf("IP: got %q, want %q", events[0].IP, "192.168.1.100")
	}
}

func TestGetClientIP_RemoteAddr(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	zapLog := zap.NewNop()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	logger := auditlog.New(store, zapLog, auditlog.Config{
		Auth: "db",
	})

	req := httptest.NewRequest("GET", "/", nil)
	// No proxy headers
	req.RemoteAddr = "10.0.0.5:12345"

	logger.LoginSuccess(ctx, req, userID, nil, "password", "test@example.com")

	events, _ := store.GetByUser(ctx, userID, 10)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	// Should fall back to RemoteAddr (port stripped)
	if events[0].IP != "10.0.0.5" {
		t.Errorf("IP: got %q, want %q", events[0].IP, "10.0.0.5")
	}
}
