package expiry_test

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/store/certificates"
	"github.com/coverdesk/coverdesk/internal/app/system/expiry"
	"github.com/coverdesk/coverdesk/internal/domain/lifecycle"
	"github.com/coverdesk/coverdesk/internal/domain/years"
	"github.com/coverdesk/coverdesk/internal/testutil"
)

func setup(t *testing.T) (*mongo.Database, *testutil.Fixtures, *expiry.Processor) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	p := expiry.New(db, nil, nil, zap.NewNop(), expiry.Options{BatchDelay: time.Millisecond})
	return db, fx, p
}

// Year labels are computed from the clock so the fixtures always land inside
// the processor's candidate window.
func labels() (current, previous string) {
	now := time.Now().UTC()
	return years.Current(now), years.Label(now.Year() - 1)
}

func certStatus(t *testing.T, db *mongo.Database, id primitive.ObjectID) string {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	cert, err := certificatestore.New(db).GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	return cert.Status
}

func TestRun_ExpiresStaleYear(t *testing.T) {
	db, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	current, previous := labels()

	org := fx.CreateOrganization(ctx, "Missouri Occupational Therapists")
	acct := fx.CreateAccount(ctx, org.ID, "M-1001", "Dana Whitfield")
	fx.CreateCategory(ctx, org.ID, "M-1001", "OT", previous)
	fx.SetGroupYear(ctx, org.ID, "OT", current)
	cert := fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		AccountID:      acct.ID,
		GroupLabel:     "OT",
		MembershipYear: previous,
	})

	res, err := p.Run(ctx, org.ID, expiry.TriggerManual, nil, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.TotalProcessed != 1 {
		t.Errorf("TotalProcessed = %d, want 1", res.TotalProcessed)
	}
	if res.TotalExpired != 1 {
		t.Errorf("TotalExpired = %d, want 1", res.TotalExpired)
	}
	if res.TotalSkipped != 0 {
		t.Errorf("TotalSkipped = %d, want 0", res.TotalSkipped)
	}
	if res.Errors != 0 {
		t.Errorf("Errors = %d, want 0", res.Errors)
	}

	if got := certStatus(t, db, cert.ID); got != string(lifecycle.StatusExpired) {
		t.Errorf("certificate status = %q, want %q", got, lifecycle.StatusExpired)
	}

	stats := res.PerOrganization.GroupStats["OT"]
	if stats.Checked != 1 || stats.Expired != 1 {
		t.Errorf("groupStats[OT] = %+v, want checked 1 expired 1", stats)
	}
}

func TestRun_YearCurrent(t *testing.T) {
	db, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	current, _ := labels()

	org := fx.CreateOrganization(ctx, "Year Current Org")
	acct := fx.CreateAccount(ctx, org.ID, "M-2001", "Priya Raman")
	fx.CreateCategory(ctx, org.ID, "M-2001", "OT", current)
	fx.SetGroupYear(ctx, org.ID, "OT", current)
	cert := fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		AccountID:      acct.ID,
		GroupLabel:     "OT",
		MembershipYear: current,
	})

	res, err := p.Run(ctx, org.ID, expiry.TriggerManual, nil, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.TotalExpired != 0 {
		t.Errorf("TotalExpired = %d, want 0", res.TotalExpired)
	}
	if got := res.Skipped(expiry.SkipYearCurrent); got != 1 {
		t.Errorf("year_current skips = %d, want 1", got)
	}
	if got := certStatus(t, db, cert.ID); got != string(lifecycle.StatusActive) {
		t.Errorf("certificate status = %q, want unchanged active", got)
	}
}

func TestRun_NoAccountLink(t *testing.T) {
	db, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	current, previous := labels()

	org := fx.CreateOrganization(ctx, "Broken Link Org")
	fx.SetGroupYear(ctx, org.ID, "OT", current)
	cert := fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		// AccountID left zero: legacy record with a broken account link.
		GroupLabel:     "OT",
		MembershipYear: previous,
	})

	res, err := p.Run(ctx, org.ID, expiry.TriggerManual, nil, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.TotalSkippedNoAccount != 1 {
		t.Errorf("TotalSkippedNoAccount = %d, want 1", res.TotalSkippedNoAccount)
	}
	if res.Errors != 0 {
		t.Errorf("Errors = %d, want 0 (a broken link is a skip, not an error)", res.Errors)
	}
	if got := res.Skipped(expiry.SkipNoAccountLink); got != 1 {
		t.Errorf("no_account_link skips = %d, want 1", got)
	}
	if got := certStatus(t, db, cert.ID); got != string(lifecycle.StatusActive) {
		t.Errorf("certificate status = %q, want unchanged active", got)
	}
}

func TestRun_AccountNotFound(t *testing.T) {
	_, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	_, previous := labels()

	org := fx.CreateOrganization(ctx, "Ghost Account Org")
	fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		AccountID:      primitive.NewObjectID(), // never inserted
		GroupLabel:     "OT",
		MembershipYear: previous,
	})

	res, err := p.Run(ctx, org.ID, expiry.TriggerManual, nil, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := res.Skipped(expiry.SkipAccountNotFound); got != 1 {
		t.Errorf("account_not_found skips = %d, want 1", got)
	}
	if res.TotalSkippedNoAccount != 1 {
		t.Errorf("TotalSkippedNoAccount = %d, want 1", res.TotalSkippedNoAccount)
	}
	if res.Errors != 0 {
		t.Errorf("Errors = %d, want 0", res.Errors)
	}
}

func TestRun_NoActiveCategory(t *testing.T) {
	_, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	current, previous := labels()

	org := fx.CreateOrganization(ctx, "Lapsed Membership Org")
	acct := fx.CreateAccount(ctx, org.ID, "M-3001", "Theo Marsh")
	fx.SetGroupYear(ctx, org.ID, "OT", current)
	// No category at all for this account and year.
	fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		AccountID:      acct.ID,
		GroupLabel:     "OT",
		MembershipYear: previous,
	})

	res, err := p.Run(ctx, org.ID, expiry.TriggerManual, nil, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.TotalSkippedNoCategory != 1 {
		t.Errorf("TotalSkippedNoCategory = %d, want 1", res.TotalSkippedNoCategory)
	}
	if got := res.Skipped(expiry.SkipNoActiveCategory); got != 1 {
		t.Errorf("no_active_category skips = %d, want 1", got)
	}
	if res.Errors != 0 {
		t.Errorf("Errors = %d, want 0 (lapsed membership is not an error)", res.Errors)
	}
}

func TestRun_LapsedCategorySkips(t *testing.T) {
	_, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	current, previous := labels()

	org := fx.CreateOrganization(ctx, "Lapsed Category Org")
	acct := fx.CreateAccount(ctx, org.ID, "M-3002", "Imogen Reyes")
	fx.CreateLapsedCategory(ctx, org.ID, "M-3002", "OT", previous)
	fx.SetGroupYear(ctx, org.ID, "OT", current)
	fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		AccountID:      acct.ID,
		GroupLabel:     "OT",
		MembershipYear: previous,
	})

	res, err := p.Run(ctx, org.ID, expiry.TriggerManual, nil, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := res.Skipped(expiry.SkipNoActiveCategory); got != 1 {
		t.Errorf("no_active_category skips = %d, want 1 for lapsed category", got)
	}
	if res.TotalExpired != 0 {
		t.Errorf("TotalExpired = %d, want 0", res.TotalExpired)
	}
}

func TestRun_NoActiveSettings(t *testing.T) {
	_, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	_, previous := labels()

	org := fx.CreateOrganization(ctx, "Unconfigured Group Org")
	acct := fx.CreateAccount(ctx, org.ID, "M-4001", "Saoirse Quinn")
	fx.CreateCategory(ctx, org.ID, "M-4001", "OT", previous)
	// No SetGroupYear: the OT group has no active year configured.
	fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		AccountID:      acct.ID,
		GroupLabel:     "OT",
		MembershipYear: previous,
	})

	res, err := p.Run(ctx, org.ID, expiry.TriggerManual, nil, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := res.Skipped(expiry.SkipNoActiveSettings); got != 1 {
		t.Errorf("no_active_settings skips = %d, want 1", got)
	}
	stats := res.PerOrganization.GroupStats["OT"]
	if stats.Checked != 1 || stats.Expired != 0 {
		t.Errorf("groupStats[OT] = %+v, want checked 1 expired 0", stats)
	}
}

func TestRun_NoGroupLabel(t *testing.T) {
	_, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	_, previous := labels()

	org := fx.CreateOrganization(ctx, "Blank Label Org")
	acct := fx.CreateAccount(ctx, org.ID, "M-5001", "Jonah Ellery")
	fx.CreateCategory(ctx, org.ID, "M-5001", "", previous)
	fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		AccountID:      acct.ID,
		MembershipYear: previous,
	})

	res, err := p.Run(ctx, org.ID, expiry.TriggerManual, nil, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := res.Skipped(expiry.SkipNoGroupLabel); got != 1 {
		t.Errorf("no_group_label skips = %d, want 1", got)
	}
}

func TestRun_GroupsRollOverIndependently(t *testing.T) {
	_, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	current, previous := labels()

	// Two groups with different active years; each certificate matches its
	// own group's year, so nothing should expire.
	org := fx.CreateOrganization(ctx, "Two Cohort Org")
	fx.SetGroupYear(ctx, org.ID, "OT", current)
	fx.SetGroupYear(ctx, org.ID, "Student", previous)

	ot := fx.CreateAccount(ctx, org.ID, "M-6001", "Marta Kovacs")
	fx.CreateCategory(ctx, org.ID, "M-6001", "OT", current)
	fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		AccountID:      ot.ID,
		GroupLabel:     "OT",
		MembershipYear: current,
	})

	student := fx.CreateAccount(ctx, org.ID, "M-6002", "Felix Nguyen")
	fx.CreateCategory(ctx, org.ID, "M-6002", "Student", previous)
	fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		AccountID:      student.ID,
		GroupLabel:     "Student",
		MembershipYear: previous,
	})

	res, err := p.Run(ctx, org.ID, expiry.TriggerManual, nil, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.TotalExpired != 0 {
		t.Errorf("TotalExpired = %d, want 0", res.TotalExpired)
	}
	if res.TotalProcessed != 2 {
		t.Errorf("TotalProcessed = %d, want 2", res.TotalProcessed)
	}
	for _, group := range []string{"OT", "Student"} {
		stats := res.PerOrganization.GroupStats[group]
		if stats.Checked != 1 || stats.Expired != 0 {
			t.Errorf("groupStats[%s] = %+v, want checked 1 expired 0", group, stats)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	_, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	current, previous := labels()

	org := fx.CreateOrganization(ctx, "Idempotent Org")
	acct := fx.CreateAccount(ctx, org.ID, "M-7001", "Rosa Lindqvist")
	fx.CreateCategory(ctx, org.ID, "M-7001", "OT", previous)
	fx.SetGroupYear(ctx, org.ID, "OT", current)
	fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		AccountID:      acct.ID,
		GroupLabel:     "OT",
		MembershipYear: previous,
	})

	first, err := p.Run(ctx, org.ID, expiry.TriggerManual, nil, "first")
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if first.TotalExpired != 1 {
		t.Fatalf("first run TotalExpired = %d, want 1", first.TotalExpired)
	}

	second, err := p.Run(ctx, org.ID, expiry.TriggerManual, nil, "second")
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if second.TotalExpired != 0 {
		t.Errorf("second run TotalExpired = %d, want 0", second.TotalExpired)
	}
	if second.TotalProcessed != 0 {
		t.Errorf("second run TotalProcessed = %d, want 0 (expired certificates are not candidates)", second.TotalProcessed)
	}
}

func TestRun_MissingOrganizationScope(t *testing.T) {
	_, _, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := p.Run(ctx, primitive.NilObjectID, expiry.TriggerManual, nil, "test")
	if !errors.Is(err, expiry.ErrMissingOrganizationScope) {
		t.Fatalf("Run error = %v, want ErrMissingOrganizationScope", err)
	}
}

func TestRun_ScopedToOrganization(t *testing.T) {
	db, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	current, previous := labels()

	stage := func(name, businessID string) (orgID, certID primitive.ObjectID) {
		org := fx.CreateOrganization(ctx, name)
		acct := fx.CreateAccount(ctx, org.ID, businessID, "Member "+businessID)
		fx.CreateCategory(ctx, org.ID, businessID, "OT", previous)
		fx.SetGroupYear(ctx, org.ID, "OT", current)
		cert := fx.CreateCertificate(ctx, testutil.CertificateParams{
			OrganizationID: org.ID,
			AccountID:      acct.ID,
			GroupLabel:     "OT",
			MembershipYear: previous,
		})
		return org.ID, cert.ID
	}

	org1, cert1 := stage("Scoped Org One", "M-8001")
	_, cert2 := stage("Scoped Org Two", "M-8002")

	res, err := p.Run(ctx, org1, expiry.TriggerManual, nil, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.TotalExpired != 1 {
		t.Errorf("TotalExpired = %d, want 1", res.TotalExpired)
	}
	if got := certStatus(t, db, cert1); got != string(lifecycle.StatusExpired) {
		t.Errorf("in-scope certificate status = %q, want expired", got)
	}
	if got := certStatus(t, db, cert2); got != string(lifecycle.StatusActive) {
		t.Errorf("out-of-scope certificate status = %q, want untouched active", got)
	}
}

func TestRun_MixedDispositions(t *testing.T) {
	_, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	current, previous := labels()

	org := fx.CreateOrganization(ctx, "Mixed Batch Org")
	fx.SetGroupYear(ctx, org.ID, "OT", current)

	// One stale certificate that should expire.
	stale := fx.CreateAccount(ctx, org.ID, "M-9001", "Stale Holder")
	fx.CreateCategory(ctx, org.ID, "M-9001", "OT", previous)
	fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		AccountID:      stale.ID,
		GroupLabel:     "OT",
		MembershipYear: previous,
	})

	// One current certificate that should be left alone.
	fresh := fx.CreateAccount(ctx, org.ID, "M-9002", "Fresh Holder")
	fx.CreateCategory(ctx, org.ID, "M-9002", "OT", current)
	fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		AccountID:      fresh.ID,
		GroupLabel:     "OT",
		MembershipYear: current,
	})

	// One with a broken account link.
	fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		GroupLabel:     "OT",
		MembershipYear: previous,
	})

	res, err := p.Run(ctx, org.ID, expiry.TriggerManual, nil, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.TotalProcessed != 3 {
		t.Errorf("TotalProcessed = %d, want 3", res.TotalProcessed)
	}
	if res.TotalExpired != 1 {
		t.Errorf("TotalExpired = %d, want 1", res.TotalExpired)
	}
	if res.TotalSkipped != 2 {
		t.Errorf("TotalSkipped = %d, want 2", res.TotalSkipped)
	}
	if res.Errors != 0 {
		t.Errorf("Errors = %d, want 0", res.Errors)
	}
	if len(res.ItemErrors) != 0 {
		t.Errorf("ItemErrors = %v, want none", res.ItemErrors)
	}
}

func TestRun_BatchingProcessesEverything(t *testing.T) {
	db, fx, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	current, previous := labels()

	org := fx.CreateOrganization(ctx, "Large Cohort Org")
	acct := fx.CreateAccount(ctx, org.ID, "M-10001", "Shared Holder")
	fx.CreateCategory(ctx, org.ID, "M-10001", "OT", previous)
	fx.SetGroupYear(ctx, org.ID, "OT", current)

	const total = 25
	for i := 0; i < total; i++ {
		fx.CreateCertificate(ctx, testutil.CertificateParams{
			OrganizationID: org.ID,
			AccountID:      acct.ID,
			GroupLabel:     "OT",
			MembershipYear: previous,
		})
	}

	// A batch size smaller than the cohort forces several batches.
	small := expiry.New(db, nil, nil, zap.NewNop(), expiry.Options{
		BatchSize:  10,
		BatchDelay: time.Millisecond,
	})
	res, err := small.Run(ctx, org.ID, expiry.TriggerManual, nil, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.TotalProcessed != total {
		t.Errorf("TotalProcessed = %d, want %d", res.TotalProcessed, total)
	}
	if res.TotalExpired != total {
		t.Errorf("TotalExpired = %d, want %d", res.TotalExpired, total)
	}
}

func TestRun_YearlessCertificateIsNotACandidate(t *testing.T) {
	_, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Yearless Org")
	acct := fx.CreateAccount(ctx, org.ID, "M-11001", "Yearless Holder")
	fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		AccountID:      acct.ID,
		GroupLabel:     "OT",
		// MembershipYear left empty: the year-window query never selects it.
	})

	res, err := p.Run(ctx, org.ID, expiry.TriggerManual, nil, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.TotalProcessed != 0 {
		t.Errorf("TotalProcessed = %d, want 0", res.TotalProcessed)
	}
}

func TestLastRun(t *testing.T) {
	_, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Last Run Org")

	if _, ok := p.LastRun(org.ID); ok {
		t.Fatal("LastRun before any run should report not found")
	}

	res, err := p.Run(ctx, org.ID, expiry.TriggerManual, nil, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, ok := p.LastRun(org.ID)
	if !ok {
		t.Fatal("LastRun after a run should report found")
	}
	if got.StartedAt != res.StartedAt {
		t.Errorf("LastRun StartedAt = %v, want %v", got.StartedAt, res.StartedAt)
	}
}

func TestRunAll(t *testing.T) {
	_, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	current, previous := labels()

	stage := func(orgName, businessID string) primitive.ObjectID {
		org := fx.CreateOrganization(ctx, orgName)
		acct := fx.CreateAccount(ctx, org.ID, businessID, "Member "+businessID)
		fx.CreateCategory(ctx, org.ID, businessID, "OT", previous)
		fx.SetGroupYear(ctx, org.ID, "OT", current)
		fx.CreateCertificate(ctx, testutil.CertificateParams{
			OrganizationID: org.ID,
			AccountID:      acct.ID,
			GroupLabel:     "OT",
			MembershipYear: previous,
		})
		return org.ID
	}

	org1 := stage("Sweep Org One", "M-12001")
	org2 := stage("Sweep Org Two", "M-12002")
	fx.CreateInactiveOrganization(ctx, "Dormant Org")

	res, err := p.RunAll(ctx, expiry.TriggerDaily, "scheduled test", 0)
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}

	if res.Organizations != 2 {
		t.Errorf("Organizations = %d, want 2 (inactive org excluded)", res.Organizations)
	}
	if res.TotalExpired != 2 {
		t.Errorf("TotalExpired = %d, want 2", res.TotalExpired)
	}
	for _, orgID := range []primitive.ObjectID{org1, org2} {
		run, ok := res.Runs[orgID.Hex()]
		if !ok {
			t.Errorf("missing run for organization %s", orgID.Hex())
			continue
		}
		if run.TotalExpired != 1 {
			t.Errorf("run for %s TotalExpired = %d, want 1", orgID.Hex(), run.TotalExpired)
		}
	}
	if res.Failed != nil {
		t.Errorf("Failed = %v, want none", res.Failed)
	}
}

func TestRunAll_DeepLookbackCatchesStaleYears(t *testing.T) {
	_, fx, p := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	current := years.Current(now)
	stale := years.Label(now.Year() - 4)

	org := fx.CreateOrganization(ctx, "Deep Lookback Org")
	acct := fx.CreateAccount(ctx, org.ID, "M-13001", "Long Lapsed Holder")
	fx.CreateCategory(ctx, org.ID, "M-13001", "OT", stale)
	fx.SetGroupYear(ctx, org.ID, "OT", current)
	fx.CreateCertificate(ctx, testutil.CertificateParams{
		OrganizationID: org.ID,
		AccountID:      acct.ID,
		GroupLabel:     "OT",
		MembershipYear: stale,
	})

	// The standard three-label window does not reach a four-year-old label.
	res, err := p.Run(ctx, org.ID, expiry.TriggerManual, nil, "standard window")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.TotalProcessed != 0 {
		t.Fatalf("standard window TotalProcessed = %d, want 0", res.TotalProcessed)
	}

	// The annual catch-up sweep passes a deeper one.
	all, err := p.RunAll(ctx, expiry.TriggerAnnual, "annual catch-up", 5)
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	run, ok := all.Runs[org.ID.Hex()]
	if !ok {
		t.Fatal("missing run for organization")
	}
	if run.TotalExpired != 1 {
		t.Errorf("deep window TotalExpired = %d, want 1", run.TotalExpired)
	}
}
