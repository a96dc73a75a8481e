// internal/app/features/auditlog/list.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	"github.com/coverdesk/coverdesk/internal/app/store/audit"
	"github.com/coverdesk/coverdesk/internal/app/system/normalize"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// ServeList handles GET /audit. Events are filterable by category, event
// type, organization, user, certificate, and date range, newest first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := audit.QueryFilter{
		Category:  strings.TrimSpace(q.Get("category")),
		EventType: strings.TrimSpace(q.Get("event_type")),
	}
	if filter.Category != "" && !validCategory(filter.Category) {
		shared.Error(w, http.StatusBadRequest, "invalid category")
		return
	}

	if raw := normalize.OrgID(q.Get("organization_id")); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			shared.Error(w, http.StatusBadRequest, "invalid organization_id")
			return
		}
		filter.OrganizationID = &id
	}
	if raw := q.Get("user_id"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			shared.Error(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		filter.UserID = &id
	}
	if raw := q.Get("certificate_id"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			shared.Error(w, http.StatusBadRequest, "invalid certificate_id")
			return
		}
		filter.CertificateID = &id
	}

	if raw := q.Get("start_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			shared.Error(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
			return
		}
		filter.StartTime = &t
	}
	if raw := q.Get("end_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			shared.Error(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
			return
		}
		// Inclusive: the whole named day.
		endOfDay := t.Add(24*time.Hour - time.Second)
		filter.EndTime = &endOfDay
	}

	limit, ok := queryInt(w, r, "limit", defaultListLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	filter.Limit = limit
	filter.Offset = offset

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.Log.Error("audit query failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		h.Log.Error("audit count failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	shared.JSON(w, http.StatusOK, listResponse{
		Events: h.resolveItems(ctx, events),
		Total:  total,
	})
}

// ServeCertificateHistory handles GET /audit/certificates/{certificateID}:
// every recorded event for one certificate, newest first. An unknown id
// returns an empty history rather than 404; absence of events is itself
// an answer here.
func (h *Handler) ServeCertificateHistory(w http.ResponseWriter, r *http.Request) {
	certID, err := shared.ObjectIDParam(r, "certificateID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, "invalid certificate id")
		return
	}

	limit, ok := queryInt(w, r, "limit", defaultListLimit)
	if !ok {
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "certificate history")
	defer cancel()

	events, err := h.Events.GetByCertificate(ctx, certID, limit)
	if err != nil {
		h.Log.Error("certificate history query failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	shared.JSON(w, http.StatusOK, historyResponse{Events: h.resolveItems(ctx, events)})
}

// ServeUserHistory handles GET /audit/users/{userID}: events where the
// named user is the affected party.
func (h *Handler) ServeUserHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := shared.ObjectIDParam(r, "userID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	limit, ok := queryInt(w, r, "limit", defaultListLimit)
	if !ok {
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "user history")
	defer cancel()

	events, err := h.Events.GetByUser(ctx, userID, limit)
	if err != nil {
		h.Log.Error("user history query failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	shared.JSON(w, http.StatusOK, historyResponse{Events: h.resolveItems(ctx, events)})
}

// ServeFailedLogins handles GET /audit/failed-logins: failed login
// attempts within the trailing window, for security review.
func (h *Handler) ServeFailedLogins(w http.ResponseWriter, r *http.Request) {
	hours, ok := queryInt(w, r, "hours", 24)
	if !ok {
		return
	}
	if hours == 0 || hours > 720 {
		shared.Error(w, http.StatusBadRequest, "hours must be between 1 and 720")
		return
	}

	limit, ok := queryInt(w, r, "limit", defaultListLimit)
	if !ok {
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "failed logins")
	defer cancel()

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	events, err := h.Events.GetFailedLogins(ctx, since, limit)
	if err != nil {
		h.Log.Error("failed login query failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	shared.JSON(w, http.StatusOK, historyResponse{Events: h.resolveItems(ctx, events)})
}

// resolveItems maps store events to response items, resolving actor,
// target, and organization names in two batch lookups. A name that cannot
// be resolved stays empty; the hex id field still attributes the row.
func (h *Handler) resolveItems(ctx context.Context, events []audit.Event) []eventItem {
	userIDs := make(map[primitive.ObjectID]struct{})
	orgIDs := make(map[primitive.ObjectID]struct{})
	for _, e := range events {
		if e.ActorID != nil {
			userIDs[*e.ActorID] = struct{}{}
		}
		if e.UserID != nil {
			userIDs[*e.UserID] = struct{}{}
		}
		if e.OrganizationID != nil {
			orgIDs[*e.OrganizationID] = struct{}{}
		}
	}

	userNames := make(map[primitive.ObjectID]string)
	if len(userIDs) > 0 {
		ids := make([]primitive.ObjectID, 0, len(userIDs))
		for id := range userIDs {
			ids = append(ids, id)
		}
		users, err := h.Users.GetByIDs(ctx, ids)
		if err != nil {
			h.Log.Warn("user name resolution failed for audit events", zap.Error(err))
		}
		for _, u := range users {
			userNames[u.ID] = u.FullName
		}
	}

	orgNames := make(map[primitive.ObjectID]string)
	if len(orgIDs) > 0 {
		ids := make([]primitive.ObjectID, 0, len(orgIDs))
		for id := range orgIDs {
			ids = append(ids, id)
		}
		orgs, err := h.Orgs.GetByIDs(ctx, ids)
		if err != nil {
			h.Log.Warn("organization name resolution failed for audit events", zap.Error(err))
		}
		for _, o := range orgs {
			orgNames[o.ID] = o.Name
		}
	}

	items := make([]eventItem, 0, len(events))
	for _, e := range events {
		item := eventItem{
			ID:            e.ID.Hex(),
			Timestamp:     e.Timestamp,
			Category:      e.Category,
			EventType:     e.EventType,
			IP:            e.IP,
			Success:       e.Success,
			FailureReason: e.FailureReason,
			Details:       e.Details,
		}
		if e.ActorID != nil {
			item.ActorID = e.ActorID.Hex()
			item.ActorName = userNames[*e.ActorID]
		}
		if e.UserID != nil {
			item.UserID = e.UserID.Hex()
			item.UserName = userNames[*e.UserID]
		}
		if e.OrganizationID != nil {
			item.OrganizationID = e.OrganizationID.Hex()
			item.Organization = orgNames[*e.OrganizationID]
		}
		if e.CertificateID != nil {
			item.CertificateID = e.CertificateID.Hex()
		}
		items = append(items, item)
	}
	return items
}

func queryInt(w http.ResponseWriter, r *http.Request, name string, def int64) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		shared.Error(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}
