// internal/app/features/certificates/list.go
package certificates

import (
	"maps"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	"github.com/coverdesk/coverdesk/internal/app/policy/certpolicy"
	certificatestore "github.com/coverdesk/coverdesk/internal/app/store/certificates"
	"github.com/coverdesk/coverdesk/internal/app/system/paging"
	"github.com/coverdesk/coverdesk/internal/domain/lifecycle"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

// listResponse is one page of certificates plus paging metadata. Cursors
// are opaque; clients hand them back untouched as after/before.
type listResponse struct {
	Certificates []models.Certificate `json:"certificates"`
	Total        int64                `json:"total"`
	HasPrev      bool                 `json:"hasPrev"`
	HasNext      bool                 `json:"hasNext"`
	PrevCursor   string               `json:"prevCursor,omitempty"`
	NextCursor   string               `json:"nextCursor,omitempty"`
	RangeStart   int                  `json:"rangeStart"`
	RangeEnd     int                  `json:"rangeEnd"`
}

// ServeList handles GET /certificates. The list is organization-scoped and
// pages by keyset over the folded insured name. Hidden certificates are
// excluded unless include_hidden is set by a caller with lifecycle
// privilege.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.resolveOrgScope(w, r)
	if !ok {
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	after := strings.TrimSpace(r.URL.Query().Get("after"))
	before := strings.TrimSpace(r.URL.Query().Get("before"))
	start := paging.ParseStart(r)

	if status != "" && !lifecycle.Valid(lifecycle.Status(status)) {
		shared.Error(w, http.StatusBadRequest, "invalid status")
		return
	}

	includeHidden := false
	if v := r.URL.Query().Get("include_hidden"); v == "1" || v == "true" {
		includeHidden = certpolicy.CanSeeHidden(r)
	}

	base := certificatestore.ListFilter{
		Status:        status,
		NamePrefix:    search,
		IncludeHidden: includeHidden,
	}.Query(orgID)

	ctx := r.Context()

	total, err := h.Certs.CountByFilter(ctx, base)
	if err != nil {
		h.Log.Error("certificates: count failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	f := maps.Clone(base)
	find := options.Find()
	const sortField = "insured_name_ci"

	cfg := paging.ConfigureKeyset(before, after)
	cfg.ApplyToFind(find, sortField)
	if ks := cfg.KeysetWindow(sortField); ks != nil {
		// The window is an $or wrapper, so it composes with the base
		// filter's direct field conditions.
		maps.Copy(f, ks)
	}

	rows, err := h.Certs.Find(ctx, f, find)
	if err != nil {
		h.Log.Error("certificates: list failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	if cfg.Direction == paging.Backward {
		paging.Reverse(rows)
	}

	page := paging.TrimPage(&rows, before, after)
	rng := paging.ComputeRange(start, len(rows))
	prevCursor, nextCursor := paging.BuildCursors(rows,
		func(c models.Certificate) string { return c.InsuredNameCI },
		func(c models.Certificate) primitive.ObjectID { return c.ID },
	)

	if rows == nil {
		rows = []models.Certificate{}
	}

	shared.JSON(w, http.StatusOK, listResponse{
		Certificates: rows,
		Total:        total,
		HasPrev:      page.HasPrev,
		HasNext:      page.HasNext,
		PrevCursor:   prevCursor,
		NextCursor:   nextCursor,
		RangeStart:   rng.Start,
		RangeEnd:     rng.End,
	})
}
