// internal/app/features/accounts/import.go
package accounts

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	accountstore "github.com/coverdesk/coverdesk/internal/app/store/accounts"
	"github.com/coverdesk/coverdesk/internal/app/system/authz"
	"github.com/coverdesk/coverdesk/internal/app/system/csvutil"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
)

// importResponse summarizes one applied roster import. Row numbers in item
// errors are 1-indexed over the CSV's data rows.
type importResponse struct {
	Created    int               `json:"created"`
	Updated    int               `json:"updated"`
	Failed     int               `json:"failed"`
	ItemErrors []importItemError `json:"itemErrors,omitempty"`
}

type importItemError struct {
	BusinessID string `json:"businessId,omitempty"`
	Row        int    `json:"row"`
	Reason     string `json:"reason"`
}

// importRejection is the 400 body for a roster that failed validation.
// Nothing is imported from a roster with bad rows; the caller fixes the
// file and uploads again.
type importRejection struct {
	Error     string             `json:"error"`
	RowErrors []csvutil.RowError `json:"rowErrors"`
}

// HandleImportCSV handles POST /accounts/import.csv. The roster arrives as
// the multipart field "csv" with columns business_id, full_name, email; a
// header row is optional. Existing accounts are matched by business
// identifier and updated, everything else is created.
func (h *Handler) HandleImportCSV(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.resolveOrgScope(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, csvutil.MaxUploadSize)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "roster import")
	defer cancel()

	// A mistyped organization id would swallow the whole roster, so the
	// organization must exist before any row lands.
	if _, err := h.Orgs.GetByID(ctx, orgID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			shared.Error(w, http.StatusNotFound, "organization not found")
			return
		}
		h.Log.Error("accounts: organization lookup failed", zap.Error(err), zap.String("organization_id", orgID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	file, _, err := r.FormFile("csv")
	if err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			shared.Error(w, http.StatusBadRequest,
				"csv file exceeds "+strconv.Itoa(csvutil.MaxUploadSize>>20)+" MB")
			return
		}
		shared.Error(w, http.StatusBadRequest, `csv file is required as the multipart field "csv"`)
		return
	}
	defer file.Close()

	parsed, err := csvutil.ParseRosterCSV(file, csvutil.ParseOptions{MaxRows: csvutil.MaxRows})
	if err != nil {
		if errors.Is(err, csvutil.ErrTooManyRows) {
			shared.Error(w, http.StatusBadRequest,
				"csv exceeds "+strconv.Itoa(csvutil.MaxRows)+" rows")
			return
		}
		shared.Error(w, http.StatusBadRequest, "csv could not be parsed")
		return
	}

	if parsed.HasErrors() {
		shared.JSON(w, http.StatusBadRequest, importRejection{
			Error:     "csv has invalid rows",
			RowErrors: parsed.Errors,
		})
		return
	}
	if len(parsed.Rows) == 0 {
		shared.Error(w, http.StatusBadRequest, "csv contains no roster rows")
		return
	}

	entries := make([]accountstore.ImportEntry, len(parsed.Rows))
	for i, row := range parsed.Rows {
		entries[i] = accountstore.ImportEntry{
			FullName:   row.FullName,
			BusinessID: row.BusinessID,
			Email:      row.Email,
		}
	}

	res, err := h.Accounts.UpsertAccountsInOrgBatch(ctx, orgID, entries)
	if err != nil {
		h.Log.Error("accounts: roster import failed", zap.Error(err), zap.String("organization_id", orgID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	role, _, actorID, _ := authz.UserCtx(r)
	h.Audit.RosterImported(ctx, r, actorID, orgID, role, res.Created, res.Updated, len(res.ItemErrors))
	h.Metrics.RecordRosterImport(res.Created, res.Updated, len(res.ItemErrors))
	h.Log.Info("roster imported",
		zap.String("organization_id", orgID.Hex()),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("failed", len(res.ItemErrors)))

	out := importResponse{
		Created: res.Created,
		Updated: res.Updated,
		Failed:  len(res.ItemErrors),
	}
	for _, ie := range res.ItemErrors {
		out.ItemErrors = append(out.ItemErrors, importItemError{
			BusinessID: ie.BusinessID,
			Row:        ie.Row,
			Reason:     ie.Reason,
		})
	}
	shared.JSON(w, http.StatusOK, out)
}
