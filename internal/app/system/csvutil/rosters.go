// internal/app/system/csvutil/rosters.go
package csvutil

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
)

// ErrTooManyRows is returned when a roster exceeds ParseOptions.MaxRows.
var ErrTooManyRows = errors.New("csv has too many rows")

// RosterRow is one normalized roster line: the member's business identifier,
// display name, and optional email. Column order is business_id, full_name,
// email.
type RosterRow struct {
	BusinessID string `json:"business_id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email,omitempty"`
}

// RowError describes one invalid roster line. Line is 1-indexed over
// non-blank data rows (the header does not count), which matches the row
// numbering the account import reports.
type RowError struct {
	Line   int      `json:"line"`
	Reason string   `json:"reason"`
	Raw    []string `json:"-"`
}

// ParseOptions controls roster parsing. A zero MaxRows means unlimited;
// handlers pass the MaxRows constant.
type ParseOptions struct {
	MaxRows int
}

// DefaultParseOptions returns options with no row limit.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{}
}

// ParseResult holds the rows and per-row errors from one parse.
type ParseResult struct {
	Rows   []RosterRow
	Errors []RowError
}

// HasErrors returns true if any row failed validation.
func (r *ParseResult) HasErrors() bool {
	return len(r.Errors) > 0
}

var headerIDWords = map[string]bool{
	"business id": true, "business_id": true,
	"member id": true, "member_id": true,
	"id": true,
}

var headerNameWords = map[string]bool{
	"full name": true, "full_name": true, "name": true,
}

func isHeader(rec []string) bool {
	if len(rec) < 2 {
		return false
	}
	return headerIDWords[strings.ToLower(strings.TrimSpace(rec[0]))] &&
		headerNameWords[strings.ToLower(strings.TrimSpace(rec[1]))]
}

// ParseRosterCSV reads a roster from rd, skips a header row if present, and
// validates each line. It never writes to a DB; it's safe to call before any
// mutations. A row with several problems reports only the first one.
func ParseRosterCSV(rd io.Reader, opts ParseOptions) (*ParseResult, error) {
	reader := csv.NewReader(rd)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	result := &ParseResult{}
	seen := map[string]int{} // business id -> line first seen
	line := 0
	first := true

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}

		if first {
			first = false
			// Strip a UTF-8 BOM so exports from spreadsheet tools parse.
			if err == nil && len(rec) > 0 {
				rec[0] = strings.TrimPrefix(rec[0], "﻿")
			}
			if err == nil && isHeader(rec) {
				continue
			}
		}

		if err != nil {
			line++
			result.Errors = append(result.Errors, RowError{Line: line, Reason: "malformed row"})
			continue
		}

		row := RosterRow{}
		if len(rec) > 0 {
			row.BusinessID = strings.TrimSpace(rec[0])
		}
		if len(rec) > 1 {
			row.FullName = strings.TrimSpace(rec[1])
		}
		if len(rec) > 2 {
			row.Email = strings.TrimSpace(rec[2])
		}
		if row.BusinessID == "" && row.FullName == "" && row.Email == "" {
			continue
		}

		line++
		if opts.MaxRows > 0 && line > opts.MaxRows {
			return nil, ErrTooManyRows
		}

		switch {
		case row.BusinessID == "":
			result.Errors = append(result.Errors, RowError{Line: line, Reason: "missing business id", Raw: rec})
		case row.FullName == "":
			result.Errors = append(result.Errors, RowError{Line: line, Reason: "missing full name", Raw: rec})
		case row.Email != "" && !strings.Contains(row.Email, "@"):
			result.Errors = append(result.Errors, RowError{Line: line, Reason: "invalid email", Raw: rec})
		default:
			if firstLine, dup := seen[row.BusinessID]; dup {
				result.Errors = append(result.Errors, RowError{
					Line:   line,
					Reason: "duplicate of row " + strconv.Itoa(firstLine),
					Raw:    rec,
				})
				continue
			}
			seen[row.BusinessID] = line
			result.Rows = append(result.Rows, row)
		}
	}

	return result, nil
}
