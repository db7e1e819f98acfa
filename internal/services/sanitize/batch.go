// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sanitize

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxBatchSize bounds the number of records considered per import.
const MaxBatchSize = 5000

// Code length limits.
const (
	MinCodeLength = 4
	MaxCodeLength = 20
)

// ErrBatchShape is returned when the import payload holds no record array.
var ErrBatchShape = errors.New("import payload must be an array or an object holding one")

var codeRe = regexp.MustCompile(`^[A-Z0-9]{4,20}$`)

// BatchKind selects the record schema for ValidateImportedBatch.
type BatchKind string

const (
	BatchCodes   BatchKind = "codes"
	BatchReviews BatchKind = "reviews"
)

// ImportedCode is a validated access-code record from an import batch.
type ImportedCode struct {
	CreatedAt   *time.Time
	Code        string
	ClientLabel string
}

// ImportedReview is a validated review record from an import batch.
// Code is empty when the record did not carry one.
type ImportedReview struct { //nolint:govet // fieldalignment: readability over optimization
	ReviewInput
	Code      string
	Flagged   bool
	CreatedAt *time.Time
}

// Batch is the outcome of ValidateImportedBatch.
type Batch struct {
	Codes   []ImportedCode
	Reviews []ImportedReview
	Dropped int
}

// NormalizeCode trims and uppercases a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code is 4 to 20 uppercase letters or digits.
func ValidCode(code string) bool {
	return codeRe.MatchString(code)
}

// ValidateImportedBatch decodes raw and keeps only well-formed records,
// sanitizing every kept field. Bad records are dropped and counted; an
// error is returned only when the top-level shape is wrong.
func ValidateImportedBatch(raw []byte, kind BatchKind) (*Batch, error) {
	items, err := batchItems(raw, kind)
	if err != nil {
		return nil, err
	}

	batch := &Batch{}
	if len(items) > MaxBatchSize {
		batch.Dropped += len(items) - MaxBatchSize
		items = items[:MaxBatchSize]
	}

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			batch.Dropped++
			continue
		}

		switch kind {
		case BatchCodes:
			c, ok := importedCode(rec)
			if !ok {
				batch.Dropped++
				continue
			}
			if _, dup := seen[c.Code]; dup {
				batch.Dropped++
				continue
			}
			seen[c.Code] = struct{}{}
			batch.Codes = append(batch.Codes, c)
		case BatchReviews:
			r, ok := importedReview(rec)
			if !ok {
				batch.Dropped++
				continue
			}
			if r.Code != "" {
				if _, dup := seen[r.Code]; dup {
					batch.Dropped++
					continue
				}
				seen[r.Code] = struct{}{}
			}
			batch.Reviews = append(batch.Reviews, r)
		}
	}

	return batch, nil
}

func batchItems(raw []byte, kind BatchKind) ([]any, error) {
	if kind != BatchCodes && kind != BatchReviews {
		return nil, ErrBatchShape
	}

	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, ErrBatchShape
	}

	switch v := top.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if items, ok := v[string(kind)].([]any); ok {
			return items, nil
		}
	}
	return nil, ErrBatchShape
}

func importedCode(rec map[string]any) (ImportedCode, bool) {
	raw, ok := rec["code"].(string)
	if !ok {
		return ImportedCode{}, false
	}
	code := NormalizeCode(raw)
	if !ValidCode(code) {
		return ImportedCode{}, false
	}

	// An imported code cannot arrive already used: there is no review for it.
	if status, ok := rec["status"].(string); ok && !strings.EqualFold(strings.TrimSpace(status), "available") {
		return ImportedCode{}, false
	}

	label := firstString(rec, "clientLabel", "client_label", "client")
	return ImportedCode{
		Code:        code,
		ClientLabel: SanitizeValue(label, MaxLabelLength),
		CreatedAt:   parseTime(firstString(rec, "createdAt", "created_at")),
	}, true
}

func importedReview(rec map[string]any) (ImportedReview, bool) {
	rating, ok := parseRating(rec["rating"])
	if !ok {
		return ImportedReview{}, false
	}

	var code string
	if v, present := rec["code"]; present && v != nil {
		s, isString := v.(string)
		if !isString {
			return ImportedReview{}, false
		}
		code = NormalizeCode(s)
		if code != "" && !ValidCode(code) {
			return ImportedReview{}, false
		}
	}

	in := ReviewInput{
		Name:    SanitizeValue(rec["name"], MaxNameLength),
		Rating:  rating,
		Comment: SanitizeValue(rec["comment"], MaxCommentLength),
		Project: SanitizeValue(rec["project"], MaxProjectLength),
	}
	// Imports are curated by an admin: spam only flags.
	clean, flagged, fields := ValidateReview(in, SpamFlag)
	if fields != nil {
		return ImportedReview{}, false
	}

	return ImportedReview{
		ReviewInput: clean,
		Code:        code,
		Flagged:     flagged,
		CreatedAt:   parseTime(firstString(rec, "createdAt", "created_at")),
	}, true
}

func parseRating(v any) (int, bool) {
	var f float64
	switch r := v.(type) {
	case float64:
		f = r
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(r))
		if err != nil {
			return 0, false
		}
		f = float64(parsed)
	default:
		return 0, false
	}
	if f != math.Trunc(f) || f < MinRating || f > MaxRating {
		return 0, false
	}
	return int(f), true
}

func firstString(rec map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok {
			return v
		}
	}
	return nil
}

func parseTime(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
