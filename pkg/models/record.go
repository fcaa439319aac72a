package models

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Columns is the exact header a layoffs dataset carries, in order. The
// schema is fixed; it is validated at ingestion, never negotiated.
var Columns = []string{
	"company",
	"location",
	"industry",
	"total_laid_off",
	"percentage_laid_off",
	"date",
	"stage",
	"country",
	"funds_raised_millions",
}

// Record is a single reported layoff event. Nullable source fields use
// explicit null carriers so that null and empty string stay distinct
// until normalization deliberately unifies them.
//
// RawDate holds the date cell exactly as ingested (MM/DD/YYYY text).
// Date is populated by type coercion; before coercion it is always
// invalid. The transient duplication rank is never part of this struct:
// it lives and dies inside the deduplication stage.
type Record struct {
	Company             string
	Location            string
	Industry            sql.NullString
	TotalLaidOff        sql.NullInt64
	PercentageLaidOff   decimal.NullDecimal
	RawDate             sql.NullString
	Date                sql.NullTime
	Stage               string
	Country             string
	FundsRaisedMillions sql.NullInt64
}

// DateLayout is the wire format of the raw date column.
const DateLayout = "01/02/2006"

// ISODateLayout is the format cleaned dates are published in.
const ISODateLayout = "2006-01-02"

const (
	keySep     = "\x1f"
	keyNull    = "\x00"
	keyPresent = "\x01"
)

func keyPart(valid bool, v string) string {
	if !valid {
		return keyNull
	}
	return keyPresent + v
}

// Key returns the full-attribute deduplication key: every descriptive
// field, with null distinguished from empty string. Two records are
// duplicates exactly when their keys are equal.
func (r *Record) Key() string {
	parts := []string{
		keyPart(true, r.Company),
		keyPart(true, r.Location),
		keyPart(r.Industry.Valid, r.Industry.String),
		keyPart(r.TotalLaidOff.Valid, int64String(r.TotalLaidOff.Int64)),
		keyPart(r.PercentageLaidOff.Valid, r.PercentageLaidOff.Decimal.String()),
		keyPart(r.RawDate.Valid, r.RawDate.String),
		keyPart(true, r.Stage),
		keyPart(true, r.Country),
		keyPart(r.FundsRaisedMillions.Valid, int64String(r.FundsRaisedMillions.Int64)),
	}
	return strings.Join(parts, keySep)
}

// NarrowKey returns the diagnostic key (company, industry, total_laid_off,
// date). It conflates genuinely distinct events that share those four
// fields, so it is used for inspection reports only and never for removal.
func (r *Record) NarrowKey() string {
	parts := []string{
		keyPart(true, r.Company),
		keyPart(r.Industry.Valid, r.Industry.String),
		keyPart(r.TotalLaidOff.Valid, int64String(r.TotalLaidOff.Int64)),
		keyPart(r.RawDate.Valid, r.RawDate.String),
	}
	return strings.Join(parts, keySep)
}

// HasLayoffData reports whether the record carries at least one usable
// magnitude figure. Rows where both are null are pruned from the cleaned
// output.
func (r *Record) HasLayoffData() bool {
	return r.TotalLaidOff.Valid || r.PercentageLaidOff.Valid
}

// CopyRecords returns an independent copy of rows. Record holds only
// value types, so an element-wise copy is a deep copy.
func CopyRecords(rows []Record) []Record {
	if rows == nil {
		return nil
	}
	out := make([]Record, len(rows))
	copy(out, rows)
	return out
}

func int64String(v int64) string {
	return strconv.FormatInt(v, 10)
}
