// Package pipeline implements the layoff record normalizer: a
// deterministic, single-pass batch transform that deduplicates on the
// full-attribute key, normalizes industry and country fields, coerces
// raw date text into calendar dates, and prunes rows that carry no
// layoff figures. The caller's raw slice is never modified; it remains
// the backup of truth for the run.
package pipeline

import (
	"fmt"
	"time"

	"layoffscrub/internal/logging"
	"layoffscrub/internal/rules"
	"layoffscrub/pkg/errors"
	"layoffscrub/pkg/models"
)

// MalformedDatePolicy decides what happens when a non-null date cell
// does not parse. Aborting is the default; nulling the cell out is an
// explicit opt-in, never a silent fallback.
type MalformedDatePolicy string

const (
	PolicyAbort MalformedDatePolicy = "abort"
	PolicyNull  MalformedDatePolicy = "null"
)

// ParsePolicy validates a policy string from config or flags. The empty
// string selects the default abort policy.
func ParsePolicy(s string) (MalformedDatePolicy, error) {
	switch MalformedDatePolicy(s) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicyNull:
		return PolicyNull, nil
	default:
		return "", errors.ConfigError(
			fmt.Sprintf("unknown malformed-date policy %q (want abort or null)", s),
			"cleaning.on_malformed_date")
	}
}

// Config assembles a Pipeline.
type Config struct {
	Rules           *rules.Rules
	OnMalformedDate MalformedDatePolicy
}

// Pipeline runs the cleaning stages in their fixed order.
type Pipeline struct {
	synonyms map[string]string
	cutset   string
	policy   MalformedDatePolicy
}

// New builds a pipeline from config. A nil rules document selects the
// built-in defaults.
func New(cfg Config) (*Pipeline, error) {
	r := cfg.Rules
	if r == nil {
		r = rules.Default()
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	policy, err := ParsePolicy(string(cfg.OnMalformedDate))
	if err != nil {
		return nil, err
	}

	cutset := r.CountryTrimCutset
	if cutset == "" {
		cutset = rules.Default().CountryTrimCutset
	}

	return &Pipeline{
		synonyms: r.Mapping(),
		cutset:   cutset,
		policy:   policy,
	}, nil
}

// Ambiguity records a company whose rows disagreed on industry while a
// backfill was needed. It is diagnostic only and never fails a run.
type Ambiguity struct {
	Company    string
	Industries []string
	Chosen     string
}

// Report summarizes one cleaning run, stage by stage.
type Report struct {
	RowsIn                  int
	RowsOut                 int
	DuplicatesRemoved       int
	IndustriesEmptied       int
	IndustriesBackfilled    int
	IndustriesCanonicalized int
	CountriesTrimmed        int
	DatesCoerced            int
	DatesNulled             int
	RowsPruned              int
	Ambiguities             []Ambiguity
	Duration                time.Duration
}

// Run executes the full pipeline over raw and returns the cleaned rows
// with a per-stage report. The input slice is copied up front and left
// untouched. Running the pipeline on its own output is a no-op.
func (p *Pipeline) Run(raw []models.Record) ([]models.Record, *Report, error) {
	start := time.Now()
	report := &Report{RowsIn: len(raw)}

	rows := models.CopyRecords(raw)

	rows = p.dedupe(rows, report)
	logging.WithFields(map[string]interface{}{
		"stage":   "dedupe",
		"removed": report.DuplicatesRemoved,
	}).Info("stage complete")

	p.normalize(rows, report)
	logging.WithFields(map[string]interface{}{
		"stage":         "normalize",
		"emptied":       report.IndustriesEmptied,
		"backfilled":    report.IndustriesBackfilled,
		"canonicalized": report.IndustriesCanonicalized,
		"trimmed":       report.CountriesTrimmed,
	}).Info("stage complete")

	if err := p.coerce(rows, report); err != nil {
		return nil, nil, err
	}
	logging.WithFields(map[string]interface{}{
		"stage":  "coerce",
		"parsed": report.DatesCoerced,
		"nulled": report.DatesNulled,
	}).Info("stage complete")

	rows = p.prune(rows, report)
	logging.WithFields(map[string]interface{}{
		"stage":   "prune",
		"removed": report.RowsPruned,
	}).Info("stage complete")

	report.RowsOut = len(rows)
	report.Duration = time.Since(start)

	return rows, report, nil
}
