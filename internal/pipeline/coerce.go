package pipeline

import (
	"database/sql"
	"strings"
	"time"

	"layoffscrub/pkg/errors"
	"layoffscrub/pkg/models"
)

// coerce parses raw MM/DD/YYYY date text into a calendar date value.
// Null and empty cells become an explicit no-date, never a zero date.
// Unparseable text aborts the run unless the null policy was chosen,
// in which case the cell is blanked and counted. There is no silent
// path through this stage.
//
// Cleaned exports carry ISO dates, so that form is accepted too; it is
// what keeps a re-run over the pipeline's own output a no-op.
func (p *Pipeline) coerce(rows []models.Record, report *Report) error {
	for i := range rows {
		r := &rows[i]

		// Already coerced on a previous run.
		if r.Date.Valid {
			continue
		}

		if !r.RawDate.Valid || strings.TrimSpace(r.RawDate.String) == "" {
			r.RawDate = sql.NullString{}
			continue
		}

		raw := strings.TrimSpace(r.RawDate.String)
		parsed, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			parsed, err = time.Parse(models.ISODateLayout, raw)
		}
		if err != nil {
			if p.policy == PolicyNull {
				r.RawDate = sql.NullString{}
				report.DatesNulled++
				continue
			}
			return errors.MalformedDateError(r.RawDate.String, i+1, r.Company)
		}

		r.Date = sql.NullTime{Time: parsed, Valid: true}
		report.DatesCoerced++
	}

	return nil
}
