package pipeline

import (
	"database/sql"
	"strings"

	"layoffscrub/internal/logging"
	"layoffscrub/pkg/errors"
	"layoffscrub/pkg/models"
)

// normalize runs the field normalization sub-passes. Empty-to-null must
// precede the backfill so empty strings never act as donor values; the
// remaining passes are order-independent.
func (p *Pipeline) normalize(rows []models.Record, report *Report) {
	p.emptyIndustryToNull(rows, report)
	p.backfillIndustry(rows, report)
	p.canonicalizeIndustry(rows, report)
	p.trimCountry(rows, report)
}

// emptyIndustryToNull unifies the two flavors of missing industry. Null
// and empty string arrive distinct from the source; from here on only
// null means missing.
func (p *Pipeline) emptyIndustryToNull(rows []models.Record, report *Report) {
	for i := range rows {
		if rows[i].Industry.Valid && rows[i].Industry.String == "" {
			rows[i].Industry = sql.NullString{}
			report.IndustriesEmptied++
		}
	}
}

// backfillIndustry fills null industries from sibling rows of the same
// company. When siblings disagree, the first non-null industry in input
// order wins; the ambiguity is logged, never fatal. Companies with no
// non-null industry anywhere stay null.
func (p *Pipeline) backfillIndustry(rows []models.Record, report *Report) {
	first := make(map[string]string)
	distinct := make(map[string][]string)

	for i := range rows {
		if !rows[i].Industry.Valid {
			continue
		}
		company := rows[i].Company
		industry := rows[i].Industry.String
		if _, ok := first[company]; !ok {
			first[company] = industry
		}
		if !containsString(distinct[company], industry) {
			distinct[company] = append(distinct[company], industry)
		}
	}

	ambiguous := make(map[string]bool)
	var ambiguousOrder []string

	for i := range rows {
		if rows[i].Industry.Valid {
			continue
		}
		company := rows[i].Company
		donor, ok := first[company]
		if !ok {
			continue
		}
		rows[i].Industry = sql.NullString{String: donor, Valid: true}
		report.IndustriesBackfilled++

		if len(distinct[company]) > 1 && !ambiguous[company] {
			ambiguous[company] = true
			ambiguousOrder = append(ambiguousOrder, company)
		}
	}

	for _, company := range ambiguousOrder {
		amb := Ambiguity{
			Company:    company,
			Industries: distinct[company],
			Chosen:     first[company],
		}
		report.Ambiguities = append(report.Ambiguities, amb)

		warn := errors.AmbiguousBackfillWarning(amb.Company, amb.Industries, amb.Chosen)
		logging.WithFields(map[string]interface{}{
			"code":       string(warn.Code),
			"company":    amb.Company,
			"industries": amb.Industries,
			"chosen":     amb.Chosen,
		}).Warn(warn.Message)
	}
}

// canonicalizeIndustry collapses known synonym variants onto their
// canonical label. Membership is exact-match and case-sensitive as
// ingested; unlisted spellings pass through untouched.
func (p *Pipeline) canonicalizeIndustry(rows []models.Record, report *Report) {
	for i := range rows {
		if !rows[i].Industry.Valid {
			continue
		}
		canonical, ok := p.synonyms[rows[i].Industry.String]
		if !ok || canonical == rows[i].Industry.String {
			continue
		}
		rows[i].Industry.String = canonical
		report.IndustriesCanonicalized++
	}
}

// trimCountry strips trailing punctuation from the country field. All
// trailing cutset characters go, not just one; leading and interior
// characters are untouched.
func (p *Pipeline) trimCountry(rows []models.Record, report *Report) {
	for i := range rows {
		trimmed := strings.TrimRight(rows[i].Country, p.cutset)
		if trimmed != rows[i].Country {
			rows[i].Country = trimmed
			report.CountriesTrimmed++
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
