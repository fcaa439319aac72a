package pipeline

import (
	"database/sql"
	"sort"
	"strconv"

	"layoffscrub/pkg/models"
)

// dedupe keeps exactly one row per distinct full-attribute key: ranks
// are assigned per key in stable input order and only rank 1 survives.
// The rank is bookkeeping local to this function; it is never attached
// to a record and never published.
func (p *Pipeline) dedupe(rows []models.Record, report *Report) []models.Record {
	rank := make(map[string]int, len(rows))

	out := rows[:0]
	for i := range rows {
		key := rows[i].Key()
		rank[key]++
		if rank[key] == 1 {
			out = append(out, rows[i])
		}
	}

	report.DuplicatesRemoved = len(rows) - len(out)
	return out
}

// DuplicateGroup describes a set of rows sharing a key, rendered for
// inspection output.
type DuplicateGroup struct {
	Company      string
	Industry     string
	TotalLaidOff string
	Date         string
	Count        int
}

// FullDuplicates reports groups of rows identical on the full-attribute
// key. These are the rows a cleaning run would actually remove.
func FullDuplicates(rows []models.Record) []DuplicateGroup {
	return duplicateGroups(rows, func(r *models.Record) string { return r.Key() })
}

// NarrowDuplicates reports groups sharing only company, industry,
// total_laid_off and date. The narrow key conflates genuinely distinct
// events, so these groups are for diagnosis only; deletion always uses
// the full key.
func NarrowDuplicates(rows []models.Record) []DuplicateGroup {
	return duplicateGroups(rows, func(r *models.Record) string { return r.NarrowKey() })
}

func duplicateGroups(rows []models.Record, keyFn func(*models.Record) string) []DuplicateGroup {
	counts := make(map[string]int)
	firsts := make(map[string]*models.Record)
	var order []string

	for i := range rows {
		key := keyFn(&rows[i])
		counts[key]++
		if counts[key] == 1 {
			firsts[key] = &rows[i]
			order = append(order, key)
		}
	}

	var groups []DuplicateGroup
	for _, key := range order {
		if counts[key] < 2 {
			continue
		}
		r := firsts[key]
		groups = append(groups, DuplicateGroup{
			Company:      r.Company,
			Industry:     displayString(r.Industry.Valid, r.Industry.String),
			TotalLaidOff: displayInt(r.TotalLaidOff),
			Date:         displayString(r.RawDate.Valid, r.RawDate.String),
			Count:        counts[key],
		})
	}

	// Largest groups first; ties resolved by company for stable output.
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Company < groups[j].Company
	})

	return groups
}

func displayString(valid bool, s string) string {
	if !valid {
		return "NULL"
	}
	return s
}

func displayInt(v sql.NullInt64) string {
	if !v.Valid {
		return "NULL"
	}
	return strconv.FormatInt(v.Int64, 10)
}
