package pipeline

import (
	"layoffscrub/pkg/models"
)

// prune removes rows where both total_laid_off and percentage_laid_off
// are null. Such rows carry no magnitude signal for any downstream
// aggregation; rows with either figure present are kept.
func (p *Pipeline) prune(rows []models.Record, report *Report) []models.Record {
	out := rows[:0]
	for i := range rows {
		if rows[i].HasLayoffData() {
			out = append(out, rows[i])
		}
	}

	report.RowsPruned = len(rows) - len(out)
	return out
}
