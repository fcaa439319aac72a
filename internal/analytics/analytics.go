// Package analytics runs the descriptive queries over the cleaned
// table: headline totals, per-dimension sums, a top-companies league
// table per year and rolling monthly totals. Everything here is
// read-only; the cleaning pipeline is the only writer.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"layoffscrub/internal/store"
	"layoffscrub/pkg/errors"
)

// Service issues the aggregation queries against an open store.
type Service struct {
	db *sql.DB
}

// NewService wraps the store's connection pool.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Summary holds the headline figures of the cleaned dataset.
type Summary struct {
	Events        int64
	TotalLaidOff  int64
	MaxLaidOff    sql.NullInt64
	MaxPercentage decimal.NullDecimal
	FirstDate     sql.NullString
	LastDate      sql.NullString
}

// Summary computes the headline figures. The maximum percentage is
// selected by numeric order but returned as the stored decimal text, so
// it stays exact.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var out Summary

	query := "SELECT COUNT(*), COALESCE(SUM(total_laid_off), 0), MAX(total_laid_off), MIN(date), MAX(date) FROM " + store.CleanTable
	err := s.db.QueryRowContext(ctx, query).Scan(
		&out.Events,
		&out.TotalLaidOff,
		&out.MaxLaidOff,
		&out.FirstDate,
		&out.LastDate,
	)
	if err != nil {
		return nil, errors.SQLError("Failed to compute summary", query, err)
	}

	pctQuery := "SELECT percentage_laid_off FROM " + store.CleanTable +
		" WHERE percentage_laid_off IS NOT NULL ORDER BY CAST(percentage_laid_off AS REAL) DESC LIMIT 1"
	err = s.db.QueryRowContext(ctx, pctQuery).Scan(&out.MaxPercentage)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.SQLError("Failed to find the maximum percentage", pctQuery, err)
	}

	return &out, nil
}

// dimensionExpr whitelists the group-by expressions; dimension names
// are spliced into SQL, so nothing outside this map is accepted.
var dimensionExpr = map[string]string{
	"company":  "company",
	"location": "location",
	"industry": "industry",
	"country":  "country",
	"stage":    "stage",
	"year":     "strftime('%Y', date)",
}

// Dimensions lists the dimensions TotalsBy accepts, sorted.
func Dimensions() []string {
	names := make([]string, 0, len(dimensionExpr))
	for name := range dimensionExpr {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DimensionTotal is one group of a per-dimension sum. Label is "NULL"
// for the group of rows where the dimension itself is null.
type DimensionTotal struct {
	Label   string
	LaidOff int64
	Events  int64
}

// TotalsBy sums total_laid_off per value of the given dimension, most
// affected first. limit <= 0 returns every group.
func (s *Service) TotalsBy(ctx context.Context, dimension string, limit int) ([]DimensionTotal, error) {
	expr, ok := dimensionExpr[dimension]
	if !ok {
		return nil, errors.ValidationError("dimension", dimension,
			fmt.Sprintf("must be one of: %s", strings.Join(Dimensions(), ", ")))
	}

	query := fmt.Sprintf(
		"SELECT %s AS label, COALESCE(SUM(total_laid_off), 0) AS laid_off, COUNT(*) AS events FROM %s GROUP BY label ORDER BY laid_off DESC, label",
		expr, store.CleanTable)
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.SQLError(fmt.Sprintf("Failed to total by %s", dimension), query, err)
	}
	defer rows.Close()

	var out []DimensionTotal
	for rows.Next() {
		var label sql.NullString
		var dt DimensionTotal
		if err := rows.Scan(&label, &dt.LaidOff, &dt.Events); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to scan a dimension total")
		}
		dt.Label = "NULL"
		if label.Valid {
			dt.Label = label.String
		}
		out = append(out, dt)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to iterate dimension totals")
	}
	return out, nil
}

// CompanyYear is one ranked row of the per-year league table.
type CompanyYear struct {
	Company string
	Year    int
	LaidOff int64
	Rank    int
}

// TopCompaniesPerYear ranks companies by laid-off headcount within each
// year and keeps ranks 1..topN. Ties share a rank (dense ranking), so a
// year can return more than topN rows.
func (s *Service) TopCompaniesPerYear(ctx context.Context, topN int) ([]CompanyYear, error) {
	if topN <= 0 {
		topN = 5
	}

	query := `WITH company_year AS (
  SELECT company, CAST(strftime('%Y', date) AS INTEGER) AS year, SUM(total_laid_off) AS laid_off
  FROM ` + store.CleanTable + `
  WHERE date IS NOT NULL AND total_laid_off IS NOT NULL
  GROUP BY company, year
), ranked AS (
  SELECT company, year, laid_off,
         DENSE_RANK() OVER (PARTITION BY year ORDER BY laid_off DESC) AS ranking
  FROM company_year
)
SELECT company, year, laid_off, ranking FROM ranked
WHERE ranking <= ?
ORDER BY year, ranking, company`

	rows, err := s.db.QueryContext(ctx, query, topN)
	if err != nil {
		return nil, errors.SQLError("Failed to rank companies per year", query, err)
	}
	defer rows.Close()

	var out []CompanyYear
	for rows.Next() {
		var cy CompanyYear
		if err := rows.Scan(&cy.Company, &cy.Year, &cy.LaidOff, &cy.Rank); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to scan a ranked company")
		}
		out = append(out, cy)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to iterate ranked companies")
	}
	return out, nil
}

// MonthlyTotal is one month of the rolling series.
type MonthlyTotal struct {
	Month   string
	LaidOff int64
	Rolling int64
}

// RollingMonthly sums laid-off headcount per calendar month and carries
// a running total across the whole date range.
func (s *Service) RollingMonthly(ctx context.Context) ([]MonthlyTotal, error) {
	query := `WITH monthly AS (
  SELECT substr(date, 1, 7) AS month, SUM(total_laid_off) AS laid_off
  FROM ` + store.CleanTable + `
  WHERE date IS NOT NULL AND total_laid_off IS NOT NULL
  GROUP BY month
)
SELECT month, laid_off, SUM(laid_off) OVER (ORDER BY month) AS rolling
FROM monthly
ORDER BY month`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.SQLError("Failed to compute rolling monthly totals", query, err)
	}
	defer rows.Close()

	var out []MonthlyTotal
	for rows.Next() {
		var mt MonthlyTotal
		if err := rows.Scan(&mt.Month, &mt.LaidOff, &mt.Rolling); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to scan a monthly total")
		}
		out = append(out, mt)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to iterate monthly totals")
	}
	return out, nil
}
