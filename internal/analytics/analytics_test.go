package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layoffscrub/internal/store"
	"layoffscrub/pkg/errors"
	"layoffscrub/pkg/models"
)

// cleanRow builds a cleaned-form record. total < 0 and pct == "" mean
// null; iso == "" means no date.
func cleanRow(company, iso string, total int64, pct string) models.Record {
	r := models.Record{
		Company:  company,
		Location: "SF Bay Area",
		Stage:    "Post-IPO",
		Country:  "United States",
	}
	if iso != "" {
		t, err := time.Parse(models.ISODateLayout, iso)
		if err != nil {
			panic(err)
		}
		r.Date = sql.NullTime{Time: t, Valid: true}
	}
	if total >= 0 {
		r.TotalLaidOff = sql.NullInt64{Int64: total, Valid: true}
	}
	if pct != "" {
		r.PercentageLaidOff = decimal.NullDecimal{Decimal: decimal.RequireFromString(pct), Valid: true}
	}
	return r
}

func seededService(t *testing.T, rows []models.Record) *Service {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "layoffs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.Init(ctx))
	require.NoError(t, st.ReplaceClean(ctx, rows))

	return NewService(st.DB())
}

func fixtureRows() []models.Record {
	return []models.Record{
		cleanRow("Amazon", "2022-11-16", 10000, ""),
		cleanRow("Amazon", "2023-01-04", 8000, ""),
		cleanRow("Meta", "2022-11-09", 11000, "0.13"),
		cleanRow("Google", "2023-01-20", 12000, ""),
		cleanRow("Salesforce", "2023-01-04", 8000, ""),
		cleanRow("Foo", "", 500, ""),
		cleanRow("Bar", "", -1, "0.25"),
	}
}

func TestSummary(t *testing.T) {
	svc := seededService(t, fixtureRows())

	got, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(7), got.Events)
	assert.Equal(t, int64(49500), got.TotalLaidOff)
	require.True(t, got.MaxLaidOff.Valid)
	assert.Equal(t, int64(12000), got.MaxLaidOff.Int64)
	require.True(t, got.MaxPercentage.Valid)
	assert.Equal(t, "0.25", got.MaxPercentage.Decimal.String())
	require.True(t, got.FirstDate.Valid)
	assert.Equal(t, "2022-11-09", got.FirstDate.String)
	require.True(t, got.LastDate.Valid)
	assert.Equal(t, "2023-01-20", got.LastDate.String)
}

func TestSummaryEmptyTable(t *testing.T) {
	svc := seededService(t, nil)

	got, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(0), got.Events)
	assert.Equal(t, int64(0), got.TotalLaidOff)
	assert.False(t, got.MaxLaidOff.Valid)
	assert.False(t, got.MaxPercentage.Valid)
	assert.False(t, got.FirstDate.Valid)
	assert.False(t, got.LastDate.Valid)
}

func TestTotalsByCompany(t *testing.T) {
	svc := seededService(t, fixtureRows())

	got, err := svc.TotalsBy(context.Background(), "company", 0)
	require.NoError(t, err)

	want := []DimensionTotal{
		{Label: "Amazon", LaidOff: 18000, Events: 2},
		{Label: "Google", LaidOff: 12000, Events: 1},
		{Label: "Meta", LaidOff: 11000, Events: 1},
		{Label: "Salesforce", LaidOff: 8000, Events: 1},
		{Label: "Foo", LaidOff: 500, Events: 1},
		{Label: "Bar", LaidOff: 0, Events: 1},
	}
	assert.Equal(t, want, got)
}

func TestTotalsByYearGroupsNullDates(t *testing.T) {
	svc := seededService(t, fixtureRows())

	got, err := svc.TotalsBy(context.Background(), "year", 0)
	require.NoError(t, err)

	want := []DimensionTotal{
		{Label: "2023", LaidOff: 28000, Events: 3},
		{Label: "2022", LaidOff: 21000, Events: 2},
		{Label: "NULL", LaidOff: 500, Events: 2},
	}
	assert.Equal(t, want, got)
}

func TestTotalsByHonorsLimit(t *testing.T) {
	svc := seededService(t, fixtureRows())

	got, err := svc.TotalsBy(context.Background(), "company", 2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "Amazon", got[0].Label)
	assert.Equal(t, "Google", got[1].Label)
}

func TestTotalsByRejectsUnknownDimension(t *testing.T) {
	svc := seededService(t, nil)

	_, err := svc.TotalsBy(context.Background(), "percentage", 0)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "company")
}

func TestTopCompaniesPerYearDenseRanking(t *testing.T) {
	svc := seededService(t, fixtureRows())

	got, err := svc.TopCompaniesPerYear(context.Background(), 2)
	require.NoError(t, err)

	want := []CompanyYear{
		{Company: "Meta", Year: 2022, LaidOff: 11000, Rank: 1},
		{Company: "Amazon", Year: 2022, LaidOff: 10000, Rank: 2},
		{Company: "Google", Year: 2023, LaidOff: 12000, Rank: 1},
		{Company: "Amazon", Year: 2023, LaidOff: 8000, Rank: 2},
		{Company: "Salesforce", Year: 2023, LaidOff: 8000, Rank: 2},
	}
	assert.Equal(t, want, got)
}

func TestRollingMonthly(t *testing.T) {
	svc := seededService(t, fixtureRows())

	got, err := svc.RollingMonthly(context.Background())
	require.NoError(t, err)

	want := []MonthlyTotal{
		{Month: "2022-11", LaidOff: 21000, Rolling: 21000},
		{Month: "2023-01", LaidOff: 28000, Rolling: 49000},
	}
	assert.Equal(t, want, got)
}

func TestDimensions(t *testing.T) {
	assert.Equal(t,
		[]string{"company", "country", "industry", "location", "stage", "year"},
		Dimensions())
}

func TestSummaryQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnError(fmt.Errorf("disk I/O error"))

	_, err = NewService(db).Summary(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSQLExecution, errors.GetErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
