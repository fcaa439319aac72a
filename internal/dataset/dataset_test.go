package dataset

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layoffscrub/pkg/errors"
	"layoffscrub/pkg/models"
)

const sampleHeader = "company,location,industry,total_laid_off,percentage_laid_off,date,stage,country,funds_raised_millions"

func sqlInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}

func sqlTime(v time.Time) sql.NullTime {
	return sql.NullTime{Time: v, Valid: true}
}

func mustDecimal(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func TestReadParsesNullsAndValues(t *testing.T) {
	input := sampleHeader + "\n" +
		`Oda,Oslo,Retail,100,0.1,03/04/2022,Post-IPO,United States.,NULL` + "\n" +
		`Bitmex,Singapore,,NULL,NULL,12/01/2022,Series A,Singapore,50` + "\n" +
		`Ghost,Remote,NULL,25,,NULL,Seed,Canada,12`

	rows, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	oda := rows[0]
	assert.Equal(t, "Oda", oda.Company)
	assert.Equal(t, "Oslo", oda.Location)
	require.True(t, oda.Industry.Valid)
	assert.Equal(t, "Retail", oda.Industry.String)
	require.True(t, oda.TotalLaidOff.Valid)
	assert.EqualValues(t, 100, oda.TotalLaidOff.Int64)
	require.True(t, oda.PercentageLaidOff.Valid)
	assert.Equal(t, "0.1", oda.PercentageLaidOff.Decimal.String())
	require.True(t, oda.RawDate.Valid)
	assert.Equal(t, "03/04/2022", oda.RawDate.String)
	assert.Equal(t, "United States.", oda.Country)
	assert.False(t, oda.FundsRaisedMillions.Valid)
	assert.False(t, oda.Date.Valid, "coercion has not run yet")

	// Empty string and the NULL literal must stay distinguishable.
	bitmex := rows[1]
	require.True(t, bitmex.Industry.Valid)
	assert.Equal(t, "", bitmex.Industry.String)
	assert.False(t, bitmex.TotalLaidOff.Valid)

	ghost := rows[2]
	assert.False(t, ghost.Industry.Valid)
	assert.False(t, ghost.RawDate.Valid)
	assert.False(t, ghost.PercentageLaidOff.Valid)
}

func TestReadHeaderValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr errors.ErrorCode
	}{
		{
			name:    "empty file",
			input:   "",
			wantErr: errors.ErrCodeEmptyDataset,
		},
		{
			name:    "missing column",
			input:   "company,location,industry\n",
			wantErr: errors.ErrCodeSchemaMismatch,
		},
		{
			name:    "wrong column name",
			input:   strings.Replace(sampleHeader, "industry", "sector", 1) + "\n",
			wantErr: errors.ErrCodeSchemaMismatch,
		},
		{
			name:    "reordered columns",
			input:   "location,company,industry,total_laid_off,percentage_laid_off,date,stage,country,funds_raised_millions\n",
			wantErr: errors.ErrCodeSchemaMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, errors.GetErrorCode(err))
		})
	}
}

func TestReadTolerantHeaderForms(t *testing.T) {
	// BOM, stray spaces and capitalization come from spreadsheet exports
	// and are not schema differences.
	input := "\uFEFFCompany, Location ,industry,total_laid_off,percentage_laid_off,date,stage,country,funds_raised_millions\n"

	rows, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadRejectsNonNumericCells(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{"total_laid_off", `Acme,NYC,Retail,many,0.1,03/04/2022,Seed,USA,NULL`},
		{"percentage_laid_off", `Acme,NYC,Retail,10,ten percent,03/04/2022,Seed,USA,NULL`},
		{"funds_raised_millions", `Acme,NYC,Retail,10,0.1,03/04/2022,Seed,USA,lots`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(sampleHeader + "\n" + tt.row))
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeRowMalformed, errors.GetErrorCode(err))

			appErr, ok := err.(*errors.AppError)
			require.True(t, ok)
			assert.Equal(t, errors.SeverityCritical, appErr.Severity)
			assert.Equal(t, tt.name, appErr.Context["column"])
		})
	}
}

func TestReadRejectsRaggedRows(t *testing.T) {
	input := sampleHeader + "\n" + `Acme,NYC,Retail,10,0.1,03/04/2022,Seed`

	_, err := Read(strings.NewReader(input))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIngestFailed, errors.GetErrorCode(err))
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIngestFailed, errors.GetErrorCode(err))
}

func TestWriteReadRoundTrip(t *testing.T) {
	cleaned := []models.Record{
		{
			Company:           "Oda",
			Location:          "Oslo",
			Industry:          nullableString("Retail"),
			TotalLaidOff:      sqlInt(100),
			PercentageLaidOff: mustDecimal("0.1"),
			Date:              sqlTime(time.Date(2022, 3, 4, 0, 0, 0, 0, time.UTC)),
			Stage:             "Post-IPO",
			Country:           "United States",
		},
		{
			Company:             "Ghost",
			Location:            "Remote",
			TotalLaidOff:        sqlInt(25),
			Stage:               "Seed",
			Country:             "Canada",
			FundsRaisedMillions: sqlInt(12),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cleaned))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, sampleHeader+"\n"))
	assert.Contains(t, out, "2022-03-04")
	assert.Contains(t, out, "NULL")

	rows, err := Read(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Dates come back as raw text; everything else is preserved exactly.
	assert.Equal(t, "2022-03-04", rows[0].RawDate.String)
	assert.Equal(t, "Oda", rows[0].Company)
	assert.False(t, rows[1].Industry.Valid)
	assert.False(t, rows[1].RawDate.Valid)
	assert.EqualValues(t, 12, rows[1].FundsRaisedMillions.Int64)
}

func TestWriteFileCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleaned.csv")

	err := WriteFile(path, nil)
	require.NoError(t, err)

	rows, err := ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
