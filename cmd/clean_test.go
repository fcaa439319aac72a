package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layoffscrub/internal/config"
	"layoffscrub/internal/dataset"
	"layoffscrub/internal/store"
	"layoffscrub/pkg/models"
)

const cleanFixture = `company,location,industry,total_laid_off,percentage_laid_off,date,stage,country,funds_raised_millions
Acme,SF Bay Area,Crypto Currency,100,0.25,03/04/2022,Series B,United States.,500
Acme,SF Bay Area,Crypto Currency,100,0.25,03/04/2022,Series B,United States.,500
Acme,SF Bay Area,,50,0.1,03/05/2022,Series C,United States,500
Ghost,Boston,Retail,NULL,NULL,04/01/2022,Series A,Canada,20
Beta,Berlin,Media,30,NULL,05/06/2022,Seed,Germany,NULL
`

// resetFlags clears the package-level flag variables so one test's
// arguments never leak into the next Execute call.
func resetFlags() {
	cleanStorePath, cleanRulesPath, cleanOutPath = "", "", ""
	cleanDatePolicy = ""
	cleanDryRun = false
	analyzeStorePath, analyzeBy = "", ""
	analyzeTop, analyzeLimit = 0, 0
	analyzeRolling = false
	inspectStorePath = ""
	inspectNarrow = false
	inspectLimit = 0
	publishStorePath = ""
	publishYes = false
	rulesPathFlag = ""
}

func runCLI(t *testing.T, args ...string) {
	t.Helper()
	resetFlags()
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
}

func TestCleanEndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvConfigFile, filepath.Join(dir, "config.yaml"))

	input := filepath.Join(dir, "layoffs.csv")
	require.NoError(t, os.WriteFile(input, []byte(cleanFixture), 0o644))
	storePath := filepath.Join(dir, "layoffs.db")
	outPath := filepath.Join(dir, "cleaned.csv")

	runCLI(t, "clean", input, "--store", storePath, "--out", outPath)

	st, err := store.Open(storePath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	counts, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), counts.Raw)
	assert.Equal(t, int64(3), counts.Clean)

	rows, err := st.CleanRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	first := rows[0]
	assert.Equal(t, "Acme", first.Company)
	assert.Equal(t, "Crypto", first.Industry.String)
	assert.Equal(t, "United States", first.Country)
	require.True(t, first.Date.Valid)
	assert.Equal(t, "2022-03-04", first.Date.Time.Format(models.ISODateLayout))
	assert.False(t, first.RawDate.Valid)
	assert.Equal(t, "0.25", first.PercentageLaidOff.Decimal.String())

	// The empty industry cell was backfilled from the company's other
	// rows and canonicalized with them.
	backfilled := rows[1]
	assert.Equal(t, "Acme", backfilled.Company)
	assert.Equal(t, "Crypto", backfilled.Industry.String)

	// The row with neither a count nor a percentage is gone.
	for _, r := range rows {
		assert.NotEqual(t, "Ghost", r.Company)
	}

	out, err := dataset.ReadFile(outPath)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "2022-03-04", out[0].RawDate.String)
	assert.Equal(t, "United States", out[0].Country)
}

func TestCleanIsIdempotentAtTheCommandLevel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvConfigFile, filepath.Join(dir, "config.yaml"))

	input := filepath.Join(dir, "layoffs.csv")
	require.NoError(t, os.WriteFile(input, []byte(cleanFixture), 0o644))
	storePath := filepath.Join(dir, "layoffs.db")
	outPath := filepath.Join(dir, "cleaned.csv")

	runCLI(t, "clean", input, "--store", storePath, "--out", outPath)

	st, err := store.Open(storePath)
	require.NoError(t, err)
	ctx := context.Background()
	firstPass, err := st.CleanRows(ctx)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// Cleaning the cleaned output again must change nothing.
	runCLI(t, "clean", outPath, "--store", storePath)

	st, err = store.Open(storePath)
	require.NoError(t, err)
	defer st.Close()

	counts, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Raw)

	secondPass, err := st.CleanRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, firstPass, secondPass)
}

func TestCleanDryRunPersistsNothing(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvConfigFile, filepath.Join(dir, "config.yaml"))

	input := filepath.Join(dir, "layoffs.csv")
	require.NoError(t, os.WriteFile(input, []byte(cleanFixture), 0o644))
	storePath := filepath.Join(dir, "layoffs.db")

	runCLI(t, "clean", input, "--store", storePath, "--dry-run")

	_, err := os.Stat(storePath)
	assert.True(t, os.IsNotExist(err))
}
