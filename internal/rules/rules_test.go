package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layoffscrub/pkg/errors"
	"layoffscrub/pkg/models"
)

func TestDefaultRulesAreValid(t *testing.T) {
	r := Default()

	assert.NoError(t, r.Validate())
	assert.Equal(t, ".", r.CountryTrimCutset)

	m := r.Mapping()
	assert.Equal(t, "Crypto", m["Crypto Currency"])
	assert.Equal(t, "Crypto", m["CryptoCurrency"])

	// Canonical labels must not be remapped, or canonicalization would
	// not be idempotent.
	_, mapped := m["Crypto"]
	assert.False(t, mapped)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")

	original := &Rules{
		Synonyms: []SynonymGroup{
			{Canonical: "Crypto", Variants: []string{"Crypto Currency", "CryptoCurrency"}},
			{Canonical: "Transportation", Variants: []string{"Transport"}},
		},
		CountryTrimCutset: ".",
	}
	require.NoError(t, original.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestLoadRejectsConflictingVariants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := `synonyms:
  - canonical: Crypto
    variants: ["Crypto Currency"]
  - canonical: Finance
    variants: ["Crypto Currency"]
country_trim_cutset: "."
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRulesInvalid, errors.GetErrorCode(err))
}

func TestValidateRejectsEmptyCanonical(t *testing.T) {
	r := &Rules{Synonyms: []SynonymGroup{{Canonical: "", Variants: []string{"x"}}}}

	err := r.Validate()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRulesInvalid, errors.GetErrorCode(err))
}

func TestLoadFillsMissingCutset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := `synonyms:
  - canonical: Crypto
    variants: ["CryptoCurrency"]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ".", r.CountryTrimCutset)
}

func TestLoadOrDefault(t *testing.T) {
	// Missing file falls back to the built-in rules.
	r, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), r)

	r, err = LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default(), r)

	// An existing but broken file is still an error.
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("synonyms: [not a mapping"), 0644))
	_, err = LoadOrDefault(path)
	assert.Error(t, err)
}

func TestLoadMissingFileError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRulesNotFound, errors.GetErrorCode(err))
}

// createRulesRepository initializes a local git repository carrying a
// committed rules file, standing in for the shared remote.
func createRulesRepository(t *testing.T, doc string) string {
	t.Helper()

	repoDir := t.TempDir()
	repo, err := git.PlainInit(repoDir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(repoDir, RepoFileName), []byte(doc), 0644))

	worktree, err := repo.Worktree()
	require.NoError(t, err)
	_, err = worktree.Add(RepoFileName)
	require.NoError(t, err)

	_, err = worktree.Commit("add rules", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test User",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)

	return repoDir
}

func TestSyncInstallsRulesFromRepository(t *testing.T) {
	doc := `synonyms:
  - canonical: Crypto
    variants: ["Crypto Currency", "CryptoCurrency", "crypto currency"]
country_trim_cutset: "."
`
	repoDir := createRulesRepository(t, doc)

	svc := &SyncService{cacheDir: t.TempDir()}
	installPath := filepath.Join(t.TempDir(), "rules.yaml")

	fetched, err := svc.Sync(context.Background(), models.Rules{
		GitURL: repoDir,
		Path:   installPath,
	})
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Len(t, fetched.Synonyms, 1)
	assert.Contains(t, fetched.Mapping(), "crypto currency")

	// The installed file must load back identically.
	installed, err := Load(installPath)
	require.NoError(t, err)
	assert.Equal(t, fetched, installed)

	// A second sync against an unchanged repository is a no-op.
	_, err = svc.Sync(context.Background(), models.Rules{
		GitURL: repoDir,
		Path:   installPath,
	})
	assert.NoError(t, err)
}

func TestSyncRejectsRepositoryWithBrokenRules(t *testing.T) {
	repoDir := createRulesRepository(t, "synonyms: [broken")

	svc := &SyncService{cacheDir: t.TempDir()}

	_, err := svc.Sync(context.Background(), models.Rules{
		GitURL: repoDir,
		Path:   filepath.Join(t.TempDir(), "rules.yaml"),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRulesSyncFailed, errors.GetErrorCode(err))
}

func TestSyncRequiresConfiguration(t *testing.T) {
	svc := NewSyncService()

	_, err := svc.Sync(context.Background(), models.Rules{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
}

func TestLocalPathSanitizesURL(t *testing.T) {
	svc := &SyncService{cacheDir: "/tmp/cache"}

	assert.Equal(t, "/tmp/cache/cleaning-rules",
		svc.localPath("https://github.com/company/cleaning-rules.git"))
	assert.Equal(t, "/tmp/cache/rules", svc.localPath(""))
}
