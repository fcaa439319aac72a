// Package rules holds the editable cleaning rules: the industry synonym
// table and the country punctuation trim set. Rules are data, not code,
// so adding a synonym never touches pipeline logic.
package rules

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"layoffscrub/internal/common"
	"layoffscrub/pkg/errors"
)

// SynonymGroup maps textual variants of an industry label onto one
// canonical form. Matching is exact and case-sensitive as ingested:
// variants not listed pass through untouched.
type SynonymGroup struct {
	Canonical string   `yaml:"canonical"`
	Variants  []string `yaml:"variants"`
}

// Rules is the rules document as stored on disk.
type Rules struct {
	Synonyms          []SynonymGroup `yaml:"synonyms"`
	CountryTrimCutset string         `yaml:"country_trim_cutset"`
}

// Default returns the built-in rules shipped with the tool. They cover
// the variants observed in the reference dataset; teams extend them via
// the rules file or a shared rules repository.
func Default() *Rules {
	return &Rules{
		Synonyms: []SynonymGroup{
			{
				Canonical: "Crypto",
				Variants:  []string{"Crypto Currency", "CryptoCurrency"},
			},
		},
		CountryTrimCutset: ".",
	}
}

// Load reads and validates a rules file.
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeRulesNotFound,
				fmt.Sprintf("rules file not found: %s", path)).
				WithContext("path", path).
				WithSuggestions(
					"Run 'layoffscrub rules sync' to fetch the shared rules",
					"Omit --rules to use the built-in defaults",
				)
		}
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "failed to read rules file")
	}

	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, errors.RulesError("failed to parse rules file", err).
			WithContext("path", path)
	}

	if r.CountryTrimCutset == "" {
		r.CountryTrimCutset = Default().CountryTrimCutset
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return &r, nil
}

// LoadOrDefault loads the rules file if it exists and falls back to the
// built-in defaults when it does not. Any other failure is returned.
func LoadOrDefault(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Save writes the rules document to path, creating parent directories
// as needed.
func (r *Rules) Save(path string) error {
	if err := r.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal rules")
	}

	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionNormal); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to create rules directory")
	}

	if err := os.WriteFile(path, data, common.FilePermissionNormal); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to write rules file")
	}

	return nil
}

// Validate checks the rules document for contradictions. A variant may
// appear in exactly one group, otherwise canonicalization would depend
// on map iteration order.
func (r *Rules) Validate() error {
	seen := make(map[string]string)

	for i, group := range r.Synonyms {
		if group.Canonical == "" {
			return errors.New(errors.ErrCodeRulesInvalid,
				fmt.Sprintf("synonym group %d has an empty canonical label", i+1))
		}
		for _, variant := range group.Variants {
			if variant == "" {
				return errors.New(errors.ErrCodeRulesInvalid,
					fmt.Sprintf("synonym group %q contains an empty variant", group.Canonical))
			}
			if prev, dup := seen[variant]; dup {
				return errors.New(errors.ErrCodeRulesInvalid,
					fmt.Sprintf("variant %q maps to both %q and %q", variant, prev, group.Canonical)).
					WithSuggestions("Remove the variant from one of the groups")
			}
			seen[variant] = group.Canonical
		}
	}

	return nil
}

// Mapping flattens the synonym groups into a variant-to-canonical lookup
// table for the normalization stage.
func (r *Rules) Mapping() map[string]string {
	m := make(map[string]string)
	for _, group := range r.Synonyms {
		for _, variant := range group.Variants {
			m[variant] = group.Canonical
		}
	}
	return m
}
