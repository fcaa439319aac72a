package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"layoffscrub/internal/common"
	"layoffscrub/internal/logging"
	"layoffscrub/pkg/errors"
	"layoffscrub/pkg/models"
)

// RepoFileName is the file looked up inside a shared rules repository.
const RepoFileName = "rules.yaml"

// SyncService fetches the shared rules repository and installs its rules
// file locally, so every operator cleans with the same synonym table.
type SyncService struct {
	cacheDir string
}

// NewSyncService creates a sync service using the default cache directory.
func NewSyncService() *SyncService {
	return &SyncService{cacheDir: CacheDirectory()}
}

// CacheDirectory returns the directory where rules repositories are cloned.
func CacheDirectory() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".layoffscrub", "repos")
}

// Sync clones or updates the configured rules repository, validates the
// rules file it carries, and installs it at cfg.Path. The loaded rules
// are returned so callers can render a summary.
func (s *SyncService) Sync(ctx context.Context, cfg models.Rules) (*Rules, error) {
	if cfg.GitURL == "" {
		return nil, errors.ConfigError("no rules repository configured", "rules.git_url")
	}
	if cfg.Path == "" {
		return nil, errors.ConfigError("no local rules path configured", "rules.path")
	}

	localPath := s.localPath(cfg.GitURL)

	err := errors.RetryWithBackoff(ctx, func(ctx context.Context) error {
		if err := cloneOrFetch(cfg.GitURL, localPath); err != nil {
			if strings.Contains(err.Error(), "connection") ||
				strings.Contains(err.Error(), "timeout") ||
				strings.Contains(err.Error(), "unreachable") {
				return errors.New(errors.ErrCodeNetworkUnavailable,
					"Network error while syncing rules repository").
					WithContext("url", cfg.GitURL).
					AsRecoverable()
			}

			if strings.Contains(err.Error(), "authentication") ||
				strings.Contains(err.Error(), "unauthorized") {
				return errors.New(errors.ErrCodeRulesSyncFailed,
					"Authentication failed for rules repository").
					WithContext("url", cfg.GitURL).
					WithSuggestions(
						"Check your Git credentials",
						"Ensure you have access to the repository",
						"Try cloning the repository manually to verify access",
					)
			}

			return errors.Wrap(err, errors.ErrCodeRulesSyncFailed,
				"Failed to sync rules repository")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cfg.Branch != "" && cfg.Branch != "main" && cfg.Branch != "master" {
		if err := checkoutBranch(localPath, cfg.Branch); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeRulesSyncFailed,
				fmt.Sprintf("Failed to checkout branch %s", cfg.Branch)).
				WithContext("branch", cfg.Branch).
				WithSuggestions(
					fmt.Sprintf("Verify branch '%s' exists", cfg.Branch),
					"Check for typos in branch name",
				)
		}
	}

	// The repository must actually carry a valid rules file before we
	// overwrite the local one.
	fetched, err := Load(filepath.Join(localPath, RepoFileName))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRulesSyncFailed,
			fmt.Sprintf("rules repository does not carry a usable %s", RepoFileName))
	}

	if err := fetched.Save(cfg.Path); err != nil {
		return nil, err
	}

	logging.WithFields(map[string]interface{}{
		"url":    cfg.GitURL,
		"path":   cfg.Path,
		"groups": len(fetched.Synonyms),
	}).Info("rules synced")

	return fetched, nil
}

// localPath returns the cache path for a repository URL.
func (s *SyncService) localPath(gitURL string) string {
	name := gitURL
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".git")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = "rules"
	}
	return filepath.Join(s.cacheDir, name)
}

// cloneOrFetch clones a repository or fetches updates if it already exists.
func cloneOrFetch(gitURL, localPath string) error {
	cacheDir := filepath.Dir(localPath)
	if err := os.MkdirAll(cacheDir, common.DirPermissionNormal); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	if _, err := os.Stat(filepath.Join(localPath, ".git")); err == nil {
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repository: %w", err)
		}

		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree: %w", err)
		}

		err = worktree.Pull(&git.PullOptions{
			RemoteName: "origin",
			Auth:       authMethod(gitURL),
		})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("failed to pull updates: %w", err)
		}

		return nil
	}

	_, err := git.PlainClone(localPath, false, &git.CloneOptions{
		URL:  gitURL,
		Auth: authMethod(gitURL),
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}

	return nil
}

// authMethod returns the appropriate auth method for the URL, drawing
// credentials from the environment.
func authMethod(gitURL string) transport.AuthMethod {
	if strings.HasPrefix(gitURL, "git@") || strings.HasPrefix(gitURL, "ssh://") {
		sshKeyPath := filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		if _, err := os.Stat(sshKeyPath); err == nil {
			auth, err := ssh.NewPublicKeysFromFile("git", sshKeyPath, "")
			if err == nil {
				return auth
			}
		}
	}

	if strings.HasPrefix(gitURL, "https://") {
		username := os.Getenv("GIT_USERNAME")
		password := os.Getenv("GIT_PASSWORD")
		if username != "" && password != "" {
			return &http.BasicAuth{Username: username, Password: password}
		}

		token := os.Getenv("GITHUB_TOKEN")
		if token != "" {
			return &http.BasicAuth{Username: "token", Password: token}
		}
	}

	return nil
}

// checkoutBranch checks out a branch, creating a local tracking branch
// from origin when needed.
func checkoutBranch(repoPath, branchName string) error {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	branchRef := plumbing.ReferenceName("refs/heads/" + branchName)
	if _, err = repo.Reference(branchRef, false); err == nil {
		return worktree.Checkout(&git.CheckoutOptions{Branch: branchRef})
	}

	remoteRef := plumbing.ReferenceName("refs/remotes/origin/" + branchName)
	ref, err := repo.Reference(remoteRef, false)
	if err == nil {
		return worktree.Checkout(&git.CheckoutOptions{
			Branch: branchRef,
			Hash:   ref.Hash(),
			Create: true,
		})
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}

	return worktree.Checkout(&git.CheckoutOptions{
		Branch: branchRef,
		Hash:   head.Hash(),
		Create: true,
	})
}
