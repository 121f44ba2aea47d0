// Package gitsource keeps local checkouts of git card sources up to date.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// LocalPath maps a repository URL to its checkout directory under baseDir:
// https://host/org/repo.git and git@host:org/repo.git both become
// baseDir/host/org/repo.
func LocalPath(baseDir, repoURL string) (string, error) {
	var host, repoPath string

	parsedURL, err := url.Parse(repoURL)
	switch {
	case err == nil && (parsedURL.Scheme == "https" || parsedURL.Scheme == "http" || parsedURL.Scheme == "ssh"):
		host, repoPath = parsedURL.Hostname(), parsedURL.Path
	case strings.Contains(repoURL, "@"):
		// scp-like syntax: user@host:path
		userHost, p, ok := strings.Cut(repoURL, ":")
		if !ok {
			return "", fmt.Errorf("could not parse git URL: %s", repoURL)
		}
		_, h, ok := strings.Cut(userHost, "@")
		if !ok {
			return "", fmt.Errorf("could not parse git URL: %s", repoURL)
		}
		host, repoPath = h, p
	default:
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	repoPath = strings.Trim(strings.TrimSuffix(repoPath, ".git"), "/")
	if host == "" || repoPath == "" {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}
	clean := filepath.Clean(filepath.Join(baseDir, host, repoPath))
	if !strings.HasPrefix(clean, filepath.Clean(baseDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("git URL %s escapes the repos directory", repoURL)
	}
	return clean, nil
}

// IsURL reports whether path looks like a remote repository rather than a directory.
func IsURL(path string) bool {
	if strings.HasPrefix(path, "git@") {
		return true
	}
	u, err := url.Parse(path)
	return err == nil && (u.Scheme == "https" || u.Scheme == "http" || u.Scheme == "ssh")
}

// Sync clones a git repository if it doesn't exist at the given path,
// or pulls the latest changes if it does.
func Sync(ctx context.Context, repoURL, localPath string) error {
	_, err := os.Stat(localPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Info("cloning repository", "url", repoURL, "path", localPath)
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return fmt.Errorf("failed to create parent of %s: %w", localPath, err)
		}
		if _, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{URL: repoURL}); err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", repoURL, err)
		}
		slog.Info("clone complete", "url", repoURL)
	case err == nil:
		slog.Info("pulling repository", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}
		err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			slog.Debug("repository already up to date", "path", localPath)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
		slog.Info("pull complete", "path", localPath)
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}
	return nil
}
