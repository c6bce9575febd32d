package ingestion

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/codegraphhq/codegraph/internal/errors"
	"github.com/codegraphhq/codegraph/internal/logging"
)

// IsRemoteTarget reports whether target looks like a git URL rather than a
// local path.
func IsRemoteTarget(target string) bool {
	return strings.HasPrefix(target, "http://") ||
		strings.HasPrefix(target, "https://") ||
		strings.HasPrefix(target, "git@")
}

// repoNameFromURL extracts the trailing repository name from a git URL.
func repoNameFromURL(url string) string {
	name := url[strings.LastIndex(url, "/")+1:]
	return strings.TrimSuffix(name, ".git")
}

// sanitizeForPath keeps alphanumerics, dash, underscore and dot; everything
// else becomes an underscore.
func sanitizeForPath(name string) string {
	var b strings.Builder
	for _, c := range name {
		if c == '-' || c == '_' || c == '.' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// RepoIDFromURL derives a repository slug of the form host/owner/name from
// a clone URL.
func RepoIDFromURL(url string) string {
	id := url
	if i := strings.Index(id, "://"); i >= 0 {
		id = id[i+3:]
	}
	if i := strings.Index(id, "@"); i >= 0 {
		id = id[i+1:]
	}
	id = strings.ReplaceAll(id, ":", "/")
	id = strings.TrimSuffix(id, ".git")
	return strings.Trim(id, "/")
}

// CloneToTemp shallow-clones repoURL into
// <tempBase>/<sanitized_name>_<timestamp>/ and returns the clone path plus
// the derived repository slug.
func CloneToTemp(ctx context.Context, repoURL, tempBase string) (clonePath, repoID string, err error) {
	log := logging.Component("clone")

	if err := os.MkdirAll(tempBase, 0o755); err != nil {
		return "", "", errors.Wrapf(err, errors.KindInput, "cannot create temp clone dir %s", tempBase)
	}

	dirName := fmt.Sprintf("%s_%s", sanitizeForPath(repoNameFromURL(repoURL)), time.Now().Format("20060102150405.000000"))
	dirName = strings.ReplaceAll(dirName, ".", "")
	clonePath = filepath.Join(tempBase, dirName)

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", repoURL, clonePath)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		_ = os.RemoveAll(clonePath)
		log.Error("git clone failed", "url", repoURL, "output", strings.TrimSpace(string(output)))
		return "", "", errors.InputError("failed to clone %s: %v", repoURL, runErr)
	}

	repoID = RepoIDFromURL(repoURL)
	log.Info("cloned repository", "url", repoURL, "path", clonePath, "repo_id", repoID)
	return clonePath, repoID, nil
}

// CleanupTempRepo removes a temporary clone directory. Refuses to delete
// anything outside tempBase.
func CleanupTempRepo(clonePath, tempBase string) {
	log := logging.Component("clone")
	if clonePath == "" {
		return
	}
	absClone, err := filepath.Abs(clonePath)
	if err != nil {
		log.Error("cannot resolve clone path for cleanup", "path", clonePath, "error", err)
		return
	}
	absBase, err := filepath.Abs(tempBase)
	if err != nil {
		return
	}
	rel, err := filepath.Rel(absBase, absClone)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		log.Warn("skipping cleanup outside temp base", "path", absClone, "base", absBase)
		return
	}
	if err := os.RemoveAll(absClone); err != nil {
		log.Error("failed to remove temp clone", "path", absClone, "error", err)
	}
}
