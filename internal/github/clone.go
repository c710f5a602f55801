package github

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// runGit executes git in dir; a variable so tests can stub it out.
var runGit = func(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git %s failed: %w\nOutput: %s", args[0], err, string(output))
	}
	return nil
}

// cloneURL builds the authenticated HTTPS clone URL. apiURL selects the
// Enterprise host when set; otherwise github.com.
func cloneURL(repoFullName, token, apiURL string) string {
	host := "github.com"
	if apiURL != "" {
		if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
			host = u.Host
		}
	}
	if token == "" {
		return fmt.Sprintf("https://%s/%s.git", host, repoFullName)
	}
	return fmt.Sprintf("https://x-access-token:%s@%s/%s.git", token, host, repoFullName)
}

// Sync materializes branch of repoFullName at dest: a fresh clone when dest
// holds no checkout, a pull otherwise.
func Sync(repoFullName, branch, token, apiURL, dest string) error {
	if _, err := os.Stat(filepath.Join(dest, ".git")); err == nil {
		return Pull(dest, branch)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create clone parent: %w", err)
	}
	err := runGit("", "clone", "-b", branch, "--single-branch", cloneURL(repoFullName, token, apiURL), dest)
	if err != nil {
		// Avoid leaking the token through the wrapped git output
		return fmt.Errorf("failed to clone %s: %s", repoFullName, redactToken(err.Error(), token))
	}
	return nil
}

// Pull fast-forwards an existing checkout to the latest branch head.
func Pull(dest, branch string) error {
	if err := runGit(dest, "checkout", branch); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", branch, err)
	}
	if err := runGit(dest, "pull", "--ff-only", "origin", branch); err != nil {
		return fmt.Errorf("failed to pull %s: %w", branch, err)
	}
	return nil
}

func redactToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "***")
}
