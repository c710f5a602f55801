package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v66/github"
)

// Client wraps the GitHub REST API surface the agent uses: reading issue
// threads and posting comments back.
type Client struct {
	gh *github.Client
}

// NewClient builds a Client authenticated with token. apiURL selects a
// GitHub Enterprise instance when non-empty.
func NewClient(token, apiURL string) (*Client, error) {
	gh := github.NewClient(nil)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	if apiURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure enterprise URLs: %w", err)
		}
	}
	return &Client{gh: gh}, nil
}

func splitRepo(repoFullName string) (string, string, error) {
	parts := strings.SplitN(repoFullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo format: %s (expected owner/repo)", repoFullName)
	}
	return parts[0], parts[1], nil
}

// FetchIssueComments returns the bodies of all comments on an issue, in
// thread order.
func (c *Client) FetchIssueComments(ctx context.Context, repoFullName string, number int) ([]string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	var bodies []string
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments for %s#%d: %w", repoFullName, number, err)
		}
		for _, comment := range comments {
			bodies = append(bodies, comment.GetBody())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return bodies, nil
}

// PostIssueComment posts a comment on an issue.
func (c *Client) PostIssueComment(ctx context.Context, repoFullName string, number int, body string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	_, _, err = c.gh.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to post comment on %s#%d: %w", repoFullName, number, err)
	}
	return nil
}

// DefaultBranch returns the repository's default branch name.
func (c *Client) DefaultBranch(ctx context.Context, repoFullName string) (string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", err
	}

	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", fmt.Errorf("failed to get repository %s: %w", repoFullName, err)
	}
	return r.GetDefaultBranch(), nil
}
