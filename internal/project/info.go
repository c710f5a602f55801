package project

import (
	"fmt"
	"strings"
)

// DefaultSourceExt is assumed when a project does not declare one.
const DefaultSourceExt = ".py"

// Info describes one onboarded repository. It is the unit stored in the
// projects registry.
type Info struct {
	RepoFullName string `json:"repo_full_name"`
	SrcFolder    string `json:"src_folder"`
	MainBranch   string `json:"main_branch"`

	// SourceExt selects which files count as source (".py", ".go", ...).
	SourceExt string `json:"source_ext,omitempty"`

	// TopNPackages overrides the service-wide package fan-out when set.
	TopNPackages int `json:"top_n_packages,omitempty"`

	// GitHubToken overrides the service token for this repository.
	GitHubToken string `json:"github_token,omitempty"`

	// APIURL points at a GitHub Enterprise instance when set.
	APIURL string `json:"api_url,omitempty"`
}

// Validate checks the fields required to operate on the project.
func (i *Info) Validate() error {
	if i.RepoFullName == "" {
		return fmt.Errorf("repo_full_name is required")
	}
	if parts := strings.Split(i.RepoFullName, "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid repo_full_name: %s (expected owner/repo)", i.RepoFullName)
	}
	if i.SrcFolder == "" {
		return fmt.Errorf("src_folder is required")
	}
	if i.MainBranch == "" {
		return fmt.Errorf("main_branch is required")
	}
	return nil
}

// Ext returns the project's source file extension, defaulting to Python.
func (i *Info) Ext() string {
	if i.SourceExt != "" {
		return i.SourceExt
	}
	return DefaultSourceExt
}

// Owner returns the owner half of RepoFullName.
func (i *Info) Owner() string {
	return strings.SplitN(i.RepoFullName, "/", 2)[0]
}

// RepoName returns the repository half of RepoFullName.
func (i *Info) RepoName() string {
	parts := strings.SplitN(i.RepoFullName, "/", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
