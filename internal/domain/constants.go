package domain

// Platform constants
const (
	// PlatformGitLab represents the GitLab platform
	PlatformGitLab = "gitlab"
	// PlatformGitHub represents the GitHub platform
	PlatformGitHub = "github"
	// PlatformAzure represents the Azure DevOps platform
	PlatformAzure = "azure"
)

// Platforms lists every supported platform in processing order.
var Platforms = []string{PlatformGitLab, PlatformGitHub, PlatformAzure}
