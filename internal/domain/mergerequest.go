package domain

// MergeRequest represents a merge request (GitLab) or pull request (GitHub, Azure DevOps).
type MergeRequest struct {
	ID           string `json:"id"` // project-scoped identifier used in links and case ids
	GlobalID     string `json:"global_id,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	State        string `json:"state"` // "opened", "closed", "merged", "active", "completed", "abandoned"
	IsDraft      bool   `json:"is_draft,omitempty"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	Author       Actor  `json:"author"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at,omitempty"`
	WebURL       string `json:"web_url,omitempty"`
	ProjectID    string `json:"project_id"`

	// PreMergeSHA is the last source-branch commit, PostMergeSHA the merge result.
	PreMergeSHA  string `json:"pre_merge_sha,omitempty"`
	PostMergeSHA string `json:"post_merge_sha,omitempty"`

	Commits    []Commit     `json:"commits,omitempty"`
	Activities []MRActivity `json:"activities,omitempty"`
}

// ActivityKind classifies a merge request lifecycle activity.
type ActivityKind string

const (
	ActivityMerged    ActivityKind = "merged"
	ActivityClosed    ActivityKind = "closed"
	ActivityVote      ActivityKind = "vote"
	ActivityCompleted ActivityKind = "completed"
	ActivityAbandoned ActivityKind = "abandoned"
	ActivityComment   ActivityKind = "comment"
	ActivityUnknown   ActivityKind = "unknown"
)

// MRActivity is a lifecycle or review activity on a merge request.
// Vote is only meaningful for ActivityVote.
type MRActivity struct {
	ID    string       `json:"id,omitempty"`
	Kind  ActivityKind `json:"kind"`
	Vote  int          `json:"vote,omitempty"`
	Actor Actor        `json:"actor"`
	At    string       `json:"at"`
}

// Commit represents a single commit from a merge request or the repository history.
type Commit struct {
	SHA       string `json:"sha"`
	Message   string `json:"message,omitempty"`
	Author    Actor  `json:"author"` // ID is the author email
	CreatedAt string `json:"created_at"`
}
