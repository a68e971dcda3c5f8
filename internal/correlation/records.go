package correlation

import "github.com/vilaca/alm-eventlog/internal/eventlog"

// LinkType tags how a case id was derived.
type LinkType string

const (
	LinkMR            LinkType = "mr_link"
	LinkMention       LinkType = "mr_mention"
	LinkPreMerge      LinkType = "pre_merge"
	LinkPostMerge     LinkType = "post_merge"
	LinkCommitRelated LinkType = "commit_related"
	LinkUndefined     LinkType = "undefined"
)

// Resolution is the outcome of resolving one entity's case.
// Via names the issue or merge request the case was taken from, if any.
type Resolution struct {
	CaseID   string
	LinkType LinkType
	Via      string
}

// IssueRecord is the per-issue output row.
type IssueRecord struct {
	ID              string   `json:"id"`
	GlobalID        string   `json:"global_id"`
	Title           string   `json:"title"`
	Type            string   `json:"type"`
	AuthorID        string   `json:"author_id"`
	AuthorName      string   `json:"author_name"`
	CreatedTime     string   `json:"created_time"`
	UpdatedTime     string   `json:"updated_time"`
	State           string   `json:"state"`
	ProjectID       string   `json:"project_id"`
	ExtIssueID      string   `json:"ext_issue_id"`
	CaseID          string   `json:"case_id"`
	Branches        []string `json:"branches"`
	MentionedIssues []string `json:"mentioned_issues"` // issues mentioning this one
}

// MergeRequestRecord is the per-merge-request output row.
type MergeRequestRecord struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	AuthorID        string   `json:"author_id"`
	AuthorName      string   `json:"author_name"`
	CreatedTime     string   `json:"created_time"`
	UpdatedTime     string   `json:"updated_time"`
	State           string   `json:"state"`
	SourceBranch    string   `json:"source_branch"`
	TargetBranch    string   `json:"target_branch"`
	ProjectID       string   `json:"project_id"`
	ExtIssueID      string   `json:"ext_issue_id"`
	LinkedIssues    []string `json:"linked_issues"`
	MentionedIssues []string `json:"mentioned_issues"`
	CaseID          string   `json:"case_id"`
	LinkType        LinkType `json:"link_type"`
}

// CommitRecord is the per-commit output row.
type CommitRecord struct {
	ID          string   `json:"id"`
	Author      string   `json:"author"`
	CreatedTime string   `json:"created_time"`
	Message     string   `json:"message"`
	ProjectID   string   `json:"project_id"`
	PreMerge    []string `json:"pre_merge"`
	PostMerge   []string `json:"post_merge"`
	CommitList  []string `json:"commit_list"`
	ChosenMR    string   `json:"chosen_mr"`
	CaseID      string   `json:"case_id"`
	LinkType    LinkType `json:"link_type"`
}

// PipelineRecord is the per-run output row for pipelines and releases.
type PipelineRecord struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Definition  string   `json:"definition"`
	Source      string   `json:"source"`
	SHA         string   `json:"sha"`
	Author      string   `json:"author"`
	CreatedTime string   `json:"created_time"`
	Duration    float64  `json:"duration"`
	Status      string   `json:"status"`
	Trigger     string   `json:"trigger"`
	ProjectID   string   `json:"project_id"`
	CaseID      string   `json:"case_id"`
	LinkType    LinkType `json:"link_type"`
}

// Result is everything one project's correlation run produced.
type Result struct {
	Namespace     string
	Events        []eventlog.Event
	Users         map[string]string
	Issues        []IssueRecord
	MergeRequests []MergeRequestRecord
	Commits       []CommitRecord
	Pipelines     []PipelineRecord
	Skipped       int
}
