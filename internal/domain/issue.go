package domain

// Issue represents an issue (GitLab, GitHub) or work item (Azure DevOps).
// Timestamps are kept in the platform's ISO-8601 string form.
type Issue struct {
	ID          string `json:"id"` // project-scoped identifier used in case ids
	GlobalID    string `json:"global_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	State       string `json:"state"`
	Author      Actor  `json:"author"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	WebURL      string `json:"web_url,omitempty"`
	ProjectID   string `json:"project_id"`

	// ClosedBy lists merge requests that explicitly close this issue.
	ClosedBy  []string   `json:"closed_by,omitempty"`
	Notes     []Note     `json:"notes,omitempty"`
	Relations []Relation `json:"relations,omitempty"`
	Revisions []Revision `json:"revisions,omitempty"`
}

// Note is a free-text comment or system note attached to an issue.
type Note struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	Author    Actor  `json:"author"`
	CreatedAt string `json:"created_at"`
	System    bool   `json:"system,omitempty"`
}

// RelationKind classifies a link between work items.
type RelationKind string

const (
	RelationParent  RelationKind = "parent"
	RelationRelated RelationKind = "related"
)

// Relation is a typed link from an issue to another work item.
type Relation struct {
	Kind     RelationKind `json:"kind"`
	TargetID string       `json:"target_id"`
	Comment  string       `json:"comment,omitempty"`
}

// Revision is one entry of an issue's change history.
type Revision struct {
	Rev       int    `json:"rev"`
	State     string `json:"state"`
	ChangedAt string `json:"changed_at"`
	ChangedBy Actor  `json:"changed_by"`
}
