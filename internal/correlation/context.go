package correlation

import (
	"errors"
	"fmt"
)

// Phase is one of the strictly ordered correlation passes.
type Phase int

const (
	PhaseIssues Phase = iota
	PhaseMergeRequests
	PhaseCommits
	PhasePipelines
	PhaseDone
)

var phaseNames = [...]string{"issues", "merge requests", "commits", "pipelines", "done"}

func (p Phase) String() string {
	if p < PhaseIssues || p > PhaseDone {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// ErrPhaseOrder is returned when a phase is started out of order or twice.
var ErrPhaseOrder = errors.New("phase started out of order")

// pendingCommit is commit metadata buffered by the merge request phase.
type pendingCommit struct {
	time    string
	user    string
	userRef string
	role    string
	message string
	fromMR  bool
}

// Context owns every registry and cache of one project's correlation run.
// A fresh Context is created per project; nothing is shared across projects.
type Context struct {
	Namespace string

	next    Phase
	running bool

	mrIssueLinks       *LinkRegistry // MR -> issues closed by it
	mrIssueMentions    *LinkRegistry // MR -> issues mentioning it
	issueIssueMentions *LinkRegistry // issue -> issues mentioning it
	commitPreMerge     *LinkRegistry // SHA -> MRs whose last source commit it is
	commitPostMerge    *LinkRegistry // SHA -> MRs whose merge commit it is
	commitInMR         *LinkRegistry // SHA -> MRs listing it

	issueCreated TimestampIndex
	mrCreated    TimestampIndex

	mrCase         map[string]string
	commitCase     map[string]string
	commitLinkType map[string]LinkType

	pending      map[string]pendingCommit
	pendingOrder []string
}

// NewContext creates an empty context positioned before the issues phase.
func NewContext(namespace string) *Context {
	return &Context{
		Namespace:          namespace,
		next:               PhaseIssues,
		mrIssueLinks:       NewLinkRegistry(),
		mrIssueMentions:    NewLinkRegistry(),
		issueIssueMentions: NewLinkRegistry(),
		commitPreMerge:     NewLinkRegistry(),
		commitPostMerge:    NewLinkRegistry(),
		commitInMR:         NewLinkRegistry(),
		issueCreated:       make(TimestampIndex),
		mrCreated:          make(TimestampIndex),
		mrCase:             make(map[string]string),
		commitCase:         make(map[string]string),
		commitLinkType:     make(map[string]LinkType),
		pending:            make(map[string]pendingCommit),
	}
}

// Next returns the phase that may be started next.
func (c *Context) Next() Phase {
	return c.next
}

// Completed reports whether phase p has finished.
func (c *Context) Completed(p Phase) bool {
	return c.next > p
}

func (c *Context) begin(p Phase) error {
	if c.running || p != c.next {
		return fmt.Errorf("%w: cannot start %s, next is %s", ErrPhaseOrder, p, c.next)
	}
	c.running = true
	return nil
}

func (c *Context) finish(p Phase) {
	c.running = false
	c.next = p + 1
}

// requireCompleted panics when a cache is read before its producing phase
// finished. Reaching it means the caller broke the phase barrier.
func (c *Context) requireCompleted(p Phase, what string) {
	if !c.Completed(p) {
		panic(fmt.Sprintf("correlation: %s read before the %s phase completed", what, p))
	}
}

// requireRunning panics when a registry is written outside its phase.
func (c *Context) requireRunning(p Phase, what string) {
	if !c.running || c.next != p {
		panic(fmt.Sprintf("correlation: %s written outside the %s phase", what, p))
	}
}

// IssueCreated returns the issue creation index. Valid once issues completed.
func (c *Context) IssueCreated() TimestampIndex {
	c.requireCompleted(PhaseIssues, "issue timestamp index")
	return c.issueCreated
}

// MRCreated returns the merge request creation index. Valid once merge requests completed.
func (c *Context) MRCreated() TimestampIndex {
	c.requireCompleted(PhaseMergeRequests, "merge request timestamp index")
	return c.mrCreated
}

// MRCase returns the case a merge request resolved to.
func (c *Context) MRCase(mrID string) (string, bool) {
	c.requireCompleted(PhaseMergeRequests, "merge request case cache")
	caseID, ok := c.mrCase[mrID]
	return caseID, ok
}

// CommitCase returns the case and link type a commit resolved to.
func (c *Context) CommitCase(sha string) (string, LinkType, bool) {
	c.requireCompleted(PhaseCommits, "commit case cache")
	caseID, ok := c.commitCase[sha]
	return caseID, c.commitLinkType[sha], ok
}

func (c *Context) setMRCase(mrID, caseID, created string) {
	c.requireRunning(PhaseMergeRequests, "merge request case cache")
	c.mrCase[mrID] = caseID
	c.mrCreated[mrID] = created
}

func (c *Context) setCommitCase(sha, caseID string, linkType LinkType) {
	c.requireRunning(PhaseCommits, "commit case cache")
	c.commitCase[sha] = caseID
	c.commitLinkType[sha] = linkType
}

// bufferCommit stores commit metadata for the commits phase. A later record
// for the same SHA overwrites the earlier one but keeps a known role and the
// first-seen emission order.
func (c *Context) bufferCommit(sha string, pc pendingCommit) {
	prev, seen := c.pending[sha]
	if !seen {
		c.pendingOrder = append(c.pendingOrder, sha)
	} else {
		if pc.role == "" {
			pc.role = prev.role
		}
		pc.fromMR = pc.fromMR || prev.fromMR
	}
	c.pending[sha] = pc
}
