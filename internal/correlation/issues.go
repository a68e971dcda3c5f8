package correlation

import (
	"sort"
	"strconv"

	"github.com/vilaca/alm-eventlog/internal/domain"
	"github.com/vilaca/alm-eventlog/internal/eventlog"
)

// ProcessIssues runs the issues phase: every issue roots its own case and
// registers the merge requests and issues it links to or mentions.
func (e *Engine) ProcessIssues(issues []domain.Issue) error {
	if err := e.ctx.begin(PhaseIssues); err != nil {
		return err
	}
	e.logger.Infof("scanning %d issues in project %s", len(issues), e.opts.ProjectID)
	before := e.log.Total()

	for i, issue := range issues {
		e.guard(KindIssue, issue.ID, func() error { return e.processIssue(issue) })
		e.progress(KindIssue, i+1, len(issues))
	}

	e.ctx.finish(PhaseIssues)
	e.logger.Infof("number of issue related events found: %d", e.log.Total()-before)
	return nil
}

func validateIssue(issue domain.Issue) error {
	switch {
	case issue.ID == "":
		return missing("id")
	case issue.CreatedAt == "":
		return missing("created_at")
	case issue.Author.IsZero():
		return missing("author")
	}
	return nil
}

func (e *Engine) processIssue(issue domain.Issue) error {
	if err := validateIssue(issue); err != nil {
		return err
	}

	caseID := e.gen.Generate(issue.ID, KindIssue)
	e.ctx.issueCreated[issue.ID] = issue.CreatedAt

	for _, mr := range issue.ClosedBy {
		e.ctx.mrIssueLinks.Add(mr, issue.ID)
	}

	e.addEvent(eventlog.Event{
		ID:        firstNonEmpty(issue.GlobalID, issue.ID),
		Action:    e.gen.Action("issue_created"),
		Time:      issue.CreatedAt,
		Case:      caseID,
		User:      issue.Author.ID,
		UserRef:   issue.Author.Name,
		LocalCase: caseID,
		Info1:     issue.Type,
	})

	e.emitStateChanges(issue, caseID)
	branches := e.scanNotes(issue, caseID)
	e.scanRelations(issue)

	e.issues = append(e.issues, IssueRecord{
		ID:              issue.ID,
		GlobalID:        issue.GlobalID,
		Title:           issue.Title,
		Type:            issue.Type,
		AuthorID:        issue.Author.ID,
		AuthorName:      issue.Author.Name,
		CreatedTime:     issue.CreatedAt,
		UpdatedTime:     issue.UpdatedAt,
		State:           issue.State,
		ProjectID:       issue.ProjectID,
		ExtIssueID:      e.extIssueID(issue.Title + " " + issue.Description),
		CaseID:          caseID,
		Branches:        branches,
		MentionedIssues: e.ctx.issueIssueMentions.Get(issue.ID),
	})
	return nil
}

// emitStateChanges emits one event per state change between consecutive
// revisions, in ascending revision order.
func (e *Engine) emitStateChanges(issue domain.Issue, caseID string) {
	revisions := make([]domain.Revision, len(issue.Revisions))
	copy(revisions, issue.Revisions)
	sort.SliceStable(revisions, func(i, j int) bool { return revisions[i].Rev < revisions[j].Rev })

	for i := 1; i < len(revisions); i++ {
		current, previous := revisions[i], revisions[i-1]
		if current.State == previous.State {
			continue
		}
		e.addEvent(eventlog.Event{
			ID:        caseID + "-" + strconv.Itoa(current.Rev),
			Action:    e.gen.Action("issue_" + current.State),
			Time:      current.ChangedAt,
			Case:      caseID,
			User:      current.ChangedBy.ID,
			UserRef:   current.ChangedBy.Name,
			LocalCase: caseID,
		})
	}
}

// scanNotes registers mentions and emits assignment and branch events.
// It returns the branches created from the issue.
func (e *Engine) scanNotes(issue domain.Issue, caseID string) []string {
	var branches []string
	for _, note := range issue.Notes {
		if m := mrMentionPattern.FindStringSubmatch(note.Body); m != nil {
			e.ctx.mrIssueMentions.Add(m[1], issue.ID)
		}
		if m := issueMentionPattern.FindStringSubmatch(note.Body); m != nil && m[1] != issue.ID {
			e.ctx.issueIssueMentions.Add(issue.ID, m[1])
		}

		if assignedPattern.MatchString(note.Body) {
			e.addEvent(eventlog.Event{
				ID:        note.ID,
				Action:    e.gen.Action("issue_assigned"),
				Time:      note.CreatedAt,
				Case:      caseID,
				User:      note.Author.ID,
				UserRef:   note.Author.Name,
				LocalCase: caseID,
				Info1:     note.Body,
			})
		}

		if m := branchCreatedPattern.FindStringSubmatch(note.Body); m != nil {
			branches = append(branches, m[1])
			e.addEvent(eventlog.Event{
				ID:        note.ID,
				Action:    e.gen.Action("branch_created"),
				Time:      note.CreatedAt,
				Case:      caseID,
				User:      note.Author.ID,
				UserRef:   note.Author.Name,
				LocalCase: e.gen.Generate(m[1], KindBranch),
				Info1:     m[1],
			})
		}
	}
	return branches
}

func (e *Engine) scanRelations(issue domain.Issue) {
	for _, rel := range issue.Relations {
		if rel.Kind != domain.RelationRelated || rel.TargetID == "" {
			continue
		}
		if workItemMentionPattern.MatchString(rel.Comment) {
			e.ctx.issueIssueMentions.Add(issue.ID, rel.TargetID)
		}
	}
}
