package correlation

import (
	"github.com/vilaca/alm-eventlog/internal/domain"
	"github.com/vilaca/alm-eventlog/internal/eventlog"
)

// Commit roles recorded in the commit event's info1.
const (
	RolePreMerge  = "pre_merge_commit"
	RolePostMerge = "post_merge_commit"
)

// ProcessMergeRequests runs the merge request phase. It needs the issues
// phase to have completed.
func (e *Engine) ProcessMergeRequests(mrs []domain.MergeRequest) error {
	if err := e.ctx.begin(PhaseMergeRequests); err != nil {
		return err
	}
	e.logger.Infof("scanning %d MRs in project %s", len(mrs), e.opts.ProjectID)
	before := e.log.Total()

	for i, mr := range mrs {
		e.guard(KindMR, mr.ID, func() error { return e.processMergeRequest(mr) })
		e.progress(KindMR, i+1, len(mrs))
	}

	e.ctx.finish(PhaseMergeRequests)
	e.logger.Infof("number of MR related events found: %d", e.log.Total()-before)
	e.logger.Debugf("commits linked to MRs: %d pre-merge, %d post-merge, %d listed",
		e.ctx.commitPreMerge.Len(), e.ctx.commitPostMerge.Len(), e.ctx.commitInMR.Len())
	return nil
}

func validateMergeRequest(mr domain.MergeRequest) error {
	switch {
	case mr.ID == "":
		return missing("id")
	case mr.CreatedAt == "":
		return missing("created_at")
	case mr.Author.IsZero():
		return missing("author")
	}
	return nil
}

func (e *Engine) processMergeRequest(mr domain.MergeRequest) error {
	if err := validateMergeRequest(mr); err != nil {
		return err
	}

	localCase := e.gen.Generate(mr.ID, KindMR)
	res := e.FindCaseIDForMR(mr.ID)
	e.ctx.setMRCase(mr.ID, res.CaseID, mr.CreatedAt)

	eventID := firstNonEmpty(mr.GlobalID, mr.ID)
	e.addEvent(eventlog.Event{
		ID:        eventID,
		Action:    e.gen.Action("MR_created"),
		Time:      mr.CreatedAt,
		Case:      res.CaseID,
		User:      mr.Author.ID,
		UserRef:   mr.Author.Name,
		LocalCase: localCase,
		Info1:     mr.SourceBranch,
		Info2:     mr.TargetBranch,
	})

	for _, activity := range mr.Activities {
		e.addEvent(eventlog.Event{
			ID:        eventID,
			Action:    e.gen.Action(activityAction(activity)),
			Time:      activity.At,
			Case:      res.CaseID,
			User:      activity.Actor.ID,
			UserRef:   activity.Actor.Name,
			LocalCase: localCase,
		})
	}

	if mr.PreMergeSHA != "" {
		e.ctx.commitPreMerge.Add(mr.PreMergeSHA, mr.ID)
	}
	if mr.PostMergeSHA != "" {
		e.ctx.commitPostMerge.Add(mr.PostMergeSHA, mr.ID)
	}

	for _, commit := range mr.Commits {
		if commit.SHA == "" {
			e.logger.Warnf("MR %s lists a commit without SHA, ignoring it", mr.ID)
			continue
		}
		role := ""
		switch commit.SHA {
		case mr.PreMergeSHA:
			role = RolePreMerge
		case mr.PostMergeSHA:
			role = RolePostMerge
		}
		// emission is deferred to the commits phase so commits shared by
		// several merge requests are emitted once
		e.ctx.bufferCommit(commit.SHA, pendingCommit{
			time:    commit.CreatedAt,
			user:    commit.Author.ID,
			userRef: commit.Author.Name,
			role:    role,
			message: commit.Message,
			fromMR:  true,
		})
		e.ctx.commitInMR.Add(commit.SHA, mr.ID)
	}

	e.mergeRequests = append(e.mergeRequests, MergeRequestRecord{
		ID:              mr.ID,
		Title:           mr.Title,
		AuthorID:        mr.Author.ID,
		AuthorName:      mr.Author.Name,
		CreatedTime:     mr.CreatedAt,
		UpdatedTime:     mr.UpdatedAt,
		State:           mr.State,
		SourceBranch:    mr.SourceBranch,
		TargetBranch:    mr.TargetBranch,
		ProjectID:       mr.ProjectID,
		ExtIssueID:      e.extIssueID(mr.Title + " " + mr.Description),
		LinkedIssues:    e.ctx.mrIssueLinks.Get(mr.ID),
		MentionedIssues: e.ctx.mrIssueMentions.Get(mr.ID),
		CaseID:          res.CaseID,
		LinkType:        res.LinkType,
	})
	return nil
}
