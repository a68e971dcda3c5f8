package correlation

import "fmt"

// FindCaseIDForMR resolves a merge request's case. An explicit closing link
// wins (latest linked issue); otherwise a single unambiguous mention is
// accepted; two or more mentions count as no signal and the merge request
// becomes its own case.
func (e *Engine) FindCaseIDForMR(mrID string) Resolution {
	if linked := e.ctx.mrIssueLinks.Get(mrID); len(linked) > 0 {
		issue := PickLatest(linked, e.ctx.IssueCreated())
		return Resolution{
			CaseID:   e.gen.Generate(issue, KindIssue),
			LinkType: LinkMR,
			Via:      issue,
		}
	}

	switch n := e.ctx.mrIssueMentions.Count(mrID); {
	case n == 1:
		mentioned := e.ctx.mrIssueMentions.Get(mrID)
		e.logger.Warnf("linking MR %s to issue %s using mentions", mrID, mentioned[0])
		return Resolution{
			CaseID:   e.gen.Generate(mentioned[0], KindIssue),
			LinkType: LinkMention,
			Via:      mentioned[0],
		}
	case n > 1:
		e.logger.Debugf("ignoring %d ambiguous issue mentions of MR %s", n, mrID)
	}

	e.logger.Warnf("no relation found to an issue for MR %s", mrID)
	return Resolution{
		CaseID:   e.gen.Generate(mrID, KindMR),
		LinkType: LinkUndefined,
	}
}

// FindCaseIDForCommit resolves a commit's case through the first non-empty
// registry of pre-merge, post-merge and commit-list relations, falling back to
// a case rooted at the truncated SHA.
func (e *Engine) FindCaseIDForCommit(sha string) (Resolution, error) {
	ladder := []struct {
		registry *LinkRegistry
		linkType LinkType
	}{
		{e.ctx.commitPreMerge, LinkPreMerge},
		{e.ctx.commitPostMerge, LinkPostMerge},
		{e.ctx.commitInMR, LinkCommitRelated},
	}

	for _, step := range ladder {
		mrs := step.registry.Get(sha)
		if len(mrs) == 0 {
			continue
		}
		mr := PickLatest(mrs, e.ctx.MRCreated())
		caseID, ok := e.ctx.MRCase(mr)
		if !ok {
			return Resolution{}, fmt.Errorf("merge request %s has no resolved case", mr)
		}
		return Resolution{CaseID: caseID, LinkType: step.linkType, Via: mr}, nil
	}

	e.logger.Warnf("did not find a relation to an MR for commit %s", sha)
	return Resolution{
		CaseID:   e.gen.Generate(shortSHA(sha), KindCommit),
		LinkType: LinkUndefined,
	}, nil
}

// FindCaseIDForPipeline inherits the case of the triggering commit, or roots
// the run at its own id when the commit was never resolved.
func (e *Engine) FindCaseIDForPipeline(sha, runID string, kind Kind) Resolution {
	if sha != "" {
		if caseID, linkType, ok := e.ctx.CommitCase(sha); ok {
			return Resolution{CaseID: caseID, LinkType: linkType, Via: sha}
		}
	}
	e.logger.Warnf("did not find a relation to a commit for %s %s", kind, runID)
	return Resolution{
		CaseID:   e.gen.Generate(runID, kind),
		LinkType: LinkUndefined,
	}
}

func shortSHA(sha string) string {
	if len(sha) > 6 {
		return sha[:6]
	}
	return sha
}
