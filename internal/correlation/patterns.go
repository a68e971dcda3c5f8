package correlation

import (
	"regexp"

	"github.com/vilaca/alm-eventlog/internal/domain"
)

// Fixed patterns scanned in issue notes and relation comments.
var (
	mrMentionPattern       = regexp.MustCompile(`mentioned in (?:merge|pull) request [!#](\d+)`)
	issueMentionPattern    = regexp.MustCompile(`mentioned in issue #(\d+)`)
	workItemMentionPattern = regexp.MustCompile(`mentioned work item #\d+`)
	assignedPattern        = regexp.MustCompile(`assigned to`)
	branchCreatedPattern   = regexp.MustCompile("created branch `([^`]+)`")
)

// VoteActions maps a reviewer vote to its action suffix.
var VoteActions = map[int]string{
	10:  "MR_approved",
	5:   "MR_appr_sug",
	0:   "MR_vote_reset",
	-5:  "MR_wait_author",
	-10: "MR_rejected",
}

// activityAction returns the action suffix of a merge request activity.
func activityAction(a domain.MRActivity) string {
	switch a.Kind {
	case domain.ActivityMerged:
		return "MR_merged"
	case domain.ActivityClosed:
		return "MR_closed"
	case domain.ActivityVote:
		if action, ok := VoteActions[a.Vote]; ok {
			return action
		}
	case domain.ActivityCompleted:
		return "MR_completed"
	case domain.ActivityAbandoned:
		return "MR_abandoned"
	case domain.ActivityComment:
		return "MR_commented"
	}
	return "MR_comment_UNKNOWN"
}
