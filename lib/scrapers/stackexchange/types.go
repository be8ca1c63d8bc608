package stackexchange

import "time"

// ReviewType is the slug of a review queue as it appears in
// /review/<slug>/history urls.
type ReviewType string

const (
	ReviewFirstPosts      ReviewType = "first-posts"
	ReviewLateAnswers     ReviewType = "late-answers"
	ReviewLowQualityPosts ReviewType = "low-quality-posts"
	ReviewSuggestedEdits  ReviewType = "suggested-edits"
)

// AllReviewTypes lists every queue a history sweep covers.
var AllReviewTypes = []ReviewType{
	ReviewFirstPosts,
	ReviewLateAnswers,
	ReviewLowQualityPosts,
	ReviewSuggestedEdits,
}

type PostType string

const (
	PostQuestion PostType = "question"
	PostAnswer   PostType = "answer"
)

type DeletionReason string

const (
	DeletedSelf            DeletionReason = "self"
	DeletedSelfNuked       DeletionReason = "self_nuked"
	DeletedReview          DeletionReason = "review"
	DeletedReputationMod   DeletionReason = "reputation_mod"
	DeletedDuplicate       DeletionReason = "duplicate"
	DeletedDiamondMod      DeletionReason = "diamond_mod"
	DeletedDiamondModConv  DeletionReason = "diamond_mod_convert"
	UndeletedSelf          DeletionReason = "self"
	UndeletedReputationMod DeletionReason = "reputation_mod"
)

// DeletionEvent is one deletion recorded on a post timeline. By holds the
// user ids of everyone the timeline credits with the deletion; for users
// whose account no longer exists it holds the placeholder display text
// instead of a numeric id.
type DeletionEvent struct {
	Date   time.Time
	By     []string
	Reason DeletionReason
}

type UndeletionEvent struct {
	Date   time.Time
	By     []string
	Reason DeletionReason
}

// ReviewEvent is a review task surfaced on a post timeline. Result and
// Votes stay zero until the timeline's detail row for the same event id
// is folded in.
type ReviewEvent struct {
	Link   string
	Type   ReviewType
	Result string
	Votes  map[string]int
}

// Timeline is the classified history of a single post.
type Timeline struct {
	AuthorID    string
	Deletions   map[string]DeletionEvent
	Undeletions map[string]UndeletionEvent
	Reviews     map[string]*ReviewEvent
}

// LatestDeletion returns the most recent deletion event, or nil.
func (t Timeline) LatestDeletion() *DeletionEvent {
	var latest *DeletionEvent
	for id := range t.Deletions {
		ev := t.Deletions[id]
		if latest == nil || ev.Date.After(latest.Date) {
			latest = &ev
		}
	}
	return latest
}

// LatestUndeletion returns the most recent undeletion event, or nil.
func (t Timeline) LatestUndeletion() *UndeletionEvent {
	var latest *UndeletionEvent
	for id := range t.Undeletions {
		ev := t.Undeletions[id]
		if latest == nil || ev.Date.After(latest.Date) {
			latest = &ev
		}
	}
	return latest
}

// Deleted reports whether the post currently sits deleted: it has at
// least one deletion that no later undeletion reversed.
func (t Timeline) Deleted() bool {
	del := t.LatestDeletion()
	if del == nil {
		return false
	}
	undel := t.LatestUndeletion()
	return undel == nil || del.Date.After(undel.Date)
}

// ReviewRecord is one row of a review queue's history table.
type ReviewRecord struct {
	ReviewID   string
	ReviewType ReviewType
	UserID     string
	UserName   string
	PostID     int64
	PostType   PostType
	Date       time.Time
	Action     string
}

// Cursor marks the most recently ingested review record of a queue. A
// history scan stops as soon as it reaches the record the cursor names;
// the pair is only ever compared, never interpreted.
type Cursor struct {
	ReviewID string
	UserID   string
}
