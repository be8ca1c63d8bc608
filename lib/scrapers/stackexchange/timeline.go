package stackexchange

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"spotdetector/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// canonical duplicate-answer notice linked from duplicate-closure comments
var duplicateRegex = regexp.MustCompile(`(?i)meta\.stackexchange\.com/q/104227`)

// review link labels as they render on timeline rows, keyed to the queue
// the task belongs to
var timelineReviewTypes = map[string]ReviewType{
	"late answer":    ReviewLateAnswers,
	"first post":     ReviewFirstPosts,
	"suggested edit": ReviewSuggestedEdits,
}

type rowKind int

const (
	rowOther rowKind = iota
	rowHistory
	rowComment
	rowReview
)

func rowKindOf(tag string) rowKind {
	switch tag {
	case "history":
		return rowHistory
	case "comment":
		return rowComment
	case "review":
		return rowReview
	}
	return rowOther
}

type timelineRow struct {
	id          string
	kind        rowKind
	verb        string
	verbLink    htmlutil.Anchor
	date        time.Time
	user        *goquery.Selection
	commentText string
	commentHTML string
	primary     bool // "deleted-event" styled row
	details     bool // "deleted-event-details" styled row
}

func parseTimelineRow(row *goquery.Selection) timelineRow {
	r := timelineRow{
		id:      row.AttrOr("data-eventid", ""),
		kind:    rowKindOf(row.AttrOr("data-eventtype", "")),
		user:    row.Find(".created-by").First(),
		primary: row.HasClass("deleted-event"),
		details: row.HasClass("deleted-event-details"),
	}

	verb := row.Find(".event-verb span").First()
	r.verb = cellText(verb)
	if anchors := htmlutil.Anchors(verb.Find("a")); len(anchors) > 0 {
		r.verbLink = anchors[0]
	}

	comment := row.Find(".event-comment span").First()
	r.commentText = cellText(comment)
	r.commentHTML, _ = comment.Html()

	r.date, _ = cellDate(row, dateRelativetime)
	return r
}

// ParseTimeline classifies the full event timeline of a single post into
// its author, deletions, undeletions and review outcomes.
//
// The document lists events newest-first, but causal attribution (was a
// deletion done by the post's own author?) needs the authorship row to be
// seen before anything that references it, so the rows are folded
// oldest-first. That reversal is a correctness requirement of the
// classification, not a presentation detail.
func ParseTimeline(doc *goquery.Document) Timeline {
	sel := doc.Find(".event-rows tr").Not(".separator")
	rows := make([]timelineRow, sel.Length())
	sel.Each(func(i int, row *goquery.Selection) {
		rows[i] = parseTimelineRow(row)
	})

	t := Timeline{
		Deletions:   map[string]DeletionEvent{},
		Undeletions: map[string]UndeletionEvent{},
		Reviews:     map[string]*ReviewEvent{},
	}

	// detail rows sit below their primary row in the document, so the
	// oldest-first fold reaches them before the event they belong to
	pendingDetails := map[string]timelineRow{}

	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		var next *timelineRow
		if i+1 < len(rows) {
			next = &rows[i+1]
		}

		if row.kind == rowHistory {
			foldHistory(&t, row, next, i)
			continue
		}
		// a comment row can double as a review row, so both event types
		// go through the same review pairing
		if row.kind == rowComment || row.kind == rowReview {
			foldReview(&t, row, pendingDetails)
		}
	}

	return t
}

func foldHistory(t *Timeline, row timelineRow, next *timelineRow, docIdx int) {
	switch row.verb {
	case "asked", "answered":
		if t.AuthorID != "" {
			return
		}
		if ids := cellIdentities(row.user); len(ids) > 0 {
			t.AuthorID = ids[0]
		}

	case "post deleted from review":
		key := eventKey(row, docIdx)
		if _, seen := t.Deletions[key]; seen {
			return
		}
		t.Deletions[key] = DeletionEvent{
			Date:   row.date,
			By:     cellIdentities(row.user),
			Reason: DeletedReview,
		}

	case "deleted":
		key := eventKey(row, docIdx)
		if _, seen := t.Deletions[key]; seen {
			return
		}
		by := cellIdentities(row.user)
		reason := classifyDeletion(row, next)
		// self-deletion overrides the moderator attribution, but a
		// duplicate closure always wins over self
		if reason != DeletedDuplicate && t.AuthorID != "" && containsIdentity(by, t.AuthorID) {
			if placeholderIdentity(t.AuthorID) {
				reason = DeletedSelfNuked
			} else {
				reason = DeletedSelf
			}
		}
		t.Deletions[key] = DeletionEvent{Date: row.date, By: by, Reason: reason}

	case "undeleted":
		key := eventKey(row, docIdx)
		if _, seen := t.Undeletions[key]; seen {
			return
		}
		by := cellIdentities(row.user)
		reason := UndeletedReputationMod
		if t.AuthorID != "" && containsIdentity(by, t.AuthorID) {
			reason = UndeletedSelf
		}
		t.Undeletions[key] = UndeletionEvent{Date: row.date, By: by, Reason: reason}
	}
}

// classifyDeletion decides why a "deleted" row happened, before any
// self-deletion override. Precedence: duplicate closure, then moderator
// flair, then reputation-based deletion.
//
// The duplicate check only consults the deletion row itself and the row
// adjacent to it in document order (where the closure comment lands); an
// earlier duplicate comment elsewhere in the timeline never retroactively
// marks an unrelated deletion.
func classifyDeletion(row timelineRow, next *timelineRow) DeletionReason {
	if duplicateRegex.MatchString(row.commentHTML) ||
		(next != nil && duplicateRegex.MatchString(next.commentHTML)) {
		return DeletedDuplicate
	}
	if hasModFlair(row.user) {
		if row.commentText == "Converted to Comment" ||
			(next != nil && next.details && next.commentText == "Converted to Comment") {
			return DeletedDiamondModConv
		}
		return DeletedDiamondMod
	}
	return DeletedReputationMod
}

func foldReview(t *Timeline, row timelineRow, pendingDetails map[string]timelineRow) {
	if row.primary && row.id != "" {
		reviewType, ok := timelineReviewTypes[row.verbLink.Name]
		if !ok {
			return
		}
		if _, seen := t.Reviews[row.id]; seen {
			return
		}
		ev := &ReviewEvent{Link: row.verbLink.Href, Type: reviewType}
		t.Reviews[row.id] = ev
		if detail, ok := pendingDetails[row.id]; ok {
			applyReviewDetail(ev, detail)
			delete(pendingDetails, row.id)
		}
		return
	}

	if row.details && row.id != "" {
		if ev, ok := t.Reviews[row.id]; ok {
			applyReviewDetail(ev, row)
			return
		}
		pendingDetails[row.id] = row
	}
}

func applyReviewDetail(ev *ReviewEvent, detail timelineRow) {
	ev.Result = strings.TrimSuffix(detail.commentText, " × 1")
	ev.Votes = ParseVotes(detail.commentText)
}

func containsIdentity(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// eventKey dedupes fold writes per timeline event. Plain history rows may
// carry no event id, in which case the document position stands in.
func eventKey(row timelineRow, docIdx int) string {
	if row.id != "" {
		return row.id
	}
	return fmt.Sprintf("row:%d", docIdx)
}
