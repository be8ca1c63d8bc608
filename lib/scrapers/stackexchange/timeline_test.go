package stackexchange

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	_ "embed"
)

//go:embed timeline_test.html
var timelineFixture string

func parseFixture(t testing.TB, html string) Timeline {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return ParseTimeline(doc)
}

func TestParseTimeline(t *testing.T) {
	timeline := parseFixture(t, timelineFixture)

	require.Equal(t, "100", timeline.AuthorID)

	expectedDeletions := map[string]DeletionEvent{
		"e4": {
			Date:   time.Date(2022, 4, 11, 9, 5, 0, 0, time.UTC),
			By:     []string{"300"},
			Reason: DeletedDuplicate,
		},
		"e7": {
			Date:   time.Date(2022, 4, 12, 10, 0, 0, 0, time.UTC),
			By:     []string{"501", "502", "503", "504"},
			Reason: DeletedReview,
		},
		"e9": {
			Date:   time.Date(2022, 4, 13, 10, 0, 0, 0, time.UTC),
			By:     []string{"100"},
			Reason: DeletedSelf,
		},
		"e11": {
			Date:   time.Date(2022, 4, 14, 10, 0, 0, 0, time.UTC),
			By:     []string{"600"},
			Reason: DeletedDiamondModConv,
		},
		"e13": {
			Date:   time.Date(2022, 4, 15, 10, 0, 0, 0, time.UTC),
			By:     []string{"600"},
			Reason: DeletedDiamondMod,
		},
		"e15": {
			Date:   time.Date(2022, 4, 17, 3, 36, 45, 0, time.UTC),
			By:     []string{"401", "402", "403"},
			Reason: DeletedReputationMod,
		},
	}
	if diff := cmp.Diff(expectedDeletions, timeline.Deletions); diff != "" {
		t.Fatal(diff)
	}

	expectedUndeletions := map[string]UndeletionEvent{
		"e5": {
			Date:   time.Date(2022, 4, 11, 18, 0, 0, 0, time.UTC),
			By:     []string{"401", "402", "403"},
			Reason: UndeletedReputationMod,
		},
		"e8": {
			Date:   time.Date(2022, 4, 12, 15, 0, 0, 0, time.UTC),
			By:     []string{"100"},
			Reason: UndeletedSelf,
		},
		"e10": {
			Date:   time.Date(2022, 4, 13, 11, 0, 0, 0, time.UTC),
			By:     []string{"100"},
			Reason: UndeletedSelf,
		},
		"e12": {
			Date:   time.Date(2022, 4, 14, 11, 0, 0, 0, time.UTC),
			By:     []string{"100"},
			Reason: UndeletedSelf,
		},
		"e14": {
			Date:   time.Date(2022, 4, 15, 11, 0, 0, 0, time.UTC),
			By:     []string{"100"},
			Reason: UndeletedSelf,
		},
		"e16": {
			Date:   time.Date(2022, 4, 17, 4, 40, 12, 0, time.UTC),
			By:     []string{"401", "402", "403"},
			Reason: UndeletedReputationMod,
		},
	}
	if diff := cmp.Diff(expectedUndeletions, timeline.Undeletions); diff != "" {
		t.Fatal(diff)
	}

	expectedReviews := map[string]*ReviewEvent{
		"r201": {
			Link:   "/review/late-answers/201",
			Type:   ReviewLateAnswers,
			Result: "Completed",
			Votes:  map[string]int{"completed": 1},
		},
		"r202": {
			Link:   "/review/suggested-edits/31505074",
			Type:   ReviewSuggestedEdits,
			Result: "Approve × 1, Reject × 2",
			Votes:  map[string]int{"approve": 1, "reject": 2},
		},
	}
	if diff := cmp.Diff(expectedReviews, timeline.Reviews); diff != "" {
		t.Fatal(diff)
	}
}

func TestTimelineLatestEvents(t *testing.T) {
	timeline := parseFixture(t, timelineFixture)

	deletion := timeline.LatestDeletion()
	require.NotNil(t, deletion)
	require.Equal(t, DeletedReputationMod, deletion.Reason)
	require.Equal(t, time.Date(2022, 4, 17, 3, 36, 45, 0, time.UTC), deletion.Date)

	undeletion := timeline.LatestUndeletion()
	require.NotNil(t, undeletion)
	require.Equal(t, UndeletedReputationMod, undeletion.Reason)
	require.Equal(t, time.Date(2022, 4, 17, 4, 40, 12, 0, time.UTC), undeletion.Date)

	// the last undeletion postdates the last deletion
	require.False(t, timeline.Deleted())
}

func TestParseTimelineIdempotent(t *testing.T) {
	first := parseFixture(t, timelineFixture)
	second := parseFixture(t, timelineFixture)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseTimelineSelfNuked(t *testing.T) {
	timeline := parseFixture(t, `
		<table><tbody class="event-rows">
			<tr data-eventid="d1" data-eventtype="history">
				<td class="date"><span class="relativetime" title="2022-01-02 10:00:00Z">Jan 2</span></td>
				<td class="event-type">history</td>
				<td class="event-verb"><span>deleted</span></td>
				<td class="created-by">user4039065</td>
				<td class="event-comment"><span></span></td>
			</tr>
			<tr data-eventid="a1" data-eventtype="history">
				<td class="date"><span class="relativetime" title="2022-01-01 10:00:00Z">Jan 1</span></td>
				<td class="event-type">history</td>
				<td class="event-verb"><span>answered</span></td>
				<td class="created-by">user4039065</td>
				<td class="event-comment"><span></span></td>
			</tr>
		</tbody></table>
	`)

	require.Equal(t, "user4039065", timeline.AuthorID)
	require.Len(t, timeline.Deletions, 1)
	require.Equal(t, DeletedSelfNuked, timeline.Deletions["d1"].Reason)
	require.True(t, timeline.Deleted())
}

func TestParseTimelineDuplicateBeatsSelf(t *testing.T) {
	// a duplicate closure deleted by the author stays a duplicate
	timeline := parseFixture(t, `
		<table><tbody class="event-rows">
			<tr data-eventid="d1" data-eventtype="history">
				<td class="date"><span class="relativetime" title="2022-01-03 10:00:00Z">Jan 3</span></td>
				<td class="event-type">history</td>
				<td class="event-verb"><span>deleted</span></td>
				<td class="created-by"><a href="/users/55/jo">Jo</a></td>
				<td class="event-comment"><span></span></td>
			</tr>
			<tr data-eventid="c1" data-eventtype="comment">
				<td class="date"><span class="relativetime" title="2022-01-03 09:59:00Z">Jan 3</span></td>
				<td class="event-type">comment</td>
				<td class="event-verb"><span>comment</span></td>
				<td class="created-by"><a href="/users/55/jo">Jo</a></td>
				<td class="event-comment"><span>see <a href="https://meta.stackexchange.com/q/104227">this FAQ</a></span></td>
			</tr>
			<tr data-eventid="a1" data-eventtype="history">
				<td class="date"><span class="relativetime" title="2022-01-01 10:00:00Z">Jan 1</span></td>
				<td class="event-type">history</td>
				<td class="event-verb"><span>answered</span></td>
				<td class="created-by"><a href="/users/55/jo">Jo</a></td>
				<td class="event-comment"><span></span></td>
			</tr>
		</tbody></table>
	`)

	require.Equal(t, "55", timeline.AuthorID)
	require.Equal(t, DeletedDuplicate, timeline.Deletions["d1"].Reason)
}

func TestParseTimelineDistantDuplicateCommentIgnored(t *testing.T) {
	// a duplicate comment that is not adjacent to the deletion row must
	// not reclassify it
	timeline := parseFixture(t, `
		<table><tbody class="event-rows">
			<tr data-eventid="d1" data-eventtype="history">
				<td class="date"><span class="relativetime" title="2022-01-05 10:00:00Z">Jan 5</span></td>
				<td class="event-type">history</td>
				<td class="event-verb"><span>deleted</span></td>
				<td class="created-by"><a href="/users/70/mel">Mel</a>, <a href="/users/71/kim">Kim</a>, <a href="/users/72/lou">Lou</a></td>
				<td class="event-comment"><span></span></td>
			</tr>
			<tr data-eventid="v1" data-eventtype="vote">
				<td class="date"><span class="relativetime" title="2022-01-04 10:00:00Z">Jan 4</span></td>
				<td class="event-type">vote</td>
				<td class="event-verb"><span>upvote</span></td>
				<td class="created-by"></td>
				<td class="event-comment"><span></span></td>
			</tr>
			<tr data-eventid="c1" data-eventtype="comment">
				<td class="date"><span class="relativetime" title="2022-01-02 10:00:00Z">Jan 2</span></td>
				<td class="event-type">comment</td>
				<td class="event-verb"><span>comment</span></td>
				<td class="created-by"><a href="/users/55/jo">Jo</a></td>
				<td class="event-comment"><span>see <a href="https://meta.stackexchange.com/q/104227">this FAQ</a></span></td>
			</tr>
			<tr data-eventid="a1" data-eventtype="history">
				<td class="date"><span class="relativetime" title="2022-01-01 10:00:00Z">Jan 1</span></td>
				<td class="event-type">history</td>
				<td class="event-verb"><span>asked</span></td>
				<td class="created-by"><a href="/users/55/jo">Jo</a></td>
				<td class="event-comment"><span></span></td>
			</tr>
		</tbody></table>
	`)

	require.Equal(t, DeletedReputationMod, timeline.Deletions["d1"].Reason)
}

func TestParseTimelineEmpty(t *testing.T) {
	timeline := parseFixture(t, `<table><tbody class="event-rows"></tbody></table>`)

	require.Empty(t, timeline.AuthorID)
	require.Empty(t, timeline.Deletions)
	require.Empty(t, timeline.Undeletions)
	require.Empty(t, timeline.Reviews)
	require.Nil(t, timeline.LatestDeletion())
	require.Nil(t, timeline.LatestUndeletion())
	require.False(t, timeline.Deleted())
}
