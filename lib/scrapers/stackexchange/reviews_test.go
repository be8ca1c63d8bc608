package stackexchange

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"spotdetector/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	_ "embed"
)

//go:embed review_history_test.html
var reviewHistoryFixture string

func docFromString(t testing.TB, html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func singlePage(t testing.TB, html string) PageProvider {
	return func(ctx context.Context, page int) (*goquery.Document, error) {
		if page > 1 {
			return docFromString(t, "<table></table>"), nil
		}
		return docFromString(t, html), nil
	}
}

func TestScrapeReviewHistory(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:stackexchange")
	defer cleanup()

	records, err := ScrapeReviewHistory(context.Background(), HistoryScan{
		Type:  ReviewLowQualityPosts,
		Fetch: singlePage(t, reviewHistoryFixture),
	})
	if err != nil {
		t.Fatal(err)
	}

	// the header row and the row whose task link is gone are skipped
	expected := []ReviewRecord{
		{
			ReviewID:   "31900001",
			ReviewType: ReviewLowQualityPosts,
			UserID:     "116908",
			UserName:   "Carl Norum",
			PostID:     71821291,
			PostType:   PostQuestion,
			Date:       time.Date(2022, 4, 10, 23, 30, 16, 0, time.UTC),
			Action:     "No Action Needed",
		},
		{
			ReviewID:   "31900002",
			ReviewType: ReviewLowQualityPosts,
			UserID:     "200",
			UserName:   "Jane",
			PostID:     12345,
			PostType:   PostAnswer,
			Date:       time.Date(2022, 4, 10, 22, 0, 0, 0, time.UTC),
			Action:     "Recommend Deletion",
		},
		{
			ReviewID:   "31900003",
			ReviewType: ReviewLowQualityPosts,
			UserID:     "300",
			UserName:   "Bob",
			PostID:     6789,
			PostType:   PostQuestion,
			Date:       time.Date(2022, 4, 10, 21, 15, 0, 0, time.UTC),
			Action:     "Looks OK",
		},
		{
			ReviewID:   "31900004",
			ReviewType: ReviewLowQualityPosts,
			UserID:     "400",
			UserName:   "Ann",
			PostID:     4242,
			PostType:   PostQuestion,
			Date:       time.Date(2022, 4, 10, 20, 0, 0, 0, time.UTC),
			Action:     "Delete",
		},
		{
			ReviewID:   "31900005",
			ReviewType: ReviewLowQualityPosts,
			UserID:     "500",
			UserName:   "Zed",
			PostID:     4242,
			PostType:   PostQuestion,
			Date:       time.Date(2022, 4, 10, 19, 0, 0, 0, time.UTC),
			Action:     "Looks OK",
		},
	}
	if diff := cmp.Diff(expected, records); diff != "" {
		t.Fatal(diff)
	}
}

func TestScrapeReviewHistoryCursor(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:stackexchange")
	defer cleanup()

	fetches := 0
	records, err := ScrapeReviewHistory(context.Background(), HistoryScan{
		Type:   ReviewLowQualityPosts,
		Cursor: &Cursor{ReviewID: "31900004", UserID: "400"},
		Fetch: func(ctx context.Context, page int) (*goquery.Document, error) {
			fetches++
			return docFromString(t, reviewHistoryFixture), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	// everything newer than the cursor record, the cursor record itself
	// and anything older are left out, and no further page is fetched
	require.Equal(t, 1, fetches)
	require.Len(t, records, 3)
	for _, record := range records {
		require.NotEqual(t, "31900004", record.ReviewID)
		require.NotEqual(t, "31900005", record.ReviewID)
	}
}

func TestScrapeReviewHistoryMultiplePages(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:stackexchange")
	defer cleanup()

	row := func(reviewId, userId string, date string) string {
		return fmt.Sprintf(`<tr>
			<td><a href="/users/%s/someone">Someone</a></td>
			<td><a href="/questions/100/title">Title</a></td>
			<td><a href="/review/first-posts/%s">Looks OK</a></td>
			<td><span class="history-date" title="%s">date</span></td>
		</tr>`, userId, reviewId, date)
	}
	pages := []string{
		"<table>" + row("1", "10", "2022-04-12 10:00:00Z") + row("2", "11", "2022-04-12 09:00:00Z") + "</table>",
		"<table>" + row("3", "12", "2022-04-12 08:00:00Z") + row("4", "13", "2022-04-12 07:00:00Z") + "</table>",
	}

	fetches := 0
	var batches [][]ReviewRecord
	records, err := ScrapeReviewHistory(context.Background(), HistoryScan{
		Type:   ReviewFirstPosts,
		Cursor: &Cursor{ReviewID: "4", UserID: "13"},
		Fetch: func(ctx context.Context, page int) (*goquery.Document, error) {
			fetches++
			require.LessOrEqual(t, page, len(pages))
			return docFromString(t, pages[page-1]), nil
		},
		OnPage: func(ctx context.Context, records []ReviewRecord) error {
			batches = append(batches, records)
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, 2, fetches)
	require.Len(t, records, 3)
	require.Equal(t, "1", records[0].ReviewID)
	require.Equal(t, "3", records[2].ReviewID)

	// each page is handed to the sink as soon as it parses
	require.Len(t, batches, 2)
	require.Len(t, batches[0], 2)
	require.Len(t, batches[1], 1)
}

func TestScrapeReviewHistoryStopsOnEmptyPage(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:stackexchange")
	defer cleanup()

	fetches := 0
	records, err := ScrapeReviewHistory(context.Background(), HistoryScan{
		Type: ReviewLateAnswers,
		Fetch: func(ctx context.Context, page int) (*goquery.Document, error) {
			fetches++
			return docFromString(t, "<table></table>"), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, 1, fetches)
	require.Empty(t, records)
}

func TestScrapeReviewHistoryPageCeiling(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:stackexchange")
	defer cleanup()

	pageHtml := `<table><tr>
		<td><a href="/users/10/someone">Someone</a></td>
		<td><a href="/questions/100/title">Title</a></td>
		<td><a href="/review/first-posts/1">Looks OK</a></td>
		<td><span class="history-date" title="2022-04-12 10:00:00Z">date</span></td>
	</tr></table>`

	fetches := 0
	records, err := ScrapeReviewHistory(context.Background(), HistoryScan{
		Type:        ReviewFirstPosts,
		PageCeiling: 3,
		Fetch: func(ctx context.Context, page int) (*goquery.Document, error) {
			fetches++
			return docFromString(t, pageHtml), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, 3, fetches)
	require.Len(t, records, 3)
}

func TestScrapeReviewHistoryFetchError(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:stackexchange")
	defer cleanup()

	_, err := ScrapeReviewHistory(context.Background(), HistoryScan{
		Type: ReviewFirstPosts,
		Fetch: func(ctx context.Context, page int) (*goquery.Document, error) {
			return nil, fmt.Errorf("connection reset")
		},
	})
	require.Error(t, err)
}

func TestPostFromHref(t *testing.T) {
	id, postType, err := postFromHref("/questions/71821291/parse-error-in-makefile")
	require.NoError(t, err)
	require.Equal(t, int64(71821291), id)
	require.Equal(t, PostQuestion, postType)

	id, postType, err = postFromHref("/questions/6789/some-title/12345#12345")
	require.NoError(t, err)
	require.Equal(t, int64(12345), id)
	require.Equal(t, PostAnswer, postType)

	_, _, err = postFromHref("/review/low-quality-posts/31900001")
	require.Error(t, err)
}

func TestReviewIDFromHref(t *testing.T) {
	require.Equal(t, "31900001", reviewIDFromHref("/review/low-quality-posts/31900001"))
	require.Equal(t, "201", reviewIDFromHref("https://stackoverflow.com/review/late-answers/201/"))
}
