package stackexchange

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"spotdetector/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/stackexchange")

// DefaultPageCeiling bounds a history scan that never reaches its cursor.
// It exists purely as a runaway-scrape safety net.
const DefaultPageCeiling = 1000

// PageProvider fetches one page of a review queue's history. Retry and
// backoff policy live behind this capability; the paginator treats any
// error as fatal to the scan.
type PageProvider func(ctx context.Context, page int) (*goquery.Document, error)

// HistoryScan configures one sweep over a review queue's history.
type HistoryScan struct {
	Type   ReviewType
	Cursor *Cursor
	Fetch  PageProvider
	// zero means DefaultPageCeiling
	PageCeiling int
	// OnPage, when set, receives each page's records as soon as the page
	// is parsed, before the next fetch. Persisting here means a fetch
	// failure later in the scan cannot discard earlier pages.
	OnPage func(ctx context.Context, records []ReviewRecord) error
}

// ScrapeReviewHistory walks a review queue's history pages starting at
// page 1 and accumulates every record newer than the scan's cursor. The
// scan ends at the cursor match (excluded from the result), at the page
// ceiling, or at the first page with no parseable rows.
func ScrapeReviewHistory(ctx context.Context, scan HistoryScan) ([]ReviewRecord, error) {
	ctx, span := tracer.Start(ctx, "ScrapeReviewHistory")
	defer span.End()
	span.SetAttributes(attribute.String("review_type", string(scan.Type)))

	ceiling := scan.PageCeiling
	if ceiling <= 0 {
		ceiling = DefaultPageCeiling
	}

	var records []ReviewRecord
	for page := 1; page <= ceiling; page++ {
		doc, err := scan.Fetch(ctx, page)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch history page")
			return nil, fmt.Errorf("fetch history page %d: %w", page, err)
		}

		pageRecords, hitCursor := parseReviewPage(doc, scan.Type, scan.Cursor)
		if scan.OnPage != nil && len(pageRecords) > 0 {
			if err := scan.OnPage(ctx, pageRecords); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "page sink failed")
				return nil, err
			}
		}
		records = append(records, pageRecords...)

		if hitCursor || len(pageRecords) == 0 {
			break
		}
	}

	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}

// parseReviewPage maps each data row of a history page into a
// ReviewRecord. Rows missing any of the expected links (section headers,
// malformed markup) are skipped, never an error. The boolean reports
// whether the cursor record was reached; the cursor record itself is not
// emitted.
func parseReviewPage(doc *goquery.Document, reviewType ReviewType, cursor *Cursor) ([]ReviewRecord, bool) {
	var records []ReviewRecord
	hitCursor := false

	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return true
		}
		userCell := cells.Eq(0)
		taskCell := cells.Eq(1)
		actionCell := cells.Eq(2)
		dateCell := cells.Eq(3)

		// the task cell links both the post and its suggested-edit task;
		// only the post link carries the id we want
		userA := htmlutil.Anchors(userCell.Find("a").First())
		postA := htmlutil.Anchors(taskCell.Find("a:not([href*='suggested-edits'])").First())
		actionA := htmlutil.Anchors(actionCell.Find("a").First())
		if len(userA) == 0 || len(postA) == 0 || len(actionA) == 0 {
			return true
		}

		postID, postType, err := postFromHref(postA[0].Href)
		if err != nil {
			return true
		}

		date, ok := cellDate(dateCell, dateHistory)
		if !ok {
			return true
		}

		record := ReviewRecord{
			ReviewID:   reviewIDFromHref(actionA[0].Href),
			ReviewType: reviewType,
			UserID:     userIDFromHref(userA[0].Href),
			UserName:   cellText(userCell),
			PostID:     postID,
			PostType:   postType,
			Date:       date,
			Action:     actionA[0].Name,
		}
		if record.UserID == "" {
			record.UserID = record.UserName
		}

		if cursor != nil && record.ReviewID == cursor.ReviewID && record.UserID == cursor.UserID {
			hitCursor = true
			return false
		}

		records = append(records, record)
		return true
	})

	return records, hitCursor
}

// postFromHref tells questions and answers apart by the link shape: an
// answer link carries a fragment naming the answer id, a question link is
// a bare /questions/<id>/... path.
func postFromHref(href string) (int64, PostType, error) {
	u, err := url.Parse(href)
	if err != nil {
		return 0, "", err
	}

	if u.Fragment != "" {
		id, err := strconv.ParseInt(u.Fragment, 10, 64)
		if err != nil {
			return 0, "", fmt.Errorf("answer fragment %q: %w", u.Fragment, err)
		}
		return id, PostAnswer, nil
	}

	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "questions" {
		return 0, "", fmt.Errorf("unrecognized post link %q", href)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("question id %q: %w", parts[1], err)
	}
	return id, PostQuestion, nil
}

// reviewIDFromHref takes the trailing path segment of a
// /review/<queue>/<id> action link.
func reviewIDFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	path := strings.TrimSuffix(u.Path, "/")
	return path[strings.LastIndex(path, "/")+1:]
}
