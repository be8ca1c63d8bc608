package detector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"spotdetector/lib/scrapers/sechat"
	"spotdetector/lib/scrapers/stackexchange"
	"spotdetector/services/detector/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/detector")

type Config struct {
	// pages per review queue sweep; zero falls back to the library's
	// runaway-scan ceiling
	ReviewPages int `json:"review_pages"`
	// suspicious-reviewer report defaults
	ReportDays      int    `json:"report_days"`
	ReportReviews   int    `json:"report_reviews"`
	ReportsEndpoint string `json:"reports_endpoint"`
	StackappsPost   string `json:"stackapps_post"`
	// SE API
	ApiKey  string `json:"api_key"`
	ApiSite string `json:"api_site"`
}

type Service struct {
	db      *sql.DB
	qry     *db.Queries
	browser *stackexchange.Browser
	api     *stackexchange.Api
	// nil when chat reporting is disabled
	chat   *sechat.Client
	config Config
}

func NewService(database *sql.DB, browser *stackexchange.Browser, api *stackexchange.Api, chat *sechat.Client, config Config) Service {
	return Service{
		db:      database,
		qry:     db.New(database),
		browser: browser,
		api:     api,
		chat:    chat,
		config:  config,
	}
}

// ScrapeReviews sweeps one review queue's history, persisting page by
// page so a fetch failure deep into the scan cannot discard what earlier
// pages already classified.
func (s Service) ScrapeReviews(ctx context.Context, reviewType stackexchange.ReviewType) (int, error) {
	ctx, span := tracer.Start(ctx, "ScrapeReviews")
	defer span.End()
	span.SetAttributes(attribute.String("review_type", string(reviewType)))

	var cursor *stackexchange.Cursor
	latest, err := s.qry.GetLatestReview(ctx, string(reviewType))
	if err == nil {
		cursor = &stackexchange.Cursor{
			ReviewID: latest.ReviewId,
			UserID:   latest.UserId,
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load cursor")
		return 0, err
	}

	records, err := stackexchange.ScrapeReviewHistory(ctx, stackexchange.HistoryScan{
		Type:        reviewType,
		Cursor:      cursor,
		Fetch:       s.browser.ReviewHistoryPages(reviewType),
		PageCeiling: s.config.ReviewPages,
		OnPage:      s.persistReviews,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "history scan failed")
		return 0, err
	}

	slog.InfoContext(ctx, "finished review sweep", "type", reviewType, "found", len(records))
	return len(records), nil
}

func (s Service) persistReviews(ctx context.Context, records []stackexchange.ReviewRecord) error {
	for _, record := range records {
		err := s.qry.AddPost(ctx, record.PostID, string(record.PostType))
		if err != nil {
			return err
		}
		err = s.qry.AddReview(ctx, db.AddReviewParams{
			ReviewId:   record.ReviewID,
			ReviewType: string(record.ReviewType),
			UserId:     record.UserID,
			UserName:   record.UserName,
			PostId:     record.PostID,
			Date:       record.Date.Unix(),
			Result:     record.Action,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ScrapePost classifies one post's timeline and settles its deletion
// state in the store.
func (s Service) ScrapePost(ctx context.Context, postId int64) (stackexchange.Timeline, error) {
	ctx, span := tracer.Start(ctx, "ScrapePost")
	defer span.End()
	span.SetAttributes(attribute.Int64("post_id", postId))

	doc, err := s.browser.ScrapeDocument(ctx, timelinePath(postId))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch timeline")
		return stackexchange.Timeline{}, err
	}

	timeline := stackexchange.ParseTimeline(doc)

	status := db.UpdatePostStatusParams{Id: postId}
	if timeline.Deleted() {
		status.Deleted = true
		status.DeleteReason = sql.NullString{
			String: string(timeline.LatestDeletion().Reason),
			Valid:  true,
		}
	}
	err = s.qry.UpdatePostStatus(ctx, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update post")
		return stackexchange.Timeline{}, err
	}

	slog.InfoContext(ctx, "scraped timeline",
		"post_id", postId,
		"deleted", status.Deleted,
		"reason", status.DeleteReason.String,
	)
	return timeline, nil
}

func timelinePath(postId int64) string {
	return fmt.Sprintf("/posts/%d/timeline", postId)
}
