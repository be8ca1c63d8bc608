package detector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spotdetector/lib/scrapers/stackexchange"
)

const (
	reviewSweepInterval = 30 * time.Minute
	postSweepInterval   = 15 * time.Minute
	// breathing room between timeline fetches within one post sweep
	timelineDelay = 2 * time.Second
	editWatchBack = time.Hour
)

// StartDaemons launches every background loop and returns immediately.
// The loops run until the context dies.
func (s Service) StartDaemons(ctx context.Context) {
	go s.reviewSweepDaemon(ctx)
	go s.postSweepDaemon(ctx)
	go s.reportDaemon(ctx)
	if s.api != nil {
		go s.suggestedEditsDaemon(ctx)
	}
}

func (s Service) reviewSweepDaemon(ctx context.Context) {
	s.sweepAllQueues(ctx)

	ticker := time.NewTicker(reviewSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepAllQueues(ctx)
		}
	}
}

func (s Service) sweepAllQueues(ctx context.Context) {
	for _, reviewType := range stackexchange.AllReviewTypes {
		_, err := s.ScrapeReviews(ctx, reviewType)
		if err != nil {
			slog.ErrorContext(ctx, "review sweep", "type", reviewType, "err", err)
		}
	}
}

func (s Service) postSweepDaemon(ctx context.Context) {
	ticker := time.NewTicker(postSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.refreshUndecidedPosts(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "post sweep", "err", err)
			}
		}
	}
}

// refreshUndecidedPosts re-scrapes timelines of posts whose deletion
// state is still unknown, in series to stay polite to the site.
func (s Service) refreshUndecidedPosts(ctx context.Context) error {
	ids, err := s.qry.GetUndecidedPosts(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		_, err := s.ScrapePost(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "scrape timeline", "post_id", id, "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(timelineDelay):
		}
	}
	return nil
}

// reportDaemon posts the weekly suspicious-reviewer report: friday,
// 03:00 UTC, matching the bot's historical schedule.
func (s Service) reportDaemon(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			if now.Weekday() != time.Friday || now.Hour() != 3 {
				continue
			}
			report, err := s.GenerateReport(ctx, s.config.ReportDays, s.config.ReportReviews)
			if err != nil {
				slog.ErrorContext(ctx, "weekly report", "err", err)
				continue
			}
			if report == nil {
				continue
			}
			s.notify(ctx, fmt.Sprintf(
				"Your [%d-day report](%s) has arrived. %d user%s found matching %d or more possible bad reviews.",
				s.config.ReportDays, report.URL,
				report.Users, plural(report.Users),
				s.config.ReportReviews,
			))
		}
	}
}

// suggestedEditsDaemon cross-checks recently rejected suggested edits
// against the timeline's review outcome and flags reviews that scraped
// past two rejections on one approval.
func (s Service) suggestedEditsDaemon(ctx context.Context) {
	ticker := time.NewTicker(editWatchBack)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.watchSuggestedEdits(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "suggested edit watch", "err", err)
			}
		}
	}
}

func (s Service) watchSuggestedEdits(ctx context.Context) error {
	edits, err := s.api.RejectedSuggestedEdits(ctx, time.Now().Add(-editWatchBack))
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "rejected edits found", "count", len(edits))

	for _, edit := range edits {
		timeline, err := s.ScrapePost(ctx, edit.PostId)
		if err != nil {
			slog.WarnContext(ctx, "scrape edited post", "post_id", edit.PostId, "err", err)
			continue
		}

		for _, review := range timeline.Reviews {
			if review.Type != stackexchange.ReviewSuggestedEdits {
				continue
			}
			if review.Votes["reject"] != 2 || review.Votes["approve"] != 1 {
				continue
			}
			s.notify(ctx, fmt.Sprintf(
				"[potentially bad review found]\nvotes: 2 Rejected, 1 Approved\nedit summary: %q\nreview: %s\npost type: %s",
				edit.Comment,
				s.browser.Resolve(review.Link),
				edit.PostType,
			))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(timelineDelay):
		}
	}
	return nil
}

func (s Service) notify(ctx context.Context, message string) {
	if s.chat == nil {
		slog.InfoContext(ctx, "chat disabled, dropping notification", "message", message)
		return
	}
	err := s.chat.SendMessage(ctx, message)
	if err != nil {
		slog.ErrorContext(ctx, "send chat message", "err", err)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
