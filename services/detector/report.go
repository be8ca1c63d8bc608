package detector

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// reportField is one entry of the reports-server payload. Type is either
// "link", "fields" or empty for a plain value.
type reportField struct {
	Id     string        `json:"id"`
	Name   string        `json:"name"`
	Value  interface{}   `json:"value,omitempty"`
	Type   string        `json:"type,omitempty"`
	Fields []reportField `json:"fields,omitempty"`
}

type reportRequest struct {
	AppName string          `json:"appName"`
	AppURL  string          `json:"appURL"`
	Fields  [][]reportField `json:"fields"`
}

type reportResponse struct {
	ReportURL string `json:"reportURL"`
}

type Report struct {
	URL   string
	Users int
}

var reportHttp = resty.New()

// GenerateReport builds the suspicious-reviewer report for the window and
// threshold, publishes it to the reports server, and returns its url.
// A nil report (no error) means nobody matched.
func (s Service) GenerateReport(ctx context.Context, days, minReviews int) (*Report, error) {
	ctx, span := tracer.Start(ctx, "GenerateReport")
	defer span.End()
	requestId := uuid.NewString()
	span.SetAttributes(
		attribute.Int("days", days),
		attribute.Int("min_reviews", minReviews),
		attribute.String("request_id", requestId),
	)

	reviewers, err := s.qry.GetSuspiciousReviewers(ctx, days, minReviews)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reviewer query failed")
		return nil, err
	}
	if len(reviewers) == 0 {
		return nil, nil
	}

	var fields [][]reportField
	for _, reviewer := range reviewers {
		badReviews, err := s.qry.GetReviewerBadReviews(ctx, reviewer.UserId, days)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bad review query failed")
			return nil, err
		}

		reviewFields := make([]reportField, len(badReviews))
		for i, review := range badReviews {
			reviewFields[i] = reportField{
				Id:    fmt.Sprintf("report%d", i),
				Name:  fmt.Sprintf("%s (%s)", review.ReviewType, review.DeleteReason),
				Value: s.browser.Resolve(fmt.Sprintf("/review/%s/%s", review.ReviewType, review.ReviewId)),
				Type:  "link",
			}
		}

		fields = append(fields, []reportField{
			{
				Id:    "user",
				Name:  reviewer.UserName,
				Value: s.browser.Resolve(fmt.Sprintf("/users/%s", reviewer.UserId)),
				Type:  "link",
			},
			{
				Id:    "deletedReviews",
				Name:  "Deleted Reviews",
				Value: reviewer.Reviews,
			},
			{
				Id:     "reviews",
				Name:   "Reviews",
				Type:   "fields",
				Fields: reviewFields,
			},
		})
	}

	var out reportResponse
	res, err := reportHttp.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", requestId).
		SetBody(reportRequest{
			AppName: "SpotDetector",
			AppURL:  fmt.Sprintf("https://stackapps.com/questions/%s", s.config.StackappsPost),
			Fields:  fields,
		}).
		SetResult(&out).
		Post(s.config.ReportsEndpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish report")
		return nil, err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, res.Status())
		return nil, fmt.Errorf("publish report: status %s", res.Status())
	}

	return &Report{
		URL:   out.ReportURL,
		Users: len(reviewers),
	}, nil
}
