package stackexchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"spotdetector/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const apiBase = "https://api.stackexchange.com/2.3"

// Api is a thin client for the Stack Exchange API, used where the site
// exposes data more reliably than its HTML does (rejected suggested
// edits). It honors the API's backoff field between calls.
type Api struct {
	Http *resty.Client
	Key  string
	Site string

	mu        sync.Mutex
	nextAllow time.Time
}

func NewApi(key, site string) *Api {
	client := resty.New()
	client.SetBaseURL(apiBase)
	telemetry.InstrumentResty(client, "scrapers/stackexchange/api")
	return &Api{
		Http: client,
		Key:  key,
		Site: site,
	}
}

type SuggestedEdit struct {
	SuggestedEditId int64  `json:"suggested_edit_id"`
	PostId          int64  `json:"post_id"`
	PostType        string `json:"post_type"`
	Comment         string `json:"comment"`
	RejectionDate   int64  `json:"rejection_date"`
}

type apiWrapper[T any] struct {
	Items   []T   `json:"items"`
	Backoff int64 `json:"backoff"`
	HasMore bool  `json:"has_more"`
}

// RejectedSuggestedEdits returns the suggested edits rejected since the
// given time, newest rejection first.
func (a *Api) RejectedSuggestedEdits(ctx context.Context, from time.Time) ([]SuggestedEdit, error) {
	ctx, span := tracer.Start(ctx, "api:RejectedSuggestedEdits")
	defer span.End()

	var edits []SuggestedEdit
	for page := 1; ; page++ {
		if err := a.waitBackoff(ctx); err != nil {
			return nil, err
		}

		res, err := a.Http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"key":      a.Key,
				"site":     a.Site,
				"sort":     "rejection",
				"order":    "desc",
				"fromdate": fmt.Sprintf("%d", from.Unix()),
				"page":     fmt.Sprintf("%d", page),
				"pagesize": "100",
			}).
			Get("/suggested-edits")
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch suggested edits")
			return nil, err
		}

		var wrapper apiWrapper[SuggestedEdit]
		if err := json.Unmarshal(res.Body(), &wrapper); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to decode suggested edits")
			return nil, err
		}
		a.noteBackoff(wrapper.Backoff)

		for _, edit := range wrapper.Items {
			if edit.RejectionDate == 0 {
				continue
			}
			edits = append(edits, edit)
		}
		if !wrapper.HasMore {
			break
		}
	}

	span.SetAttributes(attribute.Int("edits", len(edits)))
	return edits, nil
}

type Privilege struct {
	Reputation  int64  `json:"reputation"`
	Description string `json:"description"`
	ShortDesc   string `json:"short_description"`
}

// Privileges lists the site's reputation privilege thresholds, lowest
// first.
func (a *Api) Privileges(ctx context.Context) ([]Privilege, error) {
	ctx, span := tracer.Start(ctx, "api:Privileges")
	defer span.End()

	if err := a.waitBackoff(ctx); err != nil {
		return nil, err
	}

	res, err := a.Http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":  a.Key,
			"site": a.Site,
		}).
		Get("/privileges")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch privileges")
		return nil, err
	}

	var wrapper apiWrapper[Privilege]
	if err := json.Unmarshal(res.Body(), &wrapper); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode privileges")
		return nil, err
	}
	a.noteBackoff(wrapper.Backoff)
	return wrapper.Items, nil
}

func (a *Api) waitBackoff(ctx context.Context) error {
	a.mu.Lock()
	wait := time.Until(a.nextAllow)
	a.mu.Unlock()
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func (a *Api) noteBackoff(seconds int64) {
	if seconds <= 0 {
		return
	}
	a.mu.Lock()
	a.nextAllow = time.Now().Add(time.Duration(seconds) * time.Second)
	a.mu.Unlock()
}
