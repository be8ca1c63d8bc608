package detector

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"spotdetector/lib/scrapers/stackexchange"
	"spotdetector/lib/testutil"
	"spotdetector/services/detector/db"

	"github.com/stretchr/testify/require"
)

func setupService(t testing.TB, config Config) Service {
	result, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "detector",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)
	t.Cleanup(func() { result.DB.Close() })

	browser, err := stackexchange.NewBrowser(stackexchange.BrowserOptions{
		Host: "https://stackoverflow.com",
	})
	require.NoError(t, err)

	return NewService(result.DB, browser, nil, nil, config)
}

func TestPersistReviews(t *testing.T) {
	service := setupService(t, Config{})
	ctx := context.Background()

	records := []stackexchange.ReviewRecord{
		{
			ReviewID:   "31900001",
			ReviewType: stackexchange.ReviewLowQualityPosts,
			UserID:     "10",
			UserName:   "Alice",
			PostID:     100,
			PostType:   stackexchange.PostQuestion,
			Date:       time.Now().Add(-time.Hour),
			Action:     "Looks OK",
		},
		{
			ReviewID:   "31900002",
			ReviewType: stackexchange.ReviewLowQualityPosts,
			UserID:     "20",
			UserName:   "Bob",
			PostID:     100,
			PostType:   stackexchange.PostQuestion,
			Date:       time.Now().Add(-30 * time.Minute),
			Action:     "Recommend Deletion",
		},
	}
	require.NoError(t, service.persistReviews(ctx, records))
	// replaying the same page must not fail or duplicate anything
	require.NoError(t, service.persistReviews(ctx, records))

	latest, err := service.qry.GetLatestReview(ctx, string(stackexchange.ReviewLowQualityPosts))
	require.NoError(t, err)
	require.Equal(t, "31900002", latest.ReviewId)
	require.Equal(t, "20", latest.UserId)

	// post 100 passed a review and has no settled deletion state yet
	ids, err := service.qry.GetUndecidedPosts(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{100}, ids)
}

func TestGenerateReport(t *testing.T) {
	var received reportRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		require.NotEmpty(t, r.Header.Get("X-Request-Id"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reportResponse{
			ReportURL: "https://reports.example.com/report/abc",
		})
	}))
	defer server.Close()

	service := setupService(t, Config{
		ReportsEndpoint: server.URL,
		StackappsPost:   "12345",
	})
	ctx := context.Background()

	require.NoError(t, service.qry.AddPost(ctx, 1, "question"))
	require.NoError(t, service.qry.UpdatePostStatus(ctx, db.UpdatePostStatusParams{
		Id: 1, Deleted: true,
		DeleteReason: sql.NullString{String: "reputation_mod", Valid: true},
	}))
	require.NoError(t, service.qry.AddReview(ctx, db.AddReviewParams{
		ReviewId: "r1", ReviewType: "first-posts",
		UserId: "10", UserName: "Alice",
		PostId: 1, Date: time.Now().Add(-time.Hour).Unix(),
		Result: "No Action Needed",
	}))

	report, err := service.GenerateReport(ctx, 30, 1)
	require.NoError(t, err)
	require.NotNil(t, report)
	require.Equal(t, "https://reports.example.com/report/abc", report.URL)
	require.Equal(t, 1, report.Users)

	require.Equal(t, "SpotDetector", received.AppName)
	require.Equal(t, "https://stackapps.com/questions/12345", received.AppURL)
	require.Len(t, received.Fields, 1)
	require.Equal(t, "Alice", received.Fields[0][0].Name)
	require.Equal(t, "https://stackoverflow.com/users/10", received.Fields[0][0].Value)
}

func TestGenerateReportNobodyMatched(t *testing.T) {
	service := setupService(t, Config{ReportsEndpoint: "http://unused.invalid"})

	report, err := service.GenerateReport(context.Background(), 30, 1)
	require.NoError(t, err)
	require.Nil(t, report)
}
