package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// AddPost asserts a post's existence; it is a no-op when the post is
// already known.
func (q *Queries) AddPost(ctx context.Context, id int64, postType string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO posts (id, type) VALUES (?, ?)
	`, id, postType)
	return err
}

type AddReviewParams struct {
	ReviewId   string
	ReviewType string
	UserId     string
	UserName   string
	PostId     int64
	Date       int64
	Result     string
}

// AddReview inserts a review record. Re-ingesting a record already seen
// in a previous sweep is expected and resolves to a no-op; any other
// constraint failure propagates.
func (q *Queries) AddReview(ctx context.Context, arg AddReviewParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO reviews (review_id, review_type, user_id, user_name, post_id, date, review_result)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (review_id, user_id) DO NOTHING
	`, arg.ReviewId, arg.ReviewType, arg.UserId, arg.UserName, arg.PostId, arg.Date, arg.Result)
	return err
}

type LatestReviewRow struct {
	ReviewId string
	UserId   string
}

// GetLatestReview returns the most recently ingested review of a queue,
// or sql.ErrNoRows when the queue has never been swept.
func (q *Queries) GetLatestReview(ctx context.Context, reviewType string) (LatestReviewRow, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT review_id, user_id
		FROM reviews
		WHERE review_type = ?
		ORDER BY date DESC
		LIMIT 1
	`, reviewType)

	var out LatestReviewRow
	err := row.Scan(&out.ReviewId, &out.UserId)
	return out, err
}

type UpdatePostStatusParams struct {
	Id           int64
	Deleted      bool
	DeleteReason sql.NullString
}

func (q *Queries) UpdatePostStatus(ctx context.Context, arg UpdatePostStatusParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE posts
		SET deleted = ?, delete_reason = ?
		WHERE id = ?
	`, arg.Deleted, arg.DeleteReason, arg.Id)
	return err
}

// GetUndecidedPosts lists posts whose review outcome said "fine" but
// whose deletion state has not been settled yet, most recently reviewed
// first. These are the posts worth re-scraping timelines for.
func (q *Queries) GetUndecidedPosts(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT p.id
		FROM posts p
		LEFT JOIN reviews r ON p.id = r.post_id
		WHERE r.review_result IN ('No Action Needed', 'Looks OK')
		AND p.deleted IS NULL
		GROUP BY p.id
		ORDER BY MAX(r.date) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type SuspiciousReviewerRow struct {
	UserId      string
	UserName    string
	Reviews     int64
	FpLaReviews int64
}

// GetSuspiciousReviewers finds users whose pass-style reviews ("Looks
// OK" on low-quality-posts, "No Action Needed" on first-posts or
// late-answers) sit on posts that were later deleted for a reason other
// than the author's own doing, within the window, at or above the review
// threshold.
func (q *Queries) GetSuspiciousReviewers(ctx context.Context, days int, minReviews int) ([]SuspiciousReviewerRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT r.user_id, r.user_name,
			count(r.review_id) AS reviews,
			SUM(r.review_type IN ('first-posts', 'late-answers')) AS fpla_count
		FROM reviews r
		LEFT JOIN posts p ON p.id = r.post_id
		LEFT JOIN (
			SELECT review_id, SUM(review_result = 'Looks OK') AS ok
			FROM reviews
			WHERE review_type = 'low-quality-posts'
			GROUP BY review_id
		) lqc ON lqc.review_id = r.review_id
		WHERE p.deleted = 1
		AND datetime(r.date, 'unixepoch') > datetime('now', '-' || ? || ' days')
		AND p.delete_reason NOT IN ('self', 'self_nuked', 'duplicate')
		AND (
			(
				r.review_result = 'Looks OK'
				AND r.review_type = 'low-quality-posts'
				AND (lqc.ok = 1 OR p.delete_reason = 'diamond_mod')
			)
			OR
			(
				r.review_result = 'No Action Needed'
				AND r.review_type IN ('first-posts', 'late-answers')
			)
		)
		GROUP BY r.user_id
		HAVING reviews >= ? AND fpla_count > 0
		ORDER BY reviews DESC
	`, days, minReviews)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SuspiciousReviewerRow
	for rows.Next() {
		var row SuspiciousReviewerRow
		if err := rows.Scan(&row.UserId, &row.UserName, &row.Reviews, &row.FpLaReviews); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type ReviewerBadReviewRow struct {
	ReviewId     string
	ReviewType   string
	DeleteReason string
}

// GetReviewerBadReviews lists the individual questionable reviews behind
// one user's entry in the suspicious-reviewer report.
func (q *Queries) GetReviewerBadReviews(ctx context.Context, userId string, days int) ([]ReviewerBadReviewRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT r.review_id, r.review_type, p.delete_reason
		FROM reviews r
		LEFT JOIN posts p ON p.id = r.post_id
		LEFT JOIN (
			SELECT review_id, SUM(review_result = 'Looks OK') AS ok
			FROM reviews
			WHERE review_type = 'low-quality-posts'
			GROUP BY review_id
		) lqc ON lqc.review_id = r.review_id
		WHERE p.deleted = 1
		AND datetime(r.date, 'unixepoch') > datetime('now', '-' || ? || ' days')
		AND p.delete_reason NOT IN ('self', 'self_nuked')
		AND (
			(
				r.review_result = 'Looks OK'
				AND r.review_type = 'low-quality-posts'
				AND (lqc.ok = 1 OR p.delete_reason = 'diamond_mod')
			)
			OR
			(
				r.review_result = 'No Action Needed'
				AND r.review_type IN ('first-posts', 'late-answers')
			)
		)
		AND r.user_id = ?
		ORDER BY r.date DESC
	`, days, userId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReviewerBadReviewRow
	for rows.Next() {
		var row ReviewerBadReviewRow
		if err := rows.Scan(&row.ReviewId, &row.ReviewType, &row.DeleteReason); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
