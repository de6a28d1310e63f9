package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"feedybot/internal/domain"
)

func (d *Database) EnqueueUnread(ctx context.Context, post domain.UnreadPost) error {
	query := `insert into unread_posts (user_id, category, title, link, published, summary, created_at)
	values (?, ?, ?, ?, ?, ?, ?)`

	createdAt := post.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := d.db.ExecContext(ctx, query,
		post.UserID,
		strings.TrimSpace(post.Category),
		post.Title,
		post.Link,
		post.Published,
		post.Summary,
		createdAt.UTC().UnixMilli(),
	)

	return err
}

// TrimUnread keeps only the limit most recently created posts of the
// (userID, category) pair. Posts created in the same millisecond are ordered
// by insertion.
func (d *Database) TrimUnread(ctx context.Context, userID int64, category string, limit int) error {
	if limit < 0 {
		limit = 0
	}

	query := `delete from unread_posts
	where user_id = ? and category = ?
	and id not in (
		select id from unread_posts
		where user_id = ? and category = ?
		order by created_at desc, id desc
		limit ?
	)`

	category = strings.TrimSpace(category)

	_, err := d.db.ExecContext(ctx, query, userID, category, userID, category, limit)

	return err
}

// ListUnread returns up to limit posts across all categories, newest first.
func (d *Database) ListUnread(ctx context.Context, userID int64, limit int) ([]domain.UnreadPost, error) {
	query := `select id, category, title, link, published, summary, created_at
	from unread_posts
	where user_id = ?
	order by created_at desc, id desc
	limit ?`

	rows, err := d.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "ListUnread",
		"userID", userID)

	var posts []domain.UnreadPost
	for rows.Next() {
		var (
			p         = domain.UnreadPost{UserID: userID}
			createdAt int64
		)

		if err = rows.Scan(&p.ID, &p.Category, &p.Title, &p.Link, &p.Published, &p.Summary, &createdAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		p.CreatedAt = time.UnixMilli(createdAt).UTC()
		posts = append(posts, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return posts, nil
}

func (d *Database) ClearUnread(ctx context.Context, userID int64) error {
	_, err := d.db.ExecContext(ctx, "delete from unread_posts where user_id = ?", userID)

	return err
}

func (d *Database) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int

	if err := d.db.QueryRowContext(ctx,
		"select count(*) from unread_posts where user_id = ?", userID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("scan row: %w", err)
	}

	return count, nil
}
