package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"feedybot/internal/domain"
)

// SetSubscriptions registers the user when needed and replaces the set of
// categories they follow.
func (d *Database) SetSubscriptions(
	ctx context.Context,
	userID int64,
	username string,
	categories []string,
) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsertUser(ctx, tx, userID, username); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "delete from user_categories where user_id = ?", userID); err != nil {
			return fmt.Errorf("delete subscriptions: %w", err)
		}

		for _, category := range categories {
			if err := insertSubscription(ctx, tx, userID, category); err != nil {
				return err
			}
		}

		return nil
	})
}

func (d *Database) Subscribe(ctx context.Context, userID int64, username string, category string) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsertUser(ctx, tx, userID, username); err != nil {
			return err
		}

		return insertSubscription(ctx, tx, userID, category)
	})
}

func (d *Database) Unsubscribe(ctx context.Context, userID int64, category string) error {
	query := "delete from user_categories where user_id = ? and category = ?"

	res, err := d.db.ExecContext(ctx, query, userID, strings.TrimSpace(category))
	if err != nil {
		return err
	}

	return requireAffected(res)
}

// AddKeyword stores keyword in lower case; adding a known keyword is a no-op.
func (d *Database) AddKeyword(ctx context.Context, userID int64, keyword string) error {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return errors.New("keyword is empty")
	}

	return d.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}

		query := "insert or ignore into user_keywords (user_id, keyword) values (?, ?)"
		if _, err := tx.ExecContext(ctx, query, userID, keyword); err != nil {
			return fmt.Errorf("insert keyword: %w", err)
		}

		return nil
	})
}

func (d *Database) RemoveKeyword(ctx context.Context, userID int64, keyword string) error {
	query := "delete from user_keywords where user_id = ? and keyword = ?"

	res, err := d.db.ExecContext(ctx, query, userID, strings.ToLower(strings.TrimSpace(keyword)))
	if err != nil {
		return err
	}

	return requireAffected(res)
}

// GetSubscriber returns ErrNotFound for unknown users.
func (d *Database) GetSubscriber(ctx context.Context, userID int64) (*domain.Subscriber, error) {
	var (
		s         = domain.Subscriber{ID: userID}
		createdAt int64
	)

	err := d.db.QueryRowContext(ctx,
		"select username, created_at from users where id = ?", userID,
	).Scan(&s.Username, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	s.CreatedAt = time.UnixMilli(createdAt).UTC()

	if s.Categories, err = d.queryStrings(ctx, "GetSubscriber",
		"select category from user_categories where user_id = ? order by category", userID,
	); err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}

	if s.Keywords, err = d.queryStrings(ctx, "GetSubscriber",
		"select keyword from user_keywords where user_id = ? order by keyword", userID,
	); err != nil {
		return nil, fmt.Errorf("get keywords: %w", err)
	}

	return &s, nil
}

func (d *Database) ListSubscribersByCategory(ctx context.Context, category string) ([]int64, error) {
	return d.queryIDs(ctx, "ListSubscribersByCategory",
		"select user_id from user_categories where category = ? order by user_id",
		strings.TrimSpace(category))
}

// ListActiveSubscribers returns users following at least one category.
func (d *Database) ListActiveSubscribers(ctx context.Context) ([]int64, error) {
	return d.queryIDs(ctx, "ListActiveSubscribers",
		"select distinct user_id from user_categories order by user_id")
}

func (d *Database) GetSubscriberStats(ctx context.Context, userID int64) (*domain.SubscriberStats, error) {
	s, err := d.GetSubscriber(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := domain.SubscriberStats{Subscriber: *s}

	query := `select count(*)
	from feeds as f
	join user_categories as uc
	on uc.category = f.category
	where uc.user_id = ?`

	if err = d.db.QueryRowContext(ctx, query, userID).Scan(&stats.FeedCount); err != nil {
		return nil, fmt.Errorf("count feeds: %w", err)
	}

	if stats.UnreadCount, err = d.CountUnread(ctx, userID); err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}

	return &stats, nil
}

func (d *Database) queryStrings(ctx context.Context, operation string, query string, args ...any) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, operation)

	return scanStrings(rows)
}

func (d *Database) queryIDs(ctx context.Context, operation string, query string, args ...any) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, operation)

	var ids []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return ids, nil
}

func upsertUser(ctx context.Context, tx *sql.Tx, userID int64, username string) error {
	query := `insert into users (id, username, created_at)
	values (?, ?, ?)
	on conflict (id) do update
	set username = excluded.username`

	if _, err := tx.ExecContext(ctx, query, userID, strings.TrimSpace(username), time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

func requireUser(ctx context.Context, tx *sql.Tx, userID int64) error {
	var exists bool
	if err := tx.QueryRowContext(ctx,
		"select exists (select 1 from users where id = ?)", userID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	if !exists {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}

	return nil
}

func insertSubscription(ctx context.Context, tx *sql.Tx, userID int64, category string) error {
	category = strings.TrimSpace(category)

	var exists bool
	if err := tx.QueryRowContext(ctx,
		"select exists (select 1 from categories where name = ?)", category,
	).Scan(&exists); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	if !exists {
		return fmt.Errorf("category %q: %w", category, ErrNotFound)
	}

	query := "insert or ignore into user_categories (user_id, category) values (?, ?)"
	if _, err := tx.ExecContext(ctx, query, userID, category); err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}

	return nil
}
