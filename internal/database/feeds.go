package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"feedybot/internal/domain"
)

func (d *Database) AddCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("category name is empty")
	}

	query := "insert or ignore into categories (name, created_at) values (?, ?)"

	_, err := d.db.ExecContext(ctx, query, name, time.Now().UTC().UnixMilli())

	return err
}

// DeleteCategory drops the category together with its feeds and subscriptions.
func (d *Database) DeleteCategory(ctx context.Context, name string) error {
	res, err := d.db.ExecContext(ctx, "delete from categories where name = ?", strings.TrimSpace(name))
	if err != nil {
		return err
	}

	return requireAffected(res)
}

func (d *Database) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "select name from categories order by name")
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "ListCategories")

	return scanStrings(rows)
}

func (d *Database) CategoryExists(ctx context.Context, name string) (bool, error) {
	var exists bool

	query := "select exists (select 1 from categories where name = ?)"
	if err := d.db.QueryRowContext(ctx, query, strings.TrimSpace(name)).Scan(&exists); err != nil {
		return false, fmt.Errorf("scan row: %w", err)
	}

	return exists, nil
}

// AddFeed registers feedURL under category, creating the category on demand.
// A URL belongs to exactly one category; registering it elsewhere is ErrConflict.
func (d *Database) AddFeed(ctx context.Context, category string, feedURL string) error {
	category = strings.TrimSpace(category)
	feedURL = strings.TrimSpace(feedURL)

	if category == "" {
		return errors.New("category name is empty")
	}
	if feedURL == "" {
		return errors.New("feed URL is empty")
	}

	return d.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC().UnixMilli()

		if _, err := tx.ExecContext(ctx,
			"insert or ignore into categories (name, created_at) values (?, ?)",
			category, now,
		); err != nil {
			return fmt.Errorf("insert category: %w", err)
		}

		var existing string
		err := tx.QueryRowContext(ctx, "select category from feeds where url = ?", feedURL).Scan(&existing)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("scan row: %w", err)
		case existing == category:
			return nil
		default:
			return fmt.Errorf("feed is registered in category %q: %w", existing, ErrConflict)
		}

		if _, err = tx.ExecContext(ctx,
			"insert into feeds (category, url, added_at) values (?, ?, ?)",
			category, feedURL, now,
		); err != nil {
			return fmt.Errorf("insert feed: %w", err)
		}

		return nil
	})
}

func (d *Database) RemoveFeed(ctx context.Context, category string, feedURL string) error {
	query := "delete from feeds where category = ? and url = ?"

	res, err := d.db.ExecContext(ctx, query, strings.TrimSpace(category), strings.TrimSpace(feedURL))
	if err != nil {
		return err
	}

	return requireAffected(res)
}

func (d *Database) ListFeedSources(ctx context.Context) ([]domain.FeedSource, error) {
	rows, err := d.db.QueryContext(ctx, "select category, url from feeds order by id")
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "ListFeedSources")

	var sources []domain.FeedSource
	for rows.Next() {
		var s domain.FeedSource
		if err = rows.Scan(&s.Category, &s.URL); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		sources = append(sources, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return sources, nil
}

func (d *Database) ListFeedSourcesByCategory(ctx context.Context, category string) ([]string, error) {
	query := "select url from feeds where category = ? order by id"

	rows, err := d.db.QueryContext(ctx, query, strings.TrimSpace(category))
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "ListFeedSourcesByCategory",
		"category", category)

	return scanStrings(rows)
}

// GetWatermark returns the last seen entry id of feedURL; ok is false when the
// feed has never been polled.
func (d *Database) GetWatermark(ctx context.Context, feedURL string) (string, bool, error) {
	var entryID string

	query := "select last_entry_id from last_seen where url = ?"

	err := d.db.QueryRowContext(ctx, query, feedURL).Scan(&entryID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("scan row: %w", err)
	}

	return entryID, true, nil
}

func (d *Database) SetWatermark(ctx context.Context, feedURL string, entryID string) error {
	query := `insert into last_seen (url, last_entry_id, last_checked)
	values (?, ?, ?)
	on conflict (url) do update
	set last_entry_id = excluded.last_entry_id,
	last_checked = excluded.last_checked`

	_, err := d.db.ExecContext(ctx, query, feedURL, entryID, time.Now().UTC().UnixMilli())

	return err
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		values = append(values, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return values, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// SeedFeeds registers the default categories and their feeds. Feeds already
// registered under another category are skipped. It returns how many feeds were
// newly added.
func (d *Database) SeedFeeds(ctx context.Context, defaults map[string][]string) (int, error) {
	var (
		added int
		errs  []error
	)

	for _, category := range slices.Sorted(maps.Keys(defaults)) {
		if err := d.AddCategory(ctx, category); err != nil {
			errs = append(errs, fmt.Errorf("add category %q: %w", category, err))
			continue
		}

		for _, feedURL := range defaults[category] {
			var exists bool
			if err := d.db.QueryRowContext(ctx,
				"select exists (select 1 from feeds where url = ?)", feedURL,
			).Scan(&exists); err != nil {
				errs = append(errs, fmt.Errorf("scan row: %w", err))
				continue
			}

			err := d.AddFeed(ctx, category, feedURL)
			switch {
			case errors.Is(err, ErrConflict):
				d.log.WarnContext(ctx, "Default feed belongs to another category, skipping",
					"error", err,
					"category", category,
					"url", feedURL)
			case err != nil:
				errs = append(errs, fmt.Errorf("add feed %q: %w", feedURL, err))
			case !exists:
				added++
			}
		}
	}

	return added, errors.Join(errs...)
}
