package feed

import (
	"slices"

	"feedybot/internal/domain"
)

// SelectNew separates unseen entries from entries (newest first) using the
// previous watermark. Without a watermark only the newest entry is new, so a
// first poll never floods subscribers with history. When lastID is missing from
// entries the whole fetch is new. fresh is ordered oldest to newest and
// watermark is the id of the newest fetched entry ("" when nothing was fetched).
func SelectNew(
	entries []domain.Entry,
	lastID string,
	hasWatermark bool,
) (fresh []domain.Entry, watermark string) {
	if len(entries) == 0 {
		return nil, ""
	}

	watermark = entries[0].ID

	if !hasWatermark {
		return []domain.Entry{entries[0]}, watermark
	}

	for _, entry := range entries {
		if entry.ID == lastID {
			break
		}

		fresh = append(fresh, entry)
	}

	slices.Reverse(fresh)

	return fresh, watermark
}
