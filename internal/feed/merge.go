package feed

import "social-client/internal/models"

// mergeItems appends incoming after existing, dropping any id already seen.
// The first occurrence wins and nothing is reordered.
func mergeItems(existing, incoming []models.FeedItem) []models.FeedItem {
	seen := make(map[models.ID]struct{}, len(existing)+len(incoming))
	out := make([]models.FeedItem, 0, len(existing)+len(incoming))
	for _, it := range existing {
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	for _, it := range incoming {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}

// patchItem applies fn to the item with id and leaves every other item as is.
func patchItem(items []models.FeedItem, id models.ID, fn func(models.FeedItem) models.FeedItem) ([]models.FeedItem, bool) {
	for i := range items {
		if items[i].ID != id {
			continue
		}
		out := make([]models.FeedItem, len(items))
		copy(out, items)
		patched := fn(out[i])
		patched.ID = id
		out[i] = patched
		return out, true
	}
	return items, false
}

func findItem(items []models.FeedItem, id models.ID) (models.FeedItem, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return models.FeedItem{}, false
}

// applyPage folds a loaded page into snap.
func applyPage(snap Snapshot, n int, page models.FeedPage) Snapshot {
	snap.Items = mergeItems(snap.Items, page.Posts)
	if n >= snap.Page {
		snap.Page = n
		snap.HasMore = page.HasMore && len(page.Posts) > 0
	}
	snap.Loading = false
	snap.Err = nil
	return snap
}
