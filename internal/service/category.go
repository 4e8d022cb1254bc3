package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/sakif/category-note/internal/repository"
)

// CategoryAggregator lists the distinct categories a user has applied.
type CategoryAggregator struct {
	repo repository.BookmarkRepository
}

func NewCategoryAggregator(repo repository.BookmarkRepository) *CategoryAggregator {
	return &CategoryAggregator{repo: repo}
}

// ListCategories returns the union of all three category slots over the
// owner's live bookmarks, de-duplicated and sorted.
//
// Matching is case-sensitive: "Go" and "go" are two categories. Sorting is
// by byte order in Go so the result does not depend on database collation.
func (a *CategoryAggregator) ListCategories(ctx context.Context, ownerID int64) ([]string, error) {
	values, err := a.repo.ListCategoryValues(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service/category: listing: %w", err)
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}
