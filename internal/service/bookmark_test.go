package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/category-note/internal/apperror"
	"github.com/sakif/category-note/internal/model"
)

func newTestBookmarkService() (*BookmarkService, *fakeBookmarkRepo) {
	repo := newFakeBookmarkRepo()
	return NewBookmarkService(repo, DefaultTitlePrefix, discardLogger()), repo
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected *AppError, got %T", err)
	return appErr.Field
}

// =========================================================================
// Create
// =========================================================================

func TestCreate_ValidatesURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"plain http", "http://example.com"},
		{"ftp scheme", "ftp://example.com/file"},
		{"no scheme", "example.com/page"},
		{"no host", "https:///path"},
		{"too long", "https://example.com/" + strings.Repeat("a", MaxURLLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestBookmarkService()

			_, err := svc.Create(context.Background(), 1, tt.url)

			require.Error(t, err)
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, "url", fieldOf(t, err))
			assert.Empty(t, repo.bookmarks, "nothing should be stored")
		})
	}
}

func TestCreate_DerivesTitle(t *testing.T) {
	svc, _ := newTestBookmarkService()

	b, err := svc.Create(context.Background(), 7, "https://go.dev")

	require.NoError(t, err)
	assert.Equal(t, "Bookmark - https://go.dev...", b.Title)
	assert.Equal(t, "https://go.dev", b.URL)
	assert.Equal(t, int64(7), b.UserID)
	assert.Nil(t, b.Category1)
	assert.Nil(t, b.Description)
	assert.False(t, b.IsDeleted)
}

func TestCreate_TruncatesTitleByRunes(t *testing.T) {
	svc, _ := newTestBookmarkService()
	long := "https://example.com/" + strings.Repeat("é", 80)

	b, err := svc.Create(context.Background(), 1, long)

	require.NoError(t, err)
	want := "Bookmark - " + string([]rune(long)[:DefaultTitlePrefix]) + "..."
	assert.Equal(t, want, b.Title)
}

func TestCreate_TrimsWhitespace(t *testing.T) {
	svc, _ := newTestBookmarkService()

	b, err := svc.Create(context.Background(), 1, "  https://example.com/a  ")

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", b.URL)
}

func TestNewBookmarkService_DefaultPrefix(t *testing.T) {
	svc := NewBookmarkService(newFakeBookmarkRepo(), 0, discardLogger())
	assert.Equal(t, DefaultTitlePrefix, svc.titlePrefixRune)

	short := NewBookmarkService(newFakeBookmarkRepo(), 5, discardLogger())
	assert.Equal(t, "Bookmark - https...", short.deriveTitle("https://example.com"))
}

// =========================================================================
// List
// =========================================================================

func TestList_RejectsBadPaging(t *testing.T) {
	tests := []struct {
		name  string
		page  int
		size  int
		field string
	}{
		{"page zero", 0, 20, "page"},
		{"negative page", -1, 20, "page"},
		{"size zero", 1, 0, "size"},
		{"size over max", 1, MaxPageSize + 1, "size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestBookmarkService()

			_, err := svc.List(context.Background(), 1, ListParams{Page: tt.page, Size: tt.size})

			require.Error(t, err)
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.field, fieldOf(t, err))
		})
	}
}

func TestList_Pagination(t *testing.T) {
	svc, _ := newTestBookmarkService()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, 1, "https://example.com/"+string(rune('a'+i)))
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, 1, ListParams{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.Pages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "https://example.com/e", page.Items[0].URL, "newest first")

	last, err := svc.List(ctx, 1, ListParams{Page: 3, Size: 2})
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	assert.Equal(t, "https://example.com/a", last.Items[0].URL)

	past, err := svc.List(ctx, 1, ListParams{Page: 9, Size: 2})
	require.NoError(t, err)
	assert.NotNil(t, past.Items)
	assert.Empty(t, past.Items)
	assert.Equal(t, int64(5), past.Total)
}

func TestList_HugePageIsEmptyNotWrapped(t *testing.T) {
	svc, repo := newTestBookmarkService()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, 1, "https://example.com/"+string(rune('a'+i)))
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, 1, ListParams{Page: 1 << 62, Size: 4})

	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 1, page.Pages)
	assert.Equal(t, math.MaxInt, repo.lastOpts.Offset)
}

func TestList_PassesTrimmedFilter(t *testing.T) {
	svc, repo := newTestBookmarkService()

	_, err := svc.List(context.Background(), 1, ListParams{Page: 2, Size: 10, Category: "  go ", Search: " tips"})

	require.NoError(t, err)
	assert.Equal(t, "go", repo.lastFilter.Category)
	assert.Equal(t, "tips", repo.lastFilter.Search)
	assert.Equal(t, 10, repo.lastOpts.Limit)
	assert.Equal(t, 10, repo.lastOpts.Offset)
}

func TestList_EmptyHasZeroPages(t *testing.T) {
	svc, _ := newTestBookmarkService()

	page, err := svc.List(context.Background(), 1, ListParams{Page: 1, Size: 20})

	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
	assert.Equal(t, 0, page.Pages)
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 0, pageCount(0, 20))
	assert.Equal(t, 1, pageCount(1, 20))
	assert.Equal(t, 1, pageCount(20, 20))
	assert.Equal(t, 2, pageCount(21, 20))
	assert.Equal(t, 0, pageCount(10, 0))
}

// =========================================================================
// UpdateCategories / SoftDelete / Get
// =========================================================================

func TestUpdateCategories_Normalizes(t *testing.T) {
	svc, repo := newTestBookmarkService()
	ctx := context.Background()
	b, err := svc.Create(ctx, 1, "https://example.com")
	require.NoError(t, err)

	updated, err := svc.UpdateCategories(ctx, 1, b.ID, model.CategoryPatch{
		Category1: model.Some("  Golang "),
		Category2: model.Some("   "),
	})

	require.NoError(t, err)
	require.NotNil(t, updated.Category1)
	assert.Equal(t, "Golang", *updated.Category1)
	assert.Nil(t, updated.Category2)
	assert.True(t, repo.lastPatch.Category2.Set, "blank value clears the slot")
	assert.Nil(t, repo.lastPatch.Category2.Value)
	assert.False(t, repo.lastPatch.Category3.Set, "omitted slot stays untouched")
}

func TestUpdateCategories_OmittedLeavesOthers(t *testing.T) {
	svc, _ := newTestBookmarkService()
	ctx := context.Background()
	b, err := svc.Create(ctx, 1, "https://example.com")
	require.NoError(t, err)
	_, err = svc.UpdateCategories(ctx, 1, b.ID, model.CategoryPatch{
		Category1: model.Some("a"),
		Category2: model.Some("b"),
	})
	require.NoError(t, err)

	updated, err := svc.UpdateCategories(ctx, 1, b.ID, model.CategoryPatch{Category1: model.Null()})

	require.NoError(t, err)
	assert.Nil(t, updated.Category1)
	require.NotNil(t, updated.Category2)
	assert.Equal(t, "b", *updated.Category2)
}

func TestUpdateCategories_TooLong(t *testing.T) {
	svc, _ := newTestBookmarkService()

	_, err := svc.UpdateCategories(context.Background(), 1, 1, model.CategoryPatch{
		Category3: model.Some(strings.Repeat("x", MaxCategoryLength+1)),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "category3", fieldOf(t, err))
}

func TestUpdateCategories_MaxLengthInRunes(t *testing.T) {
	svc, _ := newTestBookmarkService()
	ctx := context.Background()
	b, err := svc.Create(ctx, 1, "https://example.com")
	require.NoError(t, err)

	_, err = svc.UpdateCategories(ctx, 1, b.ID, model.CategoryPatch{
		Category1: model.Some(strings.Repeat("ü", MaxCategoryLength)),
	})

	assert.NoError(t, err)
}

func TestOwnershipAndSoftDelete(t *testing.T) {
	svc, _ := newTestBookmarkService()
	ctx := context.Background()
	b, err := svc.Create(ctx, 1, "https://example.com")
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, b.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "other users cannot see it")

	_, err = svc.SoftDelete(ctx, 2, b.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "other users cannot delete it")

	deleted, err := svc.SoftDelete(ctx, 1, b.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.NotNil(t, deleted.DeletedAt)

	_, err = svc.Get(ctx, 1, b.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.SoftDelete(ctx, 1, b.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "second delete is not found")

	_, err = svc.UpdateCategories(ctx, 1, b.ID, model.CategoryPatch{Category1: model.Some("x")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestParseID(t *testing.T) {
	id, err := ParseID("bookmark", "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"abc", "", "0", "-3", "1.5"} {
		_, err := ParseID("bookmark", raw)
		assert.ErrorIs(t, err, apperror.ErrNotFound, "raw=%q", raw)
	}
}
