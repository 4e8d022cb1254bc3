// Package repository declares the storage contracts the service layer
// depends on. Implementations live in sub-packages (sqlstore).
//
// Every bookmark method takes the owner's id. Implementations must scope
// every query to (owner, not deleted), so a row owned by someone else or
// soft-deleted is reported as apperror.ErrNotFound, never as forbidden.
package repository

import (
	"context"
	"time"

	"github.com/sakif/category-note/internal/model"
)

// ListOptions is a resolved LIMIT/OFFSET window.
type ListOptions struct {
	Limit  int
	Offset int
}

// BookmarkFilter narrows a listing. Empty strings mean "no filter".
// Both filters are case-insensitive substring matches.
type BookmarkFilter struct {
	Category string // matches any of the three category slots
	Search   string // matches title or description
}

type UserRepository interface {
	// CreateUser inserts u and fills in ID and timestamps. A unique
	// violation returns apperror.ErrConflict.
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByProvider(ctx context.Context, provider model.Provider, providerID string) (*model.User, error)
	// UpdateUserProfile persists FullName and AvatarURL.
	UpdateUserProfile(ctx context.Context, u *model.User) error
	// TouchLastLogin sets last_login_at = at and returns the stored row.
	TouchLastLogin(ctx context.Context, id int64, at time.Time) (*model.User, error)
}

type BookmarkRepository interface {
	CreateBookmark(ctx context.Context, b *model.BookmarkNote) error
	GetBookmark(ctx context.Context, ownerID, id int64) (*model.BookmarkNote, error)
	// ListBookmarks returns one page, newest first, and the total number of
	// rows matching the filter.
	ListBookmarks(ctx context.Context, ownerID int64, filter BookmarkFilter, opts ListOptions) ([]model.BookmarkNote, int64, error)
	UpdateBookmarkCategories(ctx context.Context, ownerID, id int64, patch model.CategoryPatch) (*model.BookmarkNote, error)
	SoftDeleteBookmark(ctx context.Context, ownerID, id int64) (*model.BookmarkNote, error)
	// ListCategoryValues returns every non-empty category slot value of the
	// owner's live bookmarks. Duplicates may be present.
	ListCategoryValues(ctx context.Context, ownerID int64) ([]string, error)
}
