// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services take repository interfaces, not *sqlstore.DB, so tests pass
// in-memory fakes and the handler never touches SQL.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sakif/category-note/internal/apperror"
	"github.com/sakif/category-note/internal/model"
	"github.com/sakif/category-note/internal/repository"
)

const (
	MaxURLLength         = 2048
	MaxTitleLength       = 500
	MaxCategoryLength    = 100
	DefaultTitlePrefix   = 50
	DefaultPageSize      = 20
	MaxPageSize          = 100
	bookmarkTitlePrefix  = "Bookmark - "
	bookmarkTitleEllipse = "..."
)

// BookmarkService owns bookmark validation and listing rules.
type BookmarkService struct {
	repo            repository.BookmarkRepository
	logger          *slog.Logger
	titlePrefixRune int
}

// NewBookmarkService creates a BookmarkService. titlePrefix is how many
// runes of the URL go into a derived title; values < 1 use the default.
func NewBookmarkService(repo repository.BookmarkRepository, titlePrefix int, logger *slog.Logger) *BookmarkService {
	if titlePrefix < 1 {
		titlePrefix = DefaultTitlePrefix
	}
	return &BookmarkService{
		repo:            repo,
		logger:          logger,
		titlePrefixRune: titlePrefix,
	}
}

// ListParams are the raw listing inputs. Page is 1-based.
type ListParams struct {
	Page     int
	Size     int
	Category string
	Search   string
}

// Create validates rawURL and saves a new bookmark for ownerID.
// Categories and description start empty.
func (s *BookmarkService) Create(ctx context.Context, ownerID int64, rawURL string) (*model.BookmarkNote, error) {
	u, err := validateBookmarkURL(rawURL)
	if err != nil {
		return nil, err
	}

	b := &model.BookmarkNote{
		Title:  s.deriveTitle(u),
		URL:    u,
		UserID: ownerID,
	}
	if err := s.repo.CreateBookmark(ctx, b); err != nil {
		return nil, fmt.Errorf("service/bookmark: creating: %w", err)
	}

	s.logger.Info("bookmark created",
		slog.Int64("bookmarkID", b.ID),
		slog.Int64("userID", ownerID),
	)
	return b, nil
}

// validateBookmarkURL accepts absolute https URLs with a host, up to
// MaxURLLength bytes. Surrounding whitespace is dropped.
func validateBookmarkURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperror.ValidationFailed("url", "url is required")
	}
	if len(raw) > MaxURLLength {
		return "", apperror.ValidationFailed("url", fmt.Sprintf("url must be at most %d characters", MaxURLLength))
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", apperror.ValidationFailed("url", "url is not valid")
	}
	if u.Scheme != "https" {
		return "", apperror.ValidationFailed("url", "url must start with https://")
	}
	if u.Host == "" {
		return "", apperror.ValidationFailed("url", "url must include a host")
	}
	return raw, nil
}

// deriveTitle is "Bookmark - " + the first N runes of the URL + "...".
// The ellipsis is always appended, as it is for existing rows.
func (s *BookmarkService) deriveTitle(u string) string {
	title := bookmarkTitlePrefix + truncateRunes(u, s.titlePrefixRune) + bookmarkTitleEllipse
	return truncateRunes(title, MaxTitleLength)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Get returns one live bookmark of ownerID.
func (s *BookmarkService) Get(ctx context.Context, ownerID, id int64) (*model.BookmarkNote, error) {
	b, err := s.repo.GetBookmark(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("service/bookmark: getting %d: %w", id, err)
	}
	return b, nil
}

// List returns one page of ownerID's live bookmarks.
//
// Out-of-range paging is a validation error, not silently clamped. A page
// past the end is valid and simply empty.
func (s *BookmarkService) List(ctx context.Context, ownerID int64, p ListParams) (*model.BookmarkPage, error) {
	if p.Page < 1 {
		return nil, apperror.ValidationFailed("page", "page must be at least 1")
	}
	if p.Size < 1 || p.Size > MaxPageSize {
		return nil, apperror.ValidationFailed("size", fmt.Sprintf("size must be between 1 and %d", MaxPageSize))
	}

	filter := repository.BookmarkFilter{
		Category: strings.TrimSpace(p.Category),
		Search:   strings.TrimSpace(p.Search),
	}
	opts := repository.ListOptions{Limit: p.Size}
	if p.Page-1 > math.MaxInt/p.Size {
		// Past any reachable row; the store still reports the real total.
		opts.Offset = math.MaxInt
	} else {
		opts.Offset = (p.Page - 1) * p.Size
	}

	items, total, err := s.repo.ListBookmarks(ctx, ownerID, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("service/bookmark: listing: %w", err)
	}

	return &model.BookmarkPage{
		Items: items,
		Total: total,
		Page:  p.Page,
		Size:  p.Size,
		Pages: pageCount(total, p.Size),
	}, nil
}

// pageCount is ceil(total/size), and 0 when there is nothing to page.
func pageCount(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// UpdateCategories applies a partial category update. Set values are
// trimmed; an empty string clears the slot like an explicit null.
func (s *BookmarkService) UpdateCategories(ctx context.Context, ownerID, id int64, patch model.CategoryPatch) (*model.BookmarkNote, error) {
	var err error
	if patch.Category1, err = normalizeCategory("category1", patch.Category1); err != nil {
		return nil, err
	}
	if patch.Category2, err = normalizeCategory("category2", patch.Category2); err != nil {
		return nil, err
	}
	if patch.Category3, err = normalizeCategory("category3", patch.Category3); err != nil {
		return nil, err
	}

	b, err := s.repo.UpdateBookmarkCategories(ctx, ownerID, id, patch)
	if err != nil {
		return nil, fmt.Errorf("service/bookmark: updating categories of %d: %w", id, err)
	}

	s.logger.Info("bookmark categories updated",
		slog.Int64("bookmarkID", id),
		slog.Int64("userID", ownerID),
	)
	return b, nil
}

func normalizeCategory(field string, v model.OptionalString) (model.OptionalString, error) {
	if !v.Set || v.Value == nil {
		return v, nil
	}
	c := strings.TrimSpace(*v.Value)
	if c == "" {
		return model.Null(), nil
	}
	if utf8.RuneCountInString(c) > MaxCategoryLength {
		return v, apperror.ValidationFailed(field, fmt.Sprintf("%s must be at most %d characters", field, MaxCategoryLength))
	}
	return model.Some(c), nil
}

// SoftDelete hides the bookmark from every later read and returns its
// final state.
func (s *BookmarkService) SoftDelete(ctx context.Context, ownerID, id int64) (*model.BookmarkNote, error) {
	b, err := s.repo.SoftDeleteBookmark(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("service/bookmark: deleting %d: %w", id, err)
	}

	s.logger.Info("bookmark deleted",
		slog.Int64("bookmarkID", id),
		slog.Int64("userID", ownerID),
	)
	return b, nil
}

// ParseID parses a path id. A non-numeric id cannot name an existing row,
// so it is reported as not found.
func ParseID(resource, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NotFound(resource, raw)
	}
	return id, nil
}
