package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sakif/category-note/internal/apperror"
	"github.com/sakif/category-note/internal/model"
	"github.com/sakif/category-note/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUserRepo is an in-memory repository.UserRepository. It enforces the
// same uniqueness rules as the real schema.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*model.User
	nextID int64

	// hooks let a test inject failures or interleavings
	beforeCreate func(u *model.User)
	createErr    error
	updateCalls  int
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int64]*model.User{}, nextID: 1}
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, u *model.User) error {
	if f.beforeCreate != nil {
		f.beforeCreate(u)
	}
	if f.createErr != nil {
		return f.createErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email || existing.Username == u.Username ||
			(existing.Provider == u.Provider && existing.ProviderID == u.ProviderID) {
			return apperror.Conflict("user", string(u.Provider)+":"+u.ProviderID)
		}
	}
	u.ID = f.nextID
	f.nextID++
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	out := *u
	return &out, nil
}

func (f *fakeUserRepo) GetUserByProvider(ctx context.Context, provider model.Provider, providerID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Provider == provider && u.ProviderID == providerID {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", string(provider)+":"+providerID)
}

func (f *fakeUserRepo) UpdateUserProfile(ctx context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	stored, ok := f.users[u.ID]
	if !ok {
		return apperror.NotFound("user", strconv.FormatInt(u.ID, 10))
	}
	stored.FullName = u.FullName
	stored.AvatarURL = u.AvatarURL
	stored.UpdatedAt = time.Now()
	return nil
}

func (f *fakeUserRepo) TouchLastLogin(ctx context.Context, id int64, at time.Time) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	stored.LastLoginAt = &at
	out := *stored
	return &out, nil
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

// fakeBookmarkRepo is an in-memory repository.BookmarkRepository.
type fakeBookmarkRepo struct {
	mu        sync.Mutex
	bookmarks []*model.BookmarkNote
	nextID    int64
	clock     time.Time

	lastFilter repository.BookmarkFilter
	lastOpts   repository.ListOptions
	lastPatch  model.CategoryPatch
}

var _ repository.BookmarkRepository = (*fakeBookmarkRepo)(nil)

func newFakeBookmarkRepo() *fakeBookmarkRepo {
	return &fakeBookmarkRepo{nextID: 1, clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeBookmarkRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeBookmarkRepo) live(ownerID, id int64) *model.BookmarkNote {
	for _, b := range f.bookmarks {
		if b.ID == id && b.UserID == ownerID && !b.IsDeleted {
			return b
		}
	}
	return nil
}

func (f *fakeBookmarkRepo) CreateBookmark(ctx context.Context, b *model.BookmarkNote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.ID = f.nextID
	f.nextID++
	b.CreatedAt = f.tick()
	b.UpdatedAt = b.CreatedAt
	stored := *b
	f.bookmarks = append(f.bookmarks, &stored)
	return nil
}

func (f *fakeBookmarkRepo) GetBookmark(ctx context.Context, ownerID, id int64) (*model.BookmarkNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.live(ownerID, id)
	if b == nil {
		return nil, apperror.NotFound("bookmark", strconv.FormatInt(id, 10))
	}
	out := *b
	return &out, nil
}

func containsFold(p *string, sub string) bool {
	return p != nil && strings.Contains(strings.ToLower(*p), strings.ToLower(sub))
}

func (f *fakeBookmarkRepo) ListBookmarks(ctx context.Context, ownerID int64, filter repository.BookmarkFilter, opts repository.ListOptions) ([]model.BookmarkNote, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	f.lastOpts = opts

	var matched []model.BookmarkNote
	for _, b := range f.bookmarks {
		if b.UserID != ownerID || b.IsDeleted {
			continue
		}
		if filter.Category != "" && !containsFold(b.Category1, filter.Category) &&
			!containsFold(b.Category2, filter.Category) && !containsFold(b.Category3, filter.Category) {
			continue
		}
		if filter.Search != "" && !containsFold(&b.Title, filter.Search) && !containsFold(b.Description, filter.Search) {
			continue
		}
		matched = append(matched, *b)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	items := []model.BookmarkNote{}
	for i := opts.Offset; i < len(matched) && i < opts.Offset+opts.Limit; i++ {
		items = append(items, matched[i])
	}
	return items, total, nil
}

func (f *fakeBookmarkRepo) UpdateBookmarkCategories(ctx context.Context, ownerID, id int64, patch model.CategoryPatch) (*model.BookmarkNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPatch = patch
	b := f.live(ownerID, id)
	if b == nil {
		return nil, apperror.NotFound("bookmark", strconv.FormatInt(id, 10))
	}
	if patch.Category1.Set {
		b.Category1 = patch.Category1.Value
	}
	if patch.Category2.Set {
		b.Category2 = patch.Category2.Value
	}
	if patch.Category3.Set {
		b.Category3 = patch.Category3.Value
	}
	b.UpdatedAt = f.tick()
	out := *b
	return &out, nil
}

func (f *fakeBookmarkRepo) SoftDeleteBookmark(ctx context.Context, ownerID, id int64) (*model.BookmarkNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.live(ownerID, id)
	if b == nil {
		return nil, apperror.NotFound("bookmark", strconv.FormatInt(id, 10))
	}
	now := f.tick()
	b.IsDeleted = true
	b.DeletedAt = &now
	b.UpdatedAt = now
	out := *b
	return &out, nil
}

func (f *fakeBookmarkRepo) ListCategoryValues(ctx context.Context, ownerID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, b := range f.bookmarks {
		if b.UserID != ownerID || b.IsDeleted {
			continue
		}
		out = append(out, b.Categories()...)
	}
	return out, nil
}

// fakeProvider is an auth.IdentityProvider that returns a canned identity
// for the code "good-code".
type fakeProvider struct {
	name     model.Provider
	identity *model.Identity
	err      error
}

func (p *fakeProvider) Name() model.Provider        { return p.name }
func (p *fakeProvider) AuthURL(state string) string { return "https://provider.example/authorize?state=" + state }
func (p *fakeProvider) ExchangeCode(ctx context.Context, code string) (*model.Identity, error) {
	if p.err != nil {
		return nil, p.err
	}
	if code != "good-code" {
		return nil, apperror.UpstreamAuth(string(p.name), errIncorrectCode)
	}
	id := *p.identity
	return &id, nil
}

var errIncorrectCode = errors.New("bad_verification_code")
