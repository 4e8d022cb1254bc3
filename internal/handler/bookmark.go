package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/category-note/internal/apperror"
	"github.com/sakif/category-note/internal/auth"
	"github.com/sakif/category-note/internal/model"
	"github.com/sakif/category-note/internal/service"
)

// BookmarkService is what BookmarkHandler needs from the service layer.
// *service.BookmarkService implements it.
type BookmarkService interface {
	Create(ctx context.Context, ownerID int64, rawURL string) (*model.BookmarkNote, error)
	Get(ctx context.Context, ownerID, id int64) (*model.BookmarkNote, error)
	List(ctx context.Context, ownerID int64, p service.ListParams) (*model.BookmarkPage, error)
	UpdateCategories(ctx context.Context, ownerID, id int64, patch model.CategoryPatch) (*model.BookmarkNote, error)
	SoftDelete(ctx context.Context, ownerID, id int64) (*model.BookmarkNote, error)
}

// CategoryLister is implemented by *service.CategoryAggregator.
type CategoryLister interface {
	ListCategories(ctx context.Context, ownerID int64) ([]string, error)
}

// BookmarkHandler serves /api/bookmark. Every route runs behind
// RequireAuth, and every call is scoped to the authenticated user.
type BookmarkHandler struct {
	bookmarks  BookmarkService
	categories CategoryLister
	logger     *slog.Logger
}

func NewBookmarkHandler(bookmarks BookmarkService, categories CategoryLister, logger *slog.Logger) *BookmarkHandler {
	return &BookmarkHandler{
		bookmarks:  bookmarks,
		categories: categories,
		logger:     logger,
	}
}

// CreateBookmarkRequest is the body of POST /api/bookmark/.
type CreateBookmarkRequest struct {
	URL string `json:"url"`
}

// owner returns the authenticated user's id. RequireAuth guarantees it on
// every route of this handler.
func (h *BookmarkHandler) owner(w http.ResponseWriter, r *http.Request) (int64, bool) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(h.logger, w, apperror.Unauthenticated("missing_credential", "a bearer token is required"))
		return 0, false
	}
	return u.ID, true
}

// HandleCreate saves a new bookmark.
//
// HTTP: POST /api/bookmark/
// REQUEST BODY: {"url": "https://go.dev/doc/effective_go"}
func (h *BookmarkHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, http.StatusOK)
}

// HandleCreateLegacy is the older POST /api/url. Same body, but answers
// 201 Created.
func (h *BookmarkHandler) HandleCreateLegacy(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, http.StatusCreated)
}

func (h *BookmarkHandler) create(w http.ResponseWriter, r *http.Request, status int) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req CreateBookmarkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(h.logger, w, err)
		return
	}

	b, err := h.bookmarks.Create(r.Context(), ownerID, req.URL)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, status, b)
}

// HandleList returns one page of bookmarks.
//
// HTTP: GET /api/bookmark/?page=1&size=20&category=go&search=tips
//
// page and size default to 1 and 20. A value that is not an integer is a
// 422, the same as one that is out of range.
func (h *BookmarkHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, err := intParam(q.Get("page"), "page", 1)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	size, err := intParam(q.Get("size"), "size", service.DefaultPageSize)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}

	result, err := h.bookmarks.List(r.Context(), ownerID, service.ListParams{
		Page:     page,
		Size:     size,
		Category: q.Get("category"),
		Search:   q.Get("search"),
	})
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func intParam(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return n, nil
}

// HandleCategories lists the distinct categories in use.
//
// HTTP: GET /api/bookmark/categories/list
func (h *BookmarkHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	cats, err := h.categories.ListCategories(r.Context(), ownerID)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// HandleGet returns one bookmark.
//
// HTTP: GET /api/bookmark/{id}
func (h *BookmarkHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.target(w, r)
	if !ok {
		return
	}

	b, err := h.bookmarks.Get(r.Context(), ownerID, id)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandleUpdateCategories applies a partial category update.
//
// HTTP: PUT /api/bookmark/{id}/categories
// REQUEST BODY: {"category1": "go", "category2": null}
//
// A key that is omitted leaves its slot alone; null or "" clears it.
func (h *BookmarkHandler) HandleUpdateCategories(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var patch model.CategoryPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(h.logger, w, err)
		return
	}

	b, err := h.bookmarks.UpdateCategories(r.Context(), ownerID, id, patch)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandleDelete soft-deletes a bookmark and returns its final state.
//
// HTTP: DELETE /api/bookmark/{id}
func (h *BookmarkHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.target(w, r)
	if !ok {
		return
	}

	b, err := h.bookmarks.SoftDelete(r.Context(), ownerID, id)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// target resolves the caller and the {id} path parameter.
func (h *BookmarkHandler) target(w http.ResponseWriter, r *http.Request) (ownerID, id int64, ok bool) {
	if ownerID, ok = h.owner(w, r); !ok {
		return 0, 0, false
	}
	id, err := service.ParseID("bookmark", chi.URLParam(r, "id"))
	if err != nil {
		writeError(h.logger, w, err)
		return 0, 0, false
	}
	return ownerID, id, true
}
