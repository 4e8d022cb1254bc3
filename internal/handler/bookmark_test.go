package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/category-note/internal/apperror"
	"github.com/sakif/category-note/internal/handler"
	"github.com/sakif/category-note/internal/model"
	"github.com/sakif/category-note/internal/service"
)

// stubBookmarks records what the handler passed down and answers from a
// single canned bookmark with id 1 owned by alice.
type stubBookmarks struct {
	owner      int64
	gotURL     string
	gotParams  service.ListParams
	gotPatch   model.CategoryPatch
	createErr  error
	listResult *model.BookmarkPage
}

func (s *stubBookmarks) find(ownerID, id int64) (*model.BookmarkNote, error) {
	s.owner = ownerID
	if ownerID != alice.ID || id != 1 {
		return nil, apperror.NotFound("bookmark", strconv.FormatInt(id, 10))
	}
	return &model.BookmarkNote{ID: 1, Title: "Bookmark - https://go.dev...", URL: "https://go.dev", UserID: ownerID}, nil
}

func (s *stubBookmarks) Create(ctx context.Context, ownerID int64, rawURL string) (*model.BookmarkNote, error) {
	s.owner, s.gotURL = ownerID, rawURL
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &model.BookmarkNote{ID: 1, URL: rawURL, UserID: ownerID}, nil
}

func (s *stubBookmarks) Get(ctx context.Context, ownerID, id int64) (*model.BookmarkNote, error) {
	return s.find(ownerID, id)
}

func (s *stubBookmarks) List(ctx context.Context, ownerID int64, p service.ListParams) (*model.BookmarkPage, error) {
	s.owner, s.gotParams = ownerID, p
	if p.Size > service.MaxPageSize {
		return nil, apperror.ValidationFailed("size", "size must be between 1 and 100")
	}
	if s.listResult != nil {
		return s.listResult, nil
	}
	return &model.BookmarkPage{Items: []model.BookmarkNote{}, Page: p.Page, Size: p.Size}, nil
}

func (s *stubBookmarks) UpdateCategories(ctx context.Context, ownerID, id int64, patch model.CategoryPatch) (*model.BookmarkNote, error) {
	s.gotPatch = patch
	b, err := s.find(ownerID, id)
	if err != nil {
		return nil, err
	}
	b.Category1 = patch.Category1.Value
	return b, nil
}

func (s *stubBookmarks) SoftDelete(ctx context.Context, ownerID, id int64) (*model.BookmarkNote, error) {
	b, err := s.find(ownerID, id)
	if err != nil {
		return nil, err
	}
	b.IsDeleted = true
	return b, nil
}

type stubCategories []string

func (c stubCategories) ListCategories(ctx context.Context, ownerID int64) ([]string, error) {
	return c, nil
}

func bookmarkRouter(svc *stubBookmarks, cats stubCategories) http.Handler {
	h := handler.NewBookmarkHandler(svc, cats, testLogger())
	r := chi.NewRouter()
	r.Use(asUser(alice))
	r.Route("/api/bookmark", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/categories/list", h.HandleCategories)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}/categories", h.HandleUpdateCategories)
		r.Delete("/{id}", h.HandleDelete)
	})
	r.Post("/api/url", h.HandleCreateLegacy)
	return r
}

func TestBookmarkHandler_Create(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := &stubBookmarks{}

		rr := do(t, bookmarkRouter(svc, nil), http.MethodPost, "/api/bookmark/", `{"url":"https://go.dev"}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "https://go.dev", svc.gotURL)
		assert.Equal(t, alice.ID, svc.owner)
		var b model.BookmarkNote
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&b))
		assert.Equal(t, alice.ID, b.UserID)
	})

	t.Run("legacy route answers 201", func(t *testing.T) {
		rr := do(t, bookmarkRouter(&stubBookmarks{}, nil), http.MethodPost, "/api/url", `{"url":"https://go.dev"}`)
		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("invalid url", func(t *testing.T) {
		svc := &stubBookmarks{createErr: apperror.ValidationFailed("url", "url must start with https://")}

		rr := do(t, bookmarkRouter(svc, nil), http.MethodPost, "/api/bookmark/", `{"url":"http://go.dev"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "url", decodeError(t, rr).Field)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := &stubBookmarks{}

		rr := do(t, bookmarkRouter(svc, nil), http.MethodPost, "/api/bookmark/", `{"url":`)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "body", decodeError(t, rr).Field)
		assert.Empty(t, svc.gotURL)
	})
}

func TestBookmarkHandler_List(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		svc := &stubBookmarks{}

		rr := do(t, bookmarkRouter(svc, nil), http.MethodGet, "/api/bookmark/", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, service.ListParams{Page: 1, Size: service.DefaultPageSize}, svc.gotParams)
		assert.JSONEq(t, `{"items":[],"total":0,"page":1,"size":20,"pages":0}`, rr.Body.String())
	})

	t.Run("passes filters", func(t *testing.T) {
		svc := &stubBookmarks{}

		rr := do(t, bookmarkRouter(svc, nil), http.MethodGet, "/api/bookmark/?page=2&size=5&category=go&search=tips", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, service.ListParams{Page: 2, Size: 5, Category: "go", Search: "tips"}, svc.gotParams)
	})

	t.Run("non-integer page", func(t *testing.T) {
		rr := do(t, bookmarkRouter(&stubBookmarks{}, nil), http.MethodGet, "/api/bookmark/?page=two", "")

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "page", decodeError(t, rr).Field)
	})

	t.Run("size out of range", func(t *testing.T) {
		rr := do(t, bookmarkRouter(&stubBookmarks{}, nil), http.MethodGet, "/api/bookmark/?size=500", "")

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "size", decodeError(t, rr).Field)
	})
}

func TestBookmarkHandler_Categories(t *testing.T) {
	rr := do(t, bookmarkRouter(&stubBookmarks{}, stubCategories{"go", "work"}), http.MethodGet, "/api/bookmark/categories/list", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `["go","work"]`, rr.Body.String())
}

func TestBookmarkHandler_ByID(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{"get", http.MethodGet, "/api/bookmark/1", "", http.StatusOK},
		{"get missing", http.MethodGet, "/api/bookmark/99", "", http.StatusNotFound},
		{"get non-numeric", http.MethodGet, "/api/bookmark/abc", "", http.StatusNotFound},
		{"update", http.MethodPut, "/api/bookmark/1/categories", `{"category1":"go"}`, http.StatusOK},
		{"update missing", http.MethodPut, "/api/bookmark/99/categories", `{"category1":"go"}`, http.StatusNotFound},
		{"update bad body", http.MethodPut, "/api/bookmark/1/categories", `[1,2]`, http.StatusUnprocessableEntity},
		{"delete", http.MethodDelete, "/api/bookmark/1", "", http.StatusOK},
		{"delete missing", http.MethodDelete, "/api/bookmark/2", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, bookmarkRouter(&stubBookmarks{}, nil), tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestBookmarkHandler_UpdateKeepsThreeStates(t *testing.T) {
	svc := &stubBookmarks{}

	rr := do(t, bookmarkRouter(svc, nil), http.MethodPut, "/api/bookmark/1/categories", `{"category1":"go","category2":null}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, model.Some("go"), svc.gotPatch.Category1)
	assert.Equal(t, model.Null(), svc.gotPatch.Category2)
	assert.False(t, svc.gotPatch.Category3.Set)
}

func TestBookmarkHandler_DeleteReturnsSnapshot(t *testing.T) {
	rr := do(t, bookmarkRouter(&stubBookmarks{}, nil), http.MethodDelete, "/api/bookmark/1", "")

	require.Equal(t, http.StatusOK, rr.Code)
	var b model.BookmarkNote
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&b))
	assert.True(t, b.IsDeleted)
}
