package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sakif/category-note/internal/apperror"
	"github.com/sakif/category-note/internal/model"
	"github.com/sakif/category-note/internal/repository"
)

var _ repository.BookmarkRepository = (*DB)(nil)

const bookmarkColumns = `id, title, url, category1, category2, category3, description,
	user_id, is_deleted, created_at, updated_at, deleted_at`

func scanBookmark(row rowScanner) (*model.BookmarkNote, error) {
	var b model.BookmarkNote
	err := row.Scan(
		&b.ID,
		&b.Title,
		&b.URL,
		&b.Category1,
		&b.Category2,
		&b.Category3,
		&b.Description,
		&b.UserID,
		&b.IsDeleted,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// scope is a WHERE clause under construction.
type scope struct {
	conds []string
	args  []any
}

// liveBookmarks is the only way bookmark queries get their WHERE clause.
// It always starts from the owner's rows that are not soft-deleted, so no
// query can forget either predicate.
func liveBookmarks(ownerID int64) *scope {
	return &scope{
		conds: []string{"user_id = ?", "is_deleted = FALSE"},
		args:  []any{ownerID},
	}
}

func (s *scope) and(cond string, args ...any) *scope {
	s.conds = append(s.conds, cond)
	s.args = append(s.args, args...)
	return s
}

func (s *scope) where() string {
	return " WHERE " + strings.Join(s.conds, " AND ")
}

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a case-insensitive "contains" pattern. The column
// side is wrapped in LOWER() by the caller.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func (s *scope) withFilter(f repository.BookmarkFilter) *scope {
	if f.Category != "" {
		p := containsPattern(f.Category)
		s.and(`(LOWER(category1) LIKE ? ESCAPE '\' OR LOWER(category2) LIKE ? ESCAPE '\' OR LOWER(category3) LIKE ? ESCAPE '\')`, p, p, p)
	}
	if f.Search != "" {
		p := containsPattern(f.Search)
		s.and(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, p, p)
	}
	return s
}

// CreateBookmark inserts b, owned by b.UserID, and fills in ID and
// timestamps.
func (db *DB) CreateBookmark(ctx context.Context, b *model.BookmarkNote) error {
	now := db.now()

	id, err := withRetry(ctx, db, "create bookmark", func() (int64, error) {
		var id int64
		err := db.conn.QueryRowContext(ctx, db.rebind(
			`INSERT INTO bookmark_notes (title, url, category1, category2, category3, description,
				user_id, is_deleted, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, FALSE, ?, ?)
			 RETURNING id`),
			b.Title,
			b.URL,
			nullable(b.Category1),
			nullable(b.Category2),
			nullable(b.Category3),
			nullable(b.Description),
			b.UserID,
			now,
			now,
		).Scan(&id)
		return id, err
	})
	if err != nil {
		return fmt.Errorf("sqlstore: creating bookmark: %w", err)
	}

	b.ID = id
	b.IsDeleted = false
	b.CreatedAt = now
	b.UpdatedAt = now
	b.DeletedAt = nil
	return nil
}

func (db *DB) GetBookmark(ctx context.Context, ownerID, id int64) (*model.BookmarkNote, error) {
	b, err := withRetry(ctx, db, "get bookmark", func() (*model.BookmarkNote, error) {
		return db.getBookmark(ctx, db.conn, ownerID, id, false)
	})
	if err != nil {
		return nil, db.bookmarkErr("getting", id, err)
	}
	return b, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) getBookmark(ctx context.Context, q queryer, ownerID, id int64, lock bool) (*model.BookmarkNote, error) {
	s := liveBookmarks(ownerID).and("id = ?", id)
	query := `SELECT ` + bookmarkColumns + ` FROM bookmark_notes` + s.where()
	if lock {
		query += db.forUpdate()
	}
	return scanBookmark(q.QueryRowContext(ctx, db.rebind(query), s.args...))
}

// ListBookmarks returns one page of the owner's live bookmarks matching the
// filter, newest first, plus the total match count.
func (db *DB) ListBookmarks(ctx context.Context, ownerID int64, filter repository.BookmarkFilter, opts repository.ListOptions) ([]model.BookmarkNote, int64, error) {
	s := liveBookmarks(ownerID).withFilter(filter)

	type page struct {
		items []model.BookmarkNote
		total int64
	}

	p, err := withRetry(ctx, db, "list bookmarks", func() (page, error) {
		var out page
		if err := db.conn.QueryRowContext(ctx, db.rebind(
			`SELECT COUNT(*) FROM bookmark_notes`+s.where()), s.args...,
		).Scan(&out.total); err != nil {
			return page{}, err
		}
		if out.total == 0 {
			return out, nil
		}

		args := append(append([]any{}, s.args...), opts.Limit, opts.Offset)
		rows, err := db.conn.QueryContext(ctx, db.rebind(
			`SELECT `+bookmarkColumns+` FROM bookmark_notes`+s.where()+
				` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`), args...)
		if err != nil {
			return page{}, err
		}
		defer rows.Close()

		for rows.Next() {
			b, err := scanBookmark(rows)
			if err != nil {
				return page{}, err
			}
			out.items = append(out.items, *b)
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("sqlstore: listing bookmarks for user %d: %w", ownerID, err)
	}

	if p.items == nil {
		p.items = []model.BookmarkNote{}
	}
	return p.items, p.total, nil
}

// UpdateBookmarkCategories applies patch to the slots it sets and refreshes
// updated_at, all in one transaction. Unset slots are left untouched.
func (db *DB) UpdateBookmarkCategories(ctx context.Context, ownerID, id int64, patch model.CategoryPatch) (*model.BookmarkNote, error) {
	b, err := withRetry(ctx, db, "update bookmark categories", func() (*model.BookmarkNote, error) {
		var out *model.BookmarkNote
		err := db.inTx(ctx, func(tx *sql.Tx) error {
			current, err := db.getBookmark(ctx, tx, ownerID, id, true)
			if err != nil {
				return err
			}

			now := db.now()
			sets := []string{"updated_at = ?"}
			args := []any{now}
			slots := []struct {
				column string
				value  model.OptionalString
				dst    **string
			}{
				{"category1", patch.Category1, &current.Category1},
				{"category2", patch.Category2, &current.Category2},
				{"category3", patch.Category3, &current.Category3},
			}
			for _, slot := range slots {
				if !slot.value.Set {
					continue
				}
				sets = append(sets, slot.column+" = ?")
				args = append(args, nullable(slot.value.Value))
				*slot.dst = slot.value.Value
			}

			s := liveBookmarks(ownerID).and("id = ?", id)
			res, err := tx.ExecContext(ctx, db.rebind(
				`UPDATE bookmark_notes SET `+strings.Join(sets, ", ")+s.where()),
				append(args, s.args...)...)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return sql.ErrNoRows
			}

			current.UpdatedAt = now
			out = current
			return nil
		})
		return out, err
	})
	if err != nil {
		return nil, db.bookmarkErr("updating", id, err)
	}
	return b, nil
}

// SoftDeleteBookmark marks the bookmark deleted and returns its final state.
// From then on every scoped query treats it as absent.
func (db *DB) SoftDeleteBookmark(ctx context.Context, ownerID, id int64) (*model.BookmarkNote, error) {
	b, err := withRetry(ctx, db, "soft delete bookmark", func() (*model.BookmarkNote, error) {
		var out *model.BookmarkNote
		err := db.inTx(ctx, func(tx *sql.Tx) error {
			current, err := db.getBookmark(ctx, tx, ownerID, id, true)
			if err != nil {
				return err
			}

			now := db.now()
			s := liveBookmarks(ownerID).and("id = ?", id)
			res, err := tx.ExecContext(ctx, db.rebind(
				`UPDATE bookmark_notes SET is_deleted = TRUE, deleted_at = ?, updated_at = ?`+s.where()),
				append([]any{now, now}, s.args...)...)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return sql.ErrNoRows
			}

			current.IsDeleted = true
			current.DeletedAt = &now
			current.UpdatedAt = now
			out = current
			return nil
		})
		return out, err
	})
	if err != nil {
		return nil, db.bookmarkErr("deleting", id, err)
	}
	return b, nil
}

// ListCategoryValues returns every non-empty category slot of the owner's
// live bookmarks. De-duplication and ordering happen in the service so the
// result does not depend on database collation.
func (db *DB) ListCategoryValues(ctx context.Context, ownerID int64) ([]string, error) {
	s := liveBookmarks(ownerID)

	values, err := withRetry(ctx, db, "list categories", func() ([]string, error) {
		rows, err := db.conn.QueryContext(ctx, db.rebind(
			`SELECT category1, category2, category3 FROM bookmark_notes`+s.where()), s.args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []string
		for rows.Next() {
			var b model.BookmarkNote
			if err := rows.Scan(&b.Category1, &b.Category2, &b.Category3); err != nil {
				return nil, err
			}
			out = append(out, b.Categories()...)
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing categories for user %d: %w", ownerID, err)
	}
	return values, nil
}

func (db *DB) bookmarkErr(verb string, id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound("bookmark", strconv.FormatInt(id, 10))
	}
	return fmt.Errorf("sqlstore: %s bookmark %d: %w", verb, id, err)
}
