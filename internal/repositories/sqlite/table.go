package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/pagination"
)

// column is an indexed copy of one record field.
type column[T any] struct {
	name  string
	value func(T) any
}

// table maps one entity type onto its SQLite table.
type table[T any] struct {
	db      *sql.DB
	name    string
	columns []column[T]
	id      func(T) string
	created func(T) time.Time
}

// filter is an equality condition; empty string values are ignored.
type filter struct {
	column string
	value  any
}

func (t *table[T]) op(action string) string { return t.name + "." + action }

func (t *table[T]) insert(ctx context.Context, record T) error {
	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("sqlite: encode %s: %w", t.name, err)
	}
	names := []string{"id", "created_at"}
	args := []any{t.id(record), nanos(t.created(record))}
	for _, col := range t.columns {
		names = append(names, col.name)
		args = append(args, col.value(record))
	}
	names = append(names, "doc")
	args = append(args, string(doc))

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(names, ", "), placeholders(len(names)))
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return wrapError(t.op("insert"), err)
	}
	return nil
}

func (t *table[T]) update(ctx context.Context, record T) error {
	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("sqlite: encode %s: %w", t.name, err)
	}
	sets := []string{"created_at = ?"}
	args := []any{nanos(t.created(record))}
	for _, col := range t.columns {
		sets = append(sets, col.name+" = ?")
		args = append(args, col.value(record))
	}
	sets = append(sets, "doc = ?")
	args = append(args, string(doc), t.id(record))

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.name, strings.Join(sets, ", "))
	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapError(t.op("update"), err)
	}
	return expectOne(res, t.op("update"))
}

func (t *table[T]) delete(ctx context.Context, id string) error {
	res, err := t.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.name), id)
	if err != nil {
		return wrapError(t.op("delete"), err)
	}
	return expectOne(res, t.op("delete"))
}

// first returns the record matching every filter or a not-found error.
func (t *table[T]) first(ctx context.Context, filters ...filter) (T, error) {
	where, args := conditions(filters)
	query := fmt.Sprintf("SELECT doc FROM %s%s LIMIT 1", t.name, where)
	var (
		zero T
		doc  string
	)
	if err := t.db.QueryRowContext(ctx, query, args...).Scan(&doc); err != nil {
		return zero, wrapError(t.op("get"), err)
	}
	return t.decode(doc)
}

func (t *table[T]) get(ctx context.Context, id string) (T, error) {
	return t.first(ctx, filter{column: "id", value: id})
}

// all returns every match in the given order.
func (t *table[T]) all(ctx context.Context, orderBy string, filters ...filter) ([]T, error) {
	where, args := conditions(filters)
	query := fmt.Sprintf("SELECT doc FROM %s%s ORDER BY %s", t.name, where, orderBy)
	return t.query(ctx, query, args)
}

// page lists newest first with id as tie breaker and returns the next page token.
func (t *table[T]) page(ctx context.Context, pager domain.Pagination, filters ...filter) (domain.CursorPage[T], error) {
	size, cursor, err := pagination.Resolve(pager)
	if err != nil {
		return domain.CursorPage[T]{}, err
	}
	where, args := conditions(filters)
	if !cursor.IsZero() {
		keyset := "(created_at < ? OR (created_at = ? AND id < ?))"
		if where == "" {
			where = " WHERE " + keyset
		} else {
			where += " AND " + keyset
		}
		args = append(args, cursor.At, cursor.At, cursor.ID)
	}
	query := fmt.Sprintf("SELECT doc FROM %s%s ORDER BY created_at DESC, id DESC LIMIT %d", t.name, where, size+1)
	items, err := t.query(ctx, query, args)
	if err != nil {
		return domain.CursorPage[T]{}, err
	}
	if len(items) <= size {
		return domain.CursorPage[T]{Items: items}, nil
	}
	items = items[:size]
	last := items[size-1]
	return domain.CursorPage[T]{
		Items:         items,
		NextPageToken: pagination.EncodeToken(pagination.After(t.created(last), t.id(last))),
	}, nil
}

func (t *table[T]) count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(&n); err != nil {
		return 0, wrapError(t.op("count"), err)
	}
	return n, nil
}

func (t *table[T]) query(ctx context.Context, query string, args []any) ([]T, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError(t.op("query"), err)
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, wrapError(t.op("scan"), err)
		}
		item, err := t.decode(doc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(t.op("query"), err)
	}
	return items, nil
}

func (t *table[T]) decode(doc string) (T, error) {
	var record T
	if err := json.Unmarshal([]byte(doc), &record); err != nil {
		return record, fmt.Errorf("sqlite: decode %s: %w", t.name, err)
	}
	return record, nil
}

func conditions(filters []filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	for _, f := range filters {
		if s, ok := f.value.(string); ok && s == "" {
			continue
		}
		clauses = append(clauses, f.column+" = ?")
		args = append(args, f.value)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func expectOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapError(op, err)
	}
	if n == 0 {
		return notFound(op)
	}
	return nil
}
