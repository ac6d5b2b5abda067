package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error { return r.scan(dest...) }

type stubRows struct {
	keys []string
	pos  int
	err  error
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return r.err }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, errors.New("unsupported") }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	if r.pos >= len(r.keys) {
		return false
	}
	r.pos++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	ptr, ok := dest[0].(*string)
	if !ok {
		return fmt.Errorf("unexpected scan target %T", dest[0])
	}
	*ptr = r.keys[r.pos-1]
	return nil
}

// stubDB emulates index_entries in memory by matching on query text.
type stubDB struct {
	values  map[string][]byte
	expires map[string]*time.Time
	lastArg any
}

func newStubDB() *stubDB {
	return &stubDB{values: map[string][]byte{}, expires: map[string]*time.Time{}}
}

func (s *stubDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if strings.Contains(query, "delete from index_entries") {
		var n int
		for key, exp := range s.expires {
			if exp != nil && !exp.After(time.Now()) {
				delete(s.values, key)
				delete(s.expires, key)
				n++
			}
		}
		return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n)), nil
	}
	if !strings.Contains(query, "insert into index_entries") {
		return pgconn.CommandTag{}, fmt.Errorf("unsupported exec: %s", query)
	}
	key := args[0].(string)
	s.values[key] = args[1].([]byte)
	s.expires[key] = args[2].(*time.Time)
	return pgconn.CommandTag{}, nil
}

func (s *stubDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	key := args[0].(string)
	return stubRow{scan: func(dest ...any) error {
		value, ok := s.values[key]
		if !ok {
			return pgx.ErrNoRows
		}
		*dest[0].(*[]byte) = value
		return nil
	}}
}

func (s *stubDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.lastArg = args[0]
	prefix := strings.TrimSuffix(args[0].(string), "%")
	rows := &stubRows{}
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			rows.keys = append(rows.keys, k)
		}
	}
	return rows, nil
}

func TestPostgresIndexStore(t *testing.T) {
	db := newStubDB()
	store := NewPostgresIndexStore(db)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "history:1", []byte(`{"a":1}`), time.Hour))
	require.NoError(t, store.Put(ctx, "history:2", []byte(`{"a":2}`), 0))
	require.NotNil(t, db.expires["history:1"])
	assert.WithinDuration(t, time.Now().Add(time.Hour), *db.expires["history:1"], time.Minute)
	assert.Nil(t, db.expires["history:2"])

	value, err := store.Get(ctx, "history:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(value))

	_, err = store.Get(ctx, "history:404")
	assert.ErrorIs(t, err, ErrNotFound)

	keys, err := store.List(ctx, "history:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"history:1", "history:2"}, keys)
	assert.Equal(t, "history:%", db.lastArg)
}

func TestLikePrefixEscapes(t *testing.T) {
	assert.Equal(t, `a\_b\%c\\%`, likePrefix(`a_b%c\`))
}

func TestPostgresIndexStorePurgeExpired(t *testing.T) {
	db := newStubDB()
	store := NewPostgresIndexStore(db)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	db.values["history:old"] = []byte(`{}`)
	db.expires["history:old"] = &past
	require.NoError(t, store.Put(ctx, "history:new", []byte(`{}`), time.Hour))

	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NotContains(t, db.values, "history:old")
	assert.Contains(t, db.values, "history:new")
}
