package query

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/brainbox/internal/common"
	"github.com/dmitrijs2005/brainbox/internal/local/engine"
	"github.com/dmitrijs2005/brainbox/internal/local/persist"
	"github.com/dmitrijs2005/brainbox/internal/local/schema"
	"github.com/dmitrijs2005/brainbox/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner runs callbacks directly against a sqlmock database.
type mockRunner struct{ db *sql.DB }

type mockConn struct{ *sql.DB }

func (mockConn) Export(context.Context) ([]byte, error) { return []byte("image"), nil }

func (m mockRunner) Run(ctx context.Context, fn func(ctx context.Context, c engine.Conn) error) error {
	return fn(ctx, mockConn{m.db})
}

type countingSaver struct {
	mu     sync.Mutex
	saves  int
	images [][]byte
	err    error
}

func (s *countingSaver) Save(ctx context.Context, src persist.Exporter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.err != nil {
		return common.NewError(common.KindPersistence, "failed to persist database image", s.err)
	}
	image, err := src.Export(ctx)
	if err != nil {
		return err
	}
	s.images = append(s.images, image)
	return nil
}

func newMock(t *testing.T) (*Translator, sqlmock.Sqlmock, *countingSaver) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	saver := &countingSaver{}
	tr := NewTranslator(mockRunner{db: db}, saver, nil, nil)
	return tr, mock, saver
}

func TestExecute_SelectDecodesTags(t *testing.T) {
	tr, mock, saver := newMock(t)

	mock.ExpectQuery("SELECT * FROM items WHERE user_id = ?").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tags"}).AddRow("i1", `["a","b"]`))

	res := tr.From("items").Select().Eq("user_id", "u1").Execute(context.Background())
	require.NoError(t, res.Err)
	rows := res.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"a", "b"}, rows[0]["tags"])
	assert.Equal(t, 0, saver.saves)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_MutationSavesOnce(t *testing.T) {
	tr, mock, saver := newMock(t)

	mock.ExpectQuery("DELETE FROM items WHERE id = ? RETURNING *").
		WithArgs("i1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("i1"))

	res := tr.From("items").Delete().Eq("id", "i1").Execute(context.Background())
	require.NoError(t, res.Err)
	assert.Len(t, res.Rows(), 1)
	assert.Equal(t, 1, saver.saves)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_InsertArgs(t *testing.T) {
	tr, mock, _ := newMock(t)

	mock.ExpectQuery("INSERT INTO tag_icons (created_at, icon, id, tag, updated_at, user_id) VALUES (?, ?, ?, ?, ?, ?) RETURNING *").
		WithArgs(sqlmock.AnyArg(), "star", sqlmock.AnyArg(), "go", sqlmock.AnyArg(), "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tag"}).AddRow("t1", "go"))

	res := tr.From("tag_icons").Insert(Row{"tag": "go", "icon": "star", "user_id": "u1"}).Single().Execute(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, "go", res.Row()["tag"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_ErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		queryErr error
		want     common.Kind
	}{
		{"generic", errors.New("disk I/O error"), common.KindInternal},
		{"constraint", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), common.KindConstraint},
		{"missing table on mutation", errors.New("SQL logic error: no such table: nope (1)"), common.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, mock, saver := newMock(t)
			mock.ExpectQuery("DELETE FROM nope RETURNING *").WillReturnError(tt.queryErr)

			res := tr.From("nope").Delete().Execute(context.Background())
			require.Error(t, res.Err)
			assert.Nil(t, res.Data)
			assert.Equal(t, tt.want, common.KindOf(res.Err))
			assert.Equal(t, 0, saver.saves)
		})
	}
}

func TestExecute_MissingTableSelectIsEmpty(t *testing.T) {
	tr, mock, _ := newMock(t)
	mock.ExpectQuery("SELECT * FROM nope").WillReturnError(errors.New("SQL logic error: no such table: nope (1)"))

	res := tr.From("nope").Execute(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, []Row{}, res.Data)
}

func TestExecute_InvalidRequestNeverReachesEngine(t *testing.T) {
	tr, mock, _ := newMock(t)

	res := tr.From("items").Eq("bad column", 1).Execute(context.Background())
	assert.Equal(t, common.KindInvalid, common.KindOf(res.Err))
	require.NoError(t, mock.ExpectationsWereMet())
}

// Tests below run against the real embedded engine and schema.

type fixture struct {
	tr    *Translator
	eng   *engine.Engine
	saver *countingSaver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	eng, err := engine.Open(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	_, err = schema.Ensure(ctx, eng, nil)
	require.NoError(t, err)

	saver := &countingSaver{}
	return &fixture{tr: NewTranslator(eng, saver, timex.NewClock(nil), nil), eng: eng, saver: saver}
}

func (f *fixture) user(t *testing.T, email string) string {
	t.Helper()
	res := f.tr.From("users").Insert(Row{"email": email, "password_hash": "x"}).Single().Execute(context.Background())
	require.NoError(t, res.Err)
	return res.Row()["id"].(string)
}

type item struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Title      *string   `json:"title"`
	Tags       []string  `json:"tags"`
	CategoryID *string   `json:"category_id"`
	UserID     string    `json:"user_id"`
	Embedding  []float64 `json:"embedding"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func TestEngine_TagsRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.user(t, "a@example.com")

	res := f.tr.From("items").Insert(Row{
		"type": "note", "title": "hello", "tags": []string{"x", "y"}, "user_id": uid,
	}).Single().Execute(ctx)
	require.NoError(t, res.Err)

	var got item
	require.NoError(t, res.Scan(&got))
	assert.Equal(t, []string{"x", "y"}, got.Tags)
	assert.Nil(t, got.Embedding)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)

	var listed []item
	require.NoError(t, f.tr.From("items").Eq("user_id", uid).Execute(ctx).Scan(&listed))
	require.Len(t, listed, 1)
	assert.Equal(t, []string{"x", "y"}, listed[0].Tags)
}

func TestEngine_TagsDefaultToEmptyList(t *testing.T) {
	f := newFixture(t)
	uid := f.user(t, "a@example.com")

	res := f.tr.From("items").Insert(Row{"type": "link", "user_id": uid}).Single().Execute(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, []string{}, res.Row()["tags"])
}

func TestEngine_UpdateAdvancesUpdatedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.user(t, "a@example.com")

	created := f.tr.From("items").Insert(Row{"type": "note", "user_id": uid}).Single().Execute(ctx)
	require.NoError(t, created.Err)
	id := created.Row()["id"]

	updated := f.tr.From("items").Update(Row{"title": "renamed"}).Eq("id", id).Single().Execute(ctx)
	require.NoError(t, updated.Err)

	row := updated.Row()
	assert.Equal(t, "renamed", row["title"])
	assert.Greater(t, row["updated_at"].(string), row["created_at"].(string))
}

func TestEngine_SingleShapes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "a@example.com")
	f.user(t, "b@example.com")

	res := f.tr.From("users").Eq("email", "nobody@example.com").Single().Execute(ctx)
	assert.Equal(t, common.KindNotFound, common.KindOf(res.Err))
	assert.Nil(t, res.Data)

	res = f.tr.From("users").Eq("email", "nobody@example.com").MaybeSingle().Execute(ctx)
	assert.NoError(t, res.Err)
	assert.Nil(t, res.Data)

	res = f.tr.From("users").Single().Execute(ctx)
	assert.Equal(t, common.KindInvalid, common.KindOf(res.Err))

	res = f.tr.From("users").MaybeSingle().Execute(ctx)
	assert.Equal(t, common.KindInvalid, common.KindOf(res.Err))

	res = f.tr.From("users").Eq("email", "a@example.com").MaybeSingle().Execute(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, "a@example.com", res.Row()["email"])
}

func TestEngine_Constraints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.user(t, "a@example.com")

	tests := []struct {
		name string
		run  func() Result
	}{
		{"unique email", func() Result {
			return f.tr.From("users").Insert(Row{"email": "a@example.com", "password_hash": "x"}).Execute(ctx)
		}},
		{"unknown user", func() Result {
			return f.tr.From("items").Insert(Row{"type": "note", "user_id": "ghost"}).Execute(ctx)
		}},
		{"item type check", func() Result {
			return f.tr.From("items").Insert(Row{"type": "podcast", "user_id": uid}).Execute(ctx)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.run()
			assert.Equal(t, common.KindConstraint, common.KindOf(res.Err))
		})
	}

	require.NoError(t, f.tr.From("tag_icons").Insert(Row{"tag": "go", "icon": "a", "user_id": uid}).Execute(ctx).Err)
	res := f.tr.From("tag_icons").Insert(Row{"tag": "go", "icon": "b", "user_id": uid}).Execute(ctx)
	assert.Equal(t, common.KindConstraint, common.KindOf(res.Err))
}

func TestEngine_CascadeAndSetNull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.user(t, "a@example.com")

	cat := f.tr.From("categories").Insert(Row{"name": "reading", "user_id": uid}).Single().Execute(ctx)
	require.NoError(t, cat.Err)
	catID := cat.Row()["id"]

	require.NoError(t, f.tr.From("items").Insert(Row{"type": "note", "user_id": uid, "category_id": catID}).Execute(ctx).Err)

	require.NoError(t, f.tr.From("categories").Delete().Eq("id", catID).Execute(ctx).Err)
	items := f.tr.From("items").Is("category_id", nil).Execute(ctx)
	require.NoError(t, items.Err)
	assert.Len(t, items.Rows(), 1)

	require.NoError(t, f.tr.From("users").Delete().Eq("id", uid).Execute(ctx).Err)
	items = f.tr.From("items").Execute(ctx)
	require.NoError(t, items.Err)
	assert.Empty(t, items.Rows())
}

func TestEngine_BulkInsertKeepsOrder(t *testing.T) {
	f := newFixture(t)
	uid := f.user(t, "a@example.com")

	res := f.tr.From("categories").Insert([]Row{
		{"name": "c", "user_id": uid},
		{"name": "a", "user_id": uid},
		{"name": "b", "user_id": uid},
	}).Execute(context.Background())
	require.NoError(t, res.Err)

	rows := res.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, []any{"c", "a", "b"}, []any{rows[0]["name"], rows[1]["name"], rows[2]["name"]})
}

func TestEngine_ContainsFiltersTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.user(t, "a@example.com")

	require.NoError(t, f.tr.From("items").Insert([]Row{
		{"type": "note", "title": "one", "tags": []string{"go", "db"}, "user_id": uid},
		{"type": "note", "title": "two", "tags": []string{"go"}, "user_id": uid},
		{"type": "note", "title": "three", "tags": []string{"golang"}, "user_id": uid},
	}).Execute(ctx).Err)

	res := f.tr.From("items").Select("title").Contains("tags", []string{"go"}).Order("title", true).Execute(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, []Row{{"title": "one"}, {"title": "two"}}, res.Rows())

	res = f.tr.From("items").Contains("tags", []string{"go", "db"}).Execute(ctx)
	require.NoError(t, res.Err)
	assert.Len(t, res.Rows(), 1)
}

func TestEngine_OrderAndLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.user(t, "a@example.com")

	for _, title := range []string{"first", "second", "third"} {
		require.NoError(t, f.tr.From("items").Insert(Row{"type": "note", "title": title, "user_id": uid}).Execute(ctx).Err)
	}

	res := f.tr.From("items").Select("title").Order("created_at", false).Limit(2).Execute(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, []Row{{"title": "third"}, {"title": "second"}}, res.Rows())
}

func TestEngine_SavesAfterEveryMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.user(t, "a@example.com")
	require.Equal(t, 1, f.saver.saves)

	require.NoError(t, f.tr.From("users").Execute(ctx).Err)
	assert.Equal(t, 1, f.saver.saves)

	require.NoError(t, f.tr.From("users").Update(Row{"email": "b@example.com"}).Eq("id", uid).Execute(ctx).Err)
	assert.Equal(t, 2, f.saver.saves)
	assert.NotEmpty(t, f.saver.images[1])
}

func TestEngine_SaveFailureKeepsRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saver.err = errors.New("quota exceeded")

	res := f.tr.From("users").Insert(Row{"email": "a@example.com", "password_hash": "x"}).Execute(ctx)
	assert.Equal(t, common.KindPersistence, common.KindOf(res.Err))

	f.saver.err = nil
	res = f.tr.From("users").Eq("email", "a@example.com").Execute(ctx)
	require.NoError(t, res.Err)
	assert.Len(t, res.Rows(), 1)
}

// cancelingSaver cancels the caller's context right before flushing.
type cancelingSaver struct {
	cancel context.CancelFunc
	inner  *countingSaver
}

func (s cancelingSaver) Save(ctx context.Context, src persist.Exporter) error {
	s.cancel()
	return s.inner.Save(ctx, src)
}

func TestEngine_CancelDoesNotTearWrites(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	tr := NewTranslator(f.eng, cancelingSaver{cancel: cancel, inner: f.saver}, timex.NewClock(nil), nil)

	res := tr.From("users").Insert(Row{"email": "a@example.com", "password_hash": "x"}).Execute(ctx)
	require.NoError(t, res.Err)
	require.Error(t, ctx.Err())
	require.Equal(t, 1, f.saver.saves)
	assert.NotEmpty(t, f.saver.images[0])

	// already cancelled before the call
	res = f.tr.From("users").Insert(Row{"email": "b@example.com", "password_hash": "x"}).Execute(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, 2, f.saver.saves)

	res = f.tr.From("users").Execute(ctx)
	require.NoError(t, res.Err)
	assert.Len(t, res.Rows(), 2)
}

func TestEngine_ZeroValueStructInsertedTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.user(t, "a@example.com")

	var first, second item
	require.NoError(t, f.tr.From("items").Insert(item{Type: "note", UserID: uid}).Single().Execute(ctx).Scan(&first))
	require.NoError(t, f.tr.From("items").Insert(item{Type: "note", UserID: uid}).Single().Execute(ctx).Scan(&second))

	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.CreatedAt.IsZero())
	assert.False(t, first.UpdatedAt.IsZero())
	assert.Equal(t, []string{}, first.Tags)
	assert.Nil(t, first.Embedding)
}

func TestEngine_ContainsMatchesWildcardsLiterally(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.user(t, "a@example.com")

	for _, title := range []string{"50% off", "500 off", "a_b", "axb"} {
		require.NoError(t, f.tr.From("items").Insert(Row{"type": "note", "title": title, "user_id": uid}).Execute(ctx).Err)
	}

	var got []item
	require.NoError(t, f.tr.From("items").Contains("title", "50%").Execute(ctx).Scan(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "50% off", *got[0].Title)

	require.NoError(t, f.tr.From("items").Contains("title", "a_b").Execute(ctx).Scan(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "a_b", *got[0].Title)
}

func TestEngine_MalformedTagsReadAsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.user(t, "a@example.com")

	err := f.eng.Run(ctx, func(ctx context.Context, c engine.Conn) error {
		_, err := c.ExecContext(ctx, `INSERT INTO items (id, type, tags, user_id) VALUES ('bad', 'note', 'oops', ?)`, uid)
		return err
	})
	require.NoError(t, err)

	res := f.tr.From("items").Eq("id", "bad").Single().Execute(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{}, res.Row()["tags"])
}

func TestEngine_MissingTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.tr.From("nothing_here").Execute(ctx)
	require.NoError(t, res.Err)
	assert.Empty(t, res.Rows())

	res = f.tr.From("nothing_here").Single().Execute(ctx)
	assert.Equal(t, common.KindNotFound, common.KindOf(res.Err))
}
