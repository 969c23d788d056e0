package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"review-service/internal/domain"
	"review-service/internal/store"
	"review-service/pkg/auth"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// recordingMailer keeps the last code sent to each username.
type recordingMailer struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
	fail  error
}

func (m *recordingMailer) SendConfirmationCode(_ context.Context, username, _ string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.codes[username] = code
	m.sent++
	return nil
}

func (m *recordingMailer) code(username string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[username]
}

type testEnv struct {
	t      *testing.T
	stores *store.Stores
	tokens auth.TokenManager
	mail   *recordingMailer
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, RouterOptions{CORSOrigins: []string{"*"}, RateLimitDisabled: true})
}

func newTestEnvWith(t *testing.T, ropts RouterOptions) *testEnv {
	t.Helper()
	stores := store.NewMockStores()
	tm, err := auth.NewTokenManager(strings.Repeat("s", 32), "review-service-test", time.Hour, 24*time.Hour)
	require.NoError(t, err)
	mail := &recordingMailer{codes: make(map[string]string)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := NewHTTPHandler(stores, logger, tm, mail, nil, Options{DefaultPageSize: 10, MaxPageSize: 50, CodeLength: 8})
	return &testEnv{
		t:      t,
		stores: stores,
		tokens: tm,
		mail:   mail,
		router: NewHTTPRouter(h, ropts),
	}
}

// addUser stores an account directly and returns it with an access token.
func (e *testEnv) addUser(username string, role domain.Role, superuser bool) (*domain.User, string) {
	e.t.Helper()
	u := &domain.User{
		ID:          uuid.NewString(),
		Username:    username,
		Email:       username + "@example.com",
		Role:        role,
		IsSuperuser: superuser,
	}
	require.NoError(e.t, e.stores.Users.Create(context.Background(), u))
	pair, err := e.tokens.IssuePair(u.ID, u.Username, string(u.Role))
	require.NoError(e.t, err)
	return u, pair.Access
}

type catalogFixture struct {
	films  *domain.Category
	books  *domain.Category
	drama  *domain.Genre
	comedy *domain.Genre
}

func (e *testEnv) seedCatalog() catalogFixture {
	e.t.Helper()
	ctx := context.Background()
	f := catalogFixture{
		films:  &domain.Category{ID: uuid.NewString(), Name: "Films", Slug: "films"},
		books:  &domain.Category{ID: uuid.NewString(), Name: "Books", Slug: "books"},
		drama:  &domain.Genre{ID: uuid.NewString(), Name: "Drama", Slug: "drama"},
		comedy: &domain.Genre{ID: uuid.NewString(), Name: "Comedy", Slug: "comedy"},
	}
	require.NoError(e.t, e.stores.Categories.Create(ctx, f.films))
	require.NoError(e.t, e.stores.Categories.Create(ctx, f.books))
	require.NoError(e.t, e.stores.Genres.Create(ctx, f.drama))
	require.NoError(e.t, e.stores.Genres.Create(ctx, f.comedy))
	return f
}

func (e *testEnv) addTitle(name string, year int, category *domain.Category, genres ...*domain.Genre) *domain.Title {
	e.t.Helper()
	t := &domain.Title{ID: uuid.NewString(), Name: name, Year: year}
	if category != nil {
		t.CategoryID = &category.ID
	}
	for _, g := range genres {
		t.GenreIDs = append(t.GenreIDs, g.ID)
	}
	require.NoError(e.t, e.stores.Titles.Create(context.Background(), t))
	return t
}

func (e *testEnv) addReview(title *domain.Title, author *domain.User, score int) *domain.Review {
	e.t.Helper()
	r := &domain.Review{ID: uuid.NewString(), TitleID: title.ID, AuthorID: author.ID, Text: "review by " + author.Username, Score: score}
	require.NoError(e.t, e.stores.Reviews.Create(context.Background(), r))
	return r
}

func (e *testEnv) addComment(review *domain.Review, author *domain.User) *domain.Comment {
	e.t.Helper()
	c := &domain.Comment{ID: uuid.NewString(), ReviewID: review.ID, AuthorID: author.ID, Text: "comment by " + author.Username}
	require.NoError(e.t, e.stores.Comments.Create(context.Background(), c))
	return c
}

// do sends a request through the full router. A string body is sent
// verbatim; anything else is JSON-encoded.
func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// doWithHeader sends a bodiless request with a raw Authorization header.
func (e *testEnv) doWithHeader(method, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	return decodeJSON[errorResponse](t, rec)
}

type object = map[string]interface{}
