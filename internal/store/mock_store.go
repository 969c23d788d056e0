// review-service/internal/store/mock_store.go
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"review-service/internal/domain"
)

// memDB is the shared state behind the Mock* stores. One mutex guards every
// table so cascades and uniqueness checks are atomic, like a single database.
type memDB struct {
	mu         sync.RWMutex
	users      map[string]*domain.User // by ID
	categories map[string]*domain.Category
	genres     map[string]*domain.Genre
	titles     map[string]*domain.Title
	reviews    map[string]*domain.Review
	comments   map[string]*domain.Comment
	now        func() time.Time
}

// NewMockStores returns in-memory stores sharing one dataset. They are used
// by tests and by the service when no database is configured.
func NewMockStores() *Stores {
	db := &memDB{
		users:      make(map[string]*domain.User),
		categories: make(map[string]*domain.Category),
		genres:     make(map[string]*domain.Genre),
		titles:     make(map[string]*domain.Title),
		reviews:    make(map[string]*domain.Review),
		comments:   make(map[string]*domain.Comment),
		now:        func() time.Time { return time.Now().UTC() },
	}
	return &Stores{
		Users:      &MockUserStore{db},
		Categories: &MockCategoryStore{db},
		Genres:     &MockGenreStore{db},
		Titles:     &MockTitleStore{db},
		Reviews:    &MockReviewStore{db},
		Comments:   &MockCommentStore{db},
	}
}

func paginate[T any](items []T, p ListParams) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := len(items)
	if p.PageSize > 0 && start+p.PageSize < end {
		end = start + p.PageSize
	}
	return items[start:end]
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// MockUserStore is the in-memory UserStore.
type MockUserStore struct{ db *memDB }

func (m *MockUserStore) Create(ctx context.Context, user *domain.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	for _, u := range m.db.users {
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
			return ErrUserAlreadyExists
		}
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	user.CreatedAt = m.db.now()
	user.UpdatedAt = user.CreatedAt
	userCopy := *user
	m.db.users[user.ID] = &userCopy
	return nil
}

func (m *MockUserStore) find(match func(*domain.User) bool) (*domain.User, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	for _, u := range m.db.users {
		if match(u) {
			userCopy := *u
			return &userCopy, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MockUserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.ID == id })
}

func (m *MockUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Username == username })
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *MockUserStore) List(ctx context.Context, params ListParams) ([]*domain.User, int, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()

	var users []*domain.User
	for _, u := range m.db.users {
		if params.Search == "" || containsFold(u.Username, params.Search) {
			userCopy := *u
			users = append(users, &userCopy)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return paginate(users, params), len(users), nil
}

func (m *MockUserStore) Update(ctx context.Context, user *domain.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	existing, ok := m.db.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	for id, u := range m.db.users {
		if id != user.ID && (u.Username == user.Username || strings.EqualFold(u.Email, user.Email)) {
			return ErrUserAlreadyExists
		}
	}
	user.UpdatedAt = m.db.now()
	updated := *user
	updated.ConfirmationCodeHash = existing.ConfirmationCodeHash
	updated.IsSuperuser = existing.IsSuperuser
	updated.CreatedAt = existing.CreatedAt
	m.db.users[user.ID] = &updated
	return nil
}

func (m *MockUserStore) ConsumeConfirmationCode(ctx context.Context, userID, hash string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	u, ok := m.db.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if u.ConfirmationCodeHash == nil || *u.ConfirmationCodeHash != hash {
		return ErrCodeConsumed
	}
	u.ConfirmationCodeHash = nil
	u.UpdatedAt = m.db.now()
	return nil
}

func (m *MockUserStore) SetConfirmationCode(ctx context.Context, userID string, hash *string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	u, ok := m.db.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if hash == nil {
		u.ConfirmationCodeHash = nil
	} else {
		h := *hash
		u.ConfirmationCodeHash = &h
	}
	u.UpdatedAt = m.db.now()
	return nil
}

func (m *MockUserStore) Delete(ctx context.Context, username string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	for id, u := range m.db.users {
		if u.Username != username {
			continue
		}
		delete(m.db.users, id)
		for rid, r := range m.db.reviews {
			if r.AuthorID == id {
				m.db.deleteReviewLocked(rid)
			}
		}
		for cid, c := range m.db.comments {
			if c.AuthorID == id {
				delete(m.db.comments, cid)
			}
		}
		return nil
	}
	return ErrUserNotFound
}

// MockCategoryStore is the in-memory CategoryStore.
type MockCategoryStore struct{ db *memDB }

func (m *MockCategoryStore) Create(ctx context.Context, c *domain.Category) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.categories[c.Slug]; ok {
		return ErrSlugAlreadyExists
	}
	cc := *c
	m.db.categories[c.Slug] = &cc
	return nil
}

func (m *MockCategoryStore) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	c, ok := m.db.categories[slug]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	cc := *c
	return &cc, nil
}

func (m *MockCategoryStore) List(ctx context.Context, params ListParams) ([]*domain.Category, int, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	var out []*domain.Category
	for _, c := range m.db.categories {
		if params.Search == "" || containsFold(c.Name, params.Search) || containsFold(c.Slug, params.Search) {
			cc := *c
			out = append(out, &cc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Slug < out[j].Slug
	})
	return paginate(out, params), len(out), nil
}

func (m *MockCategoryStore) Delete(ctx context.Context, slug string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.categories[slug]
	if !ok {
		return ErrCategoryNotFound
	}
	delete(m.db.categories, slug)
	for _, t := range m.db.titles {
		if t.CategoryID != nil && *t.CategoryID == c.ID {
			t.CategoryID = nil
		}
	}
	return nil
}

// MockGenreStore is the in-memory GenreStore.
type MockGenreStore struct{ db *memDB }

func (m *MockGenreStore) Create(ctx context.Context, g *domain.Genre) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.genres[g.Slug]; ok {
		return ErrSlugAlreadyExists
	}
	gc := *g
	m.db.genres[g.Slug] = &gc
	return nil
}

func (m *MockGenreStore) GetBySlug(ctx context.Context, slug string) (*domain.Genre, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	g, ok := m.db.genres[slug]
	if !ok {
		return nil, ErrGenreNotFound
	}
	gc := *g
	return &gc, nil
}

func (m *MockGenreStore) GetBySlugs(ctx context.Context, slugs []string) ([]domain.Genre, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	out := []domain.Genre{}
	for _, slug := range uniqueStrings(slugs) {
		g, ok := m.db.genres[slug]
		if !ok {
			return nil, ErrGenreNotFound
		}
		out = append(out, *g)
	}
	sortGenres(out)
	return out, nil
}

func (m *MockGenreStore) List(ctx context.Context, params ListParams) ([]*domain.Genre, int, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	var out []*domain.Genre
	for _, g := range m.db.genres {
		if params.Search == "" || containsFold(g.Name, params.Search) {
			gc := *g
			out = append(out, &gc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Slug < out[j].Slug
	})
	return paginate(out, params), len(out), nil
}

func (m *MockGenreStore) Delete(ctx context.Context, slug string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	g, ok := m.db.genres[slug]
	if !ok {
		return ErrGenreNotFound
	}
	delete(m.db.genres, slug)
	for _, t := range m.db.titles {
		kept := t.GenreIDs[:0]
		for _, id := range t.GenreIDs {
			if id != g.ID {
				kept = append(kept, id)
			}
		}
		t.GenreIDs = kept
	}
	return nil
}

func sortGenres(gs []domain.Genre) {
	sort.Slice(gs, func(i, j int) bool {
		if gs[i].Name != gs[j].Name {
			return gs[i].Name < gs[j].Name
		}
		return gs[i].Slug < gs[j].Slug
	})
}

// MockTitleStore is the in-memory TitleStore.
type MockTitleStore struct{ db *memDB }

func (m *MockTitleStore) Create(ctx context.Context, title *domain.Title) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if err := m.db.checkTitleRefsLocked(title); err != nil {
		return err
	}
	title.CreatedAt = m.db.now()
	m.db.titles[title.ID] = m.db.storedTitle(title)
	return nil
}

func (m *MockTitleStore) Update(ctx context.Context, title *domain.Title) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	existing, ok := m.db.titles[title.ID]
	if !ok {
		return ErrTitleNotFound
	}
	if err := m.db.checkTitleRefsLocked(title); err != nil {
		return err
	}
	stored := m.db.storedTitle(title)
	stored.CreatedAt = existing.CreatedAt
	m.db.titles[title.ID] = stored
	return nil
}

func (m *MockTitleStore) GetByID(ctx context.Context, id string) (*domain.Title, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	t, ok := m.db.titles[id]
	if !ok {
		return nil, ErrTitleNotFound
	}
	return m.db.hydrateTitleLocked(t), nil
}

func (m *MockTitleStore) List(ctx context.Context, params TitleListParams) ([]*domain.Title, int, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	var out []*domain.Title
	for _, stored := range m.db.titles {
		t := m.db.hydrateTitleLocked(stored)
		if params.Category != "" && (t.Category == nil || t.Category.Slug != params.Category) {
			continue
		}
		if params.Genre != "" && !hasGenre(t.Genres, params.Genre) {
			continue
		}
		if params.Name != "" && !containsFold(t.Name, params.Name) {
			continue
		}
		if params.Year != nil && t.Year != *params.Year {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, params.ListParams), len(out), nil
}

func (m *MockTitleStore) Delete(ctx context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.titles[id]; !ok {
		return ErrTitleNotFound
	}
	delete(m.db.titles, id)
	for rid, r := range m.db.reviews {
		if r.TitleID == id {
			m.db.deleteReviewLocked(rid)
		}
	}
	return nil
}

func hasGenre(gs []domain.Genre, slug string) bool {
	for _, g := range gs {
		if g.Slug == slug {
			return true
		}
	}
	return false
}

func (db *memDB) checkTitleRefsLocked(t *domain.Title) error {
	if t.CategoryID != nil && db.categoryByID(*t.CategoryID) == nil {
		return ErrInvalidReference
	}
	for _, id := range t.GenreIDs {
		if db.genreByID(id) == nil {
			return ErrInvalidReference
		}
	}
	return nil
}

// storedTitle keeps only the columns a database row would hold.
func (db *memDB) storedTitle(t *domain.Title) *domain.Title {
	stored := &domain.Title{
		ID:          t.ID,
		Name:        t.Name,
		Year:        t.Year,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		GenreIDs:    uniqueStrings(t.GenreIDs),
	}
	if t.CategoryID != nil {
		id := *t.CategoryID
		stored.CategoryID = &id
	}
	return stored
}

func (db *memDB) hydrateTitleLocked(stored *domain.Title) *domain.Title {
	t := *stored
	t.GenreIDs = append([]string(nil), stored.GenreIDs...)
	t.Category = nil
	if t.CategoryID != nil {
		if c := db.categoryByID(*t.CategoryID); c != nil {
			cc := *c
			t.Category = &cc
		}
	}
	t.Genres = []domain.Genre{}
	for _, id := range t.GenreIDs {
		if g := db.genreByID(id); g != nil {
			t.Genres = append(t.Genres, *g)
		}
	}
	sortGenres(t.Genres)

	sum, n := 0, 0
	for _, r := range db.reviews {
		if r.TitleID == t.ID {
			sum += r.Score
			n++
		}
	}
	t.Rating = nil
	if n > 0 {
		avg := float64(sum) / float64(n)
		t.Rating = &avg
	}
	return &t
}

func (db *memDB) categoryByID(id string) *domain.Category {
	for _, c := range db.categories {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (db *memDB) genreByID(id string) *domain.Genre {
	for _, g := range db.genres {
		if g.ID == id {
			return g
		}
	}
	return nil
}

func (db *memDB) deleteReviewLocked(reviewID string) {
	delete(db.reviews, reviewID)
	for cid, c := range db.comments {
		if c.ReviewID == reviewID {
			delete(db.comments, cid)
		}
	}
}

func (db *memDB) usernameLocked(userID string) string {
	if u, ok := db.users[userID]; ok {
		return u.Username
	}
	return ""
}

// MockReviewStore is the in-memory ReviewStore. The (title, author) pair is
// checked under the write lock, so concurrent creates admit exactly one.
type MockReviewStore struct{ db *memDB }

func (m *MockReviewStore) Create(ctx context.Context, review *domain.Review) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	if _, ok := m.db.titles[review.TitleID]; !ok {
		return ErrInvalidReference
	}
	if _, ok := m.db.users[review.AuthorID]; !ok {
		return ErrInvalidReference
	}
	for _, r := range m.db.reviews {
		if r.TitleID == review.TitleID && r.AuthorID == review.AuthorID {
			return ErrDuplicateReview
		}
	}
	if review.PubDate.IsZero() {
		review.PubDate = m.db.now()
	}
	rc := *review
	m.db.reviews[review.ID] = &rc
	return nil
}

func (m *MockReviewStore) GetByID(ctx context.Context, titleID, reviewID string) (*domain.Review, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	r, ok := m.db.reviews[reviewID]
	if !ok || r.TitleID != titleID {
		return nil, ErrReviewNotFound
	}
	rc := *r
	rc.Author = m.db.usernameLocked(r.AuthorID)
	return &rc, nil
}

func (m *MockReviewStore) ExistsForAuthor(ctx context.Context, titleID, authorID string) (bool, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	for _, r := range m.db.reviews {
		if r.TitleID == titleID && r.AuthorID == authorID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockReviewStore) ListByTitle(ctx context.Context, titleID string, params ListParams) ([]*domain.Review, int, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	var out []*domain.Review
	for _, r := range m.db.reviews {
		if r.TitleID == titleID {
			rc := *r
			rc.Author = m.db.usernameLocked(r.AuthorID)
			out = append(out, &rc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PubDate.Equal(out[j].PubDate) {
			return out[i].PubDate.After(out[j].PubDate)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, params), len(out), nil
}

func (m *MockReviewStore) Update(ctx context.Context, review *domain.Review) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.reviews[review.ID]
	if !ok || r.TitleID != review.TitleID {
		return ErrReviewNotFound
	}
	r.Text = review.Text
	r.Score = review.Score
	return nil
}

func (m *MockReviewStore) Delete(ctx context.Context, titleID, reviewID string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.reviews[reviewID]
	if !ok || r.TitleID != titleID {
		return ErrReviewNotFound
	}
	m.db.deleteReviewLocked(reviewID)
	return nil
}

// MockCommentStore is the in-memory CommentStore.
type MockCommentStore struct{ db *memDB }

func (m *MockCommentStore) Create(ctx context.Context, comment *domain.Comment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.reviews[comment.ReviewID]; !ok {
		return ErrInvalidReference
	}
	if _, ok := m.db.users[comment.AuthorID]; !ok {
		return ErrInvalidReference
	}
	if comment.PubDate.IsZero() {
		comment.PubDate = m.db.now()
	}
	cc := *comment
	m.db.comments[comment.ID] = &cc
	return nil
}

func (m *MockCommentStore) GetByID(ctx context.Context, reviewID, commentID string) (*domain.Comment, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	c, ok := m.db.comments[commentID]
	if !ok || c.ReviewID != reviewID {
		return nil, ErrCommentNotFound
	}
	cc := *c
	cc.Author = m.db.usernameLocked(c.AuthorID)
	return &cc, nil
}

func (m *MockCommentStore) ListByReview(ctx context.Context, reviewID string, params ListParams) ([]*domain.Comment, int, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	var out []*domain.Comment
	for _, c := range m.db.comments {
		if c.ReviewID == reviewID {
			cc := *c
			cc.Author = m.db.usernameLocked(c.AuthorID)
			out = append(out, &cc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PubDate.Equal(out[j].PubDate) {
			return out[i].PubDate.After(out[j].PubDate)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, params), len(out), nil
}

func (m *MockCommentStore) Update(ctx context.Context, comment *domain.Comment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.comments[comment.ID]
	if !ok || c.ReviewID != comment.ReviewID {
		return ErrCommentNotFound
	}
	c.Text = comment.Text
	return nil
}

func (m *MockCommentStore) Delete(ctx context.Context, reviewID, commentID string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.comments[commentID]
	if !ok || c.ReviewID != reviewID {
		return ErrCommentNotFound
	}
	delete(m.db.comments, commentID)
	return nil
}
