package importer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"review-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixtures = map[string]string{
	"category.csv": "id,name,slug\n1,Фильм,movie\n2,Книга,book\n",
	"genre.csv":    "id,name,slug\n1,Драма,drama\n2,Комедия,comedy\n",
	"titles.csv": "id,name,year,category\n" +
		"1,Побег из Шоушенка,1994,1\n" +
		"2,Крестный отец,1972,1\n" +
		"3,Broken,notayear,1\n",
	"genre_title.csv": "id,title_id,genre_id\n1,1,1\n2,1,2\n3,2,1\n4,99,1\n",
	"users.csv": "id,username,email,role,bio,first_name,last_name\n" +
		"100,bingobongo,bingobongo@yamdb.fake,user,,,\n" +
		"101,capt_obvious,capt_obvious@yamdb.fake,admin,,Captain,\n" +
		"102,faust,faust@yamdb.fake,overlord,,,\n",
	"review.csv": "id,title_id,text,author,score,pub_date\n" +
		"1,1,Великий фильм,100,10,2019-09-24T21:08:21.567Z\n" +
		"2,1,Неплохо,101,6,2019-09-25T10:00:00Z\n" +
		"3,2,Too high,100,11,2019-09-24T21:08:21.567Z\n",
	"comments.csv": "id,review_id,text,author,pub_date\n" +
		"1,1,Согласен,101,2019-09-26T12:00:00Z\n" +
		"2,404,Orphan,101,2019-09-26T12:00:00Z\n",
}

func writeFixtures(t *testing.T, skip ...string) string {
	t.Helper()
	dir := t.TempDir()
	skipped := make(map[string]bool)
	for _, s := range skip {
		skipped[s] = true
	}
	for name, content := range fixtures {
		if skipped[name] {
			continue
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func resultFor(t *testing.T, r *Report, file string) FileResult {
	t.Helper()
	for _, f := range r.Files {
		if f.File == file {
			return f
		}
	}
	t.Fatalf("no result for %s", file)
	return FileResult{}
}

func newImporter() (*Importer, *store.Stores) {
	stores := store.NewMockStores()
	return New(stores, slog.New(slog.NewTextHandler(io.Discard, nil))), stores
}

func TestImportDir_LoadsInDependencyOrder(t *testing.T) {
	im, stores := newImporter()
	ctx := context.Background()

	report, err := im.ImportDir(ctx, writeFixtures(t))
	require.NoError(t, err)
	require.Len(t, report.Files, len(steps))

	assert.Equal(t, 2, resultFor(t, report, "category.csv").Imported)
	assert.Equal(t, 2, resultFor(t, report, "genre.csv").Imported)
	titles := resultFor(t, report, "titles.csv")
	assert.Equal(t, 2, titles.Imported)
	assert.Equal(t, 1, titles.Failed)
	links := resultFor(t, report, "genre_title.csv")
	assert.Equal(t, 3, links.Imported)
	assert.Equal(t, 1, links.Failed)
	users := resultFor(t, report, "users.csv")
	assert.Equal(t, 2, users.Imported)
	assert.Equal(t, 1, users.Failed)
	reviews := resultFor(t, report, "review.csv")
	assert.Equal(t, 2, reviews.Imported)
	assert.Equal(t, 1, reviews.Failed)
	comments := resultFor(t, report, "comments.csv")
	assert.Equal(t, 1, comments.Imported)
	assert.Equal(t, 1, comments.Failed)
	assert.Equal(t, 5, report.Failed())

	title, err := stores.Titles.GetByID(ctx, legacyID("title", "1"))
	require.NoError(t, err)
	assert.Equal(t, "Побег из Шоушенка", title.Name)
	require.NotNil(t, title.Category)
	assert.Equal(t, "movie", title.Category.Slug)
	assert.Len(t, title.Genres, 2)
	require.NotNil(t, title.Rating)
	assert.InDelta(t, 8.0, *title.Rating, 1e-9)

	admin, err := stores.Users.GetByUsername(ctx, "capt_obvious")
	require.NoError(t, err)
	assert.Equal(t, "admin", string(admin.Role))
	assert.Equal(t, "Captain", admin.FirstName)

	review, err := stores.Reviews.GetByID(ctx, legacyID("title", "1"), legacyID("review", "1"))
	require.NoError(t, err)
	assert.Equal(t, "bingobongo", review.Author)
	assert.Equal(t, time.Date(2019, 9, 24, 21, 8, 21, 567000000, time.UTC), review.PubDate)
}

func TestImportDir_RerunSkipsExistingRows(t *testing.T) {
	im, _ := newImporter()
	ctx := context.Background()
	dir := writeFixtures(t)

	_, err := im.ImportDir(ctx, dir)
	require.NoError(t, err)
	report, err := im.ImportDir(ctx, dir)
	require.NoError(t, err)

	for _, f := range report.Files {
		assert.Zero(t, f.Imported, "file %s", f.File)
	}
	assert.Equal(t, 2, resultFor(t, report, "category.csv").Skipped)
	assert.Equal(t, 2, resultFor(t, report, "titles.csv").Skipped)
	assert.Equal(t, 3, resultFor(t, report, "genre_title.csv").Skipped)
	assert.Equal(t, 2, resultFor(t, report, "review.csv").Skipped)
}

func TestImportDir_MissingFilesAreSkipped(t *testing.T) {
	im, stores := newImporter()
	ctx := context.Background()

	report, err := im.ImportDir(ctx, writeFixtures(t, "genre.csv", "genre_title.csv", "comments.csv"))
	require.NoError(t, err)
	assert.True(t, resultFor(t, report, "genre.csv").Missing)
	assert.True(t, resultFor(t, report, "comments.csv").Missing)

	title, err := stores.Titles.GetByID(ctx, legacyID("title", "2"))
	require.NoError(t, err)
	assert.Empty(t, title.Genres)
}

func TestImportFile_RejectsMissingColumns(t *testing.T) {
	im, _ := newImporter()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "category.csv"), []byte("id,title\n1,x\n"), 0o600))

	_, err := im.ImportDir(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "name"`)
}

func TestImportDir_RowsFollowRequestRules(t *testing.T) {
	im, stores := newImporter()
	ctx := context.Background()
	dir := t.TempDir()
	files := map[string]string{
		"category.csv": "id,name,slug\n1,Фильм,movie\n2,Bad,bad slug!\n",
		"titles.csv": "id,name,year,category\n" +
			"1,Future,3000,1\n" +
			"2,Uncategorized,1999,\n" +
			"3,Heat,1995,1\n",
		"users.csv": "id,username,email\n" +
			"1,Me,me@example.com\n" +
			"2,mallory,not-an-email\n" +
			"3,alice,alice@example.com\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	report, err := im.ImportDir(ctx, dir)
	require.NoError(t, err)

	categories := resultFor(t, report, "category.csv")
	assert.Equal(t, 1, categories.Imported)
	assert.Equal(t, 1, categories.Failed)
	titles := resultFor(t, report, "titles.csv")
	assert.Equal(t, 1, titles.Imported)
	assert.Equal(t, 2, titles.Failed)
	users := resultFor(t, report, "users.csv")
	assert.Equal(t, 1, users.Imported)
	assert.Equal(t, 2, users.Failed)

	_, err = stores.Categories.GetBySlug(ctx, "bad slug!")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = stores.Titles.GetByID(ctx, legacyID("title", "1"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = stores.Users.GetByUsername(ctx, "Me")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = stores.Users.GetByUsername(ctx, "mallory")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestParsePubDate(t *testing.T) {
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), parsePubDate("2020-01-02"))
	assert.True(t, parsePubDate("yesterday").IsZero())
}
