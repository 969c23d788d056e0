// Package importer bulk-loads catalog, account and review data from the
// legacy CSV export into the stores.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"review-service/internal/domain"
	"review-service/internal/metrics"
	"review-service/internal/store"
	"review-service/internal/validation"

	"github.com/google/uuid"
)

// Legacy exports use integer ids. They are mapped onto stable UUIDs so a
// re-run addresses the same rows and reports them as skipped.
var idNamespace = uuid.MustParse("5b0f0c8e-6f38-4b0c-9f0e-3c1b7c2f6a11")

func legacyID(kind, id string) string {
	return uuid.NewSHA1(idNamespace, []byte(kind+":"+strings.TrimSpace(id))).String()
}

// FileResult counts the outcome of one CSV file.
type FileResult struct {
	File     string
	Missing  bool
	Imported int
	Skipped  int
	Failed   int
}

// Report is the outcome of ImportDir.
type Report struct {
	Files []FileResult
}

// Failed reports the total number of rejected rows.
func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		n += f.Failed
	}
	return n
}

type rowFunc func(im *Importer, ctx context.Context, row map[string]string) error

type step struct {
	file    string
	columns []string
	load    rowFunc
}

// Files are loaded parents first so every reference resolves.
var steps = []step{
	{"category.csv", []string{"id", "name", "slug"}, (*Importer).importCategory},
	{"genre.csv", []string{"id", "name", "slug"}, (*Importer).importGenre},
	{"titles.csv", []string{"id", "name", "year", "category"}, (*Importer).importTitle},
	{"genre_title.csv", []string{"title_id", "genre_id"}, (*Importer).importGenreTitle},
	{"users.csv", []string{"id", "username", "email"}, (*Importer).importUser},
	{"review.csv", []string{"id", "title_id", "text", "author", "score"}, (*Importer).importReview},
	{"comments.csv", []string{"id", "review_id", "text", "author"}, (*Importer).importComment},
}

// Importer loads CSV files through the regular stores, so the same
// uniqueness and reference constraints apply as for API writes.
type Importer struct {
	stores *store.Stores
	logger *slog.Logger
}

func New(stores *store.Stores, logger *slog.Logger) *Importer {
	return &Importer{stores: stores, logger: logger.With(slog.String("component", "importer"))}
}

// ImportDir loads every known file found in dir. Missing files are skipped
// with a warning; row errors are counted and logged, not fatal.
func (im *Importer) ImportDir(ctx context.Context, dir string) (*Report, error) {
	report := &Report{}
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		path := filepath.Join(dir, st.file)
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			im.logger.WarnContext(ctx, "CSV file not found, skipping", slog.String("file", st.file))
			report.Files = append(report.Files, FileResult{File: st.file, Missing: true})
			continue
		}
		if err != nil {
			return report, fmt.Errorf("open %s: %w", path, err)
		}
		res, err := im.importFile(ctx, st, f)
		f.Close()
		report.Files = append(report.Files, res)
		if err != nil {
			return report, fmt.Errorf("import %s: %w", st.file, err)
		}
		im.logger.InfoContext(ctx, "CSV file imported",
			slog.String("file", st.file),
			slog.Int("imported", res.Imported),
			slog.Int("skipped", res.Skipped),
			slog.Int("failed", res.Failed))
	}
	return report, nil
}

func (im *Importer) importFile(ctx context.Context, st step, r io.Reader) (FileResult, error) {
	res := FileResult{File: st.file}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, col := range st.columns {
		if _, ok := index[col]; !ok {
			return res, fmt.Errorf("missing column %q", col)
		}
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return res, nil
		}
		line++
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}

		row := make(map[string]string, len(index))
		for name, i := range index {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}

		err = st.load(im, ctx, row)
		switch {
		case err == nil:
			res.Imported++
		case errors.Is(err, store.ErrAlreadyExists):
			res.Skipped++
		default:
			res.Failed++
			im.logger.WarnContext(ctx, "CSV row rejected",
				slog.String("file", st.file), slog.Int("line", line), slog.String("error", err.Error()))
		}
		metrics.RecordImportRow(st.file, errOrNilOnSkip(err))
	}
}

func errOrNilOnSkip(err error) error {
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil
	}
	return err
}

func (im *Importer) importCategory(ctx context.Context, row map[string]string) error {
	req := domain.CatalogEntryRequest{Name: row["name"], Slug: row["slug"]}
	if err := validation.ValidateStruct(req); err != nil {
		return err
	}
	return im.stores.Categories.Create(ctx, &domain.Category{
		ID:   legacyID("category", row["id"]),
		Name: req.Name,
		Slug: req.Slug,
	})
}

func (im *Importer) importGenre(ctx context.Context, row map[string]string) error {
	req := domain.CatalogEntryRequest{Name: row["name"], Slug: row["slug"]}
	if err := validation.ValidateStruct(req); err != nil {
		return err
	}
	return im.stores.Genres.Create(ctx, &domain.Genre{
		ID:   legacyID("genre", row["id"]),
		Name: req.Name,
		Slug: req.Slug,
	})
}

// importTitle checks the row with the API create rules. The category column
// holds a legacy id rather than a slug, but is required all the same.
func (im *Importer) importTitle(ctx context.Context, row map[string]string) error {
	id := legacyID("title", row["id"])
	if _, err := im.stores.Titles.GetByID(ctx, id); err == nil {
		return fmt.Errorf("title %s %w", row["id"], store.ErrAlreadyExists)
	}
	year, err := strconv.Atoi(row["year"])
	if err != nil {
		return fmt.Errorf("invalid year %q", row["year"])
	}
	req := domain.CreateTitleRequest{Name: row["name"], Year: &year, Category: row["category"]}
	if d := row["description"]; d != "" {
		req.Description = &d
	}
	if err := validation.ValidateStruct(req); err != nil {
		return err
	}
	categoryID := legacyID("category", req.Category)
	return im.stores.Titles.Create(ctx, &domain.Title{
		ID:          id,
		Name:        req.Name,
		Year:        year,
		Description: req.Description,
		CategoryID:  &categoryID,
	})
}

func (im *Importer) importGenreTitle(ctx context.Context, row map[string]string) error {
	title, err := im.stores.Titles.GetByID(ctx, legacyID("title", row["title_id"]))
	if err != nil {
		return err
	}
	genreID := legacyID("genre", row["genre_id"])
	for _, g := range title.Genres {
		if g.ID == genreID {
			return fmt.Errorf("genre link %w", store.ErrAlreadyExists)
		}
	}
	ids := make([]string, 0, len(title.Genres)+1)
	for _, g := range title.Genres {
		ids = append(ids, g.ID)
	}
	title.GenreIDs = append(ids, genreID)
	return im.stores.Titles.Update(ctx, title)
}

func (im *Importer) importUser(ctx context.Context, row map[string]string) error {
	req := domain.CreateUserRequest{
		Username:  row["username"],
		Email:     row["email"],
		FirstName: row["first_name"],
		LastName:  row["last_name"],
		Bio:       row["bio"],
		Role:      domain.Role(strings.ToLower(row["role"])),
	}
	if err := validation.ValidateStruct(req); err != nil {
		return err
	}
	if req.Role == "" {
		req.Role = domain.RoleUser
	}
	return im.stores.Users.Create(ctx, &domain.User{
		ID:        legacyID("user", row["id"]),
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
		Role:      req.Role,
	})
}

func (im *Importer) importReview(ctx context.Context, row map[string]string) error {
	score, err := strconv.Atoi(row["score"])
	if err != nil {
		return fmt.Errorf("invalid score %q", row["score"])
	}
	req := domain.CreateReviewRequest{Text: row["text"], Score: score}
	if err := validation.ValidateStruct(req); err != nil {
		return err
	}
	titleID := legacyID("title", row["title_id"])
	id := legacyID("review", row["id"])
	if _, err := im.stores.Reviews.GetByID(ctx, titleID, id); err == nil {
		return fmt.Errorf("review %s %w", row["id"], store.ErrAlreadyExists)
	}
	return im.stores.Reviews.Create(ctx, &domain.Review{
		ID:       id,
		TitleID:  titleID,
		AuthorID: legacyID("user", row["author"]),
		Text:     req.Text,
		Score:    req.Score,
		PubDate:  parsePubDate(row["pub_date"]),
	})
}

func (im *Importer) importComment(ctx context.Context, row map[string]string) error {
	req := domain.CommentRequest{Text: row["text"]}
	if err := validation.ValidateStruct(req); err != nil {
		return err
	}
	reviewID := legacyID("review", row["review_id"])
	id := legacyID("comment", row["id"])
	if _, err := im.stores.Comments.GetByID(ctx, reviewID, id); err == nil {
		return fmt.Errorf("comment %s %w", row["id"], store.ErrAlreadyExists)
	}
	return im.stores.Comments.Create(ctx, &domain.Comment{
		ID:       id,
		ReviewID: reviewID,
		AuthorID: legacyID("user", row["author"]),
		Text:     req.Text,
		PubDate:  parsePubDate(row["pub_date"]),
	})
}

// parsePubDate accepts the timestamp layouts found in exports. Unparseable
// values yield the zero time, which the store replaces with now.
func parsePubDate(raw string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
