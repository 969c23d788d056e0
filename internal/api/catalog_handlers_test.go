package api

import (
	"net/http"
	"testing"

	"review-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategories_WriteRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	_, userToken := env.addUser("user1", domain.RoleUser, false)
	_, modToken := env.addUser("mod1", domain.RoleModerator, false)
	_, adminToken := env.addUser("admin1", domain.RoleAdmin, false)
	_, rootToken := env.addUser("root", domain.RoleUser, true)

	body := object{"name": "Films", "slug": "films"}

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/v1/categories", "", body).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/v1/categories", userToken, body).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/v1/categories", modToken, body).Code)

	rec := env.do(http.MethodPost, "/v1/categories", adminToken, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeJSON[object](t, rec)
	assert.Equal(t, object{"name": "Films", "slug": "films"}, created)

	rec = env.do(http.MethodPost, "/v1/categories", rootToken, object{"name": "Books", "slug": "books"})
	assert.Equal(t, http.StatusCreated, rec.Code, "superuser acts as admin regardless of role")

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodDelete, "/v1/categories/films", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, "/v1/categories/films", modToken, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/v1/categories/films", adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/v1/categories/films", adminToken, nil).Code)
}

func TestCategories_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.addUser("admin1", domain.RoleAdmin, false)
	env.seedCatalog()

	rec := env.do(http.MethodPost, "/v1/categories", adminToken, object{"name": "Films again", "slug": "films"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Fields, "slug")

	rec = env.do(http.MethodPost, "/v1/categories", adminToken, object{"name": "Bad", "slug": "not a slug"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Fields, "slug")

	rec = env.do(http.MethodPost, "/v1/categories", adminToken, object{"slug": "music"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Fields, "name")
}

func TestCategories_ListAndSearch(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog()

	rec := env.do(http.MethodGet, "/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeJSON[listResponse[domain.Category]](t, rec)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 10, list.PageSize)
	require.Len(t, list.Results, 2)
	assert.Equal(t, "Books", list.Results[0].Name, "ordered by name")

	rec = env.do(http.MethodGet, "/v1/categories?search=film", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list = decodeJSON[listResponse[domain.Category]](t, rec)
	require.Len(t, list.Results, 1)
	assert.Equal(t, "films", list.Results[0].Slug)
}

func TestGenres_CRUD(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.addUser("admin1", domain.RoleAdmin, false)
	_, userToken := env.addUser("user1", domain.RoleUser, false)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/v1/genres", userToken, object{"name": "Drama", "slug": "drama"}).Code)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/v1/genres", adminToken, object{"name": "Drama", "slug": "drama"}).Code)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/v1/genres", adminToken, object{"name": "Comedy", "slug": "comedy"}).Code)

	rec := env.do(http.MethodGet, "/v1/genres?search=dra", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeJSON[listResponse[domain.Genre]](t, rec)
	require.Len(t, list.Results, 1)
	assert.Equal(t, "drama", list.Results[0].Slug)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, "/v1/genres/drama", userToken, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/v1/genres/drama", adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/v1/genres/drama", adminToken, nil).Code)
}

func TestListPagination(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog()

	rec := env.do(http.MethodGet, "/v1/genres?page=2&page_size=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeJSON[listResponse[domain.Genre]](t, rec)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, 2, list.Page)
	require.Len(t, list.Results, 1)
	assert.Equal(t, "drama", list.Results[0].Slug)

	rec = env.do(http.MethodGet, "/v1/genres?page_size=1000", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, decodeJSON[listResponse[domain.Genre]](t, rec).PageSize, "clamped to the maximum")

	rec = env.do(http.MethodGet, "/v1/genres?page=0", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Fields, "page")

	rec = env.do(http.MethodGet, "/v1/genres?page=9", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON[listResponse[domain.Genre]](t, rec).Results)
}
