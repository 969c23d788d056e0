package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-service/internal/domain"
)

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *RequestValidationError
	require.True(t, errors.As(err, &verr), "expected *RequestValidationError, got %T", err)
	return verr.Fields()
}

func intPtr(v int) *int { return &v }

func TestGetValidator_Singleton(t *testing.T) {
	assert.Same(t, GetValidator(), GetValidator())
}

func TestSignupRequest_ReservedUsername(t *testing.T) {
	for _, name := range []string{"me", "Me", "mE", "ME"} {
		t.Run(name, func(t *testing.T) {
			err := ValidateStruct(domain.SignupRequest{Username: name, Email: "valid@example.com"})
			fields := fieldsOf(t, err)
			assert.Contains(t, fields, "username")
		})
	}
	// Rejected even when the email is also broken.
	fields := fieldsOf(t, ValidateStruct(domain.SignupRequest{Username: "ME", Email: "nope"}))
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")
}

func TestSignupRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     domain.SignupRequest
		invalid []string
	}{
		{"valid", domain.SignupRequest{Username: "reader.one", Email: "r@example.com"}, nil},
		{"names containing me are fine", domain.SignupRequest{Username: "meme", Email: "r@example.com"}, nil},
		{"missing username", domain.SignupRequest{Email: "r@example.com"}, []string{"username"}},
		{"missing email", domain.SignupRequest{Username: "reader"}, []string{"email"}},
		{"bad email", domain.SignupRequest{Username: "reader", Email: "not-an-email"}, []string{"email"}},
		{"bad username characters", domain.SignupRequest{Username: "with space", Email: "r@example.com"}, []string{"username"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.req)
			if tt.invalid == nil {
				assert.NoError(t, err)
				return
			}
			fields := fieldsOf(t, err)
			for _, f := range tt.invalid {
				assert.Contains(t, fields, f)
			}
		})
	}
}

func TestTitleYear(t *testing.T) {
	orig := now
	now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = orig })

	base := func(year *int) domain.CreateTitleRequest {
		return domain.CreateTitleRequest{Name: "Solaris", Year: year, Category: "books"}
	}

	assert.NoError(t, ValidateStruct(base(intPtr(0))))
	assert.NoError(t, ValidateStruct(base(intPtr(2024))))
	assert.Contains(t, fieldsOf(t, ValidateStruct(base(intPtr(2025)))), "year")
	assert.Contains(t, fieldsOf(t, ValidateStruct(base(intPtr(-1)))), "year")
	assert.Contains(t, fieldsOf(t, ValidateStruct(base(nil))), "year")

	patch := domain.UpdateTitleRequest{Year: intPtr(2030)}
	assert.Contains(t, fieldsOf(t, ValidateStruct(patch)), "year")
	assert.NoError(t, ValidateStruct(domain.UpdateTitleRequest{}))
}

func TestSlug(t *testing.T) {
	assert.NoError(t, ValidateStruct(domain.CatalogEntryRequest{Name: "Sci-Fi", Slug: "sci-fi_2"}))
	assert.Contains(t, fieldsOf(t, ValidateStruct(domain.CatalogEntryRequest{Name: "X", Slug: "no spaces"})), "slug")
	assert.Contains(t, fieldsOf(t, ValidateStruct(domain.CatalogEntryRequest{Name: "X"})), "slug")

	req := domain.CreateTitleRequest{Name: "X", Year: intPtr(1990), Category: "books", Genre: []string{"ok", "not ok"}}
	assert.Contains(t, fieldsOf(t, ValidateStruct(req)), "genre[1]")
}

func TestReviewScore(t *testing.T) {
	assert.NoError(t, ValidateStruct(domain.CreateReviewRequest{Text: "fine", Score: 1}))
	assert.NoError(t, ValidateStruct(domain.CreateReviewRequest{Text: "fine", Score: 10}))
	assert.Contains(t, fieldsOf(t, ValidateStruct(domain.CreateReviewRequest{Text: "fine", Score: 11})), "score")
	assert.Contains(t, fieldsOf(t, ValidateStruct(domain.CreateReviewRequest{Text: "fine"})), "score")
	assert.Contains(t, fieldsOf(t, ValidateStruct(domain.CreateReviewRequest{Score: 5})), "text")
}

func TestNewFieldError(t *testing.T) {
	err := NewFieldError("email", "email is already registered")
	assert.Equal(t, map[string]string{"email": "email is already registered"}, err.Fields())
	assert.Equal(t, "email is already registered", err.Error())
}

func TestRoleOneOf(t *testing.T) {
	bad := domain.Role("owner")
	fields := fieldsOf(t, ValidateStruct(domain.UpdateUserRequest{Role: &bad}))
	assert.Equal(t, "role must be one of: user moderator admin", fields["role"])
}
