package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"jo@example.com"}`))

	var dest struct {
		Email string `json:"email"`
	}
	require.NoError(t, ParseJSON(req, &dest))
	assert.Equal(t, "jo@example.com", dest.Email)
}

func TestParseJSONInvalid(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))

	var dest map[string]interface{}
	err := ParseJSON(req, &dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestParsePathInt64(t *testing.T) {
	router := mux.NewRouter()
	var got int64
	var gotErr error
	router.HandleFunc("/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = ParsePathInt64(r, "id")
	})

	req := httptest.NewRequest(http.MethodGet, "/records/42", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
	require.NoError(t, gotErr)
	assert.Equal(t, int64(42), got)

	req = httptest.NewRequest(http.MethodGet, "/records/abc", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Error(t, gotErr)
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25", nil)
	val, err := ParseQueryInt(req, "limit", 10)
	require.NoError(t, err)
	assert.Equal(t, 25, val)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	val, err = ParseQueryInt(req, "limit", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, val)

	req = httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)
	_, err = ParseQueryInt(req, "limit", 10)
	assert.Error(t, err)
}

func TestRequireNonEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	assert.True(t, RequireNonEmpty(rec, "value", "field"))

	rec = httptest.NewRecorder()
	assert.False(t, RequireNonEmpty(rec, "", "field"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "field is required")
}

func TestRequirePositive(t *testing.T) {
	rec := httptest.NewRecorder()
	assert.True(t, RequirePositive(rec, 100, "amount"))

	rec = httptest.NewRecorder()
	assert.False(t, RequirePositive(rec, 0, "amount"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	assert.False(t, RequirePositive(rec, -5, "amount"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
