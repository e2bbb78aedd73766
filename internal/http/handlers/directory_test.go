package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klinicq/queue-platform/internal/clinic"
	"github.com/klinicq/queue-platform/pkg/logging"
)

type fakeResolver struct {
	clinic *clinic.Clinic
	err    error
	code   string
}

func (f *fakeResolver) Resolve(_ context.Context, code string) (*clinic.Clinic, error) {
	f.code = code
	return f.clinic, f.err
}

func serveDirectory(t *testing.T, resolver *fakeResolver, code string) *httptest.ResponseRecorder {
	t.Helper()

	handler := NewDirectoryHandler(resolver, logging.Default())

	r := chi.NewRouter()
	r.Get("/clinics/by-code/{code}", handler.Resolve)

	req := httptest.NewRequest(http.MethodGet, "/clinics/by-code/"+code, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestResolve_ReturnsClinic(t *testing.T) {
	resolver := &fakeResolver{clinic: &clinic.Clinic{
		ID:        "clinic-1",
		Name:      "City Care Clinic",
		ShortCode: "KQ-7P2M",
		Timezone:  "Asia/Kolkata",
	}}

	rec := serveDirectory(t, resolver, "KQ-7P2M")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "KQ-7P2M", resolver.code)

	var cl clinic.Clinic
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cl))
	assert.Equal(t, "clinic-1", cl.ID)
	assert.Equal(t, "City Care Clinic", cl.Name)
}

func TestResolve_MalformedCode(t *testing.T) {
	resolver := &fakeResolver{err: clinic.ErrMalformedCode}

	rec := serveDirectory(t, resolver, "KQ-TOOLONG")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, code := decodeErrorBody(t, rec)
	assert.Equal(t, CodeMalformedCode, code)
}

func TestResolve_UnknownCode(t *testing.T) {
	resolver := &fakeResolver{err: clinic.ErrCodeNotFound}

	rec := serveDirectory(t, resolver, "KQ-ZZZZ")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	_, code := decodeErrorBody(t, rec)
	assert.Equal(t, CodeCodeNotFound, code)
}

func TestResolve_LookupFailure(t *testing.T) {
	resolver := &fakeResolver{err: assert.AnError}

	rec := serveDirectory(t, resolver, "KQ-7P2M")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	_, code := decodeErrorBody(t, rec)
	assert.Equal(t, CodeInternal, code)
}
