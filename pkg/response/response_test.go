package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/darasahq/darasa/pkg/errors"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, rec
}

func TestSuccessPayload(t *testing.T) {
	c, rec := newTestContext()
	Success(c, http.StatusOK, gin.H{"id": "n-1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
	assert.Contains(t, rec.Body.String(), `"n-1"`)
}

func TestErrorMapsAppError(t *testing.T) {
	c, rec := newTestContext()
	Error(c, appErrors.ErrInvalidChannel)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "notification.invalid_channel")
}

func TestErrorDefaultsToInternal(t *testing.T) {
	c, rec := newTestContext()
	Error(c, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_SERVER_ERROR")
}

func TestNewMetaDerivesPageCount(t *testing.T) {
	meta := NewMeta(2, 25, 51)
	assert.Equal(t, 3, meta.TotalPages)
	assert.Equal(t, int64(51), meta.Total)

	meta = NewMeta(1, 0, 10)
	assert.Equal(t, 0, meta.TotalPages)
}
