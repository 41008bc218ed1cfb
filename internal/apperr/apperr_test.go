package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestStatus(t *testing.T) {
	cases := map[error]int{
		Validation("goal too small"):                     http.StatusBadRequest,
		New(ErrUnauthenticated, "nonce expired"):         http.StatusUnauthorized,
		New(ErrForbidden, "not your project"):            http.StatusForbidden,
		fmt.Errorf("load: %w", ErrNotFound):              http.StatusNotFound,
		fmt.Errorf("pledge: %w", New(ErrConflict, "x")):  http.StatusConflict,
		errors.New("boom"):                               http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, Status(err), err.Error())
	}
}

func TestNewKeepsMessage(t *testing.T) {
	err := Validation("amount %s exceeds remaining %s", "10", "5")
	assert.Equal(t, "amount 10 exceeds remaining 5", err.Error())
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestRespondMasksInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Respond(c, zap.NewNop(), errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}
