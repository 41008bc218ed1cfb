package users

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/middleware"
)

type stubIssuer struct{}

func (stubIssuer) IssueFor(u *User) (string, error) { return "token-" + u.RoleString(), nil }

func newHandlerRouter(repo *MockRepository, principal *middleware.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetPrincipal(c, principal)
		c.Next()
	})
	NewHandler(NewService(repo, zap.NewNop()), stubIssuer{}, zap.NewNop()).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestHandlerGetMe(t *testing.T) {
	repo := new(MockRepository)
	id := uuid.New()
	r := newHandlerRouter(repo, &middleware.Principal{UserID: id, Address: "0xabc", Admin: true})
	repo.On("GetByID", mock.Anything, id).Return(&User{ID: id, WalletAddress: "0xabc"}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_admin":true`)
}

func TestHandlerUpdateProfileRejectsBadEmail(t *testing.T) {
	repo := new(MockRepository)
	r := newHandlerRouter(repo, &middleware.Principal{UserID: uuid.New()})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/users/me", bytes.NewBufferString(`{"email":"nope"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	repo.AssertNotCalled(t, "UpdateEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlerSelectRoleReturnsFreshToken(t *testing.T) {
	repo := new(MockRepository)
	id := uuid.New()
	r := newHandlerRouter(repo, &middleware.Principal{UserID: id})
	farmer := RoleFarmer
	repo.On("SetRole", mock.Anything, id, RoleFarmer).Return(&User{ID: id, Role: &farmer}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/users/me/role", bytes.NewBufferString(`{"role":"farmer"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"token":"token-farmer"`)
}

func TestHandlerSelectRoleInternalError(t *testing.T) {
	repo := new(MockRepository)
	id := uuid.New()
	r := newHandlerRouter(repo, &middleware.Principal{UserID: id})
	repo.On("SetRole", mock.Anything, id, RoleInvestor).Return(nil, context.Canceled)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/users/me/role", bytes.NewBufferString(`{"role":"investor"}`)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
