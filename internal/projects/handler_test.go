package projects

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/apperr"
	"farmlink/platform/platform-backend/internal/middleware"
)

func newHandlerRouter(f *fixture, principal *middleware.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	authed := api.Group("")
	authed.Use(func(c *gin.Context) {
		middleware.SetPrincipal(c, principal)
		c.Next()
	})
	admin := authed.Group("/admin")
	NewHandler(f.svc, zap.NewNop()).RegisterRoutes(api, authed, admin)
	return r
}

func TestHandlerGetByAddress(t *testing.T) {
	f := newFixture(t)
	p := f.inProgress()
	f.repo.On("GetByAddress", mock.Anything, p.Address).Return(p, nil)
	r := newHandlerRouter(f, &middleware.Principal{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects/"+p.Address, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"progress_percent":100`)
	assert.Contains(t, w.Body.String(), `"remaining":"0"`)
}

func TestHandlerGetMissingProject(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, id).Return(nil, apperr.New(apperr.ErrNotFound, "project not found"))
	r := newHandlerRouter(f, &middleware.Principal{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects/"+id.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerListRejectsBadFarmerID(t *testing.T) {
	f := newFixture(t)
	r := newHandlerRouter(f, &middleware.Principal{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects?farmer_id=nope", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerReleaseByAddress(t *testing.T) {
	f := newFixture(t)
	p := f.inProgress()
	cid := proofCID
	p.Milestones[0].Status = MilestoneSubmitted
	p.Milestones[0].ProofCID = &cid
	f.repo.On("GetByAddress", mock.Anything, p.Address).Return(p, nil)
	f.repo.On("GetByID", mock.Anything, p.ID).Return(p, nil)
	f.repo.On("ReleaseMilestone", mock.Anything, p.ID, 0, mock.Anything, testNow).Return(false, nil)
	r := newHandlerRouter(f, &middleware.Principal{UserID: uuid.New(), Admin: true})

	body := `{"project_address":"` + p.Address + `","milestone_index":0}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/milestones/release", bytes.NewBufferString(body)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"admin_signature":"0x`)
}

func TestHandlerReleaseRequiresIndex(t *testing.T) {
	f := newFixture(t)
	r := newHandlerRouter(f, &middleware.Principal{UserID: uuid.New(), Admin: true})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/milestones/release", bytes.NewBufferString(`{"project_address":"0xabc"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerReleaseByAddressRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	r := newHandlerRouter(f, &middleware.Principal{UserID: uuid.New()})

	body := `{"project_address":"0xabc","milestone_index":0}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/milestones/release", bytes.NewBufferString(body)))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandlerSubmitProofBadIndex(t *testing.T) {
	f := newFixture(t)
	r := newHandlerRouter(f, &middleware.Principal{UserID: f.farmer.ID})

	w := httptest.NewRecorder()
	url := "/api/v1/projects/" + uuid.NewString() + "/milestones/first/proof"
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, url, bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerRepayConflict(t *testing.T) {
	f := newFixture(t)
	p := f.inProgress()
	f.repo.On("GetByID", mock.Anything, p.ID).Return(p, nil)
	r := newHandlerRouter(f, &middleware.Principal{UserID: f.farmer.ID})

	w := httptest.NewRecorder()
	url := "/api/v1/projects/" + p.ID.String() + "/repayments"
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, url, bytes.NewBufferString(`{"amount":"100"}`)))
	assert.Equal(t, http.StatusConflict, w.Code)
}
