package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/investments"
	"farmlink/platform/platform-backend/internal/middleware"
	"farmlink/platform/platform-backend/internal/projects"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type stubProjects struct {
	list  []projects.Project
	calls int
	err   error
}

func (s *stubProjects) List(_ context.Context, f projects.Filter) (*projects.ListResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	end := f.Offset + f.Limit
	if end > len(s.list) {
		end = len(s.list)
	}
	page := []projects.Project{}
	if f.Offset < len(s.list) {
		page = s.list[f.Offset:end]
	}
	return &projects.ListResult{Projects: page, Total: len(s.list), Limit: f.Limit, Offset: f.Offset}, nil
}

type stubPositions struct {
	positions []investments.Position
	calls     int
}

func (s *stubPositions) ListMine(context.Context, uuid.UUID) ([]investments.Position, error) {
	s.calls++
	return s.positions, nil
}

func newAggregator(p *stubProjects, i *stubPositions) (*Aggregator, *Cache) {
	cache := NewCache(30 * time.Second)
	return NewAggregator(p, i, cache, zap.NewNop()), cache
}

func TestFarmerDashboardTotals(t *testing.T) {
	farmerID := uuid.New()
	proj := &stubProjects{list: []projects.Project{
		{ID: uuid.New(), Status: projects.StatusFunding, Goal: d(1000), TotalPledged: d(400), TotalReleased: d(0), TotalRepaid: d(0)},
		{ID: uuid.New(), Status: projects.StatusInProgress, Goal: d(1000), TotalPledged: d(1000), TotalReleased: d(330), TotalRepaid: d(0),
			Milestones: []projects.Milestone{{Index: 0, Status: projects.MilestoneCompleted}, {Index: 1, Status: projects.MilestonePending}}},
		{ID: uuid.New(), Status: projects.StatusFailed, Goal: d(800), TotalPledged: d(100), TotalReleased: d(0), TotalRepaid: d(0)},
		{ID: uuid.New(), Status: projects.StatusCompleted, Goal: d(500), TotalPledged: d(500), TotalReleased: d(500), TotalRepaid: d(560)},
	}}
	agg, cache := newAggregator(proj, &stubPositions{})
	defer cache.Stop()

	dash, err := agg.Farmer(context.Background(), farmerID)
	require.NoError(t, err)
	assert.Len(t, dash.Projects, 4)
	assert.Equal(t, 2, dash.Totals.Active)
	assert.Equal(t, 1, dash.Totals.Completed)
	assert.Equal(t, 1, dash.Totals.Failed)
	assert.Equal(t, "1900", dash.Totals.Raised.String())
	assert.Equal(t, "830", dash.Totals.Released.String())
	assert.Equal(t, "560", dash.Totals.Repaid.String())
	assert.InDelta(t, 40.0, dash.Projects[0].ProgressPercent, 0.001)
	require.NotNil(t, dash.Projects[1].NextMilestone)
	assert.Equal(t, 1, dash.Projects[1].NextMilestone.Index)
	assert.Nil(t, dash.Projects[0].NextMilestone)
}

func TestFarmerDashboardPages(t *testing.T) {
	list := make([]projects.Project, farmerPageSize+5)
	for i := range list {
		list[i] = projects.Project{ID: uuid.New(), Status: projects.StatusFunding, Goal: d(1000), TotalPledged: d(1), TotalReleased: d(0), TotalRepaid: d(0)}
	}
	proj := &stubProjects{list: list}
	agg, cache := newAggregator(proj, &stubPositions{})
	defer cache.Stop()

	dash, err := agg.Farmer(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Len(t, dash.Projects, farmerPageSize+5)
	assert.Equal(t, 2, proj.calls)
}

func TestInvestorDashboardTotals(t *testing.T) {
	pos := &stubPositions{positions: []investments.Position{
		{Investment: investments.Investment{Amount: d(100), ClaimedAmount: d(0)}, ProjectStatus: projects.StatusFunding, ExpectedReturn: d(112), Claimable: d(0)},
		{Investment: investments.Investment{Amount: d(200), ClaimedAmount: d(0)}, ProjectStatus: projects.StatusCompleted, ExpectedReturn: d(224), Claimable: d(224)},
		{Investment: investments.Investment{Amount: d(300), Claimed: true, ClaimedAmount: d(201)}, ProjectStatus: projects.StatusFailed, ExpectedReturn: d(336), Claimable: d(0)},
	}}
	agg, cache := newAggregator(&stubProjects{}, pos)
	defer cache.Stop()

	dash, err := agg.Investor(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "600", dash.Totals.Invested.String())
	assert.Equal(t, 1, dash.Totals.Active)
	assert.Equal(t, "336", dash.Totals.ExpectedReturns.String())
	assert.Equal(t, "224", dash.Totals.AvailableToWithdraw.String())
	assert.Equal(t, "201", dash.Totals.Claimed.String())
}

func TestDashboardCachedUntilInvalidated(t *testing.T) {
	pos := &stubPositions{}
	agg, cache := newAggregator(&stubProjects{}, pos)
	defer cache.Stop()
	userID := uuid.New()
	ctx := context.Background()

	_, err := agg.Investor(ctx, userID)
	require.NoError(t, err)
	_, err = agg.Investor(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, pos.calls)

	cache.Invalidate(uuid.New())
	_, _ = agg.Investor(ctx, userID)
	assert.Equal(t, 1, pos.calls)

	cache.Invalidate(userID)
	_, _ = agg.Investor(ctx, userID)
	assert.Equal(t, 2, pos.calls)
}

func TestCacheExpiresEntries(t *testing.T) {
	cache := NewCache(time.Second)
	defer cache.Stop()
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("k", 1)
	_, ok := cache.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = cache.Get("k")
	assert.False(t, ok)
	cache.removeExpired()
	assert.Equal(t, 0, cache.Size())
}

func TestFarmerDashboardErrorNotCached(t *testing.T) {
	proj := &stubProjects{err: errors.New("db down")}
	agg, cache := newAggregator(proj, &stubPositions{})
	defer cache.Stop()

	_, err := agg.Farmer(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.Equal(t, 0, cache.Size())
}

func TestHandlerRequiresRole(t *testing.T) {
	agg, cache := newAggregator(&stubProjects{}, &stubPositions{})
	defer cache.Stop()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetPrincipal(c, &middleware.Principal{UserID: uuid.New(), Role: "investor"})
		c.Next()
	})
	NewHandler(agg, zap.NewNop()).RegisterRoutes(r.Group("/api/v1"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/farmer", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/investor", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available_to_withdraw":"0"`)
}
