package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/investments"
	"farmlink/platform/platform-backend/internal/projects"
)

const farmerPageSize = 100

type ProjectLister interface {
	List(ctx context.Context, f projects.Filter) (*projects.ListResult, error)
}

type PositionLister interface {
	ListMine(ctx context.Context, investorID uuid.UUID) ([]investments.Position, error)
}

// Aggregator computes per-user dashboards and caches them briefly
type Aggregator struct {
	projects    ProjectLister
	investments PositionLister
	cache       *Cache
	logger      *zap.Logger
	now         func() time.Time
}

func NewAggregator(projects ProjectLister, investments PositionLister, cache *Cache, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		projects:    projects,
		investments: investments,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
	}
}

func (a *Aggregator) Farmer(ctx context.Context, farmerID uuid.UUID) (*FarmerDashboard, error) {
	v, err := a.cache.GetOrSet(cacheKey(farmerID, "farmer"), func() (interface{}, error) {
		return a.computeFarmer(ctx, farmerID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*FarmerDashboard), nil
}

func (a *Aggregator) computeFarmer(ctx context.Context, farmerID uuid.UUID) (*FarmerDashboard, error) {
	var all []projects.Project
	for offset := 0; ; offset += farmerPageSize {
		page, err := a.projects.List(ctx, projects.Filter{FarmerID: &farmerID, Limit: farmerPageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Projects...)
		if len(page.Projects) < farmerPageSize || len(all) >= page.Total {
			break
		}
	}

	dash := &FarmerDashboard{
		Projects: make([]FarmerProject, 0, len(all)),
		Totals: FarmerTotals{
			Raised:   decimal.Zero,
			Released: decimal.Zero,
			Repaid:   decimal.Zero,
		},
		ComputedAt: a.now(),
	}
	for i := range all {
		p := &all[i]
		fp := FarmerProject{
			ID:              p.ID,
			Address:         p.Address,
			Title:           p.Title,
			Status:          p.Status,
			Goal:            p.Goal,
			TotalPledged:    p.TotalPledged,
			TotalReleased:   p.TotalReleased,
			TotalRepaid:     p.TotalRepaid,
			ProgressPercent: p.ProgressPercent(),
			FundingDeadline: p.FundingDeadline,
		}
		if p.Status == projects.StatusInProgress {
			fp.NextMilestone = p.NextMilestone()
		}
		dash.Projects = append(dash.Projects, fp)

		switch p.Status {
		case projects.StatusFunding, projects.StatusInProgress:
			dash.Totals.Active++
		case projects.StatusCompleted:
			dash.Totals.Completed++
		case projects.StatusFailed:
			dash.Totals.Failed++
		}
		if p.Status != projects.StatusFailed {
			dash.Totals.Raised = dash.Totals.Raised.Add(p.TotalPledged)
		}
		dash.Totals.Released = dash.Totals.Released.Add(p.TotalReleased)
		dash.Totals.Repaid = dash.Totals.Repaid.Add(p.TotalRepaid)
	}

	a.logger.Debug("Computed farmer dashboard", zap.String("farmer_id", farmerID.String()), zap.Int("projects", len(all)))
	return dash, nil
}

func (a *Aggregator) Investor(ctx context.Context, investorID uuid.UUID) (*InvestorDashboard, error) {
	v, err := a.cache.GetOrSet(cacheKey(investorID, "investor"), func() (interface{}, error) {
		return a.computeInvestor(ctx, investorID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*InvestorDashboard), nil
}

func (a *Aggregator) computeInvestor(ctx context.Context, investorID uuid.UUID) (*InvestorDashboard, error) {
	positions, err := a.investments.ListMine(ctx, investorID)
	if err != nil {
		return nil, err
	}
	if positions == nil {
		positions = []investments.Position{}
	}

	dash := &InvestorDashboard{
		Investments: positions,
		Totals: InvestorTotals{
			Invested:            decimal.Zero,
			ExpectedReturns:     decimal.Zero,
			AvailableToWithdraw: decimal.Zero,
			Claimed:             decimal.Zero,
		},
		ComputedAt: a.now(),
	}
	for _, p := range positions {
		dash.Totals.Invested = dash.Totals.Invested.Add(p.Amount)
		dash.Totals.Claimed = dash.Totals.Claimed.Add(p.ClaimedAmount)
		dash.Totals.AvailableToWithdraw = dash.Totals.AvailableToWithdraw.Add(p.Claimable)
		switch p.ProjectStatus {
		case projects.StatusFunding, projects.StatusInProgress:
			dash.Totals.Active++
			dash.Totals.ExpectedReturns = dash.Totals.ExpectedReturns.Add(p.ExpectedReturn)
		case projects.StatusCompleted:
			if !p.Claimed {
				dash.Totals.ExpectedReturns = dash.Totals.ExpectedReturns.Add(p.ExpectedReturn)
			}
		}
	}
	return dash, nil
}
