package projects

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"farmlink/platform/platform-backend/internal/config"
	"farmlink/platform/platform-backend/pkg/security"
)

// Setup builds the project service from application config. Without a
// platform signer key the service runs but refuses milestone releases.
// cache may be nil when the process serves no dashboards.
func Setup(cfg *config.Config, db *sqlx.DB, gdb *gorm.DB, accounts Accounts, notifier Notifier, cache Invalidator, logger *zap.Logger) (Service, error) {
	addresses, err := NewAddressDeriver(cfg.Security.FactoryAddress, cfg.Security.ProjectInitHash)
	if err != nil {
		return nil, fmt.Errorf("invalid project address config: %w", err)
	}
	activity, err := NewActivityRepository(gdb)
	if err != nil {
		return nil, err
	}

	var signer ReleaseSigner
	if cfg.Security.PlatformSignerKey != "" {
		s, err := security.NewSigner(cfg.Security.PlatformSignerKey)
		if err != nil {
			return nil, fmt.Errorf("invalid platform signer key: %w", err)
		}
		signer = s
		logger.Info("Platform signer loaded", zap.String("address", s.Address()))
	} else {
		logger.Warn("No platform signer key configured, milestone releases are disabled")
	}

	return NewService(NewRepository(db), activity, accounts, notifier, cache, addresses, signer, ConfigFromFunding(cfg.Funding), logger), nil
}

// ConfigFromFunding converts configured base-unit limits to service limits
func ConfigFromFunding(f config.FundingConfig) Config {
	return Config{
		MinGoal:        decimal.NewFromInt(f.MinGoal),
		MaxGoal:        decimal.NewFromInt(f.MaxGoal),
		MinInvestment:  decimal.NewFromInt(f.MinInvestment),
		MaxMilestones:  f.MaxMilestones,
		MaxFundingDays: f.MaxFundingDays,
	}
}
