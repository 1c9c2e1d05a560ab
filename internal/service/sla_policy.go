package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-platform/internal/repository"
)

// slaConfigKey is the tenant configuration key holding the SLA window
// in minutes.
const slaConfigKey = "sla"

// SLAPolicy resolves tenant SLA minutes from the configurations table,
// falling back to the system default on missing or malformed values.
type SLAPolicy struct {
	configs         repository.ConfigurationRepository
	fallbackMinutes int
	logger          *zap.Logger
}

// NewSLAPolicy constructs the policy.
func NewSLAPolicy(configs repository.ConfigurationRepository, fallbackMinutes int, logger *zap.Logger) *SLAPolicy {
	return &SLAPolicy{configs: configs, fallbackMinutes: fallbackMinutes, logger: logger}
}

// Minutes returns the SLA window for a tenant.
func (p *SLAPolicy) Minutes(ctx context.Context, tenantID string) int {
	value, err := p.configs.GetValue(ctx, tenantID, slaConfigKey)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			p.logger.Warn("sla config lookup failed, using default",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
		}
		return p.fallbackMinutes
	}

	minutes, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || minutes <= 0 {
		p.logger.Warn("invalid sla config value, using default",
			zap.String("tenant_id", tenantID),
			zap.String("value", value),
		)
		return p.fallbackMinutes
	}
	return minutes
}
