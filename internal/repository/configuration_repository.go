package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConfigurationRepository reads tenant-scoped configuration values by key.
type ConfigurationRepository interface {
	GetValue(ctx context.Context, tenantID, key string) (string, error)
}

type configurationRepository struct {
	pool *pgxpool.Pool
}

// NewConfigurationRepository instantiates the repository.
func NewConfigurationRepository(pool *pgxpool.Pool) ConfigurationRepository {
	return &configurationRepository{pool: pool}
}

func (r *configurationRepository) GetValue(ctx context.Context, tenantID, key string) (string, error) {
	const query = `SELECT COALESCE(value, '') FROM configurations WHERE tenant_id=$1 AND key=$2`
	var value string
	if err := r.pool.QueryRow(ctx, query, tenantID, key).Scan(&value); err != nil {
		return "", err
	}
	return value, nil
}
