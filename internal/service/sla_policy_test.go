package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSLAPolicyReadsTenantValue(t *testing.T) {
	s := newMemStore()
	s.configs["tenant-a/sla"] = "90"

	policy := NewSLAPolicy(&fakeConfigs{s: s}, 60, zap.NewNop())
	assert.Equal(t, 90, policy.Minutes(context.Background(), "tenant-a"))
}

func TestSLAPolicyFallsBackOnMissingValue(t *testing.T) {
	s := newMemStore()
	policy := NewSLAPolicy(&fakeConfigs{s: s}, 60, zap.NewNop())
	assert.Equal(t, 60, policy.Minutes(context.Background(), "tenant-a"))
}

func TestSLAPolicyFallsBackOnMalformedValue(t *testing.T) {
	s := newMemStore()
	policy := NewSLAPolicy(&fakeConfigs{s: s}, 60, zap.NewNop())

	for _, value := range []string{"soon", "", "0", "-5"} {
		s.configs["tenant-a/sla"] = value
		assert.Equal(t, 60, policy.Minutes(context.Background(), "tenant-a"), "value %q", value)
	}
}

func TestSLAPolicyTrimsWhitespace(t *testing.T) {
	s := newMemStore()
	s.configs["tenant-a/sla"] = " 30 "
	policy := NewSLAPolicy(&fakeConfigs{s: s}, 60, zap.NewNop())
	assert.Equal(t, 30, policy.Minutes(context.Background(), "tenant-a"))
}
