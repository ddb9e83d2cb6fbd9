package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAllEmpty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	assert.True(t, healthy)
	assert.Empty(t, statuses)
}

func TestCheckAllHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("store", func(ctx context.Context) Status {
		return Status{Name: "store", Healthy: true}
	})
	r.Register("scheduler", func(ctx context.Context) Status {
		return Status{Name: "scheduler", Healthy: true}
	})

	healthy, statuses := r.CheckAll(context.Background())
	assert.True(t, healthy)
	assert.Len(t, statuses, 2)
}

func TestCheckAllOneUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("store", func(ctx context.Context) Status {
		return Status{Name: "store", Healthy: true}
	})
	r.Register("integrations", func(ctx context.Context) Status {
		return Status{Name: "integrations", Healthy: false, Detail: "connection refused"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	assert.False(t, healthy)
	assert.Len(t, statuses, 2)
	assert.Equal(t, "connection refused", statuses[1].Detail)
}
