package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		logger := New(level, "text")
		assert.NotNil(t, logger, "level %s", level)
	}
}

func TestNewJSONFormat(t *testing.T) {
	logger := New("info", "json")
	assert.NotNil(t, logger)
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))

	ctx = WithRequestID(ctx, "req_123")
	assert.Equal(t, "req_123", RequestID(ctx))
}

func TestLAddsRequestID(t *testing.T) {
	logger := New("info", "text")
	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req_abc")

	// L should not panic and should return a non-nil logger
	assert.NotNil(t, L(ctx))
}

func TestFromContextDefault(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}
