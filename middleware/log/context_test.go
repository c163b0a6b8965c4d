package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-123")
	assert.Equal(t, "trace-123", GetTraceID(ctx))
}

func TestWithTraceID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithTraceID(context.Background(), "")
	assert.NotEmpty(t, GetTraceID(ctx))
}

func TestGetTraceID_Missing(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestNewTraceID_Unique(t *testing.T) {
	assert.NotEqual(t, NewTraceID(), NewTraceID())
}
