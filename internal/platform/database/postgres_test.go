package database

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolOptions_WithDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   PoolOptions
		want PoolOptions
	}{
		{name: "zero", in: PoolOptions{}, want: PoolOptions{MaxConns: 10, MinConns: 0, ConnectTimeout: 5 * time.Second}},
		{name: "kept", in: PoolOptions{MaxConns: 4, MinConns: 1, ConnectTimeout: time.Second}, want: PoolOptions{MaxConns: 4, MinConns: 1, ConnectTimeout: time.Second}},
		{name: "min above max", in: PoolOptions{MaxConns: 2, MinConns: 5}, want: PoolOptions{MaxConns: 2, MinConns: 0, ConnectTimeout: 5 * time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.withDefaults())
		})
	}
}

func TestNewDBPool_InvalidDSN(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewDBPool(context.Background(), "postgres://%zz", PoolOptions{}, log)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse pgxpool config")
}
