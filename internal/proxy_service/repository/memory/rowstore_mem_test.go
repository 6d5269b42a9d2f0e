package memory

import (
	"context"
	"testing"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowStore_WriteAndRead(t *testing.T) {
	ctx := context.Background()
	s := NewRowStore([]string{"a", "b"})
	require.NoError(t, s.AppendRow(ctx, []string{"1", "2"}))

	require.NoError(t, s.WriteRange(ctx, 2, []domain.Cell{{Col: 1, Value: "x"}, {Col: 3, Value: "y"}}))

	v, err := s.ReadCell(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	v, err = s.ReadCell(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, "y", v)

	v, err = s.ReadCell(ctx, 9, 0)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	rows, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "x", "", "y"}}, rows)
}

func TestRowStore_WriteRangeOutOfRange(t *testing.T) {
	s := NewRowStore([]string{"a"})
	err := s.WriteRange(context.Background(), 5, []domain.Cell{{Col: 0, Value: "x"}})
	assert.Error(t, err)
}

func TestRowStore_CompareAndWrite(t *testing.T) {
	ctx := context.Background()
	s := NewRowStore([]string{"token", "status"}, []string{"", "available"})

	applied, err := s.CompareAndWrite(ctx, 2, domain.Cell{Col: 0, Value: ""}, []domain.Cell{{Col: 0, Value: "t1"}, {Col: 1, Value: "reserved"}})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.CompareAndWrite(ctx, 2, domain.Cell{Col: 0, Value: ""}, []domain.Cell{{Col: 0, Value: "t2"}})
	require.NoError(t, err)
	assert.False(t, applied)

	v, _ := s.ReadCell(ctx, 2, 0)
	assert.Equal(t, "t1", v)
}

func TestRowStore_ReadAllReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewRowStore([]string{"a"}, []string{"1"})
	rows, err := s.ReadAll(ctx)
	require.NoError(t, err)
	rows[1][0] = "mutated"

	v, _ := s.ReadCell(ctx, 2, 0)
	assert.Equal(t, "1", v)
}
