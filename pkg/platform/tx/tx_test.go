package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, ctx, WithTx(ctx, nil), "a nil transaction leaves the context untouched")

	stored := &sql.Tx{}
	got, ok := From(WithTx(ctx, stored))
	assert.True(t, ok)
	assert.Same(t, stored, got)

	_, ok = From(ctx)
	assert.False(t, ok)
}

func TestConnFallsBackToDB(t *testing.T) {
	db := &sql.DB{}
	assert.Equal(t, Querier(db), Conn(context.Background(), db))

	stored := &sql.Tx{}
	assert.Equal(t, Querier(stored), Conn(WithTx(context.Background(), stored), db))
}
