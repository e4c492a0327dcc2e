package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(projectID string, seq int) *Record {
	return &Record{
		ProjectID:     projectID,
		BuyerName:     "Acme",
		AmountPaid:    decimal.NewFromInt(5000),
		TransactionID: fmt.Sprintf("0x%064d", seq),
		Timestamp:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Add(time.Duration(seq) * time.Second),
	}
}

func TestMemoryStore_AppendAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec := newTestRecord("p1", 1)
	require.NoError(t, store.Append(ctx, rec))
	assert.NotEqual(t, uuid.Nil, rec.ID)

	found, err := store.FindByProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, rec.TransactionID, found.TransactionID)
	assert.True(t, found.AmountPaid.Equal(decimal.NewFromInt(5000)))

	ok, err := store.HasRecordFor(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.HasRecordFor(ctx, "p2")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.FindByProject(ctx, "p2")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryStore_RejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Append(ctx, newTestRecord("p1", 1)))

	assert.ErrorIs(t, store.Append(ctx, newTestRecord("p1", 2)), ErrDuplicateRecord)

	sameTx := newTestRecord("p2", 1)
	assert.ErrorIs(t, store.Append(ctx, sameTx), ErrDuplicateRecord)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_RejectsInvalid(t *testing.T) {
	store := NewMemoryStore()

	bad := newTestRecord("p1", 1)
	bad.AmountPaid = decimal.NewFromInt(-1)
	assert.ErrorIs(t, store.Append(context.Background(), bad), ErrInvalidRecord)

	noTx := newTestRecord("p1", 1)
	noTx.TransactionID = ""
	assert.ErrorIs(t, store.Append(context.Background(), noTx), ErrInvalidRecord)

	assert.Zero(t, store.Len())
}

func TestMemoryStore_StoredRecordIsImmutable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rec := newTestRecord("p1", 1)
	require.NoError(t, store.Append(ctx, rec))

	rec.BuyerName = "Mallory"
	found, err := store.FindByProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", found.BuyerName)

	found.AmountPaid = decimal.Zero
	again, _ := store.FindByProject(ctx, "p1")
	assert.True(t, again.AmountPaid.Equal(decimal.NewFromInt(5000)))
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Append(ctx, newTestRecord(fmt.Sprintf("p%d", i), i)))
	}

	all, err := store.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "p1", all[0].ProjectID)

	page, err := store.List(ctx, ListFilter{Offset: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "p3", page[0].ProjectID)
	assert.Equal(t, "p4", page[1].ProjectID)

	one, err := store.List(ctx, ListFilter{ProjectID: "p5"})
	require.NoError(t, err)
	require.Len(t, one, 1)
}

func TestMemoryStore_ConcurrentAppendSameProject(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Append(ctx, newTestRecord("p1", i))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrDuplicateRecord)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, store.Len())
}
