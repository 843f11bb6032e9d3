package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/repos"
)

type fakePub struct {
	got    []repos.OutboxRecord
	failAt int
}

func (f *fakePub) Publish(_ context.Context, rec repos.OutboxRecord) error {
	if f.failAt > 0 && len(f.got)+1 == f.failAt {
		return errors.New("broker down")
	}
	f.got = append(f.got, rec)
	return nil
}

func (f *fakePub) Close() error { return nil }

func newOutbox(t *testing.T) *repos.OutboxRepo {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repos.NewOutboxRepo(db)
}

func TestNewOrderPlaced(t *testing.T) {
	o := domain.Order{
		ID:     "o-1",
		UserID: "u-alice",
		Total:  decimal.RequireFromString("259.98"),
		Lines: []domain.OrderLine{
			{ProductID: "gbc-001", ProductName: "Game Boy Color", Price: decimal.RequireFromString("129.99"), Quantity: 2},
		},
	}
	rec, err := NewOrderPlaced(o, "orders")
	require.NoError(t, err)
	require.Equal(t, "orders", rec.Topic)
	require.Equal(t, "o-1", rec.Key)
	require.NotEmpty(t, rec.EventID)

	var ev OrderPlaced
	require.NoError(t, json.Unmarshal([]byte(rec.Payload), &ev))
	require.Equal(t, TypeOrderPlaced, ev.Type)
	require.Equal(t, rec.EventID, ev.EventID)
	require.True(t, o.Total.Equal(ev.Total))
	require.Len(t, ev.Lines, 1)
	require.Equal(t, 2, ev.Lines[0].Quantity)
}

func TestRelay_FlushPublishesInOrder(t *testing.T) {
	ctx := context.Background()
	box := newOutbox(t)
	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, box.Append(ctx, repos.OutboxRecord{EventID: id, Topic: "orders", Key: id, Payload: `{}`}))
	}
	pub := &fakePub{}
	r := &Relay{Outbox: box, Pub: pub, Batch: 10}

	n, err := r.Flush(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "e1", pub.got[0].EventID)
	require.Equal(t, "e3", pub.got[2].EventID)

	// nothing left
	n, err = r.Flush(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRelay_FailureKeepsUnsentRecords(t *testing.T) {
	ctx := context.Background()
	box := newOutbox(t)
	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, box.Append(ctx, repos.OutboxRecord{EventID: id, Topic: "orders", Key: id, Payload: `{}`}))
	}
	r := &Relay{Outbox: box, Pub: &fakePub{failAt: 2}, Batch: 10}

	n, err := r.Flush(ctx)
	require.Error(t, err)
	require.Equal(t, 1, n)

	pending, err := box.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "e2", pending[0].EventID)

	pub := &fakePub{}
	r.Pub = pub
	n, err = r.Flush(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "e2", pub.got[0].EventID)
}
