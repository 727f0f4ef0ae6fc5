package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unique-nft/marketgate/internal/model"
	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
)

type fakeTrades struct {
	items []model.TradeRecord
	count int
	err   error
	last  model.TradeQuery
}

func (f *fakeTrades) Trades(_ context.Context, q model.TradeQuery) ([]model.TradeRecord, int, error) {
	f.last = q
	return f.items, f.count, f.err
}

type fakeMirror struct {
	stored []model.TradeRecord
}

func (m *fakeMirror) Upsert(_ context.Context, trades []model.TradeRecord) error {
	m.stored = append(m.stored, trades...)
	return nil
}

func (m *fakeMirror) List(_ context.Context, _ model.TradeQuery) ([]model.TradeRecord, int, error) {
	return m.stored, len(m.stored), nil
}

func trade(token uint64) model.TradeRecord {
	return model.TradeRecord{
		CollectionID: 1,
		TokenID:      token,
		Price:        decimal.NewFromInt(int64(token)),
		TradeDate:    time.Date(2024, 1, int(token), 0, 0, 0, 0, time.UTC),
	}
}

func TestTradeListFromBackend(t *testing.T) {
	source := &fakeTrades{items: []model.TradeRecord{trade(1), trade(2)}, count: 500}
	mirror := &fakeMirror{}
	svc := NewTradeService(source, mirror, 20, 50)

	page, err := svc.List(context.Background(), model.TradeQuery{Page: 1, PerPage: 500})
	require.NoError(t, err)

	assert.Equal(t, "backend", page.Source)
	assert.Equal(t, 50, source.last.PerPage)
	assert.Equal(t, "desc(TradeDate)", source.last.Sort.String())
	assert.Equal(t, 500, page.ItemsCount)
	assert.Len(t, mirror.stored, 2)
}

func TestTradeListPageStrip(t *testing.T) {
	svc := NewTradeService(&fakeTrades{count: 500}, nil, 20, 100)

	page, err := svc.List(context.Background(), model.TradeQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PerPage)
	assert.NotNil(t, page.Items)

	strip := make([]string, 0, len(page.Pages))
	for _, p := range page.Pages {
		strip = append(strip, p.String())
	}
	assert.Equal(t, []string{"1", "2", "...", "24", "25"}, strip)
}

func TestTradeListFallsBackToMirror(t *testing.T) {
	mirror := &fakeMirror{stored: []model.TradeRecord{trade(3)}}
	source := &fakeTrades{err: apperrors.FromStatus(503, "down")}
	svc := NewTradeService(source, mirror, 10, 10)

	page, err := svc.List(context.Background(), model.TradeQuery{})
	require.NoError(t, err)
	assert.Equal(t, "mirror", page.Source)
	assert.Equal(t, 1, page.ItemsCount)
}

func TestTradeListDoesNotHideRejections(t *testing.T) {
	source := &fakeTrades{err: apperrors.FromStatus(400, "bad sort")}
	svc := NewTradeService(source, &fakeMirror{}, 10, 10)

	_, err := svc.List(context.Background(), model.TradeQuery{})
	assert.True(t, apperrors.Is(err, apperrors.ErrUpstreamRejected))

	svc = NewTradeService(&fakeTrades{err: apperrors.FromStatus(503, "down")}, nil, 10, 10)
	_, err = svc.List(context.Background(), model.TradeQuery{})
	assert.True(t, apperrors.Is(err, apperrors.ErrUpstream))
}
