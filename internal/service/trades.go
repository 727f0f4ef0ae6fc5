package service

import (
	"context"

	"github.com/unique-nft/marketgate/internal/model"
	"github.com/unique-nft/marketgate/internal/pagination"
	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
	"github.com/unique-nft/marketgate/internal/pkg/logger"
)

type TradeSource interface {
	Trades(ctx context.Context, q model.TradeQuery) ([]model.TradeRecord, int, error)
}

type TradeMirror interface {
	Upsert(ctx context.Context, trades []model.TradeRecord) error
	List(ctx context.Context, q model.TradeQuery) ([]model.TradeRecord, int, error)
}

// TradeService pages through trade history. Backend pages are mirrored
// when a mirror is configured, and the mirror answers while the backend is
// unavailable.
type TradeService struct {
	source     TradeSource
	mirror     TradeMirror
	perPage    int
	maxPerPage int
}

func NewTradeService(source TradeSource, mirror TradeMirror, perPage, maxPerPage int) *TradeService {
	if perPage <= 0 {
		perPage = 10
	}
	if maxPerPage < perPage {
		maxPerPage = perPage
	}
	return &TradeService{source: source, mirror: mirror, perPage: perPage, maxPerPage: maxPerPage}
}

// Normalize applies defaults and bounds to a query.
func (s *TradeService) Normalize(q model.TradeQuery) model.TradeQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = s.perPage
	}
	if q.PerPage > s.maxPerPage {
		q.PerPage = s.maxPerPage
	}
	if q.Sort.Field == "" {
		q.Sort = pagination.Sort{Field: "TradeDate", Desc: true}
	}
	return q
}

func (s *TradeService) List(ctx context.Context, q model.TradeQuery) (model.TradePage, error) {
	q = s.Normalize(q)

	items, count, err := s.source.Trades(ctx, q)
	source := "backend"
	if err != nil {
		if s.mirror == nil || !apperrors.IsRetryable(err) {
			return model.TradePage{}, err
		}
		logger.Warn("trade backend unavailable, serving mirror", logger.Err(err))
		items, count, err = s.mirror.List(ctx, q)
		if err != nil {
			return model.TradePage{}, apperrors.New(apperrors.ErrInternal, "read trade mirror", err)
		}
		source = "mirror"
	} else if s.mirror != nil {
		if err := s.mirror.Upsert(ctx, items); err != nil {
			logger.Warn("trade mirror write failed", logger.Err(err))
		}
	}

	strip, err := pagination.Pages(count, q.PerPage, q.Page)
	if err != nil {
		return model.TradePage{}, apperrors.New(apperrors.ErrInternal, "paginate", err)
	}

	if items == nil {
		items = []model.TradeRecord{}
	}
	return model.TradePage{
		Items:      items,
		ItemsCount: count,
		Page:       strip.Page,
		PerPage:    q.PerPage,
		Pages:      strip.Items,
		Source:     source,
	}, nil
}
