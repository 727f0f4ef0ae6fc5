package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unique-nft/marketgate/internal/model"
	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
)

type SettingsReader interface {
	Get() (*model.AuctionSettings, bool)
}

type BalanceFetcher interface {
	Fetch(ctx context.Context, address string) (model.Balances, error)
	Watch(ctx context.Context, address string, interval time.Duration, fn func(model.Balances, error))
}

type BidFlow interface {
	Quote(ctx context.Context, collectionID, tokenID uint64, bidder string) (model.QuoteResponse, error)
	PlaceBid(ctx context.Context, req model.PlaceBidRequest) (*model.Bid, error)
	GetBid(ctx context.Context, id string) (*model.Bid, error)
	ListBids(ctx context.Context, bidder string, limit int) ([]*model.Bid, error)
	Withdraw(ctx context.Context, req model.SignedTokenRequest) error
	Cancel(ctx context.Context, req model.SignedTokenRequest) error
	Reconcile(ctx context.Context) (int, error)
	Pause()
	Resume()
	Paused() bool
}

type TradeLister interface {
	List(ctx context.Context, q model.TradeQuery) (model.TradePage, error)
}

// fail hands err to middleware.ErrorHandler.
func fail(c *gin.Context, err error) {
	_ = c.Error(apperrors.Wrap(err))
	c.Abort()
}

func badRequest(c *gin.Context, err error) {
	fail(c, apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
}

// queryInt reads an optional integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewInvalidRequest(name + " must be an integer")
	}
	return v, nil
}
