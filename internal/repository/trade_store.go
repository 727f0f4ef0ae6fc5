package repository

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/unique-nft/marketgate/internal/model"
	"github.com/unique-nft/marketgate/internal/pagination"
)

// tradeRow is the mirrored copy of a backend trade.
type tradeRow struct {
	ID           uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	CollectionID uint64          `gorm:"column:collection_id;not null;uniqueIndex:idx_trades_sale,priority:1"`
	TokenID      uint64          `gorm:"column:token_id;not null;uniqueIndex:idx_trades_sale,priority:2"`
	TradeDate    time.Time       `gorm:"column:trade_date;not null;type:timestamptz;uniqueIndex:idx_trades_sale,priority:3;index"`
	Price        decimal.Decimal `gorm:"column:price;not null;type:numeric(78,18)"`
	Buyer        string          `gorm:"column:buyer;not null;type:text;index"`
	Seller       string          `gorm:"column:seller;not null;type:text;index"`
	CreatedAt    time.Time       `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

func (tradeRow) TableName() string { return "trades" }

// sortColumns whitelists sortable fields.
var sortColumns = map[string]string{
	"TradeDate":    "trade_date",
	"Price":        "price",
	"CollectionId": "collection_id",
	"TokenId":      "token_id",
}

// GormTradeStore mirrors trade history into Postgres so it can be served
// while the marketplace backend is unavailable.
type GormTradeStore struct {
	db *gorm.DB
}

func NewGormTradeStore(db *gorm.DB) (*GormTradeStore, error) {
	if err := db.AutoMigrate(&tradeRow{}); err != nil {
		return nil, err
	}
	return &GormTradeStore{db: db}, nil
}

// Upsert stores trades, ignoring ones already mirrored.
func (s *GormTradeStore) Upsert(ctx context.Context, trades []model.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	rows := lo.Map(trades, func(t model.TradeRecord, _ int) tradeRow {
		return tradeRow{
			CollectionID: t.CollectionID,
			TokenID:      t.TokenID,
			TradeDate:    t.TradeDate.UTC(),
			Price:        t.Price,
			Buyer:        t.Buyer,
			Seller:       t.Seller,
		}
	})
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// List returns one page of mirrored trades and the total count.
func (s *GormTradeStore) List(ctx context.Context, q model.TradeQuery) ([]model.TradeRecord, int, error) {
	scoped := func() *gorm.DB {
		tx := s.db.WithContext(ctx).Model(&tradeRow{})
		if q.Account != "" {
			tx = tx.Where("buyer = ? OR seller = ?", q.Account, q.Account)
		}
		return tx
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pagination.Window(q.Page, q.PerPage)
	var rows []tradeRow
	err := scoped().Order(orderBy(q.Sort)).Offset(offset).Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	return lo.Map(rows, func(r tradeRow, _ int) model.TradeRecord {
		return model.TradeRecord{
			CollectionID: r.CollectionID,
			TokenID:      r.TokenID,
			Price:        r.Price,
			Buyer:        r.Buyer,
			Seller:       r.Seller,
			TradeDate:    r.TradeDate,
		}
	}), int(total), nil
}

func orderBy(s pagination.Sort) clause.OrderByColumn {
	col, ok := sortColumns[s.Field]
	if !ok {
		return clause.OrderByColumn{Column: clause.Column{Name: "trade_date"}, Desc: true}
	}
	return clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: s.Desc}
}
