package main

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/pflag"

	"github.com/unique-nft/marketgate/internal/pagination"
)

type tokenArgs struct {
	CollectionID uint64 `validate:"gt=0"`
	TokenID      uint64 `validate:"gt=0"`
}

func (a *tokenArgs) bind(fs *pflag.FlagSet) {
	fs.Uint64Var(&a.CollectionID, "collection", 0, "Collection id")
	fs.Uint64Var(&a.TokenID, "token", 0, "Token id")
}

type quoteArgs struct {
	tokenArgs
	Bidder string `validate:"required"`
}

type bidArgs struct {
	tokenArgs
	Bidder   string `validate:"required"`
	Amount   string `validate:"required,numeric"`
	Transfer string `validate:"required,hexadecimal"`
}

// signArgs either carries a key to sign with or a signature made elsewhere.
type signArgs struct {
	tokenArgs
	Key       string `validate:"required_without=Signature"`
	Address   string `validate:"required_with=Signature"`
	Timestamp int64  `validate:"required_with=Signature"`
	Signature string `validate:"required_without=Key"`
}

type tradesArgs struct {
	Page    int `validate:"gte=1"`
	PerPage int `validate:"gte=0,lte=100"`
	Sort    string
	Account string
}

type pagesArgs struct {
	Items   int `validate:"gte=0"`
	PerPage int `validate:"gte=1"`
	Page    int
}

// strip renders a page strip, marking the current page with brackets.
func strip(items []pagination.Item, current int) string {
	return strings.Join(lo.Map(items, func(it pagination.Item, _ int) string {
		if !it.Ellipsis && it.Page == current {
			return fmt.Sprintf("[%d]", it.Page)
		}
		return it.String()
	}), " ")
}
