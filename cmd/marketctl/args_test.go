package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unique-nft/marketgate/internal/pagination"
)

func TestStrip(t *testing.T) {
	res, err := pagination.Pages(500, 20, 13)
	require.NoError(t, err)
	assert.Equal(t, "1 2 ... 12 [13] 14 ... 24 25", strip(res.Items, res.Page))
}

func TestSignArgsValidation(t *testing.T) {
	token := tokenArgs{CollectionID: 1, TokenID: 2}

	assert.Error(t, validate.Struct(signArgs{tokenArgs: token}))
	assert.NoError(t, validate.Struct(signArgs{tokenArgs: token, Key: "0xabc"}))
	assert.Error(t, validate.Struct(signArgs{tokenArgs: token, Signature: "0xabc"}))
	assert.NoError(t, validate.Struct(signArgs{
		tokenArgs: token, Signature: "0xabc", Address: "5Grw", Timestamp: 1700000000000,
	}))
	assert.Error(t, validate.Struct(signArgs{tokenArgs: tokenArgs{TokenID: 2}, Key: "0xabc"}))
}

func TestBidArgsValidation(t *testing.T) {
	ok := bidArgs{
		tokenArgs: tokenArgs{CollectionID: 1, TokenID: 2},
		Bidder:    "5Grw",
		Amount:    "1.5",
		Transfer:  "0x4502",
	}
	assert.NoError(t, validate.Struct(ok))

	bad := ok
	bad.Transfer = "not-hex"
	assert.Error(t, validate.Struct(bad))

	bad = ok
	bad.Amount = "lots"
	assert.Error(t, validate.Struct(bad))
}

func TestPagesArgsValidation(t *testing.T) {
	assert.NoError(t, validate.Struct(pagesArgs{Items: 10, PerPage: 5, Page: 1}))
	assert.Error(t, validate.Struct(pagesArgs{Items: 10, PerPage: 0}))
	assert.Error(t, validate.Struct(tradesArgs{Page: 0}))
}
