package chain

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

// systemAccountPrefix is twox128("System") ++ twox128("Account").
const systemAccountPrefix = "26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9"

// accountInfoLen covers nonce, consumers, providers, sufficients and the
// free / reserved fields of AccountData.
const accountInfoLen = 48

// AccountStorageKey builds the System.Account storage key of an account id
// (blake2_128concat hasher).
func AccountStorageKey(accountID []byte) (string, error) {
	if len(accountID) != 32 {
		return "", fmt.Errorf("account id must be 32 bytes, got %d", len(accountID))
	}
	h, err := blake2b.New(16, nil)
	if err != nil {
		return "", err
	}
	h.Write(accountID)

	return "0x" + systemAccountPrefix + hex.EncodeToString(h.Sum(nil)) + hex.EncodeToString(accountID), nil
}

// Balance is the raw free / reserved amount of an account in plancks.
type Balance struct {
	Free     *big.Int
	Reserved *big.Int
}

// DecodeAccountInfo reads free and reserved from a SCALE encoded
// AccountInfo. Empty input is an account that was never funded.
func DecodeAccountInfo(raw []byte) (Balance, error) {
	if len(raw) == 0 {
		return Balance{Free: new(big.Int), Reserved: new(big.Int)}, nil
	}
	if len(raw) < accountInfoLen {
		return Balance{}, fmt.Errorf("account info too short: %d bytes", len(raw))
	}
	return Balance{
		Free:     u128(raw[16:32]),
		Reserved: u128(raw[32:48]),
	}, nil
}

// u128 decodes a little-endian unsigned 128-bit integer.
func u128(le []byte) *big.Int {
	lo := binary.LittleEndian.Uint64(le[:8])
	hi := binary.LittleEndian.Uint64(le[8:16])
	v := new(big.Int).SetUint64(hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(lo))
}
