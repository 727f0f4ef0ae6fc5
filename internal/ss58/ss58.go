// Package ss58 encodes and decodes Substrate account addresses.
package ss58

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	// AccountIDLen is the length of a Substrate AccountId32.
	AccountIDLen = 32

	checksumLen = 2
	maxPrefix   = 16383
)

var checksumPreimage = []byte("SS58PRE")

var (
	ErrChecksum = errors.New("ss58: checksum mismatch")
	ErrLength   = errors.New("ss58: invalid address length")
	ErrPrefix   = errors.New("ss58: prefix out of range")
)

// Encode renders a 32 byte account id for the network identified by prefix.
func Encode(accountID []byte, prefix uint16) (string, error) {
	if len(accountID) != AccountIDLen {
		return "", ErrLength
	}
	head, err := encodePrefix(prefix)
	if err != nil {
		return "", err
	}
	payload := append(head, accountID...)
	sum := checksum(payload)
	return base58.Encode(append(payload, sum[:checksumLen]...)), nil
}

// Decode returns the account id and network prefix of an address.
func Decode(address string) ([]byte, uint16, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, 0, fmt.Errorf("ss58: %w", err)
	}
	if len(raw) < 1 {
		return nil, 0, ErrLength
	}

	prefix, prefixLen, err := decodePrefix(raw)
	if err != nil {
		return nil, 0, err
	}
	if len(raw) != prefixLen+AccountIDLen+checksumLen {
		return nil, 0, ErrLength
	}

	body := raw[:len(raw)-checksumLen]
	sum := checksum(body)
	if !bytes.Equal(sum[:checksumLen], raw[len(raw)-checksumLen:]) {
		return nil, 0, ErrChecksum
	}

	accountID := make([]byte, AccountIDLen)
	copy(accountID, body[prefixLen:])
	return accountID, prefix, nil
}

// Reencode converts an address from any network to the given prefix.
func Reencode(address string, prefix uint16) (string, error) {
	accountID, _, err := Decode(address)
	if err != nil {
		return "", err
	}
	return Encode(accountID, prefix)
}

// Valid reports whether address decodes cleanly.
func Valid(address string) bool {
	_, _, err := Decode(address)
	return err == nil
}

func encodePrefix(prefix uint16) ([]byte, error) {
	switch {
	case prefix < 64:
		return []byte{byte(prefix)}, nil
	case prefix <= maxPrefix:
		first := byte((prefix&0b0000_0000_1111_1100)>>2) | 0b0100_0000
		second := byte(prefix>>8) | byte((prefix&0b0000_0000_0000_0011)<<6)
		return []byte{first, second}, nil
	default:
		return nil, ErrPrefix
	}
}

func decodePrefix(raw []byte) (uint16, int, error) {
	first := raw[0]
	switch {
	case first < 64:
		return uint16(first), 1, nil
	case first < 128:
		if len(raw) < 2 {
			return 0, 0, ErrLength
		}
		second := raw[1]
		lower := (first << 2) | (second >> 6)
		upper := second & 0b0011_1111
		return uint16(lower) | uint16(upper)<<8, 2, nil
	default:
		return 0, 0, ErrPrefix
	}
}

func checksum(payload []byte) [blake2b.Size]byte {
	return blake2b.Sum512(append(append([]byte{}, checksumPreimage...), payload...))
}
