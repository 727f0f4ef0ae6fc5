package signer

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"

	"github.com/unique-nft/marketgate/internal/ss58"
)

// Signer produces signatures for an account, the way the browser wallet
// extension does for the UI.
type Signer interface {
	Address() string
	Sign(ctx context.Context, payload []byte) (string, error)
}

// KeySigner signs with a local secp256k1 key using the Substrate ECDSA
// scheme: the account id is blake2b-256 of the compressed public key and
// the signed digest is blake2b-256 of the payload.
type KeySigner struct {
	key       *ecdsa.PrivateKey
	accountID []byte
	address   string
}

// NewKeySigner parses a hex private key (with or without 0x).
func NewKeySigner(privateKeyHex string, ss58Prefix uint16) (*KeySigner, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}
	return newKeySigner(key, ss58Prefix)
}

func newKeySigner(key *ecdsa.PrivateKey, ss58Prefix uint16) (*KeySigner, error) {
	accountID := AccountID(&key.PublicKey)
	address, err := ss58.Encode(accountID, ss58Prefix)
	if err != nil {
		return nil, err
	}
	return &KeySigner{
		key:       key,
		accountID: accountID,
		address:   address,
	}, nil
}

// GenerateKeySigner creates a signer with a fresh random key.
func GenerateKeySigner(ss58Prefix uint16) (*KeySigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return newKeySigner(key, ss58Prefix)
}

// AccountID derives the Substrate account id of an ECDSA public key.
func AccountID(pub *ecdsa.PublicKey) []byte {
	sum := blake2b.Sum256(crypto.CompressPubkey(pub))
	return sum[:]
}

func (s *KeySigner) Address() string {
	return s.address
}

func (s *KeySigner) AccountID() []byte {
	out := make([]byte, len(s.accountID))
	copy(out, s.accountID)
	return out
}

// Sign returns a 0x-prefixed 65 byte recoverable signature.
func (s *KeySigner) Sign(_ context.Context, payload []byte) (string, error) {
	digest := blake2b.Sum256(payload)
	sig, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// Verify checks an ECDSA signature produced by KeySigner against address.
func Verify(address string, payload []byte, signature string) error {
	accountID, _, err := ss58.Decode(address)
	if err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	rawSig, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding")
	}
	if len(rawSig) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature length")
	}
	if rawSig[64] >= 27 {
		rawSig[64] -= 27
	}
	digest := blake2b.Sum256(payload)
	pub, err := crypto.SigToPub(digest[:], rawSig)
	if err != nil {
		return fmt.Errorf("signature recovery failed")
	}
	if !bytes.Equal(AccountID(pub), accountID) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// Presigned wraps a signature produced elsewhere, typically by the user's
// wallet extension, over a payload the caller has already agreed on.
type Presigned struct {
	Addr      string
	Signature string
}

func (p Presigned) Address() string {
	return p.Addr
}

func (p Presigned) Sign(_ context.Context, _ []byte) (string, error) {
	if p.Signature == "" {
		return "", fmt.Errorf("signature is required")
	}
	return p.Signature, nil
}
