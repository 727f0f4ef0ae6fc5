package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
	"github.com/unique-nft/marketgate/internal/ss58"
)

var ctx = context.Background()

const aliceHex = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"

func alice(t *testing.T) []byte {
	id, err := hex.DecodeString(aliceHex)
	require.NoError(t, err)
	return id
}

func le128(v *big.Int) []byte {
	out := make([]byte, 16)
	b := v.Bytes()
	for i := range b {
		out[i] = b[len(b)-1-i]
	}
	return out
}

func accountInfo(free, reserved *big.Int) []byte {
	raw := make([]byte, 16, 80)
	raw = append(raw, le128(free)...)
	raw = append(raw, le128(reserved)...)
	return append(raw, make([]byte, 32)...)
}

type fakeState struct {
	storage map[string]string
}

func (s *fakeState) GetStorage(key string) (*string, error) {
	v, ok := s.storage[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

type fakeAuthor struct {
	submitted []string
}

func (a *fakeAuthor) SubmitExtrinsic(extrinsic string) (string, error) {
	if extrinsic == "0xbad0" {
		return "", errors.New("Invalid Transaction")
	}
	a.submitted = append(a.submitted, extrinsic)
	return "0x" + aliceHex, nil
}

type fakeSystem struct{}

func (fakeSystem) Properties() (map[string]any, error) {
	return map[string]any{
		"ss58Format":    2,
		"tokenDecimals": 12,
		"tokenSymbol":   "KSM",
	}, nil
}

func makeClient(t *testing.T, state *fakeState, author *fakeAuthor) *Client {
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("state", state))
	require.NoError(t, srv.RegisterName("author", author))
	require.NoError(t, srv.RegisterName("system", fakeSystem{}))

	rpcClient := rpc.DialInProc(srv)
	t.Cleanup(func() {
		rpcClient.Close()
		srv.Stop()
	})
	return NewClient(rpcClient, Options{Name: "kusama", SS58Prefix: 2, Decimals: 12, Symbol: "KSM"})
}

func TestAccountStorageKey(t *testing.T) {
	key, err := AccountStorageKey(alice(t))
	require.NoError(t, err)
	assert.Equal(t,
		"0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9"+
			"de1e86a9a8c739864cf3cc5ec2bea59f"+aliceHex,
		key)

	_, err = AccountStorageKey([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeAccountInfo(t *testing.T) {
	free, _ := new(big.Int).SetString("340282366920938463463374607431768211455", 10) // u128 max
	reserved := big.NewInt(1_500_000_000_000)

	bal, err := DecodeAccountInfo(accountInfo(free, reserved))
	require.NoError(t, err)
	assert.Equal(t, free.String(), bal.Free.String())
	assert.Equal(t, reserved.String(), bal.Reserved.String())

	empty, err := DecodeAccountInfo(nil)
	require.NoError(t, err)
	assert.Zero(t, empty.Free.Sign())

	_, err = DecodeAccountInfo(make([]byte, 20))
	assert.Error(t, err)
}

func TestAccountBalance(t *testing.T) {
	key, err := AccountStorageKey(alice(t))
	require.NoError(t, err)

	state := &fakeState{storage: map[string]string{
		key: hexutil.Encode(accountInfo(big.NewInt(2_000_000_000_000), big.NewInt(7))),
	}}
	c := makeClient(t, state, &fakeAuthor{})

	// Any prefix resolves to the same account.
	addr, err := ss58.Encode(alice(t), 42)
	require.NoError(t, err)

	bal, err := c.AccountBalance(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "2000000000000", bal.Free.String())
	assert.Equal(t, "7", bal.Reserved.String())

	other, err := ss58.Encode(make([]byte, 32), 2)
	require.NoError(t, err)
	bal, err = c.AccountBalance(ctx, other)
	require.NoError(t, err)
	assert.Zero(t, bal.Free.Sign())

	_, err = c.AccountBalance(ctx, "nope")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))
}

func TestSubmitExtrinsic(t *testing.T) {
	author := &fakeAuthor{}
	c := makeClient(t, &fakeState{}, author)

	hash, err := c.SubmitExtrinsic(ctx, "4502")
	require.NoError(t, err)
	assert.Equal(t, "0x"+aliceHex, hash)
	assert.Equal(t, []string{"0x4502"}, author.submitted)

	_, err = c.SubmitExtrinsic(ctx, "0xzz")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))

	_, err = c.SubmitExtrinsic(ctx, "0xbad0")
	assert.True(t, apperrors.Is(err, apperrors.ErrChain))
}

func TestProperties(t *testing.T) {
	c := makeClient(t, &fakeState{}, &fakeAuthor{})

	props, err := c.Properties(ctx)
	require.NoError(t, err)
	require.NotNil(t, props.SS58Format)
	assert.Equal(t, uint16(2), *props.SS58Format)
	assert.Equal(t, []int32{12}, props.TokenDecimals)
	assert.Equal(t, []string{"KSM"}, props.TokenSymbol)
	assert.Equal(t, "KSM", c.Symbol())
}
