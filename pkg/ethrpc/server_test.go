package ethrpc

import (
	"context"
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/gogo-bridge/pkg/auth"
	"github.com/chainsafe/gogo-bridge/pkg/executor"
	"github.com/chainsafe/gogo-bridge/pkg/ledger"
	"github.com/chainsafe/gogo-bridge/pkg/store/memory"
	"github.com/chainsafe/gogo-bridge/pkg/token"
	tokenservice "github.com/chainsafe/gogo-bridge/pkg/token/service"
)

var (
	goldContract = common.HexToAddress("0x00000000000000000000000000000000000060d0")
	admin        = common.HexToAddress("0xa000000000000000000000000000000000000001")
	bridgeAddr   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	holder       = common.HexToAddress("0x0000000000000000000000000000000000000123")
	spender      = common.HexToAddress("0x0000000000000000000000000000000000000456")
)

func setupRPC(t *testing.T) (*Server, *ethclient.Client, *rpc.Client) {
	t.Helper()
	ctx := context.Background()

	exec := executor.New(memory.New())
	gold := ledger.New(token.Metadata{ID: "gold", Name: "Gold", Symbol: "GOLD", Decimals: 18, FeeDecimals: 6},
		auth.NewRolePolicy([]common.Address{admin}))
	svc := tokenservice.NewTokenService(gold, exec, zap.NewNop())
	require.NoError(t, svc.SetBridgeAddress(ctx, admin, bridgeAddr))
	require.NoError(t, svc.Mint(ctx, bridgeAddr, holder, uint256.NewInt(1000)))
	require.NoError(t, svc.Approve(ctx, holder, spender, uint256.NewInt(250)))
	require.NoError(t, svc.SetRoleTxnFee(ctx, admin, 3, uint256.NewInt(5_000_000)))

	s, err := NewServer(31337, map[common.Address]*tokenservice.TokenService{goldContract: svc}, zap.NewNop())
	require.NoError(t, err)
	ts := httptest.NewServer(s)
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})

	rc, err := rpc.DialContext(ctx, ts.URL)
	require.NoError(t, err)
	t.Cleanup(rc.Close)
	return s, ethclient.NewClient(rc), rc
}

func call(t *testing.T, s *Server, ec *ethclient.Client, method string, args ...any) []any {
	t.Helper()
	data, err := s.erc20ABI.Pack(method, args...)
	require.NoError(t, err)
	out, err := ec.CallContract(context.Background(), ethereum.CallMsg{To: &goldContract, Data: data}, nil)
	require.NoError(t, err)
	values, err := s.erc20ABI.Unpack(method, out)
	require.NoError(t, err)
	return values
}

func TestEthRPC_ERC20Views(t *testing.T) {
	s, ec, _ := setupRPC(t)

	assert.Equal(t, "Gold", call(t, s, ec, "name")[0])
	assert.Equal(t, "GOLD", call(t, s, ec, "symbol")[0])
	assert.Equal(t, uint8(18), call(t, s, ec, "decimals")[0])
	assert.Equal(t, big.NewInt(1000), call(t, s, ec, "totalSupply")[0])
	assert.Equal(t, big.NewInt(1000), call(t, s, ec, "balanceOf", holder)[0])
	assert.Equal(t, big.NewInt(0), call(t, s, ec, "balanceOf", spender)[0])
	assert.Equal(t, big.NewInt(250), call(t, s, ec, "allowance", holder, spender)[0])
	assert.Equal(t, big.NewInt(5_000_000), call(t, s, ec, "getRoleTxnFee", uint32(3))[0])
}

func TestEthRPC_ChainAndCode(t *testing.T) {
	_, ec, rc := setupRPC(t)
	ctx := context.Background()

	chainID, err := ec.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(31337), chainID)

	var version string
	require.NoError(t, rc.CallContext(ctx, &version, "net_version"))
	assert.Equal(t, "31337", version)

	code, err := ec.CodeAt(ctx, goldContract, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, code)

	code, err = ec.CodeAt(ctx, holder, nil)
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestEthRPC_Rejections(t *testing.T) {
	s, ec, _ := setupRPC(t)
	ctx := context.Background()

	data, err := s.erc20ABI.Pack("totalSupply")
	require.NoError(t, err)
	_, err = ec.CallContract(ctx, ethereum.CallMsg{To: &holder, Data: data}, nil)
	assert.ErrorContains(t, err, errUnsupportedContract.Error())

	_, err = ec.CallContract(ctx, ethereum.CallMsg{To: &goldContract, Data: []byte{0x01}}, nil)
	assert.ErrorContains(t, err, errMissingSelector.Error())

	_, err = ec.CallContract(ctx, ethereum.CallMsg{To: &goldContract, Data: []byte{0xde, 0xad, 0xbe, 0xef}}, nil)
	assert.ErrorContains(t, err, "unknown method")
}
