package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/chainsafe/gogo-bridge/pkg/token"
	tokenservice "github.com/chainsafe/gogo-bridge/pkg/token/service"
)

var (
	errUnsupportedContract = errors.New("unsupported contract")
	errMissingSelector     = errors.New("missing function selector")
)

// contractCode is returned by eth_getCode for exposed ledgers so wallets
// treat the address as a contract.
var contractCode = hexutil.Bytes{0xfe}

// EthAPI implements the eth_* JSON-RPC namespace
type EthAPI struct {
	server *Server
}

// NewEthAPI creates a new EthAPI instance
func NewEthAPI(server *Server) *EthAPI {
	return &EthAPI{server: server}
}

// ChainId returns the chain ID (EIP-155)
func (api *EthAPI) ChainId() *hexutil.Big {
	return (*hexutil.Big)(api.server.chainID)
}

// Syncing returns false (always synced)
func (api *EthAPI) Syncing() (bool, error) {
	return false, nil
}

// GetCode returns the code at an address
func (api *EthAPI) GetCode(_ context.Context, address common.Address, _ *rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	if _, ok := api.server.contracts[address]; ok {
		return contractCode, nil
	}
	return hexutil.Bytes{}, nil
}

// Call executes a read-only ERC-20 call against a ledger
func (api *EthAPI) Call(ctx context.Context, args CallArgs, _ *rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	if args.To == nil {
		return nil, errUnsupportedContract
	}
	svc, ok := api.server.contracts[*args.To]
	if !ok {
		api.server.logger.Debug("eth_call to unknown contract", zap.String("to", args.To.Hex()))
		return nil, errUnsupportedContract
	}

	input := args.GetData()
	if len(input) < 4 {
		return nil, errMissingSelector
	}
	method, err := api.server.erc20ABI.MethodById(input[:4])
	if err != nil {
		return nil, fmt.Errorf("unknown method")
	}

	switch method.Name {
	case "name", "symbol", "decimals", "totalSupply":
		return api.callMetadata(ctx, svc, method)
	case "balanceOf":
		return api.callBalanceOf(ctx, svc, method, input[4:])
	case "allowance":
		return api.callAllowance(ctx, svc, method, input[4:])
	case "getRoleTxnFee":
		return api.callRoleTxnFee(ctx, svc, method, input[4:])
	default:
		return nil, fmt.Errorf("unsupported method: %s", method.Name)
	}
}

func (api *EthAPI) callMetadata(ctx context.Context, svc *tokenservice.TokenService, method *abi.Method) (hexutil.Bytes, error) {
	info, err := svc.Info(ctx)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "name":
		return method.Outputs.Pack(info.Name)
	case "symbol":
		return method.Outputs.Pack(info.Symbol)
	case "decimals":
		return method.Outputs.Pack(info.Decimals)
	default:
		return packUint256(method, info.TotalSupply)
	}
}

func (api *EthAPI) callBalanceOf(ctx context.Context, svc *tokenservice.TokenService, method *abi.Method, data []byte) (hexutil.Bytes, error) {
	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, data); err != nil {
		return nil, err
	}
	account, ok := args["account"].(common.Address)
	if !ok {
		return nil, fmt.Errorf("invalid account address")
	}

	balance, err := svc.GetBalance(ctx, account)
	if err != nil {
		api.server.logger.Warn("Failed to get balance",
			zap.String("token", string(svc.ID())),
			zap.String("address", account.Hex()),
			zap.Error(err))
		return nil, err
	}
	return packUint256(method, balance)
}

func (api *EthAPI) callAllowance(ctx context.Context, svc *tokenservice.TokenService, method *abi.Method, data []byte) (hexutil.Bytes, error) {
	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, data); err != nil {
		return nil, err
	}
	owner, ok := args["owner"].(common.Address)
	if !ok {
		return nil, fmt.Errorf("invalid owner address")
	}
	spender, ok := args["spender"].(common.Address)
	if !ok {
		return nil, fmt.Errorf("invalid spender address")
	}

	allowance, err := svc.GetAllowance(ctx, owner, spender)
	if err != nil {
		return nil, err
	}
	return packUint256(method, allowance)
}

func (api *EthAPI) callRoleTxnFee(ctx context.Context, svc *tokenservice.TokenService, method *abi.Method, data []byte) (hexutil.Bytes, error) {
	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, data); err != nil {
		return nil, err
	}
	role, ok := args["role"].(uint32)
	if !ok {
		return nil, fmt.Errorf("invalid role")
	}

	rate, err := svc.GetRoleTxnFee(ctx, token.RoleID(role))
	if err != nil {
		return nil, err
	}
	return packUint256(method, rate)
}

func packUint256(method *abi.Method, v *uint256.Int) (hexutil.Bytes, error) {
	if v == nil {
		return method.Outputs.Pack(new(big.Int))
	}
	return method.Outputs.Pack(v.ToBig())
}
