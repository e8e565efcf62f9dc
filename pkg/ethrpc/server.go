// Package ethrpc exposes the ledgers as read-only ERC-20 contracts over the
// Ethereum JSON-RPC protocol, so wallets can show balances.
package ethrpc

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	tokenservice "github.com/chainsafe/gogo-bridge/pkg/token/service"
)

// Standard ERC20 ABI for parsing calls
const erc20ABI = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"role","type":"uint32"}],"name":"getRoleTxnFee","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

const clientVersion = "gogo-bridge/1.0.0"

// Server handles Ethereum JSON-RPC requests
type Server struct {
	chainID   *big.Int
	contracts map[common.Address]*tokenservice.TokenService
	erc20ABI  abi.ABI
	rpcServer *rpc.Server
	logger    *zap.Logger
}

// NewServer creates a new Ethereum JSON-RPC server. contracts maps the
// address a wallet calls to the ledger served at it.
func NewServer(
	chainID uint64,
	contracts map[common.Address]*tokenservice.TokenService,
	logger *zap.Logger,
) (*Server, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	s := &Server{
		chainID:   new(big.Int).SetUint64(chainID),
		contracts: contracts,
		erc20ABI:  parsedABI,
		rpcServer: rpc.NewServer(),
		logger:    logger,
	}

	if err := s.rpcServer.RegisterName("eth", NewEthAPI(s)); err != nil {
		return nil, fmt.Errorf("failed to register eth API: %w", err)
	}
	if err := s.rpcServer.RegisterName("net", NewNetAPI(s)); err != nil {
		return nil, fmt.Errorf("failed to register net API: %w", err)
	}
	if err := s.rpcServer.RegisterName("web3", NewWeb3API()); err != nil {
		return nil, fmt.Errorf("failed to register web3 API: %w", err)
	}

	for addr, svc := range contracts {
		logger.Info("Ledger exposed over JSON-RPC",
			zap.String("token", string(svc.ID())),
			zap.String("contract_address", addr.Hex()))
	}
	return s, nil
}

// ServeHTTP handles HTTP requests
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.rpcServer.ServeHTTP(w, r)
}

// Stop shuts down the underlying RPC server.
func (s *Server) Stop() {
	s.rpcServer.Stop()
}
