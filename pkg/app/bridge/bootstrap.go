package bridge

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/chainsafe/gogo-bridge/pkg/auth"
	"github.com/chainsafe/gogo-bridge/pkg/bridge"
	bridgeservice "github.com/chainsafe/gogo-bridge/pkg/bridge/service"
	"github.com/chainsafe/gogo-bridge/pkg/config"
	"github.com/chainsafe/gogo-bridge/pkg/ethrpc"
	"github.com/chainsafe/gogo-bridge/pkg/executor"
	"github.com/chainsafe/gogo-bridge/pkg/ledger"
	"github.com/chainsafe/gogo-bridge/pkg/token"
	tokenservice "github.com/chainsafe/gogo-bridge/pkg/token/service"
)

// Components is the wired service graph of one bridge process.
type Components struct {
	Bridges []bridgeservice.Service
	Tokens  []*tokenservice.TokenService
	// RPC is the JSON-RPC facade, nil when disabled.
	RPC  *ethrpc.Server
	Auth *auth.Authenticator
}

// side groups what is built for one bridge instance.
type side struct {
	name       bridge.Side
	tokenCfg   config.TokenConfig
	bridgeCfg  config.BridgeConfig
	ledger     *ledger.Ledger
	tokens     *tokenservice.TokenService
	controller bridgeservice.Service
}

// Bootstrap builds both ledgers and both controllers over exec and applies
// the configured oracles, bridge bindings and fee settings. It is safe to run
// against a store that was bootstrapped before.
func Bootstrap(ctx context.Context, cfg *config.Config, exec *executor.Executor, logger *zap.Logger) (*Components, error) {
	sides := []*side{
		{name: bridge.SidePrivate, tokenCfg: cfg.Tokens.Private, bridgeCfg: cfg.Bridges.Private},
		{name: bridge.SidePublic, tokenCfg: cfg.Tokens.Public, bridgeCfg: cfg.Bridges.Public},
	}

	comps := &Components{}
	contracts := make(map[common.Address]*tokenservice.TokenService)
	for _, s := range sides {
		if err := s.build(exec, logger); err != nil {
			return nil, fmt.Errorf("build %s side: %w", s.name, err)
		}
		if err := s.apply(ctx); err != nil {
			return nil, fmt.Errorf("configure %s side: %w", s.name, err)
		}
		comps.Bridges = append(comps.Bridges, s.controller)
		comps.Tokens = append(comps.Tokens, s.tokens)
		if s.tokenCfg.ContractAddress != "" {
			contracts[common.HexToAddress(s.tokenCfg.ContractAddress)] = s.tokens
		}

		logger.Info("Bridge side ready",
			zap.String("side", string(s.name)),
			zap.String("token", s.tokenCfg.ID),
			zap.String("bridge_address", s.bridgeCfg.Address))
	}

	if cfg.EthRPC.Enabled {
		rpcServer, err := ethrpc.NewServer(cfg.EthRPC.ChainID, contracts, logger)
		if err != nil {
			return nil, fmt.Errorf("create json-rpc server: %w", err)
		}
		comps.RPC = rpcServer
	}
	comps.Auth = auth.NewAuthenticator(cfg.Auth.Mode, logger, auth.WithMaxRequestAge(cfg.Auth.MaxRequestAge))
	return comps, nil
}

func (s *side) build(exec *executor.Executor, logger *zap.Logger) error {
	tokenAdmins, err := parseAddresses(s.tokenCfg.Admins)
	if err != nil {
		return fmt.Errorf("token admins: %w", err)
	}
	policy, err := auth.NewAdminPolicy(s.tokenCfg.AdminMode, tokenAdmins)
	if err != nil {
		return err
	}

	var opts []ledger.Option
	if s.tokenCfg.AdminMint {
		opts = append(opts, ledger.WithAdminMint())
	}
	s.ledger = ledger.New(token.Metadata{
		ID:          token.ID(s.tokenCfg.ID),
		Name:        s.tokenCfg.Name,
		Symbol:      s.tokenCfg.Symbol,
		Decimals:    s.tokenCfg.Decimals,
		FeeDecimals: s.tokenCfg.FeeDecimals,
	}, policy, opts...)
	s.tokens = tokenservice.NewTokenService(s.ledger, exec, logger)

	bridgeAdmins, err := parseAddresses(s.bridgeCfg.Admins)
	if err != nil {
		return fmt.Errorf("bridge admins: %w", err)
	}
	address, err := auth.ParseAddress(s.bridgeCfg.Address)
	if err != nil {
		return fmt.Errorf("bridge address: %w", err)
	}

	controller := bridgeservice.New(s.name, address, exec, s.ledger, auth.NewRolePolicy(bridgeAdmins),
		bridgeservice.WithLedgerObserver(s.tokens))
	s.controller = bridgeservice.NewMetrics(bridgeservice.NewLog(controller, logger), s.tokenCfg.Decimals)
	return nil
}

// apply pushes configuration into state. Admin calls are made as the first
// configured admin.
func (s *side) apply(ctx context.Context) error {
	bridgeAdmin := common.HexToAddress(s.bridgeCfg.Admins[0])
	oracles, err := parseAddresses(s.bridgeCfg.Oracles)
	if err != nil {
		return fmt.Errorf("oracles: %w", err)
	}
	for _, oracle := range oracles {
		if _, err := s.controller.AddOracle(ctx, bridgeAdmin, oracle); err != nil {
			return fmt.Errorf("add oracle %s: %w", oracle.Hex(), err)
		}
	}

	tokenAdmin := common.HexToAddress(s.tokenCfg.Admins[0])
	info, err := s.tokens.Info(ctx)
	if err != nil {
		return err
	}
	if s.tokenCfg.BindBridge && info.BridgeAddress == (common.Address{}) {
		if err := s.tokens.SetBridgeAddress(ctx, tokenAdmin, s.controller.Address()); err != nil {
			return fmt.Errorf("bind bridge: %w", err)
		}
	}

	if s.tokenCfg.FeeCollector != "" {
		collector := common.HexToAddress(s.tokenCfg.FeeCollector)
		if collector != info.FeeCollector {
			if err := s.tokens.SetTransactionFeeCollector(ctx, tokenAdmin, collector); err != nil {
				return fmt.Errorf("set fee collector: %w", err)
			}
		}
	}
	for role, raw := range s.tokenCfg.RoleFees {
		rate, err := uint256.FromDecimal(raw)
		if err != nil {
			return fmt.Errorf("role %d fee: %w", role, err)
		}
		if err := s.tokens.SetRoleTxnFee(ctx, tokenAdmin, token.RoleID(role), rate); err != nil {
			return fmt.Errorf("set role %d fee: %w", role, err)
		}
	}

	s.tokens.RecordSupply(info.TotalSupply)
	return nil
}

func parseAddresses(raw []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(raw))
	for _, r := range raw {
		a, err := auth.ParseAddress(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
