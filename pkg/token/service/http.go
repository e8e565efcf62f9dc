package service

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/gogo-bridge/pkg/app/errors"
	apphttp "github.com/chainsafe/gogo-bridge/pkg/app/http"
	"github.com/chainsafe/gogo-bridge/pkg/auth"
	"github.com/chainsafe/gogo-bridge/pkg/ledger"
	"github.com/chainsafe/gogo-bridge/pkg/token"
)

// HTTP wraps the token services to provide HTTP endpoints
type HTTP struct {
	services map[token.ID]*TokenService
	logger   *zap.Logger
}

// RegisterRoutes registers HTTP endpoints for the token services on the given chi router
func RegisterRoutes(r chi.Router, logger *zap.Logger, services ...*TokenService) {
	h := &HTTP{
		services: make(map[token.ID]*TokenService, len(services)),
		logger:   logger,
	}
	for _, svc := range services {
		h.services[svc.ID()] = svc
	}

	r.Route("/tokens/{token}", func(r chi.Router) {
		r.Get("/", apphttp.HandleError(h.info))
		r.Get("/balances/{address}", apphttp.HandleError(h.balance))
		r.Get("/allowances/{owner}/{spender}", apphttp.HandleError(h.allowance))
		r.Get("/roles/{role}/fee", apphttp.HandleError(h.roleFee))
		r.Get("/accounts/{address}/role", apphttp.HandleError(h.role))

		r.Post("/transfer", apphttp.HandleError(h.transfer))
		r.Post("/approve", apphttp.HandleError(h.approve))
		r.Post("/transfer-from", apphttp.HandleError(h.transferFrom))
		r.Post("/mint", apphttp.HandleError(h.mint))
		r.Post("/burn", apphttp.HandleError(h.burn))

		r.Post("/bridge-address", apphttp.HandleError(h.setBridgeAddress))
		r.Post("/roles", apphttp.HandleError(h.grantRole))
		r.Post("/role-fees", apphttp.HandleError(h.setRoleFee))
		r.Post("/fee-collector", apphttp.HandleError(h.setFeeCollector))
	})
}

// InfoResponse describes a ledger.
type InfoResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Symbol             string `json:"symbol"`
	Decimals           uint8  `json:"decimals"`
	FeeDecimals        uint8  `json:"fee_decimals"`
	FeeScale           string `json:"fee_scale"`
	TotalSupply        string `json:"total_supply"`
	TotalSupplyDisplay string `json:"total_supply_display"`
	BridgeAddress      string `json:"bridge_address,omitempty"`
	FeeCollector       string `json:"fee_collector,omitempty"`
}

type amountResponse struct {
	Amount  string `json:"amount"`
	Display string `json:"display"`
}

type roleResponse struct {
	Account string `json:"account"`
	Role    uint32 `json:"role"`
}

type roleFeeResponse struct {
	Role     uint32 `json:"role"`
	Rate     string `json:"rate"`
	FeeScale string `json:"fee_scale"`
}

type transferResponse struct {
	Amount   string `json:"amount"`
	Fee      string `json:"fee"`
	Received string `json:"received"`
}

// TransferRequest is the body of transfer, transfer-from, mint and burn.
// From is used by transfer-from and burn, To by transfer, transfer-from and mint.
type TransferRequest struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Amount string `json:"amount"`
}

type approveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type addressRequest struct {
	Address string `json:"address"`
}

type grantRoleRequest struct {
	Role    uint32 `json:"role"`
	Account string `json:"account"`
}

type roleFeeRequest struct {
	Role uint32 `json:"role"`
	Rate string `json:"rate"`
}

type okResponse struct {
	Success bool `json:"success"`
}

func (h *HTTP) service(r *http.Request) (*TokenService, error) {
	id := token.ID(chi.URLParam(r, "token"))
	svc, ok := h.services[id]
	if !ok {
		return nil, apperrors.ResourceNotFoundError(nil, "unknown token "+string(id))
	}
	return svc, nil
}

func (h *HTTP) info(w http.ResponseWriter, r *http.Request) error {
	svc, err := h.service(r)
	if err != nil {
		return err
	}
	info, err := svc.Info(r.Context())
	if err != nil {
		return err
	}
	resp := &InfoResponse{
		ID:                 string(info.ID),
		Name:               info.Name,
		Symbol:             info.Symbol,
		Decimals:           info.Decimals,
		FeeDecimals:        info.FeeDecimals,
		FeeScale:           info.FeeScale.Dec(),
		TotalSupply:        info.TotalSupply.Dec(),
		TotalSupplyDisplay: token.FormatUnits(info.TotalSupply, info.Decimals),
	}
	if info.BridgeAddress != (common.Address{}) {
		resp.BridgeAddress = info.BridgeAddress.Hex()
	}
	if info.FeeCollector != (common.Address{}) {
		resp.FeeCollector = info.FeeCollector.Hex()
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) balance(w http.ResponseWriter, r *http.Request) error {
	svc, err := h.service(r)
	if err != nil {
		return err
	}
	account, err := parseAddress(chi.URLParam(r, "address"), "address")
	if err != nil {
		return err
	}
	balance, err := svc.GetBalance(r.Context(), account)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, svc.amountResponse(balance))
	return nil
}

func (h *HTTP) allowance(w http.ResponseWriter, r *http.Request) error {
	svc, err := h.service(r)
	if err != nil {
		return err
	}
	owner, err := parseAddress(chi.URLParam(r, "owner"), "owner")
	if err != nil {
		return err
	}
	spender, err := parseAddress(chi.URLParam(r, "spender"), "spender")
	if err != nil {
		return err
	}
	allowance, err := svc.GetAllowance(r.Context(), owner, spender)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, svc.amountResponse(allowance))
	return nil
}

func (h *HTTP) roleFee(w http.ResponseWriter, r *http.Request) error {
	svc, err := h.service(r)
	if err != nil {
		return err
	}
	role, err := parseRole(chi.URLParam(r, "role"))
	if err != nil {
		return err
	}
	rate, err := svc.GetRoleTxnFee(r.Context(), role)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, &roleFeeResponse{
		Role:     uint32(role),
		Rate:     rate.Dec(),
		FeeScale: svc.ledger.FeeScale().Dec(),
	})
	return nil
}

func (h *HTTP) role(w http.ResponseWriter, r *http.Request) error {
	svc, err := h.service(r)
	if err != nil {
		return err
	}
	account, err := parseAddress(chi.URLParam(r, "address"), "address")
	if err != nil {
		return err
	}
	role, err := svc.GetRole(r.Context(), account)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, &roleResponse{Account: account.Hex(), Role: uint32(role)})
	return nil
}

func (h *HTTP) transfer(w http.ResponseWriter, r *http.Request) error {
	svc, caller, err := h.authorized(r)
	if err != nil {
		return err
	}
	var req TransferRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	to, err := parseAddress(req.To, "to")
	if err != nil {
		return err
	}
	amount, err := apphttp.ParseAmount(req.Amount, "amount")
	if err != nil {
		return err
	}

	res, err := svc.Transfer(r.Context(), caller, to, amount)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, newTransferResponse(res))
	return nil
}

func (h *HTTP) approve(w http.ResponseWriter, r *http.Request) error {
	svc, caller, err := h.authorized(r)
	if err != nil {
		return err
	}
	var req approveRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	spender, err := parseAddress(req.Spender, "spender")
	if err != nil {
		return err
	}
	amount, err := apphttp.ParseAmount(req.Amount, "amount")
	if err != nil {
		return err
	}

	if err := svc.Approve(r.Context(), caller, spender, amount); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, &okResponse{Success: true})
	return nil
}

func (h *HTTP) transferFrom(w http.ResponseWriter, r *http.Request) error {
	svc, caller, err := h.authorized(r)
	if err != nil {
		return err
	}
	var req TransferRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	from, err := parseAddress(req.From, "from")
	if err != nil {
		return err
	}
	to, err := parseAddress(req.To, "to")
	if err != nil {
		return err
	}
	amount, err := apphttp.ParseAmount(req.Amount, "amount")
	if err != nil {
		return err
	}

	res, err := svc.TransferFrom(r.Context(), caller, from, to, amount)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, newTransferResponse(res))
	return nil
}

func (h *HTTP) mint(w http.ResponseWriter, r *http.Request) error {
	svc, caller, err := h.authorized(r)
	if err != nil {
		return err
	}
	var req TransferRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	to, err := parseAddress(req.To, "to")
	if err != nil {
		return err
	}
	amount, err := apphttp.ParseAmount(req.Amount, "amount")
	if err != nil {
		return err
	}

	if err := svc.Mint(r.Context(), caller, to, amount); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, &okResponse{Success: true})
	return nil
}

func (h *HTTP) burn(w http.ResponseWriter, r *http.Request) error {
	svc, caller, err := h.authorized(r)
	if err != nil {
		return err
	}
	var req TransferRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	from, err := parseAddress(req.From, "from")
	if err != nil {
		return err
	}
	amount, err := apphttp.ParseAmount(req.Amount, "amount")
	if err != nil {
		return err
	}

	if err := svc.Burn(r.Context(), caller, from, amount); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, &okResponse{Success: true})
	return nil
}

func (h *HTTP) setBridgeAddress(w http.ResponseWriter, r *http.Request) error {
	svc, caller, err := h.authorized(r)
	if err != nil {
		return err
	}
	var req addressRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	addr, err := parseAddress(req.Address, "address")
	if err != nil {
		return err
	}
	if err := svc.SetBridgeAddress(r.Context(), caller, addr); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, &okResponse{Success: true})
	return nil
}

func (h *HTTP) grantRole(w http.ResponseWriter, r *http.Request) error {
	svc, caller, err := h.authorized(r)
	if err != nil {
		return err
	}
	var req grantRoleRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	account, err := parseAddress(req.Account, "account")
	if err != nil {
		return err
	}
	if err := svc.GrantRole(r.Context(), caller, token.RoleID(req.Role), account); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, &okResponse{Success: true})
	return nil
}

func (h *HTTP) setRoleFee(w http.ResponseWriter, r *http.Request) error {
	svc, caller, err := h.authorized(r)
	if err != nil {
		return err
	}
	var req roleFeeRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	rate, err := apphttp.ParseAmount(req.Rate, "rate")
	if err != nil {
		return err
	}
	if err := svc.SetRoleTxnFee(r.Context(), caller, token.RoleID(req.Role), rate); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, &okResponse{Success: true})
	return nil
}

func (h *HTTP) setFeeCollector(w http.ResponseWriter, r *http.Request) error {
	svc, caller, err := h.authorized(r)
	if err != nil {
		return err
	}
	var req addressRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	// the zero address is accepted and turns fees off
	collector, err := parseAddress(req.Address, "address")
	if err != nil {
		return err
	}
	if err := svc.SetTransactionFeeCollector(r.Context(), caller, collector); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, &okResponse{Success: true})
	return nil
}

func (h *HTTP) authorized(r *http.Request) (*TokenService, common.Address, error) {
	svc, err := h.service(r)
	if err != nil {
		return nil, common.Address{}, err
	}
	caller, err := auth.RequireCaller(r)
	if err != nil {
		return nil, common.Address{}, err
	}
	return svc, caller, nil
}

func (s *TokenService) amountResponse(v *uint256.Int) *amountResponse {
	return &amountResponse{
		Amount:  v.Dec(),
		Display: token.FormatUnits(v, s.ledger.Decimals()),
	}
}

func newTransferResponse(res *ledger.Transfer) *transferResponse {
	return &transferResponse{
		Amount:   res.Amount.Dec(),
		Fee:      res.Fee.Dec(),
		Received: res.Received.Dec(),
	}
}

func parseAddress(raw, field string) (common.Address, error) {
	addr, err := auth.ParseAddress(raw)
	if err != nil {
		return addr, apperrors.BadRequestError(err, "invalid "+field)
	}
	return addr, nil
}

func parseRole(raw string) (token.RoleID, error) {
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, apperrors.BadRequestError(err, "invalid role")
	}
	return token.RoleID(v), nil
}
