package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/gogo-bridge/pkg/app/errors"
	"github.com/chainsafe/gogo-bridge/pkg/auth"
	"github.com/chainsafe/gogo-bridge/pkg/executor"
	"github.com/chainsafe/gogo-bridge/pkg/ledger"
	"github.com/chainsafe/gogo-bridge/pkg/store/memory"
	"github.com/chainsafe/gogo-bridge/pkg/token"
)

var (
	admin        = common.HexToAddress("0xa000000000000000000000000000000000000001")
	bridgeAddr   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	address1     = common.HexToAddress("0x0000000000000000000000000000000000000111")
	address2     = common.HexToAddress("0x0000000000000000000000000000000000000222")
	feeCollector = common.HexToAddress("0x0000000000000000000000000000000000000fee")
)

func setupTestRouter(t *testing.T) (*chi.Mux, *TokenService) {
	t.Helper()
	logger := zap.NewNop()
	exec := executor.New(memory.New())
	gold := ledger.New(token.Metadata{ID: "gold", Name: "Gold", Symbol: "GOLD", Decimals: 18, FeeDecimals: 6},
		auth.NewRolePolicy([]common.Address{admin}))
	svc := NewTokenService(gold, exec, logger)

	r := chi.NewRouter()
	r.Use(auth.NewAuthenticator("header", logger).Middleware)
	RegisterRoutes(r, logger, svc)
	return r, svc
}

func call(r http.Handler, method, path string, caller common.Address, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != (common.Address{}) {
		req.Header.Set(auth.HeaderCaller, caller.Hex())
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
}

func expectReason(t *testing.T, w *httptest.ResponseRecorder, status int, reason string) {
	t.Helper()
	expectStatus(t, w, status)
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if body.Reason != reason {
		t.Errorf("expected reason %s, got %s", reason, body.Reason)
	}
}

func TestTokenHTTP_FeeOnTransfer(t *testing.T) {
	r, _ := setupTestRouter(t)

	expectStatus(t, call(r, http.MethodPost, "/tokens/gold/bridge-address", admin, map[string]string{"address": bridgeAddr.Hex()}), http.StatusOK)
	expectStatus(t, call(r, http.MethodPost, "/tokens/gold/role-fees", admin, map[string]any{"role": 2, "rate": "10000000"}), http.StatusOK)
	expectStatus(t, call(r, http.MethodPost, "/tokens/gold/roles", admin, map[string]any{"role": 2, "account": address1.Hex()}), http.StatusOK)
	expectStatus(t, call(r, http.MethodPost, "/tokens/gold/fee-collector", admin, map[string]string{"address": feeCollector.Hex()}), http.StatusOK)
	expectStatus(t, call(r, http.MethodPost, "/tokens/gold/mint", bridgeAddr, map[string]string{"to": address1.Hex(), "amount": "10000"}), http.StatusOK)

	w := call(r, http.MethodPost, "/tokens/gold/transfer", address1, map[string]string{"to": address2.Hex(), "amount": "10000"})
	expectStatus(t, w, http.StatusOK)
	var tr transferResponse
	_ = json.Unmarshal(w.Body.Bytes(), &tr)
	if tr.Fee != "1000" || tr.Received != "9000" {
		t.Errorf("unexpected transfer result %+v", tr)
	}

	w = call(r, http.MethodGet, "/tokens/gold/balances/"+feeCollector.Hex(), common.Address{}, nil)
	expectStatus(t, w, http.StatusOK)
	var bal amountResponse
	_ = json.Unmarshal(w.Body.Bytes(), &bal)
	if bal.Amount != "1000" {
		t.Errorf("expected collector balance 1000, got %s", bal.Amount)
	}

	w = call(r, http.MethodGet, "/tokens/gold/roles/2/fee", common.Address{}, nil)
	var rf roleFeeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &rf)
	if rf.Rate != "10000000" || rf.FeeScale != "100000000" {
		t.Errorf("unexpected role fee %+v", rf)
	}

	w = call(r, http.MethodGet, "/tokens/gold/accounts/"+address1.Hex()+"/role", common.Address{}, nil)
	var rr roleResponse
	_ = json.Unmarshal(w.Body.Bytes(), &rr)
	if rr.Role != 2 {
		t.Errorf("expected role 2, got %d", rr.Role)
	}

	w = call(r, http.MethodGet, "/tokens/gold", common.Address{}, nil)
	expectStatus(t, w, http.StatusOK)
	var info InfoResponse
	_ = json.Unmarshal(w.Body.Bytes(), &info)
	if info.TotalSupply != "10000" || info.BridgeAddress != bridgeAddr.Hex() || info.FeeDecimals != 6 {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestTokenHTTP_Rejections(t *testing.T) {
	r, _ := setupTestRouter(t)
	expectStatus(t, call(r, http.MethodPost, "/tokens/gold/bridge-address", admin, map[string]string{"address": bridgeAddr.Hex()}), http.StatusOK)

	tests := []struct {
		name   string
		path   string
		caller common.Address
		body   any
		status int
		reason string
	}{
		{"mint by non-bridge", "/tokens/gold/mint", admin, map[string]string{"to": address1.Hex(), "amount": "1"},
			http.StatusForbidden, apperrors.ReasonCallerNotBridge},
		{"burn by non-bridge", "/tokens/gold/burn", address1, map[string]string{"from": address1.Hex(), "amount": "1"},
			http.StatusForbidden, apperrors.ReasonCallerNotBridge},
		{"bridge address again", "/tokens/gold/bridge-address", admin, map[string]string{"address": bridgeAddr.Hex()},
			http.StatusConflict, apperrors.ReasonSameBridgeAddress},
		{"other bridge address", "/tokens/gold/bridge-address", admin, map[string]string{"address": address2.Hex()},
			http.StatusConflict, apperrors.ReasonBridgeAddressAlreadySet},
		{"non-admin role fee", "/tokens/gold/role-fees", address1, map[string]any{"role": 1, "rate": "1"},
			http.StatusForbidden, apperrors.ReasonCallerNotAdmin},
		{"rate above scale", "/tokens/gold/role-fees", admin, map[string]any{"role": 1, "rate": "100000001"},
			http.StatusBadRequest, apperrors.ReasonFeeRateTooHigh},
		{"transfer without balance", "/tokens/gold/transfer", address1, map[string]string{"to": address2.Hex(), "amount": "1"},
			http.StatusUnprocessableEntity, apperrors.ReasonInsufficientBalance},
		{"transfer-from without allowance", "/tokens/gold/transfer-from", address2,
			map[string]string{"from": address1.Hex(), "to": address2.Hex(), "amount": "1"},
			http.StatusUnprocessableEntity, apperrors.ReasonInsufficientAllowance},
		{"unknown token", "/tokens/silver/transfer", address1, map[string]string{"to": address2.Hex(), "amount": "1"},
			http.StatusNotFound, apperrors.ReasonNotFound},
		{"bad amount", "/tokens/gold/transfer", address1, map[string]string{"to": address2.Hex(), "amount": "-1"},
			http.StatusBadRequest, apperrors.ReasonInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectReason(t, call(r, http.MethodPost, tt.path, tt.caller, tt.body), tt.status, tt.reason)
		})
	}
}

func TestTokenHTTP_ApproveAndTransferFrom(t *testing.T) {
	r, svc := setupTestRouter(t)
	ctx := context.Background()

	if err := svc.SetBridgeAddress(ctx, admin, bridgeAddr); err != nil {
		t.Fatalf("SetBridgeAddress failed: %v", err)
	}
	if err := svc.Mint(ctx, bridgeAddr, address1, uint256.NewInt(500)); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	expectStatus(t, call(r, http.MethodPost, "/tokens/gold/approve", address1, map[string]string{"spender": address2.Hex(), "amount": "0x12c"}), http.StatusOK)

	w := call(r, http.MethodGet, "/tokens/gold/allowances/"+address1.Hex()+"/"+address2.Hex(), common.Address{}, nil)
	var a amountResponse
	_ = json.Unmarshal(w.Body.Bytes(), &a)
	if a.Amount != "300" {
		t.Fatalf("expected allowance 300, got %s", a.Amount)
	}

	expectStatus(t, call(r, http.MethodPost, "/tokens/gold/transfer-from", address2,
		map[string]string{"from": address1.Hex(), "to": address2.Hex(), "amount": "300"}), http.StatusOK)

	balance, err := svc.GetBalance(ctx, address2)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance.Uint64() != 300 {
		t.Errorf("expected balance 300, got %s", balance.Dec())
	}

	if err := svc.Burn(ctx, bridgeAddr, address1, uint256.NewInt(200)); err != nil {
		t.Fatalf("Burn failed: %v", err)
	}
	info, err := svc.Info(ctx)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.TotalSupply.Uint64() != 300 {
		t.Errorf("expected supply 300, got %s", info.TotalSupply.Dec())
	}
}

func TestTokenHTTP_RequiresCaller(t *testing.T) {
	r, _ := setupTestRouter(t)
	expectReason(t, call(r, http.MethodPost, "/tokens/gold/transfer", common.Address{}, map[string]string{"to": address2.Hex(), "amount": "1"}),
		http.StatusUnauthorized, apperrors.ReasonInvalidRequest)
}
