package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/gogo-bridge/pkg/app/errors"
	"github.com/chainsafe/gogo-bridge/pkg/auth"
	"github.com/chainsafe/gogo-bridge/pkg/bridge"
	"github.com/chainsafe/gogo-bridge/pkg/signature"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
	Code   int    `json:"code"`
}

func newTestRouter(f *fixture) *chi.Mux {
	logger := zap.NewNop()
	r := chi.NewRouter()
	r.Use(auth.NewAuthenticator("header", logger).Middleware)
	RegisterRoutes(r, logger,
		NewLog(f.private, logger),
		NewMetrics(NewLog(f.public, logger), 18),
	)
	return r
}

func bodyFor(req *bridge.Request) []byte {
	b, _ := json.Marshal(&RequestBody{
		UserAddress: req.UserAddress.Hex(),
		Amount:      req.Amount.Dec(),
		Nonce:       req.Nonce.Hex(),
		Direction:   bool(req.Direction),
		Signature:   hexutil.Encode(req.Signature),
	})
	return b
}

func do(r http.Handler, method, path, caller string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(auth.HeaderCaller, caller)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var e errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("failed to decode error response %q: %v", w.Body.String(), err)
	}
	return e
}

func TestHTTP_ReceiveFromPrivate(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	body := bodyFor(f.request(t, f.oracle, user1, 1000, 10, bridge.ToPublic))

	w := do(r, http.MethodPost, "/bridges/public/receive-from-private", publicBridge.Hex(), body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var event EventResponse
	if err := json.Unmarshal(w.Body.Bytes(), &event); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if event.Type != string(bridge.EventMintedToGoldToken) {
		t.Errorf("expected event %s, got %s", bridge.EventMintedToGoldToken, event.Type)
	}
	if event.Amount != "1000" || event.Nonce != "10" {
		t.Errorf("unexpected amount/nonce %s/%s", event.Amount, event.Nonce)
	}

	w = do(r, http.MethodPost, "/bridges/public/receive-from-private", publicBridge.Hex(), body)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409 on replay, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Reason != apperrors.ReasonNonceReplay {
		t.Errorf("expected reason %s, got %s", apperrors.ReasonNonceReplay, e.Reason)
	}
}

func TestHTTP_StatusMapping(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	outsiderBody := bodyFor(f.request(t, f.outsider, user1, 1000, 10, bridge.ToPublic))
	wrongDirBody := bodyFor(f.request(t, f.oracle, user1, 1000, 10, bridge.ToPrivate))
	burnBody := bodyFor(f.request(t, f.oracle, user1, 1, 10, bridge.ToPrivate))

	tests := []struct {
		name       string
		method     string
		path       string
		caller     string
		body       []byte
		wantStatus int
		wantReason string
	}{
		{"unauthorized signer", http.MethodPost, "/bridges/public/receive-from-private", publicBridge.Hex(), outsiderBody,
			http.StatusUnauthorized, apperrors.ReasonUnauthorizedSigner},
		{"invalid direction", http.MethodPost, "/bridges/public/receive-from-private", publicBridge.Hex(), wrongDirBody,
			http.StatusBadRequest, apperrors.ReasonInvalidDirection},
		{"wrong side", http.MethodPost, "/bridges/private/receive-from-private", publicBridge.Hex(), outsiderBody,
			http.StatusMethodNotAllowed, apperrors.ReasonUnsupportedOperation},
		{"unknown bridge", http.MethodPost, "/bridges/sidechain/receive-from-private", publicBridge.Hex(), outsiderBody,
			http.StatusNotFound, apperrors.ReasonNotFound},
		{"missing caller", http.MethodPost, "/bridges/public/receive-from-private", "", outsiderBody,
			http.StatusUnauthorized, apperrors.ReasonInvalidRequest},
		{"insufficient balance", http.MethodPost, "/bridges/public/send-to-private", user1.Hex(), burnBody,
			http.StatusUnprocessableEntity, apperrors.ReasonInsufficientBalance},
		{"malformed json", http.MethodPost, "/bridges/public/send-to-private", user1.Hex(), []byte("{"),
			http.StatusBadRequest, apperrors.ReasonInvalidRequest},
		{"bad amount", http.MethodPost, "/bridges/public/send-to-private", user1.Hex(),
			[]byte(`{"user_address":"` + user1.Hex() + `","amount":"ten","nonce":"1","signature":"0x"}`),
			http.StatusBadRequest, apperrors.ReasonInvalidRequest},
		{"non-admin oracle", http.MethodPost, "/bridges/public/oracles", user1.Hex(),
			[]byte(`{"oracle":"` + user2.Hex() + `"}`),
			http.StatusForbidden, apperrors.ReasonCallerNotAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.caller, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if e := decodeError(t, w); e.Reason != tt.wantReason {
				t.Errorf("expected reason %s, got %s", tt.wantReason, e.Reason)
			}
		})
	}
}

func TestHTTP_Queries(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	w := do(r, http.MethodGet, "/bridges/public/nonces/to-public/10", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var nr nonceResponse
	_ = json.Unmarshal(w.Body.Bytes(), &nr)
	if nr.Used {
		t.Error("expected nonce 10 to be unused")
	}

	body := bodyFor(f.request(t, f.oracle, user1, 1000, 10, bridge.ToPublic))
	if w := do(r, http.MethodPost, "/bridges/public/receive-from-private", publicBridge.Hex(), body); w.Code != http.StatusOK {
		t.Fatalf("mint failed: %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/bridges/public/nonces/to-public/0xa", "", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &nr)
	if !nr.Used || nr.Nonce != "10" {
		t.Errorf("expected nonce 10 to be used, got %+v", nr)
	}

	w = do(r, http.MethodGet, "/bridges/public/nonces/sideways/10", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for bad direction, got %d", w.Code)
	}

	w = do(r, http.MethodGet, "/bridges/public/events?limit=5", "", nil)
	var events []EventResponse
	if err := json.Unmarshal(w.Body.Bytes(), &events); err != nil {
		t.Fatalf("failed to decode events: %v", err)
	}
	if len(events) != 1 || events[0].UserAddress != user1.Hex() {
		t.Errorf("unexpected events %+v", events)
	}

	w = do(r, http.MethodGet, "/bridges/public/oracles", "", nil)
	var or oraclesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &or)
	if len(or.Oracles) != 1 || or.Oracles[0] != crypto.PubkeyToAddress(f.oracle.PublicKey).Hex() {
		t.Errorf("unexpected oracles %+v", or.Oracles)
	}
}

func TestHTTP_SigningData(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	w := do(r, http.MethodGet, "/bridges/private/signing-data?user_address="+user1.Hex()+"&amount=1000&nonce=10&direction=false", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp signingDataResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)

	want := signature.SigningData(user1, uint256.NewInt(1000), uint256.NewInt(10), bridge.ToPublic)
	if resp.SigningData != want.Hex() {
		t.Errorf("expected signing data %s, got %s", want.Hex(), resp.SigningData)
	}
	if resp.Digest != signature.Digest(want).Hex() {
		t.Errorf("unexpected digest %s", resp.Digest)
	}

	w = do(r, http.MethodGet, "/bridges/private/signing-data?user_address=nope&amount=1&nonce=1&direction=false", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestHTTP_AddOracle(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	body := []byte(`{"oracle":"` + user2.Hex() + `"}`)

	w := do(r, http.MethodPost, "/bridges/private/oracles", admin.Hex(), body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp addOracleResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Added {
		t.Error("expected oracle to be added")
	}

	w = do(r, http.MethodPost, "/bridges/private/oracles", admin.Hex(), body)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || resp.Added {
		t.Errorf("expected idempotent add, got %d added=%v", w.Code, resp.Added)
	}
}
