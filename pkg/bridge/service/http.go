package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/gogo-bridge/pkg/app/errors"
	apphttp "github.com/chainsafe/gogo-bridge/pkg/app/http"
	"github.com/chainsafe/gogo-bridge/pkg/auth"
	"github.com/chainsafe/gogo-bridge/pkg/bridge"
	"github.com/chainsafe/gogo-bridge/pkg/signature"
)

// HTTP wraps the bridge Services to provide HTTP endpoints
type HTTP struct {
	services map[bridge.Side]Service
	logger   *zap.Logger
}

// RegisterRoutes registers HTTP endpoints for the bridge services on the given chi router.
// Every side exposes all four operation routes; an operation sent to the
// wrong side is rejected with UnsupportedOperation.
func RegisterRoutes(r chi.Router, logger *zap.Logger, services ...Service) {
	h := &HTTP{
		services: make(map[bridge.Side]Service, len(services)),
		logger:   logger,
	}
	for _, svc := range services {
		h.services[svc.Side()] = svc
	}

	r.Route("/bridges/{side}", func(r chi.Router) {
		r.Get("/signing-data", apphttp.HandleError(h.signingData))
		r.Post("/send-to-public", apphttp.HandleError(h.submit(bridge.OpSendToPublicBridge)))
		r.Post("/receive-from-public", apphttp.HandleError(h.submit(bridge.OpReceiveFromPublicBridge)))
		r.Post("/receive-from-private", apphttp.HandleError(h.submit(bridge.OpReceiveFromPrivateBridge)))
		r.Post("/send-to-private", apphttp.HandleError(h.submit(bridge.OpSendToPrivateBridge)))
		r.Get("/nonces/{direction}/{nonce}", apphttp.HandleError(h.nonceUsed))
		r.Get("/oracles", apphttp.HandleError(h.oracles))
		r.Post("/oracles", apphttp.HandleError(h.addOracle))
		r.Get("/events", apphttp.HandleError(h.events))
	})
}

// RequestBody is the JSON form of an oracle-signed bridge request.
type RequestBody struct {
	UserAddress string `json:"user_address"`
	Amount      string `json:"amount"`
	Nonce       string `json:"nonce"`
	Direction   bool   `json:"direction"`
	Signature   string `json:"signature"`
}

// EventResponse is the JSON form of a bridge event.
type EventResponse struct {
	Seq         int64     `json:"seq"`
	ID          string    `json:"id"`
	Bridge      string    `json:"bridge"`
	Type        string    `json:"event"`
	UserAddress string    `json:"user_address"`
	Amount      string    `json:"amount"`
	Nonce       string    `json:"nonce"`
	Direction   bool      `json:"direction"`
	Caller      string    `json:"caller"`
	CreatedAt   time.Time `json:"created_at"`
}

type signingDataResponse struct {
	SigningData string `json:"signing_data"`
	Digest      string `json:"digest"`
}

type nonceResponse struct {
	Direction string `json:"direction"`
	Nonce     string `json:"nonce"`
	Used      bool   `json:"used"`
}

type oraclesResponse struct {
	Oracles []string `json:"oracles"`
}

type addOracleRequest struct {
	Oracle string `json:"oracle"`
}

type addOracleResponse struct {
	Oracle string `json:"oracle"`
	Added  bool   `json:"added"`
}

func (h *HTTP) service(r *http.Request) (Service, error) {
	side := bridge.Side(chi.URLParam(r, "side"))
	svc, ok := h.services[side]
	if !ok {
		return nil, apperrors.ResourceNotFoundError(nil, "unknown bridge "+string(side))
	}
	return svc, nil
}

func (h *HTTP) submit(op bridge.Operation) apphttp.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		svc, err := h.service(r)
		if err != nil {
			return err
		}
		caller, err := auth.RequireCaller(r)
		if err != nil {
			return err
		}

		var body RequestBody
		if err := apphttp.DecodeJSON(r, &body); err != nil {
			return err
		}
		req, err := body.toRequest()
		if err != nil {
			return err
		}

		event, err := svc.Submit(r.Context(), op, caller, req)
		if err != nil {
			return err
		}
		apphttp.WriteJSON(w, http.StatusOK, NewEventResponse(event))
		return nil
	}
}

func (h *HTTP) signingData(w http.ResponseWriter, r *http.Request) error {
	svc, err := h.service(r)
	if err != nil {
		return err
	}

	q := r.URL.Query()
	user, err := parseAddress(q.Get("user_address"), "user_address")
	if err != nil {
		return err
	}
	amount, err := apphttp.ParseAmount(q.Get("amount"), "amount")
	if err != nil {
		return err
	}
	nonce, err := apphttp.ParseAmount(q.Get("nonce"), "nonce")
	if err != nil {
		return err
	}
	direction, ok := bridge.ParseDirection(q.Get("direction"))
	if !ok {
		return apperrors.BadRequestError(nil, "direction must be true or false")
	}

	data := svc.FormSigningData(user, amount, nonce, direction)
	apphttp.WriteJSON(w, http.StatusOK, &signingDataResponse{
		SigningData: data.Hex(),
		Digest:      signature.Digest(data).Hex(),
	})
	return nil
}

func (h *HTTP) nonceUsed(w http.ResponseWriter, r *http.Request) error {
	svc, err := h.service(r)
	if err != nil {
		return err
	}
	direction, ok := bridge.ParseDirection(chi.URLParam(r, "direction"))
	if !ok {
		return apperrors.BadRequestError(nil, "direction must be to-public or to-private")
	}
	nonce, err := apphttp.ParseAmount(chi.URLParam(r, "nonce"), "nonce")
	if err != nil {
		return err
	}

	used, err := svc.NonceUsed(r.Context(), direction, nonce)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, &nonceResponse{
		Direction: direction.String(),
		Nonce:     nonce.Dec(),
		Used:      used,
	})
	return nil
}

func (h *HTTP) oracles(w http.ResponseWriter, r *http.Request) error {
	svc, err := h.service(r)
	if err != nil {
		return err
	}
	oracles, err := svc.Oracles(r.Context())
	if err != nil {
		return err
	}
	resp := &oraclesResponse{Oracles: make([]string, 0, len(oracles))}
	for _, o := range oracles {
		resp.Oracles = append(resp.Oracles, o.Hex())
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) addOracle(w http.ResponseWriter, r *http.Request) error {
	svc, err := h.service(r)
	if err != nil {
		return err
	}
	caller, err := auth.RequireCaller(r)
	if err != nil {
		return err
	}

	var req addOracleRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	oracle, err := parseAddress(req.Oracle, "oracle")
	if err != nil {
		return err
	}

	added, err := svc.AddOracle(r.Context(), caller, oracle)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, &addOracleResponse{Oracle: oracle.Hex(), Added: added})
	return nil
}

func (h *HTTP) events(w http.ResponseWriter, r *http.Request) error {
	svc, err := h.service(r)
	if err != nil {
		return err
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return apperrors.BadRequestError(err, "limit must be a non-negative integer")
		}
	}

	events, err := svc.Events(r.Context(), limit)
	if err != nil {
		return err
	}
	resp := make([]*EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, NewEventResponse(e))
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

// NewEventResponse converts a bridge event to its JSON form.
func NewEventResponse(e *bridge.Event) *EventResponse {
	return &EventResponse{
		Seq:         e.Seq,
		ID:          e.ID,
		Bridge:      string(e.Bridge),
		Type:        string(e.Type),
		UserAddress: e.UserAddress.Hex(),
		Amount:      e.Amount.Dec(),
		Nonce:       e.Nonce.Dec(),
		Direction:   bool(e.Direction),
		Caller:      e.Caller.Hex(),
		CreatedAt:   e.CreatedAt,
	}
}

func (b *RequestBody) toRequest() (*bridge.Request, error) {
	user, err := parseAddress(b.UserAddress, "user_address")
	if err != nil {
		return nil, err
	}
	amount, err := apphttp.ParseAmount(b.Amount, "amount")
	if err != nil {
		return nil, err
	}
	nonce, err := apphttp.ParseAmount(b.Nonce, "nonce")
	if err != nil {
		return nil, err
	}
	sig, err := hexutil.Decode(b.Signature)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "signature must be 0x-prefixed hex")
	}
	return &bridge.Request{
		UserAddress: user,
		Amount:      amount,
		Nonce:       nonce,
		Direction:   bridge.Direction(b.Direction),
		Signature:   sig,
	}, nil
}

func parseAddress(raw, field string) (common.Address, error) {
	addr, err := auth.ParseAddress(raw)
	if err != nil {
		return addr, apperrors.BadRequestError(err, "invalid "+field)
	}
	return addr, nil
}
