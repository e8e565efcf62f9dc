package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/gogo-bridge/pkg/app/errors"
	apphttp "github.com/chainsafe/gogo-bridge/pkg/app/http"
)

const (
	// HeaderSignature carries the EIP-191 signature of the raw request body.
	HeaderSignature = "X-Signature"
	// HeaderCaller carries the caller address in header mode.
	HeaderCaller = "X-Caller"

	// DefaultMaxRequestAge is the default bound on a signed request's expires_at.
	DefaultMaxRequestAge = 5 * time.Minute

	maxBodySize = 1 << 20 // 1MB
)

var (
	// ErrRequestReplay is returned when a signed request id was already used by its caller.
	ErrRequestReplay = errors.New("request already used")
	// ErrRequestExpired is returned when a signed request is outside its validity window.
	ErrRequestExpired = errors.New("request expired")
)

// SignedEnvelope holds the fields every signed request body must carry so its
// signature can be used only once.
type SignedEnvelope struct {
	// RequestID is chosen by the caller and must be unique per caller while
	// the request is valid.
	RequestID string `json:"request_id"`
	// ExpiresAt is a unix timestamp in seconds.
	ExpiresAt int64 `json:"expires_at"`
}

// Authenticator resolves the caller of a request.
type Authenticator struct {
	mode   string
	logger *zap.Logger
	maxAge time.Duration
	now    func() time.Time
	seen   *ttlcache.Cache[string, struct{}]
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithMaxRequestAge bounds how far in the future expires_at may be.
func WithMaxRequestAge(d time.Duration) Option {
	return func(a *Authenticator) { a.maxAge = d }
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// NewAuthenticator creates an Authenticator. mode is "signature" or "header".
// In signature mode it tracks used request ids until Stop is called.
func NewAuthenticator(mode string, logger *zap.Logger, opts ...Option) *Authenticator {
	a := &Authenticator{
		mode:   mode,
		logger: logger,
		maxAge: DefaultMaxRequestAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if mode != "header" {
		a.seen = ttlcache.New(
			ttlcache.WithTTL[string, struct{}](a.maxAge),
		)
		go a.seen.Start()
	}
	return a
}

// Stop releases the request id tracker.
func (a *Authenticator) Stop() {
	if a.seen != nil {
		a.seen.Stop()
	}
}

// Middleware puts the caller of state-changing requests into the request
// context. Requests without a body (GET) pass through unauthenticated.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			apphttp.DefaultErrorHandler(w, apperrors.BadRequestError(err, "failed to read request"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		caller, err := a.resolve(r, body)
		if err != nil {
			a.logger.Debug("caller authentication failed",
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			apphttp.DefaultErrorHandler(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func (a *Authenticator) resolve(r *http.Request, body []byte) (caller common.Address, err error) {
	if a.mode == "header" {
		raw := r.Header.Get(HeaderCaller)
		if raw == "" {
			return caller, apperrors.UnAuthorizedError(nil, apperrors.ReasonInvalidRequest, HeaderCaller+" header required")
		}
		caller, err = ParseAddress(raw)
		if err != nil {
			return caller, apperrors.UnAuthorizedError(err, apperrors.ReasonInvalidRequest, "invalid "+HeaderCaller+" header")
		}
		return caller, nil
	}

	sig := r.Header.Get(HeaderSignature)
	if sig == "" {
		return caller, apperrors.UnAuthorizedError(nil, apperrors.ReasonInvalidRequest, HeaderSignature+" header required")
	}
	caller, err = VerifyEIP191Signature(body, sig)
	if err != nil {
		return caller, apperrors.UnAuthorizedError(err, apperrors.ReasonInvalidRequest, "invalid request signature")
	}
	if err := a.claim(caller, body); err != nil {
		return caller, err
	}
	return caller, nil
}

// claim checks the envelope of a signed body and marks its request id used.
func (a *Authenticator) claim(caller common.Address, body []byte) error {
	var env SignedEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	if env.RequestID == "" || env.ExpiresAt == 0 {
		return apperrors.UnAuthorizedError(nil, apperrors.ReasonInvalidRequest,
			"signed requests must set request_id and expires_at")
	}

	now := a.now()
	expiresAt := time.Unix(env.ExpiresAt, 0)
	if !expiresAt.After(now) {
		return apperrors.UnAuthorizedError(ErrRequestExpired, apperrors.ReasonRequestExpired, "request expired")
	}
	if expiresAt.Sub(now) > a.maxAge {
		return apperrors.UnAuthorizedError(ErrRequestExpired, apperrors.ReasonRequestExpired,
			"expires_at is more than "+a.maxAge.String()+" ahead")
	}

	// entries live for maxAge, which outlasts any accepted expires_at
	key := caller.Hex() + "/" + env.RequestID
	if _, found := a.seen.GetOrSet(key, struct{}{}); found {
		return apperrors.ConflictError(ErrRequestReplay, apperrors.ReasonRequestReplay, "request_id already used")
	}
	return nil
}

// RequireCaller returns the authenticated caller of the request.
func RequireCaller(r *http.Request) (common.Address, error) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		return caller, apperrors.UnAuthorizedError(errors.New("no caller in context"), apperrors.ReasonInvalidRequest,
			"request is not authenticated")
	}
	return caller, nil
}
