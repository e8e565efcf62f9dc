package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/holiman/uint256"

	apperrors "github.com/chainsafe/gogo-bridge/pkg/app/errors"
	"github.com/chainsafe/gogo-bridge/pkg/token"
)

const maxBodySize = 1 << 20 // 1MB

// DecodeJSON reads the request body into v.
func DecodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	return nil
}

// ParseAmount parses a decimal or 0x-hex amount named field.
func ParseAmount(raw, field string) (*uint256.Int, error) {
	v, err := token.ParseAmount(raw)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid "+field)
	}
	return v, nil
}
