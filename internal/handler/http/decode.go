package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/natusdeed/fashion-site-sub000/pkg/errors"
	"github.com/natusdeed/fashion-site-sub000/pkg/validator"
)

const maxBodyBytes = 64 << 10

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("request body is required")
		}
		return apperrors.InvalidInput("invalid request body: " + err.Error())
	}
	return validator.Validate(dst)
}
