package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// maxRunRequestBytes fits a package name plus every tool and scenario name
// many times over.
const maxRunRequestBytes int64 = 64 * 1024

// decodeJSONBody decodes exactly one JSON object with known fields only.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRunRequestBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
