package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// FieldError is one entry of a validation failure. Index is set for batch
// payloads and points at the offending element.
type FieldError struct {
	Index   *int   `json:"index,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Envelope is the canonical response body.
type Envelope struct {
	Success   bool         `json:"success"`
	Data      any          `json:"data,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorCode string       `json:"errorCode,omitempty"`
	Errors    []FieldError `json:"errors,omitempty"`
}

// legacyEnvelope is the older {ok, rows} shape, served when a request asks
// for ?envelope=legacy.
type legacyEnvelope struct {
	OK     bool         `json:"ok"`
	Rows   any          `json:"rows,omitempty"`
	Error  string       `json:"error,omitempty"`
	Errors []FieldError `json:"errors,omitempty"`
}

func wantsLegacy(r *http.Request) bool {
	return r.URL.Query().Get("envelope") == "legacy"
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// respond writes a success body in the shape the request asked for.
func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	if wantsLegacy(r) {
		respondWithJSON(w, status, legacyEnvelope{OK: true, Rows: data})
		return
	}
	respondWithJSON(w, status, Envelope{Success: true, Data: data})
}

// respondError writes a failure body. The legacy shape lowercases the
// message and has no error code.
func respondError(w http.ResponseWriter, r *http.Request, status int, message, code string, fields []FieldError) {
	if wantsLegacy(r) {
		respondWithJSON(w, status, legacyEnvelope{Error: strings.ToLower(message), Errors: fields})
		return
	}
	respondWithJSON(w, status, Envelope{Error: message, ErrorCode: code, Errors: fields})
}

// unauthorized never includes the reason the credential was rejected.
func unauthorized(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusUnauthorized, "Unauthorized", "", nil)
}

// Decoded is a response body read back by a client, whichever shape it was
// sent in.
type Decoded struct {
	OK        bool
	Data      json.RawMessage
	Error     string
	ErrorCode string
	Errors    []FieldError
	Legacy    bool
}

// DecodeEnvelope parses either response shape. {success:false} and
// {ok:false} both decode to OK == false.
func DecodeEnvelope(body []byte) (*Decoded, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}

	if _, ok := probe["success"]; ok {
		var env struct {
			Success   bool            `json:"success"`
			Data      json.RawMessage `json:"data"`
			Error     string          `json:"error"`
			ErrorCode string          `json:"errorCode"`
			Errors    []FieldError    `json:"errors"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decoding envelope: %w", err)
		}
		return &Decoded{OK: env.Success, Data: env.Data, Error: env.Error, ErrorCode: env.ErrorCode, Errors: env.Errors}, nil
	}

	if _, ok := probe["ok"]; ok {
		var env struct {
			OK     bool            `json:"ok"`
			Rows   json.RawMessage `json:"rows"`
			Error  string          `json:"error"`
			Errors []FieldError    `json:"errors"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decoding legacy envelope: %w", err)
		}
		return &Decoded{OK: env.OK, Data: env.Rows, Error: env.Error, Errors: env.Errors, Legacy: true}, nil
	}

	return nil, errors.New("decoding envelope: neither success nor ok is present")
}

// Unauthorized reports whether d is the authentication failure, in either
// shape.
func (d *Decoded) Unauthorized() bool {
	return !d.OK && strings.EqualFold(d.Error, "unauthorized")
}

// Into decodes the payload into v.
func (d *Decoded) Into(v any) error {
	if len(bytes.TrimSpace(d.Data)) == 0 {
		return errors.New("envelope has no data")
	}
	return json.Unmarshal(d.Data, v)
}
