package handler

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"secretvault/internal/apperr"
	"secretvault/internal/logging"
	"secretvault/internal/secret"
)

// SecretService reads and writes the caller's own secret.
type SecretService interface {
	Write(ctx context.Context, ownerID, content string) error
	Read(ctx context.Context, ownerID string) (string, error)
	Exists(ctx context.Context, ownerID string) (bool, error)
}

// secretEnvelope is the uniform result of a secret action.
type secretEnvelope struct {
	Success bool    `json:"success"`
	Content *string `json:"content,omitempty"`
	Message string  `json:"message,omitempty"`
	Error   string  `json:"error,omitempty"`
}

type writeSecretRequest struct {
	Content string `json:"content"`
}

// maxSecretBody leaves room for JSON escaping around the largest allowed content.
const maxSecretBody = 6*secret.MaxContentBytes + 1024

// SecretHandler serves GET and POST /secret.
type SecretHandler struct {
	secrets SecretService
	log     logging.Logger
}

// NewSecretHandler creates a new secret handler.
func NewSecretHandler(secrets SecretService, log logging.Logger) *SecretHandler {
	return &SecretHandler{secrets: secrets, log: log}
}

// Get handles GET /secret
func (h *SecretHandler) Get(w http.ResponseWriter, r *http.Request) {
	content, err := h.secrets.Read(r.Context(), callerID(r))
	if err != nil {
		h.fail(w, r, "read secret", err)
		return
	}
	writeJSON(r.Context(), w, h.log, http.StatusOK, secretEnvelope{Success: true, Content: &content})
}

// Post handles POST /secret with a JSON or form-encoded "content" field.
func (h *SecretHandler) Post(w http.ResponseWriter, r *http.Request) {
	content, err := readContent(w, r)
	if err != nil {
		h.fail(w, r, "write secret", err)
		return
	}

	if err := h.secrets.Write(r.Context(), callerID(r), content); err != nil {
		h.fail(w, r, "write secret", err)
		return
	}
	writeJSON(r.Context(), w, h.log, http.StatusOK, secretEnvelope{Success: true, Message: "secret saved"})
}

func (h *SecretHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, _, message := errorStatus(err)
	logError(r.Context(), h.log, op, status, err)
	writeJSON(r.Context(), w, h.log, status, secretEnvelope{Success: false, Error: message})
}

func readContent(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSecretBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req writeSecretRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", apperr.InvalidOperation("request body too large")
			}
			return "", apperr.InvalidOperation("invalid JSON body")
		}
		return req.Content, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", apperr.InvalidOperation("invalid form body")
	}
	return r.PostForm.Get("content"), nil
}
