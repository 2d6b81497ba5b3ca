package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"wpconn/internal/constants"
)

// verifySignature reads and returns the request body after checking its
// X-Hub-Signature-256 header against the app secret. The body is consumed
// either way.
func verifySignature(r *http.Request, appSecret string) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, constants.MaxWebhookBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	header := r.Header.Get("X-Hub-Signature-256")
	if header == "" {
		return nil, fmt.Errorf("missing signature header")
	}

	parts := strings.SplitN(header, "=", 2)
	if len(parts) != 2 || parts[0] != "sha256" {
		return nil, fmt.Errorf("malformed signature header")
	}
	expected := parts[1]

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(expected)) {
		return nil, fmt.Errorf("signature mismatch")
	}
	return body, nil
}
