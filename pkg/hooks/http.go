package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aruna-project/aruna-server/pkg/externalif"
	"github.com/aruna-project/aruna-server/pkg/types"
)

// basicPayload is the fixed JSON shape spec.md §6 names for the Basic
// template. Presigner-sourced fields are left zero when no Presigner is
// configured.
type basicPayload struct {
	HookID       string      `json:"hook_id"`
	Object       *types.Node `json:"object"`
	Secret       string      `json:"secret,omitempty"`
	Download     bool        `json:"download,omitempty"`
	PubkeySerial uint32      `json:"pubkey_serial,omitempty"`
	AccessKey    string      `json:"access_key,omitempty"`
	SecretKey    string      `json:"secret_key,omitempty"`
}

// callExternal issues the hook's configured HTTP request per spec.md §6's
// Hook HTTP call: Basic template sends basicPayload as JSON, Custom
// template string-interpolates the same fields into action.CustomBody as
// text/plain. Returns the response status code, or an error if the request
// could not be sent or timed out — callers record this as a terminal
// HookState.Error, never failing the triggering transaction.
func callExternal(ctx context.Context, client *http.Client, action types.HookAction, hookID types.ID, node *types.Node, signer externalif.Presigner) (int, error) {
	var body []byte
	var contentType string

	payload := basicPayload{HookID: hookID.String(), Object: node}
	if signer != nil {
		serial, secret, accessKey, secretKey, err := signer.Presign(node.ID, false)
		if err == nil {
			payload.PubkeySerial = serial
			payload.Secret = secret
			payload.AccessKey = accessKey
			payload.SecretKey = secretKey
		}
	}

	switch action.Template {
	case types.HookTemplateBasic:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("hooks: encode basic payload: %w", err)
		}
		body = encoded
		contentType = "application/json"
	case types.HookTemplateCustom:
		body = []byte(interpolate(action.CustomBody, payload))
		contentType = "text/plain"
	default:
		return 0, fmt.Errorf("hooks: unknown hook template %q", action.Template)
	}

	method := action.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, action.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("hooks: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if action.AuthBearer != "" {
		req.Header.Set("Authorization", "Bearer "+action.AuthBearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("hooks: external call to %s: %w", action.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// interpolate replaces {hook_id}, {object_id}, {secret}, {access_key}, and
// {secret_key} placeholders in body with payload's fields, for the Custom
// template.
func interpolate(body string, payload basicPayload) string {
	replacer := strings.NewReplacer(
		"{hook_id}", payload.HookID,
		"{secret}", payload.Secret,
		"{access_key}", payload.AccessKey,
		"{secret_key}", payload.SecretKey,
	)
	if payload.Object != nil {
		replacer = strings.NewReplacer(
			"{hook_id}", payload.HookID,
			"{object_id}", payload.Object.ID.String(),
			"{secret}", payload.Secret,
			"{access_key}", payload.AccessKey,
			"{secret_key}", payload.SecretKey,
		)
	}
	return replacer.Replace(body)
}

func httpClientWithTimeout(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
