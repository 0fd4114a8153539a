// Package gateway contains the provider adapters implementing the uniform
// payment gateway contract, plus the registry that binds them to tenant
// credentials.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mealstack/payment-core/internal/domain"
)

// GatewayError wraps transport-level failures talking to a provider. Expected
// business failures (declined payment, bad signature) are reported through
// result values instead.
type GatewayError struct {
	Gateway domain.GatewayType
	Op      string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s: %v", strings.ToLower(string(e.Gateway)), e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func newGatewayError(gt domain.GatewayType, op string, err error) *GatewayError {
	return &GatewayError{Gateway: gt, Op: op, Err: err}
}

// doRequest executes an HTTP call and returns the status code plus the full
// body. Non-2xx statuses are not errors here; adapters decide whether a status
// is an expected provider rejection.
func doRequest(ctx context.Context, client *http.Client, method, url string, contentType string, body io.Reader, decorate func(*http.Request)) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if decorate != nil {
		decorate(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

func hmacSHA256Hex(data, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// hmacEqual compares two hex-encoded MACs in constant time.
func hmacEqual(expected, actual string) bool {
	return hmac.Equal([]byte(expected), []byte(actual))
}

func sha512Hex(data string) string {
	sum := sha512.Sum512([]byte(data))
	return hex.EncodeToString(sum[:])
}
