// Package providerhttp is the shared HTTP/JSON plumbing for the embedding
// provider backends, mirroring internal/remoteclient's retry/backoff idiom
// so openai, cohere, and ollama don't each reimplement it.
package providerhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ysksm/jd-sub000/internal/errs"
)

const (
	maxAttempts    = 3
	attemptTimeout = 60 * time.Second
)

// NewClient returns the *http.Client providers should share.
func NewClient() *http.Client {
	return &http.Client{Timeout: attemptTimeout}
}

// PostJSON POSTs body to url with the given headers, retrying transport
// and timeout failures with exponential backoff, and decodes the response
// into out. Non-success status codes are permanent, not retried.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errs.Wrap(errs.Validation, "providerhttp.PostJSON.encode", err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 2 * time.Second
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxAttempts-1)), ctx)

	var respBody []byte
	err = backoff.Retry(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(errs.Wrap(errs.Validation, "providerhttp.PostJSON.newRequest", err))
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			if attemptCtx.Err() != nil {
				return errs.Wrap(errs.Timeout, "providerhttp.PostJSON.do", err)
			}
			return errs.Wrap(errs.ExternalService, "providerhttp.PostJSON.do", err)
		}
		defer func() { _ = resp.Body.Close() }()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.Wrap(errs.ExternalService, "providerhttp.PostJSON.readBody", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(errs.Wrap(errs.ExternalService, "providerhttp.PostJSON.status",
				fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(b))))
		}

		respBody = b
		return nil
	}, bo)
	if err != nil {
		if perm, ok := err.(*backoff.PermanentError); ok {
			return perm.Err
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errs.Wrap(errs.ExternalService, "providerhttp.PostJSON.decode", err)
	}
	return nil
}
