package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mcigo/mci/pkg/schema"
	"github.com/mcigo/mci/pkg/template"
)

// executeHTTP performs the request with the configured retry policy. Static
// fields (url, headers, params, body) resolve once up front; the auth block
// resolves per attempt, at send time. The final attempt's outcome becomes
// the Result, whether success, error status, or transport failure.
func (d *Dispatcher) executeHTTP(ctx context.Context, e *schema.HTTPExecution, tctx *template.Context, meta map[string]any) *Result {
	req, err := d.buildRequest(e, tctx)
	if err != nil {
		return errorResult(err, meta)
	}

	timeout := time.Duration(defaultTimeoutMS) * time.Millisecond
	if e.TimeoutMS > 0 {
		timeout = time.Duration(e.TimeoutMS) * time.Millisecond
	}

	attempts := defaultRetryAttempts
	backoffDelay := time.Duration(defaultBackoffMS) * time.Millisecond
	if e.Retries != nil {
		if e.Retries.Attempts > 0 {
			attempts = e.Retries.Attempts
		}
		if e.Retries.BackoffMS != nil {
			backoffDelay = time.Duration(*e.Retries.BackoffMS) * time.Millisecond
		}
	}

	var res *Result
	operation := func() error {
		var attemptErr error
		res, attemptErr = d.attempt(ctx, req, e, tctx, timeout, meta)
		return attemptErr
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(backoffDelay), uint64(attempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil && res == nil {
		return errorResult(err, meta)
	}

	return res
}

// attempt sends the request once. It returns a non-nil error to request a
// retry; the Result it produced (if any) survives as the outcome when
// retries are exhausted.
func (d *Dispatcher) attempt(ctx context.Context, req *request, e *schema.HTTPExecution, tctx *template.Context, timeout time.Duration, meta map[string]any) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.method, req.url, bytes.NewReader(req.body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrTransport, err))
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	if e.Auth != nil {
		if err := d.applyAuth(httpReq, e.Auth, tctx); err != nil {
			return nil, backoff.Permanent(err)
		}
	}

	start := time.Now()
	resp, err := d.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w: request timed out after %s", ErrTransport, timeout)
		} else {
			err = fmt.Errorf("%w: %v", ErrTransport, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrTransport, err)
	}

	meta["status_code"] = resp.StatusCode
	meta["response_time_ms"] = elapsed.Milliseconds()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res := errorResult(fmt.Errorf("http request failed with status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)), meta)
		res.Metadata["fault"] = "http_status"
		res.Content = []Content{{Type: "text", Text: string(body)}}
		return res, fmt.Errorf("status %d", resp.StatusCode)
	}

	// meta is shared across attempts; drop a fault recorded by an earlier
	// failed attempt.
	delete(meta, "fault")

	res := okResult(string(body), meta)
	var structured any
	if json.Unmarshal(body, &structured) == nil {
		res.Structured = structured
	}
	return res, nil
}

// request holds the fully resolved static fields, computed once so retries
// reuse the same bytes.
type request struct {
	method  string
	url     string
	headers map[string]string
	body    []byte
}

func (d *Dispatcher) buildRequest(e *schema.HTTPExecution, tctx *template.Context) (*request, error) {
	rawURL, err := d.render(e.URL, tctx)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(e.Method)
	if method == "" {
		method = http.MethodGet
	}

	headers := make(map[string]string, len(e.Headers))
	for k, v := range e.Headers {
		rendered, err := d.render(v, tctx)
		if err != nil {
			return nil, err
		}
		headers[k] = rendered
	}

	if len(e.Params) > 0 {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid url %q: %v", ErrTransport, rawURL, err)
		}
		q := parsed.Query()
		for k, v := range e.Params {
			rendered, err := d.renderAny(v, tctx)
			if err != nil {
				return nil, err
			}
			q.Set(k, template.Stringify(rendered))
		}
		parsed.RawQuery = q.Encode()
		rawURL = parsed.String()
	}

	var body []byte
	if e.Body != nil {
		content, err := d.renderAny(e.Body.Content, tctx)
		if err != nil {
			return nil, err
		}
		switch e.Body.Type {
		case "json":
			body, err = json.Marshal(content)
			if err != nil {
				return nil, fmt.Errorf("failed to encode json body: %w", err)
			}
			if _, ok := headers["Content-Type"]; !ok {
				headers["Content-Type"] = "application/json"
			}
		case "form":
			fields, ok := content.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("form body content must be an object")
			}
			values := url.Values{}
			for k, v := range fields {
				values.Set(k, template.Stringify(v))
			}
			body = []byte(values.Encode())
			if _, ok := headers["Content-Type"]; !ok {
				headers["Content-Type"] = "application/x-www-form-urlencoded"
			}
		case "raw":
			body = []byte(template.Stringify(content))
		}
	}

	return &request{method: method, url: rawURL, headers: headers, body: body}, nil
}
