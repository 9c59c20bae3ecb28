//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hxci-campus/authprobe/internal/logging"
	"github.com/mohae/deepcopy"
)

var logger = logging.GetLogger("authprobe.probe")

const agent = "executor"

// envelope is the backend's business result wrapper. Code 0 is success;
// any other code is a business-layer rejection or fault.
type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

// Executor issues probes against the protected API, attaching the bearer
// credential and the fixed tenant-context header. Every request carries a
// bounded timeout; pure network failures are retried at most once, while
// HTTP error statuses are meaningful results and never retried.
type Executor struct {
	client  *http.Client
	base    string
	tenant  string
	retries int
}

// NewExecutor creates an Executor for the given API base URL.
func NewExecutor(base, tenant string, timeout time.Duration, retries int) *Executor {
	if retries < 0 {
		retries = 0
	}
	return &Executor{
		client:  &http.Client{Timeout: timeout},
		base:    base,
		tenant:  tenant,
		retries: retries,
	}
}

// body materializes the probe's payload template. The template is copied
// before level/scope substitution so a probe can be re-instantiated
// without mutating shared plan state.
func (e *Executor) body(p Probe) ([]byte, error) {
	if p.Payload == nil && p.Level == 0 && p.Scope == "" {
		return nil, nil
	}

	payload := map[string]any{}
	if p.Payload != nil {
		payload = deepcopy.Copy(p.Payload).(map[string]any)
	}
	if p.Level != 0 {
		payload["level"] = int(p.Level)
	}
	if p.Scope != "" {
		payload["targetScope"] = string(p.Scope)
	}
	return json.Marshal(payload)
}

// Execute sends the probe using the given bearer token and returns the
// normalized outcome. Execute never returns an error: every failure mode
// is itself a classifiable Outcome.
func (e *Executor) Execute(ctx context.Context, p Probe, token string) Outcome {
	payload, err := e.body(p)
	if err != nil {
		return Outcome{Kind: Faulted, Detail: fmt.Sprintf("payload marshal: %v", err)}
	}

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt <= e.retries; attempt++ {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, rerr := http.NewRequestWithContext(ctx, p.Method, e.base+p.Path, reqBody)
		if rerr != nil {
			return Outcome{Kind: Faulted, Detail: fmt.Sprintf("build request: %v", rerr)}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("tenant-id", e.tenant)

		resp, lastErr = e.client.Do(req)
		if lastErr == nil {
			break
		}
		logger.Warnf(p.Role, string(p.Class), "probe %s transport failure (attempt %d): %v", p.Name, attempt+1, lastErr)
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		return Outcome{Kind: Faulted, Detail: fmt.Sprintf("transport: %v", lastErr)}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Kind: Faulted, StatusCode: resp.StatusCode, Detail: fmt.Sprintf("read response: %v", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Outcome{Kind: Rejected, StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return Outcome{
			Kind:       Faulted,
			StatusCode: resp.StatusCode,
			Detail:     fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Outcome{Kind: Faulted, StatusCode: resp.StatusCode, Detail: fmt.Sprintf("unparseable envelope: %v", err)}
	}

	if env.Code != 0 {
		return Outcome{Kind: Rejected, StatusCode: resp.StatusCode, BusinessCode: env.Code, Message: env.Msg}
	}

	return Outcome{
		Kind:       Accepted,
		StatusCode: resp.StatusCode,
		Message:    env.Msg,
		RecordID:   extractRecordID(env.Data),
	}
}

// extractRecordID pulls a created record identifier out of the success
// envelope. The backend returns either a bare numeric id or an object
// with an "id" field; anything else yields 0.
func extractRecordID(data json.RawMessage) int64 {
	if len(data) == 0 {
		return 0
	}

	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		return id
	}

	var obj struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj.ID
	}
	return 0
}
