//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hxci-campus/authprobe/pkg/oracle/policy"
	"github.com/hxci-campus/authprobe/pkg/oracle/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishProbe() Probe {
	return Probe{
		Name:   "student/publish-at-ceiling",
		Role:   "student",
		Class:  policy.ActionPublishNotification,
		Method: http.MethodPost,
		Path:   "/admin-api/test/notification/api/publish-database",
		Payload: map[string]any{
			"title":   "boundary check",
			"content": "synthetic notification",
		},
		Level: role.LevelReminder,
		Scope: role.ScopeClass,
	}
}

func TestExecuteAccepted(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.Header.Get("tenant-id"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "boundary check", body["title"])
		assert.EqualValues(t, 4, body["level"])
		assert.Equal(t, "CLASS", body["targetScope"])

		fmt.Fprint(w, `{"code":0,"data":{"id":105},"msg":"ok"}`)
	}))
	defer ts.Close()

	e := NewExecutor(ts.URL, "1", 5*time.Second, 0)
	out := e.Execute(context.Background(), publishProbe(), "tok-123")

	assert.Equal(t, Accepted, out.Kind)
	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.EqualValues(t, 105, out.RecordID)
}

func TestExecuteAcceptedBareNumericID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":42,"msg":"ok"}`)
	}))
	defer ts.Close()

	e := NewExecutor(ts.URL, "1", 5*time.Second, 0)
	out := e.Execute(context.Background(), publishProbe(), "tok")
	assert.Equal(t, Accepted, out.Kind)
	assert.EqualValues(t, 42, out.RecordID)
}

func TestExecuteBusinessRejection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":403,"msg":"insufficient permission"}`)
	}))
	defer ts.Close()

	e := NewExecutor(ts.URL, "1", 5*time.Second, 0)
	out := e.Execute(context.Background(), publishProbe(), "tok")

	// HTTP 200 with a non-zero business code is a rejection, not a pass
	assert.Equal(t, Rejected, out.Kind)
	assert.Equal(t, 403, out.BusinessCode)
	assert.Equal(t, "insufficient permission", out.Message)
}

func TestExecuteHTTPRejection(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		e := NewExecutor(ts.URL, "1", 5*time.Second, 0)
		out := e.Execute(context.Background(), publishProbe(), "tok")
		assert.Equal(t, Rejected, out.Kind)
		assert.Equal(t, status, out.StatusCode)
		ts.Close()
	}
}

func TestExecuteServerErrorIsFaultedAndNotRetried(t *testing.T) {
	var hits int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	e := NewExecutor(ts.URL, "1", 5*time.Second, 2)
	out := e.Execute(context.Background(), publishProbe(), "tok")

	assert.Equal(t, Faulted, out.Kind)
	assert.Equal(t, http.StatusInternalServerError, out.StatusCode)
	// A 5xx is a meaningful response; the retry budget is for transport only
	assert.EqualValues(t, 1, atomic.LoadInt64(&hits))
}

func TestExecuteUnparseableEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>not json</html>`)
	}))
	defer ts.Close()

	e := NewExecutor(ts.URL, "1", 5*time.Second, 0)
	out := e.Execute(context.Background(), publishProbe(), "tok")
	assert.Equal(t, Faulted, out.Kind)
}

func TestExecuteTransportRetry(t *testing.T) {
	var attempts int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&attempts, 1) == 1 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		fmt.Fprint(w, `{"code":0,"msg":"ok"}`)
	}))
	defer ts.Close()

	e := NewExecutor(ts.URL, "1", 5*time.Second, 1)
	out := e.Execute(context.Background(), publishProbe(), "tok")

	assert.Equal(t, Accepted, out.Kind)
	assert.EqualValues(t, 2, atomic.LoadInt64(&attempts))
}

func TestExecuteTransportExhausted(t *testing.T) {
	ts := httptest.NewServer(nil)
	ts.Close()

	e := NewExecutor(ts.URL, "1", time.Second, 1)
	out := e.Execute(context.Background(), publishProbe(), "tok")
	assert.Equal(t, Faulted, out.Kind)
	assert.Contains(t, out.Detail, "transport")
}

func TestPayloadTemplateNotMutated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"msg":"ok"}`)
	}))
	defer ts.Close()

	p := publishProbe()
	e := NewExecutor(ts.URL, "1", 5*time.Second, 0)
	_ = e.Execute(context.Background(), p, "tok")

	// Level and scope are merged into a copy, never the shared template
	_, hasLevel := p.Payload["level"]
	_, hasScope := p.Payload["targetScope"]
	assert.False(t, hasLevel)
	assert.False(t, hasScope)
	assert.Len(t, p.Payload, 2)
}

func TestProbeWithoutBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Zero(t, r.ContentLength)
		fmt.Fprint(w, `{"code":0,"data":[],"msg":"ok"}`)
	}))
	defer ts.Close()

	p := Probe{
		Name:   "student/read-list",
		Role:   "student",
		Class:  policy.ActionReadList,
		Method: http.MethodGet,
		Path:   "/admin-api/test/notification/api/list",
	}
	e := NewExecutor(ts.URL, "1", 5*time.Second, 0)
	out := e.Execute(context.Background(), p, "tok")
	assert.Equal(t, Accepted, out.Kind)
}
