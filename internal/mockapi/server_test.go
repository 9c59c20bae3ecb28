//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

package mockapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hxci-campus/authprobe/pkg/oracle/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	if opts.Secret == nil {
		opts.Secret = []byte("test-secret")
	}
	ts := httptest.NewServer(New(opts).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func authenticate(t *testing.T, base, employeeID, name, password string) (int, map[string]any) {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"employeeId": employeeID, "name": name, "password": password,
	})
	require.NoError(t, err)

	resp, err := http.Post(base+"/mock-school-api/auth/authenticate", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func login(t *testing.T, base, employeeID, name string) string {
	t.Helper()
	status, out := authenticate(t, base, employeeID, name, "admin123")
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 200, out["code"])

	data, ok := out["data"].(map[string]any)
	require.True(t, ok, "login response carries no data")
	tok, _ := data["accessToken"].(string)
	require.NotEmpty(t, tok)
	return tok
}

func call(t *testing.T, method, url, bearer string, payload map[string]any) (int, map[string]any) {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
		req.Header.Set("tenant-id", "1")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestAuthenticateIssuesCleanToken(t *testing.T) {
	ts := startServer(t, Options{})
	tok := login(t, ts.URL, "STUDENT_001", "Student-Zhang")

	claims, err := token.Inspect(tok)
	require.NoError(t, err)
	assert.Equal(t, "HS256", claims.Algorithm())

	roleClaim, _ := claims.StringClaim("role")
	assert.Equal(t, "STUDENT", roleClaim)
	jti, _ := claims.StringClaim("jti")
	assert.Contains(t, jti, "jwt_v2_")
	assert.False(t, claims.Has("password"))
	assert.False(t, claims.Has("realName"))
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	ts := startServer(t, Options{})

	status, out := authenticate(t, ts.URL, "STUDENT_001", "Student-Zhang", "nope")
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 401, out["code"])

	status, out = authenticate(t, ts.URL, "GHOST_001", "Ghost", "admin123")
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 401, out["code"])
}

func TestLeakyTokens(t *testing.T) {
	ts := startServer(t, Options{Leaky: true})
	tok := login(t, ts.URL, "STUDENT_001", "Student-Zhang")

	claims, err := token.Inspect(tok)
	require.NoError(t, err)
	assert.True(t, claims.Has("password"))
	assert.True(t, claims.Has("realName"))
	assert.True(t, claims.Has("mobile"))
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	ts := startServer(t, Options{})
	url := ts.URL + "/admin-api/test/notification/api/list"

	// No bearer, no tenant header
	status, _ := call(t, http.MethodGet, url, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Garbage token
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	req.Header.Set("tenant-id", "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Valid token but missing tenant header
	tok := login(t, ts.URL, "STUDENT_001", "Student-Zhang")
	req, _ = http.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTokenSignedWithWrongSecretIsRejected(t *testing.T) {
	other := startServer(t, Options{Secret: []byte("other-secret")})
	tok := login(t, other.URL, "STUDENT_001", "Student-Zhang")

	ts := startServer(t, Options{})
	status, _ := call(t, http.MethodGet, ts.URL+"/admin-api/test/notification/api/list", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPublishBoundaryEnforcement(t *testing.T) {
	ts := startServer(t, Options{})
	url := ts.URL + "/admin-api/test/notification/api/publish-database"

	student := login(t, ts.URL, "STUDENT_001", "Student-Zhang")
	principal := login(t, ts.URL, "PRINCIPAL_001", "Principal-Zhang")

	// In-bounds publish succeeds and returns the record id
	status, out := call(t, http.MethodPost, url, student, map[string]any{
		"title": "ok", "content": "x", "level": 4, "targetScope": "CLASS",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, out["code"])
	data := out["data"].(map[string]any)
	assert.Positive(t, data["id"].(float64))

	// Level escalation is denied with a business 403, not an HTTP error
	status, out = call(t, http.MethodPost, url, student, map[string]any{
		"title": "esc", "content": "x", "level": 1, "targetScope": "CLASS",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 403, out["code"])

	// Scope escalation likewise
	status, out = call(t, http.MethodPost, url, student, map[string]any{
		"title": "esc", "content": "x", "level": 4, "targetScope": "SCHOOL_WIDE",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 403, out["code"])

	// Out-of-domain attributes are a 400, distinct from a denial
	status, out = call(t, http.MethodPost, url, student, map[string]any{
		"title": "bad", "content": "x", "level": 9, "targetScope": "CLASS",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 400, out["code"])

	// The principal may publish an emergency school-wide
	status, out = call(t, http.MethodPost, url, principal, map[string]any{
		"title": "drill", "content": "x", "level": 1, "targetScope": "SCHOOL_WIDE",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, out["code"])

	// Both publishes are visible in the list
	status, out = call(t, http.MethodGet, ts.URL+"/admin-api/test/notification/api/list", student, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"].([]any), 2)
}

func TestTodoLifecycle(t *testing.T) {
	ts := startServer(t, Options{})
	teacher := login(t, ts.URL, "TEACHER_001", "Teacher-Wang")

	status, out := call(t, http.MethodPost, ts.URL+"/admin-api/test/todo-new/api/publish", teacher, map[string]any{
		"title": "grade exams", "level": 3, "targetScope": "DEPARTMENT",
	})
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 0, out["code"])
	id := int64(out["data"].(map[string]any)["id"].(float64))

	completeURL := fmt.Sprintf("%s/admin-api/test/todo-new/api/%d/complete", ts.URL, id)
	status, out = call(t, http.MethodPost, completeURL, teacher, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, out["code"])
	assert.Equal(t, true, out["data"].(map[string]any)["isCompleted"])

	// Completing twice is idempotent
	status, out = call(t, http.MethodPost, completeURL, teacher, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, out["code"])

	// Unknown record
	status, out = call(t, http.MethodPost, ts.URL+"/admin-api/test/todo-new/api/999999/complete", teacher, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 404, out["code"])

	status, out = call(t, http.MethodGet, ts.URL+"/admin-api/test/todo-new/api/my-list", teacher, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"].([]any), 1)
}

func TestClearCacheRequiresRankOne(t *testing.T) {
	ts := startServer(t, Options{})
	url := ts.URL + "/admin-api/test/permission-cache/api/clear-cache"

	sysadmin := login(t, ts.URL, "SYSTEM_ADMIN_001", "SysAdmin-Chen")
	status, out := call(t, http.MethodPost, url, sysadmin, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, out["code"])

	student := login(t, ts.URL, "STUDENT_001", "Student-Zhang")
	status, out = call(t, http.MethodPost, url, student, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 403, out["code"])
}
