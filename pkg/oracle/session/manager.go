//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

// Package session manages authenticated bearer credentials, one live
// session per role.
//
// The credential cache is the only shared mutable state in a test run.
// Re-authentication is serialized per role, so two concurrent probes for
// the same role can never race into issuing two live sessions.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hxci-campus/authprobe/internal/logging"
	"github.com/hxci-campus/authprobe/pkg/common"
	"github.com/hxci-campus/authprobe/pkg/oracle/role"
	"github.com/hxci-campus/authprobe/pkg/oracle/token"
	"github.com/pkg/errors"
)

var logger = logging.GetLogger("authprobe.session")

const authenticatePath = "/mock-school-api/auth/authenticate"

// Credential is a role's live session: the signed bearer token plus
// issuance and expiry timestamps. Owned exclusively by the Manager.
type Credential struct {
	Role      string
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the credential is no longer usable at t.
func (c *Credential) Expired(t time.Time) bool {
	return !c.ExpiresAt.After(t)
}

// Manager performs logins and caches at most one live credential per
// role. It also exposes the decode-only token inspector for claim
// assertions; see the token package.
type Manager struct {
	client  *http.Client
	base    string
	retries int
	ttl     time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	cache map[string]*Credential

	// now is replaceable for expiry tests.
	now func() time.Time
}

// NewManager creates a Manager against the given authentication base URL.
// ttl is the fallback credential lifetime for tokens without a decodable
// expiry claim.
func NewManager(base string, timeout time.Duration, retries int, ttl time.Duration) *Manager {
	if retries < 0 {
		retries = 0
	}
	return &Manager{
		client:  &http.Client{Timeout: timeout},
		base:    base,
		retries: retries,
		ttl:     ttl,
		locks:   make(map[string]*sync.Mutex),
		cache:   make(map[string]*Credential),
		now:     time.Now,
	}
}

// roleLock returns the serialization lock for one role.
func (m *Manager) roleLock(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.locks[name]
	if l == nil {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	return l
}

// Authenticate returns the cached credential for the role, logging in
// first when none exists or the cached one has expired. A failed login is
// an AuthenticationError: fatal for every probe depending on that role
// and never silently retried beyond one transient-network attempt.
func (m *Manager) Authenticate(ctx context.Context, r role.Role) (*Credential, error) {
	lock := m.roleLock(r.Name)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	cached := m.cache[r.Name]
	m.mu.Unlock()
	if cached != nil && !cached.Expired(m.now()) {
		return cached, nil
	}

	cred, err := m.login(ctx, r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache[r.Name] = cred
	m.mu.Unlock()

	logger.Infof(r.Name, "login", "session established, valid until %s", cred.ExpiresAt.UTC().Format(time.RFC3339))
	return cred, nil
}

// Invalidate drops the cached credential for a role.
func (m *Manager) Invalidate(roleName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, roleName)
}

// authResponse is the authentication endpoint's success envelope. The
// backend disagrees with itself about the token field name across
// deployments, so both accessToken and token are accepted as aliases.
type authResponse struct {
	Code    int    `json:"code"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		AccessToken string `json:"accessToken"`
		Token       string `json:"token"`
	} `json:"data"`
}

func (a *authResponse) bearer() string {
	if a.Data.AccessToken != "" {
		return a.Data.AccessToken
	}
	return a.Data.Token
}

func (m *Manager) login(ctx context.Context, r role.Role) (*Credential, error) {
	payload, err := json.Marshal(map[string]string{
		"employeeId": r.EmployeeID,
		"name":       r.LoginName,
		"password":   r.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal login request")
	}

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt <= m.retries; attempt++ {
		req, rerr := http.NewRequestWithContext(ctx, http.MethodPost, m.base+authenticatePath, bytes.NewReader(payload))
		if rerr != nil {
			return nil, errors.Wrap(rerr, "build login request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, lastErr = m.client.Do(req)
		if lastErr == nil {
			break
		}
		logger.Warnf(r.Name, "login", "transport failure (attempt %d): %v", attempt+1, lastErr)
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		return nil, common.NewAuthenticationError(r.Name, common.ReasonAuthTransport,
			"authentication endpoint unreachable", lastErr)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.NewAuthenticationError(r.Name, common.ReasonAuthTransport,
			"failed reading authentication response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, common.NewAuthenticationError(r.Name, common.ReasonAuthRejected,
			fmt.Sprintf("HTTP %d from authentication endpoint", resp.StatusCode), nil)
	}

	var auth authResponse
	if err := json.Unmarshal(raw, &auth); err != nil {
		return nil, common.NewAuthenticationError(r.Name, common.ReasonAuthRejected,
			"unparseable authentication response", err)
	}
	if auth.Code != 200 {
		return nil, common.NewAuthenticationError(r.Name, common.ReasonAuthRejected,
			fmt.Sprintf("business code %d: %s", auth.Code, auth.Message), nil)
	}

	bearer := auth.bearer()
	if bearer == "" {
		return nil, common.NewAuthenticationError(r.Name, common.ReasonTokenMissing,
			"authentication response carries no token field", nil)
	}

	issued := m.now()
	expires := issued.Add(m.ttl)
	// Prefer the token's own expiry claim when it decodes cleanly.
	if claims, derr := token.Inspect(bearer); derr == nil {
		if exp, ok := claims.TimeClaim("exp"); ok {
			expires = exp
		}
	}

	return &Credential{
		Role:      r.Name,
		Token:     bearer,
		IssuedAt:  issued,
		ExpiresAt: expires,
	}, nil
}
