//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

// Package mockapi provides an embedded stand-in for the campus-portal
// backend: the mock school authentication API plus the protected
// notification/todo endpoints, with the real level/scope permission
// semantics enforced.
//
// It exists for hermetic oracle runs and local development. It must never
// be deployed as a real backend.
package mockapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hxci-campus/authprobe/internal/logging"
	"github.com/hxci-campus/authprobe/pkg/oracle/role"
	"github.com/labstack/echo/v4"
)

var logger = logging.GetLogger("authprobe.mockapi")

const agent = "mockapi"

// Options configures the mock server.
type Options struct {
	// Secret signs issued bearer tokens (HS256).
	Secret []byte
	// TokenTTL is the issued token lifetime. Defaults to 30 minutes.
	TokenTTL time.Duration
	// Leaky mints tokens carrying plaintext identity fields, for
	// exercising the claim audit's leak detection.
	Leaky bool
	// Roles is the account table; defaults to the built-in one.
	Roles *role.Store
}

// result is the backend's business envelope. Code 0 is success.
type result struct {
	Code int    `json:"code"`
	Data any    `json:"data,omitempty"`
	Msg  string `json:"msg"`
}

type notification struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Level     int    `json:"level"`
	Scope     string `json:"targetScope"`
	Publisher string `json:"publisherName"`
}

type todo struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Level       int    `json:"level"`
	Scope       string `json:"targetScope"`
	Publisher   string `json:"publisherName"`
	IsCompleted bool   `json:"isCompleted"`
}

// Server is the embedded mock campus API.
type Server struct {
	echo *echo.Echo
	opts Options
	srvs []*http.Server

	mu            sync.Mutex
	nextID        int64
	notifications []notification
	todos         map[int64]*todo
}

// New creates a mock server. The handler is ready immediately; use
// [Server.Handler] for in-process tests or [Server.Start] to listen.
func New(opts Options) *Server {
	if opts.TokenTTL == 0 {
		opts.TokenTTL = 30 * time.Minute
	}
	if opts.Roles == nil {
		opts.Roles = role.DefaultStore()
	}

	s := &Server{
		echo:   echo.New(),
		opts:   opts,
		nextID: 100,
		todos:  make(map[int64]*todo),
	}
	s.echo.HideBanner = true
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/mock-school-api/auth/ping", s.ping)
	e.POST("/mock-school-api/auth/authenticate", s.authenticate)

	admin := e.Group("/admin-api", s.requireAuth)
	admin.GET("/test/notification/api/ping", s.ping)
	admin.GET("/test/notification/api/list", s.listNotifications)
	admin.POST("/test/notification/api/publish-database", s.publishNotification)
	admin.POST("/test/todo-new/api/publish", s.publishTodo)
	admin.GET("/test/todo-new/api/my-list", s.myTodos)
	admin.POST("/test/todo-new/api/:id/complete", s.completeTodo)
	admin.POST("/test/permission-cache/api/clear-cache", s.clearCache)
}

// Handler exposes the underlying echo instance for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves the API on each given port in the background. The real
// deployment splits the mock school API and the admin API across two
// hosts, so local runs typically pass both configured ports.
func (s *Server) Start(ports ...int) {
	for _, port := range ports {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           s.echo,
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.srvs = append(s.srvs, srv)
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.SysErrorf("mock server on %s stopped: %v", srv.Addr, err)
			}
		}(srv)
	}
}

// Stop gracefully shuts all listeners down.
func (s *Server) Stop(ctx context.Context) error {
	var first error
	for _, srv := range s.srvs {
		if err := srv.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *Server) ping(c echo.Context) error {
	return c.JSON(http.StatusOK, result{Code: 0, Msg: "pong"})
}

type loginRequest struct {
	EmployeeID string `json:"employeeId"`
	Name       string `json:"name"`
	Password   string `json:"password"`
}

// authResult mirrors the mock school API's login envelope, which signals
// success with code 200 rather than the admin API's 0.
type authResult struct {
	Code    int    `json:"code"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) authenticate(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusOK, authResult{Code: 400, Message: "malformed request"})
	}

	account, ok := s.findByEmployeeID(req.EmployeeID)
	if !ok || account.LoginName != req.Name || account.Password != req.Password {
		logger.Warnf(agent, "login", "rejected credentials for %s", req.EmployeeID)
		return c.JSON(http.StatusOK, authResult{Code: 401, Message: "invalid credentials"})
	}

	tok, err := s.mintToken(account)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, authResult{Code: 500, Message: "token signing failed"})
	}

	return c.JSON(http.StatusOK, authResult{
		Code:    200,
		Success: true,
		Message: "ok",
		Data:    map[string]string{"accessToken": tok},
	})
}

func (s *Server) findByEmployeeID(id string) (role.Role, bool) {
	for _, r := range s.opts.Roles.All() {
		if r.EmployeeID == id {
			return r, true
		}
	}
	return role.Role{}, false
}

func (s *Server) findByCode(code string) (role.Role, bool) {
	for _, r := range s.opts.Roles.All() {
		if r.Code == code {
			return r, true
		}
	}
	return role.Role{}, false
}

// mintToken issues an HS256 bearer token for the account. The claim set
// is deliberately minimal; Leaky mode adds the plaintext identity fields
// the claim audit is meant to catch.
func (s *Server) mintToken(account role.Role) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":    "mock-school-api",
		"aud":    "hxci-campus-portal",
		"sub":    account.EmployeeID,
		"userId": account.EmployeeID,
		"role":   account.Code,
		"iat":    now.Unix(),
		"exp":    now.Add(s.opts.TokenTTL).Unix(),
		"jti":    "jwt_v2_" + uuid.NewString(),
	}
	if s.opts.Leaky {
		claims["password"] = account.Password
		claims["realName"] = account.LoginName
		claims["mobile"] = "13800000000"
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.Secret)
}

const ctxRoleKey = "mockapi.role"

// requireAuth validates the bearer token and the tenant-context header,
// and resolves the caller's role for the handlers.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get("tenant-id") == "" {
			return c.JSON(http.StatusUnauthorized, result{Code: 401, Msg: "missing tenant-id header"})
		}

		header := c.Request().Header.Get("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			return c.JSON(http.StatusUnauthorized, result{Code: 401, Msg: "missing bearer token"})
		}

		tok, err := jwt.Parse(header[len(prefix):], func(t *jwt.Token) (any, error) {
			return s.opts.Secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !tok.Valid {
			return c.JSON(http.StatusUnauthorized, result{Code: 401, Msg: "invalid token"})
		}

		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, result{Code: 401, Msg: "invalid token claims"})
		}
		code, _ := claims["role"].(string)
		caller, ok := s.findByCode(code)
		if !ok {
			return c.JSON(http.StatusUnauthorized, result{Code: 401, Msg: "unknown role"})
		}

		c.Set(ctxRoleKey, caller)
		return next(c)
	}
}

func caller(c echo.Context) role.Role {
	return c.Get(ctxRoleKey).(role.Role)
}

type publishRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Level   int    `json:"level"`
	Scope   string `json:"targetScope"`
}

// checkBoundary enforces the level/scope permission rule. It returns a
// non-nil envelope when the caller is outside its boundary.
func checkBoundary(caller role.Role, level int, scope string) *result {
	lvl := role.Level(level)
	if !lvl.Valid() {
		return &result{Code: 400, Msg: fmt.Sprintf("level %d out of range 1..4", level)}
	}
	sc, err := role.ParseScope(scope)
	if err != nil {
		return &result{Code: 400, Msg: err.Error()}
	}
	if !caller.AllowsLevel(lvl) {
		return &result{Code: 403, Msg: fmt.Sprintf("role %s may not publish at level %d", caller.Code, level)}
	}
	if !caller.AllowsScope(sc) {
		return &result{Code: 403, Msg: fmt.Sprintf("role %s may not target scope %s", caller.Code, scope)}
	}
	return nil
}

func (s *Server) publishNotification(c echo.Context) error {
	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusOK, result{Code: 400, Msg: "malformed request"})
	}

	who := caller(c)
	if denied := checkBoundary(who, req.Level, req.Scope); denied != nil {
		logger.Warnf(who.Code, "publish", "denied notification: %s", denied.Msg)
		return c.JSON(http.StatusOK, *denied)
	}

	s.mu.Lock()
	s.nextID++
	n := notification{
		ID:        s.nextID,
		Title:     req.Title,
		Content:   req.Content,
		Level:     req.Level,
		Scope:     req.Scope,
		Publisher: who.LoginName,
	}
	s.notifications = append(s.notifications, n)
	s.mu.Unlock()

	return c.JSON(http.StatusOK, result{Code: 0, Data: map[string]int64{"id": n.ID}, Msg: "ok"})
}

func (s *Server) listNotifications(c echo.Context) error {
	s.mu.Lock()
	out := make([]notification, len(s.notifications))
	copy(out, s.notifications)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, result{Code: 0, Data: out, Msg: "ok"})
}

func (s *Server) publishTodo(c echo.Context) error {
	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusOK, result{Code: 400, Msg: "malformed request"})
	}

	who := caller(c)
	if denied := checkBoundary(who, req.Level, req.Scope); denied != nil {
		logger.Warnf(who.Code, "publish", "denied todo: %s", denied.Msg)
		return c.JSON(http.StatusOK, *denied)
	}

	s.mu.Lock()
	s.nextID++
	t := &todo{
		ID:        s.nextID,
		Title:     req.Title,
		Level:     req.Level,
		Scope:     req.Scope,
		Publisher: who.LoginName,
	}
	s.todos[t.ID] = t
	s.mu.Unlock()

	return c.JSON(http.StatusOK, result{Code: 0, Data: map[string]int64{"id": t.ID}, Msg: "ok"})
}

func (s *Server) myTodos(c echo.Context) error {
	s.mu.Lock()
	out := make([]todo, 0, len(s.todos))
	for _, t := range s.todos {
		out = append(out, *t)
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, result{Code: 0, Data: out, Msg: "ok"})
}

func (s *Server) completeTodo(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusOK, result{Code: 400, Msg: "bad todo id"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok {
		return c.JSON(http.StatusOK, result{Code: 404, Msg: "todo not found"})
	}
	// Completing twice is idempotent.
	t.IsCompleted = true
	return c.JSON(http.StatusOK, result{Code: 0, Data: *t, Msg: "ok"})
}

func (s *Server) clearCache(c echo.Context) error {
	who := caller(c)
	if who.Rank != 1 {
		return c.JSON(http.StatusOK, result{Code: 403, Msg: "cache administration requires a rank-1 role"})
	}
	return c.JSON(http.StatusOK, result{Code: 0, Msg: "permission cache cleared"})
}
