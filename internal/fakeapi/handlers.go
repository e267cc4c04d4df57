package fakeapi

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/labstack/echo/v4"
)

const ctxAccount = "account"

func (s *Server) routes(e *echo.Echo) {
	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/login", s.login)
	auth.POST("/register", s.register)
	auth.POST("/refresh", s.refreshToken)
	auth.POST("/logout", s.logout)

	u := api.Group("/users", s.requireAuth)
	u.GET("/me", s.me)
	u.GET("/search", s.searchUsers, requireRole(users.RoleAdmin))
	u.GET("/:id", s.getUser)
	u.GET("", s.listUsers, requireRole(users.RoleAdmin))
	u.DELETE("/:id", s.deleteUser, requireRole(users.RoleAdmin))
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		acc, err := s.authenticate(bearer(c.Request()))
		if err != nil {
			return err
		}
		c.Set(ctxAccount, acc)
		return next(c)
	}
}

func requireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acc, _ := c.Get(ctxAccount).(*account)
			if acc == nil || !acc.profile.HasRole(role) {
				return fail(http.StatusForbidden, CodeAccessDenied, "Access is denied")
			}
			return next(c)
		}
	}
}

func (s *Server) login(c echo.Context) error {
	var req authmodel.LoginRequest
	if err := c.Bind(&req); err != nil {
		return fail(http.StatusBadRequest, CodeValidation, "invalid body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[req.Username]
	if !ok || acc.password != req.Password {
		return fail(http.StatusUnauthorized, CodeBadCredentials, "Invalid username or password")
	}
	resp, err := s.issue(acc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) register(c echo.Context) error {
	var req authmodel.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return fail(http.StatusBadRequest, CodeValidation, "invalid body")
	}
	if err := req.Validate(); err != nil {
		return fail(http.StatusBadRequest, CodeValidation, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[req.Username]; exists {
		return fail(http.StatusBadRequest, CodeUserExists, "Username is already taken")
	}
	now := users.Timestamp{Time: time.Now().UTC().Truncate(time.Second)}
	acc := &account{
		password: req.Password,
		profile: users.Profile{
			ID:        uuid.New(),
			Username:  req.Username,
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Enabled:   true,
			Roles:     []string{users.RoleUser},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	s.accounts[req.Username] = acc
	resp, err := s.issue(acc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) refreshToken(c echo.Context) error {
	s.refreshCalls.Add(1)

	var req authmodel.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return fail(http.StatusBadRequest, CodeValidation, "invalid body")
	}

	s.mu.Lock()
	gate, status := s.refreshGate, s.refreshStatus
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	}
	if status != 0 {
		return fail(status, CodeInvalidRefreshToken, "Refresh is unavailable")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	username, ok := s.refresh[req.RefreshToken]
	if !ok {
		return fail(http.StatusUnauthorized, CodeInvalidRefreshToken, "Refresh token is invalid or expired")
	}
	// single use: the presented token dies here
	delete(s.refresh, req.RefreshToken)
	acc, ok := s.accounts[username]
	if !ok {
		return fail(http.StatusUnauthorized, CodeInvalidRefreshToken, "User no longer exists")
	}
	resp, err := s.issue(acc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) logout(c echo.Context) error {
	s.logoutCalls.Add(1)

	var req authmodel.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return fail(http.StatusBadRequest, CodeValidation, "invalid body")
	}
	s.mu.Lock()
	delete(s.refresh, req.RefreshToken)
	delete(s.access, bearer(c.Request()))
	s.mu.Unlock()
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

func (s *Server) me(c echo.Context) error {
	acc := c.Get(ctxAccount).(*account)
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, acc.profile)
}

func (s *Server) getUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(http.StatusBadRequest, CodeValidation, "id is not a uuid")
	}
	caller := c.Get(ctxAccount).(*account)
	if caller.profile.ID != id && !caller.profile.IsAdmin() {
		return fail(http.StatusForbidden, CodeAccessDenied, "Access is denied")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.profile.ID == id {
			return c.JSON(http.StatusOK, acc.profile)
		}
	}
	return fail(http.StatusNotFound, CodeNotFound, "User not found with id: "+id.String())
}

func (s *Server) deleteUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(http.StatusBadRequest, CodeValidation, "id is not a uuid")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, acc := range s.accounts {
		if acc.profile.ID == id {
			delete(s.accounts, name)
			return c.NoContent(http.StatusNoContent)
		}
	}
	return fail(http.StatusNotFound, CodeNotFound, "User not found with id: "+id.String())
}

func (s *Server) listUsers(c echo.Context) error {
	return s.page(c, func(users.Profile) bool { return true })
}

func (s *Server) searchUsers(c echo.Context) error {
	q := strings.ToLower(strings.TrimSpace(c.QueryParam("query")))
	if q == "" {
		return fail(http.StatusBadRequest, CodeValidation, "query is required")
	}
	return s.page(c, func(p users.Profile) bool {
		return strings.Contains(strings.ToLower(p.Username), q) || strings.Contains(strings.ToLower(p.Email), q)
	})
}

func (s *Server) page(c echo.Context, match func(users.Profile) bool) error {
	pageNo := queryInt(c, "page", 0)
	size := queryInt(c, "size", 20)
	if size < 1 {
		size = 20
	}
	sortBy := c.QueryParam("sortBy")
	desc := !strings.EqualFold(c.QueryParam("direction"), "asc")

	s.mu.Lock()
	var all []users.Profile
	for _, acc := range s.accounts {
		if match(acc.profile) {
			all = append(all, acc.profile)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(all, func(a, b users.Profile) int {
		var r int
		switch sortBy {
		case "username":
			r = strings.Compare(a.Username, b.Username)
		case "email":
			r = strings.Compare(a.Email, b.Email)
		default:
			r = a.CreatedAt.Compare(b.CreatedAt.Time)
			if r == 0 {
				r = strings.Compare(a.Username, b.Username)
			}
		}
		if desc {
			return -r
		}
		return r
	})

	total := len(all)
	start := min(pageNo*size, total)
	end := min(start+size, total)
	content := all[start:end]
	if content == nil {
		content = []users.Profile{}
	}
	totalPages := (total + size - 1) / size
	return c.JSON(http.StatusOK, users.Page{
		Content:          content,
		TotalElements:    int64(total),
		TotalPages:       totalPages,
		Number:           pageNo,
		Size:             size,
		NumberOfElements: len(content),
		First:            pageNo == 0,
		Last:             pageNo >= totalPages-1,
		Empty:            len(content) == 0,
	})
}

func queryInt(c echo.Context, name string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || v < 0 {
		return def
	}
	return v
}
