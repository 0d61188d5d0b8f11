package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	appErrors "github.com/YashBawari18/Online-TicketConsession/pkg/errors"
)

type tokenValidatorStub map[string]*models.JWTClaims

func (s tokenValidatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

func newProtectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator := tokenValidatorStub{
		"student-token": {UserID: "student-1", Role: models.RoleStudent},
		"admin-token":   {UserID: "admin-1", Role: models.RoleAdmin},
	}
	router := gin.New()
	router.GET("/admin", JWT(validator), RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.String(http.StatusOK, Claims(c).UserID)
	})
	router.GET("/shared", JWT(validator), RequireRoles(models.RoleAdmin, models.RoleStudent), func(c *gin.Context) {
		c.String(http.StatusOK, Claims(c).UserID)
	})
	router.GET("/open", RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func requestWithToken(router *gin.Engine, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTAndRoles(t *testing.T) {
	router := newProtectedRouter()

	cases := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{name: "missing header", path: "/admin", status: http.StatusUnauthorized},
		{name: "malformed header", path: "/admin", header: "Token abc", status: http.StatusUnauthorized},
		{name: "unknown token", path: "/admin", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "student on admin route", path: "/admin", header: "Bearer student-token", status: http.StatusForbidden},
		{name: "admin on admin route", path: "/admin", header: "Bearer admin-token", status: http.StatusOK, body: "admin-1"},
		{name: "student on shared route", path: "/shared", header: "bearer student-token", status: http.StatusOK, body: "student-1"},
		{name: "roles without jwt", path: "/open", status: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := requestWithToken(router, tc.path, tc.header)
			assert.Equal(t, tc.status, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}
