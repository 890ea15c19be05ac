package middleware_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/bethreewater/island7/internal/cms/testutil"
	"github.com/bethreewater/island7/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func echoClaims(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": gin.H{"user_id": c.GetString("user_id"), "role": c.GetString("role")},
	})
}

func TestJWTAuth(t *testing.T) {
	r := testutil.SetupRouter()
	testutil.AuthGroup(r, "/api").GET("/whoami", echoClaims)

	w := testutil.DoRequest(r, "GET", "/api/whoami", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = testutil.DoRequest(r, "GET", "/api/whoami", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.EqualValues(t, 40102, testutil.ParseResponse(w)["code"])

	token := testutil.GenerateTestToken("u-001", "engineer1", entity.RoleEngineer)
	w = testutil.DoRequest(r, "GET", "/api/whoami", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	assert.Equal(t, "u-001", data["user_id"])
	assert.Equal(t, entity.RoleEngineer, data["role"])

	// SSE 客户端通过 query 传 token
	w = testutil.DoRequest(r, "GET", "/api/whoami?token="+token, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuthRevoked(t *testing.T) {
	r := testutil.SetupRouter()
	revoked := func(_ context.Context, jti string) bool { return jti != "" }
	testutil.AuthGroup(r, "/api", revoked).GET("/whoami", echoClaims)

	w := testutil.DoRequest(r, "GET", "/api/whoami", nil, testutil.DefaultTestToken())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.EqualValues(t, 40104, testutil.ParseResponse(w)["code"])
}

func TestRequireRole(t *testing.T) {
	r := testutil.SetupRouter()
	api := testutil.AuthGroup(r, "/api")
	api.POST("/catalog", middleware.RequireRole(entity.RoleAdmin), echoClaims)
	api.POST("/logs", middleware.RequireRole(entity.RoleEngineer), echoClaims)

	engineer := testutil.GenerateTestToken("u-001", "engineer1", entity.RoleEngineer)
	admin := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, "POST", "/api/catalog", nil, engineer)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.EqualValues(t, 40312, testutil.ParseResponse(w)["code"])

	w = testutil.DoRequest(r, "POST", "/api/catalog", nil, admin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(r, "POST", "/api/logs", nil, engineer)
	assert.Equal(t, http.StatusOK, w.Code)

	// 管理员可访问全部
	w = testutil.DoRequest(r, "POST", "/api/logs", nil, admin)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDEchoesHeader(t *testing.T) {
	r := testutil.SetupRouter()
	r.Use(middleware.RequestID())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	w := testutil.DoRequest(r, "GET", "/ping", nil, "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, w.Header().Get("X-Request-ID"), w.Body.String())
}
