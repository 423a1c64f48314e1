package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type stubValidator struct {
	claims map[string]*models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s.claims[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type recordingAudit struct {
	logs []*models.AuditLog
	err  error
}

func (r *recordingAudit) Create(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return r.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newProtectedRouter(roles ...models.UserRole) *gin.Engine {
	validator := stubValidator{claims: map[string]*models.JWTClaims{
		"bursar":  {UserID: "user-bursar", Role: models.RoleBursar},
		"teacher": {UserID: "user-teacher", Role: models.RoleTeacher},
	}}
	r := gin.New()
	r.GET("/bills", JWT(validator), RequireRoles(roles...), func(c *gin.Context) {
		claims, _ := CurrentClaims(c)
		response.OK(c, gin.H{"user": claims.UserID})
	})
	return r
}

func TestJWTAndRoles(t *testing.T) {
	router := newProtectedRouter(models.RoleSuperAdmin, models.RoleAdmin, models.RoleBursar)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "malformed header", header: "Token bursar", status: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", status: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "role not allowed", header: "Bearer teacher", status: http.StatusForbidden},
		{name: "allowed", header: "bearer bursar", status: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/bills", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuditRecordsSuccessfulRequestsOnly(t *testing.T) {
	writer := &recordingAudit{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleBursar})
		c.Next()
	})
	r.POST("/bills", Audit(writer, nil, models.AuditActionBillCreate, models.AuditResourceBill), func(c *gin.Context) {
		SetAuditResource(c, "bill-1")
		response.Created(c, gin.H{"id": "bill-1"})
	})
	r.POST("/bills/:id/payments", Audit(writer, nil, models.AuditActionPaymentApply, models.AuditResourcePayment), func(c *gin.Context) {
		if c.Query("fail") != "" {
			response.Error(c, appErrors.ErrConflict)
			return
		}
		response.Created(c, gin.H{})
	})

	for _, target := range []string{"/bills", "/bills/bill-2/payments", "/bills/bill-3/payments?fail=1"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
	}

	require.Len(t, writer.logs, 2)
	assert.Equal(t, models.AuditActionBillCreate, writer.logs[0].Action)
	assert.Equal(t, "bill-1", *writer.logs[0].ResourceID)
	assert.Equal(t, "user-1", *writer.logs[0].UserID)
	assert.Equal(t, "bill-2", *writer.logs[1].ResourceID)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(writer.logs[1].NewValues, &body))
	assert.Equal(t, "/bills/:id/payments", body["path"])
}

func TestAuditWriterFailureDoesNotChangeResponse(t *testing.T) {
	writer := &recordingAudit{err: errors.New("db down")}
	r := gin.New()
	r.POST("/fees", Audit(writer, nil, models.AuditActionFeeStructureWrite, models.AuditResourceFeeStructure), func(c *gin.Context) {
		response.Created(c, gin.H{})
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fees", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, writer.logs, 1)
}

func TestResponseMetaCarriesCacheHit(t *testing.T) {
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/stats", func(c *gin.Context) {
		SetCacheHit(c, true)
		response.JSON(c, http.StatusOK, gin.H{}, nil, ExtractMeta(c))
	})
	r.GET("/plain", func(c *gin.Context) {
		response.JSON(c, http.StatusOK, gin.H{}, nil, ExtractMeta(c))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	var envelope struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plain", nil))
	envelope.Meta = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Nil(t, envelope.Meta)
}

type recordedRequest struct {
	method string
	route  string
	status int
}

type recordingObserver struct {
	seen []recordedRequest
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.seen = append(r.seen, recordedRequest{method: method, route: path, status: status})
}

func TestMetricsUsesRouteTemplates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(observer, "/metrics"))
	r.GET("/bills/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, target := range []string{"/bills/bill-1", "/bills/bill-2", "/metrics", "/nope/123"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	require.Len(t, observer.seen, 3)
	assert.Equal(t, recordedRequest{method: http.MethodGet, route: "/bills/:id", status: http.StatusOK}, observer.seen[0])
	assert.Equal(t, "/bills/:id", observer.seen[1].route)
	assert.Equal(t, recordedRequest{method: http.MethodGet, route: "unmatched", status: http.StatusNotFound}, observer.seen[2])
}
