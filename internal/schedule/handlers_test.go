package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/auth"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/plan"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/tenant"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/usage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func scheduleRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()

	clock := func() time.Time { return time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC) }
	store := NewMemoryStore()
	store.now = clock
	enf := usage.NewEnforcer(deliveryCounts{store: store}).WithClock(clock)
	svc := NewService(store, enf, testRegistry(), nil)

	tenants := tenant.NewMemoryStore()
	anchor := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, tenants.Create(context.Background(), &tenant.Tenant{
		ID:          "ten_h",
		Name:        "Handler",
		Email:       "h@example.com",
		Plan:        plan.PlanFree,
		Status:      tenant.StatusActive,
		CycleAnchor: &anchor,
	}))

	handler := NewHandler(svc, tenants)

	router := gin.New()
	group := router.Group("/v1")
	group.Use(func(c *gin.Context) { c.Set(auth.ContextKeyTenantID, "ten_h") })
	handler.RegisterProtectedRoutes(group)
	return router, svc
}

func postSchedule(router *gin.Engine, body map[string]interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/schedule", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestCreateScheduleReturnsCreatedIDs(t *testing.T) {
	router, _ := scheduleRouter(t)

	w := postSchedule(router, map[string]interface{}{
		"channel":     "twitter",
		"scheduledAt": "2026-03-01T09:00:00Z",
		"thread":      []string{"part one", "part two"},
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		IDs        []string    `json:"ids"`
		Deliveries []*Delivery `json:"deliveries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.IDs, 2)
	assert.Equal(t, 1, resp.Deliveries[0].Metadata.ThreadPosition)
	assert.Equal(t, 2, resp.Deliveries[1].Metadata.ThreadPosition)
}

// Free tier, anchor Jan 15 12:00, five posts already in the cycle: the
// sixth request is refused with the full remediation payload.
func TestCreateScheduleSixthPostDenied(t *testing.T) {
	router, _ := scheduleRouter(t)

	for i := 0; i < 5; i++ {
		w := postSchedule(router, map[string]interface{}{
			"channel":     "twitter",
			"scheduledAt": "2026-03-01T09:00:00Z",
			"content":     "post",
		})
		require.Equal(t, http.StatusCreated, w.Code, "post %d", i+1)
	}

	w := postSchedule(router, map[string]interface{}{
		"channel":     "twitter",
		"scheduledAt": "2026-03-01T09:00:00Z",
		"content":     "one too many",
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	var resp struct {
		Error           string    `json:"error"`
		Code            string    `json:"code"`
		Limit           int       `json:"limit"`
		Used            int       `json:"used"`
		CycleEnd        time.Time `json:"cycleEnd"`
		UpgradeRequired bool      `json:"upgradeRequired"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "plan_limit_reached", resp.Code)
	assert.Equal(t, 5, resp.Limit)
	assert.Equal(t, 5, resp.Used)
	assert.Equal(t, time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC), resp.CycleEnd)
	assert.True(t, resp.UpgradeRequired)
	assert.NotEmpty(t, resp.Error)
}

func TestCreateScheduleValidation(t *testing.T) {
	router, _ := scheduleRouter(t)

	w := postSchedule(router, map[string]interface{}{
		"channel":     "fax",
		"scheduledAt": "2026-03-01T09:00:00Z",
		"content":     "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postSchedule(router, map[string]interface{}{
		"channel": "twitter",
		"content": "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postSchedule(router, map[string]interface{}{
		"channel":     "twitter",
		"provider":    "ghost",
		"scheduledAt": "2026-03-01T09:00:00Z",
		"content":     "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndGetDeliveries(t *testing.T) {
	router, _ := scheduleRouter(t)

	w := postSchedule(router, map[string]interface{}{
		"channel":     "twitter",
		"scheduledAt": "2026-03-01T09:00:00Z",
		"content":     "post",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		IDs []string `json:"ids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created.IDs, 1)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/schedule", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.IDs[0])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/schedule/"+created.IDs[0], nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/schedule?from=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelDeliveryEndpoint(t *testing.T) {
	router, _ := scheduleRouter(t)

	w := postSchedule(router, map[string]interface{}{
		"channel":     "twitter",
		"scheduledAt": "2026-03-01T09:00:00Z",
		"content":     "post",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		IDs []string `json:"ids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/v1/schedule/"+created.IDs[0], nil))
	require.Equal(t, http.StatusOK, w.Code)

	// Second cancel conflicts.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/v1/schedule/"+created.IDs[0], nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/v1/schedule/dlv_0123456789ab", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
