package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/rental-booking/internal/domain"
)

type fakeLogReader struct {
	gotStatus domain.WebhookStatus
	gotLimit  int
}

func (f *fakeLogReader) Recent(_ context.Context, status domain.WebhookStatus, limit int) ([]domain.WebhookLog, error) {
	f.gotStatus = status
	f.gotLimit = limit
	return []domain.WebhookLog{{ID: "log-1", Status: status}}, nil
}

func (f *fakeLogReader) ByProviderEventID(_ context.Context, providerEventID string) ([]domain.WebhookLog, error) {
	return nil, nil
}

func monitorRouter(f *fakeLogReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &Handler{logs: f}
	r := gin.New()
	r.GET("/v1/monitor/webhooks", h.MonitorWebhooks)
	return r
}

func TestMonitorWebhooks_HonorsStatusAndLimit(t *testing.T) {
	f := &fakeLogReader{}
	r := monitorRouter(f)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/monitor/webhooks?status=error&limit=5", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.WebhookError, f.gotStatus)
	assert.Equal(t, 5, f.gotLimit)
}

func TestMonitorWebhooks_DefaultsInvalidLimit(t *testing.T) {
	for _, q := range []string{"", "?limit=abc", "?limit=-3", "?limit=0"} {
		f := &fakeLogReader{}
		r := monitorRouter(f)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/monitor/webhooks"+q, nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 100, f.gotLimit, "query %q", q)
	}
}
