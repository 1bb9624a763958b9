package middleware

import (
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	loggerpkg "lexmatch.backend/pkg/logger"
)

func TestRequestIDMiddleware_GeneratesAndUsesHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("generates request id when header missing", func(t *testing.T) {
		r := gin.New()
		r.Use(RequestIDMiddleware())
		r.GET("/x", func(c *gin.Context) {
			id, ok := c.Get(RequestIDKey)
			require.True(t, ok)
			require.NotEmpty(t, id.(string))
			require.Equal(t, id, loggerpkg.RequestIDFrom(c.Request.Context()))
			c.Status(http.StatusNoContent)
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	})

	t.Run("uses provided request id header", func(t *testing.T) {
		r := gin.New()
		r.Use(RequestIDMiddleware())
		r.GET("/x", func(c *gin.Context) {
			require.Equal(t, "req-123", loggerpkg.RequestIDFrom(c.Request.Context()))
			c.Status(http.StatusNoContent)
		})

		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	})
}

func TestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LoggerMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x?q=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

type httpObservation struct {
	method, route string
	status        int
}

type recordingHTTPObserver struct {
	seen []httpObservation
}

func (o *recordingHTTPObserver) ObserveHTTP(method, route string, status int, _ time.Duration) {
	o.seen = append(o.seen, httpObservation{method, route, status})
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &recordingHTTPObserver{}
	r := gin.New()
	r.Use(MetricsMiddleware(obs))
	r.GET("/contracts/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/contracts/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Equal(t, []httpObservation{
		{http.MethodGet, "/contracts/:id", http.StatusOK},
		{http.MethodGet, "", http.StatusNotFound},
	}, obs.seen)
}

func TestWebhookSignatureMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	body := `{"envelopeId":"env-1","status":"completed"}`

	build := func(secret string) *gin.Engine {
		r := gin.New()
		r.Use(WebhookSignatureMiddleware(secret))
		r.POST("/hook", func(c *gin.Context) {
			raw, err := io.ReadAll(c.Request.Body)
			require.NoError(t, err)
			c.String(http.StatusOK, string(raw))
		})
		return r
	}
	send := func(r *gin.Engine, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
		if sig != "" {
			req.Header.Set(SignatureHeader, sig)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	good := hex.EncodeToString(Sign("whsec", []byte(body)))

	w := send(build("whsec"), good)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, body, w.Body.String(), "handler must see the original body")

	require.Equal(t, http.StatusOK, send(build("whsec"), "sha256="+good).Code)
	require.Equal(t, http.StatusUnauthorized, send(build("whsec"), "").Code)
	require.Equal(t, http.StatusUnauthorized, send(build("whsec"), "zz").Code)
	require.Equal(t, http.StatusUnauthorized, send(build("other"), good).Code)
	require.Equal(t, http.StatusUnauthorized, send(build(""), good).Code)
}

func TestWebhookSignatureMiddleware_BodyTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WebhookSignatureMiddleware("whsec"))
	r.POST("/hook", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(strings.Repeat("a", MaxWebhookBody+10)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
