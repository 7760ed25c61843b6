package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/audio-translator/translator/sdk/translator"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.Any("/echo", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(body))
	})
	return r
}

type staticKeys []string

func (k staticKeys) ManagementProtected() bool { return len(k) > 0 }
func (k staticKeys) ValidAPIKey(key string) bool {
	for _, want := range k {
		if want == key {
			return true
		}
	}
	return false
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name    string
		checker KeyChecker
		header  http.Header
		want    int
	}{
		{"nil checker", nil, nil, http.StatusOK},
		{"no keys configured", staticKeys{}, nil, http.StatusOK},
		{"missing key", staticKeys{"k1"}, nil, http.StatusUnauthorized},
		{"wrong bearer", staticKeys{"k1"}, http.Header{"Authorization": {"Bearer nope"}}, http.StatusUnauthorized},
		{"bearer", staticKeys{"k1"}, http.Header{"Authorization": {"Bearer k1"}}, http.StatusOK},
		{"raw authorization", staticKeys{"k1"}, http.Header{"Authorization": {"k1"}}, http.StatusOK},
		{"management header", staticKeys{"k1", "k2"}, http.Header{ManagementKeyHeader: {"k2"}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := echoEngine(APIKeyAuth(tt.checker))
			req := httptest.NewRequest(http.MethodGet, "/echo", nil)
			for k, v := range tt.header {
				req.Header[k] = v
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"code":"unauthorized"`)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	t.Run("any origin", func(t *testing.T) {
		r := echoEngine(CORS(nil))
		req := httptest.NewRequest(http.MethodGet, "/echo", nil)
		req.Header.Set("Origin", "https://app.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allow list", func(t *testing.T) {
		r := echoEngine(CORS([]string{"https://app.example"}))

		req := httptest.NewRequest(http.MethodGet, "/echo", nil)
		req.Header.Set("Origin", "https://APP.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "https://APP.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", w.Header().Get("Vary"))

		req = httptest.NewRequest(http.MethodGet, "/echo", nil)
		req.Header.Set("Origin", "https://evil.example")
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		r := echoEngine(CORS(nil))
		req := httptest.NewRequest(http.MethodOptions, "/echo", nil)
		req.Header.Set("Origin", "https://app.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func compress(t *testing.T, encoding, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch encoding {
	case "gzip":
		w := gzip.NewWriter(&buf)
		_, err := w.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case "br":
		w := brotli.NewWriter(&buf)
		_, err := w.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case "zstd":
		w, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	default:
		buf.WriteString(content)
	}
	return buf.Bytes()
}

func TestRequestDecompressionMiddleware(t *testing.T) {
	const payload = `{"texts":["Hello world","Good night"]}`
	tests := []struct {
		name     string
		encoding string
		header   string
		want     int
	}{
		{"identity", "", "", http.StatusOK},
		{"gzip", "gzip", "gzip", http.StatusOK},
		{"brotli uppercase", "br", "BR", http.StatusOK},
		{"zstd", "zstd", "zstd", http.StatusOK},
		{"unsupported", "", "compress", http.StatusUnsupportedMediaType},
		{"corrupt gzip", "", "gzip", http.StatusUnsupportedMediaType},
	}
	r := echoEngine(RequestDecompressionMiddleware())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(compress(t, tt.encoding, payload)))
			if tt.header != "" {
				req.Header.Set("Content-Encoding", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.want == http.StatusOK {
				assert.Equal(t, payload, w.Body.String())
			}
		})
	}
}

func TestConnectionTracker(t *testing.T) {
	ct := &ConnectionTracker{}
	var during int64
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ct.Track())
	r.GET("/probe", func(c *gin.Context) {
		during = ct.Count()
		c.Status(http.StatusOK)
	})

	for range 3 {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/probe", nil))
	}
	assert.EqualValues(t, 1, during)
	assert.EqualValues(t, 0, ct.Count())
	assert.EqualValues(t, 3, ct.Total())
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/healthz", normalizePath("/healthz"))
	assert.Equal(t, "/v1/*", normalizePath("/v1/cache/entries/0123456789abcdef"))
	assert.Equal(t, "unmatched", normalizePath("/wp-admin"))
}

func TestTranslationCollector(t *testing.T) {
	stub := translator.NewMapStrategy("dict", map[string]string{"a": "b"})
	reg := translator.NewRegistry("")
	require.NoError(t, reg.Register("dict", stub, nil))
	m := translator.NewManager(reg, nil, nil)
	_, err := m.Translate(t.Context(), "a", "", nil)
	require.NoError(t, err)

	SetMetricsSource(m.Metrics)
	registry := prometheus.NewPedanticRegistry()
	collector := &managerCollector{}
	collector.src.Store(translationCollector.src.Load())
	require.NoError(t, registry.Register(collector))

	expected := `
# HELP translator_requests_total Translation requests by strategy and result
# TYPE translator_requests_total counter
translator_requests_total{result="failure",strategy="dict"} 0
translator_requests_total{result="success",strategy="dict"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "translator_requests_total"))

	lookups, err := testutil.GatherAndCount(registry, "translator_cache_lookups_total")
	require.NoError(t, err)
	assert.Equal(t, 2, lookups)
}
