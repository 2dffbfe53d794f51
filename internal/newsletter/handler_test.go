package newsletter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newNewsletterRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewService(NewMemoryRepo(), nil)).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestNewsletterEndpoints(t *testing.T) {
	r := newNewsletterRouter()

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "invalid email", path: "/api/v1/newsletter/subscribe", body: `{"email":"nope"}`, want: http.StatusBadRequest},
		{name: "missing email", path: "/api/v1/newsletter/subscribe", body: `{}`, want: http.StatusBadRequest},
		{name: "subscribe", path: "/api/v1/newsletter/subscribe", body: `{"email":"a@example.com"}`, want: http.StatusOK},
		{name: "unsubscribe", path: "/api/v1/newsletter/unsubscribe", body: `{"email":"a@example.com"}`, want: http.StatusOK},
		{name: "unsubscribe unknown", path: "/api/v1/newsletter/unsubscribe", body: `{"email":"ghost@example.com"}`, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		if resp := postJSON(r, tt.path, tt.body); resp.Code != tt.want {
			t.Fatalf("%s: expected %d, got %d: %s", tt.name, tt.want, resp.Code, resp.Body.String())
		}
	}
}
