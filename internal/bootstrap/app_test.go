package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"contract-backend/internal/extractor"
	"contract-backend/internal/notifications"
	"contract-backend/internal/shared/auth"
	"contract-backend/internal/shared/config"
)

const testPDF = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"

type outbox struct {
	mu   sync.Mutex
	msgs []notifications.Message
}

func (o *outbox) Send(ctx context.Context, msg notifications.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) recipients() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.msgs))
	for _, m := range o.msgs {
		out = append(out, m.To)
	}
	return out
}

func newTestApp(t *testing.T) (*App, *outbox) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENV", "dev")

	box := &outbox{}
	app, err := Build(context.Background(), config.Config{
		Env:               "dev",
		ObjectStoreType:   "local",
		LocalStoreDir:     t.TempDir(),
		InternalAPIToken:  "ops-token",
		ExtractorProvider: "none",
		ExtractorTimeout:  5 * time.Second,
		TransportTimeout:  time.Second,
		SweepBatchSize:    100,
		AppBaseURL:        "https://app.example.com",
	},
		WithExtractor(extractor.Func(func(ctx context.Context, in extractor.Input) (map[string]any, error) {
			return map[string]any{"summary": "standard lease", "parties": []any{"Landlord", "Tenant"}}, nil
		})),
		WithTransport(box),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, box
}

func bearer(t *testing.T, sub, email string) string {
	t.Helper()
	token, err := auth.SignJWT(auth.Claims{
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub},
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func uploadRequest(t *testing.T, authHeader string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "lease.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte(testPDF))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", authHeader)
	return req
}

func serve(app *App, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	return resp
}

func TestUploadAnalyzeAndNotifyEndToEnd(t *testing.T) {
	app, box := newTestApp(t)
	owner := bearer(t, "user-1", "owner@example.com")

	resp := serve(app, uploadRequest(t, owner))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var created struct {
		ContractID string `json:"contractId"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	require.NotEmpty(t, created.ContractID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts/"+created.ContractID, nil)
	req.Header.Set("Authorization", owner)
	resp = serve(app, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"status":"analyzed"`)
	require.Contains(t, resp.Body.String(), "standard lease")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/contracts/"+created.ContractID, nil)
	req.Header.Set("Authorization", bearer(t, "user-2", "other@example.com"))
	require.Equal(t, http.StatusNotFound, serve(app, req).Code)

	// nothing is sent until a sweep runs
	require.Empty(t, box.recipients())

	req = httptest.NewRequest(http.MethodPost, "/api/v1/internal/process-notifications", nil)
	req.Header.Set("X-Internal-Token", "ops-token")
	resp = serve(app, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"sent":1`)
	require.Equal(t, []string{"owner@example.com"}, box.recipients())

	resp = serve(app, req)
	require.Contains(t, resp.Body.String(), `"sent":0`)
	require.Len(t, box.recipients(), 1)
}

func TestDashboardStatsEndToEnd(t *testing.T) {
	app, _ := newTestApp(t)
	owner := bearer(t, "user-1", "")

	require.Equal(t, http.StatusCreated, serve(app, uploadRequest(t, owner)).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stats", nil)
	req.Header.Set("Authorization", owner)
	resp := serve(app, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"total":1,"analyzed":1,"pending":0,"failed":0}`, resp.Body.String())
}

func TestNewsletterConfirmationGoesThroughSweep(t *testing.T) {
	app, box := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/newsletter/subscribe", strings.NewReader(`{"email":"reader@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusOK, serve(app, req).Code)

	res, err := app.Dispatcher.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Sent)
	require.Equal(t, []string{"reader@example.com"}, box.recipients())
}

func TestAccessControl(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		want   int
	}{
		{name: "health is public", method: http.MethodGet, path: "/api/v1/health", want: http.StatusOK},
		{name: "metrics is public", method: http.MethodGet, path: "/metrics", want: http.StatusOK},
		{name: "contracts need identity", method: http.MethodGet, path: "/api/v1/contracts", want: http.StatusUnauthorized},
		{name: "guest allowed in dev", method: http.MethodGet, path: "/api/v1/contracts", header: map[string]string{"X-Guest-Id": "g1"}, want: http.StatusOK},
		{name: "sweep needs internal token", method: http.MethodPost, path: "/api/v1/internal/process-notifications", want: http.StatusUnauthorized},
		{name: "wrong internal token", method: http.MethodPost, path: "/api/v1/internal/process-notifications", header: map[string]string{"X-Internal-Token": "nope"}, want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, serve(app, req).Code)
		})
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	_, err := Build(context.Background(), config.Config{Env: "production", LocalStoreDir: t.TempDir()})
	require.Error(t, err)
}

func TestBuildRequiresS3Settings(t *testing.T) {
	_, err := Build(context.Background(), config.Config{Env: "dev", ObjectStoreType: "s3"})
	require.Error(t, err)
}
