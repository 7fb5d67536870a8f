package httptransport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	attachmenthandler "disposisi/internal/attachment/handler"
	attachmentservice "disposisi/internal/attachment/service"
	attachmentstore "disposisi/internal/attachment/store"
	"disposisi/internal/auth/directory"
	authhandler "disposisi/internal/auth/handler"
	"disposisi/internal/auth/lockout"
	"disposisi/internal/auth/secrets"
	authservice "disposisi/internal/auth/service"
	"disposisi/internal/auth/token"
	"disposisi/internal/platform/metrics"
	workflowhandler "disposisi/internal/workflow/handler"
	workflowservice "disposisi/internal/workflow/service"
	workflowstore "disposisi/internal/workflow/store"
	"disposisi/pkg/testutil"
)

const testPassword = "rahasia"

func newTestRouter(t *testing.T, health map[string]HealthCheck) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()

	dir := directory.Builtin()
	_, err := dir.ProvisionMissing(func() (string, error) {
		return secrets.HashWithCost(testPassword, bcrypt.MinCost)
	})
	require.NoError(t, err)

	tokens := token.NewJWTService("test-key", "disposisi-test")
	locks, err := lockout.New(lockout.NewInMemoryStore())
	require.NoError(t, err)
	auth := authservice.New(dir, tokens, time.Hour, authservice.WithLockout(locks))
	workflow := workflowservice.New(workflowstore.NewInMemory(), dir)
	attachments := attachmentservice.New(attachmentstore.NewInMemory(), 1<<20)

	return NewRouter(Deps{
		Logger:      logger,
		Tokens:      tokens,
		Observer:    metrics.New(reg),
		Gatherer:    reg,
		Health:      health,
		Auth:        authhandler.New(auth, logger),
		Workflow:    workflowhandler.New(workflow, logger, true),
		Attachments: attachmenthandler.New(attachments, 1<<20, logger),
	})
}

func login(t *testing.T, router http.Handler, username string) string {
	t.Helper()
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login",
		map[string]string{"username": username, "password": testPassword}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := testutil.UnmarshalResponse[struct {
		AccessToken string `json:"access_token"`
	}](t, rr)
	return body.AccessToken
}

func TestRouterWorkflow(t *testing.T) {
	router := newTestRouter(t, nil)

	testutil.Given(t, "logged-in TU, coordinator and staff", func(t *testing.T) {
		tuToken := login(t, router, "admin")
		coordToken := login(t, router, "suwati")
		staffToken := login(t, router, "ahmad.fauzi")

		var recordID string

		testutil.When(t, "the TU creates and forwards a record", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/records", map[string]any{
				"letter_number": "SPT/001/2024", "subject": "Rapat Koordinasi Bulanan",
				"origin": "Kepala Dinas", "sender": "Kepala Dinas", "confidentiality": []string{"Penting"},
			}), tuToken))
			require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
			created := testutil.UnmarshalResponse[map[string]any](t, rr)
			recordID = (*created)["id"].(string)

			rr = testutil.DoRequest(router, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost,
				"/records/"+recordID+"/transitions",
				map[string]any{"action": "forward_to_coordinator", "coordinators": []string{"Suwati, S.h"}}), tuToken))
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			testutil.Then(t, "the coordinator sees it on the dashboard", func(t *testing.T) {
				rr := testutil.DoRequest(router, testutil.WithBearer(
					testutil.NewJSONRequest(t, http.MethodGet, "/records", nil), coordToken))
				require.Equal(t, http.StatusOK, rr.Code)
				list := testutil.UnmarshalResponse[struct {
					Count int `json:"count"`
				}](t, rr)
				assert.Equal(t, 1, list.Count)
			})
		})

		testutil.When(t, "staff try intake routes", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/records",
				map[string]any{"letter_number": "X/1"}), staffToken))

			testutil.Then(t, "the role gate rejects them", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "unauthorized")
			})
		})

		testutil.When(t, "staff try to approve before their turn", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost,
				"/records/"+recordID+"/transitions", map[string]any{"action": "approve"}), staffToken))

			testutil.Then(t, "the transition is illegal", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusConflict, "illegal_transition")
			})
		})

		testutil.When(t, "anyone looks up the letter number", func(t *testing.T) {
			rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/public/records?letter_number=spt/001", nil))

			testutil.Then(t, "the redacted record is returned without a token", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
				assert.Contains(t, rr.Body.String(), `"status":"sent_to_coordinator"`)
				assert.NotContains(t, rr.Body.String(), "assigned_coordinators")
				assert.NotContains(t, rr.Body.String(), "Suwati")
			})
		})
	})
}

func TestRouterAuthentication(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/records", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthenticated")

	rr = testutil.DoRequest(router, testutil.WithBearer(httptest.NewRequest(http.MethodGet, "/records", nil), "garbage"))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthenticated")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login",
		map[string]string{"username": "admin", "password": "wrong"}))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthenticated")
}

func TestRouterLockoutIgnoresForgedForwardingHeaders(t *testing.T) {
	router := newTestRouter(t, nil)

	var codes []int
	for i := range 7 {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/login",
			map[string]string{"username": "admin", "password": "wrong"})
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i+1))
		codes = append(codes, testutil.DoRequest(router, req).Code)
	}

	assert.Equal(t, []int{401, 401, 401, 401, 401, 429, 429}, codes)
}

func TestRouterAttachmentUpload(t *testing.T) {
	router := newTestRouter(t, nil)
	tuToken := login(t, router, "admin")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "surat.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4 isi surat"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := testutil.DoRequest(router, testutil.WithBearer(req, tuToken))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	att := testutil.UnmarshalResponse[struct {
		Name    string `json:"name"`
		Locator string `json:"locator"`
	}](t, rr)
	assert.Equal(t, "surat.pdf", att.Name)

	rr = testutil.DoRequest(router, testutil.WithBearer(httptest.NewRequest(http.MethodGet, "/attachments/"+att.Locator, nil), tuToken))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "%PDF-1.4 isi surat", rr.Body.String())
}

func TestRouterHealthAndMetrics(t *testing.T) {
	testutil.Given(t, "healthy dependencies", func(t *testing.T) {
		router := newTestRouter(t, map[string]HealthCheck{
			"store": func(context.Context) error { return nil },
		})
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"status":"ok"`)

		rr = testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "disposisi_http_requests_total")
	})

	testutil.Given(t, "an unreachable dependency", func(t *testing.T) {
		router := newTestRouter(t, map[string]HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		})
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "connection refused")
	})
}

func TestRouterUnknownRoute(t *testing.T) {
	router := newTestRouter(t, nil)
	rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/nope", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}
