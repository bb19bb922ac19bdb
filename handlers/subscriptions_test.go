package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/beatwatch/beatwatch/internal/checker"
	"github.com/beatwatch/beatwatch/internal/subscription"
	"github.com/beatwatch/beatwatch/pkg/middleware"
)

const testSecret = "test-secret"

type stubRunner struct {
	err  error
	runs int
}

func (s *stubRunner) RunCycle(ctx context.Context) error {
	s.runs++
	return s.err
}

func newTestRouter(runner CheckRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := subscription.NewService(subscription.NewMemoryRepository())
	r := gin.New()
	api := r.Group("/api/v1", middleware.AuthMiddleware(testSecret))
	// no cooldown in handler tests; the limiter has its own tests
	noop := func(c *gin.Context) { c.Next() }
	NewSubscriptionHandler(svc, runner).Register(api, noop)
	return r
}

func token(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func doJSON(r *gin.Engine, method, path, tok, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubscriptionsCRUD(t *testing.T) {
	r := newTestRouter(&stubRunner{})
	tok := token(t, "user1")

	// add three subscriptions
	for _, body := range []string{
		`{"attribute":"Artist","value":" Sky "}`,
		`{"attribute":"status","value":"ranked"}`,
		`{"attribute":"creator","value":"mapper1"}`,
	} {
		w := doJSON(r, http.MethodPost, "/api/v1/subscriptions", tok, body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	// list in added order, normalized
	w := doJSON(r, http.MethodGet, "/api/v1/subscriptions", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []struct {
		Index     int    `json:"index"`
		Attribute string `json:"attribute"`
		Value     string `json:"value"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 3)
	require.Equal(t, "artist", list[0].Attribute)
	require.Equal(t, "sky", list[0].Value)
	require.Equal(t, "status", list[1].Attribute)

	// remove the middle one
	w = doJSON(r, http.MethodDelete, "/api/v1/subscriptions/1", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	var removed struct {
		Removed struct {
			Attribute string `json:"attribute"`
			Value     string `json:"value"`
		} `json:"removed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &removed))
	require.Equal(t, "status", removed.Removed.Attribute)

	// out-of-range index
	w = doJSON(r, http.MethodDelete, "/api/v1/subscriptions/5", tok, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	// remove all
	w = doJSON(r, http.MethodDelete, "/api/v1/subscriptions", tok, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(r, http.MethodGet, "/api/v1/subscriptions", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestAddUnknownAttribute(t *testing.T) {
	r := newTestRouter(&stubRunner{})
	w := doJSON(r, http.MethodPost, "/api/v1/subscriptions", token(t, "user1"), `{"attribute":"bpm","value":"180"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "attributes")
}

func TestRequiresAuth(t *testing.T) {
	r := newTestRouter(&stubRunner{})
	w := doJSON(r, http.MethodGet, "/api/v1/subscriptions", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForceCheck(t *testing.T) {
	runner := &stubRunner{}
	r := newTestRouter(runner)
	tok := token(t, "user1")

	w := doJSON(r, http.MethodPost, "/api/v1/check", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, runner.runs)

	runner.err = checker.ErrCheckInFlight
	w = doJSON(r, http.MethodPost, "/api/v1/check", tok, "")
	require.Equal(t, http.StatusConflict, w.Code)

	runner.err = checker.ErrCycleTimeout
	w = doJSON(r, http.MethodPost, "/api/v1/check", tok, "")
	require.Equal(t, http.StatusGatewayTimeout, w.Code)

	runner.err = errors.New("boom")
	w = doJSON(r, http.MethodPost, "/api/v1/check", tok, "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAttributesEndpoint(t *testing.T) {
	r := newTestRouter(&stubRunner{})
	w := doJSON(r, http.MethodGet, "/api/v1/attributes", token(t, "user1"), "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "artist")
}
