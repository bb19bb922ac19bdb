package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/beatwatch/beatwatch/pkg/middleware"
)

type fakeMessenger struct {
	sent []string
}

func (f *fakeMessenger) SendText(ctx context.Context, userID, text string) error {
	f.sent = append(f.sent, userID+":"+text)
	return nil
}

func newAdminRouter(msgs Messenger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1", middleware.AuthMiddleware(testSecret))
	NewAdminHandler("owner-1", msgs).Register(api)
	return r
}

func TestAdminMessageOwnerOnly(t *testing.T) {
	msgs := &fakeMessenger{}
	r := newAdminRouter(msgs)

	w := doJSON(r, http.MethodPost, "/api/v1/admin/message", token(t, "user1"), `{"user":"u","text":"hi"}`)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, msgs.sent)

	w = doJSON(r, http.MethodPost, "/api/v1/admin/message", token(t, "owner-1"), `{"user":"u","text":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"u:hi"}, msgs.sent)
}

func TestAdminMessageValidation(t *testing.T) {
	r := newAdminRouter(&fakeMessenger{})
	w := doJSON(r, http.MethodPost, "/api/v1/admin/message", token(t, "owner-1"), `{"user":"u"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
