package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"silent-auction/internal/domain"
	"silent-auction/pkg/logger"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestFeedReceivesPushedNotifications(t *testing.T) {
	manager := NewConnectionManager(logger.NewNop())
	srv := httptest.NewServer(NewHandler(manager, logger.NewNop()))
	defer srv.Close()

	bob := dial(t, srv, "?user_id=bob")
	carol := dial(t, srv, "?user_id=carol")
	require.Eventually(t, func() bool { return manager.ConnectionCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	amount := decimal.NewFromInt(150)
	manager.Push(context.Background(), &domain.Notification{
		ID: "n1", UserID: "bob", ItemID: "item-1", Type: domain.NotificationOutbid,
		Message: "outbid", BidAmount: &amount, CreatedAt: time.Now(),
	})

	var msg notificationMessage
	bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, bob.ReadJSON(&msg))
	require.Equal(t, "notification", msg.Type)
	require.Equal(t, "n1", msg.Notification.ID)
	require.Equal(t, domain.NotificationOutbid, msg.Notification.Type)
	require.True(t, msg.Notification.BidAmount.Equal(amount))

	// carol got nothing; her next frame is the pong
	require.NoError(t, carol.WriteJSON(map[string]string{"type": "ping"}))
	var pong map[string]string
	carol.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, carol.ReadJSON(&pong))
	require.Equal(t, "pong", pong["type"])
}

func TestFeedUnregistersOnDisconnect(t *testing.T) {
	manager := NewConnectionManager(logger.NewNop())
	srv := httptest.NewServer(NewHandler(manager, logger.NewNop()))
	defer srv.Close()

	conn := dial(t, srv, "?user_id=bob")
	require.Eventually(t, func() bool { return manager.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return manager.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.Empty(t, manager.GetConnectionsForUser("bob"))
}

func TestFeedRequiresUser(t *testing.T) {
	srv := httptest.NewServer(NewHandler(NewConnectionManager(logger.NewNop()), logger.NewNop()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
