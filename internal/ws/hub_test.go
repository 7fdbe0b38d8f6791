package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/tradehub-backend/internal/engine/escrow"
	"github.com/ignatzorin/tradehub-backend/internal/logger"
	"github.com/ignatzorin/tradehub-backend/internal/service"
)

// startHub поднимает хаб и тестовый сервер, который подключает каждого клиента как companyID из query.
func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger.Discard())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.MustParse(r.URL.Query().Get("company"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(conn, hub, id).Run()
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, companyID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?company=" + companyID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitConnections(t *testing.T, hub *Hub, id uuid.UUID, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Connections(id) == n }, time.Second, 10*time.Millisecond)
}

func TestEscrowNotifier_DeliversToBothParties(t *testing.T) {
	hub, srv := startHub(t)
	buyer, seller, outsider := uuid.New(), uuid.New(), uuid.New()

	buyerConn := dial(t, srv, buyer)
	sellerConn := dial(t, srv, seller)
	dial(t, srv, outsider)
	waitConnections(t, hub, buyer, 1)
	waitConnections(t, hub, seller, 1)
	waitConnections(t, hub, outsider, 1)

	change := service.EscrowStatusChange{
		OrderID:         uuid.New(),
		BuyerID:         buyer,
		SellerID:        seller,
		From:            escrow.StatusLocked,
		To:              escrow.StatusFunded,
		UnlockedPercent: 50,
	}
	NewEscrowNotifier(hub).EscrowStatusChanged(context.Background(), change)

	for _, conn := range []*websocket.Conn{buyerConn, sellerConn} {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var got struct {
			Type string `json:"type"`
			Data struct {
				OrderID         uuid.UUID `json:"order_id"`
				To              string    `json:"to"`
				UnlockedPercent int       `json:"unlocked_percent"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, EventEscrowStatusChanged, got.Type)
		assert.Equal(t, change.OrderID, got.Data.OrderID)
		assert.Equal(t, "funded", got.Data.To)
		assert.Equal(t, 50, got.Data.UnlockedPercent)
	}
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, srv := startHub(t)
	id := uuid.New()

	conn := dial(t, srv, id)
	waitConnections(t, hub, id, 1)

	require.NoError(t, conn.Close())
	waitConnections(t, hub, id, 0)
}

func TestHub_SendAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger.Discard())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	assert.Error(t, hub.SendToCompany(uuid.New(), "ping", nil))
}
