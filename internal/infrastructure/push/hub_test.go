package push

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"LineSupervisor/internal/domain"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial hub: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.RLock()
		n := len(h.clients)
		h.mu.RUnlock()
		if n == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients", want)
}

func TestHubBroadcastsAnomaly(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	conn := dialHub(t, h)
	waitForClients(t, h, 1)

	a := domain.Anomaly{ID: 12, PartID: "P-9", EventID: 44, Severity: domain.SeverityCritical}
	if err := h.AnomalyDetected(context.Background(), a); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}

	var env struct {
		ID   string         `json:"id"`
		Kind string         `json:"kind"`
		Data domain.Anomaly `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Kind != "anomaly_detected" {
		t.Fatalf("unexpected kind: %s", env.Kind)
	}
	if env.ID == "" {
		t.Fatalf("envelope must carry a correlation id")
	}
	if env.Data.PartID != "P-9" || env.Data.Severity != domain.SeverityCritical {
		t.Fatalf("unexpected payload: %s", raw)
	}
}

func TestHubBroadcastsPartCompletion(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	conn := dialHub(t, h)
	waitForClients(t, h, 1)

	p := domain.Part{ID: 1, ExternalID: "P-9", Status: domain.PartFinished}
	if err := h.PartCompleted(context.Background(), p); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !strings.Contains(string(raw), `"part_completed"`) {
		t.Fatalf("unexpected frame: %s", raw)
	}
}

func TestHubBroadcastWithoutClients(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	if err := h.AnomalyDetected(context.Background(), domain.Anomaly{}); err != nil {
		t.Fatalf("broadcast with no clients must succeed: %v", err)
	}
}

func TestHubDropsClosedClient(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	conn := dialHub(t, h)
	waitForClients(t, h, 1)

	conn.Close()
	waitForClients(t, h, 0)
}
