package monitoring

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordPrediction(OutcomeFor(200), 10*time.Millisecond)
	m.RecordPrediction(OutcomeFor(400), 2*time.Millisecond)
	m.RecordPrediction(OutcomeFor(500), 30*time.Millisecond)
	m.RecordPrediction(OutcomeFor(200), 6*time.Millisecond)

	snap := m.Snapshot()
	if snap.Predictions[OutcomeOK] != 2 || snap.Predictions[OutcomeClientError] != 1 || snap.Predictions[OutcomeServerError] != 1 {
		t.Fatalf("unexpected counters %v", snap.Predictions)
	}
	if snap.Latency.Count != 4 || snap.Latency.Min != 2*time.Millisecond || snap.Latency.Max != 30*time.Millisecond {
		t.Fatalf("unexpected latency %+v", snap.Latency)
	}
	if snap.Latency.Mean() != 12*time.Millisecond {
		t.Fatalf("unexpected mean %v", snap.Latency.Mean())
	}
}

func TestMetricsEmpty(t *testing.T) {
	snap := NewMetrics().Snapshot()
	if snap.Latency.Min != 0 || snap.Latency.Mean() != 0 {
		t.Fatalf("unexpected empty latency %+v", snap.Latency)
	}
	if _, ok := snap.Predictions[OutcomeOK]; !ok {
		t.Fatal("expected zero-valued counters to be present")
	}
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestHubPublish(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	waitForClients(t, hub, 1)

	if err := hub.Publish(PredictionEvent, map[string]float64{"predicted_tax": 10000}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != PredictionEvent || msg.ID == "" {
		t.Fatalf("unexpected message %+v", msg)
	}
	var payload map[string]float64
	if err := json.Unmarshal(msg.Data, &payload); err != nil || payload["predicted_tax"] != 10000 {
		t.Fatalf("unexpected payload %s: %v", msg.Data, err)
	}
}

func TestHubSubscriptions(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	waitForClients(t, hub, 1)

	if err := conn.WriteJSON(ClientMessage{Type: "subscribe", Topic: string(DatasetReloaded)}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// wait until the subscription is applied
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		var subscribed bool
		for c := range hub.clients {
			subscribed = !c.wants(PredictionEvent)
		}
		hub.mu.RUnlock()
		if subscribed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscription not applied")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(PredictionEvent, map[string]int{"n": 1})
	hub.Publish(DatasetReloaded, map[string]int{"rows": 9})

	msg := readMessage(t, conn)
	if msg.Type != DatasetReloaded {
		t.Fatalf("expected only dataset events, got %s", msg.Type)
	}
}

func TestHubStop(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	waitForClients(t, hub, 1)
	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to close after hub stop")
	}
}
