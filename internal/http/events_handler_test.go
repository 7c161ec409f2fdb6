package http

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/slotbooking/internal/broadcast"
)

func TestParseTopics(t *testing.T) {
	tests := []struct {
		raw     string
		want    []string
		wantErr bool
	}{
		{raw: "", want: broadcast.Topics()},
		{raw: "slot.created", want: []string{broadcast.TopicSlotCreated}},
		{raw: " slot.expired , slot.statusUpdated ", want: []string{broadcast.TopicSlotExpired, broadcast.TopicSlotStatusUpdated}},
		{raw: "slot.created,slot.deleted", wantErr: true},
		{raw: ",", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := parseTopics(tc.raw)
			if tc.wantErr {
				if !errors.Is(err, errUnknownTopic) {
					t.Fatalf("expected unknown topic error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for _, topic := range tc.want {
				if _, ok := got[topic]; !ok {
					t.Fatalf("missing %s in %v", topic, got)
				}
			}
		})
	}
}

func TestEventStreamDeliversPublishedEvents(t *testing.T) {
	hub := broadcast.NewHub(nil)
	events := NewEventsHandler(hub, nil)
	t.Cleanup(func() { _ = events.Close() })

	server := httptest.NewServer(NewRouter(RouterConfig{Events: events, Auth: fixedPrincipal}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/events/"+broadcast.TopicSlotExpired, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if line, err := reader.ReadString('\n'); err != nil || !strings.HasPrefix(line, ": subscribed") {
		t.Fatalf("expected subscription comment, got %q (%v)", line, err)
	}

	// The handler itself listens on every topic for websocket fan-out, so the
	// stream is live once a second subscriber shows up.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(broadcast.TopicSlotExpired) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(ctx, broadcast.Event{Topic: broadcast.TopicSlotCreated, Slot: broadcast.SlotEvent{SlotID: "ignored"}})
	hub.Publish(ctx, broadcast.Event{Topic: broadcast.TopicSlotExpired, Slot: broadcast.SlotEvent{SlotID: "slot-007", Status: "booked"}})

	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(line)
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimSpace(line)
		}
	}

	if eventLine != "event: slot.expired" {
		t.Fatalf("unexpected event line %q", eventLine)
	}
	if !strings.Contains(dataLine, `"slotId":"slot-007"`) || !strings.Contains(dataLine, `"newStatus":"booked"`) {
		t.Fatalf("unexpected data line %q", dataLine)
	}
}

func TestEventStreamRejectsUnknownTopic(t *testing.T) {
	events := NewEventsHandler(broadcast.NewHub(nil), nil)
	t.Cleanup(func() { _ = events.Close() })
	router := NewRouter(RouterConfig{Events: events, Auth: fixedPrincipal})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/slot.deleted", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/ws?topics=slot.deleted", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for websocket with unknown topic, got %d", rec.Code)
	}
}
