package httpapi

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"linoslms.org/internal/session"
)

// The stream handler sits behind the logging and metrics wrappers, so
// this test goes through the fully assembled Handler() chain.
func TestNotificationStreamDeliversEvents(t *testing.T) {
	api := newTestAPI(t)
	_, auth := api.login("admin@linoslms.com", "admin123")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api.baseURL+"/v1/notifications/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", auth["Authorization"])

	resp, err := api.client.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open stream: expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	api.notices.Add("Specimen ready for processing", session.NoticeInfo, time.Minute)

	var event, data string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if rest, ok := strings.CutPrefix(line, "event: "); ok {
			event = rest
		}
		if rest, ok := strings.CutPrefix(line, "data: "); ok {
			data = rest
			break
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if event != string(session.EventAdded) {
		t.Fatalf("event = %q, want %q", event, session.EventAdded)
	}
	if !strings.Contains(data, "Specimen ready for processing") {
		t.Fatalf("payload missing message: %s", data)
	}
}

func TestNotificationStreamRequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/notifications/stream", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
