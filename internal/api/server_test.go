package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cypher-activity/internal/chainhook"
	"cypher-activity/internal/domain"
	"cypher-activity/internal/ingest"
	"cypher-activity/internal/storage/memory"
)

const (
	testSecret    = "s3cret"
	cbtcToken     = "SP1.cbtc-token::cbtc"
	collectibles  = "SP1.cypher-collectibles::cypher-nft"
	profilesCntrt = "SP1.cypher-profiles"
)

func newTestServer(store *memory.ActivityStore) http.Handler {
	processor := ingest.NewProcessor(ingest.Options{
		Store: store,
		Normalizer: chainhook.NewNormalizer(chainhook.Contracts{
			Profiles:     profilesCntrt,
			CbtcToken:    cbtcToken,
			Collectibles: collectibles,
		}),
	})
	return New(Options{
		Store:     store,
		Processor: processor,
		Secret:    testSecret,
	}).Handler()
}

func webhookBody(height int64, events string) string {
	return fmt.Sprintf(`{"apply": [{
		"block": {"block_height": %d, "block_hash": "0xhash", "burn_block_time": 1700000000},
		"transactions": [{
			"tx": {"txid": "0xtx", "block_height": %d, "block_hash": "0xhash", "burn_block_time": 1700000000},
			"events": [%s]
		}]
	}]}`, height, height, events)
}

func postWebhook(h http.Handler, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/chainhook", strings.NewReader(body))
	if secret != "" {
		req.Header.Set("x-chainhook-secret", secret)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWebhook_SecretMismatch(t *testing.T) {
	store := memory.NewActivityStore()
	h := newTestServer(store)

	mint := fmt.Sprintf(`{"type": "ft_mint", "asset_identifier": %q, "recipient": "SP123", "amount": "1"}`, cbtcToken)

	for _, secret := range []string{"", "wrong"} {
		w := postWebhook(h, secret, webhookBody(100, mint))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("secret %q: expected 401, got %d", secret, w.Code)
		}
		if body := strings.TrimSpace(w.Body.String()); body != `{"error":"Unauthorized"}` {
			t.Errorf("secret %q: unexpected body %s", secret, body)
		}
	}

	stored, _ := store.ListRecent(context.Background(), "", 50)
	if len(stored) != 0 {
		t.Errorf("Unauthorized deliveries must not write, got %d events", len(stored))
	}
}

func TestWebhook_InvalidPayloadIs500(t *testing.T) {
	store := memory.NewActivityStore()
	h := newTestServer(store)

	for _, body := range []string{
		`not json`,
		`{"apply": [{"transactions": []}]}`,
	} {
		w := postWebhook(h, testSecret, body)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("body %q: expected 500, got %d", body, w.Code)
		}
		if resp := strings.TrimSpace(w.Body.String()); resp != `{"error":"Internal server error"}` {
			t.Errorf("body %q: unexpected response %s", body, resp)
		}
	}

	stored, _ := store.ListRecent(context.Background(), "", 50)
	if len(stored) != 0 {
		t.Errorf("Invalid deliveries must not write, got %d events", len(stored))
	}
}

func TestWebhook_ApplyThenRollbackScenario(t *testing.T) {
	store := memory.NewActivityStore()
	h := newTestServer(store)

	mint := fmt.Sprintf(`{"type": "ft_mint", "asset_identifier": %q, "recipient": "SP123", "amount": "1000"}`, cbtcToken)

	w := postWebhook(h, testSecret, webhookBody(100, mint))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"status":"ok"}` {
		t.Errorf("Unexpected response body: %s", body)
	}

	// Feed shows the new record.
	req := httptest.NewRequest(http.MethodGet, "/api/activity?address=SP123", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("activity: expected 200, got %d", rec.Code)
	}

	var events []domain.ActivityEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("Decode activity response: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.EventType != domain.EventTypeCbtcMint || ev.To != "SP123" || ev.Rollback {
		t.Errorf("Event mismatch: %+v", ev)
	}
	if len(ev.AddressInvolved) != 1 || ev.AddressInvolved[0] != "SP123" {
		t.Errorf("addressInvolved mismatch: %v", ev.AddressInvolved)
	}

	// Roll the same block back; the record leaves the feed.
	rollback := strings.Replace(webhookBody(100, ""), `"apply"`, `"rollback"`, 1)
	w = postWebhook(h, testSecret, rollback)
	if w.Code != http.StatusOK {
		t.Fatalf("rollback: expected 200, got %d", w.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/activity?address=SP123", nil))
	if body := strings.TrimSpace(rec.Body.String()); body != `[]` {
		t.Errorf("Expected empty feed after rollback, got %s", body)
	}
}

func TestActivity_LimitAndDefault(t *testing.T) {
	store := memory.NewActivityStore()
	h := newTestServer(store)

	now := time.Now().UTC()
	var batch []*domain.ActivityEvent
	for i := 0; i < 60; i++ {
		batch = append(batch, &domain.ActivityEvent{
			TxID:            fmt.Sprintf("tx%d", i),
			BlockHeight:     100,
			BlockHash:       "0xhash",
			Timestamp:       now.Add(time.Duration(i) * time.Second),
			ContractID:      cbtcToken,
			EventType:       domain.EventTypeCbtcMint,
			AddressInvolved: []string{"SP1"},
		})
	}
	if err := store.InsertBulk(context.Background(), batch); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 50},          // default
		{"?limit=5", 5},   // explicit
		{"?limit=abc", 50}, // unparseable falls back
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/activity"+tt.query, nil))

		var events []domain.ActivityEvent
		if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
			t.Fatalf("query %q: decode: %v", tt.query, err)
		}
		if len(events) != tt.want {
			t.Errorf("query %q: expected %d events, got %d", tt.query, tt.want, len(events))
		}
	}
}

func TestActivitySummary(t *testing.T) {
	store := memory.NewActivityStore()
	h := newTestServer(store)

	now := time.Now().UTC()
	_ = store.InsertBulk(context.Background(), []*domain.ActivityEvent{
		{TxID: "t1", BlockHeight: 1, Timestamp: now.Add(-time.Hour), EventType: domain.EventTypeCbtcTransfer, AddressInvolved: []string{"SP1", "SP2"}},
		{TxID: "t2", BlockHeight: 1, Timestamp: now.Add(-time.Hour), EventType: domain.EventTypeProfileUpdated, AddressInvolved: []string{"SP1"}},
		{TxID: "t3", BlockHeight: 1, Timestamp: now.Add(-10 * 24 * time.Hour), EventType: domain.EventTypeCnftMint, AddressInvolved: []string{"SP1"}},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/activity/summary/SP1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var summary domain.ActivitySummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("Decode summary: %v", err)
	}
	want := domain.ActivitySummary{CbtcTransfers: 1, ProfileChanges: 1}
	if summary != want {
		t.Errorf("Summary mismatch: got %+v, want %+v", summary, want)
	}
}

// failingPingStore reports an unreachable store.
type failingPingStore struct {
	*memory.ActivityStore
}

func (s *failingPingStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

func TestHealth(t *testing.T) {
	store := memory.NewActivityStore()
	h := newTestServer(store)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"status":"healthy","mongodb":"ok"}` {
		t.Errorf("Unexpected health body: %s", body)
	}
}

func TestHealth_StoreDown(t *testing.T) {
	h := New(Options{
		Store:  &failingPingStore{memory.NewActivityStore()},
		Secret: testSecret,
	}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	// Unreachable store is data, not an error response.
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"status":"unhealthy","mongodb":"error"}` {
		t.Errorf("Unexpected health body: %s", body)
	}
}
