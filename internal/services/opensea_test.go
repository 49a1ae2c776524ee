package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
)

const testWallet = "0x00000000000000000000000000000000000000aa"

func newTestOpenSea(t *testing.T, handler http.HandlerFunc, pageSize int) *OpenSeaService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOpenSeaService(OpenSeaConfig{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		PageSize:      pageSize,
		AssetPageSize: pageSize,
	})
}

func fakeEvents(n int) []models.MarketplaceEvent {
	events := make([]models.MarketplaceEvent, n)
	for i := range events {
		events[i] = models.MarketplaceEvent{
			ID:        int64(i + 1),
			EventType: models.EventTypeTransfer,
			Asset: &models.Asset{
				TokenID:    strconv.Itoa(i),
				Permalink:  fmt.Sprintf("https://opensea.io/assets/0xabc/%d", i),
				Collection: models.CollectionRef{Slug: "cats", Name: "Cats"},
			},
			CreatedDate: "2021-09-01T12:00:00",
		}
	}
	return events
}

// pagedEvents serves events the way OpenSea does, honoring offset and limit
func pagedEvents(events []models.MarketplaceEvent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := offset + limit
		if end > len(events) {
			end = len(events)
		}
		page := []models.MarketplaceEvent{}
		if offset < len(events) {
			page = events[offset:end]
		}
		_ = json.NewEncoder(w).Encode(models.EventsResponse{AssetEvents: page})
	}
}

func TestNewOpenSeaServiceDefaults(t *testing.T) {
	svc := NewOpenSeaService(OpenSeaConfig{BaseURL: "https://example.com/api/v1/"})
	if svc.pageSize != 300 {
		t.Errorf("Expected default page size 300, got %d", svc.pageSize)
	}
	if svc.assetPageSize != 50 {
		t.Errorf("Expected default asset page size 50, got %d", svc.assetPageSize)
	}
	if svc.baseURL != "https://example.com/api/v1" {
		t.Errorf("Expected trailing slash trimmed, got %s", svc.baseURL)
	}
}

func TestFetchAllEventsPaginates(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		pageSize  int
		wantPages int
	}{
		{"short first page", 3, 5, 1},
		{"several pages", 12, 5, 3},
		{"exact multiple needs an empty page", 10, 5, 3},
		{"no history", 0, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestOpenSea(t, pagedEvents(fakeEvents(tt.total)), tt.pageSize)

			result, err := svc.FetchAllEvents(context.Background(), testWallet)
			if err != nil {
				t.Fatalf("FetchAllEvents() error = %v", err)
			}
			if len(result.Events) != tt.total {
				t.Errorf("FetchAllEvents() returned %d events, want %d", len(result.Events), tt.total)
			}
			if result.Pages != tt.wantPages {
				t.Errorf("FetchAllEvents() read %d pages, want %d", result.Pages, tt.wantPages)
			}
			if result.Status != FetchComplete {
				t.Errorf("FetchAllEvents() status = %s, want %s", result.Status, FetchComplete)
			}
			for i, e := range result.Events {
				if e.ID != int64(i+1) {
					t.Fatalf("event %d has id %d, order not preserved", i, e.ID)
				}
			}
		})
	}
}

func TestFetchAllEventsSendsQuery(t *testing.T) {
	var gotKey, gotAccount, gotOnlyOpenSea string
	svc := newTestOpenSea(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			t.Errorf("Expected path /events, got %s", r.URL.Path)
		}
		gotKey = r.Header.Get("X-API-KEY")
		gotAccount = r.URL.Query().Get("account_address")
		gotOnlyOpenSea = r.URL.Query().Get("only_opensea")
		_, _ = w.Write([]byte(`{"asset_events": []}`))
	}, 5)

	if _, err := svc.FetchAllEvents(context.Background(), testWallet); err != nil {
		t.Fatalf("FetchAllEvents() error = %v", err)
	}
	if gotKey != "test-key" {
		t.Errorf("Expected X-API-KEY test-key, got %q", gotKey)
	}
	if gotAccount != testWallet {
		t.Errorf("Expected account_address %s, got %s", testWallet, gotAccount)
	}
	if gotOnlyOpenSea != "false" {
		t.Errorf("Expected only_opensea=false, got %s", gotOnlyOpenSea)
	}
}

func TestFetchAllEventsMalformedPageStopsQuietly(t *testing.T) {
	events := fakeEvents(5)
	var calls int32
	svc := newTestOpenSea(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_ = json.NewEncoder(w).Encode(models.EventsResponse{AssetEvents: events})
			return
		}
		_, _ = w.Write([]byte(`{"success": false}`))
	}, 5)

	result, err := svc.FetchAllEvents(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("Expected malformed page to stop without error, got %v", err)
	}
	if len(result.Events) != 5 {
		t.Errorf("Expected 5 accumulated events, got %d", len(result.Events))
	}
	if result.Status != FetchPartial {
		t.Errorf("Expected status %s, got %s", FetchPartial, result.Status)
	}
}

func TestFetchAllEventsSkipsMalformedEvent(t *testing.T) {
	var mu sync.Mutex
	var offsets []string
	svc := newTestOpenSea(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		offsets = append(offsets, r.URL.Query().Get("offset"))
		mu.Unlock()
		if r.URL.Query().Get("offset") == "0" {
			_, _ = w.Write([]byte(`{"asset_events": [
				{"id": 1, "event_type": "transfer"},
				{"id": 2, "event_type": "successful", "payment_token": {"decimals": "18"}},
				{"id": 3, "event_type": "transfer"}
			]}`))
			return
		}
		_, _ = w.Write([]byte(`{"asset_events": [{"id": 4, "event_type": "transfer"}]}`))
	}, 3)

	result, err := svc.FetchAllEvents(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Status != FetchComplete {
		t.Errorf("Expected status %s, got %s", FetchComplete, result.Status)
	}
	if result.Pages != 2 {
		t.Errorf("Expected 2 pages, got %d", result.Pages)
	}
	mu.Lock()
	if len(offsets) != 2 || offsets[1] != "3" {
		t.Errorf("Expected second page at offset 3, got %v", offsets)
	}
	mu.Unlock()

	var ids []int64
	for _, e := range result.Events {
		ids = append(ids, e.ID)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 3 || ids[2] != 4 {
		t.Errorf("Expected events [1 3 4], got %v", ids)
	}
}

func TestFetchAllEventsThrottled(t *testing.T) {
	events := fakeEvents(5)
	var calls int32
	svc := newTestOpenSea(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_ = json.NewEncoder(w).Encode(models.EventsResponse{AssetEvents: events})
			return
		}
		_, _ = w.Write([]byte(`{"detail": "Request was throttled. Expected available in 2 seconds."}`))
	}, 5)

	result, err := svc.FetchAllEvents(context.Background(), testWallet)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Expected ErrUpstreamUnavailable, got %v", err)
	}
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("Expected *UpstreamError, got %T", err)
	}
	if !upstreamErr.Throttled() {
		t.Errorf("Expected throttled error, got detail %q", upstreamErr.Detail)
	}
	if len(result.Events) != 5 || result.Status != FetchPartial {
		t.Errorf("Expected 5 events with status partial, got %d with %s", len(result.Events), result.Status)
	}
}

func TestFetchAllEventsUpstreamStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"detail": "Request was throttled."}`, "Request was throttled."},
		{"server error", http.StatusInternalServerError, `oops`, "oops"},
		{"unauthorized", http.StatusUnauthorized, `{"detail": "Invalid API key"}`, "Invalid API key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestOpenSea(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, 5)

			result, err := svc.FetchAllEvents(context.Background(), testWallet)
			var upstreamErr *UpstreamError
			if !errors.As(err, &upstreamErr) {
				t.Fatalf("Expected *UpstreamError, got %v", err)
			}
			if upstreamErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", upstreamErr.StatusCode, tt.status)
			}
			if upstreamErr.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", upstreamErr.Detail, tt.wantDetail)
			}
			if result.Status != FetchFailed || len(result.Events) != 0 {
				t.Errorf("Expected failed fetch with no events, got %s with %d", result.Status, len(result.Events))
			}
		})
	}
}

func TestFetchAllEventsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	svc := NewOpenSeaService(OpenSeaConfig{BaseURL: server.URL})
	result, err := svc.FetchAllEvents(context.Background(), testWallet)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Expected ErrUpstreamUnavailable, got %v", err)
	}
	if result.Status != FetchFailed {
		t.Errorf("Expected status %s, got %s", FetchFailed, result.Status)
	}
}

func TestFetchAllEventsCanceled(t *testing.T) {
	svc := newTestOpenSea(t, pagedEvents(fakeEvents(3)), 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.FetchAllEvents(ctx, testWallet)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrUpstreamUnavailable) {
		t.Error("Cancellation should not be reported as an upstream failure")
	}
}

func TestFetchAllEventsKeepsBundles(t *testing.T) {
	svc := newTestOpenSea(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"asset_events": [{
			"id": 7,
			"event_type": "successful",
			"asset": null,
			"asset_bundle": {"name": "pair", "assets": [
				{"token_id": "1", "permalink": "https://opensea.io/assets/0xabc/1", "collection": {"slug": "cats"}},
				{"token_id": "2", "permalink": "https://opensea.io/assets/0xabc/2", "collection": {"slug": "cats"}}
			]},
			"seller": {"address": "0x00000000000000000000000000000000000000aa"},
			"winner_account": {"address": "0x00000000000000000000000000000000000000bb"},
			"total_price": "2000000000000000000",
			"payment_token": {"symbol": "ETH", "decimals": 18},
			"created_date": "2021-09-01T12:00:00.123456"
		}]}`))
	}, 5)

	result, err := svc.FetchAllEvents(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("FetchAllEvents() error = %v", err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("Expected 1 raw event, got %d", len(result.Events))
	}
	e := result.Events[0]
	if e.Asset != nil || e.AssetBundle == nil || len(e.AssetBundle.Assets) != 2 {
		t.Errorf("Expected bundle with 2 assets to be returned untouched, got %+v", e)
	}
	if !e.Seller.Is(testWallet) {
		t.Errorf("Expected seller %s, got %+v", testWallet, e.Seller)
	}
}

func TestFetchAllAssets(t *testing.T) {
	assets := make([]models.Asset, 7)
	for i := range assets {
		assets[i] = models.Asset{TokenID: strconv.Itoa(i), Collection: models.CollectionRef{Slug: "cats"}}
	}
	svc := newTestOpenSea(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assets" {
			t.Errorf("Expected path /assets, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("owner") != testWallet {
			t.Errorf("Expected owner %s, got %s", testWallet, r.URL.Query().Get("owner"))
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		end := offset + 3
		if end > len(assets) {
			end = len(assets)
		}
		_ = json.NewEncoder(w).Encode(models.AssetsResponse{Assets: assets[offset:end]})
	}, 3)

	result, err := svc.FetchAllAssets(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("FetchAllAssets() error = %v", err)
	}
	if len(result.Assets) != 7 || result.Pages != 3 {
		t.Errorf("Expected 7 assets over 3 pages, got %d over %d", len(result.Assets), result.Pages)
	}
}

func TestGetCollectionStats(t *testing.T) {
	svc := newTestOpenSea(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collection/cats/stats":
			_, _ = w.Write([]byte(`{"stats": {
				"one_day_volume": 12.5, "one_day_change": -0.25, "seven_day_volume": 80,
				"total_volume": 1000.5, "num_owners": 420, "total_supply": 1000,
				"market_cap": 2500, "floor_price": 2.5
			}}`))
		case "/collection/unlisted/stats":
			_, _ = w.Write([]byte(`{"stats": {"floor_price": null, "num_owners": 3}}`))
		default:
			http.NotFound(w, r)
		}
	}, 5)

	stats, err := svc.GetCollectionStats(context.Background(), "cats")
	if err != nil {
		t.Fatalf("GetCollectionStats() error = %v", err)
	}
	if stats.FloorPrice != 2.5 || stats.NumOwners != 420 || stats.OneDayChange != -0.25 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.StatsUpdatedAt == nil {
		t.Error("Expected StatsUpdatedAt to be set")
	}

	stats, err = svc.GetCollectionStats(context.Background(), "unlisted")
	if err != nil {
		t.Fatalf("GetCollectionStats() error = %v", err)
	}
	if stats.FloorPrice != 0 || stats.NumOwners != 3 {
		t.Errorf("Expected null floor to read as 0, got %+v", stats)
	}

	stats, err = svc.GetCollectionStats(context.Background(), "missing")
	if err != nil || stats != nil {
		t.Errorf("Expected nil, nil for unknown slug, got %+v, %v", stats, err)
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"0x00000000000000000000000000000000000000AA", testWallet, false},
		{"  0x00000000000000000000000000000000000000aa ", testWallet, false},
		{"00000000000000000000000000000000000000aa", "", true},
		{"0x123", "", true},
		{"0xzz000000000000000000000000000000000000aa", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeAddress(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidAddress) {
				t.Errorf("NormalizeAddress(%q) error = %v, want ErrInvalidAddress", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
