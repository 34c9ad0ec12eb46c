package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	server "resident_directory/internal/adapters/http_server"
	"resident_directory/internal/app"
	"resident_directory/internal/domain"
	"resident_directory/internal/phone"
)

type fakeSource struct {
	snap domain.Snapshot
	ok   bool
}

func (f *fakeSource) Current() (domain.Snapshot, bool) { return f.snap, f.ok }

type fakeRefresher struct {
	snap domain.Snapshot
	err  error
}

func (f *fakeRefresher) Refresh(ctx context.Context) (domain.Snapshot, error) { return f.snap, f.err }

func newHandler(src *fakeSource, ref *fakeRefresher) http.Handler {
	srv := server.New(time.Second)
	srv.MountHandlers(&server.Handlers{
		Q:         app.NewQueryService(src, nil, 0),
		Refresher: ref,
		Phone:     phone.New("91"),
		ChatText:  "Hello",
	})
	return srv.Mux()
}

func snapshot() domain.Snapshot {
	return domain.Snapshot{
		Version: "v1",
		Records: []domain.Resident{
			{ApartmentID: "B-102", Role: "Tenant", OccupantName: "Raj", Phone: "98765 43210", MemberCount: 2},
			{ApartmentID: "B-101", Role: "Owner", OccupantName: "Kiran Shah", Phone: "", WhatsApp: "+91 99099 00000", MemberCount: 3},
		},
		Emergency: domain.EmergencyContacts{President: "98250 11111"},
		FetchedAt: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
	}
}

func do(t *testing.T, h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestResidents_NotReady(t *testing.T) {
	h := newHandler(&fakeSource{}, &fakeRefresher{})
	rr := do(t, h, "GET", "/v1/residents", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type: %q", ct)
	}
}

func TestResidents_QueryAndLinks(t *testing.T) {
	h := newHandler(&fakeSource{snap: snapshot(), ok: true}, &fakeRefresher{})

	rr := do(t, h, "GET", "/v1/residents?sort=apartmentId", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var out struct {
		Version string `json:"version"`
		Count   int    `json:"count"`
		Items   []struct {
			ApartmentID string `json:"apartmentId"`
			TelLink     string `json:"telLink"`
			ChatLink    string `json:"chatLink"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Version != "v1" || out.Count != 2 || out.Items[0].ApartmentID != "B-101" {
		t.Fatalf("unexpected body: %+v", out)
	}
	// no phone: placeholder call link, chat falls back to WhatsApp column
	if out.Items[0].TelLink != phone.Placeholder || out.Items[0].ChatLink != "https://wa.me/919909900000?text=Hello" {
		t.Fatalf("links B-101: %+v", out.Items[0])
	}
	if out.Items[1].TelLink != "tel:+919876543210" || out.Items[1].ChatLink != "https://wa.me/919876543210?text=Hello" {
		t.Fatalf("links B-102: %+v", out.Items[1])
	}

	rr = do(t, h, "GET", "/v1/residents?q=SHAH&role=owner", nil)
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 1 || out.Items[0].ApartmentID != "B-101" {
		t.Fatalf("search: %+v", out)
	}
}

func TestResidents_ETag(t *testing.T) {
	h := newHandler(&fakeSource{snap: snapshot(), ok: true}, &fakeRefresher{})
	rr := do(t, h, "GET", "/v1/residents", nil)
	etag := rr.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	rr = do(t, h, "GET", "/v1/residents", map[string]string{"If-None-Match": etag})
	if rr.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", rr.Code)
	}
}

func TestSummaryAndEmergency(t *testing.T) {
	h := newHandler(&fakeSource{snap: snapshot(), ok: true}, &fakeRefresher{})

	rr := do(t, h, "GET", "/v1/summary", nil)
	var sv app.SummaryView
	if err := json.Unmarshal(rr.Body.Bytes(), &sv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := domain.Summary{Apartments: 2, Owners: 1, Tenants: 1, Members: 5}
	if sv.Summary != want {
		t.Fatalf("summary: %+v", sv.Summary)
	}

	rr = do(t, h, "GET", "/v1/emergency", nil)
	var contacts []struct {
		Role    string `json:"role"`
		TelLink string `json:"telLink"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &contacts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(contacts) != 5 || contacts[0].Role != "president" || contacts[0].TelLink != "tel:+919825011111" {
		t.Fatalf("emergency: %+v", contacts)
	}
	if contacts[1].TelLink != phone.Placeholder {
		t.Fatalf("empty contact should get placeholder: %+v", contacts[1])
	}
}

func TestRefresh(t *testing.T) {
	cases := []struct {
		name string
		ref  *fakeRefresher
		want int
	}{
		{"ok", &fakeRefresher{snap: snapshot()}, http.StatusOK},
		{"in flight", &fakeRefresher{err: app.ErrRefreshInFlight}, http.StatusConflict},
		{"feed down", &fakeRefresher{err: errors.New("fetch feed: sheet: remote 503")}, http.StatusBadGateway},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := newHandler(&fakeSource{}, c.ref)
			if rr := do(t, h, "POST", "/v1/refresh", nil); rr.Code != c.want {
				t.Fatalf("expected %d, got %d", c.want, rr.Code)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	h := newHandler(&fakeSource{}, &fakeRefresher{})
	if rr := do(t, h, "GET", "/healthz", nil); rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}
}
