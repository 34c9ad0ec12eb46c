//go:build integration || !unit

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	server "resident_directory/internal/adapters/http_server"
	redisad "resident_directory/internal/adapters/redis"
	"resident_directory/internal/adapters/sheet"
	"resident_directory/internal/app"
	"resident_directory/internal/domain"
	"resident_directory/internal/phone"
)

// ---------- a sheet that can be edited and broken mid-test ----------
type fakeSheet struct {
	mu     sync.Mutex
	body   string
	status int
}

func (f *fakeSheet) set(body string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body, f.status = body, status
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	body, status := f.body, f.status
	f.mu.Unlock()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

const revisionOne = "Flat No,Type,માલિક નામ,ભાડુઆત નામ,મૂળ ગામ,સભ્ય સંખ્યા,2 Wheeler,4 Wheeler,Phone,President,Lift\r\n" +
	"B-101,માલિક,Asha Mehta,,Rajkot,4,2,1,98765 43210,98250 11111,\r\n" +
	"B-102,ભાડુઆત,Nita Joshi,Raj Desai,Surat,3,1,0,\"+91 99099 00000\",,1800 123 456\r\n" +
	"B-103,Owner,\"Shah, Kiran\",,Amreli,2,0,1,,,\r\n"

// English-only revision with renamed columns
const revisionTwo = "Apartment,Role,Owner Name,Tenant Name,Native Place,Members,Two Wheeler,Four Wheeler,Mobile\n" +
	"B-101,Owner,Asha Mehta,,Rajkot,5,2,1,9876543210\n" +
	"B-104,Tenant,Mehul Patel,Kiran Shah,Bhavnagar,2,1,0,\n"

type env struct {
	sheet *fakeSheet
	sched *app.Scheduler
	api   *httptest.Server
}

func setup(t *testing.T) *env {
	t.Helper()
	fs := &fakeSheet{body: revisionOne, status: http.StatusOK}
	feed := httptest.NewServer(fs)
	t.Cleanup(feed.Close)

	client, err := sheet.New([]string{feed.URL}, 100)
	if err != nil {
		t.Fatalf("sheet client: %v", err)
	}
	sched := app.NewScheduler(app.NewIngestionService(client, app.NewMapper(nil)), app.SchedulerConfig{
		Interval:     time.Hour, // refreshes are driven by POST /v1/refresh
		FetchTimeout: 5 * time.Second,
	})

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = cache.Close() })

	srv := server.New(10 * time.Second)
	srv.MountHandlers(&server.Handlers{
		Q:         app.NewQueryService(sched, cache, time.Minute),
		Refresher: sched,
		Phone:     phone.New(phone.DefaultCountryCode),
	})
	api := httptest.NewServer(srv.Mux())
	t.Cleanup(api.Close)

	return &env{sheet: fs, sched: sched, api: api}
}

func (e *env) getJSON(t *testing.T, path string, dst any) int {
	t.Helper()
	resp, err := http.Get(e.api.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if dst != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (e *env) refresh(t *testing.T) int {
	t.Helper()
	resp, err := http.Post(e.api.URL+"/v1/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("POST refresh: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

type residentsBody struct {
	Version string `json:"version"`
	Count   int    `json:"count"`
	Items   []struct {
		domain.Resident
		TelLink  string `json:"telLink"`
		ChatLink string `json:"chatLink"`
	} `json:"items"`
}

func TestE2E_FeedToAPI(t *testing.T) {
	e := setup(t)

	if code := e.getJSON(t, "/v1/residents", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before first refresh, got %d", code)
	}
	if code := e.refresh(t); code != http.StatusOK {
		t.Fatalf("refresh: %d", code)
	}

	var sum app.SummaryView
	e.getJSON(t, "/v1/summary", &sum)
	want := domain.Summary{Apartments: 3, Owners: 2, Tenants: 1, Members: 9, TwoWheelers: 3, FourWheelers: 2}
	if sum.Summary != want {
		t.Fatalf("summary: got %+v want %+v", sum.Summary, want)
	}

	var rb residentsBody
	e.getJSON(t, "/v1/residents?q=kiran", &rb)
	if rb.Count != 1 || rb.Items[0].ApartmentID != "B-103" || rb.Items[0].OwnerName != "Shah, Kiran" {
		t.Fatalf("quoted owner name search: %+v", rb)
	}

	e.getJSON(t, "/v1/residents?role="+url.QueryEscape("ભાડુઆત"), &rb)
	if rb.Count != 1 || rb.Items[0].OccupantName != "Raj Desai" || rb.Items[0].ChatLink != "https://wa.me/919909900000" {
		t.Fatalf("tenant filter: %+v", rb)
	}

	var contacts []struct {
		Role  string `json:"role"`
		Phone string `json:"phone"`
	}
	e.getJSON(t, "/v1/emergency", &contacts)
	if contacts[0].Phone != "98250 11111" || contacts[1].Phone != "1800 123 456" {
		t.Fatalf("emergency: %+v", contacts)
	}
}

func TestE2E_RevisionChangeAndOutage(t *testing.T) {
	e := setup(t)
	if code := e.refresh(t); code != http.StatusOK {
		t.Fatalf("refresh: %d", code)
	}
	var first residentsBody
	e.getJSON(t, "/v1/residents?sort=apartmentId", &first)

	// the sheet is re-published with English headers
	e.sheet.set(revisionTwo, http.StatusOK)
	if code := e.refresh(t); code != http.StatusOK {
		t.Fatalf("refresh: %d", code)
	}
	var second residentsBody
	e.getJSON(t, "/v1/residents?sort=apartmentId", &second)
	if second.Version == first.Version {
		t.Fatalf("expected a new snapshot version")
	}
	if second.Count != 2 || second.Items[1].ApartmentID != "B-104" || second.Items[1].OccupantName != "Kiran Shah" {
		t.Fatalf("renamed columns not mapped: %+v", second)
	}
	if second.Items[0].TelLink != "tel:+919876543210" {
		t.Fatalf("Mobile alias not used for phone: %+v", second.Items[0])
	}

	// outage: the previous snapshot keeps being served
	e.sheet.set("", http.StatusForbidden)
	if code := e.refresh(t); code != http.StatusBadGateway {
		t.Fatalf("expected 502 on feed failure, got %d", code)
	}
	var third residentsBody
	if code := e.getJSON(t, "/v1/residents?sort=apartmentId", &third); code != http.StatusOK {
		t.Fatalf("expected stale data to stay available, got %d", code)
	}
	if third.Version != second.Version {
		t.Fatalf("snapshot replaced by a failed refresh")
	}
	if cur, ok := e.sched.Current(); !ok || cur.Version != second.Version {
		t.Fatalf("scheduler lost current snapshot")
	}
}

func TestE2E_SchedulerDrivesRefresh(t *testing.T) {
	fs := &fakeSheet{body: revisionOne, status: http.StatusOK}
	feed := httptest.NewServer(fs)
	defer feed.Close()

	client, _ := sheet.New([]string{feed.URL}, 100)
	got := make(chan domain.Snapshot, 8)
	sched := app.NewScheduler(app.NewIngestionService(client, nil), app.SchedulerConfig{
		Interval: 20 * time.Millisecond,
		OnSnapshot: func(s domain.Snapshot) {
			select {
			case got <- s:
			default:
			}
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop()

	var snaps []domain.Snapshot
	timeout := time.After(3 * time.Second)
	for len(snaps) < 2 {
		select {
		case s := <-got:
			snaps = append(snaps, s)
		case <-timeout:
			t.Fatalf("expected periodic snapshots, got %d", len(snaps))
		}
	}
	if snaps[1].FetchedAt.Before(snaps[0].FetchedAt) || len(snaps[1].Records) != 3 {
		t.Fatalf("unexpected snapshots: %+v", snaps)
	}
}
