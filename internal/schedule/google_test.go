package schedule

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"calscan/internal/model"
)

var chicago = time.FixedZone("CST", -6*3600)

func TestGoogleEventAllDay(t *testing.T) {
	ev := model.Event{
		Title:       "Labor Day",
		Date:        model.Date{Year: 2025, Month: time.September, Day: 1},
		Description: "From academic calendar",
	}
	got := GoogleEvent(ev, chicago)
	if got.Start.Date != "2025-09-01" || got.End.Date != "2025-09-02" {
		t.Errorf("bounds = %s..%s, want 2025-09-01..2025-09-02", got.Start.Date, got.End.Date)
	}
	if got.Start.DateTime != "" || got.Summary != "Labor Day" || got.Description != ev.Description {
		t.Errorf("event = %+v", got)
	}
}

func TestGoogleEventTimed(t *testing.T) {
	ev := model.Event{
		Title: "Staff Meeting",
		Date:  model.Date{Year: 2024, Month: time.March, Day: 15},
		Start: &model.Clock{Hour: 9},
	}
	got := GoogleEvent(ev, chicago)
	if got.Start.DateTime != "2024-03-15T09:00:00-06:00" {
		t.Errorf("start = %s", got.Start.DateTime)
	}
	if got.End.DateTime != "2024-03-15T10:00:00-06:00" {
		t.Errorf("end = %s, want one hour after start", got.End.DateTime)
	}
	if got.Start.TimeZone != "CST" || got.Start.Date != "" {
		t.Errorf("start = %+v", got.Start)
	}

	ev.End = &model.Clock{Hour: 10, Minute: 30}
	if got := GoogleEvent(ev, chicago); got.End.DateTime != "2024-03-15T10:30:00-06:00" {
		t.Errorf("explicit end = %s", got.End.DateTime)
	}
}

func TestEventIDFormat(t *testing.T) {
	ev := model.Event{Title: "Pi Day", Date: model.Date{Year: 2024, Month: time.March, Day: 14}}
	id := EventID(ev)
	if !regexp.MustCompile(`^[0-9a-f]{32}$`).MatchString(id) {
		t.Errorf("EventID = %q, want 32 lowercase hex digits", id)
	}
	if EventID(ev) != id {
		t.Error("EventID not stable")
	}
}

func newTestSyncer(t *testing.T, h http.Handler) *Syncer {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	s, err := NewSyncer(context.Background(), Options{
		Location: chicago,
		ClientOptions: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/"),
			option.WithoutAuthentication(),
		},
	})
	if err != nil {
		t.Fatalf("NewSyncer: %v", err)
	}
	return s
}

func TestSync(t *testing.T) {
	var (
		mu  sync.Mutex
		ids []string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		var ev calendar.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		ids = append(ids, ev.Id)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch ev.Summary {
		case "Already There":
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error":{"code":409,"message":"The requested identifier already exists."}}`))
		case "Rejected":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":400,"message":"Invalid start time."}}`))
		default:
			json.NewEncoder(w).Encode(ev)
		}
	})
	s := newTestSyncer(t, mux)

	day := model.Date{Year: 2025, Month: time.October, Day: 13}
	events := []model.Event{
		{Title: "Indigenous Peoples' Day", Date: day},
		{Title: "Already There", Date: day},
		{Title: "Rejected", Date: day},
		{Title: "Teacher Work Day", Date: day.AddDays(1)},
	}
	res, err := s.Sync(context.Background(), events, nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Created != 2 || res.Existing != 1 {
		t.Errorf("result = %+v, want 2 created, 1 existing", res)
	}
	if len(res.Failed) != 1 || res.Failed[0].Index != 2 || res.Failed[0].Title != "Rejected" {
		t.Errorf("failed = %+v", res.Failed)
	}
	if len(ids) != 4 || ids[0] != EventID(events[0]) {
		t.Errorf("ids = %v", ids)
	}
}

func TestSyncCancelled(t *testing.T) {
	s := newTestSyncer(t, http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Sync(ctx, []model.Event{{Title: "Never Sent"}}, nil)
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestCalendarsFollowsPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/me/calendarList", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(`{"items":[{"id":"primary-id","summary":"Me","primary":true,"accessRole":"owner"}],"nextPageToken":"p2"}`))
			return
		}
		w.Write([]byte(`{"items":[{"id":"school","summary":"School","accessRole":"writer","timeZone":"America/Chicago"}]}`))
	})
	s := newTestSyncer(t, mux)

	cals, err := s.Calendars(context.Background())
	if err != nil {
		t.Fatalf("Calendars: %v", err)
	}
	if len(cals) != 2 {
		t.Fatalf("got %d calendars, want 2", len(cals))
	}
	if !cals[0].Primary || cals[1].ID != "school" || cals[1].TimeZone != "America/Chicago" {
		t.Errorf("calendars = %+v", cals)
	}
}

func TestNewSyncerRequiresCredentials(t *testing.T) {
	if _, err := NewSyncer(context.Background(), Options{}); err == nil {
		t.Fatal("expected error without credentials")
	}
}
