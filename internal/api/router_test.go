package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/availability-booking/internal/appointment"
	"github.com/hackgods/availability-booking/internal/availability"
	"github.com/hackgods/availability-booking/internal/booking"
	"github.com/hackgods/availability-booking/internal/calendar"
	"github.com/hackgods/availability-booking/internal/config"
	"github.com/hackgods/availability-booking/internal/schedule"
)

// Wednesday 2030-01-02; 2030-01-07 is the next Monday.
var testNow = time.Date(2030, time.January, 2, 12, 0, 0, 0, time.UTC)

const monday = "2030-01-07"

type testServer struct {
	handler  http.Handler
	store    *schedule.MemoryStore
	provider *schedule.Provider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store := schedule.NewMemoryStore()
	repo := appointment.NewMemoryRepository()
	clock := calendar.FixedClock{At: testNow}

	p, err := store.CreateProvider(ctx, schedule.Provider{Name: "Dr. Test", TimeZone: "UTC", SlotDuration: 30 * time.Minute})
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	if err := store.AddWindow(ctx, schedule.Window{
		ProviderID: p.ID,
		DayOfWeek:  calendar.Monday,
		Start:      calendar.NewTimeOfDay(9, 0),
		End:        calendar.NewTimeOfDay(10, 0),
	}); err != nil {
		t.Fatalf("add window: %v", err)
	}

	resolver := availability.NewResolver(store, repo, clock)
	svc := booking.NewService(resolver, repo, nil, config.Config{AppointmentTTL: 10 * time.Minute}, clock, nil)

	return &testServer{
		handler: NewRouter(RouterConfig{
			Service:  svc,
			Resolver: resolver,
			Env:      "test",
		}),
		store:    store,
		provider: p,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) book(t *testing.T, start string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		ProviderID: s.provider.ID.String(),
		PatientID:  uuid.NewString(),
		Date:       monday,
		StartTime:  start,
		Motif:      "checkup",
	})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestGetAvailability(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/providers/"+s.provider.ID.String()+"/availability?date="+monday, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[AvailabilityResponse](t, rec)
	if resp.Status != "available" || resp.Slots == nil || len(*resp.Slots) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if (*resp.Slots)[0] != (SlotResponse{StartTime: "09:00", EndTime: "09:30"}) {
		t.Errorf("unexpected first slot %+v", (*resp.Slots)[0])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestGetAvailability_Unavailable(t *testing.T) {
	s := newTestServer(t)
	date, _ := calendar.ParseDate(monday)
	_ = s.store.SetDateOverride(context.Background(), schedule.DateOverride{
		ProviderID:  s.provider.ID,
		Date:        date,
		Unavailable: true,
		Reason:      "holiday",
	})

	rec := s.do(t, http.MethodGet, "/providers/"+s.provider.ID.String()+"/availability?date="+monday, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var raw map[string]any
	_ = json.NewDecoder(rec.Body).Decode(&raw)
	if raw["status"] != "unavailable" || raw["reason"] != "holiday" {
		t.Errorf("unexpected body %v", raw)
	}
	if _, ok := raw["slots"]; ok {
		t.Error("unavailable day should not carry slots")
	}
}

func TestGetAvailability_Errors(t *testing.T) {
	s := newTestServer(t)
	base := "/providers/" + s.provider.ID.String() + "/availability"

	tests := []struct {
		name string
		path string
		code int
		err  string
	}{
		{"bad provider", "/providers/nope/availability?date=" + monday, http.StatusBadRequest, "invalid_provider_id"},
		{"missing date", base, http.StatusBadRequest, "invalid_date"},
		{"past date", base + "?date=2030-01-01", http.StatusUnprocessableEntity, "past_date"},
		{"unknown provider", "/providers/" + uuid.NewString() + "/availability?date=" + monday, http.StatusNotFound, "provider_not_found"},
		{"range too long", base + "/range?from=" + monday + "&days=40", http.StatusBadRequest, "invalid_range"},
		{"range bad days", base + "/range?from=" + monday + "&days=x", http.StatusBadRequest, "invalid_range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.path, nil)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
			if resp := decode[ErrorResponse](t, rec); resp.Error != tt.err {
				t.Errorf("expected %q, got %q", tt.err, resp.Error)
			}
		})
	}
}

func TestGetAvailabilityRange(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/providers/"+s.provider.ID.String()+"/availability/range?from="+monday, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode[AvailabilityRangeResponse](t, rec)
	if len(resp.Days) != defaultRangeDays {
		t.Fatalf("expected %d days, got %d", defaultRangeDays, len(resp.Days))
	}
	if resp.Days[0].Status != "available" || resp.Days[1].Reason != availability.ReasonNoRecurringAvailability {
		t.Errorf("unexpected days %+v", resp.Days[:2])
	}
}

func TestCreateAppointment(t *testing.T) {
	s := newTestServer(t)

	rec := s.book(t, "09:00")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[AppointmentResponse](t, rec)
	if resp.Status != "pending" || resp.StartTime != "09:00" || resp.EndTime != "09:30" || resp.ExpiresAt == nil {
		t.Errorf("unexpected appointment %+v", resp)
	}

	rec = s.do(t, http.MethodGet, "/appointments/"+resp.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get: expected 200, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/appointments?patient_id="+resp.PatientID.String(), nil)
	list := decode[ListAppointmentsResponse](t, rec)
	if len(list.Appointments) != 1 || list.Appointments[0].ID != resp.ID {
		t.Errorf("unexpected list %+v", list)
	}
}

func TestCreateAppointment_SlotTakenReoffers(t *testing.T) {
	s := newTestServer(t)

	if rec := s.book(t, "09:00"); rec.Code != http.StatusCreated {
		t.Fatalf("first booking: %d", rec.Code)
	}

	rec := s.book(t, "09:00")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Error != "slot_taken" {
		t.Errorf("expected slot_taken, got %q", resp.Error)
	}
	if resp.Availability == nil || resp.Availability.Slots == nil {
		t.Fatal("expected fresh availability in the body")
	}
	slots := *resp.Availability.Slots
	if len(slots) != 1 || slots[0].StartTime != "09:30" {
		t.Errorf("expected only 09:30 offered, got %+v", slots)
	}
}

func TestCreateAppointment_Errors(t *testing.T) {
	s := newTestServer(t)
	provider := s.provider.ID.String()

	tests := []struct {
		name string
		body any
		code int
		err  string
	}{
		{"bad json", "{", http.StatusBadRequest, "invalid_request_body"},
		{"bad provider", CreateAppointmentRequest{ProviderID: "x", PatientID: uuid.NewString(), Date: monday, StartTime: "09:00"}, http.StatusBadRequest, "invalid_provider_id"},
		{"bad date", CreateAppointmentRequest{ProviderID: provider, PatientID: uuid.NewString(), Date: "07/01/2030", StartTime: "09:00"}, http.StatusBadRequest, "invalid_date"},
		{"bad start", CreateAppointmentRequest{ProviderID: provider, PatientID: uuid.NewString(), Date: monday, StartTime: "24:00"}, http.StatusBadRequest, "invalid_start_time"},
		{"past", CreateAppointmentRequest{ProviderID: provider, PatientID: uuid.NewString(), Date: "2030-01-01", StartTime: "09:00"}, http.StatusUnprocessableEntity, "past_date"},
		{"closed day", CreateAppointmentRequest{ProviderID: provider, PatientID: uuid.NewString(), Date: "2030-01-08", StartTime: "09:00"}, http.StatusUnprocessableEntity, "unavailable"},
		{"outside window", CreateAppointmentRequest{ProviderID: provider, PatientID: uuid.NewString(), Date: monday, StartTime: "11:00"}, http.StatusUnprocessableEntity, "outside_window"},
		{"unknown provider", CreateAppointmentRequest{ProviderID: uuid.NewString(), PatientID: uuid.NewString(), Date: monday, StartTime: "09:00"}, http.StatusNotFound, "provider_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if raw, ok := tt.body.(string); ok {
				req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString(raw))
				rec = httptest.NewRecorder()
				s.handler.ServeHTTP(rec, req)
			} else {
				rec = s.do(t, http.MethodPost, "/appointments", tt.body)
			}
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
			if resp := decode[ErrorResponse](t, rec); resp.Error != tt.err {
				t.Errorf("expected %q, got %q", tt.err, resp.Error)
			}
		})
	}
}

func TestConfirmAndCancel(t *testing.T) {
	s := newTestServer(t)
	created := decode[AppointmentResponse](t, s.book(t, "09:00"))
	path := "/appointments/" + created.ID.String()

	rec := s.do(t, http.MethodPost, path+"/confirm", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", rec.Code)
	}
	if resp := decode[AppointmentResponse](t, rec); resp.Status != "confirmed" {
		t.Errorf("expected confirmed, got %s", resp.Status)
	}

	rec = s.do(t, http.MethodPost, path+"/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rec.Code)
	}

	tests := []struct {
		path string
		code int
		err  string
	}{
		{path + "/cancel", http.StatusConflict, "already_cancelled"},
		{path + "/confirm", http.StatusConflict, "invalid_status_transition"},
		{"/appointments/" + uuid.NewString() + "/cancel", http.StatusNotFound, "appointment_not_found"},
		{"/appointments/abc/confirm", http.StatusBadRequest, "invalid_appointment_id"},
	}
	for _, tt := range tests {
		rec := s.do(t, http.MethodPost, tt.path, nil)
		if rec.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.code, rec.Code)
			continue
		}
		if resp := decode[ErrorResponse](t, rec); resp.Error != tt.err {
			t.Errorf("%s: expected %q, got %q", tt.path, tt.err, resp.Error)
		}
	}

	// The cancelled slot is bookable again.
	if rec := s.book(t, "09:00"); rec.Code != http.StatusCreated {
		t.Errorf("rebook: expected 201, got %d", rec.Code)
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestReadiness(t *testing.T) {
	down := errors.New("down")
	tests := []struct {
		name     string
		postgres Pinger
		redis    Pinger
		code     int
		status   string
	}{
		{"all up", stubPinger{}, stubPinger{}, http.StatusOK, "ok"},
		{"redis down", stubPinger{}, stubPinger{err: down}, http.StatusOK, "degraded"},
		{"postgres down", stubPinger{err: down}, stubPinger{}, http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(RouterConfig{Postgres: tt.postgres, Redis: tt.redis})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			if resp := decode[ReadinessResponse](t, rec); resp.Status != tt.status {
				t.Errorf("expected %q, got %q", tt.status, resp.Status)
			}
		})
	}
}
