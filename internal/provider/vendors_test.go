package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func vendorClient(srv *httptest.Server) *jsonClient {
	return newJSONClient(srv.Client(), srv.URL, 0, time.Millisecond)
}

var fastPoll = Descriptor{PollSchedule: []time.Duration{5 * time.Millisecond}, PollTimeout: time.Second}

func TestIcypeasSubmitThenPoll(t *testing.T) {
	var reads int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "icy-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/email-search":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["firstname"] != "John" || body["domainOrCompany"] != "acme.com" {
				t.Errorf("unexpected search payload %v", body)
			}
			w.Write([]byte(`{"success":true,"item":{"_id":"search-1","status":"NONE"}}`))
		case "/bulk-single-searchs/read":
			if atomic.AddInt32(&reads, 1) < 2 {
				w.Write([]byte(`{"success":true,"items":[{"_id":"search-1","status":"IN_PROGRESS"}]}`))
				return
			}
			w.Write([]byte(`{"success":true,"items":[{"_id":"search-1","status":"FOUND","results":{"emails":[{"email":"john@acme.com","certainty":"sure"}]}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := newIcypeas(fastPoll, "icy-key", vendorClient(srv))
	m, err := src.Lookup(context.Background(), johnSmith)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Email != "john@acme.com" || m.Confidence != 85 {
		t.Fatalf("unexpected match %+v", m)
	}
	if atomic.LoadInt32(&reads) != 2 {
		t.Fatalf("expected two polls, got %d", reads)
	}
}

func TestIcypeasPollBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/email-search" {
			w.Write([]byte(`{"success":true,"item":{"_id":"s"}}`))
			return
		}
		w.Write([]byte(`{"success":true,"items":[{"status":"SCHEDULED"}]}`))
	}))
	defer srv.Close()

	desc := Descriptor{PollSchedule: []time.Duration{5 * time.Millisecond}, PollTimeout: 40 * time.Millisecond}
	_, err := newIcypeas(desc, "k", vendorClient(srv)).Lookup(context.Background(), johnSmith)
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected no result once the poll budget is spent, got %v", err)
	}
}

func TestDropcontactBatch(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Access-Token") != "dc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/batch":
			w.Write([]byte(`{"success":true,"request_id":"req-9"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/batch/req-9":
			if atomic.AddInt32(&polls, 1) == 1 {
				w.Write([]byte(`{"success":false,"reason":"Request not ready yet"}`))
				return
			}
			w.Write([]byte(`{"success":true,"data":[{"email":[{"email":"john@acme.com","qualification":"nominative@pro"}],"mobile_phone":"+33 6 12 34 56 78"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	m, err := newDropcontact(fastPoll, "dc", vendorClient(srv)).Lookup(context.Background(), johnSmith)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Email != "john@acme.com" || m.Phone != "+33 6 12 34 56 78" || m.Confidence != 90 {
		t.Fatalf("unexpected match %+v", m)
	}
}

func TestHunterEmailFinder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/email-finder" || q.Get("api_key") != "hk" || q.Get("domain") != "acme.com" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"data":{"email":"john@acme.com","score":91}}`))
	}))
	defer srv.Close()

	m, err := newHunter(Descriptor{}, "hk", vendorClient(srv)).Lookup(context.Background(), johnSmith)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Email != "john@acme.com" || m.Confidence != 91 {
		t.Fatalf("unexpected match %+v", m)
	}
}

func TestHunterQuotaMarksUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"errors":[{"details":"You have reached your monthly quota"}]}`))
	}))
	defer srv.Close()

	_, err := newHunter(Descriptor{}, "hk", vendorClient(srv)).Lookup(context.Background(), johnSmith)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestApolloPeopleMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "ak" || r.URL.Path != "/people/match" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"person":{"email":"john@acme.com","email_status":"verified","phone_numbers":[{"sanitized_number":"+14155550100"}]}}`))
	}))
	defer srv.Close()

	m, err := newApollo(Descriptor{}, "ak", vendorClient(srv)).Lookup(context.Background(), johnSmith)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Email != "john@acme.com" || m.Phone != "+14155550100" || m.Confidence != 90 {
		t.Fatalf("unexpected match %+v", m)
	}
}

func TestApolloNoPerson(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"person":null}`))
	}))
	defer srv.Close()

	if _, err := newApollo(Descriptor{}, "ak", vendorClient(srv)).Lookup(context.Background(), johnSmith); !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected no result, got %v", err)
	}
}

func TestFindymailSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fk" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "John Smith" {
			t.Errorf("unexpected name %q", body["name"])
		}
		w.Write([]byte(`{"contact":{"email":"john@acme.com","domain":"acme.com"}}`))
	}))
	defer srv.Close()

	m, err := newFindymail(Descriptor{}, "fk", vendorClient(srv)).Lookup(context.Background(), johnSmith)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Email != "john@acme.com" || m.Confidence != findymailConfidence {
		t.Fatalf("unexpected match %+v", m)
	}
}

func TestKasprProfileLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["id"] != "john-smith-42" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"profile":{"starryPhone":"+447700900123","phones":["+447700900123"]}}`))
	}))
	defer srv.Close()

	contact := johnSmith
	contact.ProfileURL = "linkedin.com/in/john-smith-42"
	m, err := newKaspr(Descriptor{}, "kk", vendorClient(srv)).Lookup(context.Background(), contact)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Phone != "+447700900123" || m.Confidence != 85 {
		t.Fatalf("unexpected match %+v", m)
	}
	if _, err := newKaspr(Descriptor{}, "kk", vendorClient(srv)).Lookup(context.Background(), johnSmith); !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected no result without a profile, got %v", err)
	}
	if linkedInID("https://example.com/in/x") != "" {
		t.Fatalf("non-linkedin hosts must be rejected")
	}
}

func TestDatagmaProbability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apiId") != "dg" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"email":"john@acme.com","status":"valid","probability":0.72}`))
	}))
	defer srv.Close()

	m, err := newDatagma(Descriptor{}, "dg", vendorClient(srv)).Lookup(context.Background(), johnSmith)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Email != "john@acme.com" || m.Confidence != 72 {
		t.Fatalf("unexpected match %+v", m)
	}
}

func TestDatagmaCertainProbability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"email":"john@acme.com","status":"valid","probability":1}`))
	}))
	defer srv.Close()

	m, err := newDatagma(Descriptor{}, "dg", vendorClient(srv)).Lookup(context.Background(), johnSmith)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Confidence != 100 {
		t.Fatalf("probability 1 should map to 100, got %v", m.Confidence)
	}
}
