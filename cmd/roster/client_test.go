package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"

	"github.com/GoCodeAlone/roster/task"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL+"/", "tok", srv.Client())
	var out bytes.Buffer
	c.Out = &out
	return c, &out
}

func TestStatusLabel(t *testing.T) {
	cases := map[task.Status]string{
		task.StatusOpen:             "Open",
		task.StatusAwaitingApproval: "Awaiting Approval",
		task.StatusRejected:         "Rejected",
	}
	for in, want := range cases {
		if got := statusLabel(in); got != want {
			t.Errorf("statusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClient_Tasks(t *testing.T) {
	var gotQuery, gotAuth string
	c, out := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]task.Task{ //nolint:errcheck
			{ID: 7, Title: "Audit logs", Status: task.StatusAwaitingApproval, DepartmentName: "Finance"},
		})
	})

	if err := c.cmdTasks([]string{"--status", "open,awaiting_approval"}); err != nil {
		t.Fatalf("cmdTasks: %v", err)
	}
	if gotQuery != "status=open%2Cawaiting_approval" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if !strings.Contains(out.String(), "Awaiting Approval") || !strings.Contains(out.String(), "Audit logs") {
		t.Errorf("output = %q", out.String())
	}
}

func TestClient_RejectSendsReasonAndDue(t *testing.T) {
	var body map[string]string
	var path string
	c, out := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
		w.Write([]byte(`{"id":3,"status":"rejected","due_date":"2025-01-10T00:00:00Z"}`)) //nolint:errcheck
	})

	if err := c.cmdTask([]string{"reject", "--due", "2025-01-10", "3", "insufficient", "detail"}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if path != "/api/tasks/3/reject" {
		t.Errorf("path = %q", path)
	}
	if body["reason"] != "insufficient detail" || body["new_due_date"] != "2025-01-10" {
		t.Errorf("body = %v", body)
	}
	if !strings.Contains(out.String(), "Rejected (due 2025-01-10)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestClient_APIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"approve: invalid transition: not allowed from open"}`)) //nolint:errcheck
	})

	err := c.cmdTask([]string{"approve", "1"})
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *apiError", err)
	}
	if apiErr.Status != http.StatusConflict || !strings.Contains(apiErr.Msg, "invalid transition") {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for range 4 {
		if err := c.cmdStatus(nil); err == nil {
			t.Fatal("expected error from 500 reply")
		}
	}
	err := c.cmdStatus(nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want ErrOpenState", err)
	}
	if n := atomic.LoadInt32(&hits); n != 4 {
		t.Errorf("server hit %d times, want 4", n)
	}
}

func TestClient_ClientErrorsDoNotTrip(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	for range 6 {
		err := c.cmdTask([]string{"show", "9"})
		if errors.Is(err, gobreaker.ErrOpenState) {
			t.Fatal("breaker opened on 404 replies")
		}
	}
}

func TestClient_TaskCreateUsage(t *testing.T) {
	c, _ := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})
	if err := c.cmdTask([]string{"create", "no department"}); err == nil {
		t.Fatal("expected usage error without --dept")
	}
}
