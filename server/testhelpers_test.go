package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/GoCodeAlone/roster/comms"
	"github.com/GoCodeAlone/roster/config"
	"github.com/GoCodeAlone/roster/department"
	"github.com/GoCodeAlone/roster/internal/storage"
	"github.com/GoCodeAlone/roster/task"
)

const testSecret = "test-secret-key-1234567890"

func hashPassword(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := *config.DefaultConfig()
	cfg.Server.Addr = ":0"
	cfg.Server.CORSOrigin = "http://localhost:3000"
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.Users = []config.UserConfig{
		{Username: "admin", PasswordHash: hashPassword(t, "secret"), UserID: 1, IsAdmin: true},
		{Username: "ana", PasswordHash: hashPassword(t, "ana-pw"), UserID: 2, DepartmentID: 1},
	}
	return cfg
}

// newTestServer returns a server wired to an in-memory database with one
// department (id 1).
func newTestServer(t *testing.T) (*Server, *comms.InMemoryBus) {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	depts := department.NewSQLiteStore(db)
	if _, err := depts.Create(t.Context(), "Finance"); err != nil {
		t.Fatalf("create department: %v", err)
	}
	bus := comms.NewInMemoryBus(0)

	s := New(testConfig(t), "test", nil)
	s.SetEngine(task.NewEngine(task.NewSQLiteStore(db), depts))
	s.SetDepartments(depts)
	s.SetBus(bus)
	return s, bus
}

func login(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(loginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, rr.Code, rr.Body.String())
	}
	var resp loginResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.Token
}
