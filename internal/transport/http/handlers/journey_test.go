package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"staffdesk/internal/app/server"
	"staffdesk/internal/domain/auth"
	"staffdesk/internal/platform/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error any             `json:"error"`
}

type harness struct {
	t      *testing.T
	app    *server.App
	ts     *httptest.Server
	client *http.Client
	admin  string
}

// org is a fresh department staffed with one user per role.
type org struct {
	departmentID int64
	ceo          member
	hod          member
	supervisor   member
	hr           member
	staff        member
}

type member struct {
	id    int64
	token string
}

func testConfig(dbURL string) config.Config {
	return config.Config{
		DatabaseURL:        dbURL,
		JWTSecret:          "test-secret",
		TokenTTL:           time.Hour,
		FrontendDir:        "frontend/dist",
		Environment:        "test",
		LogLevel:           "warn",
		SeedAdminEmail:     "admin@test.local",
		SeedAdminPassword:  "ChangeMe123!",
		RunMigrations:      true,
		RunSeed:            true,
		MigrationsDir:      "../../../../migrations",
		DBMaxConns:         5,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 1000,
		MetricsEnabled:     true,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(dbURL)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	ts := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		ts.Close()
		app.Close()
	})

	h := &harness{t: t, app: app, ts: ts, client: ts.Client()}
	h.admin = login(t, h.client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	return h
}

func (h *harness) url(path string) string {
	return h.ts.URL + "/api/v1" + path
}

func (h *harness) newOrg() org {
	t := h.t
	t.Helper()
	suffix := strconv.FormatInt(time.Now().UnixNano(), 36)

	roles := map[string]int64{}
	var list []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	decodeData(t, getJSON(t, h.client, h.url("/roles"), h.admin), &list)
	for _, role := range list {
		roles[role.Name] = role.ID
	}

	var dept struct {
		ID int64 `json:"id"`
	}
	decodeData(t, postJSON(t, h.client, h.url("/departments"), h.admin, map[string]any{"name": "Dept " + suffix}), &dept)

	o := org{departmentID: dept.ID}
	o.ceo = h.createMember(roles[auth.RoleCEO], nil, nil, "ceo-"+suffix)
	o.hod = h.createMember(roles[auth.RoleHOD], &dept.ID, nil, "hod-"+suffix)
	o.supervisor = h.createMember(roles[auth.RoleSupervisor], &dept.ID, nil, "sup-"+suffix)
	o.hr = h.createMember(roles[auth.RoleHR], &dept.ID, nil, "hr-"+suffix)
	o.staff = h.createMember(roles[auth.RoleStaff], &dept.ID, &o.supervisor.id, "staff-"+suffix)
	return o
}

func (h *harness) createMember(roleID int64, departmentID, supervisorID *int64, handle string) member {
	t := h.t
	t.Helper()
	if roleID == 0 {
		t.Fatalf("role for %s not seeded", handle)
	}
	email := handle + "@example.com"
	password := "Passw0rd!" + handle
	body := map[string]any{
		"email":     email,
		"password":  password,
		"firstName": "Journey",
		"lastName":  handle,
		"roleId":    roleID,
	}
	if departmentID != nil {
		body["departmentId"] = *departmentID
	}
	if supervisorID != nil {
		body["supervisorId"] = *supervisorID
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decodeData(t, postJSON(t, h.client, h.url("/users"), h.admin, body), &created)
	return member{id: created.ID, token: login(t, h.client, h.ts.URL, email, password)}
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
	var payload map[string]any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	token, _ := payload["accessToken"].(string)
	if token == "" {
		t.Fatal("expected token")
	}
	return token
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("failed to decode data %s: %v", string(env.Data), err)
	}
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	status, env, raw := sendJSON(t, client, http.MethodPost, url, token, body)
	if status >= 400 {
		t.Fatalf("unexpected status %d: %s", status, raw)
	}
	return env
}

func postJSONStatus(t *testing.T, client *http.Client, url, token string, body any, want int) envelope {
	t.Helper()
	return sendJSONStatus(t, client, http.MethodPost, url, token, body, want)
}

func patchJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	return sendJSONStatus(t, client, http.MethodPatch, url, token, body, http.StatusOK)
}

func sendJSONStatus(t *testing.T, client *http.Client, method, url, token string, body any, want int) envelope {
	t.Helper()
	status, env, raw := sendJSON(t, client, method, url, token, body)
	if status != want {
		t.Fatalf("%s %s: expected status %d, got %d: %s", method, url, want, status, raw)
	}
	return env
}

func sendJSON(t *testing.T, client *http.Client, method, url, token string, body any) (int, envelope, string) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", string(raw), err)
	}
	return resp.StatusCode, env, string(raw)
}

func getJSON(t *testing.T, client *http.Client, url, token string) envelope {
	t.Helper()
	return getJSONStatus(t, client, url, token, http.StatusOK)
}

func getJSONStatus(t *testing.T, client *http.Client, url, token string, want int) envelope {
	t.Helper()
	return sendJSONStatus(t, client, http.MethodGet, url, token, nil, want)
}

func envelopeErrorCode(env envelope) string {
	errMap, ok := env.Error.(map[string]any)
	if !ok {
		return ""
	}
	code, _ := errMap["code"].(string)
	return code
}

func assertErrorCode(t *testing.T, env envelope, want string) {
	t.Helper()
	if code := envelopeErrorCode(env); code != want {
		t.Fatalf("expected error code %q, got %+v", want, env.Error)
	}
}

func assertValidationErrorField(t *testing.T, env envelope, field string) {
	t.Helper()
	assertErrorCode(t, env, "validation_error")
	errMap := env.Error.(map[string]any)
	details, ok := errMap["details"].(map[string]any)
	if !ok {
		t.Fatalf("expected details object, got %+v", errMap["details"])
	}
	fieldsRaw, ok := details["fields"].([]any)
	if !ok {
		t.Fatalf("expected details.fields array, got %+v", details["fields"])
	}
	for _, item := range fieldsRaw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if value, _ := entry["field"].(string); value == field {
			return
		}
	}
	t.Fatalf("expected validation field %q in %+v", field, fieldsRaw)
}

func annualLeaveTypeID(t *testing.T, h *harness, token string) int64 {
	t.Helper()
	var types []struct {
		ID   int64  `json:"id"`
		Code string `json:"code"`
	}
	decodeData(t, getJSON(t, h.client, h.url("/leave/types"), token), &types)
	for _, lt := range types {
		if lt.Code == "ANNUAL" {
			return lt.ID
		}
	}
	t.Fatal("annual leave type not seeded")
	return 0
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}
