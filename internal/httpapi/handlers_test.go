package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"linoslms.org/internal/audit"
	"linoslms.org/internal/records"
	"linoslms.org/internal/session"
	"linoslms.org/internal/storage"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
	store   *records.Store
	notices *session.Center
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("LMS_AUTH_SECRET", "test-secret")
	session.ResetSecretForTests()

	store := records.NewStore(storage.NewMemory())
	if err := store.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	notices := session.NewCenter()
	api := New(Config{
		Store:    store,
		Auditor:  audit.NewRecorder(store),
		Sessions: session.NewManager(),
		Notices:  notices,
		Version:  "test",
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
		store:   store,
		notices: notices,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	return c.do(http.MethodGet, path, nil, headers)
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) patch(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPatch, path, body, headers)
}

func (c *apiClient) login(email, password string) (string, map[string]string) {
	c.t.Helper()
	resp := c.post("/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected login status: %d", resp.StatusCode)
	}
	var payload struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode login response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.User.ID, map[string]string{"Authorization": "Bearer " + payload.Token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAPIResultReviewFlow(t *testing.T) {
	api := newTestAPI(t)
	adminID, auth := api.login("admin@linoslms.com", "admin123")

	resp := api.post("/v1/patients", map[string]any{
		"name":        "Jane Doe",
		"dateOfBirth": "1990-04-12",
		"gender":      "Female",
		"phone":       "555-0100",
	}, auth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create patient: unexpected status %d", resp.StatusCode)
	}
	patient := decode[map[string]any](t, resp)
	patientID := patient["id"].(string)
	if !strings.HasPrefix(patientID, "PAT-") {
		t.Fatalf("unexpected patient id %q", patientID)
	}

	resp = api.post("/v1/tests", map[string]any{
		"patientId": patientID,
		"testType":  "CBC",
	}, auth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create test: unexpected status %d", resp.StatusCode)
	}
	order := decode[map[string]any](t, resp)
	if order["status"] != "pending" || order["priority"] != "Normal" || order["qcStatus"] != "Pending" {
		t.Fatalf("unexpected test defaults: %v", order)
	}

	resp = api.post("/v1/results", map[string]any{
		"patientId": patientID,
		"testName":  "CBC",
		"value":     "5.4",
		"unit":      "10^9/L",
	}, auth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create result: unexpected status %d", resp.StatusCode)
	}
	result := decode[map[string]any](t, resp)
	resultID := result["id"].(string)
	if result["status"] != "pending" {
		t.Fatalf("new result should be pending, got %v", result["status"])
	}
	if result["enteredBy"] != adminID {
		t.Fatalf("enteredBy = %v, want %s", result["enteredBy"], adminID)
	}

	resp = api.post("/v1/results/"+resultID+"/approve", nil, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve result: unexpected status %d", resp.StatusCode)
	}
	approved := decode[map[string]any](t, resp)
	if approved["status"] != "approved" {
		t.Fatalf("status = %v after approve", approved["status"])
	}
	if approved["approvedBy"] != adminID {
		t.Fatalf("approvedBy = %v, want %s", approved["approvedBy"], adminID)
	}

	// Each mutation above left exactly one trail entry plus the login.
	resp = api.get("/v1/audit-logs", auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit logs: unexpected status %d", resp.StatusCode)
	}
	entries := decode[[]map[string]any](t, resp)
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e["action"].(string))
	}
	want := []string{"LOGIN", "CREATE_PATIENT", "CREATE_TEST", "CREATE_RESULT", "APPROVE_RESULT"}
	if len(actions) != len(want) {
		t.Fatalf("audit actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("audit actions = %v, want %v", actions, want)
		}
	}
}

func TestAPIEnforcesAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/patients", map[string]any{"name": "X"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	errBody := decode[map[string]any](t, resp)
	if errBody["error"] == "" {
		t.Fatalf("expected error message")
	}
}

func TestAPIRoleGating(t *testing.T) {
	api := newTestAPI(t)
	_, adminAuth := api.login("admin@linoslms.com", "admin123")

	resp := api.post("/v1/users", map[string]any{
		"name":     "Casey Collector",
		"email":    "casey@linoslms.com",
		"role":     "Specimen Collector",
		"password": "casey123",
	}, adminAuth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user: unexpected status %d", resp.StatusCode)
	}
	resp.Body.Close()

	_, collectorAuth := api.login("casey@linoslms.com", "casey123")

	// Collectors may reach the specimen screen but not user management.
	resp = api.get("/v1/specimens", collectorAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("specimens as collector: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/users", collectorAuth)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("users as collector: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The technician seed account reaches the testing screen but is not
	// on the patient screen's role list.
	_, techAuth := api.login("tech@linoslms.com", "tech123")
	resp = api.get("/v1/tests", techAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tests as technician: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/patients", techAuth)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("patients as technician: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/login", map[string]any{
		"email":    "admin@linoslms.com",
		"password": "wrong",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/auth/login", map[string]any{
		"email":    "nobody@linoslms.com",
		"password": "admin123",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown email: expected 401, got %d", resp.StatusCode)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	api := newTestAPI(t)
	_, adminAuth := api.login("admin@linoslms.com", "admin123")

	resp := api.post("/v1/users", map[string]any{
		"name":     "Former Staff",
		"email":    "former@linoslms.com",
		"role":     "Lab Technician",
		"password": "former123",
		"active":   false,
	}, adminAuth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user: unexpected status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/auth/login", map[string]any{
		"email":    "former@linoslms.com",
		"password": "former123",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("inactive login: expected 401, got %d", resp.StatusCode)
	}
}

func TestUserResponsesOmitStoredSecret(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/login", map[string]any{
		"email":    "admin@linoslms.com",
		"password": "admin123",
	}, nil)
	payload := decode[map[string]any](t, resp)
	user := payload["user"].(map[string]any)
	if _, leaked := user["password"]; leaked {
		t.Fatalf("login response leaked stored secret: %v", user)
	}

	_, auth := api.login("admin@linoslms.com", "admin123")
	resp = api.get("/v1/users", auth)
	users := decode[[]map[string]any](t, resp)
	if len(users) == 0 {
		t.Fatalf("expected seeded users")
	}
	for _, u := range users {
		if _, leaked := u["password"]; leaked {
			t.Fatalf("user listing leaked stored secret: %v", u)
		}
	}
}

func TestCreateRejectsUnknownEnumValues(t *testing.T) {
	api := newTestAPI(t)
	_, auth := api.login("admin@linoslms.com", "admin123")

	resp := api.post("/v1/patients", map[string]any{"name": "Pat"}, auth)
	patient := decode[map[string]any](t, resp)
	patientID := patient["id"].(string)

	resp = api.post("/v1/specimens", map[string]any{
		"patientId": patientID,
		"type":      "Plasma",
	}, auth)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown specimen type: expected 400, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/tests", map[string]any{
		"patientId": "PAT-missing",
		"testType":  "CBC",
	}, auth)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown patient ref: expected 400, got %d", resp.StatusCode)
	}
}

func TestUpdateMissingRecordReturns404(t *testing.T) {
	api := newTestAPI(t)
	_, auth := api.login("admin@linoslms.com", "admin123")

	resp := api.patch("/v1/patients/PAT-missing", map[string]any{"name": "Ghost"}, auth)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestResetPassword(t *testing.T) {
	api := newTestAPI(t)
	_, adminAuth := api.login("admin@linoslms.com", "admin123")

	resp := api.get("/v1/users", adminAuth)
	users := decode[[]map[string]any](t, resp)
	var techID string
	for _, u := range users {
		if u["email"] == "tech@linoslms.com" {
			techID = u["id"].(string)
		}
	}
	if techID == "" {
		t.Fatalf("seeded technician not found")
	}

	resp = api.post("/v1/users/"+techID+"/reset-password", map[string]any{
		"password": "rotated456",
	}, adminAuth)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset password: unexpected status %d", resp.StatusCode)
	}

	resp = api.post("/v1/auth/login", map[string]any{
		"email":    "tech@linoslms.com",
		"password": "tech123",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old password should be rejected, got %d", resp.StatusCode)
	}

	_, _ = api.login("tech@linoslms.com", "rotated456")
}

func TestNotificationsSurfaceMutations(t *testing.T) {
	api := newTestAPI(t)
	_, auth := api.login("admin@linoslms.com", "admin123")

	resp := api.post("/v1/patients", map[string]any{"name": "Pat"}, auth)
	resp.Body.Close()

	resp = api.get("/v1/notifications", auth)
	notices := decode[[]map[string]any](t, resp)
	if len(notices) == 0 {
		t.Fatalf("expected a success notification after create")
	}
	id := int64(notices[len(notices)-1]["id"].(float64))

	resp = api.do(http.MethodDelete, "/v1/notifications/"+itoa(id), nil, auth)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("dismiss: expected 204, got %d", resp.StatusCode)
	}

	// Dismissing the same id again stays a no-op.
	resp = api.do(http.MethodDelete, "/v1/notifications/"+itoa(id), nil, auth)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("repeat dismiss: expected 204, got %d", resp.StatusCode)
	}
}

func TestHealthAndInfoArePublic(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := api.get(path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
