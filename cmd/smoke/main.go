// Command smoke runs an end-to-end check against a running API: log in
// as the seeded administrator, register a patient, order a test, enter
// a result and approve it.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("LMS_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 5 * time.Second}

	var login struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	call(client, base, "", http.MethodPost, "/v1/auth/login", map[string]any{
		"email":    "admin@linoslms.com",
		"password": "admin123",
	}, http.StatusOK, &login)

	var patient struct {
		ID string `json:"id"`
	}
	call(client, base, login.Token, http.MethodPost, "/v1/patients", map[string]any{
		"name":        "Smoke Test Patient",
		"dateOfBirth": "1985-01-01",
		"gender":      "Other",
	}, http.StatusCreated, &patient)

	var order struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	call(client, base, login.Token, http.MethodPost, "/v1/tests", map[string]any{
		"patientId": patient.ID,
		"testType":  "CBC",
		"priority":  "Urgent",
	}, http.StatusCreated, &order)
	if order.Status != "pending" {
		log.Fatalf("new test order status = %q, want pending", order.Status)
	}

	var result struct {
		ID string `json:"id"`
	}
	call(client, base, login.Token, http.MethodPost, "/v1/results", map[string]any{
		"patientId": patient.ID,
		"testName":  "CBC",
		"value":     "4.9",
		"unit":      "10^9/L",
	}, http.StatusCreated, &result)

	var approved struct {
		Status     string `json:"status"`
		ApprovedBy string `json:"approvedBy"`
	}
	call(client, base, login.Token, http.MethodPost, "/v1/results/"+result.ID+"/approve", nil, http.StatusOK, &approved)
	if approved.Status != "approved" || approved.ApprovedBy != login.User.ID {
		log.Fatalf("approval not recorded: status=%q approvedBy=%q", approved.Status, approved.ApprovedBy)
	}

	fmt.Printf("smoke test passed: patient=%s test=%s result=%s\n", patient.ID, order.ID, result.ID)
}

func call(client *http.Client, base, token, method, path string, body any, wantStatus int, out any) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			log.Fatalf("%s %s: marshal: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, base+path, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("%s %s: status %d, want %d", method, path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}
