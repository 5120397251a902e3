package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"linoslms.org/internal/audit"
	"linoslms.org/internal/records"
	"linoslms.org/internal/session"
)

func handleStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, records.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, records.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "record not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// Users ---------------------------------------------------------------

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
	Active   *bool  `json:"active"`
}

type updateUserRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Role   *string `json:"role"`
	Active *bool   `json:"active"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users := a.store.ListUsers(r.Context())
		views := make([]userView, 0, len(users))
		for _, u := range users {
			views = append(views, viewOf(u))
		}
		writeJSON(w, http.StatusOK, views)
	case http.MethodPost:
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		active := true
		if req.Active != nil {
			active = *req.Active
		}
		user, err := a.store.CreateUser(r.Context(), records.UserInput{
			Name:           req.Name,
			Email:          req.Email,
			Role:           records.Role(req.Role),
			PasswordSecret: req.Password,
			Active:         active,
		})
		if err != nil {
			handleStoreError(w, r, err)
			return
		}
		a.audit(r.Context(), audit.ActionCreateUser, map[string]any{"userId": user.ID})
		a.notify(session.NoticeSuccess, "User created successfully")
		w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
		writeJSON(w, http.StatusCreated, viewOf(user))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	id, action := resourceID(r.URL.Path, "/v1/users/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if action == "reset-password" {
		a.resetPassword(w, r, id)
		return
	}
	if action != "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		upd := records.UserUpdate{Name: req.Name, Email: req.Email, Active: req.Active}
		if req.Role != nil {
			role := records.Role(*req.Role)
			upd.Role = &role
		}
		user, err := a.store.UpdateUser(r.Context(), id, upd)
		if err != nil {
			handleStoreError(w, r, err)
			return
		}
		a.audit(r.Context(), audit.ActionUpdateUser, map[string]any{"userId": user.ID})
		a.notify(session.NoticeSuccess, "User updated successfully")
		writeJSON(w, http.StatusOK, viewOf(user))
	case http.MethodDelete:
		if err := a.store.DeleteUser(r.Context(), id); err != nil {
			handleStoreError(w, r, err)
			return
		}
		a.audit(r.Context(), audit.ActionDeleteUser, map[string]any{"userId": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "password is required")
		return
	}
	user, err := a.store.UpdateUser(r.Context(), id, records.UserUpdate{PasswordSecret: &req.Password})
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	a.audit(r.Context(), audit.ActionResetPassword, map[string]any{"userId": user.ID})
	a.notify(session.NoticeSuccess, "Password reset successfully")
	writeJSON(w, http.StatusOK, viewOf(user))
}

// Patients ------------------------------------------------------------

type createPatientRequest struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Address     string `json:"address"`
}

type updatePatientRequest struct {
	Name        *string `json:"name"`
	DateOfBirth *string `json:"dateOfBirth"`
	Gender      *string `json:"gender"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	Address     *string `json:"address"`
}

func (a *API) handlePatientsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, listOrEmpty(a.store.ListPatients(r.Context())))
	case http.MethodPost:
		var req createPatientRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		patient, err := a.store.CreatePatient(r.Context(), records.PatientInput{
			Name:        req.Name,
			DateOfBirth: req.DateOfBirth,
			Gender:      req.Gender,
			Phone:       req.Phone,
			Email:       req.Email,
			Address:     req.Address,
		})
		if err != nil {
			handleStoreError(w, r, err)
			return
		}
		a.audit(r.Context(), audit.ActionCreatePatient, map[string]any{"patientId": patient.ID})
		a.notify(session.NoticeSuccess, "Patient registered successfully")
		w.Header().Set("Location", fmt.Sprintf("/v1/patients/%s", patient.ID))
		writeJSON(w, http.StatusCreated, patient)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePatientResource(w http.ResponseWriter, r *http.Request) {
	id, action := resourceID(r.URL.Path, "/v1/patients/")
	if id == "" || action != "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req updatePatientRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		patient, err := a.store.UpdatePatient(r.Context(), id, records.PatientUpdate{
			Name:        req.Name,
			DateOfBirth: req.DateOfBirth,
			Gender:      req.Gender,
			Phone:       req.Phone,
			Email:       req.Email,
			Address:     req.Address,
		})
		if err != nil {
			handleStoreError(w, r, err)
			return
		}
		a.audit(r.Context(), audit.ActionUpdatePatient, map[string]any{"patientId": patient.ID})
		a.notify(session.NoticeSuccess, "Patient updated successfully")
		writeJSON(w, http.StatusOK, patient)
	case http.MethodDelete:
		if err := a.store.DeletePatient(r.Context(), id); err != nil {
			handleStoreError(w, r, err)
			return
		}
		a.audit(r.Context(), audit.ActionDeletePatient, map[string]any{"patientId": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

// Specimens -----------------------------------------------------------

type createSpecimenRequest struct {
	PatientID      string `json:"patientId"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	Condition      string `json:"condition"`
	Location       string `json:"location"`
	CollectionDate string `json:"collectionDate"`
}

type updateSpecimenRequest struct {
	Type           *string `json:"type"`
	Status         *string `json:"status"`
	Condition      *string `json:"condition"`
	Location       *string `json:"location"`
	CollectionDate *string `json:"collectionDate"`
}

func (a *API) handleSpecimensCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, listOrEmpty(a.store.ListSpecimens(r.Context())))
	case http.MethodPost:
		var req createSpecimenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		specimen, err := a.store.CreateSpecimen(r.Context(), records.SpecimenInput{
			PatientID:      req.PatientID,
			Type:           records.SpecimenType(req.Type),
			Status:         records.SpecimenStatus(req.Status),
			Condition:      req.Condition,
			Location:       req.Location,
			CollectionDate: req.CollectionDate,
		})
		if err != nil {
			handleStoreError(w, r, err)
			return
		}
		a.audit(r.Context(), audit.ActionCreateSpecimen, map[string]any{"specimenId": specimen.ID})
		a.notify(session.NoticeSuccess, "Specimen collected successfully")
		w.Header().Set("Location", fmt.Sprintf("/v1/specimens/%s", specimen.ID))
		writeJSON(w, http.StatusCreated, specimen)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleSpecimenResource(w http.ResponseWriter, r *http.Request) {
	id, action := resourceID(r.URL.Path, "/v1/specimens/")
	if id == "" || action != "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPatch {
		// Clinical records have no delete.
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}

	var req updateSpecimenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := records.SpecimenUpdate{
		Condition:      req.Condition,
		Location:       req.Location,
		CollectionDate: req.CollectionDate,
	}
	if req.Type != nil {
		t := records.SpecimenType(*req.Type)
		upd.Type = &t
	}
	if req.Status != nil {
		s := records.SpecimenStatus(*req.Status)
		upd.Status = &s
	}
	specimen, err := a.store.UpdateSpecimen(r.Context(), id, upd)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	a.audit(r.Context(), audit.ActionUpdateSpecimen, map[string]any{"specimenId": specimen.ID})
	a.notify(session.NoticeSuccess, "Specimen updated successfully")
	writeJSON(w, http.StatusOK, specimen)
}

// Tests ---------------------------------------------------------------

type createTestRequest struct {
	PatientID  string `json:"patientId"`
	TestType   string `json:"testType"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	Technician string `json:"technician"`
	QCStatus   string `json:"qcStatus"`
}

type updateTestRequest struct {
	TestType   *string `json:"testType"`
	Status     *string `json:"status"`
	Priority   *string `json:"priority"`
	Technician *string `json:"technician"`
	QCStatus   *string `json:"qcStatus"`
}

func (a *API) handleTestsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, listOrEmpty(a.store.ListTests(r.Context())))
	case http.MethodPost:
		var req createTestRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		test, err := a.store.CreateTest(r.Context(), records.TestInput{
			PatientID:  req.PatientID,
			TestType:   req.TestType,
			Status:     records.TestStatus(req.Status),
			Priority:   records.Priority(req.Priority),
			Technician: req.Technician,
			QCStatus:   records.QCStatus(req.QCStatus),
		})
		if err != nil {
			handleStoreError(w, r, err)
			return
		}
		a.audit(r.Context(), audit.ActionCreateTest, map[string]any{"testId": test.ID})
		a.notify(session.NoticeSuccess, "Test order created successfully")
		w.Header().Set("Location", fmt.Sprintf("/v1/tests/%s", test.ID))
		writeJSON(w, http.StatusCreated, test)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTestResource(w http.ResponseWriter, r *http.Request) {
	id, action := resourceID(r.URL.Path, "/v1/tests/")
	if id == "" || action != "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}

	var req updateTestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := records.TestUpdate{TestType: req.TestType, Technician: req.Technician}
	if req.Status != nil {
		s := records.TestStatus(*req.Status)
		upd.Status = &s
	}
	if req.Priority != nil {
		p := records.Priority(*req.Priority)
		upd.Priority = &p
	}
	if req.QCStatus != nil {
		q := records.QCStatus(*req.QCStatus)
		upd.QCStatus = &q
	}
	test, err := a.store.UpdateTest(r.Context(), id, upd)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	a.audit(r.Context(), audit.ActionUpdateTest, map[string]any{"testId": test.ID})
	a.notify(session.NoticeSuccess, "Test updated successfully")
	writeJSON(w, http.StatusOK, test)
}

// Results -------------------------------------------------------------

type createResultRequest struct {
	PatientID      string `json:"patientId"`
	TestName       string `json:"testName"`
	Value          string `json:"value"`
	Unit           string `json:"unit"`
	ReferenceRange string `json:"referenceRange"`
	IsAbnormal     bool   `json:"isAbnormal"`
	Status         string `json:"status"`
}

type updateResultRequest struct {
	Value          *string `json:"value"`
	Unit           *string `json:"unit"`
	ReferenceRange *string `json:"referenceRange"`
	IsAbnormal     *bool   `json:"isAbnormal"`
	Status         *string `json:"status"`
}

func (a *API) handleResultsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, listOrEmpty(a.store.ListResults(r.Context())))
	case http.MethodPost:
		var req createResultRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		enteredBy := ""
		if user, ok := userFromContext(r.Context()); ok {
			enteredBy = user.ID
		}
		result, err := a.store.CreateResult(r.Context(), records.ResultInput{
			PatientID:      req.PatientID,
			TestName:       req.TestName,
			Value:          req.Value,
			Unit:           req.Unit,
			ReferenceRange: req.ReferenceRange,
			IsAbnormal:     req.IsAbnormal,
			Status:         records.ResultStatus(req.Status),
			EnteredBy:      enteredBy,
		})
		if err != nil {
			handleStoreError(w, r, err)
			return
		}
		a.audit(r.Context(), audit.ActionCreateResult, map[string]any{"resultId": result.ID})
		a.notify(session.NoticeSuccess, "Result entered successfully")
		w.Header().Set("Location", fmt.Sprintf("/v1/results/%s", result.ID))
		writeJSON(w, http.StatusCreated, result)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleResultResource(w http.ResponseWriter, r *http.Request) {
	id, action := resourceID(r.URL.Path, "/v1/results/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch action {
	case "approve":
		a.reviewResult(w, r, id, records.ResultApproved, audit.ActionApproveResult, "Result approved")
		return
	case "reject":
		a.reviewResult(w, r, id, records.ResultRejected, audit.ActionRejectResult, "Result rejected")
		return
	case "":
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}
	var req updateResultRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := records.ResultUpdate{
		Value:          req.Value,
		Unit:           req.Unit,
		ReferenceRange: req.ReferenceRange,
		IsAbnormal:     req.IsAbnormal,
	}
	if req.Status != nil {
		s := records.ResultStatus(*req.Status)
		upd.Status = &s
	}
	result, err := a.store.UpdateResult(r.Context(), id, upd)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	a.audit(r.Context(), audit.ActionUpdateResult, map[string]any{"resultId": result.ID})
	a.notify(session.NoticeSuccess, "Result updated successfully")
	writeJSON(w, http.StatusOK, result)
}

// reviewResult stamps the reviewer and flips the result status.
func (a *API) reviewResult(w http.ResponseWriter, r *http.Request, id string, status records.ResultStatus, action, message string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	approvedBy := ""
	if user, ok := userFromContext(r.Context()); ok {
		approvedBy = user.ID
	}
	result, err := a.store.UpdateResult(r.Context(), id, records.ResultUpdate{
		Status:     &status,
		ApprovedBy: &approvedBy,
	})
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	a.audit(r.Context(), action, map[string]any{"resultId": result.ID})
	a.notify(session.NoticeSuccess, message)
	writeJSON(w, http.StatusOK, result)
}

// Audit log -----------------------------------------------------------

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, listOrEmpty(a.auditor.List(r.Context())))
}

// listOrEmpty keeps empty collections encoding as [] instead of null.
func listOrEmpty[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
