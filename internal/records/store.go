package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"linoslms.org/internal/ids"
	"linoslms.org/internal/obs"
	"linoslms.org/internal/storage"
)

// Store owns the six collections. All operations are read-modify-write
// against the backend under one lock, so a collection is always
// persisted as a whole ordered list.
type Store struct {
	mu      sync.Mutex
	backend storage.Backend
	now     func() time.Time
}

// Option configures Store behavior.
type Option func(*Store)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewStore constructs a Store over the given backend.
func NewStore(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loadList reads a collection. Absent keys and unparsable payloads both
// come back as an empty list: a degraded data set keeps the screens
// usable, and the corruption is reported on the diagnostic channel only.
func loadList[T any](ctx context.Context, s *Store, key string) []T {
	payload, err := s.backend.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNoKey) {
			obs.Diag("storage.load_failed", map[string]any{"key": key, "error": err.Error()})
		}
		return nil
	}
	var list []T
	if err := json.Unmarshal(payload, &list); err != nil {
		obs.Diag("storage.corrupt_payload", map[string]any{"key": key, "error": err.Error()})
		return nil
	}
	return list
}

func saveList[T any](ctx context.Context, s *Store, key string, list []T) error {
	if list == nil {
		list = []T{}
	}
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.backend.Store(ctx, key, payload)
}

// Users ---------------------------------------------------------------

// UserInput carries the caller-supplied fields for a new user.
type UserInput struct {
	Name           string
	Email          string
	Role           Role
	PasswordSecret string
	Active         bool
}

// UserUpdate merges supplied fields into an existing user.
type UserUpdate struct {
	Name           *string
	Email          *string
	Role           *Role
	PasswordSecret *string
	Active         *bool
}

func (s *Store) ListUsers(ctx context.Context) []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[User](ctx, s, storage.KeyUsers)
}

func (s *Store) CreateUser(ctx context.Context, in UserInput) (User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Name == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if !in.Role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	if in.PasswordSecret == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	users := loadList[User](ctx, s, storage.KeyUsers)
	user := User{
		ID:             ids.New(ids.KindUser),
		Name:           in.Name,
		Email:          in.Email,
		Role:           in.Role,
		PasswordSecret: in.PasswordSecret,
		Active:         in.Active,
		CreatedAt:      s.now().UTC(),
	}
	users = append(users, user)
	if err := saveList(ctx, s, storage.KeyUsers, users); err != nil {
		return User{}, err
	}
	obs.CountMutation("users", "create")
	return user, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error) {
	if upd.Role != nil && !upd.Role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *upd.Role)
	}
	if upd.Email != nil {
		trimmed := strings.TrimSpace(strings.ToLower(*upd.Email))
		if trimmed == "" || !strings.Contains(trimmed, "@") {
			return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &trimmed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	users := loadList[User](ctx, s, storage.KeyUsers)
	for i := range users {
		if users[i].ID != id {
			continue
		}
		if upd.Name != nil {
			users[i].Name = *upd.Name
		}
		if upd.Email != nil {
			users[i].Email = *upd.Email
		}
		if upd.Role != nil {
			users[i].Role = *upd.Role
		}
		if upd.PasswordSecret != nil {
			users[i].PasswordSecret = *upd.PasswordSecret
		}
		if upd.Active != nil {
			users[i].Active = *upd.Active
		}
		if err := saveList(ctx, s, storage.KeyUsers, users); err != nil {
			return User{}, err
		}
		obs.CountMutation("users", "update")
		return users[i], nil
	}
	return User{}, ErrNotFound
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := loadList[User](ctx, s, storage.KeyUsers)
	kept := users[:0]
	for _, u := range users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	if len(kept) == len(users) {
		return nil
	}
	if err := saveList(ctx, s, storage.KeyUsers, kept); err != nil {
		return err
	}
	obs.CountMutation("users", "delete")
	return nil
}

// FindUser looks a user up by id.
func (s *Store) FindUser(ctx context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range loadList[User](ctx, s, storage.KeyUsers) {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// FindUserByEmail supports the login contract: plain equality against
// the stored secret happens at the caller.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range loadList[User](ctx, s, storage.KeyUsers) {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// Patients ------------------------------------------------------------

type PatientInput struct {
	Name        string
	DateOfBirth string
	Gender      string
	Phone       string
	Email       string
	Address     string
}

type PatientUpdate struct {
	Name        *string
	DateOfBirth *string
	Gender      *string
	Phone       *string
	Email       *string
	Address     *string
}

func (s *Store) ListPatients(ctx context.Context) []Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[Patient](ctx, s, storage.KeyPatients)
}

func (s *Store) CreatePatient(ctx context.Context, in PatientInput) (Patient, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Patient{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	patients := loadList[Patient](ctx, s, storage.KeyPatients)
	patient := Patient{
		ID:          ids.New(ids.KindPatient),
		Name:        in.Name,
		DateOfBirth: in.DateOfBirth,
		Gender:      in.Gender,
		Phone:       in.Phone,
		Email:       in.Email,
		Address:     in.Address,
		CreatedAt:   s.now().UTC(),
	}
	patients = append(patients, patient)
	if err := saveList(ctx, s, storage.KeyPatients, patients); err != nil {
		return Patient{}, err
	}
	obs.CountMutation("patients", "create")
	return patient, nil
}

func (s *Store) UpdatePatient(ctx context.Context, id string, upd PatientUpdate) (Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	patients := loadList[Patient](ctx, s, storage.KeyPatients)
	for i := range patients {
		if patients[i].ID != id {
			continue
		}
		if upd.Name != nil {
			patients[i].Name = *upd.Name
		}
		if upd.DateOfBirth != nil {
			patients[i].DateOfBirth = *upd.DateOfBirth
		}
		if upd.Gender != nil {
			patients[i].Gender = *upd.Gender
		}
		if upd.Phone != nil {
			patients[i].Phone = *upd.Phone
		}
		if upd.Email != nil {
			patients[i].Email = *upd.Email
		}
		if upd.Address != nil {
			patients[i].Address = *upd.Address
		}
		if err := saveList(ctx, s, storage.KeyPatients, patients); err != nil {
			return Patient{}, err
		}
		obs.CountMutation("patients", "update")
		return patients[i], nil
	}
	return Patient{}, ErrNotFound
}

func (s *Store) DeletePatient(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	patients := loadList[Patient](ctx, s, storage.KeyPatients)
	kept := patients[:0]
	for _, p := range patients {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(patients) {
		return nil
	}
	if err := saveList(ctx, s, storage.KeyPatients, kept); err != nil {
		return err
	}
	obs.CountMutation("patients", "delete")
	return nil
}

// patientKnown must be called with the lock held.
func (s *Store) patientKnown(ctx context.Context, id string) bool {
	for _, p := range loadList[Patient](ctx, s, storage.KeyPatients) {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Specimens -----------------------------------------------------------

type SpecimenInput struct {
	PatientID      string
	Type           SpecimenType
	Status         SpecimenStatus
	Condition      string
	Location       string
	CollectionDate string
}

type SpecimenUpdate struct {
	Type           *SpecimenType
	Status         *SpecimenStatus
	Condition      *string
	Location       *string
	CollectionDate *string
}

func (s *Store) ListSpecimens(ctx context.Context) []Specimen {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[Specimen](ctx, s, storage.KeySpecimens)
}

func (s *Store) CreateSpecimen(ctx context.Context, in SpecimenInput) (Specimen, error) {
	if !in.Type.Valid() {
		return Specimen{}, fmt.Errorf("%w: unknown specimen type %q", ErrInvalidInput, in.Type)
	}
	if in.Status == "" {
		in.Status = SpecimenCollected
	}
	if !in.Status.Valid() {
		return Specimen{}, fmt.Errorf("%w: unknown specimen status %q", ErrInvalidInput, in.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.patientKnown(ctx, in.PatientID) {
		return Specimen{}, fmt.Errorf("%w: unknown patient %q", ErrInvalidInput, in.PatientID)
	}
	specimens := loadList[Specimen](ctx, s, storage.KeySpecimens)
	specimen := Specimen{
		ID:             ids.New(ids.KindSpecimen),
		PatientID:      in.PatientID,
		Type:           in.Type,
		Status:         in.Status,
		Condition:      in.Condition,
		Location:       in.Location,
		CollectionDate: in.CollectionDate,
		CreatedAt:      s.now().UTC(),
	}
	specimens = append(specimens, specimen)
	if err := saveList(ctx, s, storage.KeySpecimens, specimens); err != nil {
		return Specimen{}, err
	}
	obs.CountMutation("specimens", "create")
	return specimen, nil
}

func (s *Store) UpdateSpecimen(ctx context.Context, id string, upd SpecimenUpdate) (Specimen, error) {
	if upd.Type != nil && !upd.Type.Valid() {
		return Specimen{}, fmt.Errorf("%w: unknown specimen type %q", ErrInvalidInput, *upd.Type)
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return Specimen{}, fmt.Errorf("%w: unknown specimen status %q", ErrInvalidInput, *upd.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	specimens := loadList[Specimen](ctx, s, storage.KeySpecimens)
	for i := range specimens {
		if specimens[i].ID != id {
			continue
		}
		if upd.Type != nil {
			specimens[i].Type = *upd.Type
		}
		if upd.Status != nil {
			specimens[i].Status = *upd.Status
		}
		if upd.Condition != nil {
			specimens[i].Condition = *upd.Condition
		}
		if upd.Location != nil {
			specimens[i].Location = *upd.Location
		}
		if upd.CollectionDate != nil {
			specimens[i].CollectionDate = *upd.CollectionDate
		}
		if err := saveList(ctx, s, storage.KeySpecimens, specimens); err != nil {
			return Specimen{}, err
		}
		obs.CountMutation("specimens", "update")
		return specimens[i], nil
	}
	return Specimen{}, ErrNotFound
}

// Tests ---------------------------------------------------------------

type TestInput struct {
	PatientID  string
	TestType   string
	Status     TestStatus
	Priority   Priority
	Technician string
	QCStatus   QCStatus
}

type TestUpdate struct {
	TestType   *string
	Status     *TestStatus
	Priority   *Priority
	Technician *string
	QCStatus   *QCStatus
}

func (s *Store) ListTests(ctx context.Context) []Test {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[Test](ctx, s, storage.KeyTests)
}

func (s *Store) CreateTest(ctx context.Context, in TestInput) (Test, error) {
	in.TestType = strings.TrimSpace(in.TestType)
	if in.TestType == "" {
		return Test{}, fmt.Errorf("%w: test type is required", ErrInvalidInput)
	}
	if in.Status == "" {
		in.Status = TestPending
	}
	if in.Priority == "" {
		in.Priority = PriorityNormal
	}
	if in.QCStatus == "" {
		in.QCStatus = QCPending
	}
	if !in.Status.Valid() {
		return Test{}, fmt.Errorf("%w: unknown test status %q", ErrInvalidInput, in.Status)
	}
	if !in.Priority.Valid() {
		return Test{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, in.Priority)
	}
	if !in.QCStatus.Valid() {
		return Test{}, fmt.Errorf("%w: unknown qc status %q", ErrInvalidInput, in.QCStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.patientKnown(ctx, in.PatientID) {
		return Test{}, fmt.Errorf("%w: unknown patient %q", ErrInvalidInput, in.PatientID)
	}
	tests := loadList[Test](ctx, s, storage.KeyTests)
	test := Test{
		ID:         ids.New(ids.KindTest),
		PatientID:  in.PatientID,
		TestType:   in.TestType,
		Status:     in.Status,
		Priority:   in.Priority,
		Technician: in.Technician,
		QCStatus:   in.QCStatus,
		CreatedAt:  s.now().UTC(),
	}
	tests = append(tests, test)
	if err := saveList(ctx, s, storage.KeyTests, tests); err != nil {
		return Test{}, err
	}
	obs.CountMutation("tests", "create")
	return test, nil
}

func (s *Store) UpdateTest(ctx context.Context, id string, upd TestUpdate) (Test, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return Test{}, fmt.Errorf("%w: unknown test status %q", ErrInvalidInput, *upd.Status)
	}
	if upd.Priority != nil && !upd.Priority.Valid() {
		return Test{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, *upd.Priority)
	}
	if upd.QCStatus != nil && !upd.QCStatus.Valid() {
		return Test{}, fmt.Errorf("%w: unknown qc status %q", ErrInvalidInput, *upd.QCStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tests := loadList[Test](ctx, s, storage.KeyTests)
	for i := range tests {
		if tests[i].ID != id {
			continue
		}
		if upd.TestType != nil {
			tests[i].TestType = *upd.TestType
		}
		if upd.Status != nil {
			tests[i].Status = *upd.Status
		}
		if upd.Priority != nil {
			tests[i].Priority = *upd.Priority
		}
		if upd.Technician != nil {
			tests[i].Technician = *upd.Technician
		}
		if upd.QCStatus != nil {
			tests[i].QCStatus = *upd.QCStatus
		}
		if err := saveList(ctx, s, storage.KeyTests, tests); err != nil {
			return Test{}, err
		}
		obs.CountMutation("tests", "update")
		return tests[i], nil
	}
	return Test{}, ErrNotFound
}

// Results -------------------------------------------------------------

type ResultInput struct {
	PatientID      string
	TestName       string
	Value          string
	Unit           string
	ReferenceRange string
	IsAbnormal     bool
	Status         ResultStatus
	EnteredBy      string
}

type ResultUpdate struct {
	Value          *string
	Unit           *string
	ReferenceRange *string
	IsAbnormal     *bool
	Status         *ResultStatus
	ApprovedBy     *string
}

func (s *Store) ListResults(ctx context.Context) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[Result](ctx, s, storage.KeyResults)
}

func (s *Store) CreateResult(ctx context.Context, in ResultInput) (Result, error) {
	in.TestName = strings.TrimSpace(in.TestName)
	if in.TestName == "" {
		return Result{}, fmt.Errorf("%w: test name is required", ErrInvalidInput)
	}
	if in.Status == "" {
		in.Status = ResultPending
	}
	if !in.Status.Valid() {
		return Result{}, fmt.Errorf("%w: unknown result status %q", ErrInvalidInput, in.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.patientKnown(ctx, in.PatientID) {
		return Result{}, fmt.Errorf("%w: unknown patient %q", ErrInvalidInput, in.PatientID)
	}
	results := loadList[Result](ctx, s, storage.KeyResults)
	result := Result{
		ID:             ids.New(ids.KindResult),
		PatientID:      in.PatientID,
		TestName:       in.TestName,
		Value:          in.Value,
		Unit:           in.Unit,
		ReferenceRange: in.ReferenceRange,
		IsAbnormal:     in.IsAbnormal,
		Status:         in.Status,
		EnteredBy:      in.EnteredBy,
		CreatedAt:      s.now().UTC(),
	}
	results = append(results, result)
	if err := saveList(ctx, s, storage.KeyResults, results); err != nil {
		return Result{}, err
	}
	obs.CountMutation("results", "create")
	return result, nil
}

func (s *Store) UpdateResult(ctx context.Context, id string, upd ResultUpdate) (Result, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return Result{}, fmt.Errorf("%w: unknown result status %q", ErrInvalidInput, *upd.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	results := loadList[Result](ctx, s, storage.KeyResults)
	for i := range results {
		if results[i].ID != id {
			continue
		}
		if upd.Value != nil {
			results[i].Value = *upd.Value
		}
		if upd.Unit != nil {
			results[i].Unit = *upd.Unit
		}
		if upd.ReferenceRange != nil {
			results[i].ReferenceRange = *upd.ReferenceRange
		}
		if upd.IsAbnormal != nil {
			results[i].IsAbnormal = *upd.IsAbnormal
		}
		if upd.Status != nil {
			results[i].Status = *upd.Status
		}
		if upd.ApprovedBy != nil {
			results[i].ApprovedBy = *upd.ApprovedBy
		}
		if err := saveList(ctx, s, storage.KeyResults, results); err != nil {
			return Result{}, err
		}
		obs.CountMutation("results", "update")
		return results[i], nil
	}
	return Result{}, ErrNotFound
}

// Audit trail ---------------------------------------------------------

// AppendAudit adds a write-once entry. No update or delete exists for
// the audit collection.
func (s *Store) AppendAudit(ctx context.Context, action, userID string, details map[string]any) (AuditEntry, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return AuditEntry{}, fmt.Errorf("%w: action is required", ErrInvalidInput)
	}
	if details == nil {
		details = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries := loadList[AuditEntry](ctx, s, storage.KeyAuditLogs)
	entry := AuditEntry{
		ID:        ids.New(ids.KindAudit),
		Action:    action,
		UserID:    userID,
		Details:   details,
		Timestamp: s.now().UTC(),
	}
	entries = append(entries, entry)
	if err := saveList(ctx, s, storage.KeyAuditLogs, entries); err != nil {
		return AuditEntry{}, err
	}
	return entry, nil
}

// ListAudit returns the trail in insertion order, most recent last.
func (s *Store) ListAudit(ctx context.Context) []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[AuditEntry](ctx, s, storage.KeyAuditLogs)
}
