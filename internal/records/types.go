// Package records implements the persistent collections behind the
// laboratory screens: users, patients, specimens, tests, results and the
// append-only audit trail. Each collection is serialized as an ordered
// JSON list under its own storage key.
package records

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("records: not found")
	ErrInvalidInput = errors.New("records: invalid input")
)

// Role is the fixed set of staff roles. The string values are the ones
// the persisted collections carry.
type Role string

const (
	RoleAdministrator Role = "Lab Administrator"
	RoleTechnician    Role = "Lab Technician"
	RoleSupervisor    Role = "Lab Supervisor"
	RoleReceptionist  Role = "Reception Staff"
	RoleProvider      Role = "Healthcare Provider"
	RoleCollector     Role = "Specimen Collector"
)

var allRoles = []Role{
	RoleAdministrator,
	RoleTechnician,
	RoleSupervisor,
	RoleReceptionist,
	RoleProvider,
	RoleCollector,
}

// Valid reports whether the role is one of the enumerated members.
func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, error) {
	r := Role(raw)
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
	return r, nil
}

// SpecimenType enumerates the collectable specimen kinds.
type SpecimenType string

const (
	SpecimenBlood  SpecimenType = "Blood"
	SpecimenUrine  SpecimenType = "Urine"
	SpecimenSwab   SpecimenType = "Swab"
	SpecimenTissue SpecimenType = "Tissue"
	SpecimenStool  SpecimenType = "Stool"
	SpecimenOther  SpecimenType = "Other"
)

func (t SpecimenType) Valid() bool {
	switch t {
	case SpecimenBlood, SpecimenUrine, SpecimenSwab, SpecimenTissue, SpecimenStool, SpecimenOther:
		return true
	}
	return false
}

// SpecimenStatus tracks a specimen through its handling lifecycle.
type SpecimenStatus string

const (
	SpecimenCollected  SpecimenStatus = "collected"
	SpecimenProcessing SpecimenStatus = "processing"
	SpecimenStored     SpecimenStatus = "stored"
	SpecimenDisposed   SpecimenStatus = "disposed"
)

func (s SpecimenStatus) Valid() bool {
	switch s {
	case SpecimenCollected, SpecimenProcessing, SpecimenStored, SpecimenDisposed:
		return true
	}
	return false
}

// TestStatus tracks a test order.
type TestStatus string

const (
	TestPending    TestStatus = "pending"
	TestProcessing TestStatus = "processing"
	TestCompleted  TestStatus = "completed"
	TestCancelled  TestStatus = "cancelled"
)

func (s TestStatus) Valid() bool {
	switch s {
	case TestPending, TestProcessing, TestCompleted, TestCancelled:
		return true
	}
	return false
}

// Priority orders test processing.
type Priority string

const (
	PriorityNormal Priority = "Normal"
	PriorityUrgent Priority = "Urgent"
	PriorityStat   Priority = "Stat"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityUrgent, PriorityStat:
		return true
	}
	return false
}

// QCStatus is the quality-control verdict on a test.
type QCStatus string

const (
	QCPass    QCStatus = "Pass"
	QCFail    QCStatus = "Fail"
	QCPending QCStatus = "Pending"
)

func (s QCStatus) Valid() bool {
	switch s {
	case QCPass, QCFail, QCPending:
		return true
	}
	return false
}

// ResultStatus tracks the review state of an entered result.
type ResultStatus string

const (
	ResultPending  ResultStatus = "pending"
	ResultApproved ResultStatus = "approved"
	ResultRejected ResultStatus = "rejected"
)

func (s ResultStatus) Valid() bool {
	switch s {
	case ResultPending, ResultApproved, ResultRejected:
		return true
	}
	return false
}

// User is a staff account. PasswordSecret is stored as-is: the login
// contract matches it by direct equality against the submitted value.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	PasswordSecret string    `json:"password"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Patient is a registered subject.
type Patient struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DateOfBirth string    `json:"dateOfBirth"`
	Gender      string    `json:"gender"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Specimen is a collected sample tied to a patient.
type Specimen struct {
	ID             string         `json:"id"`
	PatientID      string         `json:"patientId"`
	Type           SpecimenType   `json:"type"`
	Status         SpecimenStatus `json:"status"`
	Condition      string         `json:"condition"`
	Location       string         `json:"location"`
	CollectionDate string         `json:"collectionDate"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Test is a laboratory test order. The same record backs both the order
// screens and the testing screens.
type Test struct {
	ID         string     `json:"id"`
	PatientID  string     `json:"patientId"`
	TestType   string     `json:"testType"`
	Status     TestStatus `json:"status"`
	Priority   Priority   `json:"priority"`
	Technician string     `json:"technician"`
	QCStatus   QCStatus   `json:"qcStatus"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Result is an entered measurement awaiting review.
type Result struct {
	ID             string       `json:"id"`
	PatientID      string       `json:"patientId"`
	TestName       string       `json:"testName"`
	Value          string       `json:"value"`
	Unit           string       `json:"unit"`
	ReferenceRange string       `json:"referenceRange"`
	IsAbnormal     bool         `json:"isAbnormal"`
	Status         ResultStatus `json:"status"`
	EnteredBy      string       `json:"enteredBy"`
	ApprovedBy     string       `json:"approvedBy,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// AuditEntry records who did what, when. Write-once: the collection only
// ever grows.
type AuditEntry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	UserID    string         `json:"userId,omitempty"`
	Details   map[string]any `json:"details"`
	Timestamp time.Time      `json:"timestamp"`
}
