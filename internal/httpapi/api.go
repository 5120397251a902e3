// Package httpapi is the HTTP surface over the record store, audit
// trail, access control and session state. The screens are thin: every
// mutation goes through here, gets gated by role, and leaves exactly one
// audit entry behind.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"linoslms.org/internal/audit"
	"linoslms.org/internal/obs"
	"linoslms.org/internal/records"
	"linoslms.org/internal/session"
)

// ReadyProbe checks backing-store readiness (e.g. DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config wires the API's collaborators.
type Config struct {
	Store      *records.Store
	Auditor    *audit.Recorder
	Sessions   *session.Manager
	Notices    *session.Center
	ReadyProbe ReadyProbe
	Version    string
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	store      *records.Store
	auditor    *audit.Recorder
	sessions   *session.Manager
	notices    *session.Center
	readyProbe ReadyProbe
	version    string
}

// New assembles the router.
func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		store:      cfg.Store,
		auditor:    cfg.Auditor,
		sessions:   cfg.Sessions,
		notices:    cfg.Notices,
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// session
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/profile", a.handleProfile)

	// record collections
	a.mux.HandleFunc("/v1/users", a.handleUsersCollection)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/patients", a.handlePatientsCollection)
	a.mux.HandleFunc("/v1/patients/", a.handlePatientResource)
	a.mux.HandleFunc("/v1/specimens", a.handleSpecimensCollection)
	a.mux.HandleFunc("/v1/specimens/", a.handleSpecimenResource)
	a.mux.HandleFunc("/v1/tests", a.handleTestsCollection)
	a.mux.HandleFunc("/v1/tests/", a.handleTestResource)
	a.mux.HandleFunc("/v1/results", a.handleResultsCollection)
	a.mux.HandleFunc("/v1/results/", a.handleResultResource)
	a.mux.HandleFunc("/v1/audit-logs", a.handleAuditLogs)

	// notifications
	a.mux.HandleFunc("/v1/notifications", a.handleNotifications)
	a.mux.HandleFunc("/v1/notifications/", a.handleNotificationResource)
	a.mux.HandleFunc("/v1/notifications/stream", a.StreamNotifications)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RequestID(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 50, 25)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}

// audit records one entry for a successful mutation, tagged with the
// acting user's id from the request context.
func (a *API) audit(ctx context.Context, action string, details map[string]any) {
	userID := ""
	if user, ok := userFromContext(ctx); ok {
		userID = user.ID
	}
	a.auditor.Record(ctx, action, userID, details)
}

// notify surfaces an outcome on the notification queue, when one is
// configured.
func (a *API) notify(kind session.NotificationType, message string) {
	if a.notices == nil {
		return
	}
	a.notices.Add(message, kind, 0)
}
