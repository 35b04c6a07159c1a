package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/idsync/pkg/contextkeys"
	"github.com/platinummonkey/idsync/pkg/httputil"
	"github.com/platinummonkey/idsync/pkg/identity"
	"github.com/platinummonkey/idsync/pkg/notify"
	"github.com/platinummonkey/idsync/pkg/observability"
	"github.com/platinummonkey/idsync/pkg/session"
	"github.com/platinummonkey/idsync/pkg/users"
)

//go:embed templates/*.html
var templateFS embed.FS

// DashboardPath is the protected landing page for signed-in users
const DashboardPath = "/dashboard"

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// FlashSource pops the one-shot notices queued for a session
type FlashSource interface {
	PopFlash(ctx context.Context, id string) ([]notify.Notice, error)
}

// Handlers serves the application pages
type Handlers struct {
	users  users.Store
	flash  FlashSource
	logger *observability.Logger
}

// NewHandlers creates the page handlers
func NewHandlers(store users.Store, flash FlashSource, logger *observability.Logger) *Handlers {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Handlers{users: store, flash: flash, logger: logger}
}

// RegisterRoutes registers the page routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.landing).Methods("GET")
	router.HandleFunc(DashboardPath, h.dashboard).Methods("GET")
	router.HandleFunc("/api/me", h.me).Methods("GET")
}

type dashboardData struct {
	Claims identity.Claims
	Record *users.Record
	Flash  []notify.Notice
}

// meResponse is the body of GET /api/me
type meResponse struct {
	Authenticated bool             `json:"authenticated"`
	Claims        *identity.Claims `json:"claims,omitempty"`
	Synced        bool             `json:"synced"`
	Record        *users.View      `json:"record,omitempty"`
}

// landing handles GET /
func (h *Handlers) landing(w http.ResponseWriter, r *http.Request) {
	if session.StateFromContext(r.Context()).Ready() {
		http.Redirect(w, r, DashboardPath, http.StatusFound)
		return
	}
	h.render(w, http.StatusOK, "landing.html", nil)
}

// dashboard handles GET /dashboard
func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := session.StateFromContext(ctx)
	if !state.Ready() {
		http.Redirect(w, r, "/login?returnTo="+url.QueryEscape(DashboardPath), http.StatusFound)
		return
	}

	data := dashboardData{Claims: *state.Claims}
	data.Record = h.lookup(ctx, state.Claims.SubjectID)

	if id := contextkeys.GetSessionID(ctx); id != "" && h.flash != nil {
		notices, err := h.flash.PopFlash(ctx, id)
		if err != nil {
			h.logger.WithError(err).Warn("failed to load flash notices")
		}
		data.Flash = notices
	}

	h.render(w, http.StatusOK, "dashboard.html", data)
}

// me handles GET /api/me
func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := session.StateFromContext(ctx)
	if !state.Ready() {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}

	resp := meResponse{Authenticated: true, Claims: state.Claims}
	if record := h.lookup(ctx, state.Claims.SubjectID); record != nil {
		view := record.View()
		resp.Synced = true
		resp.Record = &view
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// lookup returns the stored record or nil; the pages render from claims
// when the mirror is missing or unreachable.
func (h *Handlers) lookup(ctx context.Context, subjectID string) *users.Record {
	if h.users == nil || subjectID == "" {
		return nil
	}
	record, err := h.users.Get(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			h.logger.WithError(err).WithField("subject_id", subjectID).Warn("failed to load user record")
		}
		return nil
	}
	return record
}

func (h *Handlers) render(w http.ResponseWriter, status int, name string, data interface{}) {
	if err := renderPage(w, status, name, data); err != nil {
		h.logger.WithError(err).WithField("template", name).Error("failed to render page")
		httputil.WriteInternalError(w, fmt.Errorf("failed to render page"))
	}
}

func renderPage(w http.ResponseWriter, status int, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// ConfigErrorHandler renders the static configuration error page for every
// request. It is served instead of the application when the identity
// provider settings are missing.
func ConfigErrorHandler(missing []string) http.Handler {
	data := struct{ Missing []string }{Missing: missing}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := renderPage(w, http.StatusInternalServerError, "config_error.html", data); err != nil {
			http.Error(w, "Configuration Error", http.StatusInternalServerError)
		}
	})
}
