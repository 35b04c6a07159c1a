package sso

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/idsync/pkg/contextkeys"
	"github.com/platinummonkey/idsync/pkg/identity"
	"github.com/platinummonkey/idsync/pkg/observability"
	"github.com/platinummonkey/idsync/pkg/session"
)

// DefaultPostLoginPath is where a login without returnTo lands
const DefaultPostLoginPath = "/dashboard"

// SessionObserver is told about new sessions and ended ones
type SessionObserver interface {
	Observe(ctx context.Context, key string, state identity.AuthState)
	Forget(key string)
}

// HandlerConfig configures the authentication routes
type HandlerConfig struct {
	// BaseURL is the application origin, e.g. https://app.example.com
	BaseURL       string
	PostLoginPath string
	SecureCookies bool
	SessionTTL    time.Duration
}

// Handlers serves /login, /callback and /logout
type Handlers struct {
	provider Provider
	sessions session.Store
	observer SessionObserver
	config   HandlerConfig
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewHandlers creates the authentication handlers
func NewHandlers(provider Provider, sessions session.Store, observer SessionObserver, config HandlerConfig, logger *observability.Logger, metrics *observability.Metrics) *Handlers {
	if config.PostLoginPath == "" {
		config.PostLoginPath = DefaultPostLoginPath
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = session.DefaultTTL
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Handlers{
		provider: provider,
		sessions: sessions,
		observer: observer,
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

// RegisterRoutes registers the authentication routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/login", h.login).Methods("GET")
	router.HandleFunc("/callback", h.callback).Methods("GET")
	router.HandleFunc("/logout", h.logout).Methods("GET", "POST")
}

func (h *Handlers) cookieOptions() session.CookieOptions {
	return session.CookieOptions{Secure: h.config.SecureCookies, TTL: h.config.SessionTTL}
}

// login handles GET /login?returnTo=/path
func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}
	verifier := generateVerifier()

	secure := h.config.SecureCookies
	setFlowCookie(w, stateCookie, state, secure)
	setFlowCookie(w, verifierCookie, verifier, secure)
	if returnTo := SanitizeReturnTo(r.URL.Query().Get("returnTo")); returnTo != "" {
		setFlowCookie(w, returnCookie, returnTo, secure)
	}

	http.Redirect(w, r, h.provider.AuthCodeURL(state, verifier), http.StatusFound)
}

// callback handles GET /callback
func (h *Handlers) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.WithField("request_id", contextkeys.GetRequestID(ctx))
	query := r.URL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		log.WithField("error", providerErr).Warn("identity provider returned an error")
		http.Error(w, fmt.Sprintf("authentication failed: %s", query.Get("error_description")), http.StatusUnauthorized)
		return
	}

	expected := cookieValue(r, stateCookie)
	if expected == "" {
		http.Error(w, "missing state cookie", http.StatusBadRequest)
		return
	}
	if query.Get("state") != expected {
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	claims, err := h.provider.Exchange(ctx, query.Get("code"), cookieValue(r, verifierCookie))
	if err != nil {
		log.WithError(err).Warn("failed to complete login")
		http.Error(w, fmt.Sprintf("authentication failed: %v", err), http.StatusUnauthorized)
		return
	}

	if previous := session.ReadCookie(r); previous != "" {
		h.endSession(ctx, previous)
	}

	sess, err := h.sessions.Create(ctx, claims)
	if err != nil {
		log.WithError(err).Error("failed to create session")
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	if h.metrics != nil {
		h.metrics.SessionsCreatedTotal.Inc()
	}

	session.SetCookie(w, sess.ID, h.cookieOptions())

	returnTo := SanitizeReturnTo(cookieValue(r, returnCookie))
	if returnTo == "" {
		returnTo = h.config.PostLoginPath
	}
	clearFlowCookies(w, h.config.SecureCookies)

	if h.observer != nil {
		h.observer.Observe(contextkeys.WithSessionID(ctx, sess.ID), sess.ID, sess.State())
	}

	log.WithField("subject_id", claims.SubjectID).Info("user signed in")
	http.Redirect(w, r, returnTo, http.StatusFound)
}

// logout handles GET/POST /logout
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	if id := session.ReadCookie(r); id != "" {
		h.endSession(r.Context(), id)
	}
	session.ClearCookie(w, h.cookieOptions())

	http.Redirect(w, r, h.provider.LogoutURL(h.config.BaseURL), http.StatusFound)
}

func (h *Handlers) endSession(ctx context.Context, id string) {
	if err := h.sessions.Delete(ctx, id); err != nil {
		h.logger.WithError(err).Warn("failed to delete session")
	}
	if h.observer != nil {
		h.observer.Forget(id)
	}
}
