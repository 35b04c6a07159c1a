package sso

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "test-client-id"
	testCode     = "good-code"
)

type testIssuer struct {
	server       *httptest.Server
	key          *rsa.PrivateKey
	claims       map[string]interface{}
	lastVerifier string
}

func (i *testIssuer) URL() string {
	return i.server.URL + "/"
}

func newTestIssuer(t *testing.T, endSession bool) *testIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	issuer := &testIssuer{key: key}
	mux := http.NewServeMux()

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		base := issuer.server.URL
		doc := map[string]interface{}{
			"issuer":                                base + "/",
			"authorization_endpoint":                base + "/authorize",
			"token_endpoint":                        base + "/oauth/token",
			"jwks_uri":                              base + "/.well-known/jwks.json",
			"userinfo_endpoint":                     base + "/userinfo",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		}
		if endSession {
			doc["end_session_endpoint"] = base + "/oidc/logout"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	})

	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		jwks := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     "test-key",
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jwks)
	})

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("code") != testCode {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		issuer.lastVerifier = r.PostForm.Get("code_verifier")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     issuer.sign(t),
		})
	})

	issuer.server = httptest.NewServer(mux)
	t.Cleanup(issuer.server.Close)
	return issuer
}

func (i *testIssuer) sign(t *testing.T) string {
	t.Helper()

	now := time.Now()
	payload := map[string]interface{}{
		"iss": i.URL(),
		"aud": testClientID,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range i.claims {
		payload[k] = v
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: i.key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", "test-key"),
	)
	require.NoError(t, err)

	jws, err := signer.Sign(data)
	require.NoError(t, err)

	token, err := jws.CompactSerialize()
	require.NoError(t, err)
	return token
}

func newTestProvider(t *testing.T, issuer *testIssuer) *OIDCProvider {
	t.Helper()

	p, err := NewOIDCProvider(context.Background(), Config{
		Issuer:      issuer.URL(),
		ClientID:    testClientID,
		RedirectURL: "http://localhost:8080/callback",
	})
	require.NoError(t, err)
	return p
}

func TestConfig_ValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		errorMsg string
	}{
		{
			name:   "valid config",
			config: Config{Domain: "tenant.auth0.com", ClientID: "id", RedirectURL: "http://localhost/callback"},
		},
		{
			name:     "missing domain",
			config:   Config{ClientID: "id", RedirectURL: "http://localhost/callback"},
			errorMsg: "domain is required",
		},
		{
			name:     "missing client_id",
			config:   Config{Domain: "tenant.auth0.com", RedirectURL: "http://localhost/callback"},
			errorMsg: "client_id is required",
		},
		{
			name:     "missing redirect_url",
			config:   Config{Domain: "tenant.auth0.com", ClientID: "id"},
			errorMsg: "redirect_url is required",
		},
		{
			name:     "missing openid scope",
			config:   Config{Domain: "tenant.auth0.com", ClientID: "id", RedirectURL: "http://localhost/callback", Scopes: []string{"profile"}},
			errorMsg: "'openid' scope is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.ValidateConfig()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestConfig_IssuerURL(t *testing.T) {
	assert.Equal(t, "https://tenant.auth0.com/", Config{Domain: "tenant.auth0.com"}.IssuerURL())
	assert.Equal(t, "https://tenant.auth0.com/", Config{Domain: "https://tenant.auth0.com/"}.IssuerURL())
	assert.Equal(t, "http://issuer/", Config{Domain: "x", Issuer: "http://issuer/"}.IssuerURL())
}

func TestNewOIDCProvider_DiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewOIDCProvider(context.Background(), Config{
		Issuer:      srv.URL + "/",
		ClientID:    testClientID,
		RedirectURL: "http://localhost/callback",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to discover OIDC provider")
}

func TestOIDCProvider_AuthCodeURL(t *testing.T) {
	issuer := newTestIssuer(t, false)
	p := newTestProvider(t, issuer)

	raw := p.AuthCodeURL("state-123", generateVerifier())
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "/authorize", u.Path)
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
}

func TestOIDCProvider_Exchange(t *testing.T) {
	issuer := newTestIssuer(t, false)
	issuer.claims = map[string]interface{}{
		"sub":            "auth0|123",
		"email":          "a@x.com",
		"name":           "Ann",
		"picture":        "https://x/a.png",
		"email_verified": true,
	}
	p := newTestProvider(t, issuer)

	verifier := generateVerifier()
	claims, err := p.Exchange(context.Background(), testCode, verifier)
	require.NoError(t, err)

	assert.Equal(t, verifier, issuer.lastVerifier)
	assert.Equal(t, "auth0|123", claims.SubjectID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "Ann", claims.DisplayName)
	assert.Equal(t, "https://x/a.png", claims.AvatarURL)
	assert.True(t, claims.EmailVerified)
	assert.False(t, claims.IssuedAt.IsZero())
}

func TestOIDCProvider_ExchangeIncompleteClaims(t *testing.T) {
	issuer := newTestIssuer(t, false)
	issuer.claims = map[string]interface{}{"sub": "auth0|123"}
	p := newTestProvider(t, issuer)

	claims, err := p.Exchange(context.Background(), testCode, generateVerifier())
	require.NoError(t, err)
	assert.Equal(t, "auth0|123", claims.SubjectID)
	assert.Empty(t, claims.Email)
	assert.Empty(t, claims.DisplayName)
}

func TestOIDCProvider_ExchangeErrors(t *testing.T) {
	issuer := newTestIssuer(t, false)
	p := newTestProvider(t, issuer)

	_, err := p.Exchange(context.Background(), "", "v")
	assert.ErrorIs(t, err, ErrMissingCode)

	_, err = p.Exchange(context.Background(), "bad-code", "v")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to exchange token")
}

func TestOIDCProvider_LogoutURL(t *testing.T) {
	t.Run("auth0 logout", func(t *testing.T) {
		issuer := newTestIssuer(t, false)
		p := newTestProvider(t, issuer)

		raw := p.LogoutURL("http://localhost:8080")
		assert.True(t, strings.HasPrefix(raw, issuer.server.URL+"/v2/logout?"))

		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, testClientID, u.Query().Get("client_id"))
		assert.Equal(t, "http://localhost:8080", u.Query().Get("returnTo"))
	})

	t.Run("end_session_endpoint", func(t *testing.T) {
		issuer := newTestIssuer(t, true)
		p := newTestProvider(t, issuer)

		u, err := url.Parse(p.LogoutURL("http://localhost:8080"))
		require.NoError(t, err)
		assert.Equal(t, "/oidc/logout", u.Path)
		assert.Equal(t, "http://localhost:8080", u.Query().Get("post_logout_redirect_uri"))
	})
}

func TestSanitizeReturnTo(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/dashboard", "/dashboard"},
		{"/dashboard?tab=profile", "/dashboard?tab=profile"},
		{"https://evil.example.com/", ""},
		{"//evil.example.com", ""},
		{"/\\evil.example.com", ""},
		{"dashboard", ""},
		{"javascript:alert(1)", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeReturnTo(tt.in), "input %q", tt.in)
	}
}
