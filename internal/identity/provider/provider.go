// Package provider implements the interactive login flow against the
// identity provider. Authorization uses the PKCE code flow: the client
// opens the provider's authorize page in the user's browser, receives
// the authorization code on a loopback callback, and exchanges it for a
// signed delegation token.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/lostclubtoys/vault/internal/platform/errors"
	"github.com/lostclubtoys/vault/internal/platform/timeouts"
)

// Delegation is a signed identity delegation issued by the provider.
type Delegation struct {
	Token       string
	PrincipalID string
	ExpiresAt   time.Time
}

// OutcomeKind discriminates the result of an interactive login.
type OutcomeKind int

const (
	// OutcomeFailed indicates the flow broke before a delegation was
	// issued. The Err field carries the cause.
	OutcomeFailed OutcomeKind = iota
	// OutcomeCompleted indicates the provider issued a delegation.
	OutcomeCompleted
	// OutcomeCancelled indicates the user denied the request or
	// abandoned the flow until it timed out.
	OutcomeCancelled
	// OutcomePopupBlocked indicates the secondary browser context could
	// not be opened at all.
	OutcomePopupBlocked
)

// Outcome is the result of an interactive login attempt. Exactly one of
// Delegation or Err is meaningful, depending on Kind.
type Outcome struct {
	Kind       OutcomeKind
	Delegation Delegation
	Err        error
}

// Completed returns a successful outcome carrying the issued delegation.
func Completed(d Delegation) Outcome {
	return Outcome{Kind: OutcomeCompleted, Delegation: d}
}

// Cancelled returns an outcome for a user-abandoned flow.
func Cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled}
}

// PopupBlocked returns an outcome for a browser launch failure.
func PopupBlocked(err error) Outcome {
	return Outcome{Kind: OutcomePopupBlocked, Err: err}
}

// Failed returns an outcome for a broken flow.
func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}

// Config defines how the provider flow is performed.
type Config struct {
	// AuthorizeURL is the provider's authorize endpoint.
	AuthorizeURL string
	// TokenURL is the provider's code exchange endpoint.
	TokenURL string
	// ClientID identifies this client to the provider.
	ClientID string
	// CallbackAddr is the loopback address the callback server listens
	// on. Port 0 picks a free port. Defaults to 127.0.0.1:0.
	CallbackAddr string
	// FlowTTL caps the interactive round trip. Defaults to the shared
	// login flow timeout.
	FlowTTL time.Duration
	// MaxSessionIdle is the idle timeout requested from the provider.
	MaxSessionIdle time.Duration
	// OpenURL launches the authorize page in the user's browser.
	OpenURL func(url string) error
	// HTTPClient performs the code exchange. Defaults to a client with
	// the provider check timeout.
	HTTPClient *http.Client
}

// Provider drives interactive logins against the identity provider.
type Provider struct {
	cfg   Config
	flows *pendingFlowStore
}

// New creates a login provider from the given configuration.
func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.AuthorizeURL) == "" {
		return nil, fmt.Errorf("authorize URL is required")
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, fmt.Errorf("token URL is required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.OpenURL == nil {
		return nil, fmt.Errorf("browser launcher is required")
	}
	if cfg.CallbackAddr == "" {
		cfg.CallbackAddr = "127.0.0.1:0"
	}
	if cfg.FlowTTL <= 0 {
		cfg.FlowTTL = timeouts.LoginFlow
	}
	if cfg.MaxSessionIdle <= 0 {
		cfg.MaxSessionIdle = timeouts.IdleSession
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: timeouts.ProviderCheck}
	}
	return &Provider{
		cfg:   cfg,
		flows: newPendingFlowStore(cfg.FlowTTL),
	}, nil
}

// Authorize runs one interactive login round trip. It never returns an
// error directly; every way the flow can end is a distinct Outcome so
// callers can distinguish a blocked browser from a user cancellation.
func (p *Provider) Authorize(ctx context.Context) Outcome {
	verifier, err := generateCodeVerifier()
	if err != nil {
		return Failed(apperrors.Wrap(apperrors.CodeLoginFailed, "generate code verifier", err))
	}
	state := p.flows.create(verifier)

	listener, err := net.Listen("tcp", p.cfg.CallbackAddr)
	if err != nil {
		return Failed(apperrors.Wrap(apperrors.CodeLoginFailed, "listen for login callback", err))
	}
	redirectURI := fmt.Sprintf("http://%s/callback", listener.Addr().String())

	results := make(chan Outcome, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		outcome := p.handleCallback(r, redirectURI)
		if outcome.Kind == OutcomeCompleted {
			fmt.Fprint(w, "Signed in. You can close this window.")
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "Sign-in did not complete. You can close this window.")
		}
		select {
		case results <- outcome:
		default:
		}
	})

	server := &http.Server{Handler: mux}
	go func() { _ = server.Serve(listener) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authorizeURL, err := p.authorizeURL(state, verifier, redirectURI)
	if err != nil {
		return Failed(err)
	}
	if err := p.cfg.OpenURL(authorizeURL); err != nil {
		return PopupBlocked(apperrors.Wrap(apperrors.CodePopupBlocked, "open authorize page", err))
	}

	select {
	case outcome := <-results:
		return outcome
	case <-ctx.Done():
		return Cancelled()
	case <-time.After(p.cfg.FlowTTL):
		return Cancelled()
	}
}

// authorizeURL builds the provider authorize URL for one flow.
func (p *Provider) authorizeURL(state, verifier, redirectURI string) (string, error) {
	u, err := url.Parse(p.cfg.AuthorizeURL)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeLoginFailed, "parse authorize URL", err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	q.Set("code_challenge", computeS256Challenge(verifier))
	q.Set("code_challenge_method", "S256")
	q.Set("max_idle_seconds", fmt.Sprintf("%d", int(p.cfg.MaxSessionIdle.Seconds())))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// handleCallback classifies one provider callback request.
func (p *Provider) handleCallback(r *http.Request, redirectURI string) Outcome {
	q := r.URL.Query()

	flow := p.flows.consume(q.Get("state"))
	if flow == nil {
		return Failed(apperrors.New(apperrors.CodeLoginFailed, "login callback state is unknown or expired"))
	}
	if errCode := q.Get("error"); errCode != "" {
		if errCode == "access_denied" {
			return Cancelled()
		}
		return Failed(apperrors.New(apperrors.CodeLoginFailed, fmt.Sprintf("provider returned error %q", errCode)))
	}
	code := q.Get("code")
	if code == "" {
		return Failed(apperrors.New(apperrors.CodeLoginFailed, "login callback is missing the authorization code"))
	}

	delegation, err := p.exchange(r.Context(), code, flow.codeVerifier, redirectURI)
	if err != nil {
		return Failed(err)
	}
	return Completed(delegation)
}

// tokenResponse is the provider's code exchange payload.
type tokenResponse struct {
	Delegation string `json:"delegation"`
	Principal  string `json:"principal"`
	ExpiresAt  int64  `json:"expires_at"`
}

// exchange trades the authorization code for a signed delegation.
func (p *Provider) exchange(ctx context.Context, code, verifier, redirectURI string) (Delegation, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	form.Set("client_id", p.cfg.ClientID)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Delegation{}, apperrors.Wrap(apperrors.CodeLoginFailed, "build code exchange request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return Delegation{}, apperrors.Wrap(apperrors.CodeLoginFailed, "exchange authorization code", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Delegation{}, apperrors.New(apperrors.CodeLoginFailed,
			fmt.Sprintf("code exchange returned status %d", resp.StatusCode))
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Delegation{}, apperrors.Wrap(apperrors.CodeLoginFailed, "decode code exchange response", err)
	}
	if payload.Delegation == "" || payload.Principal == "" {
		return Delegation{}, apperrors.New(apperrors.CodeLoginFailed, "code exchange response is incomplete")
	}
	return Delegation{
		Token:       payload.Delegation,
		PrincipalID: payload.Principal,
		ExpiresAt:   time.Unix(payload.ExpiresAt, 0).UTC(),
	}, nil
}
