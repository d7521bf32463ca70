// Package vault wires the vault client CLI: configuration parsing and
// the end-to-end claim flow against the registry.
package vault

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/lostclubtoys/vault/internal/agent"
	"github.com/lostclubtoys/vault/internal/claim"
	"github.com/lostclubtoys/vault/internal/identity"
	"github.com/lostclubtoys/vault/internal/identity/provider"
	"github.com/lostclubtoys/vault/internal/ledger"
	"github.com/lostclubtoys/vault/internal/platform/config"
	apperrors "github.com/lostclubtoys/vault/internal/platform/errors"
	"github.com/lostclubtoys/vault/internal/platform/otel"
	"github.com/lostclubtoys/vault/internal/session"
	"github.com/lostclubtoys/vault/internal/storage/sqlite"
	"github.com/lostclubtoys/vault/internal/telemetry"
)

// Config holds vault command configuration.
type Config struct {
	RegistryAddr string
	StoragePath  string
	AuthorizeURL string
	TokenURL     string
	ClientID     string
	VerifierKey  string
	Custodial    string
	Issuer       string
	Locale       string
	AssetID      uint64
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// providerTuning holds the login flow knobs that rarely change and so
// live in the environment only.
type providerTuning struct {
	CallbackAddr   string        `env:"CALLBACK_ADDR" envDefault:"127.0.0.1:0"`
	FlowTTL        time.Duration `env:"LOGIN_FLOW_TTL"`
	MaxSessionIdle time.Duration `env:"MAX_SESSION_IDLE"`
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		RegistryAddr: envOrDefault(lookup, []string{"VAULT_REGISTRY_ADDR"}, "localhost:8090"),
		StoragePath:  envOrDefault(lookup, []string{"VAULT_STORAGE_PATH"}, "vault.db"),
		AuthorizeURL: envOrDefault(lookup, []string{"VAULT_AUTHORIZE_URL"}, ""),
		TokenURL:     envOrDefault(lookup, []string{"VAULT_TOKEN_URL"}, ""),
		ClientID:     envOrDefault(lookup, []string{"VAULT_CLIENT_ID"}, "vault-client"),
		VerifierKey:  envOrDefault(lookup, []string{"VAULT_VERIFIER_KEY"}, ""),
		Custodial:    envOrDefault(lookup, []string{"VAULT_CUSTODIAL_PRINCIPAL"}, ""),
		Issuer:       envOrDefault(lookup, []string{"VAULT_ISSUER"}, ""),
		Locale:       envOrDefault(lookup, []string{"VAULT_LOCALE"}, apperrors.DefaultLocale),
	}

	fs.StringVar(&cfg.RegistryAddr, "registry-addr", cfg.RegistryAddr, "The vault registry address")
	fs.StringVar(&cfg.StoragePath, "storage", cfg.StoragePath, "The client state database path")
	fs.Uint64Var(&cfg.AssetID, "asset", cfg.AssetID, "Asset id to claim (0 lists claimable assets)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the vault claim flow: restore or establish a session,
// list the claimable custodial assets, and claim the requested one.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, "vault")
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
	}()

	store, err := sqlite.Open(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("open client store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close client store: %v", err)
		}
	}()

	verifierKey, err := identity.ParseVerifierKey(cfg.VerifierKey)
	if err != nil {
		return fmt.Errorf("parse verifier key: %w", err)
	}

	var tuning providerTuning
	if err := config.ParseEnvWithPrefix(&tuning, "VAULT_"); err != nil {
		return fmt.Errorf("parse provider tuning: %w", err)
	}

	authorizer, err := provider.New(provider.Config{
		AuthorizeURL:   cfg.AuthorizeURL,
		TokenURL:       cfg.TokenURL,
		ClientID:       cfg.ClientID,
		CallbackAddr:   tuning.CallbackAddr,
		FlowTTL:        tuning.FlowTTL,
		MaxSessionIdle: tuning.MaxSessionIdle,
		OpenURL:        openBrowser,
	})
	if err != nil {
		return fmt.Errorf("configure identity provider: %w", err)
	}

	emitter := telemetry.NewEmitter(store)
	ids := identity.NewStore(authorizer, store, emitter, identity.VerifierConfig{
		Issuer: cfg.Issuer,
		Key:    verifierKey,
	})
	sess := session.New(ids, agent.NewFactory(cfg.RegistryAddr))
	registry := ledger.New(sessionSource{sess}, cfg.Custodial, emitter)

	state := sess.Refresh(ctx)
	if !state.Authenticated {
		log.Printf("no session, starting login")
		if state, err = sess.Login(ctx); err != nil {
			return fmt.Errorf("login: %s", apperrors.UserMessage(err, cfg.Locale))
		}
	}
	log.Printf("signed in as %s", state.Principal)

	claimable, err := registry.ClaimableAssets(ctx)
	if err != nil {
		return fmt.Errorf("list claimable assets: %s", apperrors.UserMessage(err, cfg.Locale))
	}
	for _, id := range claimable {
		asset, err := registry.Metadata(ctx, id)
		if err != nil {
			log.Printf("asset %d: %v", id, err)
			continue
		}
		log.Printf("claimable: #%d %s", asset.ID, asset.DisplayName)
	}

	if cfg.AssetID == 0 {
		return nil
	}

	machine := claim.NewMachine(cfg.AssetID, registry, sessionGate{sess: sess}, cfg.Custodial)
	if err := machine.Prepare(ctx); err != nil {
		return fmt.Errorf("prepare claim: %s", apperrors.UserMessage(err, cfg.Locale))
	}
	txID, err := machine.Claim(ctx)
	if err != nil {
		return fmt.Errorf("claim asset %d: %s", cfg.AssetID, apperrors.UserMessage(err, cfg.Locale))
	}
	log.Printf("claimed asset %d in transaction %d", cfg.AssetID, txID)
	return nil
}

// sessionSource exposes the session's current client to the ledger.
type sessionSource struct {
	sess *session.Session
}

func (s sessionSource) Current() ledger.Caller {
	state := s.sess.State()
	if state.Client == nil {
		return nil
	}
	return state.Client
}

// sessionGate exposes session readiness to the claim machine.
type sessionGate struct {
	sess *session.Session
}

func (g sessionGate) Ready() bool {
	return g.sess.State().Client != nil
}

func (g sessionGate) Refresh(ctx context.Context) bool {
	return g.sess.Refresh(ctx).Client != nil
}

// openBrowser opens the URL in the user's default browser.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

func envOrDefault(lookup EnvLookup, keys []string, fallback string) string {
	for _, key := range keys {
		if lookup == nil {
			break
		}
		value, ok := lookup(key)
		if ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return trimmed
			}
		}
	}
	return fallback
}
