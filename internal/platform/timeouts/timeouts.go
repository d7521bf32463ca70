// Package timeouts defines shared timeout constants used across the
// vault client. Centralizing these values prevents drift between call
// sites and makes the durations discoverable.
package timeouts

import "time"

// RegistryDial caps the wait time when dialing the vault registry.
const RegistryDial = 5 * time.Second

// RegistryCall caps the time allowed for a single registry call. The
// transport default alone is unbounded for practical purposes, so every
// call carries this explicit deadline.
const RegistryCall = 15 * time.Second

// ProviderCheck caps the non-interactive session check against the
// identity provider.
const ProviderCheck = 5 * time.Second

// LoginFlow caps the interactive login round trip, including the time
// the user spends in the secondary browser context.
const LoginFlow = 10 * time.Minute

// IdleSession is the provider-enforced idle timeout requested at login.
const IdleSession = 30 * time.Minute
