package timezone

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dosetrack/dosetrack/pkg/core"
)

// Provider supplies the location every conversion uses. Implementations are
// injected into the Converter instead of reading an ambient global, so the
// configured zone can change at runtime without touching the evaluator.
type Provider interface {
	Location() *time.Location
}

// Fixed returns a Provider pinned to one location. Intended for tests and
// single-zone deployments.
func Fixed(loc *time.Location) Provider {
	return fixedProvider{loc: loc}
}

type fixedProvider struct {
	loc *time.Location
}

func (p fixedProvider) Location() *time.Location { return p.loc }

// SettingProvider reads the zone name from the storage settings and caches
// the parsed location. The settings-update collaborator calls Refresh after
// writing a new zone; the sweep also refreshes once per run so a restart is
// never required to pick up a change.
type SettingProvider struct {
	store  core.Storage
	logger *slog.Logger
	loc    atomic.Pointer[time.Location]
}

// NewSettingProvider builds a provider over store. It starts at UTC until
// the first Refresh.
func NewSettingProvider(store core.Storage, logger *slog.Logger) *SettingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &SettingProvider{store: store, logger: logger}
	p.loc.Store(time.UTC)
	return p
}

// Location returns the most recently loaded location.
func (p *SettingProvider) Location() *time.Location {
	return p.loc.Load()
}

// Refresh re-reads the configured zone name. An empty setting means UTC; an
// unparseable name keeps the previous location and logs a warning, so a bad
// write never stalls the engine.
func (p *SettingProvider) Refresh(ctx context.Context) error {
	name, err := p.store.TimezoneName(ctx)
	if err != nil {
		return err
	}
	if name == "" {
		p.loc.Store(time.UTC)
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		p.logger.Warn("invalid timezone setting, keeping previous zone",
			"tz", name, "error", err)
		return nil
	}
	p.loc.Store(loc)
	return nil
}
