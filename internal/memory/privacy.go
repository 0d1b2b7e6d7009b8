package memory

import "sync/atomic"

// PrivacyGate is the shared privacy flag. While enabled nothing durable is
// written; the short-term window still records turns.
type PrivacyGate struct {
	on atomic.Bool
}

func NewPrivacyGate(enabled bool) *PrivacyGate {
	g := &PrivacyGate{}
	g.on.Store(enabled)
	return g
}

func (g *PrivacyGate) Enabled() bool { return g.on.Load() }

func (g *PrivacyGate) Set(enabled bool) { g.on.Store(enabled) }
