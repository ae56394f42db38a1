// Package core contains the broker's domain contracts, entities, and the
// token lifecycle orchestrator. Lower-level adapters (transport, storage,
// provider client) depend on this package; core must not depend on them.
package core
