package usecases

import "time"

// MaxTransitionAttempts bounds the read, apply, compare-and-swap loop. Each
// retry re-reads the contract, so a racing duplicate observes the winner's write.
const MaxTransitionAttempts = 3

// Sync triggers, used as metric labels
const (
	SyncTriggerAPI       = "api"
	SyncTriggerWebhook   = "webhook"
	SyncTriggerReconcile = "reconcile"
)

// SyncTimeout bounds one shared sync or download, provider round trip included
const SyncTimeout = 15 * time.Second
