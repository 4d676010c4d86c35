package scheduler

// Domain names a category of state-change notification from the host.
type Domain string

// Sync-worthy state domains.
const (
	DomainNavigation  Domain = "navigation"
	DomainProgress    Domain = "progress"
	DomainPreferences Domain = "preferences"
	DomainUndo        Domain = "undo"
	DomainLifecycle   Domain = "lifecycle"
)

// Transient UI domains the host may emit; never worth a durable write.
const (
	DomainUI      Domain = "ui"
	DomainLoading Domain = "loading"
	DomainError   Domain = "error"
)

var syncWorthy = map[Domain]bool{
	DomainNavigation:  true,
	DomainProgress:    true,
	DomainPreferences: true,
	DomainUndo:        true,
	DomainLifecycle:   true,
}

var transient = map[Domain]bool{
	DomainUI:      true,
	DomainLoading: true,
	DomainError:   true,
}

// SyncWorthy reports whether changes in d should reach durable storage.
// Unknown domains are not sync-worthy: persisting noise is worse than
// missing an unregistered domain, which the allow-list makes visible fast.
func SyncWorthy(d Domain) bool {
	if transient[d] {
		return false
	}
	return syncWorthy[d]
}
