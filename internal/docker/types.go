package docker

// ContainerView is the explicit, stable shape the hosts synchronizer
// operates on. The synchronizer never reaches past this package into raw
// engine SDK types (moby/moby's container.Summary, events.Message, ...);
// everything it needs is translated here first. The graph builder does not
// use this type: it consumes container.Summary and the inspect result
// directly.
type ContainerView struct {
	ID          string
	Name        string
	Labels      map[string]string
	Running     bool
	Health      string // "healthy", "unhealthy", "starting", "none", "unknown"
	StopTimeout *int
	Networks    []NetworkAttachment
}

// NetworkAttachment describes one network a container is attached to.
type NetworkAttachment struct {
	Network string
	IP      string
	Aliases []string
}

// EngineEvent is a normalized slice of the engine's event stream, enough
// for the hosts synchronizer to decide whether a resync is warranted.
type EngineEvent struct {
	Type   string // "container" or "network"
	Action string // "start", "stop", "disconnect", ...
	Actor  string // container or network ID/name, best-effort
}
