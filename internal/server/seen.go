package server

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Sighting is the last thing that happened to an identity.
type Sighting struct {
	Event string
	At    time.Time
}

const (
	eventLoggedIn     = "logged in"
	eventDisconnected = "disconnected"
)

// SeenDirectory remembers the most recent Sighting of each identity for a
// limited time. Entries don't expire when the ttl is not positive.
type SeenDirectory struct {
	cacheInstance *gocache.Cache
}

func NewSeenDirectory(ttl time.Duration) *SeenDirectory {
	if ttl <= 0 {
		return &SeenDirectory{cacheInstance: gocache.New(gocache.NoExpiration, 0)}
	}
	return &SeenDirectory{cacheInstance: gocache.New(ttl, ttl)}
}

// Record overwrites the sighting for identity.
func (d *SeenDirectory) Record(identity, event string, at time.Time) {
	d.cacheInstance.SetDefault(identity, Sighting{Event: event, At: at})
}

// Lookup returns the last sighting of identity, if it hasn't expired.
func (d *SeenDirectory) Lookup(identity string) (Sighting, bool) {
	v, ok := d.cacheInstance.Get(identity)
	if !ok {
		return Sighting{}, false
	}
	return v.(Sighting), true
}
