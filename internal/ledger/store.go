package ledger

import "github.com/roach88/chainscript/internal/chain"

// objectStore keeps every committed version of every object. Reads either
// fetch the latest version or one exact historical version; a pin miss is a
// miss, never a fallback to latest.
type objectStore struct {
	versions map[chain.ObjectID]map[chain.Version]*chain.Object
	latest   map[chain.ObjectID]chain.Version
	// live marks objects not yet deleted or wrapped. Deleted objects keep
	// their history (pinned reads still work) but stop resolving as latest.
	live map[chain.ObjectID]bool
}

func newObjectStore() *objectStore {
	return &objectStore{
		versions: make(map[chain.ObjectID]map[chain.Version]*chain.Object),
		latest:   make(map[chain.ObjectID]chain.Version),
		live:     make(map[chain.ObjectID]bool),
	}
}

// getLatest returns the latest live version of an object, or nil.
func (s *objectStore) getLatest(id chain.ObjectID) *chain.Object {
	if !s.live[id] {
		return nil
	}
	return s.versions[id][s.latest[id]]
}

// getAt returns one exact version, live or historical, or nil.
func (s *objectStore) getAt(id chain.ObjectID, v chain.Version) *chain.Object {
	return s.versions[id][v]
}

// put commits a new object version and makes it latest.
func (s *objectStore) put(obj *chain.Object) {
	byVersion, ok := s.versions[obj.ID]
	if !ok {
		byVersion = make(map[chain.Version]*chain.Object)
		s.versions[obj.ID] = byVersion
	}
	byVersion[obj.Version] = obj
	s.latest[obj.ID] = obj.Version
	s.live[obj.ID] = true
}

// remove tombstones an object. History stays readable by exact version.
func (s *objectStore) remove(id chain.ObjectID) {
	s.live[id] = false
}

// clone deep-copies the store for speculative execution. Object values are
// shared (they are immutable once committed); only the maps are copied.
func (s *objectStore) clone() *objectStore {
	c := newObjectStore()
	for id, byVersion := range s.versions {
		m := make(map[chain.Version]*chain.Object, len(byVersion))
		for v, obj := range byVersion {
			m[v] = obj
		}
		c.versions[id] = m
	}
	for id, v := range s.latest {
		c.latest[id] = v
	}
	for id, l := range s.live {
		c.live[id] = l
	}
	return c
}
