package drive

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

const lockRetryInterval = 50 * time.Microsecond

// DefaultQuotaBytes is the storage limit applied to owners without an
// explicit limit (15 GiB).
const DefaultQuotaBytes = 15 * 1024 * 1024 * 1024

// Config holds Store tuning knobs.
type Config struct {
	// LockTimeout bounds how long an operation waits for the store
	// lock before failing with ErrBusy. Zero means 2s.
	LockTimeout time.Duration

	// DefaultQuotaBytes is the per-owner storage limit used when no
	// explicit limit is set. Zero means DefaultQuotaBytes; negative
	// means unlimited.
	DefaultQuotaBytes int64
}

// Store is the in-memory node arena and the single consistency domain
// for hierarchy, lifecycle, sharing, and quota state. Mutations take
// the write lock for their whole duration so readers never observe a
// half-applied cascade or an unmatched quota reservation.
type Store struct {
	mu timedMutex

	nodes  map[string]*Node
	grants map[string]map[string]Permission // nodeID -> grantee -> permission
	quotas map[string]*quotaState           // ownerID -> counters

	defaultQuota int64
	now          func() time.Time
	newID        func() string
}

// NewStore creates an empty store.
func NewStore(cfg Config) *Store {
	timeout := cfg.LockTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	dq := cfg.DefaultQuotaBytes
	if dq == 0 {
		dq = DefaultQuotaBytes
	}
	return &Store{
		mu:           timedMutex{timeout: timeout},
		nodes:        make(map[string]*Node),
		grants:       make(map[string]map[string]Permission),
		quotas:       make(map[string]*quotaState),
		defaultQuota: dq,
		now:          time.Now,
		newID:        randomID,
	}
}

func randomID() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// ─── Hydration (used at boot, before the store is shared) ───────────

// LoadNode inserts a previously persisted node without validation or
// quota side effects beyond recounting live file sizes.
func (s *Store) LoadNode(n *Node) {
	c := n.clone()
	s.nodes[c.ID] = c
	if c.Kind == KindFile && !c.Trashed {
		s.ownerQuota(c.OwnerID).used += c.SizeBytes
	}
}

// LoadGrant inserts a previously persisted share grant.
func (s *Store) LoadGrant(g Grant) {
	m := s.grants[g.NodeID]
	if m == nil {
		m = make(map[string]Permission)
		s.grants[g.NodeID] = m
	}
	m[g.Grantee] = g.Permission
}

// ─── Lookup helpers (callers hold the lock) ─────────────────────────

func (s *Store) node(id string) *Node {
	return s.nodes[id]
}

// nameInUse reports whether a live node other than excludeID claims
// name under the given parent. Root-level names are scoped per owner;
// names under a folder are global to that folder (editors of a shared
// folder contend for the same namespace). Comparison is case-sensitive.
func (s *Store) nameInUse(ownerID, parentID, name, excludeID string) bool {
	for _, n := range s.nodes {
		if n.Trashed || n.ID == excludeID || n.ParentID != parentID || n.Name != name {
			continue
		}
		if parentID == "" && n.OwnerID != ownerID {
			continue
		}
		return true
	}
	return false
}

// liveChildren returns the non-trashed children of a folder.
func (s *Store) liveChildren(folderID string) []*Node {
	var out []*Node
	for _, n := range s.nodes {
		if n.ParentID == folderID && !n.Trashed {
			out = append(out, n)
		}
	}
	return out
}

// collectSubtree returns node and every descendant, trashed or not.
// The walk is iterative and bounded by the arena size, so a corrupt
// parent graph cannot loop it.
func (s *Store) collectSubtree(node *Node) []*Node {
	out := []*Node{node}
	frontier := []string{node.ID}
	for len(frontier) > 0 {
		parentID := frontier[0]
		frontier = frontier[1:]
		for _, n := range s.nodes {
			if n.ParentID == parentID {
				out = append(out, n)
				frontier = append(frontier, n.ID)
			}
		}
	}
	return out
}

// isDescendant reports whether candidate is node or sits below it.
func (s *Store) isDescendant(candidateID, nodeID string) (bool, error) {
	steps := 0
	for id := candidateID; id != ""; steps++ {
		if id == nodeID {
			return true, nil
		}
		n := s.nodes[id]
		if n == nil {
			return false, nil
		}
		if steps > len(s.nodes) {
			return false, ErrCorruptHierarchy
		}
		id = n.ParentID
	}
	return false, nil
}

// writableFolder validates that parentID references a live folder the
// principal may create children in (owner or direct editor grant).
// An empty parentID (root level) is always writable by its owner.
func (s *Store) writableFolder(principal, parentID string) error {
	if parentID == "" {
		return nil
	}
	parent := s.nodes[parentID]
	if parent == nil || parent.Trashed || !parent.IsFolder() {
		return ErrInvalidParent
	}
	if parent.OwnerID == principal {
		return nil
	}
	if s.grants[parentID][principal] == PermissionEditor {
		return nil
	}
	return ErrInvalidParent
}
