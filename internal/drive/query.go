package drive

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// The query engine is read-only composition over the hierarchy,
// lifecycle, and sharing state. Each view takes a read lock once and
// returns cloned nodes, so a view is a single point-in-time snapshot.

// visibleTo reports whether a live node is owned by or directly
// granted to the principal.
func (s *Store) visibleTo(n *Node, principal string) bool {
	return s.permissionLocked(n, principal) != PermissionNone
}

// ViewDrive returns the live contents of a folder (or of the owner's
// root when folderID is empty) together with breadcrumbs. Contents are
// folders-first, then by name.
func (s *Store) ViewDrive(principal, folderID string) (items []*Node, breadcrumbs []*Node, err error) {
	defer s.observe("view_drive", time.Now(), &err)
	if err := s.mu.rlock(); err != nil {
		return nil, nil, err
	}
	defer s.mu.runlock()

	if folderID == "" {
		breadcrumbs = []*Node{{Name: RootName, Kind: KindFolder}}
		for _, n := range s.nodes {
			if n.ParentID == "" && !n.Trashed && n.OwnerID == principal {
				items = append(items, n.clone())
			}
		}
		sortForDisplay(items)
		return items, breadcrumbs, nil
	}

	folder := s.node(folderID)
	if folder == nil || folder.Trashed || !folder.IsFolder() || !s.visibleTo(folder, principal) {
		return nil, nil, fmt.Errorf("view drive %s: %w", folderID, ErrNotFound)
	}
	for _, n := range s.liveChildren(folderID) {
		if s.visibleTo(n, principal) {
			items = append(items, n.clone())
		}
	}
	sortForDisplay(items)
	breadcrumbs, err = s.breadcrumbsLocked(folder)
	if err != nil {
		return nil, nil, err
	}
	return items, breadcrumbs, nil
}

// GetNode returns a snapshot of a single node. Trashed nodes are
// visible to their owner only; live nodes to owner and grantees.
func (s *Store) GetNode(principal, nodeID string) (node *Node, err error) {
	defer s.observe("get_node", time.Now(), &err)
	if err := s.mu.rlock(); err != nil {
		return nil, err
	}
	defer s.mu.runlock()

	n := s.node(nodeID)
	if n == nil {
		return nil, fmt.Errorf("get node %s: %w", nodeID, ErrNotFound)
	}
	if n.Trashed {
		if n.OwnerID != principal {
			return nil, fmt.Errorf("get node %s: %w", nodeID, ErrNotFound)
		}
	} else if !s.visibleTo(n, principal) {
		return nil, fmt.Errorf("get node %s: %w", nodeID, ErrNotFound)
	}
	return n.clone(), nil
}

// Snapshot returns a clone of a node regardless of visibility. For
// internal bookkeeping only; request handlers go through GetNode.
func (s *Store) Snapshot(nodeID string) (*Node, error) {
	if err := s.mu.rlock(); err != nil {
		return nil, err
	}
	defer s.mu.runlock()

	n := s.node(nodeID)
	if n == nil {
		return nil, fmt.Errorf("snapshot %s: %w", nodeID, ErrNotFound)
	}
	return n.clone(), nil
}

// ViewRecent returns the principal's live files, most recently
// modified first. No time cutoff; limit <= 0 means all.
func (s *Store) ViewRecent(principal string, limit int) (items []*Node, err error) {
	defer s.observe("view_recent", time.Now(), &err)
	if err := s.mu.rlock(); err != nil {
		return nil, err
	}
	defer s.mu.runlock()

	for _, n := range s.nodes {
		if n.Kind == KindFile && !n.Trashed && n.OwnerID == principal {
			items = append(items, n.clone())
		}
	}
	sortByModified(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// ViewStarred returns the principal's live starred nodes of any kind,
// flattened across folders. Trashed nodes stay out even when starred.
func (s *Store) ViewStarred(principal string) (items []*Node, err error) {
	defer s.observe("view_starred", time.Now(), &err)
	if err := s.mu.rlock(); err != nil {
		return nil, err
	}
	defer s.mu.runlock()

	for _, n := range s.nodes {
		if n.Starred && !n.Trashed && n.OwnerID == principal {
			items = append(items, n.clone())
		}
	}
	sortForDisplay(items)
	return items, nil
}

// ViewShared returns live nodes other owners granted to the principal,
// flattened across owners.
func (s *Store) ViewShared(principal string) (items []*Node, err error) {
	defer s.observe("view_shared", time.Now(), &err)
	if err := s.mu.rlock(); err != nil {
		return nil, err
	}
	defer s.mu.runlock()

	for nodeID, grantees := range s.grants {
		perm := grantees[principal]
		if perm != PermissionViewer && perm != PermissionEditor {
			continue
		}
		n := s.node(nodeID)
		if n == nil || n.Trashed {
			continue
		}
		items = append(items, n.clone())
	}
	sortForDisplay(items)
	return items, nil
}

// ViewTrash returns the principal's trashed nodes, most recently
// trashed first.
func (s *Store) ViewTrash(principal string) (items []*Node, err error) {
	defer s.observe("view_trash", time.Now(), &err)
	if err := s.mu.rlock(); err != nil {
		return nil, err
	}
	defer s.mu.runlock()

	for _, n := range s.nodes {
		if n.Trashed && n.OwnerID == principal {
			items = append(items, n.clone())
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].TrashedAt.Equal(items[j].TrashedAt) {
			return items[i].TrashedAt.After(items[j].TrashedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// Search matches a case-insensitive substring against names of live
// nodes visible to the principal (owned plus directly granted).
// Ordering is modified_at descending with id as tiebreak, so results
// are deterministic; there is no relevance scoring.
func (s *Store) Search(principal, query string) (items []*Node, err error) {
	defer s.observe("search", time.Now(), &err)
	if err := s.mu.rlock(); err != nil {
		return nil, err
	}
	defer s.mu.runlock()

	q := strings.ToLower(query)
	for _, n := range s.nodes {
		if n.Trashed || !strings.Contains(strings.ToLower(n.Name), q) {
			continue
		}
		if !s.visibleTo(n, principal) {
			continue
		}
		items = append(items, n.clone())
	}
	sortByModified(items)
	return items, nil
}

// breadcrumbsLocked is ResolvePath with the read lock already held.
func (s *Store) breadcrumbsLocked(n *Node) ([]*Node, error) {
	var chain []*Node
	seen := make(map[string]bool)
	for cur := n; cur != nil; cur = s.nodes[cur.ParentID] {
		if seen[cur.ID] {
			return nil, fmt.Errorf("breadcrumbs %s: %w", n.ID, ErrCorruptHierarchy)
		}
		seen[cur.ID] = true
		chain = append(chain, cur.clone())
		if cur.ParentID == "" {
			break
		}
	}
	path := make([]*Node, 0, len(chain)+1)
	path = append(path, &Node{Name: RootName, Kind: KindFolder})
	for i := len(chain) - 1; i >= 0; i-- {
		path = append(path, chain[i])
	}
	return path, nil
}

// sortForDisplay orders folders before files, then by name, then id.
func sortForDisplay(items []*Node) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Kind != b.Kind {
			return a.Kind == KindFolder
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

func sortByModified(items []*Node) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.ModifiedAt.Equal(b.ModifiedAt) {
			return a.ModifiedAt.After(b.ModifiedAt)
		}
		return a.ID < b.ID
	})
}
