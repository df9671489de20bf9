package drive

import (
	"fmt"
	"time"
)

// Trash soft-deletes a live node and, for folders, every live
// descendant in the same atomic step: the affected set is collected
// and validated before any flag flips, so a failure changes nothing.
// Quota for the owner(s) of the trashed files is released. Returns the
// trashed nodes.
func (s *Store) Trash(principal, nodeID string) (trashed []*Node, err error) {
	defer s.observe("trash", time.Now(), &err)
	if err := s.mu.lock(); err != nil {
		return nil, err
	}
	defer s.mu.unlock()

	n := s.node(nodeID)
	if n == nil || n.Trashed || n.OwnerID != principal {
		return nil, fmt.Errorf("trash %s: %w", nodeID, ErrNotFound)
	}

	var affected []*Node
	for _, d := range s.collectSubtree(n) {
		if !d.Trashed {
			affected = append(affected, d)
		}
	}

	now := s.now()
	for _, d := range affected {
		d.Trashed = true
		d.TrashedAt = now
		if d.Kind == KindFile {
			s.release(d.OwnerID, d.SizeBytes)
		}
		trashed = append(trashed, d.clone())
	}
	return trashed, nil
}

// Restore returns a trashed node to the live state. Only the target
// node changes: descendants trashed by the cascade stay trashed until
// restored individually. Fails with ErrNameConflict if a live sibling
// has since claimed the node's name, leaving the node trashed.
func (s *Store) Restore(principal, nodeID string) (node *Node, err error) {
	defer s.observe("restore", time.Now(), &err)
	if err := s.mu.lock(); err != nil {
		return nil, err
	}
	defer s.mu.unlock()

	n := s.node(nodeID)
	if n == nil || n.OwnerID != principal {
		return nil, fmt.Errorf("restore %s: %w", nodeID, ErrNotFound)
	}
	if !n.Trashed {
		return nil, fmt.Errorf("restore %q: %w", n.Name, ErrNotTrashed)
	}
	if s.nameInUse(n.OwnerID, n.ParentID, n.Name, n.ID) {
		return nil, fmt.Errorf("restore %q: %w", n.Name, ErrNameConflict)
	}

	n.Trashed = false
	n.TrashedAt = time.Time{}
	if n.Kind == KindFile {
		// used_bytes is defined over live files, so restoring
		// re-admits the size unconditionally.
		s.ownerQuota(n.OwnerID).used += n.SizeBytes
	}
	return n.clone(), nil
}

// Purge irreversibly removes a trashed node and its whole subtree,
// regardless of the descendants' individual trash state. Grants on the
// removed nodes are dropped and quota still held by live descendants
// is released. Returns the removed nodes so the caller can delete
// their content blobs.
func (s *Store) Purge(principal, nodeID string) (purged []*Node, err error) {
	defer s.observe("purge", time.Now(), &err)
	if err := s.mu.lock(); err != nil {
		return nil, err
	}
	defer s.mu.unlock()

	n := s.node(nodeID)
	if n == nil || n.OwnerID != principal {
		return nil, fmt.Errorf("purge %s: %w", nodeID, ErrNotFound)
	}
	if !n.Trashed {
		return nil, fmt.Errorf("purge %q: %w", n.Name, ErrNotTrashed)
	}

	for _, d := range s.collectSubtree(n) {
		if d.Kind == KindFile && !d.Trashed {
			s.release(d.OwnerID, d.SizeBytes)
		}
		delete(s.nodes, d.ID)
		delete(s.grants, d.ID)
		purged = append(purged, d.clone())
	}
	return purged, nil
}

// Star sets or clears the star flag. Idempotent, and allowed while the
// node is trashed (the starred view still excludes trashed nodes).
// modified_at bumps only on an actual change.
func (s *Store) Star(principal, nodeID string, value bool) (node *Node, err error) {
	defer s.observe("star", time.Now(), &err)
	if err := s.mu.lock(); err != nil {
		return nil, err
	}
	defer s.mu.unlock()

	n := s.node(nodeID)
	if n == nil || n.OwnerID != principal {
		return nil, fmt.Errorf("star %s: %w", nodeID, ErrNotFound)
	}
	if n.Starred != value {
		n.Starred = value
		n.ModifiedAt = s.now()
	}
	return n.clone(), nil
}
