package coreplaylist

import (
	"strings"
)

// The validator is pure: every rule runs against an in-memory snapshot of the
// affected rows and performs no I/O. Rules run in a fixed order and the first
// violated rule is the reported error.

// playlistSnapshot is what the structural-mutation rules need to know about
// the owning playlist.
type playlistSnapshot struct {
	ID     string
	Status string
}

// sectionSnapshot carries the section row plus the media ids currently
// attached to it.
type sectionSnapshot struct {
	ID             string
	PlaylistStatus string
	MemberMediaIDs []string
}

// requireDraft enforces the publish-lock: no structural mutation on a
// section or its media while the owning playlist is published. Reads are
// never gated by this rule.
func requireDraft(status string) error {
	if status != statusDraft {
		return ErrPublishedLocked
	}
	return nil
}

// validateSelectionBounds rejects negative minimums and inverted ranges
// before any section row is written.
func validateSelectionBounds(minSelect, maxSelect int) error {
	if minSelect < 0 || maxSelect < minSelect {
		return ErrInvalidSelectionBounds
	}
	return nil
}

// validateAddMedia runs the admission rules for attaching one media to a
// section: publish-lock first, then duplicate membership, then referential
// integrity of the media itself.
func validateAddMedia(snap sectionSnapshot, mediaID string, mediaExists bool) error {
	if err := requireDraft(snap.PlaylistStatus); err != nil {
		return err
	}
	for _, m := range snap.MemberMediaIDs {
		if m == mediaID {
			return ErrDuplicateMembership
		}
	}
	if !mediaExists {
		return ErrNotFound
	}
	return nil
}

// validateReorder checks a client-submitted arrangement against the current
// sibling set: publish-lock, the concurrency token, and that ids match the
// known siblings exactly (no strays, no omissions).
func validateReorder(playlistStatus string, currentVersion, baseVersion int64, siblingIDs []string, items []OrderPair) error {
	if err := requireDraft(playlistStatus); err != nil {
		return err
	}
	if baseVersion != 0 && baseVersion != currentVersion {
		return ErrOrderConflict
	}
	known := make(map[string]bool, len(siblingIDs))
	for _, id := range siblingIDs {
		known[id] = true
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if !known[it.ID] || seen[it.ID] {
			return ErrNotFound
		}
		seen[it.ID] = true
	}
	if len(seen) != len(siblingIDs) {
		return ErrOrderConflict
	}
	return nil
}

func validSectionType(t string) bool {
	switch t {
	case sectionTypeBase, sectionTypeLoop:
		return true
	}
	return false
}

// validateMediaSource enforces the tagged source variant: stored media need a
// storage ref, embeds need a URL, and exactly one of the two may be set.
func validateMediaSource(kind, storageRef, embedURL string) bool {
	switch kind {
	case sourceKindStored:
		return strings.TrimSpace(storageRef) != "" && embedURL == ""
	case sourceKindEmbed:
		return strings.TrimSpace(embedURL) != "" && storageRef == ""
	}
	return false
}
