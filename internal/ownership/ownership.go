// Package ownership enforces the field-ownership policy between the local
// store and LinkHub. Fields listed here are computed or edited exclusively on
// the remote side; local syncs must never carry them, because an absent key
// means "leave unchanged" under LinkHub's partial-update semantics.
package ownership

import "github.com/okrtools/goalpost/internal/domain/okr"

var remoteOwned = map[okr.Kind]map[string]struct{}{
	okr.KindObjective:  set("progress"),
	okr.KindKeyResult:  set("weight"),
	okr.KindRisk:       set("priority"),
	okr.KindInitiative: set("priority"),
	okr.KindIndicator:  set("currentValue"),
	okr.KindMilestone:  set("progress"),
}

func set(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// Strip returns a copy of payload without the remote-owned fields for kind.
// Kinds with no managed fields pass through as a plain copy. Strip is
// idempotent.
func Strip(kind okr.Kind, payload map[string]any) map[string]any {
	managed := remoteOwned[kind]
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if _, owned := managed[k]; owned {
			continue
		}
		out[k] = v
	}
	return out
}

// Managed returns the remote-owned field names for kind, nil if none.
func Managed(kind okr.Kind) []string {
	m := remoteOwned[kind]
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	return names
}
