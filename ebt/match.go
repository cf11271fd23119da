package ebt

// MatchRef is a single match or watcher attached to an Entry: the name
// it was resolved against in a Registry, plus the extension's own
// decoded payload. Entry carries matches and watchers as ordered
// MatchRef slices rather than raw bytes, so Serialize can re-encode
// them and the validator can final-check each one individually (§3,
// §4.1).
type MatchRef struct {
	Name    string
	Payload Payload
}

// TargetRef is the single target attached to an Entry. Every Entry has
// exactly one; for the standard target Payload is a *StandardTarget
// carrying a Verdict (§3). It shares MatchRef's shape since a target
// is, structurally, just another name+payload reference.
type TargetRef = MatchRef

// Matches is an ordered list of match references, evaluated left to
// right; an Entry only fires its watchers and target if every match
// matches (§3, §8).
type Matches []MatchRef

// Watchers is an ordered list of watcher references, run for side
// effects (logging, accounting) on an Entry whose matches all hit,
// independent of the eventual verdict (§3).
type Watchers []MatchRef

// Compare reports whether two match/watcher lists are equal in name,
// order and payload value, used by -D's by-value delete (§4.4).
func (m Matches) Compare(other Matches) bool {
	return compareRefs(m, other)
}

// Compare reports whether two watcher lists are equal in name, order
// and payload value.
func (w Watchers) Compare(other Watchers) bool {
	return compareRefs(w, other)
}

func compareRefs(a, b []MatchRef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
		if (a[i].Payload == nil) != (b[i].Payload == nil) {
			return false
		}
		if a[i].Payload != nil && !a[i].Payload.Compare(b[i].Payload) {
			return false
		}
	}
	return true
}
