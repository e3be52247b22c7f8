package roles

// Catalog maps each tier to the complete list of actions it grants.
// Every row is spelled out; nothing is inherited at lookup time.
var Catalog = map[Tier][]Action{
	TierStudent: {
		ActionEventsView,
		ActionRsoSubscribe,
		ActionCommentCreate,
	},
	TierAdmin: {
		ActionEventsView,
		ActionRsoSubscribe,
		ActionCommentCreate,
		ActionEventsCreate,
		ActionEventsDestroy,
		ActionRsoEdit,
		ActionRsoDestroy,
	},
	TierSuperAdmin: {
		ActionEventsView,
		ActionRsoSubscribe,
		ActionCommentCreate,
		ActionRsoCreate,
		ActionUniversityUpdate,
		ActionUniversityDestroy,
	},
}

// ConcatPerms returns a copy of the actions granted by tier.
// Unknown tiers grant nothing.
func ConcatPerms(tier Tier) []Action {
	actions, ok := Catalog[tier]
	if !ok {
		return []Action{}
	}
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// Grants reports whether tier includes action
func Grants(tier Tier, action Action) bool {
	for _, a := range Catalog[tier] {
		if a == action {
			return true
		}
	}
	return false
}

// AllActions returns every action that appears in the catalog
func AllActions() []Action {
	seen := make(map[Action]struct{})
	var out []Action
	for _, tier := range []Tier{TierSuperAdmin, TierAdmin, TierStudent} {
		for _, a := range Catalog[tier] {
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}
