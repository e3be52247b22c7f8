package roles

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tier is the standing a membership grants. Lower values are more privileged.
type Tier int

const (
	TierSuperAdmin Tier = 1
	TierAdmin      Tier = 2
	TierStudent    Tier = 3
)

// Valid reports whether t is one of the declared tiers
func (t Tier) Valid() bool {
	return t >= TierSuperAdmin && t <= TierStudent
}

func (t Tier) String() string {
	switch t {
	case TierSuperAdmin:
		return "SUPERADMIN"
	case TierAdmin:
		return "ADMIN"
	case TierStudent:
		return "STUDENT"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// ParseTier accepts either the numeric value or the tier name
func ParseTier(s string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "1", "SUPERADMIN":
		return TierSuperAdmin, nil
	case "2", "ADMIN":
		return TierAdmin, nil
	case "3", "STUDENT":
		return TierStudent, nil
	}
	return 0, fmt.Errorf("unknown tier: %q", s)
}

// PrivacyTier is the visibility level of an event. Lower values are more restrictive.
type PrivacyTier int

const (
	PrivacyRSO     PrivacyTier = 1
	PrivacyPrivate PrivacyTier = 2
	PrivacyPublic  PrivacyTier = 3
)

// Valid reports whether p is one of the declared privacy tiers
func (p PrivacyTier) Valid() bool {
	return p >= PrivacyRSO && p <= PrivacyPublic
}

func (p PrivacyTier) String() string {
	switch p {
	case PrivacyRSO:
		return "RSO"
	case PrivacyPrivate:
		return "PRIVATE"
	case PrivacyPublic:
		return "PUBLIC"
	default:
		return fmt.Sprintf("PrivacyTier(%d)", int(p))
	}
}

// UnmarshalJSON accepts both 1/2/3 and "RSO"/"PRIVATE"/"PUBLIC"
func (p *PrivacyTier) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*p = PrivacyTier(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid privacy tier: %s", string(data))
	}

	switch strings.ToUpper(s) {
	case "RSO":
		*p = PrivacyRSO
	case "PRIVATE":
		*p = PrivacyPrivate
	case "PUBLIC":
		*p = PrivacyPublic
	default:
		return fmt.Errorf("invalid privacy tier: %q", s)
	}
	return nil
}

// Action is a permission key checked by the request layer
type Action string

const (
	ActionEventsView        Action = "events.view"
	ActionEventsCreate      Action = "events.create"
	ActionEventsDestroy     Action = "events.destroy"
	ActionRsoSubscribe      Action = "rso.subscribe"
	ActionRsoCreate         Action = "rso.create"
	ActionRsoEdit           Action = "rso.edit"
	ActionRsoDestroy        Action = "rso.destroy"
	ActionUniversityUpdate  Action = "university.update"
	ActionUniversityDestroy Action = "university.destroy"
	ActionCommentCreate     Action = "comment.create"
)
