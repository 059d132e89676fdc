package service

import "github.com/auricex/auricex/internal/domain"

// OutcomePolicy decides the settlement outcome for a trade. The platform
// forces outcomes per user rather than reading the market: each user carries
// an outcome mode, and an administrator can override it per settlement.
type OutcomePolicy struct{}

// Decide returns the outcome to settle with. An explicit admin override wins;
// otherwise the user's configured mode applies.
func (OutcomePolicy) Decide(profile domain.UserProfile, override *domain.Outcome) domain.Outcome {
	if override != nil {
		return *override
	}
	return profile.OutcomeMode.Outcome()
}
