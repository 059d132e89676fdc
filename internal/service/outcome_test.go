package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/auricex/auricex/internal/domain"
)

func TestOutcomePolicyFollowsUserMode(t *testing.T) {
	var policy OutcomePolicy

	win := domain.UserProfile{ID: "u1", OutcomeMode: domain.OutcomeModeWin}
	loss := domain.UserProfile{ID: "u2", OutcomeMode: domain.OutcomeModeLoss}

	assert.Equal(t, domain.OutcomeWin, policy.Decide(win, nil))
	assert.Equal(t, domain.OutcomeLoss, policy.Decide(loss, nil))
}

func TestOutcomePolicyAdminOverrideWins(t *testing.T) {
	var policy OutcomePolicy

	profile := domain.UserProfile{ID: "u1", OutcomeMode: domain.OutcomeModeLoss}
	override := domain.OutcomeWin
	assert.Equal(t, domain.OutcomeWin, policy.Decide(profile, &override))

	profile.OutcomeMode = domain.OutcomeModeWin
	override = domain.OutcomeLoss
	assert.Equal(t, domain.OutcomeLoss, policy.Decide(profile, &override))
}

func TestOutcomePolicyDefaultsToLoss(t *testing.T) {
	var policy OutcomePolicy

	// A profile with no mode set settles as a loss.
	assert.Equal(t, domain.OutcomeLoss, policy.Decide(domain.UserProfile{ID: "u1"}, nil))
}
