package domain

import "time"

// RetentionTier is the policy class that decides how long a principal's
// files stay available.
type RetentionTier string

const (
	TierFree    RetentionTier = "free"
	TierTrial   RetentionTier = "trial"
	TierPremium RetentionTier = "premium"
	TierAdmin   RetentionTier = "admin"
	TierOwner   RetentionTier = "owner"
)

// RetentionPolicy maps a tier to its retention window.
type RetentionPolicy map[RetentionTier]time.Duration

// DefaultRetentionPolicy returns the ascending windows free < trial <
// premium < admin < owner.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		TierFree:    24 * time.Hour,
		TierTrial:   72 * time.Hour,
		TierPremium: 7 * 24 * time.Hour,
		TierAdmin:   30 * 24 * time.Hour,
		TierOwner:   365 * 24 * time.Hour,
	}
}

// Window returns the retention window for tier. Unknown or empty tiers get
// the free window.
func (p RetentionPolicy) Window(tier RetentionTier) time.Duration {
	if d, ok := p[tier]; ok && d > 0 {
		return d
	}
	if d, ok := p[TierFree]; ok && d > 0 {
		return d
	}
	return DefaultRetentionPolicy()[TierFree]
}

// Valid reports whether tier is one of the known retention classes.
func (t RetentionTier) Valid() bool {
	switch t {
	case TierFree, TierTrial, TierPremium, TierAdmin, TierOwner:
		return true
	}
	return false
}
