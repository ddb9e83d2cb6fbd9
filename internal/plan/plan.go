// Package plan defines the pricing tiers, their resource caps, and the
// billing-cycle arithmetic the quota system is built on.
//
// The cap table is compiled into the binary on purpose: changing tiers is a
// deploy, not a runtime configuration knob.
package plan

// Plan identifies the pricing tier.
type Plan string

const (
	PlanFree      Plan = "free"
	PlanStarter   Plan = "starter"
	PlanPro       Plan = "pro"
	PlanGrowth    Plan = "growth"
	PlanBeta      Plan = "beta"
	PlanBetaGrace Plan = "beta_grace"
)

// Resource identifies a metered resource governed by plan caps.
type Resource string

const (
	ResourceAnalyses       Resource = "analyses"
	ResourceScheduledPosts Resource = "scheduled_posts"
	ResourceAutomations    Resource = "automations"
	ResourceTeamMembers    Resource = "team_members"
)

// Limit is a per-resource cap. Negative means unlimited.
type Limit int

// Unlimited marks a resource with no cap.
const Unlimited Limit = -1

// IsUnlimited reports whether the limit disables enforcement.
func (l Limit) IsUnlimited() bool {
	return l < 0
}

// Limits defines the caps for a pricing tier.
// Analyses and scheduled posts are per billing cycle; automations and team
// members are standing counts.
type Limits struct {
	AnalysesPerCycle       Limit
	ScheduledPostsPerCycle Limit
	ActiveAutomations      Limit
	TeamMembers            Limit
}

// For returns the cap for a resource. Unknown resources are unlimited —
// only metered resources gate actions.
func (l Limits) For(r Resource) Limit {
	switch r {
	case ResourceAnalyses:
		return l.AnalysesPerCycle
	case ResourceScheduledPosts:
		return l.ScheduledPostsPerCycle
	case ResourceAutomations:
		return l.ActiveAutomations
	case ResourceTeamMembers:
		return l.TeamMembers
	}
	return Unlimited
}

// Catalog is the hardcoded plan catalogue.
var Catalog = map[Plan]Limits{
	PlanFree: {
		AnalysesPerCycle:       3,
		ScheduledPostsPerCycle: 5,
		ActiveAutomations:      1,
		TeamMembers:            1,
	},
	PlanStarter: {
		AnalysesPerCycle:       10,
		ScheduledPostsPerCycle: 30,
		ActiveAutomations:      3,
		TeamMembers:            1,
	},
	PlanPro: {
		AnalysesPerCycle:       50,
		ScheduledPostsPerCycle: 150,
		ActiveAutomations:      10,
		TeamMembers:            3,
	},
	PlanGrowth: {
		AnalysesPerCycle:       Unlimited,
		ScheduledPostsPerCycle: Unlimited,
		ActiveAutomations:      Unlimited,
		TeamMembers:            10,
	},
	PlanBeta: {
		AnalysesPerCycle:       Unlimited,
		ScheduledPostsPerCycle: Unlimited,
		ActiveAutomations:      Unlimited,
		TeamMembers:            Unlimited,
	},
	PlanBetaGrace: {
		AnalysesPerCycle:       50,
		ScheduledPostsPerCycle: 150,
		ActiveAutomations:      10,
		TeamMembers:            3,
	},
}

// LimitsFor returns the caps for a plan. Unknown plan identifiers fall back
// to the free tier — the most restrictive — rather than failing open.
func LimitsFor(p Plan) Limits {
	if l, ok := Catalog[p]; ok {
		return l
	}
	return Catalog[PlanFree]
}

// Valid returns true if the plan name is recognised.
func Valid(p Plan) bool {
	_, ok := Catalog[p]
	return ok
}
