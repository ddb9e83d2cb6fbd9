package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogCoversEveryPlan(t *testing.T) {
	for _, p := range []Plan{PlanFree, PlanStarter, PlanPro, PlanGrowth, PlanBeta, PlanBetaGrace} {
		_, ok := Catalog[p]
		assert.True(t, ok, "plan %s missing from catalog", p)
		assert.True(t, Valid(p))
	}
}

func TestLimitsForUnknownFallsBackToFree(t *testing.T) {
	limits := LimitsFor(Plan("enterprise-classic"))
	assert.Equal(t, Catalog[PlanFree], limits)
	assert.False(t, Valid(Plan("enterprise-classic")))
}

func TestLimitIsUnlimited(t *testing.T) {
	assert.True(t, Unlimited.IsUnlimited())
	assert.False(t, Limit(0).IsUnlimited())
	assert.False(t, Limit(5).IsUnlimited())
}

func TestLimitsFor(t *testing.T) {
	free := LimitsFor(PlanFree)
	assert.Equal(t, Limit(5), free.For(ResourceScheduledPosts))
	assert.Equal(t, Limit(3), free.For(ResourceAnalyses))
	assert.Equal(t, Limit(1), free.For(ResourceAutomations))

	growth := LimitsFor(PlanGrowth)
	assert.True(t, growth.For(ResourceAnalyses).IsUnlimited())
	assert.True(t, growth.For(ResourceScheduledPosts).IsUnlimited())
	assert.Equal(t, Limit(10), growth.For(ResourceTeamMembers))

	// Unmetered resources never gate.
	assert.True(t, free.For(Resource("something_else")).IsUnlimited())
}
