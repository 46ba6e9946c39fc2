package credits

import (
	"fmt"
	"strings"

	"github.com/stashlink/backend/internal/models"
)

// Operation costs in credits.
const (
	CostSummary         = 1.0
	CostTag             = 1.0
	CostChat            = 2.0
	CostContentAnalysis = 1.0

	DefaultUnlockCost = 10.0
)

var dailyAllotments = map[models.Plan]float64{
	models.PlanFree: 5,
	models.PlanPlus: 30,
	models.PlanPro:  100,
}

// DailyAllotment returns the credits a plan is refreshed to each calendar day.
// Unknown plans receive the free allotment.
func DailyAllotment(plan models.Plan) float64 {
	if amount, ok := dailyAllotments[plan]; ok {
		return amount
	}
	return dailyAllotments[models.PlanFree]
}

// ParsePlan maps a plan name onto a known plan.
func ParsePlan(name string) (models.Plan, error) {
	plan := models.Plan(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := dailyAllotments[plan]; !ok {
		return "", fmt.Errorf("unknown plan %q", name)
	}
	return plan, nil
}
