package okr_test

import (
	"testing"

	"github.com/okrtools/goalpost/internal/domain/okr"
)

func TestValidKind(t *testing.T) {
	for _, k := range okr.Kinds() {
		if !okr.ValidKind(k) {
			t.Errorf("ValidKind(%q) = false", k)
		}
	}
	if okr.ValidKind("deal") {
		t.Error("ValidKind(deal) = true, want false")
	}
}

func TestCollectionNames(t *testing.T) {
	want := map[okr.Kind]string{
		okr.KindCompany:           "companies",
		okr.KindTeam:              "teams",
		okr.KindUser:              "users",
		okr.KindIndicator:         "indicators",
		okr.KindIndicatorValue:    "indicatorValues",
		okr.KindIndicatorForecast: "indicatorForecasts",
		okr.KindObjective:         "objectives",
		okr.KindKeyResult:         "keyResults",
		okr.KindRisk:              "risks",
		okr.KindInitiative:        "initiatives",
		okr.KindMilestone:         "milestones",
	}
	for k, coll := range want {
		if got := okr.Collection(k); got != coll {
			t.Errorf("Collection(%q) = %q, want %q", k, got, coll)
		}
	}
}

func TestRequiredRefs(t *testing.T) {
	var required []string
	for _, ref := range okr.Refs(okr.KindKeyResult) {
		if ref.Required {
			required = append(required, ref.Field)
		}
	}
	if len(required) != 1 || required[0] != "objectiveExternalId" {
		t.Errorf("keyResult required refs = %v, want [objectiveExternalId]", required)
	}

	for _, ref := range okr.Refs(okr.KindCompany) {
		if ref.Required {
			t.Errorf("company should have no required refs, got %q", ref.Field)
		}
	}
}
