package services

import (
	"math"
	"reflect"
	"sort"
	"testing"
	"time"

	apperrors "ecom-dashboard/internal/errors"
	"ecom-dashboard/internal/models"
)

// basketDataset builds one transaction row per (order, category) pair.
func basketDataset(orders map[string][]string) *Dataset {
	var rows []models.Transaction
	ids := make([]string, 0, len(orders))
	for id := range orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		for _, cat := range orders[id] {
			rows = append(rows, models.Transaction{
				OrderID:    id,
				Date:       time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				CustomerID: "C-" + id,
				Amount:     100,
				Category:   cat,
			})
		}
	}
	return NewDataset(rows, ColOrderID, ColDate, ColCustomerID, ColAmount, ColCategory)
}

func TestMineBaskets_SampleSingletons(t *testing.T) {
	ds := SampleDataset()

	result, err := MineBaskets(ds, 0.05, 1.0)
	// Every sample order holds a single category, so itemsets exist but
	// no rules can: the rule stage reports the empty-result warning while
	// the itemsets still come back.
	if !apperrors.IsCode(err, apperrors.CodeEmptyResult) {
		t.Fatalf("MineBaskets() err = %v, want EMPTY_RESULT for the rule stage", err)
	}
	if result == nil {
		t.Fatal("MineBaskets() should still return the frequent itemsets")
	}

	want := []models.Itemset{
		{Items: []string{"Electronics"}, Support: 4.0 / 9.0},
		{Items: []string{"Fashion"}, Support: 3.0 / 9.0},
		{Items: []string{"Home"}, Support: 2.0 / 9.0},
	}
	if !reflect.DeepEqual(result.Itemsets, want) {
		t.Errorf("Itemsets = %+v, want %+v", result.Itemsets, want)
	}

	if len(result.Rules) != 0 {
		t.Errorf("expected no rules on single-category orders, got %d", len(result.Rules))
	}
}

func TestMineBaskets_TopItemsetsOrderedBySupport(t *testing.T) {
	ds := SampleDataset()

	result, _ := MineBaskets(ds, 0.05, 1.0)
	if result == nil {
		t.Fatal("expected itemsets")
	}

	top := result.TopItemsets
	for i := 1; i < len(top); i++ {
		if top[i].Support > top[i-1].Support {
			t.Errorf("top itemsets not ordered by support at %d: %v > %v", i, top[i].Support, top[i-1].Support)
		}
	}
	if top[0].Items[0] != "Electronics" {
		t.Errorf("highest-support itemset = %v, want Electronics", top[0].Items)
	}
}

func TestMineBaskets_SupportFloorAboveMaximum(t *testing.T) {
	ds := SampleDataset()

	// Maximum single-item support in the sample is 4/9; a floor of 0.5
	// must prune everything.
	result, err := MineBaskets(ds, 0.5, 1.0)
	if result != nil {
		t.Errorf("expected nil result, got %+v", result)
	}
	if !apperrors.IsCode(err, apperrors.CodeEmptyResult) {
		t.Errorf("MineBaskets() err = %v, want EMPTY_RESULT", err)
	}
}

func TestMineBaskets_RuleMetrics(t *testing.T) {
	// Three of five orders hold both A and B.
	ds := basketDataset(map[string][]string{
		"O1": {"A", "B"},
		"O2": {"A", "B"},
		"O3": {"A", "B"},
		"O4": {"A"},
		"O5": {"B"},
	})

	minLift := 0.5
	result, err := MineBaskets(ds, 0.1, minLift)
	if err != nil {
		t.Fatalf("MineBaskets() error = %v", err)
	}

	if len(result.Rules) != 2 {
		t.Fatalf("expected 2 rules (A→B and B→A), got %d: %+v", len(result.Rules), result.Rules)
	}

	for _, rule := range result.Rules {
		for _, a := range rule.Antecedents {
			for _, c := range rule.Consequents {
				if a == c {
					t.Errorf("rule %v → %v has overlapping sides", rule.Antecedents, rule.Consequents)
				}
			}
		}
		if rule.Lift < minLift {
			t.Errorf("rule lift %v below floor %v", rule.Lift, minLift)
		}
	}

	// sup(A)=sup(B)=4/5, sup(AB)=3/5: confidence 0.75, lift 0.9375.
	first := result.Rules[0]
	if math.Abs(first.Confidence-0.75) > 1e-9 {
		t.Errorf("confidence = %v, want 0.75", first.Confidence)
	}
	if math.Abs(first.Lift-0.9375) > 1e-9 {
		t.Errorf("lift = %v, want 0.9375", first.Lift)
	}
	if math.Abs(first.Lift-first.Confidence/(4.0/5.0)) > 1e-9 {
		t.Errorf("lift should equal confidence / consequent support")
	}
}

func TestMineBaskets_LiftFloorFiltersRules(t *testing.T) {
	ds := basketDataset(map[string][]string{
		"O1": {"A", "B"},
		"O2": {"A", "B"},
		"O3": {"A", "B"},
		"O4": {"A"},
		"O5": {"B"},
	})

	// Both candidate rules carry lift 0.9375; a floor of 1.0 removes them.
	result, err := MineBaskets(ds, 0.1, 1.0)
	if !apperrors.IsCode(err, apperrors.CodeEmptyResult) {
		t.Fatalf("MineBaskets() err = %v, want EMPTY_RESULT for the rule stage", err)
	}
	if result == nil || len(result.Itemsets) == 0 {
		t.Fatal("itemsets should survive when only the rule stage is empty")
	}
	if len(result.Rules) != 0 {
		t.Errorf("expected no rules, got %d", len(result.Rules))
	}
}

func TestMineBaskets_GraphInvariants(t *testing.T) {
	ds := basketDataset(map[string][]string{
		"O1": {"A", "B", "C"},
		"O2": {"A", "B", "C"},
		"O3": {"A", "B"},
		"O4": {"C"},
	})

	minLift := 0.1
	result, err := MineBaskets(ds, 0.4, minLift)
	if err != nil {
		t.Fatalf("MineBaskets() error = %v", err)
	}

	sources := make(map[string]bool)
	targets := make(map[string]bool)
	for _, rule := range result.Rules {
		for _, a := range rule.Antecedents {
			sources[a] = true
		}
		for _, c := range rule.Consequents {
			targets[c] = true
		}
	}

	for _, edge := range result.Graph.Edges {
		if !sources[edge.Source] {
			t.Errorf("edge source %s not in any rule antecedent", edge.Source)
		}
		if !targets[edge.Target] {
			t.Errorf("edge target %s not in any rule consequent", edge.Target)
		}
		if edge.Weight < minLift {
			t.Errorf("edge %s→%s weight %v below lift floor", edge.Source, edge.Target, edge.Weight)
		}
	}
}

func TestMineBaskets_GraphLastRuleWinsEdgeWeight(t *testing.T) {
	ds := basketDataset(map[string][]string{
		"O1": {"A", "B", "C"},
		"O2": {"A", "B", "C"},
		"O3": {"A", "B"},
		"O4": {"C"},
	})

	result, err := MineBaskets(ds, 0.4, 0.1)
	if err != nil {
		t.Fatalf("MineBaskets() error = %v", err)
	}

	edgeWeight := func(source, target string) float64 {
		t.Helper()
		for _, e := range result.Graph.Edges {
			if e.Source == source && e.Target == target {
				return e.Weight
			}
		}
		t.Fatalf("edge %s→%s not found", source, target)
		return 0
	}

	// C→A is produced three times: by {C}→{A} (lift 8/9), by {C}→{A,B}
	// (lift 8/9) and finally by {B,C}→{A} (lift 4/3). The last rule in
	// iteration order wins.
	if got := edgeWeight("C", "A"); math.Abs(got-4.0/3.0) > 1e-9 {
		t.Errorf("edge C→A weight = %v, want 4/3 from the last producing rule", got)
	}

	// A→C is last written by {A,B}→{C} (lift 8/9), overwriting the
	// earlier {A}→{B,C} weight of 4/3.
	if got := edgeWeight("A", "C"); math.Abs(got-8.0/9.0) > 1e-9 {
		t.Errorf("edge A→C weight = %v, want 8/9 from the last producing rule", got)
	}
}

func TestMineBaskets_Deterministic(t *testing.T) {
	ds := basketDataset(map[string][]string{
		"O1": {"A", "B", "C"},
		"O2": {"A", "B", "C"},
		"O3": {"A", "B"},
		"O4": {"C"},
	})

	first, err1 := MineBaskets(ds, 0.4, 0.1)
	second, err2 := MineBaskets(ds, 0.4, 0.1)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("MineBaskets() should be bit-identical across runs")
	}
}
