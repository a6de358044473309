package services

import (
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	apperrors "ecom-dashboard/internal/errors"
	"ecom-dashboard/internal/models"
)

const topItemsetCount = 10

// MineBaskets runs the full market basket pipeline: incidence matrix,
// Apriori frequent itemsets at minSupport, association rules kept at
// lift >= minLift, and the lift-weighted co-occurrence digraph.
//
// When no itemset clears the support floor the result is nil and the
// error is an EMPTY_RESULT warning. When itemsets exist but no rule
// clears the lift floor, the returned result still carries the itemsets
// alongside the warning so callers can render what survived.
func MineBaskets(ds *Dataset, minSupport, minLift float64) (*models.BasketResult, error) {
	baskets, items := buildIncidence(ds)
	if len(baskets) == 0 {
		return nil, apperrors.EmptyResult("no frequent itemsets; lower min_support")
	}

	itemsets, supports := mineFrequentItemsets(baskets, len(items), minSupport)
	if len(itemsets) == 0 {
		return nil, apperrors.EmptyResult("no frequent itemsets; lower min_support")
	}

	result := &models.BasketResult{
		Itemsets: itemsetModels(itemsets, supports, items),
		Rules:    []models.AssociationRule{},
		Graph:    models.RuleGraph{Nodes: []string{}, Edges: []models.GraphEdge{}},
	}
	result.TopItemsets = topItemsets(result.Itemsets)

	rules := deriveRules(itemsets, supports, items, minLift)
	if len(rules) == 0 {
		return result, apperrors.EmptyResult("no association rules; lower lift threshold")
	}

	result.Rules = rules
	result.Graph = buildRuleGraph(rules)
	return result, nil
}

// buildIncidence collapses (order, category) amount sums to presence.
// An order contains a category when its summed amount is > 0; quantity
// is irrelevant. Items come back sorted so everything downstream
// iterates in a fixed order.
func buildIncidence(ds *Dataset) ([]map[int]bool, []string) {
	sums := make(map[string]map[string]float64)
	itemSet := make(map[string]struct{})

	for _, tx := range ds.Rows() {
		if tx.OrderID == "" || tx.Category == "" {
			continue
		}
		byCat := sums[tx.OrderID]
		if byCat == nil {
			byCat = make(map[string]float64)
			sums[tx.OrderID] = byCat
		}
		if !math.IsNaN(tx.Amount) {
			byCat[tx.Category] += tx.Amount
		}
		itemSet[tx.Category] = struct{}{}
	}

	items := make([]string, 0, len(itemSet))
	for item := range itemSet {
		items = append(items, item)
	}
	sort.Strings(items)

	itemIndex := make(map[string]int, len(items))
	for i, item := range items {
		itemIndex[item] = i
	}

	orderIDs := make([]string, 0, len(sums))
	for id := range sums {
		orderIDs = append(orderIDs, id)
	}
	sort.Strings(orderIDs)

	baskets := make([]map[int]bool, 0, len(orderIDs))
	for _, id := range orderIDs {
		basket := make(map[int]bool)
		for cat, sum := range sums[id] {
			if sum > 0 {
				basket[itemIndex[cat]] = true
			}
		}
		baskets = append(baskets, basket)
	}
	return baskets, items
}

// mineFrequentItemsets is a level-wise Apriori search over the incidence
// matrix. Itemsets are emitted in (size, lexicographic) order, which
// fixes rule iteration order downstream.
func mineFrequentItemsets(baskets []map[int]bool, itemCount int, minSupport float64) ([][]int, map[string]float64) {
	total := float64(len(baskets))
	supports := make(map[string]float64)
	var frequent [][]int

	// Level 1: single items.
	var level [][]int
	for item := 0; item < itemCount; item++ {
		candidate := []int{item}
		sup := float64(countSupport(baskets, candidate)) / total
		if sup >= minSupport {
			supports[itemsetKey(candidate)] = sup
			level = append(level, candidate)
		}
	}
	frequent = append(frequent, level...)

	// Level k: join lexicographically adjacent (k-1)-sets sharing a
	// prefix, prune candidates with an infrequent subset, then count.
	for len(level) > 1 {
		var next [][]int
		for i := 0; i < len(level); i++ {
			for j := i + 1; j < len(level); j++ {
				candidate, ok := joinItemsets(level[i], level[j])
				if !ok {
					break
				}
				if !allSubsetsFrequent(candidate, supports) {
					continue
				}
				sup := float64(countSupport(baskets, candidate)) / total
				if sup >= minSupport {
					supports[itemsetKey(candidate)] = sup
					next = append(next, candidate)
				}
			}
		}
		frequent = append(frequent, next...)
		level = next
	}

	return frequent, supports
}

// joinItemsets merges two sorted k-sets sharing their first k-1 items.
func joinItemsets(a, b []int) ([]int, bool) {
	k := len(a)
	for i := 0; i < k-1; i++ {
		if a[i] != b[i] {
			return nil, false
		}
	}
	if a[k-1] >= b[k-1] {
		return nil, false
	}
	candidate := make([]int, k+1)
	copy(candidate, a)
	candidate[k] = b[k-1]
	return candidate, true
}

func allSubsetsFrequent(candidate []int, supports map[string]float64) bool {
	if len(candidate) <= 2 {
		return true
	}
	subset := make([]int, 0, len(candidate)-1)
	for skip := range candidate {
		subset = subset[:0]
		for i, item := range candidate {
			if i != skip {
				subset = append(subset, item)
			}
		}
		if _, ok := supports[itemsetKey(subset)]; !ok {
			return false
		}
	}
	return true
}

func countSupport(baskets []map[int]bool, itemset []int) int {
	count := 0
	for _, basket := range baskets {
		contains := true
		for _, item := range itemset {
			if !basket[item] {
				contains = false
				break
			}
		}
		if contains {
			count++
		}
	}
	return count
}

func itemsetKey(itemset []int) string {
	parts := make([]string, len(itemset))
	for i, item := range itemset {
		parts[i] = strconv.Itoa(item)
	}
	return strings.Join(parts, ",")
}

func itemNames(itemset []int, items []string) []string {
	names := make([]string, len(itemset))
	for i, item := range itemset {
		names[i] = items[item]
	}
	return names
}

func itemsetModels(itemsets [][]int, supports map[string]float64, items []string) []models.Itemset {
	result := make([]models.Itemset, 0, len(itemsets))
	for _, set := range itemsets {
		result = append(result, models.Itemset{
			Items:   itemNames(set, items),
			Support: supports[itemsetKey(set)],
		})
	}
	return result
}

// topItemsets returns the highest-support itemsets for the "top N"
// widget, ties broken by item names so the cut is stable.
func topItemsets(itemsets []models.Itemset) []models.Itemset {
	top := make([]models.Itemset, len(itemsets))
	copy(top, itemsets)
	slices.SortStableFunc(top, func(a, b models.Itemset) int {
		if a.Support != b.Support {
			if a.Support > b.Support {
				return -1
			}
			return 1
		}
		return slices.Compare(a.Items, b.Items)
	})
	if len(top) > topItemsetCount {
		top = top[:topItemsetCount]
	}
	return top
}

// deriveRules generates every antecedent/consequent split of each
// frequent itemset of size >= 2 and keeps rules with lift >= minLift.
// Antecedents enumerate in ascending bitmask order over the sorted
// itemset, so rule order is reproducible run to run.
func deriveRules(itemsets [][]int, supports map[string]float64, items []string, minLift float64) []models.AssociationRule {
	var rules []models.AssociationRule

	for _, set := range itemsets {
		k := len(set)
		if k < 2 {
			continue
		}
		union := supports[itemsetKey(set)]

		for mask := 1; mask < (1<<k)-1; mask++ {
			antecedent := make([]int, 0, k)
			consequent := make([]int, 0, k)
			for i, item := range set {
				if mask&(1<<i) != 0 {
					antecedent = append(antecedent, item)
				} else {
					consequent = append(consequent, item)
				}
			}

			// Every subset of a frequent itemset is frequent, so both
			// lookups are guaranteed to hit.
			supA := supports[itemsetKey(antecedent)]
			supC := supports[itemsetKey(consequent)]
			confidence := union / supA
			lift := confidence / supC

			if lift < minLift {
				continue
			}
			rules = append(rules, models.AssociationRule{
				Antecedents: itemNames(antecedent, items),
				Consequents: itemNames(consequent, items),
				Support:     union,
				Confidence:  confidence,
				Lift:        lift,
			})
		}
	}
	return rules
}

// buildRuleGraph adds one directed edge per (antecedent item, consequent
// item) pair of each surviving rule, weighted by that rule's lift. When
// two rules produce the same directed pair, the rule later in iteration
// order wins the weight.
func buildRuleGraph(rules []models.AssociationRule) models.RuleGraph {
	type pair struct{ source, target string }
	weights := make(map[pair]float64)
	nodeSet := make(map[string]struct{})

	for _, rule := range rules {
		for _, a := range rule.Antecedents {
			for _, c := range rule.Consequents {
				weights[pair{a, c}] = rule.Lift
				nodeSet[a] = struct{}{}
				nodeSet[c] = struct{}{}
			}
		}
	}

	nodes := make([]string, 0, len(nodeSet))
	for node := range nodeSet {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	edges := make([]models.GraphEdge, 0, len(weights))
	for p, weight := range weights {
		edges = append(edges, models.GraphEdge{Source: p.source, Target: p.target, Weight: weight})
	}
	slices.SortFunc(edges, func(a, b models.GraphEdge) int {
		if c := strings.Compare(a.Source, b.Source); c != 0 {
			return c
		}
		return strings.Compare(a.Target, b.Target)
	})

	return models.RuleGraph{Nodes: nodes, Edges: edges}
}
