// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolver combines the results of all detectors into one final
// category. Resolution is a pure function of the result list and the fixed
// configuration, so identical inputs always produce identical verdicts.
package resolver

import (
	"fmt"

	"github.com/AleutianAI/AleutianGuard/services/guardian/detectors"
	"github.com/AleutianAI/AleutianGuard/services/guardian/taxonomy"
)

// Resolution methods, recorded in the internal verdict and the audit line.
const (
	MethodBothSafe                   = "both_safe"
	MethodPrimarySafeSecondaryUnsafe = "primary_safe_secondary_unsafe"
	MethodPrimaryUnsafeSecondarySafe = "primary_unsafe_secondary_safe"
	MethodBothUnsafeUsePrimary       = "both_unsafe_use_primary"
	MethodConsensus                  = "consensus"
	MethodHighestSeverity            = "highest_severity"
	MethodMajority                   = "majority"
	MethodFirstUnsafe                = "first_unsafe"

	// Methods composed by the pipeline, not by Resolve. Declared here so the
	// whole method vocabulary lives in one place.
	MethodKeywordFilter = "keyword_filter"
	MethodFallback      = "fallback"
)

// Configurable strategies for rule 3. Used when the two-detector pair cannot
// be identified or more than two detectors ran.
const (
	StrategyHighestSeverity = "highest_severity"
	StrategyMajority        = "majority"
	StrategyFirstUnsafe     = "first_unsafe"
)

// Fixed reasons for the specialisation rows that do not defer to the
// primary's own reason. The sanitizer's phrase table knows both strings.
const (
	bothSafeReason  = "Both guards agree: content is safe"
	injectionReason = "Prompt injection detected: content cleared by primary guard but flagged by secondary"
)

// Resolution is the resolver's complete output. Losing lists the categories
// that were present but did not become final, in first-seen order.
type Resolution struct {
	Final            taxonomy.Category
	Method           string
	Losing           []taxonomy.Category
	ChosenDetectorID string
	Reason           string
}

// IsSafe reports whether the final category is safe.
func (r Resolution) IsSafe() bool {
	return !taxonomy.IsUnsafe(r.Final)
}

// Resolver applies the resolution policy. Roles bind detector identifiers to
// their configured resolver position; the two-detector specialisation table
// only applies when the pair carries the primary and secondary roles.
type Resolver struct {
	strategy string
	roles    map[string]detectors.Role
}

// New creates a resolver. An empty strategy selects highest_severity; an
// unknown strategy is a configuration error.
func New(strategy string, roles map[string]detectors.Role) (*Resolver, error) {
	if strategy == "" {
		strategy = StrategyHighestSeverity
	}
	switch strategy {
	case StrategyHighestSeverity, StrategyMajority, StrategyFirstUnsafe:
	default:
		return nil, fmt.Errorf("unknown resolution strategy %q", strategy)
	}
	r := &Resolver{strategy: strategy, roles: make(map[string]detectors.Role, len(roles))}
	for id, role := range roles {
		r.roles[id] = role
	}
	return r, nil
}

// Strategy returns the configured rule-3 strategy.
func (r *Resolver) Strategy() string {
	return r.strategy
}

// Resolve combines detector results, in precedence order:
//
//  1. Two-detector specialisation when exactly two results carry the primary
//     and secondary roles. Divergence where the primary is clean but the
//     secondary flags is treated as injection-style evasion.
//  2. Consensus when every result agrees on one category.
//  3. The configured strategy.
//
// An empty result list resolves to safe; the pipeline reports that case with
// its own reason.
func (r *Resolver) Resolve(results []detectors.Result) Resolution {
	if len(results) == 0 {
		return Resolution{
			Final:  taxonomy.Safe,
			Method: MethodConsensus,
			Reason: taxonomy.Describe(taxonomy.Safe),
		}
	}

	if len(results) == 2 {
		if res, ok := r.resolvePair(results); ok {
			return res
		}
	}

	if res, ok := consensus(results); ok {
		return res
	}

	switch r.strategy {
	case StrategyMajority:
		return majority(results)
	case StrategyFirstUnsafe:
		return firstUnsafe(results)
	default:
		return highestSeverity(results)
	}
}

// resolvePair applies the production specialisation table. It reports false
// when the two results cannot be identified as the primary/secondary pair.
func (r *Resolver) resolvePair(results []detectors.Result) (Resolution, bool) {
	var primary, secondary *detectors.Result
	for i := range results {
		switch r.roles[results[i].DetectorID] {
		case detectors.RolePrimary:
			primary = &results[i]
		case detectors.RoleSecondary:
			secondary = &results[i]
		}
	}
	if primary == nil || secondary == nil {
		return Resolution{}, false
	}

	pUnsafe := taxonomy.IsUnsafe(primary.Category)
	sUnsafe := taxonomy.IsUnsafe(secondary.Category)

	switch {
	case !pUnsafe && !sUnsafe:
		return Resolution{
			Final:  taxonomy.Safe,
			Method: MethodBothSafe,
			Reason: bothSafeReason,
		}, true

	case !pUnsafe && sUnsafe:
		return Resolution{
			Final:            taxonomy.PromptInjection,
			Method:           MethodPrimarySafeSecondaryUnsafe,
			Losing:           losingLabels(results, taxonomy.PromptInjection),
			ChosenDetectorID: secondary.DetectorID,
			Reason:           injectionReason,
		}, true

	case pUnsafe && !sUnsafe:
		return Resolution{
			Final:            taxonomy.Normalize(primary.Category),
			Method:           MethodPrimaryUnsafeSecondarySafe,
			Losing:           losingLabels(results, primary.Category),
			ChosenDetectorID: primary.DetectorID,
			Reason:           primary.Reason,
		}, true

	default:
		return Resolution{
			Final:            taxonomy.Normalize(primary.Category),
			Method:           MethodBothUnsafeUsePrimary,
			Losing:           losingLabels(results, primary.Category),
			ChosenDetectorID: primary.DetectorID,
			Reason:           primary.Reason,
		}, true
	}
}

// consensus reports the unanimous category, when there is one.
func consensus(results []detectors.Result) (Resolution, bool) {
	first := taxonomy.Normalize(results[0].Category)
	for _, res := range results[1:] {
		if taxonomy.Normalize(res.Category) != first {
			return Resolution{}, false
		}
	}
	return Resolution{
		Final:  first,
		Method: MethodConsensus,
		Reason: fmt.Sprintf("All guards agree: %s", taxonomy.Describe(first)),
	}, true
}

// highestSeverity picks the category with maximum severity, first-seen order
// breaking ties.
func highestSeverity(results []detectors.Result) Resolution {
	best := 0
	for i := 1; i < len(results); i++ {
		if taxonomy.Severity(results[i].Category) > taxonomy.Severity(results[best].Category) {
			best = i
		}
	}
	final := taxonomy.Normalize(results[best].Category)
	return Resolution{
		Final:            final,
		Method:           MethodHighestSeverity,
		Losing:           losingLabels(results, final),
		ChosenDetectorID: results[best].DetectorID,
		Reason:           fmt.Sprintf("Multiple detections - selected highest severity: %s", taxonomy.Describe(final)),
	}
}

// majority takes a majority vote over normalized categories and falls back
// to highestSeverity when no category clears half.
func majority(results []detectors.Result) Resolution {
	counts := make(map[taxonomy.Category]int, len(results))
	for _, res := range results {
		counts[taxonomy.Normalize(res.Category)]++
	}
	for i, res := range results {
		cat := taxonomy.Normalize(res.Category)
		if counts[cat]*2 > len(results) {
			return Resolution{
				Final:            cat,
				Method:           MethodMajority,
				Losing:           losingLabels(results, cat),
				ChosenDetectorID: results[i].DetectorID,
				Reason:           fmt.Sprintf("Majority detection: %s", taxonomy.Describe(cat)),
			}
		}
	}
	return highestSeverity(results)
}

// firstUnsafe returns the first non-safe result; all-safe lists resolve to
// safe.
func firstUnsafe(results []detectors.Result) Resolution {
	for _, res := range results {
		if taxonomy.IsUnsafe(res.Category) {
			final := taxonomy.Normalize(res.Category)
			return Resolution{
				Final:            final,
				Method:           MethodFirstUnsafe,
				Losing:           losingLabels(results, final),
				ChosenDetectorID: res.DetectorID,
				Reason:           fmt.Sprintf("First unsafe detection: %s", taxonomy.Describe(final)),
			}
		}
	}
	return Resolution{
		Final:  taxonomy.Safe,
		Method: MethodFirstUnsafe,
		Reason: taxonomy.Describe(taxonomy.Safe),
	}
}

// losingLabels collects the distinct categories that did not become final,
// in first-seen order.
func losingLabels(results []detectors.Result, final taxonomy.Category) []taxonomy.Category {
	final = taxonomy.Normalize(final)
	var losing []taxonomy.Category
	seen := make(map[taxonomy.Category]bool)
	for _, res := range results {
		cat := taxonomy.Normalize(res.Category)
		if cat == final || seen[cat] {
			continue
		}
		seen[cat] = true
		losing = append(losing, cat)
	}
	return losing
}
