package referee

// EvaluateContract runs every declared predicate (and, if RequiredOrder is
// set, an ordering check) against state. A nil Contract (no contract
// declared) returns ResultAbsent, not fail.
func EvaluateContract(c *Contract, state EvaluationState) ContractOutcome {
	if c == nil {
		return ContractOutcome{Result: ResultAbsent}
	}

	var evidence []ContractEvidence
	allPassed := true

	for _, p := range c.Predicates {
		passed, detail := p.Check(state.FinalState)
		evidence = append(evidence, ContractEvidence{Name: p.Name, Passed: passed, Detail: detail})
		if !passed {
			allPassed = false
		}
	}

	if len(c.RequiredOrder) > 0 {
		orderOK, detail := checkOrder(c.RequiredOrder, state.ToolCallLog)
		evidence = append(evidence, ContractEvidence{Name: "required_order", Passed: orderOK, Detail: detail})
		if !orderOK {
			allPassed = false
		}
	}

	result := ResultFail
	if allPassed {
		result = ResultPass
	}
	return ContractOutcome{Result: result, Evidence: evidence}
}

// checkOrder reports whether want appears as a (not necessarily
// contiguous) subsequence of got, preserving relative order.
func checkOrder(want, got []string) (bool, string) {
	i := 0
	for _, name := range got {
		if i < len(want) && name == want[i] {
			i++
		}
	}
	if i == len(want) {
		return true, "required order satisfied"
	}
	return false, "required order violated: expected subsequence " + joinNames(want)
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += " -> "
		}
		out += n
	}
	return out
}
