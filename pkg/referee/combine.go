package referee

// Combine applies the verdict combination table (spec 4.6).
func Combine(contract Result, judge Result) Verdict {
	switch {
	case contract == ResultPass && judge == ResultPass:
		return VerdictPass
	case contract == ResultFail && judge == ResultFail:
		return VerdictFail
	case contract == ResultPass && judge == ResultFail:
		return VerdictUncertain
	case contract == ResultFail && judge == ResultPass:
		return VerdictUncertain
	case contract == ResultAbsent && judge == ResultPass:
		return VerdictPass
	case contract == ResultAbsent && judge == ResultFail:
		return VerdictFail
	default:
		return VerdictUncertain
	}
}
