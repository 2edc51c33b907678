package decision

import "lendgate/internal/domain"

// EligibilityFromEvaluation condenses a rule engine run into the eligibility
// summary the aggregator consumes.
func EligibilityFromEvaluation(eval *domain.RuleEvaluation) domain.EligibilityResult {
	result := domain.EligibilityResult{
		EvaluationID: eval.ID,
		Eligible:     eval.Overall == domain.ResultApproved || eval.Overall == domain.ResultManualReview,
	}
	for _, row := range eval.Results {
		switch row.Result {
		case domain.RuleFail:
			result.Failures = append(result.Failures, row.Message)
			if row.Severity == domain.SeverityBlocking {
				result.BlockingFailures++
			}
		case domain.RuleWarn:
			result.Warnings = append(result.Warnings, row.Message)
		}
	}
	return result
}
