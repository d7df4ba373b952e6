package query

import (
	"fmt"
	"regexp"
	"strings"
)

const contextPreviewLen = 500

// Extraction patterns for the degraded path. These mirror the field layouts
// of the supported claim documents; they are keyword lookups, not parsers.
var (
	policyNumberStrictRe = regexp.MustCompile(`(?i)Policy\s*(?:No|Number|#)?[:\s]+([A-Z]{3}-\d{4}-[A-Z]{2}-\d{6})`)
	policyNumberLooseRe  = regexp.MustCompile(`(?i)Policy\s*(?:No|Number|#)?[:\s]+([A-Z0-9\-/]{10,})`)
	claimAmountRe        = regexp.MustCompile(`(?i)(?:Claim\s*Amount|Total\s*Claim|TOTAL\s*PAYABLE)[:\s]*₹?\s*([\d,]+(?:\.\d{2})?)`)
	hospitalRe           = regexp.MustCompile(`(?i)Hospital\s*(?:Name)?[:\s]*([A-Z][a-zA-Z\s&]+(?:Hospital|Medical|Clinic))`)
	diagnosisRe          = regexp.MustCompile(`(?i)Diagnosis[:\s]*([A-Z][a-zA-Z\s]+)`)
	sumAssuredRe         = regexp.MustCompile(`(?i)Sum\s*Assured[:\s]*₹?\s*([\d,]+)`)
	patientNameRe        = regexp.MustCompile(`(?i)Patient\s*Name[:\s]*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)`)

	summaryPolicyRe   = regexp.MustCompile(`(?i)Policy\s*(?:No|Number)?[:\s]*([A-Z0-9\-/]+)`)
	summaryAmountRe   = regexp.MustCompile(`(?i)(?:Claim\s*Amount|TOTAL)[:\s]*₹?\s*([\d,]+)`)
	summaryHospitalRe = regexp.MustCompile(`(?i)Hospital[:\s]*([A-Z][a-zA-Z\s&]+Hospital)`)
)

// ExtractAnswer builds a best-effort answer from the retrieved context when
// the generative backend is unavailable. It keys simple regex lookups on
// phrases in the question and falls back to a truncated context preview. It
// never fails; this is the terminal safety net of the answer path.
func ExtractAnswer(question, contextBlock string) string {
	q := strings.ToLower(question)

	switch {
	case strings.Contains(q, "policy number"):
		match := policyNumberStrictRe.FindStringSubmatch(contextBlock)
		if match == nil {
			match = policyNumberLooseRe.FindStringSubmatch(contextBlock)
		}
		if match != nil {
			return fmt.Sprintf("Based on the documents, the policy number is %s.", match[1])
		}

	case strings.Contains(q, "claim amount") || (strings.Contains(q, "claim") && strings.Contains(q, "amount")):
		if match := claimAmountRe.FindStringSubmatch(contextBlock); match != nil {
			return fmt.Sprintf("Based on the documents, the claim amount is ₹%s.", match[1])
		}

	case strings.Contains(q, "hospital"):
		if match := hospitalRe.FindStringSubmatch(contextBlock); match != nil {
			return fmt.Sprintf("Based on the documents, the hospital mentioned is %s.", strings.TrimSpace(match[1]))
		}

	case strings.Contains(q, "diagnosis"):
		if match := diagnosisRe.FindStringSubmatch(contextBlock); match != nil {
			return fmt.Sprintf("Based on the documents, the diagnosis is %s.", strings.TrimSpace(match[1]))
		}

	case strings.Contains(q, "sum assured") || strings.Contains(q, "coverage"):
		if match := sumAssuredRe.FindStringSubmatch(contextBlock); match != nil {
			return fmt.Sprintf("Based on the documents, the sum assured is ₹%s.", match[1])
		}

	case strings.Contains(q, "patient") || strings.Contains(q, "name"):
		if match := patientNameRe.FindStringSubmatch(contextBlock); match != nil {
			return fmt.Sprintf("Based on the documents, the patient name is %s.", strings.TrimSpace(match[1]))
		}

	case strings.Contains(q, "summarize") || strings.Contains(q, "summary"):
		if summary := extractSummary(contextBlock); summary != "" {
			return summary
		}
	}

	return fmt.Sprintf(
		"Based on the retrieved documents: %s...\n\n(Note: the language model is currently unavailable. This is a basic extraction from the documents.)",
		truncate(contextBlock, contextPreviewLen),
	)
}

func extractSummary(contextBlock string) string {
	parts := make([]string, 0, 3)
	if match := summaryPolicyRe.FindStringSubmatch(contextBlock); match != nil {
		parts = append(parts, "Policy Number: "+match[1])
	}
	if match := summaryAmountRe.FindStringSubmatch(contextBlock); match != nil {
		parts = append(parts, "Claim Amount: ₹"+match[1])
	}
	if match := summaryHospitalRe.FindStringSubmatch(contextBlock); match != nil {
		parts = append(parts, "Hospital: "+strings.TrimSpace(match[1]))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Based on the documents, here's a summary:\n" + strings.Join(parts, "\n")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
