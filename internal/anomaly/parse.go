package anomaly

import (
	"encoding/json"
	"strings"

	"github.com/commitwatch/commitwatch-go/internal/models"
)

// keywordSignals drive the fallback classifier when the model output is not
// parseable JSON. Several distinct signals must appear at once before the
// fallback marks a commit anomalous.
var keywordSignals = []string{"anomal", "suspicious", "unusual", "malicious", "unexpected"}

const minKeywordSignals = 2

// llmResponse is the loose shape expected from the model. Factors are
// decoded as raw values and coerced afterwards so one malformed element
// does not discard the rest.
type llmResponse struct {
	IsAnomalous       bool          `json:"isAnomalous"`
	Confidence        float64       `json:"confidence"`
	Reasoning         string        `json:"reasoning"`
	RiskLevel         string        `json:"riskLevel"`
	SuspiciousFactors []interface{} `json:"suspiciousFactors"`
}

// parseResponse extracts and validates the model's JSON verdict, falling
// back to keyword heuristics when no parseable object is present.
func (d *Detector) parseResponse(response string) models.AnomalyResult {
	raw, ok := extractJSON(response)
	if !ok {
		d.logger.Debug("no JSON object in llm response, using keyword fallback")
		return keywordFallback(response)
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		d.logger.Debug("llm JSON did not parse, using keyword fallback", "error", err)
		return keywordFallback(response)
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	riskLevel := models.AnomalyRiskLevel(strings.ToLower(strings.TrimSpace(parsed.RiskLevel)))
	if !riskLevel.Valid() {
		riskLevel = models.AnomalyRiskLow
	}

	factors := make([]string, 0, len(parsed.SuspiciousFactors))
	for _, f := range parsed.SuspiciousFactors {
		if s, ok := f.(string); ok && s != "" {
			factors = append(factors, s)
		}
	}

	return models.AnomalyResult{
		IsAnomalous:       parsed.IsAnomalous,
		Confidence:        confidence,
		RiskLevel:         riskLevel,
		Reasoning:         parsed.Reasoning,
		SuspiciousFactors: factors,
	}
}

// extractJSON returns the first balanced JSON object in s, tracking string
// literals and escapes so braces inside strings do not break the match.
func extractJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// keywordFallback classifies from raw response text. It is deliberately
// conservative: a single signal word is not enough.
func keywordFallback(response string) models.AnomalyResult {
	lower := strings.ToLower(response)

	signals := 0
	var matched []string
	for _, keyword := range keywordSignals {
		if strings.Contains(lower, keyword) {
			signals++
			matched = append(matched, keyword)
		}
	}

	if signals >= minKeywordSignals {
		return models.AnomalyResult{
			IsAnomalous:       true,
			Confidence:        failedConfidence,
			RiskLevel:         models.AnomalyRiskModerate,
			Reasoning:         "keyword heuristic flagged model response",
			SuspiciousFactors: matched,
		}
	}

	return models.AnomalyResult{
		IsAnomalous:       false,
		Confidence:        failedConfidence,
		RiskLevel:         models.AnomalyRiskLow,
		Reasoning:         "model response unparseable, no anomaly signals",
		SuspiciousFactors: []string{},
	}
}
