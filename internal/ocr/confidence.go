package ocr

import (
	"regexp"
	"strings"
)

// signal is one hint that the text really is an invoice; weights add up.
type signal struct {
	re     *regexp.Regexp
	weight float32
}

var invoiceSignals = []signal{
	{regexp.MustCompile(`\b(19|20)\d{2}[-/.]\d{1,2}[-/.]\d{1,2}\b|\b\d{1,2}[-/.]\d{1,2}[-/.](19|20)\d{2}\b`), 0.15},
	{regexp.MustCompile(`\b(usd|eur|gbp|chf|cad|aud|inr|jpy|ngn)\b|[$£€₦]`), 0.15},
	{regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+\.\d{2}\b`), 0.15},
	{regexp.MustCompile(`\b(invoice|rechnung|facture|factura|bill to)\b|\binv[-#\s]?\d`), 0.15},
}

const (
	baseConfidence = 0.2
	longTextBonus  = 0.1
	longTextChars  = 120
)

// heuristicConfidence is a 0..1 guess from invoice-looking patterns in the text.
// It is a fallback for engines that report no confidence of their own.
func heuristicConfidence(txt string) float32 {
	if strings.TrimSpace(txt) == "" {
		return 0
	}
	lower := strings.ToLower(txt)
	score := float32(baseConfidence)
	for _, s := range invoiceSignals {
		if s.re.MatchString(lower) {
			score += s.weight
		}
	}
	if len(txt) > longTextChars {
		score += longTextBonus
	}
	return min(score, 1)
}

// blendConfidence prefers the engine's own number when it has one.
func blendConfidence(engine, heuristic float32) float32 {
	if engine <= 0 {
		return heuristic
	}
	return min(0.7*engine+0.3*heuristic, 1)
}
