package analysis

import "regexp"

// riskPatterns is a fixed denylist of constructs that are unsafe to run
// even inside the sandbox. Matches are advisory: the engine decides whether
// to escalate them into a hard failure.
var riskPatterns = []struct {
	pattern     *regexp.Regexp
	description string
}{
	{regexp.MustCompile(`\beval\s*\(`), "dynamic code evaluation via eval()"},
	{regexp.MustCompile(`\bnew\s+Function\s*\(`), "dynamic code evaluation via the Function constructor"},
	{regexp.MustCompile(`\.(innerHTML|outerHTML)\s*=`), "raw HTML injection through innerHTML/outerHTML"},
	{regexp.MustCompile(`\bdocument\.write\s*\(`), "raw HTML injection through document.write"},
	{regexp.MustCompile(`\b(window|globalThis)\s*\[`), "dynamic indexing of the global object"},
	{regexp.MustCompile(`\b(localStorage|sessionStorage)\.clear\s*\(`), "bulk storage clear"},
}

// DetectRisks pattern-matches the denylist against source text.
// An empty result means no known risky construct was found.
func DetectRisks(code string) []string {
	var risks []string
	for _, rp := range riskPatterns {
		if rp.pattern.MatchString(code) {
			risks = append(risks, rp.description)
		}
	}
	return risks
}
