package core

import (
	"fmt"
	"strings"

	"github.com/inboxkit/mail-triage/internal/patterns"
	"go.uber.org/zap"
)

// Pre-filter provenance tags, in rule priority order.
const (
	ProvenanceLabelExclusion  = "label_exclusion"
	ProvenanceAutomatedSender = "automated_sender"
	ProvenanceDomainTable     = "domain_table"
	ProvenancePrefixTable     = "prefix_table"
	ProvenanceLearnedPattern  = "learned_pattern"
)

// Fixed confidences for the static pre-filter rules.
const (
	automatedSenderConfidence = 0.8
	domainTableConfidence     = 0.9
	prefixTableConfidence     = 0.85
)

// DefaultLearnedConfidenceThreshold is the minimum stored confidence a
// learned pattern needs before it may skip analysis.
const DefaultLearnedConfidenceThreshold = 0.95

// PreFilter decides whether a message may skip the expensive analysis
// pass. Rules are evaluated in strict priority order, first match wins;
// the worst case outcome is "send to full analysis", which is always
// safe.
type PreFilter struct {
	learnedThreshold float64
	logger           *zap.Logger
}

// NewPreFilter creates a pre-filter with the given learned-pattern
// confidence threshold.
func NewPreFilter(learnedThreshold float64, logger *zap.Logger) *PreFilter {
	if learnedThreshold <= 0 {
		learnedThreshold = DefaultLearnedConfidenceThreshold
	}
	return &PreFilter{
		learnedThreshold: learnedThreshold,
		logger:           logger,
	}
}

// Classify runs the five pre-filter rules against one message. It is a
// pure function over its inputs and never returns an error.
func (f *PreFilter) Classify(msg *Message, learned []LearnedPattern) PreFilterResult {
	result := f.classify(msg, learned)
	if f.logger != nil {
		f.logger.Debug("Pre-filter decision",
			zap.String("message_id", msg.ID),
			zap.String("decision", string(result.Decision)),
			zap.String("provenance", result.Provenance),
			zap.String("category", string(result.Category)),
			zap.Float64("confidence", result.Confidence),
			zap.Strings("signals", result.Signals))
	}
	return result
}

func (f *PreFilter) classify(msg *Message, learned []LearnedPattern) PreFilterResult {
	// Rule 1: platform-label exclusion
	for _, label := range patterns.ExcludedLabels {
		if msg.HasLabel(label) {
			return PreFilterResult{
				Decision:   DecisionSkipAnalysis,
				Confidence: 1.0,
				Provenance: ProvenanceLabelExclusion,
				Signals:    []string{fmt.Sprintf("label %q is excluded", label)},
			}
		}
	}

	sender := strings.ToLower(strings.TrimSpace(msg.Sender))

	// Rule 2: known fully-automated sender address patterns
	for _, re := range patterns.AutomatedSenderPatterns {
		if re.MatchString(sender) {
			return PreFilterResult{
				Decision:   DecisionSkipAnalysis,
				Category:   CategoryNotification,
				Confidence: automatedSenderConfidence,
				Provenance: ProvenanceAutomatedSender,
				Signals:    []string{fmt.Sprintf("address matches automated pattern %s", re.String())},
			}
		}
	}

	// Rule 3: domain membership, exact domain then two-level parent
	if domain := patterns.SenderDomain(sender); domain != "" {
		if cat, ok := lookupDomainCategory(domain); ok {
			return PreFilterResult{
				Decision:   DecisionSkipAnalysis,
				Category:   cat,
				Confidence: domainTableConfidence,
				Provenance: ProvenanceDomainTable,
				Signals:    []string{fmt.Sprintf("domain %s in category table", domain)},
			}
		}
	}

	// Rule 4: local-part prefix membership, exact or prefix-of
	if local := patterns.SenderLocalPart(sender); local != "" {
		if cat, prefix, ok := lookupPrefixCategory(local); ok {
			return PreFilterResult{
				Decision:   DecisionSkipAnalysis,
				Category:   cat,
				Confidence: prefixTableConfidence,
				Provenance: ProvenancePrefixTable,
				Signals:    []string{fmt.Sprintf("local part %s matches prefix %s", local, prefix)},
			}
		}
	}

	// Rule 5: per-user learned sender pattern at or above threshold
	if pat, ok := matchLearnedPattern(sender, learned, f.learnedThreshold); ok {
		return PreFilterResult{
			Decision:   DecisionSkipAnalysis,
			Category:   pat.Category,
			Confidence: pat.Confidence,
			Provenance: ProvenanceLearnedPattern,
			Signals:    []string{fmt.Sprintf("learned pattern %s (confidence %.2f)", pat.Pattern, pat.Confidence)},
		}
	}

	// Rule 6: no match, proceed to full analysis
	return PreFilterResult{Decision: DecisionAnalyze}
}

// ClassifyBatch runs the pre-filter over a batch and aggregates counts
// by decision, skip reason, and assigned category.
func (f *PreFilter) ClassifyBatch(msgs []Message, learned []LearnedPattern) ([]PreFilterResult, PreFilterStats) {
	results := make([]PreFilterResult, 0, len(msgs))
	stats := PreFilterStats{
		Total:        len(msgs),
		ByProvenance: make(map[string]int),
		ByCategory:   make(map[string]int),
	}

	for i := range msgs {
		result := f.Classify(&msgs[i], learned)
		results = append(results, result)

		if !result.Skip() {
			stats.ToAnalyze++
			continue
		}
		stats.Skipped++
		stats.ByProvenance[result.Provenance]++
		if result.Category != "" {
			stats.AutoCategorized++
			stats.ByCategory[string(result.Category)]++
		}
	}

	if f.logger != nil {
		f.logger.Info("Pre-filter batch complete",
			zap.Int("total", stats.Total),
			zap.Int("to_analyze", stats.ToAnalyze),
			zap.Int("auto_categorized", stats.AutoCategorized),
			zap.Int("skipped", stats.Skipped))
	}
	return results, stats
}

// lookupDomainCategory checks the exact domain, then its two-level
// parent.
func lookupDomainCategory(domain string) (Category, bool) {
	if cat, ok := patterns.DomainCategory[domain]; ok {
		return Category(cat), true
	}
	if parent := patterns.ParentDomain(domain); parent != domain {
		if cat, ok := patterns.DomainCategory[parent]; ok {
			return Category(cat), true
		}
	}
	return "", false
}

// lookupPrefixCategory matches the local part exactly or as a prefix of
// the table entry's extension (billing-alerts matches "billing").
func lookupPrefixCategory(local string) (Category, string, bool) {
	if cat, ok := patterns.PrefixCategory[local]; ok {
		return Category(cat), local, true
	}
	for prefix, cat := range patterns.PrefixCategory {
		if strings.HasPrefix(local, prefix) {
			return Category(cat), prefix, true
		}
	}
	return "", "", false
}

// matchLearnedPattern finds the first learned pattern matching the
// sender's exact address or domain with confidence at or above the
// threshold.
func matchLearnedPattern(sender string, learned []LearnedPattern, threshold float64) (LearnedPattern, bool) {
	domain := patterns.SenderDomain(sender)
	for _, pat := range learned {
		if pat.Confidence < threshold {
			continue
		}
		p := strings.ToLower(pat.Pattern)
		if p == sender || (domain != "" && p == domain) {
			return pat, true
		}
	}
	return LearnedPattern{}, false
}
