package core

import (
	"fmt"
	"strings"

	"github.com/inboxkit/mail-triage/internal/patterns"
	"go.uber.org/zap"
)

// Sender type provenance tags.
const (
	ProvenanceHeader  = "header"
	ProvenanceAddress = "address"
	ProvenanceContent = "content"
)

// Header tier confidences.
const (
	listUnsubscribeConfidence = 0.95
	listIDConfidence          = 0.90
	bulkMailerConfidence      = 0.85
)

// Address tier confidences.
const (
	broadcastDomainConfidence        = 0.95
	broadcastPrefixTxConfidence      = 0.90
	broadcastPrefixDefaultConfidence = 0.80
)

// Headers searched for bulk-mail-service signatures.
var deliveryHeaders = []string{"Received", "X-Mailer", "User-Agent", "Message-ID", "X-Sender"}

// SenderTypeDetector classifies a message's originator into a small set
// of relationship categories. Three tiers run in strict priority order
// (headers, address patterns, content heuristics) and the detector
// returns at the first confident tier. An unknown outcome is expected
// and non-fatal; a downstream fallback classifier may override it.
type SenderTypeDetector struct {
	logger *zap.Logger
}

// NewSenderTypeDetector creates a sender type detector.
func NewSenderTypeDetector(logger *zap.Logger) *SenderTypeDetector {
	return &SenderTypeDetector{logger: logger}
}

// Detect runs all three tiers against the message.
func (d *SenderTypeDetector) Detect(msg *Message) SenderTypeDetectionResult {
	var signals []string

	if result, ok := d.detectFromHeaders(msg, &signals); ok {
		return d.finish(msg, result)
	}
	if result, ok := detectFromAddress(msg.Sender, &signals); ok {
		return d.finish(msg, result)
	}
	if result, ok := d.detectFromContent(msg, &signals); ok {
		return d.finish(msg, result)
	}

	return d.finish(msg, SenderTypeDetectionResult{
		SenderType: SenderUnknown,
		Confidence: 0,
		Reasoning:  "no header, address, or content signal fired",
		Signals:    signals,
	})
}

// DetectFromAddress is the fast-path variant: address-pattern tier only,
// for cheap bulk pre-labeling.
func (d *SenderTypeDetector) DetectFromAddress(address string) SenderTypeDetectionResult {
	var signals []string
	if result, ok := detectFromAddress(address, &signals); ok {
		return result
	}
	return SenderTypeDetectionResult{
		SenderType: SenderUnknown,
		Confidence: 0,
		Reasoning:  "address matches no broadcast table entry",
		Signals:    signals,
	}
}

func (d *SenderTypeDetector) finish(msg *Message, result SenderTypeDetectionResult) SenderTypeDetectionResult {
	if d.logger != nil {
		d.logger.Debug("Sender type detected",
			zap.String("message_id", msg.ID),
			zap.String("sender", msg.Sender),
			zap.String("sender_type", string(result.SenderType)),
			zap.String("subtype", string(result.Subtype)),
			zap.Float64("confidence", result.Confidence),
			zap.String("provenance", result.Provenance),
			zap.Strings("signals", result.Signals))
	}
	return result
}

// detectFromHeaders is tier 1: list-management headers and bulk-mailer
// signatures are the strongest broadcast tells.
func (d *SenderTypeDetector) detectFromHeaders(msg *Message, signals *[]string) (SenderTypeDetectionResult, bool) {
	if v := msg.Header("List-Unsubscribe"); v != "" {
		*signals = append(*signals, "List-Unsubscribe header present")
		return SenderTypeDetectionResult{
			SenderType: SenderBroadcast,
			Subtype:    SubtypeNewsletter,
			Confidence: listUnsubscribeConfidence,
			Provenance: ProvenanceHeader,
			Reasoning:  "List-Unsubscribe header indicates list mail",
			Signals:    *signals,
		}, true
	}

	if v := msg.Header("List-Id"); v != "" {
		*signals = append(*signals, fmt.Sprintf("List-Id header present (%s)", strings.TrimSpace(v)))
		return SenderTypeDetectionResult{
			SenderType: SenderBroadcast,
			Subtype:    SubtypeNewsletter,
			Confidence: listIDConfidence,
			Provenance: ProvenanceHeader,
			Reasoning:  "List-Id header identifies a mailing list",
			Signals:    *signals,
		}, true
	}

	for _, name := range deliveryHeaders {
		value := strings.ToLower(msg.Header(name))
		if value == "" {
			continue
		}
		for _, sig := range patterns.BulkMailerSignatures {
			if strings.Contains(value, sig) {
				*signals = append(*signals, fmt.Sprintf("bulk mailer %s in %s header", sig, name))
				return SenderTypeDetectionResult{
					SenderType: SenderBroadcast,
					Subtype:    SubtypeMarketing,
					Confidence: bulkMailerConfidence,
					Provenance: ProvenanceHeader,
					Reasoning:  fmt.Sprintf("delivery headers carry the %s service signature", sig),
					Signals:    *signals,
				}, true
			}
		}
	}

	return SenderTypeDetectionResult{}, false
}

// detectFromAddress is tier 2: broadcast domain and local-part prefix
// tables.
func detectFromAddress(address string, signals *[]string) (SenderTypeDetectionResult, bool) {
	addr := strings.ToLower(strings.TrimSpace(address))

	if domain := patterns.SenderDomain(addr); domain != "" {
		if subtype, ok := lookupBroadcastDomain(domain); ok {
			*signals = append(*signals, fmt.Sprintf("domain %s in broadcast table", domain))
			return SenderTypeDetectionResult{
				SenderType: SenderBroadcast,
				Subtype:    subtype,
				Confidence: broadcastDomainConfidence,
				Provenance: ProvenanceAddress,
				Reasoning:  fmt.Sprintf("sender domain %s is a known broadcast platform", domain),
				Signals:    *signals,
			}, true
		}
	}

	if local := patterns.SenderLocalPart(addr); local != "" {
		if subtype, prefix, ok := lookupBroadcastPrefix(local); ok {
			*signals = append(*signals, fmt.Sprintf("local part %s matches broadcast prefix %s", local, prefix))
			confidence := broadcastPrefixDefaultConfidence
			if subtype == SubtypeTransactional {
				confidence = broadcastPrefixTxConfidence
			}
			return SenderTypeDetectionResult{
				SenderType: SenderBroadcast,
				Subtype:    subtype,
				Confidence: confidence,
				Provenance: ProvenanceAddress,
				Reasoning:  fmt.Sprintf("sender local part matches the %s broadcast prefix", prefix),
				Signals:    *signals,
			}, true
		}
	}

	return SenderTypeDetectionResult{}, false
}

// detectFromContent is tier 3: heuristic regex counting over
// subject+body across the three pattern families.
func (d *SenderTypeDetector) detectFromContent(msg *Message, signals *[]string) (SenderTypeDetectionResult, bool) {
	text := msg.Subject + "\n" + msg.Body

	broadcastHits := patterns.CountMatches(patterns.BroadcastContent, text)
	coldHits := patterns.CountMatches(patterns.ColdOutreachContent, text)
	opportunityHits := patterns.CountMatches(patterns.OpportunityContent, text)

	if broadcastHits >= 2 {
		*signals = append(*signals, fmt.Sprintf("%d broadcast content indicators", broadcastHits))
		return SenderTypeDetectionResult{
			SenderType: SenderBroadcast,
			Subtype:    SubtypeNewsletter,
			Confidence: capConfidence(0.60+0.1*float64(broadcastHits), 0.85),
			Provenance: ProvenanceContent,
			Reasoning:  fmt.Sprintf("body carries %d broadcast indicators", broadcastHits),
			Signals:    *signals,
		}, true
	}

	if coldHits >= 2 {
		*signals = append(*signals, fmt.Sprintf("%d cold outreach indicators", coldHits))
		return SenderTypeDetectionResult{
			SenderType: SenderColdOutreach,
			Confidence: capConfidence(0.50+0.1*float64(coldHits), 0.75),
			Provenance: ProvenanceContent,
			Reasoning:  fmt.Sprintf("body carries %d cold outreach indicators", coldHits),
			Signals:    *signals,
		}, true
	}

	// Opportunity patterns are rarer; a single hit is a strong tell.
	if opportunityHits >= 1 {
		*signals = append(*signals, fmt.Sprintf("%d opportunity-list indicators", opportunityHits))
		return SenderTypeDetectionResult{
			SenderType: SenderOpportunity,
			Confidence: 0.70,
			Provenance: ProvenanceContent,
			Reasoning:  "body carries opportunity-list language",
			Signals:    *signals,
		}, true
	}

	return SenderTypeDetectionResult{}, false
}

func lookupBroadcastDomain(domain string) (BroadcastSubtype, bool) {
	if subtype, ok := patterns.BroadcastDomain[domain]; ok {
		return BroadcastSubtype(subtype), true
	}
	if parent := patterns.ParentDomain(domain); parent != domain {
		if subtype, ok := patterns.BroadcastDomain[parent]; ok {
			return BroadcastSubtype(subtype), true
		}
	}
	return "", false
}

// lookupBroadcastPrefix matches the local part exactly or on a token
// boundary using the ".", "-", "_" separators (news.weekly matches
// "news").
func lookupBroadcastPrefix(local string) (BroadcastSubtype, string, bool) {
	if subtype, ok := patterns.BroadcastPrefix[local]; ok {
		return BroadcastSubtype(subtype), local, true
	}
	for prefix, subtype := range patterns.BroadcastPrefix {
		if len(local) > len(prefix) && strings.HasPrefix(local, prefix) {
			switch local[len(prefix)] {
			case '.', '-', '_':
				return BroadcastSubtype(subtype), prefix, true
			}
		}
	}
	return "", "", false
}

func capConfidence(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}
