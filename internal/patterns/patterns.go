// Package patterns holds the static, data-driven rule tables used by
// the pre-filter classifier and the sender type detector. Tables are
// plain data evaluated in order by their consumers; adding a pattern is
// a data change, not a new code path.
package patterns

import (
	"regexp"
	"strings"
)

// ExcludedLabels are platform labels whose messages never enter the
// classification pipeline.
var ExcludedLabels = []string{"SPAM", "TRASH", "DRAFT"}

// AutomatedSenderPatterns match fully-automated sender addresses. A hit
// means the message can skip analysis with the fallback category.
var AutomatedSenderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^no-?reply[.\-+]?[^@]*@`),
	regexp.MustCompile(`(?i)^do-?not-?reply[^@]*@`),
	regexp.MustCompile(`(?i)^notifications?[.\-_]?[^@]*@`),
	regexp.MustCompile(`(?i)^alerts?[.\-_]?[^@]*@`),
	regexp.MustCompile(`(?i)^mailer-daemon@`),
	regexp.MustCompile(`(?i)^postmaster@`),
	regexp.MustCompile(`(?i)^bounces?[.\-+]?[^@]*@`),
	regexp.MustCompile(`(?i)^auto[.\-_]?responder@`),
}

// DomainCategory maps a sender domain to a category with the table's
// fixed confidence. Lookup falls back from the exact domain to its
// two-level parent (mail.example.com -> example.com).
var DomainCategory = map[string]string{
	// Shopping
	"amazon.com":  "shopping",
	"ebay.com":    "shopping",
	"etsy.com":    "shopping",
	"shopify.com": "shopping",
	"walmart.com": "shopping",
	"target.com":  "shopping",

	// Finance
	"paypal.com":   "finance",
	"stripe.com":   "finance",
	"chase.com":    "finance",
	"wellsfargo.com": "finance",
	"americanexpress.com": "finance",
	"coinbase.com": "finance",
	"wise.com":     "finance",
	"mercury.com":  "finance",

	// Travel
	"booking.com":    "travel",
	"airbnb.com":     "travel",
	"expedia.com":    "travel",
	"united.com":     "travel",
	"delta.com":      "travel",
	"uber.com":       "travel",
	"lyft.com":       "travel",

	// Social
	"facebookmail.com": "social",
	"linkedin.com":     "social",
	"twitter.com":      "social",
	"x.com":            "social",
	"instagram.com":    "social",
	"discord.com":      "social",
	"reddit.com":       "social",

	// Notifications from developer/SaaS tooling
	"github.com":    "notification",
	"gitlab.com":    "notification",
	"atlassian.com": "notification",
	"atlassian.net": "notification",
	"slack.com":     "notification",
	"zoom.us":       "notification",
	"calendly.com":  "notification",
	"sentry.io":     "notification",
	"pagerduty.com": "notification",

	// Newsletter platforms
	"substack.com":  "newsletter",
	"beehiiv.com":   "newsletter",
	"buttondown.email": "newsletter",
	"ghost.io":      "newsletter",
	"medium.com":    "newsletter",
}

// PrefixCategory maps a sender local-part (pre-@) prefix to a category.
// Consumers match exact or prefix-of.
var PrefixCategory = map[string]string{
	"receipts":     "shopping",
	"orders":       "shopping",
	"order-update": "shopping",
	"shipping":     "shopping",
	"billing":      "finance",
	"invoice":      "finance",
	"payments":     "finance",
	"statements":   "finance",
	"newsletter":   "newsletter",
	"digest":       "newsletter",
	"weekly":       "newsletter",
	"marketing":    "marketing",
	"promo":        "marketing",
	"offers":       "marketing",
	"deals":        "marketing",
	"support":      "notification",
	"help":         "notification",
	"security":     "notification",
	"account":      "notification",
	"team":         "notification",
	"info":         "notification",
	"itinerary":    "travel",
	"reservations": "travel",
}

// BroadcastDomain maps a sender domain to a broadcast subtype for the
// sender type detector's address tier.
var BroadcastDomain = map[string]string{
	"substack.com":        "newsletter",
	"beehiiv.com":         "newsletter",
	"buttondown.email":    "newsletter",
	"ghost.io":            "newsletter",
	"mailchimp.com":       "marketing",
	"mailchimpapp.net":    "marketing",
	"sendgrid.net":        "marketing",
	"hubspot.com":         "marketing",
	"hubspotemail.net":    "marketing",
	"constantcontact.com": "marketing",
	"klaviyo.com":         "marketing",
	"braze.com":           "marketing",
	"facebookmail.com":    "social",
	"linkedin.com":        "social",
	"twitter.com":         "social",
	"instagram.com":       "social",
	"postmarkapp.com":     "transactional",
	"sparkpostmail.com":   "transactional",
	"mailgun.org":         "transactional",
	"amazonses.com":       "transactional",
}

// BroadcastPrefix maps a sender local-part token prefix to a broadcast
// subtype. Consumers match exact or token-boundary prefixes using the
// ".", "-", "_" separators.
var BroadcastPrefix = map[string]string{
	"newsletter":   "newsletter",
	"digest":       "newsletter",
	"weekly":       "newsletter",
	"news":         "newsletter",
	"marketing":    "marketing",
	"promo":        "marketing",
	"offers":       "marketing",
	"campaigns":    "marketing",
	"noreply":      "transactional",
	"no-reply":     "transactional",
	"receipts":     "transactional",
	"orders":       "transactional",
	"billing":      "transactional",
	"notifications": "transactional",
	"alerts":       "transactional",
	"updates":      "transactional",
}

// BulkMailerSignatures are substrings that identify known bulk-mail
// services inside delivery/agent headers (Received, X-Mailer,
// User-Agent, Message-ID).
var BulkMailerSignatures = []string{
	"mailchimp",
	"sendgrid",
	"constantcontact",
	"hubspot",
	"klaviyo",
	"braze",
	"mailgun",
	"postmark",
	"sparkpost",
	"campaign-monitor",
	"createsend",
	"sailthru",
	"iterable",
	"customer.io",
}

// Broadcast content indicators: unsubscribe links, view-in-browser
// links, merge-tag remnants, legal footers.
var BroadcastContent = []*regexp.Regexp{
	regexp.MustCompile(`(?i)unsubscribe`),
	regexp.MustCompile(`(?i)view (this email )?in( your)? browser`),
	regexp.MustCompile(`(?i)(\{\{[^}]+\}\}|\*\|[A-Z_]+\|\*)`),
	regexp.MustCompile(`(?i)all rights reserved`),
	regexp.MustCompile(`(?i)you('re| are) receiving this (e-?mail|message)`),
	regexp.MustCompile(`(?i)update your (email )?preferences`),
	regexp.MustCompile(`(?i)sent to [^\s]+@[^\s]+ because`),
}

// Cold outreach content indicators: scheduling asks, "quick question"
// openers, recruiter and partnership language.
var ColdOutreachContent = []*regexp.Regexp{
	regexp.MustCompile(`(?i)quick question`),
	regexp.MustCompile(`(?i)schedule (a|some time for a) (call|meeting|chat|demo)`),
	regexp.MustCompile(`(?i)\b15 minutes\b`),
	regexp.MustCompile(`(?i)hop on a (quick )?call`),
	regexp.MustCompile(`(?i)follow(ing)? up on my (last|previous) (email|message)`),
	regexp.MustCompile(`(?i)touch(ing)? base`),
	regexp.MustCompile(`(?i)(exciting )?opportunity at\b`),
	regexp.MustCompile(`(?i)your (background|profile) (caught|stood)`),
	regexp.MustCompile(`(?i)partnership (opportunity|proposal)`),
	regexp.MustCompile(`(?i)\bbook (a|some) time\b`),
}

// Opportunity-list content indicators: journalist queries and
// call-for-submissions language. A single hit is a strong tell.
var OpportunityContent = []*regexp.Regexp{
	regexp.MustCompile(`(?i)call for (submissions|speakers|papers|proposals)`),
	regexp.MustCompile(`(?i)looking for (a )?(source|expert)s?\b`),
	regexp.MustCompile(`(?i)journalist (request|query)`),
	regexp.MustCompile(`(?i)#journorequest`),
	regexp.MustCompile(`(?i)writing a (story|piece|article) (about|on)`),
	regexp.MustCompile(`(?i)deadline for (responses|pitches|submissions)`),
}

// ParentDomain returns the two-level parent of a dotted domain, or the
// domain itself when it has no deeper subdomain.
func ParentDomain(domain string) string {
	parts := strings.Split(domain, ".")
	if len(parts) <= 2 {
		return domain
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// SenderDomain extracts the lowercased domain of an address, or "".
func SenderDomain(address string) string {
	parts := strings.Split(address, "@")
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return strings.ToLower(parts[1])
}

// SenderLocalPart extracts the lowercased local part of an address,
// or "".
func SenderLocalPart(address string) string {
	parts := strings.Split(address, "@")
	if len(parts) != 2 || parts[0] == "" {
		return ""
	}
	return strings.ToLower(parts[0])
}

// CountMatches returns how many patterns in the family match the text.
func CountMatches(family []*regexp.Regexp, text string) int {
	hits := 0
	for _, re := range family {
		if re.MatchString(text) {
			hits++
		}
	}
	return hits
}
