package core

import (
	"testing"

	"go.uber.org/zap"
)

func TestSenderTypeDetectHeaders(t *testing.T) {
	d := NewSenderTypeDetector(zap.NewNop())

	tests := []struct {
		name           string
		msg            Message
		wantType       SenderType
		wantSubtype    BroadcastSubtype
		wantConfidence float64
	}{
		{
			name: "list-unsubscribe header",
			msg: Message{
				Sender:  "updates@somevendor.com",
				Headers: map[string][]string{"List-Unsubscribe": {"<mailto:leave@somevendor.com>"}},
			},
			wantType:       SenderBroadcast,
			wantSubtype:    SubtypeNewsletter,
			wantConfidence: 0.95,
		},
		{
			name: "list-id header",
			msg: Message{
				Sender:  "devs@lists.example.org",
				Headers: map[string][]string{"List-Id": {"Developer chatter <devs.lists.example.org>"}},
			},
			wantType:       SenderBroadcast,
			wantSubtype:    SubtypeNewsletter,
			wantConfidence: 0.90,
		},
		{
			name: "bulk mailer signature in delivery headers",
			msg: Message{
				Sender:  "hello@somebrand.com",
				Headers: map[string][]string{"X-Mailer": {"MailChimp Mailer - **CID**"}},
			},
			wantType:       SenderBroadcast,
			wantSubtype:    SubtypeMarketing,
			wantConfidence: 0.85,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(&tt.msg)
			if got.SenderType != tt.wantType {
				t.Fatalf("sender type = %q, want %q", got.SenderType, tt.wantType)
			}
			if got.Subtype != tt.wantSubtype {
				t.Errorf("subtype = %q, want %q", got.Subtype, tt.wantSubtype)
			}
			if !almostEqual(got.Confidence, tt.wantConfidence) {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
			if got.Provenance != ProvenanceHeader {
				t.Errorf("provenance = %q, want %q", got.Provenance, ProvenanceHeader)
			}
		})
	}
}

func TestSenderTypeHeaderTierWinsOverAddress(t *testing.T) {
	d := NewSenderTypeDetector(zap.NewNop())

	msg := Message{
		Sender:  "newsletter@substack.com",
		Headers: map[string][]string{"List-Unsubscribe": {"<https://example.com/u>"}},
	}
	got := d.Detect(&msg)
	if got.Provenance != ProvenanceHeader {
		t.Errorf("provenance = %q, want header tier to win", got.Provenance)
	}
	if !almostEqual(got.Confidence, 0.95) {
		t.Errorf("confidence = %v, want 0.95", got.Confidence)
	}
}

func TestSenderTypeDetectAddress(t *testing.T) {
	d := NewSenderTypeDetector(zap.NewNop())

	tests := []struct {
		name           string
		sender         string
		wantType       SenderType
		wantSubtype    BroadcastSubtype
		wantConfidence float64
	}{
		{"broadcast domain", "author@substack.com", SenderBroadcast, SubtypeNewsletter, 0.95},
		{"broadcast subdomain falls back", "bounce@mg.mailgun.org", SenderBroadcast, SubtypeTransactional, 0.95},
		{"transactional prefix", "receipts@acmecorp.io", SenderBroadcast, SubtypeTransactional, 0.90},
		{"newsletter prefix with token boundary", "news-weekly@acmecorp.io", SenderBroadcast, SubtypeNewsletter, 0.80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(&Message{Sender: tt.sender})
			if got.SenderType != tt.wantType {
				t.Fatalf("sender type = %q, want %q", got.SenderType, tt.wantType)
			}
			if got.Subtype != tt.wantSubtype {
				t.Errorf("subtype = %q, want %q", got.Subtype, tt.wantSubtype)
			}
			if !almostEqual(got.Confidence, tt.wantConfidence) {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
			if got.Provenance != ProvenanceAddress {
				t.Errorf("provenance = %q, want %q", got.Provenance, ProvenanceAddress)
			}
		})
	}

	t.Run("prefix without token boundary does not match", func(t *testing.T) {
		got := d.Detect(&Message{Sender: "newsy@acmecorp.io"})
		if got.Provenance == ProvenanceAddress {
			t.Errorf("newsy must not match the news prefix")
		}
	})
}

func TestSenderTypeDetectContent(t *testing.T) {
	d := NewSenderTypeDetector(zap.NewNop())

	tests := []struct {
		name           string
		msg            Message
		wantType       SenderType
		wantConfidence float64
	}{
		{
			name: "broadcast content indicators",
			msg: Message{
				Sender: "founder@smallshop.example",
				Body:   "Click here to unsubscribe. You are receiving this email because you signed up.",
			},
			wantType:       SenderBroadcast,
			wantConfidence: 0.80, // 0.60 + 0.1*2
		},
		{
			name: "cold outreach confidence is capped",
			msg: Message{
				Sender:  "sdr@salesplatform.example",
				Subject: "Quick question",
				Body:    "Do you have 15 minutes this week to hop on a call?",
			},
			wantType:       SenderColdOutreach,
			wantConfidence: 0.75, // 0.50 + 0.1*3 capped at 0.75
		},
		{
			name: "single opportunity indicator suffices",
			msg: Message{
				Sender: "editor@trademag.example",
				Body:   "We're looking for experts to comment on remote hiring.",
			},
			wantType:       SenderOpportunity,
			wantConfidence: 0.70,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(&tt.msg)
			if got.SenderType != tt.wantType {
				t.Fatalf("sender type = %q, want %q", got.SenderType, tt.wantType)
			}
			if !almostEqual(got.Confidence, tt.wantConfidence) {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
			if got.Provenance != ProvenanceContent {
				t.Errorf("provenance = %q, want %q", got.Provenance, ProvenanceContent)
			}
		})
	}
}

func TestSenderTypeUnknown(t *testing.T) {
	d := NewSenderTypeDetector(zap.NewNop())

	got := d.Detect(&Message{
		Sender:  "mom@family.example",
		Subject: "Dinner on Sunday?",
		Body:    "Are you coming over this weekend?",
	})
	if got.SenderType != SenderUnknown {
		t.Fatalf("sender type = %q, want %q", got.SenderType, SenderUnknown)
	}
	if got.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", got.Confidence)
	}
}

func TestDetectFromAddressFastPath(t *testing.T) {
	d := NewSenderTypeDetector(zap.NewNop())

	if got := d.DetectFromAddress("author@substack.com"); got.SenderType != SenderBroadcast {
		t.Errorf("fast path missed broadcast domain, got %q", got.SenderType)
	}
	// The fast path never consults headers or content.
	if got := d.DetectFromAddress("mom@family.example"); got.SenderType != SenderUnknown {
		t.Errorf("fast path should be unknown for plain addresses, got %q", got.SenderType)
	}
}
