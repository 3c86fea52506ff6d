package gate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/inboxkit/mail-triage/internal/core"
	"go.uber.org/zap"
)

// Annotation headers prepended to relayed messages.
const (
	headerSkipAnalysis = "X-Triage-Skip-Analysis"
	headerCategory     = "X-Triage-Category"
	headerSenderType   = "X-Triage-Sender-Type"
	headerConfidence   = "X-Triage-Confidence"
)

// SMTPGate is an inbound SMTP hop that runs the cheap triage path over
// each message and relays it onward with X-Triage-* annotation headers.
// It never blocks delivery and never rewrites existing headers; the
// downstream sync pipeline decides what to do with the annotations.
type SMTPGate struct {
	service      *core.TriageService
	logger       *zap.Logger
	listenAddr   string
	server       *smtp.Server
	relayAddr    string
	relayPort    int
	relayEnabled bool
}

// NewSMTPGate creates a new SMTP tagging gate. The triage service should
// be a cheap-path instance: the gate only annotates, it never calls the
// analyzer or persists anything.
func NewSMTPGate(
	service *core.TriageService,
	logger *zap.Logger,
	listenAddr string,
	relayAddr string,
	relayPort int,
	relayEnabled bool,
) *SMTPGate {
	return &SMTPGate{
		service:      service,
		logger:       logger,
		listenAddr:   listenAddr,
		relayAddr:    relayAddr,
		relayPort:    relayPort,
		relayEnabled: relayEnabled,
	}
}

// Start starts the SMTP server. It blocks until the server stops.
func (g *SMTPGate) Start() error {
	g.server = smtp.NewServer(&smtpBackend{gate: g})

	g.server.Addr = g.listenAddr
	g.server.Domain = "localhost"
	g.server.ReadTimeout = 30 * time.Second
	g.server.WriteTimeout = 30 * time.Second
	g.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	g.server.MaxRecipients = 50
	g.server.AllowInsecureAuth = true

	g.logger.Info("SMTP gate starting", zap.String("address", g.listenAddr))

	if err := g.server.ListenAndServe(); err != nil && err != smtp.ErrServerClosed {
		return err
	}
	return nil
}

// Stop stops the SMTP server
func (g *SMTPGate) Stop(ctx context.Context) error {
	if g.server != nil {
		return g.server.Close()
	}
	return nil
}

// relay sends the annotated message onward using go-smtp
func (g *SMTPGate) relay(sender string, recipients []string, data []byte) error {
	addr := fmt.Sprintf("%s:%d", g.relayAddr, g.relayPort)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			g.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		g.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	gate *SMTPGate
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		gate:       b.gate,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	gate       *SMTPGate
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for the gate)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data annotates the message with the cheap-path triage outcome and
// relays it onward. Analysis failures never block delivery: the worst
// case is a message relayed without annotations.
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.gate.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		s.gate.logger.Error("Failed to parse message", zap.Error(err))
		return err
	}

	msg := s.buildMessage(parsed)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var annotations []byte
	triage, err := s.gate.service.ClassifyMessage(ctx, msg)
	if err != nil {
		s.gate.logger.Error("Triage failed, relaying without annotations",
			zap.String("sender", msg.Sender), zap.Error(err))
	} else {
		annotations = formatAnnotations(triage)
	}

	annotated := append(annotations, rawData...)

	if s.gate.relayEnabled {
		if err := s.gate.relay(s.sender, s.recipients, annotated); err != nil {
			s.gate.logger.Error("Failed to relay message",
				zap.String("sender", msg.Sender), zap.Error(err))
			return err
		}
	}

	if triage != nil {
		s.gate.logger.Info("Tagged message",
			zap.String("sender", msg.Sender),
			zap.String("decision", string(triage.PreFilter.Decision)),
			zap.String("category", string(triage.PreFilter.Category)),
			zap.String("sender_type", string(triage.SenderType.SenderType)))
	}
	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}

// buildMessage converts the parsed wire message into the triage model.
// The first recipient keys the per-user tables.
func (s *smtpSession) buildMessage(parsed *mail.Message) *core.Message {
	body, err := extractTextFromMessage(parsed)
	if err != nil {
		s.gate.logger.Warn("Failed to extract text content", zap.Error(err))
		body = ""
	}

	msg := &core.Message{
		ID:         uuid.NewString(),
		Sender:     s.sender,
		Subject:    parsed.Header.Get("Subject"),
		Body:       body,
		Headers:    map[string][]string(parsed.Header),
		ReceivedAt: time.Now(),
	}
	if len(s.recipients) > 0 {
		msg.UserID = strings.ToLower(s.recipients[0])
	}
	if from, err := mail.ParseAddress(s.sender); err == nil {
		msg.Sender = from.Address
		msg.SenderName = from.Name
	}
	return msg
}

// formatAnnotations renders the X-Triage-* header block
func formatAnnotations(triage *core.Triage) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s: %t\r\n", headerSkipAnalysis, triage.PreFilter.Skip())
	if triage.PreFilter.Category != "" {
		fmt.Fprintf(&b, "%s: %s\r\n", headerCategory, triage.PreFilter.Category)
	}
	fmt.Fprintf(&b, "%s: %s\r\n", headerSenderType, triage.SenderType.SenderType)
	fmt.Fprintf(&b, "%s: %.2f\r\n", headerConfidence, triage.SenderType.Confidence)
	return b.Bytes()
}
