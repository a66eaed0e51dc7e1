// Package mailer delivers the newsletter over SMTP in BCC batches.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/wneessen/go-mail"

	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/metrics"
)

const (
	DefaultHost      = "smtp.gmail.com"
	DefaultPort      = 465
	DefaultBatchSize = 80
	DefaultPause     = 30 * time.Second
)

var ErrNoRecipients = errors.New("no recipients")

var kst = time.FixedZone("KST", 9*60*60)

type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	To        string // visible recipient; defaults to From
	BatchSize int
	Pause     time.Duration // zero sends batches back to back
}

// SendFunc delivers one batch. msg already carries recipients as Bcc.
type SendFunc func(ctx context.Context, recipients []string, msg *mail.Msg) error

type Mailer struct {
	cfg     Config
	send    SendFunc
	Metrics *metrics.Metrics
	now     func() time.Time
}

func New(cfg Config) *Mailer {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Pause < 0 {
		cfg.Pause = 0
	}
	if cfg.To == "" {
		cfg.To = cfg.From
	}
	m := &Mailer{cfg: cfg, now: time.Now}
	m.send = m.sendSMTP
	return m
}

// WithSendFunc replaces the transport, e.g. in tests.
func (m *Mailer) WithSendFunc(f SendFunc) *Mailer {
	m.send = f
	return m
}

// Subject builds the subject line for t's date in Korea time.
func Subject(t time.Time, brand string) string {
	return fmt.Sprintf("%s %s 뉴스브리핑", t.In(kst).Format("01월 02일"), brand)
}

// Result counts batch outcomes.
type Result struct {
	Batches   int
	Succeeded int
	Failed    int
}

// SendBatched sends htmlBody to recipients in BCC batches, pausing between
// batches. A failed batch does not stop later ones; the returned error is
// non-nil unless every batch succeeded.
func (m *Mailer) SendBatched(ctx context.Context, subject, htmlBody string, recipients []string) (Result, error) {
	var res Result
	if len(recipients) == 0 {
		return res, ErrNoRecipients
	}

	// a malformed sender fails every batch, so reject it up front
	date := m.now()
	if _, err := BuildMessage(m.cfg.From, m.cfg.To, subject, htmlBody, date); err != nil {
		return res, err
	}

	size := m.cfg.BatchSize
	res.Batches = (len(recipients) + size - 1) / size
	for i := 0; i < len(recipients); i += size {
		end := min(i+size, len(recipients))
		batch := recipients[i:end]
		n := i/size + 1

		logger.Info("sending batch", "batch", n, "of", res.Batches, "from", i+1, "to", end)
		if err := m.sendBatch(ctx, batch, subject, htmlBody, date); err != nil {
			res.Failed++
			logger.Error("batch failed", "batch", n, "error", err)
			if m.Metrics != nil {
				m.Metrics.IncrementFailedMailBatches()
			}
		} else {
			res.Succeeded++
			if m.Metrics != nil {
				m.Metrics.IncrementMailBatches()
			}
		}

		if n < res.Batches && m.cfg.Pause > 0 {
			select {
			case <-ctx.Done():
				res.Failed += res.Batches - n
				return res, ctx.Err()
			case <-time.After(m.cfg.Pause):
			}
		}
	}

	if res.Failed > 0 {
		return res, fmt.Errorf("%d of %d batches failed", res.Failed, res.Batches)
	}
	return res, nil
}

func (m *Mailer) sendBatch(ctx context.Context, batch []string, subject, htmlBody string, date time.Time) error {
	msg, err := BuildMessage(m.cfg.From, m.cfg.To, subject, htmlBody, date)
	if err != nil {
		return err
	}
	valid := make([]string, 0, len(batch))
	for _, rcpt := range batch {
		if err := msg.AddBcc(rcpt); err != nil {
			logger.Warn("skipping invalid recipient", "recipient", rcpt, "error", err)
			continue
		}
		valid = append(valid, rcpt)
	}
	if len(valid) == 0 {
		return ErrNoRecipients
	}
	return m.send(ctx, valid, msg)
}

// BuildMessage renders a UTF-8 multipart/alternative message: a plain-text
// rendering of htmlBody followed by the HTML itself.
func BuildMessage(from, to, subject, htmlBody string, date time.Time) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("from %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("to %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetDateWithValue(date)
	msg.SetBodyString(mail.TypeTextPlain, plainText(htmlBody))
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	return msg, nil
}

func plainText(htmlBody string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// sendSMTP delivers with PLAIN auth, over implicit TLS on port 465 and
// mandatory STARTTLS elsewhere.
func (m *Mailer) sendSMTP(ctx context.Context, _ []string, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTimeout(30 * time.Second),
	}
	if m.cfg.Port == DefaultPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	c, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send via %s:%d: %w", m.cfg.Host, m.cfg.Port, err)
	}
	return nil
}
