package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	netmail "net/mail"
	"strings"
	"testing"
	"time"

	"github.com/wneessen/go-mail"
)

type recorder struct {
	batches [][]string
	failOn  map[int]bool
}

func (r *recorder) send(ctx context.Context, recipients []string, msg *mail.Msg) error {
	r.batches = append(r.batches, append([]string(nil), recipients...))
	if r.failOn[len(r.batches)] {
		return errors.New("smtp down")
	}
	return nil
}

func recipients(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("user%d@example.com", i)
	}
	return out
}

func TestSendBatched(t *testing.T) {
	rec := &recorder{}
	m := New(Config{From: "news@example.com"}).WithSendFunc(rec.send)

	res, err := m.SendBatched(context.Background(), "subject", "<p>hi</p>", recipients(170))
	if err != nil {
		t.Fatal(err)
	}
	if res.Batches != 3 || res.Succeeded != 3 {
		t.Errorf("result = %+v", res)
	}
	sizes := []int{len(rec.batches[0]), len(rec.batches[1]), len(rec.batches[2])}
	if sizes[0] != 80 || sizes[1] != 80 || sizes[2] != 10 {
		t.Errorf("batch sizes = %v", sizes)
	}
	if rec.batches[2][9] != "user169@example.com" {
		t.Errorf("last recipient = %s", rec.batches[2][9])
	}
}

func TestSendBatchedPartialFailure(t *testing.T) {
	rec := &recorder{failOn: map[int]bool{2: true}}
	m := New(Config{From: "news@example.com", BatchSize: 2}).WithSendFunc(rec.send)

	res, err := m.SendBatched(context.Background(), "s", "b", recipients(5))
	if err == nil {
		t.Fatal("expected error when a batch fails")
	}
	if res.Batches != 3 || res.Succeeded != 2 || res.Failed != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(rec.batches) != 3 {
		t.Errorf("later batches were skipped after a failure")
	}
}

func TestSendBatchedNoRecipients(t *testing.T) {
	m := New(Config{From: "news@example.com"}).WithSendFunc((&recorder{}).send)
	if _, err := m.SendBatched(context.Background(), "s", "b", nil); !errors.Is(err, ErrNoRecipients) {
		t.Errorf("err = %v, want ErrNoRecipients", err)
	}
}

func TestSendBatchedCancelledDuringPause(t *testing.T) {
	rec := &recorder{}
	m := New(Config{From: "news@example.com", BatchSize: 1, Pause: time.Hour}).WithSendFunc(rec.send)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res, err := m.SendBatched(ctx, "s", "b", recipients(3))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(rec.batches) != 1 || res.Failed != 2 {
		t.Errorf("sent %d batches, result %+v", len(rec.batches), res)
	}
}

func TestSubject(t *testing.T) {
	got := Subject(time.Date(2025, 10, 12, 20, 0, 0, 0, time.UTC), "KETEP")
	if got != "10월 13일 KETEP 뉴스브리핑" {
		t.Errorf("Subject() = %q", got)
	}
}

func TestSendBatchedSkipsInvalidRecipients(t *testing.T) {
	rec := &recorder{}
	m := New(Config{From: "news@example.com", BatchSize: 2}).WithSendFunc(rec.send)

	res, err := m.SendBatched(context.Background(), "s", "b", []string{"a@example.com", "not an address", "@@", "still wrong"})
	if err == nil {
		t.Fatal("expected error for a batch with no valid recipient")
	}
	if res.Batches != 2 || res.Succeeded != 1 || res.Failed != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(rec.batches) != 1 || len(rec.batches[0]) != 1 || rec.batches[0][0] != "a@example.com" {
		t.Errorf("batches = %v", rec.batches)
	}
}

func TestBuildMessage(t *testing.T) {
	html := "<html><head><style>p{color:red}</style></head><body><p>뉴스브리핑 본문</p> " + strings.Repeat("가", 200) + "</body></html>"
	msg, err := BuildMessage("news@example.com", "news@example.com", "10월 13일 KETEP 뉴스브리핑", html, time.Date(2025, 10, 13, 9, 0, 0, 0, kst))
	if err != nil {
		t.Fatal(err)
	}
	var raw bytes.Buffer
	if _, err := msg.WriteTo(&raw); err != nil {
		t.Fatal(err)
	}

	parsed, err := netmail.ReadMessage(&raw)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Header.Get("Bcc") != "" {
		t.Errorf("Bcc header present")
	}
	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(parsed.Header.Get("Subject"))
	if err != nil || subject != "10월 13일 KETEP 뉴스브리핑" {
		t.Errorf("subject = %q, %v", subject, err)
	}
	if date, err := parsed.Header.Date(); err != nil || !date.Equal(time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v, %v", date, err)
	}

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/alternative" {
		t.Fatalf("content type = %q, %v", mediaType, err)
	}
	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var types, bodies []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		ct, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		body, _ := io.ReadAll(part)
		types = append(types, ct)
		bodies = append(bodies, string(body))
	}
	if len(types) != 2 || types[0] != "text/plain" || types[1] != "text/html" {
		t.Fatalf("parts = %v", types)
	}
	if !strings.HasPrefix(bodies[0], "뉴스브리핑 본문 가가") || strings.Contains(bodies[0], "color") {
		t.Errorf("plain part = %q", bodies[0])
	}
	if !strings.Contains(bodies[1], "<p>뉴스브리핑 본문</p>") {
		t.Errorf("html part = %q", bodies[1])
	}
}

func TestBuildMessageInvalidSender(t *testing.T) {
	if _, err := BuildMessage("not an address", "", "s", "b", time.Now()); err == nil {
		t.Error("expected error for malformed sender")
	}
}
