// Package imap reads candidate messages from an IMAP inbox.
package imap

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"jobtrack-backend/internal/mail/domain"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
)

const (
	DefaultPort    = 993
	commandTimeout = 60 * time.Second
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
}

// Source is one logged-in IMAP session with INBOX selected read-only.
type Source struct {
	c   *client.Client
	now func() time.Time
}

// Dial connects, logs in and selects INBOX.
func Dial(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, domain.ErrCredentialMissing
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.MailSourceError{Op: "connect", Err: err}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var (
		c   *client.Client
		err error
	)
	if cfg.UseTLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, &domain.MailSourceError{Op: "connect", Err: err}
	}
	c.Timeout = commandTimeout

	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		_ = c.Logout()
		return nil, &domain.MailSourceError{Op: "login", Err: err}
	}
	if _, err := c.Select("INBOX", true); err != nil {
		_ = c.Logout()
		return nil, &domain.MailSourceError{Op: "select", Err: err}
	}
	return &Source{c: c, now: time.Now}, nil
}

func (s *Source) Provider() string { return "imap" }

// Search runs SEARCH SINCE over INBOX. Terms are not sent to the server;
// every message in the window is a candidate.
func (s *Source) Search(ctx context.Context, q domain.SearchQuery) ([]domain.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.MailSourceError{Op: "list", Err: err}
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = s.now().Add(-q.Window)

	uids, err := s.c.UidSearch(criteria)
	if err != nil {
		return nil, &domain.MailSourceError{Op: "list", Err: err}
	}
	return newestFirst(uids, q.Cap), nil
}

// newestFirst orders UIDs descending, which follows arrival order in a
// mailbox, and applies the cap.
func newestFirst(uids []uint32, limit int) []domain.MessageRef {
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}
	refs := make([]domain.MessageRef, 0, len(uids))
	for _, uid := range uids {
		refs = append(refs, domain.MessageRef{ID: strconv.FormatUint(uint64(uid), 10)})
	}
	return refs
}

func (s *Source) Fetch(ctx context.Context, id string) (*domain.MailMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.MailSourceError{Op: "fetch", Err: err}
	}
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, &domain.MailSourceError{Op: "fetch", Err: fmt.Errorf("invalid uid %q", id)}
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(uid))
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.c.UidFetch(seqSet, items, messages)
	}()

	var fetched *imap.Message
	for msg := range messages {
		if msg != nil && fetched == nil {
			fetched = msg
		}
	}
	if err := <-done; err != nil {
		return nil, &domain.MailSourceError{Op: "fetch", Err: err}
	}
	if fetched == nil {
		return nil, &domain.MailSourceError{Op: "fetch", Err: fmt.Errorf("message %s not found", id)}
	}

	out := &domain.MailMessage{ID: id}
	if env := fetched.Envelope; env != nil {
		out.Subject = env.Subject
		if len(env.From) > 0 {
			out.From = formatAddress(env.From[0])
		}
		if !env.Date.IsZero() {
			out.DateHeader = env.Date.Format(time.RFC1123Z)
		}
	}
	out.ReceivedAt = receivedAt(fetched, s.now())

	if r := fetched.GetBody(section); r != nil {
		body, err := PlainText(r)
		if err != nil {
			return nil, &domain.MailSourceError{Op: "parse", Err: err}
		}
		out.Body = body
	}
	return out, nil
}

func (s *Source) Close() error {
	return s.c.Logout()
}

func receivedAt(msg *imap.Message, now time.Time) time.Time {
	if !msg.InternalDate.IsZero() {
		return msg.InternalDate.UTC()
	}
	if msg.Envelope != nil && !msg.Envelope.Date.IsZero() {
		return msg.Envelope.Date.UTC()
	}
	return now.UTC()
}

func formatAddress(a *imap.Address) string {
	addr := a.Address()
	if a.PersonalName != "" {
		return fmt.Sprintf("%s <%s>", a.PersonalName, addr)
	}
	return addr
}

// PlainText joins the inline text/plain parts of an RFC 5322 message.
func PlainText(r io.Reader) (string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("create mail reader: %w", err)
	}
	defer mr.Close()

	var parts []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read next part: %w", err)
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if contentType != "" && !strings.HasPrefix(contentType, "text/plain") {
			continue
		}
		b, err := io.ReadAll(p.Body)
		if err != nil {
			return "", fmt.Errorf("read part body: %w", err)
		}
		parts = append(parts, string(b))
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}
