package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"jobtrack-backend/internal/mail/domain"
	"jobtrack-backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	me          = "me"
	maxPageSize = 500
)

// TokenUpdateFunc is called with the new token whenever the client refreshes it
type TokenUpdateFunc func(token *oauth2.Token) error

// DefaultTimeout bounds one Gmail API request when NewService gets none.
const DefaultTimeout = 30 * time.Second

type Service struct {
	clientID     string
	clientSecret string
	limiter      *rate.Limiter
	timeout      time.Duration
}

type notifyTokenSource struct {
	mu       sync.Mutex
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			logger.Log.Warn("failed to persist refreshed gmail token", zap.Error(err))
		}
	}
	return t, nil
}

// NewService builds the Gmail client factory. Message fetches across all
// users share one limiter of fetchesPerSecond; every API request is bounded
// by timeout.
func NewService(clientID, clientSecret string, fetchesPerSecond float64, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := rate.Inf
	burst := 1
	if fetchesPerSecond > 0 {
		limit = rate.Limit(fetchesPerSecond)
		burst = int(fetchesPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		limiter:      rate.NewLimiter(limit, burst),
		timeout:      timeout,
	}
}

// httpClient authorizes requests with ts and applies the request timeout.
func (s *Service) httpClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	c := oauth2.NewClient(ctx, ts)
	c.Timeout = s.timeout
	return c
}

// GetGmailService creates a Gmail client authorized by the user's refresh token
func (s *Service) GetGmailService(ctx context.Context, refreshToken string, onTokenRefresh TokenUpdateFunc) (*gmail.Service, error) {
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now(), // force a refresh on first use
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrapped := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: onTokenRefresh,
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(s.httpClient(ctx, wrapped)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// NewSource opens a mail source for one user's mailbox
func (s *Service) NewSource(ctx context.Context, refreshToken string, onTokenRefresh TokenUpdateFunc) (*Source, error) {
	srv, err := s.GetGmailService(ctx, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, &domain.MailSourceError{Op: "connect", Err: err}
	}
	return NewSourceFromService(srv, s.limiter), nil
}

// Watch (re)registers push notifications for the user's inbox and returns
// the mailbox history id at registration time.
func (s *Service) Watch(ctx context.Context, refreshToken, topicName string, onTokenRefresh TokenUpdateFunc) (uint64, error) {
	srv, err := s.GetGmailService(ctx, refreshToken, onTokenRefresh)
	if err != nil {
		return 0, err
	}

	// Only one watch per mailbox is allowed; clearing a missing one fails harmlessly
	_ = srv.Users.Stop(me).Context(ctx).Do()

	resp, err := srv.Users.Watch(me, &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to watch mailbox: %w", err)
	}
	return resp.HistoryId, nil
}

// Stop stops push notifications for the user's mailbox
func (s *Service) Stop(ctx context.Context, refreshToken string, onTokenRefresh TokenUpdateFunc) error {
	srv, err := s.GetGmailService(ctx, refreshToken, onTokenRefresh)
	if err != nil {
		return err
	}
	if err := srv.Users.Stop(me).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to stop mailbox watch: %w", err)
	}
	return nil
}

// Source reads candidate messages from one Gmail mailbox
type Source struct {
	srv     *gmail.Service
	limiter *rate.Limiter
	now     func() time.Time
}

func NewSourceFromService(srv *gmail.Service, limiter *rate.Limiter) *Source {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Source{srv: srv, limiter: limiter, now: time.Now}
}

func (s *Source) Provider() string { return "google" }

// BuildQuery renders a search as a Gmail q string,
// e.g. newer_than:50d (interview OR offer).
func BuildQuery(q domain.SearchQuery) string {
	days := int(q.Window.Hours() / 24)
	if days < 1 {
		days = 1
	}
	query := fmt.Sprintf("newer_than:%dd", days)
	if len(q.Terms) > 0 {
		query += " (" + strings.Join(q.Terms, " OR ") + ")"
	}
	return query
}

// Search lists matching message ids newest first, following page tokens
// until the cap is reached.
func (s *Source) Search(ctx context.Context, q domain.SearchQuery) ([]domain.MessageRef, error) {
	query := BuildQuery(q)
	refs := make([]domain.MessageRef, 0)
	pageToken := ""

	for q.Cap <= 0 || len(refs) < q.Cap {
		pageSize := maxPageSize
		if q.Cap > 0 && q.Cap-len(refs) < pageSize {
			pageSize = q.Cap - len(refs)
		}

		call := s.srv.Users.Messages.List(me).Q(query).MaxResults(int64(pageSize)).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, &domain.MailSourceError{Op: "list", Err: err}
		}

		for _, m := range resp.Messages {
			refs = append(refs, domain.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
			if q.Cap > 0 && len(refs) == q.Cap {
				break
			}
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return refs, nil
}

// Fetch retrieves one message and reduces it to headers and plain text
func (s *Source) Fetch(ctx context.Context, id string) (*domain.MailMessage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &domain.MailSourceError{Op: "fetch", Err: err}
	}

	msg, err := s.srv.Users.Messages.Get(me, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, &domain.MailSourceError{Op: "fetch", Err: err}
	}

	var headers []*gmail.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}
	dateHeader := getHeader(headers, "Date")

	return &domain.MailMessage{
		ID:         msg.Id,
		ThreadID:   msg.ThreadId,
		Subject:    getHeader(headers, "Subject"),
		From:       getHeader(headers, "From"),
		DateHeader: dateHeader,
		ReceivedAt: ReceivedAt(msg.InternalDate, dateHeader, s.now()),
		Body:       PlainText(msg.Payload),
	}, nil
}

func (s *Source) Close() error { return nil }

// ReceivedAt prefers Gmail's internal date (epoch millis), then the Date
// header, then now.
func ReceivedAt(internalDate int64, dateHeader string, now time.Time) time.Time {
	if internalDate > 0 {
		return time.UnixMilli(internalDate).UTC()
	}
	if dateHeader != "" {
		if t, err := mail.ParseDate(dateHeader); err == nil {
			return t.UTC()
		}
	}
	return now.UTC()
}

// PlainText joins every text/plain part of the payload tree in order.
func PlainText(payload *gmail.MessagePart) string {
	var parts []string
	var walk func(p *gmail.MessagePart)
	walk = func(p *gmail.MessagePart) {
		if p == nil {
			return
		}
		if p.MimeType == "text/plain" && p.Body != nil && p.Body.Data != "" {
			if data, err := decodeBase64URL(p.Body.Data); err == nil {
				parts = append(parts, string(data))
			}
		}
		for _, child := range p.Parts {
			walk(child)
		}
	}
	walk(payload)
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func decodeBase64URL(s string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}
