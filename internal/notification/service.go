package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	authdomain "jobtrack-backend/internal/auth/domain"
	"jobtrack-backend/internal/mail/domain"
	"jobtrack-backend/internal/mail/usecase"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes on mailbox changes
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// UserFinder resolves a push notification to a user
type UserFinder interface {
	FindByEmail(email string) (*authdomain.User, error)
}

// Service turns Gmail push notifications into sync runs
type Service struct {
	pubsubClient *pubsub.Client
	users        UserFinder
	syncUsecase  usecase.SyncUsecase
	logger       *zap.Logger
	topicName    string
	subName      string

	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

// NewPubSubClient opens a Pub/Sub client, optionally with a credentials file
func NewPubSubClient(ctx context.Context, projectID, credentialsFile string) (*pubsub.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return client, nil
}

func NewService(client *pubsub.Client, topicName string, users UserFinder, syncUsecase usecase.SyncUsecase, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		pubsubClient:  client,
		users:         users,
		syncUsecase:   syncUsecase,
		logger:        logger.Named("push"),
		topicName:     topicName,
		subName:       topicName + "-sub",
		lastHistoryID: make(map[string]uint64),
	}
}

// Start ensures the subscription exists and blocks receiving until ctx ends
func (s *Service) Start(ctx context.Context) error {
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription %s: %w", s.subName, err)
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			return fmt.Errorf("check topic %s: %w", s.topicName, err)
		}
		if !topicExists {
			return fmt.Errorf("topic %s does not exist", s.topicName)
		}
		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 60 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("create subscription %s: %w", s.subName, err)
		}
		s.logger.Info("created subscription", zap.String("subscription", s.subName))
	}

	s.logger.Info("listening for gmail push notifications", zap.String("subscription", s.subName))
	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := s.HandleNotification(ctx, msg.Data); err != nil {
			s.logger.Warn("push notification not handled", zap.Error(err))
		}
		msg.Ack()
	})
}

// HandleNotification runs a sync for the mailbox named in data. Stale history
// ids and lock contention are normal and not errors.
func (s *Service) HandleNotification(ctx context.Context, data []byte) error {
	var n GmailNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	log := s.logger.With(zap.String("email", n.EmailAddress), zap.Uint64("history_id", n.HistoryID))

	user, err := s.users.FindByEmail(n.EmailAddress)
	if err != nil {
		return fmt.Errorf("find user %s: %w", n.EmailAddress, err)
	}
	if user == nil {
		log.Debug("no user for mailbox")
		return nil
	}

	if s.seen(user.ID, n.HistoryID) {
		log.Debug("duplicate history id, skipping")
		return nil
	}

	result, err := s.syncUsecase.RunSync(ctx, user.ID)
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		log.Debug("sync already running for user")
		return nil
	case err != nil:
		return fmt.Errorf("push sync for user %s: %w", user.ID, err)
	}
	s.markSeen(user.ID, n.HistoryID)
	log.Info("push sync completed", zap.Int("added", result.Added), zap.Int("skipped", result.Skipped))
	return nil
}

// seen reports whether a run already covered historyID for the user.
func (s *Service) seen(userID string, historyID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastHistoryID[userID]
	return ok && historyID <= last
}

// markSeen records historyID once a run for it has completed.
func (s *Service) markSeen(userID string, historyID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if historyID > s.lastHistoryID[userID] {
		s.lastHistoryID[userID] = historyID
	}
}
