package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"farmlink/platform/platform-backend/internal/notifications/websocket"
	"farmlink/platform/platform-backend/internal/users"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Publisher is what other modules depend on to notify users
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// ProjectBroadcaster pushes live project updates to websocket subscribers
type ProjectBroadcaster interface {
	BroadcastProject(projectID uuid.UUID, event string, data map[string]interface{})
}

type Service interface {
	Publisher
	ProjectBroadcaster
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) (*ListResponse, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
}

// Pusher is the websocket surface the service needs
type Pusher interface {
	SendToUser(userID string, message websocket.Message) int
	SendToProject(projectID string, message websocket.Message) int
}

// Recipients resolves a user's email for email-worthy notifications
type Recipients interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

type notificationService struct {
	store      Store
	pusher     Pusher
	email      EmailSender
	recipients Recipients
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(store Store, pusher Pusher, email EmailSender, recipients Recipients, logger *zap.Logger) Service {
	return &notificationService{
		store:      store,
		pusher:     pusher,
		email:      email,
		recipients: recipients,
		logger:     logger,
		now:        time.Now,
	}
}

// Publish stores the notification, then pushes it live and by email.
// Live and email delivery failures are logged, not returned.
func (s *notificationService) Publish(ctx context.Context, msg Message) error {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    msg.UserID,
		Kind:      msg.Kind,
		Title:     msg.Title,
		Body:      msg.Body,
		ProjectID: msg.ProjectID,
		CreatedAt: s.now(),
	}
	if len(msg.Data) > 0 {
		raw, err := json.Marshal(msg.Data)
		if err != nil {
			return fmt.Errorf("failed to encode notification data: %w", err)
		}
		n.Data = datatypes.JSON(raw)
	}

	if err := s.store.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	delivered := s.pusher.SendToUser(n.UserID.String(), websocket.Message{
		Type:      websocket.TypeNotification,
		Data:      map[string]interface{}{"notification": n},
		Timestamp: n.CreatedAt,
	})
	s.logger.Debug("Notification published",
		zap.String("user_id", n.UserID.String()),
		zap.String("kind", string(n.Kind)),
		zap.Int("live_connections", delivered))

	if emailKinds[n.Kind] {
		s.sendEmail(ctx, n)
	}
	return nil
}

func (s *notificationService) sendEmail(ctx context.Context, n *Notification) {
	u, err := s.recipients.GetByID(ctx, n.UserID)
	if err != nil {
		s.logger.Warn("Failed to resolve notification recipient", zap.String("user_id", n.UserID.String()), zap.Error(err))
		return
	}
	to := u.EmailAddress()
	if to == "" {
		return
	}
	if err := s.email.Send(ctx, to, n.Title, n.Body); err != nil {
		s.logger.Warn("Failed to email notification", zap.String("notification_id", n.ID.String()), zap.Error(err))
		return
	}
	if err := s.store.MarkEmailed(ctx, n.ID, s.now()); err != nil {
		s.logger.Warn("Failed to record email delivery", zap.String("notification_id", n.ID.String()), zap.Error(err))
	}
}

func (s *notificationService) BroadcastProject(projectID uuid.UUID, event string, data map[string]interface{}) {
	payload := map[string]interface{}{"project_id": projectID.String(), "event": event}
	for k, v := range data {
		payload[k] = v
	}
	s.pusher.SendToProject(projectID.String(), websocket.Message{
		Type:      websocket.TypeProject,
		Data:      payload,
		Timestamp: s.now(),
	})
}

func (s *notificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) (*ListResponse, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	list, err := s.store.List(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	unread, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Notification{}
	}
	return &ListResponse{Notifications: list, Unread: unread, Limit: limit, Offset: offset}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.MarkRead(ctx, userID, id, s.now())
}
