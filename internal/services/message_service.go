// Package services – MessageService
//
// MessageService is the only write path for inbox messages. Send validates
// the text, resolves the recipient, optionally checks a share token, and
// then admits the message: the quota check-and-increment and the message
// insert run in one transaction, so a message never exists without its
// counter bump and the free limit is a hard cap even under concurrent
// senders.
//
// Sends may carry an idempotency key. A retried send with the same key for
// the same recipient returns the original message id and admits nothing.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include recipient/user identifiers and pagination parameters.
package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/internal/domain"
	"github.com/tbourn/go-kala-backend/internal/observability"
	"github.com/tbourn/go-kala-backend/internal/repo"
)

// DefaultIdempotencyTTL is how long a send's idempotency key is remembered.
const DefaultIdempotencyTTL = 24 * time.Hour

// SendOptions carries the optional parts of a send.
type SendOptions struct {
	// LinkToken, when set, must match the recipient's active share token.
	LinkToken *string
	// IdempotencyKey deduplicates retries for the same recipient.
	IdempotencyKey string
}

// SendResult is the outcome of an admitted (or replayed) send.
type SendResult struct {
	MessageID string
	Replayed  bool
}

// MessageService coordinates message admission and inbox management.
type MessageService struct {
	DB    *gorm.DB
	Cache ProfileCache

	// FreeLimit caps the inbox of non-premium users.
	FreeLimit int
	// IdempotencyTTL is how long send keys are remembered.
	IdempotencyTTL time.Duration
	// Timeout bounds each storage call.
	Timeout time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewMessageService returns a MessageService with the default free limit.
func NewMessageService(db *gorm.DB, cache ProfileCache) *MessageService {
	return &MessageService{
		DB:             db,
		Cache:          cache,
		FreeLimit:      domain.DefaultFreeMessageLimit,
		IdempotencyTTL: DefaultIdempotencyTTL,
		Timeout:        DefaultTimeout,
	}
}

func (s *MessageService) limit() int {
	if s.FreeLimit > 0 {
		return s.FreeLimit
	}
	return domain.DefaultFreeMessageLimit
}

// Send admits an anonymous message into username's inbox.
func (s *MessageService) Send(ctx context.Context, username, rawText string, opts SendOptions) (*SendResult, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("recipient.username", username),
			attribute.Bool("idempotent", opts.IdempotencyKey != ""),
		),
	)
	defer span.End()

	if !domain.ValidMessageText(rawText) {
		observability.MessageRejected(observability.ReasonInvalid)
		return nil, ErrInvalidMessage
	}
	text := domain.NormalizeMessageText(rawText)

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	recipient, err := repo.GetUserByUsername(ctx, s.DB, username)
	if errors.Is(err, repo.ErrNotFound) {
		observability.MessageRejected(observability.ReasonNotFound)
		return nil, ErrUserNotFound
	}
	if err != nil {
		observability.MessageRejected(observability.ReasonError)
		return nil, classify(ctx, err)
	}

	now := clock(s.Now)
	if opts.LinkToken != nil && !recipient.HasActiveLink(now, opts.LinkToken) {
		observability.MessageRejected(observability.ReasonLinkExpired)
		return nil, ErrLinkExpired
	}

	if opts.IdempotencyKey != "" {
		if res, ok, err := s.replay(ctx, recipient.ID, opts.IdempotencyKey, now); err != nil {
			return nil, classify(ctx, err)
		} else if ok {
			return res, nil
		}
	}

	var msg *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		admitted, err := repo.AdmitMessage(ctx, tx, recipient.ID, s.limit())
		if err != nil {
			return err
		}
		if !admitted {
			return ErrQuotaExceeded
		}
		m, err := repo.CreateMessage(ctx, tx, recipient.ID, text, now)
		if err != nil {
			return err
		}
		if opts.IdempotencyKey != "" {
			ttl := s.IdempotencyTTL
			if ttl <= 0 {
				ttl = DefaultIdempotencyTTL
			}
			if _, err := repo.CreateIdempotency(ctx, tx, recipient.ID, opts.IdempotencyKey, m.ID, http.StatusCreated, ttl); err != nil {
				return err
			}
		}
		msg = m
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, ErrQuotaExceeded):
		observability.MessageRejected(observability.ReasonQuota)
		return nil, ErrQuotaExceeded
	case errors.Is(err, repo.ErrDuplicate) && opts.IdempotencyKey != "":
		// A concurrent send with the same key won; hand back its message.
		if res, ok, rerr := s.replay(ctx, recipient.ID, opts.IdempotencyKey, now); rerr == nil && ok {
			return res, nil
		}
		observability.MessageRejected(observability.ReasonError)
		return nil, classify(ctx, err)
	default:
		observability.MessageRejected(observability.ReasonError)
		return nil, classify(ctx, err)
	}

	observability.MessageAdmitted()
	s.invalidate(ctx, recipient.Username, recipient.IsPremium, recipient.MessageCount+1)
	return &SendResult{MessageID: msg.ID}, nil
}

func (s *MessageService) replay(ctx context.Context, recipientID, key string, now time.Time) (*SendResult, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, recipientID, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	observability.MessageReplayed()
	return &SendResult{MessageID: rec.MessageID, Replayed: true}, true, nil
}

// invalidate drops the cached public profile once the inbox fills up, the
// only send that changes what the profile shows.
func (s *MessageService) invalidate(ctx context.Context, username string, premium bool, count int) {
	if s.Cache == nil || premium || count < s.limit() {
		return
	}
	if err := s.Cache.Invalidate(ctx, username); err != nil {
		log.Warn().Err(err).Str("username", username).Msg("profile cache invalidate failed")
	}
}

// List returns every message in userID's inbox, newest first.
func (s *MessageService) List(ctx context.Context, userID string) ([]domain.Message, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "List",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	msgs, err := repo.ListMessages(ctx, s.DB, userID)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return msgs, nil
}

// ListPage returns one page of userID's inbox, newest first, and the total.
func (s *MessageService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Message, int64, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	total, err := repo.CountMessages(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, classify(ctx, err)
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	msgs, err := repo.ListMessagesPage(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, classify(ctx, err)
	}
	return msgs, total, nil
}

// Stats returns the message count and latest change time of an inbox, used
// for ETags.
func (s *MessageService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	n, ts, err := repo.InboxStats(ctx, s.DB, userID)
	if err != nil {
		return 0, nil, classify(ctx, err)
	}
	return n, ts, nil
}

// MarkAsRead flags a message as read. Only the recipient may do so.
func (s *MessageService) MarkAsRead(ctx context.Context, userID, messageID string) error {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "MarkAsRead",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("message.id", messageID),
		),
	)
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	if err := s.owned(ctx, userID, messageID); err != nil {
		return err
	}
	if err := repo.MarkMessageRead(ctx, s.DB, messageID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrMessageNotFound
		}
		return classify(ctx, err)
	}
	return nil
}

// Delete removes a message permanently. Only the recipient may do so, and
// the recipient's quota is not given back.
func (s *MessageService) Delete(ctx context.Context, userID, messageID string) error {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("message.id", messageID),
		),
	)
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	if err := s.owned(ctx, userID, messageID); err != nil {
		return err
	}
	if err := repo.DeleteMessage(ctx, s.DB, messageID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrMessageNotFound
		}
		return classify(ctx, err)
	}
	return nil
}

// owned distinguishes a missing message from someone else's.
func (s *MessageService) owned(ctx context.Context, userID, messageID string) error {
	m, err := repo.GetMessage(ctx, s.DB, messageID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return classify(ctx, err)
	}
	if m.RecipientUserID != userID {
		return ErrForbidden
	}
	return nil
}

// CountUnread returns the number of unread messages for userID.
func (s *MessageService) CountUnread(ctx context.Context, userID string) (int64, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "CountUnread",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	n, err := repo.CountUnread(ctx, s.DB, userID)
	if err != nil {
		return 0, classify(ctx, err)
	}
	return n, nil
}
