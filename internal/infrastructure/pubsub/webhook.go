package pubsub

import (
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
)

// Webhook is an endpoint notified of the ledger events of a given type, or of
// any event if its type is ports.AnyTopic.
type Webhook struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Endpoint  string `json:"endpoint"`
	Secret    string `json:"secret"`
	CreatedAt int64  `json:"created_at"`
}

// NewWebhook validates the given event type and endpoint. Only absolute
// http(s) endpoints are accepted.
func NewWebhook(eventType, endpoint, secret string) (*Webhook, error) {
	if eventType != ports.AnyTopic && !domain.IsValidEventType(eventType) {
		return nil, fmt.Errorf("%w %q", ErrUnknownEventType, eventType)
	}
	u, err := url.Parse(endpoint)
	if err != nil || !u.IsAbs() || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		return nil, ErrInvalidEndpoint
	}

	return &Webhook{
		ID:        uuid.New().String(),
		EventType: eventType,
		Endpoint:  u.String(),
		Secret:    secret,
		CreatedAt: time.Now().Unix(),
	}, nil
}

func (w *Webhook) Topic() string {
	return w.EventType
}

func (w *Webhook) Id() string {
	return w.ID
}

func (w *Webhook) NotifyAt() string {
	return w.Endpoint
}

func (w *Webhook) IsSecured() bool {
	return len(w.Secret) > 0
}

// headers returns the headers of a notification request. Secured webhooks get
// a bearer token signed with their secret and bound to the notified event.
func (w *Webhook) headers(eventType string) (map[string]string, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if !w.IsSecured() {
		return headers, nil
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   w.ID,
		"event": eventType,
		"iat":   time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte(w.Secret))
	if err != nil {
		return nil, fmt.Errorf("webhook %s: failed to sign token: %w", w.ID, err)
	}
	headers["Authorization"] = fmt.Sprintf("Bearer %s", signed)
	return headers, nil
}

type webhooks []Webhook

func (l webhooks) toPortable() []ports.Subscription {
	subs := make([]ports.Subscription, 0, len(l))
	for i := range l {
		hook := l[i]
		subs = append(subs, &hook)
	}
	return subs
}
