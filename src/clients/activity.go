package clients

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"storefront-session-svc/src/internal/config"
	"storefront-session-svc/src/internal/models"
	"storefront-session-svc/src/internal/session"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// Publisher is the part of *amqp.Channel the activity publisher needs.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// ActivityPublisher forwards session transitions to RabbitMQ. It implements
// session.Listener; publish failures are logged and dropped.
type ActivityPublisher struct {
	publisher  Publisher
	exchange   string
	routingKey string
	profile    string
}

func NewActivityPublisher(publisher Publisher, cfg *config.Configuration) *ActivityPublisher {
	return &ActivityPublisher{
		publisher:  publisher,
		exchange:   cfg.Queue.RabbitMQ.Exchange,
		routingKey: cfg.Queue.RabbitMQ.RoutingKey,
		profile:    cfg.Session.Profile,
	}
}

func (p *ActivityPublisher) SessionChanged(_ context.Context, event session.Event) {
	message := models.ActivityMessage{
		SessionID:   event.SessionID,
		ServiceName: models.ServiceSessionStore,
		Action:      event.Action,
		Metadata:    map[string]string{"profile": p.profile},
		Timestamp:   event.At,
	}
	if event.User != nil {
		message.UserID = strconv.FormatInt(event.User.ID, 10)
		message.Metadata["role"] = event.User.Role
	}

	if err := p.publish(message); err != nil {
		logrus.WithError(err).WithField("action", event.Action).Error("Failed to publish session activity")
	}
}

func (p *ActivityPublisher) publish(message models.ActivityMessage) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	err = p.publisher.Publish(
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":     message.UserID,
		"session_id":  message.SessionID,
		"action":      message.Action,
		"exchange":    p.exchange,
		"routing_key": p.routingKey,
	}).Debug("Session activity published")

	return nil
}
