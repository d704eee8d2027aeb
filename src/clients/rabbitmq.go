package clients

import (
	"errors"
	"fmt"

	"storefront-session-svc/src/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	cfg     *config.RabbitMQConfig
}

func NewRabbitMQ(cfg *config.QueueConfig) (*RabbitMQ, error) {
	logrus.Info("Connecting to RabbitMQ...")
	conn, err := amqp.Dial(cfg.RabbitMQ.Url)
	if err != nil {
		logrus.WithError(err).Error("Failed to connect to RabbitMQ")
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		logrus.WithError(err).Error("Failed to open a channel")
		conn.Close()
		return nil, err
	}

	logrus.WithField("exchange", cfg.RabbitMQ.Exchange).Info("Connected to RabbitMQ")

	return &RabbitMQ{
		Conn:    conn,
		Channel: channel,
		cfg:     &cfg.RabbitMQ,
	}, nil
}

// Close closes the channel and then the connection, reporting both failures.
func (r *RabbitMQ) Close() error {
	var errs []error

	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close RabbitMQ channel")
			errs = append(errs, err)
		} else {
			logrus.Info("RabbitMQ channel closed")
		}
	}

	if r.Conn != nil {
		if err := r.Conn.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close RabbitMQ connection")
			errs = append(errs, err)
		} else {
			logrus.Info("RabbitMQ connection closed")
		}
	}

	return errors.Join(errs...)
}

func (r *RabbitMQ) SetupExchange() error {
	err := r.Channel.ExchangeDeclare(
		r.cfg.Exchange,
		r.cfg.ExchangeType,
		r.cfg.Durable,
		r.cfg.AutoDelete,
		r.cfg.Internal,
		r.cfg.NoWait,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	return nil
}
