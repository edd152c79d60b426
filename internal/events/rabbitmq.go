package events

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"

	xerrors "NeoX-Agent/internal/errors"
)

// RabbitMQConfig 描述 RabbitMQ 队列的连接参数。
type RabbitMQConfig struct {
	URL     string
	Queue   string
	Durable bool
}

// amqpChannel 是发布器用到的 *amqp.Channel 方法子集。
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher 使用 RabbitMQ 默认交换机投递事件。
type RabbitMQPublisher struct {
	conn  *amqp.Connection
	ch    amqpChannel
	queue string
}

// NewRabbitMQPublisher 创建 RabbitMQ 事件发布器并声明队列。
func NewRabbitMQPublisher(cfg RabbitMQConfig) (*RabbitMQPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("RabbitMQ URL 不能为空")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "neox.interactions"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeEventFailure, err, "连接 RabbitMQ 失败")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, xerrors.Wrap(xerrors.CodeEventFailure, err, "创建 RabbitMQ channel 失败")
	}
	if _, err := ch.QueueDeclare(queue, cfg.Durable, !cfg.Durable, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, xerrors.Wrap(xerrors.CodeEventFailure, err, "声明 RabbitMQ 队列失败")
	}
	return newRabbitMQPublisher(conn, ch, queue), nil
}

func newRabbitMQPublisher(conn *amqp.Connection, ch amqpChannel, queue string) *RabbitMQPublisher {
	if queue == "" {
		queue = "neox.interactions"
	}
	return &RabbitMQPublisher{conn: conn, ch: ch, queue: queue}
}

// Publish 将事件投递到 RabbitMQ。
func (p *RabbitMQPublisher) Publish(ctx context.Context, event InteractionEvent) error {
	if p == nil || p.ch == nil {
		return errors.New("RabbitMQ 发布器未初始化")
	}
	payload, err := encode(event)
	if err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.MentionID,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Action),
		Body:         payload,
	})
	if err != nil {
		return xerrors.Wrap(xerrors.CodeEventFailure, err, "RabbitMQ 发布事件失败")
	}
	return nil
}

// Close 关闭 RabbitMQ 连接。
func (p *RabbitMQPublisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
