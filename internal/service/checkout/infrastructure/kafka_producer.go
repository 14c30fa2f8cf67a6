// internal/service/checkout/infrastructure/kafka_producer.go
package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"vertex/internal/pkg/logger"
	"vertex/internal/service/checkout/domain"
)

// OutcomeProducerAdapter 把结算终态事件写入 Kafka，
// 实现 port.CheckoutEventProducer。
type OutcomeProducerAdapter struct {
	writer *kafka.Writer
}

// NewOutcomeProducerAdapter 创建事件生产者适配器。
func NewOutcomeProducerAdapter(writer *kafka.Writer) *OutcomeProducerAdapter {
	return &OutcomeProducerAdapter{writer: writer}
}

// NewOutcomeWriter 按配置构造 kafka.Writer。
func NewOutcomeWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
}

func (p *OutcomeProducerAdapter) Publish(ctx context.Context, event *domain.CheckoutOutcomeEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to marshal checkout outcome event")
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.CorrelationID),
		Value: eventBytes,
	}

	// 把链路上下文注入消息头，下游消费者可以接上同一条 trace
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to produce checkout outcome to kafka")
		return err
	}
	return nil
}
