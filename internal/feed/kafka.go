package feed

import (
	"sync/atomic"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

const (
	TopicTrade           = "riskslab.trade"
	TopicLiquidation     = "riskslab.liquidation"
	TopicForceRealize    = "riskslab.force_realize"
	TopicResolutionBatch = "riskslab.resolution_batch"
)

// KafkaSink is a secondary, optional event sink: it republishes the same
// payloads the NATS Publisher emits onto Kafka topics, for consumers that
// prefer an ordered log over a subject bus. It is independently best-effort
// — a Kafka outage never blocks or fails a NATS publish, and vice versa.
type KafkaSink struct {
	producer sarama.AsyncProducer
	logger   zerolog.Logger

	sent   atomic.Int64
	errors atomic.Int64
}

// NewKafkaSink dials brokers with an async producer tuned for fan-out
// durability over latency: all-replica acks, bounded retries.
func NewKafkaSink(brokers []string, logger zerolog.Logger) (*KafkaSink, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	k := &KafkaSink{producer: producer, logger: logger}
	go k.drainErrors()
	return k, nil
}

func (k *KafkaSink) drainErrors() {
	for err := range k.producer.Errors() {
		k.errors.Add(1)
		k.logger.Warn().Err(err.Err).Str("topic", err.Msg.Topic).Msg("kafka feed publish failed")
	}
}

func (k *KafkaSink) send(topic string, key string, payload []byte) {
	if k == nil {
		return
	}
	k.producer.Input() <- &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}
	k.sent.Add(1)
}

// Close flushes and closes the underlying producer.
func (k *KafkaSink) Close() error {
	if k == nil {
		return nil
	}
	return k.producer.Close()
}
