// Package feed is a best-effort event fan-out over NATS. It publishes one
// message per trade execution, liquidation, force-realize close, and
// resolution-batch close, for downstream indexers. Publication failures
// are logged and never affect the engine's return value — this is never on
// the critical path of a state transition.
package feed

import (
	"encoding/json"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	SubjectTrade            = "riskslab.trade"
	SubjectLiquidation      = "riskslab.liquidation"
	SubjectForceRealize     = "riskslab.force_realize"
	SubjectResolutionBatch  = "riskslab.resolution_batch"
)

// TradeEvent is published once per successfully committed trade.
type TradeEvent struct {
	EventID   int64  `json:"event_id"`
	UserIdx   uint16 `json:"user_idx"`
	LPIdx     uint16 `json:"lp_idx"`
	ExecPrice uint64 `json:"exec_price"`
	ExecSize  string `json:"exec_size"`
	Slot      uint64 `json:"slot"`
}

// LiquidationEvent is published once per partial or full liquidation.
type LiquidationEvent struct {
	EventID     int64  `json:"event_id"`
	Idx         uint16 `json:"idx"`
	OraclePrice uint64 `json:"oracle_price"`
	CloseSize   string `json:"close_size"`
	Slot        uint64 `json:"slot"`
}

// ForceRealizeEvent is published once per insurance-exhausted forced close.
type ForceRealizeEvent struct {
	EventID     int64  `json:"event_id"`
	Idx         uint16 `json:"idx"`
	OraclePrice uint64 `json:"oracle_price"`
	Slot        uint64 `json:"slot"`
}

// ResolutionBatchEvent is published once per wind-down crank page.
type ResolutionBatchEvent struct {
	EventID         int64  `json:"event_id"`
	AccountsClosed  int    `json:"accounts_closed"`
	ResolutionPrice uint64 `json:"resolution_price"`
	Slot            uint64 `json:"slot"`
}

// Publisher wraps a NATS connection plus an optional secondary Kafka sink.
// A nil *Publisher is valid and treated as "fan-out disabled" by every
// Publish* method, so the host can wire it optionally without branching at
// every call site.
type Publisher struct {
	conn   *nats.Conn
	kafka  *KafkaSink
	logger zerolog.Logger
}

// NewPublisher dials url and returns a ready Publisher.
func NewPublisher(url string, logger zerolog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, logger: logger}, nil
}

// AttachKafka wires an already-constructed KafkaSink as the secondary
// republish target. Optional: a Publisher with no Kafka sink attached
// simply skips the second publish.
func (p *Publisher) AttachKafka(sink *KafkaSink) {
	if p == nil {
		return
	}
	p.kafka = sink
}

func (p *Publisher) publish(subject, topic, key string, payload any) {
	if p == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to marshal feed event")
		return
	}
	if p.conn != nil {
		if err := p.conn.Publish(subject, data); err != nil {
			p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish feed event")
		}
	}
	p.kafka.send(topic, key, data)
}

func (p *Publisher) PublishTrade(e TradeEvent) {
	p.publish(SubjectTrade, TopicTrade, strconv.Itoa(int(e.UserIdx)), e)
}
func (p *Publisher) PublishLiquidation(e LiquidationEvent) {
	p.publish(SubjectLiquidation, TopicLiquidation, strconv.Itoa(int(e.Idx)), e)
}
func (p *Publisher) PublishForceRealize(e ForceRealizeEvent) {
	p.publish(SubjectForceRealize, TopicForceRealize, strconv.Itoa(int(e.Idx)), e)
}
func (p *Publisher) PublishResolutionBatch(e ResolutionBatchEvent) {
	p.publish(SubjectResolutionBatch, TopicResolutionBatch, "resolution", e)
}

// Close releases the underlying NATS connection and Kafka sink.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.kafka.Close()
}
