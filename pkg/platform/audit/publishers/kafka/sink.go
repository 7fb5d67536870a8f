// Package kafka ships audit events to a Kafka topic. Events are keyed by
// record ID so a record's trail stays ordered within one partition.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "disposisi/pkg/platform/audit"
)

// Sink implements audit.Store on top of a franz-go client.
type Sink struct {
	client *kgo.Client
	topic  string
}

// payload is the JSON structure published to Kafka.
type payload struct {
	Category     string `json:"category"`
	Timestamp    string `json:"timestamp"`
	RecordID     string `json:"record_id,omitempty"`
	LetterNumber string `json:"letter_number,omitempty"`
	Action       string `json:"action"`
	Actor        string `json:"actor,omitempty"`
	ActorRole    string `json:"actor_role,omitempty"`
	FromStatus   string `json:"from_status,omitempty"`
	ToStatus     string `json:"to_status,omitempty"`
	Detail       string `json:"detail,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	ClientIP     string `json:"client_ip,omitempty"`
	Device       string `json:"device,omitempty"`
}

// New connects a producer to the seed brokers. Extra options are appended
// after the defaults.
func New(brokers []string, topic string, opts ...kgo.Opt) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka audit sink requires at least one broker")
	}
	if topic == "" {
		return nil, errors.New("kafka audit sink requires a topic")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(5 * time.Millisecond),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

// EnsureTopic creates the audit topic if it does not exist yet.
func (s *Sink) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Append produces one event synchronously.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	p := payload{
		Category:     string(event.Category),
		Timestamp:    event.Timestamp.UTC().Format(time.RFC3339Nano),
		LetterNumber: event.LetterNumber,
		Action:       event.Action,
		Actor:        event.Actor,
		ActorRole:    string(event.ActorRole),
		FromStatus:   event.FromStatus,
		ToStatus:     event.ToStatus,
		Detail:       event.Detail,
		RequestID:    event.RequestID,
		ClientIP:     event.ClientIP,
		Device:       event.Device,
	}
	if !event.RecordID.IsNil() {
		p.RecordID = event.RecordID.String()
	}
	value, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	rec := &kgo.Record{
		Key:   []byte(p.RecordID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(p.Category)},
			{Key: "action", Value: []byte(p.Action)},
		},
	}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes buffered records and closes the client.
func (s *Sink) Close(ctx context.Context) error {
	err := s.client.Flush(ctx)
	s.client.Close()
	return err
}
