package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/PowerImage/internal/app/model"
)

// JetStreamPublisher is the subset of nats.JetStreamContext used for publishing.
type JetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// AccessPublisher publishes link access events to NATS JetStream.
type AccessPublisher struct {
	js  JetStreamPublisher
	now func() time.Time
}

// NewAccessPublisher creates a new access event publisher.
func NewAccessPublisher(js JetStreamPublisher) *AccessPublisher {
	return &AccessPublisher{js: js, now: time.Now}
}

// Publish records that alias was served to the given client. The event ID
// doubles as the JetStream message ID so retries are deduplicated.
func (p *AccessPublisher) Publish(alias, imageID, ip, userAgent string) error {
	event := model.LinkAccessEvent{
		ID:        uuid.NewString(),
		Alias:     alias,
		ImageID:   imageID,
		IP:        ip,
		UserAgent: userAgent,
		Timestamp: p.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.AccessStreamSubject, data, nats.MsgId(event.ID))
	return err
}
