// Package mirror republishes merged status reports to NATS so off-mesh
// consumers can follow the network without joining the control plane.
package mirror

import (
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"meshctl/internal/wire"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// Publisher sends each Status, in wire encoding, to "<subject>.<radio_id>".
type Publisher struct {
	nc      *nats.Conn
	pub     publisher
	subject string
}

// NewPublisher connects to the NATS server at url.
func NewPublisher(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("meshctl"))
	if err != nil {
		return nil, err
	}
	log.Printf("mirror: connected to NATS at %s subject=%s", url, subject)
	return &Publisher{nc: nc, pub: nc, subject: subject}, nil
}

// Subject returns the subject a report from radio is published on.
func (p *Publisher) Subject(radio uint32) string {
	return fmt.Sprintf("%s.%d", p.subject, radio)
}

// PublishStatus encodes st and publishes it.
func (p *Publisher) PublishStatus(st *wire.Status) error {
	data, err := wire.Marshal(wire.Message{Status: st})
	if err != nil {
		return err
	}
	return p.pub.Publish(p.Subject(uint32(st.RadioID)), data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			log.Printf("mirror: drain failed: %v", err)
		}
	}
}
