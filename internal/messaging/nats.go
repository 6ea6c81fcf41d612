// Package messaging provides a NATS client wrapper for pub/sub messaging
// between the PeerFuse gateway and the matcher service. It handles connection
// lifecycle, subject-based subscriptions, and convenience methods for the
// search and pairing channels.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used across PeerFuse services.
const (
	SubjectMatchSearch    = "match.search"
	SubjectMatchNext      = "match.next"
	SubjectMatchReject    = "match.reject"
	SubjectMatchReset     = "match.reset"
	SubjectMatchResult    = "match.result"    // + .<user_id>
	SubjectPairingRequest = "pairing.request"
	SubjectPairingAccept  = "pairing.accept"
	SubjectPairingDecline = "pairing.decline"
	SubjectPairingNotify  = "pairing.notify" // + .<user_id> (lifecycle events)
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "peerfuse",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// PublishSearchRequest publishes a search request from the gateway.
func (c *NATSClient) PublishSearchRequest(data []byte) error {
	return c.Publish(SubjectMatchSearch, data)
}

// SubscribeSearchRequest subscribes to search requests from gateways.
func (c *NATSClient) SubscribeSearchRequest(handler func(data []byte)) error {
	return c.Subscribe(SubjectMatchSearch, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishNextRequest publishes a next-candidate request from the gateway.
func (c *NATSClient) PublishNextRequest(data []byte) error {
	return c.Publish(SubjectMatchNext, data)
}

// SubscribeNextRequest subscribes to next-candidate requests from gateways.
func (c *NATSClient) SubscribeNextRequest(handler func(data []byte)) error {
	return c.Subscribe(SubjectMatchNext, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishRejectRequest publishes a rejection request from the gateway.
func (c *NATSClient) PublishRejectRequest(data []byte) error {
	return c.Publish(SubjectMatchReject, data)
}

// SubscribeRejectRequest subscribes to rejection requests from gateways.
func (c *NATSClient) SubscribeRejectRequest(handler func(data []byte)) error {
	return c.Subscribe(SubjectMatchReject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishResetRequest publishes a search-reset request from the gateway.
func (c *NATSClient) PublishResetRequest(data []byte) error {
	return c.Publish(SubjectMatchReset, data)
}

// SubscribeResetRequest subscribes to search-reset requests from gateways.
func (c *NATSClient) SubscribeResetRequest(handler func(data []byte)) error {
	return c.Subscribe(SubjectMatchReset, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishMatchResult publishes ranked search results to a specific user.
func (c *NATSClient) PublishMatchResult(userID string, data []byte) error {
	return c.Publish(SubjectMatchResult+"."+userID, data)
}

// SubscribeMatchResult subscribes to ranked search results for a user.
func (c *NATSClient) SubscribeMatchResult(userID string, handler func(data []byte)) error {
	subject := SubjectMatchResult + "." + userID
	return c.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// UnsubscribeMatchResult unsubscribes from a user's result subject.
func (c *NATSClient) UnsubscribeMatchResult(userID string) error {
	return c.unsubscribe(SubjectMatchResult + "." + userID)
}

// PublishPairingRequest publishes a pairing proposal from the gateway.
func (c *NATSClient) PublishPairingRequest(data []byte) error {
	return c.Publish(SubjectPairingRequest, data)
}

// SubscribePairingRequest subscribes to pairing proposals.
func (c *NATSClient) SubscribePairingRequest(handler func(data []byte)) error {
	return c.Subscribe(SubjectPairingRequest, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishPairingAccept publishes a pairing acceptance.
func (c *NATSClient) PublishPairingAccept(data []byte) error {
	return c.Publish(SubjectPairingAccept, data)
}

// SubscribePairingAccept subscribes to pairing acceptances.
func (c *NATSClient) SubscribePairingAccept(handler func(data []byte)) error {
	return c.Subscribe(SubjectPairingAccept, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishPairingDecline publishes a pairing decline.
func (c *NATSClient) PublishPairingDecline(data []byte) error {
	return c.Publish(SubjectPairingDecline, data)
}

// SubscribePairingDecline subscribes to pairing declines.
func (c *NATSClient) SubscribePairingDecline(handler func(data []byte)) error {
	return c.Subscribe(SubjectPairingDecline, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishPairingNotify publishes a pairing lifecycle event to a user.
func (c *NATSClient) PublishPairingNotify(userID string, data []byte) error {
	return c.Publish(SubjectPairingNotify+"."+userID, data)
}

// SubscribePairingNotify subscribes to pairing lifecycle events for a user.
func (c *NATSClient) SubscribePairingNotify(userID string, handler func(data []byte)) error {
	subject := SubjectPairingNotify + "." + userID
	return c.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// UnsubscribePairingNotify unsubscribes from a user's pairing events.
func (c *NATSClient) UnsubscribePairingNotify(userID string) error {
	return c.unsubscribe(SubjectPairingNotify + "." + userID)
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes from a specific subject.
func (c *NATSClient) unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}
