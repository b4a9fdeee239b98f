package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/ctr-sensor/internal/logic"
)

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics

	mu      sync.Mutex
	buf     *ringBuffer
	control func(Command)
	online  bool // set by onConnect, cleared on connection loss
}

// NewRealPublisher creates a publisher for the given broker. If the broker is
// not reachable within the connect timeout the publisher is still returned:
// the client keeps retrying in the background and publishes are buffered.
func NewRealPublisher(broker, clientID string, topics Topics) (*RealPublisher, error) {
	p := &RealPublisher{
		topics: topics,
		buf:    newRingBuffer(bufferCapacity),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(topics.System, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.markOffline()
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: %s not reachable yet, buffering until connected", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// onConnect replays buffered messages and restores the control subscription.
// paho calls it on its own goroutine after every (re)connect, so tokens are
// not waited on here.
func (p *RealPublisher) onConnect(c paho.Client) {
	msgs, dropped, control := p.markOnline()

	if len(msgs) > 0 || dropped > 0 {
		log.Printf("mqtt: connected, replaying %d buffered messages (%d dropped)", len(msgs), dropped)
	} else {
		log.Printf("mqtt: connected")
	}
	for _, m := range msgs {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}

	if control != nil {
		p.subscribe(control)
	}
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// Publish sends a channel event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: p.topics.Events, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) so lifecycle events survive a flaky link
	return p.send(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

// SubscribeControl registers handler for threshold commands. The subscription
// is renewed on every reconnect.
//
// Exactly one of SubscribeControl and onConnect subscribes for a given
// connection: both decide under p.mu, and onConnect only sees the handler if
// it was registered before it marked the connection online.
func (p *RealPublisher) SubscribeControl(handler func(Command)) error {
	if p.registerControl(handler) {
		p.subscribe(handler)
	}
	return nil
}

// markOnline drains the buffer and returns the control handler that the new
// connection must subscribe, if any.
func (p *RealPublisher) markOnline() ([]bufferedMsg, int, func(Command)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs, dropped := p.buf.drainAll()
	p.online = true
	return msgs, dropped, p.control
}

// registerControl stores handler and reports whether the caller must
// subscribe it now.
func (p *RealPublisher) registerControl(handler func(Command)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.control = handler
	return p.online
}

func (p *RealPublisher) markOffline() {
	p.mu.Lock()
	p.online = false
	p.mu.Unlock()
}

func (p *RealPublisher) subscribe(handler func(Command)) {
	token := p.client.Subscribe(p.topics.Control, 1, func(_ paho.Client, m paho.Message) {
		cmd, err := ParseCommand(m.Payload())
		if err != nil {
			log.Printf("mqtt: bad control message on %s: %v", m.Topic(), err)
			return
		}
		handler(cmd)
	})
	// Don't block paho's connect goroutine; the result is logged.
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("mqtt: subscribe %s: %v", p.topics.Control, err)
		}
	}()
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
