package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/railopt/core/events"
	"github.com/kilianp07/railopt/core/execution"
	"github.com/kilianp07/railopt/core/logger"
	"github.com/kilianp07/railopt/core/model"
	"github.com/kilianp07/railopt/internal/eventbus"
)

// Command is the payload published for each action.
type Command struct {
	CommandID  string       `json:"command_id"`
	ConflictID string       `json:"conflict_id"`
	Action     model.Action `json:"action"`
	Timestamp  int64        `json:"timestamp"`
}

// Ack is the payload expected on the ack topic.
type Ack struct {
	CommandID string `json:"command_id"`
	Accepted  *bool  `json:"accepted,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Executor publishes actions to trains over MQTT and waits for their
// acknowledgment. It implements execution.Executor.
type Executor struct {
	cli pahoClient
	cfg Config
	log logger.Logger
	bus *eventbus.Bus[events.Event]

	mu       sync.Mutex
	ackChans map[string]chan Ack
}

// Option customises an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(e *Executor) { e.log = logger.OrNop(l) } }

// WithEventBus publishes an ExecutionEvent for every acknowledgment.
func WithEventBus(b *eventbus.Bus[events.Event]) Option { return func(e *Executor) { e.bus = b } }

// NewExecutor connects to the broker and subscribes to the ack topic.
func NewExecutor(cfg Config, opts ...Option) (*Executor, error) {
	cfg.SetDefaults()
	popts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	e := &Executor{cfg: cfg, log: logger.Nop{}, ackChans: make(map[string]chan Ack)}
	for _, o := range opts {
		o(e)
	}

	popts.OnConnect = func(c paho.Client) {
		e.log.Infof("MQTT connected")
		if token := c.Subscribe(cfg.AckTopic, cfg.qos("ack"), e.onAck); token.Wait() && token.Error() != nil {
			e.log.Errorf("subscribe error: %v", token.Error())
		}
	}
	popts.OnConnectionLost = func(_ paho.Client, err error) {
		e.log.Errorf("connection lost: %v", err)
	}
	popts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		e.log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(popts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	e.cli = c
	return e, nil
}

func (e *Executor) onAck(_ paho.Client, msg paho.Message) {
	var a Ack
	if err := json.Unmarshal(msg.Payload(), &a); err != nil {
		e.log.Errorf("failed to decode ack: %v", err)
		return
	}
	e.mu.Lock()
	ch, ok := e.ackChans[a.CommandID]
	e.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- a:
	default:
	}
}

// Apply sends every action in order and stops at the first failure.
func (e *Executor) Apply(ctx context.Context, set model.DomainActionSet) error {
	for i, a := range set.Actions {
		if err := e.apply(ctx, set.ConflictID, a); err != nil {
			return &execution.ActionError{Index: i, Action: a, Err: err}
		}
	}
	return nil
}

func (e *Executor) topic(a model.Action) (string, error) {
	switch {
	case a.TrainID != "":
		return fmt.Sprintf(e.cfg.CommandTopic, a.TrainID), nil
	case a.SectionID != "":
		return fmt.Sprintf(e.cfg.SectionTopic, a.SectionID), nil
	}
	return "", fmt.Errorf("action %s has no target", a.Type)
}

func (e *Executor) apply(ctx context.Context, conflictID string, a model.Action) error {
	topic, err := e.topic(a)
	if err != nil {
		return err
	}
	cmd := Command{CommandID: uuid.NewString(), ConflictID: conflictID, Action: a, Timestamp: time.Now().UnixMilli()}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	ch := make(chan Ack, 1)
	e.mu.Lock()
	e.ackChans[cmd.CommandID] = ch
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.ackChans, cmd.CommandID)
		e.mu.Unlock()
	}()

	start := time.Now()
	if err := e.publish(ctx, topic, payload); err != nil {
		e.emit(cmd, conflictID, false, err, time.Since(start))
		return err
	}
	e.log.Infof("sent %s command %s to %s", a.Type, cmd.CommandID, topic)

	timer := time.NewTimer(e.cfg.AckTimeout)
	defer timer.Stop()
	select {
	case ack := <-ch:
		if ack.Accepted != nil && !*ack.Accepted {
			err = fmt.Errorf("%w: %s", execution.ErrRejected, ack.Reason)
		}
	case <-timer.C:
		err = execution.ErrAckTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}
	e.emit(cmd, conflictID, err == nil, err, time.Since(start))
	return err
}

func (e *Executor) publish(ctx context.Context, topic string, payload []byte) error {
	backoff := time.Duration(e.cfg.BackoffMS) * time.Millisecond
	var err error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		token := e.cli.Publish(topic, e.cfg.qos("command"), false, payload)
		token.Wait()
		if err = token.Error(); err == nil {
			return nil
		}
		e.log.Errorf("publish attempt %d failed: %v", attempt+1, err)
		if attempt == e.cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(backoff * time.Duration(1<<attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (e *Executor) emit(cmd Command, conflictID string, ok bool, err error, latency time.Duration) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.ExecutionEvent{
		CommandID:    cmd.CommandID,
		ConflictID:   conflictID,
		TrainID:      cmd.Action.TrainID,
		Action:       cmd.Action.Type,
		Acknowledged: ok,
		Err:          err,
		Latency:      latency,
	})
}

// Disconnect gracefully closes the MQTT connection.
func (e *Executor) Disconnect() {
	if e.cli != nil && e.cli.IsConnected() {
		e.cli.Disconnect(250)
	}
}
