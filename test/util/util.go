// Package util holds the container and broker helpers shared by the
// integration and end to end tests.
package util

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/railopt/infra/mqtt"
)

const (
	BrokerReadyTimeout = 5 * time.Second
	MetricTimeout      = 10 * time.Second

	pollInterval = 50 * time.Millisecond
)

// mosquittoConf accepts anonymous clients; the executor under test brings
// no credentials.
const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
connection_messages true
`

// StartBroker runs a throwaway Mosquitto container for cfg and returns cfg
// with Broker pointing at it and the topic defaults filled in. The returned
// function stops the container.
func StartBroker(ctx context.Context, cfg mqtt.Config) (mqtt.Config, func(), error) {
	dir, err := os.MkdirTemp("", "railopt-mosquitto")
	if err != nil {
		return cfg, nil, err
	}
	path := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(path, []byte(mosquittoConf), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return cfg, nil, err
	}

	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:2.0",
			ExposedPorts: []string{"1883/tcp"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
			Files: []tc.ContainerFile{{
				HostFilePath:      path,
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0o644,
			}},
		},
		Started: true,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return cfg, nil, err
	}
	cleanup := func() {
		_ = cont.Terminate(context.Background())
		_ = os.RemoveAll(dir)
	}

	endpoint, err := cont.PortEndpoint(ctx, "1883/tcp", "tcp")
	if err != nil {
		cleanup()
		return cfg, nil, err
	}
	cfg.Broker = endpoint
	cfg.SetDefaults()

	waitCtx, cancel := context.WithTimeout(ctx, BrokerReadyTimeout)
	defer cancel()
	if err := waitForBroker(waitCtx, cfg); err != nil {
		cleanup()
		return cfg, nil, fmt.Errorf("broker %s not ready: %w", cfg.Broker, err)
	}
	return cfg, cleanup, nil
}

// connect opens a side client on cfg's broker under its own client id.
func connect(cfg mqtt.Config, suffix string) (paho.Client, error) {
	cfg.ClientID = cfg.ClientID + "-" + suffix
	cfg.LWTTopic = ""
	opts, err := mqtt.NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}

func waitForBroker(ctx context.Context, cfg mqtt.Config) error {
	for {
		cli, err := connect(cfg, "ready")
		if err == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ctx.Err(), err)
		case <-time.After(pollInterval):
		}
	}
}

// StartAckResponder plays the trains and sections addressed by cfg: every
// command published on the train or section topics is accepted on the ack
// topic. The returned function disconnects the responder.
func StartAckResponder(cfg mqtt.Config) (func(), error) {
	cfg.SetDefaults()
	cli, err := connect(cfg, "trains")
	if err != nil {
		return nil, err
	}
	accepted := true
	handler := func(c paho.Client, msg paho.Message) {
		var cmd mqtt.Command
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			return
		}
		ack, _ := json.Marshal(mqtt.Ack{CommandID: cmd.CommandID, Accepted: &accepted})
		c.Publish(cfg.AckTopic, 1, false, ack)
	}
	filters := map[string]byte{
		topicFilter(cfg.CommandTopic): 1,
		topicFilter(cfg.SectionTopic): 1,
	}
	if token := cli.SubscribeMultiple(filters, handler); token.Wait() && token.Error() != nil {
		cli.Disconnect(100)
		return nil, token.Error()
	}
	return func() { cli.Disconnect(100) }, nil
}

// topicFilter turns a per-id topic format into a single level wildcard.
func topicFilter(format string) string {
	return strings.ReplaceAll(format, "%s", "+")
}

// WaitForMetric polls a Prometheus endpoint until its exposition contains
// substr.
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, metricsURL, nil)
		if err != nil {
			return err
		}
		if resp, err := http.DefaultClient.Do(req); err == nil {
			body, rerr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if rerr != nil {
				return fmt.Errorf("read metrics body: %w", rerr)
			}
			if strings.Contains(string(body), substr) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("metric %q not found: %w", substr, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}
