package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"geocache/location-server/internal/metrics"
	"geocache/location-server/internal/model"
)

const (
	mqttResolveTopic   = "resolve"
	mqttElevationTopic = "elevation"
	mqttResolvedTopic  = "resolved"
	mqttElevatedTopic  = "elevated"
)

// locationRequest is the payload of resolve and elevation requests.
type locationRequest struct {
	RequestID string  `json:"request_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Refresh   bool    `json:"refresh,omitempty"`
}

type resolveReply struct {
	RequestID string      `json:"request_id"`
	Status    string      `json:"status"`
	Kind      model.Kind  `json:"kind,omitempty"`
	Place     model.Place `json:"place,omitempty"`
	Error     string      `json:"error,omitempty"`
}

type elevationReply struct {
	RequestID string                 `json:"request_id"`
	Status    string                 `json:"status"`
	Sample    *model.ElevationSample `json:"sample,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// mqttClientID is the configured client id, or a fresh one per process so
// several servers can share a broker.
func (a *App) mqttClientID() string {
	if a.cfg.MQTTClientID != "" {
		return a.cfg.MQTTClientID
	}
	return "geocache-" + uuid.NewString()
}

func (a *App) startMQTT() error {
	clientID := a.mqttClientID()

	opts := mqtt.NewClientOptions().AddBroker(a.cfg.MQTTBroker).SetClientID(clientID)
	opts = opts.SetOrderMatters(false).SetAutoReconnect(true).SetConnectRetry(true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		filters := map[string]byte{
			a.topic(mqttResolveTopic, "+"):   1,
			a.topic(mqttElevationTopic, "+"): 1,
		}
		token := c.SubscribeMultiple(filters, a.onMQTTMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			a.logger.Error("mqtt subscribe failed", "error", err)
			return
		}
		a.logger.Info("mqtt subscribed", "prefix", a.cfg.MQTTTopicPrefix)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		a.logger.Warn("mqtt connection lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// Connect keeps retrying in the background.
		a.logger.Warn("mqtt broker not reachable yet, retrying", "broker", a.cfg.MQTTBroker)
	} else if err := token.Error(); err != nil {
		return fmt.Errorf("connect mqtt broker: %w", err)
	}

	a.mqtt = client
	a.logger.Info("mqtt bridge started", "broker", a.cfg.MQTTBroker, "client_id", clientID)
	return nil
}

func (a *App) stopMQTT() {
	if a.mqtt == nil {
		return
	}
	a.mqtt.Disconnect(250)
	a.logger.Info("mqtt bridge stopped")
	a.mqtt = nil
}

func (a *App) topic(parts ...string) string {
	return strings.Join(append([]string{a.cfg.MQTTTopicPrefix}, parts...), "/")
}

func (a *App) onMQTTMessage(c mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	replyTopic, payload, ok := a.handleMQTTRequest(ctx, msg.Topic(), msg.Payload())
	if !ok {
		return
	}

	token := c.Publish(replyTopic, 1, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		a.logger.Error("mqtt reply failed", "topic", replyTopic, "error", err)
	}
}

// handleMQTTRequest answers a request published on
// <prefix>/{resolve,elevation}/<client>. It returns the reply topic and
// payload, or false when the topic is not a request topic.
func (a *App) handleMQTTRequest(ctx context.Context, topic string, payload []byte) (string, []byte, bool) {
	rest, found := strings.CutPrefix(topic, a.cfg.MQTTTopicPrefix+"/")
	if !found {
		return "", nil, false
	}
	kind, client, found := strings.Cut(rest, "/")
	if !found || client == "" || strings.Contains(client, "/") {
		return "", nil, false
	}

	var req locationRequest
	decodeErr := json.Unmarshal(payload, &req)
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	c := model.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude}

	var reply any
	var replyTopic string
	switch kind {
	case mqttResolveTopic:
		replyTopic = a.topic(mqttResolvedTopic, client)
		reply = a.mqttResolve(ctx, req, c, decodeErr)
	case mqttElevationTopic:
		replyTopic = a.topic(mqttElevatedTopic, client)
		reply = a.mqttElevation(ctx, req, c, decodeErr)
	default:
		return "", nil, false
	}

	data, err := json.Marshal(reply)
	if err != nil {
		a.logger.Error("mqtt reply encode failed", "topic", replyTopic, "error", err)
		return "", nil, false
	}
	return replyTopic, data, true
}

func (a *App) mqttResolve(ctx context.Context, req locationRequest, c model.Coordinate, decodeErr error) resolveReply {
	reply := resolveReply{RequestID: req.RequestID}
	if decodeErr != nil {
		a.logger.Warn("mqtt payload decode failed", "error", decodeErr)
		metrics.MQTTMessagesTotal.WithLabelValues("resolve", "invalid").Inc()
		reply.Status, reply.Error = "invalid", "decode payload: "+decodeErr.Error()
		return reply
	}

	place, err := a.resolver.Resolve(ctx, c)
	switch {
	case errors.Is(err, model.ErrInvalidCoordinate):
		metrics.MQTTMessagesTotal.WithLabelValues("resolve", "invalid").Inc()
		reply.Status, reply.Error = "invalid", err.Error()
	case err != nil:
		metrics.MQTTMessagesTotal.WithLabelValues("resolve", "error").Inc()
		reply.Status, reply.Error = "error", err.Error()
	case place == nil:
		metrics.MQTTMessagesTotal.WithLabelValues("resolve", "unresolved").Inc()
		reply.Status = "unresolved"
	default:
		metrics.MQTTMessagesTotal.WithLabelValues("resolve", "resolved").Inc()
		reply.Status, reply.Kind, reply.Place = "resolved", place.Kind(), place
	}
	return reply
}

func (a *App) mqttElevation(ctx context.Context, req locationRequest, c model.Coordinate, decodeErr error) elevationReply {
	reply := elevationReply{RequestID: req.RequestID}
	if decodeErr != nil {
		a.logger.Warn("mqtt payload decode failed", "error", decodeErr)
		metrics.MQTTMessagesTotal.WithLabelValues("elevation", "invalid").Inc()
		reply.Status, reply.Error = "invalid", "decode payload: "+decodeErr.Error()
		return reply
	}

	var (
		sample model.ElevationSample
		ok     bool
		err    error
	)
	if req.Refresh {
		sample, ok, err = a.resolver.RefreshElevation(ctx, c)
	} else {
		sample, ok, err = a.resolver.Elevation(ctx, c)
	}
	switch {
	case err != nil:
		metrics.MQTTMessagesTotal.WithLabelValues("elevation", "invalid").Inc()
		reply.Status, reply.Error = "invalid", err.Error()
	case !ok:
		metrics.MQTTMessagesTotal.WithLabelValues("elevation", "unknown").Inc()
		reply.Status = "unknown"
	default:
		metrics.MQTTMessagesTotal.WithLabelValues("elevation", "ok").Inc()
		reply.Status, reply.Sample = "ok", &sample
	}
	return reply
}
