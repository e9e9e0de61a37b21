package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type requestPayload struct {
	RequestID string  `json:"request_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func main() {
	brokerAddr := flag.String("broker", "tcp://localhost:1883", "MQTT broker address, e.g. tcp://localhost:1883")
	prefix := flag.String("prefix", "geocache", "Topic prefix used by the location server")
	clientName := flag.String("client", "sim-device-1", "Device name used in request and reply topics")
	lat := flag.Float64("lat", 31.7683, "Centre latitude of simulated positions")
	lon := flag.Float64("lon", 35.2137, "Centre longitude of simulated positions")
	jitter := flag.Float64("jitter", 0.01, "Maximum random offset in degrees applied to each position")
	interval := flag.Duration("interval", 5*time.Second, "Interval between published requests")
	elevation := flag.Bool("elevation", true, "Also request the elevation of each position")

	flag.Parse()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	clientID := fmt.Sprintf("%s-simulator-%d", *clientName, time.Now().UnixNano())
	opts := mqtt.NewClientOptions().AddBroker(*brokerAddr).SetClientID(clientID)
	opts = opts.SetOrderMatters(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("failed to connect to broker: %v", token.Error())
	}
	log.Printf("connected to MQTT broker %s as %s", *brokerAddr, clientID)

	replies := map[string]byte{
		fmt.Sprintf("%s/resolved/%s", *prefix, *clientName): 1,
		fmt.Sprintf("%s/elevated/%s", *prefix, *clientName): 1,
	}
	token := client.SubscribeMultiple(replies, func(_ mqtt.Client, msg mqtt.Message) {
		log.Printf("reply on %s: %s", msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		log.Fatalf("failed to subscribe to replies: %v", token.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	send := func(kind string, payload requestPayload) {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("failed to encode payload: %v", err)
			return
		}

		topic := fmt.Sprintf("%s/%s/%s", *prefix, kind, *clientName)
		token := client.Publish(topic, 1, false, data)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("publish error: %v", err)
			return
		}
		log.Printf("published %s id=%s lat=%.5f lon=%.5f", topic, payload.RequestID, payload.Latitude, payload.Longitude)
	}

	publish := func() {
		payload := requestPayload{
			RequestID: uuid.NewString(),
			Latitude:  *lat + offset(rng, *jitter),
			Longitude: *lon + offset(rng, *jitter),
		}
		send("resolve", payload)
		if *elevation {
			payload.RequestID = uuid.NewString()
			send("elevation", payload)
		}
	}

	publish()

	for {
		select {
		case <-ctx.Done():
			log.Print("received shutdown signal, disconnecting")
			client.Disconnect(250)
			return
		case <-ticker.C:
			publish()
		}
	}
}

func offset(rng *rand.Rand, jitter float64) float64 {
	if jitter <= 0 {
		return 0
	}
	return (rng.Float64()*2 - 1) * jitter
}
