package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	http_adapter "github.com/pedromedina19/hermes-bridge/internal/adapters/primary/http"
)

func main() {
	mode := flag.String("mode", "history", "Mode: 'pub', 'history', 'peek' or 'watch'")
	api := flag.String("api", "http://localhost:5000", "Bridge HTTP address")
	broker := flag.String("broker", "tcp://test.mosquitto.org:1883", "MQTT broker (pub)")
	topic := flag.String("topic", "data/ESP32", "Topic")
	msgContent := flag.String("msg", "Hello Hermes", "content (pub)")
	count := flag.Int("count", 1, "Qty (pub)")
	interval := flag.Duration("interval", 100*time.Millisecond, "Delay between messages (pub)")
	flag.Parse()

	switch *mode {
	case "pub":
		runPublisher(*broker, *topic, *msgContent, *count, *interval)
	case "history":
		runHistory(*api)
	case "peek":
		runPeek(*api, *topic)
	case "watch":
		runWatch(*api)
	default:
		log.Fatalf("Unknown mode %q", *mode)
	}
}

func printRecord(m http_adapter.MessageView) {
	fmt.Printf("%s — %s: %s\n", m.TS, m.Topic, m.Msg)
}

func getJSON(rawURL string, into any) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(rawURL)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Unexpected status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		log.Fatalf("Invalid response: %v", err)
	}
}

func runPublisher(broker, topic, content string, count int, interval time.Duration) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("hermes-cli-" + uuid.NewString()[:8]).
		SetConnectTimeout(10 * time.Second)
	client := paho.NewClient(opts)

	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		log.Fatalf("Did not connect: %v", tok.Error())
	}
	defer client.Disconnect(250)

	for i := 0; i < count; i++ {
		payload := fmt.Sprintf("%s - Seq %d", content, i+1)

		tok := client.Publish(topic, 0, false, payload)
		tok.Wait()
		if err := tok.Error(); err != nil {
			log.Printf("Error publishing: %v", err)
		} else {
			log.Printf("Published to [%s]: %s", topic, payload)
		}
		time.Sleep(interval)
	}
}

func runHistory(api string) {
	var resp http_adapter.HistoryResponse
	getJSON(strings.TrimRight(api, "/")+"/api/mqtt", &resp)

	if len(resp.Mensajes) == 0 {
		fmt.Println("No messages yet")
		return
	}
	for _, m := range resp.Mensajes {
		printRecord(m)
	}
}

func runPeek(api, topic string) {
	var resp http_adapter.MessageView
	getJSON(strings.TrimRight(api, "/")+"/api/peek?topic="+url.QueryEscape(topic), &resp)

	if resp.Topic == "" {
		fmt.Printf("No reading available yet for %s\n", topic)
		return
	}
	printRecord(resp)
}

func runWatch(api string) {
	u, err := url.Parse(strings.TrimRight(api, "/") + "/api/stream")
	if err != nil {
		log.Fatalf("Invalid api address: %v", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	log.Printf("🎧 Watching %s ...", u.String())
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Did not connect: %v", err)
	}
	defer conn.Close()

	for {
		var m http_adapter.MessageView
		if err := conn.ReadJSON(&m); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("Stream closed by server")
				return
			}
			log.Fatalf("Stream receive error: %v", err)
		}
		printRecord(m)
	}
}
