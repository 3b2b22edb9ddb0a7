// Command feedclient connects to the referral feed websocket and prints the
// messages it receives. Useful against a server running with server.authDebug.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

type feedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	addr := flag.String("url", "ws://localhost:8080/api/v1/ws/referrals", "referral feed url")
	userID := flag.Int64("user", 0, "telegram id to listen as")
	initData := flag.String("init-data", "", "signed init data; built from -user when empty")
	flag.Parse()

	data := *initData
	if data == "" {
		if *userID == 0 {
			log.Fatal("either -user or -init-data is required")
		}
		data = url.Values{
			"auth_date": {strconv.FormatInt(time.Now().Unix(), 10)},
			"user":      {fmt.Sprintf(`{"id":%d}`, *userID)},
		}.Encode()
	}

	header := http.Header{}
	header.Add("Authorization", "Telegram "+data)

	conn, _, err := websocket.DefaultDialer.Dial(*addr, header)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	messageQueue := make(chan []byte)
	go func() {
		defer close(messageQueue)
		for {
			_, p, err := conn.ReadMessage()
			if err != nil {
				log.Println("read error:", err)
				return
			}
			messageQueue <- p
		}
	}()

	for {
		select {
		case <-interrupt:
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case raw, ok := <-messageQueue:
			if !ok {
				return
			}
			var msg feedMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Printf("Received non-JSON message: %s", raw)
				continue
			}
			log.Printf("Received %s: %s", msg.Type, msg.Payload)
		}
	}
}
