package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "", "listen address (overrides config)")
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "sky-sentry",
	})

	cfg, err := loadServerConfig(*configPath)
	if err != nil {
		logger.Fatal("bad config", "err", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	hub := newHub(cfg, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.RunSimulation(ctx)

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	http.HandleFunc("/join", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		join := hub.Join()
		data, err := json.Marshal(join)
		if err != nil {
			http.Error(w, "failed to encode", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		actorID := r.URL.Query().Get("id")
		if actorID == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("upgrade failed", "actor", actorID, "err", err)
			return
		}
		_, ok := hub.Subscribe(actorID, conn)
		if !ok {
			msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown actor")
			conn.WriteMessage(websocket.CloseMessage, msg)
			conn.Close()
			return
		}
		go readLoop(hub, actorID, conn)
	})

	logger.Info("listening", "addr", cfg.Addr, "tickRate", cfg.TickRate)
	if err := http.ListenAndServe(cfg.Addr, nil); err != nil {
		logger.Fatal("server stopped", "err", err)
	}
}

// readLoop pumps one actor's inbound messages until the connection drops.
func readLoop(hub *Hub, actorID string, conn *websocket.Conn) {
	defer hub.Disconnect(actorID)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if event := hub.HandleClientMessage(actorID, msg); event != nil {
			hub.sendEvent(actorID, *event)
		}
	}
}
