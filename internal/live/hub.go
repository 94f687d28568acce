// Package live раздает обновления хода записи по WebSocket.
// Клиент подписывается на конкретную запись и получает событие
// после каждого принятого батча.
package live

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/srwicak/unastelemed/internal/recording"
)

// Hub управляет WebSocket соединениями
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Канал для регистрации клиентов
	register chan *Client

	// Канал для отмены регистрации клиентов
	unregister chan *Client

	// Канал исходящих событий
	broadcast chan event

	// Мютекс для безопасной работы с картой клиентов
	mu sync.RWMutex

	done chan struct{}
}

// Client представляет WebSocket клиента
type Client struct {
	hub *Hub

	// WebSocket соединение
	conn *websocket.Conn

	// Буферизованный канал исходящих сообщений
	send chan []byte

	// ID записи для фильтрации событий
	recordingID int64
}

type event struct {
	recordingID int64
	payload     []byte
}

// IngestEvent представляет событие приема батча для фронтенда
type IngestEvent struct {
	Type          string    `json:"type"`
	RecordingID   int64     `json:"recording_id"`
	SessionID     string    `json:"session_id"`
	BatchSequence int64     `json:"batch_sequence"`
	SamplesCount  int       `json:"samples_count"`
	TotalSamples  int64     `json:"total_samples"`
	IsDuplicate   bool      `json:"is_duplicate"`
	Status        string    `json:"status"`
	ReceivedAt    time.Time `json:"received_at"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене следует проверять домен
		return true
	},
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan event, 64),
		done:       make(chan struct{}),
	}
}

// Run запускает Hub
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			// Освобождаем writePump'ы оставшихся клиентов
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[WEBSOCKET] Client registered: %p, recording: %d", client, client.recordingID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("[WEBSOCKET] Client unregistered: %p", client)

		case ev := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.recordingID != ev.recordingID {
					continue
				}
				select {
				case client.send <- ev.payload:
				default:
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop останавливает Hub
func (h *Hub) Stop() {
	close(h.done)
}

// OnIngest реализует recording.ProgressSink: рассылает событие
// приема батча подписчикам записи
func (h *Hub) OnIngest(rec *recording.Recording, res *recording.IngestResult) {
	ev := IngestEvent{
		Type:          "batch_received",
		RecordingID:   rec.ID,
		SessionID:     rec.SessionID,
		BatchSequence: res.BatchSequence,
		SamplesCount:  res.SamplesCount,
		TotalSamples:  rec.TotalSamples,
		IsDuplicate:   res.IsDuplicate,
		Status:        string(rec.Status),
		ReceivedAt:    time.Now(),
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal ingest event: %v", err)
		return
	}

	select {
	case h.broadcast <- event{recordingID: rec.ID, payload: payload}:
	default:
		log.Printf("[WARN] Broadcast channel full, dropping message")
	}
}

// RegisterRoutes регистрирует маршруты в роутере
func (h *Hub) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/recordings/{id}", h.HandleWebSocket)
}

// HandleWebSocket обрабатывает WebSocket соединения
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	recordingID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid recording id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ERROR] Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, 256),
		recordingID: recordingID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Запускаем горутины для клиента
	go client.writePump()
	go client.readPump()
}

// disconnect снимает клиента с регистрации. После остановки Hub цикл
// Run канал уже не читает, выход происходит по done.
func (c *Client) disconnect() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// readPump обрабатывает входящие сообщения от клиента
func (c *Client) readPump() {
	defer func() {
		c.disconnect()
		c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ERROR] WebSocket error: %v", err)
			}
			break
		}
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("[ERROR] Failed to write message: %v", err)
			return
		}
	}

	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
