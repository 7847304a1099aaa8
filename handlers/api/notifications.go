package api

import (
	"bufio"
	"sync"
	"time"

	"maildash/middleware"
	"maildash/utils"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// Notification is a success notice pushed to the user's open pages
type Notification struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type"` // "classified", "summary", "draft", ...
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
	Time    time.Time              `json:"time"`
}

type subscriber struct {
	userID string
	ch     chan Notification
}

// NotificationHandler fans notifications out to SSE and websocket clients.
// It implements store.Notifier.
type NotificationHandler struct {
	log         *utils.Logger
	subscribers map[string]subscriber
	mu          sync.RWMutex
	keepAlive   time.Duration
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(log *utils.Logger) *NotificationHandler {
	return &NotificationHandler{
		log:         log,
		subscribers: make(map[string]subscriber),
		keepAlive:   30 * time.Second,
	}
}

func (h *NotificationHandler) subscribe(userID string) (string, chan Notification) {
	id := uuid.New().String()
	ch := make(chan Notification, 10)

	h.mu.Lock()
	h.subscribers[id] = subscriber{userID: userID, ch: ch}
	h.mu.Unlock()

	h.log.Info("subscriber connected: %s (user %s)", id, userID)
	return id, ch
}

func (h *NotificationHandler) unsubscribe(id string) {
	h.mu.Lock()
	if sub, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(sub.ch)
	}
	h.mu.Unlock()

	h.log.Info("subscriber disconnected: %s", id)
}

// Subscribers returns the number of open streams for userID
func (h *NotificationHandler) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, sub := range h.subscribers {
		if sub.userID == userID {
			n++
		}
	}
	return n
}

// HandleSSE streams the caller's notifications as Server-Sent Events
func (h *NotificationHandler) HandleSSE(c *fiber.Ctx) error {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return utils.UnauthorizedError("Not logged in", nil)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	id, messages := h.subscribe(sess.UserID)
	done := c.Context().Done()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.unsubscribe(id)

		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()

		w.WriteString(": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case n, ok := <-messages:
				if !ok {
					return
				}
				data, err := json.Marshal(n)
				if err != nil {
					h.log.Error("failed to encode notification: %v", err)
					continue
				}
				w.WriteString("event: " + n.Type + "\n")
				w.WriteString("data: " + string(data) + "\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-ticker.C:
				w.WriteString(": keepalive\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-done:
				return
			}
		}
	}))

	return nil
}

// Upgrade rejects non-websocket requests to the websocket route
func (h *NotificationHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return utils.UnauthorizedError("Not logged in", nil)
	}
	c.Locals("ws_user", sess.UserID)
	return c.Next()
}

// HandleWebSocket pushes the caller's notifications as JSON frames
func (h *NotificationHandler) HandleWebSocket(c *websocket.Conn) {
	userID, _ := c.Locals("ws_user").(string)
	id, messages := h.subscribe(userID)

	defer func() {
		h.unsubscribe(id)
		c.Close()
	}()

	// reader loop only notices the close frame
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case n, ok := <-messages:
			if !ok {
				return
			}
			if err := c.WriteJSON(n); err != nil {
				h.log.Error("failed to send websocket notification: %v", err)
				return
			}
		case <-closed:
			return
		}
	}
}

// Notify sends a notification to every open stream of userID. Full
// subscriber buffers drop the message.
func (h *NotificationHandler) Notify(userID, kind, message string, data map[string]interface{}) {
	n := Notification{
		ID:      uuid.New().String(),
		Type:    kind,
		Message: message,
		Data:    data,
		Time:    time.Now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for id, sub := range h.subscribers {
		if sub.userID != userID {
			continue
		}
		select {
		case sub.ch <- n:
			sent++
		default:
			h.log.Warn("notification channel full for subscriber %s", id)
		}
	}
	h.log.Debug("notification %s for %s sent to %d subscribers", kind, userID, sent)
}
