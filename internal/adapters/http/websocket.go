package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/civicconnect/internal/adapters/nats"
	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/pkg/metrics"
)

const wsSubjectLocal = "ws_subject"

// wsMessage is sent by administrators to switch the department they follow.
type wsMessage struct {
	Action     string `json:"action"`     // "follow"
	Department string `json:"department"` // "" = all departments
}

// WebSocketUpgrade checks the upgrade and picks the feed subject from the
// session: officers follow their department, administrators everything.
func WebSocketUpgrade(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if deps.NATS == nil {
			return errUnavailable(c, "event feed not available")
		}
		p := principal(c)
		subject := natsadapter.AllDepartmentsSubject
		if p.Role != domain.RoleAdmin {
			subject = natsadapter.DepartmentSubject(p.Department)
		}
		c.Locals(wsSubjectLocal, subject)
		c.Locals("is_admin", p.Role == domain.RoleAdmin)
		return c.Next()
	}
}

// WebSocketHandler relays department issue events to a connected client as
// protojson documents.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		log := slog.Default().With("remote", remoteAddr)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		writeRaw := func(data []byte) error {
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			return writeRaw(data)
		}

		relay := func(msg *nats.Msg) {
			doc, err := natsadapter.EventJSON(msg.Data)
			if err != nil {
				log.Warn("ws drop undecodable event", "subject", msg.Subject, "error", err)
				return
			}
			_ = writeRaw(doc)
		}

		subject, _ := c.Locals(wsSubjectLocal).(string)
		sub, err := nc.Subscribe(subject, relay)
		if err != nil {
			log.Error("ws subscribe failed", "subject", subject, "error", err)
			return
		}
		log.Info("ws client connected", "subject", subject)

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		isAdmin, _ := c.Locals("is_admin").(bool)
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			if m.Action != "follow" {
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
				continue
			}
			if !isAdmin {
				_ = writeJSON(map[string]string{"error": "officers follow their own department"})
				continue
			}

			next := natsadapter.AllDepartmentsSubject
			if m.Department != "" {
				next = natsadapter.DepartmentSubject(m.Department)
			}
			s, err := nc.Subscribe(next, relay)
			if err != nil {
				_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
				continue
			}
			_ = sub.Unsubscribe()
			sub = s
			_ = writeJSON(map[string]string{"status": "following", "subject": next})
		}

		close(done)
		_ = sub.Unsubscribe()
		log.Info("ws client disconnected")
	}
}
