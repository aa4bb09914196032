package newchat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"atelier/utils"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const maxMessageLen = 2000

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type inboundPayload struct {
	Action  string `json:"action"`            // "chat", "edit", "delete"
	ID      string `json:"id,omitempty"`      // for edit/delete
	Content string `json:"content,omitempty"` // for chat/edit
}

type outboundPayload struct {
	Action    string `json:"action"`
	ID        string `json:"id"`
	Room      string `json:"room,omitempty"`
	SenderID  string `json:"senderId,omitempty"`
	FromStaff bool   `json:"fromStaff,omitempty"`
	Content   string `json:"content,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func chatPayload(m Message) outboundPayload {
	return outboundPayload{
		Action:    "chat",
		ID:        m.MessageID,
		Room:      m.Room,
		SenderID:  m.SenderID,
		FromStaff: m.FromStaff,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
}

// Support is the live help desk: one room per customer, joined by the
// customer and by any staff member.
type Support struct {
	hub   *Hub
	store ChatStore
}

func NewSupport(hub *Hub, store ChatStore) *Support {
	return &Support{hub: hub, store: store}
}

// RoomFor is the support room of a customer.
func RoomFor(userID string) string {
	return "support:" + userID
}

// roomOf picks the room for the request. Staff choose with ?room=, customers
// always land in their own.
func roomOf(r *http.Request) (room string, staff bool) {
	userID := utils.GetUserIDFromRequest(r)
	if utils.HasRole(r, "admin") {
		if q := r.URL.Query().Get("room"); q != "" {
			return q, true
		}
		return RoomFor(userID), true
	}
	return RoomFor(userID), false
}

// GET /api/support/ws
func (s *Support) WebSocketHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	room, staff := roomOf(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade:", err)
		return
	}
	client := &Client{
		Conn:   conn,
		Send:   make(chan []byte, 256),
		Room:   room,
		UserID: userID,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	history, err := s.store.Recent(ctx, room, historySize)
	cancel()
	if err != nil {
		log.Println("history find:", err)
	}
	for _, m := range history {
		if data, err := json.Marshal(chatPayload(m)); err == nil {
			client.Send <- data
		}
	}

	s.hub.Register(client)
	go writePump(client)
	go s.readPump(client, staff)
}

func writePump(c *Client) {
	defer c.Conn.Close()
	for msg := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}

func (s *Support) readPump(c *Client, staff bool) {
	defer func() {
		s.hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(16 << 10)

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}

		var in inboundPayload
		if err := json.Unmarshal(raw, &in); err != nil {
			log.Println("invalid payload:", err)
			continue
		}
		if out, ok := s.apply(c, staff, in); ok {
			if data, err := json.Marshal(out); err == nil {
				s.hub.Broadcast(c.Room, data)
			}
		}
	}
}

// apply persists one inbound action and returns what the room should see.
func (s *Support) apply(c *Client, staff bool, in inboundPayload) (outboundPayload, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	content := strings.TrimSpace(in.Content)
	switch in.Action {
	case "chat":
		if content == "" || len(content) > maxMessageLen {
			return outboundPayload{}, false
		}
		msg := Message{
			MessageID: utils.GenerateRandomDigitString(16),
			Room:      c.Room,
			SenderID:  c.UserID,
			FromStaff: staff,
			Content:   content,
			Timestamp: time.Now().Unix(),
		}
		if err := s.store.Insert(ctx, msg); err != nil {
			log.Println("insert:", err)
			return outboundPayload{}, false
		}
		return chatPayload(msg), true

	case "edit":
		if content == "" || len(content) > maxMessageLen {
			return outboundPayload{}, false
		}
		if err := s.store.Update(ctx, c.UserID, in.ID, content); err != nil {
			log.Println("edit failed:", err)
			return outboundPayload{}, false
		}
		return outboundPayload{Action: "edit", ID: in.ID, Content: content, Timestamp: time.Now().Unix()}, true

	case "delete":
		if err := s.store.Delete(ctx, c.UserID, in.ID); err != nil {
			log.Println("delete failed:", err)
			return outboundPayload{}, false
		}
		return outboundPayload{Action: "delete", ID: in.ID, Timestamp: time.Now().Unix()}, true
	}
	log.Println("unknown action:", in.Action)
	return outboundPayload{}, false
}

// GET /api/support/history?room=
func (s *Support) History(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	room, _ := roomOf(r)
	history, err := s.store.Recent(r.Context(), room, historySize)
	if err != nil {
		log.Printf("history: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if history == nil {
		history = []Message{}
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"room": room, "messages": history})
}

// GET /api/admin/support/rooms
func (s *Support) Rooms(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rooms, err := s.store.Rooms(r.Context(), 50)
	if err != nil {
		log.Printf("rooms: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}
