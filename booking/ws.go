package booking

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsMessage struct {
	Type string `json:"type"`
	Date string `json:"date"`
}

// Availability pushes "update" messages to clients watching a day so the
// slot picker can refetch.
type Availability struct {
	mu          sync.Mutex
	subscribers map[string][]*websocket.Conn
}

func NewAvailability() *Availability {
	return &Availability{subscribers: make(map[string][]*websocket.Conn)}
}

// HandleWS serves GET /api/slots/ws/:date.
func (a *Availability) HandleWS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	date := ps.ByName("date")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Availability upgrade failed: %v", err)
		return
	}

	a.mu.Lock()
	a.subscribers[date] = append(a.subscribers[date], conn)
	a.mu.Unlock()

	for {
		// keeps the connection open until the client goes away
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	a.mu.Lock()
	conns := a.subscribers[date]
	kept := make([]*websocket.Conn, 0, len(conns))
	for _, c := range conns {
		if c != conn {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(a.subscribers, date)
	} else {
		a.subscribers[date] = kept
	}
	a.mu.Unlock()

	conn.Close()
}

func (a *Availability) Publish(date string) {
	data, _ := json.Marshal(wsMessage{Type: "update", Date: date})

	a.mu.Lock()
	defer a.mu.Unlock()

	conns, ok := a.subscribers[date]
	if !ok {
		return
	}
	kept := conns[:0]
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err == nil {
			kept = append(kept, conn)
		} else {
			conn.Close()
		}
	}
	if len(kept) == 0 {
		delete(a.subscribers, date)
		return
	}
	a.subscribers[date] = kept
}

func (a *Availability) watchers(date string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subscribers[date])
}
