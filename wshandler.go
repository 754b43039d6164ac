package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cablebotics/gocablebot/comms"
)

// writeWait bounds every delivery so one backpressured peer cannot stall the
// hub's fan-out; a timed-out write errors and the hub drops that client.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsClient adapts a websocket connection to the hub's delivery interface.
// Gorilla allows one concurrent writer, so pushes and responses share a lock.
type wsClient struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{conn: conn, timeout: writeWait}
}

func (c *wsClient) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *wsClient) Close() error {
	return c.conn.Close()
}

// RobotHandler serves one client session: register, then process commands
// strictly in arrival order until the connection dies. Disconnection only
// touches hub bookkeeping; the robot keeps whatever state it had.
func RobotHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print("upgrade:", err)
		return
	}

	client := newWSClient(conn)
	ENV.Hub.Register(client)
	defer func() {
		ENV.Hub.Unregister(client)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Println("read:", err)
			break
		}

		var cmd comms.Cmd
		if err := json.Unmarshal(raw, &cmd); err != nil {
			log.Printf("dropping malformed message: %v", err)
			continue
		}
		if cmd.Type != "command" {
			continue
		}

		resp := ENV.Conductor.Process(cmd)
		out, err := json.Marshal(resp)
		if err != nil {
			log.Printf("marshal response: %v", err)
			continue
		}
		if err := ENV.Hub.Unicast(client, out); err != nil {
			log.Println("write:", err)
			break
		}
	}
}
