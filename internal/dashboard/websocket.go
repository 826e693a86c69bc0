package dashboard

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	statePollInterval = 250 * time.Millisecond
	pingInterval      = 30 * time.Second
	writeWait         = 10 * time.Second
)

// WSMessage is a control message from a websocket client.
type WSMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
}

// WSEvent is an event pushed to a websocket client.
type WSEvent struct {
	Type    string `json:"type"` // "state", "console-full", "console-append"
	Payload any    `json:"payload,omitempty"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return s.allowedOrigin(r.Header.Get("Origin"))
		},
	}
}

// handleEventsWebSocket streams state snapshots: a full snapshot on
// connect, then one per revision change, polled rather than pushed so
// the store stays free of subscriber plumbing.
func (s *Server) handleEventsWebSocket(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sendState := func() error {
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		return ws.WriteJSON(WSEvent{Type: "state", Payload: s.renderState()})
	}

	lastRevision := s.store.Revision()
	if err := sendState(); err != nil {
		return
	}

	poll := time.NewTicker(statePollInterval)
	defer poll.Stop()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-poll.C:
			rev := s.store.Revision()
			if rev == lastRevision {
				continue
			}
			lastRevision = rev
			if err := sendState(); err != nil {
				return
			}
		case <-ping.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleConsoleWebSocket attaches a websocket to a device console:
// scrollback on connect, live output as it arrives, and input and
// resize control messages back to the PTY.
func (s *Server) handleConsoleWebSocket(w http.ResponseWriter, r *http.Request) {
	serial := r.URL.Query().Get("serial")
	if serial == "" {
		http.Error(w, "serial is required", http.StatusBadRequest)
		return
	}

	dev := s.store.State().DeviceBySerial(serial)
	if dev == nil {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}

	tracker, err := s.consoles.Spawn(serial, dev.OS)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	up := s.upgrader()
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	outputCh := tracker.AttachWebSocket()
	defer tracker.DetachWebSocket(outputCh)

	if back := tracker.Scrollback(); len(back) > 0 {
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(WSEvent{Type: "console-full", Payload: strings.Join(back, "\n")}); err != nil {
			return
		}
	}

	controlCh := make(chan WSMessage, 10)
	go func() {
		defer close(controlCh)
		for {
			msgType, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}
			var wsMsg WSMessage
			if err := json.Unmarshal(msg, &wsMsg); err == nil {
				controlCh <- wsMsg
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case chunk, ok := <-outputCh:
			if !ok {
				// A second client took over the console.
				return
			}
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(WSEvent{Type: "console-append", Payload: string(chunk)}); err != nil {
				return
			}
		case msg, ok := <-controlCh:
			if !ok {
				return
			}
			switch msg.Type {
			case "input":
				if err := tracker.SendInput(msg.Data); err != nil {
					ws.SetWriteDeadline(time.Now().Add(writeWait))
					ws.WriteJSON(WSEvent{Type: "console-append", Payload: "\n[Input failed: " + err.Error() + "]"})
				}
			case "resize":
				if msg.Cols > 0 && msg.Rows > 0 {
					tracker.Resize(msg.Cols, msg.Rows)
				}
			}
		case <-ping.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
