// Package server exposes the HTTP handlers: WebSocket upgrades, the health
// endpoint, and the built-in test page.
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// NewWebSocketHandler returns the handler that upgrades requests and hands
// new connections to the hub. The hub launches the pump goroutines once the
// client is registered.
func NewWebSocketHandler(hub *Hub) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     newOriginPolicy(hub.cfg.AllowedOrigins, hub.logger).check,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
			return
		}

		client := NewClient(conn, hub, remoteAddress(r))
		select {
		case hub.register <- client:
		case <-hub.ctx.Done():
			client.terminate()
		}
	}
}

// remoteAddress returns the best-effort client address: the first
// X-Forwarded-For entry when present, else the socket address.
func remoteAddress(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if addr := strings.TrimSpace(strings.Split(forwarded, ",")[0]); addr != "" {
			return addr
		}
	}
	return r.RemoteAddr
}

type healthResponse struct {
	Status        string  `json:"status"`
	Clients       int     `json:"clients"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// NewHealthHandler returns the status endpoint. It only reads the connection
// count and process uptime; no relay state is touched.
func NewHealthHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		response := healthResponse{
			Status:        "ok",
			Clients:       hub.Count(),
			UptimeSeconds: hub.Uptime().Seconds(),
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			hub.logger.Debug("error writing health response", "error", err)
		}
	}
}

// TestPageHandler serves a minimal HTML page for exercising the relay from a
// browser: connect, pick a name, and exchange messages.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Castwire Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background: #f9f9f9; }
        input[type="text"] { width: 240px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; cursor: pointer; }
        .system { color: gray; font-style: italic; }
    </style>
</head>
<body>
    <h1>Castwire Test</h1>
    <div id="status" class="system">Disconnected</div>
    <div>
        <input type="text" id="name" placeholder="Username...">
        <button onclick="setName()">Set name</button>
    </div>
    <div>
        <input type="text" id="text" placeholder="Type a message...">
        <button onclick="send()">Send</button>
        <button onclick="connect()">Connect</button>
    </div>
    <div id="log"></div>
    <script>
        let ws = null;
        const log = document.getElementById('log');

        function add(text, cls) {
            const el = document.createElement('div');
            if (cls) el.className = cls;
            el.textContent = text;
            log.appendChild(el);
            log.scrollTop = log.scrollHeight;
        }

        function connect() {
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onopen = () => { document.getElementById('status').textContent = 'Connected'; };
            ws.onclose = () => { document.getElementById('status').textContent = 'Disconnected'; ws = null; };
            ws.onmessage = (ev) => {
                const e = JSON.parse(ev.data);
                switch (e.type) {
                case 'message': add(e.username + ': ' + e.message); break;
                case 'system_message': add(e.message, 'system'); break;
                case 'online_count': add(e.count + ' online', 'system'); break;
                case 'history': e.messages.forEach(m => add(m.username + ': ' + m.message)); break;
                case 'server_shutdown': add(e.message, 'system'); break;
                }
            };
        }

        function setName() {
            if (ws) ws.send(JSON.stringify({type: 'set_username', username: document.getElementById('name').value}));
        }

        function send() {
            const input = document.getElementById('text');
            if (ws && input.value) {
                ws.send(JSON.stringify({type: 'message', message: input.value}));
                input.value = '';
            }
        }

        document.getElementById('text').addEventListener('keypress', (e) => {
            if (e.key === 'Enter') send();
        });
    </script>
</body>
</html>`
	if _, err := w.Write([]byte(html)); err != nil {
		return
	}
}
