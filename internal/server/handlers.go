// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"net/http"

	"github.com/Tyrowin/channelchat/internal/chat"
)

// handleWebSocket upgrades the request and hands the connection to the hub,
// which starts its pumps.
func (s *ChatServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(chat.ConnID(s.ids.NewID()), conn, s.hub, s.dispatcher, s.cfg, r.RemoteAddr)
	if !s.hub.Register(client) {
		s.log.Info("rejecting connection during shutdown", "addr", r.RemoteAddr)
		_ = conn.Close()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Channel chat server is running!")
}

// TestPageHandler serves an HTML page that logs in, joins a channel and
// posts messages over the WebSocket endpoint.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Channel Chat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; }
        input[type="text"], input[type="password"] { width: 160px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
    </style>
</head>
<body>
    <h1>Channel Chat Test</h1>
    <div>
        <input type="text" id="name" placeholder="name">
        <input type="password" id="password" placeholder="password">
        <input type="text" id="channel" placeholder="channel" value="main">
        <button onclick="login()">Connect</button>
    </div>
    <div id="messages"></div>
    <div>
        <input type="text" id="content" placeholder="Type a message...">
        <button onclick="post()">Send</button>
    </div>
    <script>
        let ws = null;
        let session = null;
        let nextId = 1;
        const pending = {};
        const messagesDiv = document.getElementById('messages');

        function show(text) {
            const el = document.createElement('div');
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function request(op, args) {
            const id = nextId++;
            const body = { id: id, op: op, args: args };
            if (session) { body.session = session; }
            ws.send(JSON.stringify(['request', body]));
            return new Promise(function(resolve, reject) { pending[id] = { resolve: resolve, reject: reject }; });
        }

        function onFrame(event) {
            const frame = JSON.parse(event.data);
            if (frame[0] === 'response') {
                const p = pending[frame[1].id];
                if (!p) { return; }
                delete pending[frame[1].id];
                if (frame[1].error) { p.reject(frame[1].error); } else { p.resolve(frame[1].result); }
            } else if (frame[0] === 'event' && frame[1][0] === 'message') {
                const m = frame[1][1][0];
                show(m.from + ' @ ' + m.to + ': ' + m.content);
            }
        }

        async function login() {
            const channel = document.getElementById('channel').value;
            ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
            ws.onmessage = onFrame;
            ws.onclose = function() { show('disconnected'); };
            ws.onopen = async function() {
                try {
                    session = await request('auth', [document.getElementById('name').value, document.getElementById('password').value]);
                    await request('join', [channel]);
                    const history = await request('messages', [channel]);
                    history.forEach(function(m) { show(m.from + ': ' + m.content); });
                    show('joined ' + channel + ' as ' + session.name);
                } catch (e) {
                    show(e.kind + ': ' + e.message);
                }
            };
        }

        async function post() {
            const input = document.getElementById('content');
            const channel = document.getElementById('channel').value;
            try {
                const m = await request('message', [channel, input.value]);
                show('You: ' + m.content);
                input.value = '';
            } catch (e) {
                show(e.kind + ': ' + e.message);
            }
        }
    </script>
</body>
</html>`
