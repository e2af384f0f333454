package stdlib

import (
	"time"

	"github.com/gorilla/websocket"

	"matl/internal/runtime"
	"matl/internal/value"
)

// wsPingBuiltin dials url, sends "ping" and returns the echoed text — a
// single blocking round-trip, matching spec.md §5's "built-in operators
// and intrinsics run synchronously, may block on external I/O... but do
// not interact with the VM's scheduling" (there is no background
// connection registry here, unlike the teacher's stateful WebSocketConn
// pool in internal/network/websocket.go — the language has no concurrency
// to hand a live connection handle back into, so each call is a
// self-contained round-trip).
func wsPingBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind != value.KindString {
		return value.Nil, env.Throwf("'WsPing' expects one string argument (a ws:// or wss:// URL)")
	}
	url := string(args[0].Str.Data)

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return value.Nil, env.Throwf("websocket dial failed: %s", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		return value.Nil, env.Throwf("websocket write failed: %s", err)
	}
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return value.Nil, env.Throwf("websocket read failed: %s", err)
	}
	return value.FromString(value.NewString(data)), nil
}

// RegisterNetwork installs the websocket intrinsic.
func RegisterNetwork(rt *runtime.Runtime) {
	rt.DefineIntrinsic("WsPing", wsPingBuiltin)
}
