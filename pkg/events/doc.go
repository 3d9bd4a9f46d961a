// Package events subscribes to the OpenMotics event WebSocket.
//
// A Stream authenticates the handshake by carrying the bearer token in the
// Sec-WebSocket-Protocol header as "authorization.bearer.<base64 token>",
// sends a set_subscription action and then delivers every EVENT frame on a
// buffered channel in the order it was received.
//
// Dropped connections are re-established with exponential backoff. The
// backoff resets after every successful handshake, and a handshake rejected
// with 401 refreshes the token before the next attempt. The stream remembers
// the last payload delivered for each entity, so the replay a server sends
// after a reconnect does not surface as a change. Repeated events within a
// connection are always delivered.
//
//	stream, err := events.NewStream(events.Config{
//		URL:    "wss://gateway.local/ws_events",
//		Tokens: c,
//		Types:  []string{events.TypeOutputChange},
//	})
//	if err != nil {
//		return err
//	}
//	if err := stream.Start(ctx); err != nil {
//		return err
//	}
//	defer stream.Stop()
//	for ev := range stream.Events() {
//		fmt.Println(ev.Type, ev.ID)
//	}
package events
