package http

import (
	"context"
	"errors"
	"sync"

	"clinical-case-service/internal/app"
)

var errConnClosed = errors.New("connection closed")

// remoteClipLoader plays narration on the client: Play and Stop become
// narration events on the socket.
type remoteClipLoader struct {
	conn  *wsConn
	probe ClipProbe
}

func (l *remoteClipLoader) Load(ctx context.Context, cue app.Cue) (app.Clip, error) {
	if l.probe != nil {
		if err := l.probe.Probe(ctx, cue.URL); err != nil {
			return nil, err
		}
	}
	return &remoteClip{conn: l.conn, cue: cue}, nil
}

type remoteClip struct {
	conn *wsConn
	cue  app.Cue

	mu      sync.Mutex
	playing bool
}

func (c *remoteClip) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.conn.emit(c.event("play")) {
		return errConnClosed
	}
	c.playing = true
	return nil
}

func (c *remoteClip) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.playing = false
	c.conn.emit(c.event("stop"))
}

func (c *remoteClip) Release() {}

func (c *remoteClip) event(action string) outboundMessage {
	return outboundMessage{Type: "narration", Payload: narrationPayload{
		Action: action,
		Token:  c.cue.Token,
		Stage:  c.cue.Stage,
		URL:    c.cue.URL,
	}}
}
