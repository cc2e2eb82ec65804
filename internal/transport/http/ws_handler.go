package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"clinical-case-service/internal/app"
	"clinical-case-service/internal/domain"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// ClipProbe checks a narration clip before the client is told to play it.
type ClipProbe interface {
	Probe(ctx context.Context, url string) error
}

// WSOptions tunes per-connection behavior.
type WSOptions struct {
	RateLimit rate.Limit
	RateBurst int
	Probe     ClipProbe
	Logger    *log.Logger
}

type WSHandler struct {
	service  *app.GameplayService
	upgrader websocket.Upgrader
	opts     WSOptions
	logger   *log.Logger
}

func NewWSHandler(service *app.GameplayService, opts WSOptions) *WSHandler {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 40
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		opts:   opts,
		logger: logger,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type openCasePayload struct {
	CaseID string `json:"caseId"`
}

type openDailyPayload struct {
	Date string `json:"date"`
}

type optionPayload struct {
	TestID      string `json:"testId"`
	DiagnosisID string `json:"diagnosisId"`
	TreatmentID string `json:"treatmentId"`
}

type narrationEndedPayload struct {
	Token uint64 `json:"token"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type scoredPayload struct {
	Score         domain.ScoreBreakdown   `json:"score"`
	Indices       domain.SelectionIndices `json:"indices"`
	Assessment    *app.Assessment         `json:"assessment,omitempty"`
	GameplayID    string                  `json:"gameplayId,omitempty"`
	HeartConsumed bool                    `json:"heartConsumed"`
}

type narrationPayload struct {
	Action string       `json:"action"`
	Token  uint64       `json:"token"`
	Stage  domain.Stage `json:"stage"`
	URL    string       `json:"url,omitempty"`
}

// wsConn serializes every outbound message through one writer goroutine.
type wsConn struct {
	send         chan outboundMessage
	closeSignals chan struct{}
	writerDone   chan struct{}
}

// emit queues msg and reports false once the connection is shutting down.
func (c *wsConn) emit(msg outboundMessage) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.closeSignals:
		return false
	case <-c.writerDone:
		return false
	}
}

func (c *wsConn) emitError(err error) {
	c.emit(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error(), Retryable: domain.IsRetryable(err)}})
}

// ServeWS upgrades HTTP requests to websockets and drives one case session per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := &wsConn{
		send:         make(chan outboundMessage, 32),
		closeSignals: make(chan struct{}),
		writerDone:   make(chan struct{}),
	}
	go func() {
		defer close(c.writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Printf("ws write error: %v", err)
				_ = conn.Close()
				return
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	session := h.service.Start(userID, &remoteClipLoader{conn: c, probe: h.opts.Probe})
	limiter := rate.NewLimiter(h.opts.RateLimit, h.opts.RateBurst)
	var pending sync.WaitGroup

	c.emit(outboundMessage{Type: "state", Payload: session.View()})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !limiter.Allow() {
			c.emitError(domain.Retryable("rate limit", errors.New("too many messages")))
			continue
		}
		h.dispatch(ctx, c, session, inbound, &pending)
	}

	close(c.closeSignals)
	cancel()
	pending.Wait()
	h.service.End(userID, session)
	close(c.send)
	<-c.writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, c *wsConn, session *app.CaseSession, inbound inboundMessage, pending *sync.WaitGroup) {
	var err error
	switch inbound.Type {
	case "openCase":
		var p openCasePayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			c.emitError(errors.New("invalid openCase payload"))
			return
		}
		h.async(c, session, pending, func() error { return session.OpenCase(ctx, p.CaseID) })
		return
	case "openDailyChallenge":
		var p openDailyPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				c.emitError(errors.New("invalid openDailyChallenge payload"))
				return
			}
		}
		h.async(c, session, pending, func() error { return session.OpenDailyChallenge(ctx, p.Date) })
		return
	case "submit":
		h.async(c, session, pending, func() error {
			res, err := session.Submit(ctx)
			if err != nil && !errors.Is(err, domain.ErrAlreadySubmitted) {
				return err
			}
			if err == nil {
				c.emit(outboundMessage{Type: "scored", Payload: scoredPayload{
					Score:         res.Score,
					Indices:       res.Indices,
					Assessment:    session.View().Assessment,
					GameplayID:    res.Record.ID,
					HeartConsumed: res.HeartConsumed,
				}})
			}
			return err
		})
		return
	case "toggleTest", "selectDiagnosis", "toggleTreatment":
		var p optionPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			c.emitError(errors.New("invalid " + inbound.Type + " payload"))
			return
		}
		switch inbound.Type {
		case "toggleTest":
			_, err = session.ToggleTest(p.TestID)
		case "selectDiagnosis":
			err = session.SelectDiagnosis(p.DiagnosisID)
		default:
			_, err = session.ToggleTreatment(p.TreatmentID)
		}
	case "next":
		_, err = session.Next()
	case "back":
		_, err = session.Back()
	case "abandon":
		session.Abandon()
	case "focus":
		session.Focus()
	case "blur":
		session.Blur()
	case "pauseNarration":
		session.PauseNarration()
	case "resumeNarration":
		session.ResumeNarration()
	case "narrationEnded":
		var p narrationEndedPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			c.emitError(errors.New("invalid narrationEnded payload"))
			return
		}
		session.NarrationFinished(p.Token)
	default:
		c.emitError(errors.New("unsupported message type"))
		return
	}
	if err != nil {
		c.emitError(err)
	}
	c.emit(outboundMessage{Type: "state", Payload: session.View()})
}

// async runs a blocking session call off the read loop so later messages
// (abandon, another open) can supersede it.
func (h *WSHandler) async(c *wsConn, session *app.CaseSession, pending *sync.WaitGroup, fn func() error) {
	pending.Add(1)
	go func() {
		defer pending.Done()
		if err := fn(); err != nil {
			c.emitError(err)
		}
		c.emit(outboundMessage{Type: "state", Payload: session.View()})
	}()
}

// SessionView serves the current snapshot of a user's session.
func (h *WSHandler) SessionView(w http.ResponseWriter, userID string) {
	session, err := h.service.Session(userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(session.View())
}
