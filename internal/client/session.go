// Package client is a Go client for one peer conversation: it keeps an
// optimistic local view reconciled with server pushes.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/studychat/internal/domain"
	"github.com/vedran77/studychat/internal/reconcile"
	"github.com/vedran77/studychat/internal/transport/ws"
	"github.com/vedran77/studychat/internal/typing"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrNotAllowed = errors.New("client: message cannot be changed by this user")

const writeTimeout = 5 * time.Second

// Credentials is the bearer token and the identity it was issued for.
type Credentials struct {
	Token     string
	UserID    uuid.UUID
	ExpiresAt time.Time
}

type Options struct {
	HTTPClient       *http.Client
	ReconcileTimeout time.Duration
	TypingIdle       time.Duration
	// PeerTypingTTL clears a peer's typing state if "stopped" never arrives.
	PeerTypingTTL time.Duration
	Tag           string
	Log           *zap.Logger
}

// ServerError is an error event pushed to this connection.
type ServerError struct {
	Code    string
	Message string
	Nonce   string
}

func (e ServerError) Error() string {
	return e.Code + ": " + e.Message
}

// Session is one live conversation with a peer.
type Session struct {
	creds   Credentials
	peerID  uuid.UUID
	baseURL string
	http    *http.Client
	conn    *websocket.Conn
	parser  domain.IntentParser
	log     *zap.Logger

	view       *reconcile.Reconciler
	debounce   *typing.Debouncer
	peerTyping *typing.Tracker

	mu         sync.RWMutex
	peerOnline bool

	changes chan struct{}
	errs    chan ServerError

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Dial opens the duplex channel for the conversation with peerID.
func Dial(ctx context.Context, baseURL string, creds Credentials, peerID uuid.UUID, opts Options) (*Session, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.PeerTypingTTL == 0 {
		opts.PeerTypingTTL = 3 * typing.IdleTimeout
	}
	baseURL = strings.TrimRight(baseURL, "/")

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws?token=" + url.QueryEscape(creds.Token) + "&peer=" + peerID.String()
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPClient: opts.HTTPClient})
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", baseURL, err)
	}

	parser := domain.NewIntentParser(opts.Tag)
	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		creds:      creds,
		peerID:     peerID,
		baseURL:    baseURL,
		http:       opts.HTTPClient,
		conn:       conn,
		parser:     parser,
		log:        opts.Log.With(zap.Stringer("user_id", creds.UserID), zap.Stringer("peer_id", peerID)),
		view:       reconcile.New(opts.ReconcileTimeout, parser),
		peerTyping: typing.NewTracker(opts.PeerTypingTTL),
		changes:    make(chan struct{}, 1),
		errs:       make(chan ServerError, 16),
		ctx:        sctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.debounce = typing.NewDebouncer(opts.TypingIdle, s.emitTyping)

	go s.readLoop()
	return s, nil
}

// LoadHistory replaces the local view with the stored conversation.
func (s *Session) LoadHistory(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/api/v1/conversations/%s/messages?limit=100", s.baseURL, s.peerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.creds.Token)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("loading history: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding history: %w", err)
	}

	s.view.Load(body.Messages)
	s.changed()
	return nil
}

// Send echoes content locally and hands it to the server. The returned
// entry's LocalID identifies it until the canonical copy arrives.
func (s *Session) Send(ctx context.Context, content string, extra json.RawMessage) (reconcile.Entry, error) {
	if err := domain.CheckContent(content); err != nil {
		return reconcile.Entry{}, err
	}
	if _, err := s.parser.Parse(content); err != nil {
		return reconcile.Entry{}, err
	}

	s.debounce.Stop()
	entry := s.view.AddProvisional(s.creds.UserID, s.peerID, content)
	s.changed()

	err := s.write(ctx, ws.EventTypeMessageSend, ws.MessageSendPayload{
		ReceiverID: s.peerID,
		Content:    content,
		Nonce:      entry.LocalID,
		Context:    extra,
	})
	if err != nil {
		s.view.MarkFailed(entry.LocalID, err.Error())
		s.changed()
		return entry, err
	}
	return entry, nil
}

// Edit asks the server to change one of this user's messages. The local
// gate check only saves a round trip; the server decides.
func (s *Session) Edit(ctx context.Context, id uuid.UUID, content string) error {
	if err := domain.CheckContent(content); err != nil {
		return err
	}
	if err := s.checkGate(id); err != nil {
		return err
	}
	return s.write(ctx, ws.EventTypeMessageEdit, ws.MessageEditPayload{ID: id, Content: content, Nonce: uuid.NewString()})
}

func (s *Session) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.checkGate(id); err != nil {
		return err
	}
	return s.write(ctx, ws.EventTypeMessageDelete, ws.MessageDeletePayload{ID: id, Nonce: uuid.NewString()})
}

func (s *Session) checkGate(id uuid.UUID) error {
	for _, e := range s.view.Entries() {
		if e.Message.ID == id {
			if !domain.CanMutate(&e.Message, s.creds.UserID, time.Now()) {
				return ErrNotAllowed
			}
			return nil
		}
	}
	return ErrNotAllowed
}

// KeyPress reports local typing activity.
func (s *Session) KeyPress() {
	s.debounce.Input()
}

func (s *Session) StopTyping() {
	s.debounce.Stop()
}

func (s *Session) Entries() []reconcile.Entry {
	return s.view.Entries()
}

func (s *Session) Groups() []reconcile.Unit {
	return s.view.Group()
}

func (s *Session) PeerTyping() bool {
	return s.peerTyping.IsTyping(s.peerID)
}

func (s *Session) PeerOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peerOnline
}

// Changes signals after the view changed. Signals coalesce.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

// Errors delivers server error events. Events are dropped when nobody reads.
func (s *Session) Errors() <-chan ServerError {
	return s.errs
}

// Done is closed once the connection has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Close() error {
	s.debounce.Stop()
	err := s.conn.Close(websocket.StatusNormalClosure, "")
	s.cancel()
	<-s.done
	return err
}

func (s *Session) emitTyping(isTyping bool) {
	ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()
	if err := s.write(ctx, ws.EventTypeTyping, ws.TypingInput{PeerID: s.peerID, IsTyping: isTyping}); err != nil {
		s.log.Debug("typing signal dropped", zap.Error(err))
	}
}

func (s *Session) write(ctx context.Context, eventType string, payload any) error {
	evt, err := ws.NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, s.conn, evt)
}

func (s *Session) readLoop() {
	defer close(s.done)

	for {
		var evt ws.Event
		if err := wsjson.Read(s.ctx, s.conn, &evt); err != nil {
			if s.ctx.Err() == nil && websocket.CloseStatus(err) == -1 {
				s.log.Warn("read error", zap.Error(err))
			}
			return
		}
		if err := s.handle(&evt); err != nil {
			s.log.Warn("bad event", zap.String("type", evt.Type), zap.Error(err))
		}
	}
}

func (s *Session) handle(evt *ws.Event) error {
	switch evt.Type {
	case ws.EventTypeMessageNew:
		var msg domain.Message
		if err := json.Unmarshal(evt.Payload, &msg); err != nil {
			return err
		}
		if !msg.InPair(s.creds.UserID, s.peerID) {
			return nil
		}
		if msg.SenderID == s.peerID {
			s.peerTyping.Set(s.peerID, false)
		}
		s.view.ApplyNew(msg)

	case ws.EventTypeMessageEdited:
		var msg domain.Message
		if err := json.Unmarshal(evt.Payload, &msg); err != nil {
			return err
		}
		s.view.ApplyEdited(msg)

	case ws.EventTypeMessageDeleted:
		var p ws.MessageDeletedPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return err
		}
		s.view.ApplyDeleted(p.ID)

	case ws.EventTypeTyping:
		var p ws.TypingPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return err
		}
		if p.UserID != s.peerID {
			return nil
		}
		s.peerTyping.Set(p.UserID, p.IsTyping)

	case ws.EventTypePresence:
		var p ws.PresencePayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return err
		}
		if p.UserID != s.peerID {
			return nil
		}
		s.mu.Lock()
		s.peerOnline = p.Status == "online"
		s.mu.Unlock()

	case ws.EventTypeError:
		var p ws.ErrorPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return err
		}
		if p.Nonce != "" {
			s.view.MarkFailed(p.Nonce, p.Message)
		}
		select {
		case s.errs <- ServerError{Code: p.Code, Message: p.Message, Nonce: p.Nonce}:
		default:
		}

	default:
		return nil
	}

	s.changed()
	return nil
}

func (s *Session) changed() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
