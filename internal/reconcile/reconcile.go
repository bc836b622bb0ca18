// Package reconcile merges optimistic local sends with canonical server
// pushes into one ordered conversation view.
package reconcile

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/studychat/internal/domain"
)

const (
	// DefaultTimeout is how long a provisional entry waits for its
	// canonical echo before it is marked Unconfirmed.
	DefaultTimeout = 10 * time.Second

	// matchSkew tolerates clock difference between client and server when
	// pairing a canonical message with a provisional one.
	matchSkew = time.Minute
)

type State int

const (
	Pending State = iota
	Confirmed
	// Unconfirmed entries timed out but stay visible; a late echo still
	// confirms them.
	Unconfirmed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Unconfirmed:
		return "unconfirmed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entry is one visible message. LocalID is set for entries that started as
// provisional sends; Message.ID is uuid.Nil until the canonical echo arrives.
type Entry struct {
	LocalID string
	Message domain.Message
	State   State
	Reason  string
}

func (e *Entry) outstanding() bool {
	return e.State == Pending || e.State == Unconfirmed
}

// Reconciler is safe for concurrent use.
type Reconciler struct {
	mu      sync.Mutex
	entries []Entry
	timeout time.Duration
	parser  domain.IntentParser
	now     func() time.Time
}

func New(timeout time.Duration, parser domain.IntentParser) *Reconciler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Reconciler{
		timeout: timeout,
		parser:  parser,
		now:     time.Now,
	}
}

// SetClock replaces the wall clock.
func (r *Reconciler) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// AddProvisional appends an optimistic entry and returns it. Its LocalID is
// the nonce to send along with the request.
func (r *Reconciler) AddProvisional(senderID, receiverID uuid.UUID, content string) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := Entry{
		LocalID: uuid.NewString(),
		Message: domain.Message{
			SenderID:   senderID,
			ReceiverID: receiverID,
			Content:    content,
			CreatedAt:  domain.Timestamp(r.now()),
		},
		State: Pending,
	}
	r.entries = append(r.entries, e)
	return e
}

// ApplyNew merges a canonical message. It replaces the oldest outstanding
// provisional entry with the same sender and content, or inserts it in
// timestamp order. A message already present by id is ignored. Reports
// whether the view changed.
func (r *Reconciler) ApplyNew(msg domain.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(msg.ID) >= 0 {
		return false
	}

	if i := r.matchProvisional(msg); i >= 0 {
		r.entries[i].Message = msg
		r.entries[i].State = Confirmed
		r.entries[i].Reason = ""
		r.reorder()
		return true
	}

	r.entries = append(r.entries, Entry{Message: msg, State: Confirmed})
	r.reorder()
	return true
}

// ApplyEdited replaces an entry in place by id.
func (r *Reconciler) ApplyEdited(msg domain.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(msg.ID)
	if i < 0 {
		return false
	}
	r.entries[i].Message = msg
	return true
}

// ApplyDeleted removes an entry by id.
func (r *Reconciler) ApplyDeleted(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
	return true
}

// Load replaces the view with a full history. Outstanding provisional
// entries that the history confirms are dropped; the rest are kept.
func (r *Reconciler) Load(history []domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]Entry, 0, len(history)+len(r.entries))
	claimed := make(map[uuid.UUID]bool, len(history))
	for _, m := range history {
		next = append(next, Entry{Message: m, State: Confirmed})
	}

	for _, e := range r.entries {
		if e.State == Confirmed {
			continue
		}
		confirmed := false
		if e.outstanding() {
			for _, m := range history {
				if !claimed[m.ID] && matches(&e, &m) {
					claimed[m.ID] = true
					confirmed = true
					break
				}
			}
		}
		if !confirmed {
			next = append(next, e)
		}
	}
	r.entries = next
	r.reorder()
}

// MarkFailed moves an outstanding entry to Failed.
func (r *Reconciler) MarkFailed(localID, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		e := &r.entries[i]
		if e.LocalID == localID && e.outstanding() {
			e.State = Failed
			e.Reason = reason
			r.reorder()
			return true
		}
	}
	return false
}

// Expire marks pending entries older than the timeout as Unconfirmed and
// returns their local ids.
func (r *Reconciler) Expire() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expire()
}

func (r *Reconciler) expire() []string {
	var expired []string
	now := r.now()
	for i := range r.entries {
		e := &r.entries[i]
		if e.State == Pending && now.Sub(e.Message.CreatedAt) > r.timeout {
			e.State = Unconfirmed
			expired = append(expired, e.LocalID)
		}
	}
	return expired
}

// Entries returns a snapshot of the view.
func (r *Reconciler) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expire()
	return append([]Entry(nil), r.entries...)
}

// Unit is one display unit: a message, plus the assistant reply directly
// following it when the message is an assistant question.
type Unit struct {
	Primary Entry
	Reply   *Entry
}

// Group pairs each assistant question with an immediately following
// assistant message. Other assistant messages stand alone.
func (r *Reconciler) Group() []Unit {
	entries := r.Entries()

	units := make([]Unit, 0, len(entries))
	for i := 0; i < len(entries); i++ {
		e := entries[i]
		if i+1 < len(entries) && !e.Message.FromAssistant() && r.parser.IsAssistantQuery(e.Message.Content) {
			next := entries[i+1]
			if next.Message.FromAssistant() {
				units = append(units, Unit{Primary: e, Reply: &next})
				i++
				continue
			}
		}
		units = append(units, Unit{Primary: e})
	}
	return units
}

func (r *Reconciler) indexOf(id uuid.UUID) int {
	if id == uuid.Nil {
		return -1
	}
	for i := range r.entries {
		if r.entries[i].Message.ID == id {
			return i
		}
	}
	return -1
}

func (r *Reconciler) matchProvisional(msg domain.Message) int {
	for i := range r.entries {
		if r.entries[i].outstanding() && matches(&r.entries[i], &msg) {
			return i
		}
	}
	return -1
}

// reorder sorts positioned entries (confirmed and failed) by timestamp and
// keeps outstanding provisional entries after them in send order.
func (r *Reconciler) reorder() {
	slices.SortStableFunc(r.entries, func(a, b Entry) int {
		ao, bo := a.outstanding(), b.outstanding()
		switch {
		case ao && bo:
			return 0
		case ao:
			return 1
		case bo:
			return -1
		}
		return a.Message.CreatedAt.Compare(b.Message.CreatedAt)
	})
}

func matches(e *Entry, m *domain.Message) bool {
	return e.Message.SenderID == m.SenderID &&
		e.Message.Content == m.Content &&
		!m.CreatedAt.Before(e.Message.CreatedAt.Add(-matchSkew))
}
