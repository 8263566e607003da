// Package reasoning implements the sequential reasoning engine: a
// per-session state machine over an ordered, branchable, revisable chain of
// thought steps. History is a tree of append-only logs held in a branch
// arena; branch origins are back-references into the parent log, so a fork
// never copies nodes.
package reasoning

import (
	"sync"

	"github.com/hupe1980/toolmesh/logging"
)

// Thought is one submission to the engine.
type Thought struct {
	// Text is the thought content.
	Text string

	// TotalExpected is the advisory total-thought-count hint. It can only
	// grow; it is never enforced as a hard cap.
	TotalExpected int

	// MoreNeeded signals that the submitter expects to continue.
	MoreNeeded bool

	// RevisesThought, when > 0, marks this thought as a revision of the
	// given sequence number, which must exist in the resolved branch's
	// lineage.
	RevisesThought int

	// BranchID routes the thought to a branch. An unseen id registers a new
	// branch; the empty id targets the trunk the session started on.
	BranchID string

	// BranchFromThought is the fork point when BranchID registers a new
	// branch: a sequence number in the parent branch's lineage.
	BranchFromThought int
}

// Ack acknowledges an accepted thought.
type Ack struct {
	// Sequence is the resolved sequence number within the branch lineage.
	Sequence int `json:"sequence"`

	// MoreNeeded is true when the submitter flagged continuation or the
	// sequence has not reached the branch's total-expected hint.
	MoreNeeded bool `json:"more_needed"`

	// Branches lists the currently known branch identifiers.
	Branches []string `json:"branches"`
}

// Options configures an Engine.
type Options struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Engine manages reasoning sessions. Submissions to one session are
// processed strictly in arrival order; independent sessions share no mutable
// state.
type Engine struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   logging.Logger
}

// New constructs an Engine with no sessions.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Engine{sessions: make(map[string]*Session), logger: opts.Logger}
}

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Session returns the session for the id, creating it with an empty trunk on
// first use.
func (e *Engine) Session(sessionID string) *Session {
	e.mu.RLock()
	sess, ok := e.sessions[sessionID]
	e.mu.RUnlock()
	if ok {
		return sess
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if sess, ok = e.sessions[sessionID]; ok {
		return sess
	}
	sess = newSession()
	e.sessions[sessionID] = sess
	return sess
}

// Submit validates and appends a thought to the session, returning the
// acknowledgment. Validation errors (InvalidBranchOriginError,
// InvalidRevisionTargetError) leave the session untouched.
func (e *Engine) Submit(sessionID string, t Thought) (Ack, error) {
	sess := e.Session(sessionID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	b, isNew, err := e.resolveBranch(sess, t)
	if err != nil {
		return Ack{}, err
	}

	if t.RevisesThought > 0 && !sess.visible(b, t.RevisesThought) {
		return Ack{}, &InvalidRevisionTargetError{BranchID: b.id, Target: t.RevisesThought}
	}

	if isNew {
		sess.branches[b.id] = b
		sess.order = append(sess.order, b.id)
	}

	seq := b.nextSeq()
	b.nodes = append(b.nodes, node{Seq: seq, Text: t.Text, Revises: t.RevisesThought})
	if t.TotalExpected > b.hint {
		b.hint = t.TotalExpected
	}

	more := t.MoreNeeded || seq < b.hint
	// The hint is advisory: reaching it with MoreNeeded=false completes the
	// branch, but a later submission reopens it without error.
	b.complete = !t.MoreNeeded && seq >= b.hint
	sess.current = b.id

	e.logger.Debug("thought accepted",
		"session_id", sessionID, "branch", b.id, "sequence", seq,
		"revises", t.RevisesThought, "complete", b.complete)

	return Ack{Sequence: seq, MoreNeeded: more, Branches: sess.knownBranches()}, nil
}

// resolveBranch finds the target branch, or builds an unregistered new one
// when the submission names an unseen branch id. The caller registers a new
// branch only after all validations pass, so a rejected submission leaves no
// trace. Caller holds the session lock.
func (e *Engine) resolveBranch(sess *Session, t Thought) (b *branch, isNew bool, err error) {
	if b, ok := sess.branches[t.BranchID]; ok {
		return b, false, nil
	}

	// Unseen id: fork from the branch that was active when the submission
	// arrived (the trunk for a fresh session).
	parent := sess.branches[sess.current]
	if t.BranchFromThought <= 0 || !sess.visible(parent, t.BranchFromThought) {
		return nil, false, &InvalidBranchOriginError{BranchID: t.BranchID, Origin: t.BranchFromThought}
	}

	return &branch{
		id:           t.BranchID,
		originBranch: parent.id,
		originSeq:    t.BranchFromThought,
	}, true, nil
}

// BranchComplete reports whether the branch has reached its terminal
// condition.
func (e *Engine) BranchComplete(sessionID, branchID string) bool {
	sess := e.Session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	b, ok := sess.branches[branchID]
	return ok && b.complete
}

// CloseSession destroys a session and all of its branches.
func (e *Engine) CloseSession(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, sessionID)
}

// Reset destroys every session.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions = make(map[string]*Session)
}
