package reasoning

import "sync"

// node is one accepted thought. Sequence numbers are global to the lineage:
// a branch forked at trunk thought 1 numbers its first own node 2.
type node struct {
	Seq     int
	Text    string
	Revises int // 0 = not a revision
}

// branch is an append-only log of nodes plus a back-reference to its origin.
// The trunk is the branch with the empty id and origin sequence 0. Origins
// are relations, not ownership: forks never copy parent nodes.
type branch struct {
	id           string
	originBranch string
	originSeq    int
	nodes        []node
	hint         int
	complete     bool
}

// nextSeq is the sequence number the branch's next node receives.
func (b *branch) nextSeq() int {
	return b.originSeq + len(b.nodes) + 1
}

// Session is the bounded reasoning state of one client session. A session is
// owned by exactly one Engine; its mutex serializes submissions so sequence
// numbers stay monotonic under concurrent callers, while independent
// sessions proceed fully in parallel.
type Session struct {
	mu       sync.Mutex
	branches map[string]*branch
	order    []string // non-trunk branch ids in registration order
	current  string   // branch id of the most recent submission
}

func newSession() *Session {
	return &Session{
		branches: map[string]*branch{"": {}},
	}
}

// visible reports whether seq exists in b's lineage: b's own nodes plus the
// origin chain up to the trunk. Sibling branches are never visible.
func (s *Session) visible(b *branch, seq int) bool {
	for {
		if seq > b.originSeq {
			return seq <= b.originSeq+len(b.nodes)
		}
		if b.id == "" {
			return false
		}
		b = s.branches[b.originBranch]
	}
}

// knownBranches returns the registered non-trunk branch ids in registration
// order.
func (s *Session) knownBranches() []string {
	return append([]string(nil), s.order...)
}

// BranchOrigin describes where a branch forked from.
type BranchOrigin struct {
	BranchID string `json:"branch_id"` // "" = trunk
	Sequence int    `json:"sequence"`
}

// Directory returns the branch directory: branch id to origin.
func (s *Session) Directory() map[string]BranchOrigin {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]BranchOrigin, len(s.order))
	for _, id := range s.order {
		b := s.branches[id]
		out[id] = BranchOrigin{BranchID: b.originBranch, Sequence: b.originSeq}
	}
	return out
}
