// internal/app/system/notify/sequencer.go
package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultReorderWindow is how long the Sequencer holds an event while it
// waits for the proposal versions before it.
const DefaultReorderWindow = 2 * time.Second

// proposalIdle is how long per-proposal ordering state outlives the last
// event seen for that proposal.
const proposalIdle = 10 * time.Minute

// Sequencer restores per-proposal order for events that reach this process
// from several publishers, as they do over the bus when more than one
// instance records approvals on the same proposal.
//
// Events of one proposal are ordered by (Version, stage) where stage is
// created < approved < confirmed. An event is delivered once it directly
// follows the last delivered one; an event that skips ahead is held until
// the gap fills or the reorder window passes. Events at or behind the last
// delivered position are discarded. Events without a proposal version
// (member_invited) pass straight through.
type Sequencer struct {
	next   Publisher
	window time.Duration
	log    *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	proposals map[string]*proposalSeq
	lastSweep time.Time
	closed    bool
}

type seqPos struct {
	version int64
	stage   int
}

func (a seqPos) before(b seqPos) bool {
	return a.version < b.version || (a.version == b.version && a.stage < b.stage)
}

type proposalSeq struct {
	last    seqPos
	known   bool
	held    []Event
	timer   *time.Timer
	touched time.Time
}

// NewSequencer delivers ordered events to next. window <= 0 selects
// DefaultReorderWindow.
func NewSequencer(next Publisher, window time.Duration, logger *zap.Logger) *Sequencer {
	if window <= 0 {
		window = DefaultReorderWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequencer{
		next:      next,
		window:    window,
		log:       logger,
		now:       time.Now,
		proposals: make(map[string]*proposalSeq),
	}
}

const (
	stageCreated = iota
	stageApproved
	stageConfirmed
)

func stageOf(t EventType) int {
	switch t {
	case TypeProposalCreated:
		return stageCreated
	case TypeProposalApproved:
		return stageApproved
	default:
		return stageConfirmed
	}
}

func posOf(ev Event) seqPos {
	return seqPos{version: ev.Version, stage: stageOf(ev.Type)}
}

// follows reports whether p may be delivered right after last: a later
// stage of the same write, or the approval that opens the next write.
func follows(last, p seqPos) bool {
	if p.version == last.version {
		return p.stage > last.stage
	}
	return p.version == last.version+1 && p.stage <= stageApproved
}

// Publish implements Publisher.
func (s *Sequencer) Publish(ctx context.Context, ev Event) error {
	if ev.ProposalID == "" || ev.Version == 0 {
		return s.next.Publish(ctx, ev)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrHubClosed
	}

	now := s.now()
	s.sweep(now)

	st, ok := s.proposals[ev.ProposalID]
	if !ok {
		st = &proposalSeq{}
		s.proposals[ev.ProposalID] = st
	}
	st.touched = now

	pos := posOf(ev)
	switch {
	case st.known && !st.last.before(pos):
		s.log.Debug("discarding stale proposal event",
			zap.String("proposal_id", ev.ProposalID),
			zap.String("event_type", string(ev.Type)),
			zap.Int64("version", ev.Version),
			zap.Int64("delivered_version", st.last.version))
		return nil
	case !st.known || follows(st.last, pos):
		s.deliver(ctx, st, ev)
		s.drain(ctx, st)
	default:
		s.hold(ev.ProposalID, st, ev)
	}
	return nil
}

func (s *Sequencer) deliver(ctx context.Context, st *proposalSeq, ev Event) {
	st.last = posOf(ev)
	st.known = true
	if err := s.next.Publish(ctx, ev); err != nil {
		s.log.Debug("sequenced delivery skipped", zap.Error(err))
	}
}

// drain delivers held events that now follow in order.
func (s *Sequencer) drain(ctx context.Context, st *proposalSeq) {
	for len(st.held) > 0 {
		head := st.held[0]
		pos := posOf(head)
		switch {
		case !st.last.before(pos):
			st.held = st.held[1:]
		case follows(st.last, pos):
			st.held = st.held[1:]
			s.deliver(ctx, st, head)
		default:
			return
		}
	}
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
}

func (s *Sequencer) hold(id string, st *proposalSeq, ev Event) {
	pos := posOf(ev)
	i := sort.Search(len(st.held), func(i int) bool { return !posOf(st.held[i]).before(pos) })
	if i < len(st.held) && posOf(st.held[i]) == pos {
		return
	}
	st.held = append(st.held, Event{})
	copy(st.held[i+1:], st.held[i:])
	st.held[i] = ev

	if st.timer == nil {
		st.timer = time.AfterFunc(s.window, func() { s.expire(id, st) })
	}
}

// expire gives up on the missing versions and flushes what is held.
func (s *Sequencer) expire(id string, st *proposalSeq) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.proposals[id] != st || st.timer == nil {
		return
	}
	st.timer = nil
	if len(st.held) == 0 {
		return
	}
	s.log.Warn("proposal events missing; delivering held events",
		zap.String("proposal_id", id),
		zap.Int64("delivered_version", st.last.version),
		zap.Int64("next_held_version", st.held[0].Version))

	ctx := context.Background()
	held := st.held
	st.held = nil
	for _, ev := range held {
		if st.last.before(posOf(ev)) {
			s.deliver(ctx, st, ev)
		}
	}
}

// sweep forgets proposals with nothing held that have been quiet for
// proposalIdle. Called with s.mu held.
func (s *Sequencer) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < time.Minute {
		return
	}
	s.lastSweep = now
	for id, st := range s.proposals {
		if len(st.held) == 0 && now.Sub(st.touched) > proposalIdle {
			delete(s.proposals, id)
		}
	}
}

// tracked reports how many proposals currently have ordering state.
func (s *Sequencer) tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.proposals)
}

// Close stops pending timers and discards held events.
func (s *Sequencer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, st := range s.proposals {
		if st.timer != nil {
			st.timer.Stop()
		}
	}
	s.proposals = nil
}
