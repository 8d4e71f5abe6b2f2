package journal

import "fmt"

// Resequencer restores submission order over envelopes that arrive in any
// order. It must only ever be driven by a single goroutine; the Journal
// funnels all completions through one channel consumer, which is what makes
// the state safe without a lock.
type Resequencer struct {
	// delivered is the watermark: the highest sequence number released so
	// far. It only increases.
	delivered uint64
	// pending buffers envelopes that arrived ahead of the watermark. Every
	// key is strictly greater than delivered+1.
	pending map[uint64]Envelope
}

// NewResequencer returns a Resequencer with watermark 0, so the first
// releasable envelope is sequence number 1.
func NewResequencer() *Resequencer {
	return &Resequencer{pending: make(map[uint64]Envelope)}
}

// Delivered returns the current watermark.
func (r *Resequencer) Delivered() uint64 { return r.delivered }

// Buffered returns the number of envelopes waiting behind a gap.
func (r *Resequencer) Buffered() int { return len(r.pending) }

// Absorb accepts one envelope. If it is the next expected sequence number
// it is delivered immediately, followed by the contiguous run it unblocks;
// otherwise it is buffered. An envelope at or below the watermark means the
// front end violated its uniqueness/monotonicity contract, which is a
// programming error, not a data condition: Absorb panics rather than drop
// or re-deliver.
func (r *Resequencer) Absorb(env Envelope) {
	switch {
	case env.Seq <= r.delivered:
		panic(fmt.Sprintf("journal: resequencer received seq %d at or below watermark %d", env.Seq, r.delivered))
	case env.Seq == r.delivered+1:
		r.release(env)
		// Drain the contiguous run this envelope unblocked. An explicit
		// loop: the run may be arbitrarily long and must not ride the call
		// stack.
		for {
			next, ok := r.pending[r.delivered+1]
			if !ok {
				return
			}
			delete(r.pending, next.Seq)
			r.release(next)
		}
	default:
		r.pending[env.Seq] = env
	}
}

func (r *Resequencer) release(env Envelope) {
	r.delivered = env.Seq
	env.Dest.Deliver(env.Result, env.ReplyTo)
}
