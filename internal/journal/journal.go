package journal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rzbill/scribe/internal/backend"
	"github.com/rzbill/scribe/internal/notify"
	logpkg "github.com/rzbill/scribe/pkg/log"
)

// ErrClosed is returned by submissions after Close.
var ErrClosed = errors.New("journal: closed")

// Options configures a Journal.
type Options struct {
	// Store is the write-side backend. Required.
	Store backend.Store
	// Replayer is the streaming read-side backend. Required.
	Replayer backend.Replayer
	// Publisher receives confirm/delete command events when
	// PublishCommands is set. Optional.
	Publisher notify.Publisher
	// PublishCommands enables publishing successful (and failed) confirm
	// and delete commands to Publisher.
	PublishCommands bool
	// Logger defaults to a journal-tagged text logger.
	Logger logpkg.Logger
	// QueueLen is the buffer length of the request and completion
	// channels. Defaults to 1024. A full request queue applies
	// backpressure to submitters.
	QueueLen int
}

// Journal is the persistence-journal front end. One run-loop goroutine
// exclusively owns the sequence counter; one resequencer goroutine
// exclusively owns ordering state. Backend operations run on worker
// goroutines and settle into the completion channel.
type Journal struct {
	store     backend.Store
	replayer  backend.Replayer
	publisher notify.Publisher
	publish   bool
	logger    logpkg.Logger

	requests    chan request
	completions chan Envelope
	reseq       *Resequencer

	// seq is the delivery-ordering counter, touched only by run().
	seq uint64

	inflight sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	drained  chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

type request interface{ request() }

type writeReq struct {
	rec     Record
	dest    Destination
	replyTo Ref
}

type batchReq struct {
	recs    []Record
	dest    Destination
	replyTo Ref
}

type replayReq struct {
	streamID string
	from, to uint64
	dest     Destination
}

type confirmReq struct {
	streamID  string
	seqNr     uint64
	channelID string
}

type deleteReq struct {
	streamID  string
	from, to  uint64
	permanent bool
}

type loopReq struct {
	msg     interface{}
	dest    Destination
	replyTo Ref
}

func (writeReq) request()   {}
func (batchReq) request()   {}
func (replayReq) request()  {}
func (confirmReq) request() {}
func (deleteReq) request()  {}
func (loopReq) request()    {}

// Open starts a Journal and its run-loop and resequencer goroutines.
func Open(opts Options) (*Journal, error) {
	if opts.Store == nil {
		return nil, errors.New("journal: Options.Store is required")
	}
	if opts.Replayer == nil {
		return nil, errors.New("journal: Options.Replayer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("journal"))
	}
	queue := opts.QueueLen
	if queue <= 0 {
		queue = 1024
	}
	ctx, cancel := context.WithCancel(context.Background())
	j := &Journal{
		store:       opts.Store,
		replayer:    opts.Replayer,
		publisher:   opts.Publisher,
		publish:     opts.PublishCommands && opts.Publisher != nil,
		logger:      logger,
		requests:    make(chan request, queue),
		completions: make(chan Envelope, queue),
		reseq:       NewResequencer(),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		drained:     make(chan struct{}),
	}
	go j.run()
	go j.resequence()
	return j, nil
}

// Write submits a single-record write. The next sequence number is consumed
// at submission; the settlement (WriteOK or WriteFailed) reaches dest in
// that position.
func (j *Journal) Write(rec Record, dest Destination, replyTo Ref) error {
	return j.submit(writeReq{rec: rec, dest: dest, replyTo: replyTo})
}

// WriteBatch submits an atomic batch write. The batch consumes one
// consecutive sequence number per record, in record order, and settles into
// one envelope per record: all WriteOK or all WriteFailed.
func (j *Journal) WriteBatch(recs []Record, dest Destination, replyTo Ref) error {
	return j.submit(batchReq{recs: recs, dest: dest, replyTo: replyTo})
}

// Replay streams the non-deleted records of streamID in [from, to] directly
// to dest, then delivers ReplayOK or ReplayFailed. Replay bypasses the
// resequencer: its deliveries carry no ordering relation to concurrent
// writes.
func (j *Journal) Replay(streamID string, from, to uint64, dest Destination) error {
	return j.submit(replayReq{streamID: streamID, from: from, to: to, dest: dest})
}

// Confirm records that channelID processed seqNr of streamID. Fire and
// forget: no result is delivered to any caller.
func (j *Journal) Confirm(streamID string, seqNr uint64, channelID string) error {
	return j.submit(confirmReq{streamID: streamID, seqNr: seqNr, channelID: channelID})
}

// Delete removes records of streamID in [from, to]. When permanent is false
// the records are marked deleted but keep their place in replay's sequence
// accounting. Fire and forget like Confirm.
func (j *Journal) Delete(streamID string, from, to uint64, permanent bool) error {
	return j.submit(deleteReq{streamID: streamID, from: from, to: to, permanent: permanent})
}

// Loop passes msg through the sequencing stream without backend I/O. It
// consumes one sequence number and reaches dest as LoopOK in that position
// relative to concurrent writes.
func (j *Journal) Loop(msg interface{}, dest Destination, replyTo Ref) error {
	return j.submit(loopReq{msg: msg, dest: dest, replyTo: replyTo})
}

// Close stops accepting submissions, waits for in-flight backend operations
// to settle and for the resequencer to drain, then releases resources.
func (j *Journal) Close() {
	j.closeOnce.Do(func() {
		j.mu.Lock()
		j.closed = true
		j.mu.Unlock()
		close(j.requests)
		<-j.done
		<-j.drained
		j.cancel()
	})
}

func (j *Journal) submit(req request) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}
	j.requests <- req
	return nil
}

// run is the single owner of the sequence counter. It assigns numbers and
// hands operations to worker goroutines; it never waits for a backend
// settlement itself.
func (j *Journal) run() {
	defer close(j.done)
	for req := range j.requests {
		switch q := req.(type) {
		case writeReq:
			j.seq++
			j.dispatchWrite(j.seq, q)
		case batchReq:
			if len(q.recs) == 0 {
				continue
			}
			first := j.seq + 1
			j.seq += uint64(len(q.recs))
			j.dispatchBatch(first, q)
		case loopReq:
			j.seq++
			j.completions <- Envelope{Seq: j.seq, Result: LoopOK{Message: q.msg}, Dest: q.dest, ReplyTo: q.replyTo}
		case replayReq:
			j.dispatchReplay(q)
		case confirmReq:
			j.dispatchConfirm(q)
		case deleteReq:
			j.dispatchDelete(q)
		}
	}
	// No further submissions. Let in-flight settlements land, then release
	// the resequencer goroutine.
	j.inflight.Wait()
	close(j.completions)
}

// resequence is the sole consumer of the completion channel and therefore
// the sole driver of resequencer state.
func (j *Journal) resequence() {
	defer close(j.drained)
	for env := range j.completions {
		j.reseq.Absorb(env)
	}
}

// prepare derives the stored form of a record: the sender identity is
// resolved, and transient completion handles are replaced with NoSender so
// they cannot leak into storage.
func (j *Journal) prepare(rec Record) backend.Record {
	sender := rec.Sender
	if sender == nil {
		sender = NoSender
	}
	if _, ok := sender.(TransientRef); ok {
		sender = NoSender
	}
	return backend.Record{
		StreamID: rec.StreamID,
		Seq:      rec.Seq,
		Deleted:  rec.Deleted,
		Sender:   sender.ID(),
		Payload:  rec.Payload,
	}
}

func recordFromBackend(rec backend.Record) Record {
	var sender Ref = NoSender
	if rec.Sender != "" {
		sender = RefID(rec.Sender)
	}
	return Record{
		StreamID: rec.StreamID,
		Seq:      rec.Seq,
		Deleted:  rec.Deleted,
		Sender:   sender,
		Payload:  rec.Payload,
	}
}

func (j *Journal) dispatchWrite(n uint64, q writeReq) {
	// The record carries its assigned number from here on.
	rec := q.rec
	rec.Seq = n
	prepared := j.prepare(rec)
	j.inflight.Add(1)
	go func() {
		defer j.inflight.Done()
		var res Result
		if err := j.store.WriteOne(j.ctx, prepared); err != nil {
			res = WriteFailed{Record: rec, Err: err}
		} else {
			res = WriteOK{Record: rec}
		}
		j.completions <- Envelope{Seq: n, Result: res, Dest: q.dest, ReplyTo: q.replyTo}
	}()
}

func (j *Journal) dispatchBatch(first uint64, q batchReq) {
	stamped := make([]Record, len(q.recs))
	prepared := make([]backend.Record, len(q.recs))
	for i, r := range q.recs {
		r.Seq = first + uint64(i)
		stamped[i] = r
		prepared[i] = j.prepare(r)
	}
	j.inflight.Add(1)
	go func() {
		defer j.inflight.Done()
		err := j.store.WriteBatch(j.ctx, prepared)
		// One envelope per record, all OK or all Failed, each at its
		// pre-assigned number.
		for _, r := range stamped {
			var res Result
			if err != nil {
				res = WriteFailed{Record: r, Err: err}
			} else {
				res = WriteOK{Record: r}
			}
			j.completions <- Envelope{Seq: r.Seq, Result: res, Dest: q.dest, ReplyTo: q.replyTo}
		}
	}()
}

func (j *Journal) dispatchReplay(q replayReq) {
	j.inflight.Add(1)
	go func() {
		defer j.inflight.Done()
		maxSeq, err := j.replayer.ReplayStream(j.ctx, q.streamID, q.from, q.to, func(rec backend.Record) {
			q.dest.Deliver(Replayed{Record: recordFromBackend(rec)}, NoSender)
		})
		if err != nil {
			q.dest.Deliver(ReplayFailed{Err: err}, NoSender)
			return
		}
		q.dest.Deliver(ReplayOK{MaxSeq: maxSeq}, NoSender)
	}()
}

func (j *Journal) dispatchConfirm(q confirmReq) {
	j.inflight.Add(1)
	go func() {
		defer j.inflight.Done()
		if err := j.store.Confirm(j.ctx, q.streamID, q.seqNr, q.channelID); err != nil {
			j.logger.Warn("confirm failed",
				logpkg.F("stream", q.streamID), logpkg.F("seq_nr", q.seqNr),
				logpkg.F("channel", q.channelID), logpkg.Err(err))
			j.publishEvent(notify.Event{
				Kind: notify.KindConfirmFailed, StreamID: q.streamID,
				SeqNr: q.seqNr, ChannelID: q.channelID, Error: err.Error(),
			})
			return
		}
		j.publishEvent(notify.Event{
			Kind: notify.KindConfirmed, StreamID: q.streamID,
			SeqNr: q.seqNr, ChannelID: q.channelID,
		})
	}()
}

func (j *Journal) dispatchDelete(q deleteReq) {
	j.inflight.Add(1)
	go func() {
		defer j.inflight.Done()
		if err := j.store.DeleteRange(j.ctx, q.streamID, q.from, q.to, q.permanent); err != nil {
			j.logger.Warn("delete failed",
				logpkg.F("stream", q.streamID), logpkg.F("from", q.from),
				logpkg.F("to", q.to), logpkg.F("permanent", q.permanent), logpkg.Err(err))
			j.publishEvent(notify.Event{
				Kind: notify.KindDeleteFailed, StreamID: q.streamID,
				FromSeq: q.from, ToSeq: q.to, Permanent: q.permanent, Error: err.Error(),
			})
			return
		}
		j.publishEvent(notify.Event{
			Kind: notify.KindDeleted, StreamID: q.streamID,
			FromSeq: q.from, ToSeq: q.to, Permanent: q.permanent,
		})
	}()
}

func (j *Journal) publishEvent(ev notify.Event) {
	if !j.publish {
		return
	}
	ev.ID = notify.NewEventID()
	ev.AtMs = time.Now().UnixMilli()
	j.publisher.Publish(ev)
}
