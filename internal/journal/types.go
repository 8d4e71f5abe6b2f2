package journal

// Ref identifies a logical party in the journal protocol: a record's
// sender, or the reply-to identity a submission carried.
type Ref interface {
	ID() string
}

// RefID is a plain named Ref.
type RefID string

// ID implements Ref.
func (r RefID) ID() string { return string(r) }

// NoSender is the null identity. It replaces transient reply-to handles in
// prepared records and is the originating identity for direct replay
// deliveries.
var NoSender Ref = RefID("")

// TransientRef marks a Ref as an ephemeral completion handle. Prepared
// records must not leak such handles into storage, so the journal replaces
// them with NoSender before dispatch.
type TransientRef interface {
	Ref
	Transient()
}

// Destination receives operation results. Implementations decide what a
// delivery means; the journal only guarantees the order described in the
// package documentation.
type Destination interface {
	// Deliver hands a result to the destination. replyTo is the identity
	// the originating submission carried, or NoSender.
	Deliver(res Result, replyTo Ref)
}

// Record is an opaque persisted unit. On submission Seq may be left zero;
// the journal stamps the assigned sequence number into the copy it stores
// and echoes. Submitted records are never mutated in place; the journal
// derives a prepared copy with the sender identity resolved.
type Record struct {
	StreamID string
	Seq      uint64
	Deleted  bool
	Sender   Ref
	Payload  []byte
}

// Result is the tagged settlement of an operation.
type Result interface {
	result()
}

// WriteOK reports a successfully persisted record, echoing the original.
type WriteOK struct {
	Record Record
}

// WriteFailed reports a failed write, echoing the original record.
type WriteFailed struct {
	Record Record
	Err    error
}

// LoopOK echoes a loop message back in its sequencing position.
type LoopOK struct {
	Message interface{}
}

// Replayed carries one non-deleted record produced by a replay.
type Replayed struct {
	Record Record
}

// ReplayOK reports replay completion with the highest sequence observed.
type ReplayOK struct {
	MaxSeq uint64
}

// ReplayFailed reports a replay aborted by a backend error.
type ReplayFailed struct {
	Err error
}

func (WriteOK) result()      {}
func (WriteFailed) result()  {}
func (LoopOK) result()       {}
func (Replayed) result()     {}
func (ReplayOK) result()     {}
func (ReplayFailed) result() {}

// Envelope wraps a completion result with its assigned sequence number and
// routing identities. Envelopes are consumed exactly once by the
// resequencer.
type Envelope struct {
	Seq     uint64
	Result  Result
	Dest    Destination
	ReplyTo Ref
}
