package domain

// Batch is a contiguous run of up to Config.TTSBatchSize sentences. Batch
// boundaries are chosen once, by the TTS Producer, and preserved by every
// downstream stage; a batch is the unit of back-pressure and of
// output-segment production.
type Batch struct {
	Counter   int
	Sentences []Sentence
}

// Terminator describes end-of-stream or a fatal upstream error. A nil Err
// means clean end-of-stream. Q1 and Q2 are chan Batch and mark end-of-stream
// by being closed; no Terminator travels over them.
type Terminator struct {
	Err error
}

// QueueMsg holds either a batch or a terminator, never both. Q1 and Q2 do
// not use it; they carry Batch values directly.
type QueueMsg struct {
	Batch *Batch
	Term  *Terminator
}
