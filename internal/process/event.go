package process

import "time"

// EventKind identifies what a handle is reporting.
type EventKind int

// Event kinds. EventExited and EventFailed with OutcomeTerminated are terminal.
const (
	EventStarted EventKind = iota
	EventDiagnostic
	EventProgress
	EventFailed
	EventExited
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventDiagnostic:
		return "diagnostic"
	case EventProgress:
		return "progress"
	case EventFailed:
		return "failed"
	case EventExited:
		return "exited"
	}
	return "unknown"
}

// Class groups diagnostic lines by what they say about the stream.
type Class int

// Diagnostic classes.
const (
	ClassInfo Class = iota
	ClassConnectivity
	ClassDecodeAnomaly
)

func (c Class) String() string {
	switch c {
	case ClassConnectivity:
		return "connectivity"
	case ClassDecodeAnomaly:
		return "decode_anomaly"
	}
	return "info"
}

// Outcome qualifies an EventFailed.
type Outcome int

// Failure outcomes. Only OutcomeTerminated means the process is gone.
const (
	OutcomeDecodeAnomaly Outcome = iota
	OutcomeTerminated
)

func (o Outcome) String() string {
	if o == OutcomeTerminated {
		return "terminated"
	}
	return "decode_anomaly"
}

// Diagnosis is the classification of one diagnostic line.
type Diagnosis struct {
	Level   string
	Message string
	Class   Class
}

// Classifier turns a raw stderr line into a Diagnosis.
type Classifier func(line string) Diagnosis

// Progress is one block of machine-readable progress output.
type Progress struct {
	Frame      int64
	FPS        float64
	Bitrate    string
	TotalSize  int64
	OutTime    time.Duration
	DupFrames  int64
	DropFrames int64
	Speed      float64
	State      string
}

// ProgressParser accumulates stdout lines and reports each completed block.
type ProgressParser interface {
	Feed(line string) (Progress, bool)
}

// Event is a single lifecycle report from a running handle.
type Event struct {
	Kind     EventKind
	Line     string
	Level    string
	Class    Class
	Progress Progress
	Outcome  Outcome
	ExitCode int
	Reason   string
}

// Terminal reports whether no further events follow e.
func (e Event) Terminal() bool {
	return e.Kind == EventExited || (e.Kind == EventFailed && e.Outcome == OutcomeTerminated)
}
