// Package process launches external programs and reports their lifecycle as
// a stream of events.
//
// A Launcher starts a Command and returns a Handle. The handle's Events
// channel carries, in order:
//   - EventStarted once readiness is observed on stdout
//   - EventDiagnostic for every stderr line, classified by a Classifier
//   - EventProgress for every completed progress block
//   - EventFailed with OutcomeDecodeAnomaly for error-level decode problems
//   - exactly one terminal event, EventExited (code 0) or EventFailed with
//     OutcomeTerminated, after which the channel is closed
//
// Terminate sends SIGINT to the process group and returns at once. If the
// group is still alive after the kill grace period it receives SIGKILL.
//
// Example:
//
//	l := &process.ExecLauncher{Logger: logging.GetLogger("process")}
//	h, err := l.Launch(ctx, process.Command{Path: "ffmpeg", Args: args})
//	if err != nil {
//	    return err
//	}
//	for ev := range h.Events() {
//	    if ev.Terminal() {
//	        log.Printf("ffmpeg finished: %s", ev.Reason)
//	    }
//	}
package process
