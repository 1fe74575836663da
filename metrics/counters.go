// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package metrics holds the plain counters the core accumulates for the
// display/diagnostics collaborators to read (SPEC_FULL.md §3 item 1). The
// core only ever increments these at the point spec.md §7 specifies; it
// never reads them back to change behavior.
package metrics

// Counters is the shared event tally the scheduler owns and every
// subsystem increments directly.
type Counters struct {
	RingOverflows    int
	SinkBeginErrors  int
	SinkWriteErrors  int
	SinkEndErrors    int
	FlashTimeouts    int
	FilesOpened      int
	FilesClosed      int
	FlowTransitions  int
	FlowEmergencies  int
}
