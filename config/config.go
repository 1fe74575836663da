// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package config models the bridge's compile-time knobs as plain data
// (spec.md §9: "Configuration as data, not locators" — no accessor class,
// no per-field getters), built once (Default, in cmd/bridge) and passed by
// value to board/bridge.New, which hands its fields to each component's
// constructor, the way the teacher's own
// board packages pass e.g. usdhc.Config into a driver constructor instead
// of threading a service locator through it.
package config

import "time"

// Bridge is the complete set of knobs spec.md §6 calls out as the
// configuration surface.
type Bridge struct {
	// RingBufferCapacity is the parallel port ring buffer's byte capacity
	// (spec.md §3: 512 in the reference).
	RingBufferCapacity int

	// ChunkMax is the capture framer's maximum chunk payload.
	ChunkMax int

	// IdleTimeout closes an in-progress file after this much silence.
	IdleTimeout time.Duration

	// WarnPercent, CriticalPercent, RecoveryPercent are flow-control
	// thresholds as percentages of ring buffer capacity.
	WarnPercent, CriticalPercent, RecoveryPercent int

	// AckPulse is the parallel port ISR's ACK pulse width.
	AckPulse time.Duration

	// ExpectedFlashJEDECID is the only flash part this build trusts.
	ExpectedFlashJEDECID uint32

	// FilePrefix names files across all three sinks.
	FilePrefix string
}

// Default returns the reference firmware's configuration (spec.md §6).
func Default() Bridge {
	return Bridge{
		RingBufferCapacity:   512,
		ChunkMax:             256,
		IdleTimeout:          2 * time.Second,
		WarnPercent:          40,
		CriticalPercent:      70,
		RecoveryPercent:      40,
		AckPulse:             20 * time.Microsecond,
		ExpectedFlashJEDECID: 0xEF4018,
		FilePrefix:           "CAPTURE",
	}
}
