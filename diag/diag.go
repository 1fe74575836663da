// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package diag implements the optional network diagnostics endpoint
// (SPEC_FULL.md §2): a "/status" JSON snapshot of ring-buffer fill,
// flow-control state, and the error/event counters, plus debugcharts'
// own runtime charts under "/debug/charts", reachable over the
// USB-Ethernet gadget the board exposes. It is a collaborator surface exactly like the LCD or the
// serial shell (spec.md §1/§6) — the scheduler only ever writes counters
// into it, it never blocks core operation.
//
// The HTTP server and its gvisor listener setup are adapted from the
// teacher's own example/web_server.go and example/usb_ethernet.go, which
// already assemble a gvisor netstack over a USB gadget and serve
// "/debug/charts" and "/debug/pprof"; debugcharts is imported for its
// side-effect registration on the default mux exactly as that example
// does.
package diag

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	// registers /debug/charts on http.DefaultServeMux, same as the
	// teacher's example/web_server.go.
	_ "github.com/mkevac/debugcharts"

	"github.com/devicebridge/firmware/flowcontrol"
	"github.com/devicebridge/firmware/metrics"
)

// Snapshot is the live status this endpoint reports.
type Snapshot struct {
	RingFill     int              `json:"ring_fill"`
	RingCapacity int              `json:"ring_capacity"`
	FlowState    string           `json:"flow_state"`
	Counters     metrics.Counters `json:"counters"`
}

// Source supplies the values a Snapshot reports.
type Source interface {
	RingFill() int
	RingCapacity() int
	FlowState() flowcontrol.State
	Counters() metrics.Counters
}

// Server serves the diagnostics endpoint.
type Server struct {
	src Source
	mux *http.ServeMux
}

// New builds a diagnostics server reading from src. Handlers are
// registered on a dedicated mux (not http.DefaultServeMux) except for the
// debugcharts side-effect import, which only exposes the default mux's
// own "/debug/charts" path.
func New(src Source) *Server {
	s := &Server{src: src, mux: http.NewServeMux()}
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.Handle("/debug/charts", http.DefaultServeMux)
	return s
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := Snapshot{
		RingFill:     s.src.RingFill(),
		RingCapacity: s.src.RingCapacity(),
		FlowState:    s.src.FlowState().String(),
		Counters:     s.src.Counters(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		http.Error(w, fmt.Sprintf("encode: %v", err), http.StatusInternalServerError)
	}
}

// Serve runs the diagnostics HTTP server on the given listener (typically
// a gonet.Listener bound to a gvisor stack's NIC, as in the teacher's
// startWebServer). It returns when the listener is closed.
func (s *Server) Serve(l net.Listener) error {
	return http.Serve(l, s.mux)
}
