// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package diag

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/devicebridge/firmware/flowcontrol"
	"github.com/devicebridge/firmware/metrics"
)

type fakeSource struct {
	fill, cap int
	state     flowcontrol.State
	counters  metrics.Counters
}

func (f *fakeSource) RingFill() int                    { return f.fill }
func (f *fakeSource) RingCapacity() int                 { return f.cap }
func (f *fakeSource) FlowState() flowcontrol.State      { return f.state }
func (f *fakeSource) Counters() metrics.Counters        { return f.counters }

func TestHandleStatusReportsSourceSnapshot(t *testing.T) {
	src := &fakeSource{
		fill:  42,
		cap:   256,
		state: flowcontrol.Warning,
		counters: metrics.Counters{
			RingOverflows: 3,
			FilesOpened:   7,
		},
	}
	s := New(src)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/status", nil)
	s.mux.ServeHTTP(rr, req)

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json content type, got %q", ct)
	}

	var snap Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if snap.RingFill != 42 || snap.RingCapacity != 256 {
		t.Errorf("expected fill=42 cap=256, got fill=%d cap=%d", snap.RingFill, snap.RingCapacity)
	}
	if snap.FlowState != flowcontrol.Warning.String() {
		t.Errorf("expected flow state %q, got %q", flowcontrol.Warning.String(), snap.FlowState)
	}
	if snap.Counters.RingOverflows != 3 || snap.Counters.FilesOpened != 7 {
		t.Errorf("expected counters to round-trip, got %+v", snap.Counters)
	}
}

func TestDebugChartsPathIsRegistered(t *testing.T) {
	s := New(&fakeSource{})

	if _, pattern := s.mux.Handler(httptest.NewRequest("GET", "/debug/charts", nil)); pattern != "/debug/charts" {
		t.Errorf("expected /debug/charts to be registered on the dedicated mux, got pattern %q", pattern)
	}
}
