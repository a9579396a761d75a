package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"liquidityEngine/internal/model"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder(nil)
	r.ObserveCall("swap_exact_in", time.Millisecond, nil)
	r.ObserveCall("swap_exact_in", time.Millisecond, fmt.Errorf("limit: %w", model.ErrSlippage))
	r.ObserveEvents([]model.Event{
		{Seq: 1, Name: model.EventSwap, Data: model.SwapEventData{TickCrossings: 3}},
		{Seq: 2, Name: model.EventUpdatePoolState, Data: model.UpdatePoolStateEventData{}},
	})
	r.ObserveWrite(2, nil)

	if got := testutil.ToFloat64(r.calls.WithLabelValues("swap_exact_in", "ok")); got != 1 {
		t.Fatalf("ok calls %v", got)
	}
	if got := testutil.ToFloat64(r.calls.WithLabelValues("swap_exact_in", string(model.KindOf(model.ErrSlippage)))); got != 1 {
		t.Fatalf("rejected calls %v", got)
	}
	if got := testutil.ToFloat64(r.tickCrossings); got != 3 {
		t.Fatalf("tick crossings %v", got)
	}
	if got := testutil.ToFloat64(r.lastSeq); got != 2 {
		t.Fatalf("last seq %v", got)
	}
	if got := testutil.ToFloat64(r.written.WithLabelValues("ok")); got != 2 {
		t.Fatalf("written %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder(nil)
	r.ObserveEvents([]model.Event{{Seq: 5, Name: model.EventDeposit}})
	path := filepath.Join(t.TempDir(), "engine.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `liquidity_engine_events_total{event="deposit"} 1`) {
		t.Fatalf("missing event counter in:\n%s", data)
	}
}
