package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"liquidityEngine/internal/fp"
)

func TestSwapEventDataJSONStringAmounts(t *testing.T) {
	payload := SwapEventData{
		Account:   "0x1111111111111111111111111111111111111111",
		TokenIn:   "0x2222222222222222222222222222222222222222",
		TokenOut:  "0x3333333333333333333333333333333333333333",
		Kind:      "exact_in",
		AmountIn:  fp.NewAmount(12345678901234567890),
		AmountOut: fp.NewAmount(42),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if v, ok := decoded["amount_in"].(string); !ok || v != "12345678901234567890" {
		t.Fatalf("amount_in should be a decimal string, got %v", decoded["amount_in"])
	}
	if _, ok := decoded["amount_out"].(string); !ok {
		t.Fatalf("amount_out should be string")
	}
}

func TestEventRecordDecode(t *testing.T) {
	event := Event{
		Seq:  3,
		Name: EventHarvestFee,
		Data: HarvestFeeEventData{
			Account:    "alice",
			PositionID: 9,
			Fee0:       fp.NewAmount(5),
		},
	}
	record, err := event.Record()
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	decoded, err := record.Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(*HarvestFeeEventData)
	if !ok {
		t.Fatalf("unexpected payload type %T", decoded)
	}
	if !reflect.DeepEqual(*got, event.Data) {
		t.Fatalf("payload mismatch: %+v", *got)
	}

	if _, err := (EventRecord{Name: "nope", Data: []byte("{}")}).Decode(); err == nil {
		t.Fatalf("expected error for unknown event")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{fmt.Errorf("open: %w", ErrSlippage), KindDomain},
		{fmt.Errorf("tick: %w", ErrInternalTickNotFound), KindInternal},
		{fmt.Errorf("mul: %w", ErrOverflow), KindNumeric},
		{errors.New("boom"), KindOther},
		{fmt.Errorf("%w: %w", ErrSlippage, ErrInternalLogicError), KindInternal},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
	if got := ErrorName(fmt.Errorf("swap: %w", ErrInsufficientLiquidity)); got != "insufficient liquidity" {
		t.Fatalf("unexpected name %q", got)
	}
}
