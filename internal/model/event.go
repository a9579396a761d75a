package model

import (
	"encoding/json"
	"fmt"
)

// Event is an engine event enriched with its commit metadata.
type Event struct {
	Seq       uint64      `json:"seq"`
	Name      EventName   `json:"event_name"`
	Timestamp uint64      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// EventRecord is the JSON representation read back by consumers.
type EventRecord struct {
	Seq       uint64          `json:"seq"`
	Name      EventName       `json:"event_name"`
	Timestamp uint64          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Record re-encodes the payload so the event can be consumed like one read
// from a stream.
func (e Event) Record() (EventRecord, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return EventRecord{}, fmt.Errorf("marshal %s payload: %w", e.Name, err)
	}
	return EventRecord{Seq: e.Seq, Name: e.Name, Timestamp: e.Timestamp, Data: data}, nil
}

// Decode unmarshals the payload into the type registered for the event name.
func (r EventRecord) Decode() (interface{}, error) {
	var target interface{}
	switch r.Name {
	case EventDeposit:
		target = &DepositEventData{}
	case EventWithdraw:
		target = &WithdrawEventData{}
	case EventOpenPosition:
		target = &OpenPositionEventData{}
	case EventClosePosition:
		target = &ClosePositionEventData{}
	case EventHarvestFee:
		target = &HarvestFeeEventData{}
	case EventSwap:
		target = &SwapEventData{}
	case EventUpdatePoolState:
		target = &UpdatePoolStateEventData{}
	case EventTickUpdate:
		target = &TickUpdateEventData{}
	case EventSuspendPayableAPI, EventResumePayableAPI:
		target = &PayableAPIEventData{}
	default:
		return nil, fmt.Errorf("unknown event %q", r.Name)
	}
	if err := json.Unmarshal(r.Data, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.Name, err)
	}
	return target, nil
}
