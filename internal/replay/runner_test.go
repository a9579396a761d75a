package replay

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/metrics"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

const scenarioYAML = `
name: basic
seed: replay-test
tokens:
  usd: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
  eth: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
accounts:
  alice: "0x1111111111111111111111111111111111111111"
  bob: "0x2222222222222222222222222222222222222222"
actions:
  - {op: deposit, account: alice, token: usd, amount: "1000"}
  - {op: deposit, account: alice, token: eth, amount: "1000"}
  - {op: open_position_full, account: alice, token_a: usd, token_b: eth, fee_rate: 1, amount_a: "1000", amount_b: "1000", label: lp}
  - {op: deposit, account: bob, token: usd, amount: "200"}
  - {op: swap_exact_in, account: bob, token_in: usd, token_out: eth, amount: "200", limit: "1000", expect_error: slippage}
  - {op: swap_exact_in, account: bob, token_in: usd, token_out: eth, amount: "200", limit: "100"}
  - {op: close_position, account: bob, position: lp, expect_error: not your position}
  - {op: close_position, account: alice, position: lp}
  - {op: withdraw, account: alice, token: usd}
`

type memorySink struct {
	mu     sync.Mutex
	events []model.Event
}

func (m *memorySink) WriteEvents(_ context.Context, events []model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func mustScenario(t *testing.T, text string) *Scenario {
	t.Helper()
	sc, err := ParseScenario([]byte(text))
	if err != nil {
		t.Fatalf("parse scenario: %v", err)
	}
	return sc
}

func mustAccount(t *testing.T, hex string) dex.AccountID {
	t.Helper()
	account, err := dex.ParseAddress(hex)
	if err != nil {
		t.Fatalf("parse address: %v", err)
	}
	return account
}

func TestRunScenario(t *testing.T) {
	sink := &memorySink{}
	recorder := metrics.NewRecorder(nil)
	runner := NewRunner(RunConfig{BatchSize: 3, Recorder: recorder}, sink, nil, nil)
	res, err := runner.Run(context.Background(), mustScenario(t, scenarioYAML))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Actions != 9 || res.Rejected != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Written != len(sink.events) || res.Written == 0 {
		t.Fatalf("written %d, sink has %d", res.Written, len(sink.events))
	}
	for i, ev := range sink.events {
		if ev.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d", i, ev.Seq)
		}
	}
	if len(res.Engine.AccountPositions(mustAccount(t, "0x1111111111111111111111111111111111111111"))) != 0 {
		t.Fatalf("position still open")
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	sc := mustScenario(t, scenarioYAML)

	first := &memorySink{}
	if _, err := NewRunner(RunConfig{BatchSize: 4}, first, storage.NewCheckpointStore(path, "basic", true), nil).Run(ctx, sc); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := &memorySink{}
	res, err := NewRunner(RunConfig{BatchSize: 4}, second, storage.NewCheckpointStore(path, "basic", true), nil).Run(ctx, sc)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second.events) != 0 || res.Skipped != len(first.events) {
		t.Fatalf("rerun wrote %d events, skipped %d of %d", len(second.events), res.Skipped, len(first.events))
	}
}

func TestUnexpectedOutcomeStopsRun(t *testing.T) {
	sc := mustScenario(t, `
accounts:
  alice: "0x1111111111111111111111111111111111111111"
tokens:
  usd: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
actions:
  - {op: deposit, account: alice, token: usd, amount: "5", expect_error: any}
`)
	_, err := NewRunner(RunConfig{BatchSize: 10}, &memorySink{}, nil, nil).Run(context.Background(), sc)
	if !errors.Is(err, model.ErrWrongActionResult) {
		t.Fatalf("expected wrong action result, got %v", err)
	}

	sc = mustScenario(t, `
accounts:
  alice: "0x1111111111111111111111111111111111111111"
tokens:
  usd: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
actions:
  - {op: withdraw, account: alice, token: usd, amount: "5"}
`)
	_, err = NewRunner(RunConfig{BatchSize: 10}, &memorySink{}, nil, nil).Run(context.Background(), sc)
	if !errors.Is(err, model.ErrAccountNotRegistered) {
		t.Fatalf("expected account not registered, got %v", err)
	}
}

func TestDepositSignedByOtherAccount(t *testing.T) {
	sc := mustScenario(t, `
accounts:
  alice: "0x1111111111111111111111111111111111111111"
  bob: "0x2222222222222222222222222222222222222222"
tokens:
  usd: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
actions:
  - {op: deposit, account: alice, signer: bob, token: usd, amount: "5", expect_error: deposit sender must be signer}
  - {op: deposit, account: alice, signer: alice, token: usd, amount: "5"}
`)
	res, err := NewRunner(RunConfig{BatchSize: 10}, &memorySink{}, nil, nil).Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Rejected != 1 {
		t.Fatalf("expected one rejected deposit, got %+v", res)
	}
	usd, err := sc.Token("usd")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	balance, err := res.Engine.Balance(mustAccount(t, "0x1111111111111111111111111111111111111111"), usd)
	if err != nil || balance.String() != "5" {
		t.Fatalf("balance %s, %v", balance, err)
	}
}

func TestParseScenarioRejects(t *testing.T) {
	cases := []string{
		`actions: []`,
		`actions: [{op: teleport}]`,
		"tokens: {usd: nope}\nactions: [{op: deposit}]",
	}
	for _, text := range cases {
		if _, err := ParseScenario([]byte(text)); err == nil {
			t.Fatalf("expected error for %q", text)
		}
	}
}
