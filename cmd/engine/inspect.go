package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"liquidityEngine/internal/config"
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/replay"
	"liquidityEngine/internal/tick"
)

type discardSink struct{}

func (discardSink) WriteEvents(context.Context, []model.Event) error { return nil }

type poolReport struct {
	Base          string         `yaml:"base"`
	Quote         string         `yaml:"quote"`
	TotalReserves [2]string      `yaml:"total_reserves"`
	SpotPrice     string         `yaml:"spot_price"`
	Distribution  []float64      `yaml:"liquidity_distribution,omitempty"`
	FeeLevel      uint8          `yaml:"fee_level"`
	FeeRate       int32          `yaml:"fee_rate"`
	Liquidity     string         `yaml:"liquidity"`
	TickCount     int            `yaml:"tick_count"`
	Ticks         []tickReport   `yaml:"ticks,omitempty"`
	Positions     []positionLine `yaml:"positions,omitempty"`
}

type tickReport struct {
	Tick   int32   `yaml:"tick"`
	Change float64 `yaml:"change"`
}

type positionLine struct {
	ID       uint64    `yaml:"id"`
	Owner    string    `yaml:"owner"`
	FeeLevel uint8     `yaml:"fee_level"`
	Low      int32     `yaml:"low"`
	High     int32     `yaml:"high"`
	Balance  [2]string `yaml:"balance"`
	Reward   [2]string `yaml:"reward_since_last"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInspect(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	level := tick.FeeLevel(cfg.FeeLevel)
	if cfg.FeeLevel < 0 || !level.Valid() {
		return fmt.Errorf("fee level %d: %w", cfg.FeeLevel, model.ErrIllegalFee)
	}

	sc, err := replay.LoadScenario(cfg.Scenario)
	if err != nil {
		return err
	}

	runner := replay.NewRunner(replay.RunConfig{BatchSize: uint64(len(sc.Actions)), Seed: cfg.Seed}, discardSink{}, nil, logger)
	res, err := runner.Run(cmd.Context(), sc)
	if err != nil {
		return err
	}
	engine := res.Engine

	var pairs [][2]dex.TokenID
	if len(cfg.Pool) == 2 {
		a, err := sc.Token(cfg.Pool[0])
		if err != nil {
			return err
		}
		b, err := sc.Token(cfg.Pool[1])
		if err != nil {
			return err
		}
		id, _, err := dex.NewPoolID(a, b)
		if err != nil {
			return err
		}
		pairs = append(pairs, [2]dex.TokenID{id.Left, id.Right})
	} else {
		infos, err := engine.PoolInfos()
		if err != nil {
			return err
		}
		for _, entry := range infos {
			pairs = append(pairs, [2]dex.TokenID{entry.Pool.Left, entry.Pool.Right})
		}
	}

	owners := make(map[uint64]string)
	for _, addr := range sc.Accounts {
		account, err := dex.ParseAddress(addr)
		if err != nil {
			return err
		}
		for _, id := range engine.AccountPositions(account) {
			owners[id] = account.Hex()
		}
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	for _, pair := range pairs {
		base, quote := pair[0], pair[1]
		if cfg.Side == "right" {
			base, quote = quote, base
		}
		report, err := inspectPool(engine, base, quote, level, owners)
		if err != nil {
			return err
		}
		if err := enc.Encode(report); err != nil {
			return err
		}
	}

	logger.Info("inspect complete", zap.Int("pools", len(pairs)), zap.Uint64("last_seq", engine.LastSeq()))
	return nil
}

func inspectPool(engine *dex.Engine, base, quote dex.TokenID, level tick.FeeLevel, owners map[uint64]string) (poolReport, error) {
	info, ok, err := engine.PoolInfo(base, quote)
	if err != nil {
		return poolReport{}, err
	}
	if !ok {
		return poolReport{}, fmt.Errorf("pool %s/%s: %w", base.Hex(), quote.Hex(), model.ErrPoolNotRegistered)
	}

	report := poolReport{
		Base:          base.Hex(),
		Quote:         quote.Hex(),
		TotalReserves: [2]string{info.TotalReserves.Left().String(), info.TotalReserves.Right().String()},
		FeeLevel:      uint8(level),
		FeeRate:       info.FeeRates[level],
		Liquidity:     info.Liquidities[level].Decimal().String(),
	}

	price, err := engine.SpotPriceFraction(base, quote, level)
	if err != nil {
		return poolReport{}, err
	}
	report.SpotPrice = price.String()

	if dist, ok, err := engine.LiquidityFeeLevelDistribution(base, quote); err != nil {
		return poolReport{}, err
	} else if ok {
		report.Distribution = dist[:]
	}

	if report.TickCount, err = engine.PoolTicks(base, quote, level); err != nil {
		return poolReport{}, err
	}
	if report.TickCount > 0 {
		// tick updates are reported through the event queue
		engine.DrainEvents()
		if _, err := engine.TicksLiquidityChange(base, quote, level, tick.MinTick, report.TickCount); err != nil {
			return poolReport{}, err
		}
		for _, ev := range engine.DrainEvents() {
			if update, ok := ev.Data.(model.TickUpdateEventData); ok {
				report.Ticks = append(report.Ticks, tickReport{Tick: update.Tick, Change: update.Change})
			}
		}
	}

	id, _, err := dex.NewPoolID(base, quote)
	if err != nil {
		return poolReport{}, err
	}
	for pid, owner := range owners {
		pos, err := engine.PositionInfo(pid)
		if err != nil {
			return poolReport{}, err
		}
		if pos.Pool != id {
			continue
		}
		report.Positions = append(report.Positions, positionLine{
			ID:       pid,
			Owner:    owner,
			FeeLevel: uint8(pos.FeeLevel),
			Low:      pos.Low.Index(),
			High:     pos.High.Index(),
			Balance:  [2]string{pos.Balance.Left().String(), pos.Balance.Right().String()},
			Reward:   [2]string{pos.RewardSinceLast.Left().String(), pos.RewardSinceLast.Right().String()},
		})
	}
	sort.Slice(report.Positions, func(i, j int) bool {
		return report.Positions[i].ID < report.Positions[j].ID
	})
	return report, nil
}
