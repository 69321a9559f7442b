// Package analysis replays an encounter once per party member and
// assembles the per-member trigger report.
//
// Members are processed in batches. Each batch owns one perspective per
// member and one shared line cursor; batches run one after another on the
// calling goroutine. Batch size bounds how many rule engines are alive at
// once and never changes the report.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/encounterlab/internal/encounter"
	"github.com/roach88/encounterlab/internal/engine"
	"github.com/roach88/encounterlab/internal/gamedata"
	"github.com/roach88/encounterlab/internal/ir"
	"github.com/roach88/encounterlab/internal/perspective"
	"github.com/roach88/encounterlab/internal/rules"
	"github.com/roach88/encounterlab/internal/timeline"
)

// DefaultBatchSize is the number of perspectives replayed together.
const DefaultBatchSize = 24

// Analyzer runs trigger analyses. It holds no per-run state and may be
// reused; concurrent Analyze calls are safe.
type Analyzer struct {
	rules     rules.Provider
	zones     gamedata.Zones
	batchSize int
	runIDs    RunIDGenerator
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithBatchSize sets the batch size. Values below 1 keep the default.
func WithBatchSize(n int) Option {
	return func(a *Analyzer) {
		if n >= 1 {
			a.batchSize = n
		}
	}
}

// WithZones supplies zone names for encounters captured without one.
func WithZones(z gamedata.Zones) Option {
	return func(a *Analyzer) { a.zones = z }
}

// WithRunIDGenerator replaces the UUIDv7 run id source.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(a *Analyzer) { a.runIDs = g }
}

// New creates an Analyzer that looks rule sets up in p.
func New(p rules.Provider, opts ...Option) *Analyzer {
	a := &Analyzer{
		rules:     p,
		batchSize: DefaultBatchSize,
		runIDs:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BatchSize returns the configured batch size.
func (a *Analyzer) BatchSize() int { return a.batchSize }

// run is the explicit per-analysis context handed to every batch.
type run struct {
	enc    *encounter.Encounter
	rs     ir.RuleSet
	zone   Zone
	roster []engine.PartyMember
	cache  *engine.RegexCache
}

// Analyze replays enc for every party member.
//
// Members whose first recorded state has no job are reported as excluded
// and never replayed. Any UnreachableError aborts the analysis; a
// cancelled ctx returns ctx.Err(). Neither yields a partial report.
func (a *Analyzer) Analyze(ctx context.Context, enc *encounter.Encounter) (*Report, error) {
	zone, err := a.zoneOf(enc)
	if err != nil {
		return nil, err
	}

	rs := a.rules.RuleSet(zone.ID)
	rsDigest, err := rules.Digest(rs)
	if err != nil {
		return nil, err
	}

	r := &run{
		enc:   enc,
		rs:    rs,
		zone:  zone,
		cache: engine.NewRegexCache(),
	}

	perspectives := make(map[string]*Perspective)
	var eligible []string
	seen := make(map[string]bool)
	for _, id := range enc.PartyMembers() {
		if seen[id] {
			slog.Debug("duplicate party member ignored", "actor", id)
			continue
		}
		seen[id] = true
		first := enc.Tracker().FirstState(id)
		r.roster = append(r.roster, engine.PartyMember{ID: id, Name: first.Name, Job: first.Job})
		if first.Job == 0 {
			slog.Debug("member excluded", "actor", id, "reason", "no job")
			perspectives[id] = &Perspective{
				ActorID:     id,
				Excluded:    true,
				InitialData: ir.IRObject{},
			}
			continue
		}
		eligible = append(eligible, id)
	}

	slog.Info("analysis started",
		"encounter", enc.ID(),
		"zone", gamedata.FormatZoneID(zone.ID),
		"rule_set", rs.ID,
		"lines", enc.Len(),
		"members", len(perspectives)+len(eligible),
		"eligible", len(eligible),
		"batch_size", a.batchSize,
	)

	batch := 0
	for ids := range slices.Chunk(eligible, a.batchSize) {
		batch++
		results, err := r.replay(ctx, ids)
		if err != nil {
			slog.Error("analysis aborted", "encounter", enc.ID(), "batch", batch, "error", err)
			return nil, fmt.Errorf("batch %d: %w", batch, err)
		}
		for _, p := range results {
			perspectives[p.ActorID] = p
		}
	}

	for _, id := range eligible {
		if _, ok := perspectives[id]; !ok {
			return nil, encounter.NewMissingPerspective(id)
		}
	}

	report := &Report{
		RunID:          a.runIDs.Generate(),
		EncounterID:    enc.ID(),
		StartTimestamp: enc.StartTimestamp(),
		Zone:           zone,
		RuleSetID:      rs.ID,
		RuleSetDigest:  rsDigest,
		Perspectives:   perspectives,
	}
	if report.Digest, err = report.ComputeDigest(); err != nil {
		return nil, fmt.Errorf("report digest: %w", err)
	}

	slog.Info("analysis complete",
		"encounter", enc.ID(),
		"run_id", report.RunID,
		"batches", batch,
		"digest", report.Digest,
	)
	return report, nil
}

func (a *Analyzer) zoneOf(enc *encounter.Encounter) (Zone, error) {
	var zone Zone
	if enc.ZoneID() != "" {
		id, err := gamedata.ParseZoneID(enc.ZoneID())
		if err != nil {
			return zone, fmt.Errorf("encounter %s: %w", enc.ID(), err)
		}
		zone.ID = id
	}
	zone.Name = enc.ZoneName()
	if zone.Name == "" && zone.ID != 0 {
		zone.Name = a.zones.Name(zone.ID)
	}
	return zone, nil
}

// lineCursor is the single replay position shared by one batch.
type lineCursor struct {
	enc *encounter.Encounter
	pos int
}

func (c *lineCursor) Current() (ir.LogLine, error) {
	return c.enc.Line(c.pos)
}

// replay runs one batch of members through every line in lock-step.
func (r *run) replay(ctx context.Context, ids []string) ([]*Perspective, error) {
	cur := &lineCursor{enc: r.enc}

	contexts := make([]*perspective.Context, len(ids))
	results := make([]*Perspective, len(ids))
	for i, id := range ids {
		pc := perspective.New(id, r.rs, timeline.New(r.rs.Timeline, r.cache), cur,
			perspective.WithStartTimestamp(r.enc.StartTimestamp()),
			perspective.WithRegexCache(r.cache),
		)
		pc.OnPartyChanged(r.roster)
		pc.OnZoneChanged(r.zone.ID, r.zone.Name)
		if err := pc.OnPlayerStateChanged(r.enc.Tracker().FirstState(id)); err != nil {
			return nil, err
		}

		contexts[i] = pc
		results[i] = &Perspective{ActorID: id, InitialData: pc.Snapshot()}
	}

	for cur.pos = 0; cur.pos < r.enc.Len(); cur.pos++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := r.enc.Line(cur.pos)
		if err != nil {
			return nil, err
		}

		for i, pc := range contexts {
			id := ids[i]
			if r.enc.HasStateChangeAt(id, line.Timestamp) {
				if err := pc.OnPlayerStateChanged(r.enc.StateAt(id, line.Timestamp)); err != nil {
					return nil, err
				}
			}
			if err := pc.OnLogLine(ctx, line); err != nil {
				return nil, fmt.Errorf("member %s line %d: %w", id, line.Index, err)
			}
		}
	}

	for i, pc := range contexts {
		res := results[i]
		res.Triggers = pc.Records()
		res.FinalData = pc.Snapshot()
		if pending := len(pc.Pending()); pending > 0 {
			slog.Debug("firings never resolved", "actor", res.ActorID, "pending", pending)
		}
	}
	return results, nil
}
