package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/encounterlab/internal/ir"
)

// Provider supplies the rule set for a zone.
//
// A zone with no rule set gets an empty RuleSet; the analysis still runs
// and reports perspectives without firings.
type Provider interface {
	RuleSet(zoneID int64) ir.RuleSet
}

// Catalog is a Provider backed by compiled CUE rule sets.
// Immutable after Load; safe for concurrent use.
type Catalog struct {
	sets   []ir.RuleSet // sorted by ID
	byZone map[int64]int
}

// NewCatalog indexes rule sets by zone. A zone claimed by two rule sets is
// an error.
func NewCatalog(sets []ir.RuleSet) (*Catalog, error) {
	sorted := make([]ir.RuleSet, len(sets))
	copy(sorted, sets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	c := &Catalog{sets: sorted, byZone: make(map[int64]int)}
	for i, rs := range sorted {
		for _, z := range rs.ZoneIDs {
			if prev, ok := c.byZone[z]; ok && prev != i {
				return nil, fmt.Errorf("zone 0x%X claimed by rule sets %q and %q", z, sorted[prev].ID, rs.ID)
			}
			c.byZone[z] = i
		}
	}
	return c, nil
}

// RuleSet implements Provider.
func (c *Catalog) RuleSet(zoneID int64) ir.RuleSet {
	if i, ok := c.byZone[zoneID]; ok {
		return c.sets[i]
	}
	return ir.RuleSet{ZoneIDs: []int64{zoneID}}
}

// RuleSets returns every rule set sorted by ID.
func (c *Catalog) RuleSets() []ir.RuleSet {
	out := make([]ir.RuleSet, len(c.sets))
	copy(out, c.sets)
	return out
}

// LoadDir compiles every rule set found in the CUE package at dir.
// Rule sets live under the top-level "ruleset" struct:
//
//	ruleset: windward: {
//		zones: [0x4A1]
//		triggers: [{id: "charge", type: "StartsUsing", match: {id: "A3D5"}}]
//	}
//
// All compile and validation errors are collected and joined.
func LoadDir(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("rules directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("rules directory: not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("scan rules directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, errors.New("no CUE instances loaded")
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", formatCUEError(inst.Err))
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}
	return fromValue(value)
}

// LoadString compiles rule sets from CUE source. filename is used in
// error positions.
func LoadString(src, filename string) (*Catalog, error) {
	ctx := cuecontext.New()
	value := ctx.CompileString(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return fromValue(value)
}

func fromValue(value cue.Value) (*Catalog, error) {
	setsVal := value.LookupPath(cue.ParsePath("ruleset"))
	if !setsVal.Exists() {
		return nil, errors.New("no ruleset definitions found")
	}

	iter, err := setsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var sets []ir.RuleSet
	var errs []error
	for iter.Next() {
		rs, err := CompileRuleSet(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("ruleset.%s: %w", iter.Label(), err))
			continue
		}
		for _, verr := range Validate(rs) {
			errs = append(errs, fmt.Errorf("ruleset.%s: %w", iter.Label(), verr))
		}
		sets = append(sets, *rs)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return NewCatalog(sets)
}

// Digest returns the content digest of a compiled rule set.
// Equal rule sets digest equally regardless of map iteration order.
func Digest(rs ir.RuleSet) (string, error) {
	raw, err := json.Marshal(rs)
	if err != nil {
		return "", fmt.Errorf("marshal rule set %s: %w", rs.ID, err)
	}
	v, err := ir.UnmarshalIRValue(raw)
	if err != nil {
		return "", fmt.Errorf("rule set %s: %w", rs.ID, err)
	}
	return ir.Digest(ir.DomainRuleSet, v)
}
