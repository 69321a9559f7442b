package engine

import (
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/roach88/encounterlab/internal/ir"
)

// RegexCache memoizes compiled match patterns.
//
// One cache is shared by every perspective of an analysis. Compiled
// regexps are safe for concurrent use, so only the map needs the lock.
type RegexCache struct {
	mu    sync.Mutex
	byPat map[string]*regexp.Regexp
}

// NewRegexCache creates an empty cache.
func NewRegexCache() *RegexCache {
	return &RegexCache{byPat: make(map[string]*regexp.Regexp)}
}

// Get returns the anchored compiled form of pattern.
// Patterns match a whole field value: "A3D5" never matches "A3D50".
func (c *RegexCache) Get(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if re, ok := c.byPat[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	c.byPat[pattern] = re
	return re, nil
}

// Len returns the number of cached patterns.
func (c *RegexCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byPat)
}

// MatchFields checks every (field, pattern) pair against fields.
//
// Returns the matches object on success: a copy of fields plus any named
// capture groups. A missing field never matches. Pairs are checked in
// sorted field order so capture-group collisions resolve the same way on
// every run.
func MatchFields(cache *RegexCache, match map[string]string, fields ir.IRObject) (ir.IRObject, bool, error) {
	keys := make([]string, 0, len(match))
	for k := range match {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var captures ir.IRObject
	for _, field := range keys {
		v, ok := fields[field]
		if !ok {
			return nil, false, nil
		}
		re, err := cache.Get(match[field])
		if err != nil {
			return nil, false, err
		}
		sub := re.FindStringSubmatch(ir.Text(v))
		if sub == nil {
			return nil, false, nil
		}
		for i, name := range re.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			if captures == nil {
				captures = ir.IRObject{}
			}
			captures[name] = ir.IRString(sub[i])
		}
	}

	matches := fields.Clone()
	if matches == nil {
		matches = ir.IRObject{}
	}
	for k, v := range captures {
		matches[k] = v
	}
	return matches, true, nil
}

// matchRule reports whether rule matches line. Only line-typed rules are
// considered; timeline rules are matched by matchCallout.
func (e *Engine) matchRule(rule ir.TriggerRule, line ir.LogLine) (ir.IRObject, bool, error) {
	if rule.Type == "" || rule.Type != line.Type {
		return nil, false, nil
	}
	return MatchFields(e.regexps, rule.Match, line.Fields)
}

// matchCallout reports whether a timeline rule matches a callout label.
func (e *Engine) matchCallout(rule ir.TriggerRule, c Callout) (ir.IRObject, bool, error) {
	if rule.Timeline == "" {
		return nil, false, nil
	}
	re, err := e.regexps.Get(rule.Timeline)
	if err != nil {
		return nil, false, err
	}
	if !re.MatchString(c.Label) {
		return nil, false, nil
	}
	return ir.IRObject{
		"label": ir.IRString(c.Label),
		"time":  ir.IRInt(c.TimeMs),
	}, true, nil
}
