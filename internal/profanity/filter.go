package profanity

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// decisionCacheSize bounds the memo of recent Contains verdicts.
const decisionCacheSize = 4096

// Whole inputs whose compact form equals one of these are never flagged.
// Carves legitimate words out of aggressive subsequence matching.
var builtinWhitelist = []string{
	"assume", "assignment", "class", "classic", "classes", "bass", "brass",
	"grass", "glass", "pass", "password", "passed", "essex", "sussex",
	"scunthorpe", "mishit", "butterscotch",
}

type term struct {
	raw     string
	compact []rune
	// cap bounds subsequence matches; 0 disables that path. Phrases only
	// match via their pattern or the exact collapsed form.
	cap int
}

// snapshot is an immutable compiled term list. Readers load it through an
// atomic pointer; writers rebuild and swap.
type snapshot struct {
	entries   []string
	terms     []term
	phrases   []*regexp.Regexp
	whitelist map[string]struct{}
}

func compile(entries []string) *snapshot {
	snap := &snapshot{
		entries:   entries,
		whitelist: make(map[string]struct{}, len(builtinWhitelist)),
	}
	for _, w := range builtinWhitelist {
		snap.whitelist[string(compactProjection(fold(w)))] = struct{}{}
	}
	for _, entry := range entries {
		folded := fold(entry)
		spaced := spacedProjection(folded)
		isPhrase := strings.ContainsRune(spaced, ' ')
		if isPhrase {
			tokens := strings.Fields(spaced)
			for i, tok := range tokens {
				tokens[i] = regexp.QuoteMeta(tok)
			}
			if re, err := regexp.Compile(`\b` + strings.Join(tokens, `\W+`) + `\b`); err == nil {
				snap.phrases = append(snap.phrases, re)
			}
		}
		compact := compactProjection(folded)
		if len(compact) == 0 {
			continue
		}
		t := term{raw: entry, compact: compact}
		if !isPhrase {
			t.cap = spanCap(len(compact))
		}
		snap.terms = append(snap.terms, t)
	}
	return snap
}

func (s *snapshot) match(text string) bool {
	folded := fold(text)
	compact := compactProjection(folded)

	if _, ok := s.whitelist[string(compact)]; ok {
		return false
	}

	spaced := spacedProjection(folded)
	for _, re := range s.phrases {
		if re.MatchString(spaced) {
			return true
		}
	}

	haystack := string(compact)
	for _, t := range s.terms {
		if strings.Contains(haystack, string(t.compact)) {
			return true
		}
		// Subsequence matching catches interleaved padding, but only for
		// single-word terms long enough to make a stretched match
		// meaningful.
		if t.cap == 0 || len(t.compact) < 3 {
			continue
		}
		if span := shortestSubsequenceSpan(compact, t.compact); span > 0 && span <= t.cap {
			return true
		}
	}
	return false
}

// Filter rejects content matching the managed term list. Lookups are
// lock-free; mutations serialize on mu and swap a fresh snapshot.
type Filter struct {
	path   string
	logger *slog.Logger

	snap  atomic.Pointer[snapshot]
	mu    sync.Mutex
	cache *lru.Cache[string, bool]
}

// NewFilter loads the blocklist file (if present) and compiles the first
// snapshot.
func NewFilter(path string, logger *slog.Logger) (*Filter, error) {
	cache, err := lru.New[string, bool](decisionCacheSize)
	if err != nil {
		return nil, err
	}
	f := &Filter{
		path:   path,
		logger: logger,
		cache:  cache,
	}
	entries, err := loadBlocklist(path)
	if err != nil {
		return nil, err
	}
	f.snap.Store(compile(entries))
	return f, nil
}

// Contains reports whether the text matches any blocked term or phrase.
func (f *Filter) Contains(text string) bool {
	if v, ok := f.cache.Get(text); ok {
		return v
	}
	v := f.snap.Load().match(text)
	f.cache.Add(text, v)
	return v
}

// Entries returns the current term list in storage order.
func (f *Filter) Entries() []string {
	current := f.snap.Load().entries
	out := make([]string, len(current))
	copy(out, current)
	return out
}

func (f *Filter) swap(entries []string) {
	f.snap.Store(compile(entries))
	f.cache.Purge()
}
