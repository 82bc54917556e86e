package spam

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/fromchat/chat-core-service/internal/audit"
	"github.com/fromchat/chat-core-service/internal/domain/model"
)

// Suspension reasons, visible to the suspended user.
const (
	ReasonBurst  = "Automatic suspension: excessive message rate"
	ReasonRepeat = "Automatic suspension: repeated spam messages"
)

const normCacheSize = 2048

// Enforcer applies the suspension: delete the rows, flag the account,
// notify and audit. Implemented by the moderation service.
type Enforcer interface {
	AutoSuspend(ctx context.Context, user *model.User, matchType, reason string, messageIDs []int64, samples []string) error
}

// Config bounds the sliding windows and detection thresholds.
type Config struct {
	BurstWindow         time.Duration
	BurstCount          int
	SpamWindow          time.Duration
	SimilarityThreshold float64
	SpamLimit           int
	ShortLength         int
	ShortRepeat         int
}

type rateEntry struct {
	ts    time.Time
	msgID int64
}

type histEntry struct {
	normalized string
	original   string
	ts         time.Time
	msgID      int64
}

type window struct {
	rate    []rateEntry
	history []histEntry
	// warnedAt suppresses repeat burst warnings within one window.
	warnedAt time.Time
}

// Monitor keeps per-user sliding windows over recent public messages and
// fires the automatic suspension rules. Windows are in-memory only; a
// restart forgives history.
type Monitor struct {
	cfg      Config
	enforcer Enforcer
	sink     *audit.Sink
	logger   *slog.Logger
	now      func() time.Time

	normCache *lru.Cache[string, string]

	mu    sync.Mutex
	users map[int64]*window
}

func NewMonitor(cfg Config, enforcer Enforcer, sink *audit.Sink, logger *slog.Logger) *Monitor {
	cache, _ := lru.New[string, string](normCacheSize)
	return &Monitor{
		cfg:       cfg,
		enforcer:  enforcer,
		sink:      sink,
		logger:    logger,
		now:       time.Now,
		normCache: cache,
		users:     make(map[int64]*window),
	}
}

// normalize casefolds and strips everything but letters and digits, so
// punctuation or spacing tweaks do not defeat the repeat detectors.
func (m *Monitor) normalize(text string) string {
	if v, ok := m.normCache.Get(text); ok {
		return v
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	v := b.String()
	m.normCache.Add(text, v)
	return v
}

func splitChars(s string) []string {
	out := make([]string, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// similar reports whether two normalized texts are near-duplicates.
func (m *Monitor) similar(a, b string) bool {
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	return difflib.NewMatcher(splitChars(a), splitChars(b)).Ratio() >= m.cfg.SimilarityThreshold
}

type verdict struct {
	matchType string
	reason    string
	msgIDs    []int64
	samples   []string
}

// Observe records one successfully inserted public message and evaluates
// the rules. It reports whether the author got suspended. The owner and
// already-suspended accounts are exempt.
func (m *Monitor) Observe(ctx context.Context, user *model.User, content string, msgID int64) (bool, error) {
	if user.IsOwner() || user.Suspended {
		return false, nil
	}
	now := m.now()
	normalized := m.normalize(content)

	m.mu.Lock()
	w, ok := m.users[user.ID]
	if !ok {
		w = &window{}
		m.users[user.ID] = w
	}
	w.rate = append(w.rate, rateEntry{ts: now, msgID: msgID})
	w.history = append(w.history, histEntry{normalized: normalized, original: content, ts: now, msgID: msgID})
	m.trimLocked(w, now)

	var warn int
	if n := len(w.rate); n >= m.cfg.BurstCount/2 && n < m.cfg.BurstCount &&
		now.Sub(w.warnedAt) > m.cfg.BurstWindow {
		w.warnedAt = now
		warn = n
	}

	v := m.evaluateLocked(w, normalized)
	if v != nil {
		// Forget the window so an unsuspension does not instantly
		// re-trigger on stale history.
		delete(m.users, user.ID)
	}
	m.mu.Unlock()

	if warn > 0 {
		m.sink.PublicMessageBurst(user, warn)
	}
	if v == nil {
		return false, nil
	}
	if err := m.enforcer.AutoSuspend(ctx, user, v.matchType, v.reason, v.msgIDs, v.samples); err != nil {
		return false, err
	}
	return true, nil
}

// Forget drops a user's windows, the owner's rate-limit clear.
func (m *Monitor) Forget(userID int64) {
	m.mu.Lock()
	delete(m.users, userID)
	m.mu.Unlock()
}

func (m *Monitor) trimLocked(w *window, now time.Time) {
	cutRate := 0
	for cutRate < len(w.rate) && now.Sub(w.rate[cutRate].ts) > m.cfg.BurstWindow {
		cutRate++
	}
	w.rate = append(w.rate[:0], w.rate[cutRate:]...)

	cutHist := 0
	for cutHist < len(w.history) && now.Sub(w.history[cutHist].ts) > m.cfg.SpamWindow {
		cutHist++
	}
	w.history = append(w.history[:0], w.history[cutHist:]...)
}

// evaluateLocked applies the three rules against the freshly trimmed
// windows. The newest entry is the message just observed.
func (m *Monitor) evaluateLocked(w *window, normalized string) *verdict {
	if len(w.rate) >= m.cfg.BurstCount {
		ids := make([]int64, len(w.rate))
		for i, e := range w.rate {
			ids[i] = e.msgID
		}
		return &verdict{
			matchType: audit.MatchBurst,
			reason:    ReasonBurst,
			msgIDs:    ids,
			samples:   m.sampleLocked(w, nil),
		}
	}

	if normalized == "" {
		return nil
	}

	var exactIDs, similarIDs []int64
	exact, fuzzy := 0, 0
	for _, e := range w.history {
		if e.normalized == normalized {
			exact++
			exactIDs = append(exactIDs, e.msgID)
			similarIDs = append(similarIDs, e.msgID)
			continue
		}
		if m.similar(e.normalized, normalized) {
			fuzzy++
			similarIDs = append(similarIDs, e.msgID)
		}
	}

	// Short texts repeat legitimately ("ok", "lol") and get their own
	// exact-copy rule, but the combined exact+fuzzy threshold below still
	// applies to them: rotating near-duplicates must not slip through.
	if utf8.RuneCountInString(normalized) <= m.cfg.ShortLength && exact-1 >= m.cfg.ShortRepeat {
		return &verdict{
			matchType: audit.MatchShortRepeat,
			reason:    ReasonRepeat,
			msgIDs:    exactIDs,
			samples:   m.sampleLocked(w, exactIDs),
		}
	}

	if exact+fuzzy >= m.cfg.SpamLimit {
		return &verdict{
			matchType: audit.MatchSimilarRepeat,
			reason:    ReasonRepeat,
			msgIDs:    similarIDs,
			samples:   m.sampleLocked(w, similarIDs),
		}
	}
	return nil
}

// sampleLocked picks up to three originals for the audit record.
func (m *Monitor) sampleLocked(w *window, ids []int64) []string {
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var out []string
	for i := len(w.history) - 1; i >= 0 && len(out) < 3; i-- {
		if ids != nil {
			if _, ok := wanted[w.history[i].msgID]; !ok {
				continue
			}
		}
		out = append(out, w.history[i].original)
	}
	return out
}
