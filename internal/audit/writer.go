package audit

import (
	"io"
	"strings"
	"sync"
	"time"
)

// streamWriter renders entries for one audit stream in the human-readable
// layout the admin tooling expects:
//
//	-----------
//	25.08.2026
//	14:03:22 Login success for @alice (user id 2)
//	  ↳ client: Chrome 120 on Windows 11 (desktop)
//	    | quoted content line
//
// The separator block appears on date changes; an entry whose body equals
// the previous one is suppressed.
type streamWriter struct {
	mu  sync.Mutex
	out io.WriteCloser
	now func() time.Time

	lastDate string
	lastBody string
}

func newStreamWriter(out io.WriteCloser) *streamWriter {
	return &streamWriter{out: out, now: time.Now}
}

// entry is one audit record: a headline, detail lines and verbatim
// content lines.
type entry struct {
	headline string
	details  []string
	content  []string
}

func (e entry) body() string {
	var b strings.Builder
	b.WriteString(e.headline)
	for _, d := range e.details {
		b.WriteString("\n  ↳ ")
		b.WriteString(d)
	}
	for _, c := range e.content {
		b.WriteString("\n    | ")
		b.WriteString(c)
	}
	return b.String()
}

func (w *streamWriter) write(e entry) {
	body := e.body()

	w.mu.Lock()
	defer w.mu.Unlock()

	if body == w.lastBody {
		return
	}
	w.lastBody = body

	now := w.now()
	var b strings.Builder
	if date := now.Format("02.01.2006"); date != w.lastDate {
		w.lastDate = date
		b.WriteString("-----------\n")
		b.WriteString(date)
		b.WriteByte('\n')
	}
	b.WriteString(now.Format("15:04:05"))
	b.WriteByte(' ')
	b.WriteString(body)
	b.WriteByte('\n')

	_, _ = w.out.Write([]byte(b.String()))
}

func (w *streamWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Close()
}
