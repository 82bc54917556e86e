package audit

import (
	"io"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the log directory and rotation bounds.
type Config struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
}

// Sink is the append-only audit log, split into four streams: security
// (auth and moderation), public-chat, dm (metadata only, never content)
// and access (HTTP/WS traffic). Each stream rotates by size.
type Sink struct {
	security   *streamWriter
	publicChat *streamWriter
	dm         *streamWriter
	access     *streamWriter
}

func NewSink(cfg Config) *Sink {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 5
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}
	open := func(name string) io.WriteCloser {
		return &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, name),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
	}
	return &Sink{
		security:   newStreamWriter(open("security.log")),
		publicChat: newStreamWriter(open("public-chat.log")),
		dm:         newStreamWriter(open("dm.log")),
		access:     newStreamWriter(open("access.log")),
	}
}

// Close flushes and closes every stream.
func (s *Sink) Close() error {
	var firstErr error
	for _, w := range []*streamWriter{s.security, s.publicChat, s.dm, s.access} {
		if err := w.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
