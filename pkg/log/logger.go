package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Format 輸出格式
type Format string

const (
	// ConsoleFormat 人類可讀的單行輸出
	ConsoleFormat Format = "console"
	// JSONFormat 一行一筆 JSON
	JSONFormat Format = "json"
)

// Options for Logger
type Options struct {
	// Level 預設 info
	Level string
	// Format 預設 console
	Format Format
	// Out 預設 os.Stdout
	Out io.Writer
}

// ParseLevel 空字串視為 info
func ParseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(strings.ToLower(level))
}

// New 建立 root logger，各元件再用 With().Str("component", ...) 衍生
func New(opts Options) (zerolog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	switch opts.Format {
	case JSONFormat:
	case ConsoleFormat, "":
		out = zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", opts.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
