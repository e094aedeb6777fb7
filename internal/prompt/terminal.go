package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Terminal reads answers from an input stream, one line per question. In
// batch mode, or when the input is not a terminal, every question is
// answered with its default without reading.
type Terminal struct {
	out    io.Writer
	reader *bufio.Reader
	batch  bool
	logger *slog.Logger
}

// NewTerminal returns a provider reading from in and writing questions to
// out. Batch mode is forced when in is a file that is not a terminal.
func NewTerminal(in io.Reader, out io.Writer, batch bool, logger *slog.Logger) *Terminal {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if f, ok := in.(*os.File); ok && !batch && !term.IsTerminal(int(f.Fd())) {
		logger.Debug("standard input is not a terminal, using default answers")
		batch = true
	}
	return &Terminal{
		out:    out,
		reader: bufio.NewReader(in),
		batch:  batch,
		logger: logger,
	}
}

// Ask implements Provider.
func (t *Terminal) Ask(q Question) (Answer, error) {
	if _, err := io.WriteString(t.out, q.String()); err != nil {
		return 0, fmt.Errorf("write question: %w", err)
	}
	if t.batch {
		fmt.Fprintln(t.out, q.Default)
		return q.Default, nil
	}

	line, err := t.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read answer: %w", err)
	}
	if errors.Is(err, io.EOF) && line == "" {
		fmt.Fprintln(t.out)
		t.logger.Debug("input closed, using default answer", "question", q.Message)
		return q.Default, nil
	}
	return ParseAnswer(line, q), nil
}
