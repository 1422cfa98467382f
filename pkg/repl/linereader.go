package repl

import (
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"tlog.app/go/errors"
)

// Prompter reads one line of input after showing a prompt. *liner.State
// implements it.
type Prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// LineReader turns a Prompter into an io.Reader. A new line is requested
// only once everything read so far has been consumed, so the prompt shows
// up exactly when the lexer needs more input.
type LineReader struct {
	Prompter Prompter
	Prompt   string

	buf []byte
	err error
}

func NewLineReader(p Prompter, prompt string) *LineReader {
	return &LineReader{
		Prompter: p,
		Prompt:   prompt,
	}
}

func (r *LineReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}

		line, err := r.Prompter.Prompt(r.Prompt)
		if err == liner.ErrPromptAborted {
			err = io.EOF
		}
		if err != nil {
			r.err = err
			continue
		}

		if strings.TrimSpace(line) != "" {
			r.Prompter.AppendHistory(line)
		}

		r.buf = append(r.buf, line...)
		r.buf = append(r.buf, '\n')
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// Editor is a terminal line editor with history persisted in a file.
type Editor struct {
	*liner.State

	history string
}

// NewEditor opens the terminal. History is loaded from path if it exists;
// an empty path disables persistence.
func NewEditor(path string) *Editor {
	s := liner.NewLiner()
	s.SetCtrlCAborts(true)

	if path != "" {
		if f, err := os.Open(path); err == nil {
			_, _ = s.ReadHistory(f)
			_ = f.Close()
		}
	}

	return &Editor{
		State:   s,
		history: path,
	}
}

// Close saves the history and restores the terminal.
func (e *Editor) Close() error {
	if e.history != "" {
		f, err := os.Create(e.history)
		if err != nil {
			_ = e.State.Close()
			return errors.Wrap(err, "save history")
		}

		_, err = e.State.WriteHistory(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = e.State.Close()
			return errors.Wrap(err, "save history")
		}
	}

	return e.State.Close()
}
