// Package session runs the interactive read-complete-persist loop over a stored transcript.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cchalm/gpt-cli/internal/completion"
	"github.com/cchalm/gpt-cli/internal/transcript"
)

// State is the lifecycle state of a Loop
type State int

const (
	Running State = iota
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// exitSentinels end the loop when entered on their own. Matching is case-sensitive.
var exitSentinels = []string{"exit", "quit"}

// Store loads and saves the whole transcript
type Store interface {
	Load() ([]transcript.Message, error)
	Save(msgs []transcript.Message) error
}

// Loop owns the transcript for the duration of one session
type Loop struct {
	store     Store
	completer completion.Completer

	prompt bool
	logger logrus.FieldLogger

	state    State
	messages []transcript.Message
	turns    int
}

type Option func(*Loop)

// WithPrompt enables the greeting and the "> " input prompt
func WithPrompt(prompt bool) Option {
	return func(l *Loop) { l.prompt = prompt }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(l *Loop) { l.logger = logger }
}

func New(store Store, completer completion.Completer, opts ...Option) *Loop {
	l := &Loop{
		store:     store,
		completer: completer,
		state:     Terminated,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		l.logger = discard
	}
	return l
}

// State returns the current lifecycle state
func (l *Loop) State() State {
	return l.state
}

// Messages returns a copy of the transcript as it currently stands
func (l *Loop) Messages() []transcript.Message {
	return slices.Clone(l.messages)
}

// line is one read from the input, with the error that ended it if any
type line struct {
	text string
	err  error
}

// readLines feeds lines from in to the returned channel until a read fails or done is closed
func readLines(in io.Reader, done <-chan struct{}) <-chan line {
	lines := make(chan line)
	go func() {
		reader := bufio.NewReader(in)
		for {
			text, err := reader.ReadString('\n')
			select {
			case lines <- line{text: text, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return lines
}

// Run loads the transcript and processes one line of input per turn until an exit sentinel or the end of in. Each
// successful turn is saved before the reply is written to out. If a turn fails nothing from that turn is kept and the
// error is returned; earlier turns remain saved. Cancelling ctx ends the loop while it waits for input, and Run returns
// ctx.Err().
func (l *Loop) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	msgs, err := l.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load transcript: %w", err)
	}
	l.messages = msgs
	l.state = Running
	defer func() { l.state = Terminated }()

	l.logger.WithField("messages", len(msgs)).Debug("session started")
	if l.prompt {
		fmt.Fprintln(out, "Enter 'exit' to quit.")
	}

	done := make(chan struct{})
	defer close(done)
	lines := readLines(in, done)

	for {
		if l.prompt {
			fmt.Fprint(out, "> ")
		}
		var next line
		select {
		case <-ctx.Done():
			l.logger.Debug("session interrupted")
			return ctx.Err()
		case next = <-lines:
		}

		eof := errors.Is(next.err, io.EOF)
		if next.err != nil && !eof {
			return fmt.Errorf("failed to read input: %w", next.err)
		}
		if eof && next.text == "" {
			l.logger.Debug("end of input")
			return nil
		}

		text := strings.TrimSpace(next.text)
		if slices.Contains(exitSentinels, text) {
			l.logger.Debug("exit requested")
			return nil
		}
		if text != "" {
			if err := l.turn(ctx, text, out); err != nil {
				return err
			}
		}
		if eof {
			return nil
		}
	}
}

func (l *Loop) turn(ctx context.Context, text string, out io.Writer) error {
	pending := append(slices.Clone(l.messages), transcript.UserMessage(text))
	reply, err := l.completer.Complete(ctx, pending)
	if err != nil {
		return fmt.Errorf("failed to complete turn: %w", err)
	}

	pending = append(pending, transcript.AssistantMessage(reply))
	if err := l.store.Save(pending); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	l.messages = pending
	l.turns++
	l.logger.WithFields(logrus.Fields{"turn": l.turns, "messages": len(pending)}).Debug("turn saved")

	fmt.Fprintln(out, reply)
	return nil
}
