package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cchalm/gpt-cli/internal/completion"
	"github.com/cchalm/gpt-cli/internal/transcript"
)

// memStore is an in-memory Store that counts saves
type memStore struct {
	msgs    []transcript.Message
	saves   int
	loadErr error
	saveErr error
}

func (ms *memStore) Load() ([]transcript.Message, error) {
	if ms.loadErr != nil {
		return nil, ms.loadErr
	}
	return append([]transcript.Message{}, ms.msgs...), nil
}

func (ms *memStore) Save(msgs []transcript.Message) error {
	if ms.saveErr != nil {
		return ms.saveErr
	}
	ms.saves++
	ms.msgs = append([]transcript.Message{}, msgs...)
	return nil
}

// scriptedCompleter replies with the queued replies in order and records every transcript it is sent
type scriptedCompleter struct {
	replies []string
	errs    map[int]error // call index -> error
	calls   [][]transcript.Message
}

func (sc *scriptedCompleter) Complete(ctx context.Context, msgs []transcript.Message) (string, error) {
	i := len(sc.calls)
	sc.calls = append(sc.calls, append([]transcript.Message{}, msgs...))
	if err := sc.errs[i]; err != nil {
		return "", err
	}
	return sc.replies[i], nil
}

func TestRun_ExchangesAndSaves(t *testing.T) {
	store := &memStore{}
	completer := &scriptedCompleter{replies: []string{"Hi there", "Fine"}}
	loop := New(store, completer)

	var out bytes.Buffer
	err := loop.Run(context.Background(), strings.NewReader("Hello\nHow are you?\nexit\nignored\n"), &out)
	require.NoError(t, err)

	expected := []transcript.Message{
		transcript.UserMessage("Hello"),
		transcript.AssistantMessage("Hi there"),
		transcript.UserMessage("How are you?"),
		transcript.AssistantMessage("Fine"),
	}
	require.Equal(t, expected, store.msgs)
	require.Equal(t, expected, loop.Messages())
	require.Equal(t, 2, store.saves)
	require.Equal(t, "Hi there\nFine\n", out.String())
	require.Equal(t, Terminated, loop.State())

	// Each call carries the whole transcript so far plus the new user message
	require.Len(t, completer.calls, 2)
	require.Equal(t, expected[:1], completer.calls[0])
	require.Equal(t, expected[:3], completer.calls[1])
}

func TestRun_ResumesStoredTranscript(t *testing.T) {
	store := &memStore{msgs: []transcript.Message{
		transcript.UserMessage("Hello"),
		transcript.AssistantMessage("Hi there"),
	}}
	completer := &scriptedCompleter{replies: []string{"Again?"}}

	err := New(store, completer).Run(context.Background(), strings.NewReader("Hello again\n"), &bytes.Buffer{})
	require.NoError(t, err)

	require.Len(t, store.msgs, 4)
	require.Len(t, completer.calls[0], 3)
	require.Equal(t, transcript.AssistantMessage("Hi there"), completer.calls[0][1])
}

func TestRun_Sentinels(t *testing.T) {
	for _, input := range []string{"exit\n", "quit\n", "  quit  \n", "exit"} {
		t.Run(strings.TrimSpace(input), func(t *testing.T) {
			store := &memStore{}
			completer := &scriptedCompleter{}

			err := New(store, completer).Run(context.Background(), strings.NewReader(input), &bytes.Buffer{})
			require.NoError(t, err)
			require.Empty(t, completer.calls)
			require.Zero(t, store.saves)
		})
	}
}

func TestRun_SentinelsAreCaseSensitive(t *testing.T) {
	store := &memStore{}
	completer := &scriptedCompleter{replies: []string{"ok"}}

	err := New(store, completer).Run(context.Background(), strings.NewReader("EXIT\nexit\n"), &bytes.Buffer{})
	require.NoError(t, err)
	require.Len(t, completer.calls, 1)
	require.Equal(t, "EXIT", completer.calls[0][0].Content)
}

func TestRun_EndOfInput(t *testing.T) {
	store := &memStore{}
	completer := &scriptedCompleter{replies: []string{"one", "two"}}

	// The final line has no newline and is still processed
	err := New(store, completer).Run(context.Background(), strings.NewReader("first\nsecond"), &bytes.Buffer{})
	require.NoError(t, err)
	require.Len(t, store.msgs, 4)
}

func TestRun_EmptyInput(t *testing.T) {
	store := &memStore{}
	completer := &scriptedCompleter{}

	err := New(store, completer).Run(context.Background(), strings.NewReader(""), &bytes.Buffer{})
	require.NoError(t, err)
	require.Empty(t, completer.calls)
}

func TestRun_BlankLinesAreSkipped(t *testing.T) {
	store := &memStore{}
	completer := &scriptedCompleter{replies: []string{"ok"}}

	err := New(store, completer).Run(context.Background(), strings.NewReader("\n   \nhi\n\n"), &bytes.Buffer{})
	require.NoError(t, err)
	require.Len(t, completer.calls, 1)
}

func TestRun_CompletionFailureKeepsEarlierTurns(t *testing.T) {
	store := &memStore{}
	remoteErr := &completion.RemoteError{StatusCode: 429, Body: "rate limited"}
	completer := &scriptedCompleter{
		replies: []string{"first reply"},
		errs:    map[int]error{1: remoteErr},
	}
	loop := New(store, completer)

	var out bytes.Buffer
	err := loop.Run(context.Background(), strings.NewReader("one\ntwo\nthree\n"), &out)

	var gotErr *completion.RemoteError
	require.ErrorAs(t, err, &gotErr)
	require.Equal(t, "rate limited", gotErr.Body)

	// The failed turn left nothing behind, the first turn is still saved
	expected := []transcript.Message{
		transcript.UserMessage("one"),
		transcript.AssistantMessage("first reply"),
	}
	require.Equal(t, expected, store.msgs)
	require.Equal(t, expected, loop.Messages())
	require.Equal(t, 1, store.saves)
	require.Len(t, completer.calls, 2, "the loop aborts after the failure")
	require.Equal(t, "first reply\n", out.String())
	require.Equal(t, Terminated, loop.State())
}

func TestRun_LoadFailure(t *testing.T) {
	store := &memStore{loadErr: transcript.ErrMalformedData}
	completer := &scriptedCompleter{}

	err := New(store, completer).Run(context.Background(), strings.NewReader("hi\n"), &bytes.Buffer{})
	require.ErrorIs(t, err, transcript.ErrMalformedData)
	require.Empty(t, completer.calls)
}

func TestRun_SaveFailure(t *testing.T) {
	saveErr := errors.New("disk full")
	store := &memStore{saveErr: saveErr}
	completer := &scriptedCompleter{replies: []string{"ok"}}
	loop := New(store, completer)

	var out bytes.Buffer
	err := loop.Run(context.Background(), strings.NewReader("hi\n"), &out)
	require.ErrorIs(t, err, saveErr)
	require.Empty(t, loop.Messages())
	require.Empty(t, out.String())
}

func TestRun_Prompt(t *testing.T) {
	store := &memStore{}
	completer := &scriptedCompleter{replies: []string{"pong"}}

	var out bytes.Buffer
	err := New(store, completer, WithPrompt(true)).Run(context.Background(), strings.NewReader("ping\nquit\n"), &out)
	require.NoError(t, err)
	require.Equal(t, "Enter 'exit' to quit.\n> pong\n> ", out.String())
}

func TestRun_WithFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.txt")
	codec, err := transcript.CodecFor("", path)
	require.NoError(t, err)
	store := transcript.NewFileStore(path, codec)
	completer := &scriptedCompleter{replies: []string{"line one\nline two: done"}}

	err = New(store, completer).Run(context.Background(), strings.NewReader("multi?\n"), &bytes.Buffer{})
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, []transcript.Message{
		transcript.UserMessage("multi?"),
		transcript.AssistantMessage("line one\nline two: done"),
	}, loaded)
}

func TestState_String(t *testing.T) {
	require.Equal(t, "running", Running.String())
	require.Equal(t, "terminated", Terminated.String())
}

func TestRun_StateDuringTurn(t *testing.T) {
	var loop *Loop
	var observed State
	completer := completion.CompleterFunc(func(ctx context.Context, msgs []transcript.Message) (string, error) {
		observed = loop.State()
		return "ok", nil
	})
	loop = New(&memStore{}, completer)
	require.Equal(t, Terminated, loop.State())

	err := loop.Run(context.Background(), strings.NewReader("hi\n"), &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, Running, observed)
	require.Equal(t, Terminated, loop.State())
}

func TestRun_CancelWhileWaitingForInput(t *testing.T) {
	store := &memStore{}
	completer := &scriptedCompleter{replies: []string{"ok"}}
	loop := New(store, completer)

	in, inW := io.Pipe()
	defer inW.Close()
	outR, out := io.Pipe()
	defer outR.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- loop.Run(ctx, in, out)
	}()

	// The reply is written after the turn is saved, after which the loop blocks on input that never arrives
	_, err := io.WriteString(inW, "hi\n")
	require.NoError(t, err)
	reply, err := bufio.NewReader(outR).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "ok\n", reply)

	cancel()
	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after the context was cancelled")
	}
	require.Equal(t, Terminated, loop.State())
	require.Len(t, store.msgs, 2)
	require.Len(t, completer.calls, 1)
}
