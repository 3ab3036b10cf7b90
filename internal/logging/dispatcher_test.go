package logging_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpncalc/virtualblot/internal/dispatcher"
	"github.com/tpncalc/virtualblot/internal/logging"
)

func newLoggedDispatcher(t *testing.T, buf *bytes.Buffer) *dispatcher.Dispatcher {
	t.Helper()
	m := logging.NewSlogManager()
	m.Setup(buf, "debug", nil)

	d, err := dispatcher.New(logging.NewDispatcherLogger(m.Logger()))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func linesWith(out, needle string) []string {
	var found []string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, needle) {
			found = append(found, line)
		}
	}
	return found
}

func TestDispatcherLogger_CarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	d := newLoggedDispatcher(t, &buf)
	d.Register("render", func(ctx context.Context, e dispatcher.Event) (any, error) {
		return "ok", nil
	}, dispatcher.Logged())

	ctx := logging.WithRequestID(context.Background(), "req-42")
	_, err := d.Dispatch(ctx, dispatcher.Event{Command: "render", Payload: 3})
	require.NoError(t, err)

	out := buf.String()
	handling := linesWith(out, `msg="handling event"`)
	require.Len(t, handling, 1)
	assert.Contains(t, handling[0], "level=DEBUG")
	assert.Contains(t, handling[0], "command=render")
	assert.Contains(t, handling[0], "payload=int")
	assert.Contains(t, handling[0], "request_id=req-42")

	complete := linesWith(out, `msg="event complete"`)
	require.Len(t, complete, 1)
	assert.Contains(t, complete[0], "request_id=req-42")
}

func TestDispatcherLogger_FailureIsError(t *testing.T) {
	var buf bytes.Buffer
	d := newLoggedDispatcher(t, &buf)
	d.Register("store", func(ctx context.Context, e dispatcher.Event) (any, error) {
		return nil, errors.New("disk full")
	}, dispatcher.Logged())

	_, err := d.Dispatch(context.Background(), dispatcher.Event{Command: "store"})
	require.Error(t, err)

	failed := linesWith(buf.String(), `msg="event failed"`)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0], "level=ERROR")
	assert.Contains(t, failed[0], "command=store")
	assert.Contains(t, failed[0], `error="disk full"`)
	assert.NotContains(t, failed[0], "request_id=")
}

func TestDispatcherLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	m := logging.NewSlogManager()
	m.Setup(&buf, "info", nil)
	dl := logging.NewDispatcherLogger(m.Logger())

	dl.Debug(context.Background(), "hidden")
	dl.Info(logging.WithRequestID(context.Background(), "abc"), "bundle stored", "stem", "blot")

	assert.NotContains(t, buf.String(), "hidden")
	lines := linesWith(buf.String(), `msg="bundle stored"`)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "stem=blot")
	assert.Contains(t, lines[0], "request_id=abc")
}
