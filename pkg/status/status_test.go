package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder()

	rec.WriteLine(ctx, "first")
	rec.WriteLine(ctx, "second")

	lines := rec.Lines()
	require.Len(t, lines, 2, "recorder should keep every line")
	assert.Equal(t, "first", lines[0], "first line should match")
	assert.Equal(t, "second", lines[1], "second line should match")

	lines[0] = "mutated"
	assert.Equal(t, "first", rec.Lines()[0], "Lines should return a copy")
}

func TestRecorderConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.WriteLine(ctx, "tick")
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, rec.Len(), "all concurrent writes should be recorded")
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	a := NewRecorder()
	b := NewRecorder()

	sink := Multi(a, nil, b)
	sink.WriteLine(ctx, "hello")

	assert.Equal(t, []string{"hello"}, a.Lines(), "first sink should receive the line")
	assert.Equal(t, []string{"hello"}, b.Lines(), "second sink should receive the line")

	assert.NotPanics(t, func() { Discard.WriteLine(ctx, "dropped") }, "discard should accept lines")
}

func TestDefaultFormatter(t *testing.T) {
	f := NewDefaultFormatter()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "known_phase",
			got:  f.FormatPhase("collecting-associations"),
			want: "Collecting xrefs...",
		},
		{
			name: "unknown_phase",
			got:  f.FormatPhase("warming-up"),
			want: "warming-up...",
		},
		{
			name: "heartbeat_truncates",
			got:  f.FormatHeartbeat(3*time.Second + 400*time.Millisecond),
			want: "Uploading project... (3s)",
		},
		{
			name: "error",
			got:  f.FormatError(errors.New("boom")),
			want: "❌ Error: boom",
		},
		{
			name: "nil_error",
			got:  f.FormatError(nil),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got, "formatted line should match")
		})
	}
}
