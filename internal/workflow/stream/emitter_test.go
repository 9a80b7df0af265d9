package stream_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecraft-ai-api/internal/workflow/model"
	"codecraft-ai-api/internal/workflow/stream"
)

func TestEmitter_OrderedDelivery(t *testing.T) {
	e := stream.NewEmitter(8)
	ctx := context.Background()

	assert.True(t, e.Emit(ctx, model.StatusEvent(model.StepIngestInput, "first")))
	assert.True(t, e.Emit(ctx, model.ChunkEvent(model.StepGenerateCode, "second")))
	assert.True(t, e.Emit(ctx, model.CompleteEvent("p1", 3, "/v1/projects/p1/download", "success", "done", nil)))

	var got []model.StreamEvent
	for ev := range e.Events() {
		got = append(got, ev)
	}
	require.Len(t, got, 3)
	assert.Equal(t, model.EventTypeStatus, got[0].Type)
	assert.Equal(t, model.EventTypeStreamChunk, got[1].Type)
	assert.Equal(t, model.EventTypeComplete, got[2].Type)
}

func TestEmitter_DropsAfterTerminal(t *testing.T) {
	e := stream.NewEmitter(8)
	ctx := context.Background()

	require.True(t, e.Emit(ctx, model.ErrorEvent("3003", "boom", "")))
	assert.False(t, e.Emit(ctx, model.StatusEvent(model.StepAssemble, "late")))

	count := 0
	for range e.Events() {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestEmitter_AbortUnblocksProducer(t *testing.T) {
	e := stream.NewEmitter(1)
	ctx := context.Background()

	// 填满缓冲
	require.True(t, e.Emit(ctx, model.StatusEvent(model.StepIngestInput, "buffered")))

	blocked := make(chan bool)
	go func() {
		blocked <- e.Emit(ctx, model.StatusEvent(model.StepExtractSchema, "stuck"))
	}()

	e.Abort()

	select {
	case ok := <-blocked:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("producer was not unblocked by Abort")
	}
}

func TestEmitter_ContextCancelUnblocksProducer(t *testing.T) {
	e := stream.NewEmitter(1)
	ctx, cancel := context.WithCancel(context.Background())

	require.True(t, e.Emit(ctx, model.StatusEvent(model.StepIngestInput, "buffered")))

	blocked := make(chan bool)
	go func() {
		blocked <- e.Emit(ctx, model.StatusEvent(model.StepExtractSchema, "stuck"))
	}()

	cancel()

	select {
	case ok := <-blocked:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("producer was not unblocked by context cancel")
	}
}

func TestWriteRecord(t *testing.T) {
	var buf bytes.Buffer
	err := stream.WriteRecord(&buf, model.StatusEvent(model.StepNormalizeSchema, "normalizing"))
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, len(out) > 0)
	assert.Contains(t, out, `"type":"status"`)
	assert.Contains(t, out, `"step":"normalize_schema"`)
	assert.Equal(t, "data: ", out[:6])
	assert.Equal(t, "\n\n", out[len(out)-2:])
}
