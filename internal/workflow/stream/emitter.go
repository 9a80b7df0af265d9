// Package stream 实现生成过程的有序事件推送
package stream

import (
	"context"
	"fmt"
	"io"
	"sync"

	"codecraft-ai-api/internal/workflow/model"
	"codecraft-ai-api/pkg/metrics"
)

// DefaultBuffer 事件通道的默认缓冲大小
const DefaultBuffer = 64

// Emitter 单次运行的事件发射器，单生产者单消费者
// 事件按 Emit 调用顺序投递；终态事件（complete / error）恰好投递一条，
// 之后的 Emit 全部丢弃，通道随终态事件关闭。
type Emitter struct {
	ch   chan model.StreamEvent
	done chan struct{}

	mu       sync.Mutex
	terminal bool
}

// NewEmitter 创建发射器，buffer <= 0 时使用默认缓冲
func NewEmitter(buffer int) *Emitter {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Emitter{
		ch:   make(chan model.StreamEvent, buffer),
		done: make(chan struct{}),
	}
}

// Events 消费端读取的事件通道，终态事件之后关闭
func (e *Emitter) Events() <-chan model.StreamEvent {
	return e.ch
}

// Emit 投递一个事件
// 通道满时阻塞等待消费端，ctx 取消（客户端断开）时放弃投递并返回 false。
// 终态事件投递成功后关闭通道。
func (e *Emitter) Emit(ctx context.Context, ev model.StreamEvent) bool {
	e.mu.Lock()
	if e.terminal {
		e.mu.Unlock()
		return false
	}
	if ev.Terminal() {
		e.terminal = true
		// 终态事件投递后不再有写入，可安全关闭
		defer close(e.ch)
	}
	e.mu.Unlock()

	select {
	case e.ch <- ev:
		metrics.StreamEventsTotal.WithLabelValues(string(ev.Type)).Inc()
		return true
	case <-ctx.Done():
		return false
	case <-e.done:
		return false
	}
}

// Abort 消费端提前退出时调用，解除生产端阻塞并丢弃后续事件
func (e *Emitter) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal {
		return
	}
	e.terminal = true
	close(e.done)
}

// WriteRecord 按 SSE 协议写出一条事件：data: <json>\n\n
func WriteRecord(w io.Writer, ev model.StreamEvent) error {
	payload, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode stream event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
