package model

import (
	"encoding/json"
)

// EventType 流式事件类型
type EventType string

const (
	EventTypeStatus      EventType = "status"
	EventTypeStreamChunk EventType = "stream-chunk"
	EventTypeFile        EventType = "file"
	EventTypeComplete    EventType = "complete"
	EventTypeError       EventType = "error"
)

// StreamEvent 推送给客户端的单条事件
// Complete 与 Error 互斥，且一次运行恰好出现其一
type StreamEvent struct {
	Type EventType `json:"type"`

	// Type == EventTypeStatus / EventTypeStreamChunk
	Step    StepName `json:"step,omitempty"`
	Message string   `json:"message,omitempty"`
	Chunk   string   `json:"chunk,omitempty"`

	// Type == EventTypeFile
	Filename string `json:"filename,omitempty"`
	Preview  string `json:"preview,omitempty"`
	Size     int    `json:"size,omitempty"`

	// Type == EventTypeComplete
	ProjectID   string   `json:"project_id,omitempty"`
	FilesCount  int      `json:"files_count,omitempty"`
	DownloadURL string   `json:"download_url,omitempty"`
	Status      string   `json:"status,omitempty"`
	Failed      []string `json:"failed,omitempty"`

	// Type == EventTypeError
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Terminal 事件是否结束本次流
func (e StreamEvent) Terminal() bool {
	return e.Type == EventTypeComplete || e.Type == EventTypeError
}

// Encode 序列化为 JSON
func (e StreamEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// StatusEvent 构造阶段状态事件
func StatusEvent(step StepName, message string) StreamEvent {
	return StreamEvent{Type: EventTypeStatus, Step: step, Message: message}
}

// ChunkEvent 构造模型输出片段事件
func ChunkEvent(step StepName, chunk string) StreamEvent {
	return StreamEvent{Type: EventTypeStreamChunk, Step: step, Chunk: chunk}
}

// FileEvent 构造文件产出事件，预览内容由调用方截断
func FileEvent(filename, preview string, size int) StreamEvent {
	return StreamEvent{Type: EventTypeFile, Filename: filename, Preview: preview, Size: size}
}

// CompleteEvent 构造完成事件，failed 列出未能生成的产物
func CompleteEvent(projectID string, filesCount int, downloadURL, status, message string, failed []string) StreamEvent {
	return StreamEvent{
		Type:        EventTypeComplete,
		ProjectID:   projectID,
		FilesCount:  filesCount,
		DownloadURL: downloadURL,
		Status:      status,
		Message:     message,
		Failed:      failed,
	}
}

// ErrorEvent 构造错误事件
func ErrorEvent(code, message, detail string) StreamEvent {
	return StreamEvent{Type: EventTypeError, Code: code, Message: message, Detail: detail}
}
