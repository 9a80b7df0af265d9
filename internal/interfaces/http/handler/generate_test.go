package handler_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecraft-ai-api/internal/config"
	"codecraft-ai-api/internal/infrastructure/archive"
	"codecraft-ai-api/internal/interfaces/http/handler"
	"codecraft-ai-api/internal/workflow/engine"
	workflowport "codecraft-ai-api/internal/workflow/port"
)

// fakeModelClient 为每个请求的表输出固定模块文件
type fakeModelClient struct{}

func (fakeModelClient) Chat(_ context.Context, req workflowport.ChatRequest) (*workflowport.ChatResponse, error) {
	table := "item"
	if i := strings.Index(req.User, `table "`); i >= 0 {
		rest := req.User[i+len(`table "`):]
		if j := strings.IndexByte(rest, '"'); j > 0 {
			table = rest[:j]
		}
	}
	content := fmt.Sprintf("**routes/%s.js**\n```js\nrouter.get('/%s', controller.list);\nmodule.exports = router;\n```\n", table, table)
	return &workflowport.ChatResponse{Content: content}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LLM.DefaultProvider = "openai"
	cfg.LLM.Providers = map[string]config.ProviderConfig{"openai": {Model: "gpt-4o"}}
	cfg.Workflow = config.WorkflowConfig{
		ModelRetries:       0,
		JSONRepairAttempts: 3,
		StreamBuffer:       64,
		PreviewLimit:       200,
		MaxUploadBytes:     1 << 20,
	}
	return cfg
}

func setupRouter(t *testing.T) (*gin.Engine, *archive.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	registry := archive.NewRegistry(time.Hour, time.Minute, 0)
	t.Cleanup(registry.Close)

	eng := engine.New(fakeModelClient{}, archive.NewAssembler(), registry, cfg.Workflow)
	gh := handler.NewGenerateHandler(eng, cfg)
	ph := handler.NewProjectHandler(registry, cfg.Workflow.PreviewLimit)

	r := gin.New()
	r.POST("/v1/generate", gh.Generate)
	r.POST("/v1/generate/stream", gh.GenerateStream)
	r.GET("/v1/projects/:pid/download", ph.Download)
	r.GET("/v1/projects/:pid/preview", ph.Preview)
	return r, registry
}

const schemaBody = `{
  "input_type": "schema",
  "schema": {
    "entities": [
      {"name": "Employee", "attributes": [{"name": "id", "is_primary_key": true, "data_type": "INTEGER"}]}
    ]
  }
}`

func TestGenerate_SchemaInput(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(schemaBody))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			RunID       string `json:"run_id"`
			ProjectID   string `json:"project_id"`
			ProjectName string `json:"project_name"`
			Status      string `json:"status"`
			FilesCount  int    `json:"files_count"`
			DownloadURL string `json:"download_url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Data.Status)
	assert.Equal(t, "hr_management_system", resp.Data.ProjectName)
	assert.NotEmpty(t, resp.Data.ProjectID)
	assert.Equal(t, "/v1/projects/"+resp.Data.ProjectID+"/download", resp.Data.DownloadURL)
	assert.Greater(t, resp.Data.FilesCount, 4)
}

func TestGenerate_DownloadAndPreview(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(schemaBody))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			ProjectID string `json:"project_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	// 下载
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/projects/"+resp.Data.ProjectID+"/download", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "hr_management_system.zip")
	assert.Equal(t, "PK", w.Body.String()[:2], "zip magic bytes")

	// 预览
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/projects/"+resp.Data.ProjectID+"/preview", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var preview struct {
		Data struct {
			Name  string `json:"name"`
			Files []struct {
				Path string `json:"path"`
			} `json:"files"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, "hr_management_system", preview.Data.Name)
	assert.NotEmpty(t, preview.Data.Files)
}

func TestGenerate_UnknownProject(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/projects/nope/download", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerate_InvalidInputType(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(`{"input_type": "telepathy"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate_MissingPrompt(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(`{"input_type": "prompt"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate_UnknownProvider(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(`{"input_type": "prompt", "prompt": "x", "provider": "nonexistent"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate_MultipartMissingFile(t *testing.T) {
	r, _ := setupRouter(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("input_type", "erd_image"))
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// sseRecorder 补上 CloseNotify，gin 的 Stream 对纯 ResponseRecorder 会断言失败
type sseRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newSSERecorder() *sseRecorder {
	return &sseRecorder{
		ResponseRecorder: httptest.NewRecorder(),
		closed:           make(chan bool, 1),
	}
}

func (r *sseRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func TestGenerateStream_SSE(t *testing.T) {
	r, _ := setupRouter(t)

	w := newSSERecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate/stream", strings.NewReader(schemaBody))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	var types []string
	scanner := bufio.NewScanner(w.Body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal([]byte(line[len("data: "):]), &ev))
		types = append(types, ev.Type)
	}

	require.NotEmpty(t, types)
	assert.Equal(t, "status", types[0])
	assert.Equal(t, "complete", types[len(types)-1])
	assert.Contains(t, types, "file")
}
