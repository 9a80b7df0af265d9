package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptERDExtractV1      PromptID = "erd_extract_v1"
	PromptTextExtractV1     PromptID = "text_extract_v1"
	PromptFrontendExtractV1 PromptID = "frontend_extract_v1"
	PromptCodegenV1         PromptID = "codegen_v1"
	PromptRepairV1          PromptID = "repair_v1"
)

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	systemPath, userPath, err := resolvePromptFiles(id)
	if err != nil {
		return nil, err
	}
	system, err := readEmbeddedText(systemPath)
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(userPath)
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

func resolvePromptFiles(id PromptID) (systemFile string, userFile string, err error) {
	switch id {
	case PromptERDExtractV1:
		return "templates/erd_extract_v1.system.txt", "templates/erd_extract_v1.user.txt", nil
	case PromptTextExtractV1:
		return "templates/text_extract_v1.system.txt", "templates/text_extract_v1.user.txt", nil
	case PromptFrontendExtractV1:
		return "templates/frontend_extract_v1.system.txt", "templates/frontend_extract_v1.user.txt", nil
	case PromptCodegenV1:
		return "templates/codegen_v1.system.txt", "templates/codegen_v1.user.txt", nil
	case PromptRepairV1:
		return "templates/repair_v1.system.txt", "templates/repair_v1.user.txt", nil
	default:
		return "", "", fmt.Errorf("unknown prompt id: %s", id)
	}
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
