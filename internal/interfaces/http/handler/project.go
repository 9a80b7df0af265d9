package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"codecraft-ai-api/internal/infrastructure/archive"
	"codecraft-ai-api/internal/interfaces/http/dto"
	wfnode "codecraft-ai-api/internal/workflow/node"
)

// ProjectHandler 生成项目查询处理器
type ProjectHandler struct {
	registry     *archive.Registry
	previewLimit int
}

// NewProjectHandler 创建项目查询处理器
func NewProjectHandler(registry *archive.Registry, previewLimit int) *ProjectHandler {
	return &ProjectHandler{
		registry:     registry,
		previewLimit: previewLimit,
	}
}

// Download 下载生成的项目压缩包
// @Summary 下载项目压缩包
// @Description 按项目 ID 下载生成的 zip 文件，过期后返回 404
// @Tags Projects
// @Produce application/zip
// @Param pid path string true "项目 ID"
// @Success 200 "zip archive"
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/download [get]
func (h *ProjectHandler) Download(c *gin.Context) {
	p, err := h.registry.Get(c.Param("pid"))
	if err != nil {
		dto.AppError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.ArchiveName()))
	c.Data(http.StatusOK, "application/zip", p.Archive)
}

// Preview 预览生成的项目内容
// @Summary 预览项目文件
// @Description 返回项目元数据和每个文件的内容预览
// @Tags Projects
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 200 {object} dto.Response[dto.ProjectPreview]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/preview [get]
func (h *ProjectHandler) Preview(c *gin.Context) {
	p, err := h.registry.Get(c.Param("pid"))
	if err != nil {
		dto.AppError(c, err)
		return
	}

	preview := dto.ProjectPreview{
		ID:         p.ID,
		Name:       p.Name,
		Domain:     p.Domain,
		FilesCount: p.FilesCount,
		CreatedAt:  p.CreatedAt,
		ExpiresAt:  p.ExpiresAt,
		Files:      make([]dto.FilePreview, 0, len(p.Files)),
	}
	for _, f := range p.Files {
		preview.Files = append(preview.Files, dto.FilePreview{
			Path:    f.Path,
			Size:    f.Size,
			Preview: wfnode.TruncateByRunes(f.Content, h.previewLimit),
		})
	}

	dto.Success(c, preview)
}
