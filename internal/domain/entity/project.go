// Package entity 定义领域实体
package entity

import (
	"time"
)

// GeneratedProject 一次生成运行打包后的项目产物
// 由产物仓库按 TTL 保留，供下载和预览接口使用
type GeneratedProject struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Domain     string        `json:"domain"`
	FilesCount int           `json:"files_count"`
	Archive    []byte        `json:"-"`
	Files      []ProjectFile `json:"files"`
	CreatedAt  time.Time     `json:"created_at"`
	ExpiresAt  time.Time     `json:"expires_at"`
}

// ProjectFile 项目中的单个文件
type ProjectFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Size    int    `json:"size"`
}

// ArchiveName 下载时使用的压缩包文件名
func (p *GeneratedProject) ArchiveName() string {
	if p.Name == "" {
		return "generated_project.zip"
	}
	return p.Name + ".zip"
}

// Expired 项目是否已过保留期
func (p *GeneratedProject) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
