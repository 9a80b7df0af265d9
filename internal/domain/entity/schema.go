// Package entity 定义领域实体
package entity

import (
	"strings"
)

// CanonicalSchema 规范化后的数据库模式
// 工作流各阶段围绕该结构流转：模型输出先被解析为它，再经过规范化与校验
type CanonicalSchema struct {
	ProjectName   string               `json:"project_name,omitempty"`
	Entities      []SchemaEntity       `json:"entities"`
	Relationships []SchemaRelationship `json:"relationships,omitempty"`
	Metadata      SchemaMetadata       `json:"metadata,omitempty"`
}

// SchemaEntity 模式中的一张表
type SchemaEntity struct {
	Name       string            `json:"name"`
	Attributes []SchemaAttribute `json:"attributes"`
}

// SchemaAttribute 表中的一列
type SchemaAttribute struct {
	IsPrimaryKey     bool   `json:"is_primary_key,omitempty"`
	IsForeignKey     bool   `json:"is_foreign_key,omitempty"`
	Name             string `json:"name"`
	DataType         string `json:"data_type,omitempty"`
	ReferencesTable  string `json:"references_table,omitempty"`
	ReferencesColumn string `json:"references_column,omitempty"`
}

// SchemaRelationship 实体间关系
type SchemaRelationship struct {
	FromEntity string `json:"from_entity"`
	ToEntity   string `json:"to_entity"`
	Type       string `json:"type,omitempty"` // one_to_one / one_to_many / many_to_many
	ViaColumn  string `json:"via_column,omitempty"`
}

// SchemaMetadata 模式的来源信息
type SchemaMetadata struct {
	Source      string `json:"source,omitempty"` // erd_image / prompt / structured / frontend_archive
	Description string `json:"description,omitempty"`
}

// FindEntity 按名称查找实体（忽略大小写与下划线）
func (s *CanonicalSchema) FindEntity(name string) *SchemaEntity {
	target := normalizeName(name)
	for i := range s.Entities {
		if normalizeName(s.Entities[i].Name) == target {
			return &s.Entities[i]
		}
	}
	return nil
}

// PrimaryKeys 返回实体的全部主键列
func (e *SchemaEntity) PrimaryKeys() []SchemaAttribute {
	var pks []SchemaAttribute
	for _, a := range e.Attributes {
		if a.IsPrimaryKey {
			pks = append(pks, a)
		}
	}
	return pks
}

// ForeignKeys 返回实体的全部外键列
func (e *SchemaEntity) ForeignKeys() []SchemaAttribute {
	var fks []SchemaAttribute
	for _, a := range e.Attributes {
		if a.IsForeignKey {
			fks = append(fks, a)
		}
	}
	return fks
}

// FindAttribute 按名称查找列（忽略大小写与下划线）
func (e *SchemaEntity) FindAttribute(name string) *SchemaAttribute {
	target := normalizeName(name)
	for i := range e.Attributes {
		if normalizeName(e.Attributes[i].Name) == target {
			return &e.Attributes[i]
		}
	}
	return nil
}

// normalizeName 名称归一化：小写且去掉下划线，用于不严格的名称匹配
func normalizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "")
}
