package schema

import (
	"fmt"
	"strings"

	"codecraft-ai-api/internal/domain/entity"
	apperrors "codecraft-ai-api/pkg/errors"
)

// Normalizer 把模型输出的模式修整为可用于代码生成的规范模式
// 能修的修，修不了的丢弃并记录告警；只有实体清零时才算失败。
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize 规范化模式，返回规范结果与告警列表
// 输入不被修改。实体为空时返回 CodeSchemaInvalid 错误。
func (n *Normalizer) Normalize(in *entity.CanonicalSchema) (*entity.CanonicalSchema, []string, error) {
	if in == nil {
		return nil, nil, apperrors.ErrSchemaInvalid.WithDetail("schema is nil")
	}

	var warnings []string
	out := &entity.CanonicalSchema{
		ProjectName: strings.TrimSpace(in.ProjectName),
		Metadata:    in.Metadata,
	}

	// 1. 丢弃无名实体，按名称（忽略大小写与下划线）合并重复实体
	index := map[string]int{}
	for _, e := range in.Entities {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			warnings = append(warnings, "dropped entity without a name")
			continue
		}
		key := foldName(name)
		if i, ok := index[key]; ok {
			warnings = append(warnings, fmt.Sprintf("merged duplicate entity %q into %q", name, out.Entities[i].Name))
			out.Entities[i].Attributes = mergeAttributes(out.Entities[i].Attributes, e.Attributes, &warnings, out.Entities[i].Name)
			continue
		}
		index[key] = len(out.Entities)
		out.Entities = append(out.Entities, entity.SchemaEntity{
			Name:       name,
			Attributes: mergeAttributes(nil, e.Attributes, &warnings, name),
		})
	}

	if len(out.Entities) == 0 {
		return nil, warnings, apperrors.ErrSchemaInvalid.WithDetail("no usable entities after normalization")
	}

	// 2. 每个实体保证至少一个主键
	for i := range out.Entities {
		ensurePrimaryKey(&out.Entities[i], &warnings)
	}

	// 3. 解析并修正外键引用
	for i := range out.Entities {
		n.resolveForeignKeys(out, &out.Entities[i], &warnings)
	}

	// 4. 丢弃指向未知实体的关系
	for _, r := range in.Relationships {
		if out.FindEntity(r.FromEntity) == nil || out.FindEntity(r.ToEntity) == nil {
			warnings = append(warnings, fmt.Sprintf("dropped relationship %s -> %s: unknown entity", r.FromEntity, r.ToEntity))
			continue
		}
		out.Relationships = append(out.Relationships, r)
	}

	return out, warnings, nil
}

// mergeAttributes 合并属性列表，重名属性合并标志位并保留先出现的位置
func mergeAttributes(dst, src []entity.SchemaAttribute, warnings *[]string, entityName string) []entity.SchemaAttribute {
	index := map[string]int{}
	for i, a := range dst {
		index[foldName(a.Name)] = i
	}
	for _, a := range src {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			*warnings = append(*warnings, fmt.Sprintf("dropped unnamed attribute in entity %q", entityName))
			continue
		}
		a.Name = name
		key := foldName(name)
		if i, ok := index[key]; ok {
			merged := dst[i]
			merged.IsPrimaryKey = merged.IsPrimaryKey || a.IsPrimaryKey
			merged.IsForeignKey = merged.IsForeignKey || a.IsForeignKey
			if merged.DataType == "" {
				merged.DataType = a.DataType
			}
			if merged.ReferencesTable == "" {
				merged.ReferencesTable = a.ReferencesTable
			}
			if merged.ReferencesColumn == "" {
				merged.ReferencesColumn = a.ReferencesColumn
			}
			dst[i] = merged
			*warnings = append(*warnings, fmt.Sprintf("merged duplicate attribute %q in entity %q", name, entityName))
			continue
		}
		index[key] = len(dst)
		dst = append(dst, a)
	}
	return dst
}

// ensurePrimaryKey 无主键的实体优先提升名为 id 的列，否则补一个 id 列
func ensurePrimaryKey(e *entity.SchemaEntity, warnings *[]string) {
	if len(e.PrimaryKeys()) > 0 {
		return
	}
	if a := e.FindAttribute("id"); a != nil {
		a.IsPrimaryKey = true
		*warnings = append(*warnings, fmt.Sprintf("promoted %s.id to primary key", e.Name))
		return
	}
	e.Attributes = append([]entity.SchemaAttribute{{
		Name:         "id",
		DataType:     "INTEGER",
		IsPrimaryKey: true,
	}}, e.Attributes...)
	*warnings = append(*warnings, fmt.Sprintf("added synthetic primary key to %s", e.Name))
}

// resolveForeignKeys 修正外键：表名按相似度归位，列名落到目标主键上
// 完全无法解析的外键降级为普通列并告警，不会使整个模式失败。
func (n *Normalizer) resolveForeignKeys(s *entity.CanonicalSchema, e *entity.SchemaEntity, warnings *[]string) {
	for i := range e.Attributes {
		a := &e.Attributes[i]
		if !a.IsForeignKey {
			continue
		}

		target := s.FindEntity(a.ReferencesTable)
		if target == nil {
			target = guessTarget(s, a)
			if target == nil {
				*warnings = append(*warnings, fmt.Sprintf(
					"demoted foreign key %s.%s: cannot resolve referenced table %q", e.Name, a.Name, a.ReferencesTable))
				a.IsForeignKey = false
				a.ReferencesTable = ""
				a.ReferencesColumn = ""
				continue
			}
			*warnings = append(*warnings, fmt.Sprintf(
				"rewrote foreign key %s.%s: %q -> %q", e.Name, a.Name, a.ReferencesTable, target.Name))
		}
		a.ReferencesTable = target.Name

		// 引用列必须是目标主键之一；复合主键时优先选与外键列同名的那一列
		pks := target.PrimaryKeys()
		if len(pks) == 0 {
			continue
		}
		if !isPrimaryColumn(pks, a.ReferencesColumn) {
			chosen := pks[0]
			for _, pk := range pks {
				if foldName(pk.Name) == foldName(a.Name) || strings.HasSuffix(foldName(a.Name), foldName(pk.Name)) {
					chosen = pk
					break
				}
			}
			if a.ReferencesColumn != "" {
				*warnings = append(*warnings, fmt.Sprintf(
					"rewrote foreign key %s.%s: column %q -> primary key %q", e.Name, a.Name, a.ReferencesColumn, chosen.Name))
			}
			a.ReferencesColumn = chosen.Name
		}
	}
}

// guessTarget 表名无法精确匹配时，按去复数、前后缀包含的顺序猜测目标实体
func guessTarget(s *entity.CanonicalSchema, a *entity.SchemaAttribute) *entity.SchemaEntity {
	candidates := []string{a.ReferencesTable}
	// 外键列名 user_id / userId 蕴含目标表名
	if base, ok := strings.CutSuffix(foldName(a.Name), "id"); ok && base != "" {
		candidates = append(candidates, base)
	}
	for _, c := range candidates {
		key := foldName(c)
		if key == "" {
			continue
		}
		for i := range s.Entities {
			name := foldName(s.Entities[i].Name)
			if name == key || name == key+"s" || name+"s" == key ||
				strings.HasPrefix(name, key) || strings.HasPrefix(key, name) {
				return &s.Entities[i]
			}
		}
	}
	return nil
}

func isPrimaryColumn(pks []entity.SchemaAttribute, name string) bool {
	if name == "" {
		return false
	}
	for _, pk := range pks {
		if foldName(pk.Name) == foldName(name) {
			return true
		}
	}
	return false
}

// foldName 名称归一化：小写去下划线
func foldName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "")
}
