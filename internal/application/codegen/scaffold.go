// Package codegen 生成 Express 项目的确定性底座文件
// 模型只负责各表的路由与控制器，底座（入口、连接池、建表语句、错误中间件）由这里直接从规范模式推导。
package codegen

import (
	"fmt"
	"strings"

	"codecraft-ai-api/internal/domain/entity"
	wfmodel "codecraft-ai-api/internal/workflow/model"
)

// BuildScaffold 从规范模式推导项目底座文件
func BuildScaffold(s *entity.CanonicalSchema, projectName string) []wfmodel.Artifact {
	return []wfmodel.Artifact{
		{Path: "server.js", Content: buildServerJS(s)},
		{Path: "config/db.js", Content: dbJS},
		{Path: "schema.sql", Content: BuildSchemaSQL(s)},
		{Path: "middleware/errorHandler.js", Content: errorHandlerJS},
	}
}

// TableName 实体对应的表名 / 路由文件名
func TableName(e *entity.SchemaEntity) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(e.Name)), " ", "_")
}

// BuildSchemaSQL 生成建表语句，被引用的表排在引用它的表之前
func BuildSchemaSQL(s *entity.CanonicalSchema) string {
	var b strings.Builder
	b.WriteString("-- Generated schema\n\n")
	for _, e := range orderByDependency(s) {
		writeCreateTable(&b, e)
		b.WriteString("\n")
	}
	return b.String()
}

// orderByDependency 按外键依赖做拓扑排序，环路退化为原始顺序
func orderByDependency(s *entity.CanonicalSchema) []*entity.SchemaEntity {
	n := len(s.Entities)
	ordered := make([]*entity.SchemaEntity, 0, n)
	placed := make(map[string]bool, n)

	for len(ordered) < n {
		progress := false
		for i := range s.Entities {
			e := &s.Entities[i]
			if placed[e.Name] {
				continue
			}
			ready := true
			for _, fk := range e.ForeignKeys() {
				if fk.ReferencesTable != "" && fk.ReferencesTable != e.Name && !placed[fk.ReferencesTable] {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, e)
				placed[e.Name] = true
				progress = true
			}
		}
		if !progress {
			// 依赖成环，剩余的按原始顺序输出
			for i := range s.Entities {
				if !placed[s.Entities[i].Name] {
					ordered = append(ordered, &s.Entities[i])
					placed[s.Entities[i].Name] = true
				}
			}
		}
	}
	return ordered
}

func writeCreateTable(b *strings.Builder, e *entity.SchemaEntity) {
	fmt.Fprintf(b, "CREATE TABLE %s (\n", TableName(e))

	pks := e.PrimaryKeys()
	var lines []string
	for _, a := range e.Attributes {
		dataType := a.DataType
		if dataType == "" {
			dataType = "VARCHAR(255)"
		}
		line := fmt.Sprintf("  %s %s", columnName(a.Name), dataType)
		if a.IsPrimaryKey && len(pks) == 1 {
			line += " PRIMARY KEY"
		}
		if a.IsForeignKey && a.ReferencesTable != "" && a.ReferencesColumn != "" {
			line += fmt.Sprintf(" REFERENCES %s(%s)",
				strings.ReplaceAll(strings.ToLower(a.ReferencesTable), " ", "_"), columnName(a.ReferencesColumn))
		}
		lines = append(lines, line)
	}
	if len(pks) > 1 {
		cols := make([]string, 0, len(pks))
		for _, pk := range pks {
			cols = append(cols, columnName(pk.Name))
		}
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", strings.Join(cols, ", ")))
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n);\n")
}

func columnName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

func buildServerJS(s *entity.CanonicalSchema) string {
	var requires, mounts strings.Builder
	for i := range s.Entities {
		table := TableName(&s.Entities[i])
		fmt.Fprintf(&requires, "const %sRoutes = require('./routes/%s');\n", jsIdent(table), table)
		fmt.Fprintf(&mounts, "app.use('/api/%s', %sRoutes);\n", table, jsIdent(table))
	}

	return fmt.Sprintf(`require('dotenv').config();
const express = require('express');
const cors = require('cors');
const errorHandler = require('./middleware/errorHandler');
%s
const app = express();
app.use(cors());
app.use(express.json());

app.get('/health', (req, res) => res.json({ status: 'ok' }));

%s
app.use(errorHandler);

const PORT = process.env.PORT || 3000;
app.listen(PORT, () => {
  console.log('Server listening on port ' + PORT);
});
`, requires.String(), mounts.String())
}

// jsIdent 表名转合法 JS 标识符
func jsIdent(table string) string {
	parts := strings.Split(table, "_")
	out := parts[0]
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		out += strings.ToUpper(p[:1]) + p[1:]
	}
	return out
}

const dbJS = `const { Pool } = require('pg');

const pool = new Pool({
  host: process.env.DB_HOST || 'localhost',
  port: process.env.DB_PORT || 5432,
  user: process.env.DB_USER || 'postgres',
  password: process.env.DB_PASSWORD || '',
  database: process.env.DB_NAME,
});

module.exports = pool;
`

const errorHandlerJS = `module.exports = (err, req, res, next) => {
  console.error(err);
  const status = err.status || 500;
  res.status(status).json({ error: err.message || 'Internal Server Error' });
};
`
