package codegen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecraft-ai-api/internal/application/codegen"
	"codecraft-ai-api/internal/domain/entity"
)

func TestBuildSchemaSQL_DependencyOrder(t *testing.T) {
	s := &entity.CanonicalSchema{
		Entities: []entity.SchemaEntity{
			{Name: "Post", Attributes: []entity.SchemaAttribute{
				{Name: "id", IsPrimaryKey: true, DataType: "INTEGER"},
				{Name: "user_id", IsForeignKey: true, DataType: "INTEGER", ReferencesTable: "User", ReferencesColumn: "id"},
			}},
			{Name: "User", Attributes: []entity.SchemaAttribute{
				{Name: "id", IsPrimaryKey: true, DataType: "INTEGER"},
			}},
		},
	}

	sql := codegen.BuildSchemaSQL(s)

	userIdx := strings.Index(sql, "CREATE TABLE user ")
	postIdx := strings.Index(sql, "CREATE TABLE post ")
	require.GreaterOrEqual(t, userIdx, 0)
	require.GreaterOrEqual(t, postIdx, 0)
	assert.Less(t, userIdx, postIdx, "referenced table must be created first")
	assert.Contains(t, sql, "user_id INTEGER REFERENCES user(id)")
}

func TestBuildSchemaSQL_CompositePrimaryKey(t *testing.T) {
	s := &entity.CanonicalSchema{
		Entities: []entity.SchemaEntity{
			{Name: "OrderLine", Attributes: []entity.SchemaAttribute{
				{Name: "order_id", IsPrimaryKey: true, DataType: "INTEGER"},
				{Name: "line_no", IsPrimaryKey: true, DataType: "INTEGER"},
			}},
		},
	}

	sql := codegen.BuildSchemaSQL(s)
	assert.Contains(t, sql, "PRIMARY KEY (order_id, line_no)")
	assert.NotContains(t, sql, "order_id INTEGER PRIMARY KEY")
}

func TestBuildSchemaSQL_CyclicDependency(t *testing.T) {
	s := &entity.CanonicalSchema{
		Entities: []entity.SchemaEntity{
			{Name: "A", Attributes: []entity.SchemaAttribute{
				{Name: "id", IsPrimaryKey: true, DataType: "INTEGER"},
				{Name: "b_id", IsForeignKey: true, ReferencesTable: "B", ReferencesColumn: "id"},
			}},
			{Name: "B", Attributes: []entity.SchemaAttribute{
				{Name: "id", IsPrimaryKey: true, DataType: "INTEGER"},
				{Name: "a_id", IsForeignKey: true, ReferencesTable: "A", ReferencesColumn: "id"},
			}},
		},
	}

	sql := codegen.BuildSchemaSQL(s)
	assert.Contains(t, sql, "CREATE TABLE a ")
	assert.Contains(t, sql, "CREATE TABLE b ")
}

func TestBuildScaffold(t *testing.T) {
	s := &entity.CanonicalSchema{
		Entities: []entity.SchemaEntity{
			{Name: "Order Item", Attributes: []entity.SchemaAttribute{
				{Name: "id", IsPrimaryKey: true, DataType: "INTEGER"},
			}},
		},
	}

	artifacts := codegen.BuildScaffold(s, "shop_backend")
	require.Len(t, artifacts, 4)

	paths := map[string]string{}
	for _, a := range artifacts {
		paths[a.Path] = a.Content
	}

	server, ok := paths["server.js"]
	require.True(t, ok)
	assert.Contains(t, server, "const orderItemRoutes = require('./routes/order_item');")
	assert.Contains(t, server, "app.use('/api/order_item', orderItemRoutes);")
	assert.Contains(t, server, "app.use(errorHandler);")

	assert.Contains(t, paths["config/db.js"], "new Pool(")
	assert.Contains(t, paths["schema.sql"], "CREATE TABLE order_item")
	assert.Contains(t, paths["middleware/errorHandler.js"], "module.exports")
}

func TestTableName(t *testing.T) {
	e := entity.SchemaEntity{Name: "  Order Item "}
	assert.Equal(t, "order_item", codegen.TableName(&e))
}
