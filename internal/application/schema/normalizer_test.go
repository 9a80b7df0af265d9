package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecraft-ai-api/internal/application/schema"
	"codecraft-ai-api/internal/domain/entity"
	apperrors "codecraft-ai-api/pkg/errors"
)

func TestNormalize_DropsNamelessAndMergesDuplicates(t *testing.T) {
	in := &entity.CanonicalSchema{
		Entities: []entity.SchemaEntity{
			{Name: "User", Attributes: []entity.SchemaAttribute{
				{Name: "id", IsPrimaryKey: true, DataType: "INTEGER"},
				{Name: "email", DataType: "VARCHAR(255)"},
			}},
			{Name: ""},
			{Name: "user", Attributes: []entity.SchemaAttribute{
				{Name: "Email"},
				{Name: "created_at", DataType: "TIMESTAMP"},
			}},
		},
	}

	out, warnings, err := schema.NewNormalizer().Normalize(in)
	require.NoError(t, err)
	require.Len(t, out.Entities, 1)

	u := out.Entities[0]
	assert.Equal(t, "User", u.Name)
	require.Len(t, u.Attributes, 3)
	assert.Equal(t, "email", u.Attributes[1].Name)
	assert.Equal(t, "VARCHAR(255)", u.Attributes[1].DataType)
	assert.Equal(t, "created_at", u.Attributes[2].Name)
	assert.NotEmpty(t, warnings)
}

func TestNormalize_EnsuresPrimaryKey(t *testing.T) {
	in := &entity.CanonicalSchema{
		Entities: []entity.SchemaEntity{
			// id 列存在但未标主键，应被提升
			{Name: "Account", Attributes: []entity.SchemaAttribute{
				{Name: "id", DataType: "INTEGER"},
				{Name: "balance", DataType: "DECIMAL"},
			}},
			// 完全没有 id，应补一个
			{Name: "AuditLog", Attributes: []entity.SchemaAttribute{
				{Name: "action", DataType: "VARCHAR(100)"},
			}},
		},
	}

	out, _, err := schema.NewNormalizer().Normalize(in)
	require.NoError(t, err)

	account := out.FindEntity("Account")
	require.NotNil(t, account)
	assert.True(t, account.Attributes[0].IsPrimaryKey)

	log := out.FindEntity("AuditLog")
	require.NotNil(t, log)
	require.Len(t, log.Attributes, 2)
	assert.Equal(t, "id", log.Attributes[0].Name)
	assert.True(t, log.Attributes[0].IsPrimaryKey)
}

func TestNormalize_ResolvesForeignKeys(t *testing.T) {
	in := &entity.CanonicalSchema{
		Entities: []entity.SchemaEntity{
			{Name: "User", Attributes: []entity.SchemaAttribute{
				{Name: "id", IsPrimaryKey: true, DataType: "INTEGER"},
			}},
			{Name: "Post", Attributes: []entity.SchemaAttribute{
				{Name: "id", IsPrimaryKey: true, DataType: "INTEGER"},
				// 复数表名，需要猜测归位到 User
				{Name: "user_id", IsForeignKey: true, ReferencesTable: "Users"},
				// 无法解析的外键应降级为普通列
				{Name: "ghost_id", IsForeignKey: true, ReferencesTable: "Ghosts"},
			}},
		},
	}

	out, warnings, err := schema.NewNormalizer().Normalize(in)
	require.NoError(t, err)

	post := out.FindEntity("Post")
	require.NotNil(t, post)

	userFK := post.FindAttribute("user_id")
	require.NotNil(t, userFK)
	assert.True(t, userFK.IsForeignKey)
	assert.Equal(t, "User", userFK.ReferencesTable)
	assert.Equal(t, "id", userFK.ReferencesColumn)

	ghost := post.FindAttribute("ghost_id")
	require.NotNil(t, ghost)
	assert.False(t, ghost.IsForeignKey)
	assert.Empty(t, ghost.ReferencesTable)

	assert.NotEmpty(t, warnings)
}

func TestNormalize_CompositePrimaryKeyReference(t *testing.T) {
	in := &entity.CanonicalSchema{
		Entities: []entity.SchemaEntity{
			{Name: "Order", Attributes: []entity.SchemaAttribute{
				{Name: "region_id", IsPrimaryKey: true, DataType: "INTEGER"},
				{Name: "order_id", IsPrimaryKey: true, DataType: "INTEGER"},
			}},
			{Name: "Item", Attributes: []entity.SchemaAttribute{
				{Name: "id", IsPrimaryKey: true, DataType: "INTEGER"},
				{Name: "order_id", IsForeignKey: true, ReferencesTable: "Order"},
			}},
		},
	}

	out, _, err := schema.NewNormalizer().Normalize(in)
	require.NoError(t, err)

	item := out.FindEntity("Item")
	require.NotNil(t, item)
	fk := item.FindAttribute("order_id")
	require.NotNil(t, fk)
	// 复合主键中选与外键列同名的那一列
	assert.Equal(t, "order_id", fk.ReferencesColumn)
}

func TestNormalize_DropsRelationshipsToUnknownEntities(t *testing.T) {
	in := &entity.CanonicalSchema{
		Entities: []entity.SchemaEntity{
			{Name: "User", Attributes: []entity.SchemaAttribute{{Name: "id", IsPrimaryKey: true}}},
			{Name: "Post", Attributes: []entity.SchemaAttribute{{Name: "id", IsPrimaryKey: true}}},
		},
		Relationships: []entity.SchemaRelationship{
			{FromEntity: "User", ToEntity: "Post", Type: "one_to_many"},
			{FromEntity: "User", ToEntity: "Nowhere", Type: "one_to_one"},
		},
	}

	out, warnings, err := schema.NewNormalizer().Normalize(in)
	require.NoError(t, err)
	require.Len(t, out.Relationships, 1)
	assert.Equal(t, "Post", out.Relationships[0].ToEntity)
	assert.NotEmpty(t, warnings)
}

func TestNormalize_NoUsableEntities(t *testing.T) {
	_, _, err := schema.NewNormalizer().Normalize(&entity.CanonicalSchema{
		Entities: []entity.SchemaEntity{{Name: "  "}},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSchemaInvalid, apperrors.AsAppError(err).Code)

	_, _, err = schema.NewNormalizer().Normalize(nil)
	require.Error(t, err)
}
