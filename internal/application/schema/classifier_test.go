package schema_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"codecraft-ai-api/internal/application/schema"
	"codecraft-ai-api/internal/domain/entity"
)

func schemaOf(names ...string) *entity.CanonicalSchema {
	s := &entity.CanonicalSchema{}
	for _, n := range names {
		s.Entities = append(s.Entities, entity.SchemaEntity{Name: n})
	}
	return s
}

func TestClassifyDomain(t *testing.T) {
	tests := []struct {
		name     string
		entities []string
		want     string
	}{
		{"hr", []string{"Employee", "Department", "Salary"}, "hr"},
		{"ecommerce", []string{"Product", "Order", "Cart", "Payment"}, "ecommerce"},
		{"education", []string{"Student", "Course", "Teacher"}, "education"},
		{"library", []string{"Book", "Member", "Author"}, "library"},
		{"substring match", []string{"employee_record", "department_info"}, "hr"},
		{"no match", []string{"Widget", "Gadget"}, schema.DomainGeneric},
		{"empty", nil, schema.DomainGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, schema.ClassifyDomain(schemaOf(tt.entities...)))
		})
	}
}

func TestClassifyDomain_OrderInvariant(t *testing.T) {
	a := schema.ClassifyDomain(schemaOf("Employee", "Department", "Salary"))
	b := schema.ClassifyDomain(schemaOf("Salary", "Employee", "Department"))
	c := schema.ClassifyDomain(schemaOf("Department", "Salary", "Employee"))
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}

func TestClassifyDomain_TieBreaksByRuleOrder(t *testing.T) {
	// product 同时命中 ecommerce 和 inventory，得分并列时取表中靠前的域
	assert.Equal(t, "ecommerce", schema.ClassifyDomain(schemaOf("Product")))
}

func TestProjectName(t *testing.T) {
	t.Run("schema name wins", func(t *testing.T) {
		s := schemaOf("Employee")
		s.ProjectName = "My Payroll App"
		assert.Equal(t, "my_payroll_app", schema.ProjectName(s, "hr"))
	})

	t.Run("domain based", func(t *testing.T) {
		assert.Equal(t, "hr_management_system", schema.ProjectName(schemaOf("Employee"), "hr"))
	})

	t.Run("first entity fallback", func(t *testing.T) {
		assert.Equal(t, "widget_management_system", schema.ProjectName(schemaOf("Widget"), schema.DomainGeneric))
	})

	t.Run("empty fallback", func(t *testing.T) {
		assert.Equal(t, "database_backend", schema.ProjectName(nil, schema.DomainGeneric))
	})
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "a_b_c", schema.SanitizeName(`a/b\c`))
	assert.Equal(t, "one_two", schema.SanitizeName("one   two"))
	assert.Equal(t, "x", schema.SanitizeName("__x__"))
	assert.Equal(t, "generated_backend", schema.SanitizeName("///"))
	assert.Len(t, schema.SanitizeName(strings.Repeat("a", 80)), 50)
}
