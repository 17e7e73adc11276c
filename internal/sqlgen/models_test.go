package sqlgen

import (
	"testing"

	"github.com/nlstn/go-odata-filter/internal/metadata"
	"github.com/nlstn/go-odata-filter/internal/query"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Address struct {
	Street string
	City   string
}

type Customer struct {
	ID      int32   `gorm:"primaryKey"`
	Name    string
	Address Address `gorm:"embedded;embeddedPrefix:address_"`
	Orders  []Order
}

type Order struct {
	ID         int32 `gorm:"primaryKey"`
	CustomerID int32
	EmployeeID *int32
	Amount     float64
	Employee   *Employee
}

type Employee struct {
	ID          int32 `gorm:"primaryKey"`
	Name        string
	Territories []Territory
}

type Territory struct {
	ID         int32 `gorm:"primaryKey"`
	EmployeeID int32
	Region     string
}

type salesModel struct {
	model       *metadata.Model
	customers   *metadata.EntitySet
	orderSet    *metadata.EntitySet
	orders      *metadata.NavigationProperty
	customer    *metadata.NavigationProperty
	employee    *metadata.NavigationProperty
	territories *metadata.NavigationProperty
	unmapped    *metadata.NavigationProperty
}

func newSalesModel(t *testing.T) *salesModel {
	t.Helper()
	b := metadata.NewModelBuilder("Sales")
	m := &salesModel{}

	check := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("Failed to build model: %v", err)
		}
	}
	prop := func(et *metadata.EntityType, name string) *metadata.Property {
		t.Helper()
		p, err := et.FindProperty(name)
		check(err)
		return p
	}

	_, err := b.AddComplexTypeFromStruct(Address{})
	check(err)
	customer, err := b.AddEntityTypeFromStruct(Customer{})
	check(err)
	order, err := b.AddEntityTypeFromStruct(Order{})
	check(err)
	employee, err := b.AddEntityTypeFromStruct(Employee{})
	check(err)
	territory, err := b.AddEntityTypeFromStruct(Territory{})
	check(err)

	m.customers, err = b.AddEntitySet("Customers", customer)
	check(err)
	m.orderSet, err = b.AddEntitySet("Orders", order)
	check(err)

	m.orders, err = b.AddNavigation(customer, "Orders", order, metadata.MultiplicityMany)
	check(err)
	check(b.AddReferentialConstraint(m.orders, prop(order, "CustomerID"), prop(customer, "ID")))
	m.customer, err = b.AddNavigation(order, "Customer", customer, metadata.MultiplicityOne)
	check(err)
	check(b.AddReferentialConstraint(m.customer, prop(order, "CustomerID"), prop(customer, "ID")))
	m.employee, err = b.AddNavigation(order, "Employee", employee, metadata.MultiplicityZeroOrOne)
	check(err)
	check(b.AddReferentialConstraint(m.employee, prop(order, "EmployeeID"), prop(employee, "ID")))
	m.territories, err = b.AddNavigation(employee, "Territories", territory, metadata.MultiplicityMany)
	check(err)
	check(b.AddReferentialConstraint(m.territories, prop(territory, "EmployeeID"), prop(employee, "ID")))
	m.unmapped, err = b.AddNavigation(customer, "Favorites", order, metadata.MultiplicityMany)
	check(err)

	m.model, err = b.Build()
	check(err)
	return m
}

// setupSalesDB creates the sales tables with GORM in an in-memory SQLite database.
func setupSalesDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&Customer{}, &Employee{}, &Order{}, &Territory{}); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	eve, frank := int32(5), int32(6)
	seed := []interface{}{
		&[]Customer{
			{ID: 1, Name: "Alice", Address: Address{Street: "Rue 1", City: "Paris"}},
			{ID: 2, Name: "Bob", Address: Address{Street: "Main St", City: "Boston"}},
			{ID: 3, Name: "Carol", Address: Address{Street: "High St", City: "London"}},
		},
		&[]Employee{{ID: 5, Name: "Eve"}, {ID: 6, Name: "Frank"}},
		&[]Territory{
			{ID: 1, EmployeeID: 5, Region: "North"},
			{ID: 2, EmployeeID: 6, Region: "South"},
			{ID: 3, EmployeeID: 5, Region: "West"},
		},
		&[]Order{
			{ID: 10, CustomerID: 1, EmployeeID: &eve, Amount: 100},
			{ID: 11, CustomerID: 1, Amount: 20},
			{ID: 12, CustomerID: 2, EmployeeID: &frank, Amount: 50},
		},
	}
	for _, rows := range seed {
		if err := db.Create(rows).Error; err != nil {
			t.Fatalf("Failed to insert test data: %v", err)
		}
	}
	return db
}

func buildFilter(t *testing.T, model *metadata.Model, set *metadata.EntitySet, build func(b *query.Builder) (query.NodeRef, error)) *query.FilterClause {
	t.Helper()
	b, err := query.NewBuilder(model, set, query.Config{})
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	root, err := build(b)
	if err != nil {
		t.Fatalf("Failed to build filter: %v", err)
	}
	clause, err := b.Finalize(root)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	return clause
}

// compareConst builds source/path op value.
func compareConst(b *query.Builder, source query.NodeRef, path string, op query.ComparisonOperator, value interface{}) (query.NodeRef, error) {
	left := source
	if path != "" {
		var err error
		if left, err = b.Path(source, path); err != nil {
			return query.NodeRef{}, err
		}
	}
	right, err := b.Constant(value)
	if err != nil {
		return query.NodeRef{}, err
	}
	return b.Compare(op, left, right)
}

// anyOrder builds Orders/any(o:<body>) or Orders/all(o:<body>) over customers.
func anyOrder(m *salesModel, all bool, body func(b *query.Builder, o query.NodeRef) (query.NodeRef, error)) func(b *query.Builder) (query.NodeRef, error) {
	return func(b *query.Builder) (query.NodeRef, error) {
		orders, err := b.NavigateCollection(b.Root(), m.orders)
		if err != nil {
			return query.NodeRef{}, err
		}
		fn := func(o query.NodeRef) (query.NodeRef, error) { return body(b, o) }
		if all {
			return b.All(orders, "o", fn)
		}
		return b.Any(orders, "o", fn)
	}
}
