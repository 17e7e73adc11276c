package query

import (
	"testing"

	"github.com/nlstn/go-odata-filter/internal/metadata"
)

// serviceModel mirrors a small people/company service:
// Person.Company (ZeroOrOne) and Company.Employees (Many).
type serviceModel struct {
	model     *metadata.Model
	people    *metadata.EntitySet
	companies *metadata.EntitySet
	person    *metadata.EntityType
	company   *metadata.EntityType
	address   *metadata.EntityType
	employer  *metadata.NavigationProperty
	employees *metadata.NavigationProperty
}

func mustProperty(t *testing.T, b *metadata.ModelBuilder, owner *metadata.EntityType, name, typ string, nullable bool) *metadata.Property {
	t.Helper()
	p, err := b.AddProperty(owner, name, typ, nullable)
	if err != nil {
		t.Fatalf("AddProperty(%s.%s) failed: %v", owner.Name(), name, err)
	}
	return p
}

func mustKeyed(t *testing.T, b *metadata.ModelBuilder, name, key string) *metadata.EntityType {
	t.Helper()
	et, err := b.AddEntityType(name)
	if err != nil {
		t.Fatalf("AddEntityType(%s) failed: %v", name, err)
	}
	if err := b.AddKey(et, mustProperty(t, b, et, key, metadata.EdmInt32, false)); err != nil {
		t.Fatalf("AddKey(%s) failed: %v", name, err)
	}
	return et
}

func mustSet(t *testing.T, b *metadata.ModelBuilder, name string, et *metadata.EntityType) *metadata.EntitySet {
	t.Helper()
	s, err := b.AddEntitySet(name, et)
	if err != nil {
		t.Fatalf("AddEntitySet(%s) failed: %v", name, err)
	}
	return s
}

func mustNav(t *testing.T, b *metadata.ModelBuilder, src *metadata.EntityType, name string, dst *metadata.EntityType, m metadata.Multiplicity) *metadata.NavigationProperty {
	t.Helper()
	nav, err := b.AddNavigation(src, name, dst, m)
	if err != nil {
		t.Fatalf("AddNavigation(%s) failed: %v", name, err)
	}
	return nav
}

func mustBind(t *testing.T, b *metadata.ModelBuilder, set *metadata.EntitySet, nav *metadata.NavigationProperty, target *metadata.EntitySet) {
	t.Helper()
	if err := b.BindNavigationTarget(set, nav, target); err != nil {
		t.Fatalf("BindNavigationTarget(%s) failed: %v", nav.Name(), err)
	}
}

func newServiceModel(t *testing.T) *serviceModel {
	t.Helper()
	b := metadata.NewModelBuilder("SingleNav")
	m := &serviceModel{}

	m.person = mustKeyed(t, b, "Person", "PersonID")
	mustProperty(t, b, m.person, "FirstName", metadata.EdmString, false)
	mustProperty(t, b, m.person, "MiddleName", metadata.EdmString, true)
	mustProperty(t, b, m.person, "Age", metadata.EdmInt32, false)
	m.people = mustSet(t, b, "PeopleSet", m.person)

	address, err := b.AddComplexType("Address")
	if err != nil {
		t.Fatalf("AddComplexType failed: %v", err)
	}
	m.address = address
	mustProperty(t, b, address, "Street", metadata.EdmString, false)
	mustProperty(t, b, address, "City", metadata.EdmString, false)

	m.company = mustKeyed(t, b, "Company", "CompanyID")
	mustProperty(t, b, m.company, "Name", metadata.EdmString, true)
	mustProperty(t, b, m.company, "Address", "Address", true)
	mustProperty(t, b, m.company, "Revenue", metadata.EdmInt32, false)
	m.companies = mustSet(t, b, "CompanySet", m.company)

	m.employees = mustNav(t, b, m.company, "Employees", m.person, metadata.MultiplicityMany)
	mustBind(t, b, m.companies, m.employees, m.people)
	m.employer = mustNav(t, b, m.person, "Company", m.company, metadata.MultiplicityZeroOrOne)
	mustBind(t, b, m.people, m.employer, m.companies)

	model, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	m.model = model
	return m
}

// orderModel is the Customer -> Orders -> Employee -> Territories chain.
type orderModel struct {
	model       *metadata.Model
	customers   *metadata.EntitySet
	territory   *metadata.EntityType
	employee    *metadata.EntityType
	orders      *metadata.NavigationProperty
	employee1   *metadata.NavigationProperty
	territories *metadata.NavigationProperty
}

func newOrderModel(t *testing.T) *orderModel {
	t.Helper()
	b := metadata.NewModelBuilder("Filtering")
	m := &orderModel{}

	customer := mustKeyed(t, b, "Customer", "CustomerID")
	m.customers = mustSet(t, b, "Customers", customer)
	order := mustKeyed(t, b, "Order", "OrderID")
	orders := mustSet(t, b, "Orders", order)
	m.employee = mustKeyed(t, b, "Employee", "EmployeeID")
	employees := mustSet(t, b, "Employees", m.employee)
	m.territory = mustKeyed(t, b, "Territory", "TerritoriesID")
	territories := mustSet(t, b, "Territories", m.territory)

	m.orders = mustNav(t, b, customer, "Orders", order, metadata.MultiplicityMany)
	mustBind(t, b, m.customers, m.orders, orders)
	m.employee1 = mustNav(t, b, order, "Employee", m.employee, metadata.MultiplicityZeroOrOne)
	mustBind(t, b, orders, m.employee1, employees)
	m.territories = mustNav(t, b, m.employee, "Territories", m.territory, metadata.MultiplicityMany)
	mustBind(t, b, employees, m.territories, territories)

	model, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	m.model = model
	return m
}

func newTestBuilder(t *testing.T, model *metadata.Model, set *metadata.EntitySet) *Builder {
	t.Helper()
	b, err := NewBuilder(model, set, Config{})
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	return b
}

func mustRef(t *testing.T) func(NodeRef, error) NodeRef {
	t.Helper()
	return func(ref NodeRef, err error) NodeRef {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return ref
	}
}
