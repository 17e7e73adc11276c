package metadata

import (
	"errors"
	"testing"
)

func newCompanyBuilder(t *testing.T) (*ModelBuilder, *EntityType, *EntityType) {
	t.Helper()
	b := NewModelBuilder("SingleNav")
	person, err := b.AddEntityType("Person")
	if err != nil {
		t.Fatalf("AddEntityType(Person) failed: %v", err)
	}
	company, err := b.AddEntityType("Company")
	if err != nil {
		t.Fatalf("AddEntityType(Company) failed: %v", err)
	}
	personID, err := b.AddProperty(person, "PersonID", EdmInt32, false)
	if err != nil {
		t.Fatalf("AddProperty(PersonID) failed: %v", err)
	}
	if err := b.AddKey(person, personID); err != nil {
		t.Fatalf("AddKey(Person) failed: %v", err)
	}
	companyID, err := b.AddProperty(company, "CompanyID", EdmInt32, false)
	if err != nil {
		t.Fatalf("AddProperty(CompanyID) failed: %v", err)
	}
	if err := b.AddKey(company, companyID); err != nil {
		t.Fatalf("AddKey(Company) failed: %v", err)
	}
	return b, person, company
}

func TestModelBuilder_DuplicateProperty(t *testing.T) {
	b, person, _ := newCompanyBuilder(t)

	_, err := b.AddProperty(person, "PersonID", EdmString, true)
	var dup *DuplicatePropertyError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected DuplicatePropertyError, got %v", err)
	}
	if dup.Name != "PersonID" || dup.Type != "SingleNav.Person" {
		t.Errorf("Unexpected error contents: %+v", dup)
	}
}

func TestModelBuilder_DuplicateNavigation(t *testing.T) {
	b, person, company := newCompanyBuilder(t)

	if _, err := b.AddNavigation(person, "Company", company, MultiplicityZeroOrOne); err != nil {
		t.Fatalf("AddNavigation failed: %v", err)
	}
	_, err := b.AddNavigation(person, "Company", company, MultiplicityMany)
	var dup *DuplicateNavigationError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected DuplicateNavigationError, got %v", err)
	}

	// A navigation cannot shadow a structural property either.
	_, err = b.AddNavigation(person, "PersonID", company, MultiplicityOne)
	if !errors.As(err, &dup) {
		t.Fatalf("Expected DuplicateNavigationError for property clash, got %v", err)
	}
}

func TestModelBuilder_AllowsCycles(t *testing.T) {
	b, person, company := newCompanyBuilder(t)

	employees, err := b.AddNavigation(company, "Employees", person, MultiplicityMany)
	if err != nil {
		t.Fatalf("AddNavigation(Employees) failed: %v", err)
	}
	employer, err := b.AddNavigation(person, "Company", company, MultiplicityZeroOrOne)
	if err != nil {
		t.Fatalf("AddNavigation(Company) failed: %v", err)
	}
	model, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	got, err := model.FindNavigation(company, "Employees")
	if err != nil || got != employees {
		t.Errorf("FindNavigation(Employees) = %v, %v", got, err)
	}
	got, err = model.FindNavigation(person, "Company")
	if err != nil || got != employer {
		t.Errorf("FindNavigation(Company) = %v, %v", got, err)
	}
	if employees.Target() != person || employer.Target() != company {
		t.Error("Navigation targets do not match declarations")
	}
}

func TestModel_FindErrorsNameMissingIdentifier(t *testing.T) {
	b, person, _ := newCompanyBuilder(t)
	model, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	tests := []struct {
		name      string
		lookup    func() error
		wantName  string
		wantOwner string
	}{
		{
			name:     "entity type",
			lookup:   func() error { _, err := model.FindEntityType("Unicorn"); return err },
			wantName: "Unicorn",
		},
		{
			name:      "property",
			lookup:    func() error { _, err := model.FindProperty(person, "Salary"); return err },
			wantName:  "Salary",
			wantOwner: "SingleNav.Person",
		},
		{
			name:      "navigation",
			lookup:    func() error { _, err := model.FindNavigation(person, "Manager"); return err },
			wantName:  "Manager",
			wantOwner: "SingleNav.Person",
		},
		{
			name:     "entity set",
			lookup:   func() error { _, err := model.FindEntitySet("Nowhere"); return err },
			wantName: "Nowhere",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var notFound *SchemaNotFoundError
			if err := tt.lookup(); !errors.As(err, &notFound) {
				t.Fatalf("Expected SchemaNotFoundError, got %v", err)
			}
			if notFound.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", notFound.Name, tt.wantName)
			}
			if notFound.Owner != tt.wantOwner {
				t.Errorf("Owner = %q, want %q", notFound.Owner, tt.wantOwner)
			}
		})
	}
}

func TestModel_FindEntityTypeQualifiedAndSimple(t *testing.T) {
	b, person, _ := newCompanyBuilder(t)
	model, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for _, name := range []string{"Person", "SingleNav.Person"} {
		got, err := model.FindEntityType(name)
		if err != nil {
			t.Fatalf("FindEntityType(%q) failed: %v", name, err)
		}
		if got != person {
			t.Errorf("FindEntityType(%q) returned %s", name, got.QualifiedName())
		}
	}
}

func TestModelBuilder_FrozenAfterBuild(t *testing.T) {
	b, person, _ := newCompanyBuilder(t)
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if _, err := b.AddEntityType("Late"); !errors.Is(err, ErrModelFrozen) {
		t.Errorf("AddEntityType after Build: expected ErrModelFrozen, got %v", err)
	}
	if _, err := b.AddProperty(person, "Age", EdmInt32, false); !errors.Is(err, ErrModelFrozen) {
		t.Errorf("AddProperty after Build: expected ErrModelFrozen, got %v", err)
	}
	if _, err := b.Build(); !errors.Is(err, ErrModelFrozen) {
		t.Errorf("second Build: expected ErrModelFrozen, got %v", err)
	}
}

func TestModelBuilder_ComplexTypeForwardReference(t *testing.T) {
	b, _, company := newCompanyBuilder(t)

	address, err := b.AddProperty(company, "Address", "Address", true)
	if err != nil {
		t.Fatalf("AddProperty(Address) failed: %v", err)
	}
	addressType, err := b.AddComplexType("Address")
	if err != nil {
		t.Fatalf("AddComplexType failed: %v", err)
	}
	if _, err := b.AddProperty(addressType, "City", EdmString, false); err != nil {
		t.Fatalf("AddProperty(City) failed: %v", err)
	}
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if address.ComplexType() != addressType {
		t.Errorf("Address property was not resolved to the complex type")
	}
	if address.Type() != "SingleNav.Address" {
		t.Errorf("Type() = %q, want SingleNav.Address", address.Type())
	}
	if address.Kind() != KindComplex {
		t.Errorf("Kind() = %s, want Complex", address.Kind())
	}
}

func TestModelBuilder_UnresolvedComplexType(t *testing.T) {
	b, _, company := newCompanyBuilder(t)
	if _, err := b.AddProperty(company, "Address", "Address", true); err != nil {
		t.Fatalf("AddProperty failed: %v", err)
	}
	var notFound *SchemaNotFoundError
	if _, err := b.Build(); !errors.As(err, &notFound) {
		t.Fatalf("Expected SchemaNotFoundError, got %v", err)
	}
	if notFound.Name != "Address" {
		t.Errorf("Name = %q, want Address", notFound.Name)
	}
}

func TestModelBuilder_KeyValidation(t *testing.T) {
	b, person, company := newCompanyBuilder(t)

	nickname, err := b.AddProperty(person, "Nickname", EdmString, true)
	if err != nil {
		t.Fatalf("AddProperty failed: %v", err)
	}
	if err := b.AddKey(person, nickname); !errors.Is(err, ErrInvalidDeclaration) {
		t.Errorf("Expected ErrInvalidDeclaration for nullable key, got %v", err)
	}

	companyID, _ := company.FindProperty("CompanyID")
	var notFound *SchemaNotFoundError
	if err := b.AddKey(person, companyID); !errors.As(err, &notFound) {
		t.Errorf("Expected SchemaNotFoundError for foreign key property, got %v", err)
	}
}

func TestModelBuilder_BindNavigationTarget(t *testing.T) {
	b, person, company := newCompanyBuilder(t)

	people, err := b.AddEntitySet("PeopleSet", person)
	if err != nil {
		t.Fatalf("AddEntitySet failed: %v", err)
	}
	companies, err := b.AddEntitySet("CompanySet", company)
	if err != nil {
		t.Fatalf("AddEntitySet failed: %v", err)
	}
	nav, err := b.AddNavigation(person, "Company", company, MultiplicityZeroOrOne)
	if err != nil {
		t.Fatalf("AddNavigation failed: %v", err)
	}

	if err := b.BindNavigationTarget(people, nav, people); !errors.Is(err, ErrInvalidDeclaration) {
		t.Errorf("Expected ErrInvalidDeclaration binding to wrong set, got %v", err)
	}
	var notFound *SchemaNotFoundError
	if err := b.BindNavigationTarget(companies, nav, companies); !errors.As(err, &notFound) {
		t.Errorf("Expected SchemaNotFoundError binding a foreign navigation, got %v", err)
	}
	if err := b.BindNavigationTarget(people, nav, companies); err != nil {
		t.Fatalf("BindNavigationTarget failed: %v", err)
	}

	target, ok := people.NavigationTarget(nav)
	if !ok || target != companies {
		t.Errorf("NavigationTarget = %v, %v; want CompanySet", target, ok)
	}
}

func TestModelBuilder_ReferentialConstraintSides(t *testing.T) {
	b, person, company := newCompanyBuilder(t)
	companyRef, err := b.AddProperty(person, "CompanyID", EdmInt32, true)
	if err != nil {
		t.Fatalf("AddProperty failed: %v", err)
	}
	companyID, _ := company.FindProperty("CompanyID")

	employer, _ := b.AddNavigation(person, "Company", company, MultiplicityZeroOrOne)
	employees, _ := b.AddNavigation(company, "Employees", person, MultiplicityMany)

	if err := b.AddReferentialConstraint(employer, companyRef, companyID); err != nil {
		t.Fatalf("single-valued constraint failed: %v", err)
	}
	if err := b.AddReferentialConstraint(employees, companyRef, companyID); err != nil {
		t.Fatalf("collection constraint failed: %v", err)
	}

	var notFound *SchemaNotFoundError
	if err := b.AddReferentialConstraint(employees, companyID, companyRef); !errors.As(err, &notFound) {
		t.Errorf("Expected SchemaNotFoundError for swapped sides, got %v", err)
	}
	if c := employer.Constraint(); c == nil || c.Dependent != companyRef || c.Principal != companyID {
		t.Errorf("Constraint() = %+v", c)
	}
}

func TestModelBuilder_InvalidNames(t *testing.T) {
	b := NewModelBuilder("NS")
	for _, name := range []string{"", "1Person", "Per son", "$it"} {
		if _, err := b.AddEntityType(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("AddEntityType(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestComparable(t *testing.T) {
	tests := []struct {
		left, right ValueKind
		want        bool
	}{
		{KindNumeric, KindNumeric, true},
		{KindString, KindString, true},
		{KindNumeric, KindString, false},
		{KindNull, KindString, true},
		{KindNull, KindComplex, false},
		{KindEntity, KindEntity, false},
		{KindCollection, KindNumeric, false},
	}
	for _, tt := range tests {
		if got := Comparable(tt.left, tt.right); got != tt.want {
			t.Errorf("Comparable(%s, %s) = %v, want %v", tt.left, tt.right, got, tt.want)
		}
	}
}
