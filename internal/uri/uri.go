package uri

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nlstn/go-odata-filter/internal/query"
)

var (
	// ErrInvalidURI is returned when an ODataURI cannot be composed.
	ErrInvalidURI = errors.New("invalid OData URI")

	// ErrEntitySetMismatch is returned when a filter was built over a different entity set than
	// the one the URI addresses.
	ErrEntitySetMismatch = errors.New("filter is not bound to the addressed entity set")
)

// QueryOption is a query option passed through verbatim apart from value encoding.
type QueryOption struct {
	Name  string
	Value string
}

// ODataURI describes a request against an entity set. OrderBy, Select and Expand are opaque
// expressions; only Filter is rendered from a tree.
type ODataURI struct {
	ServiceRoot string
	// Path holds the resource path segments; the first one names the entity set and the
	// last one the collection the filter applies to.
	Path    []string
	Filter  *query.FilterClause
	OrderBy string
	Select  string
	Expand  string
	Top     *int
	Skip    *int
	Count   bool
	Custom  []QueryOption
}

// EntitySetName returns the first path segment.
func (u *ODataURI) EntitySetName() string {
	if len(u.Path) == 0 {
		return ""
	}
	return u.Path[0]
}

// collectionName returns the last path segment, the collection a filter applies to. In
// Customers/1/Orders the filter ranges over Orders, so it must be built over the Orders set.
func (u *ODataURI) collectionName() string {
	if len(u.Path) == 0 {
		return ""
	}
	return u.Path[len(u.Path)-1]
}

// validate checks everything except the filter text.
func (u *ODataURI) validate() error {
	if strings.TrimSpace(u.ServiceRoot) == "" {
		return fmt.Errorf("%w: service root is empty", ErrInvalidURI)
	}
	if len(u.Path) == 0 {
		return fmt.Errorf("%w: no resource path", ErrInvalidURI)
	}
	for _, segment := range u.Path {
		if segment == "" {
			return fmt.Errorf("%w: empty path segment", ErrInvalidURI)
		}
	}
	if u.Top != nil && *u.Top < 0 {
		return fmt.Errorf("%w: $top must be non-negative, got %d", ErrInvalidURI, *u.Top)
	}
	if u.Skip != nil && *u.Skip < 0 {
		return fmt.Errorf("%w: $skip must be non-negative, got %d", ErrInvalidURI, *u.Skip)
	}
	for _, opt := range u.Custom {
		if opt.Name == "" || strings.ContainsAny(opt.Name, "&=#? \t") {
			return fmt.Errorf("%w: invalid query option name '%s'", ErrInvalidURI, opt.Name)
		}
	}
	if u.Filter != nil {
		set := u.Filter.EntitySet()
		if set == nil || set.Name() != u.collectionName() {
			return fmt.Errorf("%w: filter ranges over '%s', URI addresses '%s'",
				ErrEntitySetMismatch, setName(u.Filter), u.collectionName())
		}
	}
	return nil
}

// write assembles the URI with an already rendered filter. Options appear in a fixed order:
// $filter, $orderby, $select, $expand, $top, $skip, $count, then custom options as given.
func (u *ODataURI) write(filter string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(u.ServiceRoot, "/"))
	for _, segment := range u.Path {
		sb.WriteByte('/')
		sb.WriteString(url.PathEscape(segment))
	}

	sep := byte('?')
	add := func(name, value string) {
		sb.WriteByte(sep)
		sep = '&'
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(Encode(value))
	}

	if u.Filter != nil {
		add("$filter", filter)
	}
	if u.OrderBy != "" {
		add("$orderby", u.OrderBy)
	}
	if u.Select != "" {
		add("$select", u.Select)
	}
	if u.Expand != "" {
		add("$expand", u.Expand)
	}
	if u.Top != nil {
		add("$top", strconv.Itoa(*u.Top))
	}
	if u.Skip != nil {
		add("$skip", strconv.Itoa(*u.Skip))
	}
	if u.Count {
		add("$count", "true")
	}
	for _, opt := range u.Custom {
		add(opt.Name, opt.Value)
	}
	return sb.String()
}

// Encode percent-encodes a query option value. RFC 3986 unreserved characters are kept and a
// space becomes %20.
func Encode(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

func setName(c *query.FilterClause) string {
	if set := c.EntitySet(); set != nil {
		return set.Name()
	}
	return ""
}
