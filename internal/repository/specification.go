package repository

import (
	"fmt"
	"sort"
	"strings"

	"listing-service/internal/domain"
)

var sortColumns = map[string]string{
	"id":    "l.id",
	"title": "l.title",
	"price": "l.price",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// predicate is one condition of a Specification: the SQL form used by the MySQL
// store and the same condition evaluated over an in-memory listing.
type predicate struct {
	clause string
	args   []any
	match  func(l *domain.Listing) bool
}

// Order is a validated sort: one allowed column plus direction, with id as tiebreaker.
type Order struct {
	Field string
	Desc  bool
}

func (o Order) direction() string {
	if o.Desc {
		return "DESC"
	}
	return "ASC"
}

func (o Order) SQL() string {
	column := sortColumns[o.Field]
	if o.Field == "id" {
		return column + " " + o.direction()
	}
	return fmt.Sprintf("%s %s, l.id %s", column, o.direction(), o.direction())
}

// Less orders two listings the same way SQL() orders rows. Titles compare
// case-insensitively to match the column's utf8mb4 collation.
func (o Order) Less(a, b *domain.Listing) bool {
	var cmp int
	switch o.Field {
	case "title":
		cmp = strings.Compare(foldTitle(a.Title), foldTitle(b.Title))
	case "price":
		cmp = a.Price.Cmp(b.Price)
	}
	if cmp == 0 {
		switch {
		case a.ID < b.ID:
			cmp = -1
		case a.ID > b.ID:
			cmp = 1
		}
	}
	if o.Desc {
		return cmp > 0
	}
	return cmp < 0
}

func foldTitle(title string) string {
	return strings.ToLower(title)
}

// Specification is the AND of every predicate derived from a QueryFilter.
type Specification struct {
	predicates  []predicate
	favoritedBy int64
	Order       Order
}

func (s *Specification) add(clause string, match func(l *domain.Listing) bool, args ...any) {
	s.predicates = append(s.predicates, predicate{clause: clause, args: args, match: match})
}

// Joins returns the extra JOIN clauses the predicates need.
func (s *Specification) Joins() string {
	if s.favoritedBy == 0 {
		return ""
	}
	return " JOIN user_favorite_listings f ON f.listing_id = l.id"
}

// Distinct reports whether joins may multiply rows.
func (s *Specification) Distinct() bool {
	return s.favoritedBy != 0
}

func (s *Specification) Where() (string, []any) {
	if len(s.predicates) == 0 {
		return "", nil
	}

	clauses := make([]string, 0, len(s.predicates))
	var args []any
	for _, p := range s.predicates {
		clauses = append(clauses, p.clause)
		args = append(args, p.args...)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Match evaluates the predicates against a single listing. Favorite membership is
// a join and can only be evaluated by the store, so it is not part of Match.
func (s *Specification) Match(l *domain.Listing) bool {
	for _, p := range s.predicates {
		if p.match != nil && !p.match(l) {
			return false
		}
	}
	return true
}

// Apply filters and sorts listings in memory.
func (s *Specification) Apply(listings []*domain.Listing) []*domain.Listing {
	out := make([]*domain.Listing, 0, len(listings))
	for _, l := range listings {
		if s.Match(l) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return s.Order.Less(out[i], out[j])
	})
	return out
}

// BuildOrder validates sortBy against the allow-list. An unknown sortDir falls back
// to descending unless strict is set.
func BuildOrder(sortBy, sortDir string, strict bool) (Order, error) {
	field := strings.ToLower(strings.TrimSpace(sortBy))
	if field == "" {
		field = domain.DefaultSortBy
	}
	if _, ok := sortColumns[field]; !ok {
		return Order{}, fmt.Errorf("%w: invalid sort field '%s'; allowed: id, title, price", domain.ErrInvalidArgument, sortBy)
	}

	switch strings.ToLower(strings.TrimSpace(sortDir)) {
	case "", "asc":
		return Order{Field: field}, nil
	case "desc":
		return Order{Field: field, Desc: true}, nil
	default:
		if strict {
			return Order{}, fmt.Errorf("%w: invalid sort direction '%s'; allowed: asc, desc", domain.ErrInvalidArgument, sortDir)
		}
		return Order{Field: field, Desc: true}, nil
	}
}

func containsFold(column, value string, field func(l *domain.Listing) string) (string, func(l *domain.Listing) bool, string) {
	needle := strings.ToLower(value)
	return fmt.Sprintf("LOWER(%s) LIKE ?", column),
		func(l *domain.Listing) bool {
			return strings.Contains(strings.ToLower(field(l)), needle)
		},
		"%" + likeEscaper.Replace(needle) + "%"
}

// BuildSpecification turns a filter into predicates without touching the store.
func BuildSpecification(filter domain.QueryFilter, strictSortDir bool) (*Specification, error) {
	order, err := BuildOrder(filter.SortBy, filter.SortDir, strictSortDir)
	if err != nil {
		return nil, err
	}

	spec := &Specification{Order: order}

	textFilters := []struct {
		column string
		value  string
		field  func(l *domain.Listing) string
	}{
		{"l.title", filter.Title, func(l *domain.Listing) string { return l.Title }},
		{"l.description", filter.Description, func(l *domain.Listing) string { return l.Description }},
		{"l.city", filter.City, func(l *domain.Listing) string { return l.City }},
	}
	for _, tf := range textFilters {
		if strings.TrimSpace(tf.value) == "" {
			continue
		}
		clause, match, arg := containsFold(tf.column, tf.value, tf.field)
		spec.add(clause, match, arg)
	}

	if filter.PriceFrom != nil {
		from := *filter.PriceFrom
		spec.add("l.price >= ?", func(l *domain.Listing) bool {
			return l.Price.GreaterThanOrEqual(from)
		}, from.String())
	}
	if filter.PriceTo != nil {
		to := *filter.PriceTo
		spec.add("l.price <= ?", func(l *domain.Listing) bool {
			return l.Price.LessThanOrEqual(to)
		}, to.String())
	}

	if filter.Status != nil {
		status := *filter.Status
		spec.add("l.status = ?", func(l *domain.Listing) bool {
			return l.Status == status
		}, string(status))
	} else if defaults := filter.DefaultStatuses(); len(defaults) > 0 {
		placeholders := make([]string, len(defaults))
		args := make([]any, len(defaults))
		allowed := make(map[domain.ListingStatus]struct{}, len(defaults))
		for i, s := range defaults {
			placeholders[i] = "?"
			args[i] = string(s)
			allowed[s] = struct{}{}
		}
		spec.add("l.status IN ("+strings.Join(placeholders, ", ")+")", func(l *domain.Listing) bool {
			_, ok := allowed[l.Status]
			return ok
		}, args...)
	}

	if filter.PublicOnly() {
		spec.add("l.status <> ?", func(l *domain.Listing) bool {
			return !l.IsPending()
		}, string(domain.StatusPending))
	}

	if ownerID, ok := filter.OwnerID(); ok {
		spec.add("l.owner_id = ?", func(l *domain.Listing) bool {
			return l.OwnerID == ownerID
		}, ownerID)
	}

	if userID, ok := filter.FavoritedBy(); ok {
		spec.favoritedBy = userID
		spec.add("f.user_id = ?", nil, userID)
	}

	return spec, nil
}
