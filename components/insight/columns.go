package insight

import "strings"

// Role is a semantic column meaning the KPI and map derivations look for.
type Role string

const (
	RoleSales    Role = "sales"
	RoleProfit   Role = "profit"
	RoleProduct  Role = "product"
	RoleRegion   Role = "region"
	RoleQuantity Role = "quantity"
)

// DefaultAliases lists the accepted header names per role. The first alias is
// the literal fallback when no column matches.
var DefaultAliases = map[Role][]string{
	RoleSales:    {"amount", "sales", "ventas", "total", "importe"},
	RoleProfit:   {"profit", "ganancia", "margen", "utilidad"},
	RoleProduct:  {"product", "product name", "producto", "nombre producto"},
	RoleRegion:   {"region", "región", "zona", "area"},
	RoleQuantity: {"quantity", "cantidad", "unidades"},
}

// ExactAliases reproduces the case-sensitive map lookup: Region/Zona and Sales/Ventas.
var ExactAliases = map[Role][]string{
	RoleSales:  {"Sales", "Ventas"},
	RoleRegion: {"Region", "Zona"},
}

// ColumnResolver maps roles to concrete column names of a dataset.
type ColumnResolver interface {
	Resolve(columns []string, role Role) string
}

// AliasResolver matches columns case-insensitively against an alias list.
// Column order decides ties: the first column equal to any alias wins.
type AliasResolver struct {
	Aliases map[Role][]string
}

// NewAliasResolver returns a resolver over DefaultAliases.
func NewAliasResolver() AliasResolver {
	return AliasResolver{Aliases: DefaultAliases}
}

// Resolve returns the matching column, or the role's first alias literal.
func (r AliasResolver) Resolve(columns []string, role Role) string {
	aliases := r.aliases(role)
	for _, col := range columns {
		lower := strings.ToLower(strings.TrimSpace(col))
		for _, alias := range aliases {
			if lower == alias {
				return col
			}
		}
	}
	if len(aliases) > 0 {
		return aliases[0]
	}
	return string(role)
}

func (r AliasResolver) aliases(role Role) []string {
	if r.Aliases == nil {
		return DefaultAliases[role]
	}
	return r.Aliases[role]
}

// ExactResolver matches column names case-sensitively, falling back to the
// first alias literal.
type ExactResolver struct {
	Aliases map[Role][]string
}

// Resolve implements ColumnResolver.
func (r ExactResolver) Resolve(columns []string, role Role) string {
	aliases := r.Aliases[role]
	if r.Aliases == nil {
		aliases = ExactAliases[role]
	}
	for _, col := range columns {
		for _, alias := range aliases {
			if col == alias {
				return col
			}
		}
	}
	if len(aliases) > 0 {
		return aliases[0]
	}
	return string(role)
}

// MapPolicy selects how the map derivation resolves columns.
type MapPolicy string

const (
	// MapPolicyUnified uses the same case-insensitive aliases as the KPIs.
	MapPolicyUnified MapPolicy = "unified"
	// MapPolicyExact matches Region/Zona and Sales/Ventas exactly.
	MapPolicyExact MapPolicy = "exact"
)

// ResolverFor returns the resolver for a map policy.
func ResolverFor(policy MapPolicy) ColumnResolver {
	if policy == MapPolicyExact {
		return ExactResolver{Aliases: ExactAliases}
	}
	return NewAliasResolver()
}
