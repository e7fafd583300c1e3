package authz

// Catalog enumerates every table in the banking warehouse. Wildcard
// permission rules expand against this list.
var Catalog = []string{
	"district",
	"account",
	"client",
	"disp",
	"trans",
	"loan",
	"card",
	"order",
}

// CatalogSet returns the catalog as a fresh set.
func CatalogSet() map[string]struct{} {
	set := make(map[string]struct{}, len(Catalog))
	for _, table := range Catalog {
		set[table] = struct{}{}
	}
	return set
}

// InCatalog reports whether the named table is part of the warehouse.
func InCatalog(table string) bool {
	for _, t := range Catalog {
		if t == table {
			return true
		}
	}
	return false
}
