package catalog

import "strings"

// WildcardSlug grants every action inside its submodule when held.
const WildcardSlug = "full"

// CanonicalKey builds the fully-qualified permission key. Some seeded
// permission slugs already embed the submodule slug as a prefix
// ("inventory-management.read" under submodule "inventory-management");
// the segment is not duplicated in that case, so lookups by key stay
// unambiguous either way.
func CanonicalKey(moduleSlug, submoduleSlug, permissionSlug string) string {
	if strings.HasPrefix(permissionSlug, submoduleSlug+".") {
		return moduleSlug + "." + permissionSlug
	}
	return moduleSlug + "." + submoduleSlug + "." + permissionSlug
}

// ActionSlug strips an embedded submodule prefix from a permission slug,
// leaving the bare action. Both storage conventions normalise to the same
// action so requests phrased either way resolve identically.
func ActionSlug(submoduleSlug, permissionSlug string) string {
	if strings.HasPrefix(permissionSlug, submoduleSlug+".") {
		return permissionSlug[len(submoduleSlug)+1:]
	}
	return permissionSlug
}
