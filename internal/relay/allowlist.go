package relay

// AllowList is the configuration-supplied set of supported domains.
// Membership is a case-sensitive exact match against the domain string
// produced by Classify.
type AllowList struct {
	sites map[string]struct{}
}

// NewAllowList builds an AllowList from the configured site domains.
func NewAllowList(sites []string) AllowList {
	m := make(map[string]struct{}, len(sites))
	for _, s := range sites {
		m[s] = struct{}{}
	}
	return AllowList{sites: m}
}

// IsSupported reports whether the domain is allow-listed.
func (a AllowList) IsSupported(domain string) bool {
	_, ok := a.sites[domain]
	return ok
}

// Len returns the number of configured sites.
func (a AllowList) Len() int { return len(a.sites) }
