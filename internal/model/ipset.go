package model

import (
	"net/netip"
	"slices"
	"strings"
)

// IPSet is a sorted, duplicate-free set of IPv4 addresses discovered for a tunnel.
type IPSet []netip.Addr

// NewIPSet builds a set from addrs, dropping duplicates and anything that is not IPv4.
func NewIPSet(addrs ...netip.Addr) IPSet {
	seen := make(map[netip.Addr]struct{}, len(addrs))
	set := make(IPSet, 0, len(addrs))
	for _, addr := range addrs {
		if !addr.Is4() {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		set = append(set, addr)
	}
	slices.SortFunc(set, func(a, b netip.Addr) int {
		return a.Compare(b)
	})
	return set
}

// Empty reports whether the tunnel should be considered down.
func (set IPSet) Empty() bool {
	return len(set) == 0
}

func (set IPSet) Strings() []string {
	items := make([]string, 0, len(set))
	for _, addr := range set {
		items = append(items, addr.String())
	}
	return items
}

// Networks returns one /32 prefix per address.
func (set IPSet) Networks() []string {
	items := make([]string, 0, len(set))
	for _, addr := range set {
		items = append(items, netip.PrefixFrom(addr, 32).String())
	}
	return items
}

func (set IPSet) String() string {
	return strings.Join(set.Strings(), ",")
}
