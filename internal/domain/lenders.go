package domain

import "strings"

// AllLenders is the directory sentinel meaning "no filter". It never names a
// real lender and is never sent to the backend.
const AllLenders = "All Lenders"

func IsAllLenders(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), AllLenders)
}

// LenderDirectory is the ordered set of lender names offered as filters. The
// first entry is always AllLenders.
type LenderDirectory struct {
	Names    []string
	Fallback bool
}

// Lenders returns the real lender names, without the sentinel.
func (d LenderDirectory) Lenders() []string {
	out := make([]string, 0, len(d.Names))
	for _, n := range d.Names {
		if IsAllLenders(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Contains reports whether name is a known lender (case-insensitive).
func (d LenderDirectory) Contains(name string) bool {
	for _, n := range d.Lenders() {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}
