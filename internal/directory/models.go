package directory

import "strings"

// Query is one exact-field directory search. Empty fields are unrestricted.
// State may hold a single jurisdiction code or a comma-joined set.
type Query struct {
	FirstName string
	LastName  string
	State     string
}

// States splits State into its jurisdiction codes. An empty State yields a
// single empty code, meaning unrestricted.
func (q Query) States() []string {
	if strings.TrimSpace(q.State) == "" {
		return []string{""}
	}
	parts := strings.Split(q.State, ",")
	states := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.ToUpper(strings.TrimSpace(p)); s != "" {
			states = append(states, s)
		}
	}
	if len(states) == 0 {
		return []string{""}
	}
	return states
}

// Record is one registered individual returned by the directory.
type Record struct {
	NPI         string       `json:"npi"`
	FirstName   string       `json:"first_name"`
	LastName    string       `json:"last_name"`
	MiddleName  string       `json:"middle_name,omitempty"`
	Credential  string       `json:"credential,omitempty"`
	Taxonomies  []Taxonomy   `json:"taxonomies,omitempty"`
	Addresses   []Address    `json:"addresses,omitempty"`
	FormerNames []FormerName `json:"former_names,omitempty"`
}

// Taxonomy is a specialty classification attached to a record.
type Taxonomy struct {
	Description string `json:"description"`
	Primary     bool   `json:"primary,omitempty"`
}

// Address is a practice or mailing location.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Purpose string `json:"purpose,omitempty"`
}

// FormerName is an alias or prior legal name.
type FormerName struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// HasAddressIn reports whether any address lies in the jurisdiction.
func (r Record) HasAddressIn(state string) bool {
	if state == "" {
		return false
	}
	for _, a := range r.Addresses {
		if strings.EqualFold(strings.TrimSpace(a.State), state) {
			return true
		}
	}
	return false
}
