package directory

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
)

// searchResponse mirrors the registry payload. Every nested field is optional.
type searchResponse struct {
	ResultCount *int            `json:"result_count"`
	Results     []resultPayload `json:"results"`
	Errors      []struct {
		Description string `json:"description"`
		Field       string `json:"field"`
	} `json:"Errors"`
}

type resultPayload struct {
	Number flexString `json:"number"`
	Basic  struct {
		FirstName  string `json:"first_name"`
		LastName   string `json:"last_name"`
		MiddleName string `json:"middle_name"`
		Credential string `json:"credential"`
	} `json:"basic"`
	Taxonomies []struct {
		Desc    string `json:"desc"`
		Primary bool   `json:"primary"`
	} `json:"taxonomies"`
	Addresses []struct {
		Address1 string `json:"address_1"`
		City     string `json:"city"`
		State    string `json:"state"`
		Purpose  string `json:"address_purpose"`
	} `json:"addresses"`
	OtherNames []struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"other_names"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// parseSearchResponse decodes one page. It returns the records with an
// identifier and the raw number of results on the page, which drives paging.
func parseSearchResponse(status int, body []byte) ([]Record, int, error) {
	if status != http.StatusOK {
		return nil, 0, statusError(status)
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, 0, NewDirectoryError(ErrorBadData, "decode response", err)
	}
	if len(payload.Errors) > 0 {
		descs := make([]string, 0, len(payload.Errors))
		for _, e := range payload.Errors {
			descs = append(descs, e.Description)
		}
		return nil, 0, NewDirectoryError(ErrorBadData, "directory rejected query: "+strings.Join(descs, "; "), nil)
	}

	count := len(payload.Results)
	records := make([]Record, 0, count)
	for _, r := range payload.Results {
		npi := strings.TrimSpace(string(r.Number))
		if npi == "" {
			continue
		}
		records = append(records, toRecord(npi, r))
	}
	return records, count, nil
}

func toRecord(npi string, r resultPayload) Record {
	rec := Record{
		NPI:        npi,
		FirstName:  r.Basic.FirstName,
		LastName:   r.Basic.LastName,
		MiddleName: r.Basic.MiddleName,
		Credential: r.Basic.Credential,
	}
	for _, t := range r.Taxonomies {
		rec.Taxonomies = append(rec.Taxonomies, Taxonomy{Description: t.Desc, Primary: t.Primary})
	}
	for _, a := range r.Addresses {
		rec.Addresses = append(rec.Addresses, Address{
			Street:  a.Address1,
			City:    a.City,
			State:   a.State,
			Purpose: a.Purpose,
		})
	}
	for _, n := range r.OtherNames {
		if n.FirstName == "" && n.LastName == "" {
			continue
		}
		rec.FormerNames = append(rec.FormerNames, FormerName{FirstName: n.FirstName, LastName: n.LastName})
	}
	return rec
}
