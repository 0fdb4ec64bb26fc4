package data

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

type EmployeeSearch struct {
	Ids          []int64 `json:"ids,omitempty"`
	NameContains string  `json:"name_contains,omitempty"` //case sensitive
}

func (e *EmployeeSearch) ToParams() url.Values {
	params := make(url.Values)
	if len(e.Ids) > 0 {
		var ids []string
		for _, id := range e.Ids {
			ids = append(ids, fmt.Sprint(id))
		}
		params[ParameterIds] = append(params[ParameterIds], strings.Join(ids, ","))
	}
	if e.NameContains != "" {
		params.Set(ParameterSearch, e.NameContains)
	}
	return params
}

func (e *EmployeeSearch) FromParams(params url.Values) {
	for key, value := range params {
		switch strings.ToLower(key) {
		case ParameterIds:
			for _, value := range value {
				for _, v := range strings.Split(value, ",") {
					id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
					if err != nil {
						continue
					}
					e.Ids = append(e.Ids, id)
				}
			}
		case ParameterSearch:
			if len(value) > 0 {
				e.NameContains = value[0]
			}
		}
	}
}

// ToKey returns a key that's identical for searches that select the same
// employees regardless of id order.
func (e *EmployeeSearch) ToKey() (string, error) {
	ids := slices.Clone(e.Ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return "ids=" + strings.Join(parts, ",") + ";name=" + url.QueryEscape(e.NameContains), nil
}
