package weather

import (
	"fmt"
	"strings"
)

// City is a location shown in the weather sidebar. Query is what the
// weather API is asked for.
type City struct {
	Name  string `json:"name"`
	Query string `json:"query"`
}

// Cities in display order.
var Cities = []City{
	{Name: "London", Query: "London"},
	{Name: "Stockholm", Query: "Stockholm"},
	{Name: "Hanoi", Query: "Hanoi"},
}

// ParseCity looks a city up by name, case-insensitively.
func ParseCity(name string) (City, error) {
	name = strings.TrimSpace(name)
	for _, c := range Cities {
		if strings.EqualFold(c.Name, name) || strings.EqualFold(c.Query, name) {
			return c, nil
		}
	}
	return City{}, &Error{Kind: KindUnknownCity, Message: fmt.Sprintf("Unknown city %q", name)}
}
