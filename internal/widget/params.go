package widget

import (
	"net/url"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

var checkedValues = mapset.NewSet("1", "on", "true", "yes", "checked")

// Params coerces untyped request fields into the types widget options expect.
// Missing, blank or unparsable values yield the supplied default.
type Params struct {
	values url.Values
}

// NewParams wraps submitted form or query values
func NewParams(values url.Values) Params {
	if values == nil {
		values = url.Values{}
	}
	return Params{values: values}
}

func (p Params) lookup(name string) (string, bool) {
	value := strings.TrimSpace(p.values.Get(name))
	return value, value != ""
}

// Has reports whether name carries a non-blank value
func (p Params) Has(name string) bool {
	_, ok := p.lookup(name)
	return ok
}

// GetString returns the trimmed value of name
func (p Params) GetString(name, defaultValue string) string {
	if value, ok := p.lookup(name); ok {
		return value
	}
	return defaultValue
}

// GetInt parses name as an integer. Decimal input is truncated.
func (p Params) GetInt(name string, defaultValue int) int {
	value, ok := p.lookup(name)
	if !ok {
		return defaultValue
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return int(f)
	}
	return defaultValue
}

// GetDouble parses name as a float
func (p Params) GetDouble(name string, defaultValue float64) float64 {
	value, ok := p.lookup(name)
	if !ok {
		return defaultValue
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return defaultValue
}

// GetCheckbox reports whether an HTML checkbox named name was ticked
func (p Params) GetCheckbox(name string) bool {
	value, ok := p.lookup(name)
	if !ok {
		return false
	}
	return checkedValues.Contains(strings.ToLower(value))
}
