// Package domain holds shared value types used across modules.
package domain

import "fmt"

// Category is the closed set of issue categories. Providers declare the
// category they service; declarations carry the category of the reported issue.
type Category string

const (
	CategoryPlumbing   Category = "plumbing"
	CategoryElectrical Category = "electrical"
	CategoryAppliance  Category = "appliance"
	CategoryHeating    Category = "heating"
	CategoryStructural Category = "structural"
	CategoryPest       Category = "pest"
	CategoryOther      Category = "other"
)

var categories = map[Category]struct{}{
	CategoryPlumbing:   {},
	CategoryElectrical: {},
	CategoryAppliance:  {},
	CategoryHeating:    {},
	CategoryStructural: {},
	CategoryPest:       {},
	CategoryOther:      {},
}

// Valid reports membership of the closed set.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// ParseCategory resolves a raw string to a category.
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", raw)
	}
	return c, nil
}
