package testutil

import (
	"testing"

	"github.com/Veraticus/tally/internal/model"
)

// CategoryName represents a strongly-typed category name.
type CategoryName string

// String returns the string representation of the category name.
func (c CategoryName) String() string {
	return string(c)
}

// Category names used across tests. The first group matches the keyword
// heuristic's built-in categories.
const (
	CategoryGroceries     CategoryName = "Groceries"
	CategoryDining        CategoryName = "Food & Dining"
	CategoryHomeGarden    CategoryName = "Home & Garden"
	CategoryUtilities     CategoryName = "Utilities"
	CategoryTransport     CategoryName = "Transport"
	CategoryEntertainment CategoryName = "Entertainment"
	CategoryShopping      CategoryName = "Shopping"
	CategorySalary        CategoryName = "Salary"
)

// Test-specific category names. These have no description, so the text
// classifier never sees them.
const (
	CategoryTest1 CategoryName = "Test Category 1"
	CategoryTest2 CategoryName = "Test Category 2"
)

var descriptions = map[CategoryName]string{
	CategoryGroceries:     "Supermarkets and food shopping",
	CategoryDining:        "Restaurants, cafes and takeaways",
	CategoryHomeGarden:    "Hardware stores and garden centres",
	CategoryUtilities:     "Power, water, internet and phone bills",
	CategoryTransport:     "Fuel, public transport, taxis and ride sharing",
	CategoryEntertainment: "Streaming services, movies and events",
	CategoryShopping:      "General retail and online shopping",
	CategorySalary:        "Wages and salary payments",
}

// BasicCategories returns the minimal set of categories commonly used in tests.
func BasicCategories() []CategoryName {
	return []CategoryName{
		CategoryGroceries,
		CategoryDining,
		CategoryTransport,
		CategorySalary,
	}
}

// AllCategories returns every named category, test-only ones included.
func AllCategories() []CategoryName {
	return []CategoryName{
		CategoryGroceries,
		CategoryDining,
		CategoryHomeGarden,
		CategoryUtilities,
		CategoryTransport,
		CategoryEntertainment,
		CategoryShopping,
		CategorySalary,
		CategoryTest1,
		CategoryTest2,
	}
}

// Categories represents a collection of created test categories.
type Categories []model.Category

// Find returns the category with the given name, or nil if not found.
func (c Categories) Find(name CategoryName) *model.Category {
	for i := range c {
		if c[i].Name == name.String() {
			return &c[i]
		}
	}
	return nil
}

// MustFind returns the category with the given name, or fails the test if not found.
func (c Categories) MustFind(t *testing.T, name CategoryName) model.Category {
	t.Helper()
	cat := c.Find(name)
	if cat == nil {
		t.Fatalf("category %q not found in test data", name)
	}
	return *cat
}

// Names returns all category names as a slice of strings.
func (c Categories) Names() []string {
	names := make([]string, len(c))
	for i, cat := range c {
		names[i] = cat.Name
	}
	return names
}
