package matcher

import (
	"strings"

	"github.com/mwhite7112/woodpantry-reconcile/internal/ingredient"
)

// umbrella groups recipe terms with the pantry products that can stand in
// for them. A pantry item qualifies when its name holds one of the keywords
// and its category is allowed or blank.
type umbrella struct {
	terms      []string
	keywords   []string
	categories []string
}

var umbrellas = []umbrella{
	{
		terms:      []string{"chicken"},
		keywords:   []string{"chicken"},
		categories: []string{"meat", "poultry", "protein", "frozen"},
	},
	{
		terms:      []string{"beef", "steak", "ground beef"},
		keywords:   []string{"beef", "steak", "mince"},
		categories: []string{"meat", "protein", "frozen"},
	},
	{
		terms:      []string{"pork", "bacon", "ham"},
		keywords:   []string{"pork", "bacon", "ham"},
		categories: []string{"meat", "protein", "deli", "frozen"},
	},
	{
		terms:      []string{"shrimp", "prawn"},
		keywords:   []string{"shrimp", "prawn"},
		categories: []string{"seafood", "fish", "protein", "frozen"},
	},
	{
		terms:      []string{"tomato"},
		keywords:   []string{"tomato"},
		categories: []string{"produce", "vegetable", "fruit", "canned", "canned good"},
	},
	{
		terms:      []string{"scallion", "green onion", "spring onion"},
		keywords:   []string{"scallion", "green onion", "spring onion"},
		categories: []string{"produce", "vegetable"},
	},
	{
		terms:      []string{"cilantro", "coriander"},
		keywords:   []string{"cilantro", "coriander"},
		categories: []string{"produce", "herb", "spice"},
	},
	{
		terms:      []string{"zucchini", "courgette"},
		keywords:   []string{"zucchini", "courgette"},
		categories: []string{"produce", "vegetable"},
	},
	{
		terms:      []string{"eggplant", "aubergine"},
		keywords:   []string{"eggplant", "aubergine"},
		categories: []string{"produce", "vegetable"},
	},
	{
		terms:      []string{"bell pepper", "capsicum"},
		keywords:   []string{"bell pepper", "capsicum"},
		categories: []string{"produce", "vegetable"},
	},
	{
		terms:      []string{"chickpea", "garbanzo"},
		keywords:   []string{"chickpea", "garbanzo"},
		categories: []string{"canned", "canned good", "legume", "dry good", "pantry"},
	},
	{
		terms:      []string{"powdered sugar", "confectioners sugar", "icing sugar"},
		keywords:   []string{"powdered sugar", "confectioners sugar", "icing sugar"},
		categories: []string{"baking", "pantry"},
	},
	{
		terms:      []string{"heavy cream", "whipping cream", "double cream"},
		keywords:   []string{"heavy cream", "whipping cream", "double cream"},
		categories: []string{"dairy"},
	},
	{
		terms:      []string{"cheese", "cheddar", "mozzarella", "parmesan"},
		keywords:   []string{"cheese", "cheddar", "mozzarella", "parmesan"},
		categories: []string{"dairy", "cheese", "deli"},
	},
	{
		terms:      []string{"pasta", "spaghetti", "penne", "macaroni", "linguine", "fettuccine", "rigatoni"},
		keywords:   []string{"pasta", "spaghetti", "penne", "macaroni", "linguine", "fettuccine", "rigatoni"},
		categories: []string{"pasta", "grain", "dry good", "pantry"},
	},
}

// Category reports whether a pantry item falls under an umbrella named by
// the query. query and name are normalized; category is the item's raw tag.
func Category(query, name, category string) bool {
	if query == "" || name == "" {
		return false
	}
	cat := categoryKey(category)
	for _, u := range umbrellas {
		if !anyWords(query, u.terms) || !anyWords(name, u.keywords) {
			continue
		}
		if cat == "" || anyEqual(cat, u.categories) {
			return true
		}
	}
	return false
}

// categoryKey folds a category tag so "Vegetables" and "vegetable" agree.
func categoryKey(s string) string {
	return strings.TrimSuffix(ingredient.Normalize(s), "s")
}

func anyWords(s string, words []string) bool {
	for _, w := range words {
		if containsWords(s, w) {
			return true
		}
	}
	return false
}

func anyEqual(s string, options []string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}
