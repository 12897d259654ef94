// Package classify assigns a topical category to a user question using
// ordered keyword sets. It is pure and does no I/O; the answer engine may
// still override its result to Unknown when retrieval found nothing.
package classify

import (
	"strings"

	"github.com/nimbusgpu/askbot/internal/models"
)

// keywordSets are checked in order; the first set with a match wins, so a
// question mentioning both price and CUDA classifies as Pricing.
var keywordSets = []struct {
	category string
	keywords []string
}{
	{
		category: models.CategoryPricing,
		keywords: []string{"price", "pricing", "cost", "charge", "fee", "billing", "invoice", "rent", "pay"},
	},
	{
		category: models.CategoryTechnical,
		keywords: []string{"install", "cuda", "ssh", "connect", "connection", "ip", "error", "driver", "gpu", "timeout"},
	},
	{
		category: models.CategoryAccount,
		keywords: []string{"account", "login", "log in", "sign in", "password", "credential"},
	},
}

// Classify returns the category for query, or General when no keyword matches.
func Classify(query string) string {
	q := strings.ToLower(query)
	for _, set := range keywordSets {
		for _, kw := range set.keywords {
			if strings.Contains(q, kw) {
				return set.category
			}
		}
	}

	return models.CategoryGeneral
}
