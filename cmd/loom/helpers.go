package main

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"loom/internal/store"
)

var categoryCaser = cases.Title(language.Und)

func displayCategory(category string) string {
	trimmed := strings.TrimSpace(category)
	if trimmed == "" {
		return "-"
	}
	return categoryCaser.String(trimmed)
}

func itemState(item *store.Item) string {
	switch {
	case item.Passes:
		return "passed"
	case item.InProgress:
		return "in progress"
	default:
		return "eligible"
	}
}
