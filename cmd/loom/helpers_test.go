package main

import (
	"testing"

	"loom/internal/store"
)

func TestDisplayCategory(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "-"},
		{"  ", "-"},
		{"core", "Core"},
		{"data plumbing", "Data Plumbing"},
		{"CLEANUP", "Cleanup"},
	}
	for _, tc := range cases {
		if got := displayCategory(tc.in); got != tc.want {
			t.Errorf("displayCategory(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestItemState(t *testing.T) {
	if got := itemState(&store.Item{}); got != "eligible" {
		t.Errorf("fresh item state = %q", got)
	}
	if got := itemState(&store.Item{InProgress: true}); got != "in progress" {
		t.Errorf("claimed item state = %q", got)
	}
	if got := itemState(&store.Item{Passes: true, InProgress: true}); got != "passed" {
		t.Errorf("passed item state = %q", got)
	}
}

func TestParseItemID(t *testing.T) {
	if id, err := parseItemID("42"); err != nil || id != 42 {
		t.Fatalf("parseItemID(42) = %d, %v", id, err)
	}
	for _, bad := range []string{"", "abc", "0", "-3", "1.5"} {
		if _, err := parseItemID(bad); err == nil {
			t.Errorf("parseItemID(%q) expected error", bad)
		}
	}
}

func TestRenderTableAlignsAndPadsRows(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Name"},
		[][]string{{"1", "alpha"}, {"2"}},
		[]columnAlignment{alignRight, alignLeft},
	)
	requireContains(t, out, "ID")
	requireContains(t, out, "alpha")
	requireContains(t, out, "2")
}
