package main

import "testing"

func TestSplitAndTrim(t *testing.T) {
	cases := []struct {
		in       string
		expected []string
	}{
		{"", nil},
		{"  ", nil},
		{"a,b", []string{"a", "b"}},
		{" a , ,b ", []string{"a", "b"}},
	}
	for _, tc := range cases {
		got := splitAndTrim(tc.in)
		if len(got) != len(tc.expected) {
			t.Fatalf("splitAndTrim(%q) expected %v, got %v", tc.in, tc.expected, got)
		}
		for i := range got {
			if got[i] != tc.expected[i] {
				t.Fatalf("splitAndTrim(%q) expected %v, got %v", tc.in, tc.expected, got)
			}
		}
	}
}
