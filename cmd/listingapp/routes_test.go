package main

import (
	"testing"

	"github.com/tunjid/listingApp-sub001/internal/savedstate"
)

func TestRoute_StringAndParse(t *testing.T) {
	tests := []struct {
		r    route
		want string
	}{
		{route{}, "listings"},
		{route{favorites: true}, "favorites"},
		{route{page: 2, propertyType: "Entire home"}, "listings?page=2&type=Entire+home"},
		{route{favorites: true, page: 1}, "favorites?page=1"},
		{route{listingID: "abc/1"}, "listing/abc%2F1"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.r, got, tt.want)
		}
		parsed, err := parseRoute(tt.want)
		if err != nil {
			t.Errorf("parseRoute(%q): %v", tt.want, err)
			continue
		}
		if parsed != tt.r {
			t.Errorf("parseRoute(%q) = %+v, want %+v", tt.want, parsed, tt.r)
		}
	}
}

func TestParseRoute_Invalid(t *testing.T) {
	for _, s := range []string{"", "settings", "listings?page=-1", "listings?page=x", "listing/"} {
		if _, err := parseRoute(s); err == nil {
			t.Errorf("parseRoute(%q) succeeded, want error", s)
		}
	}
}

func TestNavigate_ListSwitchesStack(t *testing.T) {
	st := navigate(savedstate.Default(), route{favorites: true, page: 1})
	if st.CurrentIndex != 1 {
		t.Errorf("CurrentIndex = %d, want 1", st.CurrentIndex)
	}
	if got := st.Current(); got != "favorites?page=1" {
		t.Errorf("Current = %q, want favorites?page=1", got)
	}
	if len(st.BackStacks[0]) != 1 {
		t.Errorf("listings stack = %v, want untouched", st.BackStacks[0])
	}
}

func TestNavigate_RootIsNotPushedTwice(t *testing.T) {
	st := navigate(savedstate.Default(), route{})
	if len(st.BackStacks[0]) != 1 {
		t.Errorf("stack = %v, want only the root", st.BackStacks[0])
	}
}

func TestNavigate_DetailStaysOnActiveStack(t *testing.T) {
	st := navigate(savedstate.Default(), route{favorites: true})
	st = navigate(st, route{listingID: "l1"})
	if st.CurrentIndex != 1 {
		t.Errorf("CurrentIndex = %d, want 1", st.CurrentIndex)
	}
	if got := st.Current(); got != "listing/l1" {
		t.Errorf("Current = %q, want listing/l1", got)
	}

	back, ok := st.Pop()
	if !ok || back.Current() != "favorites" {
		t.Errorf("Pop = %q %v, want favorites true", back.Current(), ok)
	}
}
