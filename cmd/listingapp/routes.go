package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tunjid/listingApp-sub001/internal/savedstate"
)

// route is a browse screen as stored in the navigation back stacks:
//
//	listings?page=2&type=Apartment
//	favorites?page=1
//	listing/<id>
type route struct {
	favorites    bool
	page         int
	propertyType string
	listingID    string // set for detail screens
}

const detailPrefix = "listing/"

func (r route) isDetail() bool { return r.listingID != "" }

// stack is the back stack a list route belongs to.
func (r route) stack() int {
	if r.favorites {
		return 1
	}
	return 0
}

func (r route) String() string {
	if r.isDetail() {
		return detailPrefix + url.PathEscape(r.listingID)
	}
	name := savedstate.StackListings
	if r.favorites {
		name = savedstate.StackFavorites
	}
	q := url.Values{}
	if r.page > 0 {
		q.Set("page", strconv.Itoa(r.page))
	}
	if r.propertyType != "" {
		q.Set("type", r.propertyType)
	}
	if len(q) == 0 {
		return name
	}
	return name + "?" + q.Encode()
}

func parseRoute(s string) (route, error) {
	if id, ok := strings.CutPrefix(s, detailPrefix); ok {
		id, err := url.PathUnescape(id)
		if err != nil || id == "" {
			return route{}, fmt.Errorf("invalid detail route %q", s)
		}
		return route{listingID: id}, nil
	}

	name, rawQuery, _ := strings.Cut(s, "?")
	var r route
	switch name {
	case savedstate.StackListings:
	case savedstate.StackFavorites:
		r.favorites = true
	default:
		return route{}, fmt.Errorf("unknown route %q", s)
	}

	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return route{}, fmt.Errorf("parsing route %q: %w", s, err)
	}
	if p := q.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return route{}, fmt.Errorf("invalid page in route %q", s)
		}
		r.page = n
	}
	r.propertyType = q.Get("type")
	return r, nil
}

// navigate moves st to r: list routes switch to their stack first, and a
// route equal to the current top is not pushed twice.
func navigate(st savedstate.NavState, r route) savedstate.NavState {
	if !r.isDetail() {
		if switched, ok := st.Switch(r.stack()); ok {
			st = switched
		}
	}
	if st.Current() == r.String() {
		return st
	}
	return st.Push(r.String())
}
