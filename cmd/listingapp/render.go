package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/tunjid/listingApp-sub001/internal/explore"
	"github.com/tunjid/listingApp-sub001/internal/flow"
)

// pageTimeout bounds how long a page may take to load from the local store.
const pageTimeout = 10 * time.Second

var errNotFound = errors.New("not found locally")

// renderPage prints one page of the feed once every row on it is loaded.
func renderPage(ctx context.Context, w io.Writer, feed *explore.Feed, page int) error {
	available, err := flow.First(ctx, feed.Available())
	if err != nil {
		return fmt.Errorf("counting listings: %w", err)
	}

	q := feed.Query(page)
	want := min(q.Limit, available-q.Offset)
	if want <= 0 {
		fmt.Fprintf(w, "No listings on page %d (%d available).\n", page+1, available)
		return nil
	}

	rows, err := loadPage(ctx, feed, page, want)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTITLE\tTYPE\tPRICE\tPHOTOS\tFAV\tID")
	for _, it := range rows {
		fav := ""
		if it.Favorite {
			fav = "★"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			it.Index+1, it.Listing.Title, it.Listing.PropertyType, it.Listing.Price, it.MediaCount, fav, it.Listing.ID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	pages := (available + q.Limit - 1) / q.Limit
	fmt.Fprintf(w, "\nPage %d of %d (%d listings)\n", page+1, pages, available)
	return nil
}

// loadPage tiles around page and returns its rows as soon as all want of
// them are present with their decorations.
func loadPage(ctx context.Context, feed *explore.Feed, page, want int) ([]explore.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	start := feed.Query(page).Offset
	var rows []explore.Item
	err := feed.Items(flow.Of(feed.Query(page))).Collect(ctx, func(items []explore.Item) {
		if rows != nil {
			return
		}
		if r := pageRows(items, start, want); r != nil {
			rows = r
			cancel()
		}
	})
	if rows != nil {
		return rows, nil
	}
	if err == nil {
		err = errors.New("feed ended early")
	}
	return nil, fmt.Errorf("loading page %d: %w", page+1, err)
}

// pageRows picks the want rows starting at absolute index start, or nil if
// some are still missing.
func pageRows(items []explore.Item, start, want int) []explore.Item {
	rows := make([]explore.Item, 0, want)
	for _, it := range items {
		if it.Index >= start && it.Index < start+want {
			rows = append(rows, it)
		}
	}
	if len(rows) != want {
		return nil
	}
	return rows
}

// renderSearch prints up to limit listings whose titles match query.
func renderSearch(ctx context.Context, w io.Writer, feed *explore.Feed, query string, limit int) error {
	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	matches, err := flow.First(ctx, feed.Search(query))
	if err != nil {
		return fmt.Errorf("searching %q: %w", query, err)
	}
	if len(matches) == 0 {
		fmt.Fprintf(w, "No listings match %q.\n", query)
		return nil
	}

	shown := matches[:min(limit, len(matches))]
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tTYPE\tPRICE\tID")
	for _, l := range shown {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Title, l.PropertyType, l.Price, l.ID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if extra := len(matches) - len(shown); extra > 0 {
		fmt.Fprintf(w, "\n… and %d more\n", extra)
	}
	return nil
}

// renderDetail prints a listing with its host and photos.
func renderDetail(ctx context.Context, w io.Writer, feed *explore.Feed, listingID string) error {
	d, err := flow.First(ctx, feed.Detail(listingID))
	if err != nil {
		return fmt.Errorf("loading listing %s: %w", listingID, err)
	}
	if d == nil {
		return fmt.Errorf("listing %s: %w", listingID, errNotFound)
	}

	l := d.Listing
	fmt.Fprintf(w, "%s\n", l.Title)
	fmt.Fprintf(w, "  Type:      %s\n", l.PropertyType)
	fmt.Fprintf(w, "  Price:     %s\n", l.Price)
	fmt.Fprintf(w, "  Address:   %s\n", l.Description)
	fmt.Fprintf(w, "  Favorite:  %s\n", yesNo(d.Favorite))

	if h := d.Host; h != nil {
		fmt.Fprintf(w, "  Host:      %s", h.FirstName)
		if h.IsSuperHost {
			fmt.Fprintf(w, " (superhost)")
		}
		fmt.Fprintln(w)
		if h.MemberSince != "" {
			fmt.Fprintf(w, "  Since:     %s\n", h.MemberSince)
		}
		if h.About != "" {
			fmt.Fprintf(w, "  About:     %s\n", h.About)
		}
	} else {
		fmt.Fprintf(w, "  Host:      (not synced)\n")
	}

	fmt.Fprintf(w, "  Photos:    %d\n", d.MediaCount)
	for i, m := range d.Media {
		fmt.Fprintf(w, "    %d) %s", i+1, m.URL)
		if m.Description != "" {
			fmt.Fprintf(w, "  %s", m.Description)
		}
		fmt.Fprintln(w)
	}
	if extra := d.MediaCount - len(d.Media); extra > 0 {
		fmt.Fprintf(w, "    … and %d more\n", extra)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
