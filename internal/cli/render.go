package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roach88/larder/internal/livequery"
	"github.com/roach88/larder/internal/recipe"
)

// recipeView is the JSON shape of a recipe in CLI output.
type recipeView struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Instructions string     `json:"instructions,omitempty"`
	Difficulty   int        `json:"difficulty"`
	Images       []string   `json:"images"`
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
	Updated      string     `json:"updated,omitempty"` // "3 hours ago"
}

func toView(r recipe.Recipe, now time.Time) recipeView {
	v := recipeView{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		Instructions: r.Instructions,
		Difficulty:   r.Difficulty,
		Images:       r.Images,
	}
	if v.Images == nil {
		v.Images = []string{}
	}
	if r.HasLastUpdated() {
		t := r.LastUpdated
		v.LastUpdated = &t
		v.Updated = relativeTime(t, now)
	}
	return v
}

// relativeTime renders t as "5 minutes ago" relative to now.
func relativeTime(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// gauge renders difficulty as five pips.
func gauge(difficulty int) string {
	d := recipe.ClampDifficulty(difficulty)
	return strings.Repeat("●", d) + strings.Repeat("○", recipe.MaxDifficulty-d)
}

// emphasize brackets the first search hit in text.
func emphasize(text, search string) string {
	start, end, ok := livequery.Highlight(text, search)
	if !ok {
		return text
	}
	return text[:start] + "[" + text[start:end] + "]" + text[end:]
}

// displayName substitutes a marker for a missing name.
func displayName(name string) string {
	if name == "" {
		return "(untitled)"
	}
	return name
}

// writeTable prints one row per recipe.
func writeTable(w io.Writer, rows []recipe.Recipe, search string, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDIFFICULTY\tUPDATED\tID")
	for _, r := range rows {
		updated := "-"
		if r.HasLastUpdated() {
			updated = relativeTime(r.LastUpdated, now)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			emphasize(displayName(r.Name), search), gauge(r.Difficulty), updated, r.ID)
	}
	return tw.Flush()
}

// writePlaceholders prints skeleton rows while no sync has completed.
func writePlaceholders(w io.Writer, n int) {
	fmt.Fprintln(w, "No sync completed yet.")
	for i := 0; i < n; i++ {
		fmt.Fprintln(w, "  ░░░░░░░░░░░░░░  ░░░░░  ░░░░░░░░")
	}
}

// writeDetail prints every field of one recipe.
func writeDetail(w io.Writer, r recipe.Recipe, now time.Time) {
	fmt.Fprintf(w, "%s\n", displayName(r.Name))
	fmt.Fprintf(w, "  id:          %s\n", r.ID)
	fmt.Fprintf(w, "  difficulty:  %s (%d/%d)\n", gauge(r.Difficulty), r.Difficulty, recipe.MaxDifficulty)
	if r.HasLastUpdated() {
		fmt.Fprintf(w, "  updated:     %s (%s)\n", relativeTime(r.LastUpdated, now), r.LastUpdated.Format(time.RFC3339))
	} else {
		fmt.Fprintf(w, "  updated:     -\n")
	}
	if r.Description != "" {
		fmt.Fprintf(w, "\n%s\n", r.Description)
	}
	if r.Instructions != "" {
		fmt.Fprintf(w, "\nInstructions:\n%s\n", r.Instructions)
	}
	if len(r.Images) > 0 {
		fmt.Fprintf(w, "\nImages:\n")
		for _, img := range r.Images {
			fmt.Fprintf(w, "  %s\n", img)
		}
	}
}
