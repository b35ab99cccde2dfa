package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/MrWong99/subreconcile/internal/review"
	"github.com/MrWong99/subreconcile/internal/textdiff"
)

// ── diff / review ─────────────────────────────────────────────────────────────

// DiffCmd diffs two whole texts as a single pair.
type DiffCmd struct {
	Original  string `arg:"" help:"File holding the original text" type:"existingfile"`
	Corrected string `arg:"" help:"File holding the corrected text" type:"existingfile"`
	JSON      bool   `help:"Print the item as JSON"`
}

func (c *DiffCmd) Run(rt *runtime) error {
	original, err := os.ReadFile(c.Original)
	if err != nil {
		return err
	}
	corrected, err := os.ReadFile(c.Corrected)
	if err != nil {
		return err
	}

	s := rt.app.NewReview([]review.Pair{{Original: string(original), Corrected: string(corrected)}})
	if err := s.Prepare(rt.ctx); err != nil {
		return err
	}
	it, err := s.Item(0)
	if err != nil {
		return err
	}

	if c.JSON {
		return writeJSON(rt.out, it)
	}
	printItem(rt.out, it)
	final, err := s.Final(0)
	if err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "final: %s\n", final)
	return nil
}

// ReviewCmd pairs two transcripts line by line.
type ReviewCmd struct {
	Original  string   `arg:"" help:"File holding the original transcript" type:"existingfile"`
	Corrected string   `arg:"" help:"File holding the corrected transcript" type:"existingfile"`
	Reject    []string `help:"Reject change groups, as ITEM:GROUP"`
	Keep      []int    `help:"Keep the original text of these items"`
	Learn     bool     `help:"Add accepted word corrections to the dictionary"`
	Out       string   `short:"o" help:"Write the final transcript here instead of stdout" type:"path"`
	Verbose   bool     `short:"v" help:"Print every changed item before the final text"`
}

func (c *ReviewCmd) Run(rt *runtime) error {
	original, err := os.ReadFile(c.Original)
	if err != nil {
		return err
	}
	corrected, err := os.ReadFile(c.Corrected)
	if err != nil {
		return err
	}

	s := rt.app.NewReview(pairLines(string(original), string(corrected)))
	if err := s.Prepare(rt.ctx); err != nil {
		return err
	}

	for _, ref := range c.Reject {
		item, group, err := parseGroupRef(ref)
		if err != nil {
			return err
		}
		if err := s.SetUseNew(item, group, false); err != nil {
			return err
		}
	}
	for _, id := range c.Keep {
		if err := s.SetChoice(id, review.ChoiceOriginal); err != nil {
			return err
		}
	}

	if c.Verbose {
		items, err := s.Items()
		if err != nil {
			return err
		}
		for _, it := range items {
			if it.HasDiff {
				printItem(rt.out, it)
			}
		}
	}

	if c.Learn {
		if _, err := s.Learn(rt.ctx, rt.app.Dictionary()); err != nil {
			return err
		}
	}

	finals, err := s.FinalAll()
	if err != nil {
		return err
	}
	text := strings.Join(finals, "\n") + "\n"
	if c.Out != "" {
		return os.WriteFile(c.Out, []byte(text), 0o644)
	}
	_, err = io.WriteString(rt.out, text)
	return err
}

// pairLines splits both texts into lines and pairs them by position. The
// shorter side is padded with empty lines.
func pairLines(original, corrected string) []review.Pair {
	o := splitLines(original)
	c := splitLines(corrected)
	n := max(len(o), len(c))
	pairs := make([]review.Pair, n)
	for i := range pairs {
		if i < len(o) {
			pairs[i].Original = o[i]
		}
		if i < len(c) {
			pairs[i].Corrected = c[i]
		}
	}
	return pairs
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// parseGroupRef parses "ITEM:GROUP".
func parseGroupRef(ref string) (item, group int, err error) {
	is, gs, ok := strings.Cut(ref, ":")
	if !ok {
		return 0, 0, fmt.Errorf("reject %q: want ITEM:GROUP", ref)
	}
	if item, err = strconv.Atoi(is); err != nil {
		return 0, 0, fmt.Errorf("reject %q: item: %w", ref, err)
	}
	if group, err = strconv.Atoi(gs); err != nil {
		return 0, 0, fmt.Errorf("reject %q: group: %w", ref, err)
	}
	return item, group, nil
}

func printItem(w io.Writer, it review.Item) {
	fmt.Fprintf(w, "item %d: %d change groups\n", it.ID, textdiff.Changes(it.Groups))
	for _, r := range it.Replacements {
		fmt.Fprintf(w, "  dictionary %q -> %q\n", r.From, r.To)
	}
	for _, g := range it.Groups {
		if g.Kind != textdiff.KindChange {
			continue
		}
		mark := "+"
		if !g.UseNew {
			mark = "-"
		}
		fmt.Fprintf(w, "  %s[%d] %q -> %q\n", mark, g.ID, g.Original, g.Corrected)
	}
}

// ── dict ──────────────────────────────────────────────────────────────────────

// DictListCmd lists entries.
type DictListCmd struct {
	JSON bool `help:"Print entries as JSON"`
}

func (c *DictListCmd) Run(rt *runtime) error {
	entries := rt.app.Dictionary().Entries()
	if c.JSON {
		return writeJSON(rt.out, entries)
	}
	tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCORRECT\tVARIANTS\tUSES")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.ID, e.Correct, strings.Join(e.Variants, ", "), e.UseCount)
	}
	return tw.Flush()
}

// DictAddCmd adds a manual entry.
type DictAddCmd struct {
	Correct  string   `arg:"" help:"The correct spelling"`
	Variants []string `arg:"" optional:"" help:"Mis-spellings to rewrite to it"`
}

func (c *DictAddCmd) Run(rt *runtime) error {
	e, err := rt.app.Dictionary().AddManual(rt.ctx, c.Correct, c.Variants...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(rt.out, e.ID)
	return err
}

// DictApplyCmd applies the dictionary to text.
type DictApplyCmd struct {
	Text string `arg:"" optional:"" help:"Text to correct (default: read stdin)"`
}

func (c *DictApplyCmd) Run(rt *runtime) error {
	text := c.Text
	if text == "" {
		data, err := io.ReadAll(rt.in)
		if err != nil {
			return err
		}
		text = string(data)
	}
	res, err := rt.app.Dictionary().Apply(rt.ctx, text)
	if err != nil {
		return err
	}
	_, err = io.WriteString(rt.out, res.Text)
	if err == nil && !strings.HasSuffix(res.Text, "\n") {
		_, err = io.WriteString(rt.out, "\n")
	}
	return err
}

// DictRemoveCmd removes an entry.
type DictRemoveCmd struct {
	ID string `arg:"" help:"Entry ID"`
}

func (c *DictRemoveCmd) Run(rt *runtime) error {
	return rt.app.Dictionary().RemoveEntry(rt.ctx, c.ID)
}

// DictAddVariantCmd adds a variant to an entry.
type DictAddVariantCmd struct {
	ID      string `arg:"" help:"Entry ID"`
	Variant string `arg:"" help:"Variant to add"`
}

func (c *DictAddVariantCmd) Run(rt *runtime) error {
	return rt.app.Dictionary().AddVariant(rt.ctx, c.ID, c.Variant)
}

// DictRemoveVariantCmd removes a variant from an entry.
type DictRemoveVariantCmd struct {
	ID      string `arg:"" help:"Entry ID"`
	Variant string `arg:"" help:"Variant to remove"`
}

func (c *DictRemoveVariantCmd) Run(rt *runtime) error {
	return rt.app.Dictionary().RemoveVariant(rt.ctx, c.ID, c.Variant)
}

// DictClearCmd removes every entry.
type DictClearCmd struct {
	Yes bool `help:"Confirm clearing the dictionary"`
}

func (c *DictClearCmd) Run(rt *runtime) error {
	if !c.Yes {
		return errors.New("refusing to clear the dictionary without --yes")
	}
	return rt.app.Dictionary().ClearAll(rt.ctx)
}

// DictExportCmd writes the dictionary as JSON.
type DictExportCmd struct {
	Out string `short:"o" help:"Write to this file instead of stdout" type:"path"`
}

func (c *DictExportCmd) Run(rt *runtime) error {
	data, err := rt.app.Dictionary().Export()
	if err != nil {
		return err
	}
	if c.Out != "" {
		return os.WriteFile(c.Out, []byte(data+"\n"), 0o644)
	}
	_, err = fmt.Fprintln(rt.out, data)
	return err
}

// DictImportCmd merges a JSON export.
type DictImportCmd struct {
	File string `arg:"" help:"JSON file to import" type:"existingfile"`
}

func (c *DictImportCmd) Run(rt *runtime) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	return rt.app.Dictionary().Import(rt.ctx, string(data))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
