package build

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/maruel/natural"
	"go.uber.org/zap"

	"codefrag/fragment"
	"codefrag/markup"
	"codefrag/utils/debug"
)

// dump stores readable picture of how fragment source was split into the
// debug report.
func (p *Pipeline) dump(ref *fragment.Ref, source string) {
	tw := debug.NewTreeWriter()

	tw.Line(0, "Fragment %s", ref)
	tw.TextBlock(1, "kind", ref.Kind.String())
	tw.TextBlock(1, "name", ref.Name)
	tw.Line(1, "part: %d header: %t", ref.Part, ref.ShowHeader)

	parts, err := fragment.SplitParts(ref.Name, source, ref.Kind.Marker())
	if err != nil {
		tw.TextBlock(1, "split error", err.Error())
	} else {
		byLabel := make(map[string]int, parts.Len())
		labels := make([]string, 0, parts.Len())
		for _, n := range parts.Numbers() {
			l := "part-" + strconv.Itoa(n)
			byLabel[l] = n
			labels = append(labels, l)
		}
		sort.Sort(natural.StringSlice(labels))

		tw.Line(1, "Parts: %d", parts.Len())
		for _, l := range labels {
			text, _ := parts.Get(byLabel[l])
			tw.Listing(2, l, text)
		}
	}

	if ref.Kind.IsSession() && err == nil {
		if text, ok := parts.Get(ref.Part); ok {
			blocks, err := fragment.NormalizeTranscript(text)
			if err != nil {
				tw.TextBlock(1, "session error", err.Error())
			} else {
				tw.Line(1, "Blocks: %d", len(blocks))
				for i, b := range blocks {
					tw.Listing(2, fmt.Sprintf("block-%d", i), b)
				}
			}
		}
	}

	name := "fragments/" + markup.ID(ref) + ".txt"
	p.rpt.StoreData(name, tw.Bytes())
	p.log.Debug("Fragment dump stored", zap.String("entry", name))
}
