package review

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// render writes the classified summary, one sigil per change.
func render(w io.Writer, changes []Change, truncated bool) {
	out := termenv.NewOutput(w)
	for _, c := range changes {
		fmt.Fprintf(w, "  %s %s\n", sigil(out, c.Kind), c.Path)
	}
	if truncated {
		fmt.Fprintf(w, "  … further changes not shown (display capped at %d entries)\n", maxChanges)
	}
}

func sigil(out *termenv.Output, k Kind) string {
	switch k {
	case Added, AddedDir:
		return out.String("+").Foreground(out.Color("2")).String()
	case Edited:
		return out.String("~").Foreground(out.Color("3")).String()
	case Deleted:
		return out.String("-").Foreground(out.Color("1")).String()
	}
	return "?"
}
