package telemetry

import (
	"fmt"
	"io"
	"time"

	"github.com/mkuiper/rsutax/output"
)

// slowThreshold marks operations worth highlighting in a styled report.
const slowThreshold = 100 * time.Millisecond

// formatTimingTree writes the timing tree in a nested view:
//
//	Total: 125ms
//	├─ Load vestings: 85ms
//	│  ├─ Parse CSV: 45ms
//	│  └─ Build ledger: 5ms
//	└─ Allocate sales: 40ms
func formatTimingTree(w io.Writer, root *timerNode, styles *output.Styles) {
	duration := root.end.Sub(root.start)

	name := root.name
	if styles != nil {
		name = styles.Keyword(name)
	}
	_, _ = fmt.Fprintf(w, "%s: %s\n", name, formatDuration(duration))

	for i, child := range root.children {
		formatNode(w, child, "", i == len(root.children)-1, styles)
	}
}

func formatNode(w io.Writer, node *timerNode, prefix string, isLast bool, styles *output.Styles) {
	duration := node.end.Sub(node.start)
	slow := duration >= slowThreshold

	branch, extension := "├─ ", "│  "
	if isLast {
		branch, extension = "└─ ", "   "
	}

	if styles != nil {
		_, _ = fmt.Fprintf(w, "%s%s: %s\n",
			styles.Dim(prefix+branch), node.name, styles.Timing(formatDuration(duration), slow))
	} else {
		_, _ = fmt.Fprintf(w, "%s%s%s: %s\n", prefix, branch, node.name, formatDuration(duration))
	}

	childPrefix := prefix + extension
	for i, child := range node.children {
		formatNode(w, child, childPrefix, i == len(node.children)-1, styles)
	}
}

// formatDuration shows milliseconds below one second, seconds above.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.2fs", float64(d)/float64(time.Second))
}
