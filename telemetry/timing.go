package telemetry

import (
	"io"
	"sync"
	"time"

	"github.com/mkuiper/rsutax/output"
)

// TimingCollector records a tree of timed operations. The first timer
// started becomes the root; later Start calls nest under whichever timer
// is currently open.
type TimingCollector struct {
	root    *timerNode
	current *timerNode
	mu      sync.Mutex
}

type timerNode struct {
	name     string
	start    time.Time
	end      time.Time
	children []*timerNode
	parent   *timerNode
}

// NewTimingCollector creates a new timing collector.
func NewTimingCollector() *TimingCollector {
	return &TimingCollector{}
}

// Start begins timing an operation.
func (c *TimingCollector) Start(name string) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	node := &timerNode{name: name, start: time.Now()}

	if c.root == nil {
		c.root = node
		c.current = node
	} else {
		node.parent = c.current
		c.current.children = append(c.current.children, node)
		c.current = node
	}

	return &timingTimer{collector: c, node: node}
}

// Report writes the timing tree. A collector that never started a timer
// writes nothing.
func (c *TimingCollector) Report(w io.Writer, styles *output.Styles) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.root == nil {
		return
	}
	formatTimingTree(w, c.root, styles)
}

type timingTimer struct {
	collector *TimingCollector
	node      *timerNode
}

// End stops the timer and reopens its parent for subsequent Start calls.
func (t *timingTimer) End() {
	t.collector.mu.Lock()
	defer t.collector.mu.Unlock()

	t.node.end = time.Now()
	if t.node.parent != nil {
		t.collector.current = t.node.parent
	}
}

// Child creates a timer nested under this one.
func (t *timingTimer) Child(name string) Timer {
	t.collector.mu.Lock()
	defer t.collector.mu.Unlock()

	node := &timerNode{name: name, start: time.Now(), parent: t.node}
	t.node.children = append(t.node.children, node)

	return &timingTimer{collector: t.collector, node: node}
}
