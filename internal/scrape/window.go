package scrape

// ContextWindow collects ordinary lines around diagnostics.
//
// Lines go to the post-context of the last diagnostic until its capacity is
// used, and to the pre ring otherwise. Attaching a new diagnostic drains the
// ring and restarts the post counter.
type ContextWindow struct {
	ring     []string
	head     int
	size     int
	postCap  int
	postUsed int
	last     int
}

// NewContextWindow builds a window with the given capacities.
func NewContextWindow(maxPre, maxPost int) *ContextWindow {
	if maxPre < 0 {
		maxPre = 0
	}
	if maxPost < 0 {
		maxPost = 0
	}
	return &ContextWindow{
		ring:    make([]string, maxPre),
		postCap: maxPost,
		last:    -1,
	}
}

// Offer places an ordinary line. It returns the timeline index of the
// diagnostic that takes the line as post-context, or -1 when the line went
// to the pre ring.
func (w *ContextWindow) Offer(line string) int {
	if w.last >= 0 && w.postUsed < w.postCap {
		w.postUsed++
		return w.last
	}
	w.push(line)
	return -1
}

func (w *ContextWindow) push(line string) {
	if len(w.ring) == 0 {
		return
	}
	w.ring[w.head] = line
	w.head = (w.head + 1) % len(w.ring)
	if w.size < len(w.ring) {
		w.size++
	}
}

// Drain returns the buffered pre-context oldest first and empties the ring.
func (w *ContextWindow) Drain() []string {
	if w.size == 0 {
		return nil
	}
	out := make([]string, w.size)
	start := (w.head - w.size + len(w.ring)) % len(w.ring)
	for i := range out {
		out[i] = w.ring[(start+i)%len(w.ring)]
		w.ring[(start+i)%len(w.ring)] = ""
	}
	w.size = 0
	w.head = 0
	return out
}

// Attach makes idx the diagnostic receiving post-context.
func (w *ContextWindow) Attach(idx int) {
	w.last = idx
	w.postUsed = 0
}

// Pending is the number of lines held in the pre ring.
func (w *ContextWindow) Pending() int {
	return w.size
}
