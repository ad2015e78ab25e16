// internal/bot/watchlist.go
package bot

// maxDiscoveryWatches caps the trade-stream subscriptions opened for freshly
// created tokens. Held positions are re-watched on open and do not depend on
// this cap.
const maxDiscoveryWatches = 512

// watchList is a capacity-bounded FIFO set of discovery-watched mints. It is
// only touched from the runner's event-loop goroutine, so it carries no lock.
type watchList struct {
	capacity int
	members  map[string]struct{}
	order    []string
}

func newWatchList(capacity int) *watchList {
	if capacity <= 0 {
		capacity = 1
	}
	return &watchList{
		capacity: capacity,
		members:  make(map[string]struct{}, capacity),
	}
}

// add inserts the mint and reports the evicted oldest member when the list
// was full. Re-adding a tracked mint is a no-op.
func (w *watchList) add(mint string) (evicted string, added bool) {
	if _, ok := w.members[mint]; ok {
		return "", false
	}
	if len(w.order) >= w.capacity {
		evicted = w.order[0]
		w.order = w.order[1:]
		delete(w.members, evicted)
	}
	w.members[mint] = struct{}{}
	w.order = append(w.order, mint)
	return evicted, true
}

func (w *watchList) remove(mint string) {
	if _, ok := w.members[mint]; !ok {
		return
	}
	delete(w.members, mint)
	for i, m := range w.order {
		if m == mint {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}
