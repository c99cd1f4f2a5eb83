package lockmgr

import (
	"DaemonDB/concurrency/txn"
	"sort"
	"time"
)

// Edge is a directed wait-for edge: t1 is waiting on a lock held (or
// wanted first) by t2.
type Edge struct {
	From, To uint64
}

// AddEdge records that t1 waits for t2, matching original_source's
// LockManager::AddEdge signature (there a stub; here real, since tests
// build wait-for graphs directly via AddEdge the way the original
// project's own test suite does, independent of RunCycleDetection's
// live-queue graph construction below).
func (m *Manager) AddEdge(t1, t2 uint64) {
	m.graphMu.Lock()
	defer m.graphMu.Unlock()
	if m.edges[t1] == nil {
		m.edges[t1] = map[uint64]struct{}{}
	}
	m.edges[t1][t2] = struct{}{}
}

// RemoveEdge deletes a previously added wait-for edge, a no-op if absent.
func (m *Manager) RemoveEdge(t1, t2 uint64) {
	m.graphMu.Lock()
	defer m.graphMu.Unlock()
	if m.edges[t1] != nil {
		delete(m.edges[t1], t2)
	}
}

// GetEdgeList returns every wait-for edge, sorted by (From, To) for
// deterministic test assertions.
func (m *Manager) GetEdgeList() []Edge {
	m.graphMu.Lock()
	defer m.graphMu.Unlock()
	out := make([]Edge, 0)
	for from, tos := range m.edges {
		for to := range tos {
			out = append(out, Edge{From: from, To: to})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// clearGraph drops every recorded edge, used between detection rounds
// once RunCycleDetection has rebuilt it from the live queues.
func (m *Manager) clearGraph() {
	m.graphMu.Lock()
	m.edges = make(map[uint64]map[uint64]struct{})
	m.graphMu.Unlock()
}

// HasCycle runs a deterministic DFS over the current wait-for graph:
// nodes are visited in sorted order, and from each node its neighbors are
// visited in sorted order, so two runs over the same graph always find
// the same cycle. On success, *victim is set to the highest transaction
// id (youngest) among the cycle's members, matching spec.md 4.5's
// "abort the youngest transaction in the cycle" policy.
func (m *Manager) HasCycle(victim *uint64) bool {
	m.graphMu.Lock()
	nodes := make([]uint64, 0, len(m.edges))
	adj := make(map[uint64][]uint64, len(m.edges))
	for from, tos := range m.edges {
		nodes = append(nodes, from)
		neighbors := make([]uint64, 0, len(tos))
		for to := range tos {
			neighbors = append(neighbors, to)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })
		adj[from] = neighbors
	}
	m.graphMu.Unlock()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[uint64]int, len(nodes))
	var path []uint64

	var dfs func(u uint64) bool
	dfs = func(u uint64) bool {
		color[u] = gray
		path = append(path, u)
		for _, v := range adj[u] {
			switch color[v] {
			case white:
				if dfs(v) {
					return true
				}
			case gray:
				path = append(path, v)
				return true
			}
		}
		path = path[:len(path)-1]
		color[u] = black
		return false
	}

	for _, n := range nodes {
		if color[n] != white {
			continue
		}
		path = path[:0]
		if dfs(n) {
			cycleStart := path[len(path)-1]
			max := cycleStart
			seen := false
			for i := len(path) - 1; i >= 0; i-- {
				if path[i] == cycleStart {
					if seen {
						break
					}
					seen = true
				}
				if path[i] > max {
					max = path[i]
				}
			}
			if victim != nil {
				*victim = max
			}
			return true
		}
	}
	return false
}

// buildWaitsForGraph replaces the recorded graph with one derived from
// every live table/row queue: each ungranted request gets an edge to
// every granted request on the same resource with an incompatible mode
// (it is, concretely, waiting on that holder).
func (m *Manager) buildWaitsForGraph() {
	m.clearGraph()

	addFromQueue := func(q *queue) {
		q.mu.Lock()
		defer q.mu.Unlock()
		for _, waiter := range q.requests {
			if waiter.granted {
				continue
			}
			for _, holder := range q.requests {
				if holder == waiter || !holder.granted {
					continue
				}
				if !compatible[holder.mode][waiter.mode] {
					m.AddEdge(waiter.txnID, holder.txnID)
				}
			}
		}
	}

	m.tableMapMu.Lock()
	tables := make([]*queue, 0, len(m.tableMap))
	for _, q := range m.tableMap {
		tables = append(tables, q)
	}
	m.tableMapMu.Unlock()
	for _, q := range tables {
		addFromQueue(q)
	}

	m.rowMapMu.Lock()
	rows := make([]*queue, 0, len(m.rowMap))
	for _, q := range m.rowMap {
		rows = append(rows, q)
	}
	m.rowMapMu.Unlock()
	for _, q := range rows {
		addFromQueue(q)
	}
}

// abortAndWake sets victim's transaction state to Aborted, force-releases
// every lock it had already been granted (so whoever was waiting on those
// locks can proceed instead of hanging forever), and broadcasts every
// queue so the victim's own blocked acquire() call wakes up, sees the
// aborted state, and unwinds with a Deadlock error.
func (m *Manager) abortAndWake(victimID uint64) {
	t := m.txns.Get(victimID)
	if t == nil {
		return
	}
	t.SetState(txn.Aborted)
	m.releaseAll(t)

	m.tableMapMu.Lock()
	tables := make([]*queue, 0, len(m.tableMap))
	for _, q := range m.tableMap {
		tables = append(tables, q)
	}
	m.tableMapMu.Unlock()
	for _, q := range tables {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	}

	m.rowMapMu.Lock()
	rows := make([]*queue, 0, len(m.rowMap))
	for _, q := range m.rowMap {
		rows = append(rows, q)
	}
	m.rowMapMu.Unlock()
	for _, q := range rows {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

// RunCycleDetection blocks, waking every CycleDetectionInterval to
// rebuild the wait-for graph from live queues and abort one victim per
// cycle found, until Stop is called. Intended to run in its own
// goroutine (go m.RunCycleDetection()), matching original_source's
// background RunCycleDetection loop -- implemented for real here, since
// the original leaves its body a TODO(students) stub and spec.md 4.5
// asks for a production-grade implementation.
func (m *Manager) RunCycleDetection() {
	m.detectionLoopRunningMux.Lock()
	if m.detectionLoopRunning {
		m.detectionLoopRunningMux.Unlock()
		return
	}
	m.detectionLoopRunning = true
	m.detectionLoopRunningMux.Unlock()

	ticker := time.NewTicker(m.CycleDetectionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if !m.EnableCycleDetection {
				continue
			}
			m.buildWaitsForGraph()
			for {
				var victim uint64
				if !m.HasCycle(&victim) {
					break
				}
				m.abortAndWake(victim)
				m.RemoveAllEdgesFor(victim)
			}
		}
	}
}

// RemoveAllEdgesFor drops every edge touching txnID (both directions),
// used after aborting a victim so the next HasCycle call in the same
// detection round doesn't immediately rediscover the same cycle.
func (m *Manager) RemoveAllEdgesFor(txnID uint64) {
	m.graphMu.Lock()
	defer m.graphMu.Unlock()
	delete(m.edges, txnID)
	for _, tos := range m.edges {
		delete(tos, txnID)
	}
}

// Stop ends a running RunCycleDetection goroutine.
func (m *Manager) Stop() {
	m.detectionLoopRunningMux.Lock()
	running := m.detectionLoopRunning
	m.detectionLoopRunningMux.Unlock()
	if running {
		close(m.stop)
	}
}
