package hierarchy

import (
	"container/list"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// processingQueue holds types whose parent has already been ordered.
type processingQueue struct {
	queue *list.List
}

func newProcessingQueue() *processingQueue {
	return &processingQueue{queue: list.New()}
}

func (pq *processingQueue) enqueue(name string) {
	pq.queue.PushBack(name)
}

func (pq *processingQueue) dequeue() (string, bool) {
	if pq.queue.Len() == 0 {
		return "", false
	}
	elem := pq.queue.Front()
	pq.queue.Remove(elem)
	return elem.Value.(string), true
}

func (pq *processingQueue) isEmpty() bool {
	return pq.queue.Len() == 0
}

// calculateInDegrees counts the incoming edges of each type. In a valid tree
// this is 0 for the root and 1 for every other type.
func (t *Tree) calculateInDegrees() map[string]int {
	inDegree := make(map[string]int, len(t.Nodes))
	for name := range t.Nodes {
		inDegree[name] = 0
	}
	for _, children := range t.Children {
		for _, child := range children {
			inDegree[child]++
		}
	}
	return inDegree
}

// initializeQueue seeds the queue with zero in-degree types in sorted order
// so the resulting order is deterministic.
func initializeQueue(inDegree map[string]int) *processingQueue {
	var ready []string
	for name, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	pq := newProcessingQueue()
	for _, name := range ready {
		pq.enqueue(name)
	}
	return pq
}

// ErrCycleDetected is matched by CycleError.
var ErrCycleDetected = errors.New("cycle detected in type hierarchy")

// CycleInfo describes the types Kahn's algorithm could not order.
type CycleInfo struct {
	TotalNodes        int
	ProcessedNodes    int
	UnprocessedNodes  []string // types in or below a cycle
	CycleParticipants []string // types forming the cycle
	CyclePath         []string // e.g. [A, B, A]
}

// CycleError reports parent links that loop back on themselves.
type CycleError struct {
	Info *CycleInfo
}

func (e *CycleError) Error() string {
	msg := fmt.Sprintf("cycle detected in type hierarchy: %d of %d types could not be ordered",
		len(e.Info.UnprocessedNodes), e.Info.TotalNodes)

	if len(e.Info.CyclePath) > 0 {
		msg += fmt.Sprintf("\nCycle path: %s", strings.Join(e.Info.CyclePath, " -> "))
	}

	if len(e.Info.UnprocessedNodes) > len(e.Info.CycleParticipants) {
		participants := make(map[string]bool, len(e.Info.CycleParticipants))
		for _, p := range e.Info.CycleParticipants {
			participants[p] = true
		}
		var blocked []string
		for _, u := range e.Info.UnprocessedNodes {
			if !participants[u] {
				blocked = append(blocked, u)
			}
		}
		msg += fmt.Sprintf("\nTypes blocked by cycle: %s", strings.Join(blocked, ", "))
	}

	return msg
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// TopologicalSort returns every type with parents before their subtypes,
// siblings in name order. It returns a *CycleError when parent links loop.
func (t *Tree) TopologicalSort() ([]string, error) {
	inDegree := t.calculateInDegrees()
	queue := initializeQueue(inDegree)

	result := make([]string, 0, len(t.Nodes))
	for !queue.isEmpty() {
		name, _ := queue.dequeue()
		result = append(result, name)

		for _, child := range t.GetChildren(name) {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue.enqueue(child)
			}
		}
	}

	if len(result) != len(t.Nodes) {
		return nil, &CycleError{Info: t.cycleInfo(result)}
	}
	return result, nil
}

// Validate fails with a *CycleError when the tree cannot be ordered.
func (t *Tree) Validate() error {
	_, err := t.TopologicalSort()
	return err
}

func (t *Tree) cycleInfo(processed []string) *CycleInfo {
	done := make(map[string]bool, len(processed))
	for _, name := range processed {
		done[name] = true
	}

	var unprocessed []string
	pending := make(map[string]bool)
	for _, name := range t.AllNodes() {
		if !done[name] {
			unprocessed = append(unprocessed, name)
			pending[name] = true
		}
	}

	var participants []string
	for _, name := range unprocessed {
		if t.canReachSelf(name, pending) {
			participants = append(participants, name)
		}
	}

	var path []string
	if len(participants) > 0 {
		path = t.findCyclePath(participants[0], pending)
	}

	return &CycleInfo{
		TotalNodes:        len(t.Nodes),
		ProcessedNodes:    len(processed),
		UnprocessedNodes:  unprocessed,
		CycleParticipants: participants,
		CyclePath:         path,
	}
}

// findCyclePath follows child edges from start back to start.
func (t *Tree) findCyclePath(start string, allowed map[string]bool) []string {
	visited := make(map[string]bool)
	path := []string{start}
	if t.dfsFindPath(start, start, visited, allowed, &path) {
		return path
	}
	return nil
}

func (t *Tree) dfsFindPath(current, target string, visited, allowed map[string]bool, path *[]string) bool {
	for _, child := range t.GetChildren(current) {
		if !allowed[child] {
			continue
		}
		if child == target {
			*path = append(*path, target)
			return true
		}
		if visited[child] {
			continue
		}
		visited[child] = true
		*path = append(*path, child)
		if t.dfsFindPath(child, target, visited, allowed, path) {
			return true
		}
		*path = (*path)[:len(*path)-1]
	}
	return false
}

func (t *Tree) canReachSelf(start string, allowed map[string]bool) bool {
	visited := make(map[string]bool)
	return t.dfsCanReach(start, start, visited, allowed, true)
}

func (t *Tree) dfsCanReach(current, target string, visited, allowed map[string]bool, isStart bool) bool {
	if current == target && !isStart {
		return true
	}
	if visited[current] || !allowed[current] {
		return false
	}
	visited[current] = true
	for _, child := range t.GetChildren(current) {
		if t.dfsCanReach(child, target, visited, allowed, false) {
			return true
		}
	}
	return false
}
