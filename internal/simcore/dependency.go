package simcore

// DependencyTracker reacts to full-ownership transitions by asking the
// PolicyEngine for sibling entries keyed at (chunk_id, node) and firing
// each exactly once, in installation order, all at the triggering arrival's
// simulated time.
type DependencyTracker struct {
	engine *PolicyEngine
}

func newDependencyTracker(engine *PolicyEngine) *DependencyTracker {
	return &DependencyTracker{engine: engine}
}

// onChunkArrived fires every not-yet-fired policy entry keyed at
// (chunkID, node).
func (dt *DependencyTracker) onChunkArrived(chunkID, node string, sim *Simulation) error {
	for _, entry := range dt.engine.entriesFor(chunkID, node) {
		if err := dt.engine.fire(entry, sim); err != nil {
			return err
		}
	}
	return nil
}
