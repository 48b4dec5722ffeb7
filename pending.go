package sphero

// ResponseHandler is called once with the reply to a command. err is a
// *ProtocolError when the device reported a failure.
type ResponseHandler func(response Response, err error)

type pendingEntry struct {
	handler    ResponseHandler
	generation uint64
}

// pendingTable maps outstanding sequence numbers to their handlers. Entries
// never expire on their own. The table is not synchronized; Link guards it
// together with the sequence counter.
type pendingTable struct {
	entries    map[uint8]pendingEntry
	generation uint64
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		entries: map[uint8]pendingEntry{},
	}
}

// put registers a handler for seq and returns the generation of the entry.
// replaced reports whether an unanswered entry for seq was overwritten,
// which only happens after 256 outstanding requests.
func (t *pendingTable) put(seq uint8, handler ResponseHandler) (generation uint64, replaced bool) {
	_, replaced = t.entries[seq]

	t.generation++
	t.entries[seq] = pendingEntry{
		handler:    handler,
		generation: t.generation,
	}

	return t.generation, replaced
}

// take removes and returns the handler for seq.
func (t *pendingTable) take(seq uint8) (ResponseHandler, bool) {
	entry, ok := t.entries[seq]

	if !ok {
		return nil, false
	}

	delete(t.entries, seq)

	return entry.handler, true
}

// remove deletes the entry for seq, but only if it still is the entry of
// the given generation.
func (t *pendingTable) remove(seq uint8, generation uint64) bool {
	entry, ok := t.entries[seq]

	if !ok || entry.generation != generation {
		return false
	}

	delete(t.entries, seq)

	return true
}

func (t *pendingTable) len() int {
	return len(t.entries)
}
