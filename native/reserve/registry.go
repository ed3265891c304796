package reserve

// attesterRegistry assigns a stable sequential index to each attester on first
// submission. Index 0 is the unregistered sentinel; real indices start at 1.
// Registration is idempotent and never revoked.
type attesterRegistry struct {
	indexByAddr map[[20]byte]uint64
	addrByIndex map[uint64][20]byte
	next        uint64
}

func newAttesterRegistry() *attesterRegistry {
	return &attesterRegistry{
		indexByAddr: make(map[[20]byte]uint64),
		addrByIndex: make(map[uint64][20]byte),
		next:        1,
	}
}

// register returns the attester's index and whether this call assigned it.
func (r *attesterRegistry) register(addr [20]byte) (uint64, bool) {
	if idx, ok := r.indexByAddr[addr]; ok {
		return idx, false
	}
	idx := r.next
	r.next++
	r.indexByAddr[addr] = idx
	r.addrByIndex[idx] = addr
	return idx, true
}

func (r *attesterRegistry) index(addr [20]byte) uint64 {
	return r.indexByAddr[addr]
}

func (r *attesterRegistry) byIndex(idx uint64) ([20]byte, bool) {
	addr, ok := r.addrByIndex[idx]
	return addr, ok
}

func (r *attesterRegistry) count() uint64 {
	return r.next - 1
}
