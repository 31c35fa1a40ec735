package ax26

// peerMode is the state of a peerFilter.
type peerMode int

const (
	peerAny peerMode = iota
	peerCandidates
	peerPinned
)

// peerFilter decides which source stations a wait accepts frames from.
//
// It starts as any (no restriction) or candidates (a fixed set). The first
// accepted frame pins it to that frame's source; from then on only the
// pinned station is accepted.
type peerFilter struct {
	mode       peerMode
	candidates map[StationID]struct{}
	pinned     StationID
}

func anyPeer() *peerFilter {
	return &peerFilter{mode: peerAny}
}

// candidatePeers restricts to ids. An empty list accepts any station.
func candidatePeers(ids []StationID) *peerFilter {
	if len(ids) == 0 {
		return anyPeer()
	}
	set := make(map[StationID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &peerFilter{mode: peerCandidates, candidates: set}
}

func pinnedPeer(id StationID) *peerFilter {
	return &peerFilter{mode: peerPinned, pinned: id}
}

func (p *peerFilter) allows(id StationID) bool {
	switch p.mode {
	case peerAny:
		return true
	case peerCandidates:
		_, ok := p.candidates[id]
		return ok
	default:
		return id == p.pinned
	}
}

// pin locks the filter to id. Pinning an already pinned filter is a no-op.
func (p *peerFilter) pin(id StationID) {
	if p.mode == peerPinned {
		return
	}
	p.mode = peerPinned
	p.pinned = id
	p.candidates = nil
}

func (p *peerFilter) String() string {
	switch p.mode {
	case peerAny:
		return "any"
	case peerCandidates:
		return "candidates"
	default:
		return "pinned:" + string(p.pinned)
	}
}
