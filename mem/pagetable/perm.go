package pagetable

import "github.com/hz826/pkevm/internal/format"

// Prot is the abstract permission requested for a mapping, composable by OR.
type Prot int

const (
	ProtNone  Prot = 0
	ProtRead  Prot = 1
	ProtWrite Prot = 2
	ProtExec  Prot = 4
)

// PermBits converts an abstract permission request into hardware entry bits.
// The accessed/dirty bits are always set alongside read/write since this
// kernel does not do hardware-assisted access tracking; an empty request
// defaults to read-only. Pure function, no side effects.
func PermBits(prot Prot, user bool) uint64 {
	var perm uint64
	if prot&ProtRead != 0 {
		perm |= format.PTERead | format.PTEAccessed
	}
	if prot&ProtWrite != 0 {
		perm |= format.PTEWrite | format.PTEDirty
	}
	if prot&ProtExec != 0 {
		perm |= format.PTEExec | format.PTEAccessed
	}
	if perm == 0 {
		perm = format.PTERead
	}
	if user {
		perm |= format.PTEUser
	}
	return perm
}
