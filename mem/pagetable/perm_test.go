package pagetable

import (
	"testing"

	"github.com/hz826/pkevm/internal/format"
)

func Test_PermBits(t *testing.T) {
	cases := []struct {
		name string
		prot Prot
		user bool
		want uint64
	}{
		{"read", ProtRead, false, format.PTERead | format.PTEAccessed},
		{"write", ProtWrite, false, format.PTEWrite | format.PTEDirty},
		{"exec", ProtExec, false, format.PTEExec | format.PTEAccessed},
		{
			"read-write", ProtRead | ProtWrite, false,
			format.PTERead | format.PTEAccessed | format.PTEWrite | format.PTEDirty,
		},
		{
			"read-exec", ProtRead | ProtExec, false,
			format.PTERead | format.PTEExec | format.PTEAccessed,
		},
		// Empty requests default to read-only.
		{"none", ProtNone, false, format.PTERead},
		{"none-user", ProtNone, true, format.PTERead | format.PTEUser},
		{
			"user", ProtRead | ProtWrite, true,
			format.PTERead | format.PTEAccessed | format.PTEWrite | format.PTEDirty | format.PTEUser,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := PermBits(c.prot, c.user); got != c.want {
				t.Fatalf("PermBits(%v, %v) = %#x, want %#x", c.prot, c.user, got, c.want)
			}
		})
	}

	// The valid bit is the mapper's job, never the permission encoder's.
	for _, c := range cases {
		if PermBits(c.prot, c.user)&format.PTEValid != 0 {
			t.Fatalf("PermBits(%v, %v) set the valid bit", c.prot, c.user)
		}
	}
}
