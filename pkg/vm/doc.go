// Package vm is the public facade over the virtual-memory subsystem: boot a
// simulated machine (DRAM image, physical page allocator, kernel address
// space), spawn per-process address spaces, and allocate from their user
// heaps.
//
// Example:
//
//	m, err := vm.Boot(vm.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	p, _ := m.NewProcess()
//	va, _ := p.Malloc(64, vm.ProtRead|vm.ProtWrite)
//	pa, ok := p.Translate(va)
//	_ = p.Free(va)
//
// The surrounding kernel functionality (ELF loading, syscall dispatch,
// scheduling) is out of scope; Process is the seam those collaborators call
// into.
package vm
