package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hz826/pkevm/pkg/vm"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSimCmd())
}

func newSimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim <trace>",
		Short: "Run an allocation trace against a user process heap",
		Long: `The sim command boots a machine, spawns one user process, and interprets
a line-oriented trace file against its heap. Supported lines:

  alloc <size> [r|rw|rx]   allocate <size> bytes, result becomes a<N>
  free <N>                 free the address returned by allocation N
  translate <N> [offset]   translate a<N>+offset and print the physical address

Blank lines and lines starting with # are skipped.

Example:
  vmctl sim trace.txt
  vmctl sim trace.txt --mem-size 8388608 --verbose`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSim(args[0])
		},
	}
	return cmd
}

func runSim(tracePath string) error {
	f, err := os.Open(tracePath)
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := vm.Boot(vm.Options{
		MemSize:         memSize,
		KernelTextPages: textPages,
		ImagePath:       imagePath,
	})
	if err != nil {
		return fmt.Errorf("boot failed: %w", err)
	}
	defer m.Close()

	p, err := m.NewProcess()
	if err != nil {
		return fmt.Errorf("process setup failed: %w", err)
	}

	var results []uint64
	lineNo := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := runSimLine(p, line, &results); err != nil {
			return fmt.Errorf("%s:%d: %w", tracePath, lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	stats := p.Heap.Stats()
	printVerbose("\nHeap stats: %d allocs (%d small, %d big), %d frees, %d pages mapped, %d reclaimed\n",
		stats.AllocCalls, stats.SmallAllocs, stats.BigAllocs,
		stats.FreeCalls, stats.PagesMapped, stats.PagesReclaimed)
	return nil
}

func runSimLine(p *vm.Process, line string, results *[]uint64) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "alloc":
		if len(fields) < 2 {
			return fmt.Errorf("alloc: missing size")
		}
		size, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			return fmt.Errorf("alloc: bad size %q", fields[1])
		}
		prot := vm.ProtRead | vm.ProtWrite
		if len(fields) > 2 {
			prot, err = parseProt(fields[2])
			if err != nil {
				return err
			}
		}
		va, err := p.Malloc(size, prot)
		if err != nil {
			return fmt.Errorf("alloc %d: %w", size, err)
		}
		*results = append(*results, va)
		printInfo("a%d = %#x\n", len(*results)-1, va)
		return nil

	case "free":
		va, err := lookupResult(fields, *results)
		if err != nil {
			return err
		}
		if err := p.Free(va); err != nil {
			return fmt.Errorf("free %#x: %w", va, err)
		}
		printVerbose("freed %#x\n", va)
		return nil

	case "translate":
		va, err := lookupResult(fields, *results)
		if err != nil {
			return err
		}
		if len(fields) > 2 {
			off, err := strconv.ParseUint(fields[2], 0, 64)
			if err != nil {
				return fmt.Errorf("translate: bad offset %q", fields[2])
			}
			va += off
		}
		pa, ok := p.Translate(va)
		if !ok {
			printInfo("%#x -> unmapped\n", va)
			return nil
		}
		printInfo("%#x -> %#x\n", va, pa)
		return nil

	default:
		return fmt.Errorf("unknown trace op %q", fields[0])
	}
}

func lookupResult(fields []string, results []uint64) (uint64, error) {
	if len(fields) < 2 {
		return 0, fmt.Errorf("%s: missing allocation index", fields[0])
	}
	idx, err := strconv.Atoi(fields[1])
	if err != nil || idx < 0 || idx >= len(results) {
		return 0, fmt.Errorf("%s: no allocation %q", fields[0], fields[1])
	}
	return results[idx], nil
}

func parseProt(s string) (vm.Prot, error) {
	switch s {
	case "r":
		return vm.ProtRead, nil
	case "rw":
		return vm.ProtRead | vm.ProtWrite, nil
	case "rx":
		return vm.ProtRead | vm.ProtExec, nil
	default:
		return 0, fmt.Errorf("bad protection %q (want r, rw or rx)", s)
	}
}
