// Package boot implements §2/§6/§4.Q: the boot_info_v2 entry contract,
// cmdline parsing into a typed parameter registry (standing in for the
// source's `.kernel_params` linker section, which Go has no equivalent
// mechanism for — see SPEC_FULL.md's Configuration section), and the
// phased bring-up sequence that wires every subsystem together.
//
// Grounded on §2's phased bring-up table and original_source/boot/*.c +
// kernel/main.c for the boot_info_v2 shape; parameter logging follows the
// teacher's own fmt/log.Printf style (no structured logging library
// appears anywhere in the teacher's pack).
package boot

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"ember/clock"
	"ember/irq"
	"ember/kheap"
	"ember/mem"
	"ember/percpu"
	"ember/pool"
	"ember/sched"
	"ember/vm"
)

// MemType enumerates boot_info_v2's memory-map entry types, per §6.
type MemType int

const (
	MEM_UNKNOWN MemType = iota
	MEM_UNUSABLE
	MEM_USABLE
	MEM_RESERVED
	MEM_ACPI
	MEM_ACPI_NVS
	MEM_MAPPED_IO
	MEM_EFI_RUNTIME_CODE
	MEM_EFI_RUNTIME_DATA
)

// MemRegion_t is one typed memory-map entry.
type MemRegion_t struct {
	Type MemType
	Base uintptr
	Len  uintptr
}

// BootInfoV2_t is the blob the kernel is entered with, per §6's "Boot
// interface".
type BootInfoV2_t struct {
	KernelPhysAddr uintptr
	KernelSize     uintptr
	Pml4PhysAddr   uintptr
	MemMap         []MemRegion_t
	AcpiRSDP       uintptr
	FBBase         uintptr
	FBWidth        int
	FBHeight       int
	FBSize         uintptr
	InitrdBase     uintptr
	InitrdSize     uintptr
	Cmdline        string
	NumCPUs        int
}

// ParamType enumerates a registered parameter's expected value type, per
// §6's {STR, INT, BOOL}.
type ParamType int

const (
	PARAM_STR ParamType = iota
	PARAM_INT
	PARAM_BOOL
)

type paramEntry struct {
	typ ParamType
	str string
	i   int64
	b   bool
}

var params = map[string]*paramEntry{}

// RegisterParam pre-declares a cmdline key's expected type, standing in
// for the `.kernel_params` linker-section entries the source scans;
// ParseCmdline consults this registry to know how to interpret each
// key=value pair and to flag unknown keys.
func RegisterParam(name string, typ ParamType) {
	params[name] = &paramEntry{typ: typ}
}

// GetStr/GetInt/GetBool read back a parsed parameter's value.
func GetStr(name string) (string, bool) {
	p, ok := params[name]
	if !ok || p.typ != PARAM_STR {
		return "", false
	}
	return p.str, true
}
func GetInt(name string) (int64, bool) {
	p, ok := params[name]
	if !ok || p.typ != PARAM_INT {
		return 0, false
	}
	return p.i, true
}
func GetBool(name string) (bool, bool) {
	p, ok := params[name]
	if !ok || p.typ != PARAM_BOOL {
		return false, false
	}
	return p.b, true
}

// ParseCmdline parses space-separated key=value pairs (values may be
// quoted) per §6, warning (not failing) on unknown keys or malformed
// values.
func ParseCmdline(cmdline string) {
	for _, tok := range splitCmdline(cmdline) {
		kv := strings.SplitN(tok, "=", 2)
		key := kv[0]
		p, ok := params[key]
		if !ok {
			log.Printf("boot: unknown cmdline key %q", key)
			continue
		}
		if len(kv) != 2 {
			log.Printf("boot: cmdline key %q missing a value", key)
			continue
		}
		val := strings.Trim(kv[1], `"`)
		switch p.typ {
		case PARAM_STR:
			p.str = val
		case PARAM_INT:
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				log.Printf("boot: cmdline key %q: malformed int %q", key, val)
				continue
			}
			p.i = n
		case PARAM_BOOL:
			b, err := strconv.ParseBool(val)
			if err != nil {
				log.Printf("boot: cmdline key %q: malformed bool %q", key, val)
				continue
			}
			p.b = b
		}
	}
}

func splitCmdline(s string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case r == ' ' && !inQuote:
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// KernelHeap and KernelPool are the system-wide kheap/pool instances;
// Boot brings them up during its single-threaded phases.
var (
	KernelHeap *kheap.Heap_t
	KernelPool *pool.Pool_t
)

// Boot runs the phased bring-up of §2: "Q starts A→B→C (single-threaded);
// then F,G,H,D,E; then I starts the idle thread and enables preemption;
// the root kernel thread then runs module-init which brings up L (mounts
// initrd and devfs), M, N, and finally spawns the user init process
// through K." Phases after C run concurrently with nothing else in this
// simulation (there is no real bring-up ordering hazard without hardware
// to race against), so Boot simply executes them in the table's order.
func Boot(bi BootInfoV2_t) {
	ParseCmdline(bi.Cmdline)

	// A, B, C: physical memory, address spaces, kernel heap — single-
	// threaded per §2.
	mem.Phys_init()
	mem.Dmap_init()
	KernelHeap = kheap.Mkheap()

	// F, G, H, D, E.
	clock.SeedWallClock(time.Now())
	percpu.Init(bi.NumCPUs)
	KernelPool = pool.Mkpool(KernelHeap, []int{16, 32, 64, 128, 256, 512}, 32)

	// vm.Shootdown is wired here (not at vm's import time) so vm never
	// has to import irq directly, avoiding the cycle vm (low-level) would
	// otherwise form with irq/sched (higher-level).
	for c := 0; c < percpu.NumCPU(); c++ {
		cpu := c
		irq.RegisterCPU(cpu, func(kind irq.Kind, data interface{}) {
			if kind == irq.INVLPG {
				_ = data.(irq.Invlpg_t)
				// a real CPU would invalidate its local TLB here; this
				// simulation keeps one shared pmap view, see vm/as.go.
			}
		})
	}
	vm.Shootdown = func(as uintptr, startva uintptr, pgcount int) {
		targets := make([]int, percpu.NumCPU())
		for i := range targets {
			targets[i] = i
		}
		irq.Shootdown(as, startva, pgcount, targets)
	}

	// I: start the idle thread and enable preemption on every CPU.
	for c := 0; c < percpu.NumCPU(); c++ {
		sched.Init(c)
	}

	fmt.Printf("boot: %d CPU(s), %d MiB usable memory, cmdline=%q\n",
		percpu.NumCPU(), usableMiB(bi.MemMap), bi.Cmdline)

	// module-init (L, M, N, K) is sequenced by package kernel, which
	// depends on boot but not vice versa, avoiding a cycle.
}

func usableMiB(mm []MemRegion_t) uintptr {
	var total uintptr
	for _, r := range mm {
		if r.Type == MEM_USABLE {
			total += r.Len
		}
	}
	return total / (1 << 20)
}

