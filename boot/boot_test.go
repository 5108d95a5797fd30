package boot

import "testing"

func TestParseCmdlineParsesEachParamType(t *testing.T) {
	RegisterParam("test.str", PARAM_STR)
	RegisterParam("test.int", PARAM_INT)
	RegisterParam("test.bool", PARAM_BOOL)

	ParseCmdline(`test.str="hello world" test.int=42 test.bool=true`)

	if s, ok := GetStr("test.str"); !ok || s != "hello world" {
		t.Fatalf("GetStr(test.str) = (%q, %v), want (hello world, true)", s, ok)
	}
	if n, ok := GetInt("test.int"); !ok || n != 42 {
		t.Fatalf("GetInt(test.int) = (%d, %v), want (42, true)", n, ok)
	}
	if b, ok := GetBool("test.bool"); !ok || !b {
		t.Fatalf("GetBool(test.bool) = (%v, %v), want (true, true)", b, ok)
	}
}

func TestParseCmdlineIgnoresUnknownKey(t *testing.T) {
	RegisterParam("test.known", PARAM_STR)
	ParseCmdline(`test.known=kept unknown.key=dropped`)
	if s, ok := GetStr("test.known"); !ok || s != "kept" {
		t.Fatalf("GetStr(test.known) = (%q, %v), want (kept, true)", s, ok)
	}
	if _, ok := GetStr("unknown.key"); ok {
		t.Fatal("GetStr(unknown.key) reported ok for a never-registered key")
	}
}

func TestParseCmdlineMalformedIntLeavesPreviousValue(t *testing.T) {
	RegisterParam("test.int2", PARAM_INT)
	ParseCmdline("test.int2=7")
	ParseCmdline("test.int2=notanumber")
	n, ok := GetInt("test.int2")
	if !ok || n != 7 {
		t.Fatalf("GetInt(test.int2) after malformed re-parse = (%d, %v), want (7, true)", n, ok)
	}
}

func TestUsableMiBSumsOnlyUsableRegions(t *testing.T) {
	mm := []MemRegion_t{
		{Type: MEM_USABLE, Len: 4 << 20},
		{Type: MEM_RESERVED, Len: 100 << 20},
		{Type: MEM_USABLE, Len: 12 << 20},
	}
	if got := usableMiB(mm); got != 16 {
		t.Fatalf("usableMiB = %d, want 16", got)
	}
}

func TestBootBringsUpOneCPU(t *testing.T) {
	Boot(BootInfoV2_t{NumCPUs: 1, Cmdline: ""})
	if KernelHeap == nil {
		t.Fatal("Boot did not install KernelHeap")
	}
	if KernelPool == nil {
		t.Fatal("Boot did not install KernelPool")
	}
}
