package procmem_test

import (
	"testing"

	"github.com/umbralabs/umbra/pkg/procmem"
)

// testModule builds a small synthetic image at base 0x1000
func testModule(data []byte) *procmem.Module {
	return procmem.NewModule("host.exe", 0x1000, data)
}

func testScanner(t *testing.T, data []byte) *procmem.Scanner {
	t.Helper()
	pc := procmem.NewProcessContextFromModule(testModule(data))
	sc, err := procmem.NewScanner(pc)
	if err != nil {
		t.Fatalf("scanner construction failed: %v", err)
	}
	return sc
}

func TestParseSignature(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantLen int
		wantErr bool
	}{
		{name: "plain bytes", text: "48 8B 05", wantLen: 3},
		{name: "wildcards", text: "E8 ?? ?? ?? ?? 4C", wantLen: 6},
		{name: "single question mark", text: "48 ? 05", wantLen: 3},
		{name: "empty", text: "   ", wantErr: true},
		{name: "bad byte", text: "48 GG", wantErr: true},
		{name: "leading wildcard", text: "?? 48", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := procmem.ParseSignature(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected parse error for %q", tt.text)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sig.Len() != tt.wantLen {
				t.Errorf("expected length %d, got %d", tt.wantLen, sig.Len())
			}
		})
	}
}

func TestScanFindsPattern(t *testing.T) {
	data := []byte{0x00, 0x11, 0x48, 0x8B, 0x5C, 0x24, 0x20, 0xFF}
	sc := testScanner(t, data)

	addr, err := sc.Scan("48 8B ?? 24")
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if addr != 0x1002 {
		t.Errorf("expected 0x1002, got %s", addr)
	}
}

func TestScanMissingPattern(t *testing.T) {
	sc := testScanner(t, []byte{0x01, 0x02, 0x03})

	if _, err := sc.Scan("AA BB"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestScanAll(t *testing.T) {
	data := []byte{0x90, 0xCC, 0x90, 0xCC, 0x90}
	sc := testScanner(t, data)

	addrs, err := sc.ScanAll("90 CC")
	if err != nil {
		t.Fatalf("scan all failed: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(addrs))
	}
	if addrs[0] != 0x1000 || addrs[1] != 0x1002 {
		t.Errorf("unexpected match addresses: %v", addrs)
	}
}

func TestResolveRelativeCall(t *testing.T) {
	// E8 call at offset 2 with rel32 displacement 3: target is
	// call address + 5 + 3.
	data := []byte{0x90, 0x90, 0xE8, 0x03, 0x00, 0x00, 0x00, 0x90, 0x90, 0x90, 0xCC, 0x00}
	sc := testScanner(t, data)

	target, err := sc.ScanStatic("E8 ?? ?? ?? ??")
	if err != nil {
		t.Fatalf("static scan failed: %v", err)
	}
	if target != 0x100A {
		t.Errorf("expected call target 0x100A, got %s", target)
	}
}

func TestScanCachesResults(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	sc := testScanner(t, data)

	first, err := sc.Scan("DE AD")
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	second, err := sc.Scan("DE AD")
	if err != nil {
		t.Fatalf("cached scan failed: %v", err)
	}
	if first != second {
		t.Errorf("cache returned a different address: %s vs %s", first, second)
	}
}

func TestProcessContextRelease(t *testing.T) {
	pc := procmem.NewProcessContextFromModule(testModule([]byte{0x01}))

	if pc.Released() {
		t.Fatal("fresh context should not be released")
	}
	pc.Release()
	pc.Release() // idempotent
	if !pc.Released() {
		t.Error("context should report released")
	}
	if pc.MainModule() != nil {
		t.Error("released context should drop its module")
	}
}

func TestExceptionFilterReplace(t *testing.T) {
	// Build an image containing the filter pattern followed by the
	// 8-byte handler slot holding 0x11223344.
	img := make([]byte, 64)
	pattern := []byte{0x48, 0x8D, 0x05, 0x01, 0x02, 0x03, 0x04, 0x48, 0x89, 0x05, 0x00}
	copy(img[16:], pattern)
	// slot at pattern+11
	img[16+11] = 0x44
	img[16+12] = 0x33
	img[16+13] = 0x22
	img[16+14] = 0x11

	sc := testScanner(t, img)
	patcher := procmem.NewExceptionFilterPatcher(sc)

	prev, err := patcher.Replace(0xDEADBEEF)
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if prev != 0x11223344 {
		t.Errorf("expected previous filter 0x11223344, got %s", prev)
	}

	current, err := patcher.Current()
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if current != 0xDEADBEEF {
		t.Errorf("expected installed filter 0xDEADBEEF, got %s", current)
	}

	// Restoration path
	restored, err := patcher.Replace(prev)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored != 0xDEADBEEF {
		t.Errorf("expected to displace 0xDEADBEEF, got %s", restored)
	}
}
