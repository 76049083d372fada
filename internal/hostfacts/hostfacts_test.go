package hostfacts

import (
	"runtime"
	"testing"
)

func TestCollect(t *testing.T) {
	f := Collect()

	if len(f.Errors) > 0 {
		t.Logf("partial host facts: %v", f.Errors)
	}
	if f.OS != "" && f.OS != runtime.GOOS {
		t.Errorf("OS = %q, want %q", f.OS, runtime.GOOS)
	}
	if f.CPUs < 0 {
		t.Errorf("CPUs = %d, want non-negative", f.CPUs)
	}
	if f.MemTotalMB > 0 && f.MemAvailableMB > f.MemTotalMB {
		t.Errorf("available memory %d MB exceeds total %d MB", f.MemAvailableMB, f.MemTotalMB)
	}
}

func TestFields(t *testing.T) {
	f := Facts{OS: "linux", CPUs: 2, MemTotalMB: 512}
	fields := f.Fields()

	if fields["os"] != "linux" || fields["cpus"] != 2 || fields["mem_total_mb"] != uint64(512) {
		t.Errorf("Fields() = %v", fields)
	}
}
