package device

import "testing"

func TestEncodeProfileProducesNonEmptyWireBytes(t *testing.T) {
	samples := []ProfSample{
		{Stack: []string{"main", "sched.Reschedule", "sched.pickNext"}, Count: 3},
		{Stack: []string{"main", "vfs.Vresolve"}, Count: 1},
	}
	b, err := EncodeProfile(samples)
	if err != nil {
		t.Fatalf("EncodeProfile failed: %v", err)
	}
	if len(b) == 0 {
		t.Fatal("EncodeProfile returned no bytes")
	}
}

func TestEncodeProfileWithNoSamplesStillProducesAValidProfile(t *testing.T) {
	b, err := EncodeProfile(nil)
	if err != nil {
		t.Fatalf("EncodeProfile(nil) failed: %v", err)
	}
	if len(b) == 0 {
		t.Fatal("EncodeProfile(nil) returned no bytes")
	}
}
