package device

import "testing"

type fakeBus struct {
	name  string
	devs  []interface{}
}

func (b *fakeBus) TypeName() string        { return b.name }
func (b *fakeBus) Enumerate() []interface{} { return b.devs }

type fakeDriver struct {
	name  string
	major int
}

func (d *fakeDriver) Name() string                            { return d.name }
func (d *fakeDriver) Major() int                               { return d.major }
func (d *fakeDriver) CheckDevice(busDev interface{}) bool      { return true }
func (d *fakeDriver) Attach(busDev interface{}, major, minor, unit int) error { return nil }

func TestSynthNameNumberedAppendsMinor(t *testing.T) {
	c := classReg{major: 1, prefix: "hd", kind: NUMBERED}
	if got := synthName(c, 3, 0); got != "hd3" {
		t.Fatalf("synthName = %q, want hd3", got)
	}
}

func TestSynthNameLetteredAppendsLetter(t *testing.T) {
	c := classReg{major: 1, prefix: "hd", kind: LETTERED}
	if got := synthName(c, 1, 0); got != "hdb" {
		t.Fatalf("synthName = %q, want hdb", got)
	}
}

func TestSynthNameSpecificMinorUsesBarePrefix(t *testing.T) {
	specific := 0
	c := classReg{major: 1, minor: &specific, prefix: "console", kind: NUMBERED}
	if got := synthName(c, 0, 0); got != "console" {
		t.Fatalf("synthName = %q, want console (specific-minor match)", got)
	}
}

func TestSynthNameAppendsUnitSuffix(t *testing.T) {
	c := classReg{major: 1, prefix: "eth", kind: NUMBERED}
	if got := synthName(c, 0, 2); got != "eth0s2" {
		t.Fatalf("synthName = %q, want eth0s2", got)
	}
}

func TestEnumerateAssignsMajorFromDriverAndPublishesEvent(t *testing.T) {
	busName := "faketestbus"
	driverMajor := 42
	RegisterBus(&fakeBus{name: busName, devs: []interface{}{"dev0"}})
	RegisterDriver(busName, &fakeDriver{name: "fake0", major: driverMajor})

	Enumerate()

	ev := <-Events()
	if ev.Major != driverMajor {
		t.Fatalf("event Major = %d, want %d", ev.Major, driverMajor)
	}
}
