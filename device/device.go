// Package device implements §4.M: bus/driver registration, the
// accept-first-candidate device enumeration protocol, {major, minor,
// unit} assignment, and devfs name synthesis.
//
// Grounded on original_source/include/kernel/device.h's bus/driver/device
// registration protocol; reuses the teacher's msi/msi.go vector pool
// (kept, unmodified) as the MSI vector source a PCI-class device draws
// from when it registers an interrupt handler with package irq.
package device

import (
	"fmt"

	"ember/klock"
	"ember/msi"
)

// Driver_i is registered against a bus type name; CheckDevice is §4.M's
// "check_device(bus_dev) predicate".
type Driver_i interface {
	Name() string
	Major() int
	CheckDevice(busDev interface{}) bool
	Attach(busDev interface{}, major, minor, unit int) error
}

// Bus_i enumerates the devices attached to it, handing each to every
// registered driver for that bus type until one accepts.
type Bus_i interface {
	TypeName() string
	Enumerate() []interface{}
}

// classReg is a device-class registration, per §4.M "a class registration
// is {major, optional minor, prefix, NUMBERED|LETTERED}".
type NameKind int

const (
	NUMBERED NameKind = iota
	LETTERED
)

type classReg struct {
	major  int
	minor  *int
	prefix string
	kind   NameKind
}

var mu klock.Spinmutex_t
var buses = map[string]Bus_i{}
var drivers = map[string][]Driver_i{}
var classes = map[int]classReg{}
var nextMinor = map[int]int{}
var events = make(chan Event, 64)

// Event is published on the device_events channel devfs consumes to
// create /dev entries, per §4.M.
type Event struct {
	Name  string
	Major int
	Minor int
	Unit  int
}

// Events returns the channel devfs should drain to learn about newly
// accepted devices.
func Events() <-chan Event { return events }

// RegisterBus makes b available for enumeration under its type name.
func RegisterBus(b Bus_i) {
	mu.Lock(0)
	buses[b.TypeName()] = b
	mu.Unlock()
}

// RegisterDriver registers d against busType, per "drivers register
// themselves against a bus type".
func RegisterDriver(busType string, d Driver_i) {
	mu.Lock(0)
	drivers[busType] = append(drivers[busType], d)
	mu.Unlock()
}

// RegisterClass installs the devfs name-synthesis rule for major.
func RegisterClass(major int, minor *int, prefix string, kind NameKind) {
	mu.Lock(0)
	classes[major] = classReg{major: major, minor: minor, prefix: prefix, kind: kind}
	mu.Unlock()
}

// synthName implements §4.M's name synthesis: a specific minor match uses
// the bare prefix; otherwise NUMBERED appends the minor decimal (hd3),
// LETTERED appends a base-26 suffix (hda, hdb); a nonzero unit appends sN.
func synthName(c classReg, minor, unit int) string {
	name := c.prefix
	if c.minor == nil || *c.minor != minor {
		switch c.kind {
		case NUMBERED:
			name = fmt.Sprintf("%s%d", c.prefix, minor)
		case LETTERED:
			name = fmt.Sprintf("%s%c", c.prefix, 'a'+byte(minor%26))
		}
	}
	if unit != 0 {
		name = fmt.Sprintf("%ss%d", name, unit)
	}
	return name
}

// Enumerate walks every registered bus, offering each of its devices to
// every driver registered against that bus type until one accepts; the
// first accepting driver owns the device and is assigned
// {major, minor, unit}, per §4.M.
func Enumerate() {
	mu.Lock(0)
	bs := make([]Bus_i, 0, len(buses))
	for _, b := range buses {
		bs = append(bs, b)
	}
	mu.Unlock()

	for _, b := range bs {
		mu.Lock(0)
		ds := append([]Driver_i{}, drivers[b.TypeName()]...)
		mu.Unlock()

		for _, dev := range b.Enumerate() {
			for _, d := range ds {
				if !d.CheckDevice(dev) {
					continue
				}
				major := d.Major()
				mu.Lock(0)
				minor := nextMinor[major]
				nextMinor[major]++
				mu.Unlock()
				if err := d.Attach(dev, major, minor, 0); err != nil {
					continue
				}
				mu.Lock(0)
				c, ok := classes[major]
				mu.Unlock()
				name := d.Name()
				if ok {
					name = synthName(c, minor, 0)
				}
				events <- Event{Name: name, Major: major, Minor: minor}
				break
			}
		}
	}
}

// MSIVector draws an interrupt vector from the teacher's pool for a
// PCI-class device that attaches via MSI rather than a legacy IRQ line.
func MSIVector() msi.Msivec_t { return msi.Msi_alloc() }

// ReleaseMSIVector returns v to the pool.
func ReleaseMSIVector(v msi.Msivec_t) { msi.Msi_free(v) }
