// Package clock implements §4.G: a clock_source abstraction for monotonic
// time plus tickless one-shot alarm scheduling.
//
// Grounded on original_source/kernel/clock.c (clock_source selection and
// the synchronized-read algorithm) and kernel/cpu/rtc.c (wall-clock
// seeding, §4.G "Wall time is boot-epoch + uptime"). The teacher's pack
// has no clock package of its own; the read/lock idiom follows klock's
// Spinmutex_t usage elsewhere in this tree.
package clock

import (
	"sort"
	"time"

	"ember/klock"
)

// Source_i is a free-running counter, matching §4.G's clock_source
// contract. The stock toolchain has no hardware TSC/HPET/PIT access, so
// the only implementation wired in is wallSource, below; the interface is
// kept so a future arch-specific source could be swapped in without
// touching callers.
type Source_i interface {
	Read() uint64
	Enable()
	Disable()
	ScaleNs(raw uint64) uint64
	ValueMask() uint64
}

type wallSource struct{}

func (wallSource) Read() uint64        { return uint64(time.Now().UnixNano()) }
func (wallSource) Enable()             {}
func (wallSource) Disable()            {}
func (wallSource) ScaleNs(v uint64) uint64 { return v }
func (wallSource) ValueMask() uint64   { return ^uint64(0) }

var source Source_i = wallSource{}
var mu klock.Spinmutex_t
var current uint64
var bootEpochNs int64

func init() {
	bootEpochNs = time.Now().UnixNano()
	current = source.Read()
}

// SetSource installs the clock source with the lowest period, per §4.G
// "the lowest-period source wins at init". Exposed for tests and for a
// future arch-specific source.
func SetSource(s Source_i) {
	mu.Lock(0)
	source = s
	current = source.Read()
	mu.Unlock()
}

// Now reads the monotonic counter, synchronizing per §4.G: "delta from
// last read is added to current_clock_count under a spin mutex; if
// contended, the caller spins until the lock is released and then returns
// the just-updated value." Spinmutex_t.Lock already implements that
// spin-with-IRQs-disabled discipline, so a contended caller here simply
// blocks in Lock and then observes whatever the winner wrote.
func Now() uint64 {
	mu.Lock(0)
	v := source.ScaleNs(source.Read())
	if v > current {
		current = v
	}
	v = current
	mu.Unlock()
	return v
}

// SeedWallClock reads the boot-time RTC snapshot once, matching
// original_source/kernel/cpu/rtc.c: wall time thereafter is derived as
// boot-epoch + uptime rather than re-read from hardware each call.
func SeedWallClock(bootRTC time.Time) {
	mu.Lock(0)
	bootEpochNs = bootRTC.UnixNano()
	mu.Unlock()
}

// WallNow returns boot-epoch + uptime, per §4.G.
func WallNow() time.Time {
	return time.Unix(0, bootEpochNs).Add(time.Duration(Now()))
}

// Alarm_t is a one-shot or periodic timer request, matching §4.G's
// alarm_t{id, expires_ns, callback, up-to-3 args}.
type Alarm_t struct {
	ID        int64
	ExpiresNs uint64
	Period    uint64 // 0 for one-shot
	Callback  func(args [3]uintptr)
	Args      [3]uintptr

	cancelled bool
}

var almu klock.Spinmutex_t
var alarms []*Alarm_t
var nextID int64
var wake chan struct{} = make(chan struct{}, 1)

func init() {
	go alarmLoop()
}

// Register inserts a into the sorted per-CPU... here, system-wide list and
// reprograms the driver loop if a is now the earliest pending alarm,
// mirroring alarm_register's "reprograms the source if the new head is
// earlier."
func Register(a *Alarm_t) *Alarm_t {
	almu.Lock(0)
	nextID++
	a.ID = nextID
	alarms = append(alarms, a)
	sort.Slice(alarms, func(i, j int) bool { return alarms[i].ExpiresNs < alarms[j].ExpiresNs })
	almu.Unlock()
	select {
	case wake <- struct{}{}:
	default:
	}
	return a
}

// Cancel marks a so it will not fire; a no-op if it already fired.
func Cancel(a *Alarm_t) {
	almu.Lock(0)
	a.cancelled = true
	almu.Unlock()
}

// alarmLoop is the "tickless" driver: it sleeps until the earliest
// pending alarm's expiry (or forever, if none), fires everything whose
// expiry has passed, and reprograms for whatever's next. Firing runs the
// callback directly rather than "from the IRQ handler" since this
// simulation has no interrupt frame.
func alarmLoop() {
	for {
		almu.Lock(0)
		var next *Alarm_t
		if len(alarms) > 0 {
			next = alarms[0]
		}
		almu.Unlock()

		if next == nil {
			<-wake
			continue
		}
		nowNs := Now()
		if next.ExpiresNs > nowNs {
			d := time.Duration(next.ExpiresNs - nowNs)
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-wake:
				t.Stop()
			}
			continue
		}

		almu.Lock(0)
		due := alarms[:0]
		rest := []*Alarm_t{}
		for _, al := range alarms {
			if al.ExpiresNs <= nowNs {
				due = append(due, al)
			} else {
				rest = append(rest, al)
			}
		}
		alarms = rest
		almu.Unlock()

		for _, al := range due {
			if al.cancelled {
				continue
			}
			al.Callback(al.Args)
			if al.Period != 0 {
				al.ExpiresNs = nowNs + al.Period
				Register(al)
			}
		}
	}
}
