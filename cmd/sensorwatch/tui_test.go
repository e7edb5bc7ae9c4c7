package main

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
	"github.com/BYTE-6D65/sensorstream/pkg/stream"
	"github.com/BYTE-6D65/sensorstream/pkg/testutils/inject"
)

var (
	accel  = sensor.Device{ID: "accel-0", Kind: sensor.KindAccelerometer}
	motion = sensor.Device{ID: "motion-0", Kind: sensor.KindSignificantMotion}
)

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testModel(reg *inject.Registry) model {
	return newModel(context.Background(), stream.NewManager(reg), newFeed(),
		[]sensor.Kind{sensor.KindAccelerometer, sensor.KindLight}, sensor.KindSignificantMotion)
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(model)
	test.That(t, ok, test.ShouldBeTrue)
	return nm, cmd
}

func TestDashboardShowsReadings(t *testing.T) {
	m := testModel(inject.NewRegistry(accel))

	m, cmd := update(t, m, readingMsg{kind: sensor.KindAccelerometer, reading: sensor.Reading{
		Device: accel, Values: []float64{1.5, 0, 9.81}, Accuracy: sensor.AccuracyHigh,
	}})
	test.That(t, cmd, test.ShouldNotBeNil)
	m, _ = update(t, m, accuracyMsg{kind: sensor.KindAccelerometer, accuracy: sensor.AccuracyLow})
	m, _ = update(t, m, streamEndMsg{name: "readings", kind: sensor.KindLight, err: &stream.DeviceNotFoundError{Kind: sensor.KindLight}})

	view := m.View()
	test.That(t, view, test.ShouldContainSubstring, "9.810")
	test.That(t, view, test.ShouldContainSubstring, "LOW")
	test.That(t, view, test.ShouldContainSubstring, "light")
	test.That(t, m.failures[sensor.KindLight], test.ShouldNotBeNil)
}

func TestDashboardLogKeepsRecentLines(t *testing.T) {
	m := testModel(inject.NewRegistry())
	for i := 0; i < logLines+3; i++ {
		m, _ = update(t, m, discoveryMsg{device: sensor.Device{ID: "hr", Kind: sensor.KindHeartRate}, direction: sensor.Direction(i % 2)})
	}
	test.That(t, m.log, test.ShouldHaveLength, logLines)
	test.That(t, m.log[len(m.log)-1].text, test.ShouldStartWith, "connected ")

	m, _ = update(t, m, streamEndMsg{name: "connections", err: stream.ErrDiscoveryUnsupported})
	test.That(t, m.log[len(m.log)-1].msgType, test.ShouldEqual, msgWarning)
}

func TestDashboardTrigger(t *testing.T) {
	reg := inject.NewRegistry(motion)
	m := testModel(reg)

	m, cmd := update(t, m, key("t"))
	test.That(t, m.trigger, test.ShouldNotBeNil)
	test.That(t, cmd, test.ShouldNotBeNil)
	test.That(t, reg.Calls(inject.MethodRequestOneShot), test.ShouldEqual, 1)

	// a second press while armed does nothing
	m, _ = update(t, m, key("t"))
	test.That(t, reg.Calls(inject.MethodRequestOneShot), test.ShouldEqual, 1)

	reg.Emit(sensor.Triggered{Trigger: sensor.TriggerEvent{Device: motion, Values: []float64{1}, Timestamp: time.Now()}})
	msg := cmd()
	m, _ = update(t, m, msg)
	test.That(t, m.trigger, test.ShouldBeNil)
	test.That(t, m.triggerStatus.msgType, test.ShouldEqual, msgSuccess)
	test.That(t, m.View(), test.ShouldContainSubstring, "triggered by")
}

func TestDashboardTriggerCancel(t *testing.T) {
	reg := inject.NewRegistry(motion)
	m := testModel(reg)

	m, cmd := update(t, m, key("t"))
	m, _ = update(t, m, key("c"))
	test.That(t, reg.Calls(inject.MethodCancelOneShot), test.ShouldEqual, 1)

	m, _ = update(t, m, cmd())
	test.That(t, m.triggerStatus.msgType, test.ShouldEqual, msgInfo)
	test.That(t, m.triggerStatus.text, test.ShouldEqual, "trigger cancelled")
}

func TestDashboardTriggerMissingDevice(t *testing.T) {
	m := testModel(inject.NewRegistry())
	m, cmd := update(t, m, key("t"))
	m, _ = update(t, m, cmd())
	test.That(t, m.triggerStatus.msgType, test.ShouldEqual, msgError)
	test.That(t, m.triggerStatus.text, test.ShouldContainSubstring, "significant_motion")
}

type fakeFirer struct {
	fired []string
}

func (f *fakeFirer) DefaultDevice(kind sensor.Kind) (sensor.Device, bool) {
	return motion, kind == motion.Kind
}

func (f *fakeFirer) Fire(id string) int {
	f.fired = append(f.fired, id)
	return 1
}

func TestDashboardFire(t *testing.T) {
	m := testModel(inject.NewRegistry(motion))
	fr := &fakeFirer{}
	m.fire = fr

	// nothing armed
	m, _ = update(t, m, key("f"))
	test.That(t, fr.fired, test.ShouldBeEmpty)

	m, _ = update(t, m, key("t"))
	m, _ = update(t, m, key("f"))
	test.That(t, fr.fired, test.ShouldResemble, []string{"motion-0"})
	test.That(t, strings.Contains(m.View(), "f fire now"), test.ShouldBeTrue)
}

func TestFeedWriterDropsWhenFull(t *testing.T) {
	f := feed(make(chan tea.Msg, 1))
	n, err := f.Write([]byte("first\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 6)
	_, err = f.Write([]byte("second\n"))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, f.wait()(), test.ShouldEqual, logMsg("first\n"))
}

func TestForwardReportsStreamEnd(t *testing.T) {
	reg := inject.NewRegistry(accel)
	f := newFeed()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	watchKind(ctx, f, stream.NewManager(reg), sensor.KindLight, sensor.SamplingUI)

	var ends int
	for ends < 2 {
		msg := f.wait()()
		end, ok := msg.(streamEndMsg)
		test.That(t, ok, test.ShouldBeTrue)
		var nf *stream.DeviceNotFoundError
		test.That(t, errors.As(end.err, &nf), test.ShouldBeTrue)
		ends++
	}
}
