package sensor

import (
	"testing"
	"time"

	"go.viam.com/test"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Accelerometer")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, k, test.ShouldEqual, KindAccelerometer)

	k, err = ParseKind(" 17 ")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, k, test.ShouldEqual, KindSignificantMotion)

	_, err = ParseKind("flux_capacitor")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "flux_capacitor")
}

func TestKindString(t *testing.T) {
	test.That(t, KindGyroscope.String(), test.ShouldEqual, "gyroscope")
	test.That(t, Kind(99).String(), test.ShouldEqual, "kind(99)")
}

func TestKindChannels(t *testing.T) {
	test.That(t, KindAccelerometer.Channels(), test.ShouldEqual, 3)
	test.That(t, KindRotationVector.Channels(), test.ShouldEqual, 5)
	test.That(t, KindLight.Channels(), test.ShouldEqual, 1)
	test.That(t, KindSignificantMotion.IsTrigger(), test.ShouldBeTrue)
	test.That(t, KindLight.IsTrigger(), test.ShouldBeFalse)
}

func TestSamplingConfigValidate(t *testing.T) {
	test.That(t, SamplingNormal.Validate(), test.ShouldBeNil)
	test.That(t, SamplingFastest.Validate(), test.ShouldBeNil)
	test.That(t, SamplingConfig{Period: -time.Second}.Validate(), test.ShouldNotBeNil)
	test.That(t, SamplingConfig{MaxLatency: -time.Second}.Validate(), test.ShouldNotBeNil)
}

func TestAccuracyString(t *testing.T) {
	test.That(t, AccuracyHigh.String(), test.ShouldEqual, "HIGH")
	test.That(t, AccuracyNoContact.String(), test.ShouldEqual, "NO_CONTACT")
	test.That(t, Accuracy(7).String(), test.ShouldEqual, "UNKNOWN(7)")
}

func TestListenerFunc(t *testing.T) {
	var got []Event
	l := &ListenerFunc{Name: "sink", Fn: func(e Event) { got = append(got, e) }}
	l.Notify(AccuracyChanged{Accuracy: AccuracyLow})
	l.Notify(DiscoveryEvent{Direction: Disconnected})

	test.That(t, l.ID(), test.ShouldEqual, "sink")
	test.That(t, got, test.ShouldHaveLength, 2)
	test.That(t, got[1].(DiscoveryEvent).Direction.String(), test.ShouldEqual, "disconnected")
}
