package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"

	"github.com/BYTE-6D65/sensorstream/pkg/config"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := New(config.LoggingConfig{Level: "warn", Format: format})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, logger.Core().Enabled(zapcore.WarnLevel), test.ShouldBeTrue)
		test.That(t, logger.Core().Enabled(zapcore.InfoLevel), test.ShouldBeFalse)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud", Format: "json"})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New(config.LoggingConfig{Level: "info", Format: "xml"})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestOrNop(t *testing.T) {
	test.That(t, OrNop(nil), test.ShouldNotBeNil)
	l := Nop()
	test.That(t, OrNop(l), test.ShouldEqual, l)
}
