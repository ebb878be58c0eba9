package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensorIDIsDeterministic(t *testing.T) {
	a := SensorID("safecast", "A")
	b := SensorID("safecast", "A")
	assert.Equal(t, a, b)

	c := SensorID("safecast", "B")
	assert.NotEqual(t, a, c)
}

func TestUnitConversionScenario(t *testing.T) {
	// Scenario 1 from the spec: Safecast {value: 35.1, unit: "cpm", ...}
	capturedAt, err := time.Parse(time.RFC3339, "2024-01-10T00:00:00Z")
	require.NoError(t, err)

	doseRate := 35.1 * CPMToMicrosieverts
	assert.InDelta(t, 0.20007, doseRate, 1e-5)

	ts := capturedAt.Unix()
	reading := NewReading(SensorID("safecast", "A"), ts, 37.4, 141.0, doseRate, 0, QualityValid, "safecast")

	assert.Equal(t, ts/3600, reading.Bucket)
	assert.Equal(t, int64(473568), reading.Bucket)
	assert.NoError(t, reading.Validate())
}

func TestValidateRejectsOutOfRangeCoordinates(t *testing.T) {
	r := NewReading(SensorID("safecast", "A"), 0, 91, 0, 0.1, 0, QualityValid, "safecast")
	assert.Error(t, r.Validate())

	r2 := NewReading(SensorID("safecast", "A"), 0, 0, 181, 0.1, 0, QualityValid, "safecast")
	assert.Error(t, r2.Validate())
}

func TestValidateRejectsNegativeDoseRate(t *testing.T) {
	r := NewReading(SensorID("safecast", "A"), 0, 0, 0, -0.1, 0, QualityValid, "safecast")
	assert.Error(t, r.Validate())
}

func TestValidateRejectsUnknownSource(t *testing.T) {
	r := NewReading(SensorID("mystery", "A"), 0, 0, 0, 0.1, 0, QualityValid, "mystery")
	assert.Error(t, r.Validate())
}

func TestValidateRejectsBucketMismatch(t *testing.T) {
	r := NewReading(SensorID("safecast", "A"), 3700, 0, 0, 0.1, 0, QualityValid, "safecast")
	r.Bucket = 0 // corrupt it after construction
	assert.Error(t, r.Validate())
}
