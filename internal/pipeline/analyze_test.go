package pipeline

import (
	"testing"

	"github.com/JonMunkholm/stagepipe/internal/payload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func objectOf(t *testing.T, s string) *payload.Object {
	t.Helper()
	obj, ok := mustParse(t, s).AsObject()
	require.True(t, ok)
	return obj
}

func TestAnalyze_LowVariability(t *testing.T) {
	a := Analyze(objectOf(t, `{"a":10,"b":20,"c":"x"}`), DefaultVariabilityThreshold)

	assert.Equal(t, []string{"sum", "avg", "max", "min"}, a.Metrics.Keys())
	assert.Equal(t, `{"avg":15,"max":20,"min":10,"sum":30}`, canonical(t, a.Metrics))
	assert.Equal(t, `{"c":"x"}`, canonical(t, a.Dimensions))
	assert.Equal(t,
		"Los datos muestran un valor promedio de 15. "+
			"El rango de valores es 10, lo que indica una baja variabilidad en los datos.",
		a.Insight)
}

func TestAnalyze_HighVariability(t *testing.T) {
	a := Analyze(objectOf(t, `{"a":1,"b":500}`), DefaultVariabilityThreshold)
	assert.Contains(t, a.Insight, "alta variabilidad")
	assert.Contains(t, a.Insight, "promedio de 250.5")
	assert.Contains(t, a.Insight, "rango de valores es 499")
}

func TestAnalyze_ThresholdIsExclusive(t *testing.T) {
	a := Analyze(objectOf(t, `{"a":0,"b":100}`), 100)
	assert.Contains(t, a.Insight, "baja variabilidad")

	a = Analyze(objectOf(t, `{"a":0,"b":100}`), 50)
	assert.Contains(t, a.Insight, "alta variabilidad")
}

func TestAnalyze_NoNumbers(t *testing.T) {
	a := Analyze(objectOf(t, `{"flag":true,"name":"n","nested":{"x":1},"list":[1,2]}`), DefaultVariabilityThreshold)

	assert.Equal(t, 0, a.Metrics.Len())
	assert.Equal(t, `{"name":"n"}`, canonical(t, a.Dimensions))
	assert.Equal(t, "Los datos muestran un valor promedio de N/A. ", a.Insight)
}

func TestAnalyze_SingleNumber(t *testing.T) {
	a := Analyze(objectOf(t, `{"x":-2.5}`), DefaultVariabilityThreshold)
	assert.Equal(t, `{"avg":-2.5,"max":-2.5,"min":-2.5,"sum":-2.5}`, canonical(t, a.Metrics))
	assert.Contains(t, a.Insight, "rango de valores es 0,")
}

func TestAnalyze_CleanedNullsCount(t *testing.T) {
	cleaned := Clean(mustParse(t, `{"a":null,"b":4}`), DefaultCleanPolicy())
	a := Analyze(cleaned, DefaultVariabilityThreshold)
	assert.Equal(t, `{"avg":2,"max":4,"min":0,"sum":4}`, canonical(t, a.Metrics))
}

func TestAnalyze_IndependentOfFieldOrder(t *testing.T) {
	forward := Analyze(objectOf(t, `{"a":0.1,"b":0.2,"c":0.3}`), DefaultVariabilityThreshold)
	reverse := Analyze(objectOf(t, `{"c":0.3,"b":0.2,"a":0.1}`), DefaultVariabilityThreshold)

	assert.Equal(t, canonical(t, forward.Metrics), canonical(t, reverse.Metrics))
	assert.Equal(t, forward.Insight, reverse.Insight)
}
