package pipeline

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/JonMunkholm/stagepipe/internal/payload"
)

// DefaultVariabilityThreshold is the max-min spread above which a record is
// described as highly variable.
const DefaultVariabilityThreshold = 100.0

// Analysis is what the loader derives from one processed record.
type Analysis struct {
	// Metrics holds sum, avg, max and min over the numeric top-level
	// fields, in that order. It is empty when there are none.
	Metrics *payload.Object
	// Dimensions holds the string-valued top-level fields.
	Dimensions *payload.Object
	Insight    string
}

// Analyze computes aggregates and a short narrative for obj. Booleans are not
// numeric. Numbers are summed in key order, so the result does not depend on
// field order.
func Analyze(obj *payload.Object, threshold float64) Analysis {
	a := Analysis{
		Metrics:    payload.NewObject(),
		Dimensions: payload.NewObject(),
	}

	var nums []payload.Field
	for _, f := range obj.Fields() {
		if _, ok := f.Value.AsNumber(); ok {
			nums = append(nums, f)
			continue
		}
		if _, ok := f.Value.AsString(); ok {
			a.Dimensions.Set(f.Key, f.Value)
		}
	}

	if len(nums) > 0 {
		slices.SortFunc(nums, func(x, y payload.Field) int { return cmp.Compare(x.Key, y.Key) })
		first, _ := nums[0].Value.AsNumber()
		sum, lo, hi := 0.0, first, first
		for _, f := range nums {
			n, _ := f.Value.AsNumber()
			sum += n
			lo = min(lo, n)
			hi = max(hi, n)
		}
		a.Metrics.Set("sum", payload.Number(sum))
		a.Metrics.Set("avg", payload.Number(sum/float64(len(nums))))
		a.Metrics.Set("max", payload.Number(hi))
		a.Metrics.Set("min", payload.Number(lo))
	}

	a.Insight = insight(a.Metrics, threshold)
	return a
}

func insight(m *payload.Object, threshold float64) string {
	var b strings.Builder

	avg := "N/A"
	if v, ok := m.Get("avg"); ok {
		n, _ := v.AsNumber()
		avg = payload.FormatNumber(n)
	}
	fmt.Fprintf(&b, "Los datos muestran un valor promedio de %s. ", avg)

	hiV, okHi := m.Get("max")
	loV, okLo := m.Get("min")
	if okHi && okLo {
		hi, _ := hiV.AsNumber()
		lo, _ := loV.AsNumber()
		spread := hi - lo
		level := "baja"
		if spread > threshold {
			level = "alta"
		}
		fmt.Fprintf(&b, "El rango de valores es %s, lo que indica una %s variabilidad en los datos.",
			payload.FormatNumber(spread), level)
	}

	return b.String()
}
