package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAverage(t *testing.T) {
	var avg Average
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		avg.Add(x)
	}
	assert.Equal(t, 8.0, avg.Count)
	assert.InDelta(t, 5.0, avg.Mean, 1e-9)
	assert.InDelta(t, 2.138, avg.StdDev, 1e-3)

	avg.Reset()
	assert.Equal(t, 0.0, avg.Count)
	avg.Add(3)
	assert.Equal(t, 3.0, avg.Mean)
	assert.Equal(t, 0.0, avg.StdDev)
}

func TestAverageHTML(t *testing.T) {
	var avg Average
	avg.Add(1)
	avg.Add(2)
	assert.Contains(t, string(avg.HTML()), "1.50")
}
