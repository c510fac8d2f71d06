package contracts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParamsGetters(t *testing.T) {
	p := Params{
		"f64":    1.5,
		"int":    3,
		"number": json.Number("252"),
		"str":    "0.25",
		"name":   "fast",
		"bad":    []int{1},
	}

	assert.Equal(t, 1.5, p.Float("f64", 0))
	assert.Equal(t, 3.0, p.Float("int", 0))
	assert.Equal(t, 252.0, p.Float("number", 0))
	assert.Equal(t, 0.25, p.Float("str", 0))
	assert.Equal(t, 9.0, p.Float("bad", 9))
	assert.Equal(t, 9.0, p.Float("missing", 9))

	assert.Equal(t, 1, p.Int("f64", 0))
	assert.Equal(t, 252, p.Int("number", 0))
	assert.Equal(t, 7, p.Int("missing", 7))

	assert.Equal(t, "fast", p.String("name", ""))
	assert.Equal(t, "dflt", p.String("int", "dflt"))

	var nilParams Params
	assert.Equal(t, 2.0, nilParams.Float("x", 2))
}

func TestMerge(t *testing.T) {
	defaults := Params{"threshold": 45.0, "window": 20}
	overrides := Params{"threshold": 60}

	merged := Merge(defaults, overrides)

	assert.Equal(t, 60.0, merged.Float("threshold", 0))
	assert.Equal(t, 20, merged.Int("window", 0))
	assert.Equal(t, 45.0, defaults["threshold"], "defaults must not change")
}

func TestParseParamValue(t *testing.T) {
	assert.Equal(t, true, ParseParamValue("true"))
	assert.Equal(t, false, ParseParamValue("off"))
	assert.Equal(t, 42, ParseParamValue("42"))
	assert.Equal(t, 1.3, ParseParamValue("1.3"))
	assert.Equal(t, "fast", ParseParamValue(" fast "))
}

func TestFundamentalsGet(t *testing.T) {
	f := Fundamentals{"trailingPE": 20}
	assert.Equal(t, 20.0, f.Get("trailingPE"))
	assert.True(t, isNaN(f.Get("roe")))
}

func isNaN(v float64) bool {
	return v != v
}
