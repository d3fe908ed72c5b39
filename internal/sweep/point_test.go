package sweep

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridExpand_ProductFirstAxisSlowest(t *testing.T) {
	g := Grid{
		Axes: []Axis{
			{Name: "nWifi", Values: []string{"3", "6"}},
			{Name: "mode", Values: []string{"low", "high"}},
		},
		Fixed: []Param{{Name: "nCsma", Value: "3"}},
	}
	points, err := g.Expand()
	require.NoError(t, err)

	var got []string
	for _, p := range points {
		got = append(got, p.String())
	}
	assert.Equal(t, []string{
		"nWifi=3,mode=low,nCsma=3",
		"nWifi=3,mode=high,nCsma=3",
		"nWifi=6,mode=low,nCsma=3",
		"nWifi=6,mode=high,nCsma=3",
	}, got)
}

func TestGridExpand_Zip(t *testing.T) {
	g := Grid{Mode: ModeZip, Axes: []Axis{
		{Name: "nWifi", Values: []string{"3", "6", "9"}},
		{Name: "nCsma", Values: []string{"3", "6", "9"}},
	}}
	points, err := g.Expand()
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "nWifi=9,nCsma=9", points[2].String())

	g.Axes[1].Values = []string{"3"}
	_, err = g.Expand()
	assert.Error(t, err)
}

func TestGridExpand_ExplicitPointsAndFixedDefaults(t *testing.T) {
	g := Grid{
		Fixed:  []Param{{Name: "simTime", Value: "50"}},
		Points: []Point{NewPoint(Param{Name: "size", Value: "10"}, Param{Name: "simTime", Value: "20"})},
	}
	points, err := g.Expand()
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "size=10,simTime=20", points[0].String())

	_, err = Grid{}.Expand()
	assert.Error(t, err)

	_, err = Grid{Mode: "shuffle", Axes: []Axis{{Name: "a", Values: []string{"1"}}}}.Expand()
	assert.Error(t, err)
}

func TestPoint_ImmutableAndJSONOrdered(t *testing.T) {
	p := NewPoint(Param{Name: "txrange", Value: "50"}, Param{Name: "size", Value: "10"})
	params := p.Params()
	params[0].Value = "999"
	v, _ := p.Get("txrange")
	assert.Equal(t, "50", v)

	q := p.With("size", "20")
	assert.Equal(t, "txrange=50,size=10", p.String())
	assert.Equal(t, "txrange=50,size=20", q.String())

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"txrange","value":"50"},{"name":"size","value":"10"}]`, string(b))

	var back Point
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, p.String(), back.String())
}

func TestParamNames_UnionInFirstSeenOrder(t *testing.T) {
	names := ParamNames([]Point{
		NewPoint(Param{Name: "a", Value: "1"}),
		NewPoint(Param{Name: "b", Value: "2"}, Param{Name: "a", Value: "3"}),
	})
	assert.Equal(t, []string{"a", "b"}, names)
}
