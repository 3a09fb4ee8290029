package matrix

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Transform is an element-wise affine map x ↦ Scale·x + Offset, the datum
// produced by interactive widgets.
type Transform struct {
	Scale  float64 `json:"scale" cty:"scale"`
	Offset float64 `json:"offset" cty:"offset"`
}

// Identity leaves every element unchanged.
var Identity = Transform{Scale: 1}

// Apply returns the transformed matrix.
func (t Transform) Apply(m *DenseMatrix) *DenseMatrix {
	return m.Map(func(v float64) float64 { return t.Scale*v + t.Offset })
}

// Then composes t followed by u.
func (t Transform) Then(u Transform) Transform {
	return Transform{Scale: u.Scale * t.Scale, Offset: u.Scale*t.Offset + u.Offset}
}

func (t Transform) String() string {
	return fmt.Sprintf("x*%g%+g", t.Scale, t.Offset)
}

// TransformFromCty reads a transform from an object value. Missing
// attributes keep the identity values.
func TransformFromCty(v cty.Value) (Transform, error) {
	t := Identity
	if v.IsNull() {
		return t, nil
	}
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return t, fmt.Errorf("transform must be an object, got %s", v.Type().FriendlyName())
	}
	for name, dst := range map[string]*float64{"scale": &t.Scale, "offset": &t.Offset} {
		attr, ok := lookup(v, name)
		if !ok {
			continue
		}
		if err := gocty.FromCtyValue(attr, dst); err != nil {
			return t, fmt.Errorf("transform %s: %w", name, err)
		}
	}
	return t, nil
}

func lookup(v cty.Value, name string) (cty.Value, bool) {
	if v.Type().IsObjectType() {
		if !v.Type().HasAttribute(name) {
			return cty.NilVal, false
		}
		return v.GetAttr(name), true
	}
	key := cty.StringVal(name)
	if v.HasIndex(key).True() {
		return v.Index(key), true
	}
	return cty.NilVal, false
}
