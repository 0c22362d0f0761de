package anyconv

import (
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestParallelConver(t *testing.T) {
	c := anyvec64.CurrentCreator()
	for _, bias := range []bool{false, true} {
		conv := Conv1D{
			FilterCount: 13,
			KernelSize:  8,
			Stride:      3,
			InputDepth:  5,
		}
		conv.InitRand(c, nil, bias)
		testConverEquiv(t, MakeDefaultConver(conv).(*conver),
			MakeParallelConver(conv).(*conver))
	}
}

func testConverEquiv(t *testing.T, c1, c2 *conver) {
	c := c1.conv.Filters.Vector.Creator()
	inWidth := 41
	inSize := inWidth * c1.conv.InputDepth
	outSize := c1.conv.OutputWidth(inWidth) * c1.conv.FilterCount

	batchSize := 9
	inBatch := c.MakeVector(inSize * batchSize)
	anyvec.Rand(inBatch, anyvec.Normal, nil)
	inVar := anydiff.NewVar(inBatch)

	out1 := c1.Apply(inVar, batchSize)
	out2 := c2.Apply(inVar, batchSize)
	if !vecsClose(out1.Output(), out2.Output()) {
		t.Error("mismatching output values")
	}

	upstream := c.MakeVector(outSize * batchSize)
	anyvec.Rand(upstream, anyvec.Normal, nil)

	vars := append([]*anydiff.Var{inVar}, c1.conv.Parameters()...)
	grad1 := anydiff.NewGrad(vars...)
	out1.Propagate(upstream.Copy(), grad1)
	grad2 := anydiff.NewGrad(vars...)
	out2.Propagate(upstream.Copy(), grad2)

	for i, variable := range vars {
		g1 := grad1[variable]
		g2 := grad2[variable]
		if !vecsClose(g1, g2) {
			t.Errorf("gradient for variable %d differs", i)
		}
	}
}

func vecsClose(v1, v2 anyvec.Vector) bool {
	c := v1.Creator()
	diff := v1.Copy()
	diff.Sub(v2)
	maxDiff := anyvec.AbsMax(diff)
	thresh := c.MakeNumeric(1e-6)
	return c.NumOps().Less(maxDiff, thresh)
}

func TestSetConverMaker(t *testing.T) {
	defer SetConverMaker(CurrentConverMaker())
	SetConverMaker(MakeParallelConver)

	conv := &Conv1D{
		FilterCount: 3,
		KernelSize:  4,
		Stride:      2,
		InputDepth:  2,
	}
	conv.InitRand(anyvec64.CurrentCreator(), nil, false)
	if cv, ok := conv.Conver.(*conver); !ok || !cv.parallel {
		t.Error("expected a parallel conver")
	}
}
