package ir

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSpecVariants(t *testing.T) {
	tests := []struct {
		kind Kind
		cfg  Bundle
		want Spec
	}{
		{KindValue, Bundle{"value": Number(3)}, ValueSpec{Initial: Number(3)}},
		{KindValue, Bundle{}, ValueSpec{Initial: Null{}}},
		{KindSet, Bundle{"target": Number(1), "source": Number(2)}, SetSpec{Target: 1, Source: 2}},
		{KindAlways, Bundle{"what": Number(4)}, AlwaysSpec{What: 4}},
		{KindConcat, Bundle{"input": Array{Number(1), Number(2)}}, ConcatSpec{Inputs: []NodeID{1, 2}}},
		{KindFunction, Bundle{"what": Number(9)}, FunctionSpec{What: 9}},
		{KindProps, Bundle{"props": Bundle{"width": Number(2), "opacity": Number(1)}},
			PropsSpec{Props: []KeyRef{{Key: "opacity", Node: 1}, {Key: "width", Node: 2}}}},
		{KindCond, Bundle{"cond": Number(1), "if": Number(2)}, CondSpec{Cond: 1, If: 2}},
		{KindCond, Bundle{"cond": Number(1), "if": Number(2), "else": Number(3)}, CondSpec{Cond: 1, If: 2, Else: 3, HasElse: true}},
		{KindOp, Bundle{"op": String("add"), "input": Array{Number(1), Number(2)}}, OpSpec{Op: "add", Inputs: []NodeID{1, 2}}},
		{KindDebug, Bundle{"value": Number(1)}, DebugSpec{What: 1}},
		{KindEvent, Bundle{"mapping": Array{Bundle{"path": Array{String("nativeEvent"), String("x")}, "target": Number(5)}}},
			EventSpec{Mapping: []EventMapping{{Path: []string{"nativeEvent", "x"}, Target: 5}}}},
		{KindClock, Bundle{}, ClockSpec{}},
		{KindClockTest, Bundle{"clock": Number(7)}, ClockTestSpec{Clock: 7}},
		{KindTransform, Bundle{"transform": Array{
			Bundle{"property": String("translateX"), "node": Number(3)},
			Bundle{"property": String("rotate"), "value": String("90deg")},
		}}, TransformSpec{Transforms: []TransformEntry{
			{Property: "translateX", Node: 3, IsNode: true},
			{Property: "rotate", Value: String("90deg")},
		}}},
		{KindBezier, Bundle{"input": Number(1), "mX1": Number(0.42), "mY1": Number(0), "mX2": Number(0.58), "mY2": Number(1)},
			BezierSpec{Input: 1, X1: 0.42, X2: 0.58, Y2: 1}},
		{KindParam, Bundle{}, ParamSpec{}},
		{KindCallFunc, Bundle{"what": Number(5), "args": Array{Number(1)}, "params": Array{Number(2)}},
			CallFuncSpec{What: 5, Args: []NodeID{1}, Params: []NodeID{2}}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := DecodeSpec(tt.kind, tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.kind, got.Kind())
		})
	}
}

func TestDecodeSpecErrors(t *testing.T) {
	tests := []struct {
		name  string
		kind  Kind
		cfg   Bundle
		field string
	}{
		{"missing field", KindSet, Bundle{"target": Number(1)}, "source"},
		{"unknown field", KindFunction, Bundle{"what": Number(1), "extra": Number(2)}, "extra"},
		{"non integral id", KindFunction, Bundle{"what": Number(1.5)}, "what"},
		{"id of wrong type", KindAlways, Bundle{"what": String("1")}, "what"},
		{"bad array element", KindConcat, Bundle{"input": Array{Number(1), Null{}}}, "input[1]"},
		{"unknown op", KindOp, Bundle{"op": String("frobnicate"), "input": Array{Number(1)}}, "op"},
		{"op arity", KindOp, Bundle{"op": String("sqrt"), "input": Array{Number(1), Number(2)}}, "input"},
		{"empty event path", KindEvent, Bundle{"mapping": Array{Bundle{"path": Array{}, "target": Number(1)}}}, "mapping[0].path"},
		{"transform without value", KindTransform, Bundle{"transform": Array{Bundle{"property": String("scale")}}}, "transform[0]"},
		{"transform node and value", KindTransform, Bundle{"transform": Array{
			Bundle{"property": String("scale"), "node": Number(1), "value": Number(2)},
		}}, "transform[0]"},
		{"transform unknown key", KindTransform, Bundle{"transform": Array{Bundle{"property": String("scale"), "to": Number(1)}}}, "transform[0].to"},
		{"bezier missing point", KindBezier, Bundle{"input": Number(1), "mX1": Number(0), "mY1": Number(0), "mX2": Number(1)}, "mY2"},
		{"bezier x out of range", KindBezier, Bundle{"input": Number(1), "mX1": Number(0), "mY1": Number(0), "mX2": Number(-0.5), "mY2": Number(1)}, "mX2"},
		{"callfunc arity", KindCallFunc, Bundle{"what": Number(1), "args": Array{Number(2)}, "params": Array{}}, "args"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSpec(tt.kind, tt.cfg)
			require.Error(t, err)
			var specErr *SpecError
			require.True(t, errors.As(err, &specErr), "want *SpecError, got %T", err)
			assert.Equal(t, tt.field, specErr.Field)
		})
	}
}

func TestDecodeSpecUnknownKind(t *testing.T) {
	_, err := DecodeSpec("spring", Bundle{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestEncodeSpecRoundTrip(t *testing.T) {
	specs := []Spec{
		ValueSpec{Initial: String("x")},
		SetSpec{Target: 1, Source: 2},
		AlwaysSpec{What: 3},
		ConcatSpec{Inputs: []NodeID{1, 2, 3}},
		FunctionSpec{What: 1},
		PropsSpec{Props: []KeyRef{{Key: "a", Node: 1}}},
		StyleSpec{Style: []KeyRef{{Key: "b", Node: 2}}},
		CondSpec{Cond: 1, If: 2, Else: 3, HasElse: true},
		BlockSpec{Inputs: []NodeID{4}},
		OpSpec{Op: "max", Inputs: []NodeID{1, 2}},
		DebugSpec{Message: "m", What: 1},
		EventSpec{Mapping: []EventMapping{{Path: []string{"x"}, Target: 1}}},
		ClockSpec{},
		ClockStartSpec{Clock: 1},
		ClockStopSpec{Clock: 1},
		ClockTestSpec{Clock: 1},
		TransformSpec{Transforms: []TransformEntry{
			{Property: "scale", Node: 2, IsNode: true},
			{Property: "perspective", Value: Number(800)},
		}},
		BezierSpec{Input: 1, X1: 0.25, Y1: 0.1, X2: 0.25, Y2: 1},
		ParamSpec{},
		CallFuncSpec{What: 1, Args: []NodeID{2, 3}, Params: []NodeID{4, 5}},
	}
	require.Len(t, specs, len(Kinds))

	for _, s := range specs {
		t.Run(string(s.Kind()), func(t *testing.T) {
			back, err := DecodeSpec(s.Kind(), EncodeSpec(s))
			require.NoError(t, err)
			assert.Equal(t, s, back)
		})
	}
}

func TestSpecRefsAndWrites(t *testing.T) {
	set := SetSpec{Target: 1, Source: 2}
	assert.Equal(t, []NodeID{2}, set.Refs())
	assert.Equal(t, []NodeID{1}, Writes(set))

	ev := EventSpec{Mapping: []EventMapping{{Path: []string{"a"}, Target: 3}, {Path: []string{"b"}, Target: 4}}}
	assert.Empty(t, ev.Refs())
	assert.Equal(t, []NodeID{3, 4}, Writes(ev))

	assert.Equal(t, []NodeID{1, 2}, CondSpec{Cond: 1, If: 2}.Refs())
	assert.Nil(t, Writes(FunctionSpec{What: 1}))

	call := CallFuncSpec{What: 1, Args: []NodeID{2}, Params: []NodeID{3}}
	assert.Equal(t, []NodeID{1, 2}, call.Refs())
	assert.Equal(t, []NodeID{3}, Writes(call))
	assert.Equal(t, []Kind{KindParam}, WriteKinds(call))
	assert.Equal(t, []Kind{KindValue, KindParam}, WriteKinds(set))

	tr := TransformSpec{Transforms: []TransformEntry{{Property: "a", Node: 4, IsNode: true}, {Property: "b", Value: Number(1)}}}
	assert.Equal(t, []NodeID{4}, tr.Refs())
}

func TestValidateSpec(t *testing.T) {
	tests := []struct {
		name  string
		spec  Spec
		field string
	}{
		{"unary without input", OpSpec{Op: "not"}, "input"},
		{"unknown operator", OpSpec{Op: "lerp", Inputs: []NodeID{1}}, "op"},
		{"duplicate style key", StyleSpec{Style: []KeyRef{{Key: "a", Node: 1}, {Key: "a", Node: 2}}}, "style.a"},
		{"empty event path", EventSpec{Mapping: []EventMapping{{Target: 1}}}, "mapping[0].path"},
		{"unnamed transform", TransformSpec{Transforms: []TransformEntry{{Value: Number(1)}}}, "transform[0].property"},
		{"infinite bezier point", BezierSpec{Y1: math.Inf(1)}, "mY1"},
		{"call arity", CallFuncSpec{What: 1, Params: []NodeID{2}}, "args"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSpec(tt.spec)
			var specErr *SpecError
			require.ErrorAs(t, err, &specErr)
			assert.Equal(t, tt.field, specErr.Field)
			assert.Equal(t, tt.spec.Kind(), specErr.Kind)
		})
	}

	assert.Error(t, ValidateSpec(nil))
	assert.NoError(t, ValidateSpec(OpSpec{Op: "not", Inputs: []NodeID{1}}))
	assert.NoError(t, ValidateSpec(BezierSpec{X1: 1, X2: 0, Y1: -2, Y2: 3}), "y may overshoot")
}

func TestKindCapabilities(t *testing.T) {
	assert.True(t, KindProps.IsSink())
	assert.True(t, KindAlways.IsSink())
	assert.False(t, KindStyle.IsSink())
	assert.True(t, KindValue.BreaksCycles())
	assert.False(t, Kind("spring").IsValid())
	for _, k := range Kinds {
		assert.True(t, k.IsValid(), k)
	}
}
