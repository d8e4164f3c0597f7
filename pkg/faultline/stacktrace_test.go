package faultline

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func prodNormalizer() *stackNormalizer {
	return &stackNormalizer{logger: zerolog.Nop()}
}

func TestNormalize_DeviceFrame(t *testing.T) {
	n := prodNormalizer()

	got := n.Normalize([]StackFrame{{
		File:         "/data/app/MyApp.app/main.jsbundle",
		MethodName:   "foo(address at 12:3)",
		LineNumber:   5,
		ColumnNumber: 3,
	}})

	want := []StackFrame{{
		File:         "file://reactnative.local/main.jsbundle",
		MethodName:   "foo",
		LineNumber:   5,
		ColumnNumber: 3,
	}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize = %+v, want %+v", got, want)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := prodNormalizer()

	clean := []StackFrame{
		{File: "file://reactnative.local/main.jsbundle", MethodName: "foo", LineNumber: 5},
		{File: "src/checkout.js", MethodName: "pay", LineNumber: 12, ColumnNumber: 7},
	}

	got := n.Normalize(clean)
	if !reflect.DeepEqual(got, clean) {
		t.Errorf("normalizing normalized frames changed them: %+v", got)
	}
}

func TestNormalize_DropsNoiseFrames(t *testing.T) {
	n := prodNormalizer()

	got := n.Normalize([]StackFrame{
		{File: "[native code]", MethodName: "apply"},
		{File: "native code", MethodName: "call"},
		{File: "/app/node_modules/react-native/Libraries/Core/setUpErrorHandling.js", MethodName: "handler"},
		{File: "src/app.js", MethodName: "main", LineNumber: 1},
	})

	if len(got) != 1 || got[0].MethodName != "main" {
		t.Errorf("noise frames should be dropped, got %+v", got)
	}
}

func TestNormalize_NonDevicePathPassesThrough(t *testing.T) {
	n := prodNormalizer()

	got := n.Normalize([]StackFrame{{File: "http://localhost:8081/index.bundle", MethodName: "run"}})

	if got[0].File != "http://localhost:8081/index.bundle" {
		t.Errorf("File = %q, want unchanged", got[0].File)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	n := prodNormalizer()
	raw := []StackFrame{
		{File: "/var/containers/Bundle/App.app/main.jsbundle", MethodName: "boot(address at 1:1)"},
		{File: "src/app.js", MethodName: "main "},
	}

	first := n.Normalize(raw)
	second := n.Normalize(raw)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("normalization not deterministic: %+v vs %+v", first, second)
	}
	if first[1].MethodName != "main" {
		t.Errorf("trailing whitespace should be trimmed, got %q", first[1].MethodName)
	}
}

type stubSymbolicator struct {
	out []StackFrame
	err error
}

func (s *stubSymbolicator) Symbolicate(frames []StackFrame) ([]StackFrame, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

func TestNormalize_DevelopmentMode_UsesSymbolicator(t *testing.T) {
	resolved := []StackFrame{{File: "src/app.ts", MethodName: "main", LineNumber: 10}}
	n := &stackNormalizer{
		developmentMode: true,
		symbolicator:    &stubSymbolicator{out: resolved},
		logger:          zerolog.Nop(),
	}

	got := n.Normalize([]StackFrame{{File: "/data/app/X.app/bundle", MethodName: "a(address at 0:0)"}})

	// Whatever the symbolicator returns is propagated; production cleaning
	// does not apply in development mode.
	if !reflect.DeepEqual(got, resolved) {
		t.Errorf("Normalize = %+v, want %+v", got, resolved)
	}
}

func TestNormalize_DevelopmentMode_SymbolicationFailureKeepsRawFrames(t *testing.T) {
	raw := []StackFrame{{File: "bundle.js", MethodName: "minified"}}
	n := &stackNormalizer{
		developmentMode: true,
		symbolicator:    &stubSymbolicator{err: errors.New("source map unavailable")},
		logger:          zerolog.Nop(),
	}

	got := n.Normalize(raw)
	if !reflect.DeepEqual(got, raw) {
		t.Errorf("Normalize = %+v, want raw frames on symbolication failure", got)
	}
}

func TestCaptureFrames_RecordsCurrentStack(t *testing.T) {
	frames := captureFrames(0)

	if len(frames) == 0 {
		t.Fatal("captureFrames returned no frames")
	}
	found := false
	for _, f := range frames {
		if f.LineNumber > 0 && f.MethodName != "" {
			found = true
		}
	}
	if !found {
		t.Errorf("no usable frames captured: %+v", frames)
	}
}

type framedError struct {
	msg    string
	frames []StackFrame
}

func (e *framedError) Error() string             { return e.msg }
func (e *framedError) StackFrames() []StackFrame { return e.frames }

func TestFramesFor_PrefersFrameProvider(t *testing.T) {
	want := []StackFrame{{File: "a.go", MethodName: "A", LineNumber: 1}}
	err := &framedError{msg: "boom", frames: want}

	got := framesFor(err, 0)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("framesFor = %+v, want provider frames", got)
	}
}
