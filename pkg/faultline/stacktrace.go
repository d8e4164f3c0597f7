// stacktrace.go normalizes raw captured frames into backend-safe frames.

package faultline

import (
	"errors"
	"path"
	"regexp"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

// StackFrame is one stack trace entry. Zero-valued File, LineNumber, and
// ColumnNumber mean the position is unknown.
type StackFrame struct {
	File         string `json:"fileName"`
	MethodName   string `json:"methodName"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
}

// Symbolicator resolves minified or bundled positions back to original
// source positions. Implementations are best-effort: whatever they return
// is used as-is, and a returned error keeps the raw frames instead of
// failing the pipeline.
type Symbolicator interface {
	Symbolicate(frames []StackFrame) ([]StackFrame, error)
}

// FrameProvider lets error types carry the frames captured at the fault
// site. CaptureError prefers these over the call-site stack.
type FrameProvider interface {
	StackFrames() []StackFrame
}

// sourceMapPrefix replaces on-device bundle locations so the backend can
// apply uploaded source maps.
const sourceMapPrefix = "file://reactnative.local"

var (
	// Frames originating from the framework runtime rather than app code.
	noiseFramePattern = regexp.MustCompile(`(?i)\[?native code\]?|/Libraries/|node_modules/react-native/`)

	// On-device bundle locations the backend cannot map sources for.
	devicePathPattern = regexp.MustCompile(`^(?:/(?:data|var|private)/|.*\.(?:app|apk)/|.*CodePush/)`)

	// Trailing debugger artifact appended to method names on device.
	addressSuffixPattern = regexp.MustCompile(`\(address at .*\)$`)
)

// stackNormalizer converts raw frames into the form reports carry. Given
// the same frames and mode the output is identical across runs.
type stackNormalizer struct {
	developmentMode bool
	symbolicator    Symbolicator
	logger          zerolog.Logger
}

// Normalize cleans a raw frame list. In development mode frames pass
// through the symbolicator; in production mode runtime-noise frames are
// dropped, device paths are rewritten under the source-map prefix, and the
// address suffix is stripped from method names.
func (n *stackNormalizer) Normalize(frames []StackFrame) []StackFrame {
	if n.developmentMode {
		if n.symbolicator == nil {
			return frames
		}
		resolved, err := n.symbolicator.Symbolicate(frames)
		if err != nil {
			n.logger.Warn().Err(err).Msg("symbolication failed, keeping raw frames")
			return frames
		}
		return resolved
	}

	out := make([]StackFrame, 0, len(frames))
	for _, f := range frames {
		if noiseFramePattern.MatchString(f.File) {
			continue
		}
		f.File = cleanFilePath(f.File)
		f.MethodName = cleanMethodName(f.MethodName)
		out = append(out, f)
	}
	return out
}

// cleanFilePath rewrites recognizable on-device paths to the source-map
// prefix joined with the trailing filename component. Anything else passes
// through unchanged.
func cleanFilePath(file string) string {
	if file == "" || !devicePathPattern.MatchString(file) {
		return file
	}
	return sourceMapPrefix + "/" + path.Base(file)
}

// cleanMethodName strips the "(address at ...)" debug suffix and trailing
// whitespace.
func cleanMethodName(method string) string {
	return strings.TrimRight(addressSuffixPattern.ReplaceAllString(method, ""), " \t")
}

// captureFrames records the current goroutine's stack, skipping the given
// number of frames above the caller.
func captureFrames(skip int) []StackFrame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	var out []StackFrame
	iter := runtime.CallersFrames(pcs[:n])
	for {
		fr, more := iter.Next()
		out = append(out, StackFrame{
			File:       fr.File,
			MethodName: fr.Function,
			LineNumber: fr.Line,
		})
		if !more {
			break
		}
	}
	return out
}

// framesFor returns the frames an error carries, falling back to the
// current stack when the error has none.
func framesFor(err error, skip int) []StackFrame {
	var provider FrameProvider
	if errors.As(err, &provider) {
		return provider.StackFrames()
	}
	return captureFrames(skip + 1)
}
