// Dynamic library loader for an optional native acoustic-scorer backend,
// loaded via purego (no cgo). The same dlopen-and-register shape as this
// module's lineage uses for its embedding backend.

package scorer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/denizumutdereli/lvcsr-decoder/internal/graph"
)

var (
	nativeLibPtr  uintptr
	nativeOnce    sync.Once
	nativeLoadErr error

	native_load_model  func(path_model string) uintptr
	native_free_model  func(model uintptr)
	native_score_state func(model uintptr, feature []float32, state_id uint32) float32
)

func initNativeLibrary(path string) error {
	nativeOnce.Do(func() {
		libpath, err := findNativeScorer(path)
		if err != nil {
			nativeLoadErr = err
			return
		}
		ptr, err := purego.Dlopen(libpath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			nativeLoadErr = err
			return
		}
		nativeLibPtr = ptr

		purego.RegisterLibFunc(&native_load_model, nativeLibPtr, "decoder_load_model")
		purego.RegisterLibFunc(&native_free_model, nativeLibPtr, "decoder_free_model")
		purego.RegisterLibFunc(&native_score_state, nativeLibPtr, "decoder_score_state")
	})
	return nativeLoadErr
}

func findNativeScorer(hint string) (string, error) {
	if hint != "" {
		if _, err := os.Stat(hint); err == nil {
			return hint, nil
		}
		return "", fmt.Errorf("native scorer library not found at %s", hint)
	}

	name := "libacoustic_scorer.so"
	switch runtime.GOOS {
	case "darwin":
		name = "libacoustic_scorer.dylib"
	case "windows":
		name = "acoustic_scorer.dll"
	}

	dirs := []string{"/usr/lib", "/usr/local/lib"}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	checked := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		checked = append(checked, p)
	}
	return "", fmt.Errorf("native scorer library %q not found, checked:\n\t- %s", name, strings.Join(checked, "\n\t- "))
}

// NativeScorer scores HMM states with a dlopen'd native acoustic model
// instead of the pure-Go reference implementation. The Signature of each
// graph.State must be convertible to a uint32 native state id via
// StateIDFunc; linguists that can't provide this should use the pure-Go
// scorer instead.
type NativeScorer struct {
	model     uintptr
	StateID   func(graph.Signature) (uint32, bool)
	featureOf func(any) []float32
}

// NewNativeScorer loads the native backend from libPath (or the default
// search paths when empty) and returns a Scorer bound to it. Returns the
// library lookup or load error when the backend is unavailable; callers
// should fall back to a pure-Go Scorer in that case rather than failing
// decode setup.
func NewNativeScorer(libPath string, stateID func(graph.Signature) (uint32, bool), featureOf func(any) []float32) (*NativeScorer, error) {
	if err := initNativeLibrary(libPath); err != nil {
		return nil, err
	}
	model := native_load_model(libPath)
	if model == 0 {
		return nil, fmt.Errorf("native scorer: failed to load model at %q", libPath)
	}
	return &NativeScorer{model: model, StateID: stateID, featureOf: featureOf}, nil
}

func (s *NativeScorer) Close() {
	if s.model != 0 {
		native_free_model(s.model)
		s.model = 0
	}
}

func (s *NativeScorer) Score(ctx context.Context, feature Feature, state graph.State) (float64, error) {
	id, ok := s.StateID(state.Signature())
	if !ok {
		return 0, &ErrScorerFailed{Frame: feature.Index, State: state.Signature(), Cause: fmt.Errorf("no native state id mapping")}
	}
	vec := s.featureOf(feature.Payload)
	return float64(native_score_state(s.model, vec, id)), nil
}

// IsNativeScorerAvailable checks if the native backend can be located
// without loading it, so callers can decide between native and pure-Go
// scorers at configuration time.
func IsNativeScorerAvailable(hint string) bool {
	_, err := findNativeScorer(hint)
	return err == nil
}
