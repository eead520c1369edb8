package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/compose"
)

var (
	// ErrNotFound reports a missing definition or query file.
	ErrNotFound = errors.New("file not found")
	// ErrUnreadable reports a definition or query file that exists but
	// could not be read (permissions, a directory in place of a file).
	ErrUnreadable = errors.New("file not readable")
	// ErrUnsupportedFormat reports a definition file extension that is
	// neither YAML nor CUE.
	ErrUnsupportedFormat = errors.New("unsupported definition format")
	// ErrParse reports a definition that could not be decoded.
	ErrParse = errors.New("malformed definition")
	// ErrInvalid reports a decoded definition with unusable fields.
	ErrInvalid = errors.New("invalid definition")
)

// LoadError is returned by every loader in this package.
type LoadError struct {
	Path    string
	Line    int // 1-based; 0 when unknown
	Column  int
	Kind    error // ErrNotFound, ErrUnreadable, ErrUnsupportedFormat, ErrParse or ErrInvalid
	Message string
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Kind
}

func readErrorKind(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return ErrUnreadable
}

// Load reads a definition file, choosing the decoder by extension:
// .yaml/.yml for YAML and .cue for CUE.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Kind: readErrorKind(err), Message: fmt.Sprintf("reading definition: %v", err)}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(path, data)
	case ".cue":
		return ParseCUE(path, data)
	default:
		return nil, &LoadError{
			Path:    path,
			Kind:    ErrUnsupportedFormat,
			Message: fmt.Sprintf("unsupported extension %q (want .yaml, .yml or .cue)", filepath.Ext(path)),
		}
	}
}

// ParseYAML decodes a YAML definition. Unknown fields are rejected so
// typos such as "fact_column:" fail loudly.
func ParseYAML(path string, data []byte) (*Definition, error) {
	var def Definition
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&def); err != nil {
		return nil, &LoadError{Path: path, Kind: ErrParse, Message: fmt.Sprintf("failed to parse YAML: %v", err)}
	}
	return &def, nil
}

// ParseCUE evaluates a CUE definition and decodes its concrete value.
// Definitions (#name) and hidden fields may be used for shared mapping
// values; they are not part of the decoded result.
func ParseCUE(path string, data []byte) (*Definition, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, cueLoadError(path, "compiling CUE", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(path, "validating CUE", err)
	}

	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, cueLoadError(path, "exporting CUE", err)
	}

	var def Definition
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&def); err != nil {
		return nil, &LoadError{Path: path, Kind: ErrParse, Message: fmt.Sprintf("decoding CUE value: %v", err)}
	}
	return &def, nil
}

// cueLoadError converts a CUE error to a LoadError with position info.
func cueLoadError(path, action string, err error) *LoadError {
	le := &LoadError{
		Path:    path,
		Kind:    ErrParse,
		Message: fmt.Sprintf("%s: %s", action, cueerrors.Details(err, nil)),
	}
	for _, pos := range cueerrors.Positions(err) {
		if pos.IsValid() {
			le.Line = pos.Line()
			le.Column = pos.Column()
			break
		}
	}
	return le
}

// LoadInput loads a definition and resolves it into composer input, with
// query files relative to the definition's directory.
func LoadInput(path string) (compose.Input, error) {
	def, err := Load(path)
	if err != nil {
		return compose.Input{}, err
	}
	return def.Input(filepath.Dir(path))
}
