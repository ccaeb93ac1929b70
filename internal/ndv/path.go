package ndv

import (
	"strings"

	"github.com/Iron-Ham/ndvlink/internal/errors"
)

// RefKind tells whether a Reference names a library or an object.
type RefKind int

const (
	RefLibrary RefKind = iota
	RefObject
)

func (k RefKind) String() string {
	if k == RefObject {
		return "object"
	}
	return "library"
}

// Reference is a parsed LIBRARY[/NAME[.EXT]] path. For RefObject, Object
// carries the name and the type derived from the extension but no area
// coordinates.
type Reference struct {
	Kind      RefKind
	Library   string
	Object    ObjectInfo
	Extension string
}

// String renders the reference back into path form.
func (r Reference) String() string {
	if r.Kind == RefLibrary {
		return r.Library
	}
	if r.Extension != "" {
		return r.Library + "/" + r.Object.Name + "." + r.Extension
	}
	return r.Library + "/" + r.Object.Name
}

// ParsePath parses LIBRARY, LIBRARY/, LIBRARY/NAME and LIBRARY/NAME.EXT.
// The library is upper-cased; the extension is split off at the last dot.
func ParsePath(raw string) (Reference, error) {
	path := strings.TrimSpace(raw)

	library, rest, hasSlash := strings.Cut(path, "/")
	library = strings.ToUpper(strings.TrimSpace(library))
	if library == "" {
		return Reference{}, invalidPath(raw, "library name is empty")
	}

	rest = strings.TrimSpace(rest)
	if !hasSlash || rest == "" {
		return Reference{Kind: RefLibrary, Library: library}, nil
	}
	if strings.Contains(rest, "/") {
		return Reference{}, invalidPath(raw, "object name must not contain '/'")
	}

	name, ext := rest, ""
	if i := strings.LastIndex(rest, "."); i >= 0 {
		name, ext = rest[:i], rest[i+1:]
	}
	if name == "" {
		return Reference{}, invalidPath(raw, "object name is empty")
	}

	return Reference{
		Kind:      RefObject,
		Library:   library,
		Extension: ext,
		Object: ObjectInfo{
			Name: name,
			Kind: ObjectSource,
			Type: TypeFromExtension(ext),
		},
	}, nil
}

// WithType returns r with its object type set to t unless t is unknown,
// so a type already known to the caller takes precedence over the extension.
func (r Reference) WithType(t ObjectType) Reference {
	if t != TypeUnknown {
		r.Object.Type = t
	}
	return r
}

func invalidPath(raw, msg string) error {
	return errors.NewValidationError(msg).WithField("path").WithValue(raw).WithCause(errors.ErrInvalidPath)
}
