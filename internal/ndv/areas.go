package ndv

import (
	"slices"

	"github.com/Iron-Ham/ndvlink/internal/errors"
	"github.com/Iron-Ham/ndvlink/internal/logging"
)

// AreaResolver chooses the storage area for listing and content calls. Both
// the advertised area list and the connection-wide choice are computed at
// most once; a new connection gets a new resolver. It is not safe for
// concurrent use; Client serializes access to it.
type AreaResolver struct {
	fetch  func() ([]StorageArea, error)
	logger *logging.Logger

	areas       []StorageArea
	areasLoaded bool

	global       StorageArea
	globalFound  bool
	globalLoaded bool
}

// NewAreaResolver creates a resolver that obtains the area list from fetch.
func NewAreaResolver(fetch func() ([]StorageArea, error), logger *logging.Logger) *AreaResolver {
	return &AreaResolver{
		fetch:  fetch,
		logger: logging.OrNop(logger),
	}
}

// Areas returns the areas advertised by the server. A failed lookup is
// logged and remembered as "no areas" so it is not retried.
func (r *AreaResolver) Areas() []StorageArea {
	if !r.areasLoaded {
		areas, err := r.fetch()
		if err != nil {
			r.logger.Warn("storage area lookup failed", "error", err.Error())
			areas = nil
		} else if len(areas) == 0 {
			r.logger.Warn("server advertised no storage areas")
		} else {
			r.logger.Debug("storage areas loaded", "count", len(areas))
		}
		r.areas = areas
		r.areasLoaded = true
	}
	return slices.Clone(r.areas)
}

// Global returns the connection-wide area, first match wins: a valid
// user-library area, then any valid area, then the first area listed. It
// reports false only when the server advertised no areas at all.
func (r *AreaResolver) Global() (StorageArea, bool) {
	if r.globalLoaded {
		return r.global, r.globalFound
	}

	areas := r.Areas()
	r.global, r.globalFound = pickGlobal(areas)
	r.globalLoaded = true

	switch {
	case !r.globalFound:
		r.logger.Warn("no storage area available")
	case !r.global.Valid():
		r.logger.Warn("no valid storage area, using server default", "area", r.global.String())
	default:
		r.logger.Debug("global storage area selected", "area", r.global.String())
	}
	return r.global, r.globalFound
}

func pickGlobal(areas []StorageArea) (StorageArea, bool) {
	if len(areas) == 0 {
		return StorageArea{}, false
	}
	for _, a := range areas {
		if a.Kind == KindUserLibrary && a.Valid() {
			return a, true
		}
	}
	for _, a := range areas {
		if a.Valid() {
			return a, true
		}
	}
	return areas[0], true
}

// ForObject returns the area a read or write of obj must target. Objects
// that carry their own coordinates are addressed exactly there; the kind is
// taken from the matching advertised area, or assumed to be user-library.
// Objects without coordinates fall back to Global.
func (r *AreaResolver) ForObject(obj ObjectInfo) (StorageArea, error) {
	log := r.logger.With("object", obj.Name)

	if obj.HasArea() {
		area := StorageArea{DatabaseID: obj.DatabaseID, FileNumber: obj.FileNumber, Kind: KindUserLibrary}
		idx := slices.IndexFunc(r.Areas(), func(a StorageArea) bool {
			return a.DatabaseID == obj.DatabaseID && a.FileNumber == obj.FileNumber
		})
		if idx >= 0 {
			area.Kind = r.areas[idx].Kind
		} else {
			// Unconfirmed guess; an object in e.g. the dictionary area would be mislabeled.
			log.Debug("object area not advertised, assuming user-library", "area", area.String())
		}
		return area, nil
	}

	area, ok := r.Global()
	if !ok {
		return StorageArea{}, errors.NewResolutionError("object has no area coordinates and the server advertised no storage areas", nil).
			WithObject(obj.Name)
	}
	if area.IsDefault() {
		log.Warn("content operation will target the server default area", "area", area.String())
	} else {
		log.Debug("object has no area coordinates, using global area", "area", area.String())
	}
	return area, nil
}
