package fixture

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/ndvlink/internal/ndv"
)

// End-of-listing styles a fixture can emulate.
const (
	EndWithError = "error"
	EndWithEmpty = "empty"
)

// Document is the YAML description of an emulated development server.
type Document struct {
	// Host, when set, is the only host name the fixture accepts.
	Host string `yaml:"host,omitempty"`
	// Users maps user ids to passwords. An empty map accepts anyone.
	Users map[string]string `yaml:"users,omitempty"`
	// Codepages, when set, lists the client codepages the server accepts.
	Codepages []string `yaml:"codepages,omitempty"`
	// PageSize is the number of entries per listing page (default: 20).
	PageSize int `yaml:"page_size,omitempty"`
	// EndOfData selects how listings end: "error" (default) or "empty".
	EndOfData string `yaml:"end_of_data,omitempty"`
	// RefuseConnects makes the first N connects fail as refused.
	RefuseConnects int `yaml:"refuse_connects,omitempty"`

	Areas     []Area     `yaml:"areas"`
	Libraries []*Library `yaml:"libraries"`
}

// Area is an advertised storage area.
type Area struct {
	DBID int    `yaml:"dbid"`
	FNR  int    `yaml:"fnr"`
	Kind string `yaml:"kind"`
}

// Library groups objects. DBID/FNR is the area its objects live in unless
// an object names its own.
type Library struct {
	Name    string    `yaml:"name"`
	DBID    int       `yaml:"dbid,omitempty"`
	FNR     int       `yaml:"fnr,omitempty"`
	Objects []*Object `yaml:"objects,omitempty"`
}

// Object is one stored object. Type is the file extension (NSP, NSN, ...).
type Object struct {
	Name     string    `yaml:"name"`
	LongName string    `yaml:"long_name,omitempty"`
	Type     string    `yaml:"type"`
	User     string    `yaml:"user,omitempty"`
	Date     time.Time `yaml:"date,omitempty"`
	DBID     int       `yaml:"dbid,omitempty"`
	FNR      int       `yaml:"fnr,omitempty"`
	// HideArea makes listings report the object without area coordinates.
	HideArea bool   `yaml:"hide_area,omitempty"`
	Source   string `yaml:"source,omitempty"`
}

// Parse decodes and checks a fixture document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Marshal encodes the document back to YAML.
func (d *Document) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

func (d *Document) validate() error {
	switch d.EndOfData {
	case "", EndWithError, EndWithEmpty:
	default:
		return fmt.Errorf("fixture: end_of_data must be %q or %q, got %q", EndWithError, EndWithEmpty, d.EndOfData)
	}
	if d.PageSize < 0 {
		return fmt.Errorf("fixture: page_size must be non-negative, got %d", d.PageSize)
	}
	for i, a := range d.Areas {
		if _, err := ndv.ParseAreaKind(a.Kind); err != nil {
			return fmt.Errorf("fixture: areas[%d]: %w", i, err)
		}
	}
	seen := make(map[string]bool)
	for i, lib := range d.Libraries {
		name := strings.ToUpper(lib.Name)
		if name == "" {
			return fmt.Errorf("fixture: libraries[%d]: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("fixture: duplicate library %q", name)
		}
		seen[name] = true
		for j, obj := range lib.Objects {
			if obj.Name == "" {
				return fmt.Errorf("fixture: library %s objects[%d]: name is required", name, j)
			}
		}
	}
	return nil
}

func (d *Document) pageSize() int {
	if d.PageSize <= 0 {
		return 20
	}
	return d.PageSize
}

func (d *Document) library(name string) *Library {
	for _, lib := range d.Libraries {
		if strings.EqualFold(lib.Name, name) {
			return lib
		}
	}
	return nil
}

func (d *Document) storageAreas() []ndv.StorageArea {
	areas := make([]ndv.StorageArea, 0, len(d.Areas))
	for _, a := range d.Areas {
		kind, _ := ndv.ParseAreaKind(a.Kind)
		areas = append(areas, ndv.StorageArea{DatabaseID: a.DBID, FileNumber: a.FNR, Kind: kind})
	}
	return areas
}

func (d *Document) advertises(dbid, fnr int) bool {
	for _, a := range d.Areas {
		if a.DBID == dbid && a.FNR == fnr {
			return true
		}
	}
	return false
}

// object finds name of the given type; TypeUnknown matches any type.
func (l *Library) object(name string, typ ndv.ObjectType) *Object {
	for _, obj := range l.Objects {
		if !strings.EqualFold(obj.Name, name) {
			continue
		}
		if typ == ndv.TypeUnknown || obj.objectType() == typ {
			return obj
		}
	}
	return nil
}

func (o *Object) objectType() ndv.ObjectType {
	return ndv.TypeFromExtension(o.Type)
}

// home returns the area the object physically lives in.
func (o *Object) home(lib *Library) (int, int) {
	if o.DBID > 0 && o.FNR > 0 {
		return o.DBID, o.FNR
	}
	return lib.DBID, lib.FNR
}

func (o *Object) info(lib *Library) ndv.ObjectInfo {
	typ := o.objectType()
	kind := ndv.ObjectSource
	if typ == ndv.TypeUnknown {
		kind = ndv.ObjectOther
	}
	info := ndv.ObjectInfo{
		Name:       o.Name,
		LongName:   o.LongName,
		Kind:       kind,
		Type:       typ,
		Size:       int64(len(o.Source)),
		User:       o.User,
		SourceDate: o.Date,
	}
	if !o.HideArea {
		info.DatabaseID, info.FileNumber = o.home(lib)
	}
	return info
}
