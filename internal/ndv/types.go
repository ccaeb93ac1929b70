package ndv

import (
	"fmt"
	"strings"
	"time"
)

// AreaKind is the logical role of a storage area on the server.
type AreaKind int

const (
	KindPrimaryLibrary AreaKind = iota
	KindUserLibrary
	KindInactive
	KindSecurity
	KindDictionary
	KindDDM
)

var areaKindNames = map[AreaKind]string{
	KindPrimaryLibrary: "primary-library",
	KindUserLibrary:    "user-library",
	KindInactive:       "inactive",
	KindSecurity:       "security",
	KindDictionary:     "dictionary",
	KindDDM:            "ddm",
}

// String returns the kebab-case name of the kind.
func (k AreaKind) String() string {
	if name, ok := areaKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseAreaKind is the inverse of AreaKind.String. It also accepts the
// "-area" suffixed spelling (e.g. "user-library-area").
func ParseAreaKind(s string) (AreaKind, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "-area")
	for k, name := range areaKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown storage area kind %q", s)
}

// StorageArea identifies a physical database file on the server. The zero
// coordinates (0/0) denote the server default area, which listing accepts
// but content operations reject.
type StorageArea struct {
	DatabaseID int
	FileNumber int
	Kind       AreaKind
}

// Valid reports whether both coordinates are set.
func (a StorageArea) Valid() bool {
	return a.DatabaseID > 0 && a.FileNumber > 0
}

// IsDefault reports whether a is the server default sentinel.
func (a StorageArea) IsDefault() bool {
	return a.DatabaseID == 0 && a.FileNumber == 0
}

func (a StorageArea) String() string {
	return fmt.Sprintf("%d/%d (%s)", a.DatabaseID, a.FileNumber, a.Kind)
}

// ObjectKind separates source-bearing objects from everything else.
type ObjectKind int

const (
	ObjectSource ObjectKind = iota
	ObjectOther
)

func (k ObjectKind) String() string {
	if k == ObjectSource {
		return "source"
	}
	return "other"
}

// ObjectInfo describes one object as reported by an object listing.
// DatabaseID and FileNumber are the object's own area coordinates; values
// <= 0 mean the server did not report them.
type ObjectInfo struct {
	Name       string
	LongName   string
	Kind       ObjectKind
	Type       ObjectType
	Size       int64
	User       string
	SourceDate time.Time
	DatabaseID int
	FileNumber int
}

// HasArea reports whether the object carries usable area coordinates.
func (o ObjectInfo) HasArea() bool {
	return o.DatabaseID > 0 && o.FileNumber > 0
}

// TypeName returns the display name of the object's type.
func (o ObjectInfo) TypeName() string {
	return o.Type.Name()
}

// Extension returns the file extension of the object's type, without dot.
func (o ObjectInfo) Extension() string {
	return o.Type.Extension()
}

// FileName returns NAME.EXT, or NAME when the type has no extension.
func (o ObjectInfo) FileName() string {
	if ext := o.Extension(); ext != "" {
		return o.Name + "." + ext
	}
	return o.Name
}

// SessionState is a snapshot of the connection owned by a Client.
type SessionState struct {
	ID        string
	Host      string
	Port      int
	User      string
	Library   string
	Connected bool
}
