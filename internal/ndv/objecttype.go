package ndv

import "strings"

// ObjectType is the server's integer code for an object's type.
type ObjectType int

const (
	TypeUnknown           ObjectType = 0
	TypeProgram           ObjectType = 1
	TypeSubprogram        ObjectType = 2
	TypeSubroutine        ObjectType = 3
	TypeCopycode          ObjectType = 4
	TypeMap               ObjectType = 5
	TypeGlobalDataArea    ObjectType = 6
	TypeLocalDataArea     ObjectType = 7
	TypeParameterDataArea ObjectType = 8
	TypeDDM               ObjectType = 9
	TypeHelproutine       ObjectType = 10
	TypeText              ObjectType = 11
	TypeClass             ObjectType = 12
	TypeFunction          ObjectType = 13
	TypeAdapter           ObjectType = 14
	TypeDialog            ObjectType = 15
)

type typeEntry struct {
	name string
	ext  string
}

var typeTable = map[ObjectType]typeEntry{
	TypeProgram:           {"Program", "NSP"},
	TypeSubprogram:        {"Subprogram", "NSN"},
	TypeSubroutine:        {"Subroutine", "NSS"},
	TypeCopycode:          {"Copycode", "NSC"},
	TypeMap:               {"Map", "NSM"},
	TypeGlobalDataArea:    {"Global Data Area", "NSG"},
	TypeLocalDataArea:     {"Local Data Area", "NSL"},
	TypeParameterDataArea: {"Parameter Data Area", "NSA"},
	TypeDDM:               {"DDM", "NSD"},
	TypeHelproutine:       {"Helproutine", "NSH"},
	TypeText:              {"Text", "NST"},
	TypeClass:             {"Class", "NS4"},
	TypeFunction:          {"Function", "NS7"},
	TypeAdapter:           {"Adapter", "NS8"},
	TypeDialog:            {"Dialog", "NS3"},
}

var extensionTable = func() map[string]ObjectType {
	m := make(map[string]ObjectType, len(typeTable))
	for t, e := range typeTable {
		m[e.ext] = t
	}
	return m
}()

// Name returns the display name, or "Unknown".
func (t ObjectType) Name() string {
	if e, ok := typeTable[t]; ok {
		return e.name
	}
	return "Unknown"
}

// Extension returns the file extension without dot, or "" when unknown.
func (t ObjectType) Extension() string {
	return typeTable[t].ext
}

func (t ObjectType) String() string {
	return t.Name()
}

// TypeFromExtension maps a file extension (with or without leading dot,
// any case) to its object type. Unknown extensions yield TypeUnknown.
func TypeFromExtension(ext string) ObjectType {
	ext = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	return extensionTable[ext]
}

// ObjectTypes returns every known type code.
func ObjectTypes() []ObjectType {
	types := make([]ObjectType, 0, len(typeTable))
	for t := TypeProgram; t <= TypeDialog; t++ {
		types = append(types, t)
	}
	return types
}
