package di

import (
	"reflect"
	"strings"
)

// ExportName is the parameter type that receives the export name a
// constructor, factory or creator method is building for.
type ExportName string

var (
	exportNameType  = reflect.TypeFor[ExportName]()
	reflectTypeType = reflect.TypeFor[reflect.Type]()
	errorType       = reflect.TypeFor[error]()
	anyType         = reflect.TypeFor[any]()
	resolverType    = reflect.TypeFor[Resolver]()
)

// ContractName returns the default export name for t: the package path and
// type name, prefixed with one "*" per pointer level.
//
//	ContractName(reflect.TypeFor[*inventory.Store]()) == "*github.com/acme/inventory.Store"
func ContractName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	var prefix strings.Builder
	for t.Kind() == reflect.Pointer && t.Name() == "" {
		prefix.WriteByte('*')
		t = t.Elem()
	}
	if t.PkgPath() != "" && t.Name() != "" {
		return prefix.String() + t.PkgPath() + "." + t.Name()
	}
	return prefix.String() + t.String()
}

// NameOf returns ContractName for T.
func NameOf[T any]() string {
	return ContractName(reflect.TypeFor[T]())
}

// genericBase splits an instantiated generic type name into its base name and
// type-argument signature: Repository[string] -> ("Repository", "string").
func genericBase(t reflect.Type) (base, args string, ok bool) {
	for t.Kind() == reflect.Pointer && t.Name() == "" {
		t = t.Elem()
	}
	name := t.Name()
	i := strings.IndexByte(name, '[')
	if i <= 0 || !strings.HasSuffix(name, "]") {
		return "", "", false
	}
	return name[:i], name[i+1 : len(name)-1], true
}

func isAny(t reflect.Type) bool {
	return t == nil || t == anyType
}

// matches reports whether a value of type vt satisfies a request for want.
func matches(vt, want reflect.Type) bool {
	if isAny(want) {
		return true
	}
	return vt != nil && vt.AssignableTo(want)
}
