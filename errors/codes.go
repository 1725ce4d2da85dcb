package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Category groups error codes by how callers should react to them.
type Category int

const (
	// CategoryArgument errors are reported at the call that caused them;
	// the container state is unaffected.
	CategoryArgument Category = iota + 1
	// CategoryComposition errors come from conflicting declarations. They are
	// fatal: the container's state must not be relied upon afterwards.
	CategoryComposition
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryArgument:
		return "argument"
	case CategoryComposition:
		return "composition"
	default:
		return "unknown"
	}
}

// Argument errors
const (
	// ErrCodeInvalidArgument indicates a nil or empty required argument.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeIneligibleExport indicates a value or type that cannot be exported.
	ErrCodeIneligibleExport ErrorCode = "INELIGIBLE_EXPORT"
	// ErrCodeDisposed indicates an operation on a disposed container.
	ErrCodeDisposed ErrorCode = "DISPOSED"
	// ErrCodeNotFound indicates a required export that resolved to nothing.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidConfig indicates configuration that failed validation.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
)

// Composition errors
const (
	// ErrCodeDuplicatePrimary indicates more than one primary constructor.
	ErrCodeDuplicatePrimary ErrorCode = "DUPLICATE_PRIMARY_CONSTRUCTOR"
	// ErrCodeDuplicateCreatorMethod indicates more than one compatible creator method.
	ErrCodeDuplicateCreatorMethod ErrorCode = "DUPLICATE_CREATOR_METHOD"
	// ErrCodeSharingConflict indicates contradicting shared/private declarations.
	ErrCodeSharingConflict ErrorCode = "SHARING_CONFLICT"
	// ErrCodeMissingWriteAccessor indicates an import declared on a field that cannot be set.
	ErrCodeMissingWriteAccessor ErrorCode = "MISSING_WRITE_ACCESSOR"
	// ErrCodeConstructionFailed indicates a constructor, factory or creator returned an error.
	ErrCodeConstructionFailed ErrorCode = "CONSTRUCTION_FAILED"
)

var categories = map[ErrorCode]Category{
	ErrCodeInvalidArgument:        CategoryArgument,
	ErrCodeIneligibleExport:       CategoryArgument,
	ErrCodeDisposed:               CategoryArgument,
	ErrCodeNotFound:               CategoryArgument,
	ErrCodeInvalidConfig:          CategoryArgument,
	ErrCodeDuplicatePrimary:       CategoryComposition,
	ErrCodeDuplicateCreatorMethod: CategoryComposition,
	ErrCodeSharingConflict:        CategoryComposition,
	ErrCodeMissingWriteAccessor:   CategoryComposition,
	ErrCodeConstructionFailed:     CategoryComposition,
}

// CategoryOf returns the category for a code.
func CategoryOf(code ErrorCode) Category {
	if c, ok := categories[code]; ok {
		return c
	}
	return CategoryComposition
}
