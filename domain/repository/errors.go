package repository

// 常见错误
var (
	ErrEntityNotFound   = &RepositoryError{Code: "ENTITY_NOT_FOUND", Message: "entity not found"}
	ErrMultipleEntities = &RepositoryError{Code: "MULTIPLE_ENTITIES", Message: "more than one entity matches the id"}
)

// RepositoryError 仓储错误
type RepositoryError struct {
	Code     string
	Message  string
	EntityID any
	Cause    error
}

func (e *RepositoryError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RepositoryError) Unwrap() error {
	return e.Cause
}
