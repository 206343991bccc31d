package validator

// Validator validates annotated structs.
type Validator interface {
	// Validate checks the struct's validation tags and returns an error
	// describing the failing fields, or nil.
	Validate(data any) error
}
