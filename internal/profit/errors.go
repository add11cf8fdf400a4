package profit

import "fmt"

// InvalidInputError reports a rejected user input or a misconfigured weight set.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
