package qapi

// Executor runs one command and decodes its return value into result.
type Executor interface {
	Execute(cmd Command, result any) error
}

// Execute runs cmd on e and returns the decoded result.
func Execute[R any](e Executor, cmd Command) (R, error) {
	var result R
	if err := e.Execute(cmd, &result); err != nil {
		return result, err
	}
	return result, nil
}
