// Package batch runs a best-effort loop over a set of store rows. Items
// are processed strictly in order, one at a time; a failed item is
// recorded and the loop moves on, so a partial run leaves every
// completed write in place and the remainder recoverable by re-running.
package batch

// Result accumulates the outcome of one loop.
type Result struct {
	TotalItems int
	Succeeded  int
	Failed     int
	Errors     []ItemError
}

// ItemError records the identity of a failed item alongside its error.
type ItemError struct {
	Item  string
	Error error
}

// Run executes fn for every item in order. id names the item for error
// reporting. Run never stops early; the caller inspects Result.Failed.
func Run[T any](items []T, id func(item T) string, fn func(item T) error) *Result {
	result := &Result{TotalItems: len(items)}

	for _, item := range items {
		if err := fn(item); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{
				Item:  id(item),
				Error: err,
			})
			continue
		}
		result.Succeeded++
	}

	return result
}
