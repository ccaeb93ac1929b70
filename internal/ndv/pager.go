package ndv

// DefaultPageLimit caps the follow-up page requests of a single listing.
const DefaultPageLimit = 1000

// StepKind tags the outcome of one page request.
type StepKind int

const (
	StepPage StepKind = iota
	StepDone
	StepFailed
)

// Step is the result of one first/next call: a page of items, the end of
// the listing, or a failure.
type Step[T any] struct {
	Kind  StepKind
	Items []T
	Err   error
}

// stepOf converts a raw transport result. The transport's end-of-data error
// and an empty page both become StepDone; every other error is StepFailed.
func stepOf[T any](items []T, err error) Step[T] {
	switch {
	case err != nil && IsEndOfData(err):
		return Step[T]{Kind: StepDone}
	case err != nil:
		return Step[T]{Kind: StepFailed, Err: err}
	case len(items) == 0:
		return Step[T]{Kind: StepDone}
	default:
		return Step[T]{Kind: StepPage, Items: items}
	}
}

// PageResult summarizes a listing.
type PageResult struct {
	// Items is the number of items handed to the consumer.
	Items int
	// Pages is the number of non-empty pages handed to the consumer.
	Pages int
	// NextCalls is the number of follow-up requests issued.
	NextCalls int
	// Stopped is set when the consumer asked to stop.
	Stopped bool
	// Truncated is set when the page limit was reached. The listing may
	// still have been complete: telling the two apart would take one more
	// request than the limit allows.
	Truncated bool
}

// Paginate calls first once and then next until the listing ends, the
// consumer returns false, or limit follow-up requests have been made
// (limit <= 0 means DefaultPageLimit). Pages are not retained.
func Paginate[T any](first, next func() Step[T], limit int, consume func([]T) bool) (PageResult, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	var res PageResult
	handle := func(s Step[T]) (bool, error) {
		switch s.Kind {
		case StepFailed:
			return false, s.Err
		case StepDone:
			return false, nil
		}
		res.Pages++
		res.Items += len(s.Items)
		if !consume(s.Items) {
			res.Stopped = true
			return false, nil
		}
		return true, nil
	}

	more, err := handle(first())
	if err != nil || !more {
		return res, err
	}

	for res.NextCalls < limit {
		res.NextCalls++
		more, err = handle(next())
		if err != nil || !more {
			return res, err
		}
	}

	res.Truncated = true
	return res, nil
}
