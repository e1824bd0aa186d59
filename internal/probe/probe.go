package probe

import (
	"context"
	"iter"

	"github.com/hamed0406/scholarwatch/internal/domain"
)

// Index is an external publication search service. Search returns a lazy
// sequence: records are fetched as the caller draws them, and a non-nil error
// may arrive at submission or at any later draw. Breaking out of the range
// loop stops further fetching.
type Index interface {
	Search(ctx context.Context, query string) iter.Seq2[domain.Publication, error]
}

// Query scopes a search to one publisher domain.
func Query(site domain.Site) string {
	return "site:" + site.Domain
}

type Kind int

const (
	Absent Kind = iota
	Found
	SearchError
)

func (k Kind) String() string {
	switch k {
	case Found:
		return "found"
	case SearchError:
		return "search_error"
	default:
		return "absent"
	}
}

// Outcome keeps "confirmed absent" and "could not determine" apart. Callers
// that only need the boolean signal use Verdict, which folds SearchError into
// absence.
type Outcome struct {
	Kind    Kind
	Records []domain.Publication
	Err     error
}

func (o Outcome) Verdict() domain.Verdict {
	if o.Kind != Found {
		return domain.Verdict{}
	}
	return domain.NewVerdict(o.Records)
}
