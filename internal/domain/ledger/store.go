package ledger

import "context"

// RecordStore persists the whole ledger. Load reports found=false when nothing has been saved yet.
type RecordStore interface {
	Load(ctx context.Context) (state State, found bool, err error)
	Save(ctx context.Context, state State) error
	Close() error
}
