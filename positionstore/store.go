package positionstore

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/vczyh/mysql-cdc/position"
)

const (
	modeFile = "file"
	modeGTID = "gtid"
)

var ErrInvalidRecord = errors.New("positionstore: invalid record")

// Store persists the position a consumer has processed up to, so that a
// restarted session resumes there.
type Store interface {
	// Load returns the stored position. ok is false when nothing was saved.
	Load(ctx context.Context) (p position.Position, ok bool, err error)

	Save(ctx context.Context, p position.Position) error

	Close() error
}

// record is the stored form of a position.
type record struct {
	Mode      string    `toml:"mode"`
	File      string    `toml:"file"`
	Pos       uint32    `toml:"pos"`
	GTIDSet   string    `toml:"gtid_set"`
	UpdatedAt time.Time `toml:"updated_at"`
}

func newRecord(p position.Position) record {
	r := record{
		Mode:      modeFile,
		File:      p.Name,
		Pos:       p.Pos,
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if p.IsGTID() {
		r.Mode = modeGTID
		r.GTIDSet = p.GTIDSet.String()
	}
	return r
}

func (r record) position() (position.Position, error) {
	p := position.Position{Name: r.File, Pos: r.Pos}
	switch r.Mode {
	case modeFile:
	case modeGTID:
		set, err := position.ParseGTIDSet(r.GTIDSet)
		if err != nil {
			return position.Position{}, errors.Wrap(ErrInvalidRecord, err.Error())
		}
		p.GTIDSet = set
	default:
		return position.Position{}, errors.Wrapf(ErrInvalidRecord, "mode %q", r.Mode)
	}
	return p, nil
}

// equal reports whether saving b after a would change nothing.
func equal(a, b position.Position) bool {
	if a.Compare(b) != 0 || a.IsGTID() != b.IsGTID() {
		return false
	}
	return !a.IsGTID() || a.GTIDSet.Equal(b.GTIDSet)
}
