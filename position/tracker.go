package position

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vczyh/mysql-cdc/myerrors"
)

type RegressionPolicy uint8

const (
	// RegressionIgnore logs a warning and keeps the current position.
	// Reconnects redeliver the last transaction boundary, so this is the
	// default.
	RegressionIgnore RegressionPolicy = iota
	// RegressionFail returns a regression error from Advance.
	RegressionFail
)

func ParseRegressionPolicy(s string) (RegressionPolicy, error) {
	switch s {
	case "", "ignore":
		return RegressionIgnore, nil
	case "fail":
		return RegressionFail, nil
	default:
		return RegressionIgnore, fmt.Errorf("unknown regression policy: %s", s)
	}
}

func (p RegressionPolicy) String() string {
	if p == RegressionFail {
		return "fail"
	}
	return "ignore"
}

// Tracker holds the last position a consumer accepted. It is safe for
// concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	pos    Position
	policy RegressionPolicy
	logger *zap.Logger
}

func NewTracker(start Position, policy RegressionPolicy, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		pos:    start.Clone(),
		policy: policy,
		logger: logger,
	}
}

// Advance moves the tracker to p.
//
// By file, p must be strictly after the current position. By GTID, p.GTIDSet
// holds the transactions the boundary committed; they must not all be
// executed already, and are merged into the current set. A boundary
// without GTIDs, as with anonymous transactions, is ordered by file.
func (t *Tracker) Advance(p Position) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.pos
	if cur.GTIDSet != nil && p.GTIDSet != nil && !p.GTIDSet.IsEmpty() {
		if cur.GTIDSet.Contains(p.GTIDSet) {
			return t.regression(p)
		}
		merged := cur.GTIDSet.Clone()
		merged.Merge(p.GTIDSet)
		t.pos = Position{Name: p.Name, Pos: p.Pos, GTIDSet: merged}
		return nil
	}

	if p.Compare(cur) <= 0 {
		return t.regression(p)
	}
	t.pos.Name = p.Name
	t.pos.Pos = p.Pos
	return nil
}

func (t *Tracker) regression(p Position) error {
	if t.policy == RegressionFail {
		return myerrors.Newf(myerrors.Regression, "advance", "position %s is not after %s", p, t.pos)
	}
	t.logger.Warn("ignore position regression",
		zap.Stringer("current", t.pos),
		zap.Stringer("position", p))
	return nil
}

// Snapshot returns a deep copy of the current position.
func (t *Tracker) Snapshot() Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pos.Clone()
}
