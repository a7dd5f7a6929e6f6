/*
materialize.go - Schedule row creation, eager and lazy

PURPOSE:
  Turns an obligation into schedule rows. Two lifecycles are supported and
  must stay interchangeable:

  EAGER: at activation, materialize a fixed run of periods (default twelve)
  from the activation anchor forward, rolling the year when the anchor month
  is not January.

  LAZY: materialize a single row the moment the first ledger entry linking to
  that (obligation, period) is created, taking the expected amount from the
  obligation at that moment.

  Both paths build rows through MaterializeOne, so the key, the id and the
  expected amount are identical regardless of which strategy produced the
  row. The status resolver cannot tell them apart, which is the point.
*/
package obligation

import (
	"fmt"
	"time"

	"github.com/warp/obligation-engine/ledger"
)

// DefaultEagerPeriods is the number of periods materialized up front at
// obligation activation.
const DefaultEagerPeriods = 12

// MaterializeOne builds the schedule row for a single period. It fails with a
// ValidationError when the period is outside the obligation's active window
// (before activation, or past an installment's term).
func MaterializeOne(o Obligation, p ledger.Period) (Schedule, error) {
	expected, ok := o.ExpectedFor(p)
	if !ok {
		return Schedule{}, &ledger.ValidationError{
			Field:  "period",
			Reason: fmt.Sprintf("%s is outside the active window of obligation %s", p, o.ID()),
		}
	}
	return Schedule{
		ID:             NewScheduleID(o.ID(), p),
		ObligationID:   o.ID(),
		Kind:           o.Kind(),
		Period:         p,
		ExpectedAmount: expected,
		DueDate:        o.DueDateFor(p),
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// MaterializeEager builds up to count schedule rows starting at the
// activation anchor. Installments stop at the end of their term even when
// count is larger.
func MaterializeEager(o Obligation, count int) []Schedule {
	if count <= 0 {
		count = DefaultEagerPeriods
	}
	periods := o.ActivePeriods(count)
	schedules := make([]Schedule, 0, len(periods))
	for _, p := range periods {
		s, err := MaterializeOne(o, p)
		if err != nil {
			// ActivePeriods only yields periods inside the window.
			continue
		}
		schedules = append(schedules, s)
	}
	return schedules
}
