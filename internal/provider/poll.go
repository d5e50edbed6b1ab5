package provider

import (
	"context"
	"fmt"
	"time"
)

var defaultPollSchedule = []time.Duration{2 * time.Second, 3 * time.Second, 5 * time.Second}

const defaultPollBudget = 20 * time.Second

// poll calls check after each delay of schedule, repeating the last delay,
// until check reports done, returns an error, or the budget runs out. An
// exhausted budget is reported as ErrNoResult; a cancelled parent context is
// returned as is.
func poll(ctx context.Context, schedule []time.Duration, budget time.Duration, check func(context.Context) (bool, error)) error {
	if len(schedule) == 0 {
		schedule = defaultPollSchedule
	}
	if budget <= 0 {
		budget = defaultPollBudget
	}
	deadline := time.Now().Add(budget)

	for i := 0; ; i++ {
		wait := schedule[len(schedule)-1]
		if i < len(schedule) {
			wait = schedule[i]
		}
		if remaining := time.Until(deadline); wait > remaining {
			if remaining <= 0 {
				return fmt.Errorf("%w: poll budget of %s exhausted", ErrNoResult, budget)
			}
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: poll budget of %s exhausted", ErrNoResult, budget)
		}
	}
}
