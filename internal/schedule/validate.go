package schedule

import (
	"fmt"
	"time"

	"github.com/jwseo/salonbook/internal/localtime"
	"github.com/jwseo/salonbook/internal/model"
)

// HardKind labels a non-overridable business rule violation.
type HardKind string

const (
	HardShopClosed       HardKind = "shop_closed"
	HardOutsideShopHours HardKind = "outside_shop_hours"
)

// SoftCode labels an overridable scheduling policy objection.
type SoftCode string

const (
	SoftDesignerDayOff   SoftCode = "designer_day_off"
	SoftOutsideWorkHours SoftCode = "outside_work_hours"
	SoftInsideLunch      SoftCode = "inside_lunch"
)

type Verdict int

const (
	VerdictPass Verdict = iota
	VerdictSoftConflict
	VerdictHardError
)

// Result is the validation outcome. The tagged form forces callers to
// branch on the verdict; a soft conflict cannot be mistaken for success
// the way an unchecked return value could.
type Result struct {
	Verdict Verdict
	Hard    HardKind
	Soft    SoftConflict
}

type SoftConflict struct {
	Code    SoftCode `json:"code"`
	Message string   `json:"message"`
	Details string   `json:"details,omitempty"`
}

func pass() Result {
	return Result{Verdict: VerdictPass}
}

func hard(kind HardKind) Result {
	return Result{Verdict: VerdictHardError, Hard: kind}
}

func soft(code SoftCode, message, details string) Result {
	return Result{Verdict: VerdictSoftConflict, Soft: SoftConflict{Code: code, Message: message, Details: details}}
}

// Validator runs the full policy check for one candidate booking.
// Hard rules (shop closed, outside shop hours) reject even with
// force=true; soft rules are skipped entirely when forced. The check is
// pure: re-validating a passing booking with identical inputs passes
// again.
//
// Booking-vs-booking collision is deliberately not checked here; the
// lightweight overlap check lives in the availability read path and in
// the storage exclusion constraint, so bulk enumeration never pays for
// the policy walk.
type Validator struct {
	clock localtime.Normalizer
}

func NewValidator(clock localtime.Normalizer) Validator {
	return Validator{clock: clock}
}

func (v Validator) Validate(shop model.Shop, designer model.Designer, start, end time.Time, force bool) Result {
	weekday := v.clock.Weekday(start)
	if shop.ClosedWeekdays.Contains(weekday) {
		return hard(HardShopClosed)
	}

	startMin := v.clock.MinuteOf(start)
	// Measure the end as an offset from the start so a booking running
	// to midnight reads as minute 1440, not 0.
	endMin := startMin + int(end.Sub(start)/time.Minute)
	if !withinShopHours(shop, startMin, endMin) {
		return hard(HardOutsideShopHours)
	}

	if force {
		return pass()
	}

	if designer.DaysOff.Contains(weekday) {
		return soft(SoftDesignerDayOff, "designer is off that day", weekday.String())
	}

	if designer.WorkStartMinute != nil && startMin < *designer.WorkStartMinute {
		return soft(SoftOutsideWorkHours, "booking starts before designer work hours",
			fmt.Sprintf("work starts at %s", localtime.FormatMinute(*designer.WorkStartMinute)))
	}
	if designer.WorkEndMinute != nil && endMin > *designer.WorkEndMinute {
		return soft(SoftOutsideWorkHours, "booking ends after designer work hours",
			fmt.Sprintf("work ends at %s", localtime.FormatMinute(*designer.WorkEndMinute)))
	}

	if designer.LunchStartMinute != nil && designer.LunchEndMinute != nil {
		ls, le := *designer.LunchStartMinute, *designer.LunchEndMinute
		if startMin < le && ls < endMin {
			return soft(SoftInsideLunch, "booking overlaps designer lunch",
				fmt.Sprintf("lunch %s-%s", localtime.FormatMinute(ls), localtime.FormatMinute(le)))
		}
	}

	return pass()
}

// withinShopHours checks containment in the shop's open window. A close
// time at or before the open time means the shop runs past midnight;
// the window then wraps, and the interval may sit in the late segment
// (open..24:00+close) or the early-morning segment (00:00..close).
func withinShopHours(shop model.Shop, startMin, endMin int) bool {
	open, close := shop.OpenMinute, shop.CloseMinute
	if open == 0 && close == 0 {
		return true // unconfigured hours mean unconstrained
	}
	if close > open {
		return startMin >= open && endMin <= close
	}
	if startMin >= open && endMin <= close+24*60 {
		return true
	}
	return endMin <= close
}
