package pipeline

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindMeta             Kind = "meta"
	KindCoursesInTerm    Kind = "courses-in-term"
	KindCoursesInSubject Kind = "courses-in-subject"
	KindDetails          Kind = "details"
	KindEvaluations      Kind = "evaluations"
)

type State string

const (
	Queued    State = "queued"
	Running   State = "running"
	Succeeded State = "succeeded"
	Failed    State = "failed"
	Cancelled State = "cancelled"
)

func (s State) Done() bool {
	return s == Succeeded || s == Failed || s == Cancelled
}

// Unit is a snapshot of one unit of work.
type Unit struct {
	Id       int
	Kind     Kind
	TermCode int
	Subject  string
	CourseId string
	// ids of the units that must succeed before this one starts
	DependsOn []int

	State    State
	Attempts int
	Started  time.Time
	Finished time.Time
	Err      error
	// records that were rejected or skipped without failing the unit
	Notes []string
}

func (u Unit) Scope() string {
	switch u.Kind {
	case KindMeta:
		return "all"
	case KindCoursesInTerm:
		return fmt.Sprint(u.TermCode)
	case KindCoursesInSubject:
		return fmt.Sprintf("%d/%s", u.TermCode, u.Subject)
	}
	return fmt.Sprintf("%d/%s", u.TermCode, u.CourseId)
}

func (u Unit) Duration() time.Duration {
	if u.Started.IsZero() || u.Finished.IsZero() {
		return 0
	}
	return u.Finished.Sub(u.Started)
}

// Report is the state of every unit a run scheduled.
type Report struct {
	RunId    string
	Started  time.Time
	Finished time.Time
	Units    []Unit
}

func (r Report) Count(state State) int {
	n := 0
	for _, u := range r.Units {
		if u.State == state {
			n++
		}
	}
	return n
}

func (r Report) Failed() []Unit {
	var failed []Unit
	for _, u := range r.Units {
		if u.State == Failed {
			failed = append(failed, u)
		}
	}
	return failed
}
