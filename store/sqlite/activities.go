package sqlite

import (
	"context"

	"github.com/warp/campus-shop/shop"
)

// =============================================================================
// WORKACTIVITIES
// =============================================================================

const workactivitySelect = "SELECT id, name FROM workactivities"

func scanWorkactivity(sc scanner) (*shop.Workactivity, error) {
	var (
		id   int64
		name string
	)
	if err := sc.Scan(&id, &name); err != nil {
		return nil, err
	}
	w := shop.NewWorkactivity()
	return w, shop.Assign(w, "id", id, "name", name)
}

func getWorkactivity(ctx context.Context, q querier, id int64) (*shop.Workactivity, error) {
	row := q.QueryRowContext(ctx, workactivitySelect+" WHERE id = ?", id)
	return scanOne(row, shop.TableWorkactivities, id, scanWorkactivity)
}

// InsertWorkactivity creates a workactivity. Names are unique.
func (s *Store) InsertWorkactivity(ctx context.Context, w *shop.Workactivity) (*shop.Workactivity, error) {
	if err := shop.AssertMandatory(w, "name"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(w, "id"); err != nil {
		return nil, err
	}

	return mutate(ctx, s, func(q querier) (*shop.Workactivity, error) {
		if err := checkUnique(ctx, q, w, 0, "name"); err != nil {
			return nil, err
		}
		id, err := insertRow(ctx, q, w, []string{"name"})
		if err != nil {
			return nil, err
		}
		return getWorkactivity(ctx, q, id)
	})
}

// UpdateWorkactivity renames the workactivity patch.id.
func (s *Store) UpdateWorkactivity(ctx context.Context, patch *shop.Workactivity) ([]string, error) {
	if err := shop.AssertMandatory(patch, "id"); err != nil {
		return nil, err
	}
	id, _ := patch.Int("id").Get()

	return mutate(ctx, s, func(q querier) ([]string, error) {
		current, err := getWorkactivity(ctx, q, id)
		if err != nil {
			return nil, err
		}
		if err := checkUnique(ctx, q, patch, id, "name"); err != nil {
			return nil, err
		}
		return s.applyUpdate(ctx, q, id, current, patch)
	})
}

// GetWorkactivity retrieves a workactivity by ID.
func (s *Store) GetWorkactivity(ctx context.Context, id int64) (*shop.Workactivity, error) {
	return read(s, func(q querier) (*shop.Workactivity, error) {
		return getWorkactivity(ctx, q, id)
	})
}

// ListWorkactivities returns workactivities, newest first when limit is set.
func (s *Store) ListWorkactivities(ctx context.Context, limit int) ([]*shop.Workactivity, error) {
	return read(s, func(q querier) ([]*shop.Workactivity, error) {
		order, args := orderBy("id", limit)
		return queryAll(ctx, q, workactivitySelect+order, args, scanWorkactivity)
	})
}

// =============================================================================
// ACTIVITIES
// =============================================================================

var activityColumns = []string{"name", "date_time", "deadline", "created_by", "creation_date"}

const activitySelect = "SELECT id, name, date_time, deadline, created_by, creation_date FROM activities"

func scanActivity(sc scanner) (*shop.Activity, error) {
	var (
		id, createdBy                     int64
		name, dateTime, deadline, created string
	)
	if err := sc.Scan(&id, &name, &dateTime, &deadline, &createdBy, &created); err != nil {
		return nil, err
	}
	a := shop.NewActivity()
	if err := shop.Assign(a, "id", id, "name", name, "created_by", createdBy); err != nil {
		return nil, err
	}
	for field, raw := range map[string]string{
		"date_time":     dateTime,
		"deadline":      deadline,
		"creation_date": created,
	} {
		t, err := parseTime(raw)
		if err != nil {
			return nil, err
		}
		if err := a.Set(field, t); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func getActivity(ctx context.Context, q querier, id int64) (*shop.Activity, error) {
	row := q.QueryRowContext(ctx, activitySelect+" WHERE id = ?", id)
	return scanOne(row, shop.TableActivities, id, scanActivity)
}

// InsertActivity schedules an activity. Its date must not lie in the past
// and the feedback deadline must not lie after it.
func (s *Store) InsertActivity(ctx context.Context, a *shop.Activity) (*shop.Activity, error) {
	a = shop.Clone(shop.NewActivity, a)
	if err := shop.AssertMandatory(a, "name", "date_time", "deadline", "created_by"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(a, "id", "creation_date"); err != nil {
		return nil, err
	}

	now := s.timestamp()
	dateTime, _ := a.Time("date_time").Get()
	deadline, _ := a.Time("deadline").Get()
	if dateTime.Before(now) || deadline.After(dateTime) {
		return nil, shop.ErrInvalidDates
	}

	return mutate(ctx, s, func(q querier) (*shop.Activity, error) {
		if err := checkReferences(ctx, q, a, reference{"created_by", shop.TableConsumers}); err != nil {
			return nil, err
		}
		if err := a.Set("creation_date", now); err != nil {
			return nil, err
		}
		id, err := insertRow(ctx, q, a, activityColumns)
		if err != nil {
			return nil, err
		}
		return getActivity(ctx, q, id)
	})
}

// UpdateActivity applies the set fields of patch. The resulting deadline
// must still not lie after the activity date.
func (s *Store) UpdateActivity(ctx context.Context, patch *shop.Activity) ([]string, error) {
	if err := shop.AssertMandatory(patch, "id"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(patch, "created_by", "creation_date"); err != nil {
		return nil, err
	}
	id, _ := patch.Int("id").Get()

	return mutate(ctx, s, func(q querier) ([]string, error) {
		current, err := getActivity(ctx, q, id)
		if err != nil {
			return nil, err
		}
		dateTime := patch.Time("date_time").OrElse(current.Time("date_time").OrElse(s.timestamp()))
		deadline := patch.Time("deadline").OrElse(current.Time("deadline").OrElse(dateTime))
		if deadline.After(dateTime) {
			return nil, shop.ErrInvalidDates
		}
		return s.applyUpdate(ctx, q, id, current, patch)
	})
}

// GetActivity retrieves an activity by ID.
func (s *Store) GetActivity(ctx context.Context, id int64) (*shop.Activity, error) {
	return read(s, func(q querier) (*shop.Activity, error) {
		return getActivity(ctx, q, id)
	})
}

// ListActivities returns activities, newest first when limit is set.
func (s *Store) ListActivities(ctx context.Context, limit int) ([]*shop.Activity, error) {
	return read(s, func(q querier) ([]*shop.Activity, error) {
		order, args := orderBy("id", limit)
		return queryAll(ctx, q, activitySelect+order, args, scanActivity)
	})
}

// =============================================================================
// FEEDBACK AND PARTICIPATION
// =============================================================================

// InsertActivityFeedback records whether a consumer takes part in an
// activity. Feedback is closed once the deadline has passed.
func (s *Store) InsertActivityFeedback(ctx context.Context, f *shop.ActivityFeedback) (*shop.ActivityFeedback, error) {
	f = shop.Clone(shop.NewActivityFeedback, f)
	if err := shop.AssertMandatory(f, "consumer_id", "activity_id", "feedback"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(f, "id", "timestamp"); err != nil {
		return nil, err
	}

	return mutate(ctx, s, func(q querier) (*shop.ActivityFeedback, error) {
		if err := checkReferences(ctx, q, f,
			reference{"consumer_id", shop.TableConsumers},
			reference{"activity_id", shop.TableActivities},
		); err != nil {
			return nil, err
		}
		activityID, _ := f.Int("activity_id").Get()
		activity, err := getActivity(ctx, q, activityID)
		if err != nil {
			return nil, err
		}

		now := s.timestamp()
		if deadline, ok := activity.Time("deadline").Get(); ok && now.After(deadline) {
			return nil, shop.ErrInvalidDates
		}
		if err := f.Set("timestamp", now); err != nil {
			return nil, err
		}
		id, err := insertRow(ctx, q, f, []string{"timestamp", "consumer_id", "activity_id", "feedback"})
		if err != nil {
			return nil, err
		}
		return f, f.Set("id", id)
	})
}

// InsertParticipation records minutes a consumer spent on a workactivity.
func (s *Store) InsertParticipation(ctx context.Context, p *shop.Participation) (*shop.Participation, error) {
	p = shop.Clone(shop.NewParticipation, p)
	if err := shop.AssertMandatory(p, "workactivity_id", "consumer_id", "duration"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(p, "id", "timestamp"); err != nil {
		return nil, err
	}

	return mutate(ctx, s, func(q querier) (*shop.Participation, error) {
		if err := checkReferences(ctx, q, p,
			reference{"workactivity_id", shop.TableWorkactivities},
			reference{"consumer_id", shop.TableConsumers},
		); err != nil {
			return nil, err
		}
		if err := p.Set("timestamp", s.timestamp()); err != nil {
			return nil, err
		}
		id, err := insertRow(ctx, q, p, []string{"timestamp", "workactivity_id", "consumer_id", "duration"})
		if err != nil {
			return nil, err
		}
		return p, p.Set("id", id)
	})
}
