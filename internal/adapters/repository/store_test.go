package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/leakcoach/internal/domain/leaktag"
	"github.com/okian/leakcoach/internal/domain/model"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newBatch(userID, batchID string, tag leaktag.Tag, n int, now time.Time) []model.QueueItem {
	items := make([]model.QueueItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, model.QueueItem{
			ID:         fmt.Sprintf("%s-%d", batchID, i),
			UserID:     userID,
			BatchID:    batchID,
			LeakTag:    tag,
			DrillType:  model.ActionDecision,
			Difficulty: model.Medium,
			Status:     model.StatusDue,
			DueAt:      now,
			CreatedAt:  now,
		})
	}
	return items
}

func TestOpen(t *testing.T) {
	Convey("Given an unknown driver", t, func() {
		_, err := Open(context.Background(), "mysql", "root@/db")

		Convey("Then Open refuses it", func() {
			So(errors.Is(err, ErrUnsupportedDriver), ShouldBeTrue)
		})
	})

	Convey("Given an in-memory database", t, func() {
		s := openMemory(t)

		Convey("Then SQLite keeps a single connection whatever the pool option says", func() {
			wide, err := Open(context.Background(), "sqlite", ":memory:", WithMaxOpenConns(8))
			So(err, ShouldBeNil)
			defer wide.Close()
			So(wide.maxOpenConns, ShouldEqual, 8)
			So(wide.db.Stats().MaxOpenConnections, ShouldEqual, 1)
		})

		Convey("Then migrations are idempotent", func() {
			So(s.Migrate(context.Background()), ShouldBeNil)
			So(s.Ping(context.Background()), ShouldBeNil)
		})
	})
}

func TestOpenWithoutMigrations(t *testing.T) {
	Convey("Given a store opened without migrations", t, func() {
		ctx := context.Background()
		s, err := Open(ctx, "sqlite", ":memory:", WithoutMigrations())
		So(err, ShouldBeNil)
		defer s.Close()

		Convey("Then the tables do not exist until Migrate runs", func() {
			_, err := s.SkillSnapshots(ctx, "u1")
			So(err, ShouldNotBeNil)
			So(s.Migrate(ctx), ShouldBeNil)
			snaps, err := s.SkillSnapshots(ctx, "u1")
			So(err, ShouldBeNil)
			So(snaps, ShouldBeEmpty)
		})
	})
}

func TestSkills(t *testing.T) {
	Convey("Given stored skill rows", t, func() {
		ctx := context.Background()
		s := openMemory(t)
		practiced := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

		So(s.UpsertSkill(ctx, "u1", model.SkillSnapshot{Tag: "overfolding", Rating: 40, Attempts7d: 5, Correct7d: 2, LastPracticeAt: &practiced}), ShouldBeNil)
		So(s.UpsertSkill(ctx, "u1", model.SkillSnapshot{Tag: "bad_sizing", Rating: 70}), ShouldBeNil)
		So(s.UpsertSkill(ctx, "u2", model.SkillSnapshot{Tag: "tilt_control", Rating: 10}), ShouldBeNil)

		Convey("When reading the learner's snapshots", func() {
			snaps, err := s.SkillSnapshots(ctx, "u1")

			Convey("Then only their rows come back ordered by tag", func() {
				So(err, ShouldBeNil)
				So(snaps, ShouldHaveLength, 2)
				So(snaps[0].Tag, ShouldEqual, "bad_sizing")
				So(snaps[0].LastPracticeAt, ShouldBeNil)
				So(snaps[1].Tag, ShouldEqual, "overfolding")
				So(snaps[1].Attempts7d, ShouldEqual, 5)
				So(snaps[1].LastPracticeAt.Equal(practiced), ShouldBeTrue)
			})
		})

		Convey("When a row is upserted again", func() {
			So(s.UpsertSkill(ctx, "u1", model.SkillSnapshot{Tag: "bad_sizing", Rating: 55, StreakCorrect: 3}), ShouldBeNil)
			snaps, err := s.SkillSnapshots(ctx, "u1")

			Convey("Then it is replaced", func() {
				So(err, ShouldBeNil)
				So(snaps, ShouldHaveLength, 2)
				So(snaps[0].Rating, ShouldEqual, 55)
				So(snaps[0].StreakCorrect, ShouldEqual, 3)
			})
		})

		Convey("When listing learners without pending items", func() {
			So(s.InsertBatch(ctx, "u2", leaktag.TiltControl, newBatch("u2", "b1", leaktag.TiltControl, 2, practiced)), ShouldBeNil)
			users, err := s.UsersWithoutPending(ctx)

			Convey("Then learners with due items are excluded", func() {
				So(err, ShouldBeNil)
				So(users, ShouldResemble, []string{"u1"})
			})
		})
	})
}

func TestInsertBatch(t *testing.T) {
	Convey("Given a learner with no queue", t, func() {
		ctx := context.Background()
		s := openMemory(t)
		now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

		Convey("When a batch is inserted", func() {
			err := s.InsertBatch(ctx, "u1", leaktag.Overfolding, newBatch("u1", "b1", leaktag.Overfolding, 10, now))

			Convey("Then the learner has pending work", func() {
				So(err, ShouldBeNil)
				pending, err := s.HasPending(ctx, "u1")
				So(err, ShouldBeNil)
				So(pending, ShouldBeTrue)
			})

			Convey("Then a second batch is refused while items are pending", func() {
				err := s.InsertBatch(ctx, "u1", leaktag.Overfolding, newBatch("u1", "b2", leaktag.Overfolding, 10, now))
				So(errors.Is(err, ErrBatchExists), ShouldBeTrue)
			})

			Convey("Then items round-trip through the store", func() {
				it, err := s.GetItem(ctx, "u1", "b1-3")
				So(err, ShouldBeNil)
				So(it.BatchID, ShouldEqual, "b1")
				So(it.LeakTag, ShouldEqual, leaktag.Overfolding)
				So(it.Status, ShouldEqual, model.StatusDue)
				So(it.LastScore, ShouldBeNil)
				So(it.Scenario, ShouldBeNil)
				So(it.DueAt.Equal(now), ShouldBeTrue)
			})
		})

		Convey("When the generation key is already taken", func() {
			_, err := s.db.ExecContext(ctx, `INSERT INTO queue_batches (id, user_id, generation, created_at) VALUES ('x', 'u1', 1, 0)`)
			So(err, ShouldBeNil)
			_, err = s.db.ExecContext(ctx, `INSERT INTO queue_batches (id, user_id, generation, created_at) VALUES ('y', 'u1', 1, 0)`)

			Convey("Then the driver error is a unique violation", func() {
				So(isUniqueViolation(err), ShouldBeTrue)
			})
		})

		Convey("When an empty batch is inserted", func() {
			err := s.InsertBatch(ctx, "u1", leaktag.None, nil)

			Convey("Then nothing is written", func() {
				So(err, ShouldBeNil)
				pending, err := s.HasPending(ctx, "u1")
				So(err, ShouldBeNil)
				So(pending, ShouldBeFalse)
			})
		})
	})
}

func TestScheduleUpdates(t *testing.T) {
	Convey("Given a stored item", t, func() {
		ctx := context.Background()
		s := openMemory(t)
		now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
		So(s.InsertBatch(ctx, "u1", leaktag.Overcalling, newBatch("u1", "b1", leaktag.Overcalling, 3, now)), ShouldBeNil)
		prev, err := s.GetItem(ctx, "u1", "b1-0")
		So(err, ShouldBeNil)

		score := 100
		next := prev
		next.Repetition = 1
		next.Status = model.StatusScheduled
		next.DueAt = now.Add(24 * time.Hour)
		next.LastScore = &score

		Convey("When the schedule is updated from the stored state", func() {
			So(s.UpdateSchedule(ctx, prev, next), ShouldBeNil)

			Convey("Then the new state is persisted", func() {
				got, err := s.GetItem(ctx, "u1", "b1-0")
				So(err, ShouldBeNil)
				So(got.Repetition, ShouldEqual, 1)
				So(got.Status, ShouldEqual, model.StatusScheduled)
				So(*got.LastScore, ShouldEqual, 100)
			})

			Convey("Then replaying the same update conflicts", func() {
				So(errors.Is(s.UpdateSchedule(ctx, prev, next), ErrConflict), ShouldBeTrue)
			})

			Convey("Then only items due now are listed", func() {
				due, err := s.DueItems(ctx, "u1", now, 10)
				So(err, ShouldBeNil)
				So(due, ShouldHaveLength, 2)
				n, err := s.CountDue(ctx, now.Add(48*time.Hour))
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
			})
		})

		Convey("When another learner asks for the item", func() {
			_, err := s.GetItem(ctx, "u2", "b1-0")

			Convey("Then it is not found", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a scenario is attached", func() {
			payload := json.RawMessage(`{"correct_action":"fold"}`)
			So(s.AttachScenario(ctx, "u1", "b1-1", payload), ShouldBeNil)

			Convey("Then it is returned with the item", func() {
				got, err := s.GetItem(ctx, "u1", "b1-1")
				So(err, ShouldBeNil)
				So(string(got.Scenario), ShouldEqual, string(payload))
			})

			Convey("Then attaching to a foreign item is not found", func() {
				So(errors.Is(s.AttachScenario(ctx, "u2", "b1-1", payload), ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the due list is limited", func() {
			due, err := s.DueItems(ctx, "u1", now, 2)

			Convey("Then at most limit items come back", func() {
				So(err, ShouldBeNil)
				So(due, ShouldHaveLength, 2)
			})
		})
	})
}

func TestDueItemsOrder(t *testing.T) {
	Convey("Given a batch whose ids sort against its build order", t, func() {
		ctx := context.Background()
		s := openMemory(t)
		now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

		drills := []model.DrillType{
			model.RaiseSizing, model.RaiseSizing, model.ActionDecision,
			model.ActionDecision, model.RaiseSizing, model.ActionDecision,
		}
		items := newBatch("u1", "b1", leaktag.Overbluffing, len(drills), now)
		for i := range items {
			items[i].ID = fmt.Sprintf("item-%c", 'z'-i)
			items[i].Position = i
			items[i].DrillType = drills[i]
		}
		So(s.InsertBatch(ctx, "u1", leaktag.Overbluffing, items), ShouldBeNil)

		Convey("When the due list is read", func() {
			due, err := s.DueItems(ctx, "u1", now, 10)

			Convey("Then items come back in build order", func() {
				So(err, ShouldBeNil)
				So(due, ShouldHaveLength, len(drills))
				for i, it := range due {
					So(it.Position, ShouldEqual, i)
					So(it.DrillType, ShouldEqual, drills[i])
				}
			})
		})
	})
}

func TestMistakeHistory(t *testing.T) {
	Convey("Given recorded attempts", t, func() {
		ctx := context.Background()
		s := openMemory(t)
		now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

		record := func(id string, drill model.DrillType, correct bool, reason string, at time.Time) {
			a := model.Attempt{
				ID: id, UserID: "u1", QueueItemID: "q-" + id, LeakTag: leaktag.BadSizing, DrillType: drill,
				ChosenAction: "raise", CorrectAction: "bet", Correct: correct, CreatedAt: at,
			}
			if !correct {
				a.MistakeTag = leaktag.BadSizing
				a.MistakeReason = reason
			}
			So(s.RecordAttempt(ctx, a), ShouldBeNil)
		}
		record("a1", model.ActionDecision, true, "", now)
		record("a2", model.ActionDecision, false, model.ReasonSizing, now)
		record("a3", model.ActionDecision, false, model.ReasonAction, now)
		record("a4", model.RaiseSizing, false, model.ReasonSizing, now)
		record("a5", model.RaiseSizing, true, "", now)
		record("old", model.RaiseSizing, false, model.ReasonSizing, now.AddDate(0, 0, -40))

		Convey("When aggregating the last 30 days", func() {
			h, err := s.MistakeHistory(ctx, "u1", leaktag.BadSizing, now.AddDate(0, 0, -30))

			Convey("Then counts are split by drill type and reason", func() {
				So(err, ShouldBeNil)
				So(*h, ShouldResemble, model.MistakeHistory{
					DecisionAttempts:     3,
					DecisionMistakes:     2,
					SizingAttempts:       2,
					SizingMistakes:       1,
					SizingReasonMistakes: 2,
				})
			})
		})

		Convey("When the same item state is recorded twice", func() {
			a := model.Attempt{
				ID: "dup-1", UserID: "u1", QueueItemID: "q-a2", LeakTag: leaktag.BadSizing, DrillType: model.ActionDecision,
				ChosenAction: "raise", CorrectAction: "bet", CreatedAt: now,
				MistakeTag: leaktag.BadSizing, MistakeReason: model.ReasonSizing,
			}
			err := s.RecordAttempt(ctx, a)

			Convey("Then the duplicate is refused and history is unchanged", func() {
				So(errors.Is(err, ErrDuplicateAttempt), ShouldBeTrue)
				h, err := s.MistakeHistory(ctx, "u1", leaktag.BadSizing, now.AddDate(0, 0, -30))
				So(err, ShouldBeNil)
				So(h.DecisionMistakes, ShouldEqual, 2)
			})

			Convey("Then a later state of the same item is accepted", func() {
				a.ID = "dup-2"
				a.ItemDueAt = now.Add(10 * time.Minute)
				So(s.RecordAttempt(ctx, a), ShouldBeNil)
			})
		})

		Convey("When the tag has no attempts", func() {
			h, err := s.MistakeHistory(ctx, "u1", leaktag.Overbluffing, now.AddDate(0, 0, -30))

			Convey("Then the history is empty", func() {
				So(err, ShouldBeNil)
				So(h.TotalAttempts(), ShouldEqual, 0)
			})
		})
	})
}

func TestIsUniqueViolation(t *testing.T) {
	Convey("Given driver errors", t, func() {
		So(isUniqueViolation(nil), ShouldBeFalse)
		So(isUniqueViolation(&pq.Error{Code: "23505"}), ShouldBeTrue)
		So(isUniqueViolation(&pq.Error{Code: "23503"}), ShouldBeFalse)
		So(isUniqueViolation(fmt.Errorf("wrap: %w", errors.New("constraint failed: UNIQUE constraint failed: queue_batches.user_id"))), ShouldBeTrue)
		So(isUniqueViolation(errors.New("disk I/O error")), ShouldBeFalse)
	})
}
