package model_test

import (
	"testing"

	"github.com/okian/leakcoach/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDrillAnswers(t *testing.T) {
	Convey("Given the two drill types", t, func() {
		So(model.ActionDecision.Valid(), ShouldBeTrue)
		So(model.RaiseSizing.Valid(), ShouldBeTrue)
		So(model.DrillType("trivia").Valid(), ShouldBeFalse)

		Convey("Then each accepts only its own answer set", func() {
			So(model.ActionDecision.Accepts("call"), ShouldBeTrue)
			So(model.ActionDecision.Accepts("size_50"), ShouldBeFalse)
			So(model.RaiseSizing.Accepts("overbet"), ShouldBeTrue)
			So(model.RaiseSizing.Accepts("raise"), ShouldBeFalse)
			So(model.DrillType("trivia").Accepts("call"), ShouldBeFalse)
		})
	})
}

func TestMistakeReason(t *testing.T) {
	Convey("Given an incorrect answer", t, func() {
		Convey("When the drill is a sizing drill", func() {
			So(model.MistakeReason(model.RaiseSizing, "size_33", "size_75"), ShouldEqual, model.ReasonSizing)
		})

		Convey("When both actions are aggressive", func() {
			So(model.MistakeReason(model.ActionDecision, "bet", "all_in"), ShouldEqual, model.ReasonSizing)
		})

		Convey("When the action family is wrong", func() {
			So(model.MistakeReason(model.ActionDecision, "call", "raise"), ShouldEqual, model.ReasonAction)
			So(model.MistakeReason(model.ActionDecision, "fold", "call"), ShouldEqual, model.ReasonAction)
		})
	})

	Convey("Given a mistake history", t, func() {
		h := model.MistakeHistory{DecisionAttempts: 4, DecisionMistakes: 1, SizingAttempts: 3, SizingMistakes: 2}
		So(h.TotalAttempts(), ShouldEqual, 7)
		So(h.TotalMistakes(), ShouldEqual, 3)
	})
}
