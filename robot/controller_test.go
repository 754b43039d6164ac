package robot

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/smartystreets/goconvey/convey"
)

type MockLink struct {
	sent    []string
	fail    error
	closed  bool
	offline bool
}

func (l *MockLink) SendCommand(cmd string) error {
	if l.fail != nil {
		return l.fail
	}
	l.sent = append(l.sent, cmd)
	return nil
}

func (l *MockLink) Connected() bool { return !l.offline }
func (l *MockLink) Close() error    { l.closed = true; return nil }

func testConfig() Config {
	return Config{
		Workspace: WorkspaceLimits{
			X: AxisLimit{-2.5, 2.5},
			Y: AxisLimit{-2.5, 2.5},
			Z: AxisLimit{0.5, 4.5},
		},
		Home: []float64{0, 0, 2.5},
	}
}

func TestControllerMove(t *testing.T) {
	Convey("Given an idle controller", t, func() {
		link := new(MockLink)
		state := NewState(mgl64.Vec3{0, 0, 2.5})
		c := NewController(testConfig(), state, link)

		Convey("Moves are rejected while inactive", func() {
			So(c.MoveTo(1, 1, 2), ShouldEqual, ErrInactive)
			So(link.sent, ShouldBeEmpty)
			So(state.Position(), ShouldResemble, mgl64.Vec3{0, 0, 2.5})
		})

		Convey("When activated", func() {
			So(c.Activate(), ShouldBeNil)
			So(link.sent, ShouldResemble, []string{"ACTIVATE"})

			Convey("An in-bounds move is forwarded with 3 decimals", func() {
				So(c.MoveTo(1, 1, 2), ShouldBeNil)
				So(link.sent, ShouldContain, "MOVE:1.000,1.000,2.000")
			})

			Convey("An out-of-bounds move names the offending axis", func() {
				err := c.MoveTo(10, 0, 2)
				So(err, ShouldHaveSameTypeAs, &BoundsError{})
				So(err.Error(), ShouldContainSubstring, "out of bounds: x=10.000")
				So(link.sent, ShouldNotContain, "MOVE:10.000,0.000,2.000")
			})

			Convey("Boundary values are inclusive", func() {
				So(c.MoveTo(2.5, -2.5, 4.5), ShouldBeNil)
				So(c.MoveTo(2.5, -2.5, 4.51), ShouldNotBeNil)
			})

			Convey("Home proposes a move to the configured home", func() {
				So(c.Home(), ShouldBeNil)
				So(link.sent, ShouldContain, "MOVE:0.000,0.000,2.500")

				// the proposal alone does not change the reported position
				So(state.Position(), ShouldResemble, mgl64.Vec3{0, 0, 2.5})
			})
		})
	})
}

func TestControllerSafety(t *testing.T) {
	Convey("Given an active controller", t, func() {
		link := new(MockLink)
		state := NewState(mgl64.Vec3{0, 0, 2.5})
		c := NewController(testConfig(), state, link)
		So(c.Activate(), ShouldBeNil)

		Convey("EmergencyStop latches regardless of prior state", func() {
			c.EmergencyStop()
			So(link.sent, ShouldContain, "EMERGENCY_STOP")

			status := c.Status()
			So(status.EmergencyStop, ShouldBeTrue)
			So(status.SystemActive, ShouldBeFalse)

			Convey("Repeated stops are idempotent", func() {
				c.EmergencyStop()
				So(c.Status().EmergencyStop, ShouldBeTrue)
			})

			Convey("Activate and move are rejected while latched", func() {
				So(c.Activate(), ShouldEqual, ErrEmergencyLatched)
				So(c.MoveTo(1, 1, 2), ShouldEqual, ErrEmergencyLatched)
			})
		})

		Convey("EmergencyStop latches locally even with a dead link", func() {
			link.fail = ErrLinkUnavailable
			c.EmergencyStop()
			So(c.Status().EmergencyStop, ShouldBeTrue)
		})

		Convey("Deactivate succeeds locally even with a dead link", func() {
			link.fail = ErrLinkUnavailable
			c.Deactivate()
			So(c.Status().SystemActive, ShouldBeFalse)
		})
	})
}

func TestControllerPassthrough(t *testing.T) {
	Convey("Given a controller", t, func() {
		link := new(MockLink)
		state := NewState(mgl64.Vec3{0, 0, 2.5})
		c := NewController(testConfig(), state, link)

		Convey("Calibrate and QueryPosition forward without preconditions", func() {
			So(c.Calibrate(), ShouldBeNil)
			So(c.QueryPosition(), ShouldBeNil)
			So(link.sent, ShouldResemble, []string{"CALIBRATE", "GET_POS"})
		})

		Convey("They surface link failures", func() {
			link.fail = ErrLinkUnavailable
			So(c.Calibrate(), ShouldEqual, ErrLinkUnavailable)
		})

		Convey("Status does not mutate anything", func() {
			before := c.Status()
			for i := 0; i < 5; i++ {
				So(c.Status(), ShouldResemble, before)
			}
			So(link.sent, ShouldBeEmpty)
		})
	})
}
