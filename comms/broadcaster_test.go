package comms

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/cablebotics/gocablebot/robot"
)

func TestBroadcasterTick(t *testing.T) {
	Convey("Given a broadcaster", t, func() {
		state := robot.NewState(mgl64.Vec3{0, 0, 2.5})
		hub := NewHub(state)
		b := &Broadcaster{State: state, Hub: hub, Interval: time.Millisecond}

		Convey("A tick with no clients emits nothing, even when active", func() {
			state.Activate()
			So(b.tick(), ShouldBeFalse)
		})

		Convey("A tick with clients but inactive emits nothing", func() {
			c := new(MockClient)
			hub.Register(c)
			So(b.tick(), ShouldBeFalse)
			So(c.received(), ShouldHaveLength, 1) // only the registration snapshot
		})

		Convey("A tick with clients and an active robot emits one position push", func() {
			c := new(MockClient)
			hub.Register(c)
			state.Activate()
			state.SetPosition(mgl64.Vec3{1, 2, 3})

			So(b.tick(), ShouldBeTrue)

			msgs := c.received()
			So(msgs, ShouldHaveLength, 2)

			var push Push
			So(json.Unmarshal(msgs[1], &push), ShouldBeNil)
			So(push.Type, ShouldEqual, PushPosition)

			pos := push.Data.(map[string]interface{})
			So(pos["x"], ShouldEqual, 1.0)
			So(pos["z"], ShouldEqual, 3.0)
		})

		Convey("The latch silences the heartbeat", func() {
			c := new(MockClient)
			hub.Register(c)
			state.Activate()
			state.LatchEmergency()
			So(b.tick(), ShouldBeFalse)
		})

		Convey("Run stops when the context is canceled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				b.Run(ctx)
				close(done)
			}()

			cancel()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("broadcaster did not stop")
			}
		})
	})
}
