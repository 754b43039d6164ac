package comms

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/cablebotics/gocablebot/robot"
)

type MockClient struct {
	mu     sync.Mutex
	msgs   [][]byte
	fail   error
	closed bool
}

func (c *MockClient) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *MockClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *MockClient) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.msgs...)
}

func TestHubRegistration(t *testing.T) {
	Convey("Given a hub over a known state", t, func() {
		state := robot.NewState(mgl64.Vec3{0, 0, 2.5})
		state.Activate()
		hub := NewHub(state)

		Convey("A new client immediately receives one status snapshot", func() {
			c := new(MockClient)
			hub.Register(c)

			msgs := c.received()
			So(msgs, ShouldHaveLength, 1)

			var push Push
			So(json.Unmarshal(msgs[0], &push), ShouldBeNil)
			So(push.Type, ShouldEqual, PushStatus)
			So(push.Timestamp, ShouldBeGreaterThan, 0)

			data := push.Data.(map[string]interface{})
			So(data["system_active"], ShouldBeTrue)

			Convey("And nobody else hears about it", func() {
				other := new(MockClient)
				hub.Register(other)
				So(c.received(), ShouldHaveLength, 1)
			})
		})

		Convey("Unregister is idempotent", func() {
			c := new(MockClient)
			hub.Register(c)
			So(hub.Len(), ShouldEqual, 1)

			hub.Unregister(c)
			hub.Unregister(c)
			hub.Unregister(new(MockClient))
			So(hub.Len(), ShouldEqual, 0)
		})
	})
}

func TestHubBroadcast(t *testing.T) {
	Convey("Given a hub with three clients, one broken", t, func() {
		state := robot.NewState(mgl64.Vec3{})
		hub := NewHub(state)

		good1 := new(MockClient)
		good2 := new(MockClient)
		broken := &MockClient{fail: errors.New("pipe closed")}
		hub.Register(good1)
		hub.Register(good2)
		hub.Register(broken)
		So(hub.Len(), ShouldEqual, 3)

		Convey("Broadcast reaches the healthy clients and drops the broken one", func() {
			hub.Broadcast([]byte(`{"ping":true}`))

			So(good1.received(), ShouldHaveLength, 2) // snapshot + broadcast
			So(good2.received(), ShouldHaveLength, 2)
			So(hub.Len(), ShouldEqual, 2)
			So(broken.closed, ShouldBeTrue)

			Convey("Subsequent broadcasts skip it entirely", func() {
				hub.Broadcast([]byte(`{"ping":2}`))
				So(good1.received(), ShouldHaveLength, 3)
				So(hub.Len(), ShouldEqual, 2)
			})
		})

		Convey("Unicast failures are reported but do not unregister", func() {
			err := hub.Unicast(broken, []byte("x"))
			So(err, ShouldNotBeNil)
			So(hub.Len(), ShouldEqual, 3)
		})
	})
}
