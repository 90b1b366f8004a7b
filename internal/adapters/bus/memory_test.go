package bus_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aisuru/score-server/internal/adapters/bus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryBus(t *testing.T) {
	Convey("Given a memory bus with a running listener", t, func() {
		b := bus.NewMemoryBus()
		ctx, cancel := context.WithCancel(context.Background())

		var got atomic.Int64
		var lastPayload atomic.Value
		b.Subscribe(bus.ChannelMapStatus, func(ctx context.Context, payload []byte) {
			lastPayload.Store(append([]byte(nil), payload...))
			got.Add(1)
		})

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = b.Listen(ctx)
		}()

		Reset(func() {
			cancel()
			<-done
			_ = b.Close()
		})

		Convey("A published message reaches the handler decoded", func() {
			err := b.Publish(ctx, bus.ChannelMapStatus,
				bus.MapStatusUpdate{MD5: "abc", NewStatus: 2})
			So(err, ShouldBeNil)

			So(waitFor(func() bool { return got.Load() == 1 }), ShouldBeTrue)

			var msg bus.MapStatusUpdate
			raw, _ := lastPayload.Load().([]byte)
			So(json.Unmarshal(raw, &msg), ShouldBeNil)
			So(msg.MD5, ShouldEqual, "abc")
			So(msg.NewStatus, ShouldEqual, 2)
		})

		Convey("Messages on other channels are ignored by the handler", func() {
			err := b.Publish(ctx, bus.ChannelUserPrivileges,
				bus.PrivilegeUpdate{ID: 1, Privileges: 3})
			So(err, ShouldBeNil)

			time.Sleep(20 * time.Millisecond)
			So(got.Load(), ShouldEqual, 0)
		})

		Convey("Delivery is FIFO per channel", func() {
			var order []int
			orderCh := make(chan int, 8)
			b.Subscribe(bus.ChannelUserStats, func(ctx context.Context, payload []byte) {
				var msg bus.StatsRefresh
				_ = json.Unmarshal(payload, &msg)
				orderCh <- int(msg.ID)
			})

			for i := 1; i <= 5; i++ {
				So(b.Publish(ctx, bus.ChannelUserStats,
					bus.StatsRefresh{ID: int64(i)}), ShouldBeNil)
			}

			for n := 0; n < 5; n++ {
				select {
				case id := <-orderCh:
					order = append(order, id)
				case <-time.After(time.Second):
					t.Fatal("timed out waiting for messages")
				}
			}
			So(order, ShouldResemble, []int{1, 2, 3, 4, 5})
		})

		Convey("Publishing after Close is a quiet no-op", func() {
			cancel()
			<-done
			So(b.Close(), ShouldBeNil)
			So(b.Publish(context.Background(), bus.ChannelMapStatus,
				bus.MapStatusUpdate{MD5: "x"}), ShouldBeNil)
		})
	})
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
