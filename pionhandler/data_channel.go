package pionhandler

import (
	"github.com/pion/webrtc/v4"

	mediasoupclient "github.com/jiyeyuran/mediasoup-client-go"
)

var _ mediasoupclient.DataChannel = (*DataChannel)(nil)

// DataChannel adapts a pion data channel to mediasoupclient.DataChannel.
type DataChannel struct {
	*webrtc.DataChannel
}

func (d *DataChannel) ReadyState() string {
	return d.DataChannel.ReadyState().String()
}

func (d *DataChannel) OnMessage(fn func(data []byte, isString bool)) {
	d.DataChannel.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data, msg.IsString)
	})
}
