package socket

import (
	"encoding/json"
	"fmt"
)

// 帧类型
const (
	FrameConnect      = "connect"
	FrameConnectError = "connect_error"
	FrameEvent        = "event"
	FrameAck          = "ack"
	FrameDisconnect   = "disconnect"
)

// inFrame 客户端 -> 服务端
type inFrame struct {
	Type  string          `json:"type"`
	Auth  map[string]any  `json:"auth,omitempty"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	ID    *uint64         `json:"id,omitempty"` // 非空表示需要 ack
}

// outFrame 服务端 -> 客户端
type outFrame struct {
	Type    string  `json:"type"`
	SID     string  `json:"sid,omitempty"`
	Message string  `json:"message,omitempty"`
	Event   string  `json:"event,omitempty"`
	Data    any     `json:"data,omitempty"`
	ID      *uint64 `json:"id,omitempty"`
}

func parseFrame(raw []byte) (*inFrame, error) {
	f := &inFrame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("frame type missing")
	}
	return f, nil
}

// payload 事件数据解成 any，空数据为 nil
func (f *inFrame) payload() (any, error) {
	if len(f.Data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(f.Data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func encodeEvent(event string, data json.RawMessage) ([]byte, error) {
	f := outFrame{Type: FrameEvent, Event: event}
	if len(data) > 0 {
		f.Data = data
	}
	return json.Marshal(f)
}

func encodeAck(id uint64, data any) ([]byte, error) {
	return json.Marshal(outFrame{Type: FrameAck, ID: &id, Data: data})
}
