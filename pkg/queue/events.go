package queue

import "github.com/ThreeDotsLabs/watermill/message"

// RecordActionPayload 病历操作事件.
type RecordActionPayload struct {
	RecordID  uint   `json:"record_id,omitempty"`
	PatientID int64  `json:"patient_id"`
	Action    string `json:"action"`
	Actor     string `json:"actor"`
	Detail    string `json:"detail,omitempty"`
}

// PayloadAuditPayload 密文巡检结果.
type PayloadAuditPayload struct {
	Checked int   `json:"checked"`
	Failed  int   `json:"failed"`
	Failing []int `json:"failing,omitempty"` // 失败记录 ID，最多保留一批
}

// NewRecordActionMessage 构造病历操作事件，topic 由动作决定.
func NewRecordActionMessage(payload RecordActionPayload, opts ...func(*EventHeader)) (string, *message.Message, error) {
	topic, ok := TopicForAction(payload.Action)
	if !ok {
		return "", nil, &UnknownActionError{Action: payload.Action}
	}

	msg, err := NewWatermillMessage(topic, payload, opts...)
	if err != nil {
		return "", nil, err
	}

	msg.Metadata.Set("action", payload.Action)

	return topic, msg, nil
}

// ParseRecordAction 将消息解析为病历操作事件.
func ParseRecordAction(msg *message.Message) (Message[RecordActionPayload], error) {
	return ParseWatermillMessage[RecordActionPayload](msg)
}

// UnknownActionError 动作没有对应主题.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return "queue: no topic for action " + e.Action
}
