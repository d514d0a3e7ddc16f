package eventbus

import "errors"

var (
	// ErrInvalidPriority 事件优先级越界
	ErrInvalidPriority = errors.New("eventbus: invalid priority")

	// ErrNilEvent 事件为空
	ErrNilEvent = errors.New("eventbus: nil event")

	// ErrEmptyType 事件类型为空
	ErrEmptyType = errors.New("eventbus: empty event type")

	// ErrNilReceiver 接收器为空
	ErrNilReceiver = errors.New("eventbus: nil receiver")
)
