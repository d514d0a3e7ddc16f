package registry

import "errors"

var (
	// ErrObjectNotFound 对象不存在
	ErrObjectNotFound = errors.New("registry: object not found")

	// ErrNilObject 对象为空
	ErrNilObject = errors.New("registry: nil object")

	// ErrEmptyID 对象 ID 为空
	ErrEmptyID = errors.New("registry: empty object id")
)
