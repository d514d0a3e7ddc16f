package wire

import (
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// ============================================================================
//                              帧编解码
// ============================================================================
//
// 流上的每条消息封装为一帧：uvarint 长度前缀 + 载荷。
// 读写两侧都强制检查最大消息尺寸，防止恶意长度前缀
// 导致的内存放大。

// FrameReader 帧读取所需的最小接口
//
// bufio.Reader 同时满足两个接口，传输层用它包装底层流。
type FrameReader interface {
	io.Reader
	io.ByteReader
}

// ReadFrame 从 r 读取一帧
//
// maxSize 为 0 表示不限制。长度前缀超限时返回
// ErrMessageTooLarge；流在帧中途断开时返回
// io.ErrUnexpectedEOF；帧前干净断开时返回 io.EOF。
func ReadFrame(r FrameReader, maxSize uint64) ([]byte, error) {
	size, err := varint.ReadUvarint(r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	if maxSize > 0 && size > maxSize {
		return nil, fmt.Errorf("%w: frame %d bytes, limit %d", ErrMessageTooLarge, size, maxSize)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return buf, nil
}

// WriteFrame 向 w 写入一帧
//
// 长度前缀与载荷合并为一次 Write，避免部分写入交错。
func WriteFrame(w io.Writer, payload []byte, maxSize uint64) error {
	if maxSize > 0 && uint64(len(payload)) > maxSize {
		return fmt.Errorf("%w: frame %d bytes, limit %d", ErrMessageTooLarge, len(payload), maxSize)
	}
	buf := make([]byte, 0, varint.UvarintSize(uint64(len(payload)))+len(payload))
	buf = append(buf, varint.ToUvarint(uint64(len(payload)))...)
	buf = append(buf, payload...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
