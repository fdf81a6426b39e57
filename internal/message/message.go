// Package message implements the fixed-header message envelope that wraps a Work for the
// wire: {broadcast_root, sender, type, collective, content_size} followed by content_size
// bytes of payload, per SPEC_FULL.md §6.
package message

import (
	"github.com/mwindels/galaxy/internal/buffer"
	"github.com/mwindels/galaxy/internal/wire"
	"github.com/pkg/errors"
)

// NoBroadcastRoot marks a message as point-to-point rather than broadcast.
const NoBroadcastRoot = -1

// HeaderSize is the fixed wire size of a Header: four int32s plus one bool byte.
const HeaderSize = 4*4 + 1

// Header is the fixed envelope preceding a message's payload.
type Header struct {
	BroadcastRoot int32
	Sender        int32
	Type          uint32
	Collective    bool
	ContentSize   int32
}

// IsBroadcast reports whether this header describes a broadcast message.
func (h Header) IsBroadcast() bool {
	return h.BroadcastRoot != NoBroadcastRoot
}

// Serialize appends the header's wire form to buf.
func (h Header) Serialize(buf []byte) []byte {
	buf = wire.PutInt32(buf, h.BroadcastRoot)
	buf = wire.PutInt32(buf, h.Sender)
	buf = wire.PutUint32(buf, h.Type)
	buf = wire.PutBool(buf, h.Collective)
	buf = wire.PutInt32(buf, h.ContentSize)
	return buf
}

// DeserializeHeader reads a Header from the front of buf.
func DeserializeHeader(buf []byte) (Header, []byte, error) {
	var h Header
	var err error
	if h.BroadcastRoot, buf, err = wire.GetInt32(buf); err != nil {
		return Header{}, buf, errors.Wrap(err, "message: header broadcast_root")
	}
	if h.Sender, buf, err = wire.GetInt32(buf); err != nil {
		return Header{}, buf, errors.Wrap(err, "message: header sender")
	}
	if h.Type, buf, err = wire.GetUint32(buf); err != nil {
		return Header{}, buf, errors.Wrap(err, "message: header type")
	}
	if h.Collective, buf, err = wire.GetBool(buf); err != nil {
		return Header{}, buf, errors.Wrap(err, "message: header collective")
	}
	if h.ContentSize, buf, err = wire.GetInt32(buf); err != nil {
		return Header{}, buf, errors.Wrap(err, "message: header content_size")
	}
	return h, buf, nil
}

// Message is a Work packaged for the wire: a Header plus the shared-buffer payload that
// carries the Work's serialized form.  The sender's copy and any locally queued copy hold
// the same *buffer.Shared (see SPEC_FULL.md §4.1).
type Message struct {
	Header  Header
	Content *buffer.Shared

	// done, if non-nil, is closed once the local action (collective or non-collective)
	// for this message has run.  A blocking broadcast's sender waits on it
	// (SPEC_FULL.md §4.4's blocking-broadcast wait semantics).
	done chan struct{}
}

// New builds a point-to-point Message.
func New(sender int32, typ uint32, collective bool, content *buffer.Shared) *Message {
	size := int32(0)
	if content != nil {
		size = int32(content.Size())
	}
	return &Message{
		Header: Header{
			BroadcastRoot: NoBroadcastRoot,
			Sender:        sender,
			Type:          typ,
			Collective:    collective,
			ContentSize:   size,
		},
		Content: content,
	}
}

// NewBroadcast builds a broadcast Message rooted at root.
func NewBroadcast(root, sender int32, typ uint32, collective bool, content *buffer.Shared) *Message {
	m := New(sender, typ, collective, content)
	m.Header.BroadcastRoot = root
	return m
}

// MarkBlocking attaches a completion channel to this message so WaitLocal can block until
// the local action has run. Must be called before the message is handed to the manager.
func (m *Message) MarkBlocking() {
	m.done = make(chan struct{})
}

// IsBlocking reports whether this message was marked blocking.
func (m *Message) IsBlocking() bool {
	return m.done != nil
}

// SignalDone closes the completion channel, waking any WaitLocal caller. It is a
// programming error to call this on a non-blocking message.
func (m *Message) SignalDone() {
	close(m.done)
}

// WaitLocal blocks until the local action for this message has completed. It is a
// programming error to call this on a non-blocking message.
func (m *Message) WaitLocal() {
	<-m.done
}

// Bytes returns the content payload, or nil if there is none.
func (m *Message) Bytes() []byte {
	if m.Content == nil {
		return nil
	}
	return m.Content.Get()
}
