package index

import (
	"DaemonDB/storage/page"
	"encoding/binary"
	"fmt"
)

// Page layout (header is 19 bytes, body is length-prefixed):
//
//	kind      byte    0 = leaf, 1 = internal
//	numKeys   uint16
//	parent    int64   page.Invalid if none
//	next      int64   leaf only, page.Invalid if none
//	keys      numKeys x [uint16 len | bytes]
//	internal: (numKeys+1) x [int64 child id]
//	leaf:      numKeys    x [uint16 len | bytes]
const headerSize = 1 + 2 + 8 + 8

func encodeNode(n *node, data []byte) error {
	if len(data) != page.Size {
		return fmt.Errorf("index: encode buffer must be %d bytes", page.Size)
	}
	off := 0
	if n.kind == nodeLeaf {
		data[off] = 0
	} else {
		data[off] = 1
	}
	off++
	binary.LittleEndian.PutUint16(data[off:], uint16(len(n.keys)))
	off += 2
	binary.LittleEndian.PutUint64(data[off:], uint64(n.parent))
	off += 8
	binary.LittleEndian.PutUint64(data[off:], uint64(n.next))
	off += 8

	for _, k := range n.keys {
		if off+2+len(k) > page.Size {
			return fmt.Errorf("index: page overflow writing keys")
		}
		binary.LittleEndian.PutUint16(data[off:], uint16(len(k)))
		off += 2
		off += copy(data[off:], k)
	}

	if n.kind == nodeInternal {
		for _, c := range n.children {
			if off+8 > page.Size {
				return fmt.Errorf("index: page overflow writing children")
			}
			binary.LittleEndian.PutUint64(data[off:], uint64(c))
			off += 8
		}
	} else {
		for _, v := range n.values {
			if off+2+len(v) > page.Size {
				return fmt.Errorf("index: page overflow writing values")
			}
			binary.LittleEndian.PutUint16(data[off:], uint16(len(v)))
			off += 2
			off += copy(data[off:], v)
		}
	}
	for i := off; i < len(data); i++ {
		data[i] = 0
	}
	return nil
}

func decodeNode(id page.ID, data []byte) (*node, error) {
	if len(data) != page.Size {
		return nil, fmt.Errorf("index: decode buffer must be %d bytes", page.Size)
	}
	off := 0
	kind := nodeLeaf
	if data[off] == 1 {
		kind = nodeInternal
	}
	off++
	numKeys := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	parent := page.ID(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	next := page.ID(binary.LittleEndian.Uint64(data[off:]))
	off += 8

	n := &node{id: id, kind: kind, parent: parent, next: next}
	n.keys = make([][]byte, numKeys)
	for i := 0; i < numKeys; i++ {
		klen := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		key := make([]byte, klen)
		copy(key, data[off:off+klen])
		off += klen
		n.keys[i] = key
	}

	if kind == nodeInternal {
		n.children = make([]page.ID, numKeys+1)
		for i := 0; i < numKeys+1; i++ {
			n.children[i] = page.ID(binary.LittleEndian.Uint64(data[off:]))
			off += 8
		}
	} else {
		n.values = make([][]byte, numKeys)
		for i := 0; i < numKeys; i++ {
			vlen := int(binary.LittleEndian.Uint16(data[off:]))
			off += 2
			val := make([]byte, vlen)
			copy(val, data[off:off+vlen])
			off += vlen
			n.values[i] = val
		}
	}
	return n, nil
}
