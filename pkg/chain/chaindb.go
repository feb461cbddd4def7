// Storage for the CHAIN collaborator splits across two embedded engines,
// built around a key-prefix table idiom (database.NewTable(c.db, PREFIX))
// over two purpose-built stores: bbolt holds the small, point-lookup-heavy
// header and checkpoint records, while goleveldb holds the high-volume,
// append-only block and transaction bodies that never participate in
// validation but still need somewhere to land.
package chain

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	bolt "go.etcd.io/bbolt"

	"github.com/makonode/p2p/pkg/wire/binio"
	"github.com/makonode/p2p/pkg/wire/payload"
	"github.com/makonode/p2p/pkg/wire/util"
)

var (
	headerBucket     = []byte("chain-headers")
	heightBucket     = []byte("chain-height-index")
	checkpointBucket = []byte("chain-checkpoints")

	metaKeyTip = []byte("tip")
)

// store is the persistence layer behind Chain. A nil *store leaves the
// chain entirely in-memory (used by tests and ephemeral nodes).
type store struct {
	headers *bolt.DB
	bodies  *leveldb.DB
}

// openStore opens (creating as needed) the header/checkpoint database at
// headerPath and the block/tx body database at bodyPath.
func openStore(headerPath, bodyPath string) (*store, error) {
	hdb, err := bolt.Open(headerPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: opening header store: %w", err)
	}
	err = hdb.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{headerBucket, heightBucket, checkpointBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		hdb.Close()
		return nil, err
	}

	bdb, err := leveldb.OpenFile(bodyPath, nil)
	if err != nil {
		hdb.Close()
		return nil, fmt.Errorf("chain: opening body store: %w", err)
	}

	return &store{headers: hdb, bodies: bdb}, nil
}

func (s *store) Close() error {
	if s == nil {
		return nil
	}
	err1 := s.headers.Close()
	err2 := s.bodies.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func heightKey(h uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], h)
	return b[:]
}

// putHeader persists a header under both its hash and its height.
func (s *store) putHeader(height uint32, h *payload.BlockHeader) error {
	if s == nil {
		return nil
	}
	buf := new(bytes.Buffer)
	bw := binio.NewBinWriterFromIO(buf)
	h.EncodeBinary(bw)
	if bw.Err != nil {
		return bw.Err
	}
	hash := h.Hash()
	return s.headers.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(headerBucket).Put(hash.Bytes(), buf.Bytes()); err != nil {
			return err
		}
		if err := tx.Bucket(heightBucket).Put(heightKey(height), hash.Bytes()); err != nil {
			return err
		}
		return tx.Bucket(headerBucket).Put(metaKeyTip, hash.Bytes())
	})
}

// getHeaderByHeight loads the header stored at height, if any.
func (s *store) getHeaderByHeight(height uint32) (*payload.BlockHeader, bool, error) {
	if s == nil {
		return nil, false, nil
	}
	var raw []byte
	err := s.headers.View(func(tx *bolt.Tx) error {
		hashB := tx.Bucket(heightBucket).Get(heightKey(height))
		if hashB == nil {
			return nil
		}
		raw = append([]byte(nil), tx.Bucket(headerBucket).Get(hashB)...)
		return nil
	})
	if err != nil || raw == nil {
		return nil, false, err
	}
	return decodeHeader(raw)
}

func decodeHeader(raw []byte) (*payload.BlockHeader, bool, error) {
	br := binio.NewBinReaderFromIO(bytes.NewReader(raw))
	h := new(payload.BlockHeader)
	h.DecodeBinary(br)
	if br.Err != nil {
		return nil, false, br.Err
	}
	return h, true, nil
}

// putBody stores the raw tx bytes of a block, keyed by block hash.
func (s *store) putBody(hash util.Uint256, raw []byte) error {
	if s == nil {
		return nil
	}
	return s.bodies.Put(hash.Bytes(), raw, nil)
}

// getBody loads the raw tx bytes of a block by hash.
func (s *store) getBody(hash util.Uint256) ([]byte, bool, error) {
	if s == nil {
		return nil, false, nil
	}
	raw, err := s.bodies.Get(hash.Bytes(), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// putCheckpointCursor records the index of the next unconsumed checkpoint,
// so a restarted node resumes headers-first sync where it left off.
func (s *store) putCheckpointCursor(idx int) error {
	if s == nil {
		return nil
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(idx))
	return s.headers.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(checkpointBucket).Put(metaKeyTip, b[:])
	})
}

func (s *store) getCheckpointCursor() (int, bool, error) {
	if s == nil {
		return 0, false, nil
	}
	var idx int
	var found bool
	err := s.headers.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(checkpointBucket).Get(metaKeyTip)
		if b == nil {
			return nil
		}
		idx = int(binary.BigEndian.Uint32(b))
		found = true
		return nil
	})
	return idx, found, err
}
