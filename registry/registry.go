// Package registry maintains the set of trusted attestor nodes and the
// required-signature threshold. Every mutation produces a new version: a
// MerkleTree built over the ordered node addresses, whose root identifies
// the exact node set a quorum was evaluated against.
package registry

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/datamint/datanode/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/vocdoni/arbo"
	kvdb "go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/pebbledb"
)

var (
	// ErrNodeExists is returned when adding a node address that is
	// already trusted
	ErrNodeExists = errors.New("node already in the trusted set")
	// ErrNodeNotFound is returned when removing a node address that is
	// not trusted
	ErrNodeNotFound = errors.New("node not in the trusted set")
	// ErrThresholdUnreachable is returned when an administrative action
	// would leave fewer trusted nodes than the required signatures,
	// making any future quorum impossible
	ErrThresholdUnreachable = errors.New("operation would make the" +
		" required-signature threshold unreachable")
)

var (
	dbKeyNodes     = []byte("nodes")
	dbKeyThreshold = []byte("threshold")
	dbKeyVersion   = []byte("version")
)

// Node identifies a trusted attestor node
type Node struct {
	Address common.Address `json:"address"`
	URL     string         `json:"url"`
}

// Snapshot is an immutable view of the trusted node set at a given
// version. Quorum evaluation rechecks membership against the snapshot
// taken at evaluation time, not at dispatch time.
type Snapshot struct {
	Version   uint64
	Root      []byte
	Threshold int
	Nodes     []Node

	members map[common.Address]bool
}

// Contains returns true if the given address is a member of the snapshot
func (s *Snapshot) Contains(addr common.Address) bool {
	return s.members[addr]
}

// Size returns the number of trusted nodes in the snapshot
func (s *Snapshot) Size() int {
	return len(s.Nodes)
}

// Registry contains the current trusted node set, persisted in a
// key-value database, plus one MerkleTree per version under treesPath
type Registry struct {
	db        kvdb.Database
	treesPath string

	mu      sync.RWMutex
	current *Snapshot
}

// Load loads the Registry from the given database, rebuilding the
// MerkleTree of the current version. defaultThreshold is used if no
// threshold was persisted yet.
func Load(database kvdb.Database, treesPath string, defaultThreshold int) (*Registry, error) {
	if defaultThreshold < 1 {
		return nil, fmt.Errorf("defaultThreshold must be at least 1")
	}
	r := &Registry{
		db:        database,
		treesPath: treesPath,
	}

	rTx := database.ReadTx()
	defer rTx.Discard()

	nodes, err := readNodes(rTx)
	if err != nil {
		return nil, err
	}
	threshold, err := readUint64(rTx, dbKeyThreshold)
	if err == kvdb.ErrKeyNotFound {
		threshold = uint64(defaultThreshold)
	} else if err != nil {
		return nil, err
	}
	version, err := readUint64(rTx, dbKeyVersion)
	if err == kvdb.ErrKeyNotFound {
		version = 0
	} else if err != nil {
		return nil, err
	}

	snap, err := r.buildSnapshot(version, nodes, int(threshold))
	if err != nil {
		return nil, err
	}

	if err := r.persist(snap); err != nil {
		return nil, err
	}
	r.current = snap
	return r, nil
}

// Snapshot returns the current version of the trusted node set
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// AddNode adds the given node to the trusted set, producing a new version
func (r *Registry) AddNode(node Node) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current.Contains(node.Address) {
		return nil, ErrNodeExists
	}
	if node.URL == "" {
		return nil, fmt.Errorf("node url is empty")
	}

	nodes := append(append([]Node{}, r.current.Nodes...), node)
	return r.mutate(nodes, r.current.Threshold)
}

// RemoveNode removes the given node address from the trusted set,
// producing a new version. The removal is rejected if it would leave
// fewer trusted nodes than the required signatures.
func (r *Registry) RemoveNode(addr common.Address) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.current.Contains(addr) {
		return nil, ErrNodeNotFound
	}
	if len(r.current.Nodes)-1 < r.current.Threshold {
		return nil, ErrThresholdUnreachable
	}

	var nodes []Node
	for _, n := range r.current.Nodes {
		if n.Address != addr {
			nodes = append(nodes, n)
		}
	}
	return r.mutate(nodes, r.current.Threshold)
}

// SetThreshold sets the required-signature threshold, producing a new
// version. The threshold can not exceed the current number of trusted
// nodes.
func (r *Registry) SetThreshold(required int) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if required < 1 {
		return nil, fmt.Errorf("threshold must be at least 1")
	}
	if required > len(r.current.Nodes) {
		return nil, ErrThresholdUnreachable
	}
	return r.mutate(r.current.Nodes, required)
}

// mutate builds, persists and installs a new version. Caller must hold
// the write lock.
func (r *Registry) mutate(nodes []Node, threshold int) (*Snapshot, error) {
	snap, err := r.buildSnapshot(r.current.Version+1, nodes, threshold)
	if err != nil {
		return nil, err
	}
	if err := r.persist(snap); err != nil {
		return nil, err
	}
	r.current = snap
	return snap, nil
}

// buildSnapshot builds the MerkleTree of the given version over the given
// nodes, and returns the resulting Snapshot
func (r *Registry) buildSnapshot(version uint64, nodes []Node,
	threshold int) (*Snapshot, error) {
	optsDB := kvdb.Options{
		Path: filepath.Join(r.treesPath, strconv.FormatUint(version, 10)),
	}
	database, err := pebbledb.New(optsDB)
	if err != nil {
		return nil, err
	}

	tree, err := arbo.NewTree(arbo.Config{
		Database:     database,
		MaxLevels:    types.MaxLevels,
		HashFunction: arbo.HashFunctionPoseidon,
	})
	if err != nil {
		return nil, err
	}

	root, err := tree.Root()
	if err != nil {
		return nil, err
	}

	// an already-built version (reopened on Load) keeps its leaves; only
	// an empty tree gets filled
	if len(nodes) > 0 && bytes.Equal(root, make([]byte, len(root))) {
		var indexes [][]byte
		var leaves [][]byte
		for i, n := range nodes {
			indexes = append(indexes, uint64ToIndex(uint64(i)))
			leaf, err := hashNodeAddress(n.Address)
			if err != nil {
				return nil, err
			}
			leaves = append(leaves, leaf)
		}
		invalids, err := tree.AddBatch(indexes, leaves)
		if err != nil {
			return nil, err
		}
		if len(invalids) != 0 {
			return nil, fmt.Errorf("can not add %d nodes to the"+
				" registry tree", len(invalids))
		}
		if root, err = tree.Root(); err != nil {
			return nil, err
		}
	}

	if err := database.Close(); err != nil {
		return nil, err
	}

	members := make(map[common.Address]bool)
	for _, n := range nodes {
		members[n.Address] = true
	}

	return &Snapshot{
		Version:   version,
		Root:      root,
		Threshold: threshold,
		Nodes:     nodes,
		members:   members,
	}, nil
}

// persist stores the node set, threshold and version of the given
// Snapshot in the Registry database
func (r *Registry) persist(snap *Snapshot) error {
	wTx := r.db.WriteTx()
	defer wTx.Discard()

	nodesJSON, err := json.Marshal(snap.Nodes)
	if err != nil {
		return err
	}
	if err := wTx.Set(dbKeyNodes, nodesJSON); err != nil {
		return err
	}
	if err := setUint64(wTx, dbKeyThreshold, uint64(snap.Threshold)); err != nil {
		return err
	}
	if err := setUint64(wTx, dbKeyVersion, snap.Version); err != nil {
		return err
	}
	return wTx.Commit()
}

func readNodes(rTx kvdb.ReadTx) ([]Node, error) {
	b, err := rTx.Get(dbKeyNodes)
	if err == kvdb.ErrKeyNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var nodes []Node
	if err := json.Unmarshal(b, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func setUint64(wTx kvdb.WriteTx, key []byte, v uint64) error {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return wTx.Set(key, b)
}

func readUint64(rTx kvdb.ReadTx, key []byte) (uint64, error) {
	b, err := rTx.Get(key)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func uint64ToIndex(i uint64) []byte {
	b := make([]byte, types.MaxLevels/8)
	binary.LittleEndian.PutUint64(b, i)
	return b
}

// hashNodeAddress returns the registry tree leaf value for the given node
// address: its poseidon hash, encoded in the field-element byte
// representation the tree expects
func hashNodeAddress(addr common.Address) ([]byte, error) {
	h, err := poseidon.Hash([]*big.Int{new(big.Int).SetBytes(addr.Bytes())})
	if err != nil {
		return nil, err
	}
	return arbo.BigIntToBytes(32, h), nil
}
